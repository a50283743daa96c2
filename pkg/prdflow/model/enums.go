package model

import "strings"

// Channel identifies the conversation medium an agent or feature serves.
type Channel string

// Supported channels.
const (
	ChannelVoice Channel = "voice"
	ChannelText  Channel = "text"
	ChannelBoth  Channel = "both"
)

// ChannelFromString normalizes a free-form channel label.
// Unrecognized values map to ChannelBoth.
func ChannelFromString(s string) Channel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "voice", "phone", "call", "audio", "ivr":
		return ChannelVoice
	case "text", "chat", "sms", "whatsapp", "message":
		return ChannelText
	case "both", "omnichannel", "all":
		return ChannelBoth
	default:
		return ChannelBoth
	}
}

// VariableType is the declared data type of a flow variable.
type VariableType string

// Supported variable types.
const (
	TypeString  VariableType = "string"
	TypeNumber  VariableType = "number"
	TypeBoolean VariableType = "boolean"
	TypeObject  VariableType = "object"
	TypeArray   VariableType = "array"
)

// VariableTypeFromString normalizes a free-form type label, accepting
// common synonyms from other type systems. Unrecognized values map to
// TypeString.
func VariableTypeFromString(s string) VariableType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "str", "text":
		return TypeString
	case "number", "num", "int", "integer", "float", "decimal":
		return TypeNumber
	case "boolean", "bool", "flag":
		return TypeBoolean
	case "object", "dict", "map", "json":
		return TypeObject
	case "array", "list":
		return TypeArray
	default:
		return TypeString
	}
}

// VariableSource identifies where a variable's value comes from.
type VariableSource string

// Supported variable sources.
const (
	SourceUser    VariableSource = "user"
	SourceCollect VariableSource = "collect"
	SourceTool    VariableSource = "tool"
)

// ValidSource reports whether s is a member of the source enum.
func ValidSource(s VariableSource) bool {
	switch s {
	case SourceUser, SourceCollect, SourceTool:
		return true
	}
	return false
}

// VariableSourceFromString normalizes a free-form source label.
// Unrecognized values map to SourceCollect.
func VariableSourceFromString(s string) VariableSource {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user", "caller", "customer":
		return SourceUser
	case "collect", "collected", "conversation":
		return SourceCollect
	case "tool", "api", "system", "backend":
		return SourceTool
	default:
		return SourceCollect
	}
}

// StepType classifies one flow step within a feature.
type StepType string

// Supported step types.
const (
	StepCollect      StepType = "collect"
	StepAPICall      StepType = "api_call"
	StepCondition    StepType = "condition"
	StepConversation StepType = "conversation"
	StepTransfer     StepType = "transfer"
	StepSetVariable  StepType = "set_variable"
	StepEnd          StepType = "end"
)

// Terminal reports whether the step ends its branch of the flow.
func (t StepType) Terminal() bool {
	return t == StepEnd || t == StepTransfer
}

// HTTPMethod is the HTTP verb of an API definition.
type HTTPMethod string

// Supported HTTP methods.
const (
	MethodGet    HTTPMethod = "GET"
	MethodPost   HTTPMethod = "POST"
	MethodPut    HTTPMethod = "PUT"
	MethodPatch  HTTPMethod = "PATCH"
	MethodDelete HTTPMethod = "DELETE"
)

// HTTPMethodFromString normalizes a method label.
// Unrecognized or empty values map to MethodPost.
func HTTPMethodFromString(s string) HTTPMethod {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "GET":
		return MethodGet
	case "POST":
		return MethodPost
	case "PUT":
		return MethodPut
	case "PATCH":
		return MethodPatch
	case "DELETE":
		return MethodDelete
	default:
		return MethodPost
	}
}

// Complexity is the document- or feature-level complexity tier.
type Complexity string

// Complexity tiers, ordered.
const (
	Simple     Complexity = "simple"
	Medium     Complexity = "medium"
	Complex    Complexity = "complex"
	Enterprise Complexity = "enterprise"
)

// CollectionMode distinguishes explicitly declared variables from ones
// deduced from inline template references.
type CollectionMode string

// Collection modes.
const (
	ModeExplicit  CollectionMode = "explicit"
	ModeDeducible CollectionMode = "deducible"
)
