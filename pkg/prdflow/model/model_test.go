package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nir-meir/prd-to-json/pkg/prdflow/model"
)

func TestChannelFromString(t *testing.T) {
	tests := []struct {
		in   string
		want model.Channel
	}{
		{"voice", model.ChannelVoice},
		{"Phone", model.ChannelVoice},
		{"IVR", model.ChannelVoice},
		{"text", model.ChannelText},
		{"WhatsApp", model.ChannelText},
		{"chat", model.ChannelText},
		{"both", model.ChannelBoth},
		{"", model.ChannelBoth},
		{"carrier pigeon", model.ChannelBoth},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, model.ChannelFromString(tt.in))
		})
	}
}

func TestVariableTypeFromString(t *testing.T) {
	tests := []struct {
		in   string
		want model.VariableType
	}{
		{"string", model.TypeString},
		{"str", model.TypeString},
		{"int", model.TypeNumber},
		{"Float", model.TypeNumber},
		{"bool", model.TypeBoolean},
		{"dict", model.TypeObject},
		{"list", model.TypeArray},
		{"mystery", model.TypeString},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, model.VariableTypeFromString(tt.in))
		})
	}
}

func TestVariableSourceFromString(t *testing.T) {
	assert.Equal(t, model.SourceUser, model.VariableSourceFromString("caller"))
	assert.Equal(t, model.SourceTool, model.VariableSourceFromString("API"))
	assert.Equal(t, model.SourceCollect, model.VariableSourceFromString("collected"))
	assert.Equal(t, model.SourceCollect, model.VariableSourceFromString("unknown"))
}

func TestHTTPMethodFromString(t *testing.T) {
	assert.Equal(t, model.MethodGet, model.HTTPMethodFromString("get"))
	assert.Equal(t, model.MethodDelete, model.HTTPMethodFromString(" DELETE "))
	// Missing or unknown methods default to POST.
	assert.Equal(t, model.MethodPost, model.HTTPMethodFromString(""))
	assert.Equal(t, model.MethodPost, model.HTTPMethodFromString("FETCH"))
}

func TestNormalizeFeatureID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"F-01", "F-01"},
		{"f-1", "F-01"},
		{"F12", "F-12"},
		{"F-3", "F-03"},
		{"", ""},
		{"FX", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, model.NormalizeFeatureID(tt.in), "input %q", tt.in)
	}
}

func TestStepTypeTerminal(t *testing.T) {
	assert.True(t, model.StepEnd.Terminal())
	assert.True(t, model.StepTransfer.Terminal())
	assert.False(t, model.StepCollect.Terminal())
	assert.False(t, model.StepCondition.Terminal())
}

func TestHasHebrew(t *testing.T) {
	assert.True(t, model.HasHebrew("שלום"))
	assert.True(t, model.HasHebrew("hello שלום world"))
	assert.False(t, model.HasHebrew("hello world"))
	assert.False(t, model.HasHebrew(""))
}

func TestEstimatedNodeCount(t *testing.T) {
	doc := &model.Document{
		Features: []model.Feature{
			{ID: "F-01", Steps: make([]model.FlowStep, 3)},
			{ID: "F-02"}, // no steps still costs one node
		},
	}
	// 2 boundary nodes + 3*2 + 1
	assert.Equal(t, 9, doc.EstimatedNodeCount())
}

func TestComplexityTier(t *testing.T) {
	tests := []struct {
		name     string
		features int
		steps    int // per feature
		want     model.Complexity
	}{
		{"tiny", 2, 1, model.Simple},
		{"medium by nodes", 3, 5, model.Medium},
		{"medium by features", 8, 1, model.Medium},
		{"complex", 15, 3, model.Complex},
		{"enterprise", 25, 5, model.Enterprise},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &model.Document{}
			for i := 0; i < tt.features; i++ {
				doc.Features = append(doc.Features, model.Feature{
					Steps: make([]model.FlowStep, tt.steps),
				})
			}
			assert.Equal(t, tt.want, doc.ComplexityTier())
		})
	}
}

func TestFeatureScore(t *testing.T) {
	tests := []struct {
		name string
		f    model.Feature
		want int
	}{
		{"empty", model.Feature{}, 0},
		{
			"small",
			model.Feature{Steps: make([]model.FlowStep, 2)},
			1,
		},
		{
			"loaded",
			model.Feature{
				Steps:         make([]model.FlowStep, 12),
				VariablesUsed: []string{"a", "b", "c", "d", "e", "f"},
				APIsUsed:      []string{"x", "y", "z", "w"},
				Dependencies:  []string{"F-01"},
			},
			3 + 2 + 2 + 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, model.FeatureScore(&tt.f))
		})
	}
}

func TestFeatureTier(t *testing.T) {
	assert.Equal(t, model.Simple, model.FeatureTier(2))
	assert.Equal(t, model.Medium, model.FeatureTier(5))
	assert.Equal(t, model.Complex, model.FeatureTier(8))
	assert.Equal(t, model.Enterprise, model.FeatureTier(9))
}

func TestDocumentLookups(t *testing.T) {
	doc := &model.Document{
		Features:  []model.Feature{{ID: "F-01", Name: "Greeting"}},
		Variables: []model.Variable{{Name: "customer_name", Type: model.TypeString}},
		APIs:      []model.API{{Name: "Track Order", FunctionName: "track_order"}},
	}

	assert.NotNil(t, doc.FeatureByID("F-01"))
	assert.Nil(t, doc.FeatureByID("F-99"))
	assert.NotNil(t, doc.VariableByName("customer_name"))
	assert.Nil(t, doc.VariableByName("missing"))
	assert.NotNil(t, doc.APIByFunctionName("track_order"))
	assert.Nil(t, doc.APIByFunctionName("untrack_order"))
}
