package extract

import (
	"regexp"
	"strings"

	"github.com/nir-meir/prd-to-json/pkg/prdflow/model"
)

var (
	titleRe     = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	fieldRe     = regexp.MustCompile(`(?mi)^\s*(?:[-*]\s*)?\*{0,2}(agent name|agent|name|language|channel|phase)\*{0,2}\s*:\s*(.+)$`)
	titleNoise  = regexp.MustCompile(`(?i)^(prd|product requirements(?: document)?|spec(?:ification)?)\s*[:\-–]\s*`)
	voiceWords  = []string{"voice", "phone", "call center", "ivr", "telephony", "audio", "שיחה", "קולי", "טלפון"}
	textWords   = []string{"chat", "sms", "whatsapp", "text channel", "messaging", "webchat", "צ'אט", "הודעה"}
	hebrewLabel = regexp.MustCompile(`(?i)\b(hebrew|he-il|he_il|עברית)\b`)
)

// Metadata extracts the agent metadata block: name, description,
// language, channel, and delivery phase.
//
// Language detection keys off the Hebrew Unicode block: any Hebrew
// character anywhere in the input selects he-IL. Channel detection uses
// keyword sets; when both voice and text indicators appear the channel
// is "both".
func Metadata(text string) model.Metadata {
	md := model.Metadata{
		Language: "en-US",
		Channel:  model.ChannelBoth,
	}

	if m := titleRe.FindStringSubmatch(text); m != nil {
		md.Name = cleanTitle(m[1])
	}

	for _, m := range fieldRe.FindAllStringSubmatch(text, -1) {
		value := strings.TrimSpace(strings.Trim(m[2], "*` "))
		switch strings.ToLower(m[1]) {
		case "agent name", "agent", "name":
			if md.Name == "" {
				md.Name = cleanTitle(value)
			}
		case "language":
			if hebrewLabel.MatchString(value) || model.HasHebrew(value) {
				md.Language = "he-IL"
			}
		case "channel":
			md.Channel = model.ChannelFromString(value)
		case "phase":
			md.Phase = value
		}
	}

	if desc := findSection(text, "overview", "description", "purpose", "summary", "about"); desc != "" {
		md.Description = firstParagraph(desc)
	}

	if model.HasHebrew(text) {
		md.Language = "he-IL"
	}

	if md.Channel == model.ChannelBoth {
		md.Channel = detectChannel(text)
	}

	return md
}

func detectChannel(text string) model.Channel {
	lower := strings.ToLower(text)
	voice := containsAny(lower, voiceWords)
	textual := containsAny(lower, textWords)

	switch {
	case voice && textual:
		return model.ChannelBoth
	case voice:
		return model.ChannelVoice
	case textual:
		return model.ChannelText
	default:
		return model.ChannelBoth
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func cleanTitle(s string) string {
	s = strings.Trim(strings.TrimSpace(s), "*")
	s = titleNoise.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
