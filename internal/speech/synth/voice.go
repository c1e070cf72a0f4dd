package synth

import (
	"fmt"
	"strings"

	"github.com/storyreader/storyreader/pkg/language"
)

// VoiceStyle is a reading mood mapped to a model speaker.
type VoiceStyle string

const (
	Warm       VoiceStyle = "warm"
	Playful    VoiceStyle = "playful"
	Calm       VoiceStyle = "calm"
	Expressive VoiceStyle = "expressive"
)

// DefaultSpeaker is used when a style has no speaker.
const DefaultSpeaker = "sohee"

// DefaultStyleSpeakers maps styles to Qwen3-TTS CustomVoice speakers.
var DefaultStyleSpeakers = map[VoiceStyle]string{
	Warm:       "sohee",
	Playful:    "ryan",
	Calm:       "ono_anna",
	Expressive: "vivian",
}

// ParseVoiceStyle accepts a style name in any case. Empty means Warm.
func ParseVoiceStyle(s string) (VoiceStyle, error) {
	switch v := VoiceStyle(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return Warm, nil
	case Warm, Playful, Calm, Expressive:
		return v, nil
	default:
		return "", fmt.Errorf("unknown voice style %q", s)
	}
}

// ParseForcedLanguage reads the forced-language setting. Values other than
// en/english/ko/korean disable forcing and return "".
func ParseForcedLanguage(s string) language.Language {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "en", "english":
		return language.English
	case "ko", "korean":
		return language.Korean
	default:
		return ""
	}
}
