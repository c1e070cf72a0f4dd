package extract

import (
	"strings"
	"sync/atomic"
)

// DefaultRefusalPhrases are the replies vision models give when they decline
// to transcribe an image.
var DefaultRefusalPhrases = []string{
	"can't assist",
	"cannot assist",
	"can't help with that image",
	"cannot help with that image",
	"can't process",
	"cannot process",
	"처리할 수 없습니다",
	"도와드릴 수 없습니다",
	"죄송하지만",
}

// RefusalDetector decides whether a model reply is a refusal rather than a
// transcription.
type RefusalDetector interface {
	IsRefusal(text string) bool
}

// PhraseDetector flags blank replies and replies containing any known phrase,
// case-insensitively. The phrase set can be swapped while requests run.
type PhraseDetector struct {
	phrases atomic.Pointer[[]string]
}

// NewPhraseDetector returns a detector for phrases, or for
// DefaultRefusalPhrases when none are given.
func NewPhraseDetector(phrases ...string) *PhraseDetector {
	d := &PhraseDetector{}
	if len(phrases) == 0 {
		phrases = DefaultRefusalPhrases
	}
	d.SetPhrases(phrases)
	return d
}

// SetPhrases replaces the phrase set. Blank entries are ignored.
func (d *PhraseDetector) SetPhrases(phrases []string) {
	normalized := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			normalized = append(normalized, p)
		}
	}
	d.phrases.Store(&normalized)
}

func (d *PhraseDetector) IsRefusal(text string) bool {
	if strings.TrimSpace(text) == "" {
		return true
	}
	lower := strings.ToLower(text)
	for _, phrase := range *d.phrases.Load() {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
