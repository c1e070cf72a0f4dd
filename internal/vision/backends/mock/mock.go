// Package mock provides a deterministic vision backend for development and
// tests.
package mock

import (
	"context"
	"sync"

	"github.com/storyreader/storyreader/internal/registry"
	"github.com/storyreader/storyreader/internal/vision/engine"
)

func init() {
	registry.Vision.Register("mock", func(settings map[string]string) (engine.Model, error) {
		return New(settings["mock_text"]), nil
	})
}

// Vision returns scripted replies. With per-model replies set it answers
// according to the requested model, otherwise it always returns Text.
type Vision struct {
	Text    string
	ByModel map[string]string
	Err     error

	mu    sync.Mutex
	calls []engine.Request
}

// New returns a mock that always answers text.
func New(text string) *Vision {
	return &Vision{Text: text}
}

func (v *Vision) Complete(_ context.Context, req engine.Request) (string, error) {
	v.mu.Lock()
	v.calls = append(v.calls, req)
	v.mu.Unlock()

	if v.Err != nil {
		return "", v.Err
	}
	if text, ok := v.ByModel[req.Model]; ok {
		return text, nil
	}
	return v.Text, nil
}

// Calls returns the requests seen so far.
func (v *Vision) Calls() []engine.Request {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]engine.Request, len(v.calls))
	copy(out, v.calls)
	return out
}
