// Package engine defines the speech model capability: a Provider materializes
// a Model on a device, and the Model renders text to samples.
package engine

import (
	"context"

	"github.com/storyreader/storyreader/pkg/language"
)

// Samples is mono audio as floats in [-1, 1].
type Samples struct {
	Data       []float32
	SampleRate int
}

// Duration returns the length in seconds.
func (s Samples) Duration() float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return float64(len(s.Data)) / float64(s.SampleRate)
}

// LoadOptions selects the model variant and where it runs.
type LoadOptions struct {
	SizeVariant string
	Device      Device
	Precision   Precision
}

// Model renders text as speech. lang is always concrete.
type Model interface {
	Generate(ctx context.Context, text string, lang language.Language, speaker string) (Samples, error)
}

// Provider materializes a Model. Load may be slow and may fail; callers
// treat failure as degraded operation.
type Provider interface {
	Load(ctx context.Context, opts LoadOptions) (Model, error)
}

// CircuitReporter is implemented by providers that guard a remote model
// with a circuit breaker.
type CircuitReporter interface {
	CircuitState() string
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, opts LoadOptions) (Model, error)

func (f ProviderFunc) Load(ctx context.Context, opts LoadOptions) (Model, error) {
	return f(ctx, opts)
}
