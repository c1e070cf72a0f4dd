// Package mock provides a deterministic speech backend for development and
// tests.
package mock

import (
	"context"
	"math"
	"sync"

	"github.com/storyreader/storyreader/internal/registry"
	"github.com/storyreader/storyreader/internal/speech/engine"
	"github.com/storyreader/storyreader/pkg/language"
)

const (
	SampleRate = 24000
	// SecondsPerRune sets how much audio each input rune produces.
	SecondsPerRune = 0.05
)

func init() {
	registry.Speech.Register("mock", func(map[string]string) (engine.Provider, error) {
		return &Provider{}, nil
	})
}

// Call records one Generate invocation.
type Call struct {
	Text     string
	Language language.Language
	Speaker  string
}

// Provider counts loads and hands out a recording Model. Set LoadErr or
// GenerateErr to script failures.
type Provider struct {
	LoadErr     error
	GenerateErr error

	mu       sync.Mutex
	loads    int
	lastOpts engine.LoadOptions
	calls    []Call
}

func (p *Provider) Load(_ context.Context, opts engine.LoadOptions) (engine.Model, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loads++
	p.lastOpts = opts
	if p.LoadErr != nil {
		return nil, p.LoadErr
	}
	return &model{provider: p}, nil
}

// Loads returns how many times Load was called.
func (p *Provider) Loads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loads
}

// LastOptions returns the options of the latest Load.
func (p *Provider) LastOptions() engine.LoadOptions {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastOpts
}

// Calls returns the Generate invocations so far.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Call, len(p.calls))
	copy(out, p.calls)
	return out
}

type model struct {
	provider *Provider
}

// Generate returns a 220 Hz sine whose length grows with the text.
func (m *model) Generate(_ context.Context, text string, lang language.Language, speaker string) (engine.Samples, error) {
	p := m.provider
	p.mu.Lock()
	p.calls = append(p.calls, Call{Text: text, Language: lang, Speaker: speaker})
	err := p.GenerateErr
	p.mu.Unlock()
	if err != nil {
		return engine.Samples{}, err
	}

	n := int(float64(len([]rune(text))) * SecondsPerRune * SampleRate)
	data := make([]float32, n)
	for i := range data {
		data[i] = float32(0.3 * math.Sin(2*math.Pi*220*float64(i)/SampleRate))
	}
	return engine.Samples{Data: data, SampleRate: SampleRate}, nil
}
