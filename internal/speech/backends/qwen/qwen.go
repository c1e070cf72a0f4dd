// Package qwen talks to a Qwen3-TTS CustomVoice model server.
//
// The server exposes two endpoints: POST /v1/models/load materializes a
// checkpoint on a device, and POST /v1/generate renders text. Generated audio
// comes back either as a WAV file or as raw little-endian float32 samples
// with the rate in the X-Sample-Rate header.
package qwen

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/storyreader/storyreader/internal/breaker"
	"github.com/storyreader/storyreader/internal/registry"
	"github.com/storyreader/storyreader/internal/restutil"
	"github.com/storyreader/storyreader/internal/speech/audio"
	"github.com/storyreader/storyreader/internal/speech/engine"
	"github.com/storyreader/storyreader/pkg/language"
)

const (
	defaultServerURL  = "http://localhost:8001"
	defaultSampleRate = 24000
	maxAudioBytes     = 64 << 20
)

// ModelName returns the checkpoint for a size variant. Anything other than
// "1.7B" selects the small model.
func ModelName(sizeVariant string) string {
	if sizeVariant == "1.7B" {
		return "Qwen/Qwen3-TTS-12Hz-1.7B-CustomVoice"
	}
	return "Qwen/Qwen3-TTS-12Hz-0.6B-CustomVoice"
}

func init() {
	registry.Speech.Register("qwen", func(settings map[string]string) (engine.Provider, error) {
		serverURL := settings["tts_server_url"]
		if serverURL == "" {
			serverURL = defaultServerURL
		}
		return New(serverURL, restutil.New(5*time.Minute), breaker.Config{}), nil
	})
}

// Provider loads models on a remote Qwen3-TTS server.
type Provider struct {
	baseURL string
	client  *restutil.Client
	breaker *breaker.Breaker
}

// New creates a provider for the server at baseURL. All generate calls go
// through one circuit breaker so a dead server fails fast.
func New(baseURL string, client *restutil.Client, cfg breaker.Config) *Provider {
	return &Provider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		breaker: breaker.New(cfg),
	}
}

type loadRequest struct {
	Model  string `json:"model"`
	Device string `json:"device"`
	DType  string `json:"dtype"`
}

type loadResponse struct {
	Status     string `json:"status"`
	SampleRate int    `json:"sample_rate"`
}

func (p *Provider) Load(ctx context.Context, opts engine.LoadOptions) (engine.Model, error) {
	req := loadRequest{
		Model:  ModelName(opts.SizeVariant),
		Device: string(opts.Device),
		DType:  string(opts.Precision),
	}

	var resp loadResponse
	if err := p.client.DoJSON(ctx, http.MethodPost, p.baseURL+"/v1/models/load", nil, req, &resp); err != nil {
		return nil, fmt.Errorf("qwen load %s: %w", req.Model, err)
	}
	if resp.Status != "" && resp.Status != "loaded" && resp.Status != "ok" {
		return nil, fmt.Errorf("qwen load %s: server reported %q", req.Model, resp.Status)
	}

	rate := resp.SampleRate
	if rate <= 0 {
		rate = defaultSampleRate
	}
	return &Model{provider: p, name: req.Model, sampleRate: rate}, nil
}

// CircuitState reports the breaker position in front of the model server.
func (p *Provider) CircuitState() string { return string(p.breaker.State()) }

// Model is a checkpoint loaded on the server.
type Model struct {
	provider   *Provider
	name       string
	sampleRate int
}

type generateRequest struct {
	Model    string `json:"model"`
	Text     string `json:"text"`
	Language string `json:"language"`
	Speaker  string `json:"speaker"`
}

func (m *Model) Generate(ctx context.Context, text string, lang language.Language, speaker string) (engine.Samples, error) {
	var out engine.Samples
	err := m.provider.breaker.Do(func() error {
		var err error
		out, err = m.generate(ctx, text, lang, speaker)
		return err
	})
	if err != nil {
		return engine.Samples{}, fmt.Errorf("qwen generate: %w", err)
	}
	return out, nil
}

func (m *Model) generate(ctx context.Context, text string, lang language.Language, speaker string) (engine.Samples, error) {
	body, err := restutil.JSONBody(generateRequest{
		Model:    m.name,
		Text:     text,
		Language: lang.ModelName(),
		Speaker:  speaker,
	})
	if err != nil {
		return engine.Samples{}, err
	}

	headers := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "audio/wav, application/octet-stream",
	}
	resp, err := m.provider.client.DoRaw(ctx, http.MethodPost, m.provider.baseURL+"/v1/generate", headers, body)
	if err != nil {
		return engine.Samples{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return engine.Samples{}, fmt.Errorf("read audio: %w", err)
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "audio/") {
		data, rate, err := audio.DecodeWAV(raw)
		if err != nil {
			return engine.Samples{}, err
		}
		return engine.Samples{Data: data, SampleRate: rate}, nil
	}

	rate := m.sampleRate
	if v := resp.Header.Get("X-Sample-Rate"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			rate = n
		}
	}
	return engine.Samples{Data: audio.Float32FromLE(raw), SampleRate: rate}, nil
}
