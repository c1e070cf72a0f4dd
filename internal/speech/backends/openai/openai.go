package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/storyreader/storyreader/internal/registry"
	"github.com/storyreader/storyreader/internal/restutil"
	"github.com/storyreader/storyreader/internal/speech/audio"
	"github.com/storyreader/storyreader/internal/speech/engine"
	"github.com/storyreader/storyreader/pkg/language"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "tts-1"
	defaultVoice   = "nova"

	// The pcm response format is 24kHz 16-bit mono.
	pcmSampleRate = 24000
	maxAudioBytes = 64 << 20
)

var voices = map[string]bool{
	"alloy": true, "ash": true, "coral": true, "echo": true, "fable": true,
	"nova": true, "onyx": true, "sage": true, "shimmer": true,
}

func init() {
	registry.Speech.Register("openai", func(settings map[string]string) (engine.Provider, error) {
		apiKey := settings["openai_api_key"]
		if apiKey == "" {
			return nil, fmt.Errorf("openai API key required (set OPENAI_API_KEY)")
		}
		baseURL := settings["openai_base_url"]
		if baseURL == "" {
			baseURL = defaultBaseURL
		}
		voice := settings["openai_tts_voice"]
		if voice == "" {
			voice = defaultVoice
		}
		return &Provider{
			apiKey:       apiKey,
			baseURL:      strings.TrimRight(baseURL, "/"),
			defaultVoice: voice,
			client:       restutil.New(2 * time.Minute),
		}, nil
	})
}

// Provider uses the OpenAI-compatible speech API. There is nothing to load
// locally; the size variant picks tts-1 or tts-1-hd.
type Provider struct {
	apiKey       string
	baseURL      string
	defaultVoice string
	client       *restutil.Client
}

// NewProvider creates a provider against baseURL.
func NewProvider(apiKey, baseURL, voice string, client *restutil.Client) *Provider {
	return &Provider{apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/"), defaultVoice: voice, client: client}
}

func (p *Provider) Load(_ context.Context, opts engine.LoadOptions) (engine.Model, error) {
	model := defaultModel
	if opts.SizeVariant == "1.7B" {
		model = "tts-1-hd"
	}
	return &TTS{provider: p, model: model}, nil
}

// TTS implements engine.Model.
type TTS struct {
	provider *Provider
	model    string
}

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Generate renders text. Speakers the API does not know are replaced with
// the configured default voice; the API infers language from the text.
func (o *TTS) Generate(ctx context.Context, text string, _ language.Language, speaker string) (engine.Samples, error) {
	voice := speaker
	if !voices[voice] {
		voice = o.provider.defaultVoice
	}

	body, err := restutil.JSONBody(speechRequest{
		Model:          o.model,
		Input:          text,
		Voice:          voice,
		ResponseFormat: "pcm",
	})
	if err != nil {
		return engine.Samples{}, fmt.Errorf("openai TTS: %w", err)
	}

	headers := map[string]string{
		"Authorization": "Bearer " + o.provider.apiKey,
		"Content-Type":  "application/json",
	}

	resp, err := o.provider.client.DoRaw(ctx, http.MethodPost, o.provider.baseURL+"/audio/speech", headers, body)
	if err != nil {
		return engine.Samples{}, fmt.Errorf("openai TTS: %w", err)
	}
	defer resp.Body.Close()

	pcm, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return engine.Samples{}, fmt.Errorf("openai TTS read: %w", err)
	}

	return engine.Samples{Data: audio.PCM16ToFloat32(pcm), SampleRate: pcmSampleRate}, nil
}
