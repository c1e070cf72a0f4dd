package elevenlabs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/storyreader/storyreader/internal/registry"
	"github.com/storyreader/storyreader/internal/restutil"
	"github.com/storyreader/storyreader/internal/speech/audio"
	"github.com/storyreader/storyreader/internal/speech/engine"
	"github.com/storyreader/storyreader/pkg/language"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io/v1"
	defaultModel   = "eleven_multilingual_v2"
	defaultVoiceID = "21m00Tcm4TlvDq8ikWAM" // Rachel

	sampleRate    = 24000
	outputFormat  = "pcm_24000"
	maxAudioBytes = 64 << 20
	voiceIDLength = 20
)

func init() {
	registry.Speech.Register("elevenlabs", func(settings map[string]string) (engine.Provider, error) {
		apiKey := settings["elevenlabs_api_key"]
		if apiKey == "" {
			return nil, fmt.Errorf("elevenlabs API key required (set ELEVENLABS_API_KEY)")
		}
		p := NewProvider(apiKey, settings["elevenlabs_base_url"], restutil.New(2*time.Minute))
		if v := settings["elevenlabs_voice_id"]; v != "" {
			p.voiceID = v
		}
		if m := settings["elevenlabs_model"]; m != "" {
			p.model = m
		}
		return p, nil
	})
}

// Provider uses the ElevenLabs text-to-speech API. The multilingual model
// reads Korean and English without a language hint.
type Provider struct {
	apiKey  string
	baseURL string
	model   string
	voiceID string
	client  *restutil.Client
}

// NewProvider creates a provider against baseURL, or the public API when
// baseURL is empty.
func NewProvider(apiKey, baseURL string, client *restutil.Client) *Provider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Provider{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   defaultModel,
		voiceID: defaultVoiceID,
		client:  client,
	}
}

// Load has nothing to fetch; the size variant does not apply to a hosted model.
func (p *Provider) Load(_ context.Context, _ engine.LoadOptions) (engine.Model, error) {
	return &TTS{provider: p}, nil
}

// TTS implements engine.Model.
type TTS struct {
	provider *Provider
}

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Generate renders text. Speaker names that are not ElevenLabs voice ids
// fall back to the configured voice.
func (e *TTS) Generate(ctx context.Context, text string, _ language.Language, speaker string) (engine.Samples, error) {
	voice := e.provider.voiceID
	if isVoiceID(speaker) {
		voice = speaker
	}

	body, err := restutil.JSONBody(ttsRequest{
		Text:    text,
		ModelID: e.provider.model,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	})
	if err != nil {
		return engine.Samples{}, fmt.Errorf("elevenlabs TTS: %w", err)
	}

	endpoint := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s",
		e.provider.baseURL, url.PathEscape(voice), outputFormat)
	headers := map[string]string{
		"xi-api-key":   e.provider.apiKey,
		"Content-Type": "application/json",
	}

	resp, err := e.provider.client.DoRaw(ctx, http.MethodPost, endpoint, headers, body)
	if err != nil {
		return engine.Samples{}, fmt.Errorf("elevenlabs TTS: %w", err)
	}
	defer resp.Body.Close()

	pcm, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return engine.Samples{}, fmt.Errorf("elevenlabs TTS read: %w", err)
	}
	return engine.Samples{Data: audio.PCM16ToFloat32(pcm), SampleRate: sampleRate}, nil
}

func isVoiceID(s string) bool {
	if len(s) != voiceIDLength {
		return false
	}
	for _, r := range s {
		if !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9') {
			return false
		}
	}
	return true
}
