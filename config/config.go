package config

import (
	"strconv"
	"strings"

	"github.com/pitabwire/frame/config"
)

// ReaderConfig holds configuration for the storyreader service.
type ReaderConfig struct {
	config.ConfigurationDefault

	// Vision
	OCRBackend       string  `envDefault:"openai"                    env:"OCR_BACKEND"`
	OCRModel         string  `envDefault:"gpt-4o-mini"               env:"OCR_MODEL"`
	OCRFallbackModel string  `envDefault:"gpt-4o"                    env:"OCR_FALLBACK_MODEL"`
	OCRMaxTokens     int     `envDefault:"1200"                      env:"OCR_MAX_TOKENS"`
	OCRTemperature   float64 `envDefault:"0.1"                       env:"OCR_TEMPERATURE"`
	MockOCRText      string  `envDefault:""                          env:"MOCK_OCR_TEXT"`
	OpenAIAPIKey     string  `envDefault:""                          env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string  `envDefault:"https://api.openai.com/v1" env:"OPENAI_BASE_URL"`

	// Speech
	TTSBackend        string `envDefault:"qwen"                               env:"TTS_BACKEND"`
	TTSModelSize      string `envDefault:"0.6B"                               env:"TTS_MODEL_SIZE"`
	TTSServerURL      string `envDefault:"http://localhost:8001"              env:"TTS_SERVER_URL"`
	TTSKoreanSpeaker  string `envDefault:""                                   env:"TTS_KO_SPEAKER"`
	TTSEnglishSpeaker string `envDefault:""                                   env:"TTS_EN_SPEAKER"`
	TTSForceLanguage  string `envDefault:""                                   env:"TTS_FORCE_LANGUAGE"`
	TTSMaxConcurrency int64  `envDefault:"0"                                  env:"TTS_MAX_CONCURRENCY"`
	OpenAITTSVoice    string `envDefault:"nova"                               env:"OPENAI_TTS_VOICE"`
	PiperBinaryPath   string `envDefault:"piper"                              env:"PIPER_BINARY_PATH"`
	PiperModelPath    string `envDefault:"./models/ko_KR-kss-medium.onnx"     env:"PIPER_MODEL_PATH"`
	PiperSampleRate   int    `envDefault:"22050"                              env:"PIPER_SAMPLE_RATE"`
	ElevenLabsAPIKey  string `envDefault:""                                   env:"ELEVENLABS_API_KEY"`
	ElevenLabsBaseURL string `envDefault:"https://api.elevenlabs.io/v1"       env:"ELEVENLABS_BASE_URL"`
	ElevenLabsVoiceID string `envDefault:"21m00Tcm4TlvDq8ikWAM"               env:"ELEVENLABS_VOICE_ID"`
	ElevenLabsModel   string `envDefault:"eleven_multilingual_v2"             env:"ELEVENLABS_MODEL"`

	// Service
	CatalogPath        string `envDefault:""            env:"CATALOG_PATH"`
	CORSAllowedOrigins string `envDefault:"*"           env:"CORS_ALLOWED_ORIGINS"`
	SentryDSN          string `envDefault:""            env:"SENTRY_DSN"`
	Environment        string `envDefault:"development" env:"ENVIRONMENT"`
}

// VisionSettings returns the factory settings for the vision backend.
func (c *ReaderConfig) VisionSettings() map[string]string {
	return map[string]string{
		"openai_api_key":  c.OpenAIAPIKey,
		"openai_base_url": c.OpenAIBaseURL,
		"mock_text":       c.MockOCRText,
	}
}

// SpeechSettings returns the factory settings for the speech backend.
func (c *ReaderConfig) SpeechSettings() map[string]string {
	return map[string]string{
		"tts_server_url":    c.TTSServerURL,
		"openai_api_key":    c.OpenAIAPIKey,
		"openai_base_url":   c.OpenAIBaseURL,
		"openai_tts_voice":  c.OpenAITTSVoice,
		"piper_binary_path": c.PiperBinaryPath,
		"piper_model_path":  c.PiperModelPath,
		"piper_sample_rate": strconv.Itoa(c.PiperSampleRate),

		"elevenlabs_api_key":  c.ElevenLabsAPIKey,
		"elevenlabs_base_url": c.ElevenLabsBaseURL,
		"elevenlabs_voice_id": c.ElevenLabsVoiceID,
		"elevenlabs_model":    c.ElevenLabsModel,
	}
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c *ReaderConfig) AllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
