package config

import (
	"slices"
	"testing"
)

func TestAllowedOrigins(t *testing.T) {
	c := ReaderConfig{CORSAllowedOrigins: " https://a.example , ,https://b.example"}
	got := c.AllowedOrigins()
	if !slices.Equal(got, []string{"https://a.example", "https://b.example"}) {
		t.Errorf("AllowedOrigins = %q", got)
	}
	if got := (&ReaderConfig{}).AllowedOrigins(); len(got) != 0 {
		t.Errorf("empty origins = %q", got)
	}
}

func TestSpeechSettings(t *testing.T) {
	c := ReaderConfig{TTSServerURL: "http://tts:8001", PiperSampleRate: 16000, OpenAIAPIKey: "sk"}
	s := c.SpeechSettings()
	if s["tts_server_url"] != "http://tts:8001" || s["piper_sample_rate"] != "16000" || s["openai_api_key"] != "sk" {
		t.Errorf("settings = %v", s)
	}
}

func TestVisionSettings(t *testing.T) {
	c := ReaderConfig{MockOCRText: "Hello", OpenAIBaseURL: "http://llm"}
	s := c.VisionSettings()
	if s["mock_text"] != "Hello" || s["openai_base_url"] != "http://llm" {
		t.Errorf("settings = %v", s)
	}
}
