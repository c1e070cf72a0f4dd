package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/storyreader/storyreader/internal/vision/backends/mock"
	"github.com/storyreader/storyreader/pkg/language"
)

const pngBase64 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

func newService(v *mock.Vision) *Service {
	return New(v, Config{PrimaryModel: "small", FallbackModel: "large", MaxTokens: 500, Temperature: 0.1})
}

func TestExtractPrimarySucceeds(t *testing.T) {
	v := mock.New("Hello there")
	res, err := newService(v).Extract(t.Context(), pngBase64, language.Auto)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Text != "Hello there" {
		t.Errorf("text = %q", res.Text)
	}
	if res.DetectedLanguage != language.English {
		t.Errorf("detected = %q, want en", res.DetectedLanguage)
	}
	if res.Confidence != 0.95 {
		t.Errorf("confidence = %v, want 0.95", res.Confidence)
	}

	calls := v.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	if calls[0].Model != "small" || calls[0].MaxTokens != 500 || calls[0].Temperature != 0.1 {
		t.Errorf("request = %+v", calls[0])
	}
	if !strings.HasPrefix(calls[0].ImageURL, "data:image/png;base64,") {
		t.Errorf("image url = %q, want png data url", calls[0].ImageURL[:30])
	}
}

func TestExtractFallsBackOnceOnRefusal(t *testing.T) {
	v := &mock.Vision{ByModel: map[string]string{
		"small": "I'm sorry, I can't assist with that.",
		"large": "옛날 옛적에 호랑이가 살았어요.",
	}}
	res, err := newService(v).Extract(t.Context(), pngBase64, language.Auto)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.DetectedLanguage != language.Korean {
		t.Errorf("detected = %q, want ko", res.DetectedLanguage)
	}
	calls := v.Calls()
	if len(calls) != 2 || calls[0].Model != "small" || calls[1].Model != "large" {
		t.Fatalf("calls = %+v, want small then large", calls)
	}
}

func TestExtractContentPolicyAfterTwoRefusals(t *testing.T) {
	v := &mock.Vision{ByModel: map[string]string{
		"small": "",
		"large": "죄송하지만 이 이미지는 처리할 수 없습니다.",
	}}
	_, err := newService(v).Extract(t.Context(), pngBase64, language.Korean)
	if !errors.Is(err, ErrContentPolicy) {
		t.Fatalf("err = %v, want ErrContentPolicy", err)
	}
	if n := len(v.Calls()); n != 2 {
		t.Errorf("calls = %d, want exactly 2", n)
	}
}

func TestExtractConcreteHintWins(t *testing.T) {
	v := mock.New("Hello there")
	res, err := newService(v).Extract(t.Context(), pngBase64, language.Korean)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.DetectedLanguage != language.Korean {
		t.Errorf("detected = %q, want ko", res.DetectedLanguage)
	}
	if !strings.Contains(v.Calls()[0].Prompt, "텍스트는 한국어입니다.") {
		t.Error("prompt missing Korean clause")
	}
}

func TestExtractModelErrorIsNotRetried(t *testing.T) {
	v := &mock.Vision{Err: errors.New("connection reset")}
	_, err := newService(v).Extract(t.Context(), pngBase64, language.Auto)
	if err == nil || errors.Is(err, ErrContentPolicy) {
		t.Fatalf("err = %v, want plain model error", err)
	}
	if n := len(v.Calls()); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := New(mock.New(""), Config{MaxTokens: -3}).cfg
	if cfg.PrimaryModel != DefaultPrimaryModel || cfg.FallbackModel != DefaultFallbackModel {
		t.Errorf("models = %q/%q", cfg.PrimaryModel, cfg.FallbackModel)
	}
	if cfg.MaxTokens != DefaultMaxTokens {
		t.Errorf("max tokens = %d, want %d", cfg.MaxTokens, DefaultMaxTokens)
	}
}

func TestPhraseDetector(t *testing.T) {
	d := NewPhraseDetector()
	tests := []struct {
		text string
		want bool
	}{
		{"", true},
		{"  \n\t", true},
		{"I CANNOT PROCESS this image", true},
		{"Sorry, I can't help with that image.", true},
		{"도와드릴 수 없습니다", true},
		{"The cat sat on the mat.", false},
		{"토끼가 깡충깡충 뛰었어요.", false},
	}
	for _, tt := range tests {
		if got := d.IsRefusal(tt.text); got != tt.want {
			t.Errorf("IsRefusal(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestPhraseDetectorSetPhrases(t *testing.T) {
	d := NewPhraseDetector()
	d.SetPhrases([]string{"  Unable To Read ", ""})

	if got := *d.phrases.Load(); len(got) != 1 || got[0] != "unable to read" {
		t.Errorf("phrases = %q", got)
	}
	if !d.IsRefusal("I am unable to read this") {
		t.Error("custom phrase not detected")
	}
	if d.IsRefusal("I can't assist") {
		t.Error("replaced phrase still detected")
	}
}

func TestImageURL(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		prefix  string
	}{
		{"data url passthrough", "data:image/webp;base64,AAAA", "data:image/webp;base64,AAAA"},
		{"png sniffed", pngBase64, "data:image/png;base64,"},
		{"jpeg sniffed", "/9j/4AAQSkZJRgABAQAAAQABAAD", "data:image/jpeg;base64,"},
		{"garbage defaults to jpeg", "!!!not-base64!!!", "data:image/jpeg;base64,"},
		{"short payload", "AB", "data:image/jpeg;base64,"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ImageURL(tt.payload); !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("ImageURL = %q, want prefix %q", got, tt.prefix)
			}
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	tests := []struct {
		hint   language.Language
		clause string
	}{
		{language.Korean, "텍스트는 한국어입니다."},
		{language.English, "The text is in English."},
		{language.Auto, "텍스트는 한국어 또는 영어일 수 있습니다."},
	}
	for _, tt := range tests {
		p := BuildPrompt(tt.hint)
		if !strings.HasSuffix(p, tt.clause) {
			t.Errorf("BuildPrompt(%q) does not end with %q", tt.hint, tt.clause)
		}
		if !strings.Contains(p, "페이지 번호") {
			t.Errorf("BuildPrompt(%q) missing exclusion rule", tt.hint)
		}
	}
}
