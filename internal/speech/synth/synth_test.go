package synth

import (
	"context"
	"encoding/base64"
	"errors"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/storyreader/storyreader/internal/speech/audio"
	speechmock "github.com/storyreader/storyreader/internal/speech/backends/mock"
	"github.com/storyreader/storyreader/internal/speech/engine"
	"github.com/storyreader/storyreader/pkg/language"
)

func loadedService(t *testing.T, cfg Config) (*Service, *speechmock.Provider) {
	t.Helper()
	p := &speechmock.Provider{}
	s := New(NewResource(p, engine.StaticProbe{}), cfg)
	s.LoadModel(t.Context(), "0.6B")
	if !s.IsLoaded() {
		t.Fatal("model not loaded")
	}
	return s, p
}

func decode(t *testing.T, res *Result) ([]float32, int) {
	t.Helper()
	samples, rate, err := audio.DecodeWAV(res.Audio)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	return samples, rate
}

func TestSynthesizeEmptyText(t *testing.T) {
	s, p := loadedService(t, Config{})
	for _, text := range []string{"", "   \n\t"} {
		res := s.Synthesize(t.Context(), Request{Text: text, Language: language.Auto, Style: Warm, Speed: 1})
		if len(res.Audio) != 0 || res.DurationSeconds != 0 || res.AudioBase64() != "" {
			t.Errorf("Synthesize(%q) = %+v, want empty result", text, res)
		}
	}
	if n := len(p.Calls()); n != 0 {
		t.Errorf("model called %d times for blank text", n)
	}
}

func TestSynthesizeUsesModel(t *testing.T) {
	s, p := loadedService(t, Config{})
	res := s.Synthesize(t.Context(), Request{Text: "The little fox ran home.", Language: language.English, Style: Playful, Speed: 1})

	if res.Mock {
		t.Fatal("expected model audio")
	}
	calls := p.Calls()
	if len(calls) != 1 || calls[0].Language != language.English || calls[0].Speaker != "ryan" {
		t.Fatalf("calls = %+v", calls)
	}

	samples, rate := decode(t, res)
	if rate != speechmock.SampleRate {
		t.Errorf("rate = %d", rate)
	}
	if want := float64(len(samples)) / float64(rate); math.Abs(res.DurationSeconds-want) > 1e-9 {
		t.Errorf("duration = %v, want %v", res.DurationSeconds, want)
	}
	if _, err := base64.StdEncoding.DecodeString(res.AudioBase64()); err != nil {
		t.Errorf("AudioBase64 not decodable: %v", err)
	}
}

func TestEnglishHintWithHangulFlipsToKorean(t *testing.T) {
	s, p := loadedService(t, Config{})
	res := s.Synthesize(t.Context(), Request{Text: "안녕", Language: language.English, Style: Warm, Speed: 1})
	if res.Language != language.Korean {
		t.Errorf("language = %q, want ko", res.Language)
	}
	if calls := p.Calls(); calls[0].Language != language.Korean {
		t.Errorf("model language = %q, want ko", calls[0].Language)
	}
}

func TestForcedEnglishWins(t *testing.T) {
	s, p := loadedService(t, Config{
		ForceLanguage:    language.English,
		SpeakerOverrides: map[language.Language]string{language.English: "aiden", language.Korean: "sohee"},
	})
	res := s.Synthesize(t.Context(), Request{Text: "옛날 옛적에 호랑이가 살았어요", Language: language.Korean, Style: Calm, Speed: 1})
	if res.Language != language.English {
		t.Errorf("language = %q, want en", res.Language)
	}
	if res.Speaker != "aiden" {
		t.Errorf("speaker = %q, want English override", res.Speaker)
	}
	if calls := p.Calls(); calls[0].Language != language.English || calls[0].Speaker != "aiden" {
		t.Errorf("call = %+v", calls[0])
	}
}

func TestResolveLanguage(t *testing.T) {
	s := New(NewResource(nil, engine.StaticProbe{}), Config{})
	tests := []struct {
		text string
		hint language.Language
		want language.Language
	}{
		{"Hello world", language.Auto, language.English},
		{"안녕하세요 world", language.Auto, language.Korean},
		{"Hello 안 world", language.English, language.Korean},
		{"Hi", language.Korean, language.Korean},
		{"Hi", language.English, language.English},
	}
	for _, tt := range tests {
		if got := s.ResolveLanguage(tt.text, tt.hint); got != tt.want {
			t.Errorf("ResolveLanguage(%q, %q) = %q, want %q", tt.text, tt.hint, got, tt.want)
		}
	}
}

func TestResolveSpeaker(t *testing.T) {
	s := New(NewResource(nil, engine.StaticProbe{}), Config{
		SpeakerOverrides: map[language.Language]string{language.Korean: "  ", language.English: "serena"},
	})
	if got := s.ResolveSpeaker(Expressive, language.Korean); got != "vivian" {
		t.Errorf("blank override should be ignored, got %q", got)
	}
	if got := s.ResolveSpeaker(Warm, language.English); got != "serena" {
		t.Errorf("English override = %q, want serena", got)
	}
	if got := s.ResolveSpeaker("unknown", language.Korean); got != DefaultSpeaker {
		t.Errorf("unknown style = %q, want %q", got, DefaultSpeaker)
	}

	s.SetStyleSpeakers(map[VoiceStyle]string{Calm: "uncle_fu"})
	if got := s.ResolveSpeaker(Calm, language.Korean); got != "uncle_fu" {
		t.Errorf("catalog speaker = %q, want uncle_fu", got)
	}
	if got := s.ResolveSpeaker(Playful, language.Korean); got != "ryan" {
		t.Errorf("default speaker lost after replace: %q", got)
	}
}

func TestSpeedHalvesDurationWithModel(t *testing.T) {
	s, _ := loadedService(t, Config{})
	text := strings.Repeat("story ", 10)

	normal := s.Synthesize(t.Context(), Request{Text: text, Language: language.English, Style: Warm, Speed: 1})
	fast := s.Synthesize(t.Context(), Request{Text: text, Language: language.English, Style: Warm, Speed: 2})
	slow := s.Synthesize(t.Context(), Request{Text: text, Language: language.English, Style: Warm, Speed: 0.5})

	if ratio := fast.DurationSeconds / normal.DurationSeconds; math.Abs(ratio-0.5) > 0.01 {
		t.Errorf("speed 2 ratio = %v, want 0.5", ratio)
	}
	if ratio := slow.DurationSeconds / normal.DurationSeconds; math.Abs(ratio-2) > 0.01 {
		t.Errorf("speed 0.5 ratio = %v, want 2", ratio)
	}
}

func TestSpeedOnShortModelAudioUsesIndexResampling(t *testing.T) {
	s, _ := loadedService(t, Config{})
	// One rune yields 1200 samples, shorter than two analysis frames.
	normal := s.Synthesize(t.Context(), Request{Text: "a", Language: language.English, Style: Warm, Speed: 1})
	fast := s.Synthesize(t.Context(), Request{Text: "a", Language: language.English, Style: Warm, Speed: 2})
	if fast.Mock || normal.Mock {
		t.Fatal("expected model audio")
	}
	if ratio := fast.DurationSeconds / normal.DurationSeconds; math.Abs(ratio-0.5) > 0.01 {
		t.Errorf("ratio = %v, want 0.5", ratio)
	}
}

func TestMockWhenUnloaded(t *testing.T) {
	s := New(NewResource(nil, engine.StaticProbe{}), Config{})
	text := strings.TrimSpace(strings.Repeat("word ", 300))

	normal := s.Synthesize(t.Context(), Request{Text: text, Language: language.Auto, Style: Warm, Speed: 1})
	fast := s.Synthesize(t.Context(), Request{Text: text, Language: language.Auto, Style: Warm, Speed: 2})

	if !normal.Mock || !fast.Mock {
		t.Fatal("expected mock audio")
	}
	if math.Abs(normal.DurationSeconds-120) > 1e-6 {
		t.Errorf("duration = %v, want 120", normal.DurationSeconds)
	}
	if math.Abs(fast.DurationSeconds-60) > 1e-6 {
		t.Errorf("duration at 2x = %v, want 60", fast.DurationSeconds)
	}
	_, rate := decode(t, normal)
	if rate != 24000 {
		t.Errorf("mock rate = %d, want 24000", rate)
	}
}

func TestMockWhenGenerateFails(t *testing.T) {
	s, p := loadedService(t, Config{})
	p.GenerateErr = errors.New("cuda out of memory")

	res := s.Synthesize(t.Context(), Request{Text: "one two", Language: language.English, Style: Warm, Speed: 1})
	if !res.Mock {
		t.Fatal("expected mock fallback")
	}
	if res.DurationSeconds != 1.0 {
		t.Errorf("duration = %v, want clamped 1.0", res.DurationSeconds)
	}
	if len(res.Audio) == 0 {
		t.Error("mock audio missing")
	}
}

func TestEstimateDuration(t *testing.T) {
	words := func(n int) string { return strings.TrimSpace(strings.Repeat("w ", n)) }
	tests := []struct {
		text  string
		speed float64
		want  float64
	}{
		{words(150), 1.0, 60},
		{words(150), 2.0, 30},
		{words(1), 1.0, 1},
		{words(1000), 0.5, 300},
		{words(150), 0, 60},
	}
	for _, tt := range tests {
		if got := EstimateDuration(tt.text, tt.speed); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("EstimateDuration(%d words, %v) = %v, want %v", len(strings.Fields(tt.text)), tt.speed, got, tt.want)
		}
	}
}

func TestLoadModelIdempotent(t *testing.T) {
	p := &speechmock.Provider{}
	s := New(NewResource(p, engine.StaticProbe{Dedicated: true}), Config{})

	s.LoadModel(t.Context(), "1.7B")
	s.LoadModel(t.Context(), "1.7B")
	s.LoadModel(t.Context(), "0.6B")

	if p.Loads() != 1 {
		t.Errorf("loads = %d, want 1", p.Loads())
	}
	opts := p.LastOptions()
	if opts.SizeVariant != "1.7B" || opts.Device != engine.DeviceCUDA || opts.Precision != engine.PrecisionBFloat16 {
		t.Errorf("options = %+v", opts)
	}
	if !s.IsAcceleratorAvailable() {
		t.Error("accelerator should be reported")
	}
}

func TestLoadFailureDegradesAndRetries(t *testing.T) {
	p := &speechmock.Provider{LoadErr: errors.New("weights not found")}
	r := NewResource(p, engine.StaticProbe{})
	s := New(r, Config{})

	s.LoadModel(t.Context(), "0.6B")
	if s.IsLoaded() || r.State() != Degraded {
		t.Fatalf("state = %s, want degraded", r.State())
	}
	if r.Err() == nil {
		t.Error("load error not kept")
	}
	if res := s.Synthesize(t.Context(), Request{Text: "hello", Language: language.English, Speed: 1}); !res.Mock {
		t.Error("degraded service should produce mock audio")
	}

	p.LoadErr = nil
	s.LoadModel(t.Context(), "0.6B")
	if !s.IsLoaded() {
		t.Fatalf("state = %s after retry, want loaded", r.State())
	}
	if s.IsAcceleratorAvailable() {
		t.Error("no accelerator expected")
	}
}

type gateModel struct {
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (g *gateModel) Generate(context.Context, string, language.Language, string) (engine.Samples, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	return engine.Samples{Data: make([]float32, 240), SampleRate: 24000}, nil
}

func TestMaxConcurrency(t *testing.T) {
	g := &gateModel{}
	provider := engine.ProviderFunc(func(context.Context, engine.LoadOptions) (engine.Model, error) { return g, nil })
	s := New(NewResource(provider, engine.StaticProbe{}), Config{MaxConcurrency: 1})
	s.LoadModel(t.Context(), "0.6B")

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Synthesize(t.Context(), Request{Text: "hi", Language: language.English, Speed: 1})
		}()
	}
	wg.Wait()

	if p := g.peak.Load(); p != 1 {
		t.Errorf("peak concurrency = %d, want 1", p)
	}
}

func TestParseVoiceStyle(t *testing.T) {
	if v, err := ParseVoiceStyle(""); err != nil || v != Warm {
		t.Errorf("empty = %q, %v", v, err)
	}
	if v, err := ParseVoiceStyle("Expressive"); err != nil || v != Expressive {
		t.Errorf("Expressive = %q, %v", v, err)
	}
	if _, err := ParseVoiceStyle("grumpy"); err == nil {
		t.Error("expected error for unknown style")
	}
}

func TestParseForcedLanguage(t *testing.T) {
	tests := map[string]language.Language{
		"en": language.English, " English ": language.English,
		"ko": language.Korean, "KOREAN": language.Korean,
		"": "", "fr": "", "auto": "",
	}
	for in, want := range tests {
		if got := ParseForcedLanguage(in); got != want {
			t.Errorf("ParseForcedLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}

type breakerProvider struct {
	speechmock.Provider
	state string
}

func (p *breakerProvider) CircuitState() string { return p.state }

func TestCircuitState(t *testing.T) {
	plain := New(NewResource(&speechmock.Provider{}, engine.StaticProbe{}), Config{})
	if got := plain.CircuitState(); got != "" {
		t.Errorf("provider without breaker: circuit = %q, want empty", got)
	}

	guarded := New(NewResource(&breakerProvider{state: "half_open"}, engine.StaticProbe{}), Config{})
	if got := guarded.CircuitState(); got != "half_open" {
		t.Errorf("circuit = %q, want half_open", got)
	}
}
