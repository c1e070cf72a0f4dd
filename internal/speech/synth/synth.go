// Package synth turns text into WAV audio with whatever speech model is
// available, degrading to a quiet tone when none is.
package synth

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"maps"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/storyreader/storyreader/internal/metrics"
	"github.com/storyreader/storyreader/internal/speech/audio"
	"github.com/storyreader/storyreader/internal/speech/engine"
	"github.com/storyreader/storyreader/pkg/events"
	"github.com/storyreader/storyreader/pkg/language"
)

const (
	wordsPerMinute  = 150
	minMockDuration = 1.0
	maxMockDuration = 300.0
)

// Degradation reasons.
const (
	ReasonModelUnloaded  = "model_unloaded"
	ReasonGenerateFailed = "generate_failed"
	ReasonEmptyAudio     = "empty_audio"
	ReasonEncodeFailed   = "encode_failed"
)

// Config holds the process-wide synthesis settings. They are fixed once the
// service is built.
type Config struct {
	// SpeakerOverrides replace the style speaker for a resolved language.
	SpeakerOverrides map[language.Language]string
	// ForceLanguage, when concrete, overrides every other language signal.
	ForceLanguage language.Language
	// MaxConcurrency caps simultaneous model calls. Zero means unbounded.
	MaxConcurrency int64
}

// Request describes one synthesis.
type Request struct {
	Text     string
	Language language.Language
	Style    VoiceStyle
	Speed    float64
}

// Result is a rendered WAV file.
type Result struct {
	Audio           []byte
	DurationSeconds float64
	Language        language.Language
	Speaker         string
	Mock            bool
}

// AudioBase64 returns the WAV file in standard base64.
func (r *Result) AudioBase64() string {
	if len(r.Audio) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(r.Audio)
}

// Service synthesizes speech. It never fails the caller.
type Service struct {
	resource  *Resource
	styles    atomic.Pointer[map[VoiceStyle]string]
	overrides map[language.Language]string
	force     language.Language
	sem       *semaphore.Weighted

	metrics *metrics.Metrics
	events  *events.Publisher
}

// Option configures a Service.
type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithEvents(p *events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

// New creates a service over resource. The resource may still be unloaded.
func New(resource *Resource, cfg Config, opts ...Option) *Service {
	s := &Service{
		resource:  resource,
		overrides: make(map[language.Language]string),
	}
	for lang, speaker := range cfg.SpeakerOverrides {
		if speaker = strings.TrimSpace(speaker); speaker != "" {
			s.overrides[lang] = speaker
		}
	}
	if cfg.ForceLanguage.Concrete() {
		s.force = cfg.ForceLanguage
	}
	if cfg.MaxConcurrency > 0 {
		s.sem = semaphore.NewWeighted(cfg.MaxConcurrency)
	}
	s.SetStyleSpeakers(nil)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetStyleSpeakers replaces style speakers on top of DefaultStyleSpeakers.
// It is safe to call while requests are in flight.
func (s *Service) SetStyleSpeakers(speakers map[VoiceStyle]string) {
	merged := maps.Clone(DefaultStyleSpeakers)
	for style, speaker := range speakers {
		if speaker = strings.TrimSpace(speaker); speaker != "" {
			merged[style] = speaker
		}
	}
	s.styles.Store(&merged)
}

// LoadModel loads the speech model once. Failures are logged and leave the
// service degraded; a later call retries.
func (s *Service) LoadModel(ctx context.Context, sizeVariant string) {
	start := time.Now()
	performed, err := s.resource.Load(ctx, sizeVariant)
	if !performed {
		return
	}

	opts := s.resource.Options()
	data := events.ModelData{
		SizeVariant: opts.SizeVariant,
		Device:      string(opts.Device),
		Precision:   string(opts.Precision),
	}

	if err != nil {
		slog.WarnContext(ctx, "synth: model load failed, using mock audio",
			slog.String("size", sizeVariant),
			slog.String("device", string(opts.Device)),
			slog.String("error", err.Error()))
		data.Error = err.Error()
		s.metrics.SetModelLoaded(false)
		s.events.EmitAsync(ctx, events.ModelLoadFailed, "", data)
		return
	}

	slog.InfoContext(ctx, "synth: model loaded",
		slog.String("size", sizeVariant),
		slog.String("device", string(opts.Device)),
		slog.String("precision", string(opts.Precision)),
		slog.Duration("took", time.Since(start)))
	s.metrics.SetModelLoaded(true)
	s.events.EmitAsync(ctx, events.ModelLoaded, "", data)
}

func (s *Service) IsLoaded() bool { return s.resource.State() == Loaded }

func (s *Service) IsAcceleratorAvailable() bool { return s.resource.AcceleratorAvailable() }

func (s *Service) CircuitState() string { return s.resource.CircuitState() }

// ResolveLanguage applies the forced language, then infers Auto from the
// text and lets Hangul in the text override an English hint.
func (s *Service) ResolveLanguage(text string, hint language.Language) language.Language {
	if s.force != "" {
		return s.force
	}
	switch hint {
	case language.Korean:
		return language.Korean
	case language.English:
		if language.ContainsHangul(text) {
			return language.Korean
		}
		return language.English
	default:
		return language.Classify(text)
	}
}

// ResolveSpeaker picks the per-language override, else the style speaker.
func (s *Service) ResolveSpeaker(style VoiceStyle, lang language.Language) string {
	if speaker, ok := s.overrides[lang]; ok {
		return speaker
	}
	if speaker, ok := (*s.styles.Load())[style]; ok {
		return speaker
	}
	return DefaultSpeaker
}

// Synthesize renders req. Blank text yields an empty zero-length result.
// Any model problem is absorbed by falling back to mock audio.
func (s *Service) Synthesize(ctx context.Context, req Request) *Result {
	if strings.TrimSpace(req.Text) == "" {
		s.metrics.TTSRequest(metrics.ModeEmpty)
		return &Result{}
	}

	start := time.Now()
	defer s.metrics.ObserveStage("tts", start)

	speed := req.Speed
	if speed <= 0 {
		speed = 1.0
	}
	lang := s.ResolveLanguage(req.Text, req.Language)
	speaker := s.ResolveSpeaker(req.Style, lang)

	res := &Result{Language: lang, Speaker: speaker}

	samples, reason, err := s.generate(ctx, req.Text, lang, speaker, speed)
	if reason == "" {
		res.Audio, err = audio.EncodeWAV(samples.Data, samples.SampleRate)
		if err != nil {
			reason = ReasonEncodeFailed
		}
	}
	if reason != "" {
		s.degrade(ctx, reason, err)
		samples = mockSamples(req.Text, speed)
		// Mock samples always have a valid rate.
		res.Audio, _ = audio.EncodeWAV(samples.Data, samples.SampleRate)
		res.Mock = true
		s.metrics.TTSRequest(metrics.ModeMock)
	} else {
		s.metrics.TTSRequest(metrics.ModeModel)
	}
	res.DurationSeconds = samples.Duration()

	s.events.EmitAsync(ctx, events.TTSCompleted, events.RequestID(ctx), events.TTSData{
		TextLength:      len([]rune(req.Text)),
		Language:        string(lang),
		Speaker:         speaker,
		Speed:           speed,
		DurationSeconds: res.DurationSeconds,
		Mock:            res.Mock,
	})
	return res
}

// generate runs the model and applies speed. A non-empty reason means the
// caller must fall back to mock audio.
func (s *Service) generate(ctx context.Context, text string, lang language.Language, speaker string, speed float64) (engine.Samples, string, error) {
	model, ok := s.resource.Model()
	if !ok {
		return engine.Samples{}, ReasonModelUnloaded, s.resource.Err()
	}

	if s.sem != nil {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return engine.Samples{}, ReasonGenerateFailed, err
		}
		defer s.sem.Release(1)
	}

	slog.DebugContext(ctx, "synth: generate",
		slog.String("language", lang.ModelName()),
		slog.String("speaker", speaker),
		slog.String("text_sample", textSample(text, 24)))

	samples, err := model.Generate(ctx, text, lang, speaker)
	if err != nil {
		return engine.Samples{}, ReasonGenerateFailed, err
	}
	if len(samples.Data) == 0 || samples.SampleRate <= 0 {
		return engine.Samples{}, ReasonEmptyAudio, nil
	}

	if speed != 1.0 {
		samples.Data = adjustSpeed(ctx, samples, speed)
	}
	return samples, "", nil
}

func (s *Service) degrade(ctx context.Context, reason string, err error) {
	attrs := []any{slog.String("reason", reason)}
	data := events.TTSDegradedData{Reason: reason}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		data.Error = err.Error()
	}
	if reason == ReasonModelUnloaded {
		slog.DebugContext(ctx, "synth: no model, using mock audio", attrs...)
	} else {
		slog.WarnContext(ctx, "synth: falling back to mock audio", attrs...)
	}
	s.metrics.TTSDegraded(reason)
	s.events.EmitAsync(ctx, events.TTSDegraded, events.RequestID(ctx), data)
}

// adjustSpeed time-stretches samples, or resamples by index when the
// stretch cannot run.
func adjustSpeed(ctx context.Context, samples engine.Samples, speed float64) []float32 {
	out, err := audio.TimeStretch(samples.Data, samples.SampleRate, speed)
	if err == nil {
		return out
	}
	if !errors.Is(err, audio.ErrStretchUnavailable) {
		slog.WarnContext(ctx, "synth: time stretch failed", slog.String("error", err.Error()))
	}
	return audio.ResampleIndex(samples.Data, speed)
}

// EstimateDuration guesses spoken length from the word count at 150 words
// per minute, scaled by speed and clamped to [1, 300] seconds.
func EstimateDuration(text string, speed float64) float64 {
	if speed <= 0 {
		speed = 1.0
	}
	words := len(strings.Fields(text))
	d := float64(words) / wordsPerMinute * 60 / speed
	return min(max(d, minMockDuration), maxMockDuration)
}

func mockSamples(text string, speed float64) engine.Samples {
	return engine.Samples{
		Data:       audio.Tone(EstimateDuration(text, speed), audio.ToneSampleRate),
		SampleRate: audio.ToneSampleRate,
	}
}

func textSample(text string, n int) string {
	r := []rune(strings.ReplaceAll(text, "\n", " "))
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}
