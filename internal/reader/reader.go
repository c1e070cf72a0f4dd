// Package reader chains page transcription and speech synthesis.
package reader

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/storyreader/storyreader/internal/dispatch"
	"github.com/storyreader/storyreader/internal/metrics"
	"github.com/storyreader/storyreader/internal/speech/synth"
	"github.com/storyreader/storyreader/internal/vision/extract"
	"github.com/storyreader/storyreader/pkg/events"
	"github.com/storyreader/storyreader/pkg/language"
)

// ErrNoTextFound is returned when a page transcribed to nothing.
var ErrNoTextFound = errors.New("no text found in the image")

// IsClientError reports whether err describes a problem with the submitted
// page rather than with the service.
func IsClientError(err error) bool {
	return errors.Is(err, extract.ErrContentPolicy) || errors.Is(err, ErrNoTextFound)
}

// Extractor transcribes page images.
type Extractor interface {
	Extract(ctx context.Context, image string, hint language.Language) (*extract.Result, error)
}

// Synthesizer renders speech. It does not fail.
type Synthesizer interface {
	Synthesize(ctx context.Context, req synth.Request) *synth.Result
}

// Request is one page to read aloud.
type Request struct {
	Image    string
	Language language.Language
	Style    synth.VoiceStyle
	Speed    float64
}

// Result is the transcription together with its audio.
type Result struct {
	Text             string
	Audio            []byte
	DetectedLanguage language.Language
	DurationSeconds  float64
}

// AudioBase64 returns the WAV file in standard base64.
func (r *Result) AudioBase64() string {
	if len(r.Audio) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(r.Audio)
}

// Reader runs both stages off the request goroutine.
type Reader struct {
	extractor  Extractor
	synth      Synthesizer
	dispatcher *dispatch.Dispatcher
	metrics    *metrics.Metrics
	events     *events.Publisher
}

// Option configures a Reader.
type Option func(*Reader)

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reader) { r.metrics = m }
}

func WithEvents(p *events.Publisher) Option {
	return func(r *Reader) { r.events = p }
}

// New creates a Reader. d may be nil.
func New(extractor Extractor, synthesizer Synthesizer, d *dispatch.Dispatcher, opts ...Option) *Reader {
	r := &Reader{
		extractor:  extractor,
		synth:      synthesizer,
		dispatcher: d,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Extract transcribes image on the worker pool.
func (r *Reader) Extract(ctx context.Context, image string, hint language.Language) (*extract.Result, error) {
	return dispatch.Do(ctx, r.dispatcher, func(ctx context.Context) (*extract.Result, error) {
		return r.extractor.Extract(ctx, image, hint)
	})
}

// Synthesize renders req on the worker pool. The only possible error is
// the caller's context ending first.
func (r *Reader) Synthesize(ctx context.Context, req synth.Request) (*synth.Result, error) {
	return dispatch.Do(ctx, r.dispatcher, func(ctx context.Context) (*synth.Result, error) {
		return r.synth.Synthesize(ctx, req), nil
	})
}

// Read transcribes the page and voices it in the detected language.
func (r *Reader) Read(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	defer r.metrics.ObserveStage("read", start)

	page, err := r.Extract(ctx, req.Image, req.Language)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "reader: page extracted",
		slog.String("detected_language", string(page.DetectedLanguage)),
		slog.Int("text_len", len([]rune(page.Text))))

	if strings.TrimSpace(page.Text) == "" {
		return nil, ErrNoTextFound
	}

	speech, err := r.Synthesize(ctx, synth.Request{
		Text:     page.Text,
		Language: page.DetectedLanguage,
		Style:    req.Style,
		Speed:    req.Speed,
	})
	if err != nil {
		return nil, err
	}

	res := &Result{
		Text:             page.Text,
		Audio:            speech.Audio,
		DetectedLanguage: page.DetectedLanguage,
		DurationSeconds:  speech.DurationSeconds,
	}

	r.events.EmitAsync(ctx, events.ReadCompleted, events.RequestID(ctx), events.ReadData{
		TextLength:       len([]rune(res.Text)),
		RequestLanguage:  string(req.Language),
		DetectedLanguage: string(res.DetectedLanguage),
		DurationSeconds:  res.DurationSeconds,
	})
	return res, nil
}
