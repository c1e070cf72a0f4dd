// Package extract transcribes storybook pages with a vision model.
//
// A page is sent to the primary model first. If the reply is blank or reads
// like a refusal, the page is sent once more to the fallback model; a second
// refusal ends the attempt with ErrContentPolicy.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/storyreader/storyreader/internal/metrics"
	"github.com/storyreader/storyreader/internal/vision/engine"
	"github.com/storyreader/storyreader/pkg/events"
	"github.com/storyreader/storyreader/pkg/language"
)

// ErrContentPolicy is returned when neither model produced usable text.
var ErrContentPolicy = errors.New("vision model refused to transcribe the image")

// ContentPolicyMessage is shown to users when ErrContentPolicy occurs.
const ContentPolicyMessage = "이미지에서 텍스트를 추출할 수 없습니다. 밝은 환경에서 다시 촬영해 주세요."

const (
	DefaultPrimaryModel  = "gpt-4o-mini"
	DefaultFallbackModel = "gpt-4o"
	DefaultMaxTokens     = 1200
	DefaultTemperature   = 0.1

	detectedConfidence = 0.95
)

// Config selects the models and sampling parameters.
type Config struct {
	PrimaryModel  string
	FallbackModel string
	MaxTokens     int
	Temperature   float64
}

func (c Config) withDefaults() Config {
	if c.PrimaryModel == "" {
		c.PrimaryModel = DefaultPrimaryModel
	}
	if c.FallbackModel == "" {
		c.FallbackModel = DefaultFallbackModel
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Temperature < 0 {
		c.Temperature = DefaultTemperature
	}
	return c
}

// Result is the outcome of a successful extraction.
type Result struct {
	Text             string
	DetectedLanguage language.Language
	Confidence       float64
}

// Service runs extractions against a vision model.
type Service struct {
	model   engine.Model
	cfg     Config
	refusal RefusalDetector
	metrics *metrics.Metrics
	events  *events.Publisher
}

// Option configures a Service.
type Option func(*Service)

// WithRefusalDetector replaces the default phrase detector.
func WithRefusalDetector(d RefusalDetector) Option {
	return func(s *Service) { s.refusal = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithEvents(p *events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

// New creates an extraction service over model.
func New(model engine.Model, cfg Config, opts ...Option) *Service {
	s := &Service{
		model:   model,
		cfg:     cfg.withDefaults(),
		refusal: NewPhraseDetector(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Extract transcribes the page in image. hint narrows the prompt and, when
// concrete, is reported as the detected language; Auto is resolved from the
// transcribed text.
func (s *Service) Extract(ctx context.Context, image string, hint language.Language) (*Result, error) {
	start := time.Now()
	defer s.metrics.ObserveStage("ocr", start)

	req := engine.Request{
		Model:       s.cfg.PrimaryModel,
		Prompt:      BuildPrompt(hint),
		ImageURL:    ImageURL(image),
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	}

	attempts := 1
	text, refused, err := s.attempt(ctx, req)
	if err != nil {
		return nil, err
	}

	if refused {
		slog.WarnContext(ctx, "extract: primary model refused, retrying with fallback",
			slog.String("primary", s.cfg.PrimaryModel),
			slog.String("fallback", s.cfg.FallbackModel))
		s.metrics.OCRFallback()
		s.events.EmitAsync(ctx, events.OCRFallback, events.RequestID(ctx), events.OCRFallbackData{
			PrimaryModel:  s.cfg.PrimaryModel,
			FallbackModel: s.cfg.FallbackModel,
			Reason:        "refusal",
		})

		req.Model = s.cfg.FallbackModel
		attempts++
		text, refused, err = s.attempt(ctx, req)
		if err != nil {
			return nil, err
		}
		if refused {
			s.metrics.OCRFailure("content_policy")
			s.events.EmitAsync(ctx, events.OCRFailed, events.RequestID(ctx), events.OCRData{
				Model:    req.Model,
				Attempts: attempts,
			})
			return nil, ErrContentPolicy
		}
	}

	detected := hint
	if !hint.Concrete() {
		detected = language.Classify(text)
	}

	res := &Result{
		Text:             text,
		DetectedLanguage: detected,
	}
	if text != "" {
		res.Confidence = detectedConfidence
	}

	s.events.EmitAsync(ctx, events.OCRCompleted, events.RequestID(ctx), events.OCRData{
		Model:            req.Model,
		Attempts:         attempts,
		TextLength:       len([]rune(text)),
		DetectedLanguage: string(detected),
		Confidence:       res.Confidence,
	})
	return res, nil
}

func (s *Service) attempt(ctx context.Context, req engine.Request) (string, bool, error) {
	text, err := s.model.Complete(ctx, req)
	if err != nil {
		s.metrics.OCRAttempt(req.Model, metrics.OutcomeError)
		s.metrics.OCRFailure("error")
		return "", false, fmt.Errorf("extract with %s: %w", req.Model, err)
	}
	text = strings.TrimSpace(text)
	if s.refusal.IsRefusal(text) {
		s.metrics.OCRAttempt(req.Model, metrics.OutcomeRefusal)
		return "", true, nil
	}
	s.metrics.OCRAttempt(req.Model, metrics.OutcomeText)
	return text, false, nil
}
