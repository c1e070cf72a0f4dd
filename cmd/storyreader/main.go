package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/pitabwire/frame"
	"github.com/pitabwire/frame/config"
	"github.com/pitabwire/frame/workerpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	srconfig "github.com/storyreader/storyreader/config"
	"github.com/storyreader/storyreader/internal/dispatch"
	"github.com/storyreader/storyreader/internal/httpapi"
	"github.com/storyreader/storyreader/internal/metrics"
	"github.com/storyreader/storyreader/internal/reader"
	"github.com/storyreader/storyreader/internal/registry"
	"github.com/storyreader/storyreader/internal/speech/engine"
	"github.com/storyreader/storyreader/internal/speech/synth"
	"github.com/storyreader/storyreader/internal/vision/extract"
	"github.com/storyreader/storyreader/pkg/catalog"
	"github.com/storyreader/storyreader/pkg/events"
	"github.com/storyreader/storyreader/pkg/language"

	// Register vision and speech backends via init().
	_ "github.com/storyreader/storyreader/internal/speech/backends/elevenlabs"
	_ "github.com/storyreader/storyreader/internal/speech/backends/mock"
	_ "github.com/storyreader/storyreader/internal/speech/backends/openai"
	_ "github.com/storyreader/storyreader/internal/speech/backends/piper"
	_ "github.com/storyreader/storyreader/internal/speech/backends/qwen"
	_ "github.com/storyreader/storyreader/internal/vision/backends/mock"
	_ "github.com/storyreader/storyreader/internal/vision/backends/openai"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadWithOIDC[srconfig.ReaderConfig](ctx)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.Environment,
		}); err != nil {
			log.Printf("warning: sentry init: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	eventRef := cfg.GetEventsQueueName()
	eventURL := cfg.GetEventsQueueURL()

	ctx, srv := frame.NewService(
		frame.WithConfig(&cfg),
		frame.WithName("storyreader"),
		frame.WithRegisterPublisher(eventRef, eventURL),
		frame.WithWorkerPoolOptions(
			workerpool.WithPoolCount(cfg.WorkerPoolCount),
			workerpool.WithSinglePoolCapacity(cfg.WorkerPoolCapacity),
		),
	)
	defer srv.Stop(ctx)

	pool, err := srv.WorkManager().GetPool()
	if err != nil {
		log.Fatalf("getting worker pool: %v", err)
	}

	pub := events.NewPublisher(srv.QueueManager(), "storyreader", eventRef,
		events.WithMetadata(map[string]string{
			"ocr_backend": cfg.OCRBackend,
			"tts_backend": cfg.TTSBackend,
			"version":     httpapi.Version,
		}),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// --- Vision ---
	visionModel, err := registry.Vision.Create(cfg.OCRBackend, cfg.VisionSettings())
	if err != nil {
		log.Fatalf("creating vision backend %q: %v", cfg.OCRBackend, err)
	}
	detector := extract.NewPhraseDetector(extract.DefaultRefusalPhrases...)
	extractor := extract.New(visionModel, extract.Config{
		PrimaryModel:  cfg.OCRModel,
		FallbackModel: cfg.OCRFallbackModel,
		MaxTokens:     cfg.OCRMaxTokens,
		Temperature:   cfg.OCRTemperature,
	}, extract.WithRefusalDetector(detector), extract.WithMetrics(m), extract.WithEvents(pub))

	// --- Speech ---
	provider, err := registry.Speech.Create(cfg.TTSBackend, cfg.SpeechSettings())
	if err != nil {
		log.Fatalf("creating speech backend %q: %v", cfg.TTSBackend, err)
	}
	speech := synth.New(synth.NewResource(provider, engine.SystemProbe{}), synth.Config{
		SpeakerOverrides: map[language.Language]string{
			language.Korean:  cfg.TTSKoreanSpeaker,
			language.English: cfg.TTSEnglishSpeaker,
		},
		ForceLanguage:  synth.ParseForcedLanguage(cfg.TTSForceLanguage),
		MaxConcurrency: cfg.TTSMaxConcurrency,
	}, synth.WithMetrics(m), synth.WithEvents(pub))

	// --- Catalog ---
	if cfg.CatalogPath != "" {
		loader := catalog.NewLoader(cfg.CatalogPath, func(c *catalog.Catalog) {
			applyCatalog(ctx, c, speech, detector)
			pub.EmitAsync(ctx, events.CatalogReloaded, "", events.CatalogData{
				Path:           cfg.CatalogPath,
				Voices:         len(c.Voices),
				RefusalPhrases: len(c.RefusalPhrases),
			})
		})
		if _, err := loader.Load(); err != nil {
			log.Printf("warning: loading catalog: %v", err)
		}
		go func() {
			if err := loader.WatchAndReload(ctx.Done()); err != nil {
				slog.ErrorContext(ctx, "catalog watcher stopped", slog.String("error", err.Error()))
			}
		}()
	}

	// The model loads in the background; requests get mock audio until it is ready.
	if err := pool.Submit(ctx, func() {
		speech.LoadModel(ctx, cfg.TTSModelSize)
	}); err != nil {
		log.Printf("warning: scheduling model load: %v", err)
	}

	// --- HTTP ---
	rdr := reader.New(extractor, speech, dispatch.New(pool), reader.WithMetrics(m), reader.WithEvents(pub))
	handler := httpapi.NewHandler(rdr, speech,
		httpapi.WithAllowedOrigins(cfg.AllowedOrigins()),
		httpapi.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
		httpapi.WithEventStream(pub),
	)

	srv.Init(ctx, frame.WithHTTPHandler(httpapi.H2CHandler(handler.Routes())))

	if err := srv.Run(ctx, ""); err != nil {
		log.Fatalf("service exited: %v", err)
	}
}

// applyCatalog pushes catalog voices and refusal phrases into the running services.
func applyCatalog(ctx context.Context, c *catalog.Catalog, speech *synth.Service, detector *extract.PhraseDetector) {
	speakers := make(map[synth.VoiceStyle]string, len(c.Voices))
	for name, speaker := range c.Voices {
		style, err := synth.ParseVoiceStyle(name)
		if err != nil {
			slog.WarnContext(ctx, "catalog: ignoring unknown voice style", slog.String("style", name))
			continue
		}
		speakers[style] = speaker
	}
	speech.SetStyleSpeakers(speakers)

	phrases := append([]string{}, extract.DefaultRefusalPhrases...)
	detector.SetPhrases(append(phrases, c.RefusalPhrases...))
}
