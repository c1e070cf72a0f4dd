// Package httpapi exposes the reading pipeline over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/pitabwire/util"

	"github.com/storyreader/storyreader/internal/reader"
	"github.com/storyreader/storyreader/internal/speech/synth"
	"github.com/storyreader/storyreader/internal/vision/extract"
	"github.com/storyreader/storyreader/pkg/events"
	"github.com/storyreader/storyreader/pkg/language"
)

// Photographed pages are large; base64 adds a third on top.
const maxRequestBodySize = 20 << 20 // 20 MiB

const (
	minSpeed = 0.5
	maxSpeed = 2.0
)

// Version is reported by GET /.
var Version = "1.0.0"

// HealthReporter answers the health probe.
type HealthReporter interface {
	IsLoaded() bool
	IsAcceleratorAvailable() bool
}

// CircuitReporter is an optional HealthReporter extension that exposes the
// speech model's circuit breaker.
type CircuitReporter interface {
	CircuitState() string
}

// Handler serves the pipeline endpoints.
type Handler struct {
	reader  *reader.Reader
	health  HealthReporter
	metrics http.Handler
	origins []string
	events  *events.Publisher
}

// Option configures a Handler.
type Option func(*Handler)

// WithMetricsHandler serves h at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(hd *Handler) { hd.metrics = h }
}

// WithAllowedOrigins sets the CORS origins. "*" allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(hd *Handler) { hd.origins = origins }
}

// NewHandler creates the API handler.
func NewHandler(r *reader.Reader, health HealthReporter, opts ...Option) *Handler {
	h := &Handler{reader: r, health: health, origins: []string{"*"}}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers all API routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Root)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("POST /api/ocr", h.OCR)
	mux.HandleFunc("POST /api/tts", h.TTS)
	mux.HandleFunc("POST /api/tts/stream", h.TTSStream)
	mux.HandleFunc("POST /api/read", h.Read)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}
	if h.events != nil {
		mux.HandleFunc("GET /api/events", h.Events)
	}
}

// Routes returns the routes wrapped in the standard middleware chain.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return h.wrap(mux)
}

// wrap applies the middleware chain. Recovery runs inside withRequestID so
// panic reports carry the request id.
func (h *Handler) wrap(next http.Handler) http.Handler {
	return withRequestID(withSentryRecovery(withLogging(withCORS(h.origins, next))))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// decode reads a JSON body into v, answering the client itself on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func parseLanguage(s string) (language.Language, error) {
	lang, err := language.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid language %q", s)
	}
	return lang, nil
}

func parseSpeed(v *float64) (float64, error) {
	if v == nil {
		return 1.0, nil
	}
	if *v < minSpeed || *v > maxSpeed {
		return 0, fmt.Errorf("speed must be between %s and %s",
			strconv.FormatFloat(minSpeed, 'f', 1, 64), strconv.FormatFloat(maxSpeed, 'f', 1, 64))
	}
	return *v, nil
}

func parseSynthesisParams(lang, style string, speed *float64) (language.Language, synth.VoiceStyle, float64, error) {
	l, err := parseLanguage(lang)
	if err != nil {
		return "", "", 0, err
	}
	vs, err := synth.ParseVoiceStyle(style)
	if err != nil {
		return "", "", 0, err
	}
	sp, err := parseSpeed(speed)
	if err != nil {
		return "", "", 0, err
	}
	return l, vs, sp, nil
}

// failure answers a pipeline error: page problems are the client's, the
// rest is logged and reported with a generic message.
func failure(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		// Client went away; nobody is left to answer.
	case reader.IsClientError(err):
		writeError(w, http.StatusBadRequest, clientMessage(err))
	default:
		util.Log(r.Context()).WithError(err).Error(msg)
		captureError(r, err, msg)
		writeError(w, http.StatusInternalServerError, msg)
	}
}

func clientMessage(err error) string {
	if errors.Is(err, extract.ErrContentPolicy) {
		return extract.ContentPolicyMessage
	}
	return "No text found in the image"
}

// Root handles GET /
func (h *Handler) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, RootResponse{
		Message: "Storybook Reader API",
		Version: Version,
		Health:  "/health",
		Metrics: "/metrics",
	})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status:         "healthy",
		TTSModelLoaded: h.health.IsLoaded(),
		GPUAvailable:   h.health.IsAcceleratorAvailable(),
	}
	if cr, ok := h.health.(CircuitReporter); ok {
		resp.TTSCircuit = cr.CircuitState()
	}
	writeJSON(w, http.StatusOK, resp)
}

// OCR handles POST /api/ocr
func (h *Handler) OCR(w http.ResponseWriter, r *http.Request) {
	var req OCRRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ImageBase64 == "" {
		writeError(w, http.StatusBadRequest, "imageBase64 is required")
		return
	}
	lang, err := parseLanguage(req.Language)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.reader.Extract(r.Context(), req.ImageBase64, lang)
	if err != nil {
		failure(w, r, err, "OCR processing failed")
		return
	}

	writeJSON(w, http.StatusOK, OCRResponse{
		Text:             res.Text,
		DetectedLanguage: string(res.DetectedLanguage),
		Confidence:       res.Confidence,
	})
}

func (h *Handler) synthesize(w http.ResponseWriter, r *http.Request) (*synth.Result, bool) {
	var req TTSRequest
	if !decode(w, r, &req) {
		return nil, false
	}
	lang, style, speed, err := parseSynthesisParams(req.Language, req.VoiceStyle, req.Speed)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	res, err := h.reader.Synthesize(r.Context(), synth.Request{
		Text:     req.Text,
		Language: lang,
		Style:    style,
		Speed:    speed,
	})
	if err != nil {
		failure(w, r, err, "TTS processing failed")
		return nil, false
	}
	return res, true
}

// TTS handles POST /api/tts
func (h *Handler) TTS(w http.ResponseWriter, r *http.Request) {
	res, ok := h.synthesize(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, TTSResponse{
		AudioBase64:     res.AudioBase64(),
		DurationSeconds: res.DurationSeconds,
	})
}

// TTSStream handles POST /api/tts/stream
func (h *Handler) TTSStream(w http.ResponseWriter, r *http.Request) {
	res, ok := h.synthesize(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", "attachment; filename=speech.wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Audio)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Audio)
}

// Read handles POST /api/read
func (h *Handler) Read(w http.ResponseWriter, r *http.Request) {
	var req ReadRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ImageBase64 == "" {
		writeError(w, http.StatusBadRequest, "imageBase64 is required")
		return
	}
	lang, style, speed, err := parseSynthesisParams(req.Language, req.VoiceStyle, req.Speed)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.reader.Read(r.Context(), reader.Request{
		Image:    req.ImageBase64,
		Language: lang,
		Style:    style,
		Speed:    speed,
	})
	if err != nil {
		failure(w, r, err, "Read processing failed")
		return
	}

	writeJSON(w, http.StatusOK, ReadResponse{
		Text:             res.Text,
		AudioBase64:      res.AudioBase64(),
		DetectedLanguage: string(res.DetectedLanguage),
		DurationSeconds:  res.DurationSeconds,
	})
}

