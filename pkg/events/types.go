package events

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of event flowing through the pipeline.
type EventType string

const (
	OCRCompleted    EventType = "ocr.completed"
	OCRFallback     EventType = "ocr.fallback"
	OCRFailed       EventType = "ocr.failed"
	TTSCompleted    EventType = "tts.completed"
	TTSDegraded     EventType = "tts.degraded"
	ReadCompleted   EventType = "read.completed"
	ModelLoaded     EventType = "model.loaded"
	ModelLoadFailed EventType = "model.load_failed"
	CatalogReloaded EventType = "catalog.reloaded"
)

// Envelope is the standard event wrapper published to the event bus.
type Envelope struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Source    string            `json:"source"`
	RequestID string            `json:"request_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Data      json.RawMessage   `json:"data"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// OCRData is the payload for ocr.completed and ocr.failed events.
type OCRData struct {
	Model            string  `json:"model"`
	Attempts         int     `json:"attempts"`
	TextLength       int     `json:"text_length"`
	DetectedLanguage string  `json:"detected_language,omitempty"`
	Confidence       float64 `json:"confidence"`
}

// OCRFallbackData is the payload for ocr.fallback events.
type OCRFallbackData struct {
	PrimaryModel  string `json:"primary_model"`
	FallbackModel string `json:"fallback_model"`
	Reason        string `json:"reason"`
}

// TTSData is the payload for tts.completed events.
type TTSData struct {
	TextLength      int     `json:"text_length"`
	Language        string  `json:"language"`
	Speaker         string  `json:"speaker"`
	Speed           float64 `json:"speed"`
	DurationSeconds float64 `json:"duration_seconds"`
	Mock            bool    `json:"mock"`
}

// TTSDegradedData is the payload for tts.degraded events.
type TTSDegradedData struct {
	Reason string `json:"reason"`
	Error  string `json:"error,omitempty"`
}

// ReadData is the payload for read.completed events.
type ReadData struct {
	TextLength       int     `json:"text_length"`
	RequestLanguage  string  `json:"request_language"`
	DetectedLanguage string  `json:"detected_language"`
	DurationSeconds  float64 `json:"duration_seconds"`
}

// ModelData is the payload for model.loaded and model.load_failed events.
type ModelData struct {
	SizeVariant string `json:"size_variant"`
	Device      string `json:"device"`
	Precision   string `json:"precision"`
	Error       string `json:"error,omitempty"`
}

// CatalogData is the payload for catalog.reloaded events.
type CatalogData struct {
	Path           string `json:"path"`
	Voices         int    `json:"voices"`
	RefusalPhrases int    `json:"refusal_phrases"`
}
