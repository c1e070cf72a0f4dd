package httpapi

// OCRRequest is the body of POST /api/ocr.
type OCRRequest struct {
	ImageBase64 string `json:"imageBase64"`
	Language    string `json:"language,omitempty"`
}

// OCRResponse is the result of POST /api/ocr.
type OCRResponse struct {
	Text             string  `json:"text"`
	DetectedLanguage string  `json:"detectedLanguage"`
	Confidence       float64 `json:"confidence"`
}

// TTSRequest is the body of POST /api/tts and /api/tts/stream.
type TTSRequest struct {
	Text       string   `json:"text"`
	Language   string   `json:"language,omitempty"`
	VoiceStyle string   `json:"voiceStyle,omitempty"`
	Speed      *float64 `json:"speed,omitempty"`
}

// TTSResponse is the result of POST /api/tts.
type TTSResponse struct {
	AudioBase64     string  `json:"audioBase64"`
	DurationSeconds float64 `json:"durationSeconds"`
}

// ReadRequest is the body of POST /api/read.
type ReadRequest struct {
	ImageBase64 string   `json:"imageBase64"`
	Language    string   `json:"language,omitempty"`
	VoiceStyle  string   `json:"voiceStyle,omitempty"`
	Speed       *float64 `json:"speed,omitempty"`
}

// ReadResponse is the result of POST /api/read.
type ReadResponse struct {
	Text             string  `json:"text"`
	AudioBase64      string  `json:"audioBase64"`
	DetectedLanguage string  `json:"detectedLanguage"`
	DurationSeconds  float64 `json:"durationSeconds"`
}

// HealthResponse is the result of GET /health.
type HealthResponse struct {
	Status         string `json:"status"`
	TTSModelLoaded bool   `json:"ttsModelLoaded"`
	GPUAvailable   bool   `json:"gpuAvailable"`
	TTSCircuit     string `json:"ttsCircuit,omitempty"`
}

// RootResponse is the result of GET /.
type RootResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
	Health  string `json:"health"`
	Metrics string `json:"metrics"`
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
