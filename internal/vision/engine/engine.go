// Package engine defines the vision capability used to transcribe pages.
package engine

import "context"

// Request is a single image-plus-instructions completion.
type Request struct {
	Model       string
	Prompt      string
	ImageURL    string // data URL or remote URL
	MaxTokens   int
	Temperature float64
}

// Model turns an image and instructions into text.
type Model interface {
	Complete(ctx context.Context, req Request) (string, error)
}
