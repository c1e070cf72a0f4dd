package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/storyreader/storyreader/internal/registry"
	"github.com/storyreader/storyreader/internal/restutil"
	"github.com/storyreader/storyreader/internal/vision/engine"
)

const defaultBaseURL = "https://api.openai.com/v1"

func init() {
	registry.Vision.Register("openai", func(settings map[string]string) (engine.Model, error) {
		apiKey := settings["openai_api_key"]
		if apiKey == "" {
			return nil, fmt.Errorf("openai API key required (set OPENAI_API_KEY)")
		}
		baseURL := settings["openai_base_url"]
		if baseURL == "" {
			baseURL = defaultBaseURL
		}
		return New(apiKey, baseURL, restutil.New(60*time.Second)), nil
	})
}

// Vision implements engine.Model with the OpenAI-compatible chat completions API.
type Vision struct {
	apiKey  string
	baseURL string
	client  *restutil.Client
}

// New creates a vision backend talking to baseURL.
func New(apiKey, baseURL string, client *restutil.Client) *Vision {
	return &Vision{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the prompt and image as one user message and returns the
// trimmed reply. A reply with no content is returned as an empty string.
func (v *Vision) Complete(ctx context.Context, req engine.Request) (string, error) {
	body := chatRequest{
		Model: req.Model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: req.Prompt},
				{Type: "image_url", ImageURL: &imageURL{URL: req.ImageURL}},
			},
		}},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	headers := map[string]string{
		"Authorization": "Bearer " + v.apiKey,
	}

	var resp chatResponse
	if err := v.client.DoJSON(ctx, http.MethodPost, v.baseURL+"/chat/completions", headers, body, &resp); err != nil {
		return "", fmt.Errorf("openai vision (%s): %w", req.Model, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai vision (%s): no choices in response", req.Model)
	}
	content := resp.Choices[0].Message.Content
	if content == nil {
		return "", nil
	}
	return strings.TrimSpace(*content), nil
}
