package piper

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/storyreader/storyreader/internal/registry"
	"github.com/storyreader/storyreader/internal/speech/audio"
	"github.com/storyreader/storyreader/internal/speech/engine"
	"github.com/storyreader/storyreader/pkg/language"
)

const defaultSampleRate = 22050

func init() {
	registry.Speech.Register("piper", func(settings map[string]string) (engine.Provider, error) {
		binaryPath := settings["piper_binary_path"]
		if binaryPath == "" {
			binaryPath = "piper"
		}
		modelPath := settings["piper_model_path"]
		if modelPath == "" {
			modelPath = "./models/ko_KR-kss-medium.onnx"
		}
		sampleRate := defaultSampleRate
		if v := settings["piper_sample_rate"]; v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("piper: invalid sample rate %q", v)
			}
			sampleRate = n
		}
		return NewProvider(binaryPath, modelPath, sampleRate), nil
	})
}

// Provider runs the Piper binary locally.
type Provider struct {
	binaryPath string
	modelPath  string
	sampleRate int
}

// NewProvider creates a Piper provider. sampleRate must match the voice
// model's native rate.
func NewProvider(binaryPath, modelPath string, sampleRate int) *Provider {
	return &Provider{
		binaryPath: binaryPath,
		modelPath:  modelPath,
		sampleRate: sampleRate,
	}
}

// Load checks that the binary and voice model exist. Piper runs on the CPU
// regardless of the selected device.
func (p *Provider) Load(_ context.Context, _ engine.LoadOptions) (engine.Model, error) {
	bin, err := exec.LookPath(p.binaryPath)
	if err != nil {
		return nil, fmt.Errorf("piper binary: %w", err)
	}
	if _, err := os.Stat(p.modelPath); err != nil {
		return nil, fmt.Errorf("piper model: %w", err)
	}
	return &TTS{binaryPath: bin, modelPath: p.modelPath, sampleRate: p.sampleRate}, nil
}

// TTS synthesizes with one Piper process per request.
type TTS struct {
	binaryPath string
	modelPath  string
	sampleRate int
}

// Generate renders text. Numeric speakers select a speaker id in
// multi-speaker voice models; other speaker names are ignored.
func (p *TTS) Generate(ctx context.Context, text string, _ language.Language, speaker string) (engine.Samples, error) {
	args := []string{"--model", p.modelPath, "--output-raw"}
	if _, err := strconv.Atoi(speaker); err == nil {
		args = append(args, "--speaker", speaker)
	}
	cmd := exec.CommandContext(ctx, p.binaryPath, args...)

	cmd.Stdin = bytes.NewBufferString(text)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return engine.Samples{}, fmt.Errorf("piper TTS: %w: %s", err, stderr.String())
	}

	return engine.Samples{Data: audio.PCM16ToFloat32(stdout.Bytes()), SampleRate: p.sampleRate}, nil
}
