package reader

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	speechmock "github.com/storyreader/storyreader/internal/speech/backends/mock"
	"github.com/storyreader/storyreader/internal/speech/engine"
	"github.com/storyreader/storyreader/internal/speech/synth"
	visionmock "github.com/storyreader/storyreader/internal/vision/backends/mock"
	"github.com/storyreader/storyreader/internal/vision/extract"
	"github.com/storyreader/storyreader/pkg/events"
	"github.com/storyreader/storyreader/pkg/language"
)

type recordingSynth struct {
	got []synth.Request
}

func (s *recordingSynth) Synthesize(_ context.Context, req synth.Request) *synth.Result {
	s.got = append(s.got, req)
	return &synth.Result{Audio: []byte("RIFF"), DurationSeconds: 1.5, Language: req.Language}
}

type stubExtractor struct {
	res *extract.Result
	err error
}

func (s stubExtractor) Extract(context.Context, string, language.Language) (*extract.Result, error) {
	return s.res, s.err
}

func TestReadForwardsDetectedLanguage(t *testing.T) {
	ex := extract.New(visionmock.New("Hello there"), extract.Config{})
	sy := &recordingSynth{}
	r := New(ex, sy, nil)

	res, err := r.Read(t.Context(), Request{Image: "AAAA", Language: language.Auto, Style: synth.Calm, Speed: 1.25})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if res.DetectedLanguage != language.English {
		t.Errorf("detected = %q, want en", res.DetectedLanguage)
	}
	if len(sy.got) != 1 {
		t.Fatalf("synth calls = %d, want 1", len(sy.got))
	}
	got := sy.got[0]
	if got.Language != language.English || got.Text != "Hello there" || got.Style != synth.Calm || got.Speed != 1.25 {
		t.Errorf("synth request = %+v", got)
	}
	if res.DurationSeconds != 1.5 || string(res.Audio) != "RIFF" {
		t.Errorf("result = %+v", res)
	}
}

func TestReadEndToEndWithMockModels(t *testing.T) {
	speech := synth.New(synth.NewResource(&speechmock.Provider{}, engine.StaticProbe{}), synth.Config{})
	speech.LoadModel(t.Context(), "0.6B")
	ex := extract.New(visionmock.New("토끼가 깡충깡충 뛰었어요."), extract.Config{})

	pub := events.NewPublisher(nil, "test", "")
	ch := pub.Subscribe("t", 16)
	defer pub.Unsubscribe("t")

	r := New(ex, speech, nil, WithEvents(pub))
	res, err := r.Read(t.Context(), Request{Image: "AAAA", Language: language.English, Style: synth.Warm, Speed: 1})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	// A concrete hint is reported as detected.
	if res.DetectedLanguage != language.English {
		t.Errorf("detected = %q, want en", res.DetectedLanguage)
	}
	if res.DurationSeconds <= 0 || len(res.Audio) == 0 {
		t.Errorf("no audio: %+v", res.DurationSeconds)
	}

	select {
	case env := <-ch:
		if env.Type != events.ReadCompleted {
			t.Errorf("event = %s, want read.completed", env.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("read.completed not emitted")
	}
}

func TestReadContentPolicyIsClientError(t *testing.T) {
	ex := extract.New(visionmock.New("I can't assist with that."), extract.Config{})
	sy := &recordingSynth{}
	_, err := New(ex, sy, nil).Read(t.Context(), Request{Image: "AAAA", Language: language.Auto})
	if !errors.Is(err, extract.ErrContentPolicy) || !IsClientError(err) {
		t.Fatalf("err = %v, want client content-policy error", err)
	}
	if len(sy.got) != 0 {
		t.Error("synthesis ran after failed extraction")
	}
}

func TestReadNoTextFound(t *testing.T) {
	ex := stubExtractor{res: &extract.Result{Text: "  ", DetectedLanguage: language.Korean}}
	sy := &recordingSynth{}
	_, err := New(ex, sy, nil).Read(t.Context(), Request{Image: "AAAA"})
	if !errors.Is(err, ErrNoTextFound) || !IsClientError(err) {
		t.Fatalf("err = %v, want ErrNoTextFound", err)
	}
	if len(sy.got) != 0 {
		t.Error("synthesis ran for empty text")
	}
}

func TestReadUnexpectedErrorIsNotClientError(t *testing.T) {
	ex := stubExtractor{err: fmt.Errorf("extract: %w", errors.New("dial tcp: refused"))}
	_, err := New(ex, &recordingSynth{}, nil).Read(t.Context(), Request{Image: "AAAA"})
	if err == nil || IsClientError(err) {
		t.Fatalf("err = %v, want server-side error", err)
	}
}

func TestIsClientErrorWrapped(t *testing.T) {
	if !IsClientError(fmt.Errorf("read: %w", ErrNoTextFound)) {
		t.Error("wrapped ErrNoTextFound not classified")
	}
	if IsClientError(nil) {
		t.Error("nil classified as client error")
	}
}
