package registry

import (
	speechengine "github.com/storyreader/storyreader/internal/speech/engine"
	visionengine "github.com/storyreader/storyreader/internal/vision/engine"
)

// Vision holds the vision model backends used for page transcription.
var Vision = New[visionengine.Model]()

// Speech holds the speech model providers used for synthesis.
var Speech = New[speechengine.Provider]()
