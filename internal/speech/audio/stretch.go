package audio

import (
	"errors"
	"fmt"
	"math"
)

// ErrStretchUnavailable is returned when the input is too short to analyse.
// Callers fall back to ResampleIndex.
var ErrStretchUnavailable = errors.New("time stretch unavailable for input")

const (
	frameMillis = 40
	// Correlation is evaluated on every n-th sample of the overlap.
	correlationStride = 4
)

// TimeStretch changes tempo by speed without changing pitch, using
// waveform-similarity overlap-add. The output has int(len/speed) samples.
func TimeStretch(samples []float32, sampleRate int, speed float64) ([]float32, error) {
	if speed <= 0 || math.IsNaN(speed) || math.IsInf(speed, 0) {
		return nil, fmt.Errorf("time stretch: invalid speed %v", speed)
	}
	if speed == 1 {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out, nil
	}

	frameLen := sampleRate * frameMillis / 1000
	frameLen += frameLen % 2
	if frameLen < 16 || len(samples) < 2*frameLen {
		return nil, ErrStretchUnavailable
	}

	synthHop := frameLen / 2
	analysisHop := float64(synthHop) * speed
	tolerance := frameLen / 4
	lastStart := len(samples) - frameLen
	outLen := int(float64(len(samples)) / speed)

	window := hann(frameLen)
	acc := make([]float64, outLen+frameLen)
	norm := make([]float64, outLen+frameLen)

	prev := 0
	for k := 0; k*synthHop < outLen; k++ {
		nominal := min(int(math.Round(float64(k)*analysisHop)), lastStart)
		pos := nominal
		if k > 0 {
			pos = bestAlignment(samples, prev+synthHop, nominal, tolerance, frameLen)
		}

		base := k * synthHop
		for i, w := range window {
			acc[base+i] += w * float64(samples[pos+i])
			norm[base+i] += w
		}
		prev = pos
	}

	out := make([]float32, outLen)
	for i := range out {
		if norm[i] > 1e-6 {
			out[i] = float32(acc[i] / norm[i])
		}
	}
	return out, nil
}

// bestAlignment searches around nominal for the frame start whose waveform
// best continues the previous frame's natural successor at natural.
func bestAlignment(samples []float32, natural, nominal, tolerance, frameLen int) int {
	lastStart := len(samples) - frameLen
	if natural > lastStart {
		return nominal
	}

	lo := max(nominal-tolerance, 0)
	hi := min(nominal+tolerance, lastStart)

	best, bestScore := nominal, math.Inf(-1)
	for cand := lo; cand <= hi; cand++ {
		var score float64
		for i := 0; i < frameLen; i += correlationStride {
			score += float64(samples[natural+i]) * float64(samples[cand+i])
		}
		if score > bestScore {
			best, bestScore = cand, score
		}
	}
	return best
}

func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}
