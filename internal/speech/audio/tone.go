package audio

import "math"

const (
	ToneFrequency  = 440.0
	ToneAmplitude  = 0.01
	ToneSampleRate = 24000
)

// Tone returns a low-amplitude 440 Hz sine lasting duration seconds at
// sampleRate. Sample times run from 0 to duration inclusive.
func Tone(duration float64, sampleRate int) []float32 {
	n := int(duration * float64(sampleRate))
	if n <= 0 {
		return []float32{}
	}
	out := make([]float32, n)
	if n == 1 {
		return out
	}
	step := duration / float64(n-1)
	for i := range out {
		t := float64(i) * step
		out[i] = float32(ToneAmplitude * math.Sin(2*math.Pi*ToneFrequency*t))
	}
	return out
}
