package audio

// ResampleIndex changes the length of samples by 1/speed by picking source
// samples at evenly spaced indices. Pitch shifts along with tempo, but the
// output length matches what TimeStretch would produce.
func ResampleIndex(samples []float32, speed float64) []float32 {
	if speed <= 0 || len(samples) == 0 {
		return samples
	}
	outLen := int(float64(len(samples)) / speed)
	if outLen <= 0 {
		return []float32{}
	}

	out := make([]float32, outLen)
	if outLen == 1 {
		out[0] = samples[0]
		return out
	}

	// Indices span [0, len-1] inclusive, truncated toward zero.
	last := len(samples) - 1
	for i := range out {
		out[i] = samples[i*last/(outLen-1)]
	}
	return out
}
