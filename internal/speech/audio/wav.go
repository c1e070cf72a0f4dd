package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	wavHeaderSize = 44
	bitsPerSample = 16
	channels      = 1
)

// ErrNotWAV is returned when a buffer is not a PCM WAV file.
var ErrNotWAV = errors.New("not a 16-bit PCM WAV stream")

// EncodeWAV packages samples as a 16-bit PCM mono WAV file.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("encode wav: invalid sample rate %d", sampleRate)
	}
	dataSize := len(samples) * 2

	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + dataSize)
	if err := writeWAVHeader(&buf, sampleRate, dataSize); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}

	pcm := make([]byte, dataSize)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(toPCM16(s)))
	}
	buf.Write(pcm)
	return buf.Bytes(), nil
}

// writeWAVHeader writes a 44-byte canonical header for 16-bit mono PCM.
func writeWAVHeader(w io.Writer, sampleRate, dataSize int) error {
	blockAlign := channels * bitsPerSample / 8
	// RIFF header, fmt chunk (PCM, mono), data chunk header.
	header := []any{
		[4]byte{'R', 'I', 'F', 'F'},
		uint32(36 + dataSize),
		[4]byte{'W', 'A', 'V', 'E'},
		[4]byte{'f', 'm', 't', ' '},
		uint32(16),
		uint16(1),
		uint16(channels),
		uint32(sampleRate),
		uint32(sampleRate * blockAlign),
		uint16(blockAlign),
		uint16(bitsPerSample),
		[4]byte{'d', 'a', 't', 'a'},
		uint32(dataSize),
	}
	for _, field := range header {
		if err := binary.Write(w, binary.LittleEndian, field); err != nil {
			return err
		}
	}
	return nil
}

// DecodeWAV reads a 16-bit PCM mono or multi-channel WAV file. Multi-channel
// input is downmixed to mono. Chunks other than fmt and data are skipped.
func DecodeWAV(data []byte) ([]float32, int, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, ErrNotWAV
	}

	var (
		sampleRate int
		numChans   int
		haveFmt    bool
	)
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4:]))
		body := off + 8
		end := body + size
		if end > len(data) {
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return nil, 0, ErrNotWAV
			}
			format := binary.LittleEndian.Uint16(data[body:])
			numChans = int(binary.LittleEndian.Uint16(data[body+2:]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			bits := binary.LittleEndian.Uint16(data[body+14:])
			if format != 1 || bits != bitsPerSample || numChans < 1 {
				return nil, 0, ErrNotWAV
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, 0, ErrNotWAV
			}
			pcm := PCM16ToFloat32(data[body:end])
			if numChans == 1 {
				return pcm, sampleRate, nil
			}
			return downmix(pcm, numChans), sampleRate, nil
		}

		off = body + size + size%2
	}
	return nil, 0, ErrNotWAV
}

func downmix(interleaved []float32, numChans int) []float32 {
	frames := len(interleaved) / numChans
	out := make([]float32, frames)
	for i := range frames {
		var sum float32
		for c := range numChans {
			sum += interleaved[i*numChans+c]
		}
		out[i] = sum / float32(numChans)
	}
	return out
}
