// Package audio captures microphone PCM and turns it into text.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"

	"voxrag/internal/domain"
)

// SampleRate is the capture rate expected by the transcriber.
const SampleRate = 16000

// ChunkSeconds bounds the audio sent in one transcription request.
const ChunkSeconds = 30

// Decode reads little-endian int16 samples.
func Decode(raw []byte) ([]int16, error) {
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("truncated int16 buffer of %d bytes", len(raw))
	}
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	return samples, nil
}

// Channels guesses the channel count from the sample count: an even count is
// treated as interleaved stereo and an odd count as mono. This is a heuristic,
// not format detection; a mono buffer with an even sample count is read as stereo.
func Channels(samples []int16) int {
	if len(samples)%2 == 0 {
		return 2
	}
	return 1
}

// Downmix averages interleaved channels into mono floats in [-1, 1).
func Downmix(samples []int16, channels int) []float32 {
	if channels < 1 {
		channels = 1
	}
	frames := len(samples) / channels
	out := make([]float32, frames)
	for f := 0; f < frames; f++ {
		sum := 0.0
		for c := 0; c < channels; c++ {
			sum += float64(samples[f*channels+c])
		}
		out[f] = float32(sum / float64(channels) / 32768.0)
	}
	return out
}

// Chunk splits samples into consecutive pieces of at most size samples.
func Chunk(samples []float32, size int) [][]float32 {
	if size <= 0 || len(samples) == 0 {
		if len(samples) == 0 {
			return nil
		}
		return [][]float32{samples}
	}
	chunks := make([][]float32, 0, (len(samples)+size-1)/size)
	for start := 0; start < len(samples); start += size {
		end := min(start+size, len(samples))
		chunks = append(chunks, samples[start:end])
	}
	return chunks
}

// Prepare turns a captured buffer into mono samples. It returns
// domain.ErrNoAudioCaptured for an empty buffer and *domain.AudioProcessingError
// when the buffer cannot be decoded. mono reports whether the buffer was read as mono.
func Prepare(raw []byte) (samples []float32, mono bool, err error) {
	if len(raw) == 0 {
		return nil, false, domain.ErrNoAudioCaptured
	}
	pcm, err := Decode(raw)
	if err != nil {
		return nil, false, &domain.AudioProcessingError{Err: err}
	}
	ch := Channels(pcm)
	samples = Downmix(pcm, ch)
	if len(samples) == 0 {
		return nil, false, &domain.AudioProcessingError{Err: errors.New("no complete frames")}
	}
	return samples, ch == 1, nil
}
