package audio

import (
	"bytes"
	"encoding/binary"
	"math"
)

// EncodeWAV frames mono float samples as a 16-bit PCM RIFF/WAVE file.
func EncodeWAV(samples []float32, sampleRate int) []byte {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	dataSize := len(samples) * 2
	var buf bytes.Buffer
	buf.Grow(44 + dataSize)

	w := func(v any) { _ = binary.Write(&buf, binary.LittleEndian, v) }
	buf.WriteString("RIFF")
	w(uint32(36 + dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	w(uint32(16))
	w(uint16(1)) // PCM
	w(uint16(channels))
	w(uint32(sampleRate))
	w(uint32(sampleRate * channels * bitsPerSample / 8))
	w(uint16(channels * bitsPerSample / 8))
	w(uint16(bitsPerSample))
	buf.WriteString("data")
	w(uint32(dataSize))
	for _, s := range samples {
		v := math.Round(float64(s) * 32768)
		v = math.Max(math.MinInt16, math.Min(math.MaxInt16, v))
		w(int16(v))
	}
	return buf.Bytes()
}
