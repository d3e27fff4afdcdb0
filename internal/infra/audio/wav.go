package audio

import (
	"bytes"
	"encoding/binary"
)

// encodeWAV wraps mono 16-bit PCM samples in a RIFF/WAVE container.
func encodeWAV(samples []int16, sampleRate int) []byte {
	var buf bytes.Buffer
	dataSize := len(samples) * 2

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	_ = binary.Write(&buf, binary.LittleEndian, samples)

	return buf.Bytes()
}

// silent reports whether every sample stays within threshold.
func silent(samples []int16, threshold int16) bool {
	for _, s := range samples {
		if s > threshold || s < -threshold {
			return false
		}
	}
	return true
}

// utterance accumulates frames until trailing silence or a length cap.
type utterance struct {
	sampleRate int
	threshold  int16
	maxSilence int
	maxSamples int

	samples []int16
	quiet   int
	heard   bool
}

func newUtterance(sampleRate int, maxSeconds float64) *utterance {
	return &utterance{
		sampleRate: sampleRate,
		threshold:  500,
		maxSilence: sampleRate,
		maxSamples: int(float64(sampleRate) * maxSeconds),
	}
}

// add appends frame and reports whether the utterance is complete.
func (u *utterance) add(frame []int16) bool {
	u.samples = append(u.samples, frame...)
	if silent(frame, u.threshold) {
		u.quiet += len(frame)
	} else {
		u.quiet = 0
		u.heard = true
	}
	if u.heard && u.quiet > u.maxSilence {
		return true
	}
	return len(u.samples) >= u.maxSamples
}
