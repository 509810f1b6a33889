package audio

import (
	"encoding/base64"
	"fmt"
	"time"
)

// Common PCM format constants for the interpretation pipeline.
const (
	// CaptureSampleRate is the microphone capture rate sent to the backend.
	CaptureSampleRate = 16000

	// PlaybackSampleRate is the rate of synthesized speech from the backend.
	PlaybackSampleRate = 24000

	bytesPerSample = 2
)

// Buffer holds decoded, de-interleaved floating point samples for playback.
// Samples are normalized to [-1, 1).
type Buffer struct {
	Channels   [][]float32
	SampleRate int
}

// FrameCount returns the number of sample frames per channel.
func (b *Buffer) FrameCount() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the playback duration of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.FrameCount()) * time.Second / time.Duration(b.SampleRate)
}

// DecodePCM16 converts base64-encoded little-endian 16-bit PCM into a
// normalized, de-interleaved Buffer. Division by 32768 mirrors the
// int16 range so full-scale negative input maps exactly to -1.0.
func DecodePCM16(b64 string, sampleRate, channels int) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("decode pcm: invalid sample rate %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("decode pcm: invalid channel count %d", channels)
	}

	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode pcm: invalid base64 payload: %w", err)
	}
	if len(raw)%(bytesPerSample*channels) != 0 {
		return nil, fmt.Errorf("decode pcm: %d bytes is not a whole number of %d-channel frames", len(raw), channels)
	}

	frames := len(raw) / (bytesPerSample * channels)
	out := make([][]float32, channels)
	for ch := range out {
		out[ch] = make([]float32, frames)
	}

	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			off := (i*channels + ch) * bytesPerSample
			sample := int16(raw[off]) | int16(raw[off+1])<<8
			out[ch][i] = float32(sample) / 32768.0
		}
	}

	return &Buffer{Channels: out, SampleRate: sampleRate}, nil
}

// EncodePCM16 converts raw little-endian 16-bit PCM bytes to the base64
// wire form used on the backend session.
func EncodePCM16(pcm []byte) string {
	return base64.StdEncoding.EncodeToString(pcm)
}

// InterleaveS16LE converts a Buffer back to interleaved signed 16-bit
// little-endian bytes for the output device.
func InterleaveS16LE(b *Buffer) []byte {
	frames := b.FrameCount()
	channels := len(b.Channels)
	out := make([]byte, frames*channels*bytesPerSample)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			v := b.Channels[ch][i]
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			s := int16(v * 32767)
			off := (i*channels + ch) * bytesPerSample
			out[off] = byte(s)
			out[off+1] = byte(s >> 8)
		}
	}
	return out
}

// PCMDuration returns the duration of raw 16-bit PCM at the given format.
func PCMDuration(n, sampleRate, channels int) time.Duration {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	frames := n / (bytesPerSample * channels)
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}
