package audio

import (
	"encoding/base64"
	"testing"
)

func pcm16LE(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

func TestDecodePCM16_MonoNormalization(t *testing.T) {
	b64 := base64.StdEncoding.EncodeToString(pcm16LE(0, 16384, -32768, 32767))

	buf, err := DecodePCM16(b64, 24000, 1)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(buf.Channels) != 1 {
		t.Fatalf("channels=%d, want 1", len(buf.Channels))
	}
	got := buf.Channels[0]
	want := []float32{0, 0.5, -1, 32767.0 / 32768.0}
	if len(got) != len(want) {
		t.Fatalf("frames=%d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample[%d]=%v, want %v", i, got[i], want[i])
		}
	}
}

func TestDecodePCM16_StereoDeinterleave(t *testing.T) {
	// L0 R0 L1 R1 interleaved.
	b64 := base64.StdEncoding.EncodeToString(pcm16LE(100, -100, 200, -200))

	buf, err := DecodePCM16(b64, 24000, 2)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(buf.Channels) != 2 || buf.FrameCount() != 2 {
		t.Fatalf("channels=%d frames=%d, want 2/2", len(buf.Channels), buf.FrameCount())
	}
	if buf.Channels[0][0] != 100.0/32768.0 || buf.Channels[0][1] != 200.0/32768.0 {
		t.Fatalf("left channel wrong: %v", buf.Channels[0])
	}
	if buf.Channels[1][0] != -100.0/32768.0 || buf.Channels[1][1] != -200.0/32768.0 {
		t.Fatalf("right channel wrong: %v", buf.Channels[1])
	}
}

func TestDecodePCM16_MalformedPayload(t *testing.T) {
	if _, err := DecodePCM16("not base64!!!", 24000, 1); err == nil {
		t.Fatal("want error for invalid base64")
	}
	// Three bytes cannot form whole 16-bit frames.
	b64 := base64.StdEncoding.EncodeToString([]byte{1, 2, 3})
	if _, err := DecodePCM16(b64, 24000, 1); err == nil {
		t.Fatal("want error for ragged frame")
	}
	if _, err := DecodePCM16("", 0, 1); err == nil {
		t.Fatal("want error for zero sample rate")
	}
}

func TestDecodeWorker_PairsRequestsWithResults(t *testing.T) {
	w := NewDecodeWorker()
	defer w.Close()

	good := base64.StdEncoding.EncodeToString(pcm16LE(1, 2, 3, 4))

	res := <-w.Decode(DecodeRequest{Base64: good, SampleRate: 24000, Channels: 1})
	if res.Err != nil {
		t.Fatalf("decode: %v", res.Err)
	}
	if res.Buffer.FrameCount() != 4 {
		t.Fatalf("frames=%d, want 4", res.Buffer.FrameCount())
	}

	// A malformed payload is reported as an error result, not a crash,
	// and later requests still succeed.
	res = <-w.Decode(DecodeRequest{Base64: "%%%", SampleRate: 24000, Channels: 1})
	if res.Err == nil {
		t.Fatal("want error for malformed payload")
	}
	res = <-w.Decode(DecodeRequest{Base64: good, SampleRate: 24000, Channels: 1})
	if res.Err != nil {
		t.Fatalf("decode after failure: %v", res.Err)
	}
}

func TestDecodeWorker_ClosedRejectsRequests(t *testing.T) {
	w := NewDecodeWorker()
	w.Close()

	res := <-w.Decode(DecodeRequest{Base64: "", SampleRate: 24000, Channels: 1})
	if res.Err == nil {
		t.Fatal("want error after close")
	}
}

func TestBufferDuration(t *testing.T) {
	buf := &Buffer{Channels: [][]float32{make([]float32, 24000)}, SampleRate: 24000}
	if got := buf.Duration(); got.Seconds() != 1 {
		t.Fatalf("duration=%v, want 1s", got)
	}
}

func TestInterleaveS16LE_RoundTrip(t *testing.T) {
	raw := pcm16LE(0, 1000, -1000, 12345)
	b64 := base64.StdEncoding.EncodeToString(raw)
	buf, err := DecodePCM16(b64, 24000, 2)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := InterleaveS16LE(buf)
	// Conversion back uses a 32767 scale, so values may differ by 1 LSB.
	for i := 0; i < len(raw); i += 2 {
		want := int16(raw[i]) | int16(raw[i+1])<<8
		have := int16(got[i]) | int16(got[i+1])<<8
		diff := int(want) - int(have)
		if diff < -1 || diff > 1 {
			t.Fatalf("sample %d: got %d, want %d±1", i/2, have, want)
		}
	}
}
