package audio

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"
)

func TestWireCodec_DecodeMulaw(t *testing.T) {
	t.Parallel()

	c, err := NewWireCodec(EncodingMulaw, 8000, 8000)
	if err != nil {
		t.Fatal(err)
	}

	// 160 mu-law bytes = 20 ms at 8 kHz.
	payload := base64.StdEncoding.EncodeToString(make([]byte, 160))
	frame, err := c.Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(frame.Data) != 320 {
		t.Errorf("decoded PCM length = %d, want 320", len(frame.Data))
	}
	if frame.SampleRate != 8000 {
		t.Errorf("sample rate = %d, want 8000", frame.SampleRate)
	}
	if frame.Duration() != 20*time.Millisecond {
		t.Errorf("frame duration = %v, want 20ms", frame.Duration())
	}
}

func TestWireCodec_DecodeResamples(t *testing.T) {
	t.Parallel()

	c, err := NewWireCodec(EncodingMulaw, 8000, 16000)
	if err != nil {
		t.Fatal(err)
	}

	payload := base64.StdEncoding.EncodeToString(make([]byte, 80))
	frame, err := c.Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	// 80 samples at 8 kHz become 160 samples at 16 kHz.
	if len(frame.Data) != 320 {
		t.Errorf("resampled PCM length = %d, want 320", len(frame.Data))
	}
	if frame.SampleRate != 16000 {
		t.Errorf("sample rate = %d, want 16000", frame.SampleRate)
	}
}

func TestWireCodec_DecodeInvalidBase64(t *testing.T) {
	t.Parallel()

	c, err := NewWireCodec(EncodingPCM16, 8000, 8000)
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.Decode("not//valid!!base64")
	var codecErr *CodecError
	if !errors.As(err, &codecErr) {
		t.Fatalf("expected CodecError, got %v", err)
	}
}

func TestWireCodec_DecodeOddPCM(t *testing.T) {
	t.Parallel()

	c, err := NewWireCodec(EncodingPCM16, 8000, 8000)
	if err != nil {
		t.Fatal(err)
	}

	payload := base64.StdEncoding.EncodeToString([]byte{1, 2, 3})
	_, err = c.Decode(payload)
	var codecErr *CodecError
	if !errors.As(err, &codecErr) {
		t.Fatalf("expected CodecError for odd byte count, got %v", err)
	}
}

func TestWireCodec_TimestampsAdvance(t *testing.T) {
	t.Parallel()

	c, err := NewWireCodec(EncodingPCM16, 8000, 8000)
	if err != nil {
		t.Fatal(err)
	}

	payload := base64.StdEncoding.EncodeToString(make([]byte, 320)) // 20 ms
	first, err := c.Decode(payload)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Decode(payload)
	if err != nil {
		t.Fatal(err)
	}
	if first.Timestamp != 0 {
		t.Errorf("first timestamp = %v, want 0", first.Timestamp)
	}
	if second.Timestamp != 20*time.Millisecond {
		t.Errorf("second timestamp = %v, want 20ms", second.Timestamp)
	}
}

func TestWireCodec_EncodeRoundTrip(t *testing.T) {
	t.Parallel()

	c, err := NewWireCodec(EncodingMulaw, 8000, 8000)
	if err != nil {
		t.Fatal(err)
	}

	frame := AudioFrame{Data: make([]byte, 320), SampleRate: 8000}
	payload, err := c.Encode(frame)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		t.Fatalf("payload is not valid base64: %v", err)
	}
	if len(raw) != 160 {
		t.Errorf("wire payload length = %d, want 160 mu-law bytes", len(raw))
	}
}

func TestNewWireCodec_UnknownEncoding(t *testing.T) {
	t.Parallel()

	if _, err := NewWireCodec("opus", 8000, 8000); err == nil {
		t.Fatal("expected error for unknown encoding, got nil")
	}
}
