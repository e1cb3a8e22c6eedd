package audio

import (
	"encoding/base64"
	"time"
)

// Encoding identifies the audio encoding used on the telephony wire.
type Encoding string

const (
	// EncodingMulaw is 8-bit mu-law at 8 kHz, the classic telephony codec.
	EncodingMulaw Encoding = "mulaw"

	// EncodingPCM16 is raw little-endian 16-bit PCM.
	EncodingPCM16 Encoding = "pcm16"
)

// IsValid reports whether e is a recognised wire encoding.
func (e Encoding) IsValid() bool {
	return e == EncodingMulaw || e == EncodingPCM16
}

// WireCodec converts between base64-framed wire audio and canonical PCM16
// AudioFrames. Decode resamples inbound audio to the pipeline rate; Encode
// resamples outbound audio back to the wire rate. A WireCodec carries the
// running inbound timestamp, so create one per call direction and do not share
// it across goroutines.
type WireCodec struct {
	encoding Encoding
	wireRate int
	pcmRate  int

	elapsed time.Duration
}

// NewWireCodec creates a codec for the given wire encoding and sample rates.
// wireRate is the rate of audio on the wire; pcmRate is the canonical internal
// rate frames are decoded to.
func NewWireCodec(encoding Encoding, wireRate, pcmRate int) (*WireCodec, error) {
	if !encoding.IsValid() {
		return nil, codecErrorf("unknown encoding %q", encoding)
	}
	if wireRate <= 0 || pcmRate <= 0 {
		return nil, codecErrorf("invalid sample rates wire=%d pcm=%d", wireRate, pcmRate)
	}
	return &WireCodec{encoding: encoding, wireRate: wireRate, pcmRate: pcmRate}, nil
}

// Decode converts one base64 wire payload into a canonical PCM16 frame at the
// pipeline sample rate. Returns a CodecError on invalid base64 or a byte count
// that does not align with the encoding; the caller should drop the payload.
func (c *WireCodec) Decode(payload string) (AudioFrame, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return AudioFrame{}, codecErrorf("invalid base64 payload: %v", err)
	}

	var pcm []byte
	switch c.encoding {
	case EncodingMulaw:
		pcm = MulawDecode(raw)
	case EncodingPCM16:
		if len(raw)%2 != 0 {
			return AudioFrame{}, codecErrorf("odd PCM byte count %d", len(raw))
		}
		pcm = raw
	}

	if c.wireRate != c.pcmRate {
		pcm = ResampleMono16(pcm, c.wireRate, c.pcmRate)
	}

	frame := AudioFrame{
		Data:       pcm,
		SampleRate: c.pcmRate,
		Timestamp:  c.elapsed,
	}
	c.elapsed += frame.Duration()
	return frame, nil
}

// Encode converts a canonical PCM16 frame into a base64 wire payload at the
// wire sample rate and encoding.
func (c *WireCodec) Encode(frame AudioFrame) (string, error) {
	if len(frame.Data)%2 != 0 {
		return "", codecErrorf("odd PCM byte count %d", len(frame.Data))
	}

	pcm := frame.Data
	if frame.SampleRate != c.wireRate {
		pcm = ResampleMono16(pcm, frame.SampleRate, c.wireRate)
	}

	var raw []byte
	switch c.encoding {
	case EncodingMulaw:
		var err error
		raw, err = MulawEncode(pcm)
		if err != nil {
			return "", err
		}
	case EncodingPCM16:
		raw = pcm
	}

	return base64.StdEncoding.EncodeToString(raw), nil
}
