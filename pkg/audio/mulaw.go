package audio

import "fmt"

// G.711 mu-law companding constants.
const (
	muLawBias = 0x84
	muLawClip = 32635
)

// CodecError reports a malformed wire frame. Callers should drop the frame and
// continue; a CodecError is never fatal to a call.
type CodecError struct {
	Reason string
}

func (e *CodecError) Error() string {
	return "audio: codec: " + e.Reason
}

func codecErrorf(format string, args ...any) *CodecError {
	return &CodecError{Reason: fmt.Sprintf(format, args...)}
}

// MulawDecode expands 8-bit mu-law bytes into little-endian 16-bit PCM.
// The output is always exactly twice the input length.
func MulawDecode(in []byte) []byte {
	out := make([]byte, len(in)*2)
	for i, b := range in {
		s := mulawToLinear(b)
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// MulawEncode compands little-endian 16-bit PCM into 8-bit mu-law bytes.
// Returns a CodecError if the input has an odd byte count.
func MulawEncode(pcm []byte) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, codecErrorf("odd PCM byte count %d", len(pcm))
	}
	out := make([]byte, len(pcm)/2)
	for i := range out {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		out[i] = linearToMulaw(s)
	}
	return out, nil
}

// mulawToLinear expands a single mu-law byte to a 16-bit PCM sample.
func mulawToLinear(u byte) int16 {
	u = ^u
	sign := u & 0x80
	exp := (u >> 4) & 0x07
	mant := u & 0x0F
	value := (int(mant) << 3) + muLawBias
	value <<= uint(exp)
	value -= muLawBias
	if sign != 0 {
		return int16(-value)
	}
	return int16(value)
}

// linearToMulaw compands a single 16-bit PCM sample to a mu-law byte.
func linearToMulaw(s int16) byte {
	sign := byte(0)
	v := int(s)
	if v < 0 {
		v = -v
		sign = 0x80
	}
	if v > muLawClip {
		v = muLawClip
	}
	v += muLawBias

	exp := 7
	for mask := 0x4000; (v&mask) == 0 && exp > 0; mask >>= 1 {
		exp--
	}
	mant := (v >> (uint(exp) + 3)) & 0x0F

	return ^(sign | byte(exp)<<4 | byte(mant))
}
