package audio

import "time"

// AudioFrame represents a single frame of mono PCM16 audio flowing through the
// call pipeline. Frames are the atomic unit of audio transport, decoded from
// the telephony wire, classified by VAD, and assembled into utterances.
// A frame is immutable once produced.
type AudioFrame struct {
	// Data is little-endian 16-bit PCM. Always mono.
	Data []byte

	// SampleRate in Hz (e.g., 8000 for the telephony wire, 16000 for STT).
	SampleRate int

	// Timestamp marks when this frame was captured, relative to call start.
	Timestamp time.Duration
}

// Duration returns the playback duration of the frame.
func (f AudioFrame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	samples := len(f.Data) / 2
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}
