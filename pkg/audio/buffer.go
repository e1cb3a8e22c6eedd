package audio

import "time"

// FrameBuffer re-slices an inbound PCM16 byte stream into fixed-duration
// frames for VAD analysis. Wire payloads arrive in arbitrary sizes (often
// 100 ms blobs); the VAD wants small uniform frames (typically 20 ms).
//
// A FrameBuffer is owned by a single call goroutine; it is not safe for
// concurrent use.
type FrameBuffer struct {
	sampleRate int
	frameBytes int

	pending []byte
	elapsed time.Duration
}

// NewFrameBuffer creates a buffer producing frames of frameMs milliseconds of
// mono PCM16 at sampleRate.
func NewFrameBuffer(sampleRate, frameMs int) *FrameBuffer {
	frameBytes := sampleRate * frameMs / 1000 * 2
	return &FrameBuffer{
		sampleRate: sampleRate,
		frameBytes: frameBytes,
	}
}

// FrameBytes returns the size in bytes of one complete frame.
func (b *FrameBuffer) FrameBytes() int {
	return b.frameBytes
}

// Push appends pcm to the buffer and returns all complete frames now
// available, in order. Leftover bytes stay buffered for the next Push.
func (b *FrameBuffer) Push(pcm []byte) []AudioFrame {
	b.pending = append(b.pending, pcm...)

	var frames []AudioFrame
	for len(b.pending) >= b.frameBytes {
		data := make([]byte, b.frameBytes)
		copy(data, b.pending[:b.frameBytes])
		b.pending = b.pending[b.frameBytes:]

		frame := AudioFrame{
			Data:       data,
			SampleRate: b.sampleRate,
			Timestamp:  b.elapsed,
		}
		b.elapsed += frame.Duration()
		frames = append(frames, frame)
	}
	return frames
}

// Reset discards any buffered partial frame. The running timestamp is
// preserved so frames stay ordered across a reset.
func (b *FrameBuffer) Reset() {
	b.pending = nil
}
