package session

import (
	"context"
	"fmt"
	"time"

	"github.com/RupeekSJ/ai-calling-Somil/pkg/audio"
)

// MediaSender delivers encoded outbound audio to the telephony transport.
type MediaSender interface {
	SendMedia(ctx context.Context, payload string) error
}

// Streamer paces a synthesized PCM clip out to the transport in wire-sized
// chunks. Chunks are emitted strictly in order and each is sent exactly once;
// pacing approximates real-time playback so the transport buffer stays
// shallow enough for barge-in to cut off quickly.
//
// Cancellation goes through the context: it is checked at every chunk
// boundary, so a cancelled stream stops within one chunk duration.
type Streamer struct {
	codec      *audio.WireCodec
	sender     MediaSender
	sampleRate int
	chunkBytes int
	chunkDur   time.Duration
}

// NewStreamer returns a Streamer emitting chunkMs-sized chunks of PCM at
// sampleRate through codec to sender.
func NewStreamer(codec *audio.WireCodec, sender MediaSender, sampleRate, chunkMs int) *Streamer {
	chunkBytes := sampleRate * chunkMs / 1000 * 2
	return &Streamer{
		codec:      codec,
		sender:     sender,
		sampleRate: sampleRate,
		chunkBytes: chunkBytes,
		chunkDur:   time.Duration(chunkMs) * time.Millisecond,
	}
}

// ChunkDuration is the pacing interval, and therefore the bound on how long
// cancellation can take to be observed.
func (s *Streamer) ChunkDuration() time.Duration { return s.chunkDur }

// Stream sends pcm to the transport chunk by chunk. It returns ctx.Err() when
// cancelled mid-stream and nil once the final chunk has been sent and paced.
func (s *Streamer) Stream(ctx context.Context, pcm []byte) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	if !timer.Stop() {
		<-timer.C
	}

	for off := 0; off < len(pcm); off += s.chunkBytes {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := off + s.chunkBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		payload, err := s.codec.Encode(audio.AudioFrame{
			Data:       pcm[off:end],
			SampleRate: s.sampleRate,
		})
		if err != nil {
			return fmt.Errorf("session: encode reply chunk: %w", err)
		}
		if err := s.sender.SendMedia(ctx, payload); err != nil {
			return fmt.Errorf("session: send reply chunk: %w", err)
		}

		// Pace at the chunk's audible duration so playback stays near
		// real time, and so cancellation latency stays bounded.
		timer.Reset(s.chunkDur)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}
