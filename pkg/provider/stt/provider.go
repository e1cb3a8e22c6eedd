// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a batch transcription service (e.g., Sarvam Saarika
// or OpenAI Whisper) behind a single synchronous call: the call pipeline
// hands over one complete sealed utterance and receives its transcript. There
// is no streaming surface: utterance boundaries are decided locally by the
// VAD, and the pipeline runs each transcription on a worker goroutine off the
// audio path, so a blocking request model keeps providers trivial.
//
// Transcription failures are soft by contract: callers treat any error, and
// any empty transcript, the same way: as if the caller said nothing.
//
// Implementations must be safe for concurrent use; several calls may
// transcribe at once.
package stt

import "context"

// Request carries one sealed utterance to a provider.
type Request struct {
	// PCM is the utterance audio as mono little-endian 16-bit PCM.
	PCM []byte

	// SampleRate is the sample rate of PCM in Hz.
	SampleRate int

	// Language is the BCP-47 language hint (e.g., "en-IN", "hi-IN").
	// Empty lets the provider auto-detect where supported.
	Language string
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe converts one utterance to text. It may return an empty
	// transcript when the provider heard no speech; callers must treat that
	// identically to an error. Implementations must honour ctx cancellation
	// and carry bounded request timeouts of their own.
	Transcribe(ctx context.Context, req Request) (string, error)
}
