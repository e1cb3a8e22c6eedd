// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider turns one reply into a complete PCM clip in a single
// synchronous call. Replies in a scripted phone dialog are short (a sentence
// or two), so the engine synthesizes the whole clip up front and paces it out
// to the caller itself; incremental synthesis would buy nothing and would
// complicate barge-in cancellation.
//
// Unlike transcription, synthesis failures are not soft: a turn whose reply
// cannot be rendered is surfaced to the session so it can recover or end the
// call, rather than leaving the caller in silence.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Request carries one reply to be synthesized.
type Request struct {
	// Text is the reply to speak.
	Text string

	// Language is the BCP-47 language tag of the text (e.g., "en-IN").
	Language string

	// Voice selects a provider-specific speaker. Empty picks the
	// provider's default.
	Voice string

	// SampleRate is the desired output sample rate in Hz. Providers that
	// cannot synthesize at this rate natively must resample before
	// returning.
	SampleRate int
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders req.Text to mono little-endian 16-bit PCM at
	// req.SampleRate. Implementations must honour ctx cancellation and
	// carry bounded request timeouts of their own.
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}
