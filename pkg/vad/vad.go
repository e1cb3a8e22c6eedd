// Package vad provides frame-level Voice Activity Detection for call audio.
//
// A VAD detector classifies each fixed-duration PCM frame as speech or
// silence and applies hysteresis to decide where an utterance starts and
// ends: a start is declared only after MinSpeechFrames consecutive speech
// frames (guarding against transient noise), and an end only after
// SilenceFrames consecutive silence frames following a start (so trailing
// words are not clipped).
//
// The default detector is a plain short-term-energy threshold; it will false
// trigger on loud background noise and can miss very soft speech. It is kept
// deliberately simple; anything smarter (adaptive noise floor, model-based
// detection) plugs in behind the Engine interface without touching the call
// pipeline.
//
// Detectors are stateful and owned by a single call goroutine; they are not
// safe for concurrent use. Engines must be safe for concurrent use so that
// every call can create its own detector.
package vad

import "errors"

// Config holds the tuning parameters for a detector. The repository history
// behind this pipeline never settled on universally correct values, so all of
// them are configuration with conservative defaults rather than constants.
type Config struct {
	// SampleRate is the audio sample rate in Hz of frames passed to
	// ProcessFrame. Common values: 8000, 16000.
	SampleRate int

	// FrameSizeMs is the duration of each audio frame in milliseconds.
	// ProcessFrame returns an error if a frame does not match this size.
	FrameSizeMs int

	// EnergyThreshold is the mean absolute sample amplitude (in 16-bit PCM
	// units, so 0–32767) above which a frame counts as speech.
	EnergyThreshold float64

	// MinSpeechFrames is the number of consecutive speech frames required
	// before an utterance start is declared.
	MinSpeechFrames int

	// SilenceFrames is the number of consecutive silence frames, after an
	// utterance has started, required before the utterance end is declared.
	// Deliberately larger than MinSpeechFrames: mid-sentence pauses must not
	// end the utterance.
	SilenceFrames int
}

// Default tuning for 20 ms frames. Start after ~60 ms of speech, end after
// ~600 ms of silence.
const (
	DefaultEnergyThreshold = 500.0
	DefaultMinSpeechFrames = 3
	DefaultSilenceFrames   = 30
)

// Validate reports whether the configuration is usable.
func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return errors.New("vad: sample rate must be positive")
	case c.FrameSizeMs <= 0:
		return errors.New("vad: frame size must be positive")
	case c.EnergyThreshold <= 0:
		return errors.New("vad: energy threshold must be positive")
	case c.MinSpeechFrames <= 0:
		return errors.New("vad: min speech frames must be positive")
	case c.SilenceFrames <= 0:
		return errors.New("vad: silence frames must be positive")
	}
	return nil
}

// Detector is an active VAD session for a single audio stream.
type Detector interface {
	// ProcessFrame analyses one audio frame and returns the detection result.
	// The frame must be raw little-endian PCM16 matching the Config's sample
	// rate and frame size. It is called synchronously on the audio path and
	// must not block.
	ProcessFrame(frame []byte) (Event, error)

	// Reset clears accumulated hysteresis state without discarding the
	// detector. Use when the stream is interrupted (e.g., after barge-in
	// cancellation) so stale counters do not affect the next segment.
	Reset()
}

// Engine is the factory for detectors, implemented by each VAD backend.
type Engine interface {
	// NewDetector creates a detector with the given configuration. Returns an
	// error if the configuration is invalid.
	NewDetector(cfg Config) (Detector, error)
}
