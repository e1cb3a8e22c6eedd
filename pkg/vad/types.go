package vad

// Event is the voice activity result for a single audio frame.
type Event struct {
	// Type is the detection result.
	Type EventType

	// Energy is the mean absolute sample amplitude of the frame, in 16-bit
	// PCM units. Useful for logging and threshold tuning.
	Energy float64
}

// EventType enumerates VAD detection states.
type EventType int

const (
	// Silence indicates no active utterance.
	Silence EventType = iota

	// SpeechStart indicates an utterance has just begun on this frame.
	SpeechStart

	// SpeechContinue indicates an ongoing utterance.
	SpeechContinue

	// SpeechEnd indicates the utterance has just ended on this frame.
	SpeechEnd
)

// String returns a short label for logging.
func (t EventType) String() string {
	switch t {
	case SpeechStart:
		return "speech_start"
	case SpeechContinue:
		return "speech_continue"
	case SpeechEnd:
		return "speech_end"
	default:
		return "silence"
	}
}
