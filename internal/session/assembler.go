package session

import (
	"time"

	"github.com/RupeekSJ/ai-calling-Somil/pkg/audio"
	"github.com/RupeekSJ/ai-calling-Somil/pkg/vad"
)

// Utterance is one sealed span of caller speech, ready for transcription.
// It is never mutated after sealing.
type Utterance struct {
	// PCM is the speech audio at the pipeline sample rate.
	PCM []byte

	// Start and End are stream timestamps of the first and last frame.
	Start time.Duration
	End   time.Duration
}

// Duration is the audible length of the utterance.
func (u *Utterance) Duration() time.Duration {
	return u.End - u.Start
}

// AssemblerConfig tunes utterance assembly.
type AssemblerConfig struct {
	// PrerollFrames is how many pre-speech frames to retain. The VAD
	// declares speech a few frames late, so the assembler keeps a ring of
	// recent frames and prepends them when speech starts, recovering the
	// clipped onset.
	PrerollFrames int

	// MinBytes discards sealed utterances shorter than this; sub-syllable
	// blips are noise, not speech.
	MinBytes int

	// MaxBytes force-seals an utterance that grows past this, bounding
	// memory and transcription size for a caller who never pauses.
	MaxBytes int
}

// Assembler accumulates speech frames between VAD boundaries into sealed
// Utterances. It is owned by a single session goroutine and is not safe for
// concurrent use.
type Assembler struct {
	cfg AssemblerConfig

	preroll []audio.AudioFrame

	active bool
	pcm    []byte
	start  time.Duration
	end    time.Duration
}

// NewAssembler returns an Assembler with the given tuning.
func NewAssembler(cfg AssemblerConfig) *Assembler {
	return &Assembler{cfg: cfg}
}

// Active reports whether an utterance is currently being assembled.
func (a *Assembler) Active() bool { return a.active }

// Observe feeds one frame plus its VAD event. It returns a sealed Utterance
// when the frame completes one, or nil.
func (a *Assembler) Observe(frame audio.AudioFrame, ev vad.Event) *Utterance {
	switch ev.Type {
	case vad.SpeechStart:
		a.begin(frame)
	case vad.SpeechContinue:
		if !a.active {
			// Barge-in restarts the detector mid-speech; recover by
			// treating the first frame seen as the onset.
			a.begin(frame)
			break
		}
		a.append(frame)
	case vad.SpeechEnd:
		if !a.active {
			return nil
		}
		a.append(frame)
		return a.Seal()
	default:
		a.pushPreroll(frame)
		return nil
	}

	if a.cfg.MaxBytes > 0 && len(a.pcm) >= a.cfg.MaxBytes {
		return a.Seal()
	}
	return nil
}

// Seal closes the in-progress utterance and returns it, or nil when nothing
// was being assembled or the audio is too short to be speech.
func (a *Assembler) Seal() *Utterance {
	if !a.active {
		return nil
	}
	u := &Utterance{PCM: a.pcm, Start: a.start, End: a.end}
	a.active = false
	a.pcm = nil
	if len(u.PCM) < a.cfg.MinBytes {
		return nil
	}
	return u
}

// Reset discards any in-progress utterance and the preroll ring.
func (a *Assembler) Reset() {
	a.active = false
	a.pcm = nil
	a.preroll = a.preroll[:0]
}

func (a *Assembler) begin(frame audio.AudioFrame) {
	a.active = true
	a.start = frame.Timestamp
	a.pcm = a.pcm[:0]
	if len(a.preroll) > 0 {
		a.start = a.preroll[0].Timestamp
		for _, f := range a.preroll {
			a.pcm = append(a.pcm, f.Data...)
		}
		a.preroll = a.preroll[:0]
	}
	a.pcm = append(a.pcm, frame.Data...)
	a.end = frame.Timestamp + frame.Duration()
}

func (a *Assembler) append(frame audio.AudioFrame) {
	a.pcm = append(a.pcm, frame.Data...)
	a.end = frame.Timestamp + frame.Duration()
}

func (a *Assembler) pushPreroll(frame audio.AudioFrame) {
	if a.cfg.PrerollFrames <= 0 {
		return
	}
	// Copy the data: inbound frames may share a decode buffer.
	f := frame
	f.Data = append([]byte(nil), frame.Data...)
	a.preroll = append(a.preroll, f)
	if len(a.preroll) > a.cfg.PrerollFrames {
		a.preroll = a.preroll[1:]
	}
}
