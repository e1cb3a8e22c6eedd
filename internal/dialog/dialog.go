// Package dialog implements the scripted conversation state machine.
//
// A Machine tracks one call's position in the script: the opening pitch, the
// ordered guidance steps, and the two terminal outcomes (normal termination
// and human handoff). Advancing is a pure function of (current phase, intent)
// plus the failure counter; for a fixed pair the resulting phase and reply
// are always identical.
//
// Repeated misunderstandings escalate: each Unknown or Empty intent arms a
// failure counter, debounced by a cooldown so one garbled sentence that
// produces several rapid turns only counts once, and when the counter reaches
// its limit the call is handed to a human instead of looping forever.
package dialog

import (
	"time"

	"github.com/RupeekSJ/ai-calling-Somil/internal/intent"
	"github.com/RupeekSJ/ai-calling-Somil/internal/script"
)

// Phase is the coarse dialog state. Step position within [PhaseSteps] is
// tracked separately by the Machine.
type Phase int

const (
	// PhasePitch is the opening offer, awaiting consent.
	PhasePitch Phase = iota
	// PhaseSteps walks the caller through the guidance steps.
	PhaseSteps
	// PhaseHandoff is terminal: the call is being passed to a human.
	PhaseHandoff
	// PhaseTerminated is terminal: the call ended normally.
	PhaseTerminated
)

// String returns the lowercase name of the phase, for logs and metrics.
func (p Phase) String() string {
	switch p {
	case PhasePitch:
		return "pitch"
	case PhaseSteps:
		return "steps"
	case PhaseHandoff:
		return "handoff"
	case PhaseTerminated:
		return "terminated"
	default:
		return "invalid"
	}
}

// Terminal reports whether no further intents will be consumed.
func (p Phase) Terminal() bool {
	return p == PhaseHandoff || p == PhaseTerminated
}

// Reply is the machine's reaction to one intent.
type Reply struct {
	// Text is what to speak. Empty means stay silent this turn.
	Text string

	// End marks the session for teardown once Text finishes streaming.
	End bool
}

const (
	// DefaultMaxFailures is how many debounced misunderstandings are
	// tolerated before handing off to a human.
	DefaultMaxFailures = 3

	// DefaultFailureCooldown debounces the failure counter. Turns that
	// fail within one cooldown of the previous failure count as the same
	// misunderstanding.
	DefaultFailureCooldown = 2 * time.Second
)

// Machine is one call's dialog state. It is owned by a single session
// goroutine and is not safe for concurrent use.
type Machine struct {
	script      *script.Script
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time

	phase       Phase
	step        int
	failures    int
	lastFailure time.Time
}

// Option is a functional option for configuring a [Machine].
type Option func(*Machine)

// WithMaxFailures overrides the misunderstanding limit. Default: 3.
func WithMaxFailures(n int) Option {
	return func(m *Machine) {
		m.maxFailures = n
	}
}

// WithFailureCooldown overrides the failure debounce window. Default: 2s.
func WithFailureCooldown(d time.Duration) Option {
	return func(m *Machine) {
		m.cooldown = d
	}
}

// WithClock overrides the time source. Tests use this to step through the
// cooldown window deterministically.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

// New returns a Machine at the start of the given script.
func New(s *script.Script, opts ...Option) *Machine {
	m := &Machine{
		script:      s,
		maxFailures: DefaultMaxFailures,
		cooldown:    DefaultFailureCooldown,
		now:         time.Now,
		phase:       PhasePitch,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase { return m.phase }

// Step returns the current step index. Meaningful only in [PhaseSteps].
func (m *Machine) Step() int { return m.step }

// Failures returns the current debounced failure count.
func (m *Machine) Failures() int { return m.failures }

// Prompt returns the line that introduces the current phase: the pitch, or
// the current step. It is what gets re-spoken after an FAQ answer and what a
// Repeat intent plays again.
func (m *Machine) Prompt() string {
	switch m.phase {
	case PhasePitch:
		return m.script.Pitch
	case PhaseSteps:
		return m.script.Steps[m.step]
	default:
		return ""
	}
}

// Opening returns the pitch spoken when the call starts, before any caller
// input is consumed.
func (m *Machine) Opening() string {
	return m.script.Pitch
}

// Advance consumes one classified intent and returns the reply to speak.
// Calling Advance in a terminal phase returns an empty reply.
func (m *Machine) Advance(in intent.Intent) Reply {
	if m.phase.Terminal() {
		return Reply{}
	}

	switch in.Kind {
	case intent.Empty, intent.Unknown:
		return m.fail()

	case intent.Greeting:
		// A bare salutation decides nothing; re-speak where we are.
		return Reply{Text: m.Prompt()}

	case intent.FAQ:
		if faq := m.script.FAQByKey(in.Topic); faq != nil {
			return Reply{Text: faq.Answer + " " + m.Prompt()}
		}
		return m.fail()

	case intent.HumanRequest:
		m.phase = PhaseHandoff
		return Reply{Text: m.script.Handoff, End: true}
	}

	switch m.phase {
	case PhasePitch:
		return m.advancePitch(in)
	case PhaseSteps:
		return m.advanceSteps(in)
	}
	return m.fail()
}

func (m *Machine) advancePitch(in intent.Intent) Reply {
	switch in.Kind {
	case intent.Affirm:
		m.phase = PhaseSteps
		m.step = 0
		m.resetFailures()
		return Reply{Text: m.script.Steps[0]}
	case intent.Deny:
		m.phase = PhaseTerminated
		return Reply{Text: m.script.Farewell, End: true}
	}
	return m.fail()
}

func (m *Machine) advanceSteps(in intent.Intent) Reply {
	switch in.Kind {
	// A plain "yes" after hearing a step means keep going.
	case intent.Next, intent.Affirm:
		if m.step+1 >= len(m.script.Steps) {
			m.phase = PhaseTerminated
			return Reply{Text: m.script.Closing, End: true}
		}
		m.step++
		m.resetFailures()
		return Reply{Text: m.script.Steps[m.step]}
	case intent.Previous:
		if m.step > 0 {
			m.step--
		}
		m.resetFailures()
		return Reply{Text: m.script.Steps[m.step]}
	case intent.Repeat:
		return Reply{Text: m.script.Steps[m.step]}
	case intent.Done, intent.Deny:
		m.phase = PhaseTerminated
		return Reply{Text: m.script.Closing, End: true}
	}
	return m.fail()
}

// fail arms the debounced failure counter and either re-prompts or, past the
// limit, escalates to human handoff.
func (m *Machine) fail() Reply {
	now := m.now()
	if m.failures == 0 || now.Sub(m.lastFailure) >= m.cooldown {
		m.failures++
		m.lastFailure = now
	}
	if m.failures >= m.maxFailures {
		m.resetFailures()
		m.phase = PhaseHandoff
		return Reply{Text: m.script.Escalation, End: true}
	}
	return Reply{Text: m.script.Reprompt}
}

func (m *Machine) resetFailures() {
	m.failures = 0
	m.lastFailure = time.Time{}
}
