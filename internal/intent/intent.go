// Package intent classifies caller transcripts into the closed set of dialog
// intents the state machine consumes.
//
// Classification is deliberately simple: case-insensitive substring matching
// against fixed phrase lists, tried in a strict priority order so that short
// decisive words ("yes") beat longer FAQ phrase matches found later in the
// sentence. No tokenization or stemming is performed; the first matching rule
// wins and substring overlap is accepted.
//
// A Jaro-Winkler fuzzy pass over FAQ keywords runs only after every exact
// rule has missed, to catch near-miss transcriptions ("intrest rate") without
// ever overriding an exact match.
package intent

import (
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/RupeekSJ/ai-calling-Somil/internal/script"
)

// Kind enumerates the dialog intents.
type Kind int

const (
	// Empty is produced for blank transcripts (silence or STT failure).
	Empty Kind = iota
	// Greeting covers salutations that carry no dialog decision.
	Greeting
	// Affirm is consent to proceed.
	Affirm
	// Deny is refusal of the offer.
	Deny
	// Next advances to the following step.
	Next
	// Previous returns to the preceding step.
	Previous
	// Repeat re-speaks the current step.
	Repeat
	// Done ends the guidance early.
	Done
	// HumanRequest asks for a live agent.
	HumanRequest
	// FAQ asks a question answered by the script's knowledge base; the
	// Intent carries the matched topic key.
	FAQ
	// Unknown is anything no rule matched.
	Unknown
)

// String returns the lowercase name of the kind, for logs and metrics.
func (k Kind) String() string {
	switch k {
	case Empty:
		return "empty"
	case Greeting:
		return "greeting"
	case Affirm:
		return "affirm"
	case Deny:
		return "deny"
	case Next:
		return "next"
	case Previous:
		return "previous"
	case Repeat:
		return "repeat"
	case Done:
		return "done"
	case HumanRequest:
		return "human_request"
	case FAQ:
		return "faq"
	case Unknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Intent is a classified transcript. Topic is set only for FAQ intents.
type Intent struct {
	Kind  Kind
	Topic string
}

// DefaultFuzzyThreshold is the minimum Jaro-Winkler score for the fuzzy FAQ
// fallback. Matches the threshold that works well for short spoken keywords.
const DefaultFuzzyThreshold = 0.85

// phrase lists, tried in priority order. Greetings come first so "hello yes"
// still affirms on the second pass a caller usually makes, then decisions,
// then navigation, then the handoff escape hatch.
var (
	greetingPhrases = []string{"hello", "hi there", "good morning", "good afternoon", "good evening", "namaste"}
	affirmPhrases   = []string{"yes", "yeah", "yep", "sure", "ok", "okay", "interested", "haan", "theek hai", "go ahead", "proceed"}
	denyPhrases     = []string{"no", "not interested", "nahi", "cancel", "stop calling", "don't call", "do not call"}
	nextPhrases     = []string{"next", "continue", "done with this", "what next", "aage", "then"}
	previousPhrases = []string{"previous", "go back", "before", "last step", "peeche"}
	repeatPhrases   = []string{"repeat", "again", "say that again", "pardon", "didn't hear", "did not hear", "phir se"}
	donePhrases     = []string{"that's all", "that is all", "i'm done", "i am done", "finished", "complete", "stop", "exit", "bye", "goodbye"}
	humanPhrases    = []string{"human", "agent", "representative", "real person", "customer care", "executive", "talk to someone"}
)

// Classifier maps transcripts to intents for one script.
// It is read-only after construction and safe for concurrent use.
type Classifier struct {
	faqs           []script.FAQ
	fuzzyThreshold float64
}

// Option is a functional option for configuring a [Classifier].
type Option func(*Classifier)

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required for the
// fuzzy FAQ fallback. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(c *Classifier) {
		c.fuzzyThreshold = threshold
	}
}

// New returns a Classifier over the given script's FAQ knowledge base.
func New(s *script.Script, opts ...Option) *Classifier {
	c := &Classifier{
		faqs:           s.FAQs,
		fuzzyThreshold: DefaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Classify maps text to an Intent. Pure function of the input: no state is
// read or written, so results are reproducible for any (script, text) pair.
func (c *Classifier) Classify(text string) Intent {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return Intent{Kind: Empty}
	}

	// Greetings only count when nothing actionable follows; "hi, yes
	// please" must still affirm.
	if containsAny(text, greetingPhrases) && !containsAny(text, affirmPhrases) &&
		!containsAny(text, denyPhrases) && !containsAny(text, humanPhrases) {
		return Intent{Kind: Greeting}
	}
	// "not interested" contains the affirm phrase "interested"; a deny
	// phrase anywhere in the text vetoes the affirm rule.
	if containsAny(text, affirmPhrases) && !containsAny(text, denyPhrases) {
		return Intent{Kind: Affirm}
	}
	if containsAny(text, denyPhrases) {
		return Intent{Kind: Deny}
	}
	if containsAny(text, nextPhrases) {
		return Intent{Kind: Next}
	}
	if containsAny(text, previousPhrases) {
		return Intent{Kind: Previous}
	}
	if containsAny(text, repeatPhrases) {
		return Intent{Kind: Repeat}
	}
	if containsAny(text, donePhrases) {
		return Intent{Kind: Done}
	}
	if containsAny(text, humanPhrases) {
		return Intent{Kind: HumanRequest}
	}
	for _, faq := range c.faqs {
		if containsAny(text, faq.Keywords) {
			return Intent{Kind: FAQ, Topic: faq.Key}
		}
	}
	if topic, ok := c.fuzzyFAQ(text); ok {
		return Intent{Kind: FAQ, Topic: topic}
	}
	return Intent{Kind: Unknown}
}

// fuzzyFAQ compares each word of the transcript against every FAQ keyword
// with Jaro-Winkler similarity. It runs only after all exact rules missed.
func (c *Classifier) fuzzyFAQ(text string) (string, bool) {
	bestScore := c.fuzzyThreshold
	bestTopic := ""
	for _, word := range strings.Fields(text) {
		for _, faq := range c.faqs {
			for _, kw := range faq.Keywords {
				if strings.ContainsRune(kw, ' ') {
					// Multi-word keywords only match exactly.
					continue
				}
				if s := matchr.JaroWinkler(word, kw, false); s >= bestScore {
					bestScore = s
					bestTopic = faq.Key
				}
			}
		}
	}
	return bestTopic, bestTopic != ""
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
