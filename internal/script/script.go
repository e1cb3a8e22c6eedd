// Package script holds the dialog script a call follows: the opening pitch,
// the ordered guidance steps, the FAQ knowledge base, and the fixed auxiliary
// lines (re-prompt, farewell, closing, handoff, escalation).
//
// The built-in default is the Rupeek pre-approved personal loan script.
// Deployments can replace it with a YAML file; the structure is validated on
// load so a broken script fails startup instead of a live call.
package script

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// FAQ is one entry of the script's knowledge base. A caller question that
// contains any of the keywords is answered with Answer.
type FAQ struct {
	// Key identifies the topic (e.g., "interest") in logs and metrics.
	Key string `yaml:"key"`

	// Keywords are matched case-insensitively as substrings of the
	// transcript.
	Keywords []string `yaml:"keywords"`

	// Answer is spoken when the entry matches.
	Answer string `yaml:"answer"`
}

// Script is a complete dialog script.
type Script struct {
	// Language is the BCP-47 tag the script is written in. It is passed
	// through to the speech providers.
	Language string `yaml:"language"`

	// Pitch is the opening line spoken as soon as the call starts.
	Pitch string `yaml:"pitch"`

	// Steps are the ordered guidance steps spoken one at a time.
	Steps []string `yaml:"steps"`

	// FAQs is the knowledge base consulted for question intents.
	FAQs []FAQ `yaml:"faqs"`

	// Reprompt is spoken when the caller was not understood.
	Reprompt string `yaml:"reprompt"`

	// Escalation is spoken just before handing off after repeated
	// misunderstandings.
	Escalation string `yaml:"escalation"`

	// Handoff is spoken when the caller asks for a human.
	Handoff string `yaml:"handoff"`

	// Farewell is spoken when the caller declines the offer.
	Farewell string `yaml:"farewell"`

	// Closing is spoken when the caller finishes or completes all steps.
	Closing string `yaml:"closing"`
}

// Default returns the built-in Rupeek personal loan script.
func Default() *Script {
	return &Script{
		Language: "en-IN",
		Pitch: "Hello, this is Rupeek personal loan assistant. " +
			"I am calling to help you with your pre approved loan offer. " +
			"Shall I guide you through the disbursal process?",
		Steps: []string{
			"Open the Rupeek app.",
			"On the home screen, click the Cash banner.",
			"Check your pre-approved limit.",
			"Slide the slider to select the amount and tenure required.",
			"Tick the consent box to proceed.",
			"Add your bank account if not visible.",
			"Update your email id and address, then select proceed to mandate setup.",
			"Setup autopay for EMI deduction on 5th of each month.",
			"Once mandate setup is done, you will see the loan summary page.",
			"Review loan details and click Get Money Now.",
			"Enter the OTP sent to your mobile. Loan disbursal will be initiated within 30 to 40 seconds.",
		},
		FAQs: []FAQ{
			{
				Key:      "interest",
				Keywords: []string{"interest", "rate"},
				Answer: "The interest rate starts from ten percent per annum " +
					"and is personalized for each customer.",
			},
			{
				Key:      "limit",
				Keywords: []string{"limit", "pre approved", "preapproved"},
				Answer: "Your pre approved limit is already sanctioned. " +
					"Please check the Rupeek app for the exact amount.",
			},
			{
				Key:      "emi",
				Keywords: []string{"emi", "repay", "repayment"},
				Answer: "Your EMI will be auto deducted from your linked bank account " +
					"on the fifth of every month.",
			},
		},
		Reprompt: "I can help you with interest rate, loan limit, or repayment. " +
			"Please tell me your question.",
		Escalation: "I am having trouble understanding you. " +
			"Let me connect you to one of our loan specialists.",
		Handoff:  "Sure, connecting you to one of our loan specialists. Please stay on the line.",
		Farewell: "No worries! Have a nice day.",
		Closing:  "Congratulations! You have completed the loan disbursal process. Have a nice day.",
	}
}

// Load reads the YAML script file at path and returns a validated [Script].
func Load(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("script: open %q: %w", path, err)
	}
	defer f.Close()

	s, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("script: parse %q: %w", path, err)
	}
	return s, nil
}

// LoadFromReader decodes a YAML script from r and validates the result.
// Useful in tests where scripts are constructed from string literals.
func LoadFromReader(r io.Reader) (*Script, error) {
	s := &Script{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil {
		return nil, fmt.Errorf("script: decode yaml: %w", err)
	}
	if err := Validate(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks that s contains a speakable, coherent script.
// It returns a joined error listing all validation failures found.
func Validate(s *Script) error {
	var errs []error

	if s.Pitch == "" {
		errs = append(errs, errors.New("script: pitch must not be empty"))
	}
	if len(s.Steps) == 0 {
		errs = append(errs, errors.New("script: at least one step is required"))
	}
	for i, step := range s.Steps {
		if step == "" {
			errs = append(errs, fmt.Errorf("script: step %d must not be empty", i))
		}
	}
	for i, faq := range s.FAQs {
		if faq.Key == "" {
			errs = append(errs, fmt.Errorf("script: faq %d: key must not be empty", i))
		}
		if len(faq.Keywords) == 0 {
			errs = append(errs, fmt.Errorf("script: faq %q: at least one keyword is required", faq.Key))
		}
		if faq.Answer == "" {
			errs = append(errs, fmt.Errorf("script: faq %q: answer must not be empty", faq.Key))
		}
	}
	if s.Reprompt == "" {
		errs = append(errs, errors.New("script: reprompt must not be empty"))
	}
	if s.Farewell == "" {
		errs = append(errs, errors.New("script: farewell must not be empty"))
	}
	if s.Closing == "" {
		errs = append(errs, errors.New("script: closing must not be empty"))
	}
	if s.Handoff == "" {
		errs = append(errs, errors.New("script: handoff must not be empty"))
	}
	if s.Escalation == "" {
		errs = append(errs, errors.New("script: escalation must not be empty"))
	}

	return errors.Join(errs...)
}

// FAQByKey returns the FAQ entry with the given key, or nil.
func (s *Script) FAQByKey(key string) *FAQ {
	for i := range s.FAQs {
		if s.FAQs[i].Key == key {
			return &s.FAQs[i]
		}
	}
	return nil
}
