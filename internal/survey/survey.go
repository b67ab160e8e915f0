package survey

import (
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

//go:embed survey.yaml
var definition []byte

var defaultSurvey = mustParse(definition)

const (
	// CodePMQA ends the survey at question 1 with the organisational-management category.
	CodePMQA Code = "A3"
	// CodeTooShort rejects works that have been in use for less than a year.
	CodeTooShort Code = "B0"
)

// MaxLabelLength is the LINE limit for a quick-reply postback label.
// Reference: https://developers.line.biz/en/reference/messaging-api/#postback-action
const MaxLabelLength = 20

// Code is an opaque answer identifier delivered back verbatim in a postback.
type Code string

// Prefix returns the question prefix a code belongs to ("A", "B" or "C").
func (c Code) Prefix() string {
	if c == "" {
		return ""
	}
	return string(c[0])
}

type Option struct {
	Code  Code   `yaml:"code"`
	Label string `yaml:"label"` // Max 20 chars
	Text  string `yaml:"text"`  // Echoed as the user's message when tapped
}

type Question struct {
	Prefix  string   `yaml:"prefix"`
	Text    string   `yaml:"text"`
	Options []Option `yaml:"options"`
}

// Option reports whether code is one of the question's options.
func (q Question) Option(code Code) (Option, bool) {
	return lo.Find(q.Options, func(o Option) bool { return o.Code == code })
}

// Key is an (A, B, C) answer triple.
type Key [3]Code

type outcome struct {
	Answers []Code `yaml:"answers"`
	Label   string `yaml:"label"`
}

type document struct {
	Questions []Question `yaml:"questions"`
	Outcomes  []outcome  `yaml:"outcomes"`
}

// Survey holds the fixed questions and the decision table. It is immutable after Parse.
type Survey struct {
	questions []Question
	outcomes  map[Key]string
}

// Default returns the survey embedded in the binary.
func Default() *Survey { return defaultSurvey }

// Parse decodes and validates a survey definition.
func Parse(data []byte) (*Survey, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding survey: %w", err)
	}

	if len(doc.Questions) != len(Key{}) {
		return nil, fmt.Errorf("survey must have %d questions, got %d", len(Key{}), len(doc.Questions))
	}

	var errs []error
	for i, q := range doc.Questions {
		if q.Prefix == "" || len(q.Options) == 0 {
			errs = append(errs, fmt.Errorf("question %d: prefix and options are required", i+1))
			continue
		}
		seen := make(map[Code]bool, len(q.Options))
		for _, o := range q.Options {
			switch {
			case o.Code.Prefix() != q.Prefix:
				errs = append(errs, fmt.Errorf("question %d: option %q does not start with %q", i+1, o.Code, q.Prefix))
			case seen[o.Code]:
				errs = append(errs, fmt.Errorf("question %d: duplicate option %q", i+1, o.Code))
			case utf8.RuneCountInString(o.Label) > MaxLabelLength:
				errs = append(errs, fmt.Errorf("question %d: label %q longer than %d chars", i+1, o.Label, MaxLabelLength))
			}
			seen[o.Code] = true
		}
	}

	outcomes := make(map[Key]string, len(doc.Outcomes))
	for _, o := range doc.Outcomes {
		if len(o.Answers) != len(Key{}) || strings.TrimSpace(o.Label) == "" {
			errs = append(errs, fmt.Errorf("outcome %v: need %d answers and a label", o.Answers, len(Key{})))
			continue
		}
		var key Key
		copy(key[:], o.Answers)
		for i, code := range key {
			if _, ok := doc.Questions[i].Option(code); !ok {
				errs = append(errs, fmt.Errorf("outcome %v: %q is not an option of question %d", o.Answers, code, i+1))
			}
		}
		if _, dup := outcomes[key]; dup {
			errs = append(errs, fmt.Errorf("outcome %v: duplicate answers", o.Answers))
		}
		outcomes[key] = o.Label
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid survey: %w", err)
	}

	return &Survey{questions: doc.Questions, outcomes: outcomes}, nil
}

func mustParse(data []byte) *Survey {
	s, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return s
}

// Question returns the question asked at step (0-based).
func (s *Survey) Question(step int) (Question, bool) {
	if step < 0 || step >= len(s.questions) {
		return Question{}, false
	}
	q := s.questions[step]
	q.Options = slices.Clone(q.Options)
	return q, true
}

// Lookup returns the outcome label for an answer triple.
func (s *Survey) Lookup(a, b, c Code) (string, bool) {
	label, ok := s.outcomes[Key{a, b, c}]
	return label, ok
}

// Len returns the number of decision table entries.
func (s *Survey) Len() int { return len(s.outcomes) }
