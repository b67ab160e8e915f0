package quiz

import (
	"strings"

	"github.com/smartquiz/smartquiz/internal/session"
	"github.com/smartquiz/smartquiz/internal/survey"
)

// Kind classifies a reply for logging and tests.
type Kind string

const (
	KindQuestion Kind = "question"
	KindGuidance Kind = "guidance"
	KindResult   Kind = "result"
	KindPMQA     Kind = "pmqa"
	KindTooShort Kind = "too_short"
	KindNoMatch  Kind = "no_match"
)

// Reply is what the bot should send back. Options are only set for questions.
type Reply struct {
	Kind    Kind
	Text    string
	Options []survey.Option
}

// Terminal reports whether the reply ends the survey.
func (r *Reply) Terminal() bool {
	switch r.Kind {
	case KindResult, KindPMQA, KindTooShort, KindNoMatch:
		return true
	}
	return false
}

// Machine walks users through the survey. Callers must serialize calls for the
// same user id (see session.Manager).
type Machine struct {
	survey   *survey.Survey
	sessions *session.Store
}

func New(s *survey.Survey, sessions *session.Store) *Machine {
	return &Machine{survey: s, sessions: sessions}
}

// HandleText handles a free-text message. It always returns a reply.
func (m *Machine) HandleText(userID, text string) *Reply {
	if resetKeywords[strings.ToLower(strings.TrimSpace(text))] {
		m.sessions.Reset(userID)
		return m.ask(0)
	}

	if _, ok := m.sessions.Get(userID); !ok {
		m.sessions.Reset(userID)
		return m.ask(0)
	}

	return &Reply{Kind: KindGuidance, Text: guidanceMessage}
}

// HandlePostback handles a button code. It returns nil when the code does not
// fit the user's current step; such input is ignored without touching the session.
func (m *Machine) HandlePostback(userID string, code survey.Code) *Reply {
	// A user with no session is treated as awaiting question 1, but nothing is
	// stored unless the code is accepted.
	sess, exists := m.sessions.Get(userID)

	q, ok := m.survey.Question(sess.Step)
	if !ok || code.Prefix() != q.Prefix {
		return nil
	}
	if _, ok := q.Option(code); !ok {
		return nil
	}

	switch sess.Step {
	case 0:
		if code == survey.CodePMQA {
			m.sessions.Clear(userID)
			return done(KindPMQA, pmqaLabel)
		}
		if !exists {
			m.sessions.Reset(userID)
		}
		if _, err := m.sessions.Advance(userID, session.FieldA, code); err != nil {
			return nil
		}
		return m.ask(1)

	case 1:
		if code == survey.CodeTooShort {
			m.sessions.Clear(userID)
			return done(KindTooShort, tooShortMessage)
		}
		if _, err := m.sessions.Advance(userID, session.FieldB, code); err != nil {
			return nil
		}
		return m.ask(2)

	case 2:
		sess, err := m.sessions.Advance(userID, session.FieldC, code)
		if err != nil {
			return nil
		}
		m.sessions.Clear(userID)

		label, found := m.survey.Lookup(sess.A, sess.B, sess.C)
		if !found {
			return done(KindNoMatch, fallbackMessage)
		}
		return done(KindResult, label)
	}

	return nil
}

func (m *Machine) ask(step int) *Reply {
	q, _ := m.survey.Question(step)
	return &Reply{Kind: KindQuestion, Text: q.Text, Options: q.Options}
}

func done(kind Kind, msg string) *Reply {
	return &Reply{Kind: kind, Text: resultPrefix + msg}
}
