package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/smartquiz/smartquiz/internal/survey"
)

var (
	ErrNoSession  = errors.New("no session")
	ErrOutOfOrder = errors.New("answer out of order")
)

// Field names the answer slot a step fills.
type Field int

const (
	FieldA Field = iota
	FieldB
	FieldC
)

func (f Field) String() string {
	switch f {
	case FieldA:
		return "A"
	case FieldB:
		return "B"
	case FieldC:
		return "C"
	}
	return fmt.Sprintf("Field(%d)", int(f))
}

// Session is one user's progress through the survey.
// Step is the index of the question being awaited and also the next Field to fill.
type Session struct {
	Step      int
	A, B, C   survey.Code
	UpdatedAt time.Time
}

// Store keeps sessions in memory for the life of the process.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Get returns a copy of the user's session, if any.
func (s *Store) Get(userID string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// Reset replaces any session for the user with a fresh one awaiting the first answer.
func (s *Store) Reset(userID string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := &Session{UpdatedAt: s.now()}
	s.sessions[userID] = sess
	return *sess
}

// Advance records code in field and moves to the next step.
// The field must be the one the current step expects.
func (s *Store) Advance(userID string, field Field, code survey.Code) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		return Session{}, ErrNoSession
	}
	if int(field) != sess.Step {
		return *sess, fmt.Errorf("%w: step %d cannot take %s", ErrOutOfOrder, sess.Step, field)
	}

	switch field {
	case FieldA:
		sess.A = code
	case FieldB:
		sess.B = code
	case FieldC:
		sess.C = code
	}
	sess.Step++
	sess.UpdatedAt = s.now()
	return *sess, nil
}

// Clear removes the user's session.
func (s *Store) Clear(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

// Prune removes sessions not updated within maxAge and returns how many were dropped.
func (s *Store) Prune(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	now := s.now()
	for userID, sess := range s.sessions {
		if now.Sub(sess.UpdatedAt) > maxAge {
			delete(s.sessions, userID)
			removed++
		}
	}
	return removed
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
