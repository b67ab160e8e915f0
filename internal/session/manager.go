package session

import (
	"sync"
	"time"
)

// Manager serializes event processing per user so that two deliveries for the
// same user id cannot race on the session step.
type Manager struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu       sync.Mutex
	refs     int
	lastUsed time.Time
}

func NewManager() *Manager {
	return &Manager{
		locks: make(map[string]*userLock),
	}
}

// WithLock executes fn while holding the per-user mutex.
// Events from the same user are serialized; different users run in parallel.
func (m *Manager) WithLock(userID string, fn func() error) error {
	m.mu.Lock()
	ul, ok := m.locks[userID]
	if !ok {
		ul = &userLock{}
		m.locks[userID] = ul
	}
	ul.refs++
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		ul.refs--
		ul.lastUsed = time.Now()
		m.mu.Unlock()
	}()

	ul.mu.Lock()
	defer ul.mu.Unlock()

	return fn()
}

// Cleanup removes locks not used within maxAge. Locks held or waited on are kept.
func (m *Manager) Cleanup(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	now := time.Now()
	for userID, ul := range m.locks {
		if ul.refs == 0 && now.Sub(ul.lastUsed) > maxAge {
			delete(m.locks, userID)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked locks.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
