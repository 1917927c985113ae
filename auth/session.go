package auth

import (
	"sync"

	"github.com/courseledger/walletgate/core"
)

// Subscriber receives a session snapshot after every mutation.
type Subscriber func(core.Session)

// SessionManager owns the process-wide session with single-writer
// discipline: only the handshake and the logout path in this package mutate
// it. Everyone else reads snapshots or subscribes.
type SessionManager struct {
	mu      sync.RWMutex
	current core.Session
	subs    map[int]Subscriber
	nextSub int
}

// NewSessionManager creates a manager with an idle session.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		current: core.Session{Status: core.StatusIdle},
		subs:    make(map[int]Subscriber),
	}
}

// Snapshot returns a copy of the current session.
func (m *SessionManager) Snapshot() core.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Subscribe registers a callback invoked on every session change. The
// returned function cancels the subscription.
func (m *SessionManager) Subscribe(fn Subscriber) (cancel func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// set replaces the session and notifies subscribers. Unexported on purpose:
// mutation is reserved for the handshake and logout paths in this package.
func (m *SessionManager) set(s core.Session) {
	m.mu.Lock()
	m.current = s
	subs := make([]Subscriber, 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
}

// setStatus updates only the lifecycle status, preserving the rest.
func (m *SessionManager) setStatus(status core.LoginStatus) {
	m.mu.Lock()
	s := m.current
	s.Status = status
	m.current = s
	subs := make([]Subscriber, 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
}
