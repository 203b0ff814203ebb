package bridge

import (
	"errors"
	"sync"
)

// ErrSessionExists is returned when a start signal arrives for a call id
// that already has a live session.
var ErrSessionExists = errors.New("session already exists for call")

// Registry is the process-scoped map of active calls, keyed by call SID.
// Lookup and cleanup only; calls never coordinate through it.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers a session under callSID. A concurrent duplicate start is
// rejected rather than leaking the earlier session.
func (r *Registry) Add(callSID string, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[callSID]; exists {
		return ErrSessionExists
	}
	r.sessions[callSID] = s
	return nil
}

// Get returns the session for callSID, if any.
func (r *Registry) Get(callSID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[callSID]
	return s, ok
}

// Remove deletes the entry for callSID. Idempotent: stop signal and
// transport close may both attempt removal.
func (r *Registry) Remove(callSID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, callSID)
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Snapshots returns a point-in-time view of every registered session.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	out := make([]Snapshot, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Metrics())
	}
	return out
}

// EndAll ends every registered session and empties the registry. Used on
// graceful shutdown.
func (r *Registry) EndAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.End()
	}
}
