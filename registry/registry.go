// Package registry tracks the set of live sessions belonging to a host,
// so the host can broadcast, enumerate players, observe traffic, or shut
// down cleanly. Grounded on internal/manager/vpn_manager.go's VPNManager:
// a mutex-guarded map plus accessor methods, repurposed from tracking one
// outbound VPN connection's status to tracking N inbound game sessions.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the subset of a ClientSession the registry needs in order to
// message or disconnect it, kept narrow so this package never has to
// import the protocol package that defines ClientSession.
type Session interface {
	SendMessage(message string)
	Kick(reason string)
	SetBlock(x, y, z uint16, block uint8)
}

// Entry tracks one registered session's lifetime and traffic counters.
// Start time is stamped once at registration; bytes-in/out and
// last-seen opcode are updated by the host as frames are dispatched, and
// read by the metrics collector at scrape time.
type Entry struct {
	Session   Session
	StartTime time.Time

	mu         sync.Mutex
	bytesIn    uint64
	bytesOut   uint64
	lastOpcode byte
}

// Touch records the session's current cumulative byte counts and the
// opcode it just dispatched.
func (e *Entry) Touch(bytesIn, bytesOut uint64, lastOpcode byte) {
	e.mu.Lock()
	e.bytesIn = bytesIn
	e.bytesOut = bytesOut
	e.lastOpcode = lastOpcode
	e.mu.Unlock()
}

// Snapshot returns the entry's current byte counts and last-seen opcode.
func (e *Entry) Snapshot() (bytesIn, bytesOut uint64, lastOpcode byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bytesIn, e.bytesOut, e.lastOpcode
}

// Registry is a mutex-guarded map of live sessions keyed by session ID.
// It never retains an entry after that session closes.
type Registry struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*Entry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[uuid.UUID]*Entry)}
}

// Add registers s under id and returns the Entry tracking it. The caller
// is responsible for calling Remove when the session closes.
func (r *Registry) Add(id uuid.UUID, s Session) *Entry {
	e := &Entry{Session: s, StartTime: time.Now()}
	r.mu.Lock()
	r.entries[id] = e
	r.mu.Unlock()
	return e
}

// Remove deregisters id. Safe to call more than once.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

// Len reports the number of currently registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Each calls fn once per registered session. fn must not add or remove
// entries from the registry.
func (r *Registry) Each(fn func(id uuid.UUID, e *Entry)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, e := range r.entries {
		fn(id, e)
	}
}

// Broadcast kicks every registered session with a disconnect-with-reason
// frame. Sessions are collected under the lock and kicked after it is
// released, since a kicked session may remove itself from the registry.
func (r *Registry) Broadcast(reason string) {
	r.mu.RLock()
	sessions := make([]Session, 0, len(r.entries))
	for _, e := range r.entries {
		sessions = append(sessions, e.Session)
	}
	r.mu.RUnlock()
	for _, s := range sessions {
		s.Kick(reason)
	}
}

// SendAll sends message as a chat message to every registered session.
// Sessions are collected under the lock and messaged after it is
// released, since a session whose write fails may remove itself.
func (r *Registry) SendAll(message string) {
	r.mu.RLock()
	sessions := make([]Session, 0, len(r.entries))
	for _, e := range r.entries {
		sessions = append(sessions, e.Session)
	}
	r.mu.RUnlock()
	for _, s := range sessions {
		s.SendMessage(message)
	}
}
