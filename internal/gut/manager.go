package gut

import (
	"context"
	"sync"
	"time"

	"github.com/tracerun/coreruntime/internal/cache"
	"github.com/tracerun/coreruntime/internal/domain"
)

// Manager owns the process-global per-session Critic map (SPEC_FULL.md
// §5), mirroring every ingested state to the optional Redis cache.
type Manager struct {
	mu      sync.RWMutex
	critics map[string]*Critic

	mirror *cache.GutMirror
}

func NewManager(mirror *cache.GutMirror) *Manager {
	return &Manager{critics: make(map[string]*Critic), mirror: mirror}
}

// Ingest routes a batch of events to the owning session's Critic,
// creating one on first use, and mirrors the resulting snapshot.
func (m *Manager) Ingest(ctx context.Context, sessionID string, events []domain.ResonanceEvent) domain.GutState {
	state := m.criticFor(sessionID).IngestBatch(events)
	m.mirror.Mirror(ctx, sessionID, state)
	return state
}

// State returns a session's current read-only snapshot, creating a fresh
// Calm Critic if the session has not been seen before.
func (m *Manager) State(sessionID string) domain.GutState {
	return m.criticFor(sessionID).State()
}

// ClearSession drops a session's Critic from the map entirely, so the
// next use of the session starts from a fresh Calm Critic, matching "no
// emotional surveillance" past session end.
func (m *Manager) ClearSession(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.critics, sessionID)
}

// IdleSince returns the session_ids whose Critic has not been touched
// since before the cutoff, for the scheduled idle-reap job. A Critic
// exposes no direct "last touched" field, so this uses LastUpdated on its
// current snapshot as the activity marker.
func (m *Manager) IdleSince(threshold time.Duration) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-threshold)
	var idle []string
	for sessionID, c := range m.critics {
		if c.State().LastUpdated.Before(cutoff) {
			idle = append(idle, sessionID)
		}
	}
	return idle
}

// ReapIdle clears the Critics for the given session ids, rather than
// dropping them outright, matching "explicit clear is a separate control
// path" applied on a timer.
func (m *Manager) ReapIdle(sessionIDs []string) {
	m.mu.RLock()
	for _, id := range sessionIDs {
		if c, ok := m.critics[id]; ok {
			c.Clear()
		}
	}
	m.mu.RUnlock()
}

func (m *Manager) criticFor(sessionID string) *Critic {
	m.mu.RLock()
	c, ok := m.critics[sessionID]
	m.mu.RUnlock()
	if ok {
		return c
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.critics[sessionID]; ok {
		return c
	}
	c = New()
	m.critics[sessionID] = c
	return c
}
