// Package agents implements the process-local agent registry
// (SPEC_FULL.md §4.6): a mutex-guarded map from agent_id to descriptor,
// with no load balancing and no persistence.
package agents

import (
	"sync"
	"time"

	"github.com/tracerun/coreruntime/internal/domain"
	"github.com/tracerun/coreruntime/internal/runtimeerr"
)

// Registry is a process-local map from agent_id to Agent, grounded on the
// teacher Spawner's mutex-guarded agent map generalized from
// Aider-process-specific fields to the capability-typed Agent descriptor.
// Deliberately not SQLite-backed, unlike the teacher's own agent state:
// the spec names this a process-local map.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*domain.Agent
}

func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]*domain.Agent)}
}

// Register adds or replaces an agent descriptor, defaulting its status to
// Available and stamping LastHeartbeat.
func (r *Registry) Register(a *domain.Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.Status == "" {
		a.Status = domain.AgentStatusAvailable
	}
	a.LastHeartbeat = time.Now().UTC()
	r.agents[a.AgentID] = a
}

// Deregister removes an agent, returning false if it was not present.
func (r *Registry) Deregister(agentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.agents[agentID]; !ok {
		return false
	}
	delete(r.agents, agentID)
	return true
}

// Get returns a copy of the agent descriptor, or nil if not found.
func (r *Registry) Get(agentID string) *domain.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.agents[agentID]
	if !ok {
		return nil
	}
	cp := *a
	return &cp
}

// List returns a snapshot of all registered agents.
func (r *Registry) List() []*domain.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Agent, 0, len(r.agents))
	for _, a := range r.agents {
		cp := *a
		out = append(out, &cp)
	}
	return out
}

// FindByCapability performs a linear scan for the first Available agent
// advertising capability, grounded on find_agent_by_capability's plain
// iteration (no load balancing, first match wins).
func (r *Registry) FindByCapability(capability string) *domain.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.agents {
		if a.Status != domain.AgentStatusAvailable {
			continue
		}
		for _, c := range a.Capabilities {
			if c.Name == capability {
				cp := *a
				return &cp
			}
		}
	}
	return nil
}

// SetStatus transitions an agent's status, stamping LastHeartbeat.
func (r *Registry) SetStatus(agentID string, status domain.AgentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[agentID]
	if !ok {
		return runtimeerr.Wrap(runtimeerr.KindSessionNotFound, "agent not found: "+agentID, nil)
	}
	a.Status = status
	a.LastHeartbeat = time.Now().UTC()
	return nil
}

// IncrementTaskCount updates an agent's completed/failed task counters.
func (r *Registry) IncrementTaskCount(agentID string, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[agentID]
	if !ok {
		return
	}
	if success {
		a.TasksCompleted++
	} else {
		a.TasksFailed++
	}
}

// StaleSince returns the agent_ids whose LastHeartbeat is older than
// threshold, for the scheduled stale-agent sweep (§4.x maintenance).
func (r *Registry) StaleSince(threshold time.Duration) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-threshold)
	var stale []string
	for id, a := range r.agents {
		if a.LastHeartbeat.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	return stale
}

// MarkOffline transitions a set of agent_ids to Offline, used by the
// stale-agent sweep.
func (r *Registry) MarkOffline(agentIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range agentIDs {
		if a, ok := r.agents[id]; ok {
			a.Status = domain.AgentStatusOffline
		}
	}
}
