package maintenance

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tracerun/coreruntime/internal/agents"
	"github.com/tracerun/coreruntime/internal/domain"
	"github.com/tracerun/coreruntime/internal/gut"
)

func TestSweepStaleAgentsMarksOffline(t *testing.T) {
	registry := agents.NewRegistry()
	registry.Register(&domain.Agent{
		AgentID: "agent-1",
		Status:  domain.AgentStatusAvailable,
	})

	// Register stamps LastHeartbeat with the current time, so a negative
	// threshold puts the cutoff in the future and the agent counts as stale.
	s := NewSweeper(registry, gut.NewManager(nil), -time.Minute, time.Hour, zerolog.Nop())
	s.sweepStaleAgents()

	got := registry.Get("agent-1")
	if got.Status != domain.AgentStatusOffline {
		t.Errorf("expected agent marked offline, got status %s", got.Status)
	}
}

func TestSweepStaleAgentsLeavesFreshAgents(t *testing.T) {
	registry := agents.NewRegistry()
	registry.Register(&domain.Agent{
		AgentID:       "agent-1",
		Status:        domain.AgentStatusAvailable,
		LastHeartbeat: time.Now().UTC(),
	})

	s := NewSweeper(registry, gut.NewManager(nil), time.Minute, time.Hour, zerolog.Nop())
	s.sweepStaleAgents()

	got := registry.Get("agent-1")
	if got.Status != domain.AgentStatusAvailable {
		t.Errorf("expected fresh agent to stay available, got status %s", got.Status)
	}
}

func TestSweepIdleCriticsClearsIdleSessions(t *testing.T) {
	manager := gut.NewManager(nil)
	manager.Ingest(nil, "session-1", nil)

	s := NewSweeper(agents.NewRegistry(), manager, time.Minute, 0, zerolog.Nop())
	s.sweepIdleCritics()

	state := manager.State("session-1")
	if state.Mood != domain.MoodCalm {
		t.Errorf("expected cleared critic to reset to calm mood, got %s", state.Mood)
	}
}
