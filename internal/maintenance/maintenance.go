// Package maintenance runs the periodic sweeps that keep the agent
// registry and GutCritic population from accumulating stale entries:
// marking unresponsive agents offline and reaping idle session critics.
// Grounded on beeper-ai-bridge's pkg/cron usage of
// github.com/robfig/cron/v3 for scheduled background work.
package maintenance

import (
	"time"

	cronlib "github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/tracerun/coreruntime/internal/agents"
	"github.com/tracerun/coreruntime/internal/gut"
)

// Sweeper runs the registry stale-agent sweep and the GutCritic idle
// reap on their own cron schedules.
type Sweeper struct {
	cron *cronlib.Cron

	registry   *agents.Registry
	gutManager *gut.Manager

	staleAgentThreshold time.Duration
	idleCriticThreshold time.Duration

	log zerolog.Logger
}

// NewSweeper builds a Sweeper. staleAgentThreshold is how long an agent
// may go without a heartbeat before it is marked offline;
// idleCriticThreshold is how long a session's GutCritic may go without
// an ingest before it is cleared.
func NewSweeper(registry *agents.Registry, gutManager *gut.Manager, staleAgentThreshold, idleCriticThreshold time.Duration, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		cron:                cronlib.New(),
		registry:            registry,
		gutManager:          gutManager,
		staleAgentThreshold: staleAgentThreshold,
		idleCriticThreshold: idleCriticThreshold,
		log:                 log.With().Str("component", "maintenance").Logger(),
	}
}

// Start schedules both sweeps and begins running them. Returns an error
// if either cron expression fails to parse.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc("@every 30s", s.sweepStaleAgents); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@every 1m", s.sweepIdleCritics); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for any in-flight sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sweeper) sweepStaleAgents() {
	stale := s.registry.StaleSince(s.staleAgentThreshold)
	if len(stale) == 0 {
		return
	}
	s.registry.MarkOffline(stale)
	s.log.Info().Int("count", len(stale)).Msg("marked stale agents offline")
}

func (s *Sweeper) sweepIdleCritics() {
	idle := s.gutManager.IdleSince(s.idleCriticThreshold)
	if len(idle) == 0 {
		return
	}
	s.gutManager.ReapIdle(idle)
	s.log.Info().Int("count", len(idle)).Msg("reaped idle gut critics")
}
