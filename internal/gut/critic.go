// Package gut implements the valuation engine (SPEC_FULL.md §4.9): the
// Gut tastes batches of interaction events and derives an emotional
// GutState. It senses, it does not think — micro-reactions translate
// into frustration, flow, and mood. Grounded line for line on
// original_source/tracememory/critic/gut_state.py's GutCritic.
package gut

import (
	"sync"
	"time"

	"github.com/tracerun/coreruntime/internal/domain"
	"github.com/tracerun/coreruntime/internal/metrics"
)

const (
	defaultMaxEvents      = 100
	defaultDecay          = 0.95
	defaultMinDwell       = 2 * time.Second
	erraticWindowCap      = 10
	erraticWindowDuration = 5 * time.Second
	chaosSustainDuration  = 10 * time.Second
)

// Critic is the Gut's sensory apparatus: a bounded rolling window of
// events plus the single piece of mutable state, GutState. ingest_batch
// is the ONLY mutation method — every other consumer gets a read-only
// snapshot via State().
type Critic struct {
	mu sync.Mutex

	maxEvents int
	decay     float64
	minDwell  time.Duration

	events     []domain.ResonanceEvent
	eventsHead int

	state domain.GutState

	lastMoodChange    time.Time
	chaosStart        *time.Time
	erraticEventTimes []time.Time
}

// Option configures a Critic at construction.
type Option func(*Critic)

func WithMaxEvents(n int) Option    { return func(c *Critic) { c.maxEvents = n } }
func WithDecay(d float64) Option    { return func(c *Critic) { c.decay = d } }
func WithMinDwell(d time.Duration) Option { return func(c *Critic) { c.minDwell = d } }

// New constructs a Critic with default constants matching the source
// (100-event window, 0.95 decay, 2s min dwell).
func New(opts ...Option) *Critic {
	c := &Critic{
		maxEvents: defaultMaxEvents,
		decay:     defaultDecay,
		minDwell:  defaultMinDwell,
		state: domain.GutState{
			Mood:       domain.MoodCalm,
			LastUpdated: time.Now().UTC(),
		},
		lastMoodChange: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a read-only snapshot of the current GutState. This is the
// only public accessor other organs may use.
func (c *Critic) State() domain.GutState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IngestBatch is the ONLY mutation method. All state changes flow through
// here; an empty batch is a no-op that returns the unchanged state.
func (c *Critic) IngestBatch(events []domain.ResonanceEvent) domain.GutState {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(events) == 0 {
		return c.state
	}

	for _, ev := range events {
		c.pushEvent(ev)
	}

	previousMood := c.state.Mood
	hasErratic := c.checkErraticInput(events)
	frustration := c.senseFrustration(events)
	flow := c.senseFlow(events)
	mood := c.deriveMood(frustration, flow, hasErratic)
	if mood != previousMood {
		metrics.RecordMoodTransition(string(mood))
	}

	c.state = domain.GutState{
		Mood:             mood,
		FrustrationIndex: frustration,
		FlowProbability:  flow,
		LastUpdated:      time.Now().UTC(),
	}

	return c.state
}

// Clear resets all emotional state — called on session end, no emotional
// surveillance persists past the session.
func (c *Critic) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events = nil
	c.eventsHead = 0
	c.erraticEventTimes = nil
	c.chaosStart = nil
	now := time.Now().UTC()
	c.state = domain.GutState{Mood: domain.MoodCalm, LastUpdated: now}
	c.lastMoodChange = now
}

// pushEvent appends to the bounded rolling window, dropping the oldest
// entry once maxEvents is reached (a fixed-capacity ring, since the
// source's deque(maxlen=N) forbids an unbounded list).
func (c *Critic) pushEvent(ev domain.ResonanceEvent) {
	if len(c.events) < c.maxEvents {
		c.events = append(c.events, ev)
		return
	}
	c.events[c.eventsHead] = ev
	c.eventsHead = (c.eventsHead + 1) % c.maxEvents
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// senseFrustration tastes the bitterness of rapid undos and rejections,
// via an exponential moving average with decay.
func (c *Critic) senseFrustration(events []domain.ResonanceEvent) float64 {
	frustration := c.state.FrustrationIndex * c.decay

	for _, ev := range events {
		if ev.Type == domain.EventUndo && ev.LatencyMs != nil {
			switch {
			case *ev.LatencyMs < 500:
				frustration += 0.10
			case *ev.LatencyMs < 1000:
				frustration += 0.05
			}
		}
		if ev.Type == domain.EventGhostReject {
			frustration += 0.08
		}
		if ev.Type == domain.EventStrokeReject {
			frustration += 0.05
		}
	}

	return clamp01(frustration)
}

// senseFlow tastes the sweetness of smooth acceptance and sustained work.
func (c *Critic) senseFlow(events []domain.ResonanceEvent) float64 {
	flow := c.state.FlowProbability * c.decay

	for _, ev := range events {
		if ev.Type == domain.EventStrokeAccept || ev.Type == domain.EventGhostAccept {
			if ev.LatencyMs != nil && *ev.LatencyMs < 200 {
				flow += 0.12
			} else {
				flow += 0.05
			}
		}
		if ev.Type == domain.EventPauseDetected {
			flow += 0.03
		}
	}

	return clamp01(flow)
}

// checkErraticInput detects erratic patterns: the erratic flag set on an
// event, or 10 erratic events within a 5-second window.
func (c *Critic) checkErraticInput(events []domain.ResonanceEvent) bool {
	now := time.Now().UTC()

	anyErratic := false
	for _, ev := range events {
		if ev.Erratic {
			anyErratic = true
			c.erraticEventTimes = append(c.erraticEventTimes, now)
			if len(c.erraticEventTimes) > erraticWindowCap {
				c.erraticEventTimes = c.erraticEventTimes[len(c.erraticEventTimes)-erraticWindowCap:]
			}
		}
	}

	if len(c.erraticEventTimes) >= erraticWindowCap {
		oldest := c.erraticEventTimes[0]
		if now.Sub(oldest) <= erraticWindowDuration {
			return true
		}
	}

	return anyErratic
}

// deriveMood intuits the overall mood from taste signals, with hysteresis
// (min dwell time) to prevent jitter, and a sustained-Chaos window.
func (c *Critic) deriveMood(frustration, flow float64, hasErratic bool) domain.Mood {
	now := time.Now().UTC()
	canTransition := now.Sub(c.lastMoodChange) >= c.minDwell

	if frustration > 0.8 && hasErratic {
		if c.chaosStart == nil {
			t := now
			c.chaosStart = &t
		} else if now.Sub(*c.chaosStart) > chaosSustainDuration {
			if canTransition || c.state.Mood == domain.MoodChaos {
				c.lastMoodChange = now
				return domain.MoodChaos
			}
		}
	} else {
		c.chaosStart = nil
	}

	if !canTransition {
		return c.state.Mood
	}

	if frustration > 0.7 {
		if c.state.Mood != domain.MoodFrustration {
			c.lastMoodChange = now
		}
		return domain.MoodFrustration
	}

	if flow > 0.8 {
		if c.state.Mood != domain.MoodFlow {
			c.lastMoodChange = now
		}
		return domain.MoodFlow
	}

	if flow >= 0.5 && flow <= 0.8 && frustration < 0.4 {
		if c.state.Mood != domain.MoodExploration {
			c.lastMoodChange = now
		}
		return domain.MoodExploration
	}

	if c.state.Mood != domain.MoodCalm {
		c.lastMoodChange = now
	}
	return domain.MoodCalm
}
