// Package cache implements the optional GutState snapshot mirror
// (SPEC_FULL.md "GutState cache" DOMAIN note): a write-only fan-out to Redis, never
// read back into the valuation engine, preserving "no cross-organ
// writes". If no Redis endpoint is configured the mirror is a no-op.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/tracerun/coreruntime/internal/domain"
)

const snapshotTTL = 5 * time.Minute

// GutMirror wraps a Redis client used purely to publish read-side
// snapshots of GutState, grounded on Sergey-Bar-Alfred's redisclient.New
// (redis.ParseURL + redis.NewClient).
type GutMirror struct {
	client *redis.Client
}

// NewGutMirror parses url and constructs a mirror. A nil GutMirror (when
// url is empty) is valid and turns Mirror into a no-op.
func NewGutMirror(url string) (*GutMirror, error) {
	if url == "" {
		return nil, nil
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return &GutMirror{client: redis.NewClient(opt)}, nil
}

// Mirror writes a session's GutState snapshot with a 5 minute TTL. Errors
// are logged, never returned — this is an optional cache, not a
// correctness dependency.
func (m *GutMirror) Mirror(ctx context.Context, sessionID string, state domain.GutState) {
	if m == nil || m.client == nil {
		return
	}

	data, err := json.Marshal(state)
	if err != nil {
		log.Error().Err(err).Str("component", "gutcache").Msg("marshal gut state")
		return
	}

	key := "gut:" + sessionID
	if err := m.client.Set(ctx, key, data, snapshotTTL).Err(); err != nil {
		log.Warn().Err(err).Str("component", "gutcache").Str("key", key).Msg("mirror failed")
	}
}

// Get reads a mirrored snapshot directly (e.g. for a read-replica process
// serving GET /gut/state without routing through the owning process). It
// is never called by the Critic itself.
func (m *GutMirror) Get(ctx context.Context, sessionID string) (*domain.GutState, error) {
	if m == nil || m.client == nil {
		return nil, nil
	}

	data, err := m.client.Get(ctx, "gut:"+sessionID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get mirrored gut state: %w", err)
	}

	var state domain.GutState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal mirrored gut state: %w", err)
	}
	return &state, nil
}

// Close closes the underlying client. Safe on a nil GutMirror.
func (m *GutMirror) Close() error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Close()
}
