// Package contracts implements the contract store (SPEC_FULL.md §4.8):
// an in-memory, session-keyed map of REQUEST/RESPONSE contracts with
// one-JSON-file-per-session disk persistence.
package contracts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/tracerun/coreruntime/internal/domain"
	"github.com/tracerun/coreruntime/internal/metrics"
)

// Store mirrors the original ContractStore: in-memory map plus disk
// persistence, one file per session, mutex-guarded.
type Store struct {
	dir string

	mu        sync.RWMutex
	bySession map[string][]*domain.Contract
}

// Open loads any existing per-session contract files under dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create contracts dir: %w", err)
	}

	s := &Store{dir: dir, bySession: make(map[string][]*domain.Contract)}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read contracts dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		sessionID := e.Name()[:len(e.Name())-len(".json")]
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		var list []*domain.Contract
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("parse %s: %w", e.Name(), err)
		}
		s.bySession[sessionID] = list
	}

	return s, nil
}

// newContractID produces a sortable, timestamp-monotonic id: a millisecond
// timestamp prefix followed by an xid, so that lexicographic string sort
// equals creation-time sort (SPEC_FULL.md §3).
func newContractID() string {
	return fmt.Sprintf("%d_%s", time.Now().UTC().UnixMilli(), xid.New().String())
}

// Create makes a new PENDING contract and persists the owning session.
func (s *Store) Create(sessionID string, contractType domain.ContractType, fromAgent, toAgent, capability string, payload map[string]any) (*domain.Contract, error) {
	c := &domain.Contract{
		ContractID:   newContractID(),
		SessionID:    sessionID,
		ContractType: contractType,
		FromAgent:    fromAgent,
		ToAgent:      toAgent,
		Capability:   capability,
		Payload:      payload,
		Status:       domain.ContractStatusPending,
		CreatedAt:    time.Now().UTC(),
	}

	s.mu.Lock()
	s.bySession[sessionID] = append(s.bySession[sessionID], c)
	s.mu.Unlock()

	if err := s.persist(sessionID); err != nil {
		return nil, err
	}
	metrics.RecordContract(string(contractType), string(c.Status))
	return c, nil
}

// Update mutates a contract's status/result/error by id. completed_at is
// stamped when status transitions to Completed or Failed.
func (s *Store) Update(contractID string, status domain.ContractStatus, result map[string]any, errMsg string) (*domain.Contract, error) {
	s.mu.Lock()
	var found *domain.Contract
	var foundSession string
	for sessionID, list := range s.bySession {
		for _, c := range list {
			if c.ContractID == contractID {
				if status != "" {
					c.Status = status
				}
				if result != nil {
					c.Result = result
				}
				if errMsg != "" {
					c.Error = errMsg
				}
				if status == domain.ContractStatusCompleted || status == domain.ContractStatusFailed {
					now := time.Now().UTC()
					c.CompletedAt = &now
				}
				found = c
				foundSession = sessionID
				break
			}
		}
		if found != nil {
			break
		}
	}
	s.mu.Unlock()

	if found == nil {
		return nil, nil
	}
	if err := s.persist(foundSession); err != nil {
		return nil, err
	}
	metrics.RecordContract(string(found.ContractType), string(found.Status))
	return found, nil
}

// Filter describes the optional filters Get accepts.
type Filter struct {
	SessionID    string
	FromAgent    string
	ToAgent      string
	ContractType domain.ContractType
	Status       domain.ContractStatus
}

// Get returns contracts matching every non-zero field of f.
func (s *Store) Get(f Filter) []*domain.Contract {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pool []*domain.Contract
	if f.SessionID != "" {
		pool = s.bySession[f.SessionID]
	} else {
		for _, list := range s.bySession {
			pool = append(pool, list...)
		}
	}

	out := make([]*domain.Contract, 0, len(pool))
	for _, c := range pool {
		if f.FromAgent != "" && c.FromAgent != f.FromAgent {
			continue
		}
		if f.ToAgent != "" && c.ToAgent != f.ToAgent {
			continue
		}
		if f.ContractType != "" && c.ContractType != f.ContractType {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		out = append(out, c)
	}
	return out
}

// GetByID returns a single contract, or nil if not found.
func (s *Store) GetByID(contractID string) *domain.Contract {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, list := range s.bySession {
		for _, c := range list {
			if c.ContractID == contractID {
				return c
			}
		}
	}
	return nil
}

// Conversation returns a session's contracts in creation order.
func (s *Store) Conversation(sessionID string) []*domain.Contract {
	out := s.Get(Filter{SessionID: sessionID})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ClearSession removes a session's contracts from memory and disk.
func (s *Store) ClearSession(sessionID string) error {
	s.mu.Lock()
	delete(s.bySession, sessionID)
	s.mu.Unlock()

	path := s.sessionPath(sessionID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove contracts file: %w", err)
	}
	return nil
}

// Stats mirrors get_stats: total sessions/contracts and a count by status.
type Stats struct {
	TotalSessions  int
	TotalContracts int
	ByStatus       map[domain.ContractStatus]int
}

func (s *Store) StatsSnapshot() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{TotalSessions: len(s.bySession), ByStatus: make(map[domain.ContractStatus]int)}
	for _, list := range s.bySession {
		stats.TotalContracts += len(list)
		for _, c := range list {
			stats.ByStatus[c.Status]++
		}
	}
	return stats
}

func (s *Store) sessionPath(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".json")
}

func (s *Store) persist(sessionID string) error {
	s.mu.RLock()
	list := s.bySession[sessionID]
	s.mu.RUnlock()

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal contracts: %w", err)
	}
	if err := os.WriteFile(s.sessionPath(sessionID), data, 0o644); err != nil {
		return fmt.Errorf("write contracts file: %w", err)
	}
	return nil
}
