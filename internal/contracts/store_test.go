package contracts

import (
	"testing"

	"github.com/tracerun/coreruntime/internal/domain"
)

func TestCreateAndGetContract(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	c, err := store.Create("session-1", domain.ContractTypeRequest, "orchestrator", "agent-1", "critique", map[string]any{"prompt": "hi"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if c.Status != domain.ContractStatusPending {
		t.Fatalf("expected pending status, got %v", c.Status)
	}

	got := store.GetByID(c.ContractID)
	if got == nil || got.ContractID != c.ContractID {
		t.Fatalf("expected to find contract by id, got %+v", got)
	}
}

func TestUpdateContractCompletion(t *testing.T) {
	store, _ := Open(t.TempDir())
	c, _ := store.Create("session-1", domain.ContractTypeRequest, "orchestrator", "agent-1", "critique", nil)

	updated, err := store.Update(c.ContractID, domain.ContractStatusCompleted, map[string]any{"ok": true}, "")
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Status != domain.ContractStatusCompleted {
		t.Fatalf("expected completed, got %v", updated.Status)
	}
	if updated.CompletedAt == nil {
		t.Fatal("expected completed_at to be stamped")
	}
}

func TestConversationOrdering(t *testing.T) {
	store, _ := Open(t.TempDir())
	store.Create("session-1", domain.ContractTypeRequest, "a", "b", "cap", nil)
	store.Create("session-1", domain.ContractTypeResponse, "b", "a", "cap", nil)

	convo := store.Conversation("session-1")
	if len(convo) != 2 {
		t.Fatalf("expected 2 contracts, got %d", len(convo))
	}
	if convo[0].CreatedAt.After(convo[1].CreatedAt) {
		t.Fatal("expected conversation sorted by creation time")
	}
}

func TestFilterBySessionAndAgent(t *testing.T) {
	store, _ := Open(t.TempDir())
	store.Create("session-1", domain.ContractTypeRequest, "a", "b", "cap1", nil)
	store.Create("session-1", domain.ContractTypeRequest, "a", "c", "cap2", nil)
	store.Create("session-2", domain.ContractTypeRequest, "a", "b", "cap1", nil)

	got := store.Get(Filter{SessionID: "session-1", ToAgent: "b"})
	if len(got) != 1 || got[0].ToAgent != "b" {
		t.Fatalf("expected one match, got %+v", got)
	}
}

func TestPersistenceReload(t *testing.T) {
	dir := t.TempDir()
	store, _ := Open(dir)
	store.Create("session-1", domain.ContractTypeRequest, "a", "b", "cap", map[string]any{"k": "v"})

	reloaded, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	got := reloaded.Get(Filter{SessionID: "session-1"})
	if len(got) != 1 {
		t.Fatalf("expected persisted contract to reload, got %d", len(got))
	}
}

func TestClearSession(t *testing.T) {
	dir := t.TempDir()
	store, _ := Open(dir)
	store.Create("session-1", domain.ContractTypeRequest, "a", "b", "cap", nil)

	if err := store.ClearSession("session-1"); err != nil {
		t.Fatalf("ClearSession failed: %v", err)
	}
	if got := store.Get(Filter{SessionID: "session-1"}); len(got) != 0 {
		t.Fatalf("expected no contracts after clear, got %d", len(got))
	}
}

func TestStatsSnapshot(t *testing.T) {
	store, _ := Open(t.TempDir())
	c1, _ := store.Create("session-1", domain.ContractTypeRequest, "a", "b", "cap", nil)
	store.Update(c1.ContractID, domain.ContractStatusCompleted, nil, "")
	store.Create("session-2", domain.ContractTypeRequest, "a", "b", "cap", nil)

	stats := store.StatsSnapshot()
	if stats.TotalSessions != 2 || stats.TotalContracts != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.ByStatus[domain.ContractStatusCompleted] != 1 {
		t.Fatalf("expected 1 completed, got %+v", stats.ByStatus)
	}
}
