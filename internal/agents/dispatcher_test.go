package agents

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tracerun/coreruntime/internal/contracts"
	"github.com/tracerun/coreruntime/internal/domain"
)

func TestDispatchNoCapableAgent(t *testing.T) {
	registry := NewRegistry()
	store, _ := contracts.Open(t.TempDir())
	d := NewDispatcher(registry, store, nil)

	result := d.Dispatch(context.Background(), "session-1", Task{Capability: "nonexistent"}, "")
	if result.Success {
		t.Fatal("expected dispatch to fail")
	}
	if result.ContractID != "" {
		t.Fatal("expected no contract to be opened when no agent is capable")
	}
	if result.Error == "" {
		t.Fatal("expected a non-empty error message")
	}
}

func TestDispatchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"message": "done"},
		})
	}))
	defer server.Close()

	registry := NewRegistry()
	registry.Register(&domain.Agent{
		AgentID:      "agent-1",
		Capabilities: []domain.Capability{{Name: "echo"}},
		Endpoint:     server.URL,
	})
	store, _ := contracts.Open(t.TempDir())
	d := NewDispatcher(registry, store, nil)

	result := d.Dispatch(context.Background(), "session-1", Task{Capability: "echo", Parameters: map[string]any{"text": "hi"}}, "")
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.AgentID != "agent-1" || result.ContractID == "" {
		t.Fatalf("expected agent/contract ids populated, got %+v", result)
	}

	got := registry.Get("agent-1")
	if got.Status != domain.AgentStatusAvailable {
		t.Fatalf("expected agent restored to available, got %v", got.Status)
	}
	if got.TasksCompleted != 1 {
		t.Fatalf("expected 1 completed task, got %d", got.TasksCompleted)
	}

	requestContract := store.GetByID(result.ContractID)
	if requestContract == nil || requestContract.Status != domain.ContractStatusCompleted {
		t.Fatalf("expected request contract completed, got %+v", requestContract)
	}

	responses := store.Get(contracts.Filter{SessionID: "session-1", ContractType: domain.ContractTypeResponse})
	if len(responses) != 1 {
		t.Fatalf("expected exactly one response contract on success, got %d", len(responses))
	}
}

func TestDispatchAgentFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   "unknown capability",
		})
	}))
	defer server.Close()

	registry := NewRegistry()
	registry.Register(&domain.Agent{
		AgentID:      "agent-1",
		Capabilities: []domain.Capability{{Name: "echo"}},
		Endpoint:     server.URL,
	})
	store, _ := contracts.Open(t.TempDir())
	d := NewDispatcher(registry, store, nil)

	result := d.Dispatch(context.Background(), "session-1", Task{Capability: "echo"}, "")
	if result.Success {
		t.Fatal("expected dispatch to report failure")
	}

	got := registry.Get("agent-1")
	if got.TasksFailed != 1 {
		t.Fatalf("expected 1 failed task, got %d", got.TasksFailed)
	}
	// An agent-reported failure is not a transport error: the agent is
	// still restored to Available and a RESPONSE contract is still created,
	// matching core.py's non-exception failure branch.
	if got.Status != domain.AgentStatusAvailable {
		t.Fatalf("expected agent restored to available after a reported failure, got %v", got.Status)
	}

	responses := store.Get(contracts.Filter{SessionID: "session-1", ContractType: domain.ContractTypeResponse})
	if len(responses) != 1 {
		t.Fatalf("expected exactly one response contract on a reported failure, got %d", len(responses))
	}
}

func TestDispatchTransportFailureLeavesAgentInErrorWithNoResponseContract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	registry := NewRegistry()
	registry.Register(&domain.Agent{
		AgentID:      "agent-1",
		Capabilities: []domain.Capability{{Name: "echo"}},
		Endpoint:     server.URL,
	})
	store, _ := contracts.Open(t.TempDir())
	d := NewDispatcher(registry, store, nil)

	result := d.Dispatch(context.Background(), "session-1", Task{Capability: "echo"}, "")
	if result.Success {
		t.Fatal("expected dispatch to report failure")
	}
	if result.Error == "" {
		t.Fatal("expected a non-empty transport error message")
	}

	got := registry.Get("agent-1")
	if got.Status != domain.AgentStatusError {
		t.Fatalf("expected agent left in Error status after a transport failure, got %v", got.Status)
	}
	if got.TasksFailed != 1 {
		t.Fatalf("expected 1 failed task, got %d", got.TasksFailed)
	}

	requestContract := store.GetByID(result.ContractID)
	if requestContract == nil || requestContract.Status != domain.ContractStatusFailed {
		t.Fatalf("expected request contract marked failed, got %+v", requestContract)
	}

	responses := store.Get(contracts.Filter{SessionID: "session-1", ContractType: domain.ContractTypeResponse})
	if len(responses) != 0 {
		t.Fatalf("expected no response contract on a transport failure, got %d", len(responses))
	}
}
