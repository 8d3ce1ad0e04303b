package agents

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tracerun/coreruntime/internal/contracts"
	"github.com/tracerun/coreruntime/internal/domain"
	"github.com/tracerun/coreruntime/internal/eventbus"
	"github.com/tracerun/coreruntime/internal/runtimeerr"
)

// Task is the orchestration input, mirroring orchestrate()'s task dict.
type Task struct {
	Capability string
	Parameters map[string]any
	Context    map[string]any
}

// DispatchResult mirrors orchestrate()'s returned result dict.
type DispatchResult struct {
	Success    bool
	Data       map[string]any
	Error      string
	ContractID string
	AgentID    string
}

// Dispatcher runs the eight-step orchestration algorithm: find a capable
// agent, open a REQUEST contract, emit it to the event log, mark the agent
// busy, execute (via HTTP to the agent's endpoint), record the outcome,
// close the RESPONSE contract, and restore the agent to Available.
// Grounded line for line on orchestrator/core.py's Orchestrator.orchestrate.
type Dispatcher struct {
	registry  *Registry
	contracts *contracts.Store
	bus       *eventbus.Bus
	client    *http.Client
}

func NewDispatcher(registry *Registry, contractStore *contracts.Store, bus *eventbus.Bus) *Dispatcher {
	return &Dispatcher{
		registry:  registry,
		contracts: contractStore,
		bus:       bus,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Dispatch runs the orchestration algorithm for one task.
func (d *Dispatcher) Dispatch(ctx context.Context, sessionID string, task Task, fromAgent string) DispatchResult {
	if fromAgent == "" {
		fromAgent = "orchestrator"
	}

	// Step 1: find a capable, available agent.
	agent := d.registry.FindByCapability(task.Capability)
	if agent == nil {
		err := runtimeerr.Wrap(runtimeerr.KindNoCapableAgent,
			fmt.Sprintf("no agent available for capability: %s", task.Capability), nil)
		log.Error().Err(err).Str("component", "dispatcher").Str("capability", task.Capability).Msg("dispatch failed")
		return DispatchResult{Success: false, Error: err.Error()}
	}

	// Step 2: open a REQUEST contract.
	request, err := d.contracts.Create(sessionID, domain.ContractTypeRequest, fromAgent, agent.AgentID, task.Capability, task.Parameters)
	if err != nil {
		return DispatchResult{Success: false, Error: err.Error(), AgentID: agent.AgentID}
	}

	// Step 3: emit the REQUEST to the external event log (non-fatal).
	d.bus.PublishContractEvent(sessionID, request)

	// Step 4: mark the contract in progress and the agent busy.
	if _, err := d.contracts.Update(request.ContractID, domain.ContractStatusInProgress, nil, ""); err != nil {
		log.Warn().Err(err).Str("component", "dispatcher").Msg("update contract to in_progress")
	}
	d.registry.SetStatus(agent.AgentID, domain.AgentStatusBusy)

	// Step 5: execute against the agent's endpoint. A transport-level
	// failure (unreachable endpoint, non-200, undecodable body) is the Go
	// equivalent of core.py's `except Exception` branch: it leaves the
	// agent in Error, records the REQUEST as Failed, and returns early
	// without ever creating a RESPONSE contract — unlike an agent-reported
	// {success: false}, which is a normal result the REQUEST/RESPONSE pair
	// still records.
	result, transportErr := d.execute(ctx, agent, request.ContractID, task)
	if transportErr != nil {
		log.Error().Err(transportErr).Str("component", "dispatcher").Str("agent_id", agent.AgentID).Msg("task execution failed")

		d.registry.SetStatus(agent.AgentID, domain.AgentStatusError)
		d.registry.IncrementTaskCount(agent.AgentID, false)
		d.contracts.Update(request.ContractID, domain.ContractStatusFailed, nil, transportErr.Error())

		return DispatchResult{
			Success:    false,
			Error:      transportErr.Error(),
			ContractID: request.ContractID,
			AgentID:    agent.AgentID,
		}
	}

	// Step 6: restore agent availability and counters.
	d.registry.SetStatus(agent.AgentID, domain.AgentStatusAvailable)
	d.registry.IncrementTaskCount(agent.AgentID, result.Success)

	// Step 7: close the REQUEST contract and open the RESPONSE contract.
	if result.Success {
		d.contracts.Update(request.ContractID, domain.ContractStatusCompleted, result.Data, "")
	} else {
		d.contracts.Update(request.ContractID, domain.ContractStatusFailed, nil, result.Error)
	}

	response, err := d.contracts.Create(sessionID, domain.ContractTypeResponse, agent.AgentID, fromAgent, "", result.Data)
	if err == nil {
		status := domain.ContractStatusCompleted
		d.contracts.Update(response.ContractID, status, result.Data, result.Error)
		d.bus.PublishContractEvent(sessionID, response)
	}

	// Step 8: return the result with contract/agent ids attached.
	return DispatchResult{
		Success:    result.Success,
		Data:       result.Data,
		Error:      result.Error,
		ContractID: request.ContractID,
		AgentID:    agent.AgentID,
	}
}

// execute calls the agent's HTTP endpoint with the task payload. Agents in
// this runtime are remote descriptors (endpoint + capabilities), not
// in-process objects, so "execute" here is an HTTP round trip rather than
// a direct method call on an Agent interface. The returned error is
// transport-level only (unreachable endpoint, non-200, bad body) — an
// agent-reported failure comes back as executionResult{Success: false}
// with a nil error.
func (d *Dispatcher) execute(ctx context.Context, agent *domain.Agent, contractID string, task Task) (executionResult, error) {
	if agent.Endpoint == "" {
		return executionResult{}, fmt.Errorf("agent has no endpoint configured")
	}

	return callAgentEndpoint(ctx, d.client, agent.Endpoint, map[string]any{
		"task_id":    contractID,
		"capability": task.Capability,
		"parameters": task.Parameters,
		"context":    task.Context,
	})
}
