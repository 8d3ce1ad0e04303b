package httpapi

import (
	"github.com/tracerun/coreruntime/internal/compression"
	"github.com/tracerun/coreruntime/internal/domain"
)

// contractsToEvents adapts the contract ledger — this runtime's only
// append-only session log — into the generic Event shape
// internal/compression consumes. A completed RESPONSE contract becomes a
// "task.completed"-tier event, everything else maps onto
// the medium-priority "variation.applied" bucket so non-terminal
// dispatches still contribute context without forcing every contract
// through the high-priority path.
func contractsToEvents(cs []*domain.Contract) []compression.Event {
	events := make([]compression.Event, 0, len(cs))
	for _, c := range cs {
		eventType := "variation.applied"
		if c.ContractType == domain.ContractTypeResponse && c.Status == domain.ContractStatusCompleted {
			eventType = "task.completed"
		}

		data := map[string]any{}
		if c.Capability != "" {
			data["schema_id"] = c.Capability
		}

		events = append(events, compression.Event{
			Timestamp: c.CreatedAt,
			EventType: eventType,
			Actor:     c.FromAgent,
			Data:      data,
		})
	}
	return events
}
