// Package domain defines the tri-state memory model, contract ledger, agent
// registry, and valuation snapshot types shared across the core runtime.
package domain

import "time"

// CognitiveMemoryBlock is the Logic layer: the record linking a session's
// intent and style-dna ids to an artifact.
type CognitiveMemoryBlock struct {
	ID              string         `json:"id"`
	SessionID       string         `json:"session_id"`
	ArtifactID      string         `json:"artifact_id,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	Context         map[string]any `json:"context,omitempty"`
	DerivedFrom     string         `json:"derived_from,omitempty"`
	IntentProfileID string         `json:"intent_profile_id,omitempty"`
	StyleDNAID      string         `json:"style_dna_id,omitempty"`
	Tags            []string       `json:"tags,omitempty"`
	Notes           string         `json:"notes,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`

	// Compression-derived fields, populated when this block is the output
	// of the compression pipeline (SPEC_FULL.md §4.12 step 7).
	Summary         string            `json:"summary,omitempty"`
	KeyDecisions    []string          `json:"key_decisions,omitempty"`
	ActiveModifiers map[string]string `json:"active_modifiers,omitempty"`
	UserPreferences []string          `json:"user_preferences,omitempty"`
	DesignIntent    string            `json:"design_intent,omitempty"`
}

// StyleVectorDim is the fixed dimension D of every style vector (§4.2).
const StyleVectorDim = 128

// StyleDNA is the Vibe layer: up to three fixed-dimension style vectors for
// an artifact, immutable after save.
type StyleDNA struct {
	ID          string    `json:"id"`
	ArtifactID  string    `json:"artifact_id"`
	StrokeDNA   []float32 `json:"stroke_dna,omitempty"`
	ImageDNA    []float32 `json:"image_dna,omitempty"`
	TemporalDNA []float32 `json:"temporal_dna,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	L2Norm      *float64  `json:"l2_norm,omitempty"`
	Checksum    string    `json:"checksum,omitempty"`
}

// IntentSource enumerates where an IntentProfile originated.
type IntentSource string

const (
	IntentSourceUserPrompt     IntentSource = "user_prompt"
	IntentSourceCriticInferred IntentSource = "critic_inferred"
)

// IntentProfile is the Mind layer: the descriptor of what the user is
// trying to achieve with an artifact.
type IntentProfile struct {
	ID                string             `json:"id"`
	SessionID         string             `json:"session_id"`
	ArtifactID        string             `json:"artifact_id"`
	EmotionalRegister map[string]float64 `json:"emotional_register,omitempty"`
	TargetAudience    string             `json:"target_audience,omitempty"`
	Constraints       []string           `json:"constraints,omitempty"`
	NarrativePrompt   string             `json:"narrative_prompt,omitempty"`
	StyleKeywords     []string           `json:"style_keywords,omitempty"`
	Source            IntentSource       `json:"source,omitempty"`
}

// TelemetryChunk describes one append to a session's columnar stroke file.
type TelemetryChunk struct {
	ID               string    `json:"id"`
	SessionID        string    `json:"session_id"`
	ArtifactID       string    `json:"artifact_id"`
	StorePath        string    `json:"store_path"`
	ChunkRowCount    int       `json:"chunk_row_count"`
	TotalSessionRows int       `json:"total_session_rows"`
	CreatedAt        time.Time `json:"created_at"`
	SchemaVersion    int       `json:"schema_version"`
}

// StrokeRow is one raw telemetry sample (§4.3 schema).
type StrokeRow struct {
	X         float32 `json:"x"`
	Y         float32 `json:"y"`
	Pressure  float32 `json:"p"`
	Timestamp float64 `json:"t"`
	Tilt      float32 `json:"tilt"`
	TiltX     float32 `json:"tilt_x"`
	TiltY     float32 `json:"tilt_y"`
}

// ContractType distinguishes the two halves of an agent exchange.
type ContractType string

const (
	ContractTypeRequest  ContractType = "REQUEST"
	ContractTypeResponse ContractType = "RESPONSE"
)

// ContractStatus tracks the lifecycle of one contract.
type ContractStatus string

const (
	ContractStatusPending    ContractStatus = "pending"
	ContractStatusInProgress ContractStatus = "in_progress"
	ContractStatusCompleted  ContractStatus = "completed"
	ContractStatusFailed     ContractStatus = "failed"
	ContractStatusCancelled  ContractStatus = "cancelled"
)

// Contract is one REQUEST or RESPONSE leg of an agent-to-agent exchange.
type Contract struct {
	ContractID   string         `json:"contract_id"`
	SessionID    string         `json:"session_id"`
	ContractType ContractType   `json:"contract_type"`
	FromAgent    string         `json:"from_agent"`
	ToAgent      string         `json:"to_agent"`
	Capability   string         `json:"capability,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
	Status       ContractStatus `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	Result       map[string]any `json:"result,omitempty"`
	Error        string         `json:"error,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// AgentStatus is the runtime status of a registered worker.
type AgentStatus string

const (
	AgentStatusAvailable AgentStatus = "available"
	AgentStatusBusy      AgentStatus = "busy"
	AgentStatusOffline   AgentStatus = "offline"
	AgentStatusError     AgentStatus = "error"
)

// Capability is one named operation an agent advertises.
type Capability struct {
	Name            string         `json:"name"`
	Description     string         `json:"description,omitempty"`
	ParameterSchema map[string]any `json:"parameter_schema,omitempty"`
}

// Agent is a runtime worker capable of executing tasks for the dispatcher.
type Agent struct {
	AgentID        string       `json:"agent_id"`
	Name           string       `json:"name"`
	Description    string       `json:"description,omitempty"`
	Capabilities   []Capability `json:"capabilities"`
	Status         AgentStatus  `json:"status"`
	TasksCompleted int          `json:"tasks_completed"`
	TasksFailed    int          `json:"tasks_failed"`
	LastHeartbeat  time.Time    `json:"last_heartbeat"`
	Endpoint       string       `json:"endpoint,omitempty"`
}

// Mood is one of the five discrete labels the valuation engine assigns.
type Mood string

const (
	MoodCalm        Mood = "Calm"
	MoodFlow        Mood = "Flow"
	MoodFrustration Mood = "Frustration"
	MoodChaos       Mood = "Chaos"
	MoodExploration Mood = "Exploration"
)

// GutState is the read-only emotional snapshot for one session, mutated
// only inside the valuation engine (SPEC_FULL.md §4.9).
type GutState struct {
	Mood              Mood      `json:"mood"`
	FrustrationIndex  float64   `json:"frustration_index"`
	FlowProbability   float64   `json:"flow_probability"`
	LastUpdated       time.Time `json:"last_updated"`
}

// ResonanceEventType enumerates the micro-interaction tastes the valuation
// engine consumes.
type ResonanceEventType string

const (
	EventStrokeAccept  ResonanceEventType = "stroke_accept"
	EventStrokeReject  ResonanceEventType = "stroke_reject"
	EventGhostAccept   ResonanceEventType = "ghost_accept"
	EventGhostReject   ResonanceEventType = "ghost_reject"
	EventUndo          ResonanceEventType = "undo"
	EventRedo          ResonanceEventType = "redo"
	EventPauseDetected ResonanceEventType = "pause_detected"
)

// ResonanceEvent is one interaction micro-event tasted by the valuation
// engine.
type ResonanceEvent struct {
	Type         ResonanceEventType `json:"type"`
	Timestamp    time.Time          `json:"timestamp"`
	SessionID    string             `json:"session_id"`
	LatencyMs    *int               `json:"latency_ms,omitempty"`
	Erratic      bool               `json:"erratic_input,omitempty"`
	Context      map[string]any     `json:"context,omitempty"`
}
