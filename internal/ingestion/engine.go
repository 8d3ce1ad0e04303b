// Package ingestion implements the six-step artifact ingestion pipeline
// (SPEC_FULL.md §4.5): telemetry, then DNA, then intent, then the
// cognitive memory block that links all three layers by composite key.
package ingestion

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/tracerun/coreruntime/internal/domain"
	"github.com/tracerun/coreruntime/internal/storage/sqlitestore"
	"github.com/tracerun/coreruntime/internal/telemetry"
	"github.com/tracerun/coreruntime/internal/vector"
)

// Engine wires the tri-state repository and the telemetry manager into
// one ingestion entrypoint, grounded on the original DualDNAEngine's
// constructor-injected MemoryStorage + TelemetryStore dependencies.
type Engine struct {
	store     *sqlitestore.Store
	telemetry *telemetry.Manager
}

func New(store *sqlitestore.Store, tel *telemetry.Manager) *Engine {
	return &Engine{store: store, telemetry: tel}
}

// Artifact bundles the optional inputs to one ingestion call.
type Artifact struct {
	SessionID  string
	ArtifactID string

	Strokes []domain.StrokeRow

	// ImagePixels is a flattened raster of sample values (0-255); Width
	// is the row stride used for the coarse gradient proxy.
	ImagePixels []float64
	ImageWidth  int

	Intent *domain.IntentProfile

	Tags  []string
	Notes string
}

// Result names the ids of every layer the ingestion call created.
type Result struct {
	MemoryBlockID   string
	StyleDNAID      string
	IntentProfileID string
}

// Ingest runs the six-step pipeline and returns the ids of every record
// it wrote. Each step's failure aborts ingestion without rolling back
// steps already committed, matching the original pipeline's lack of a
// cross-store transaction.
func (e *Engine) Ingest(a Artifact) (Result, error) {
	var result Result

	// Step 1: stroke telemetry, if provided.
	if len(a.Strokes) > 0 && e.telemetry != nil {
		rowCount, totalRows, path, err := e.telemetry.AppendStrokes(a.SessionID, a.Strokes)
		if err != nil {
			return result, fmt.Errorf("save stroke telemetry: %w", err)
		}

		chunk := &domain.TelemetryChunk{
			ID:               uuid.NewString(),
			SessionID:        a.SessionID,
			ArtifactID:       a.ArtifactID,
			StorePath:        path,
			ChunkRowCount:    rowCount,
			TotalSessionRows: totalRows,
			SchemaVersion:    1,
		}
		if err := e.store.SaveTelemetryChunk(chunk); err != nil {
			return result, fmt.Errorf("persist telemetry chunk metadata: %w", err)
		}
	}

	// Step 2: compute the three DNA vectors (each nil-safe on absent input).
	var strokeDNA, imageDNA, temporalDNA []float32
	if len(a.Strokes) > 0 {
		strokeDNA = computeStrokeDNA(a.Strokes)
		temporalDNA = computeTemporalDNA(a.Strokes)
	}
	if len(a.ImagePixels) > 0 {
		imageDNA = computeImageDNA(a.ImagePixels, a.ImageWidth)
	}

	for _, v := range [][]float32{strokeDNA, imageDNA, temporalDNA} {
		if v != nil {
			if err := vector.Validate(v); err != nil {
				return result, err
			}
		}
	}

	var l2Norm *float64
	if strokeDNA != nil {
		n := vector.L2Norm(strokeDNA)
		l2Norm = &n
	}

	style := &domain.StyleDNA{
		ID:          uuid.NewString(),
		ArtifactID:  a.ArtifactID,
		StrokeDNA:   strokeDNA,
		ImageDNA:    imageDNA,
		TemporalDNA: temporalDNA,
		L2Norm:      l2Norm,
		Checksum:    vector.Checksum(strokeDNA, imageDNA, temporalDNA),
	}
	if err := e.store.SaveStyleDNA(style); err != nil {
		return result, fmt.Errorf("save style dna: %w", err)
	}
	result.StyleDNAID = style.ID

	// Step 3: intent profile, if provided.
	if a.Intent != nil {
		a.Intent.ID = uuid.NewString()
		a.Intent.SessionID = a.SessionID
		a.Intent.ArtifactID = a.ArtifactID
		if a.Intent.Source == "" {
			a.Intent.Source = domain.IntentSourceUserPrompt
		}
		if err := e.store.SaveIntentProfile(a.Intent); err != nil {
			return result, fmt.Errorf("save intent profile: %w", err)
		}
		result.IntentProfileID = a.Intent.ID
	}

	// Step 4: cognitive memory block linking all layers by composite key.
	block := &domain.CognitiveMemoryBlock{
		ID:              uuid.NewString(),
		SessionID:       a.SessionID,
		ArtifactID:      a.ArtifactID,
		IntentProfileID: result.IntentProfileID,
		StyleDNAID:      result.StyleDNAID,
		Tags:            a.Tags,
		Notes:           a.Notes,
	}
	if err := e.store.SaveBlock(block); err != nil {
		return result, fmt.Errorf("save cognitive memory block: %w", err)
	}
	result.MemoryBlockID = block.ID

	return result, nil
}

// DualProfile bundles the full linked record set for one artifact.
type DualProfile struct {
	Block         *domain.CognitiveMemoryBlock
	StyleDNA      *domain.StyleDNA
	IntentProfile *domain.IntentProfile
}

// GetDualProfile resolves a full profile via the composite
// (session_id, artifact_id) key, returning (nil, nil) if no block exists.
func (e *Engine) GetDualProfile(sessionID, artifactID string) (*DualProfile, error) {
	block, err := e.store.GetBlockByArtifact(sessionID, artifactID)
	if err != nil {
		return nil, err
	}
	if block == nil {
		return nil, nil
	}

	profile := &DualProfile{Block: block}

	if block.StyleDNAID != "" {
		dna, err := e.store.GetStyleDNA(block.StyleDNAID)
		if err != nil {
			return nil, err
		}
		profile.StyleDNA = dna
	}

	if block.IntentProfileID != "" {
		intent, err := e.store.GetIntentProfile(block.IntentProfileID)
		if err != nil {
			return nil, err
		}
		profile.IntentProfile = intent
	}

	return profile, nil
}
