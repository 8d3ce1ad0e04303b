package ingestion

import (
	"path/filepath"
	"testing"

	"github.com/tracerun/coreruntime/internal/domain"
	"github.com/tracerun/coreruntime/internal/storage/sqlitestore"
	"github.com/tracerun/coreruntime/internal/telemetry"
)

func setupTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()

	store, err := sqlitestore.Open(filepath.Join(dir, "test.db"), true)
	if err != nil {
		t.Fatalf("Open store failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	tel, err := telemetry.NewManager(filepath.Join(dir, "telemetry"))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	return New(store, tel)
}

func sampleStrokes(n int) []domain.StrokeRow {
	rows := make([]domain.StrokeRow, n)
	for i := range rows {
		rows[i] = domain.StrokeRow{
			X: float32(i), Y: float32(i) * 2, Pressure: 0.5,
			Timestamp: float64(i) * 0.016, Tilt: 1, TiltX: 0.1, TiltY: 0.2,
		}
	}
	return rows
}

func TestIngestFullArtifact(t *testing.T) {
	e := setupTestEngine(t)

	result, err := e.Ingest(Artifact{
		SessionID:  "session-1",
		ArtifactID: "artifact-1",
		Strokes:    sampleStrokes(20),
		Intent: &domain.IntentProfile{
			NarrativePrompt: "a calm harbor scene",
			StyleKeywords:   []string{"muted"},
		},
		Tags:  []string{"warmup"},
		Notes: "first pass",
	})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if result.MemoryBlockID == "" || result.StyleDNAID == "" || result.IntentProfileID == "" {
		t.Fatalf("expected all three ids populated, got %+v", result)
	}

	profile, err := e.GetDualProfile("session-1", "artifact-1")
	if err != nil {
		t.Fatalf("GetDualProfile failed: %v", err)
	}
	if profile == nil || profile.Block == nil || profile.StyleDNA == nil || profile.IntentProfile == nil {
		t.Fatalf("expected fully linked profile, got %+v", profile)
	}
	if len(profile.StyleDNA.StrokeDNA) != domain.StyleVectorDim {
		t.Fatalf("expected stroke dna dim %d, got %d", domain.StyleVectorDim, len(profile.StyleDNA.StrokeDNA))
	}
	if len(profile.StyleDNA.TemporalDNA) != domain.StyleVectorDim {
		t.Fatalf("expected temporal dna dim %d, got %d", domain.StyleVectorDim, len(profile.StyleDNA.TemporalDNA))
	}
}

func TestIngestWithoutStrokesOrIntent(t *testing.T) {
	e := setupTestEngine(t)

	result, err := e.Ingest(Artifact{
		SessionID:  "session-2",
		ArtifactID: "artifact-2",
	})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if result.MemoryBlockID == "" || result.StyleDNAID == "" {
		t.Fatalf("expected block and style dna ids, got %+v", result)
	}
	if result.IntentProfileID != "" {
		t.Fatalf("expected no intent profile id, got %q", result.IntentProfileID)
	}

	dna, err := e.store.GetStyleDNA(result.StyleDNAID)
	if err != nil {
		t.Fatalf("GetStyleDNA failed: %v", err)
	}
	if dna.StrokeDNA != nil {
		t.Fatal("expected nil stroke dna when no strokes were provided")
	}
}

func TestGetDualProfileMissing(t *testing.T) {
	e := setupTestEngine(t)
	profile, err := e.GetDualProfile("no-such-session", "no-such-artifact")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile != nil {
		t.Fatalf("expected nil profile, got %+v", profile)
	}
}
