package sqlitestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tracerun/coreruntime/internal/domain"
	"github.com/tracerun/coreruntime/internal/runtimeerr"
	"github.com/tracerun/coreruntime/internal/vector"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "test.db"), true)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndGetBlock(t *testing.T) {
	store := openTestStore(t)

	b := &domain.CognitiveMemoryBlock{
		ID:         "block-1",
		SessionID:  "session-1",
		ArtifactID: "artifact-1",
		Tags:       []string{"sketch", "warmup"},
		Notes:      "first pass",
	}
	if err := store.SaveBlock(b); err != nil {
		t.Fatalf("SaveBlock failed: %v", err)
	}

	got, err := store.GetBlock("block-1")
	if err != nil {
		t.Fatalf("GetBlock failed: %v", err)
	}
	if got == nil || got.SessionID != "session-1" || len(got.Tags) != 2 {
		t.Fatalf("unexpected block: %+v", got)
	}

	byArtifact, err := store.GetBlockByArtifact("session-1", "artifact-1")
	if err != nil {
		t.Fatalf("GetBlockByArtifact failed: %v", err)
	}
	if byArtifact == nil || byArtifact.ID != "block-1" {
		t.Fatalf("expected to find block-1 by artifact, got %+v", byArtifact)
	}
}

func TestSaveBlockUniquenessViolation(t *testing.T) {
	store := openTestStore(t)

	first := &domain.CognitiveMemoryBlock{ID: "block-1", SessionID: "session-1", ArtifactID: "artifact-1"}
	if err := store.SaveBlock(first); err != nil {
		t.Fatalf("SaveBlock failed: %v", err)
	}

	second := &domain.CognitiveMemoryBlock{ID: "block-2", SessionID: "session-1", ArtifactID: "artifact-1"}
	err := store.SaveBlock(second)
	if err == nil {
		t.Fatal("expected UniquenessViolation")
	}
	if kind, ok := runtimeerr.KindOf(err); !ok || kind != runtimeerr.KindUniquenessViolation {
		t.Fatalf("expected KindUniquenessViolation, got %v", err)
	}
}

func TestSaveBlockSameArtifactSameIDUpdates(t *testing.T) {
	store := openTestStore(t)

	b := &domain.CognitiveMemoryBlock{ID: "block-1", SessionID: "session-1", ArtifactID: "artifact-1", Notes: "v1"}
	if err := store.SaveBlock(b); err != nil {
		t.Fatalf("SaveBlock failed: %v", err)
	}
	b.Notes = "v2"
	if err := store.SaveBlock(b); err != nil {
		t.Fatalf("SaveBlock (update) failed: %v", err)
	}

	got, err := store.GetBlock("block-1")
	if err != nil {
		t.Fatalf("GetBlock failed: %v", err)
	}
	if got.Notes != "v2" {
		t.Fatalf("expected updated notes, got %q", got.Notes)
	}
}

func TestGetBlockMissing(t *testing.T) {
	store := openTestStore(t)
	got, err := store.GetBlock("does-not-exist")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestStyleDNARoundTripAndChecksumMismatch(t *testing.T) {
	store := openTestStore(t)

	stroke := make([]float32, 128)
	for i := range stroke {
		stroke[i] = float32(i) * 0.1
	}

	d := &domain.StyleDNA{
		ID:         "dna-1",
		ArtifactID: "artifact-1",
		StrokeDNA:  stroke,
	}
	d.Checksum = vector.Checksum(stroke, nil, nil)

	if err := store.SaveStyleDNA(d); err != nil {
		t.Fatalf("SaveStyleDNA failed: %v", err)
	}

	got, err := store.GetStyleDNA("dna-1")
	if err != nil {
		t.Fatalf("GetStyleDNA failed: %v", err)
	}
	if got == nil || len(got.StrokeDNA) != 128 {
		t.Fatalf("unexpected style dna: %+v", got)
	}

	if _, err := store.db.Exec(`UPDATE style_dna SET checksum = 'deadbeef' WHERE id = ?`, "dna-1"); err != nil {
		t.Fatalf("corrupt checksum: %v", err)
	}

	_, err = store.GetStyleDNA("dna-1")
	if err == nil {
		t.Fatal("expected ChecksumMismatch after checksum corruption")
	}
	if kind, ok := runtimeerr.KindOf(err); !ok || kind != runtimeerr.KindChecksumMismatch {
		t.Fatalf("expected KindChecksumMismatch, got %v", err)
	}
}

func TestIntentProfileRoundTrip(t *testing.T) {
	store := openTestStore(t)

	p := &domain.IntentProfile{
		ID:              "intent-1",
		SessionID:       "session-1",
		ArtifactID:      "artifact-1",
		NarrativePrompt: "a quiet harbor at dawn",
		StyleKeywords:   []string{"muted", "soft-edged"},
		Source:          domain.IntentSourceUserPrompt,
	}
	if err := store.SaveIntentProfile(p); err != nil {
		t.Fatalf("SaveIntentProfile failed: %v", err)
	}

	got, err := store.GetIntentProfile("intent-1")
	if err != nil {
		t.Fatalf("GetIntentProfile failed: %v", err)
	}
	if got == nil || got.NarrativePrompt != p.NarrativePrompt || len(got.StyleKeywords) != 2 {
		t.Fatalf("unexpected intent profile: %+v", got)
	}
}

func TestTelemetryChunksOrderedBySession(t *testing.T) {
	store := openTestStore(t)

	for i, id := range []string{"chunk-1", "chunk-2", "chunk-3"} {
		c := &domain.TelemetryChunk{
			ID:               id,
			SessionID:        "session-1",
			StorePath:        "/tmp/session-1.telemetry",
			ChunkRowCount:    10,
			TotalSessionRows: 10 * (i + 1),
			SchemaVersion:    1,
		}
		if err := store.SaveTelemetryChunk(c); err != nil {
			t.Fatalf("SaveTelemetryChunk failed: %v", err)
		}
	}

	chunks, err := store.GetChunksBySession("session-1")
	if err != nil {
		t.Fatalf("GetChunksBySession failed: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[0].ID != "chunk-1" || chunks[2].ID != "chunk-3" {
		t.Fatalf("expected creation order, got %v", []string{chunks[0].ID, chunks[1].ID, chunks[2].ID})
	}
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}
