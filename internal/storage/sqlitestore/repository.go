package sqlitestore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tracerun/coreruntime/internal/domain"
	"github.com/tracerun/coreruntime/internal/runtimeerr"
	"github.com/tracerun/coreruntime/internal/vector"
)

// timeLayout is fixed-width (trailing zeros kept) so that ORDER BY on the
// stored text sorts in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SaveBlock upserts a CognitiveMemoryBlock by id. If artifact_id is set and
// another block already owns (session_id, artifact_id), this returns
// UniquenessViolation and performs no write (SPEC_FULL.md §4.4).
func (s *Store) SaveBlock(b *domain.CognitiveMemoryBlock) error {
	if b.ArtifactID != "" {
		existing, err := s.GetBlockByArtifact(b.SessionID, b.ArtifactID)
		if err != nil {
			return err
		}
		if existing != nil && existing.ID != b.ID {
			return runtimeerr.Wrap(runtimeerr.KindUniquenessViolation,
				fmt.Sprintf("block for (session=%s, artifact=%s) already exists as %s", b.SessionID, b.ArtifactID, existing.ID), nil)
		}
	}

	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	context, _ := json.Marshal(b.Context)
	tags, _ := json.Marshal(b.Tags)
	metadata, _ := json.Marshal(b.Metadata)
	keyDecisions, _ := json.Marshal(b.KeyDecisions)
	activeModifiers, _ := json.Marshal(b.ActiveModifiers)
	userPreferences, _ := json.Marshal(b.UserPreferences)

	_, err := s.db.Exec(`
		INSERT INTO cognitive_memory_blocks (
			id, session_id, artifact_id, created_at, updated_at, context, derived_from,
			intent_profile_id, style_dna_id, tags, notes, metadata,
			summary, key_decisions, active_modifiers, user_preferences, design_intent
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			session_id = excluded.session_id,
			artifact_id = excluded.artifact_id,
			updated_at = excluded.updated_at,
			context = excluded.context,
			derived_from = excluded.derived_from,
			intent_profile_id = excluded.intent_profile_id,
			style_dna_id = excluded.style_dna_id,
			tags = excluded.tags,
			notes = excluded.notes,
			metadata = excluded.metadata,
			summary = excluded.summary,
			key_decisions = excluded.key_decisions,
			active_modifiers = excluded.active_modifiers,
			user_preferences = excluded.user_preferences,
			design_intent = excluded.design_intent
	`,
		b.ID, b.SessionID, nullableString(b.ArtifactID), b.CreatedAt.Format(timeLayout), b.UpdatedAt.Format(timeLayout),
		string(context), b.DerivedFrom, b.IntentProfileID, b.StyleDNAID, string(tags), b.Notes, string(metadata),
		b.Summary, string(keyDecisions), string(activeModifiers), string(userPreferences), b.DesignIntent,
	)
	if err != nil {
		return fmt.Errorf("save block: %w", err)
	}
	return nil
}

// GetBlock reads a block by id, returning (nil, nil) if absent.
func (s *Store) GetBlock(id string) (*domain.CognitiveMemoryBlock, error) {
	row := s.db.QueryRow(`
		SELECT id, session_id, artifact_id, created_at, updated_at, context, derived_from,
			intent_profile_id, style_dna_id, tags, notes, metadata,
			summary, key_decisions, active_modifiers, user_preferences, design_intent
		FROM cognitive_memory_blocks WHERE id = ?`, id)
	return scanBlock(row)
}

// GetBlockByArtifact performs the composite-key lookup, returning (nil,
// nil) if absent.
func (s *Store) GetBlockByArtifact(sessionID, artifactID string) (*domain.CognitiveMemoryBlock, error) {
	row := s.db.QueryRow(`
		SELECT id, session_id, artifact_id, created_at, updated_at, context, derived_from,
			intent_profile_id, style_dna_id, tags, notes, metadata,
			summary, key_decisions, active_modifiers, user_preferences, design_intent
		FROM cognitive_memory_blocks WHERE session_id = ? AND artifact_id = ?`, sessionID, artifactID)
	return scanBlock(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlock(row rowScanner) (*domain.CognitiveMemoryBlock, error) {
	var b domain.CognitiveMemoryBlock
	var artifactID, context, derivedFrom, intentID, styleID, tags, notes, metadata sql.NullString
	var summary, keyDecisions, activeModifiers, userPreferences, designIntent sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&b.ID, &b.SessionID, &artifactID, &createdAt, &updatedAt, &context, &derivedFrom,
		&intentID, &styleID, &tags, &notes, &metadata,
		&summary, &keyDecisions, &activeModifiers, &userPreferences, &designIntent)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan block: %w", err)
	}

	b.ArtifactID = artifactID.String
	b.DerivedFrom = derivedFrom.String
	b.IntentProfileID = intentID.String
	b.StyleDNAID = styleID.String
	b.Notes = notes.String
	b.Summary = summary.String
	b.DesignIntent = designIntent.String
	b.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	b.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)

	if context.Valid {
		json.Unmarshal([]byte(context.String), &b.Context)
	}
	if tags.Valid {
		json.Unmarshal([]byte(tags.String), &b.Tags)
	}
	if metadata.Valid {
		json.Unmarshal([]byte(metadata.String), &b.Metadata)
	}
	if keyDecisions.Valid {
		json.Unmarshal([]byte(keyDecisions.String), &b.KeyDecisions)
	}
	if activeModifiers.Valid {
		json.Unmarshal([]byte(activeModifiers.String), &b.ActiveModifiers)
	}
	if userPreferences.Valid {
		json.Unmarshal([]byte(userPreferences.String), &b.UserPreferences)
	}

	return &b, nil
}

// SaveStyleDNA upserts a StyleDNA record. checksum and l2_norm are
// expected to already be computed by the caller (the ingestion engine).
func (s *Store) SaveStyleDNA(d *domain.StyleDNA) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	var l2Norm sql.NullFloat64
	if d.L2Norm != nil {
		l2Norm = sql.NullFloat64{Float64: *d.L2Norm, Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO style_dna (id, artifact_id, stroke_dna, image_dna, temporal_dna, created_at, l2_norm, checksum)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			artifact_id = excluded.artifact_id,
			stroke_dna = excluded.stroke_dna,
			image_dna = excluded.image_dna,
			temporal_dna = excluded.temporal_dna,
			l2_norm = excluded.l2_norm,
			checksum = excluded.checksum
	`,
		d.ID, d.ArtifactID, encodeOptional(d.StrokeDNA), encodeOptional(d.ImageDNA), encodeOptional(d.TemporalDNA),
		d.CreatedAt.Format(timeLayout), l2Norm, nullableString(d.Checksum),
	)
	if err != nil {
		return fmt.Errorf("save style dna: %w", err)
	}
	return nil
}

// GetStyleDNA reads a StyleDNA by id and re-verifies its checksum if one
// was stored, returning ChecksumMismatch on corruption.
func (s *Store) GetStyleDNA(id string) (*domain.StyleDNA, error) {
	row := s.db.QueryRow(`
		SELECT id, artifact_id, stroke_dna, image_dna, temporal_dna, created_at, l2_norm, checksum
		FROM style_dna WHERE id = ?`, id)

	var d domain.StyleDNA
	var strokeBlob, imageBlob, temporalBlob []byte
	var l2Norm sql.NullFloat64
	var checksum sql.NullString
	var createdAt string

	err := row.Scan(&d.ID, &d.ArtifactID, &strokeBlob, &imageBlob, &temporalBlob, &createdAt, &l2Norm, &checksum)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan style dna: %w", err)
	}

	d.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	if checksum.Valid {
		d.Checksum = checksum.String
	}
	if l2Norm.Valid {
		v := l2Norm.Float64
		d.L2Norm = &v
	}

	if strokeBlob != nil {
		d.StrokeDNA, err = vector.Decode(strokeBlob)
		if err != nil {
			return nil, err
		}
	}
	if imageBlob != nil {
		d.ImageDNA, err = vector.Decode(imageBlob)
		if err != nil {
			return nil, err
		}
	}
	if temporalBlob != nil {
		d.TemporalDNA, err = vector.Decode(temporalBlob)
		if err != nil {
			return nil, err
		}
	}

	if !vector.VerifyChecksum(d.Checksum, d.StrokeDNA, d.ImageDNA, d.TemporalDNA) {
		return nil, runtimeerr.Wrap(runtimeerr.KindChecksumMismatch,
			fmt.Sprintf("style dna %s failed checksum verification", id), nil)
	}

	return &d, nil
}

// SaveIntentProfile upserts an IntentProfile, mutable only by re-save with
// the same id.
func (s *Store) SaveIntentProfile(p *domain.IntentProfile) error {
	emotionalRegister, _ := json.Marshal(p.EmotionalRegister)
	constraints, _ := json.Marshal(p.Constraints)
	styleKeywords, _ := json.Marshal(p.StyleKeywords)

	_, err := s.db.Exec(`
		INSERT INTO intent_profiles (id, session_id, artifact_id, emotional_register, target_audience, constraints, narrative_prompt, style_keywords, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			session_id = excluded.session_id,
			artifact_id = excluded.artifact_id,
			emotional_register = excluded.emotional_register,
			target_audience = excluded.target_audience,
			constraints = excluded.constraints,
			narrative_prompt = excluded.narrative_prompt,
			style_keywords = excluded.style_keywords,
			source = excluded.source
	`,
		p.ID, p.SessionID, p.ArtifactID, string(emotionalRegister), p.TargetAudience,
		string(constraints), p.NarrativePrompt, string(styleKeywords), string(p.Source),
	)
	if err != nil {
		return fmt.Errorf("save intent profile: %w", err)
	}
	return nil
}

// GetIntentProfile reads an IntentProfile by id, returning (nil, nil) if
// absent.
func (s *Store) GetIntentProfile(id string) (*domain.IntentProfile, error) {
	row := s.db.QueryRow(`
		SELECT id, session_id, artifact_id, emotional_register, target_audience, constraints, narrative_prompt, style_keywords, source
		FROM intent_profiles WHERE id = ?`, id)

	var p domain.IntentProfile
	var emotionalRegister, constraints, styleKeywords, targetAudience, narrativePrompt, source sql.NullString

	err := row.Scan(&p.ID, &p.SessionID, &p.ArtifactID, &emotionalRegister, &targetAudience, &constraints, &narrativePrompt, &styleKeywords, &source)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan intent profile: %w", err)
	}

	p.TargetAudience = targetAudience.String
	p.NarrativePrompt = narrativePrompt.String
	p.Source = domain.IntentSource(source.String)
	if emotionalRegister.Valid {
		json.Unmarshal([]byte(emotionalRegister.String), &p.EmotionalRegister)
	}
	if constraints.Valid {
		json.Unmarshal([]byte(constraints.String), &p.Constraints)
	}
	if styleKeywords.Valid {
		json.Unmarshal([]byte(styleKeywords.String), &p.StyleKeywords)
	}

	return &p, nil
}

// SaveTelemetryChunk inserts a new TelemetryChunk row (chunks are append-
// only metadata, never updated in place).
func (s *Store) SaveTelemetryChunk(c *domain.TelemetryChunk) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO telemetry_chunks (id, session_id, artifact_id, store_path, chunk_row_count, total_session_rows, created_at, schema_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.SessionID, c.ArtifactID, c.StorePath, c.ChunkRowCount, c.TotalSessionRows, c.CreatedAt.Format(timeLayout), c.SchemaVersion)
	if err != nil {
		return fmt.Errorf("save telemetry chunk: %w", err)
	}
	return nil
}

// GetChunksBySession returns all chunks for a session in creation order
// (SPEC_FULL.md §4.4, resolving the Open Question in favor of ordering).
func (s *Store) GetChunksBySession(sessionID string) ([]*domain.TelemetryChunk, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, artifact_id, store_path, chunk_row_count, total_session_rows, created_at, schema_version
		FROM telemetry_chunks WHERE session_id = ? ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var out []*domain.TelemetryChunk
	for rows.Next() {
		var c domain.TelemetryChunk
		var createdAt string
		var artifactID sql.NullString
		if err := rows.Scan(&c.ID, &c.SessionID, &artifactID, &c.StorePath, &c.ChunkRowCount, &c.TotalSessionRows, &createdAt, &c.SchemaVersion); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.ArtifactID = artifactID.String
		c.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		out = append(out, &c)
	}
	return out, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func encodeOptional(v []float32) any {
	if v == nil {
		return nil
	}
	return vector.Encode(v)
}
