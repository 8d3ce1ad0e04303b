package sqlitestore

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tracerun/coreruntime/internal/runtimeerr"
)

// schemaTargetVersion is the migration target this binary expects. Bump
// whenever a tableDef's DDL or indexes change.
const schemaTargetVersion = 1

// tableDef is the expected schema for one table: its DDL plus the indexes
// that must exist on it. The SHA-256 of "{name}:{canonical_json(schema,
// indexes)}" is the table's signature (SPEC_FULL.md §4.1).
type tableDef struct {
	Name    string
	DDL     string
	Indexes []string
}

var tableDefs = []tableDef{
	{
		Name: "cognitive_memory_blocks",
		DDL: `CREATE TABLE IF NOT EXISTS cognitive_memory_blocks (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			artifact_id TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			context TEXT,
			derived_from TEXT,
			intent_profile_id TEXT,
			style_dna_id TEXT,
			tags TEXT,
			notes TEXT,
			metadata TEXT,
			summary TEXT,
			key_decisions TEXT,
			active_modifiers TEXT,
			user_preferences TEXT,
			design_intent TEXT
		)`,
		Indexes: []string{
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_blocks_session_artifact
				ON cognitive_memory_blocks(session_id, artifact_id)
				WHERE artifact_id IS NOT NULL AND artifact_id != ''`,
			`CREATE INDEX IF NOT EXISTS idx_blocks_session
				ON cognitive_memory_blocks(session_id)`,
		},
	},
	{
		Name: "style_dna",
		DDL: `CREATE TABLE IF NOT EXISTS style_dna (
			id TEXT PRIMARY KEY,
			artifact_id TEXT NOT NULL,
			stroke_dna BLOB,
			image_dna BLOB,
			temporal_dna BLOB,
			created_at TEXT NOT NULL,
			l2_norm REAL,
			checksum TEXT
		)`,
		Indexes: []string{
			`CREATE INDEX IF NOT EXISTS idx_style_dna_artifact ON style_dna(artifact_id)`,
		},
	},
	{
		Name: "intent_profiles",
		DDL: `CREATE TABLE IF NOT EXISTS intent_profiles (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			artifact_id TEXT,
			emotional_register TEXT,
			target_audience TEXT,
			constraints TEXT,
			narrative_prompt TEXT,
			style_keywords TEXT,
			source TEXT
		)`,
		Indexes: []string{
			`CREATE INDEX IF NOT EXISTS idx_intent_session ON intent_profiles(session_id)`,
		},
	},
	{
		Name: "telemetry_chunks",
		DDL: `CREATE TABLE IF NOT EXISTS telemetry_chunks (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			artifact_id TEXT,
			store_path TEXT NOT NULL,
			chunk_row_count INTEGER NOT NULL,
			total_session_rows INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			schema_version INTEGER NOT NULL
		)`,
		Indexes: []string{
			`CREATE INDEX IF NOT EXISTS idx_chunks_session_created
				ON telemetry_chunks(session_id, created_at)`,
		},
	},
}

const adminDDL = `
CREATE TABLE IF NOT EXISTS schema_versions (
	version INTEGER PRIMARY KEY,
	applied_at TEXT NOT NULL,
	description TEXT
);
CREATE TABLE IF NOT EXISTS table_signatures (
	table_name TEXT PRIMARY KEY,
	signature TEXT NOT NULL,
	created_at TEXT NOT NULL
);
`

func tableSignature(t tableDef) string {
	canonical, _ := json.Marshal(struct {
		Schema  string   `json:"schema"`
		Indexes []string `json:"indexes"`
	}{Schema: t.DDL, Indexes: t.Indexes})

	sum := sha256.Sum256([]byte(t.Name + ":" + string(canonical)))
	return hex.EncodeToString(sum[:])
}

// Migrate runs the idempotent four-step migration described in
// SPEC_FULL.md §4.1. Strict controls whether a stored-signature mismatch
// is fatal (MigrationSignatureMismatch) or passed over silently (the
// table's DDL is re-applied and the new signature recorded).
func Migrate(db *sql.DB, strict bool) error {
	if _, err := db.Exec(adminDDL); err != nil {
		return runtimeerr.Wrap(runtimeerr.KindMigrationFailed, "ensure admin tables", err)
	}

	var maxVersion sql.NullInt64
	if err := db.QueryRow("SELECT MAX(version) FROM schema_versions").Scan(&maxVersion); err != nil {
		return runtimeerr.Wrap(runtimeerr.KindMigrationFailed, "read schema_versions", err)
	}

	existing, err := existingSignatures(db)
	if err != nil {
		return runtimeerr.Wrap(runtimeerr.KindMigrationFailed, "read table_signatures", err)
	}

	allMatch := true
	for _, t := range tableDefs {
		if existing[t.Name] != tableSignature(t) {
			allMatch = false
			break
		}
	}

	if maxVersion.Valid && maxVersion.Int64 >= schemaTargetVersion && allMatch {
		return nil
	}

	for _, t := range tableDefs {
		want := tableSignature(t)
		if existing[t.Name] == want {
			continue
		}
		if existing[t.Name] != "" && strict {
			return runtimeerr.Wrap(runtimeerr.KindMigrationSignatureMismatch,
				fmt.Sprintf("table %s signature mismatch under strict mode", t.Name), nil)
		}

		if _, err := db.Exec(t.DDL); err != nil {
			return runtimeerr.Wrap(runtimeerr.KindMigrationFailed, "apply DDL for "+t.Name, err)
		}
		for _, idx := range t.Indexes {
			if _, err := db.Exec(idx); err != nil {
				return runtimeerr.Wrap(runtimeerr.KindMigrationFailed, "apply index for "+t.Name, err)
			}
		}

		if err := upsertSignature(db, t.Name, want); err != nil {
			return runtimeerr.Wrap(runtimeerr.KindMigrationFailed, "record signature for "+t.Name, err)
		}
	}

	_, err = db.Exec(
		`INSERT INTO schema_versions (version, applied_at, description) VALUES (?, ?, ?)`,
		schemaTargetVersion, time.Now().UTC().Format(time.RFC3339Nano), "tri-state memory model",
	)
	if err != nil {
		return runtimeerr.Wrap(runtimeerr.KindMigrationFailed, "record schema version", err)
	}

	return nil
}

func existingSignatures(db *sql.DB) (map[string]string, error) {
	rows, err := db.Query("SELECT table_name, signature FROM table_signatures")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, sig string
		if err := rows.Scan(&name, &sig); err != nil {
			return nil, err
		}
		out[name] = sig
	}
	return out, rows.Err()
}

func upsertSignature(db *sql.DB, name, signature string) error {
	_, err := db.Exec(
		`INSERT INTO table_signatures (table_name, signature, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(table_name) DO UPDATE SET signature = excluded.signature, created_at = excluded.created_at`,
		name, signature, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}
