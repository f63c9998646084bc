package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "palaces: named memory palaces",
		SQL: `
CREATE TABLE palaces (
    id          INTEGER PRIMARY KEY,
    name        TEXT NOT NULL UNIQUE,
    theme       TEXT NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
);
`,
	},
	{
		Version:     2,
		Description: "loci: locations within a palace",
		SQL: `
CREATE TABLE loci (
    id          INTEGER PRIMARY KEY,
    palace_id   INTEGER NOT NULL,
    locus_key   TEXT NOT NULL,
    name        TEXT NOT NULL,
    anchor      TEXT NOT NULL DEFAULT '',
    children    TEXT NOT NULL DEFAULT '[]',
    position    INTEGER NOT NULL,

    UNIQUE (palace_id, locus_key),
    FOREIGN KEY (palace_id) REFERENCES palaces(id) ON DELETE CASCADE
);

CREATE INDEX idx_loci_palace ON loci(palace_id, position);
`,
	},
	{
		Version:     3,
		Description: "memories: facts placed at loci",
		SQL: `
CREATE TABLE memories (
    id             INTEGER PRIMARY KEY,
    palace_id      INTEGER NOT NULL,
    locus_id       INTEGER NOT NULL,
    memory_key     TEXT NOT NULL,
    subject        TEXT NOT NULL,
    content        TEXT NOT NULL DEFAULT '',
    image          TEXT NOT NULL DEFAULT '',
    confidence     INTEGER NOT NULL DEFAULT 0 CHECK (confidence BETWEEN 0 AND 5),
    last_recalled  INTEGER,
    review_count   INTEGER NOT NULL DEFAULT 0,
    created_at     INTEGER,
    position       INTEGER NOT NULL,

    UNIQUE (palace_id, memory_key),
    FOREIGN KEY (palace_id) REFERENCES palaces(id) ON DELETE CASCADE,
    FOREIGN KEY (locus_id) REFERENCES loci(id) ON DELETE CASCADE
);

CREATE INDEX idx_memories_locus ON memories(locus_id, position);
`,
	},
	{
		Version:     4,
		Description: "events: usage analytics",
		SQL: `
CREATE TABLE events (
    id          INTEGER PRIMARY KEY,
    session_id  TEXT NOT NULL,
    type        TEXT NOT NULL CHECK (type IN ('command', 'palace_view', 'memory_review')),
    data        TEXT NOT NULL DEFAULT '{}',
    created_at  INTEGER NOT NULL
);

CREATE INDEX idx_events_created ON events(created_at DESC);
CREATE INDEX idx_events_session ON events(session_id);
`,
	},
	{
		Version:     5,
		Description: "runs: persisted algorithm comparisons",
		SQL: `
CREATE TABLE runs (
    id          INTEGER PRIMARY KEY,
    run_id      TEXT NOT NULL UNIQUE,
    hypothesis  TEXT NOT NULL,
    verdict     TEXT NOT NULL,
    seed        TEXT NOT NULL,
    iterations  INTEGER NOT NULL,
    completed   INTEGER NOT NULL,
    failed      INTEGER NOT NULL,
    truncated   INTEGER NOT NULL DEFAULT 0,
    result      TEXT NOT NULL,
    created_at  INTEGER NOT NULL
);

CREATE INDEX idx_runs_created ON runs(created_at DESC);
`,
	},
	{
		Version:     6,
		Description: "profiles: progress tracking state",
		SQL: `
CREATE TABLE profiles (
    key         TEXT PRIMARY KEY,
    data        TEXT NOT NULL,
    updated_at  INTEGER NOT NULL
);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
