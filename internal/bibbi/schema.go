package bibbi

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS authorities (
        local_id     INTEGER PRIMARY KEY,
        kind         TEXT NOT NULL,
        name         TEXT NOT NULL,
        dates        TEXT,
        nationality  TEXT,
        noraf_id     TEXT,
        noraf_status TEXT,
        noraf_origin TEXT,
        reference_of INTEGER REFERENCES authorities(local_id),
        approved     INTEGER NOT NULL DEFAULT 1,
        created_at   TEXT NOT NULL,
        updated_at   TEXT NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS idx_authorities_kind ON authorities(kind)`,
	`CREATE INDEX IF NOT EXISTS idx_authorities_noraf ON authorities(noraf_id)`,
	`CREATE INDEX IF NOT EXISTS idx_authorities_reference ON authorities(reference_of)`,
	`CREATE TABLE IF NOT EXISTS items (
        id           INTEGER PRIMARY KEY AUTOINCREMENT,
        authority_id INTEGER NOT NULL REFERENCES authorities(local_id),
        isbn         TEXT,
        titles_json  TEXT NOT NULL DEFAULT '[]',
        approved_at  TEXT
    )`,
	`CREATE INDEX IF NOT EXISTS idx_items_authority ON items(authority_id)`,
}

func (s *Store) applySchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
