package persist

import (
	"context"
	"database/sql"
	"fmt"
)

const currentSchemaVersion = 1

func initSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS queue_state (
			storage_key TEXT PRIMARY KEY,
			current_index INTEGER NOT NULL DEFAULT -1,
			volume INTEGER NOT NULL DEFAULT 50,
			circular INTEGER NOT NULL DEFAULT 1,
			shuffle INTEGER NOT NULL DEFAULT 0,
			source_type TEXT NOT NULL DEFAULT 'none',
			source_id TEXT NOT NULL DEFAULT '',
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS queue_tracks (
			storage_key TEXT NOT NULL,
			position INTEGER NOT NULL,
			uri TEXT NOT NULL,
			track_id TEXT,
			name TEXT,
			artists TEXT,
			album TEXT,
			image_url TEXT,
			duration_ms INTEGER,
			placeholder INTEGER NOT NULL DEFAULT 1,
			PRIMARY KEY (storage_key, position)
		);

		CREATE TABLE IF NOT EXISTS queue_manual (
			storage_key TEXT NOT NULL,
			uri TEXT NOT NULL,
			PRIMARY KEY (storage_key, uri)
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	if _, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, currentSchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}
