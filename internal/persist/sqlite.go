// Package persist stores the queue's persisted subset in SQLite.
package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.uber.org/zap"

	"statisfy/internal/core"
)

const (
	appName    = "statisfy"
	dbFileName = "statisfy.db"
)

// DefaultPath returns the database location under the XDG data directory.
func DefaultPath() (string, error) {
	path, err := xdg.DataFile(filepath.Join(appName, dbFileName))
	if err != nil {
		return "", fmt.Errorf("failed to resolve data directory: %w", err)
	}
	return path, nil
}

// SQLiteRepository implements core.QueueRepository for one storage key.
type SQLiteRepository struct {
	db     *sql.DB
	key    string
	logger *zap.Logger
}

// Open opens or creates the database at path.
func Open(ctx context.Context, path string, logger *zap.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids busy errors between saves.
	db.SetMaxOpenConns(1)

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Opened queue database", zap.String("path", path))
	return &SQLiteRepository{db: db, key: core.StorageKey, logger: logger.Named("persist")}, nil
}

// Close closes the database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Load reads the stored queue, returning nil when nothing was saved yet.
func (r *SQLiteRepository) Load(ctx context.Context) (*core.PersistedQueue, error) {
	state := core.DefaultPersistedQueue()
	var sourceType string
	err := r.db.QueryRowContext(ctx, `
		SELECT current_index, volume, circular, shuffle, source_type, source_id
		FROM queue_state WHERE storage_key = ?`, r.key,
	).Scan(&state.CurrentIndex, &state.Volume, &state.IsCircular, &state.IsShuffle, &sourceType, &state.SourceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read queue state: %w", err)
	}
	state.SourceType = core.ParseSourceType(sourceType)

	tracks, items, err := r.loadTracks(ctx)
	if err != nil {
		return nil, err
	}
	state.Tracks = tracks
	state.TrackItems = items

	manual, err := r.loadManual(ctx)
	if err != nil {
		return nil, err
	}
	state.ManuallyAdded = manual

	return &state, nil
}

func (r *SQLiteRepository) loadTracks(ctx context.Context) ([]string, []core.TrackMetadata, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT uri, track_id, name, artists, album, image_url, duration_ms, placeholder
		FROM queue_tracks
		WHERE storage_key = ?
		ORDER BY position`, r.key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read queue tracks: %w", err)
	}
	defer rows.Close()

	var tracks []string
	var items []core.TrackMetadata
	for rows.Next() {
		var uri string
		var trackID, name, artists, album, imageURL sql.NullString
		var durationMs sql.NullInt64
		var placeholder bool
		if err := rows.Scan(&uri, &trackID, &name, &artists, &album, &imageURL, &durationMs, &placeholder); err != nil {
			return nil, nil, fmt.Errorf("failed to scan queue track: %w", err)
		}

		item := core.TrackMetadata{
			URI:         uri,
			ID:          trackID.String,
			Name:        name.String,
			Album:       album.String,
			ImageURL:    imageURL.String,
			Duration:    time.Duration(durationMs.Int64) * time.Millisecond,
			Placeholder: placeholder,
		}
		if artists.Valid && artists.String != "" {
			if err := json.Unmarshal([]byte(artists.String), &item.Artists); err != nil {
				r.logger.Warn("Ignoring malformed artists column",
					zap.String("uri", uri),
					zap.Error(err))
				item.Artists = nil
			}
		}

		tracks = append(tracks, uri)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate queue tracks: %w", err)
	}
	return tracks, items, nil
}

func (r *SQLiteRepository) loadManual(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT uri FROM queue_manual WHERE storage_key = ? ORDER BY uri`, r.key)
	if err != nil {
		return nil, fmt.Errorf("failed to read manually added tracks: %w", err)
	}
	defer rows.Close()

	var uris []string
	for rows.Next() {
		var uri string
		if err := rows.Scan(&uri); err != nil {
			return nil, fmt.Errorf("failed to scan manually added track: %w", err)
		}
		uris = append(uris, uri)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate manually added tracks: %w", err)
	}
	return uris, nil
}

// Save replaces the stored queue in one transaction.
func (r *SQLiteRepository) Save(ctx context.Context, state core.PersistedQueue) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO queue_state (storage_key, current_index, volume, circular, shuffle, source_type, source_id, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(storage_key) DO UPDATE SET
				current_index = excluded.current_index,
				volume = excluded.volume,
				circular = excluded.circular,
				shuffle = excluded.shuffle,
				source_type = excluded.source_type,
				source_id = excluded.source_id,
				updated_at = excluded.updated_at`,
			r.key, state.CurrentIndex, state.Volume, state.IsCircular, state.IsShuffle,
			string(state.SourceType), state.SourceID, time.Now().Unix(),
		); err != nil {
			return fmt.Errorf("failed to save queue state: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM queue_tracks WHERE storage_key = ?`, r.key); err != nil {
			return fmt.Errorf("failed to clear queue tracks: %w", err)
		}
		if err := insertTracks(ctx, tx, r.key, state); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM queue_manual WHERE storage_key = ?`, r.key); err != nil {
			return fmt.Errorf("failed to clear manually added tracks: %w", err)
		}
		for _, uri := range state.ManuallyAdded {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO queue_manual (storage_key, uri) VALUES (?, ?)`, r.key, uri); err != nil {
				return fmt.Errorf("failed to save manually added track: %w", err)
			}
		}
		return nil
	})
}

func insertTracks(ctx context.Context, tx *sql.Tx, key string, state core.PersistedQueue) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO queue_tracks (storage_key, position, uri, track_id, name, artists, album, image_url, duration_ms, placeholder)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare track insert: %w", err)
	}
	defer stmt.Close()

	for i, uri := range state.Tracks {
		item := core.PlaceholderTrack(uri)
		if i < len(state.TrackItems) && state.TrackItems[i].URI == uri {
			item = state.TrackItems[i]
		}

		var artists []byte
		if len(item.Artists) > 0 {
			if artists, err = json.Marshal(item.Artists); err != nil {
				return fmt.Errorf("failed to encode artists: %w", err)
			}
		}

		if _, err := stmt.ExecContext(ctx, key, i, uri, item.ID, item.Name, string(artists),
			item.Album, item.ImageURL, item.Duration.Milliseconds(), item.Placeholder); err != nil {
			return fmt.Errorf("failed to save queue track: %w", err)
		}
	}
	return nil
}

func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// NopRepository keeps nothing. It is used when the database cannot be opened.
type NopRepository struct{}

// Load always reports an empty store.
func (NopRepository) Load(context.Context) (*core.PersistedQueue, error) { return nil, nil }

// Save discards state.
func (NopRepository) Save(context.Context, core.PersistedQueue) error { return nil }
