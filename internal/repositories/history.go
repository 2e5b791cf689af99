package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/beatsync/internal/models"
)

// HistoryRepository persists sync runs and their per-playlist outcomes.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a new HistoryRepository with the given database connection
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Init creates the history tables when they do not exist yet.
func (r *HistoryRepository) Init(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS sync_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP,
			sources INTEGER NOT NULL DEFAULT 0,
			synced INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS playlist_syncs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER NOT NULL DEFAULT 0,
			title TEXT NOT NULL DEFAULT '',
			target_id TEXT NOT NULL DEFAULT '',
			source_url TEXT NOT NULL DEFAULT '',
			matched INTEGER NOT NULL DEFAULT 0,
			total INTEGER NOT NULL DEFAULT 0,
			created INTEGER NOT NULL DEFAULT 0,
			error_message TEXT NOT NULL DEFAULT '',
			finished_at TIMESTAMP NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_playlist_syncs_run_id ON playlist_syncs (run_id);
	`

	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create history schema: %w", err)
	}
	return nil
}

// StartRun inserts a new run row and returns its ID.
func (r *HistoryRepository) StartRun(ctx context.Context, startedAt time.Time, sources int) (int64, error) {
	query := `INSERT INTO sync_runs (started_at, sources) VALUES (?, ?)`

	result, err := r.db.ExecContext(ctx, query, startedAt, sources)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}
	return id, nil
}

// FinishRun closes a run row with its final counts.
func (r *HistoryRepository) FinishRun(ctx context.Context, runID int64, finishedAt time.Time, synced, failed int) error {
	query := `UPDATE sync_runs SET finished_at = ?, synced = ?, failed = ? WHERE id = ?`

	if _, err := r.db.ExecContext(ctx, query, finishedAt, synced, failed, runID); err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// RecordPlaylistSync inserts one playlist outcome row.
func (r *HistoryRepository) RecordPlaylistSync(ctx context.Context, sync models.PlaylistSync) error {
	query := `
		INSERT INTO playlist_syncs (
			run_id, title, target_id, source_url, matched, total,
			created, error_message, finished_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		sync.RunID,
		sync.Title,
		sync.TargetID,
		sync.SourceURL,
		sync.Matched,
		sync.Total,
		sync.Created,
		sync.Err,
		sync.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert playlist sync: %w", err)
	}
	return nil
}

// Runs returns the most recent runs, newest first.
func (r *HistoryRepository) Runs(ctx context.Context, limit int) ([]models.SyncRun, error) {
	query := `
		SELECT id, started_at, COALESCE(finished_at, started_at), sources, synced, failed
		FROM sync_runs
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.SyncRun
	for rows.Next() {
		var run models.SyncRun
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.Sources, &run.Synced, &run.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// PlaylistSyncs returns the playlist outcomes of one run, oldest first.
func (r *HistoryRepository) PlaylistSyncs(ctx context.Context, runID int64) ([]models.PlaylistSync, error) {
	query := `
		SELECT id, run_id, title, target_id, source_url, matched, total, created, error_message, finished_at
		FROM playlist_syncs
		WHERE run_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist syncs: %w", err)
	}
	defer rows.Close()

	var syncs []models.PlaylistSync
	for rows.Next() {
		var sync models.PlaylistSync
		if err := rows.Scan(
			&sync.ID, &sync.RunID, &sync.Title, &sync.TargetID, &sync.SourceURL,
			&sync.Matched, &sync.Total, &sync.Created, &sync.Err, &sync.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan playlist sync: %w", err)
		}
		syncs = append(syncs, sync)
	}
	return syncs, rows.Err()
}
