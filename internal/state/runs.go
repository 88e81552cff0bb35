package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// CreateRun records the start of a build.
func (s *SQLiteStore) CreateRun(ctx context.Context, configPath string) (*Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	run := &Run{
		ID:         generateID(),
		ConfigPath: configPath,
		Status:     RunStatusRunning,
		StartedAt:  time.Now().UTC(),
	}

	s.logger.Debug("creating run", slog.String("id", run.ID), slog.String("config", configPath))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, config_path, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.ConfigPath, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// CompleteRun marks a run as finished with the given status.
func (s *SQLiteStore) CompleteRun(ctx context.Context, id string, status RunStatus, errMsg string) error {
	if s.db == nil {
		return errNotOpened
	}

	s.logger.Debug("completing run", slog.String("id", id), slog.String("status", string(status)))

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(status), time.Now().UTC(), nullString(errMsg), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, config_path, status, started_at, completed_at, error FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first. A limit of zero or
// less returns every run.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, config_path, status, started_at, completed_at, error
		 FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RecordProjection stores the outcome of a projection in a run. Recording
// the same projection twice in a run replaces the earlier record.
func (s *SQLiteStore) RecordProjection(ctx context.Context, rec *ProjectionRecord) error {
	if s.db == nil {
		return errNotOpened
	}
	if rec.ID == "" {
		rec.ID = generateID()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}

	s.logger.Debug("recording projection",
		slog.String("run_id", rec.RunID),
		slog.String("projection", rec.Projection),
		slog.String("status", string(rec.Status)))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projection_results
		   (id, run_id, projection, status, shapes, errors, warnings, plugins, error, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, projection) DO UPDATE SET
		   status = excluded.status,
		   shapes = excluded.shapes,
		   errors = excluded.errors,
		   warnings = excluded.warnings,
		   plugins = excluded.plugins,
		   error = excluded.error,
		   recorded_at = excluded.recorded_at`,
		rec.ID, rec.RunID, rec.Projection, string(rec.Status), rec.Shapes, rec.Errors, rec.Warnings,
		strings.Join(rec.Plugins, ","), nullString(rec.Error), rec.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record projection %s: %w", rec.Projection, err)
	}
	return nil
}

// ListProjections returns the projection records of a run sorted by name.
func (s *SQLiteStore) ListProjections(ctx context.Context, runID string) ([]*ProjectionRecord, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, projection, status, shapes, errors, warnings, plugins, error, recorded_at
		 FROM projection_results WHERE run_id = ? ORDER BY projection`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*ProjectionRecord
	for rows.Next() {
		rec := &ProjectionRecord{}
		var status, plugins string
		var errMsg sql.NullString
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Projection, &status, &rec.Shapes,
			&rec.Errors, &rec.Warnings, &plugins, &errMsg, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan projection: %w", err)
		}
		rec.Status = ProjectionStatus(status)
		if plugins != "" {
			rec.Plugins = strings.Split(plugins, ",")
		}
		rec.Error = errMsg.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	run := &Run{}
	var status string
	var completedAt sql.NullTime
	var errMsg sql.NullString
	if err := row.Scan(&run.ID, &run.ConfigPath, &status, &run.StartedAt, &completedAt, &errMsg); err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	run.Error = errMsg.String
	return run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
