package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/reportpilot/reportpilot/internal/domain"
	"github.com/reportpilot/reportpilot/shared/postgresql"
)

const scheduleColumns = `
	id, name, sheet_ref, worksheet, recipient, language,
	frequency_type, frequency_minutes, frequency_hour, frequency_minute,
	frequency_weekday, frequency_expression,
	include_charts, include_raw_data, auto_refresh, paused, snapshot,
	next_run_at, last_run_at, last_run_status, created_at, updated_at`

const runColumns = `
	id, schedule_id, trigger_type, status, report_name, sheet_ref,
	worksheet, recipient, language, include_charts, include_raw_data,
	rows_fetched, columns_fetched, retry_count, max_retries, worker_id,
	error_message, pdf_path, xlsx_path, started_at, finished_at,
	last_heartbeat_at, created_at, updated_at`

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS schedules (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		sheet_ref TEXT NOT NULL,
		worksheet TEXT NOT NULL DEFAULT '',
		recipient TEXT NOT NULL,
		language TEXT NOT NULL DEFAULT 'en',
		frequency_type TEXT NOT NULL,
		frequency_minutes INT NOT NULL DEFAULT 0,
		frequency_hour INT NOT NULL DEFAULT 0,
		frequency_minute INT NOT NULL DEFAULT 0,
		frequency_weekday TEXT NOT NULL DEFAULT '',
		frequency_expression TEXT NOT NULL DEFAULT '',
		include_charts BOOLEAN NOT NULL DEFAULT TRUE,
		include_raw_data BOOLEAN NOT NULL DEFAULT FALSE,
		auto_refresh BOOLEAN NOT NULL DEFAULT TRUE,
		paused BOOLEAN NOT NULL DEFAULT FALSE,
		snapshot BYTEA,
		next_run_at TIMESTAMPTZ NOT NULL,
		last_run_at TIMESTAMPTZ,
		last_run_status TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_schedules_due ON schedules (next_run_at) WHERE NOT paused`,
	`CREATE TABLE IF NOT EXISTS runs (
		id UUID PRIMARY KEY,
		schedule_id TEXT NOT NULL DEFAULT '',
		trigger_type TEXT NOT NULL,
		status TEXT NOT NULL,
		report_name TEXT NOT NULL,
		sheet_ref TEXT NOT NULL,
		worksheet TEXT NOT NULL DEFAULT '',
		recipient TEXT NOT NULL,
		language TEXT NOT NULL DEFAULT 'en',
		include_charts BOOLEAN NOT NULL DEFAULT TRUE,
		include_raw_data BOOLEAN NOT NULL DEFAULT FALSE,
		rows_fetched INT NOT NULL DEFAULT 0,
		columns_fetched INT NOT NULL DEFAULT 0,
		retry_count INT NOT NULL DEFAULT 0,
		max_retries INT NOT NULL DEFAULT 3,
		worker_id TEXT,
		error_message TEXT NOT NULL DEFAULT '',
		pdf_path TEXT NOT NULL DEFAULT '',
		xlsx_path TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMPTZ,
		finished_at TIMESTAMPTZ,
		last_heartbeat_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_schedule ON runs (schedule_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_status ON runs (status)`,
}

// PostgresStore is the sqlx-backed Store driver.
type PostgresStore struct {
	db     *sqlx.DB
	pg     *postgresql.Client
	logger *slog.Logger
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps an established PostgreSQL client.
func NewPostgresStore(pg *postgresql.Client, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		db:     pg.GetDB(),
		pg:     pg,
		logger: logger,
	}
}

// EnsureSchema creates the tables and indexes when they do not exist
// yet. Runs keep no foreign key to schedules so history survives
// schedule deletion.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateSchedule(ctx context.Context, schedule *domain.Schedule) error {
	query := `
		INSERT INTO schedules (` + scheduleColumns + `)
		VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22
		)
	`

	_, err := s.db.ExecContext(ctx, query,
		schedule.ID,
		schedule.Name,
		schedule.SheetRef,
		schedule.Worksheet,
		schedule.Recipient,
		schedule.Language,
		schedule.Frequency.Type,
		schedule.Frequency.Minutes,
		schedule.Frequency.Hour,
		schedule.Frequency.Minute,
		schedule.Frequency.Weekday,
		schedule.Frequency.Expression,
		schedule.IncludeCharts,
		schedule.IncludeRawData,
		schedule.AutoRefresh,
		schedule.Paused,
		schedule.Snapshot,
		schedule.NextRunAt,
		nullTime(schedule.LastRunAt),
		schedule.LastRunStatus,
		schedule.CreatedAt,
		schedule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create schedule: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSchedule(ctx context.Context, id string) (*domain.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = $1`

	var row scheduleRow
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return row.toDomain(), nil
}

func (s *PostgresStore) UpdateSchedule(ctx context.Context, schedule *domain.Schedule) error {
	query := `
		UPDATE schedules
		SET name = $1,
			sheet_ref = $2,
			worksheet = $3,
			recipient = $4,
			language = $5,
			frequency_type = $6,
			frequency_minutes = $7,
			frequency_hour = $8,
			frequency_minute = $9,
			frequency_weekday = $10,
			frequency_expression = $11,
			include_charts = $12,
			include_raw_data = $13,
			auto_refresh = $14,
			paused = $15,
			snapshot = $16,
			next_run_at = $17,
			updated_at = NOW()
		WHERE id = $18
	`

	rows, err := s.pg.ExecRowsContext(ctx, query,
		schedule.Name,
		schedule.SheetRef,
		schedule.Worksheet,
		schedule.Recipient,
		schedule.Language,
		schedule.Frequency.Type,
		schedule.Frequency.Minutes,
		schedule.Frequency.Hour,
		schedule.Frequency.Minute,
		schedule.Frequency.Weekday,
		schedule.Frequency.Expression,
		schedule.IncludeCharts,
		schedule.IncludeRawData,
		schedule.AutoRefresh,
		schedule.Paused,
		schedule.Snapshot,
		schedule.NextRunAt,
		schedule.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	if rows == 0 {
		return domain.ErrScheduleNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteSchedule(ctx context.Context, id string) error {
	rows, err := s.pg.ExecRowsContext(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	if rows == 0 {
		return domain.ErrScheduleNotFound
	}
	return nil
}

func (s *PostgresStore) ListSchedules(ctx context.Context, filter ScheduleFilter) ([]*domain.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.Paused != nil {
		query += fmt.Sprintf(" AND paused = $%d", argIdx)
		args = append(args, *filter.Paused)
		argIdx++
	}

	if filter.Language != "" {
		query += fmt.Sprintf(" AND language = $%d", argIdx)
		args = append(args, filter.Language)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.ID)
		argIdx += 2
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var rows []scheduleRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}

	schedules := make([]*domain.Schedule, len(rows))
	for i := range rows {
		schedules[i] = rows[i].toDomain()
	}
	return schedules, nil
}

func (s *PostgresStore) DueSchedules(ctx context.Context, now time.Time, limit int) ([]*domain.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE paused = FALSE AND next_run_at <= $1
		ORDER BY next_run_at ASC
		LIMIT $2
	`

	var rows []scheduleRow
	if err := s.db.SelectContext(ctx, &rows, query, now, limit); err != nil {
		return nil, fmt.Errorf("failed to query due schedules: %w", err)
	}

	schedules := make([]*domain.Schedule, len(rows))
	for i := range rows {
		schedules[i] = rows[i].toDomain()
	}
	return schedules, nil
}

func (s *PostgresStore) UpdateScheduleNextRun(ctx context.Context, id string, nextRunAt time.Time) error {
	query := `UPDATE schedules SET next_run_at = $1, updated_at = NOW() WHERE id = $2`

	rows, err := s.pg.ExecRowsContext(ctx, query, nextRunAt, id)
	if err != nil {
		return fmt.Errorf("failed to update schedule next run: %w", err)
	}
	if rows == 0 {
		s.logger.Warn("Schedule next-run update - no rows affected (schedule may be deleted)",
			slog.String("schedule_id", id),
		)
	}
	return nil
}

func (s *PostgresStore) UpdateScheduleLastRun(ctx context.Context, id string, lastRunAt time.Time, status string) error {
	query := `UPDATE schedules SET last_run_at = $1, last_run_status = $2, updated_at = NOW() WHERE id = $3`

	if _, err := s.pg.ExecRowsContext(ctx, query, lastRunAt, status, id); err != nil {
		return fmt.Errorf("failed to update schedule last run: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, run *domain.Run) error {
	query := `
		INSERT INTO runs (
			id, schedule_id, trigger_type, status, report_name, sheet_ref,
			worksheet, recipient, language, include_charts, include_raw_data,
			max_retries, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14
		)
	`

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.ScheduleID,
		run.Trigger,
		run.Status,
		run.ReportName,
		run.SheetRef,
		run.Worksheet,
		run.Recipient,
		run.Language,
		run.IncludeCharts,
		run.IncludeRawData,
		run.MaxRetries,
		run.CreatedAt,
		run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`

	var row runRow
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return row.toDomain(), nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]*domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.ScheduleID != "" {
		query += fmt.Sprintf(" AND schedule_id = $%d", argIdx)
		args = append(args, filter.ScheduleID)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Trigger != "" {
		query += fmt.Sprintf(" AND trigger_type = $%d", argIdx)
		args = append(args, filter.Trigger)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.ID)
		argIdx += 2
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	runs := make([]*domain.Run, len(rows))
	for i := range rows {
		runs[i] = rows[i].toDomain()
	}
	return runs, nil
}

// ClaimRun uses optimistic locking: only a PENDING run can move to
// RUNNING, so concurrent workers cannot both take it.
func (s *PostgresStore) ClaimRun(ctx context.Context, id, workerID string) (*domain.Run, error) {
	query := `
		UPDATE runs
		SET status = $1,
			worker_id = $2,
			started_at = NOW(),
			last_heartbeat_at = NOW(),
			updated_at = NOW()
		WHERE id = $3
		  AND status = $4
		RETURNING ` + runColumns

	var row runRow
	err := s.db.GetContext(ctx, &row, query, domain.RunStatusRunning, workerID, id, domain.RunStatusPending)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("Failed to claim run - already claimed or not found",
				slog.String("run_id", id),
				slog.String("worker_id", workerID),
			)
			return nil, domain.ErrRunNotClaimable
		}
		return nil, fmt.Errorf("failed to claim run: %w", err)
	}

	s.logger.Info("Run claimed successfully",
		slog.String("run_id", id),
		slog.String("worker_id", workerID),
	)
	return row.toDomain(), nil
}

func (s *PostgresStore) MarkRunRetrying(ctx context.Context, id, errorMessage string) error {
	query := `
		UPDATE runs
		SET status = $1,
			retry_count = retry_count + 1,
			worker_id = NULL,
			error_message = $2,
			updated_at = NOW()
		WHERE id = $3
		  AND status = $4
	`

	rows, err := s.pg.ExecRowsContext(ctx, query, domain.RunStatusPending, errorMessage, id, domain.RunStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to mark run retrying: %w", err)
	}
	if rows == 0 {
		s.logger.Warn("Run retry update - no rows affected (run may not be running)",
			slog.String("run_id", id),
		)
	}
	return nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, id string, result RunResult) error {
	query := `
		UPDATE runs
		SET status = $1::text,
			error_message = $2,
			rows_fetched = $3,
			columns_fetched = $4,
			pdf_path = $5,
			xlsx_path = $6,
			finished_at = CASE
				WHEN $1::text IN ($7::text, $8::text, $9::text) THEN NOW()
				ELSE finished_at
			END,
			updated_at = NOW()
		WHERE id = $10
	`

	rows, err := s.pg.ExecRowsContext(ctx, query,
		result.Status,
		result.ErrorMessage,
		result.RowsFetched,
		result.ColumnsFetched,
		result.PDFPath,
		result.XLSXPath,
		domain.RunStatusCompleted,
		domain.RunStatusFailed,
		domain.RunStatusCanceled,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if rows == 0 {
		return domain.ErrRunNotFound
	}

	s.logger.Info("Run status updated",
		slog.String("run_id", id),
		slog.String("status", result.Status),
	)
	return nil
}

func (s *PostgresStore) HeartbeatRun(ctx context.Context, id string) error {
	query := `
		UPDATE runs
		SET last_heartbeat_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	rows, err := s.pg.ExecRowsContext(ctx, query, id, domain.RunStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to update run heartbeat: %w", err)
	}
	if rows == 0 {
		s.logger.Warn("Run heartbeat update - no rows affected (run may not be running)",
			slog.String("run_id", id),
		)
	}
	return nil
}

func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	return s.pg.HealthCheck(ctx)
}

func (s *PostgresStore) Close() error {
	return s.pg.Close()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
