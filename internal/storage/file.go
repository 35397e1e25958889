package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/reportpilot/reportpilot/internal/domain"
)

// FileStore is a single-process Store driver that keeps everything in
// memory and mirrors each record to its own JSON document under dir
// (schedules/<id>.json, runs/<id>.json). It exists for local
// development and single-node deployments without a database;
// deployments with PostgreSQL use PostgresStore.
type FileStore struct {
	dir    string
	logger *slog.Logger

	mu        sync.RWMutex
	schedules map[string]*domain.Schedule
	runs      map[string]*domain.Run
}

var _ Store = (*FileStore)(nil)

// NewFileStore loads any existing records from dir, creating the
// layout when missing.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	s := &FileStore{
		dir:       dir,
		logger:    logger,
		schedules: make(map[string]*domain.Schedule),
		runs:      make(map[string]*domain.Run),
	}

	for _, sub := range []string{s.schedulesDir(), s.runsDir()} {
		if err := os.MkdirAll(sub, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	logger.Info("File store ready",
		slog.String("dir", dir),
		slog.Int("schedules", len(s.schedules)),
		slog.Int("runs", len(s.runs)),
	)
	return s, nil
}

func (s *FileStore) schedulesDir() string {
	return filepath.Join(s.dir, "schedules")
}

func (s *FileStore) runsDir() string {
	return filepath.Join(s.dir, "runs")
}

func (s *FileStore) schedulePath(id string) string {
	return filepath.Join(s.schedulesDir(), id+".json")
}

func (s *FileStore) runPath(id string) string {
	return filepath.Join(s.runsDir(), id+".json")
}

func (s *FileStore) load() error {
	if err := eachJSONFile(s.schedulesDir(), func(path string) error {
		var schedule domain.Schedule
		if err := readJSONFile(path, &schedule); err != nil {
			return err
		}
		s.schedules[schedule.ID] = &schedule
		return nil
	}); err != nil {
		return fmt.Errorf("failed to load schedules: %w", err)
	}

	if err := eachJSONFile(s.runsDir(), func(path string) error {
		var run domain.Run
		if err := readJSONFile(path, &run); err != nil {
			return err
		}
		s.runs[run.ID] = &run
		return nil
	}); err != nil {
		return fmt.Errorf("failed to load runs: %w", err)
	}
	return nil
}

func (s *FileStore) CreateSchedule(ctx context.Context, schedule *domain.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schedules[schedule.ID]; ok {
		return fmt.Errorf("schedule %s already exists", schedule.ID)
	}

	stored := copySchedule(schedule)
	if err := writeJSONAtomic(s.schedulePath(schedule.ID), stored); err != nil {
		return fmt.Errorf("failed to persist schedule: %w", err)
	}
	s.schedules[schedule.ID] = stored
	return nil
}

func (s *FileStore) GetSchedule(ctx context.Context, id string) (*domain.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	schedule, ok := s.schedules[id]
	if !ok {
		return nil, domain.ErrScheduleNotFound
	}
	return copySchedule(schedule), nil
}

func (s *FileStore) UpdateSchedule(ctx context.Context, schedule *domain.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.schedules[schedule.ID]
	if !ok {
		return domain.ErrScheduleNotFound
	}

	updated := copySchedule(schedule)
	updated.LastRunAt = existing.LastRunAt
	updated.LastRunStatus = existing.LastRunStatus
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	if err := writeJSONAtomic(s.schedulePath(schedule.ID), updated); err != nil {
		return fmt.Errorf("failed to persist schedule: %w", err)
	}
	s.schedules[schedule.ID] = updated
	return nil
}

func (s *FileStore) DeleteSchedule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schedules[id]; !ok {
		return domain.ErrScheduleNotFound
	}
	if err := os.Remove(s.schedulePath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	delete(s.schedules, id)
	return nil
}

func (s *FileStore) ListSchedules(ctx context.Context, filter ScheduleFilter) ([]*domain.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*domain.Schedule, 0, len(s.schedules))
	for _, schedule := range s.schedules {
		if filter.Paused != nil && schedule.Paused != *filter.Paused {
			continue
		}
		if filter.Language != "" && schedule.Language != filter.Language {
			continue
		}
		if filter.Cursor != nil && !beforeCursor(schedule.CreatedAt, schedule.ID, filter.Cursor) {
			continue
		}
		matched = append(matched, schedule)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	if len(matched) > filter.PageSize+1 {
		matched = matched[:filter.PageSize+1]
	}

	out := make([]*domain.Schedule, len(matched))
	for i, schedule := range matched {
		out[i] = copySchedule(schedule)
	}
	return out, nil
}

func (s *FileStore) DueSchedules(ctx context.Context, now time.Time, limit int) ([]*domain.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	due := make([]*domain.Schedule, 0)
	for _, schedule := range s.schedules {
		if schedule.Paused || schedule.NextRunAt.After(now) {
			continue
		}
		due = append(due, schedule)
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].NextRunAt.Before(due[j].NextRunAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}

	out := make([]*domain.Schedule, len(due))
	for i, schedule := range due {
		out[i] = copySchedule(schedule)
	}
	return out, nil
}

func (s *FileStore) UpdateScheduleNextRun(ctx context.Context, id string, nextRunAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedule, ok := s.schedules[id]
	if !ok {
		s.logger.Warn("Schedule next-run update - no rows affected (schedule may be deleted)",
			slog.String("schedule_id", id),
		)
		return nil
	}
	schedule.NextRunAt = nextRunAt
	schedule.UpdatedAt = time.Now().UTC()
	return writeJSONAtomic(s.schedulePath(id), schedule)
}

func (s *FileStore) UpdateScheduleLastRun(ctx context.Context, id string, lastRunAt time.Time, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedule, ok := s.schedules[id]
	if !ok {
		return nil
	}
	at := lastRunAt
	schedule.LastRunAt = &at
	schedule.LastRunStatus = status
	schedule.UpdatedAt = time.Now().UTC()
	return writeJSONAtomic(s.schedulePath(id), schedule)
}

func (s *FileStore) CreateRun(ctx context.Context, run *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; ok {
		return fmt.Errorf("run %s already exists", run.ID)
	}

	stored := copyRun(run)
	if err := writeJSONAtomic(s.runPath(run.ID), stored); err != nil {
		return fmt.Errorf("failed to persist run: %w", err)
	}
	s.runs[run.ID] = stored
	return nil
}

func (s *FileStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	return copyRun(run), nil
}

func (s *FileStore) ListRuns(ctx context.Context, filter RunFilter) ([]*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*domain.Run, 0, len(s.runs))
	for _, run := range s.runs {
		if filter.ScheduleID != "" && run.ScheduleID != filter.ScheduleID {
			continue
		}
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		if filter.Trigger != "" && run.Trigger != filter.Trigger {
			continue
		}
		if filter.Cursor != nil && !beforeCursor(run.CreatedAt, run.ID, filter.Cursor) {
			continue
		}
		matched = append(matched, run)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	if len(matched) > filter.PageSize+1 {
		matched = matched[:filter.PageSize+1]
	}

	out := make([]*domain.Run, len(matched))
	for i, run := range matched {
		out[i] = copyRun(run)
	}
	return out, nil
}

func (s *FileStore) ClaimRun(ctx context.Context, id, workerID string) (*domain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok || run.Status != domain.RunStatusPending {
		s.logger.Warn("Failed to claim run - already claimed or not found",
			slog.String("run_id", id),
			slog.String("worker_id", workerID),
		)
		return nil, domain.ErrRunNotClaimable
	}

	now := time.Now().UTC()
	run.Status = domain.RunStatusRunning
	run.WorkerID = workerID
	run.StartedAt = &now
	run.LastHeartbeatAt = &now
	run.UpdatedAt = now
	if err := writeJSONAtomic(s.runPath(id), run); err != nil {
		return nil, fmt.Errorf("failed to persist run: %w", err)
	}
	return copyRun(run), nil
}

func (s *FileStore) MarkRunRetrying(ctx context.Context, id, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok || run.Status != domain.RunStatusRunning {
		s.logger.Warn("Run retry update - no rows affected (run may not be running)",
			slog.String("run_id", id),
		)
		return nil
	}

	run.Status = domain.RunStatusPending
	run.RetryCount++
	run.WorkerID = ""
	run.ErrorMessage = errorMessage
	run.UpdatedAt = time.Now().UTC()
	return writeJSONAtomic(s.runPath(id), run)
}

func (s *FileStore) FinishRun(ctx context.Context, id string, result RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return domain.ErrRunNotFound
	}

	now := time.Now().UTC()
	run.Status = result.Status
	run.ErrorMessage = result.ErrorMessage
	run.RowsFetched = result.RowsFetched
	run.ColumnsFetched = result.ColumnsFetched
	run.PDFPath = result.PDFPath
	run.XLSXPath = result.XLSXPath
	if run.Terminal() {
		run.FinishedAt = &now
	}
	run.UpdatedAt = now
	return writeJSONAtomic(s.runPath(id), run)
}

func (s *FileStore) HeartbeatRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok || run.Status != domain.RunStatusRunning {
		s.logger.Warn("Run heartbeat update - no rows affected (run may not be running)",
			slog.String("run_id", id),
		)
		return nil
	}

	now := time.Now().UTC()
	run.LastHeartbeatAt = &now
	run.UpdatedAt = now
	return writeJSONAtomic(s.runPath(id), run)
}

func (s *FileStore) HealthCheck(ctx context.Context) error {
	if _, err := os.Stat(s.dir); err != nil {
		return fmt.Errorf("file store health check failed: %w", err)
	}
	return nil
}

// Close is a no-op: every mutation is persisted synchronously.
func (s *FileStore) Close() error {
	return nil
}

func beforeCursor(createdAt time.Time, id string, cursor *Cursor) bool {
	if createdAt.Before(cursor.CreatedAt) {
		return true
	}
	return createdAt.Equal(cursor.CreatedAt) && id < cursor.ID
}

func copySchedule(schedule *domain.Schedule) *domain.Schedule {
	out := *schedule
	if schedule.Snapshot != nil {
		out.Snapshot = append([]byte(nil), schedule.Snapshot...)
	}
	if schedule.LastRunAt != nil {
		at := *schedule.LastRunAt
		out.LastRunAt = &at
	}
	return &out
}

func copyRun(run *domain.Run) *domain.Run {
	out := *run
	out.StartedAt = copyTime(run.StartedAt)
	out.FinishedAt = copyTime(run.FinishedAt)
	out.LastHeartbeatAt = copyTime(run.LastHeartbeatAt)
	return &out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	at := *t
	return &at
}

func eachJSONFile(dir string, fn func(path string) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if err := fn(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func readJSONFile(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
