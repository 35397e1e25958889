package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportpilot/reportpilot/internal/domain"
)

func newTestStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := NewFileStore(dir, logger)
	require.NoError(t, err)
	return store, dir
}

func testSchedule(id string, createdAt time.Time) *domain.Schedule {
	return &domain.Schedule{
		ID:        id,
		Name:      "Weekly Sales",
		SheetRef:  "https://docs.google.com/spreadsheets/d/abc123/edit",
		Recipient: "team@example.com",
		Language:  "en",
		Frequency: domain.Frequency{
			Type:    domain.FrequencyInterval,
			Minutes: 15,
		},
		IncludeCharts: true,
		AutoRefresh:   true,
		NextRunAt:     createdAt.Add(15 * time.Minute),
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
}

func testRun(id, scheduleID string, createdAt time.Time) *domain.Run {
	return &domain.Run{
		ID:         id,
		ScheduleID: scheduleID,
		Trigger:    domain.TriggerScheduled,
		Status:     domain.RunStatusPending,
		ReportName: "Weekly Sales",
		SheetRef:   "https://docs.google.com/spreadsheets/d/abc123/edit",
		Recipient:  "team@example.com",
		Language:   "en",
		MaxRetries: 3,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
}

func TestFileStore_ScheduleCRUD(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	createdAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	schedule := testSchedule("sched-1", createdAt)
	require.NoError(t, store.CreateSchedule(ctx, schedule))

	err := store.CreateSchedule(ctx, schedule)
	assert.Error(t, err)

	got, err := store.GetSchedule(ctx, "sched-1")
	require.NoError(t, err)
	assert.Equal(t, "Weekly Sales", got.Name)
	assert.Equal(t, domain.FrequencyInterval, got.Frequency.Type)

	got.Name = "Renamed"
	got.Paused = true
	require.NoError(t, store.UpdateSchedule(ctx, got))

	updated, err := store.GetSchedule(ctx, "sched-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.True(t, updated.Paused)
	assert.Equal(t, createdAt, updated.CreatedAt)

	require.NoError(t, store.DeleteSchedule(ctx, "sched-1"))
	_, err = store.GetSchedule(ctx, "sched-1")
	assert.ErrorIs(t, err, domain.ErrScheduleNotFound)
	assert.ErrorIs(t, store.DeleteSchedule(ctx, "sched-1"), domain.ErrScheduleNotFound)
	assert.ErrorIs(t, store.UpdateSchedule(ctx, got), domain.ErrScheduleNotFound)
}

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()
	createdAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.CreateSchedule(ctx, testSchedule("sched-1", createdAt)))
	require.NoError(t, store.CreateRun(ctx, testRun("run-1", "sched-1", createdAt)))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reopened, err := NewFileStore(dir, logger)
	require.NoError(t, err)

	schedule, err := reopened.GetSchedule(ctx, "sched-1")
	require.NoError(t, err)
	assert.Equal(t, "Weekly Sales", schedule.Name)

	run, err := reopened.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusPending, run.Status)
}

func TestFileStore_ReturnsCopies(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	createdAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	schedule := testSchedule("sched-1", createdAt)
	schedule.Snapshot = []byte(`{"rows":1}`)
	require.NoError(t, store.CreateSchedule(ctx, schedule))

	got, err := store.GetSchedule(ctx, "sched-1")
	require.NoError(t, err)
	got.Name = "mutated"
	got.Snapshot[0] = 'X'

	fresh, err := store.GetSchedule(ctx, "sched-1")
	require.NoError(t, err)
	assert.Equal(t, "Weekly Sales", fresh.Name)
	assert.Equal(t, []byte(`{"rows":1}`), fresh.Snapshot)
}

func TestFileStore_ListSchedulesPagination(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		schedule := testSchedule(fmt.Sprintf("sched-%d", i), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.CreateSchedule(ctx, schedule))
	}

	// Newest first, PageSize+1 rows so the caller can detect more pages.
	page, err := store.ListSchedules(ctx, ScheduleFilter{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "sched-4", page[0].ID)
	assert.Equal(t, "sched-3", page[1].ID)
	assert.Equal(t, "sched-2", page[2].ID)

	next, err := store.ListSchedules(ctx, ScheduleFilter{
		PageSize: 2,
		Cursor:   &Cursor{CreatedAt: page[1].CreatedAt, ID: page[1].ID},
	})
	require.NoError(t, err)
	require.Len(t, next, 3)
	assert.Equal(t, "sched-2", next[0].ID)
	assert.Equal(t, "sched-1", next[1].ID)
	assert.Equal(t, "sched-0", next[2].ID)

	last, err := store.ListSchedules(ctx, ScheduleFilter{
		PageSize: 2,
		Cursor:   &Cursor{CreatedAt: next[1].CreatedAt, ID: next[1].ID},
	})
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "sched-0", last[0].ID)
}

func TestFileStore_ListSchedulesFilters(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	active := testSchedule("sched-active", base)
	paused := testSchedule("sched-paused", base.Add(time.Minute))
	paused.Paused = true
	spanish := testSchedule("sched-es", base.Add(2*time.Minute))
	spanish.Language = "es"
	require.NoError(t, store.CreateSchedule(ctx, active))
	require.NoError(t, store.CreateSchedule(ctx, paused))
	require.NoError(t, store.CreateSchedule(ctx, spanish))

	pausedOnly := true
	got, err := store.ListSchedules(ctx, ScheduleFilter{Paused: &pausedOnly, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "sched-paused", got[0].ID)

	got, err = store.ListSchedules(ctx, ScheduleFilter{Language: "es", PageSize: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "sched-es", got[0].ID)
}

func TestFileStore_DueSchedules(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	early := testSchedule("sched-early", base)
	early.NextRunAt = base.Add(-10 * time.Minute)
	late := testSchedule("sched-late", base)
	late.NextRunAt = base.Add(-1 * time.Minute)
	future := testSchedule("sched-future", base)
	future.NextRunAt = base.Add(time.Hour)
	pausedDue := testSchedule("sched-paused", base)
	pausedDue.NextRunAt = base.Add(-20 * time.Minute)
	pausedDue.Paused = true

	for _, schedule := range []*domain.Schedule{early, late, future, pausedDue} {
		require.NoError(t, store.CreateSchedule(ctx, schedule))
	}

	due, err := store.DueSchedules(ctx, base, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "sched-early", due[0].ID)
	assert.Equal(t, "sched-late", due[1].ID)

	limited, err := store.DueSchedules(ctx, base, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "sched-early", limited[0].ID)
}

func TestFileStore_ScheduleRunBookkeeping(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.CreateSchedule(ctx, testSchedule("sched-1", base)))

	nextRun := base.Add(30 * time.Minute)
	require.NoError(t, store.UpdateScheduleNextRun(ctx, "sched-1", nextRun))
	lastRun := base.Add(time.Minute)
	require.NoError(t, store.UpdateScheduleLastRun(ctx, "sched-1", lastRun, domain.RunStatusCompleted))

	schedule, err := store.GetSchedule(ctx, "sched-1")
	require.NoError(t, err)
	assert.Equal(t, nextRun, schedule.NextRunAt)
	require.NotNil(t, schedule.LastRunAt)
	assert.Equal(t, lastRun, *schedule.LastRunAt)
	assert.Equal(t, domain.RunStatusCompleted, schedule.LastRunStatus)

	// Unknown schedules are a warn, not an error, so late run results
	// never fail the worker.
	assert.NoError(t, store.UpdateScheduleNextRun(ctx, "missing", nextRun))
	assert.NoError(t, store.UpdateScheduleLastRun(ctx, "missing", lastRun, domain.RunStatusFailed))
}

func TestFileStore_RunLifecycle(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.CreateRun(ctx, testRun("run-1", "sched-1", base)))

	claimed, err := store.ClaimRun(ctx, "run-1", "worker-a")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusRunning, claimed.Status)
	assert.Equal(t, "worker-a", claimed.WorkerID)
	require.NotNil(t, claimed.StartedAt)
	require.NotNil(t, claimed.LastHeartbeatAt)

	_, err = store.ClaimRun(ctx, "run-1", "worker-b")
	assert.ErrorIs(t, err, domain.ErrRunNotClaimable)
	_, err = store.ClaimRun(ctx, "missing", "worker-a")
	assert.ErrorIs(t, err, domain.ErrRunNotClaimable)

	require.NoError(t, store.HeartbeatRun(ctx, "run-1"))

	// A retryable failure goes back to the queue: PENDING again with the
	// attempt counted, so the redelivered message can claim it.
	require.NoError(t, store.MarkRunRetrying(ctx, "run-1", "sheet fetch timed out"))
	run, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusPending, run.Status)
	assert.Equal(t, 1, run.RetryCount)
	assert.Empty(t, run.WorkerID)
	assert.Equal(t, "sheet fetch timed out", run.ErrorMessage)

	reclaimed, err := store.ClaimRun(ctx, "run-1", "worker-b")
	require.NoError(t, err)
	assert.Equal(t, "worker-b", reclaimed.WorkerID)

	require.NoError(t, store.FinishRun(ctx, "run-1", RunResult{
		Status:         domain.RunStatusCompleted,
		RowsFetched:    120,
		ColumnsFetched: 6,
		PDFPath:        "/data/artifacts/run-1/report.pdf",
		XLSXPath:       "/data/artifacts/run-1/report_data.xlsx",
	}))

	finished, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, finished.Status)
	assert.Equal(t, 120, finished.RowsFetched)
	assert.Equal(t, 6, finished.ColumnsFetched)
	require.NotNil(t, finished.FinishedAt)
	assert.True(t, finished.Terminal())

	assert.ErrorIs(t, store.FinishRun(ctx, "missing", RunResult{Status: domain.RunStatusFailed}), domain.ErrRunNotFound)
	_, err = store.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestFileStore_ListRunsFilters(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	scheduled := testRun("run-sched", "sched-1", base)
	manual := testRun("run-manual", "", base.Add(time.Minute))
	manual.Trigger = domain.TriggerManual
	failed := testRun("run-failed", "sched-1", base.Add(2*time.Minute))
	failed.Status = domain.RunStatusFailed
	for _, run := range []*domain.Run{scheduled, manual, failed} {
		require.NoError(t, store.CreateRun(ctx, run))
	}

	got, err := store.ListRuns(ctx, RunFilter{ScheduleID: "sched-1", PageSize: 10})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "run-failed", got[0].ID)
	assert.Equal(t, "run-sched", got[1].ID)

	got, err = store.ListRuns(ctx, RunFilter{Status: domain.RunStatusFailed, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "run-failed", got[0].ID)

	got, err = store.ListRuns(ctx, RunFilter{Trigger: domain.TriggerManual, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "run-manual", got[0].ID)
}
