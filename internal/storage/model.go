package storage

import (
	"database/sql"
	"time"

	"github.com/reportpilot/reportpilot/internal/domain"
)

// scheduleRow is the schedules table shape.
type scheduleRow struct {
	ID              string         `db:"id"`
	Name            string         `db:"name"`
	SheetRef        string         `db:"sheet_ref"`
	Worksheet       string         `db:"worksheet"`
	Recipient       string         `db:"recipient"`
	Language        string         `db:"language"`
	FrequencyType   string         `db:"frequency_type"`
	FrequencyMins   int            `db:"frequency_minutes"`
	FrequencyHour   int            `db:"frequency_hour"`
	FrequencyMinute int            `db:"frequency_minute"`
	FrequencyDay    string         `db:"frequency_weekday"`
	FrequencyExpr   string         `db:"frequency_expression"`
	IncludeCharts   bool           `db:"include_charts"`
	IncludeRawData  bool           `db:"include_raw_data"`
	AutoRefresh     bool           `db:"auto_refresh"`
	Paused          bool           `db:"paused"`
	Snapshot        []byte         `db:"snapshot"`
	NextRunAt       time.Time      `db:"next_run_at"`
	LastRunAt       sql.NullTime   `db:"last_run_at"`
	LastRunStatus   string         `db:"last_run_status"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (r *scheduleRow) toDomain() *domain.Schedule {
	s := &domain.Schedule{
		ID:        r.ID,
		Name:      r.Name,
		SheetRef:  r.SheetRef,
		Worksheet: r.Worksheet,
		Recipient: r.Recipient,
		Language:  r.Language,
		Frequency: domain.Frequency{
			Type:       r.FrequencyType,
			Minutes:    r.FrequencyMins,
			Hour:       r.FrequencyHour,
			Minute:     r.FrequencyMinute,
			Weekday:    r.FrequencyDay,
			Expression: r.FrequencyExpr,
		},
		IncludeCharts:  r.IncludeCharts,
		IncludeRawData: r.IncludeRawData,
		AutoRefresh:    r.AutoRefresh,
		Paused:         r.Paused,
		Snapshot:       r.Snapshot,
		NextRunAt:      r.NextRunAt,
		LastRunStatus:  r.LastRunStatus,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.LastRunAt.Valid {
		t := r.LastRunAt.Time
		s.LastRunAt = &t
	}
	return s
}

// runRow is the runs table shape. The trigger column is named
// trigger_type to stay clear of the SQL keyword.
type runRow struct {
	ID              string         `db:"id"`
	ScheduleID      string         `db:"schedule_id"`
	Trigger         string         `db:"trigger_type"`
	Status          string         `db:"status"`
	ReportName      string         `db:"report_name"`
	SheetRef        string         `db:"sheet_ref"`
	Worksheet       string         `db:"worksheet"`
	Recipient       string         `db:"recipient"`
	Language        string         `db:"language"`
	IncludeCharts   bool           `db:"include_charts"`
	IncludeRawData  bool           `db:"include_raw_data"`
	RowsFetched     int            `db:"rows_fetched"`
	ColumnsFetched  int            `db:"columns_fetched"`
	RetryCount      int            `db:"retry_count"`
	MaxRetries      int            `db:"max_retries"`
	WorkerID        sql.NullString `db:"worker_id"`
	ErrorMessage    string         `db:"error_message"`
	PDFPath         string         `db:"pdf_path"`
	XLSXPath        string         `db:"xlsx_path"`
	StartedAt       sql.NullTime   `db:"started_at"`
	FinishedAt      sql.NullTime   `db:"finished_at"`
	LastHeartbeatAt sql.NullTime   `db:"last_heartbeat_at"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (r *runRow) toDomain() *domain.Run {
	run := &domain.Run{
		ID:             r.ID,
		ScheduleID:     r.ScheduleID,
		Trigger:        r.Trigger,
		Status:         r.Status,
		ReportName:     r.ReportName,
		SheetRef:       r.SheetRef,
		Worksheet:      r.Worksheet,
		Recipient:      r.Recipient,
		Language:       r.Language,
		IncludeCharts:  r.IncludeCharts,
		IncludeRawData: r.IncludeRawData,
		RowsFetched:    r.RowsFetched,
		ColumnsFetched: r.ColumnsFetched,
		RetryCount:     r.RetryCount,
		MaxRetries:     r.MaxRetries,
		ErrorMessage:   r.ErrorMessage,
		PDFPath:        r.PDFPath,
		XLSXPath:       r.XLSXPath,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.WorkerID.Valid {
		run.WorkerID = r.WorkerID.String
	}
	if r.StartedAt.Valid {
		t := r.StartedAt.Time
		run.StartedAt = &t
	}
	if r.FinishedAt.Valid {
		t := r.FinishedAt.Time
		run.FinishedAt = &t
	}
	if r.LastHeartbeatAt.Valid {
		t := r.LastHeartbeatAt.Time
		run.LastHeartbeatAt = &t
	}
	return run
}
