package domain

import "time"

// Run statuses.
const (
	RunStatusPending   = "PENDING"
	RunStatusRunning   = "RUNNING"
	RunStatusCompleted = "COMPLETED"
	RunStatusFailed    = "FAILED"
	RunStatusCanceled  = "CANCELED"
)

// Run triggers.
const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
	TriggerAPI       = "api"
)

// Run is one report build-and-deliver attempt. Report configuration is
// snapshotted from the schedule (or the ad-hoc request) at enqueue
// time, so edits to a schedule never affect runs already in flight.
type Run struct {
	ID              string     `json:"id"`
	ScheduleID      string     `json:"schedule_id,omitempty"`
	Trigger         string     `json:"trigger"`
	Status          string     `json:"status"`
	ReportName      string     `json:"report_name"`
	SheetRef        string     `json:"sheet_ref"`
	Worksheet       string     `json:"worksheet,omitempty"`
	Recipient       string     `json:"recipient"`
	Language        string     `json:"language"`
	IncludeCharts   bool       `json:"include_charts"`
	IncludeRawData  bool       `json:"include_raw_data"`
	RowsFetched     int        `json:"rows_fetched"`
	ColumnsFetched  int        `json:"columns_fetched"`
	RetryCount      int        `json:"retry_count"`
	MaxRetries      int        `json:"max_retries"`
	WorkerID        string     `json:"worker_id,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	PDFPath         string     `json:"pdf_path,omitempty"`
	XLSXPath        string     `json:"xlsx_path,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	LastHeartbeatAt *time.Time `json:"last_heartbeat_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Terminal reports whether the run has reached a final status.
func (r *Run) Terminal() bool {
	switch r.Status {
	case RunStatusCompleted, RunStatusFailed, RunStatusCanceled:
		return true
	default:
		return false
	}
}

// RunMessage is the queue payload that hands a run to the workers. The
// run record itself stays in storage; the message only carries the id.
// DeliveryTag is filled in by the consumer for the ACK/NACK decision.
type RunMessage struct {
	RunID       string `json:"run_id"`
	DeliveryTag uint64 `json:"-"`
}
