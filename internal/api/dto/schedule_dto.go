package dto

type FrequencyDTO struct {
	Type       string `json:"type" binding:"required"`
	Minutes    int    `json:"minutes"`
	Hour       int    `json:"hour"`
	Minute     int    `json:"minute"`
	Weekday    string `json:"weekday"`
	Expression string `json:"expression"`
}

// CreateScheduleRequest creates a recurring report. IncludeCharts and
// AutoRefresh are pointers so an omitted field defaults to true.
type CreateScheduleRequest struct {
	Name           string       `json:"name" binding:"required"`
	SheetURL       string       `json:"sheet_url" binding:"required"`
	Worksheet      string       `json:"worksheet"`
	Recipient      string       `json:"recipient" binding:"required,email"`
	Language       string       `json:"language"`
	Frequency      FrequencyDTO `json:"frequency" binding:"required"`
	IncludeCharts  *bool        `json:"include_charts"`
	IncludeRawData bool         `json:"include_raw_data"`
	AutoRefresh    *bool        `json:"auto_refresh"`
}

type ListSchedulesRequest struct {
	Paused   string `form:"paused"`
	Language string `form:"language"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListSchedulesResponse struct {
	Schedules  []ScheduleDTO `json:"schedules"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

type ScheduleDTO struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	SheetURL       string       `json:"sheet_url"`
	Worksheet      string       `json:"worksheet,omitempty"`
	Recipient      string       `json:"recipient"`
	Language       string       `json:"language"`
	Frequency      FrequencyDTO `json:"frequency"`
	FrequencyLabel string       `json:"frequency_label"`
	IncludeCharts  bool         `json:"include_charts"`
	IncludeRawData bool         `json:"include_raw_data"`
	AutoRefresh    bool         `json:"auto_refresh"`
	Paused         bool         `json:"paused"`
	HasSnapshot    bool         `json:"has_snapshot"`
	NextRunAt      string       `json:"next_run_at"`
	LastRunAt      string       `json:"last_run_at,omitempty"`
	LastRunStatus  string       `json:"last_run_status,omitempty"`
	CreatedAt      string       `json:"created_at"`
	UpdatedAt      string       `json:"updated_at"`
}
