package dto

// SendReportRequest is an ad-hoc send: fetch, analyze, and deliver once
// without creating a schedule. Recipient falls back to the configured
// default when omitted.
type SendReportRequest struct {
	SheetURL       string `json:"sheet_url" binding:"required"`
	Worksheet      string `json:"worksheet"`
	Recipient      string `json:"recipient" binding:"omitempty,email"`
	ReportName     string `json:"report_name"`
	Language       string `json:"language"`
	IncludeCharts  *bool  `json:"include_charts"`
	IncludeRawData bool   `json:"include_raw_data"`
}

type PreviewSourceRequest struct {
	SheetURL  string `json:"sheet_url" binding:"required"`
	Worksheet string `json:"worksheet"`
}

type ColumnStatsDTO struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Sum   float64 `json:"sum"`
}

type PreviewSourceResponse struct {
	SpreadsheetID  string                    `json:"spreadsheet_id"`
	Worksheets     []string                  `json:"worksheets,omitempty"`
	Rows           int                       `json:"rows"`
	Columns        []string                  `json:"columns"`
	NumericColumns []string                  `json:"numeric_columns"`
	TextColumns    []string                  `json:"text_columns"`
	MissingCells   int                       `json:"missing_cells"`
	Stats          map[string]ColumnStatsDTO `json:"stats,omitempty"`
	Sample         [][]string                `json:"sample,omitempty"`
}

type ListRunsRequest struct {
	Status   string `form:"status"`
	Trigger  string `form:"trigger"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListRunsResponse struct {
	Runs       []RunDTO `json:"runs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type RunDTO struct {
	ID             string `json:"id"`
	ScheduleID     string `json:"schedule_id,omitempty"`
	Trigger        string `json:"trigger"`
	Status         string `json:"status"`
	ReportName     string `json:"report_name"`
	SheetURL       string `json:"sheet_url"`
	Worksheet      string `json:"worksheet,omitempty"`
	Recipient      string `json:"recipient"`
	Language       string `json:"language"`
	IncludeCharts  bool   `json:"include_charts"`
	IncludeRawData bool   `json:"include_raw_data"`
	RowsFetched    int    `json:"rows_fetched"`
	ColumnsFetched int    `json:"columns_fetched"`
	RetryCount     int    `json:"retry_count"`
	MaxRetries     int    `json:"max_retries"`
	WorkerID       string `json:"worker_id,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	PDFDownload    string `json:"pdf_download,omitempty"`
	XLSXDownload   string `json:"xlsx_download,omitempty"`
	StartedAt      string `json:"started_at,omitempty"`
	FinishedAt     string `json:"finished_at,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}
