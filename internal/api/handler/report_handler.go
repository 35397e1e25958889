package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/reportpilot/reportpilot/internal/api/dto"
	"github.com/reportpilot/reportpilot/internal/dataset"
	"github.com/reportpilot/reportpilot/internal/domain"
	"github.com/reportpilot/reportpilot/internal/report"
	"github.com/reportpilot/reportpilot/internal/sheets"
)

// PreviewSource handles POST /api/v1/sources/preview
// Fetches the sheet and returns its profile and sample rows without
// generating a report
func (h *Handler) PreviewSource(c *gin.Context) {
	h.logger.Info("PreviewSource called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
	)

	var req dto.PreviewSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	spreadsheetID, err := sheets.ExtractSpreadsheetID(req.SheetURL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	if h.sheets == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Google Sheets credentials are not configured",
		})
		return
	}

	grid, err := h.sheets.Fetch(c.Request.Context(), req.SheetURL, req.Worksheet)
	if err != nil {
		h.respondSheetError(c, err)
		return
	}

	ds, err := dataset.New(grid)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	profile := ds.Profile(h.config.Reports.SampleRows)

	// Worksheet names feed the source picker; losing them is not worth
	// failing the preview.
	worksheets, err := h.sheets.Worksheets(c.Request.Context(), req.SheetURL)
	if err != nil {
		h.logger.Warn("Failed to list worksheets", slog.String("error", err.Error()))
		worksheets = nil
	}

	stats := make(map[string]dto.ColumnStatsDTO, len(profile.Stats))
	for name, s := range profile.Stats {
		stats[name] = dto.ColumnStatsDTO{
			Count: s.Count,
			Min:   s.Min,
			Max:   s.Max,
			Mean:  s.Mean,
			Sum:   s.Sum,
		}
	}

	c.JSON(http.StatusOK, dto.PreviewSourceResponse{
		SpreadsheetID:  spreadsheetID,
		Worksheets:     worksheets,
		Rows:           profile.Rows,
		Columns:        ds.ColumnNames(),
		NumericColumns: profile.NumericColumns,
		TextColumns:    profile.TextColumns,
		MissingCells:   profile.MissingCells,
		Stats:          stats,
		Sample:         profile.Sample,
	})
}

// SendReport handles POST /api/v1/reports/send
// Enqueues an ad-hoc run; generation and delivery happen on the worker
func (h *Handler) SendReport(c *gin.Context) {
	h.logger.Info("SendReport called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
	)

	var req dto.SendReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	if _, err := sheets.ExtractSpreadsheetID(req.SheetURL); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	recipient := req.Recipient
	if recipient == "" {
		recipient = h.config.Email.DefaultRecipient
	}
	if recipient == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "recipient is required (no default recipient configured)",
		})
		return
	}

	now := time.Now().UTC()
	reportName := req.ReportName
	if reportName == "" {
		reportName = report.DefaultReportName(now)
	}

	run := domain.Run{
		ID:             uuid.New().String(),
		Trigger:        domain.TriggerAPI,
		Status:         domain.RunStatusPending,
		ReportName:     reportName,
		SheetRef:       req.SheetURL,
		Worksheet:      req.Worksheet,
		Recipient:      recipient,
		Language:       domain.NormalizeLanguage(req.Language),
		IncludeCharts:  boolOrDefault(req.IncludeCharts, true),
		IncludeRawData: req.IncludeRawData,
		MaxRetries:     h.config.Worker.MaxRetries,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := h.store.CreateRun(c.Request.Context(), &run); err != nil {
		h.logger.Error("Failed to create run", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create run",
		})
		return
	}

	if err := h.enqueueRun(c.Request.Context(), &run); err != nil {
		h.logger.Error("Failed to enqueue run",
			slog.String("run_id", run.ID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to enqueue run",
		})
		return
	}

	h.logger.Info("Ad-hoc run enqueued",
		slog.String("run_id", run.ID),
		slog.String("recipient", recipient),
	)

	c.JSON(http.StatusAccepted, gin.H{
		"run_id": run.ID,
		"status": run.Status,
	})
}

func (h *Handler) enqueueRun(ctx context.Context, run *domain.Run) error {
	body, err := json.Marshal(domain.RunMessage{RunID: run.ID})
	if err != nil {
		return fmt.Errorf("failed to marshal run message: %w", err)
	}
	return h.queue.PublishWithRetry(ctx, body, "application/json")
}
