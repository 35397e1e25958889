package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/reportpilot/reportpilot/internal/api/dto"
	"github.com/reportpilot/reportpilot/internal/domain"
	"github.com/reportpilot/reportpilot/internal/storage"
)

const (
	contentTypePDF  = "application/pdf"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// GetRun handles GET /api/v1/runs/:run_id
func (h *Handler) GetRun(c *gin.Context) {
	runID := c.Param("run_id")
	if _, err := uuid.Parse(runID); err != nil {
		h.logger.Error("Invalid run_id format",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "run_id must be a valid UUID",
		})
		return
	}

	run, err := h.store.GetRun(c.Request.Context(), runID)
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Run not found",
			})
			return
		}
		h.logger.Error("Failed to get run", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get run",
		})
		return
	}

	c.JSON(http.StatusOK, h.toRunDTO(run))
}

// ListScheduleRuns handles GET /api/v1/schedules/:schedule_id/runs
// Run history stays readable after its schedule is deleted, so this
// never 404s on an unknown schedule id.
func (h *Handler) ListScheduleRuns(c *gin.Context) {
	scheduleID, ok := h.scheduleIDParam(c)
	if !ok {
		return
	}

	var req dto.ListRunsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := storage.RunFilter{
		ScheduleID: scheduleID,
		Status:     req.Status,
		Trigger:    req.Trigger,
		PageSize:   req.PageSize,
		Cursor:     cursor,
	}

	runs, err := h.store.ListRuns(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list runs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list runs",
		})
		return
	}

	hasMore := len(runs) > req.PageSize
	if hasMore {
		runs = runs[:req.PageSize]
	}

	runResponse := make([]dto.RunDTO, len(runs))
	for i, run := range runs {
		runResponse[i] = h.toRunDTO(run)
	}

	var nextCursor string
	if hasMore {
		last := runs[len(runs)-1]
		nextCursor, err = EncodeCursor(&storage.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
		if err != nil {
			h.logger.Error("Failed to encode next cursor", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to encode next cursor",
			})
			return
		}
	}

	c.JSON(http.StatusOK, dto.ListRunsResponse{
		Runs:       runResponse,
		NextCursor: nextCursor,
	})
}

// DownloadArtifact handles GET /api/v1/downloads/:token
// Tokens come from run responses and expire; the artifact files stay
// on disk for other downloads until their own retention passes.
func (h *Handler) DownloadArtifact(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "token is required",
		})
		return
	}

	item, ok := h.downloads.get(token)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Download link expired or unknown",
		})
		return
	}

	if _, err := os.Stat(item.filePath); err != nil {
		h.downloads.delete(token)
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Artifact no longer exists",
		})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+item.filename+`"`)
	c.Header("Content-Type", item.contentType)
	c.File(item.filePath)
}

// toRunDTO renders a run, minting download tokens for artifacts that
// are still on disk.
func (h *Handler) toRunDTO(run *domain.Run) dto.RunDTO {
	out := dto.RunDTO{
		ID:             run.ID,
		ScheduleID:     run.ScheduleID,
		Trigger:        run.Trigger,
		Status:         run.Status,
		ReportName:     run.ReportName,
		SheetURL:       run.SheetRef,
		Worksheet:      run.Worksheet,
		Recipient:      run.Recipient,
		Language:       run.Language,
		IncludeCharts:  run.IncludeCharts,
		IncludeRawData: run.IncludeRawData,
		RowsFetched:    run.RowsFetched,
		ColumnsFetched: run.ColumnsFetched,
		RetryCount:     run.RetryCount,
		MaxRetries:     run.MaxRetries,
		WorkerID:       run.WorkerID,
		ErrorMessage:   run.ErrorMessage,
		CreatedAt:      run.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      run.UpdatedAt.Format(time.RFC3339),
	}
	if run.StartedAt != nil {
		out.StartedAt = run.StartedAt.Format(time.RFC3339)
	}
	if run.FinishedAt != nil {
		out.FinishedAt = run.FinishedAt.Format(time.RFC3339)
	}
	out.PDFDownload = h.downloadURL(run.PDFPath, contentTypePDF)
	out.XLSXDownload = h.downloadURL(run.XLSXPath, contentTypeXLSX)
	return out
}

func (h *Handler) downloadURL(path, contentType string) string {
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	token := h.downloads.put(path, filepath.Base(path), contentType, downloadTokenTTL)
	return "/api/v1/downloads/" + token
}
