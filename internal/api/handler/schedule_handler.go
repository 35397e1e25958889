package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/reportpilot/reportpilot/internal/api/dto"
	"github.com/reportpilot/reportpilot/internal/dataset"
	"github.com/reportpilot/reportpilot/internal/domain"
	"github.com/reportpilot/reportpilot/internal/sheets"
	"github.com/reportpilot/reportpilot/internal/storage"
)

// CreateSchedule handles POST /api/v1/schedules
// Creates a recurring report schedule
func (h *Handler) CreateSchedule(c *gin.Context) {
	h.logger.Info("CreateSchedule called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
	)

	var req dto.CreateScheduleRequest
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

	frequency := frequencyFromDTO(req.Frequency)
	if err := frequency.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	now := time.Now().UTC()
	nextRunAt, err := frequency.NextRun(now)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	schedule := domain.Schedule{
		ID:             uuid.New().String(),
		Name:           req.Name,
		SheetRef:       req.SheetURL,
		Worksheet:      req.Worksheet,
		Recipient:      req.Recipient,
		Language:       domain.NormalizeLanguage(req.Language),
		Frequency:      frequency,
		IncludeCharts:  boolOrDefault(req.IncludeCharts, true),
		IncludeRawData: req.IncludeRawData,
		AutoRefresh:    boolOrDefault(req.AutoRefresh, true),
		NextRunAt:      nextRunAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// With auto-refresh off every delivery reports the data as it was at
	// creation time, so capture it now.
	if !schedule.AutoRefresh {
		snapshot, ok := h.captureSnapshot(c, schedule.SheetRef, schedule.Worksheet)
		if !ok {
			return
		}
		schedule.Snapshot = snapshot
	}

	if err := h.store.CreateSchedule(c.Request.Context(), &schedule); err != nil {
		h.logger.Error("Failed to create schedule", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create schedule",
		})
		return
	}

	h.logger.Info("Schedule created",
		slog.String("schedule_id", schedule.ID),
		slog.String("frequency", schedule.Frequency.Describe()),
		slog.Time("next_run_at", schedule.NextRunAt),
	)

	c.JSON(http.StatusCreated, toScheduleDTO(&schedule))
}

// GetSchedule handles GET /api/v1/schedules/:schedule_id
func (h *Handler) GetSchedule(c *gin.Context) {
	scheduleID, ok := h.scheduleIDParam(c)
	if !ok {
		return
	}

	schedule, err := h.store.GetSchedule(c.Request.Context(), scheduleID)
	if err != nil {
		h.respondScheduleError(c, err)
		return
	}

	c.JSON(http.StatusOK, toScheduleDTO(schedule))
}

// ListSchedules handles GET /api/v1/schedules
// Lists schedules with optional filtering and cursor pagination
func (h *Handler) ListSchedules(c *gin.Context) {
	var req dto.ListSchedulesRequest
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

	var paused *bool
	if req.Paused != "" {
		v, err := strconv.ParseBool(req.Paused)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid paused filter",
			})
			return
		}
		paused = &v
	}

	cursor, err := DecodeCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := storage.ScheduleFilter{
		Paused:   paused,
		Language: req.Language,
		PageSize: req.PageSize,
		Cursor:   cursor,
	}

	schedules, err := h.store.ListSchedules(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list schedules", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list schedules",
		})
		return
	}

	hasMore := len(schedules) > req.PageSize
	if hasMore {
		schedules = schedules[:req.PageSize]
	}

	scheduleResponse := make([]dto.ScheduleDTO, len(schedules))
	for i, schedule := range schedules {
		scheduleResponse[i] = toScheduleDTO(schedule)
	}

	var nextCursor string
	if hasMore {
		last := schedules[len(schedules)-1]
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

	c.JSON(http.StatusOK, dto.ListSchedulesResponse{
		Schedules:  scheduleResponse,
		NextCursor: nextCursor,
	})
}

// DeleteSchedule handles DELETE /api/v1/schedules/:schedule_id
// Removes the schedule; run history stays readable
func (h *Handler) DeleteSchedule(c *gin.Context) {
	scheduleID, ok := h.scheduleIDParam(c)
	if !ok {
		return
	}

	if err := h.store.DeleteSchedule(c.Request.Context(), scheduleID); err != nil {
		h.respondScheduleError(c, err)
		return
	}

	h.logger.Info("Schedule deleted", slog.String("schedule_id", scheduleID))
	c.Status(http.StatusNoContent)
}

// RunScheduleNow handles POST /api/v1/schedules/:schedule_id/run
// Enqueues an immediate run without touching the schedule's next_run_at
func (h *Handler) RunScheduleNow(c *gin.Context) {
	scheduleID, ok := h.scheduleIDParam(c)
	if !ok {
		return
	}

	schedule, err := h.store.GetSchedule(c.Request.Context(), scheduleID)
	if err != nil {
		h.respondScheduleError(c, err)
		return
	}

	now := time.Now().UTC()
	run := domain.Run{
		ID:             uuid.New().String(),
		ScheduleID:     schedule.ID,
		Trigger:        domain.TriggerManual,
		Status:         domain.RunStatusPending,
		ReportName:     schedule.Name,
		SheetRef:       schedule.SheetRef,
		Worksheet:      schedule.Worksheet,
		Recipient:      schedule.Recipient,
		Language:       schedule.Language,
		IncludeCharts:  schedule.IncludeCharts,
		IncludeRawData: schedule.IncludeRawData,
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

	h.logger.Info("Manual run enqueued",
		slog.String("schedule_id", schedule.ID),
		slog.String("run_id", run.ID),
	)

	c.JSON(http.StatusAccepted, gin.H{
		"run_id": run.ID,
		"status": run.Status,
	})
}

// PauseSchedule handles POST /api/v1/schedules/:schedule_id/pause
func (h *Handler) PauseSchedule(c *gin.Context) {
	h.setSchedulePaused(c, true)
}

// ResumeSchedule handles POST /api/v1/schedules/:schedule_id/resume
func (h *Handler) ResumeSchedule(c *gin.Context) {
	h.setSchedulePaused(c, false)
}

func (h *Handler) setSchedulePaused(c *gin.Context, paused bool) {
	scheduleID, ok := h.scheduleIDParam(c)
	if !ok {
		return
	}

	schedule, err := h.store.GetSchedule(c.Request.Context(), scheduleID)
	if err != nil {
		h.respondScheduleError(c, err)
		return
	}

	if schedule.Paused != paused {
		schedule.Paused = paused
		if !paused {
			// Resuming never backfills: the next fire is computed from now.
			nextRunAt, err := schedule.Frequency.NextRun(time.Now().UTC())
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Failed to compute next run",
				})
				return
			}
			schedule.NextRunAt = nextRunAt
		}

		if err := h.store.UpdateSchedule(c.Request.Context(), schedule); err != nil {
			h.respondScheduleError(c, err)
			return
		}
	}

	h.logger.Info("Schedule pause state updated",
		slog.String("schedule_id", schedule.ID),
		slog.Bool("paused", paused),
	)

	c.JSON(http.StatusOK, toScheduleDTO(schedule))
}

// scheduleIDParam validates the :schedule_id path parameter.
func (h *Handler) scheduleIDParam(c *gin.Context) (string, bool) {
	scheduleID := c.Param("schedule_id")
	if _, err := uuid.Parse(scheduleID); err != nil {
		h.logger.Error("Invalid schedule_id format",
			slog.String("schedule_id", scheduleID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "schedule_id must be a valid UUID",
		})
		return "", false
	}
	return scheduleID, true
}

func (h *Handler) respondScheduleError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrScheduleNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Schedule not found",
		})
		return
	}
	h.logger.Error("Schedule storage error", slog.String("error", err.Error()))
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "Storage error",
	})
}

// captureSnapshot fetches the sheet and encodes it for storage. On
// failure it writes the HTTP error response and returns ok=false.
func (h *Handler) captureSnapshot(c *gin.Context, sheetRef, worksheet string) ([]byte, bool) {
	if h.sheets == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Google Sheets credentials are not configured",
		})
		return nil, false
	}

	grid, err := h.sheets.Fetch(c.Request.Context(), sheetRef, worksheet)
	if err != nil {
		h.respondSheetError(c, err)
		return nil, false
	}

	ds, err := dataset.New(grid)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return nil, false
	}

	snapshot, err := ds.Encode()
	if err != nil {
		h.logger.Error("Failed to encode snapshot", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to encode snapshot",
		})
		return nil, false
	}
	return snapshot, true
}

func (h *Handler) respondSheetError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, sheets.ErrInvalidSheetRef), errors.Is(err, sheets.ErrWorksheetNotFound):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
	case errors.Is(err, sheets.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{
			"error": err.Error(),
		})
	default:
		h.logger.Error("Sheet fetch failed", slog.String("error", err.Error()))
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Failed to fetch sheet data",
		})
	}
}

func frequencyFromDTO(f dto.FrequencyDTO) domain.Frequency {
	return domain.Frequency{
		Type:       f.Type,
		Minutes:    f.Minutes,
		Hour:       f.Hour,
		Minute:     f.Minute,
		Weekday:    f.Weekday,
		Expression: f.Expression,
	}
}

func frequencyToDTO(f domain.Frequency) dto.FrequencyDTO {
	return dto.FrequencyDTO{
		Type:       f.Type,
		Minutes:    f.Minutes,
		Hour:       f.Hour,
		Minute:     f.Minute,
		Weekday:    f.Weekday,
		Expression: f.Expression,
	}
}

func toScheduleDTO(schedule *domain.Schedule) dto.ScheduleDTO {
	out := dto.ScheduleDTO{
		ID:             schedule.ID,
		Name:           schedule.Name,
		SheetURL:       schedule.SheetRef,
		Worksheet:      schedule.Worksheet,
		Recipient:      schedule.Recipient,
		Language:       schedule.Language,
		Frequency:      frequencyToDTO(schedule.Frequency),
		FrequencyLabel: schedule.Frequency.Describe(),
		IncludeCharts:  schedule.IncludeCharts,
		IncludeRawData: schedule.IncludeRawData,
		AutoRefresh:    schedule.AutoRefresh,
		Paused:         schedule.Paused,
		HasSnapshot:    len(schedule.Snapshot) > 0,
		NextRunAt:      schedule.NextRunAt.Format(time.RFC3339),
		LastRunStatus:  schedule.LastRunStatus,
		CreatedAt:      schedule.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      schedule.UpdatedAt.Format(time.RFC3339),
	}
	if schedule.LastRunAt != nil {
		out.LastRunAt = schedule.LastRunAt.Format(time.RFC3339)
	}
	return out
}

func boolOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
