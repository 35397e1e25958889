package router

import (
	"github.com/gin-gonic/gin"

	"github.com/reportpilot/reportpilot/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	h := handler.NewHandler(deps)

	// Health check endpoint
	r.GET("/health", h.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		sources := v1.Group("/sources")
		{
			// POST /api/v1/sources/preview - Fetch and profile a sheet
			sources.POST("/preview", h.PreviewSource)
		}

		reports := v1.Group("/reports")
		{
			// POST /api/v1/reports/send - Ad-hoc report send
			reports.POST("/send", h.SendReport)
		}

		schedules := v1.Group("/schedules")
		{
			// POST /api/v1/schedules - Create a schedule
			schedules.POST("", h.CreateSchedule)

			// GET /api/v1/schedules - List schedules with filtering and pagination
			schedules.GET("", h.ListSchedules)

			// GET /api/v1/schedules/:schedule_id - Get schedule details
			schedules.GET("/:schedule_id", h.GetSchedule)

			// DELETE /api/v1/schedules/:schedule_id - Delete a schedule
			schedules.DELETE("/:schedule_id", h.DeleteSchedule)

			// POST /api/v1/schedules/:schedule_id/run - Enqueue an immediate run
			schedules.POST("/:schedule_id/run", h.RunScheduleNow)

			// POST /api/v1/schedules/:schedule_id/pause - Stop future firing
			schedules.POST("/:schedule_id/pause", h.PauseSchedule)

			// POST /api/v1/schedules/:schedule_id/resume - Resume firing
			schedules.POST("/:schedule_id/resume", h.ResumeSchedule)

			// GET /api/v1/schedules/:schedule_id/runs - Run history
			schedules.GET("/:schedule_id/runs", h.ListScheduleRuns)
		}

		runs := v1.Group("/runs")
		{
			// GET /api/v1/runs/:run_id - Run status and artifacts
			runs.GET("/:run_id", h.GetRun)
		}

		downloads := v1.Group("/downloads")
		{
			// GET /api/v1/downloads/:token - Artifact download
			downloads.GET("/:token", h.DownloadArtifact)
		}
	}

	return r
}
