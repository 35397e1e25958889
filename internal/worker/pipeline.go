package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/reportpilot/reportpilot/internal/chart"
	"github.com/reportpilot/reportpilot/internal/dataset"
	"github.com/reportpilot/reportpilot/internal/domain"
	"github.com/reportpilot/reportpilot/internal/email"
	"github.com/reportpilot/reportpilot/internal/insight"
	"github.com/reportpilot/reportpilot/internal/report"
)

const (
	contentTypePDF  = "application/pdf"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// runOutput carries the result fields of a successful pipeline pass.
type runOutput struct {
	rowsFetched    int
	columnsFetched int
	pdfPath        string
	xlsxPath       string
}

// executeRun drives the report pipeline for one claimed run: resolve
// the dataset, generate the analysis, render charts, build the report,
// write artifacts, and deliver the email.
func (w *Worker) executeRun(ctx context.Context, run *domain.Run) (*runOutput, error) {
	ds, err := w.resolveDataset(ctx, run)
	if err != nil {
		return nil, err
	}
	profile := ds.Profile(w.sampleRows)

	w.logger.Info("Dataset resolved",
		slog.String("run_id", run.ID),
		slog.Int("rows", profile.Rows),
		slog.Int("columns", profile.Columns),
	)

	// A nil generator means Gemini is disabled and the report ships
	// without the analysis section. A configured generator that fails
	// fails the run.
	var insightText string
	if w.insights != nil {
		insightText, err = w.insights.Generate(ctx, insight.Request{
			ReportName: run.ReportName,
			Language:   run.Language,
			Profile:    profile,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to generate analysis: %w", err)
		}
	}

	var charts []chart.Chart
	if run.IncludeCharts {
		charts = w.charts.RenderAll(ds)
		w.logger.Debug("Charts rendered",
			slog.String("run_id", run.ID),
			slog.Int("count", len(charts)),
		)
	}

	bundle, err := w.reports.Build(report.Input{
		ReportName:     run.ReportName,
		Language:       run.Language,
		GeneratedAt:    time.Now().UTC(),
		Dataset:        ds,
		Profile:        profile,
		Insight:        insightText,
		Charts:         charts,
		IncludeRawData: run.IncludeRawData,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build report: %w", err)
	}

	pdfPath, xlsxPath, err := w.writeArtifacts(run.ID, bundle)
	if err != nil {
		return nil, err
	}

	msg := email.Message{
		Recipient: run.Recipient,
		Subject:   bundle.Subject(),
		HTML:      bundle.HTML,
		Text:      bundle.Text,
		Attachments: []email.Attachment{
			{Filename: bundle.PDFFilename(), Type: contentTypePDF, Content: bundle.PDF},
		},
	}
	if run.IncludeRawData {
		msg.Attachments = append(msg.Attachments, email.Attachment{
			Filename: bundle.XLSXFilename(),
			Type:     contentTypeXLSX,
			Content:  bundle.XLSX,
		})
	}

	if err := w.mail.Send(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to send report email: %w", err)
	}

	return &runOutput{
		rowsFetched:    profile.Rows,
		columnsFetched: profile.Columns,
		pdfPath:        pdfPath,
		xlsxPath:       xlsxPath,
	}, nil
}

// resolveDataset returns the data a run reports on. Frozen schedules
// are served from their stored snapshot; everything else is fetched
// live from the sheet.
func (w *Worker) resolveDataset(ctx context.Context, run *domain.Run) (*dataset.Dataset, error) {
	if run.ScheduleID != "" {
		schedule, err := w.store.GetSchedule(ctx, run.ScheduleID)
		switch {
		case errors.Is(err, domain.ErrScheduleNotFound):
			// The schedule was deleted after this run was enqueued; the
			// run still carries everything needed for a live fetch.
			w.logger.Warn("Schedule gone, fetching live data",
				slog.String("run_id", run.ID),
				slog.String("schedule_id", run.ScheduleID),
			)
		case err != nil:
			return nil, fmt.Errorf("failed to load schedule: %w", err)
		case !schedule.AutoRefresh && len(schedule.Snapshot) > 0:
			ds, err := dataset.Decode(schedule.Snapshot)
			if err != nil {
				// A frozen schedule must not silently fall back to live
				// data.
				return nil, fmt.Errorf("failed to decode schedule snapshot: %w", err)
			}
			w.logger.Info("Using schedule snapshot",
				slog.String("run_id", run.ID),
				slog.String("schedule_id", run.ScheduleID),
			)
			return ds, nil
		}
	}

	if w.sheets == nil {
		return nil, errors.New("google sheets credentials are not configured")
	}

	grid, err := w.sheets.Fetch(ctx, run.SheetRef, run.Worksheet)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sheet data: %w", err)
	}

	ds, err := dataset.New(grid)
	if err != nil {
		return nil, fmt.Errorf("sheet data is not usable: %w", err)
	}
	return ds, nil
}

// writeArtifacts persists the PDF and spreadsheet under the run's
// artifact directory so they stay downloadable after delivery.
func (w *Worker) writeArtifacts(runID string, bundle *report.Bundle) (string, string, error) {
	dir := filepath.Join(w.artifactDir, runID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create artifact directory: %w", err)
	}

	pdfPath := filepath.Join(dir, bundle.PDFFilename())
	if err := os.WriteFile(pdfPath, bundle.PDF, 0644); err != nil {
		return "", "", fmt.Errorf("failed to write pdf artifact: %w", err)
	}

	xlsxPath := filepath.Join(dir, bundle.XLSXFilename())
	if err := os.WriteFile(xlsxPath, bundle.XLSX, 0644); err != nil {
		return "", "", fmt.Errorf("failed to write xlsx artifact: %w", err)
	}

	return pdfPath, xlsxPath, nil
}
