// Package report assembles run output: the mail bodies, the PDF, and
// the spreadsheet export.
package report

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/reportpilot/reportpilot/internal/chart"
	"github.com/reportpilot/reportpilot/internal/dataset"
	"github.com/reportpilot/reportpilot/internal/domain"
)

// Input carries everything a report is built from.
type Input struct {
	ReportName     string
	Language       string
	GeneratedAt    time.Time
	Dataset        *dataset.Dataset
	Profile        *dataset.Profile
	Insight        string
	Charts         []chart.Chart
	IncludeRawData bool
}

// Bundle is a fully rendered report.
type Bundle struct {
	ReportName  string
	Language    string
	GeneratedAt time.Time
	HTML        string
	Text        string
	PDF         []byte
	XLSX        []byte
}

// Builder renders report bundles.
type Builder struct {
	logger *slog.Logger
}

// NewBuilder creates a report builder.
func NewBuilder(logger *slog.Logger) *Builder {
	return &Builder{logger: logger}
}

// Build renders all report forms from one input. The XLSX export is
// always produced so completed runs stay downloadable even when the
// email omits the raw data attachment.
func (b *Builder) Build(in Input) (*Bundle, error) {
	if in.Dataset == nil || in.Profile == nil {
		return nil, errors.New("report input needs a dataset and its profile")
	}
	if in.GeneratedAt.IsZero() {
		in.GeneratedAt = time.Now()
	}
	if in.ReportName == "" {
		in.ReportName = DefaultReportName(in.GeneratedAt)
	}
	in.Language = domain.NormalizeLanguage(in.Language)

	lbl := labelsFor(in.Language)

	pdfBytes, err := buildPDF(in)
	if err != nil {
		return nil, fmt.Errorf("failed to build pdf: %w", err)
	}

	xlsxBytes, err := buildXLSX(in)
	if err != nil {
		return nil, fmt.Errorf("failed to build xlsx: %w", err)
	}

	bundle := &Bundle{
		ReportName:  in.ReportName,
		Language:    in.Language,
		GeneratedAt: in.GeneratedAt,
		HTML:        renderHTML(in, lbl),
		Text:        renderText(in, lbl),
		PDF:         pdfBytes,
		XLSX:        xlsxBytes,
	}

	b.logger.Info("Built report bundle",
		slog.String("report_name", in.ReportName),
		slog.String("language", in.Language),
		slog.Int("charts", len(in.Charts)),
		slog.Int("pdf_bytes", len(pdfBytes)),
		slog.Int("xlsx_bytes", len(xlsxBytes)),
	)
	return bundle, nil
}

// Subject returns the mail subject for this bundle.
func (b *Bundle) Subject() string {
	return fmt.Sprintf("Data Analysis Report - %s - %s", b.ReportName, b.GeneratedAt.Format("2006-01-02"))
}

// PDFFilename returns the attachment name of the PDF.
func (b *Bundle) PDFFilename() string {
	return fmt.Sprintf("report_%s_%s.pdf", b.GeneratedAt.Format("20060102"), b.Language)
}

// XLSXFilename returns the attachment name of the spreadsheet export.
func (b *Bundle) XLSXFilename() string {
	return fmt.Sprintf("report_data_%s.xlsx", b.GeneratedAt.Format("20060102"))
}

// DefaultReportName names reports that were sent without one.
func DefaultReportName(t time.Time) string {
	return "Analysis Report - " + t.Format("2006-01-02")
}
