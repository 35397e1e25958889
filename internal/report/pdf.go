package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
)

const (
	pdfMarginMM    = 15.0
	pdfContentMM   = 180.0
	chartWidthMM   = 170.0
	maxCellRunes   = 18
	chartBreakAtMM = 170.0
)

// nonLatinPDFNote replaces the analysis body in PDFs for scripts the
// core fonts cannot render.
const nonLatinPDFNote = "The full analysis in your language is included in the email body."

// buildPDF renders the report as a PDF. The built-in fonts only cover
// cp1252, so non-Latin languages get English section labels and the
// analysis text is deferred to the email body.
func buildPDF(in Input) ([]byte, error) {
	lang := in.Language
	lbl := labelsFor(lang)
	insight := plainInsight(in.Insight)
	if !latinScript(lang) {
		lbl = labelsFor("en")
		if in.Insight != "" {
			insight = nonLatinPDFNote
		}
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(in.ReportName, true)
	pdf.SetMargins(pdfMarginMM, pdfMarginMM, pdfMarginMM)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(26, 115, 232)
	pdf.CellFormat(0, 12, tr(in.ReportName), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(95, 99, 104)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("%s %s", lbl.GeneratedOn, in.GeneratedAt.Format("2006-01-02 15:04"))), "", 1, "L", false, 0, "")

	sectionTitle(pdf, tr, lbl.DataOverview)
	overviewRow(pdf, tr, lbl.TotalRows, fmt.Sprintf("%d", in.Profile.Rows))
	overviewRow(pdf, tr, lbl.TotalColumns, fmt.Sprintf("%d", in.Profile.Columns))
	overviewRow(pdf, tr, lbl.NumericColumns, strings.Join(in.Profile.NumericColumns, ", "))
	overviewRow(pdf, tr, lbl.MissingValues, fmt.Sprintf("%d", in.Profile.MissingCells))

	if insight != "" {
		sectionTitle(pdf, tr, lbl.AIAnalysis)
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(32, 33, 36)
		pdf.MultiCell(0, 5.5, tr(insight), "", "L", false)
	}

	if len(in.Charts) > 0 {
		sectionTitle(pdf, tr, lbl.Visualizations)
		for i, c := range in.Charts {
			if pdf.GetY() > chartBreakAtMM {
				pdf.AddPage()
			}
			name := fmt.Sprintf("chart-%d", i)
			opts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
			pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(c.PNG))
			pdf.ImageOptions(name, (210-chartWidthMM)/2, 0, chartWidthMM, 0, true, opts, 0, "")
			pdf.Ln(4)
		}
	}

	if in.IncludeRawData && len(in.Profile.Sample) > 0 {
		if pdf.GetY() > chartBreakAtMM {
			pdf.AddPage()
		}
		sectionTitle(pdf, tr, lbl.DataSample)
		sampleTable(pdf, tr, in)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func sectionTitle(pdf *fpdf.Fpdf, tr func(string) string, title string) {
	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 13)
	pdf.SetTextColor(26, 115, 232)
	pdf.SetDrawColor(232, 234, 237)
	pdf.CellFormat(0, 8, tr(title), "B", 1, "L", false, 0, "")
	pdf.Ln(2)
}

func overviewRow(pdf *fpdf.Fpdf, tr func(string) string, label, value string) {
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(95, 99, 104)
	pdf.CellFormat(60, 7, tr(label), "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetTextColor(32, 33, 36)
	pdf.CellFormat(0, 7, tr(value), "", 1, "L", false, 0, "")
}

func sampleTable(pdf *fpdf.Fpdf, tr func(string) string, in Input) {
	cols := len(in.Dataset.Columns)
	if cols > maxTableColumns {
		cols = maxTableColumns
	}
	colWidth := pdfContentMM / float64(cols)

	pdf.SetFont("Helvetica", "B", 8)
	pdf.SetFillColor(232, 234, 237)
	pdf.SetTextColor(32, 33, 36)
	pdf.SetDrawColor(218, 220, 224)
	for _, col := range in.Dataset.Columns[:cols] {
		pdf.CellFormat(colWidth, 7, tr(truncateCell(col.Name)), "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 8)
	for _, row := range in.Profile.Sample {
		for _, cell := range row[:cols] {
			pdf.CellFormat(colWidth, 6, tr(truncateCell(cell)), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
}

func truncateCell(s string) string {
	runes := []rune(s)
	if len(runes) <= maxCellRunes {
		return s
	}
	return string(runes[:maxCellRunes-3]) + "..."
}
