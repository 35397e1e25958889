package report

import (
	"bytes"
	"encoding/base64"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/reportpilot/reportpilot/internal/chart"
	"github.com/reportpilot/reportpilot/internal/dataset"
)

// onePixelPNG is a valid 1x1 PNG used to stand in for rendered charts.
var onePixelPNG, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8z8BQDwAEhQGAhKmMIQAAAABJRU5ErkJggg==")

var generatedAt = time.Date(2026, 8, 21, 9, 30, 0, 0, time.UTC)

func testBuilder() *Builder {
	return NewBuilder(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testInput(t *testing.T) Input {
	t.Helper()
	ds, err := dataset.New([][]string{
		{"Region", "Revenue"},
		{"North", "1200.5"},
		{"South", "950"},
		{"East", "700"},
	})
	require.NoError(t, err)

	return Input{
		ReportName:     "Q3 Sales",
		Language:       "es",
		GeneratedAt:    generatedAt,
		Dataset:        ds,
		Profile:        ds.Profile(2),
		Insight:        "## Key Findings\nRevenue is **concentrated** in the North.\n\n- North leads\n- East trails",
		Charts:         []chart.Chart{{Title: "Revenue Trend", PNG: onePixelPNG}},
		IncludeRawData: true,
	}
}

func TestBuilder_Build(t *testing.T) {
	bundle, err := testBuilder().Build(testInput(t))
	require.NoError(t, err)

	assert.Equal(t, "Q3 Sales", bundle.ReportName)
	assert.Equal(t, "es", bundle.Language)

	assert.True(t, bytes.HasPrefix(bundle.PDF, []byte("%PDF")), "pdf magic missing")
	assert.True(t, bytes.HasPrefix(bundle.XLSX, []byte("PK")), "xlsx magic missing")

	assert.Contains(t, bundle.HTML, "Q3 Sales")
	assert.Contains(t, bundle.HTML, "Resumen de Datos")
	assert.Contains(t, bundle.HTML, "Generado el")
	assert.Contains(t, bundle.HTML, "Muestra de Datos")
	assert.Contains(t, bundle.Text, "Filas Totales: 3")
}

func TestBuilder_Build_OmitsOptionalSections(t *testing.T) {
	in := testInput(t)
	in.IncludeRawData = false
	in.Insight = ""
	in.Charts = nil

	bundle, err := testBuilder().Build(in)
	require.NoError(t, err)

	assert.NotContains(t, bundle.HTML, "Muestra de Datos")
	assert.NotContains(t, bundle.HTML, "Análisis de IA")
	assert.NotContains(t, bundle.HTML, "Visualizaciones")
}

func TestBuilder_Build_Defaults(t *testing.T) {
	in := testInput(t)
	in.ReportName = ""
	in.Language = "unsupported"

	bundle, err := testBuilder().Build(in)
	require.NoError(t, err)

	assert.Equal(t, "Analysis Report - 2026-08-21", bundle.ReportName)
	assert.Equal(t, "en", bundle.Language)
}

func TestBuilder_Build_NonLatinLanguage(t *testing.T) {
	in := testInput(t)
	in.Language = "ja"

	bundle, err := testBuilder().Build(in)
	require.NoError(t, err)

	// HTML keeps the localized labels; the PDF still renders.
	assert.Contains(t, bundle.HTML, "データ概要")
	assert.True(t, bytes.HasPrefix(bundle.PDF, []byte("%PDF")))
}

func TestBuilder_Build_BadChartImage(t *testing.T) {
	in := testInput(t)
	in.Charts = []chart.Chart{{Title: "Broken", PNG: []byte("junk")}}

	_, err := testBuilder().Build(in)
	assert.Error(t, err)
}

func TestBuilder_Build_MissingDataset(t *testing.T) {
	_, err := testBuilder().Build(Input{ReportName: "x"})
	assert.Error(t, err)
}

func TestBuildXLSX_CellContents(t *testing.T) {
	bundle, err := testBuilder().Build(testInput(t))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(bundle.XLSX))
	require.NoError(t, err)
	defer f.Close()

	header, err := f.GetCellValue("Data", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Region", header)

	// Numeric columns round-trip as numbers.
	revenue, err := f.GetCellValue("Data", "B2")
	require.NoError(t, err)
	assert.Equal(t, "1200.5", revenue)

	label, err := f.GetCellValue("Summary", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Report", label)
}

func TestBundle_Naming(t *testing.T) {
	bundle := &Bundle{ReportName: "Q3 Sales", Language: "es", GeneratedAt: generatedAt}

	assert.Equal(t, "Data Analysis Report - Q3 Sales - 2026-08-21", bundle.Subject())
	assert.Equal(t, "report_20260821_es.pdf", bundle.PDFFilename())
	assert.Equal(t, "report_data_20260821.xlsx", bundle.XLSXFilename())
}

func TestRenderInsightHTML(t *testing.T) {
	html := renderInsightHTML("## Findings\nRevenue is **up**.\n\n- one\n- two\n\nPlain tail.")

	assert.Contains(t, html, ">Findings</h3>")
	assert.Contains(t, html, "<strong>up</strong>")
	assert.Contains(t, html, "<li>one</li>")
	assert.Contains(t, html, "<li>two</li>")
	assert.Contains(t, html, "Plain tail.")
}

func TestRenderInsightHTML_EscapesMarkup(t *testing.T) {
	html := renderInsightHTML("<script>alert('x')</script>")

	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
}

func TestPlainInsight(t *testing.T) {
	plain := plainInsight("## Findings\nRevenue is **up**.")

	assert.Equal(t, "Findings\nRevenue is up.", plain)
	assert.False(t, strings.Contains(plain, "#"))
}
