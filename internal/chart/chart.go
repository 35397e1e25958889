// Package chart renders dataset columns into PNG charts for reports.
package chart

import (
	"bytes"
	"fmt"
	"log/slog"
	"sort"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/reportpilot/reportpilot/internal/dataset"
)

const (
	defaultWidth  = 720
	defaultHeight = 360
	maxBarSlices  = 8
	maxLabelRunes = 14
)

// Chart is one rendered image.
type Chart struct {
	Title string
	PNG   []byte
}

// Config bounds chart generation.
type Config struct {
	Width     int
	Height    int
	MaxCharts int
}

// Renderer builds charts for report runs. Individual chart failures are
// logged and skipped so one odd column never sinks a report.
type Renderer struct {
	config Config
	logger *slog.Logger
}

// NewRenderer creates a chart renderer.
func NewRenderer(config Config, logger *slog.Logger) *Renderer {
	if config.Width <= 0 {
		config.Width = defaultWidth
	}
	if config.Height <= 0 {
		config.Height = defaultHeight
	}
	if config.MaxCharts <= 0 {
		config.MaxCharts = 4
	}
	return &Renderer{config: config, logger: logger}
}

// RenderAll builds trend charts for numeric columns and distribution
// charts for text columns, in column order, up to the configured cap.
func (r *Renderer) RenderAll(ds *dataset.Dataset) []Chart {
	var charts []Chart

	for _, name := range ds.NumericColumns() {
		if len(charts) >= r.config.MaxCharts {
			return charts
		}
		c, err := r.lineChart(ds, name)
		if err != nil {
			r.logger.Warn("Skipping trend chart", slog.String("column", name), slog.Any("error", err))
			continue
		}
		charts = append(charts, c)
	}

	for _, name := range ds.TextColumns() {
		if len(charts) >= r.config.MaxCharts {
			return charts
		}
		c, err := r.barChart(ds, name)
		if err != nil {
			r.logger.Warn("Skipping distribution chart", slog.String("column", name), slog.Any("error", err))
			continue
		}
		charts = append(charts, c)
	}

	return charts
}

func (r *Renderer) lineChart(ds *dataset.Dataset, column string) (Chart, error) {
	values := ds.Numbers(column)
	if len(values) < 2 {
		return Chart{}, fmt.Errorf("column %s has %d numeric values, need at least 2", column, len(values))
	}

	xs := make([]float64, len(values))
	for i := range values {
		xs[i] = float64(i + 1)
	}

	title := fmt.Sprintf("%s Trend", column)
	graph := chart.Chart{
		Title:  title,
		Width:  r.config.Width,
		Height: r.config.Height,
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    column,
				XValues: xs,
				YValues: values,
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return Chart{}, err
	}
	return Chart{Title: title, PNG: buf.Bytes()}, nil
}

func (r *Renderer) barChart(ds *dataset.Dataset, column string) (Chart, error) {
	top := topValues(ds, column, maxBarSlices)
	if len(top) == 0 {
		return Chart{}, fmt.Errorf("column %s has no values to count", column)
	}

	bars := make([]chart.Value, len(top))
	for i, v := range top {
		bars[i] = chart.Value{Value: float64(v.count), Label: truncateLabel(v.label)}
	}

	title := fmt.Sprintf("%s Distribution", column)
	graph := chart.BarChart{
		Title:    title,
		Width:    r.config.Width,
		Height:   r.config.Height,
		BarWidth: 40,
		Bars:     bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return Chart{}, err
	}
	return Chart{Title: title, PNG: buf.Bytes()}, nil
}

type valueCount struct {
	label string
	count int
}

// topValues counts non-empty cells of a column and returns the most
// frequent values, ties broken alphabetically.
func topValues(ds *dataset.Dataset, column string, limit int) []valueCount {
	idx := ds.ColumnIndex(column)
	if idx < 0 {
		return nil
	}

	counts := make(map[string]int)
	for _, row := range ds.Rows {
		if cell := row[idx]; cell != "" {
			counts[cell]++
		}
	}

	ranked := make([]valueCount, 0, len(counts))
	for label, count := range counts {
		ranked = append(ranked, valueCount{label: label, count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].label < ranked[j].label
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func truncateLabel(label string) string {
	runes := []rune(label)
	if len(runes) <= maxLabelRunes {
		return label
	}
	return string(runes[:maxLabelRunes-3]) + "..."
}
