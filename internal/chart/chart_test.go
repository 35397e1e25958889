package chart

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportpilot/reportpilot/internal/dataset"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func testRenderer(maxCharts int) *Renderer {
	return NewRenderer(
		Config{MaxCharts: maxCharts},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func salesDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.New([][]string{
		{"Region", "Revenue", "Units"},
		{"North", "1200", "10"},
		{"South", "950", "8"},
		{"North", "1100", "9"},
		{"East", "700", "6"},
	})
	require.NoError(t, err)
	return ds
}

func TestRenderAll(t *testing.T) {
	charts := testRenderer(4).RenderAll(salesDataset(t))

	// Two numeric trends plus one text distribution.
	require.Len(t, charts, 3)
	assert.Equal(t, "Revenue Trend", charts[0].Title)
	assert.Equal(t, "Units Trend", charts[1].Title)
	assert.Equal(t, "Region Distribution", charts[2].Title)

	for _, c := range charts {
		assert.Equal(t, pngMagic, c.PNG[:4], "chart %s is not a PNG", c.Title)
	}
}

func TestRenderAll_CapsAtMaxCharts(t *testing.T) {
	charts := testRenderer(1).RenderAll(salesDataset(t))

	require.Len(t, charts, 1)
	assert.Equal(t, "Revenue Trend", charts[0].Title)
}

func TestRenderAll_SkipsShortNumericColumns(t *testing.T) {
	ds, err := dataset.New([][]string{
		{"Label", "Value"},
		{"only", "5"},
	})
	require.NoError(t, err)

	charts := testRenderer(4).RenderAll(ds)

	// The single-value numeric column cannot make a trend; only the
	// text distribution survives.
	require.Len(t, charts, 1)
	assert.Equal(t, "Label Distribution", charts[0].Title)
}

func TestTopValues(t *testing.T) {
	ds, err := dataset.New([][]string{
		{"City"},
		{"lyon"},
		{"nice"},
		{"lyon"},
		{"metz"},
		{"nice"},
		{"lyon"},
	})
	require.NoError(t, err)

	top := topValues(ds, "City", 2)

	require.Len(t, top, 2)
	assert.Equal(t, valueCount{label: "lyon", count: 3}, top[0])
	assert.Equal(t, valueCount{label: "nice", count: 2}, top[1])

	assert.Nil(t, topValues(ds, "Missing", 2))
}

func TestTruncateLabel(t *testing.T) {
	assert.Equal(t, "short", truncateLabel("short"))
	assert.Equal(t, "a very long...", truncateLabel("a very long category name"))
}
