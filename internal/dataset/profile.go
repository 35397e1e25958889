package dataset

// NumericStats summarizes one numeric column.
type NumericStats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Sum   float64 `json:"sum"`
}

// Profile is the quick-stats summary shown on reports and fed to the
// insight prompt.
type Profile struct {
	Rows           int                     `json:"rows"`
	Columns        int                     `json:"columns"`
	NumericColumns []string                `json:"numeric_columns"`
	TextColumns    []string                `json:"text_columns"`
	MissingCells   int                     `json:"missing_cells"`
	Stats          map[string]NumericStats `json:"stats,omitempty"`
	Sample         [][]string              `json:"sample,omitempty"`
}

// Profile computes summary statistics and keeps up to sampleRows rows
// as a preview. A cell counts as missing when it is empty, or when it
// sits in a numeric column and does not parse.
func (d *Dataset) Profile(sampleRows int) *Profile {
	p := &Profile{
		Rows:           len(d.Rows),
		Columns:        len(d.Columns),
		NumericColumns: d.NumericColumns(),
		TextColumns:    d.TextColumns(),
		Stats:          make(map[string]NumericStats),
	}

	for j, col := range d.Columns {
		numeric := col.Kind == KindNumeric
		var stats NumericStats
		for _, row := range d.Rows {
			cell := row[j]
			v, ok := ParseNumber(cell)
			if cell == "" || (numeric && !ok) {
				p.MissingCells++
			}
			if !numeric || !ok {
				continue
			}
			if stats.Count == 0 || v < stats.Min {
				stats.Min = v
			}
			if stats.Count == 0 || v > stats.Max {
				stats.Max = v
			}
			stats.Sum += v
			stats.Count++
		}
		if numeric && stats.Count > 0 {
			stats.Mean = stats.Sum / float64(stats.Count)
			p.Stats[col.Name] = stats
		}
	}

	if sampleRows > len(d.Rows) {
		sampleRows = len(d.Rows)
	}
	if sampleRows > 0 {
		p.Sample = d.Rows[:sampleRows]
	}
	return p
}
