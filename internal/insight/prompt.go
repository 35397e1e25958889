package insight

import (
	"fmt"
	"sort"
	"strings"

	"github.com/reportpilot/reportpilot/internal/dataset"
	"github.com/reportpilot/reportpilot/internal/domain"
)

const systemPrompt = "You are a senior business data analyst. You write " +
	"clear, specific reports for non-technical readers. You ground every " +
	"statement in the numbers you are given and never invent data."

// buildPrompt renders the dataset profile into an analysis request.
// The sample block keeps the model anchored to real values.
func buildPrompt(reportName, language string, p *dataset.Profile) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Analyze the dataset behind the report %q.\n\n", reportName)
	fmt.Fprintf(&b, "Shape: %d rows, %d columns.\n", p.Rows, p.Columns)
	fmt.Fprintf(&b, "Numeric columns: %s.\n", orNone(p.NumericColumns))
	fmt.Fprintf(&b, "Text columns: %s.\n", orNone(p.TextColumns))
	fmt.Fprintf(&b, "Missing cells: %d.\n", p.MissingCells)

	if len(p.Stats) > 0 {
		b.WriteString("\nColumn statistics:\n")
		names := make([]string, 0, len(p.Stats))
		for name := range p.Stats {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			s := p.Stats[name]
			fmt.Fprintf(&b, "- %s: min=%.2f max=%.2f mean=%.2f sum=%.2f (%d values)\n",
				name, s.Min, s.Max, s.Mean, s.Sum, s.Count)
		}
	}

	if len(p.Sample) > 0 {
		b.WriteString("\nSample rows (first rows of the sheet):\n")
		for _, row := range p.Sample {
			b.WriteString(strings.Join(row, " | "))
			b.WriteByte('\n')
		}
	}

	b.WriteString("\nWrite a business analysis with these sections, each " +
		"introduced by a short heading line:\n")
	b.WriteString("1. Key Findings: the three to five most important facts.\n")
	b.WriteString("2. Trends and Patterns: relationships and outliers worth attention.\n")
	b.WriteString("3. Data Quality: gaps or inconsistencies, referencing the missing cell count.\n")
	b.WriteString("4. Recommendations: concrete next actions for the business.\n")
	fmt.Fprintf(&b, "\nWrite the entire analysis in %s.\n", domain.LanguageName(language))

	return b.String()
}

func orNone(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
