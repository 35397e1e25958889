package report

import (
	"fmt"
	"regexp"
	"strings"
)

var headingMarkPattern = regexp.MustCompile(`(?m)^#+\s*`)

// renderText builds the plain-text alternative for mail clients without
// HTML support.
func renderText(in Input, lbl labels) string {
	var b strings.Builder

	b.WriteString(in.ReportName)
	b.WriteByte('\n')
	fmt.Fprintf(&b, "%s %s\n\n", lbl.GeneratedOn, in.GeneratedAt.Format("2006-01-02 15:04"))

	fmt.Fprintf(&b, "%s\n", lbl.DataOverview)
	fmt.Fprintf(&b, "- %s: %d\n", lbl.TotalRows, in.Profile.Rows)
	fmt.Fprintf(&b, "- %s: %d\n", lbl.TotalColumns, in.Profile.Columns)
	fmt.Fprintf(&b, "- %s: %d\n", lbl.NumericColumns, len(in.Profile.NumericColumns))
	fmt.Fprintf(&b, "- %s: %d\n", lbl.MissingValues, in.Profile.MissingCells)

	if in.Insight != "" {
		fmt.Fprintf(&b, "\n%s\n\n%s\n", lbl.AIAnalysis, plainInsight(in.Insight))
	}

	if len(in.Charts) > 0 {
		fmt.Fprintf(&b, "\n%s\n", lbl.ChartsAttached)
	}

	fmt.Fprintf(&b, "\n%s\n", lbl.FooterNote)
	return b.String()
}

// plainInsight strips the markdown marks the model tends to emit.
func plainInsight(insight string) string {
	s := strings.TrimSpace(insight)
	s = headingMarkPattern.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "**", "")
	return s
}
