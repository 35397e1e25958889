package report

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

// maxTableColumns bounds the sample tables so wide sheets stay readable
// in mail clients and on A4 pages.
const maxTableColumns = 6

var boldPattern = regexp.MustCompile(`\*\*([^*]+)\*\*`)

// renderHTML builds the email body. Styles are inlined because mail
// clients strip style sheets.
func renderHTML(in Input, lbl labels) string {
	var b strings.Builder

	b.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8"></head>`)
	b.WriteString(`<body style="margin:0;padding:0;background-color:#f4f5f7;font-family:Arial,Helvetica,sans-serif;">`)
	b.WriteString(`<div style="max-width:640px;margin:0 auto;padding:24px;">`)

	b.WriteString(`<div style="background-color:#1a73e8;color:#ffffff;padding:24px;border-radius:8px 8px 0 0;">`)
	fmt.Fprintf(&b, `<h1 style="margin:0;font-size:22px;">%s</h1>`, html.EscapeString(in.ReportName))
	fmt.Fprintf(&b, `<p style="margin:8px 0 0;font-size:13px;opacity:0.9;">%s %s</p>`,
		html.EscapeString(lbl.GeneratedOn), in.GeneratedAt.Format("2006-01-02 15:04"))
	b.WriteString(`</div>`)

	b.WriteString(`<div style="background-color:#ffffff;padding:24px;border-radius:0 0 8px 8px;">`)

	writeSectionHeading(&b, lbl.DataOverview)
	b.WriteString(`<table style="width:100%;border-collapse:collapse;font-size:13px;">`)
	writeOverviewRow(&b, lbl.TotalRows, fmt.Sprintf("%d", in.Profile.Rows))
	writeOverviewRow(&b, lbl.TotalColumns, fmt.Sprintf("%d", in.Profile.Columns))
	writeOverviewRow(&b, lbl.NumericColumns, fmt.Sprintf("%d", len(in.Profile.NumericColumns)))
	writeOverviewRow(&b, lbl.MissingValues, fmt.Sprintf("%d", in.Profile.MissingCells))
	b.WriteString(`</table>`)

	if in.Insight != "" {
		writeSectionHeading(&b, lbl.AIAnalysis)
		b.WriteString(renderInsightHTML(in.Insight))
	}

	if len(in.Charts) > 0 {
		writeSectionHeading(&b, lbl.Visualizations)
		fmt.Fprintf(&b, `<p style="font-size:13px;color:#5f6368;">%s</p>`, html.EscapeString(lbl.ChartsAttached))
	}

	if in.IncludeRawData && len(in.Profile.Sample) > 0 {
		writeSectionHeading(&b, lbl.DataSample)
		writeSampleTable(&b, in)
	}

	fmt.Fprintf(&b, `<p style="margin-top:24px;font-size:11px;color:#9aa0a6;">%s</p>`, html.EscapeString(lbl.FooterNote))
	b.WriteString(`</div></div></body></html>`)

	return b.String()
}

func writeSectionHeading(b *strings.Builder, title string) {
	fmt.Fprintf(b, `<h2 style="margin:24px 0 12px;font-size:16px;color:#202124;border-bottom:1px solid #e8eaed;padding-bottom:8px;">%s</h2>`,
		html.EscapeString(title))
}

func writeOverviewRow(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, `<tr><td style="padding:6px 0;color:#5f6368;">%s</td><td style="padding:6px 0;text-align:right;font-weight:bold;color:#202124;">%s</td></tr>`,
		html.EscapeString(label), html.EscapeString(value))
}

func writeSampleTable(b *strings.Builder, in Input) {
	cols := len(in.Dataset.Columns)
	if cols > maxTableColumns {
		cols = maxTableColumns
	}

	b.WriteString(`<table style="width:100%;border-collapse:collapse;font-size:12px;">`)
	b.WriteString(`<tr>`)
	for _, col := range in.Dataset.Columns[:cols] {
		fmt.Fprintf(b, `<th style="padding:6px 8px;background-color:#e8eaed;border:1px solid #dadce0;text-align:left;">%s</th>`,
			html.EscapeString(col.Name))
	}
	b.WriteString(`</tr>`)
	for _, row := range in.Profile.Sample {
		b.WriteString(`<tr>`)
		for _, cell := range row[:cols] {
			fmt.Fprintf(b, `<td style="padding:6px 8px;border:1px solid #dadce0;">%s</td>`, html.EscapeString(cell))
		}
		b.WriteString(`</tr>`)
	}
	b.WriteString(`</table>`)
}

// renderInsightHTML converts the model's markdown-flavored analysis
// into email-safe HTML. Only headings, bold spans, and bullet lines are
// recognized.
func renderInsightHTML(insight string) string {
	var b strings.Builder

	for _, block := range strings.Split(strings.TrimSpace(insight), "\n\n") {
		lines := strings.Split(block, "\n")
		inList := false
		var paragraph []string

		flush := func() {
			if len(paragraph) == 0 {
				return
			}
			fmt.Fprintf(&b, `<p style="font-size:13px;color:#3c4043;line-height:1.6;">%s</p>`,
				strings.Join(paragraph, "<br>"))
			paragraph = paragraph[:0]
		}

		for _, line := range lines {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			escaped := boldPattern.ReplaceAllString(html.EscapeString(line), "<strong>$1</strong>")

			switch {
			case strings.HasPrefix(line, "#"):
				flush()
				if inList {
					b.WriteString("</ul>")
					inList = false
				}
				heading := strings.TrimSpace(strings.TrimLeft(escaped, "#"))
				fmt.Fprintf(&b, `<h3 style="margin:16px 0 8px;font-size:14px;color:#202124;">%s</h3>`, heading)
			case strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* "):
				flush()
				if !inList {
					b.WriteString(`<ul style="margin:8px 0;padding-left:20px;font-size:13px;color:#3c4043;line-height:1.6;">`)
					inList = true
				}
				fmt.Fprintf(&b, "<li>%s</li>", strings.TrimSpace(escaped[2:]))
			default:
				if inList {
					b.WriteString("</ul>")
					inList = false
				}
				paragraph = append(paragraph, escaped)
			}
		}
		flush()
		if inList {
			b.WriteString("</ul>")
		}
	}

	return b.String()
}
