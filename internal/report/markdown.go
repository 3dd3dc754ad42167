package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/iconscan/internal/model"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs reports in GitHub Flavored Markdown.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.IconScanReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Icon Check Report")
	md.PlainText("")
	w.writeReport(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteBatch outputs an overview table followed by one section per target.
func (w *MarkdownWriter) WriteBatch(reports []*model.IconScanReport) (int, error) {
	reports = nonNil(reports)
	md := markdown.NewMarkdown(w.output)

	md.H1("Icon Check Report")
	md.PlainText("")
	md.PlainTextf("Generated: %s", time.Now().Format(time.RFC3339))
	md.PlainText("")

	rows := make([][]string, len(reports))
	for i, r := range reports {
		rows[i] = []string{
			r.Target,
			branchText(r.Branch),
			strconv.Itoa(len(r.Findings)),
			truncateString(statusText(r), 40),
		}
	}
	md.H2("Overview")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Target", "Branch", "Findings", "Status"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, r := range reports {
		md.H2(r.Target)
		md.PlainText("")
		w.writeReport(md, r)
	}
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeReport(md *markdown.Markdown, report *model.IconScanReport) {
	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeIcons(md, report)
	w.writeFindings(md, report)
}

// writeHeader writes the scan property table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.IconScanReport) {
	pageStatus := "-"
	if report.PageStatus != 0 {
		pageStatus = strconv.Itoa(report.PageStatus)
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Target", report.Target},
			{"Scan Date", report.DateScanned.Format("2006-01-02 15:04:05 MST")},
			{"Page Status", pageStatus},
			{"Branch", branchText(report.Branch)},
			{"Status", statusText(report)},
		},
	})
	md.PlainText("")

	if report.Failed() {
		md.Warningf("The scan did not complete: %s", report.ErrorMessage)
		md.PlainText("")
	}
}

// writeSummary writes the severity table, chart and alert.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.IconScanReport) {
	summary := report.Summary()

	md.H3("Severity Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Severity", "Count"},
		Rows: [][]string{
			{"Critical", strconv.Itoa(summary.Critical)},
			{"High", strconv.Itoa(summary.High)},
			{"Medium", strconv.Itoa(summary.Medium)},
			{"Low", strconv.Itoa(summary.Low)},
			{"Info", strconv.Itoa(summary.Info)},
			{"**Total**", "**" + strconv.Itoa(summary.Total()) + "**"},
		},
	})
	md.PlainText("")

	if summary.Total() > 0 {
		w.writePieChart(md, report)
	}
	w.writeAlert(md, summary)
}

// writePieChart writes a mermaid chart of findings per code.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.IconScanReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Findings by Code"),
		piechart.WithShowData(true),
	)

	counts := make(map[string]uint64)
	order := make([]string, 0)
	for _, code := range report.Codes() {
		if _, seen := counts[code]; !seen {
			order = append(order, code)
		}
		counts[code]++
	}
	for _, code := range order {
		chart.LabelAndIntValue(code, counts[code])
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert matching the highest severity present.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, summary model.SeveritySummary) {
	switch {
	case summary.Critical > 0:
		md.Cautionf("%d critical finding(s) require immediate attention.", summary.Critical)
	case summary.High > 0:
		md.Warningf("%d high severity finding(s) should be addressed.", summary.High)
	case summary.Medium > 0:
		md.Importantf("%d medium severity finding(s) found.", summary.Medium)
	case summary.Total() > 0:
		md.Note("Only low severity and informational findings detected.")
	default:
		md.Tip("No icon issues detected.")
	}
	md.PlainText("")
}

// writeIcons writes the extracted icon links.
func (w *MarkdownWriter) writeIcons(md *markdown.Markdown, report *model.IconScanReport) {
	md.H3("Icon Links")
	md.PlainText("")

	if len(report.Icons) == 0 {
		md.PlainText("No icon links found.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Icons))
	for i, l := range report.Icons {
		href := l.Href
		if href == "" {
			href = "-"
		}
		rows[i] = []string{
			l.Rel,
			truncateString(href, 60),
			attrText(l.Type),
			attrText(l.Sizes),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Rel", "Href", "Type", "Sizes"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFindings writes the findings table with references.
func (w *MarkdownWriter) writeFindings(md *markdown.Markdown, report *model.IconScanReport) {
	md.H3("Findings")
	md.PlainText("")

	if !report.HasFindings() {
		md.PlainText("No icon issues detected.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Findings))
	for i, f := range report.Findings {
		desc := f.Description
		if desc == "" {
			desc = "-"
		}
		rows[i] = []string{
			f.Code,
			f.SeverityText,
			f.Summary,
			truncateString(desc, 80),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Code", "Severity", "Summary", "Description"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, f := range report.Findings {
		if len(f.FurtherInfo) == 0 {
			continue
		}
		refs := make([]string, len(f.FurtherInfo))
		for i, ref := range f.FurtherInfo {
			refs[i] = "[" + ref.Title + "](" + ref.URL + ")"
		}
		md.Details(f.Code+": further reading", strings.Join(refs, "<br>"))
	}
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [iconscan](https://github.com/nao1215/iconscan)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
