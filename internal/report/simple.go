package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/iconscan/internal/model"
)

// ruleWidth is the width of the section rules in text output.
const ruleWidth = 70

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with clear section formatting.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with nothing to show are printed.
	showEmpty bool

	// verbose enables additional detail in the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with finding descriptions,
// references and performed steps.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.IconScanReport) (int, error) {
	var sb strings.Builder
	w.writeReport(&sb, report)
	return io.WriteString(w.output, sb.String())
}

// WriteBatch outputs each report followed by a totals section.
func (w *SimpleWriter) WriteBatch(reports []*model.IconScanReport) (int, error) {
	reports = nonNil(reports)

	var sb strings.Builder
	all := make([]model.Finding, 0)
	failed := 0
	for _, r := range reports {
		w.writeReport(&sb, r)
		all = append(all, r.Findings...)
		if r.Failed() {
			failed++
		}
	}

	if len(reports) > 1 {
		writeRule(&sb, "=")
		sb.WriteString("BATCH TOTALS\n")
		writeRule(&sb, "=")
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "Targets:  %d\n", len(reports))
		fmt.Fprintf(&sb, "Failed:   %d\n", failed)
		fmt.Fprintf(&sb, "Findings: %d\n\n", len(all))
	}

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeReport(sb *strings.Builder, report *model.IconScanReport) {
	w.writeHeader(sb, report)
	w.writeSummary(sb, report)
	w.writeIcons(sb, report)
	w.writeFindings(sb, report)
	w.writeFooter(sb, report)
}

// writeHeader writes the report header with scan information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.IconScanReport) {
	sb.WriteString("\n")
	writeRule(sb, "=")
	sb.WriteString("                        ICON CHECK REPORT\n")
	writeRule(sb, "=")
	sb.WriteString("\n")

	fmt.Fprintf(sb, "Target:      %s\n", report.Target)
	fmt.Fprintf(sb, "Scan Date:   %s\n", report.DateScanned.Format("2006-01-02 15:04:05 MST"))
	if report.PageStatus != 0 {
		fmt.Fprintf(sb, "Page Status: %d\n", report.PageStatus)
	}
	fmt.Fprintf(sb, "Branch:      %s\n", branchText(report.Branch))
	fmt.Fprintf(sb, "Status:      %s\n", statusText(report))
	sb.WriteString("\n")
}

// writeSummary writes the severity summary section.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.IconScanReport) {
	summary := report.Summary()
	if summary.Total() == 0 && !w.showEmpty {
		return
	}

	writeRule(sb, "-")
	sb.WriteString("SEVERITY SUMMARY\n")
	writeRule(sb, "-")
	sb.WriteString("\n")

	fmt.Fprintf(sb, "  CRITICAL: %d\n", summary.Critical)
	fmt.Fprintf(sb, "  HIGH:     %d\n", summary.High)
	fmt.Fprintf(sb, "  MEDIUM:   %d\n", summary.Medium)
	fmt.Fprintf(sb, "  LOW:      %d\n", summary.Low)
	fmt.Fprintf(sb, "  INFO:     %d\n", summary.Info)
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  TOTAL:    %d findings\n\n", summary.Total())
}

// writeIcons writes the extracted icon links.
func (w *SimpleWriter) writeIcons(sb *strings.Builder, report *model.IconScanReport) {
	if len(report.Icons) == 0 && !w.showEmpty {
		return
	}

	writeRule(sb, "-")
	sb.WriteString("ICON LINKS\n")
	writeRule(sb, "-")
	sb.WriteString("\n")

	if len(report.Icons) == 0 {
		sb.WriteString("  (none)\n\n")
		return
	}

	for _, l := range report.Icons {
		fmt.Fprintf(sb, "  %-18s %s\n", l.Rel, l.Href)
		if w.verbose {
			fmt.Fprintf(sb, "  %-18s type=%s sizes=%s\n", "", attrText(l.Type), attrText(l.Sizes))
		}
	}
	sb.WriteString("\n")
}

// writeFindings writes the findings, highest severity first.
func (w *SimpleWriter) writeFindings(sb *strings.Builder, report *model.IconScanReport) {
	if !report.HasFindings() {
		if w.showEmpty {
			writeRule(sb, "-")
			sb.WriteString("FINDINGS\n")
			writeRule(sb, "-")
			sb.WriteString("\n  No icon issues detected.\n\n")
		}
		return
	}

	writeRule(sb, "-")
	sb.WriteString("FINDINGS\n")
	writeRule(sb, "-")
	sb.WriteString("\n")

	for _, sev := range severityOrder {
		for _, f := range report.FindingsBySeverity(sev) {
			fmt.Fprintf(sb, "%s %s: %s\n", severityIndicator(f.Severity), f.Code, f.Summary)
			for _, u := range f.URLs {
				fmt.Fprintf(sb, "      URL: %s\n", u)
			}
			if w.verbose {
				if f.Description != "" {
					fmt.Fprintf(sb, "      %s\n", f.Description)
				}
				for _, ref := range f.FurtherInfo {
					fmt.Fprintf(sb, "      See: %s (%s)\n", ref.Title, ref.URL)
				}
			}
			sb.WriteString("\n")
		}
	}
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder, report *model.IconScanReport) {
	writeRule(sb, "=")
	if w.verbose && len(report.PerformedSteps) > 0 {
		fmt.Fprintf(sb, "Steps: %s\n", strings.Join(report.PerformedSteps, ", "))
	}
	fmt.Fprintf(sb, "Scan completed in %s\n", report.Duration.Round(1e6))
	writeRule(sb, "=")
}

// severityOrder lists severities from most to least severe.
var severityOrder = []model.Severity{
	model.SeverityCritical,
	model.SeverityHigh,
	model.SeverityMedium,
	model.SeverityLow,
	model.SeverityInfo,
}

// severityIndicator returns a fixed-width text tag for a severity.
func severityIndicator(s model.Severity) string {
	switch s {
	case model.SeverityCritical:
		return "[CRIT]"
	case model.SeverityHigh:
		return "[HIGH]"
	case model.SeverityMedium:
		return "[MED] "
	case model.SeverityLow:
		return "[LOW] "
	default:
		return "[INFO]"
	}
}

func writeRule(sb *strings.Builder, char string) {
	sb.WriteString(strings.Repeat(char, ruleWidth))
	sb.WriteString("\n")
}

// attrText renders an optional attribute, "-" when absent.
func attrText(a model.Attr) string {
	if v, ok := a.Get(); ok {
		return v
	}
	return "-"
}
