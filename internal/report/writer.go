package report

import (
	"io"

	"github.com/nao1215/iconscan/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs a single report.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.IconScanReport) (int, error)

	// WriteBatch outputs the reports of several targets as one document.
	WriteBatch(reports []*model.IconScanReport) (int, error)
}

// MultiWriter writes to multiple Writers, for example the terminal and a file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.IconScanReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteBatch outputs the reports to all configured Writers.
func (m *MultiWriter) WriteBatch(reports []*model.IconScanReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteBatch(reports)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// nonNil drops nil entries left by cancelled batch runs.
func nonNil(reports []*model.IconScanReport) []*model.IconScanReport {
	out := make([]*model.IconScanReport, 0, len(reports))
	for _, r := range reports {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// statusText describes how a run ended.
func statusText(report *model.IconScanReport) string {
	switch {
	case report.Failed():
		return "ERROR - " + report.ErrorMessage
	case report.State == model.StateDone:
		return "Complete"
	default:
		return string(report.State)
	}
}

// branchText describes the branch a run took.
func branchText(branch model.State) string {
	switch branch {
	case model.StateNoIcons:
		return "no icon links"
	case model.StateTouchOnly:
		return "touch icons only"
	case model.StateFullChecks:
		return "full checks"
	default:
		return "-"
	}
}
