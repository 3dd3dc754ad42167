package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/nao1215/iconscan/internal/model"
)

// JSONWriter outputs reports in JSON format.
// This format is designed for tool integration and programmatic processing.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string

	// version is embedded in every document.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion sets the tool version recorded in the output.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// JSONReport wraps one report with output metadata.
type JSONReport struct {
	// Version is the iconscan version that generated this report.
	Version string `json:"version,omitempty"`

	// Report is the scan report.
	Report *model.IconScanReport `json:"report"`

	// Summary counts the findings by severity.
	Summary model.SeveritySummary `json:"summary"`
}

// JSONBatchReport wraps the reports of several targets.
type JSONBatchReport struct {
	// Version is the iconscan version that generated the reports.
	Version string `json:"version,omitempty"`

	// GeneratedAt is when the document was written.
	GeneratedAt time.Time `json:"generated_at"`

	// Reports holds one entry per target, in input order.
	Reports []JSONReport `json:"reports"`

	// Summary counts the findings of all reports by severity.
	Summary model.SeveritySummary `json:"summary"`
}

// NewJSONReport creates a JSONReport wrapper.
func NewJSONReport(report *model.IconScanReport, version string) *JSONReport {
	return &JSONReport{
		Version: version,
		Report:  report,
		Summary: report.Summary(),
	}
}

// Write outputs a single report.
func (w *JSONWriter) Write(report *model.IconScanReport) (int, error) {
	return w.writeJSON(NewJSONReport(report, w.version))
}

// WriteBatch outputs several reports as one document.
func (w *JSONWriter) WriteBatch(reports []*model.IconScanReport) (int, error) {
	reports = nonNil(reports)
	batch := JSONBatchReport{
		Version:     w.version,
		GeneratedAt: time.Now(),
		Reports:     make([]JSONReport, len(reports)),
	}

	all := make([]model.Finding, 0)
	for i, r := range reports {
		batch.Reports[i] = *NewJSONReport(r, "")
		all = append(all, r.Findings...)
	}
	batch.Summary = model.Summarize(all)

	return w.writeJSON(batch)
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}
