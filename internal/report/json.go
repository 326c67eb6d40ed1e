package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/catalogcrawler/internal/model"
)

// JSONWriter outputs summaries in JSON format.
type JSONWriter struct {
	baseWriter

	version string

	indent       bool
	indentPrefix string
	indentString string
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

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter. version is recorded in the document.
func NewJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
		version:    version,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JSONReport wraps a summary with version and totals.
type JSONReport struct {
	Version string            `json:"version"`
	Totals  Totals            `json:"totals"`
	Summary *model.RunSummary `json:"summary"`
}

// Totals are the aggregate counters of a run.
type Totals struct {
	Sessions  int `json:"sessions"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Tires     int `json:"tires"`
	Disks     int `json:"disks"`
}

// NewTotals computes the totals of a summary.
func NewTotals(s *model.RunSummary) Totals {
	return Totals{
		Sessions:  len(s.Outcomes),
		Succeeded: s.Succeeded(),
		Failed:    s.Failed(),
		Tires:     s.TotalTires(),
		Disks:     s.TotalDisks(),
	}
}

// Write outputs the summary wrapped with metadata.
func (w *JSONWriter) Write(summary *model.RunSummary) (int, error) {
	doc := JSONReport{
		Version: w.version,
		Totals:  NewTotals(summary),
		Summary: summary,
	}

	var data []byte
	var err error
	if w.indent {
		data, err = json.MarshalIndent(doc, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return 0, err
	}

	// Trailing newline for terminal output
	data = append(data, '\n')
	return w.output.Write(data)
}
