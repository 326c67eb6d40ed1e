package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/catalogcrawler/internal/model"
)

// ruleWidth is the width of section separators.
const ruleWidth = 70

// SimpleWriter outputs human-readable text summaries.
type SimpleWriter struct {
	baseWriter

	// verbose adds errors and output files per session.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
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

// Write outputs the summary in human-readable format.
func (w *SimpleWriter) Write(summary *model.RunSummary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeSessions(&sb, summary)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, s *model.RunSummary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("                      CATALOG CRAWL SUMMARY\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Run ID:     %s\n", s.RunID)
	fmt.Fprintf(sb, "Started:    %s\n", s.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration:   %s\n", formatDuration(s.FinishedAt.Sub(s.StartedAt)))
	fmt.Fprintf(sb, "Sessions:   %d (%d succeeded, %d failed)\n", len(s.Outcomes), s.Succeeded(), s.Failed())
	fmt.Fprintf(sb, "Records:    %d tires, %d disks\n", s.TotalTires(), s.TotalDisks())
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSessions(sb *strings.Builder, s *model.RunSummary) {
	if len(s.Outcomes) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("SESSIONS\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")

	for _, o := range s.Outcomes {
		mark := "[+]"
		if !o.Succeeded() {
			mark = "[!]"
		}
		fmt.Fprintf(sb, "  %s %s via %s: %d tires, %d disks, %d skipped\n",
			mark, o.TargetID, o.ProxyID, o.Tires, o.Disks, o.Skipped)

		if o.Exchanges > 0 {
			fmt.Fprintf(sb, "      proxy exchanged %d time(s), ended on %s\n", o.Exchanges, o.FinalProxyID)
		}
		if !w.verbose {
			continue
		}
		if o.Error != "" {
			fmt.Fprintf(sb, "      error: %s\n", o.Error)
		}
		for _, f := range o.OutputFiles {
			fmt.Fprintf(sb, "      wrote: %s\n", f)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
}
