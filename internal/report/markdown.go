package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/catalogcrawler/internal/model"
)

// MarkdownWriter outputs summaries in Markdown format.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(summary *model.RunSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeRecords(md, summary)
	w.writeSessions(md, summary)
	w.writeFailures(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *model.RunSummary) {
	md.H1("Catalog Crawl Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run ID", "`" + s.RunID + "`"},
			{"Started", s.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Finished", s.FinishedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", formatDuration(s.FinishedAt.Sub(s.StartedAt))},
			{"Sessions", strconv.Itoa(len(s.Outcomes))},
			{"Succeeded", strconv.Itoa(s.Succeeded())},
			{"Failed", strconv.Itoa(s.Failed())},
		},
	})
	md.PlainText("")

	switch {
	case len(s.Outcomes) == 0:
		md.Note("No sessions were run.")
	case s.Failed() == len(s.Outcomes):
		md.Cautionf("All %d session(s) failed. Their checkpoints were kept for the next run.", s.Failed())
	case s.Failed() > 0:
		md.Warningf("%d session(s) failed and kept their checkpoints.", s.Failed())
	default:
		md.Tip("All sessions completed.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeRecords(md *markdown.Markdown, s *model.RunSummary) {
	md.H2("Records")
	md.PlainText("")

	tires, disks := s.TotalTires(), s.TotalDisks()
	md.Table(markdown.TableSet{
		Header: []string{"Kind", "Count"},
		Rows: [][]string{
			{"Tires", strconv.Itoa(tires)},
			{"Disks", strconv.Itoa(disks)},
			{"**Total**", "**" + strconv.Itoa(tires+disks) + "**"},
		},
	})
	md.PlainText("")

	if tires+disks == 0 {
		return
	}
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Records by kind"),
		piechart.WithShowData(true),
	)
	if tires > 0 {
		chart.LabelAndIntValue("Tires", uint64(tires))
	}
	if disks > 0 {
		chart.LabelAndIntValue("Disks", uint64(disks))
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeSessions(md *markdown.Markdown, s *model.RunSummary) {
	md.H2("Sessions")
	md.PlainText("")

	if len(s.Outcomes) == 0 {
		md.PlainText("No sessions.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(s.Outcomes))
	for i, o := range s.Outcomes {
		proxy := o.ProxyID
		if o.FinalProxyID != "" && o.FinalProxyID != o.ProxyID {
			proxy += " → " + o.FinalProxyID
		}
		rows[i] = []string{
			o.TargetID,
			proxy,
			statusText(o),
			strconv.Itoa(o.Links),
			strconv.Itoa(o.Tires),
			strconv.Itoa(o.Disks),
			strconv.Itoa(o.Skipped),
			formatDuration(o.Duration()),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Target", "Proxy", "Status", "Links", "Tires", "Disks", "Skipped", "Duration"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, s *model.RunSummary) {
	if s.Failed() == 0 {
		return
	}
	md.H2("Failures")
	md.PlainText("")
	for _, o := range s.Outcomes {
		if o.Succeeded() {
			continue
		}
		md.Details(o.TargetID, o.Error)
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by catalogcrawler*")
}

func statusText(o model.SessionOutcome) string {
	if o.Succeeded() {
		if o.Resumed {
			return "✅ Complete (resumed)"
		}
		return "✅ Complete"
	}
	return "❌ Failed"
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}
