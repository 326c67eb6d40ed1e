package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/catalogcrawler/internal/model"
)

var testStart = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// createTestSummary creates a summary with one resumed success and one failure.
func createTestSummary() *model.RunSummary {
	s := model.NewRunSummary("run-1", testStart)
	s.FinishedAt = testStart.Add(90 * time.Minute)
	s.Outcomes = append(s.Outcomes,
		model.SessionOutcome{
			RunID:        "run-1",
			TargetID:     "tires-spb",
			ProxyID:      "p1",
			FinalProxyID: "p3",
			Exchanges:    1,
			Status:       model.StatusSucceeded,
			Resumed:      true,
			Links:        60,
			Tires:        40,
			Disks:        15,
			Skipped:      5,
			OutputFiles:  []string{"output/tires-spb_tires.xml", "output/tires-spb_disks.xml"},
			StartedAt:    testStart,
			FinishedAt:   testStart.Add(time.Hour),
		},
		model.SessionOutcome{
			RunID:      "run-1",
			TargetID:   "disks-msk",
			ProxyID:    "p2",
			Status:     model.StatusFailed,
			Links:      30,
			Tires:      2,
			Error:      "crawl fault: item fetch failed",
			StartedAt:  testStart,
			FinishedAt: testStart.Add(10 * time.Minute),
		},
	)
	return s
}

// TestSimpleWriter tests the human-readable summary writer.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header and totals", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"CATALOG CRAWL SUMMARY",
			"run-1",
			"2 (1 succeeded, 1 failed)",
			"42 tires, 15 disks",
			"[+] tires-spb via p1",
			"[!] disks-msk via p2",
			"proxy exchanged 1 time(s), ended on p3",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("hides details unless verbose", func(t *testing.T) {
		t.Parallel()

		var plain, verbose bytes.Buffer
		if _, err := NewSimpleWriter(&plain).Write(createTestSummary()); err != nil {
			t.Fatal(err)
		}
		if _, err := NewSimpleWriter(&verbose, WithVerbose(true)).Write(createTestSummary()); err != nil {
			t.Fatal(err)
		}

		if strings.Contains(plain.String(), "item fetch failed") {
			t.Error("expected plain output to omit errors")
		}
		if !strings.Contains(verbose.String(), "error: crawl fault: item fetch failed") {
			t.Error("expected verbose output to contain the error")
		}
		if !strings.Contains(verbose.String(), "wrote: output/tires-spb_tires.xml") {
			t.Error("expected verbose output to list output files")
		}
	})

	t.Run("empty run", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(model.NewRunSummary("empty", testStart)); err != nil {
			t.Fatal(err)
		}
		if strings.Contains(buf.String(), "SESSIONS") {
			t.Error("expected no sessions section for an empty run")
		}
	})
}

// TestJSONWriter tests the JSON summary writer.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("wraps summary with version and totals", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, "1.2.3").Write(createTestSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var doc JSONReport
		if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if doc.Version != "1.2.3" {
			t.Errorf("expected version 1.2.3, got %q", doc.Version)
		}
		want := Totals{Sessions: 2, Succeeded: 1, Failed: 1, Tires: 42, Disks: 15}
		if doc.Totals != want {
			t.Errorf("expected totals %+v, got %+v", want, doc.Totals)
		}
		if len(doc.Summary.Outcomes) != 2 || doc.Summary.Outcomes[1].Error == "" {
			t.Errorf("unexpected outcomes: %+v", doc.Summary.Outcomes)
		}
	})

	t.Run("compact by default", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, "dev").Write(createTestSummary()); err != nil {
			t.Fatal(err)
		}
		if strings.Count(buf.String(), "\n") != 1 {
			t.Error("expected single-line JSON")
		}
	})
}

// TestWithIndent tests custom indentation.
func TestWithIndent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		opt    JSONWriterOption
		prefix string
	}{
		{name: "pretty print", opt: WithPrettyPrint(), prefix: "\n  \"totals\""},
		{name: "tabs", opt: WithIndent("", "\t"), prefix: "\n\t\"totals\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			if _, err := NewJSONWriter(&buf, "dev", tt.opt).Write(createTestSummary()); err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(buf.String(), tt.prefix) {
				t.Errorf("expected output to contain %q", tt.prefix)
			}
		})
	}
}

// TestMarkdownWriter tests the Markdown summary writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("renders tables chart and failures", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestSummary()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"# Catalog Crawl Report",
			"`run-1`",
			"## Records",
			"mermaid",
			"pie",
			"## Sessions",
			"p1 → p3",
			"Complete (resumed)",
			"Failed",
			"## Failures",
			"crawl fault: item fetch failed",
			"1h30m0s",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
		if !strings.Contains(output, "[!WARNING]") {
			t.Error("expected a warning for the partial failure")
		}
	})

	t.Run("all succeeded", func(t *testing.T) {
		t.Parallel()

		s := createTestSummary()
		s.Outcomes = s.Outcomes[:1]

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(s); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "[!TIP]") {
			t.Error("expected a tip when every session completed")
		}
		if strings.Contains(buf.String(), "## Failures") {
			t.Error("expected no failures section")
		}
	})

	t.Run("no records skips chart", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(model.NewRunSummary("empty", testStart)); err != nil {
			t.Fatal(err)
		}
		if strings.Contains(buf.String(), "```mermaid") {
			t.Error("expected no chart without records")
		}
		if !strings.Contains(buf.String(), "No sessions were run.") {
			t.Error("expected empty run note")
		}
	})
}

// TestMultiWriter tests writing to several formats at once.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	var buf1, buf2 bytes.Buffer
	multi := NewMultiWriter(NewSimpleWriter(&buf1), NewJSONWriter(&buf2, "dev"))

	n, err := multi.Write(createTestSummary())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != buf1.Len()+buf2.Len() {
		t.Errorf("expected %d bytes, got %d", buf1.Len()+buf2.Len(), n)
	}
	if strings.Contains(buf1.String(), "{") {
		t.Error("expected buf1 (simple) to not be JSON")
	}
	if !json.Valid(buf2.Bytes()) {
		t.Error("expected buf2 to hold valid JSON")
	}
}

// TestSaveRunFiles tests writing the run summary files.
func TestSaveRunFiles(t *testing.T) {
	t.Parallel()

	t.Run("writes markdown and json", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "output")
		paths, err := SaveRunFiles(dir, createTestSummary(), "dev")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{filepath.Join(dir, "run_run-1.md"), filepath.Join(dir, "run_run-1.json")}
		if len(paths) != len(want) {
			t.Fatalf("expected %v, got %v", want, paths)
		}
		for i, p := range want {
			if paths[i] != p {
				t.Errorf("expected %s, got %s", p, paths[i])
			}
			if info, err := os.Stat(p); err != nil || info.Size() == 0 {
				t.Errorf("expected non-empty file %s", p)
			}
		}
	})

	t.Run("rejects missing run id", func(t *testing.T) {
		t.Parallel()

		_, err := SaveRunFiles(t.TempDir(), model.NewRunSummary("", testStart), "dev")
		if !errors.Is(err, ErrNoRunID) {
			t.Errorf("expected ErrNoRunID, got %v", err)
		}
	})
}
