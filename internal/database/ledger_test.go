package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/catalogcrawler/internal/model"
)

// setupTestDB creates a temporary ledger for testing.
func setupTestDB(t *testing.T) *Ledger {
	t.Helper()

	l, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func outcome(runID, targetID string, status model.SessionStatus, started time.Time) model.SessionOutcome {
	return model.SessionOutcome{
		RunID:      runID,
		TargetID:   targetID,
		TargetURL:  "https://example/" + targetID,
		ProxyID:    "p1",
		Status:     status,
		Tires:      3,
		Disks:      2,
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
	}
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		l, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer l.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); err != nil {
			t.Errorf("database file was not created: %v", err)
		}
		if l.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("Path() = %s", l.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		_, err := Open(filepath.Join(t.TempDir(), "missing"), Options{})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("reopens existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		l, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		if err := l.RecordSession(context.Background(), outcome("r1", "a", model.StatusSucceeded, time.Now())); err != nil {
			t.Fatal(err)
		}
		_ = l.Close()

		l, err = Open(dir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen: %v", err)
		}
		defer l.Close()
		got, err := l.RecentSessions(context.Background(), 10)
		if err != nil || len(got) != 1 {
			t.Errorf("RecentSessions() = %v, %v", got, err)
		}
	})
}

// TestDefaultOptions tests the default options.
func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	if !opts.CreateIfNotExists || !opts.EnableWAL {
		t.Errorf("DefaultOptions() = %+v", opts)
	}
}

// TestSessions tests recording and querying sessions.
func TestSessions(t *testing.T) {
	t.Parallel()

	l := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	records := []model.SessionOutcome{
		outcome("r1", "a", model.StatusSucceeded, base),
		outcome("r1", "b", model.StatusFailed, base.Add(time.Second)),
		outcome("r2", "a", model.StatusSucceeded, base.Add(time.Hour)),
	}
	records[1].Error = "crawl session failed: b: stale"
	records[1].OutputFiles = nil
	records[2].OutputFiles = []string{"output/a_tires.xml", "output/a_disks.xml"}

	for _, r := range records {
		if err := l.RecordSession(ctx, r); err != nil {
			t.Fatalf("RecordSession() error = %v", err)
		}
	}

	t.Run("recent sessions newest first", func(t *testing.T) {
		t.Parallel()

		got, err := l.RecentSessions(ctx, 2)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 || got[0].RunID != "r2" || got[1].TargetID != "b" {
			t.Errorf("RecentSessions() = %+v", got)
		}
		if len(got[0].OutputFiles) != 2 || !got[0].StartedAt.Equal(base.Add(time.Hour)) {
			t.Errorf("round trip lost data: %+v", got[0])
		}
	})

	t.Run("target history", func(t *testing.T) {
		t.Parallel()

		got, err := l.TargetHistory(ctx, "a", 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 || got[0].RunID != "r2" || got[1].RunID != "r1" {
			t.Errorf("TargetHistory() = %+v", got)
		}
	})

	t.Run("run sessions", func(t *testing.T) {
		t.Parallel()

		got, err := l.RunSessions(ctx, "r1")
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 || got[1].Status != model.StatusFailed || got[1].Error == "" {
			t.Errorf("RunSessions() = %+v", got)
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		t.Parallel()

		got, err := l.RunSessions(ctx, "nope")
		if err != nil || len(got) != 0 {
			t.Errorf("RunSessions() = %v, %v", got, err)
		}
	})
}

// TestExchanges tests recording proxy exchanges.
func TestExchanges(t *testing.T) {
	t.Parallel()

	l := setupTestDB(t)
	ctx := context.Background()

	if err := l.RecordExchange(ctx, "r1", "p1", "p3"); err != nil {
		t.Fatal(err)
	}
	if err := l.RecordExchange(ctx, "r1", "p3", "p4"); err != nil {
		t.Fatal(err)
	}
	if err := l.RecordExchange(ctx, "r2", "p2", "p5"); err != nil {
		t.Fatal(err)
	}

	got, err := l.Exchanges(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].FromProxy != "p1" || got[1].ToProxy != "p4" {
		t.Errorf("Exchanges() = %+v", got)
	}
	if got[0].Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
}

// TestParseTimestamp tests the supported timestamp formats.
func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		zero  bool
	}{
		{input: "2026-01-02 03:04:05"},
		{input: "2026-01-02T03:04:05Z"},
		{input: "2026-01-02T03:04:05.123456789Z"},
		{input: "garbage", zero: true},
	}
	for _, tt := range tests {
		if got := parseTimestamp(tt.input); got.IsZero() != tt.zero {
			t.Errorf("parseTimestamp(%q) = %v", tt.input, got)
		}
	}
}
