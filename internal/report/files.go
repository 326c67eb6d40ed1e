package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/catalogcrawler/internal/model"
)

// ErrNoRunID is returned when a summary without a run ID is saved.
var ErrNoRunID = errors.New("run summary has no run id")

// SaveRunFiles writes run_<id>.md and run_<id>.json into dir and returns
// their paths.
func SaveRunFiles(dir string, summary *model.RunSummary, version string) ([]string, error) {
	if summary.RunID == "" {
		return nil, ErrNoRunID
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	base := filepath.Join(dir, "run_"+summary.RunID)
	targets := []struct {
		path   string
		writer func(f *os.File) Writer
	}{
		{base + ".md", func(f *os.File) Writer { return NewMarkdownWriter(f) }},
		{base + ".json", func(f *os.File) Writer { return NewJSONWriter(f, version, WithPrettyPrint()) }},
	}

	paths := make([]string, 0, len(targets))
	for _, t := range targets {
		if err := saveOne(t.path, summary, t.writer); err != nil {
			return paths, err
		}
		paths = append(paths, t.path)
	}
	return paths, nil
}

func saveOne(path string, summary *model.RunSummary, newWriter func(f *os.File) Writer) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644) //nolint:gosec // report files are meant to be shared
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if _, err := newWriter(f).Write(summary); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
