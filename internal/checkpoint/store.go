package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/catalogcrawler/internal/model"
)

// Checkpoint file names.
const (
	linksFile    = "links.json"
	cookiesFile  = "cookies.json"
	tiresFile    = "tires.json"
	disksFile    = "disks.json"
	progressFile = "progress.json"
)

const (
	dirMode  fs.FileMode = 0o700
	fileMode fs.FileMode = 0o600
)

// Store loads and saves per-target crawl progress.
type Store interface {
	Load(targetID string) (*model.CrawlState, error)
	SaveLinks(targetID string, links []string) error
	SaveCookies(targetID string, cookies []model.Cookie) error
	SaveRecords(targetID string, tires []model.TireRecord, disks []model.DiskRecord) error
	SaveProgress(targetID string, position int, lastLink string) error
	Clear(targetID string) error
	Exists(targetID string) bool
}

// progress is the content of progress.json.
type progress struct {
	Position int    `json:"position"`
	LastLink string `json:"last_link"`
}

// FileStore is a Store backed by one directory per target.
type FileStore struct {
	root string
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a FileStore rooted at dir. The directory is
// created lazily on the first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{root: dir}
}

// Root returns the checkpoint root directory.
func (s *FileStore) Root() string {
	return s.root
}

// Dir returns the checkpoint directory of a target.
func (s *FileStore) Dir(targetID string) (string, error) {
	if err := validateID(targetID); err != nil {
		return "", err
	}
	return filepath.Join(s.root, targetID), nil
}

// Exists reports whether a checkpoint directory exists for the target.
func (s *FileStore) Exists(targetID string) bool {
	dir, err := s.Dir(targetID)
	if err != nil {
		return false
	}
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// Load restores whatever the checkpoint holds. Missing files leave the
// corresponding fields empty; a missing checkpoint yields an empty state.
func (s *FileStore) Load(targetID string) (*model.CrawlState, error) {
	dir, err := s.Dir(targetID)
	if err != nil {
		return nil, err
	}

	state := model.NewCrawlState()
	if _, err := readJSON(filepath.Join(dir, linksFile), &state.Links); err != nil {
		return nil, err
	}
	if _, err := readJSON(filepath.Join(dir, cookiesFile), &state.Cookies); err != nil {
		return nil, err
	}
	if _, err := readJSON(filepath.Join(dir, tiresFile), &state.Tires); err != nil {
		return nil, err
	}
	if _, err := readJSON(filepath.Join(dir, disksFile), &state.Disks); err != nil {
		return nil, err
	}

	var p progress
	found, err := readJSON(filepath.Join(dir, progressFile), &p)
	if err != nil {
		return nil, err
	}
	if found {
		state.Position = p.Position
		state.LastLink = p.LastLink
	}
	return state, nil
}

// SaveLinks replaces the harvested links.
func (s *FileStore) SaveLinks(targetID string, links []string) error {
	return s.save(targetID, linksFile, nonNil(links))
}

// SaveCookies replaces the exported cookie jar.
func (s *FileStore) SaveCookies(targetID string, cookies []model.Cookie) error {
	return s.save(targetID, cookiesFile, nonNil(cookies))
}

// SaveRecords replaces the tire and disk snapshots.
func (s *FileStore) SaveRecords(targetID string, tires []model.TireRecord, disks []model.DiskRecord) error {
	if err := s.save(targetID, tiresFile, nonNil(tires)); err != nil {
		return err
	}
	return s.save(targetID, disksFile, nonNil(disks))
}

// SaveProgress records how many links have been processed.
func (s *FileStore) SaveProgress(targetID string, position int, lastLink string) error {
	return s.save(targetID, progressFile, progress{Position: position, LastLink: lastLink})
}

// Clear removes the checkpoint of the target. A missing checkpoint is
// not an error.
func (s *FileStore) Clear(targetID string) error {
	dir, err := s.Dir(targetID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clear checkpoint %s: %w", targetID, err)
	}
	return nil
}

func (s *FileStore) save(targetID, name string, v any) error {
	dir, err := s.Dir(targetID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	return writeAtomic(filepath.Join(dir, name), data)
}

// writeAtomic writes data next to path and renames it into place, so a
// reader sees either the old or the new content.
func writeAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err = tmp.Chmod(fileMode); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// readJSON decodes path into v. It reports false when the file does not exist.
func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is built from a validated target id
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%w: %s: %w", ErrCorrupt, filepath.Base(path), err)
	}
	return true, nil
}

func validateID(id string) error {
	if id == "" || id == "." || strings.Contains(id, "..") ||
		strings.ContainsAny(id, `/\`) || !filepath.IsLocal(id) {
		return fmt.Errorf("%w: %q", ErrInvalidTargetID, id)
	}
	return nil
}

// nonNil keeps empty slices encoded as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
