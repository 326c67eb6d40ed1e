package export

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/catalogcrawler/internal/model"
)

// timestampLayout is the suffix layout of timestamped file names.
const timestampLayout = "20060102_150405"

// ErrInvalidID is returned for target ids that cannot be used in a file name.
var ErrInvalidID = errors.New("invalid target id for output file")

// products is the root element of both documents.
type products struct {
	XMLName xml.Name           `xml:"products"`
	Tires   []model.TireRecord `xml:"Tire"`
	Disks   []model.DiskRecord `xml:"Disk"`
}

// Files are the paths of the documents written for one target.
type Files struct {
	Tires string
	Disks string
}

// Paths returns both paths, tires first.
func (f Files) Paths() []string {
	return []string{f.Tires, f.Disks}
}

// Writer writes per-target XML documents into a directory.
type Writer struct {
	dir       string
	timestamp bool
	now       func() time.Time
}

// Option configures a Writer.
type Option func(*Writer)

// WithTimestamp appends the generation time to file names.
func WithTimestamp(enabled bool) Option {
	return func(w *Writer) {
		w.timestamp = enabled
	}
}

// WithClock sets the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) {
		w.now = now
	}
}

// NewWriter creates a Writer for dir. File names are timestamped by default.
func NewWriter(dir string, opts ...Option) *Writer {
	w := &Writer{
		dir:       dir,
		timestamp: true,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write writes <id>_tires.xml and <id>_disks.xml. Both files are
// written even when a list is empty.
func (w *Writer) Write(id string, tires []model.TireRecord, disks []model.DiskRecord) (Files, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return Files{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if err := os.MkdirAll(w.dir, 0o750); err != nil {
		return Files{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	files := Files{
		Tires: filepath.Join(w.dir, w.fileName(id, "tires")),
		Disks: filepath.Join(w.dir, w.fileName(id, "disks")),
	}
	if err := writeFile(files.Tires, products{Tires: tires}); err != nil {
		return Files{}, err
	}
	if err := writeFile(files.Disks, products{Disks: disks}); err != nil {
		return Files{}, err
	}
	return files, nil
}

func (w *Writer) fileName(id, kind string) string {
	if w.timestamp {
		return fmt.Sprintf("%s_%s_%s.xml", id, kind, w.now().Format(timestampLayout))
	}
	return fmt.Sprintf("%s_%s.xml", id, kind)
}

// Encode writes the document to out.
func Encode(out io.Writer, tires []model.TireRecord, disks []model.DiskRecord) error {
	return encode(out, products{Tires: tires, Disks: disks})
}

func encode(out io.Writer, doc products) error {
	if _, err := io.WriteString(out, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(out)
	enc.Indent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(out, "\n")
	return err
}

func writeFile(path string, doc products) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = encode(tmp, doc); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil { //nolint:gosec // output documents are meant to be shared
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
