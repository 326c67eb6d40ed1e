package inventory

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nao1215/catalogcrawler/internal/config"
	"github.com/nao1215/catalogcrawler/internal/model"
)

var (
	// ErrDuplicateID is returned when two rows share an id.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrMalformedRow is returned when a row has the wrong shape.
	ErrMalformedRow = errors.New("malformed row")

	// ErrEmptyTable is returned when a table has no data rows.
	ErrEmptyTable = errors.New("table has no rows")
)

const (
	targetColumns = 3
	proxyColumns  = 7
)

// LoadTargets reads the catalog target table at path.
func LoadTargets(path string) ([]model.CatalogTarget, error) {
	f, err := os.Open(path) //nolint:gosec // operator-provided table path
	if err != nil {
		return nil, config.Errorf("failed to open targets file: %w", err)
	}
	defer f.Close()

	targets, err := ReadTargets(f)
	if err != nil {
		return nil, config.Errorf("%s: %w", path, err)
	}
	return targets, nil
}

// ReadTargets parses rows of the form id;url;resumeFromLink.
// The trailing resume column may be empty or absent.
func ReadTargets(r io.Reader) ([]model.CatalogTarget, error) {
	rows, err := readRows(r)
	if err != nil {
		return nil, err
	}

	targets := make([]model.CatalogTarget, 0, len(rows))
	seen := make(map[string]int, len(rows))
	for i, row := range rows {
		line := i + 2
		if len(row) < targetColumns-1 || len(row) > targetColumns {
			return nil, fmt.Errorf("line %d: expected %d columns, got %d: %w", line, targetColumns, len(row), ErrMalformedRow)
		}

		t := model.CatalogTarget{
			ID:  strings.TrimSpace(row[0]),
			URL: strings.TrimSpace(row[1]),
		}
		if len(row) == targetColumns {
			t.ResumeFromLink = strings.TrimSpace(row[2])
		}
		if t.ID == "" || t.URL == "" {
			return nil, fmt.Errorf("line %d: id and url are required: %w", line, ErrMalformedRow)
		}
		if prev, ok := seen[t.ID]; ok {
			return nil, fmt.Errorf("line %d: target id %q already used on line %d: %w", line, t.ID, prev, ErrDuplicateID)
		}
		seen[t.ID] = line
		targets = append(targets, t)
	}
	return targets, nil
}

// LoadProxies reads the proxy table at path.
func LoadProxies(path string) ([]model.ProxyEndpoint, error) {
	f, err := os.Open(path) //nolint:gosec // operator-provided table path
	if err != nil {
		return nil, config.Errorf("failed to open proxies file: %w", err)
	}
	defer f.Close()

	proxies, err := ReadProxies(f)
	if err != nil {
		return nil, config.Errorf("%s: %w", path, err)
	}
	return proxies, nil
}

// ReadProxies parses rows of the form
// id;ip;port_http;port_socks5;username;password;internal_ip.
func ReadProxies(r io.Reader) ([]model.ProxyEndpoint, error) {
	rows, err := readRows(r)
	if err != nil {
		return nil, err
	}

	proxies := make([]model.ProxyEndpoint, 0, len(rows))
	seen := make(map[string]int, len(rows))
	for i, row := range rows {
		line := i + 2
		if len(row) != proxyColumns {
			return nil, fmt.Errorf("line %d: expected %d columns, got %d: %w", line, proxyColumns, len(row), ErrMalformedRow)
		}

		p := model.ProxyEndpoint{
			ID:           strings.TrimSpace(row[0]),
			Host:         strings.TrimSpace(row[1]),
			HTTPPort:     strings.TrimSpace(row[2]),
			SOCKSPort:    strings.TrimSpace(row[3]),
			Username:     strings.TrimSpace(row[4]),
			Password:     row[5],
			InternalHost: strings.TrimSpace(row[6]),
		}
		if p.ID == "" || p.Host == "" || p.SOCKSPort == "" {
			return nil, fmt.Errorf("line %d: id, ip and port_socks5 are required: %w", line, ErrMalformedRow)
		}
		if prev, ok := seen[p.ID]; ok {
			return nil, fmt.Errorf("line %d: proxy id %q already used on line %d: %w", line, p.ID, prev, ErrDuplicateID)
		}
		seen[p.ID] = line
		proxies = append(proxies, p)
	}
	return proxies, nil
}

// readRows returns every data row, skipping the header and blank lines.
func readRows(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyTable
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRow, err)
	}
	return rows, nil
}

// FindTarget returns the target with the given id.
func FindTarget(targets []model.CatalogTarget, id string) (model.CatalogTarget, bool) {
	for _, t := range targets {
		if t.ID == id {
			return t, true
		}
	}
	return model.CatalogTarget{}, false
}

// FindProxy returns the proxy with the given id.
func FindProxy(proxies []model.ProxyEndpoint, id string) (model.ProxyEndpoint, bool) {
	for _, p := range proxies {
		if p.ID == id {
			return p, true
		}
	}
	return model.ProxyEndpoint{}, false
}
