package crawler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"

	"github.com/nao1215/catalogcrawler/internal/model"
)

// ItemsPerPage is the catalog page size.
const ItemsPerPage = 50

// Breadcrumb lines that identify the item kind.
const (
	crumbDisks = "Диски"
	crumbTires = "Шины"
)

var (
	itemIDPattern     = regexp.MustCompile(`(\d+)\.html`)
	pageParamsPattern = regexp.MustCompile(`Number\(\d+\), `)
)

func parseHTML(body []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}

// ParseLinks returns the hrefs of item links in document order.
// Duplicates are kept.
func ParseLinks(body []byte) ([]string, error) {
	doc, err := parseHTML(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogLayout, err)
	}
	links := make([]string, 0, ItemsPerPage)
	doc.Find("a.bull-item__self-link").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && href != "" {
			links = append(links, href)
		}
	})
	return links, nil
}

// ParseItemCount returns the data-count of the item counter.
func ParseItemCount(body []byte) (int, error) {
	doc, err := parseHTML(body)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCatalogLayout, err)
	}
	raw, ok := doc.Find("span#itemsCount_placeholder").First().Attr("data-count")
	if !ok {
		return 0, fmt.Errorf("%w: item counter not found", ErrCatalogLayout)
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: item counter %q", ErrCatalogLayout, raw)
	}
	return n, nil
}

// PageCount returns the number of catalog pages holding n items.
func PageCount(n int) int {
	return (n + ItemsPerPage - 1) / ItemsPerPage
}

// PageOf returns the 1-based catalog page of the item at 1-based position p.
func PageOf(p int) int {
	return PageCount(p)
}

// feed is the body of a lightweight catalog page.
type feed struct {
	Feed *string `json:"feed"`
}

// ParseFeed returns the item links of a lightweight catalog page.
func ParseFeed(body []byte) ([]string, error) {
	var f feed
	if err := json.Unmarshal(body, &f); err != nil {
		return nil, fmt.Errorf("%w: feed: %w", ErrCatalogLayout, err)
	}
	if f.Feed == nil {
		return nil, fmt.Errorf("%w: feed is missing", ErrCatalogLayout)
	}
	return ParseLinks([]byte(*f.Feed))
}

// Classify decides the item kind from the breadcrumb trail.
func Classify(body []byte) model.ItemKind {
	doc, err := parseHTML(body)
	if err != nil {
		return model.KindNone
	}
	crumbs := doc.Find("div#breadcrumbs").First()
	if crumbs.Length() == 0 {
		return model.KindNone
	}

	lines := strings.Split(norm.NFC.String(crumbs.Text()), "\n")
	kind := model.KindNone
	for _, line := range lines {
		switch strings.TrimSpace(line) {
		case crumbDisks:
			return model.KindDisk
		case crumbTires:
			kind = model.KindTire
		}
	}
	return kind
}

// ItemID returns the numeric id of an item link, or "" if it has none.
func ItemID(link string) string {
	m := itemIDPattern.FindStringSubmatch(link)
	if m == nil {
		return ""
	}
	return m[1]
}

// PageParams decodes the item parameters the page passes to its statistics
// script. The object follows the first "Number(<digits>), " and ends at
// the next ");".
func PageParams(body []byte) (map[string]any, error) {
	loc := pageParamsPattern.FindIndex(body)
	if loc == nil {
		return nil, ErrStaleLink
	}
	rest := body[loc[1]:]
	end := bytes.Index(rest, []byte(");"))
	if end < 0 {
		return nil, ErrStaleLink
	}

	dec := json.NewDecoder(bytes.NewReader(rest[:end]))
	dec.UseNumber()
	params := make(map[string]any)
	if err := dec.Decode(&params); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStaleLink, err)
	}
	return params, nil
}
