package extract

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"

	"github.com/nao1215/catalogcrawler/internal/model"
)

var (
	// ErrMissingField is returned when a required field is absent from the page.
	ErrMissingField = errors.New("required field is missing")

	// ErrMalformedNumber is returned when a price or quantity is not numeric.
	ErrMalformedNumber = errors.New("malformed number")

	// ErrMarking is returned when a tire page has fewer marking spans than expected.
	ErrMarking = errors.New("tire marking is incomplete")
)

// minMarkings is the number of marking spans a tire page carries. The
// first one is the full marking and is not used.
const minMarkings = 5

var digits = regexp.MustCompile(`\d+`)

var cleaner = strings.NewReplacer("\n", "", "\t", "", "\u00a0", "")

// Extractor parses item pages. The zero value is ready to use.
type Extractor struct{}

// New returns an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// page wraps a parsed item document.
type page struct {
	doc *goquery.Document
}

func parse(body []byte) (*page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse item page: %w", err)
	}
	return &page{doc: doc}, nil
}

func (p *page) field(name string) *goquery.Selection {
	return p.doc.Find(`[data-field="` + name + `"]`).First()
}

// optional returns the cleaned text of the field, or "" when it is absent.
func (p *page) optional(name string) string {
	sel := p.field(name)
	if sel.Length() == 0 {
		return ""
	}
	return Clean(sel.Text())
}

func (p *page) required(name string) (string, error) {
	sel := p.field(name)
	if sel.Length() == 0 {
		return "", fmt.Errorf("%w: %s", ErrMissingField, name)
	}
	return Clean(sel.Text()), nil
}

// price returns the data-bulletin-price of the price field.
func (p *page) price() (string, bool) {
	return p.field("price").Attr("data-bulletin-price")
}

// Tire extracts a tire record from an item page.
func (e *Extractor) Tire(body []byte) (model.TireRecord, error) {
	p, err := parse(body)
	if err != nil {
		return model.TireRecord{}, err
	}

	var rec model.TireRecord
	required := []struct {
		field string
		dst   *string
	}{
		{"subject", &rec.Title},
		{"quantity", &rec.TotalSets},
		{"wheelSeason", &rec.Tread},
		{"condition", &rec.ProductCondition},
		{"goodPresentState", &rec.AvailabilityOfGoods},
		{"predestination", &rec.TireType},
	}
	for _, r := range required {
		if *r.dst, err = p.required(r.field); err != nil {
			return model.TireRecord{}, err
		}
	}

	rec.TireYear = p.optional("year")

	markings := p.doc.Find(`span[data-field="marking"]`)
	if markings.Length() < minMarkings {
		return model.TireRecord{}, fmt.Errorf("%w: %d spans", ErrMarking, markings.Length())
	}
	rec.LandingDiameter = Clean(markings.Eq(1).Text())
	rec.ProfileWidth = Clean(markings.Eq(2).Text())
	rec.ProfileHeight = Clean(markings.Eq(3).Text())
	rec.Frame = Clean(markings.Eq(4).Text())

	setPrice, _ := p.price()
	inSet := p.field("inSetQuantity")
	rec.Price = setPrice
	if inSet.Length() > 0 {
		rawQty := inSet.Text()
		rec.NumberOfTiresInSet = Clean(rawQty)
		if setPrice != "" && rawQty != "" {
			if rec.Price, err = UnitPrice(setPrice, rawQty); err != nil {
				return model.TireRecord{}, err
			}
		}
	}
	return rec, nil
}

// Disk extracts a disk record from an item page.
// Unlike tires, a disk page must carry both the price and the in-set quantity.
func (e *Extractor) Disk(body []byte) (model.DiskRecord, error) {
	p, err := parse(body)
	if err != nil {
		return model.DiskRecord{}, err
	}

	var rec model.DiskRecord
	required := []struct {
		field string
		dst   *string
	}{
		{"subject", &rec.Title},
		{"inSetQuantity", &rec.NumberOfDiscsIncluded},
		{"quantity", &rec.NumberOfSets},
		{"wheelDiameter", &rec.Diameter},
		{"wheelPcd", &rec.DrillingPCD},
	}
	for _, r := range required {
		if *r.dst, err = p.required(r.field); err != nil {
			return model.DiskRecord{}, err
		}
	}

	setPrice, ok := p.price()
	if !ok {
		return model.DiskRecord{}, fmt.Errorf("%w: price", ErrMissingField)
	}
	if rec.Price, err = UnitPrice(setPrice, p.field("inSetQuantity").Text()); err != nil {
		return model.DiskRecord{}, err
	}

	rec.ProductCondition = p.optional("condition")
	rec.TypeOf = p.optional("diskType")
	rec.CHDiameterDIA = p.optional("diskHoleDiameter")
	rec.ProductAvailability = p.optional("goodPresentState")

	params := p.doc.Find(`div[data-field="discParameters"]`).First().Find("div.value")
	if params.Length() > 0 {
		rec.DiscWidth = Clean(params.Eq(0).Text())
	}
	if params.Length() > 1 {
		rec.DepartureET = Clean(params.Eq(1).Text())
	}
	return rec, nil
}

// Clean removes newlines, tabs and non-breaking spaces and normalizes to NFC.
func Clean(s string) string {
	return norm.NFC.String(cleaner.Replace(s))
}

// UnitPrice divides the set price by the first integer found in quantity.
// The result is formatted the way the downstream importer expects
// fractional prices, always with a decimal point: 2000.0, 1666.6666666666667.
func UnitPrice(setPrice, quantity string) (string, error) {
	price, err := strconv.Atoi(strings.TrimSpace(setPrice))
	if err != nil {
		return "", fmt.Errorf("%w: price %q", ErrMalformedNumber, setPrice)
	}
	m := digits.FindString(quantity)
	if m == "" {
		return "", fmt.Errorf("%w: quantity %q", ErrMalformedNumber, quantity)
	}
	qty, err := strconv.Atoi(m)
	if err != nil || qty == 0 {
		return "", fmt.Errorf("%w: quantity %q", ErrMalformedNumber, quantity)
	}
	return FormatPrice(float64(price) / float64(qty)), nil
}

// FormatPrice renders f with the shortest exact digits and at least one
// fractional digit.
func FormatPrice(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
