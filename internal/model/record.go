package model

// ItemKind classifies a fetched item page.
// The set of kinds is closed: an item is a tire, a disk, or neither.
type ItemKind int

const (
	// KindNone is an item that is neither a tire nor a disk.
	KindNone ItemKind = iota
	// KindTire is a tire listing.
	KindTire
	// KindDisk is a wheel disk listing.
	KindDisk
)

// String returns the human-readable kind name.
func (k ItemKind) String() string {
	switch k {
	case KindTire:
		return "tire"
	case KindDisk:
		return "disk"
	default:
		return "none"
	}
}

// TireRecord is a tire listing as it appears in the output document.
// XML element names follow the format expected by downstream importers.
type TireRecord struct {
	Title               string `json:"title" xml:"title"`
	Price               string `json:"price" xml:"price"`
	NumberOfTiresInSet  string `json:"theNumberOfTiresInAnIndivisibleSet" xml:"theNumberOfTiresInAnIndivisibleSet"`
	TotalSets           string `json:"totalSets" xml:"totalSets"`
	TireYear            string `json:"tireYear" xml:"tireYear"`
	Tread               string `json:"tread" xml:"tread"`
	ProductCondition    string `json:"productCondition" xml:"productCondition"`
	LandingDiameter     string `json:"landingDiameter" xml:"landingDiameter"`
	ProfileWidth        string `json:"profileWidth" xml:"profileWidth"`
	ProfileHeight       string `json:"profileHeight" xml:"profileHeight"`
	Frame               string `json:"frame" xml:"frame"`
	AvailabilityOfGoods string `json:"availabilityOfGoods" xml:"availabilityOfGoods"`
	TireType            string `json:"tireType" xml:"tireType"`
}

// DiskRecord is a wheel disk listing as it appears in the output document.
type DiskRecord struct {
	Title                 string `json:"title" xml:"title"`
	Price                 string `json:"price" xml:"price"`
	NumberOfDiscsIncluded string `json:"NumberOfDiscsIncluded" xml:"NumberOfDiscsIncluded"`
	NumberOfSets          string `json:"NumberOfSets" xml:"NumberOfSets"`
	ProductCondition      string `json:"ProductCondition" xml:"ProductCondition"`
	Diameter              string `json:"Diameter" xml:"Diameter"`
	DiscWidth             string `json:"DiscWidth" xml:"DiscWidth"`
	DepartureET           string `json:"DepartureET" xml:"DepartureET"`
	DrillingPCD           string `json:"DrillingPCD" xml:"DrillingPCD"`
	TypeOf                string `json:"TypeOf" xml:"TypeOf"`
	CHDiameterDIA         string `json:"CHDiameterDIA" xml:"CHDiameterDIA"`
	ProductAvailability   string `json:"ProductAvailability" xml:"ProductAvailability"`
}

// Record is the tagged result of extracting one item page.
// Exactly one of Tire and Disk is set when Kind is not KindNone.
type Record struct {
	Kind ItemKind
	Tire *TireRecord
	Disk *DiskRecord
}

// TireResult wraps a tire record.
func TireResult(t TireRecord) Record {
	return Record{Kind: KindTire, Tire: &t}
}

// DiskResult wraps a disk record.
func DiskResult(d DiskRecord) Record {
	return Record{Kind: KindDisk, Disk: &d}
}
