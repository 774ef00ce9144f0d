package bulkupload

// Category is a read-only view of a known category, resolved against the
// category_name column during parsing.
type Category struct {
	ID   string
	Name string
}

// CategoryAttributes declares the variant axes a category supports and the
// allowed values per axis. Keyed by category ID in parser input.
type CategoryAttributes struct {
	HasSizes        bool
	HasColors       bool
	AvailableSizes  []string
	AvailableColors []string
}

// Severity classifies a validation issue. Errors block an upload, warnings
// are surfaced for operator visibility only.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is a single validation finding attributed to a source row
type Issue struct {
	Row      int      `json:"row"`
	Field    string   `json:"field,omitempty"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// ParsedVariant is one sellable configuration extracted from a CSV group
type ParsedVariant struct {
	Size      string   `json:"size,omitempty"`
	Color     string   `json:"color,omitempty"`
	Price     float64  `json:"price"`
	Quantity  int      `json:"quantity"`
	ImageURLs []string `json:"imageUrls,omitempty"`
	Index     int      `json:"index"`
}

// ParsedProduct is a validated product extracted from one CSV group.
// Every parsed product carries at least one variant.
type ParsedProduct struct {
	Name               string          `json:"name"`
	Description        string          `json:"description"`
	CategoryName       string          `json:"categoryName"`
	CategoryID         string          `json:"categoryId"`
	BasePrice          float64         `json:"basePrice"`
	Discount           float64         `json:"discount"`
	PromotionType      string          `json:"promotionType,omitempty"`
	PromotionStartDate string          `json:"promotionStartDate,omitempty"`
	PromotionEndDate   string          `json:"promotionEndDate,omitempty"`
	MainImageURLs      []string        `json:"mainImageUrls,omitempty"`
	Variants           []ParsedVariant `json:"variants"`
	Row                int             `json:"row"`
}

// ParseResult is the outcome of parsing one CSV upload. Errors and Warnings
// accumulate per row; a fatal problem (empty file, missing headers) yields a
// single row-0 error and no products.
type ParseResult struct {
	Products []ParsedProduct `json:"products"`
	Errors   []Issue         `json:"errors"`
	Warnings []Issue         `json:"warnings"`
}

// HasErrors reports whether any blocking issue was recorded
func (r *ParseResult) HasErrors() bool {
	return len(r.Errors) > 0
}
