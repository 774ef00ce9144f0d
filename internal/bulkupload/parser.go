package bulkupload

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Canonical column names. Header matching is by substring so templates may
// decorate headers (e.g. "base_price *") without breaking the parser.
const (
	colProductName      = "product_name"
	colDescription      = "description"
	colCategoryName     = "category_name"
	colBasePrice        = "base_price"
	colDiscount         = "discount"
	colPromotionType    = "promotion_type"
	colPromotionStart   = "promotion_start_date"
	colPromotionEnd     = "promotion_end_date"
	colMainImageURLs    = "main_image_urls"
	colVariantsJSON     = "variants_json"
	colVariantSize      = "variant_size"
	colVariantColor     = "variant_color"
	colVariantPrice     = "variant_price"
	colVariantQuantity  = "variant_quantity"
	colVariantImageURLs = "variant_image_urls"
)

var requiredColumns = []string{colProductName, colCategoryName, colBasePrice}

// Parser turns raw CSV text into validated products. Categories and their
// attributes are fetched once per upload session and passed in read-only.
type Parser struct {
	categories []Category
	attributes map[string]CategoryAttributes
}

// NewParser creates a parser bound to the known category set
func NewParser(categories []Category, attributes map[string]CategoryAttributes) *Parser {
	if attributes == nil {
		attributes = make(map[string]CategoryAttributes)
	}
	return &Parser{categories: categories, attributes: attributes}
}

// csvRow is one physical data row with its 1-based source row number retained
// for error attribution
type csvRow struct {
	num    int
	fields map[string]string
}

func (r csvRow) get(name string) string {
	return r.fields[name]
}

// productGroup is a logical product: the first row supplies product-level
// fields, continuation rows (empty product_name) supply column-format variants
type productGroup struct {
	rows []csvRow
}

// ParseCSV parses CSV text into products plus accumulated issues. Only a
// totally empty or unreadable file, or a file missing required headers,
// aborts with a single fatal error; all other problems accumulate per row
// and parsing continues.
func (p *Parser) ParseCSV(csvText string) *ParseResult {
	result := &ParseResult{
		Products: make([]ParsedProduct, 0),
		Errors:   make([]Issue, 0),
		Warnings: make([]Issue, 0),
	}

	if strings.TrimSpace(csvText) == "" {
		result.addError(0, "", "CSV file is empty")
		return result
	}

	reader := csv.NewReader(strings.NewReader(csvText))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		result.addError(0, "", fmt.Sprintf("Failed to read CSV header: %v", err))
		return result
	}

	headers := normalizeHeaders(header)
	if missing := missingRequiredColumns(headers); len(missing) > 0 {
		result.addError(0, strings.Join(missing, ", "),
			fmt.Sprintf("Missing required columns: %s", strings.Join(missing, ", ")))
		return result
	}

	rows := p.readRows(reader, headers, result)
	if len(rows) == 0 && len(result.Errors) == 0 {
		result.addError(0, "", "CSV file contains no data rows")
		return result
	}

	for _, group := range p.groupRows(rows, result) {
		if product, ok := p.buildProduct(group, result); ok {
			result.Products = append(result.Products, product)
		}
	}

	return result
}

// normalizeHeaders lowercases, trims and strips the required-marker suffix
// from header cells
func normalizeHeaders(header []string) []string {
	headers := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.ToLower(h))
		h = strings.TrimSuffix(h, " *")
		headers[i] = h
	}
	return headers
}

// missingRequiredColumns checks required headers by substring match
func missingRequiredColumns(headers []string) []string {
	var missing []string
	for _, required := range requiredColumns {
		found := false
		for _, h := range headers {
			if strings.Contains(h, required) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, required)
		}
	}
	return missing
}

// columnIndex finds the header position for a canonical column name, exact
// match first, then substring
func columnIndex(headers []string, name string) int {
	for i, h := range headers {
		if h == name {
			return i
		}
	}
	for i, h := range headers {
		if strings.Contains(h, name) {
			return i
		}
	}
	return -1
}

func (p *Parser) readRows(reader *csv.Reader, headers []string, result *ParseResult) []csvRow {
	columns := make(map[string]int)
	for _, name := range []string{
		colProductName, colDescription, colCategoryName, colBasePrice,
		colDiscount, colPromotionType, colPromotionStart, colPromotionEnd,
		colMainImageURLs, colVariantsJSON, colVariantSize, colVariantColor,
		colVariantPrice, colVariantQuantity, colVariantImageURLs,
	} {
		if idx := columnIndex(headers, name); idx >= 0 {
			columns[name] = idx
		}
	}

	var rows []csvRow
	rowNum := 1 // header is row 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			result.addError(rowNum, "", fmt.Sprintf("Unreadable row: %v", err))
			continue
		}

		fields := make(map[string]string, len(columns))
		empty := true
		for name, idx := range columns {
			if idx < len(record) {
				value := strings.TrimSpace(record[idx])
				fields[name] = value
				if value != "" {
					empty = false
				}
			}
		}
		if empty {
			continue
		}
		rows = append(rows, csvRow{num: rowNum, fields: fields})
	}
	return rows
}

// groupRows applies the grouping rule: a non-empty product_name starts a new
// logical product; an empty product_name appends a variant row to the
// immediately preceding group. Orphan variant rows are dropped with an error.
func (p *Parser) groupRows(rows []csvRow, result *ParseResult) []productGroup {
	var groups []productGroup
	for _, row := range rows {
		if row.get(colProductName) != "" {
			groups = append(groups, productGroup{rows: []csvRow{row}})
			continue
		}
		if len(groups) == 0 {
			result.addError(row.num, colProductName, "Variant row has no preceding product row")
			continue
		}
		last := &groups[len(groups)-1]
		last.rows = append(last.rows, row)
	}
	return groups
}

// variantSource is the tagged union over the two mutually-exclusive variant
// formats, resolved once per product group
type variantSource struct {
	json    string   // non-empty: exclusive JSON-format source
	columns []csvRow // otherwise: one column-format variant per physical row
}

func resolveVariantSource(group productGroup) variantSource {
	if raw := group.rows[0].get(colVariantsJSON); raw != "" {
		return variantSource{json: raw}
	}
	return variantSource{columns: group.rows}
}

func (p *Parser) buildProduct(group productGroup, result *ParseResult) (ParsedProduct, bool) {
	first := group.rows[0]
	product := ParsedProduct{
		Name:               first.get(colProductName),
		Description:        first.get(colDescription),
		CategoryName:       first.get(colCategoryName),
		BasePrice:          sanitizePrice(first.get(colBasePrice)),
		Discount:           sanitizeDiscount(first.get(colDiscount)),
		PromotionType:      first.get(colPromotionType),
		PromotionStartDate: parseDate(first.get(colPromotionStart)),
		PromotionEndDate:   parseDate(first.get(colPromotionEnd)),
		MainImageURLs:      splitImageList(first.get(colMainImageURLs)),
		Row:                first.num,
	}

	// Top-level required fields: failure here drops the product entirely
	valid := true
	if product.Name == "" {
		result.addError(first.num, colProductName, "Product name is required")
		valid = false
	}
	if product.CategoryName == "" {
		result.addError(first.num, colCategoryName, "Category name is required")
		valid = false
	} else if category, ok := p.resolveCategory(product.CategoryName); ok {
		product.CategoryID = category.ID
	} else {
		result.addError(first.num, colCategoryName,
			fmt.Sprintf("Category %q not found", product.CategoryName))
		valid = false
	}
	if product.BasePrice <= 0 {
		result.addError(first.num, colBasePrice, "Base price must be greater than 0")
		valid = false
	}
	if !valid {
		return ParsedProduct{}, false
	}

	// Promotion window: both dates present and start >= end is an error but
	// does not drop the product
	if product.PromotionStartDate != "" && product.PromotionEndDate != "" &&
		product.PromotionStartDate >= product.PromotionEndDate {
		result.addError(first.num, colPromotionStart,
			"Promotion start date must be before end date")
	}

	source := resolveVariantSource(group)
	if source.json != "" {
		product.Variants = p.parseJSONVariants(source.json, first.num, result)
	} else {
		product.Variants = p.parseColumnVariants(source.columns)
	}

	p.validateVariants(&product, result)

	// A persisted product always has at least one variant
	if len(product.Variants) == 0 {
		product.Variants = []ParsedVariant{{
			Price:    product.BasePrice,
			Quantity: 1,
			Index:    0,
		}}
	}

	return product, true
}

func (p *Parser) resolveCategory(name string) (Category, bool) {
	for _, c := range p.categories {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Category{}, false
}

// rawVariant tolerates both string and numeric JSON encodings of price and
// quantity, matching what spreadsheet tools emit
type rawVariant struct {
	Size      string      `json:"size"`
	Color     string      `json:"color"`
	Price     interface{} `json:"price"`
	Quantity  interface{} `json:"quantity"`
	ImageURLs interface{} `json:"image_urls"`
}

func (p *Parser) parseJSONVariants(raw string, row int, result *ParseResult) []ParsedVariant {
	var entries []rawVariant
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		result.addError(row, colVariantsJSON, fmt.Sprintf("Invalid variants JSON: %v", err))
		return nil
	}

	variants := make([]ParsedVariant, 0, len(entries))
	for i, entry := range entries {
		variant := ParsedVariant{
			Size:      strings.TrimSpace(entry.Size),
			Color:     strings.TrimSpace(entry.Color),
			Price:     coerceNumber(entry.Price),
			Quantity:  coerceInt(entry.Quantity),
			ImageURLs: coerceImageList(entry.ImageURLs),
			Index:     i,
		}

		// JSON-format variants are validated explicitly: invalid ones are
		// reported and removed, the product keeps its remaining variants
		ok := true
		if variant.Price <= 0 {
			result.addError(row, colVariantPrice,
				fmt.Sprintf("Variant %d: price must be greater than 0", i+1))
			ok = false
		}
		if variant.Quantity < 0 {
			result.addError(row, colVariantQuantity,
				fmt.Sprintf("Variant %d: quantity cannot be negative", i+1))
			ok = false
		}
		if ok {
			variants = append(variants, variant)
		}
	}
	return variants
}

// columnVariantViable is the silent-drop filter for column-format variant
// rows: price and quantity must both be positive. Rows failing it are
// discarded without an error, unlike JSON-format variants.
func columnVariantViable(v ParsedVariant) bool {
	return v.Price > 0 && v.Quantity > 0
}

func (p *Parser) parseColumnVariants(rows []csvRow) []ParsedVariant {
	variants := make([]ParsedVariant, 0, len(rows))
	for _, row := range rows {
		variant := ParsedVariant{
			Size:      row.get(colVariantSize),
			Color:     row.get(colVariantColor),
			Price:     sanitizePrice(row.get(colVariantPrice)),
			Quantity:  sanitizeQuantity(row.get(colVariantQuantity)),
			ImageURLs: splitImageList(row.get(colVariantImageURLs)),
		}
		if !columnVariantViable(variant) {
			continue
		}
		variant.Index = len(variants)
		variants = append(variants, variant)
	}
	return variants
}

// validateVariants checks size/color membership against the category's
// attributes. Mismatches are warnings, never errors. A category without an
// attributes record yields a single warning and skips membership checks.
func (p *Parser) validateVariants(product *ParsedProduct, result *ParseResult) {
	attrs, ok := p.attributes[product.CategoryID]
	if !ok {
		result.addWarning(product.Row, colCategoryName,
			fmt.Sprintf("No category attributes found for %q; size/color validation skipped", product.CategoryName))
		return
	}

	for _, variant := range product.Variants {
		if attrs.HasSizes && variant.Size != "" && !containsFold(attrs.AvailableSizes, variant.Size) {
			result.addWarning(product.Row, colVariantSize,
				fmt.Sprintf("Size %q is not in the allowed sizes for %q", variant.Size, product.CategoryName))
		}
		if attrs.HasColors && variant.Color != "" && !containsFold(attrs.AvailableColors, variant.Color) {
			result.addWarning(product.Row, colVariantColor,
				fmt.Sprintf("Color %q is not in the allowed colors for %q", variant.Color, product.CategoryName))
		}
	}
}

func containsFold(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}

func (r *ParseResult) addError(row int, field, message string) {
	r.Errors = append(r.Errors, Issue{Row: row, Field: field, Message: message, Severity: SeverityError})
}

func (r *ParseResult) addWarning(row int, field, message string) {
	r.Warnings = append(r.Warnings, Issue{Row: row, Field: field, Message: message, Severity: SeverityWarning})
}

// Field coercion

var (
	nonPriceChars    = regexp.MustCompile(`[^0-9.\-]`)
	nonDigitChars    = regexp.MustCompile(`[^0-9]`)
	dateInputLayouts = []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
		"2006/01/02",
		"02/01/2006",
	}
)

// sanitizePrice strips currency symbols and thousand separators, then parses
// a non-negative float. Unparseable input coerces to 0 so the caller's
// "> 0" validation catches it.
func sanitizePrice(raw string) float64 {
	cleaned := nonPriceChars.ReplaceAllString(raw, "")
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || value < 0 {
		return 0
	}
	return value
}

// sanitizeDiscount parses like sanitizePrice but clamps to [0,100]
func sanitizeDiscount(raw string) float64 {
	cleaned := nonPriceChars.ReplaceAllString(raw, "")
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}

// sanitizeQuantity strips everything but digits and parses a non-negative int
func sanitizeQuantity(raw string) int {
	cleaned := nonDigitChars.ReplaceAllString(raw, "")
	value, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0
	}
	return value
}

// parseDate parses a date in any accepted layout and returns it as an
// ISO-8601 string; invalid input yields the empty string (null)
func parseDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, layout := range dateInputLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return ""
}

// splitImageList splits a comma-separated filename list, trimming entries and
// dropping empties
func splitImageList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tokens := make([]string, 0, len(parts))
	for _, part := range parts {
		if token := strings.TrimSpace(part); token != "" {
			tokens = append(tokens, token)
		}
	}
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}

// coerceNumber accepts JSON numbers or strings and coerces through the same
// sanitizer as CSV price cells. JSON numbers keep their sign so negative
// prices still fail validation downstream.
func coerceNumber(value interface{}) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case string:
		return sanitizePrice(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	default:
		return 0
	}
}

func coerceInt(value interface{}) int {
	switch v := value.(type) {
	case float64:
		return int(v)
	case string:
		return sanitizeQuantity(v)
	case json.Number:
		i, _ := v.Int64()
		return int(i)
	default:
		return 0
	}
}

func coerceImageList(value interface{}) []string {
	switch v := value.(type) {
	case string:
		return splitImageList(v)
	case []interface{}:
		tokens := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					tokens = append(tokens, s)
				}
			}
		}
		if len(tokens) == 0 {
			return nil
		}
		return tokens
	default:
		return nil
	}
}
