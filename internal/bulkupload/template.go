package bulkupload

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/xuri/excelize/v2"
)

// VariantFormat selects how variants are laid out in the template
type VariantFormat string

const (
	VariantFormatJSON    VariantFormat = "json"
	VariantFormatColumns VariantFormat = "columns"
)

// TemplateOptions control template generation
type TemplateOptions struct {
	IncludeVariants bool
	IncludeExamples bool
	VariantFormat   VariantFormat
	MaxExamples     int
}

// DefaultTemplateOptions returns the options used when the caller passes none
func DefaultTemplateOptions() TemplateOptions {
	return TemplateOptions{
		IncludeVariants: true,
		IncludeExamples: true,
		VariantFormat:   VariantFormatJSON,
		MaxExamples:     5,
	}
}

// Template is a generated upload template: headers, example rows and
// human-readable instructions
type Template struct {
	Headers      []string   `json:"headers"`
	SampleRows   [][]string `json:"sampleRows"`
	Instructions []string   `json:"instructions"`
}

var baseHeaders = []string{
	colProductName, colDescription, colCategoryName, colBasePrice,
	colDiscount, colPromotionType, colPromotionStart, colPromotionEnd,
	colMainImageURLs,
}

var variantColumnHeaders = []string{
	colVariantSize, colVariantColor, colVariantPrice,
	colVariantQuantity, colVariantImageURLs,
}

// categoryBasePrices is the fixed category to sample base price table (KSh)
var categoryBasePrices = map[string]float64{
	"men":         2500,
	"women":       2800,
	"kids":        1500,
	"shoes":       3500,
	"accessories": 1200,
}

const defaultSamplePrice = 2000

// sizePriceMultipliers scales sample variant prices by size
var sizePriceMultipliers = map[string]float64{
	"XS":  0.9,
	"S":   0.95,
	"M":   1.0,
	"L":   1.05,
	"XL":  1.1,
	"XXL": 1.15,
}

// GenerateTemplate builds a CSV upload template for the selected categories.
// An empty selection means all known categories.
func GenerateTemplate(categories []Category, attributes map[string]CategoryAttributes, selectedIDs []string, opts TemplateOptions) *Template {
	if opts.MaxExamples <= 0 {
		opts.MaxExamples = DefaultTemplateOptions().MaxExamples
	}
	if opts.VariantFormat == "" {
		opts.VariantFormat = VariantFormatJSON
	}

	selected := selectCategories(categories, selectedIDs)

	headers := append([]string{}, baseHeaders...)
	if opts.IncludeVariants {
		if opts.VariantFormat == VariantFormatColumns {
			headers = append(headers, variantColumnHeaders...)
		} else {
			headers = append(headers, colVariantsJSON)
		}
	}

	template := &Template{
		Headers:      headers,
		SampleRows:   make([][]string, 0),
		Instructions: buildInstructions(opts),
	}

	if opts.IncludeExamples {
		for i, category := range selected {
			if i >= opts.MaxExamples {
				break
			}
			attrs := attributes[category.ID]
			template.SampleRows = append(template.SampleRows,
				sampleRowsForCategory(category, attrs, opts)...)
		}
	}

	return template
}

func selectCategories(categories []Category, selectedIDs []string) []Category {
	if len(selectedIDs) == 0 {
		return categories
	}
	wanted := make(map[string]bool, len(selectedIDs))
	for _, id := range selectedIDs {
		wanted[id] = true
	}
	var selected []Category
	for _, c := range categories {
		if wanted[c.ID] {
			selected = append(selected, c)
		}
	}
	return selected
}

// sampleVariants synthesizes plausible variants for a category: the cross
// product of the first 2 sizes and 2 colors when both axes apply, up to 3
// values of a single axis, or one default variant when neither applies
func sampleVariants(attrs CategoryAttributes, basePrice float64) []ParsedVariant {
	sizes := attrs.AvailableSizes
	colors := attrs.AvailableColors

	switch {
	case attrs.HasSizes && attrs.HasColors && len(sizes) > 0 && len(colors) > 0:
		if len(sizes) > 2 {
			sizes = sizes[:2]
		}
		if len(colors) > 2 {
			colors = colors[:2]
		}
		var variants []ParsedVariant
		for _, size := range sizes {
			for _, color := range colors {
				variants = append(variants, ParsedVariant{
					Size:     size,
					Color:    color,
					Price:    sizeAdjustedPrice(basePrice, size),
					Quantity: 10,
					Index:    len(variants),
				})
			}
		}
		return variants
	case attrs.HasSizes && len(sizes) > 0:
		if len(sizes) > 3 {
			sizes = sizes[:3]
		}
		variants := make([]ParsedVariant, 0, len(sizes))
		for i, size := range sizes {
			variants = append(variants, ParsedVariant{
				Size:     size,
				Price:    sizeAdjustedPrice(basePrice, size),
				Quantity: 10,
				Index:    i,
			})
		}
		return variants
	case attrs.HasColors && len(colors) > 0:
		if len(colors) > 3 {
			colors = colors[:3]
		}
		variants := make([]ParsedVariant, 0, len(colors))
		for i, color := range colors {
			variants = append(variants, ParsedVariant{
				Color:    color,
				Price:    basePrice,
				Quantity: 10,
				Index:    i,
			})
		}
		return variants
	default:
		return []ParsedVariant{{Price: basePrice, Quantity: 10, Index: 0}}
	}
}

func sizeAdjustedPrice(basePrice float64, size string) float64 {
	multiplier, ok := sizePriceMultipliers[strings.ToUpper(size)]
	if !ok {
		multiplier = 1.0
	}
	return math.Round(basePrice * multiplier)
}

func samplePriceFor(category Category) float64 {
	if price, ok := categoryBasePrices[strings.ToLower(category.Name)]; ok {
		return price
	}
	return defaultSamplePrice
}

func sampleRowsForCategory(category Category, attrs CategoryAttributes, opts TemplateOptions) [][]string {
	basePrice := samplePriceFor(category)
	name := fmt.Sprintf("Sample %s Product", category.Name)
	description := fmt.Sprintf("Quality %s item from our latest collection", strings.ToLower(category.Name))
	slug := strings.ReplaceAll(strings.ToLower(category.Name), " ", "-")
	images := fmt.Sprintf("%s-front.jpg,%s-back.jpg", slug, slug)

	productFields := []string{
		name, description, category.Name,
		formatPrice(basePrice), "0", "", "", "", images,
	}

	if !opts.IncludeVariants {
		return [][]string{productFields}
	}

	variants := sampleVariants(attrs, basePrice)

	if opts.VariantFormat == VariantFormatJSON {
		row := append(append([]string{}, productFields...), encodeVariantsJSON(variants))
		return [][]string{row}
	}

	// Column format: one physical row per variant, product-level fields
	// blanked on continuation rows so the parser's carry-forward grouping
	// reassembles them
	rows := make([][]string, 0, len(variants))
	for i, variant := range variants {
		var row []string
		if i == 0 {
			row = append([]string{}, productFields...)
		} else {
			row = make([]string, len(productFields))
		}
		row = append(row,
			variant.Size,
			variant.Color,
			formatPrice(variant.Price),
			fmt.Sprintf("%d", variant.Quantity),
			"",
		)
		rows = append(rows, row)
	}
	return rows
}

func encodeVariantsJSON(variants []ParsedVariant) string {
	entries := make([]map[string]interface{}, 0, len(variants))
	for _, v := range variants {
		entry := map[string]interface{}{
			"price":    v.Price,
			"quantity": v.Quantity,
		}
		if v.Size != "" {
			entry["size"] = v.Size
		}
		if v.Color != "" {
			entry["color"] = v.Color
		}
		entries = append(entries, entry)
	}
	data, _ := json.Marshal(entries)
	return string(data)
}

func formatPrice(price float64) string {
	if price == math.Trunc(price) {
		return fmt.Sprintf("%d", int64(price))
	}
	return fmt.Sprintf("%.2f", price)
}

func buildInstructions(opts TemplateOptions) []string {
	instructions := []string{
		"Fill one row per product. product_name, category_name and base_price are required.",
		"category_name must match one of your store's categories (case-insensitive).",
		"Prices may include currency symbols and thousand separators (e.g. KSh 1,500.50).",
		"discount is a percentage between 0 and 100.",
		"promotion_start_date and promotion_end_date use YYYY-MM-DD; start must be before end.",
		"main_image_urls is a comma-separated list of image filenames included in your upload.",
	}
	if !opts.IncludeVariants {
		return instructions
	}
	if opts.VariantFormat == VariantFormatColumns {
		instructions = append(instructions,
			"Add extra variants as additional rows with an empty product_name; they attach to the product above.",
			"variant_price and variant_quantity must both be positive or the variant row is ignored.",
		)
	} else {
		instructions = append(instructions,
			`variants_json is a JSON array, e.g. [{"size":"M","color":"Blue","price":2000,"quantity":5}].`,
			"When variants_json is set it takes precedence over any variant_* columns.",
		)
	}
	return instructions
}

// CSV serializes the template as a CSV string. Values containing commas or
// quotes are quoted with embedded quotes doubled.
func (t *Template) CSV() string {
	var sb strings.Builder
	writer := csv.NewWriter(&sb)
	_ = writer.Write(t.Headers)
	for _, row := range t.SampleRows {
		_ = writer.Write(row)
	}
	writer.Flush()
	return sb.String()
}

// XLSX renders the template as an Excel workbook with a Products sheet and
// an Instructions sheet. Caller owns closing the file.
func (t *Template) XLSX() (*excelize.File, error) {
	f := excelize.NewFile()

	sheetName := "Products"
	f.SetSheetName("Sheet1", sheetName)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, header := range t.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)

		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, colName, colName, 22)
	}

	for rowIdx, row := range t.SampleRows {
		for colIdx, value := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	if _, err := f.NewSheet("Instructions"); err != nil {
		return nil, err
	}
	f.SetCellValue("Instructions", "A1", "Bulk Product Upload Instructions")
	for i, line := range t.Instructions {
		f.SetCellValue("Instructions", fmt.Sprintf("A%d", i+3), line)
	}
	f.SetColWidth("Instructions", "A", "A", 100)

	sheetIdx, _ := f.GetSheetIndex(sheetName)
	f.SetActiveSheet(sheetIdx)

	return f, nil
}
