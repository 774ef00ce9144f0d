package bulkupload

import (
	"encoding/csv"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	menCategoryID         = "11111111-1111-1111-1111-111111111111"
	womenCategoryID       = "22222222-2222-2222-2222-222222222222"
	accessoriesCategoryID = "33333333-3333-3333-3333-333333333333"
)

func testCategories() []Category {
	return []Category{
		{ID: menCategoryID, Name: "Men"},
		{ID: womenCategoryID, Name: "Women"},
		{ID: accessoriesCategoryID, Name: "Accessories"},
	}
}

func testAttributes() map[string]CategoryAttributes {
	return map[string]CategoryAttributes{
		menCategoryID: {
			HasSizes:        true,
			HasColors:       true,
			AvailableSizes:  []string{"S", "M", "L", "XL"},
			AvailableColors: []string{"Blue", "Red", "Black"},
		},
		womenCategoryID: {
			HasSizes:        true,
			HasColors:       true,
			AvailableSizes:  []string{"XS", "S", "M", "L"},
			AvailableColors: []string{"White", "Pink", "Black"},
		},
		// Accessories deliberately has no attributes record
	}
}

func newTestParser() *Parser {
	return NewParser(testCategories(), testAttributes())
}

var testHeader = []string{
	"product_name", "description", "category_name", "base_price", "discount",
	"promotion_type", "promotion_start_date", "promotion_end_date",
	"main_image_urls", "variants_json", "variant_size", "variant_color",
	"variant_price", "variant_quantity", "variant_image_urls",
}

// buildCSV assembles CSV text with proper quoting of embedded commas/quotes
func buildCSV(rows ...[]string) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	_ = w.Write(testHeader)
	for _, row := range rows {
		padded := make([]string, len(testHeader))
		copy(padded, row)
		_ = w.Write(padded)
	}
	w.Flush()
	return sb.String()
}

func TestParseCSVEmptyInput(t *testing.T) {
	result := newTestParser().ParseCSV("   \n  ")

	assert.True(t, result.HasErrors())
	assert.Len(t, result.Errors, 1)
	assert.Equal(t, 0, result.Errors[0].Row)
	assert.Contains(t, result.Errors[0].Message, "empty")
	assert.Empty(t, result.Products)
}

func TestParseCSVMissingRequiredColumns(t *testing.T) {
	csvText := "description,discount\nsomething,10\n"
	result := newTestParser().ParseCSV(csvText)

	assert.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "product_name")
	assert.Contains(t, result.Errors[0].Message, "category_name")
	assert.Contains(t, result.Errors[0].Message, "base_price")
	assert.Empty(t, result.Products)
}

func TestParseCSVHeaderOnly(t *testing.T) {
	result := newTestParser().ParseCSV(buildCSV())

	assert.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "no data rows")
}

func TestParseCSVDecoratedHeaders(t *testing.T) {
	csvText := "Product_Name *,Category_Name *,Base_Price *\nShirt,Men,2000\n"
	result := newTestParser().ParseCSV(csvText)

	assert.Empty(t, result.Errors)
	assert.Len(t, result.Products, 1)
	assert.Equal(t, "Shirt", result.Products[0].Name)
}

func TestParseCSVJSONVariants(t *testing.T) {
	variantsJSON := `[{"size":"M","color":"Blue","price":2200,"quantity":5},{"size":"L","color":"Blue","price":2300,"quantity":3}]`
	csvText := buildCSV([]string{
		"Blue Cotton Shirt", "Classic fit", "Men", "KSh 2,000", "10",
		"", "", "", "shirt-front.jpg,shirt-back.jpg", variantsJSON,
	})

	result := newTestParser().ParseCSV(csvText)

	assert.Empty(t, result.Errors)
	assert.Len(t, result.Products, 1)

	product := result.Products[0]
	assert.Equal(t, "Blue Cotton Shirt", product.Name)
	assert.Equal(t, menCategoryID, product.CategoryID)
	assert.Equal(t, 2000.0, product.BasePrice)
	assert.Equal(t, 10.0, product.Discount)
	assert.Equal(t, []string{"shirt-front.jpg", "shirt-back.jpg"}, product.MainImageURLs)
	assert.Equal(t, 2, product.Row)

	assert.Len(t, product.Variants, 2)
	assert.Equal(t, "M", product.Variants[0].Size)
	assert.Equal(t, 2200.0, product.Variants[0].Price)
	assert.Equal(t, 5, product.Variants[0].Quantity)
	assert.Equal(t, 1, product.Variants[1].Index)
}

func TestParseCSVColumnVariantGrouping(t *testing.T) {
	csvText := buildCSV(
		[]string{"Denim Jeans", "Slim fit", "Men", "3500", "", "", "", "", "", "", "M", "Blue", "3500", "4", ""},
		[]string{"", "", "", "", "", "", "", "", "", "", "L", "Blue", "3600", "2", ""},
		[]string{"", "", "", "", "", "", "", "", "", "", "XL", "Black", "3700", "1", ""},
	)

	result := newTestParser().ParseCSV(csvText)

	assert.Empty(t, result.Errors)
	assert.Len(t, result.Products, 1)

	product := result.Products[0]
	assert.Len(t, product.Variants, 3)
	assert.Equal(t, "M", product.Variants[0].Size)
	assert.Equal(t, "L", product.Variants[1].Size)
	assert.Equal(t, "XL", product.Variants[2].Size)
	assert.Equal(t, 2, product.Variants[2].Index)
}

func TestParseCSVMultipleProducts(t *testing.T) {
	csvText := buildCSV(
		[]string{"Shirt A", "", "Men", "2000", "", "", "", "", "", "", "M", "Blue", "2000", "5", ""},
		[]string{"", "", "", "", "", "", "", "", "", "", "L", "Blue", "2100", "3", ""},
		[]string{"Dress B", "", "Women", "2800", "", "", "", "", "", "", "S", "Pink", "2800", "2", ""},
	)

	result := newTestParser().ParseCSV(csvText)

	assert.Empty(t, result.Errors)
	assert.Len(t, result.Products, 2)
	assert.Len(t, result.Products[0].Variants, 2)
	assert.Len(t, result.Products[1].Variants, 1)
	assert.Equal(t, womenCategoryID, result.Products[1].CategoryID)
}

func TestParseCSVOrphanVariantRow(t *testing.T) {
	csvText := buildCSV(
		[]string{"", "", "", "", "", "", "", "", "", "", "M", "Blue", "2000", "5", ""},
		[]string{"Shirt", "", "Men", "2000", "", "", "", "", "", "", "L", "Blue", "2000", "5", ""},
	)

	result := newTestParser().ParseCSV(csvText)

	assert.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Row)
	assert.Contains(t, result.Errors[0].Message, "no preceding product")
	// The valid product still parses
	assert.Len(t, result.Products, 1)
}

func TestParseCSVVariantsJSONPrecedence(t *testing.T) {
	// Both formats present: JSON wins, column cells ignored
	csvText := buildCSV([]string{
		"Shirt", "", "Men", "2000", "", "", "", "", "",
		`[{"size":"S","price":1900,"quantity":2}]`,
		"XL", "Black", "9999", "99", "",
	})

	result := newTestParser().ParseCSV(csvText)

	assert.Len(t, result.Products, 1)
	variants := result.Products[0].Variants
	assert.Len(t, variants, 1)
	assert.Equal(t, "S", variants[0].Size)
	assert.Equal(t, 1900.0, variants[0].Price)
}

func TestParseCSVInvalidVariantsJSON(t *testing.T) {
	csvText := buildCSV([]string{
		"Shirt", "", "Men", "2000", "", "", "", "", "", "not json at all",
	})

	result := newTestParser().ParseCSV(csvText)

	assert.Len(t, result.Products, 1)
	found := false
	for _, e := range result.Errors {
		if strings.Contains(e.Message, "Invalid variants JSON") {
			found = true
		}
	}
	assert.True(t, found)
	// Falls back to the synthesized default variant
	assert.Len(t, result.Products[0].Variants, 1)
	assert.Equal(t, 2000.0, result.Products[0].Variants[0].Price)
	assert.Equal(t, 1, result.Products[0].Variants[0].Quantity)
}

func TestParseCSVJSONVariantValidation(t *testing.T) {
	// Zero price and negative quantity are reported and those variants removed;
	// the valid variant survives
	variantsJSON := `[{"size":"S","price":0,"quantity":5},{"size":"M","price":2000,"quantity":-1},{"size":"L","price":2100,"quantity":3}]`
	csvText := buildCSV([]string{"Shirt", "", "Men", "2000", "", "", "", "", "", variantsJSON})

	result := newTestParser().ParseCSV(csvText)

	assert.Len(t, result.Products, 1)
	assert.Len(t, result.Products[0].Variants, 1)
	assert.Equal(t, "L", result.Products[0].Variants[0].Size)
	assert.Len(t, result.Errors, 2)
}

func TestParseCSVColumnVariantSilentFilter(t *testing.T) {
	// Column-format rows with non-positive price or quantity vanish without
	// any reported error
	csvText := buildCSV(
		[]string{"Shirt", "", "Men", "2000", "", "", "", "", "", "", "M", "Blue", "0", "5", ""},
		[]string{"", "", "", "", "", "", "", "", "", "", "L", "Blue", "2000", "0", ""},
		[]string{"", "", "", "", "", "", "", "", "", "", "XL", "Blue", "2100", "2", ""},
	)

	result := newTestParser().ParseCSV(csvText)

	assert.Empty(t, result.Errors)
	assert.Len(t, result.Products, 1)
	assert.Len(t, result.Products[0].Variants, 1)
	assert.Equal(t, "XL", result.Products[0].Variants[0].Size)
	assert.Equal(t, 0, result.Products[0].Variants[0].Index)
}

func TestParseCSVDefaultVariantSynthesis(t *testing.T) {
	csvText := buildCSV([]string{"Leather Belt", "", "Accessories", "1200"})

	result := newTestParser().ParseCSV(csvText)

	assert.Empty(t, result.Errors)
	assert.Len(t, result.Products, 1)

	variants := result.Products[0].Variants
	assert.Len(t, variants, 1)
	assert.Equal(t, 1200.0, variants[0].Price)
	assert.Equal(t, 1, variants[0].Quantity)
	assert.Empty(t, variants[0].Size)
	assert.Empty(t, variants[0].Color)
}

func TestParseCSVMissingAttributesWarning(t *testing.T) {
	csvText := buildCSV([]string{"Leather Belt", "", "Accessories", "1200"})

	result := newTestParser().ParseCSV(csvText)

	assert.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0].Message, "No category attributes found")
	assert.Equal(t, SeverityWarning, result.Warnings[0].Severity)
}

func TestParseCSVSizeColorMismatchWarnings(t *testing.T) {
	variantsJSON := `[{"size":"XXXL","color":"Chartreuse","price":2000,"quantity":1}]`
	csvText := buildCSV([]string{"Shirt", "", "Men", "2000", "", "", "", "", "", variantsJSON})

	result := newTestParser().ParseCSV(csvText)

	// Mismatches are warnings, never errors, and the variant is kept
	assert.Empty(t, result.Errors)
	assert.Len(t, result.Warnings, 2)
	assert.Len(t, result.Products[0].Variants, 1)
}

func TestParseCSVCategoryCaseInsensitive(t *testing.T) {
	csvText := buildCSV([]string{"Shirt", "", "mEn", "2000"})

	result := newTestParser().ParseCSV(csvText)

	assert.Empty(t, result.Errors)
	assert.Equal(t, menCategoryID, result.Products[0].CategoryID)
}

func TestParseCSVUnknownCategory(t *testing.T) {
	csvText := buildCSV([]string{"Shirt", "", "Electronics", "2000"})

	result := newTestParser().ParseCSV(csvText)

	assert.Empty(t, result.Products)
	assert.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, `"Electronics" not found`)
}

func TestParseCSVRequiredFieldErrors(t *testing.T) {
	csvText := buildCSV(
		[]string{"", "desc only", "Men", "2000", "", "", "", "", "", "", "M", "", "2000", "1", ""},
		[]string{"Shirt", "", "", "2000"},
		[]string{"Shirt", "", "Men", "free"},
	)

	result := newTestParser().ParseCSV(csvText)

	assert.Empty(t, result.Products)
	// Row 2 is an orphan variant row (empty product_name), rows 3 and 4 fail
	// category and price validation respectively
	assert.Equal(t, 3, len(result.Errors))
}

func TestParseCSVPromotionDates(t *testing.T) {
	csvText := buildCSV([]string{
		"Shirt", "", "Men", "2000", "", "flash_sale", "2026-09-01", "2026-09-15",
	})

	result := newTestParser().ParseCSV(csvText)

	assert.Empty(t, result.Errors)
	product := result.Products[0]
	assert.Equal(t, "flash_sale", product.PromotionType)
	assert.Equal(t, "2026-09-01T00:00:00Z", product.PromotionStartDate)
	assert.Equal(t, "2026-09-15T00:00:00Z", product.PromotionEndDate)
}

func TestParseCSVPromotionDateOrderError(t *testing.T) {
	csvText := buildCSV([]string{
		"Shirt", "", "Men", "2000", "", "flash_sale", "2026-09-15", "2026-09-01",
	})

	result := newTestParser().ParseCSV(csvText)

	assert.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "before end date")
	// The product itself is kept
	assert.Len(t, result.Products, 1)
}

func TestParseCSVInvalidPromotionDateBecomesEmpty(t *testing.T) {
	csvText := buildCSV([]string{
		"Shirt", "", "Men", "2000", "", "", "not-a-date", "soon",
	})

	result := newTestParser().ParseCSV(csvText)

	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Products[0].PromotionStartDate)
	assert.Empty(t, result.Products[0].PromotionEndDate)
}

func TestParseCSVRowNumbers(t *testing.T) {
	csvText := buildCSV(
		[]string{"First", "", "Men", "2000"},
		[]string{"Second", "", "Men", "2000"},
	)

	result := newTestParser().ParseCSV(csvText)

	assert.Equal(t, 2, result.Products[0].Row)
	assert.Equal(t, 3, result.Products[1].Row)
}

func TestParseCSVSkipsBlankRows(t *testing.T) {
	csvText := buildCSV(
		[]string{"First", "", "Men", "2000"},
		make([]string, len(testHeader)),
		[]string{"Second", "", "Men", "2000"},
	)

	result := newTestParser().ParseCSV(csvText)

	assert.Empty(t, result.Errors)
	assert.Len(t, result.Products, 2)
	// The blank physical row still advances the row counter
	assert.Equal(t, 4, result.Products[1].Row)
}

func TestParseCSVManyProducts(t *testing.T) {
	rows := make([][]string, 0, 25)
	for i := 0; i < 25; i++ {
		rows = append(rows, []string{
			fmt.Sprintf("Product %02d", i), "", "Men", "1500", "", "", "", "", "", "", "M", "Blue", "1500", "3", "",
		})
	}

	result := newTestParser().ParseCSV(buildCSV(rows...))

	assert.Empty(t, result.Errors)
	assert.Len(t, result.Products, 25)
	for i, product := range result.Products {
		assert.Equal(t, i+2, product.Row)
		assert.Len(t, product.Variants, 1)
	}
}

func TestSanitizePrice(t *testing.T) {
	cases := []struct {
		input    string
		expected float64
	}{
		{"KSh 1,500.50", 1500.50},
		{"2500", 2500},
		{"$ 99.99", 99.99},
		{"abc", 0},
		{"", 0},
		{"-5", 0},
		{"0", 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, sanitizePrice(tc.input), "input %q", tc.input)
	}
}

func TestSanitizeDiscount(t *testing.T) {
	cases := []struct {
		input    string
		expected float64
	}{
		{"10", 10},
		{"150%", 100},
		{"-5", 0},
		{"invalid", 0},
		{"25.5", 25.5},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, sanitizeDiscount(tc.input), "input %q", tc.input)
	}
}

func TestSanitizeQuantity(t *testing.T) {
	cases := []struct {
		input    string
		expected int
	}{
		{"10", 10},
		{"1,000", 1000},
		{"5 pcs", 5},
		{"abc", 0},
		{"", 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, sanitizeQuantity(tc.input), "input %q", tc.input)
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		input    string
		expected string
	}{
		{"2026-01-15", "2026-01-15T00:00:00Z"},
		{"2026/01/15", "2026-01-15T00:00:00Z"},
		{"15/01/2026", "2026-01-15T00:00:00Z"},
		{"2026-01-15T10:30:00Z", "2026-01-15T10:30:00Z"},
		{"garbage", ""},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, parseDate(tc.input), "input %q", tc.input)
	}
}

func TestSplitImageList(t *testing.T) {
	assert.Equal(t, []string{"a.jpg", "b.png"}, splitImageList(" a.jpg , b.png "))
	assert.Nil(t, splitImageList("  "))
	assert.Nil(t, splitImageList(",,,"))
}
