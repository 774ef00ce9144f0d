package bulkupload

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTemplateJSONFormat(t *testing.T) {
	template := GenerateTemplate(testCategories(), testAttributes(), nil, DefaultTemplateOptions())

	require.NotNil(t, template)
	assert.Equal(t, len(baseHeaders)+1, len(template.Headers))
	assert.Equal(t, "variants_json", template.Headers[len(template.Headers)-1])
	// One sample row per category in JSON format
	assert.Len(t, template.SampleRows, 3)
	assert.NotEmpty(t, template.Instructions)
}

func TestGenerateTemplateColumnFormat(t *testing.T) {
	opts := DefaultTemplateOptions()
	opts.VariantFormat = VariantFormatColumns

	template := GenerateTemplate(testCategories(), testAttributes(), []string{menCategoryID}, opts)

	assert.Equal(t, len(baseHeaders)+len(variantColumnHeaders), len(template.Headers))
	assert.Contains(t, template.Headers, "variant_size")

	// Men has both axes: 2 sizes x 2 colors = 4 physical rows, continuation
	// rows blank the product columns
	require.Len(t, template.SampleRows, 4)
	assert.NotEmpty(t, template.SampleRows[0][0])
	for _, row := range template.SampleRows[1:] {
		assert.Empty(t, row[0])
	}
}

func TestGenerateTemplateWithoutVariants(t *testing.T) {
	opts := DefaultTemplateOptions()
	opts.IncludeVariants = false

	template := GenerateTemplate(testCategories(), testAttributes(), nil, opts)

	assert.Equal(t, len(baseHeaders), len(template.Headers))
	for _, row := range template.SampleRows {
		assert.Len(t, row, len(baseHeaders))
	}
}

func TestGenerateTemplateMaxExamples(t *testing.T) {
	opts := DefaultTemplateOptions()
	opts.MaxExamples = 1

	template := GenerateTemplate(testCategories(), testAttributes(), nil, opts)

	assert.Len(t, template.SampleRows, 1)
}

func TestGenerateTemplateUnknownSelection(t *testing.T) {
	template := GenerateTemplate(testCategories(), testAttributes(), []string{"no-such-id"}, DefaultTemplateOptions())

	assert.Empty(t, template.SampleRows)
	assert.NotEmpty(t, template.Headers)
}

func TestGenerateTemplateSingleAxisCategory(t *testing.T) {
	attrs := map[string]CategoryAttributes{
		accessoriesCategoryID: {
			HasColors:       true,
			AvailableColors: []string{"Brown", "Black", "Tan", "Navy"},
		},
	}
	opts := DefaultTemplateOptions()
	opts.VariantFormat = VariantFormatColumns

	template := GenerateTemplate(testCategories(), attrs, []string{accessoriesCategoryID}, opts)

	// Single axis caps at 3 values
	assert.Len(t, template.SampleRows, 3)
}

func TestTemplateCSVEscaping(t *testing.T) {
	template := GenerateTemplate(testCategories(), testAttributes(), []string{menCategoryID}, DefaultTemplateOptions())

	csvText := template.CSV()
	lines := strings.Split(strings.TrimSpace(csvText), "\n")
	assert.Equal(t, strings.Join(template.Headers, ","), lines[0])
	// The variants_json cell contains commas and quotes, so it must be quoted
	assert.Contains(t, csvText, `"[{`)
}

func TestTemplateRoundTrip(t *testing.T) {
	// A generated template must parse cleanly through the same pipeline the
	// admin upload takes
	template := GenerateTemplate(testCategories(), testAttributes(), nil, DefaultTemplateOptions())

	result := newTestParser().ParseCSV(template.CSV())

	assert.Empty(t, result.Errors)
	assert.Len(t, result.Products, 3)
	for _, product := range result.Products {
		assert.NotEmpty(t, product.CategoryID)
		assert.Greater(t, product.BasePrice, 0.0)
		assert.NotEmpty(t, product.Variants)
	}
}

func TestTemplateRoundTripColumnFormat(t *testing.T) {
	opts := DefaultTemplateOptions()
	opts.VariantFormat = VariantFormatColumns

	template := GenerateTemplate(testCategories(), testAttributes(), []string{menCategoryID}, opts)
	result := newTestParser().ParseCSV(template.CSV())

	assert.Empty(t, result.Errors)
	require.Len(t, result.Products, 1)
	assert.Len(t, result.Products[0].Variants, 4)
}

func TestTemplateXLSX(t *testing.T) {
	template := GenerateTemplate(testCategories(), testAttributes(), nil, DefaultTemplateOptions())

	f, err := template.XLSX()
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Products")
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, template.Headers, rows[0])
	assert.Len(t, rows, len(template.SampleRows)+1)

	instructions, err := f.GetRows("Instructions")
	require.NoError(t, err)
	assert.NotEmpty(t, instructions)
}

func TestSizeAdjustedPrice(t *testing.T) {
	assert.Equal(t, 2250.0, sizeAdjustedPrice(2500, "xs"))
	assert.Equal(t, 2500.0, sizeAdjustedPrice(2500, "M"))
	assert.Equal(t, 2750.0, sizeAdjustedPrice(2500, "XL"))
	// Unknown sizes keep the base price
	assert.Equal(t, 2500.0, sizeAdjustedPrice(2500, "38"))
}
