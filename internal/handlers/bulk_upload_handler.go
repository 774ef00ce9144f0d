package handlers

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"catalog-service/internal/bulkupload"
	"catalog-service/internal/config"
	"catalog-service/internal/models"
	"catalog-service/internal/repository"
)

// MaxUploadFileSize caps the spreadsheet file, image files are capped per
// request by gin's multipart memory limit
const MaxUploadFileSize = 10 << 20 // 10 MB

// CatalogRepository is the data access surface the bulk upload flow needs
type CatalogRepository interface {
	bulkupload.RecordStore
	GetCategories(ctx context.Context) ([]models.Category, error)
	GetCategoryAttributes(ctx context.Context) (map[string]models.CategoryAttributes, error)
	GetCategoriesWithAttributes(ctx context.Context) ([]models.CategoryWithAttributes, error)
}

var _ CatalogRepository = (*repository.ProductsRepository)(nil)

type BulkUploadHandler struct {
	repo   CatalogRepository
	assets bulkupload.AssetStore
	cfg    *config.Config
	logger *logrus.Entry
}

func NewBulkUploadHandler(repo CatalogRepository, assets bulkupload.AssetStore, cfg *config.Config, logger *logrus.Entry) *BulkUploadHandler {
	return &BulkUploadHandler{
		repo:   repo,
		assets: assets,
		cfg:    cfg,
		logger: logger.WithField("component", "bulk-upload-handler"),
	}
}

// GetTemplate returns the bulk upload template in the requested format
// @Summary Download bulk upload template
// @Description Generate a CSV, XLSX or JSON upload template with per-category sample rows
// @Tags BulkUpload
// @Produce json
// @Param format query string false "Template format" Enums(csv, xlsx, json) default(csv)
// @Param categoryIds query string false "Comma-separated category IDs (empty = all)"
// @Param includeVariants query bool false "Include variant columns" default(true)
// @Param variantFormat query string false "Variant layout" Enums(json, columns) default(json)
// @Param maxExamples query int false "Maximum sample products" default(5)
// @Success 200 {object} bulkupload.Template
// @Failure 500 {object} models.ErrorResponse
// @Router /products/bulk-upload/template [get]
func (h *BulkUploadHandler) GetTemplate(c *gin.Context) {
	opts := bulkupload.DefaultTemplateOptions()
	if v := c.Query("includeVariants"); v != "" {
		opts.IncludeVariants = v == "true"
	}
	if v := c.Query("includeExamples"); v != "" {
		opts.IncludeExamples = v == "true"
	}
	if v := c.Query("variantFormat"); v == string(bulkupload.VariantFormatColumns) {
		opts.VariantFormat = bulkupload.VariantFormatColumns
	}
	if v := c.Query("maxExamples"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			opts.MaxExamples = parsed
		}
	}

	var selectedIDs []string
	if raw := c.Query("categoryIds"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				selectedIDs = append(selectedIDs, id)
			}
		}
	}

	categories, attributes, err := h.loadCatalog(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "CATALOG_UNAVAILABLE",
				Message: "Failed to load categories",
			},
		})
		return
	}

	template := bulkupload.GenerateTemplate(categories, attributes, selectedIDs, opts)

	switch c.DefaultQuery("format", "csv") {
	case "xlsx":
		h.writeXLSXTemplate(c, template)
	case "json":
		c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: template})
	default:
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", "attachment; filename=bulk_upload_template.csv")
		c.String(http.StatusOK, template.CSV())
	}
}

func (h *BulkUploadHandler) writeXLSXTemplate(c *gin.Context, template *bulkupload.Template) {
	f, err := template.XLSX()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "TEMPLATE_ERROR",
				Message: "Failed to generate Excel template",
			},
		})
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=bulk_upload_template.xlsx")
	if err := f.Write(c.Writer); err != nil {
		h.logger.Errorf("writing xlsx template: %v", err)
	}
}

// ValidateUpload parses the uploaded spreadsheet without creating anything
// @Summary Validate a bulk upload file
// @Description Parse and validate a CSV/XLSX file, returning products, errors and warnings
// @Tags BulkUpload
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV or XLSX file"
// @Success 200 {object} bulkupload.ParseResult
// @Failure 400 {object} models.ErrorResponse
// @Router /products/bulk-upload/validate [post]
func (h *BulkUploadHandler) ValidateUpload(c *gin.Context) {
	csvText, ok := h.readSpreadsheet(c)
	if !ok {
		return
	}

	categories, attributes, err := h.loadCatalog(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "CATALOG_UNAVAILABLE",
				Message: "Failed to load categories",
			},
		})
		return
	}

	parser := bulkupload.NewParser(categories, attributes)
	result := parser.ParseCSV(csvText)

	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: result})
}

// BulkUpload validates and executes a full bulk upload
// @Summary Execute a bulk product upload
// @Description Parse the spreadsheet, upload images and create products with variants
// @Tags BulkUpload
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV or XLSX file"
// @Param images formData file false "Image files or ZIP archives, repeatable"
// @Param batchSize formData int false "Products per batch" default(10)
// @Param concurrentUploads formData int false "Parallel image uploads" default(3)
// @Param retryAttempts formData int false "Upload retry attempts" default(3)
// @Success 200 {object} bulkupload.UploadResult
// @Failure 400 {object} models.ErrorResponse
// @Router /products/bulk-upload [post]
func (h *BulkUploadHandler) BulkUpload(c *gin.Context) {
	startTime := time.Now()

	csvText, ok := h.readSpreadsheet(c)
	if !ok {
		return
	}

	categories, attributes, err := h.loadCatalog(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "CATALOG_UNAVAILABLE",
				Message: "Failed to load categories",
			},
		})
		return
	}

	parser := bulkupload.NewParser(categories, attributes)
	parsed := parser.ParseCSV(csvText)
	if parsed.HasErrors() {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":  false,
			"errors":   parsed.Errors,
			"warnings": parsed.Warnings,
		})
		return
	}
	if len(parsed.Products) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "EMPTY_FILE",
				Message: "The file contains no products",
			},
		})
		return
	}

	assets, err := h.collectImages(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_IMAGES",
				Message: err.Error(),
			},
		})
		return
	}

	opts := h.processorOptions(c)
	processor := bulkupload.NewProcessor(h.assets, h.repo, opts, h.logger)
	session := bulkupload.NewSession(parsed.Products, assets)

	result := processor.Run(c.Request.Context(), session, newLogSink(h.logger, session.ID.String()))

	result.Warnings = append(result.Warnings, parseWarningsToUpload(parsed.Warnings)...)
	result.Summary = bulkupload.RebuildSummary(result)

	h.logger.WithFields(logrus.Fields{
		"session":    session.ID,
		"created":    len(result.Successful),
		"failed":     len(result.Failed),
		"durationMs": time.Since(startTime).Milliseconds(),
	}).Info("Bulk upload request completed")

	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	c.JSON(status, result)
}

// GetCategories lists active categories with their variant attributes
// @Summary Get categories
// @Description Get all active categories with size/color attribute metadata
// @Tags Categories
// @Produce json
// @Success 200 {object} models.SuccessResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /categories [get]
func (h *BulkUploadHandler) GetCategories(c *gin.Context) {
	categories, err := h.repo.GetCategoriesWithAttributes(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "CATALOG_UNAVAILABLE",
				Message: "Failed to load categories",
			},
		})
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: categories})
}

// readSpreadsheet extracts the uploaded file and normalizes it to CSV text.
// Writes the error response itself and returns ok=false on failure.
func (h *BulkUploadHandler) readSpreadsheet(c *gin.Context) (string, bool) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "FILE_REQUIRED",
				Message: "Please upload a CSV or Excel file",
			},
		})
		return "", false
	}
	defer file.Close()

	if header.Size > MaxUploadFileSize {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "FILE_TOO_LARGE",
				Message: fmt.Sprintf("File exceeds the %d MB limit", MaxUploadFileSize>>20),
			},
		})
		return "", false
	}

	filename := strings.ToLower(header.Filename)
	switch {
	case strings.HasSuffix(filename, ".csv"):
		data, err := io.ReadAll(file)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "PARSE_ERROR",
					Message: "Failed to read uploaded file",
				},
			})
			return "", false
		}
		return string(data), true
	case strings.HasSuffix(filename, ".xlsx"):
		csvText, err := xlsxToCSV(file)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "PARSE_ERROR",
					Message: err.Error(),
				},
			})
			return "", false
		}
		return csvText, true
	default:
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_FORMAT",
				Message: "Only CSV and XLSX files are supported",
			},
		})
		return "", false
	}
}

// xlsxToCSV flattens the first sheet of a workbook into CSV text so both
// formats flow through the same parser
func xlsxToCSV(r io.Reader) (string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("the workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return "", fmt.Errorf("failed to read Excel rows: %w", err)
	}

	var sb strings.Builder
	writer := csv.NewWriter(&sb)
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return "", err
		}
	}
	writer.Flush()
	return sb.String(), writer.Error()
}

// collectImages reads every uploaded image or ZIP archive into memory and
// resolves them to a filename keyed asset map
func (h *BulkUploadHandler) collectImages(c *gin.Context) (map[string]bulkupload.ImageAsset, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return map[string]bulkupload.ImageAsset{}, nil
	}

	headers := form.File["images"]
	if len(headers) == 0 {
		headers = form.File["images[]"]
	}

	files := make([]bulkupload.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		data, err := readMultipartFile(fh)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", fh.Filename, err)
		}
		files = append(files, bulkupload.UploadedFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	return bulkupload.ResolveImageFiles(files)
}

func readMultipartFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// processorOptions reads tuning knobs from the form, clamped to configured
// maximums
func (h *BulkUploadHandler) processorOptions(c *gin.Context) bulkupload.ProcessorOptions {
	opts := bulkupload.ProcessorOptions{
		BatchSize:            h.cfg.UploadBatchSize,
		MaxConcurrentUploads: h.cfg.ConcurrentUploads,
		RetryAttempts:        h.cfg.RetryAttempts,
	}

	if v := c.DefaultPostForm("batchSize", ""); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			opts.BatchSize = parsed
			if opts.BatchSize > h.cfg.MaxUploadBatchSize {
				opts.BatchSize = h.cfg.MaxUploadBatchSize
			}
		}
	}
	if v := c.DefaultPostForm("concurrentUploads", ""); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			opts.MaxConcurrentUploads = parsed
			if opts.MaxConcurrentUploads > h.cfg.MaxConcurrentUploads {
				opts.MaxConcurrentUploads = h.cfg.MaxConcurrentUploads
			}
		}
	}
	if v := c.DefaultPostForm("retryAttempts", ""); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			opts.RetryAttempts = parsed
			if opts.RetryAttempts > h.cfg.MaxRetryAttempts {
				opts.RetryAttempts = h.cfg.MaxRetryAttempts
			}
		}
	}

	return opts
}

// loadCatalog converts the stored catalog into the parser's read-only views
func (h *BulkUploadHandler) loadCatalog(c *gin.Context) ([]bulkupload.Category, map[string]bulkupload.CategoryAttributes, error) {
	ctx := c.Request.Context()

	storedCategories, err := h.repo.GetCategories(ctx)
	if err != nil {
		return nil, nil, err
	}
	storedAttrs, err := h.repo.GetCategoryAttributes(ctx)
	if err != nil {
		return nil, nil, err
	}

	categories := make([]bulkupload.Category, 0, len(storedCategories))
	for _, c := range storedCategories {
		categories = append(categories, bulkupload.Category{
			ID:   c.ID.String(),
			Name: c.Name,
		})
	}

	attributes := make(map[string]bulkupload.CategoryAttributes, len(storedAttrs))
	for id, a := range storedAttrs {
		view := bulkupload.CategoryAttributes{
			HasSizes:  a.HasSizes,
			HasColors: a.HasColors,
		}
		if a.AvailableSizes != nil {
			view.AvailableSizes = a.AvailableSizes.Strings()
		}
		if a.AvailableColors != nil {
			view.AvailableColors = a.AvailableColors.Strings()
		}
		attributes[id] = view
	}

	return categories, attributes, nil
}

// parseWarningsToUpload folds parse-time warnings into the upload result so
// the admin sees one consolidated report
func parseWarningsToUpload(warnings []bulkupload.Issue) []bulkupload.UploadWarning {
	out := make([]bulkupload.UploadWarning, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, bulkupload.UploadWarning{
			Type:    "validation",
			Context: fmt.Sprintf("row %d: %s", w.Row, w.Message),
		})
	}
	return out
}

// logSink reports processor progress through the structured log
type logSink struct {
	logger *logrus.Entry
}

func newLogSink(logger *logrus.Entry, sessionID string) *logSink {
	return &logSink{logger: logger.WithField("session", sessionID)}
}

func (s *logSink) OnProgress(current, total, percentage int, message string) {
	s.logger.WithFields(logrus.Fields{
		"current":    current,
		"total":      total,
		"percentage": percentage,
	}).Info(message)
}

func (s *logSink) OnStatus(message string) {
	s.logger.Info(message)
}
