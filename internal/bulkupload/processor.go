package bulkupload

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"catalog-service/internal/models"
)

// AssetStore uploads a binary asset and returns its public URL
type AssetStore interface {
	Upload(ctx context.Context, filename string, data []byte, contentType string) (string, error)
}

// RecordStore is the backing store the processor writes products into. Each
// insert may fail independently; no multi-row transaction is assumed.
type RecordStore interface {
	InsertProduct(ctx context.Context, product *models.Product) error
	InsertProductImages(ctx context.Context, images []models.ProductImage) error
	InsertProductVariant(ctx context.Context, variant *models.ProductVariant) error
}

// ProgressSink receives coarse-grained progress and status updates, once per
// batch or upload group rather than per item
type ProgressSink interface {
	OnProgress(current, total, percentage int, message string)
	OnStatus(message string)
}

type nopSink struct{}

func (nopSink) OnProgress(int, int, int, string) {}
func (nopSink) OnStatus(string)                  {}

// ProcessorOptions tune batching and retry behavior
type ProcessorOptions struct {
	BatchSize            int
	MaxConcurrentUploads int
	RetryAttempts        int
	RetryDelay           time.Duration
}

// DefaultProcessorOptions returns the defaults used when a zero value is
// supplied for a field
func DefaultProcessorOptions() ProcessorOptions {
	return ProcessorOptions{
		BatchSize:            10,
		MaxConcurrentUploads: 3,
		RetryAttempts:        3,
		RetryDelay:           time.Second,
	}
}

func (o ProcessorOptions) withDefaults() ProcessorOptions {
	defaults := DefaultProcessorOptions()
	if o.BatchSize <= 0 {
		o.BatchSize = defaults.BatchSize
	}
	if o.MaxConcurrentUploads <= 0 {
		o.MaxConcurrentUploads = defaults.MaxConcurrentUploads
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = defaults.RetryAttempts
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = defaults.RetryDelay
	}
	return o
}

// Session is the mutable state of one upload run. Cancellation is a
// cooperative flag polled between batches; an in-flight item may still
// complete after Cancel is called.
type Session struct {
	ID        uuid.UUID
	Products  []ParsedProduct
	Assets    map[string]ImageAsset
	cancelled atomic.Bool
}

// NewSession creates a session over parsed products and resolved image assets
func NewSession(products []ParsedProduct, assets map[string]ImageAsset) *Session {
	if assets == nil {
		assets = make(map[string]ImageAsset)
	}
	return &Session{
		ID:       uuid.New(),
		Products: products,
		Assets:   assets,
	}
}

// Cancel requests the session to stop before its next batch
func (s *Session) Cancel() {
	s.cancelled.Store(true)
}

// Cancelled reports whether cancellation has been requested
func (s *Session) Cancelled() bool {
	return s.cancelled.Load()
}

// SuccessfulProduct records one fully created product
type SuccessfulProduct struct {
	ProductName  string `json:"productName"`
	VariantCount int    `json:"variantCount"`
	Row          int    `json:"row"`
}

// FailedProduct records one product that could not be created
type FailedProduct struct {
	ProductName string `json:"productName"`
	Row         int    `json:"row"`
	Error       string `json:"error"`
}

// UploadWarning is a non-blocking problem surfaced for operator visibility
type UploadWarning struct {
	Type    string `json:"type"`
	Context string `json:"context"`
}

const (
	WarningImageUploadFailed   = "image_upload_failed"
	WarningGalleryInsertFailed = "gallery_insert_failed"
)

// UploadSummary is the derived, display-ready view of an upload result
type UploadSummary struct {
	SuccessCount int      `json:"successCount"`
	FailCount    int      `json:"failCount"`
	SuccessRate  int      `json:"successRate"`
	Details      []string `json:"details"`
}

// UploadResult is the final outcome of one bulk upload session. Per-item
// failures never surface as an error from Run; only a catastrophic
// orchestration failure sets Success=false with Error populated.
type UploadResult struct {
	Success        bool                `json:"success"`
	Error          string              `json:"error,omitempty"`
	Successful     []SuccessfulProduct `json:"successful"`
	Failed         []FailedProduct     `json:"failed"`
	Warnings       []UploadWarning     `json:"warnings"`
	TotalProcessed int                 `json:"totalProcessed"`
	TotalProducts  int                 `json:"totalProducts"`
	TotalVariants  int                 `json:"totalVariants"`
	TotalImages    int                 `json:"totalImages"`
	Summary        UploadSummary       `json:"summary"`
}

// Processor drives the two-phase bulk upload: image uploads first, then
// batched product and variant creation
type Processor struct {
	assets  AssetStore
	records RecordStore
	opts    ProcessorOptions
	logger  *logrus.Entry
}

// NewProcessor creates a processor over the given collaborators
func NewProcessor(assets AssetStore, records RecordStore, opts ProcessorOptions, logger *logrus.Entry) *Processor {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Processor{
		assets:  assets,
		records: records,
		opts:    opts.withDefaults(),
		logger:  logger.WithField("component", "bulk-processor"),
	}
}

// Run executes the session. It always returns a result; it does not return
// an error for per-item failures.
func (p *Processor) Run(ctx context.Context, session *Session, sink ProgressSink) (result *UploadResult) {
	if sink == nil {
		sink = nopSink{}
	}

	result = &UploadResult{
		Successful:    make([]SuccessfulProduct, 0),
		Failed:        make([]FailedProduct, 0),
		Warnings:      make([]UploadWarning, 0),
		TotalProducts: len(session.Products),
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.WithField("session", session.ID).Errorf("bulk upload panicked: %v", r)
			result.Success = false
			result.Error = fmt.Sprintf("bulk upload failed: %v", r)
			sink.OnStatus("Upload failed")
		}
	}()

	log := p.logger.WithFields(logrus.Fields{
		"session":  session.ID,
		"products": len(session.Products),
		"images":   len(session.Assets),
	})
	log.Info("Starting bulk upload")

	sink.OnStatus("Uploading images...")
	urlMap := p.uploadImages(ctx, session, sink, result)
	result.TotalImages = len(urlMap)

	sink.OnStatus("Creating products...")
	p.createProducts(ctx, session, sink, urlMap, result)

	result.Success = len(result.Failed) == 0 || len(result.Successful) > 0
	result.Summary = buildSummary(result)

	if session.Cancelled() {
		sink.OnStatus("Upload cancelled")
	} else {
		sink.OnStatus("Upload complete")
	}
	log.WithFields(logrus.Fields{
		"created": len(result.Successful),
		"failed":  len(result.Failed),
	}).Info("Bulk upload finished")

	return result
}

// uploadImages is phase 1: fixed-size groups of concurrent uploads, each
// wrapped in the retry helper. A file failing all retries becomes a warning
// and is simply absent from the returned URL map.
func (p *Processor) uploadImages(ctx context.Context, session *Session, sink ProgressSink, result *UploadResult) map[string]string {
	urlMap := make(map[string]string, len(session.Assets))
	if len(session.Assets) == 0 {
		return urlMap
	}

	names := make([]string, 0, len(session.Assets))
	for name := range session.Assets {
		names = append(names, name)
	}
	sort.Strings(names)

	total := len(names)
	groupSize := p.opts.MaxConcurrentUploads
	var mu sync.Mutex

	for start := 0; start < total; start += groupSize {
		if session.Cancelled() {
			break
		}

		end := start + groupSize
		if end > total {
			end = total
		}

		var wg sync.WaitGroup
		for _, name := range names[start:end] {
			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				asset := session.Assets[name]
				url, err := p.uploadWithRetry(ctx, asset)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					result.Warnings = append(result.Warnings, UploadWarning{
						Type:    WarningImageUploadFailed,
						Context: fmt.Sprintf("%s: %v", name, err),
					})
					return
				}
				urlMap[name] = url
			}(name)
		}
		wg.Wait()

		current := end
		if reported := ((start / groupSize) + 1) * groupSize; reported < current {
			current = reported
		}
		if current > total {
			current = total
		}
		sink.OnProgress(current, total, percentage(current, total),
			fmt.Sprintf("Uploaded %d of %d images", current, total))
	}

	return urlMap
}

// uploadWithRetry retries a failed upload with linear backoff
// (RetryDelay x attempt number)
func (p *Processor) uploadWithRetry(ctx context.Context, asset ImageAsset) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= p.opts.RetryAttempts; attempt++ {
		url, err := p.assets.Upload(ctx, asset.Name, asset.Data, asset.ContentType)
		if err == nil {
			return url, nil
		}
		lastErr = err
		p.logger.WithField("file", asset.Name).
			Warnf("upload attempt %d/%d failed: %v", attempt, p.opts.RetryAttempts, err)

		if attempt < p.opts.RetryAttempts {
			select {
			case <-time.After(p.opts.RetryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	return "", lastErr
}

// createProducts is phase 2: sequential batches, strictly sequential
// products within a batch. A product failure is recorded and the batch
// continues.
func (p *Processor) createProducts(ctx context.Context, session *Session, sink ProgressSink, urlMap map[string]string, result *UploadResult) {
	total := len(session.Products)
	batchSize := p.opts.BatchSize

	for start := 0; start < total; start += batchSize {
		if session.Cancelled() {
			break
		}

		sink.OnProgress(start, total, percentage(start, total),
			fmt.Sprintf("Creating products %d of %d", start, total))

		end := start + batchSize
		if end > total {
			end = total
		}

		for _, product := range session.Products[start:end] {
			variantCount, err := p.processProduct(ctx, product, urlMap, result)
			result.TotalProcessed++
			if err != nil {
				p.logger.WithField("product", product.Name).
					Warnf("product creation failed: %v", err)
				result.Failed = append(result.Failed, FailedProduct{
					ProductName: product.Name,
					Row:         product.Row,
					Error:       err.Error(),
				})
				continue
			}
			result.TotalVariants += variantCount
			result.Successful = append(result.Successful, SuccessfulProduct{
				ProductName:  product.Name,
				VariantCount: variantCount,
				Row:          product.Row,
			})
		}
	}

	sink.OnProgress(result.TotalProcessed, total, percentage(result.TotalProcessed, total),
		fmt.Sprintf("Processed %d of %d products", result.TotalProcessed, total))
}

// resolveAssetURLs maps CSV filename tokens to uploaded URLs. Unresolved
// filenames are dropped silently, by design: a missing image never blocks
// product creation.
func resolveAssetURLs(filenames []string, urlMap map[string]string) []string {
	urls := make([]string, 0, len(filenames))
	for _, name := range filenames {
		if url, ok := urlMap[name]; ok {
			urls = append(urls, url)
		}
	}
	return urls
}

// processProduct creates one product with its gallery and variants. A
// variant insert failure aborts the remaining variants and fails the whole
// product; a gallery insert failure only downgrades to a warning.
func (p *Processor) processProduct(ctx context.Context, parsed ParsedProduct, urlMap map[string]string, result *UploadResult) (int, error) {
	categoryID, err := uuid.Parse(parsed.CategoryID)
	if err != nil {
		return 0, fmt.Errorf("invalid category id %q: %w", parsed.CategoryID, err)
	}

	product := &models.Product{
		ID:          uuid.New(),
		CategoryID:  categoryID,
		Name:        parsed.Name,
		Description: parsed.Description,
		BasePrice:   parsed.BasePrice,
		Discount:    parsed.Discount,
		Status:      models.ProductStatusActive,
	}
	if parsed.PromotionType != "" {
		product.PromotionType = &parsed.PromotionType
	}
	if parsed.PromotionStartDate != "" {
		product.PromotionStartDate = &parsed.PromotionStartDate
	}
	if parsed.PromotionEndDate != "" {
		product.PromotionEndDate = &parsed.PromotionEndDate
	}

	mainURLs := resolveAssetURLs(parsed.MainImageURLs, urlMap)
	if len(mainURLs) > 0 {
		product.ImageURL = &mainURLs[0]
	}

	if err := p.records.InsertProduct(ctx, product); err != nil {
		return 0, fmt.Errorf("inserting product: %w", err)
	}

	if len(mainURLs) > 1 {
		gallery := make([]models.ProductImage, 0, len(mainURLs)-1)
		for i, url := range mainURLs[1:] {
			gallery = append(gallery, models.ProductImage{
				ProductID: product.ID,
				URL:       url,
				SortOrder: i,
			})
		}
		if err := p.records.InsertProductImages(ctx, gallery); err != nil {
			result.Warnings = append(result.Warnings, UploadWarning{
				Type:    WarningGalleryInsertFailed,
				Context: fmt.Sprintf("%s: %v", parsed.Name, err),
			})
		}
	}

	created := 0
	for _, parsedVariant := range parsed.Variants {
		variant := &models.ProductVariant{
			ProductID: product.ID,
			Price:     parsedVariant.Price,
			Quantity:  parsedVariant.Quantity,
		}
		if parsedVariant.Size != "" {
			size := parsedVariant.Size
			variant.Size = &size
		}
		if parsedVariant.Color != "" {
			color := parsedVariant.Color
			variant.Color = &color
		}
		if urls := resolveAssetURLs(parsedVariant.ImageURLs, urlMap); len(urls) > 0 {
			images := models.StringArray(urls)
			variant.Images = &images
		}

		if err := p.records.InsertProductVariant(ctx, variant); err != nil {
			return created, fmt.Errorf("inserting variant %d: %w", parsedVariant.Index+1, err)
		}
		created++
	}

	return created, nil
}

func percentage(current, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(current) / float64(total) * 100))
}

// RebuildSummary recomputes the summary after a caller amends the result,
// e.g. folding in parse-time warnings
func RebuildSummary(result *UploadResult) UploadSummary {
	return buildSummary(result)
}

func buildSummary(result *UploadResult) UploadSummary {
	summary := UploadSummary{
		SuccessCount: len(result.Successful),
		FailCount:    len(result.Failed),
	}
	if result.TotalProducts > 0 {
		summary.SuccessRate = int(math.Round(float64(summary.SuccessCount) / float64(result.TotalProducts) * 100))
	}

	details := make([]string, 0, len(result.Successful)+len(result.Failed)+len(result.Warnings))
	for _, s := range result.Successful {
		details = append(details, fmt.Sprintf("Created %q with %d variant(s) (row %d)", s.ProductName, s.VariantCount, s.Row))
	}
	for _, f := range result.Failed {
		details = append(details, fmt.Sprintf("Failed %q (row %d): %s", f.ProductName, f.Row, f.Error))
	}
	for _, w := range result.Warnings {
		details = append(details, fmt.Sprintf("Warning [%s]: %s", w.Type, w.Context))
	}
	summary.Details = details
	return summary
}
