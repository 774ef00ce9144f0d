package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"catalog-service/internal/models"
)

// Cache TTL constants
const (
	CategoryCacheTTL = 30 * time.Minute // Categories rarely change
)

const (
	categoriesCacheKey         = "categories:active"
	categoryAttributesCacheKey = "categories:attributes"
)

// ProductsRepository is the data access layer for the product catalog.
// Redis is optional; a nil client disables caching.
type ProductsRepository struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewProductsRepository(db *gorm.DB, redisClient *redis.Client) *ProductsRepository {
	return &ProductsRepository{db: db, redis: redisClient}
}

// GetCategories retrieves all active categories with caching
func (r *ProductsRepository) GetCategories(ctx context.Context) ([]models.Category, error) {
	if r.redis != nil {
		val, err := r.redis.Get(ctx, categoriesCacheKey).Result()
		if err == nil {
			var categories []models.Category
			if err := json.Unmarshal([]byte(val), &categories); err == nil {
				return categories, nil
			}
		}
	}

	var categories []models.Category
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("querying categories: %w", err)
	}

	if r.redis != nil {
		if data, err := json.Marshal(categories); err == nil {
			r.redis.Set(ctx, categoriesCacheKey, data, CategoryCacheTTL)
		}
	}

	return categories, nil
}

// GetCategoryAttributes retrieves attribute records for all categories,
// keyed by category ID. Categories without a record are absent from the map.
func (r *ProductsRepository) GetCategoryAttributes(ctx context.Context) (map[string]models.CategoryAttributes, error) {
	if r.redis != nil {
		val, err := r.redis.Get(ctx, categoryAttributesCacheKey).Result()
		if err == nil {
			var attrs map[string]models.CategoryAttributes
			if err := json.Unmarshal([]byte(val), &attrs); err == nil {
				return attrs, nil
			}
		}
	}

	var records []models.CategoryAttributes
	if err := r.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("querying category attributes: %w", err)
	}

	attrs := make(map[string]models.CategoryAttributes, len(records))
	for _, record := range records {
		attrs[record.CategoryID.String()] = record
	}

	if r.redis != nil {
		if data, err := json.Marshal(attrs); err == nil {
			r.redis.Set(ctx, categoryAttributesCacheKey, data, CategoryCacheTTL)
		}
	}

	return attrs, nil
}

// GetCategoriesWithAttributes bundles each active category with its
// attributes record for the categories listing endpoint
func (r *ProductsRepository) GetCategoriesWithAttributes(ctx context.Context) ([]models.CategoryWithAttributes, error) {
	categories, err := r.GetCategories(ctx)
	if err != nil {
		return nil, err
	}
	attrs, err := r.GetCategoryAttributes(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]models.CategoryWithAttributes, 0, len(categories))
	for _, category := range categories {
		entry := models.CategoryWithAttributes{Category: category}
		if a, ok := attrs[category.ID.String()]; ok {
			attrCopy := a
			entry.Attributes = &attrCopy
		}
		result = append(result, entry)
	}
	return result, nil
}

// InsertProduct creates a single product row
func (r *ProductsRepository) InsertProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// InsertProductImages creates gallery image rows in one statement
func (r *ProductsRepository) InsertProductImages(ctx context.Context, images []models.ProductImage) error {
	if len(images) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&images).Error
}

// InsertProductVariant creates a single variant row
func (r *ProductsRepository) InsertProductVariant(ctx context.Context, variant *models.ProductVariant) error {
	return r.db.WithContext(ctx).Create(variant).Error
}
