package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductStatus represents the status of a product
type ProductStatus string

const (
	ProductStatusDraft    ProductStatus = "DRAFT"
	ProductStatusActive   ProductStatus = "ACTIVE"
	ProductStatusInactive ProductStatus = "INACTIVE"
	ProductStatusArchived ProductStatus = "ARCHIVED"
)

// JSON type for PostgreSQL JSONB (object/map)
type JSON map[string]interface{}

func (j JSON) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSON)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// JSONArray type for PostgreSQL JSONB (array)
type JSONArray []interface{}

func (j JSONArray) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONArray) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSONArray, 0)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// StringArray converts a slice of strings into a JSONArray
func StringArray(values []string) JSONArray {
	arr := make(JSONArray, 0, len(values))
	for _, v := range values {
		arr = append(arr, v)
	}
	return arr
}

// Strings converts a JSONArray back into a slice of strings, skipping
// non-string entries
func (j JSONArray) Strings() []string {
	out := make([]string, 0, len(j))
	for _, v := range j {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Product represents a catalog product
type Product struct {
	ID                 uuid.UUID         `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CategoryID         uuid.UUID         `json:"categoryId" gorm:"type:uuid;not null;index"`
	Name               string            `json:"name" gorm:"not null"`
	Description        string            `json:"description"`
	BasePrice          float64           `json:"basePrice" gorm:"not null"`
	Discount           float64           `json:"discount" gorm:"default:0"`
	PromotionType      *string           `json:"promotionType,omitempty"`
	PromotionStartDate *string           `json:"promotionStartDate,omitempty"`
	PromotionEndDate   *string           `json:"promotionEndDate,omitempty"`
	ImageURL           *string           `json:"imageUrl,omitempty" gorm:"column:image_url"`
	Status             ProductStatus     `json:"status" gorm:"not null;default:'ACTIVE'"`
	Variants           []*ProductVariant `json:"variants,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
	DeletedAt          *gorm.DeletedAt   `json:"deletedAt,omitempty" gorm:"index"`
}

// ProductImage represents one gallery image of a product
type ProductImage struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ProductID uuid.UUID `json:"productId" gorm:"type:uuid;not null;index"`
	URL       string    `json:"url" gorm:"not null"`
	SortOrder int       `json:"sortOrder" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProductVariant represents a sellable configuration (size/color) of a product
type ProductVariant struct {
	ID        uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ProductID uuid.UUID       `json:"productId" gorm:"type:uuid;not null;index"`
	Size      *string         `json:"size,omitempty"`
	Color     *string         `json:"color,omitempty"`
	Price     float64         `json:"price" gorm:"not null"`
	Quantity  int             `json:"quantity" gorm:"not null;default:0"`
	Images    *JSONArray      `json:"images,omitempty" gorm:"type:jsonb"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	DeletedAt *gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"index"`
}

// Category represents a product category
type Category struct {
	ID        uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name      string          `json:"name" gorm:"not null"`
	Slug      string          `json:"slug" gorm:"not null"`
	IsActive  *bool           `json:"isActive" gorm:"column:is_active;default:true"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	DeletedAt *gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"index"`
}

// CategoryAttributes declares which variant axes apply to a category and
// which values are allowed on each axis
type CategoryAttributes struct {
	ID              uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CategoryID      uuid.UUID  `json:"categoryId" gorm:"type:uuid;not null;uniqueIndex"`
	HasSizes        bool       `json:"hasSizes" gorm:"not null;default:false"`
	HasColors       bool       `json:"hasColors" gorm:"not null;default:false"`
	AvailableSizes  *JSONArray `json:"availableSizes,omitempty" gorm:"type:jsonb"`
	AvailableColors *JSONArray `json:"availableColors,omitempty" gorm:"type:jsonb"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// CategoryWithAttributes bundles a category with its attributes record.
// Attributes is nil when no attributes row exists for the category.
type CategoryWithAttributes struct {
	Category   Category            `json:"category"`
	Attributes *CategoryAttributes `json:"attributes,omitempty"`
}

type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     Error  `json:"error"`
	Timestamp string `json:"timestamp,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message *string     `json:"message,omitempty"`
}

// TableName returns the table name for the Product model
func (Product) TableName() string {
	return "products"
}

// TableName returns the table name for the ProductImage model
func (ProductImage) TableName() string {
	return "product_images"
}

// TableName returns the table name for the ProductVariant model
func (ProductVariant) TableName() string {
	return "product_variants"
}

// TableName returns the table name for the Category model
func (Category) TableName() string {
	return "categories"
}

// TableName returns the table name for the CategoryAttributes model
func (CategoryAttributes) TableName() string {
	return "category_attributes"
}
