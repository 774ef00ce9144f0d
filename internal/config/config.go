package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"catalog-service/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis
	RedisURL string

	// Cloudinary
	CloudinaryURL    string
	CloudinaryFolder string

	// Server
	Port        string
	Environment string

	// Bulk upload tuning
	UploadBatchSize      int
	MaxUploadBatchSize   int
	ConcurrentUploads    int
	MaxConcurrentUploads int
	RetryAttempts        int
	MaxRetryAttempts     int
}

func Load() *Config {
	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	batchSize, _ := strconv.Atoi(getEnv("UPLOAD_BATCH_SIZE", "10"))
	maxBatchSize, _ := strconv.Atoi(getEnv("MAX_UPLOAD_BATCH_SIZE", "100"))
	concurrent, _ := strconv.Atoi(getEnv("CONCURRENT_UPLOADS", "3"))
	maxConcurrent, _ := strconv.Atoi(getEnv("MAX_CONCURRENT_UPLOADS", "10"))
	retries, _ := strconv.Atoi(getEnv("RETRY_ATTEMPTS", "3"))
	maxRetries, _ := strconv.Atoi(getEnv("MAX_RETRY_ATTEMPTS", "5"))

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     dbPort,
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "catalog_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		CloudinaryURL:    getEnv("CLOUDINARY_URL", ""),
		CloudinaryFolder: getEnv("CLOUDINARY_FOLDER", "products"),

		Port:        getEnv("PORT", "8087"),
		Environment: getEnv("ENVIRONMENT", "development"),

		UploadBatchSize:      batchSize,
		MaxUploadBatchSize:   maxBatchSize,
		ConcurrentUploads:    concurrent,
		MaxConcurrentUploads: maxConcurrent,
		RetryAttempts:        retries,
		MaxRetryAttempts:     maxRetries,
	}
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)

	var logLevel logger.LogLevel
	if cfg.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto-migrate models to keep schema up to date. Adds missing columns but
	// never drops existing ones.
	log.Println("Running auto-migrations...")
	if err := db.AutoMigrate(
		&models.Category{},
		&models.CategoryAttributes{},
		&models.Product{},
		&models.ProductImage{},
		&models.ProductVariant{},
	); err != nil {
		return nil, fmt.Errorf("failed to run auto-migrations: %w", err)
	}
	log.Println("Auto-migrations completed successfully")

	return db, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
