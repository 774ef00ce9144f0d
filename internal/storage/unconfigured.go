package storage

import (
	"context"
	"errors"
)

// UnconfiguredStore stands in when no asset backend is configured. Every
// upload fails, which the processor surfaces as per-image warnings instead
// of crashing the service at startup.
type UnconfiguredStore struct{}

func (UnconfiguredStore) Upload(ctx context.Context, filename string, data []byte, contentType string) (string, error) {
	return "", errors.New("no asset storage configured: set CLOUDINARY_URL")
}
