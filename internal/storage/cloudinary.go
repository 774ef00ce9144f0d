package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// CloudinaryStore uploads product images to Cloudinary and returns their
// delivery URLs
type CloudinaryStore struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewCloudinaryStore creates a store from a cloudinary:// URL. Assets are
// placed under the given folder (e.g. "products").
func NewCloudinaryStore(cloudinaryURL, folder string) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("cloudinary init: %w", err)
	}
	if folder == "" {
		folder = "products"
	}
	return &CloudinaryStore{cld: cld, folder: folder}, nil
}

// Upload sends the image bytes to Cloudinary and returns the secure delivery
// URL. The public ID is derived from the original filename plus a timestamp
// so repeated uploads of the same file never collide.
func (s *CloudinaryStore) Upload(ctx context.Context, filename string, data []byte, contentType string) (string, error) {
	resp, err := s.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		Folder:    s.folder,
		PublicID:  publicIDFor(filename),
		Overwrite: api.Bool(false),
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload %s: %w", filename, err)
	}
	return resp.SecureURL, nil
}

func publicIDFor(filename string) string {
	base := strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	return fmt.Sprintf("%s_%d", base, time.Now().UnixNano())
}
