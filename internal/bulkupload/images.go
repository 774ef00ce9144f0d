package bulkupload

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
)

// UploadedFile is a file received from the admin panel: a loose image or a
// ZIP archive of images
type UploadedFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// ImageAsset is an in-memory image ready for upload to the asset store
type ImageAsset struct {
	Name        string
	ContentType string
	Data        []byte
}

// imageMIMEByExtension maps supported image extensions to MIME types
var imageMIMEByExtension = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// acceptedImageMIMEs are the declared content types admitted for loose files
var acceptedImageMIMEs = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

const defaultImageMIME = "image/jpeg"

// ResolveImageFiles expands ZIP archives, filters to supported image types
// and produces a filename to asset map. Later files win on filename
// collision. This step is purely in-memory; nothing is uploaded here.
func ResolveImageFiles(files []UploadedFile) (map[string]ImageAsset, error) {
	assets := make(map[string]ImageAsset)

	for _, file := range files {
		if strings.HasSuffix(strings.ToLower(file.Name), ".zip") {
			if err := expandZip(file, assets); err != nil {
				return nil, fmt.Errorf("expanding %s: %w", file.Name, err)
			}
			continue
		}

		if acceptedImageMIMEs[strings.ToLower(file.ContentType)] {
			assets[file.Name] = ImageAsset{
				Name:        file.Name,
				ContentType: file.ContentType,
				Data:        file.Data,
			}
		}
	}

	return assets, nil
}

func expandZip(file UploadedFile, assets map[string]ImageAsset) error {
	reader, err := zip.NewReader(bytes.NewReader(file.Data), int64(len(file.Data)))
	if err != nil {
		return err
	}

	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		name := path.Base(entry.Name)
		// macOS archives ship resource-fork noise
		if strings.HasPrefix(name, ".") || strings.HasPrefix(entry.Name, "__MACOSX/") {
			continue
		}

		ext := strings.ToLower(path.Ext(name))
		if _, supported := imageMIMEByExtension[ext]; !supported {
			continue
		}

		rc, err := entry.Open()
		if err != nil {
			return fmt.Errorf("reading %s: %w", entry.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("reading %s: %w", entry.Name, err)
		}

		assets[name] = ImageAsset{Name: name, ContentType: mimeForExtension(ext), Data: data}
	}

	return nil
}

// mimeForExtension resolves a MIME type from the lookup table, defaulting to
// image/jpeg for anything unrecognized
func mimeForExtension(ext string) string {
	if mimeType, ok := imageMIMEByExtension[ext]; ok {
		return mimeType
	}
	return defaultImageMIME
}
