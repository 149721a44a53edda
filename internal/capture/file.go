package capture

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileCamera "captures" an existing image file. It backs the one-shot mode
// and the terminal screen when no capture command is configured.
type FileCamera struct {
	// Path of the image to read. An empty path behaves like a canceled capture.
	Path string
}

// RequestAccess reports whether the file may be read. Only a permission
// error counts as a denial, a missing file surfaces later as a capture error.
func (c *FileCamera) RequestAccess(ctx context.Context) bool {
	if c.Path == "" {
		return true
	}
	f, err := os.Open(c.Path)
	if err != nil {
		return !errors.Is(err, fs.ErrPermission)
	}
	f.Close()
	return true
}

// Capture reads and encodes the file
func (c *FileCamera) Capture(ctx context.Context, opts Options) (*Photo, error) {
	if c.Path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	photo, err := Encode(data, ContentTypeFromPath(c.Path), opts)
	if err != nil {
		return nil, err
	}
	photo.URI = fileURI(c.Path)
	return photo, nil
}

// ContentTypeFromPath guesses a MIME type from the file extension
func ContentTypeFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

func fileURI(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return "file://" + filepath.ToSlash(path)
}
