package capture

import (
	"context"
	"errors"
	"image"
)

// DefaultQuality is the lossy compression factor applied to every capture.
// Photos are uploaded rather than kept, so size wins over fidelity.
const DefaultQuality = 0.3

// DefaultMaxDimension bounds the longest edge of an encoded photo in pixels
const DefaultMaxDimension = 1280

var (
	// ErrPermissionDenied is returned when camera access was refused
	ErrPermissionDenied = errors.New("camera permission denied")
	// ErrCapture marks any failure while taking or encoding a photo
	ErrCapture = errors.New("capture failed")
)

// Options configures a single capture
type Options struct {
	// AllowsEditing enables cropping the photo before it is encoded
	AllowsEditing bool
	// Crop is the region to keep, relative to the image origin. Ignored unless AllowsEditing is set.
	Crop *image.Rectangle
	// Quality is the JPEG compression factor in the range 0.0-1.0
	Quality float64
	// MaxDimension is the longest allowed edge; 0 disables downscaling
	MaxDimension int
}

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return Options{
		AllowsEditing: true,
		Quality:       DefaultQuality,
		MaxDimension:  DefaultMaxDimension,
	}
}

// Photo is a captured and encoded image
type Photo struct {
	// URI references the image for display
	URI string
	// Base64 is the standard base64 encoding of JPEG
	Base64 string
	// JPEG holds the encoded bytes
	JPEG   []byte
	Width  int
	Height int
}

// Camera is the capability used to take a photo of an ingredient list
type Camera interface {
	// RequestAccess asks for permission to use the camera. It returns true only on an explicit grant.
	RequestAccess(ctx context.Context) bool
	// Capture takes a photo. A nil Photo with a nil error means the user canceled.
	Capture(ctx context.Context, opts Options) (*Photo, error)
}

// DataURI wraps a base64 JPEG encoding into an upload-ready data URI
func DataURI(base64JPEG string) string {
	return "data:image/jpeg;base64," + base64JPEG
}
