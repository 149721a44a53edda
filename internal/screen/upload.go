package screen

import (
	"context"
	"image"

	"github.com/zombor/jain-scan/internal/capture"
)

// uploadCamera is the browser's camera as seen from the server: the page
// already asked for permission and took the photo, the request carries the outcome
type uploadCamera struct {
	denied      bool
	canceled    bool
	data        []byte
	contentType string
	crop        *image.Rectangle
	uri         string
}

func (c *uploadCamera) RequestAccess(ctx context.Context) bool {
	return !c.denied
}

func (c *uploadCamera) Capture(ctx context.Context, opts capture.Options) (*capture.Photo, error) {
	if c.canceled || len(c.data) == 0 {
		return nil, nil
	}
	if c.crop != nil {
		opts.AllowsEditing = true
		opts.Crop = c.crop
	}
	photo, err := capture.Encode(c.data, c.contentType, opts)
	if err != nil {
		return nil, err
	}
	photo.URI = c.uri
	return photo, nil
}
