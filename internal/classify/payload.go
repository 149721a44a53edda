package classify

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// decodeDataURI splits "data:image/<format>;base64,<data>" into the image
// format suffix (e.g. "jpeg") and the decoded bytes
func decodeDataURI(payload string) (string, []byte, error) {
	header, encoded, ok := strings.Cut(strings.TrimSpace(payload), ",")
	if !ok || !strings.HasPrefix(header, "data:image/") || !strings.HasSuffix(header, ";base64") {
		return "", nil, ErrInvalidPayload
	}

	format := strings.TrimSuffix(strings.TrimPrefix(header, "data:image/"), ";base64")
	if format == "" {
		return "", nil, ErrInvalidPayload
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if len(data) == 0 {
		return "", nil, ErrInvalidPayload
	}
	return format, data, nil
}
