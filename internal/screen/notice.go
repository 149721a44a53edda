package screen

import (
	"errors"

	"github.com/zombor/jain-scan/internal/capture"
	"github.com/zombor/jain-scan/internal/classify"
)

// ErrCheckInProgress is returned when a check is triggered while another one is running
var ErrCheckInProgress = errors.New("a check is already in progress")

const (
	noticePermissionDenied = "Sorry, we need camera permissions to make this work!"
	noticeMissingInput     = "No image to check. Please take a picture first."
	noticeCheckInProgress  = "A check is already in progress."
	captureNoticePrefix    = "Error uploading image: "
	checkNoticePrefix      = "Error checking ingredients: "
)

// checkNotice turns a failed check into the text shown to the user.
// Service errors stay generic, the raw body only goes to the log.
func checkNotice(err error) string {
	switch {
	case errors.Is(err, classify.ErrMissingInput):
		return noticeMissingInput
	case errors.Is(err, classify.ErrService):
		return checkNoticePrefix + classify.ErrService.Error()
	default:
		return checkNoticePrefix + err.Error()
	}
}

// captureNotice turns a failed capture into the text shown to the user
func captureNotice(err error) string {
	if errors.Is(err, capture.ErrPermissionDenied) {
		return noticePermissionDenied
	}
	return captureNoticePrefix + err.Error()
}
