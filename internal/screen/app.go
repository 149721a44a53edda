package screen

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zombor/jain-scan/internal/capture"
	"github.com/zombor/jain-scan/internal/classify"
)

// App owns the state of one scanning screen. Scan and Check are the only
// ways the state changes; both do their slow work without holding the
// lock and commit the result afterwards.
type App struct {
	classifier classify.Classifier
	options    capture.Options

	mu       sync.Mutex
	state    State
	photo    []byte
	checking bool
}

// NewApp creates an App in its initial state
func NewApp(classifier classify.Classifier, options capture.Options) *App {
	return &App{
		classifier: classifier,
		options:    options,
		state:      initialState(),
	}
}

// Snapshot returns a copy of the current state
func (a *App) Snapshot() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Photo returns the encoded JPEG of the last capture
func (a *App) Photo() ([]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.photo, a.photo != nil
}

// DismissNotice clears the pending notice
func (a *App) DismissNotice() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.Notice = ""
}

// Scan asks the camera for access, takes a photo and stores it for display
// and upload. Denial, cancel and failure all leave the previous capture in place.
func (a *App) Scan(ctx context.Context, camera capture.Camera) error {
	if !camera.RequestAccess(ctx) {
		a.notify(captureNotice(capture.ErrPermissionDenied))
		return capture.ErrPermissionDenied
	}

	prev := a.setStatus(StatusCapturing)
	photo, err := camera.Capture(ctx, a.options)
	if err != nil {
		slog.Error("Failed to capture photo", "error", err)
		a.mu.Lock()
		a.restoreStatusLocked(prev)
		a.state.Notice = captureNotice(err)
		a.mu.Unlock()
		return fmt.Errorf("%w: %w", capture.ErrCapture, err)
	}
	if photo == nil {
		a.mu.Lock()
		a.restoreStatusLocked(prev)
		a.mu.Unlock()
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.DisplayImage = photo.URI
	a.state.UploadPayload = capture.DataURI(photo.Base64)
	if !a.checking {
		a.state.Status = StatusCaptured
	}
	a.photo = photo.JPEG
	slog.Info("Photo captured", "uri", photo.URI, "width", photo.Width, "height", photo.Height, "bytes", len(photo.JPEG))
	return nil
}

// Check sends the stored capture for classification and shows the verdict.
// Only one check runs at a time; a second trigger is rejected. On failure
// the headline and explanation keep their previous values.
func (a *App) Check(ctx context.Context) error {
	a.mu.Lock()
	if a.checking {
		if a.state.Notice == "" {
			a.state.Notice = noticeCheckInProgress
		}
		a.mu.Unlock()
		return ErrCheckInProgress
	}
	payload := a.state.UploadPayload
	if payload == "" {
		a.state.Notice = checkNotice(classify.ErrMissingInput)
		a.mu.Unlock()
		return classify.ErrMissingInput
	}
	a.checking = true
	a.state.Status = StatusClassifying
	a.mu.Unlock()

	resp, err := a.classifier.Classify(ctx, payload)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.checking = false
	if err != nil {
		slog.Error("Failed to check ingredients", "error", err)
		a.state.Status = StatusFailed
		a.state.Notice = checkNotice(err)
		return fmt.Errorf("checking ingredients: %w", err)
	}

	result := classify.Parse(resp)
	a.state.HeaderText = result.Headline
	a.state.ExplanationText = result.Explanation
	a.state.JainFriendly = result.JainFriendly
	a.state.Status = StatusDisplayed
	return nil
}

func (a *App) notify(notice string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.Notice = notice
}

// restoreStatusLocked undoes StatusCapturing after a capture that changed
// nothing. A check that finished meanwhile has already moved the status on.
func (a *App) restoreStatusLocked(prev Status) {
	if a.state.Status != StatusCapturing {
		return
	}
	if prev == StatusClassifying && !a.checking {
		prev = StatusCaptured
	}
	a.state.Status = prev
}

// setStatus swaps the status and returns the previous one
func (a *App) setStatus(status Status) Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	prev := a.state.Status
	a.state.Status = status
	return prev
}
