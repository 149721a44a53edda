package screen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/zombor/jain-scan/internal/capture"
	"github.com/zombor/jain-scan/internal/classify"
)

// maxUploadSize bounds a photo upload; high-resolution phone photos fit comfortably
const maxUploadSize = int64(50 << 20)

// stateView is the JSON shape of the screen sent to the page
type stateView struct {
	State
	HasPayload bool   `json:"hasPayload"`
	Error      string `json:"error,omitempty"`
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeJSON writes v with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// appFor returns the screen of the requesting browser, issuing a session cookie when needed
func (s *Server) appFor(w http.ResponseWriter, r *http.Request) *App {
	var id string
	if c, err := r.Cookie(sessionCookie); err == nil {
		id = c.Value
	}
	newID, app := s.sessions.Get(id)
	if newID != id {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    newID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return app
}

// writeState answers with the screen state, plus the error text when err is set
func writeState(w http.ResponseWriter, app *App, err error) {
	state := app.Snapshot()
	view := stateView{State: state, HasPayload: state.HasPayload()}
	code := http.StatusOK
	if err != nil {
		code = statusCode(err)
		view.Error = err.Error()
	}
	writeJSON(w, code, view)
}

// statusCode maps an action error onto an HTTP status
func statusCode(err error) int {
	switch {
	case errors.Is(err, capture.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, capture.ErrCapture):
		return http.StatusUnprocessableEntity
	case errors.Is(err, classify.ErrMissingInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrCheckInProgress):
		return http.StatusConflict
	case errors.Is(err, classify.ErrService), errors.Is(err, classify.ErrMalformedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.appFor(w, r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleStaticCSS serves the CSS file
func (s *Server) handleStaticCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css")
	w.Write(appCSS)
}

// handleStaticJS serves the JavaScript file
func (s *Server) handleStaticJS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write(appJS)
}

// handleState returns the current screen state
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeState(w, s.appFor(w, r), nil)
}

// handlePhoto returns the JPEG of the last capture
func (s *Server) handlePhoto(w http.ResponseWriter, r *http.Request) {
	data, ok := s.appFor(w, r).Photo()
	if !ok {
		http.Error(w, "No photo captured", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

// handleScan receives the outcome of the page's camera: a denial, a cancel or a photo
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	app := s.appFor(w, r)

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			errorMsg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errorMsg})
		return
	}

	camera := &uploadCamera{
		denied:   r.FormValue("permission") == "denied",
		canceled: r.FormValue("canceled") == "1",
		uri:      "/api/photo?v=" + uuid.NewString(),
	}

	crop, err := parseCrop(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	camera.crop = crop

	if !camera.denied && !camera.canceled {
		if r.MultipartForm == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "No file was selected. Please take a picture first.",
			})
			return
		}
		f, header, err := r.FormFile("file")
		if err != nil {
			slog.Error("Error getting file from form", "error", err)
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "No file was selected. Please take a picture first.",
			})
			return
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			slog.Error("Error reading file data", "error", err, "filename", header.Filename)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Error reading file. Please try again.",
			})
			return
		}
		camera.data = data

		camera.contentType = header.Header.Get("Content-Type")
		if camera.contentType == "" || camera.contentType == "application/octet-stream" {
			camera.contentType = capture.ContentTypeFromPath(header.Filename)
		}
	}

	writeState(w, app, app.Scan(r.Context(), camera))
}

// parseCrop reads the optional crop_x, crop_y, crop_w, crop_h form fields
func parseCrop(r *http.Request) (*image.Rectangle, error) {
	fields := []string{"crop_x", "crop_y", "crop_w", "crop_h"}
	values := make([]int, len(fields))
	set := 0
	for i, name := range fields {
		raw := strings.TrimSpace(r.FormValue(name))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("invalid %s: %q", name, raw)
		}
		values[i] = v
		set++
	}
	switch set {
	case 0:
		return nil, nil
	case len(fields):
	default:
		return nil, fmt.Errorf("crop needs crop_x, crop_y, crop_w and crop_h")
	}
	if values[2] == 0 || values[3] == 0 {
		return nil, fmt.Errorf("crop width and height must be positive")
	}
	rect := image.Rect(values[0], values[1], values[0]+values[2], values[1]+values[3])
	return &rect, nil
}

// handleCheck classifies the stored capture. The request context's cancel is
// dropped so leaving the page does not abort a check already sent.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	app := s.appFor(w, r)
	writeState(w, app, app.Check(context.WithoutCancel(r.Context())))
}

// handleDismissNotice clears the pending notice
func (s *Server) handleDismissNotice(w http.ResponseWriter, r *http.Request) {
	app := s.appFor(w, r)
	app.DismissNotice()
	writeState(w, app, nil)
}

// handleIsJain answers the classification contract with the host classifier
func (s *Server) handleIsJain(w http.ResponseWriter, r *http.Request) {
	var req classify.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadSize)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	resp, err := s.host.Classify(r.Context(), req.Base64Image)
	if err != nil {
		slog.Error("Error classifying image", "error", err)
		switch {
		case errors.Is(err, classify.ErrMissingInput):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "base64Image is required"})
		case errors.Is(err, classify.ErrInvalidPayload):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "Classification failed"})
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
