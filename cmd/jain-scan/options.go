package main

import (
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zombor/jain-scan/internal/capture"
	"github.com/zombor/jain-scan/internal/classify"
)

// classifierConfig selects and configures a classification backend
type classifierConfig struct {
	kind        string
	endpoint    string
	timeout     time.Duration
	geminiKey   string
	geminiModel string
	ollamaURL   string
	ollamaModel string
}

// newClassifier builds the backend named by cfg.kind. The second return
// value reports whether the backend should also be served on /isjain.
func newClassifier(cfg classifierConfig) (classify.Classifier, bool, error) {
	switch cfg.kind {
	case "", "remote":
		slog.Info("Using remote classifier", "endpoint", cfg.endpoint)
		c, err := classify.NewRemote(cfg.endpoint, cfg.timeout)
		if err != nil {
			return nil, false, fmt.Errorf("initializing remote classifier: %w", err)
		}
		return c, false, nil
	case "gemini":
		apiKey := cfg.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, false, fmt.Errorf("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini classifier...", "model", cfg.geminiModel)
		c, err := classify.NewGemini(apiKey, cfg.geminiModel)
		if err != nil {
			return nil, false, fmt.Errorf("initializing gemini: %w", err)
		}
		return c, true, nil
	case "ollama":
		slog.Info("Initializing Ollama classifier...", "url", cfg.ollamaURL, "model", cfg.ollamaModel)
		c, err := classify.NewOllama(cfg.ollamaURL, cfg.ollamaModel)
		if err != nil {
			return nil, false, fmt.Errorf("initializing ollama: %w", err)
		}
		return c, true, nil
	default:
		return nil, false, fmt.Errorf("invalid classifier %q: valid values are remote, gemini or ollama", cfg.kind)
	}
}

// captureOptions turns the encoder flags into capture options
func captureOptions(quality float64, maxDimension int, crop string) (capture.Options, error) {
	opts := capture.DefaultOptions()
	if quality <= 0 || quality > 1 {
		return opts, fmt.Errorf("quality must be in (0, 1], got %v", quality)
	}
	if maxDimension < 0 {
		return opts, fmt.Errorf("max dimension must not be negative, got %d", maxDimension)
	}
	opts.Quality = quality
	opts.MaxDimension = maxDimension

	rect, err := parseCrop(crop)
	if err != nil {
		return opts, err
	}
	opts.Crop = rect
	return opts, nil
}

// webOptions drops the --crop region, browsers send their own crop with each upload
func webOptions(opts capture.Options) capture.Options {
	if opts.Crop != nil {
		slog.Warn("Ignoring --crop in web mode, crops come from the page")
	}
	opts.Crop = nil
	return opts
}

// parseCrop reads a crop rectangle written as "x,y,width,height"
func parseCrop(s string) (*image.Rectangle, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("crop must be x,y,width,height, got %q", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid crop value %q", p)
		}
		v[i] = n
	}
	if v[2] == 0 || v[3] == 0 {
		return nil, fmt.Errorf("crop width and height must be positive")
	}
	rect := image.Rect(v[0], v[1], v[0]+v[2], v[1]+v[3])
	return &rect, nil
}

// setupLogging installs the default slog logger. The returned closer
// releases the log file, if one was opened.
func setupLogging(level, file string, discard bool) (io.Closer, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var (
		out    io.Writer = os.Stderr
		closer io.Closer = io.NopCloser(nil)
	)
	switch {
	case file != "":
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		out, closer = f, f
	case discard:
		out = io.Discard
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: lvl})))
	return closer, nil
}
