package main

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/jain-scan/internal/capture"
	"github.com/zombor/jain-scan/internal/classify"
	"github.com/zombor/jain-scan/internal/screen"
	"github.com/zombor/jain-scan/internal/tui"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("jain-scan")
	var (
		port           = fs.IntLong("port", 8080, "HTTP server port")
		mode           = fs.StringLong("mode", "web", "Front-end: 'web' or 'tui'")
		imagePath      = fs.StringLong("image", "", "Image file to check once and exit (in tui mode: the file the camera reads)")
		endpoint       = fs.StringLong("endpoint", classify.DefaultEndpoint, "Classification service URL")
		classifierKind = fs.StringLong("classifier", "remote", "Classifier: 'remote', 'gemini' or 'ollama'")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL      = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel    = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, qwen2-vl)")
		quality        = fs.Float64Long("quality", capture.DefaultQuality, "JPEG quality of uploaded photos, 0.0-1.0")
		maxDimension   = fs.IntLong("max-dimension", capture.DefaultMaxDimension, "Longest edge of uploaded photos in pixels, 0 keeps the original size")
		crop           = fs.StringLong("crop", "", "Crop region as x,y,width,height applied before encoding (one-shot and tui modes only)")
		captureCmd     = fs.StringLong("capture-cmd", "", "Camera command for tui mode, e.g. 'libcamera-still -n -o {output}'")
		cameraDevice   = fs.StringLong("camera-device", "", "Video device checked for access before capturing, e.g. /dev/video0")
		requestTimeout = fs.DurationLong("request-timeout", 0, "Timeout for classification requests, 0 means none")
		sessionTTL     = fs.DurationLong("session-ttl", screen.DefaultSessionTTL, "Idle time before a web session is dropped")
		maxSessions    = fs.IntLong("max-sessions", screen.DefaultMaxSessions, "Web sessions kept in memory, the least recently used is dropped beyond this")
		authUser       = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass       = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		logLevel       = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		logFile        = fs.StringLong("log-file", "", "Write logs to this file instead of stderr")
		_              = fs.StringLong("config", "", "Config file with one 'flag value' per line")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("JAIN_SCAN"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if *mode != "web" && *mode != "tui" {
		fmt.Fprintf(os.Stderr, "error: invalid mode %q: valid values are web or tui\n", *mode)
		os.Exit(1)
	}

	logCloser, err := setupLogging(*logLevel, *logFile, *mode == "tui")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	options, err := captureOptions(*quality, *maxDimension, *crop)
	if err != nil {
		slog.Error("Invalid capture options", "error", err)
		os.Exit(1)
	}

	classifier, hosted, err := newClassifier(classifierConfig{
		kind:        *classifierKind,
		endpoint:    *endpoint,
		timeout:     *requestTimeout,
		geminiKey:   *geminiKey,
		geminiModel: *geminiModel,
		ollamaURL:   *ollamaURL,
		ollamaModel: *ollamaModel,
	})
	if err != nil {
		slog.Error("Failed to initialize classifier", "error", err)
		os.Exit(1)
	}
	defer classifier.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *mode == "tui":
		err = runTUI(ctx, classifier, options, *imagePath, *captureCmd, *cameraDevice)
	case *imagePath != "":
		err = runOnce(ctx, os.Stdout, classifier, options, *imagePath)
	default:
		var host classify.Classifier
		if hosted {
			host = classifier
		}
		err = runWeb(ctx, classifier, host, webOptions(options), *port, *sessionTTL, *maxSessions, screen.BasicAuth{
			Username: *authUser,
			Password: *authPass,
		})
	}
	if err != nil {
		slog.Error("Exiting with error", "error", err)
		logCloser.Close()
		classifier.Close()
		os.Exit(1)
	}
}

// runOnce scans and checks a single image file and prints the verdict
func runOnce(ctx context.Context, out io.Writer, classifier classify.Classifier, options capture.Options, path string) error {
	app := screen.NewApp(classifier, options)
	if err := app.Scan(ctx, &capture.FileCamera{Path: path}); err != nil {
		return err
	}
	if !app.Snapshot().HasPayload() {
		return fmt.Errorf("no image captured from %s", path)
	}
	if err := app.Check(ctx); err != nil {
		return err
	}

	state := app.Snapshot()
	fmt.Fprintln(out, state.HeaderText)
	if state.ExplanationText != "" {
		fmt.Fprintln(out, state.ExplanationText)
	}
	return nil
}

// runTUI drives one screen from the terminal
func runTUI(ctx context.Context, classifier classify.Classifier, options capture.Options, imagePath, captureCmd, device string) error {
	var camera capture.Camera = &capture.FileCamera{Path: imagePath}
	if captureCmd != "" {
		camera = &capture.CommandCamera{Command: captureCmd, Device: device}
	}

	return tui.Run(ctx, screen.NewApp(classifier, options), camera)
}

// runWeb serves the screen over HTTP until ctx is canceled
func runWeb(ctx context.Context, classifier, host classify.Classifier, options capture.Options, port int, ttl time.Duration, maxSessions int, auth screen.BasicAuth) error {
	sessions := screen.NewSessions(func() *screen.App {
		return screen.NewApp(classifier, options)
	}, ttl, maxSessions)
	server := screen.NewServer(sessions, host, auth)

	addr := fmt.Sprintf(":%d", port)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(addr)
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if auth.Username != "" || auth.Password != "" {
		slog.Info("Basic auth enabled", "user", auth.Username)
	}
	if host != nil {
		slog.Info("Serving classification endpoint", "path", "/isjain")
	}

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
