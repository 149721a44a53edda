package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// OutputPlaceholder is replaced with the destination file in a capture command
const OutputPlaceholder = "{output}"

// CommandCamera takes photos by running an external capture program such as
// "libcamera-still -n -o {output}" or "fswebcam --no-banner {output}".
// Without the placeholder the image is read from the command's stdout.
type CommandCamera struct {
	// Command is split on whitespace, no shell is involved
	Command string
	// Device is checked for read access before capturing, e.g. /dev/video0
	Device string
	// Dir receives the captured files, defaults to the OS temp dir
	Dir string
}

// RequestAccess reports whether the video device can be opened
func (c *CommandCamera) RequestAccess(ctx context.Context) bool {
	if c.Device == "" {
		return true
	}
	f, err := os.Open(c.Device)
	if err != nil {
		if !errors.Is(err, fs.ErrPermission) {
			slog.Warn("Camera device unavailable", "device", c.Device, "error", err)
		}
		return false
	}
	f.Close()
	return true
}

// Capture runs the capture command. An empty image means the user canceled.
func (c *CommandCamera) Capture(ctx context.Context, opts Options) (*Photo, error) {
	args := strings.Fields(c.Command)
	if len(args) == 0 {
		return nil, fmt.Errorf("no capture command configured")
	}

	out, err := os.CreateTemp(c.Dir, "jain-scan-*.jpg")
	if err != nil {
		return nil, fmt.Errorf("creating capture file: %w", err)
	}
	out.Close()
	path := out.Name()

	toFile := false
	for i, arg := range args {
		if strings.Contains(arg, OutputPlaceholder) {
			args[i] = strings.ReplaceAll(arg, OutputPlaceholder, path)
			toFile = true
		}
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.Remove(path)
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("running %s: %w: %s", args[0], err, msg)
		}
		return nil, fmt.Errorf("running %s: %w", args[0], err)
	}

	data := stdout.Bytes()
	if toFile {
		if data, err = os.ReadFile(path); err != nil {
			os.Remove(path)
			return nil, fmt.Errorf("reading captured image: %w", err)
		}
	}
	if len(data) == 0 {
		os.Remove(path)
		return nil, nil
	}

	photo, err := Encode(data, "", opts)
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	// Keep the encoded version on disk so the display URI stays valid
	if err := os.WriteFile(path, photo.JPEG, 0644); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing captured image: %w", err)
	}
	photo.URI = fileURI(path)
	return photo, nil
}
