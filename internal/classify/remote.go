package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultEndpoint is the hosted classification service
const DefaultEndpoint = "https://jain-server.vercel.app/isjain"

// Remote implements the Classifier interface against a hosted /isjain endpoint.
// Each call is a single attempt, there is no retry.
type Remote struct {
	endpoint string
	client   *http.Client
}

// NewRemote creates a Remote classifier. A zero timeout leaves the
// transport defaults in charge.
func NewRemote(endpoint string, timeout time.Duration) (*Remote, error) {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("endpoint must be an http or https URL, got %q", endpoint)
	}

	return &Remote{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// Classify posts the payload and decodes the answer. A missing response
// field is replaced by FallbackText rather than failing.
func (r *Remote) Classify(ctx context.Context, payload string) (*Response, error) {
	if strings.TrimSpace(payload) == "" {
		return nil, ErrMissingInput
	}

	jsonData, err := json.Marshal(Request{Base64Image: payload})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling classification API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Error("Classification API error", "status", resp.StatusCode, "body", string(body))
		return nil, &ServiceError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result Response
	if err := json.Unmarshal(body, &result); err != nil {
		slog.Error("Undecodable classification response", "body", string(body), "error", err)
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if result.Text == "" {
		result.Text = FallbackText
	}

	slog.Info("Classification response", "response", result.Text, "verdict", result.Verdict)
	return &result, nil
}

// Close drops idle connections
func (r *Remote) Close() error {
	r.client.CloseIdleConnections()
	return nil
}
