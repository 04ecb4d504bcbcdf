// Package analyzer provides AnalysisRunner adapters: an HTTP client for the
// external analysis service and a simulated runner for development.
package analyzer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/reportable/reportgen/internal/core"
)

const (
	maxErrorBodyBytes = 4 * 1024 // bound stored error detail

	// Stream lines carry free-form milestone payloads and the final content;
	// the buffer cap bounds a single line, not the stream.
	initialLineBytes = 64 * 1024
	maxLineBytes     = 4 * 1024 * 1024
)

// Stream line event names.
const (
	eventMilestone = "milestone"
	eventResult    = "result"
	eventError     = "error"
)

// HTTPRunnerConfig configures the HTTP analysis client.
type HTTPRunnerConfig struct {
	// Endpoint receives the analysis request.
	Endpoint string

	// ResponseHeaderTimeout bounds the wait for the service to accept the
	// request. The stream itself is bounded by the caller's context, never
	// by a client timeout: analyses run for minutes.
	ResponseHeaderTimeout time.Duration

	// OAuth2 client-credentials auth for outbound requests. An empty
	// ClientID or TokenURL disables it.
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// HTTPRunnerOptions groups dependencies for NewHTTPRunner.
type HTTPRunnerOptions struct {
	Config HTTPRunnerConfig
	Logger *slog.Logger

	// HTTPClient overrides the base client (useful for tests/decoupling).
	HTTPClient *http.Client
}

// HTTPRunner invokes the analysis service over HTTP. The request is JSON; the
// response is an NDJSON stream of milestone lines ending in a single terminal
// line carrying the content or an error.
type HTTPRunner struct {
	endpoint string
	http     *http.Client
	logger   *slog.Logger
}

// NewHTTPRunner validates the endpoint and wires outbound auth when
// configured.
func NewHTTPRunner(opts HTTPRunnerOptions) (*HTTPRunner, error) {
	cfg := opts.Config
	if cfg.Endpoint == "" {
		return nil, errors.New("analysis endpoint is required")
	}
	if _, err := url.ParseRequestURI(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid analysis endpoint: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := opts.HTTPClient
	if base == nil {
		headerTimeout := cfg.ResponseHeaderTimeout
		if headerTimeout <= 0 {
			headerTimeout = 30 * time.Second
		}
		base = &http.Client{
			Transport: &http.Transport{ResponseHeaderTimeout: headerTimeout},
		}
	}

	hc := base
	if cfg.ClientID != "" && cfg.TokenURL != "" {
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		hc = cc.Client(tokenCtx)
	}

	return &HTTPRunner{
		endpoint: cfg.Endpoint,
		http:     hc,
		logger:   logger.With("component", "analyzer_client"),
	}, nil
}

// analysisRequestBody is the JSON request sent to the analysis service.
type analysisRequestBody struct {
	ReportID         string          `json:"report_id"`
	Target           string          `json:"target"`
	Metadata         json.RawMessage `json:"metadata,omitempty"`
	EstimatedSeconds int             `json:"estimated_seconds"`
}

// streamLine is one NDJSON line from the analysis stream.
type streamLine struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// Run posts the analysis request and consumes the stream until the terminal
// line. Milestone payloads are handed to emit in stream order from this
// goroutine.
func (r *HTTPRunner) Run(
	ctx context.Context,
	req core.AnalysisRequest,
	emit func(payload json.RawMessage),
) (json.RawMessage, error) {
	body, err := json.Marshal(analysisRequestBody{
		ReportID:         req.ReportID,
		Target:           req.Target,
		Metadata:         req.Metadata,
		EstimatedSeconds: req.EstimatedSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal analysis request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build analysis request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")

	resp, err := r.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send analysis request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			r.logger.WarnContext(ctx, "close analysis response body", "report_id", req.ReportID, "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analysis request failed: status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}

	return r.consumeStream(ctx, resp.Body, req.ReportID, emit)
}

// consumeStream walks the NDJSON lines. Malformed lines are skipped:
// milestones are best-effort and the terminal line must parse to count.
func (r *HTTPRunner) consumeStream(
	ctx context.Context,
	body io.Reader,
	reportID string,
	emit func(payload json.RawMessage),
) (json.RawMessage, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, initialLineBytes), maxLineBytes)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var msg streamLine
		if err := json.Unmarshal(line, &msg); err != nil {
			r.logger.WarnContext(ctx, "skipping malformed analysis stream line",
				"report_id", reportID, "error", err)
			continue
		}

		switch msg.Event {
		case eventMilestone:
			if emit != nil && len(msg.Data) > 0 {
				emit(msg.Data)
			}
		case eventResult:
			if len(msg.Data) == 0 {
				return nil, errors.New("analysis result carried no content")
			}
			return msg.Data, nil
		case eventError:
			if msg.Error == "" {
				return nil, errors.New("analysis reported an unspecified error")
			}
			return nil, fmt.Errorf("analysis error: %s", msg.Error)
		default:
			// Unknown events are ignored for forward compatibility.
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("read analysis stream: %w", err)
	}
	return nil, errors.New("analysis stream ended without a result")
}

// readErrorBody reads a bounded prefix of a non-200 response for the error
// message.
func readErrorBody(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBodyBytes))
	trimmed := bytes.TrimSpace(data)
	if err != nil || len(trimmed) == 0 {
		return "no response body"
	}
	return string(trimmed)
}
