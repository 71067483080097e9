package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/etlconsole/pkg/log"
	"github.com/cuemby/etlconsole/pkg/metrics"
	"github.com/cuemby/etlconsole/pkg/types"
	"github.com/google/uuid"
)

// Backend endpoints
const (
	PathReady    = "/ready"
	PathAsk      = "/ask"
	PathStartETL = "/start_etl"
)

// StatusTooEarly is returned by /ready while the backend has no data to serve
const StatusTooEarly = http.StatusTooEarly

// RequestIDHeader carries a per-request identifier for log correlation
const RequestIDHeader = "X-Request-ID"

// StatusError is returned when the backend answers with a non-2xx status.
// Body holds the plain-text error message sent by the backend.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: HTTP %d %s", e.Endpoint, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// IsStatus reports whether err is a StatusError with the given code
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Client talks to the NL2SQL/ETL backend over HTTP
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// NewClient creates a client for the backend at baseURL
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", baseURL)
	}

	return &Client{
		baseURL: u,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// BaseURL returns the backend base URL
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Ready issues GET /ready and returns the status code
func (c *Client) Ready(ctx context.Context) (int, error) {
	resp, err := c.do(ctx, http.MethodGet, PathReady, c.Endpoint(PathReady), nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

// Ask submits a natural-language question
func (c *Client) Ask(ctx context.Context, question string) (*types.AskResult, error) {
	resp, err := c.do(ctx, http.MethodPost, PathAsk, c.Endpoint(PathAsk), types.AskRequest{Question: question})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(PathAsk, resp); err != nil {
		return nil, err
	}

	var result types.AskResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", PathAsk, err)
	}
	return &result, nil
}

// StartETL creates a backend ETL job. A nil windowDays sends an empty body
// and leaves the window to the backend default.
func (c *Client) StartETL(ctx context.Context, windowDays *int) (*types.Job, error) {
	resp, err := c.do(ctx, http.MethodPost, PathStartETL, c.Endpoint(PathStartETL), types.StartJobRequest{WindowDays: windowDays})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(PathStartETL, resp); err != nil {
		return nil, err
	}

	var job types.Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", PathStartETL, err)
	}
	if job.ID == "" {
		return nil, fmt.Errorf("%s response has no job_id", PathStartETL)
	}
	// The backend may omit the window; echo what was requested
	if job.WindowDays == nil {
		job.WindowDays = windowDays
	}
	return &job, nil
}

// Download copies the resource at path (as returned in AskResult.ExcelURL)
// into w and returns the number of bytes written
func (c *Client) Download(ctx context.Context, path string, w io.Writer) (int64, error) {
	target, err := c.Resolve(path)
	if err != nil {
		return 0, err
	}
	resp, err := c.do(ctx, http.MethodGet, path, target, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := checkStatus(path, resp); err != nil {
		return 0, err
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to download %s: %w", path, err)
	}
	return n, nil
}

// Endpoint returns the URL of an API endpoint. The path is appended to the
// base URL, so a prefix such as http://host/app is kept.
func (c *Client) Endpoint(path string) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawPath = ""
	return u.String()
}

// Resolve turns a server-issued link, such as an Excel download, into an
// absolute URL against the base URL
func (c *Client) Resolve(ref string) (string, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid reference %q: %w", ref, err)
	}
	return c.baseURL.ResolveReference(r).String(), nil
}

func (c *Client) do(ctx context.Context, method, path, target string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.New().String()
	req.Header.Set(RequestIDHeader, requestID)

	endpoint := endpointLabel(path)
	logger := log.WithRequestID(requestID)
	timer := metrics.NewTimer()

	resp, err := c.http.Do(req)
	timer.ObserveDurationVec(metrics.HTTPRequestDuration, endpoint)
	if err != nil {
		metrics.HTTPRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("request failed")
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	metrics.HTTPRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
	logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", timer.Duration()).
		Msg("request completed")

	return resp, nil
}

func checkStatus(endpoint string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return &StatusError{
		Endpoint:   endpoint,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(data)),
	}
}

// endpointLabel keeps metric cardinality bounded for download paths
func endpointLabel(path string) string {
	switch path {
	case PathReady, PathAsk, PathStartETL:
		return strings.TrimPrefix(path, "/")
	default:
		return "download"
	}
}
