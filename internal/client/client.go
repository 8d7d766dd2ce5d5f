package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"herdscreen/internal/api"
	"herdscreen/internal/logging"
	"herdscreen/internal/services"
)

// RequestIDHeader carries the correlation id of every request.
const RequestIDHeader = "X-Request-ID"

// StatusError reports a non-2xx response. Body holds the decoded error
// payload when the server sent one.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       api.ErrorBody
}

func (e *StatusError) Error() string {
	if text := e.Body.Text(); text != "" {
		return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.Path, e.StatusCode, text)
	}
	return fmt.Sprintf("%s %s returned status %d", e.Method, e.Path, e.StatusCode)
}

// Client talks to the screening backend. Short requests are bounded by the
// configured timeout; job submissions, uploads and downloads run until the
// caller's context ends.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds short requests. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "client")
	}
}

// New parses baseURL (scheme optional) and returns a client rooted at it.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "client", "parse base url", "base url is empty", nil)
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "client", "parse base url", baseURL, err)
	}
	base.Path = strings.TrimRight(base.Path, "/")
	base.RawQuery = ""
	base.Fragment = ""

	c := &Client{
		base:    base,
		http:    &http.Client{},
		timeout: 30 * time.Second,
		logger:  logging.NewComponentLogger(nil, "client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Resolve turns a server-relative reference (such as a download_url) into an
// absolute URL on the backend.
func (c *Client) Resolve(ref string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", ref, err)
	}
	if parsed.IsAbs() {
		return parsed.String(), nil
	}
	root := *c.base
	if !strings.HasPrefix(parsed.Path, "/") {
		parsed.Path = "/" + parsed.Path
	}
	root.Path = c.base.Path + parsed.Path
	root.RawQuery = parsed.RawQuery
	return root.String(), nil
}

func (c *Client) endpoint(path string) string {
	u := *c.base
	u.Path = c.base.Path + path
	return u.String()
}

func (c *Client) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	rid, ok := services.RequestIDFromContext(ctx)
	if !ok {
		rid = uuid.NewString()
	}
	req.Header.Set(RequestIDHeader, rid)
	return req, nil
}

// do sends the request and returns the response body of a 2xx reply.
// Transport failures are tagged ErrConnectivity; non-2xx replies become
// *StatusError.
func (c *Client) do(req *http.Request) ([]byte, error) {
	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrConnectivity, "client", req.Method+" "+req.URL.Path, "", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrConnectivity, "client", req.Method+" "+req.URL.Path, "read body", err)
	}

	c.logger.Debug("backend request",
		logging.String("method", req.Method),
		logging.String("path", req.URL.Path),
		logging.Int("status", resp.StatusCode),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldCorrelationID, req.Header.Get(RequestIDHeader)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{Method: req.Method, Path: req.URL.Path, StatusCode: resp.StatusCode}
		_ = json.Unmarshal(data, &statusErr.Body)
		return data, statusErr
	}
	return data, nil
}

func (c *Client) getJSON(ctx context.Context, path string, target any) error {
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	data, err := c.do(req)
	if err != nil {
		return err
	}
	return decode(path, data, target)
}

func decode(path string, data []byte, target any) error {
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// Health performs one liveness request. A nil error means the backend
// answered 200.
func (c *Client) Health(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return services.Wrap(services.ErrConnectivity, "client", "health", "", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Method: http.MethodGet, Path: "/health", StatusCode: resp.StatusCode}
	}
	return nil
}

// SendCloseSignal tells the backend this client may be gone. The response is
// ignored beyond transport errors.
func (c *Client) SendCloseSignal(ctx context.Context) error {
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	payload, err := json.Marshal(api.CloseSignal{Action: "close"})
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/close-signal", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return services.Wrap(services.ErrConnectivity, "client", "close signal", "", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// ListFiles returns the uploaded files known to the backend.
func (c *Client) ListFiles(ctx context.Context) ([]api.FileInfo, error) {
	var payload api.FilesResponse
	if err := c.getJSON(ctx, "/api/files", &payload); err != nil {
		return nil, err
	}
	return payload.Files, nil
}

// DeleteFile removes one uploaded file.
func (c *Client) DeleteFile(ctx context.Context, fileID string) (api.StatusResponse, error) {
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return api.StatusResponse{}, errors.New("file id is required")
	}
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodDelete, "/api/files/"+url.PathEscape(fileID), nil)
	if err != nil {
		return api.StatusResponse{}, err
	}
	data, err := c.do(req)
	if err != nil {
		return api.StatusResponse{}, err
	}
	var payload api.StatusResponse
	if err := decode("/api/files", data, &payload); err != nil {
		return api.StatusResponse{}, err
	}
	if !payload.Success {
		return payload, services.NewSubmissionError(payload.Message, "delete failed", nil)
	}
	return payload, nil
}

// FarmIDs returns the farm identifiers found in uploaded data.
func (c *Client) FarmIDs(ctx context.Context) ([]string, error) {
	var payload api.FarmIDsResponse
	if err := c.getJSON(ctx, "/api/farm-ids", &payload); err != nil {
		return nil, err
	}
	return payload.FarmIDs, nil
}

// DataStatistics returns the value ranges of uploaded data.
func (c *Client) DataStatistics(ctx context.Context) (api.DataStatistics, error) {
	var payload api.DataStatistics
	err := c.getJSON(ctx, "/api/data-statistics", &payload)
	return payload, err
}

// Filters returns the server-declared filter definitions.
func (c *Client) Filters(ctx context.Context) (map[string]api.FilterDefinition, error) {
	var payload api.FiltersResponse
	if err := c.getJSON(ctx, "/api/filters", &payload); err != nil {
		return nil, err
	}
	return payload.Filters, nil
}

// ProcessingProgress fetches the shared progress snapshot. Callers bound the
// request through ctx.
func (c *Client) ProcessingProgress(ctx context.Context) (api.ProgressSnapshot, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/processing-progress", nil)
	if err != nil {
		return api.ProgressSnapshot{}, err
	}
	data, err := c.do(req)
	if err != nil {
		return api.ProgressSnapshot{}, err
	}
	var snap api.ProgressSnapshot
	err = decode("/api/processing-progress", data, &snap)
	return snap, err
}

// Filter runs the single-file filter. filters must marshal to the FilterSpec
// JSON mapping. Non-2xx replies come back as *StatusError.
func (c *Client) Filter(ctx context.Context, fileID string, filters any) (api.JobResult, error) {
	encoded, err := json.Marshal(filters)
	if err != nil {
		return nil, fmt.Errorf("encode filters: %w", err)
	}
	body, err := json.Marshal(api.FilterRequest{FileID: fileID, Filters: encoded})
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/filter", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	data, err := c.do(req)
	if err != nil {
		return nil, err
	}
	return api.DecodeJobResult(data)
}

// Download streams the workbook at ref into dst and returns the byte count.
func (c *Client) Download(ctx context.Context, ref string, dst io.Writer) (int64, error) {
	target, err := c.Resolve(ref)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, err
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		req.Header.Set(RequestIDHeader, rid)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, services.Wrap(services.ErrConnectivity, "client", "download", "", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		statusErr := &StatusError{Method: http.MethodGet, Path: req.URL.Path, StatusCode: resp.StatusCode}
		if data, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); readErr == nil {
			_ = json.Unmarshal(data, &statusErr.Body)
		}
		return 0, statusErr
	}
	n, err := io.Copy(dst, resp.Body)
	if err != nil {
		return n, services.Wrap(services.ErrConnectivity, "client", "download", "copy body", err)
	}
	return n, nil
}
