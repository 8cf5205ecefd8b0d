package agent

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

// maxResponseBodySize caps how much of a backend reply is read (1MB).
const maxResponseBodySize = 1 << 20

// HTTPClient talks to the backend's JSON endpoints POST /start and POST /ask.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewHTTPClient creates a client for the backend rooted at baseURL.
// A zero timeout leaves exchanges unbounded.
func NewHTTPClient(baseURL string, timeout time.Duration, logger *slog.Logger) (*HTTPClient, error) {
	if logger == nil {
		logger = slog.Default()
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q must be http or https", baseURL)
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    &http.Client{},
		timeout: timeout,
		logger:  logger,
	}, nil
}

// StartSession calls POST /start.
func (c *HTTPClient) StartSession(ctx context.Context) (string, error) {
	var resp StartResponse
	if err := c.post(ctx, "/start", nil, &resp); err != nil {
		return "", err
	}
	if resp.SessionID == "" {
		return "", fmt.Errorf("%w: /start returned an empty session_id", ErrTransport)
	}
	return resp.SessionID, nil
}

// Ask calls POST /ask.
func (c *HTTPClient) Ask(ctx context.Context, sessionID, query string) (string, error) {
	var resp AskResponse
	if err := c.post(ctx, "/ask", AskRequest{Query: query, SessionID: sessionID}, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}

// Close releases idle connections.
func (c *HTTPClient) Close() {
	c.http.CloseIdleConnections()
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var payload io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encode %s request: %w", ErrTransport, path, err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("%w: build %s request: %w", ErrTransport, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: POST %s: %w", ErrTransport, path, err)
	}
	defer func() {
		if closeErr := res.Body.Close(); closeErr != nil {
			c.logger.Warn("failed to close backend response body", "path", path, "error", closeErr)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBodySize))
	if err != nil {
		return fmt.Errorf("%w: read %s response: %w", ErrTransport, path, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var errResp ErrorResponse
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("%w: POST %s: status %d: %s", ErrTransport, path, res.StatusCode, errResp.Error)
		}
		return fmt.Errorf("%w: POST %s: status %d", ErrTransport, path, res.StatusCode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode %s response: %w", ErrTransport, path, err)
	}

	c.logger.Debug("backend exchange completed", "path", path, "status", res.StatusCode)
	return nil
}
