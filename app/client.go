package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

type Method string

const (
	MethodGet    Method = http.MethodGet
	MethodPost   Method = http.MethodPost
	MethodPut    Method = http.MethodPut
	MethodPatch  Method = http.MethodPatch
	MethodDelete Method = http.MethodDelete
)

func (m Method) Valid() bool {
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete:
		return true
	}

	return false
}

// Request is one call against the base URL of a RequestContext. Body is sent
// as JSON; a json.RawMessage is sent verbatim.
type Request struct {
	Method  Method
	Path    string
	Body    any
	Headers HeaderKV
}

type limiter interface {
	Wait(context.Context) error
}

// Client sends requests and fully reads responses. It never retries and never
// turns a non-2xx status into an error.
type Client struct {
	httpClient *http.Client
	limiter    limiter
	logger     *slog.Logger
	recorder   *Recorder
}

// NewClient wraps httpClient. A rateLimit of 0 or less disables pacing.
func NewClient(httpClient *http.Client, rateLimit float64, logger *slog.Logger, recorder *Recorder) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = discardLogger()
	}

	limit := rate.Inf
	if rateLimit > 0 {
		limit = rate.Limit(rateLimit)
	}

	return &Client{
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
		recorder:   recorder,
	}
}

func (c *Client) Send(ctx context.Context, baseURL string, headers HeaderKV, r Request) (*Response, error) {
	if !r.Method.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMethod, r.Method)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("error while rate limiting: %w", err)
	}

	url := strings.TrimSuffix(baseURL, "/") + r.Path
	req, err := c.buildRequest(ctx, url, headers, r)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		c.recorder.ObserveRequest(string(r.Method), 0, time.Since(start))
		c.logger.Debug("request failed", slog.String("method", string(r.Method)), slog.String("url", url), slog.Any("error", err))

		return nil, &TransportError{Method: string(r.Method), URL: url, Err: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	elapsed := time.Since(start)
	c.recorder.ObserveRequest(string(r.Method), res.StatusCode, elapsed)
	if err != nil {
		return nil, &TransportError{
			Method: string(r.Method),
			URL:    url,
			Err:    fmt.Errorf("could not read response body: %w", err),
		}
	}

	c.logger.Debug("request done",
		slog.String("method", string(r.Method)),
		slog.String("url", url),
		slog.Int("status", res.StatusCode),
		slog.Duration("elapsed", elapsed),
	)

	return &Response{
		Status: res.StatusCode,
		Header: res.Header,
		Body:   body,
	}, nil
}

func (c *Client) buildRequest(ctx context.Context, url string, headers HeaderKV, r Request) (*http.Request, error) {
	var body io.Reader
	if r.Body != nil {
		payload, err := encodeBody(r.Body)
		if err != nil {
			return nil, fmt.Errorf("client: could not encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, string(r.Method), url, body)
	if err != nil {
		return nil, fmt.Errorf("client: could not create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	headers.apply(req)
	r.Headers.apply(req)

	return req, nil
}

func (c *Client) closeIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case json.RawMessage:
		return b, nil
	default:
		return json.Marshal(b)
	}
}
