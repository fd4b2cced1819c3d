package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"
)

// RequestContext is the session-scoped, read-only state shared by every case
// of a run: the base URL, default headers and the connection pool behind them.
type RequestContext struct {
	baseURL string
	headers HeaderKV

	client   *Client
	logger   *slog.Logger
	released atomic.Bool
	once     sync.Once
}

func (rc *RequestContext) BaseURL() string {
	return rc.baseURL
}

// Headers returns a copy of the default headers.
func (rc *RequestContext) Headers() HeaderKV {
	return rc.headers.clone()
}

func (rc *RequestContext) Send(ctx context.Context, r Request) (*Response, error) {
	if rc.released.Load() {
		return nil, ErrContextReleased
	}

	return rc.client.Send(ctx, rc.baseURL, rc.headers, r)
}

func (rc *RequestContext) Get(ctx context.Context, path string) (*Response, error) {
	return rc.Send(ctx, Request{Method: MethodGet, Path: path})
}

func (rc *RequestContext) Post(ctx context.Context, path string, body any) (*Response, error) {
	return rc.Send(ctx, Request{Method: MethodPost, Path: path, Body: body})
}

func (rc *RequestContext) Put(ctx context.Context, path string, body any) (*Response, error) {
	return rc.Send(ctx, Request{Method: MethodPut, Path: path, Body: body})
}

func (rc *RequestContext) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return rc.Send(ctx, Request{Method: MethodPatch, Path: path, Body: body})
}

func (rc *RequestContext) Delete(ctx context.Context, path string) (*Response, error) {
	return rc.Send(ctx, Request{Method: MethodDelete, Path: path})
}

// Release frees pooled connections. It is safe to call more than once.
func (rc *RequestContext) Release() {
	rc.once.Do(func() {
		rc.released.Store(true)
		rc.client.closeIdleConnections()
		rc.logger.Debug("request context released", slog.String("base_url", rc.baseURL))
	})
}

func (rc *RequestContext) Released() bool {
	return rc.released.Load()
}

// FixtureOptions configures the contexts a Fixture hands out.
type FixtureOptions struct {
	BaseURL   string
	Headers   HeaderKV
	RateLimit float64
	Timeout   time.Duration
	// Transport replaces the context's own clone of http.DefaultTransport,
	// mostly for tests.
	Transport http.RoundTripper
}

type Fixture struct {
	opts     FixtureOptions
	logger   *slog.Logger
	recorder *Recorder
}

func NewFixture(opts FixtureOptions, logger *slog.Logger, recorder *Recorder) *Fixture {
	if logger == nil {
		logger = discardLogger()
	}

	return &Fixture{
		opts:     opts,
		logger:   logger,
		recorder: recorder,
	}
}

// Acquire builds a fresh RequestContext. The caller owns it and must Release it.
func (f *Fixture) Acquire() (*RequestContext, error) {
	if err := validateBaseURL(f.opts.BaseURL); err != nil {
		return nil, err
	}

	transport := f.opts.Transport
	if transport == nil {
		transport = newTransport()
	}
	httpClient := &http.Client{
		Timeout:   f.opts.Timeout,
		Transport: transport,
	}

	rc := &RequestContext{
		baseURL: f.opts.BaseURL,
		headers: f.opts.Headers.clone(),
		client:  NewClient(httpClient, f.opts.RateLimit, f.logger, f.recorder),
		logger:  f.logger,
	}
	f.logger.Debug("request context acquired", slog.String("base_url", rc.baseURL))

	return rc, nil
}

// Release is Acquire's counterpart. Releasing nil or an already released
// context is a no-op.
func (f *Fixture) Release(rc *RequestContext) {
	if rc == nil {
		return
	}
	rc.Release()
}

// With runs fn with a fresh context and releases it on every exit path,
// panics included.
func (f *Fixture) With(fn func(*RequestContext) error) error {
	rc, err := f.Acquire()
	if err != nil {
		return err
	}
	defer f.Release(rc)

	return fn(rc)
}

type cleaner interface {
	Helper()
	Cleanup(func())
	Fatalf(format string, args ...any)
}

// AcquireT acquires a context whose release is bound to the test's cleanup.
func AcquireT(t cleaner, f *Fixture) *RequestContext {
	t.Helper()

	rc, err := f.Acquire()
	if err != nil {
		t.Fatalf("acquire request context: %v", err)

		return nil
	}
	t.Cleanup(rc.Release)

	return rc
}

// newTransport gives every context its own connection pool so that Release
// never closes connections owned by someone else. A replaced default transport
// (a test mock) is used as is.
func newTransport() http.RoundTripper {
	if t, ok := http.DefaultTransport.(*http.Transport); ok {
		return t.Clone()
	}

	return http.DefaultTransport
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidBaseURL, raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q: must be an absolute http(s) URL", ErrInvalidBaseURL, raw)
	}

	return nil
}
