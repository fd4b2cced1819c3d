package app_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/phux/apicheck/app"
	"github.com/phux/apicheck/internal/fakeapi"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeFixture(t *testing.T, headers app.HeaderKV) *app.Fixture {
	t.Helper()

	srv := httptest.NewServer(fakeapi.NewRouter())
	t.Cleanup(srv.Close)

	return app.NewFixture(app.FixtureOptions{
		BaseURL:   srv.URL,
		Headers:   headers,
		Transport: srv.Client().Transport,
	}, nil, nil)
}

func TestFixture_AcquireInvalidBaseURL(t *testing.T) {
	for _, baseURL := range []string{"", "jsonplaceholder.typicode.com", "ftp://example.com", "http://"} {
		_, err := app.NewFixture(app.FixtureOptions{BaseURL: baseURL}, nil, nil).Acquire()

		assert.ErrorIs(t, err, app.ErrInvalidBaseURL, "base URL %q", baseURL)
	}
}

func TestRequestContext_Verbs(t *testing.T) {
	fixture := newFakeFixture(t, app.HeaderKV{"X-Client": "apicheck"})
	rc := app.AcquireT(t, fixture)
	ctx := context.Background()

	res, err := rc.Get(ctx, "/users/1")
	require.NoError(t, err)
	assert.Equal(t, 200, res.Status)

	res, err = rc.Post(ctx, "/users", map[string]string{"name": "Matt Jones"})
	require.NoError(t, err)
	assert.Equal(t, 201, res.Status)

	res, err = rc.Put(ctx, "/users/1", map[string]any{"id": 1, "name": "Updated Name"})
	require.NoError(t, err)
	assert.Equal(t, 200, res.Status)

	res, err = rc.Patch(ctx, "/users/1", map[string]string{"name": "Partially Updated Name"})
	require.NoError(t, err)
	assert.Equal(t, 200, res.Status)

	res, err = rc.Delete(ctx, "/users/1")
	require.NoError(t, err)
	assert.Equal(t, 200, res.Status)

	res, err = rc.Get(ctx, "/users/999")
	require.NoError(t, err, "a 404 is a response, not an error")
	assert.Equal(t, 404, res.Status)
}

func TestRequestContext_HeadersAreCopied(t *testing.T) {
	headers := app.HeaderKV{"X-Client": "apicheck"}
	rc := app.AcquireT(t, newFakeFixture(t, headers))

	headers["X-Client"] = "changed"
	got := rc.Headers()
	got["X-Other"] = "added"

	assert.Equal(t, app.HeaderKV{"X-Client": "apicheck"}, rc.Headers())
}

func TestRequestContext_ReleaseIsIdempotent(t *testing.T) {
	fixture := newFakeFixture(t, nil)
	rc, err := fixture.Acquire()
	require.NoError(t, err)

	rc.Release()
	rc.Release()
	fixture.Release(rc)
	fixture.Release(nil)

	assert.True(t, rc.Released())
	_, err = rc.Get(context.Background(), "/users/1")
	assert.ErrorIs(t, err, app.ErrContextReleased)
}

func TestFixture_WithReleasesOnEveryPath(t *testing.T) {
	fixture := newFakeFixture(t, nil)

	var held *app.RequestContext
	err := fixture.With(func(rc *app.RequestContext) error {
		held = rc
		_, err := rc.Get(context.Background(), "/users")

		return err
	})
	require.NoError(t, err)
	assert.True(t, held.Released())

	errBoom := errors.New("boom")
	err = fixture.With(func(rc *app.RequestContext) error {
		held = rc

		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.True(t, held.Released())

	assert.Panics(t, func() {
		_ = fixture.With(func(rc *app.RequestContext) error {
			held = rc
			panic("test aborted")
		})
	})
	assert.True(t, held.Released())
}

type fakeCleaner struct {
	cleanups []func()
	fatal    string
}

func (*fakeCleaner) Helper() {}

func (f *fakeCleaner) Cleanup(fn func()) {
	f.cleanups = append(f.cleanups, fn)
}

func (f *fakeCleaner) Fatalf(format string, _ ...any) {
	f.fatal = format
}

func TestAcquireT_RegistersRelease(t *testing.T) {
	cleaner := &fakeCleaner{}
	rc := app.AcquireT(cleaner, newFakeFixture(t, nil))

	require.Len(t, cleaner.cleanups, 1)
	assert.False(t, rc.Released())

	cleaner.cleanups[0]()
	assert.True(t, rc.Released())
}
