package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/phux/apicheck/app"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/h2non/gock.v1"
)

const mockBaseURL = "http://api.test"

func TestClient_Send(t *testing.T) {
	type mockedResponse struct {
		statusCode int
		body       any
	}

	tests := []struct {
		name           string
		request        app.Request
		defaultHeaders app.HeaderKV
		mock           func() *gock.Request
		response       mockedResponse
		wantStatus     int
		wantBody       string
	}{
		{
			name:    "GET returns the body",
			request: app.Request{Method: app.MethodGet, Path: "/users/1"},
			mock: func() *gock.Request {
				return gock.New(mockBaseURL).Get("/users/1").MatchHeader("Accept", "application/json")
			},
			response:   mockedResponse{statusCode: 200, body: map[string]any{"id": 1}},
			wantStatus: 200,
			wantBody:   `{"id":1}`,
		},
		{
			name:    "non-2xx is an ordinary response",
			request: app.Request{Method: app.MethodGet, Path: "/users/999"},
			mock: func() *gock.Request {
				return gock.New(mockBaseURL).Get("/users/999")
			},
			response:   mockedResponse{statusCode: 404, body: map[string]any{}},
			wantStatus: 404,
			wantBody:   `{}`,
		},
		{
			name: "POST sends a JSON body",
			request: app.Request{
				Method: app.MethodPost,
				Path:   "/users",
				Body:   map[string]string{"name": "Matt Jones"},
			},
			mock: func() *gock.Request {
				return gock.New(mockBaseURL).
					Post("/users").
					MatchType("json").
					JSON(map[string]string{"name": "Matt Jones"})
			},
			response:   mockedResponse{statusCode: 201, body: map[string]any{"id": 11, "name": "Matt Jones"}},
			wantStatus: 201,
			wantBody:   `{"id":11,"name":"Matt Jones"}`,
		},
		{
			name: "raw JSON body is sent verbatim",
			request: app.Request{
				Method: app.MethodPatch,
				Path:   "/users/1",
				Body:   json.RawMessage(`{"name":"Partially Updated Name"}`),
			},
			mock: func() *gock.Request {
				return gock.New(mockBaseURL).
					Patch("/users/1").
					BodyString(`{"name":"Partially Updated Name"}`)
			},
			response:   mockedResponse{statusCode: 200, body: map[string]any{"id": 1}},
			wantStatus: 200,
			wantBody:   `{"id":1}`,
		},
		{
			name: "request headers win over default headers",
			request: app.Request{
				Method:  app.MethodDelete,
				Path:    "/users/1",
				Headers: app.HeaderKV{"X-Trace": "request"},
			},
			defaultHeaders: app.HeaderKV{"X-Trace": "default", "Authorization": "Bearer token"},
			mock: func() *gock.Request {
				return gock.New(mockBaseURL).
					Delete("/users/1").
					MatchHeader("X-Trace", "^request$").
					MatchHeader("Authorization", "Bearer token")
			},
			response:   mockedResponse{statusCode: 200, body: map[string]any{}},
			wantStatus: 200,
			wantBody:   `{}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer gock.Off()
			tt.mock().Reply(tt.response.statusCode).JSON(tt.response.body)

			client := app.NewClient(nil, 0, nil, nil)
			res, err := client.Send(context.Background(), mockBaseURL, tt.defaultHeaders, tt.request)

			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, res.Status)
			assert.JSONEq(t, tt.wantBody, string(res.Body))
			assert.True(t, gock.IsDone())
		})
	}
}

func TestClient_SendTransportError(t *testing.T) {
	defer gock.Off()
	gock.New(mockBaseURL).
		Get("/users").
		ReplyError(errors.New("connection refused"))

	recorder := app.NewRecorder(nil)
	client := app.NewClient(nil, 0, nil, recorder)
	res, err := client.Send(context.Background(), mockBaseURL, nil, app.Request{Method: app.MethodGet, Path: "/users"})

	assert.Nil(t, res)
	var transportErr *app.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, http.MethodGet, transportErr.Method)
	assert.Equal(t, mockBaseURL+"/users", transportErr.URL)
	assert.ErrorContains(t, err, "connection refused")
}

func TestClient_SendInvalidMethod(t *testing.T) {
	defer gock.Off()
	gock.New(mockBaseURL).Head("/users").Reply(200)

	client := app.NewClient(nil, 0, nil, nil)
	_, err := client.Send(context.Background(), mockBaseURL, nil, app.Request{Method: "HEAD", Path: "/users"})

	assert.ErrorIs(t, err, app.ErrInvalidMethod)
	assert.False(t, gock.IsDone(), "no request may leave the client")
}

func TestClient_SendCancelledContext(t *testing.T) {
	defer gock.Off()
	gock.New(mockBaseURL).Get("/users").Reply(200).JSON([]any{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := app.NewClient(nil, 1, nil, nil)
	_, err := client.Send(ctx, mockBaseURL, nil, app.Request{Method: app.MethodGet, Path: "/users"})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_SendTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	rc := app.AcquireT(t, app.NewFixture(app.FixtureOptions{
		BaseURL:   srv.URL,
		Timeout:   50 * time.Millisecond,
		Transport: srv.Client().Transport,
	}, nil, nil))

	_, err := rc.Get(context.Background(), "/users/1")

	var transportErr *app.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "GET", transportErr.Method)
	assert.Equal(t, srv.URL+"/users/1", transportErr.URL)

	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestClient_SendTruncatedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Length", "100")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id": 1,`))
	}))
	defer srv.Close()

	rc := app.AcquireT(t, app.NewFixture(app.FixtureOptions{BaseURL: srv.URL, Transport: srv.Client().Transport}, nil, nil))

	res, err := rc.Get(context.Background(), "/users/1")

	assert.Nil(t, res)
	var transportErr *app.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), "could not read response body")
}
