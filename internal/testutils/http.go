// Package testutils holds helpers shared by the HTTP tests.
package testutils

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// RequestOption decorates a request built by ServeRequest.
type RequestOption func(req *http.Request)

func WithHeader(key, value string) RequestOption {
	return func(req *http.Request) {
		req.Header.Set(key, value)
	}
}

func WithBasicAuth(username, password string) RequestOption {
	return func(req *http.Request) {
		req.SetBasicAuth(username, password)
	}
}

func WithBearerToken(token string) RequestOption {
	return WithHeader("Authorization", "Bearer "+token)
}

// ServeRequest runs a request against handler and returns the recorded response.
func ServeRequest(t *testing.T, ctx context.Context, handler http.Handler, method, url string, body io.Reader, opts ...RequestOption) *httptest.ResponseRecorder {
	t.Helper()

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	require.NoError(t, err)
	for _, opt := range opts {
		opt(req)
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}
