package resilience_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dukaan-dev/backend-dukaan/internal/resilience"
)

func TestDoBodyReadableAfterAttemptReturns(t *testing.T) {
	payload := bytes.Repeat([]byte("country-data "), 1<<16)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	cl := resilience.HTTPClient{Client: &http.Client{}, MaxAttempts: 1, Timeout: time.Second}
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := cl.Do(context.Background(), req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	// Deliberately read well after the attempt's own context is gone.
	time.Sleep(20 * time.Millisecond)
	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "response body must stay readable after the attempt context ends")
	require.Equal(t, payload, got)
}

func TestDoSlowBodyCountsAgainstAttemptTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		time.Sleep(300 * time.Millisecond)
		_, _ = w.Write([]byte(`{"countryCode":"IN"}`))
	}))
	defer server.Close()

	cl := resilience.HTTPClient{Client: &http.Client{}, MaxAttempts: 1, Timeout: 30 * time.Millisecond}
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	_, err = cl.Do(context.Background(), req)
	require.Error(t, err, "a body that stalls past the attempt timeout must fail the attempt")
}
