package httpx_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinpulse/internal/httpx"
)

func TestGetJSON(t *testing.T) {
	t.Parallel()

	// Arrange
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "coinpulse/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		_, _ = w.Write([]byte(`{"value":"42"}`))
	}))
	defer srv.Close()

	c := httpx.New(2 * time.Second)
	c.Headers = map[string]string{"X-Test": "yes"}

	// Act
	var out struct {
		Value string `json:"value"`
	}
	err := c.GetJSON(t.Context(), srv.URL, &out)

	// Assert
	require.NoError(t, err)
	require.Equal(t, "42", out.Value)
}

func TestGetJSONStatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	var out map[string]any
	err := httpx.New(time.Second).GetJSON(t.Context(), srv.URL, &out)

	var se *httpx.StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusTooManyRequests, se.Code)
	require.Contains(t, se.Error(), "slow down")
}

func TestGetJSONDecodeError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	var out map[string]any
	err := httpx.New(time.Second).GetJSON(t.Context(), srv.URL, &out)
	require.ErrorContains(t, err, "decoding response")
}
