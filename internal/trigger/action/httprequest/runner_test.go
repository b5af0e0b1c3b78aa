package httprequest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplesurance/mergekeeper/internal/mkerr"
)

func identity(s string) (string, error) {
	return s, nil
}

func newTestRunner(t *testing.T, m map[string]any) *Runner {
	t.Helper()

	cfg, err := NewConfigFromMap(m, WithHTTPClient(&http.Client{Transport: &http.Transport{DisableKeepAlives: true}}))
	require.NoError(t, err)

	runner, err := cfg.Render(identity)
	require.NoError(t, err)

	return runner.(*Runner)
}

func TestRunSendsRequest(t *testing.T) {
	var (
		gotMethod, gotBody, gotHeader string
		gotUser, gotPassword         string
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotMethod = r.Method
		gotBody = string(body)
		gotHeader = r.Header.Get("Content-Type")
		gotUser, gotPassword, _ = r.BasicAuth()
	}))
	defer srv.Close()

	runner := newTestRunner(t, map[string]any{
		"url":      srv.URL,
		"method":   "put",
		"user":     "jenkins",
		"password": "secret",
		"data":     `{"case": 42}`,
		"headers":  map[string]any{"Content-Type": "application/json"},
	})

	require.NoError(t, runner.Run(context.Background()))
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, `{"case": 42}`, gotBody)
	assert.Equal(t, "application/json", gotHeader)
	assert.Equal(t, "jenkins", gotUser)
	assert.Equal(t, "secret", gotPassword)
}

func TestRunErrorClassification(t *testing.T) {
	tcs := []struct {
		status    int
		retryable bool
	}{
		{status: http.StatusBadRequest, retryable: false},
		{status: http.StatusNotFound, retryable: false},
		{status: http.StatusBadGateway, retryable: true},
		{status: http.StatusServiceUnavailable, retryable: true},
	}

	for _, tc := range tcs {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "no", tc.status)
			}))
			defer srv.Close()

			err := newTestRunner(t, map[string]any{"url": srv.URL}).Run(context.Background())
			require.Error(t, err)

			var httpErr *ErrorHTTPRequest
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, tc.status, httpErr.Status)

			var retryErr *mkerr.RetryableError
			assert.Equal(t, tc.retryable, errors.As(err, &retryErr))
		})
	}
}

func TestRunConnectionErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := newTestRunner(t, map[string]any{"url": url}).Run(context.Background())

	var retryErr *mkerr.RetryableError
	assert.ErrorAs(t, err, &retryErr)
}

func TestNewConfigFromMapValidation(t *testing.T) {
	_, err := NewConfigFromMap(map[string]any{})
	assert.Error(t, err)

	_, err = NewConfigFromMap(map[string]any{"url": 5})
	assert.Error(t, err)

	_, err = NewConfigFromMap(map[string]any{"url": "http://localhost", "headers": map[string]any{"X": 1}})
	assert.Error(t, err)

	cfg, err := NewConfigFromMap(map[string]any{"url": "http://localhost"})
	require.NoError(t, err)
	assert.Equal(t, "httprequest: POST to http://localhost", cfg.String())
}

func TestRenderDoesNotModifyConfig(t *testing.T) {
	cfg, err := NewConfigFromMap(map[string]any{
		"url":     "http://localhost/{{ .ID }}",
		"headers": map[string]any{"X-ID": "{{ .ID }}"},
	})
	require.NoError(t, err)

	_, err = cfg.Render(func(string) (string, error) { return "rendered", nil })
	require.NoError(t, err)

	assert.Equal(t, "http://localhost/{{ .ID }}", cfg.url)
	assert.Equal(t, "{{ .ID }}", cfg.headers["X-ID"])
}

func TestDetailedStringHidesSecrets(t *testing.T) {
	cfg, err := NewConfigFromMap(map[string]any{
		"url":      "http://localhost",
		"password": "secret",
		"headers":  map[string]any{"Authorization": "Bearer abc"},
	})
	require.NoError(t, err)

	s := cfg.DetailedString()
	assert.NotContains(t, s, "secret")
	assert.NotContains(t, s, "Bearer abc")
	assert.Contains(t, s, "password: "+maskedStr)
}
