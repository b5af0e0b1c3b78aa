package httprequest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/logfields"
	"github.com/simplesurance/mergekeeper/internal/mkerr"
)

const DefaultHTTPClientTimeout = time.Minute

const maxLoggedBodyLen = 512

// Runner executes a http request.
type Runner struct {
	*Config
	client *http.Client
}

// NewRunner returns a new Runner struct.
// If the config has no http client, a client with a timeout of
// DefaultHTTPClientTimeout is used.
func NewRunner(cfg *Config) *Runner {
	clt := cfg.client
	if clt == nil {
		clt = &http.Client{Timeout: DefaultHTTPClientTimeout}
	}

	return &Runner{
		Config: cfg,
		client: clt,
	}
}

// Run sends the http request.
// Connection errors and responses with a 5xx status code are returned as
// mkerr.RetryableError, other non-2xx responses as ErrorHTTPRequest.
func (h *Runner) Run(ctx context.Context) error {
	logger := h.logger.With(h.LogFields()...)

	var body io.Reader
	if h.data != "" {
		body = strings.NewReader(h.data)
	}

	req, err := http.NewRequestWithContext(ctx, h.method, h.url, body)
	if err != nil {
		return err
	}

	if h.user != "" || h.password != "" {
		req.SetBasicAuth(h.user, h.password)
	}

	for k, v := range h.headers {
		req.Header.Add(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return mkerr.NewRetryableAnytimeError(err)
	}

	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Warn(
			"reading http response body failed",
			logfields.Event("http_request_reading_response_body_failed"),
			zap.Int("http_response_code", resp.StatusCode),
		)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := &ErrorHTTPRequest{
			Body:   respBody,
			Status: resp.StatusCode,
		}

		if resp.StatusCode >= 500 {
			return mkerr.NewRetryableAnytimeError(err)
		}

		return err
	}

	if len(respBody) > maxLoggedBodyLen {
		respBody = respBody[:maxLoggedBodyLen]
	}

	logger.Debug(
		fmt.Sprintf("http response: %s", string(respBody)),
		logfields.Event("http_request_sent"),
		zap.Int("http_response_code", resp.StatusCode),
	)

	return nil
}

// LogFields returns fields that should be used when logging messages related
// to the action.
func (h *Runner) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("action", "httprequest"),
		zap.String("http_url", h.url),
		zap.String("http_method", h.method),
	}
}
