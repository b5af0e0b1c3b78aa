// Package httprequest provides an action that sends a HTTP request, e.g. to
// start a parametrized CI job.
package httprequest

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/maputils"
	"github.com/simplesurance/mergekeeper/internal/trigger/action"
)

const loggerName = "action.httprequest"

const maskedStr = "**hidden**"

// Config is the configuration of a HTTP-Request action.
// All fields can contain template strings.
type Config struct {
	url      string
	user     string
	password string
	method   string
	headers  map[string]string
	data     string
	client   *http.Client
	logger   *zap.Logger
}

// WithHTTPClient sets the client that is used by runners created from the
// config.
func WithHTTPClient(clt *http.Client) func(*Config) {
	return func(c *Config) {
		c.client = clt
	}
}

// NewConfigFromMap instantiates a config from a configuration map.
// The map is usually an unmarshaled action section of the configuration file.
func NewConfigFromMap(m map[string]any, opts ...func(*Config)) (*Config, error) {
	url, err := maputils.StrVal(m, "url")
	if err != nil {
		return nil, err
	}
	if url == "" {
		return nil, errors.New("url must be set")
	}

	user, err := maputils.StrVal(m, "user")
	if err != nil {
		return nil, err
	}

	password, err := maputils.StrVal(m, "password")
	if err != nil {
		return nil, err
	}

	data, err := maputils.StrVal(m, "data")
	if err != nil {
		return nil, err
	}

	method, err := maputils.StrVal(m, "method")
	if err != nil {
		return nil, err
	}

	if method == "" {
		method = http.MethodPost
	}

	strHeaders, err := maputils.StrMapVal(m, "headers")
	if err != nil {
		return nil, err
	}

	cfg := Config{
		url:      url,
		user:     user,
		password: password,
		headers:  strHeaders,
		method:   strings.ToUpper(method),
		data:     data,
		logger:   zap.L().Named(loggerName),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg, nil
}

// Render runs fn on all configuration options, fn must replace the template
// strings.
// It returns an executable action that uses the templated config.
func (c *Config) Render(fn func(string) (string, error)) (action.Runner, error) {
	var err error
	newConfig := *c

	newConfig.url, err = fn(c.url)
	if err != nil {
		return nil, fmt.Errorf("templating url failed: %w", err)
	}

	newConfig.method, err = fn(c.method)
	if err != nil {
		return nil, fmt.Errorf("templating method failed: %w", err)
	}

	if c.user != "" {
		newConfig.user, err = fn(c.user)
		if err != nil {
			return nil, fmt.Errorf("templating user failed: %w", err)
		}
	}

	if c.password != "" {
		newConfig.password, err = fn(c.password)
		if err != nil {
			return nil, fmt.Errorf("templating password failed: %w", err)
		}
	}

	if c.data != "" {
		newConfig.data, err = fn(c.data)
		if err != nil {
			return nil, fmt.Errorf("templating data failed: %w", err)
		}
	}

	newConfig.headers = make(map[string]string, len(c.headers))
	for k, v := range c.headers {
		newConfig.headers[k], err = fn(v)
		if err != nil {
			return nil, fmt.Errorf("templating header %q failed: %w", k, err)
		}
	}

	return NewRunner(&newConfig), nil
}

func (c *Config) String() string {
	return fmt.Sprintf("httprequest: %s to %s", c.method, c.url)
}

func (c *Config) DetailedString() string {
	var result strings.Builder

	result.WriteString("http-request:\n")
	result.WriteString(fmt.Sprintf("  url: %s\n", c.url))
	result.WriteString(fmt.Sprintf("  method: %s\n", c.method))
	if c.user != "" {
		result.WriteString("  user: " + maskedStr + "\n")
	}

	if c.password != "" {
		result.WriteString("  password: " + maskedStr + "\n")
	}

	if c.data != "" {
		result.WriteString("  data: " + maskedStr + "\n")
	}

	if len(c.headers) == 0 {
		return result.String()
	}

	result.WriteString("  headers:\n")

	keys := make([]string, 0, len(c.headers))
	for k := range c.headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		result.WriteString(fmt.Sprintf("    %s: %s\n", k, maskedStr))
	}

	return result.String()
}
