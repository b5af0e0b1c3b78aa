// Package fogbugz provides a tracker.CaseLookup implementation for the
// FogBugz XML API.
package fogbugz

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dghubble/sling"
	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/logfields"
	"github.com/simplesurance/mergekeeper/internal/mkerr"
	"github.com/simplesurance/mergekeeper/internal/tracker"
)

const DefaultHTTPClientTimeout = time.Minute

const loggerName = "fogbugz_client"

const apiPath = "api.asp"

var fixedCols = []string{"ixBug", "tags", "fOpen", "sTitle", "ixPersonOpenedBy", "ixPersonAssignedTo"}

// Config configures the client.
type Config struct {
	URL   string
	Token string
	// The names of the custom fields that store the branches of a case.
	FeatureBranchField  string
	OriginalBranchField string
	TargetBranchField   string
	// DefaultAssignee is the ID of the person cases are assigned to by
	// AssignToMergekeepers.
	DefaultAssignee string
}

func (c *Config) validate() error {
	if c.URL == "" {
		return errors.New("url is empty")
	}

	if c.FeatureBranchField == "" || c.OriginalBranchField == "" || c.TargetBranchField == "" {
		return errors.New("feature, original and target branch field names must be set")
	}

	return nil
}

// Client retrieves and stores cases via the FogBugz API.
// Transient errors are wrapped in a mkerr.RetryableError.
type Client struct {
	cfg    Config
	sling  *sling.Sling
	logger *zap.Logger
}

var _ tracker.CaseLookup = &Client{}

type Option func(*Client)

// WithHTTPClient sets the http client that is used to send requests.
func WithHTTPClient(clt *http.Client) Option {
	return func(c *Client) {
		c.sling = c.sling.Client(clt)
	}
}

func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid fogbugz configuration: %w", err)
	}

	if !strings.HasSuffix(cfg.URL, "/") {
		cfg.URL += "/"
	}

	clt := Client{
		cfg: cfg,
		sling: sling.New().
			Client(&http.Client{Timeout: DefaultHTTPClientTimeout}).
			Base(cfg.URL).
			Path(apiPath).
			ResponseDecoder(xmlDecoder{}),
		logger: zap.L().Named(loggerName),
	}

	for _, opt := range opts {
		opt(&clt)
	}

	return &clt, nil
}

type searchParams struct {
	Token string `url:"token"`
	Cmd   string `url:"cmd"`
	Query string `url:"q"`
	Cols  string `url:"cols"`
}

type saveParams struct {
	Token      string `url:"token"`
	Cmd        string `url:"cmd"`
	ID         int    `url:"ixBug,omitempty"`
	Title      string `url:"sTitle,omitempty"`
	AssignedTo string `url:"ixPersonAssignedTo,omitempty"`
	OpenedBy   string `url:"ixPersonOpenedBy,omitempty"`
	Tags       string `url:"sTags,omitempty"`
	Event      string `url:"sEvent,omitempty"`
}

func (c *Client) cols() string {
	cols := append([]string{}, fixedCols...)
	cols = append(cols, c.cfg.FeatureBranchField, c.cfg.OriginalBranchField, c.cfg.TargetBranchField)

	return strings.Join(cols, ",")
}

// CaseByID retrieves the case with the id.
// If the case does not exist tracker.ErrCaseNotFound is returned, all
// other failures wrap tracker.ErrCaseLookupFailed.
func (c *Client) CaseByID(ctx context.Context, id int) (*tracker.Case, error) {
	logger := c.logger.With(logfields.CaseID(id))

	params := searchParams{
		Token: c.cfg.Token,
		Cmd:   "search",
		Query: strconv.Itoa(id),
		Cols:  c.cols(),
	}

	doc, err := c.do(ctx, c.sling.New().Get("").QueryStruct(&params), nil)
	if err != nil {
		return nil, fmt.Errorf("fetching case %d: %w", id, err)
	}

	if doc.CaseCount == 0 {
		return nil, fmt.Errorf("%w: %d", tracker.ErrCaseNotFound, id)
	}

	result, err := c.caseFromDocument(id, doc)
	if err != nil {
		return nil, fmt.Errorf("%w: case %d: %w", tracker.ErrCaseLookupFailed, id, err)
	}

	logger.Debug("case retrieved", logfields.Event("fogbugz_case_retrieved"))

	return result, nil
}

func (c *Client) caseFromDocument(id int, doc *document) (*tracker.Case, error) {
	var err error
	result := tracker.Case{ID: id, Tags: doc.Tags}

	if result.Title, err = doc.field("sTitle"); err != nil {
		return nil, err
	}

	if result.OpenedBy, err = doc.field("ixPersonOpenedBy"); err != nil {
		return nil, err
	}

	if result.AssignedTo, err = doc.field("ixPersonAssignedTo"); err != nil {
		return nil, err
	}

	open, err := doc.field("fOpen")
	if err != nil {
		return nil, err
	}

	if result.IsOpen, err = strconv.ParseBool(open); err != nil {
		return nil, fmt.Errorf("fOpen field: %w", err)
	}

	if result.FeatureBranch, err = doc.field(c.cfg.FeatureBranchField); err != nil {
		return nil, err
	}

	if result.OriginalBranch, err = doc.field(c.cfg.OriginalBranchField); err != nil {
		return nil, err
	}

	if result.TargetBranch, err = doc.field(c.cfg.TargetBranchField); err != nil {
		return nil, err
	}

	return &result, nil
}

// SaveCase stores the case, comment is added as event to the case.
// If the ID of the case is 0, a new case is created.
func (c *Client) SaveCase(ctx context.Context, fbCase *tracker.Case, comment string) error {
	params := saveParams{
		Token:      c.cfg.Token,
		AssignedTo: fbCase.AssignedTo,
		OpenedBy:   fbCase.OpenedBy,
		Tags:       fbCase.TagsCSV(),
		Event:      comment,
	}

	if fbCase.ID == 0 {
		params.Cmd = "new"
		params.Title = fbCase.Title
	} else {
		params.Cmd = "edit"
		params.ID = fbCase.ID
	}

	custom := url.Values{}
	for field, val := range map[string]string{
		c.cfg.FeatureBranchField:  fbCase.FeatureBranch,
		c.cfg.OriginalBranchField: fbCase.OriginalBranch,
		c.cfg.TargetBranchField:   fbCase.TargetBranch,
	} {
		if val != "" {
			custom.Set(field, val)
		}
	}

	if _, err := c.do(ctx, c.sling.New().Get("").QueryStruct(&params), custom); err != nil {
		return fmt.Errorf("saving case %d: %w", fbCase.ID, err)
	}

	c.logger.Info(
		"case saved",
		logfields.Event("fogbugz_case_saved"),
		logfields.CaseID(fbCase.ID),
		zap.String("fogbugz_command", params.Cmd),
	)

	return nil
}

// AssignToMergekeepers assigns the case to the configured default assignee.
// The case is not saved.
func (c *Client) AssignToMergekeepers(fbCase *tracker.Case) {
	fbCase.AssignedTo = c.cfg.DefaultAssignee
}

// do sends the request built by s with the additional query parameters in
// extraQuery and decodes the response.
func (c *Client) do(ctx context.Context, s *sling.Sling, extraQuery url.Values) (*document, error) {
	req, err := s.Request()
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", tracker.ErrCaseLookupFailed, err)
	}

	if len(extraQuery) > 0 {
		q := req.URL.Query()
		for k, vals := range extraQuery {
			for _, v := range vals {
				q.Add(k, v)
			}
		}
		req.URL.RawQuery = q.Encode()
	}

	req = req.WithContext(ctx)

	var doc document
	resp, err := s.Do(req, &doc, nil)
	if err != nil {
		if resp == nil {
			return nil, mkerr.NewRetryableAnytimeError(fmt.Errorf("%w: %w", tracker.ErrCaseLookupFailed, err))
		}

		return nil, fmt.Errorf("%w: %w", tracker.ErrCaseLookupFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("%w: http request failed with status code %d", tracker.ErrCaseLookupFailed, resp.StatusCode)
		if resp.StatusCode >= 500 {
			return nil, mkerr.NewRetryableAnytimeError(err)
		}

		return nil, err
	}

	if doc.Fields == nil {
		return nil, fmt.Errorf("%w: empty response", tracker.ErrCaseLookupFailed)
	}

	if doc.Error != "" {
		return nil, fmt.Errorf("%w: api returned an error: %s", tracker.ErrCaseLookupFailed, doc.Error)
	}

	return &doc, nil
}
