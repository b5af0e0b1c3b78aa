// Package jira provides a tracker.CaseLookup implementation for Jira.
// A case with the numeric id N is the issue with the key <project>-N.
package jira

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	jira "github.com/andygrunwald/go-jira"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/simplesurance/mergekeeper/internal/logfields"
	"github.com/simplesurance/mergekeeper/internal/mkerr"
	"github.com/simplesurance/mergekeeper/internal/tracker"
)

const DefaultHTTPClientTimeout = time.Minute

const loggerName = "jira_client"

const statusCategoryDone = "done"

type Config struct {
	URL     string
	Project string
	// Username is used for basic authentication with Token as password.
	// If it is empty, Token is sent as bearer token.
	Username string
	Token    string
	// IDs of the custom fields that store the branches of a case,
	// e.g. customfield_10010.
	FeatureBranchField  string
	OriginalBranchField string
	TargetBranchField   string
	DefaultAssignee     string
	// Cloud must be set for Jira Cloud instances, users are identified by
	// their account id instead of their name.
	Cloud bool
}

func (c *Config) validate() error {
	if c.URL == "" {
		return errors.New("url is empty")
	}

	if c.Project == "" {
		return errors.New("project is empty")
	}

	if c.FeatureBranchField == "" || c.OriginalBranchField == "" || c.TargetBranchField == "" {
		return errors.New("feature, original and target branch field names must be set")
	}

	return nil
}

type Client struct {
	cfg    Config
	clt    *jira.Client
	logger *zap.Logger
}

var _ tracker.CaseLookup = &Client{}

type Option func(*options)

type options struct {
	httpClient *http.Client
}

// WithHTTPClient sets the http client that is used to send requests, it
// must handle authentication.
func WithHTTPClient(clt *http.Client) Option {
	return func(o *options) {
		o.httpClient = clt
	}
}

func New(cfg Config, opts ...Option) (*Client, error) {
	var o options

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid jira configuration: %w", err)
	}

	for _, opt := range opts {
		opt(&o)
	}

	if o.httpClient == nil {
		o.httpClient = newAuthenticatedHTTPClient(&cfg)
	}

	clt, err := jira.NewClient(o.httpClient, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("creating jira client failed: %w", err)
	}

	return &Client{
		cfg:    cfg,
		clt:    clt,
		logger: zap.L().Named(loggerName),
	}, nil
}

func newAuthenticatedHTTPClient(cfg *Config) *http.Client {
	if cfg.Username != "" {
		tp := jira.BasicAuthTransport{
			Username: cfg.Username,
			Password: cfg.Token,
		}

		clt := tp.Client()
		clt.Timeout = DefaultHTTPClientTimeout

		return clt
	}

	if cfg.Token == "" {
		return &http.Client{Timeout: DefaultHTTPClientTimeout}
	}

	tokenSrc := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	clt := oauth2.NewClient(context.Background(), tokenSrc)
	clt.Timeout = DefaultHTTPClientTimeout

	return clt
}

func (c *Client) issueKey(id int) string {
	return c.cfg.Project + "-" + strconv.Itoa(id)
}

func (c *Client) CaseByID(ctx context.Context, id int) (*tracker.Case, error) {
	key := c.issueKey(id)

	issue, resp, err := c.clt.Issue.GetWithContext(ctx, key, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", tracker.ErrCaseNotFound, key)
		}

		return nil, wrapErr(resp, fmt.Errorf("fetching issue %s: %w", key, err))
	}

	result, err := c.caseFromIssue(id, issue)
	if err != nil {
		return nil, fmt.Errorf("%w: issue %s: %w", tracker.ErrCaseLookupFailed, key, err)
	}

	c.logger.Debug(
		"issue retrieved",
		logfields.Event("jira_issue_retrieved"),
		logfields.CaseID(id),
		zap.String("jira.issue", key),
	)

	return result, nil
}

func (c *Client) caseFromIssue(id int, issue *jira.Issue) (*tracker.Case, error) {
	fields := issue.Fields
	if fields == nil {
		return nil, errors.New("issue has no fields")
	}

	result := tracker.Case{
		ID:     id,
		Title:  fields.Summary,
		IsOpen: true,
	}

	for _, label := range fields.Labels {
		result.AddTag(label)
	}

	if fields.Status != nil && fields.Status.StatusCategory.Key == statusCategoryDone {
		result.IsOpen = false
	}

	result.OpenedBy = c.userID(fields.Reporter)
	if result.OpenedBy == "" {
		result.OpenedBy = c.userID(fields.Creator)
	}
	result.AssignedTo = c.userID(fields.Assignee)

	var err error
	if result.FeatureBranch, err = customField(fields, c.cfg.FeatureBranchField); err != nil {
		return nil, err
	}

	if result.OriginalBranch, err = customField(fields, c.cfg.OriginalBranchField); err != nil {
		return nil, err
	}

	if result.TargetBranch, err = customField(fields, c.cfg.TargetBranchField); err != nil {
		return nil, err
	}

	return &result, nil
}

func (c *Client) userID(u *jira.User) string {
	if u == nil {
		return ""
	}

	if c.cfg.Cloud {
		return u.AccountID
	}

	return u.Name
}

func (c *Client) user(id string) *jira.User {
	if c.cfg.Cloud {
		return &jira.User{AccountID: id}
	}

	return &jira.User{Name: id}
}

// customField returns the string value of a custom field, a field that is
// part of the issue but has no value is returned as empty string.
func customField(fields *jira.IssueFields, name string) (string, error) {
	val, exists := fields.Unknowns[name]
	if !exists {
		return "", fmt.Errorf("issue does not contain the field %q", name)
	}

	switch v := val.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("field %q has unsupported type %T", name, val)
	}
}

// SaveCase updates the branch fields, labels and assignee of the issue and
// adds comment to it. When the ID of the case is 0 a new issue is created.
func (c *Client) SaveCase(ctx context.Context, fbCase *tracker.Case, comment string) error {
	if fbCase.ID == 0 {
		return c.createIssue(ctx, fbCase, comment)
	}

	key := c.issueKey(fbCase.ID)

	fields := map[string]interface{}{
		"labels": labels(fbCase),
	}

	for field, val := range map[string]string{
		c.cfg.FeatureBranchField:  fbCase.FeatureBranch,
		c.cfg.OriginalBranchField: fbCase.OriginalBranch,
		c.cfg.TargetBranchField:   fbCase.TargetBranch,
	} {
		if val != "" {
			fields[field] = val
		}
	}

	resp, err := c.clt.Issue.UpdateIssueWithContext(ctx, key, map[string]interface{}{"fields": fields})
	if err != nil {
		return wrapErr(resp, fmt.Errorf("updating issue %s: %w", key, err))
	}

	if fbCase.AssignedTo != "" {
		resp, err := c.clt.Issue.UpdateAssigneeWithContext(ctx, key, c.user(fbCase.AssignedTo))
		if err != nil {
			return wrapErr(resp, fmt.Errorf("updating assignee of issue %s: %w", key, err))
		}
	}

	if comment != "" {
		_, resp, err := c.clt.Issue.AddCommentWithContext(ctx, key, &jira.Comment{Body: comment})
		if err != nil {
			return wrapErr(resp, fmt.Errorf("adding comment to issue %s: %w", key, err))
		}
	}

	c.logger.Info(
		"issue saved",
		logfields.Event("jira_issue_saved"),
		logfields.CaseID(fbCase.ID),
		zap.String("jira.issue", key),
	)

	return nil
}

func (c *Client) createIssue(ctx context.Context, fbCase *tracker.Case, comment string) error {
	issue := jira.Issue{
		Fields: &jira.IssueFields{
			Project:     jira.Project{Key: c.cfg.Project},
			Type:        jira.IssueType{Name: "Task"},
			Summary:     fbCase.Title,
			Description: comment,
			Labels:      labels(fbCase),
		},
	}

	if fbCase.AssignedTo != "" {
		issue.Fields.Assignee = c.user(fbCase.AssignedTo)
	}

	created, resp, err := c.clt.Issue.CreateWithContext(ctx, &issue)
	if err != nil {
		return wrapErr(resp, fmt.Errorf("creating issue: %w", err))
	}

	c.logger.Info(
		"issue created",
		logfields.Event("jira_issue_created"),
		zap.String("jira.issue", created.Key),
	)

	return nil
}

func labels(fbCase *tracker.Case) []string {
	if fbCase.Tags == nil {
		return []string{}
	}

	return fbCase.Tags
}

func wrapErr(resp *jira.Response, err error) error {
	err = fmt.Errorf("%w: %w", tracker.ErrCaseLookupFailed, err)

	if resp == nil || resp.Response == nil || resp.StatusCode >= 500 {
		return mkerr.NewRetryableAnytimeError(err)
	}

	return err
}

// AssignToMergekeepers assigns the case to the configured default assignee.
// The case is not saved.
func (c *Client) AssignToMergekeepers(fbCase *tracker.Case) {
	fbCase.AssignedTo = c.cfg.DefaultAssignee
}
