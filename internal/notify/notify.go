// Package notify reports the result of a build to the case in the issue
// tracker that the build was for.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig"
	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/ledger"
	"github.com/simplesurance/mergekeeper/internal/logfields"
	"github.com/simplesurance/mergekeeper/internal/releasebranch"
	"github.com/simplesurance/mergekeeper/internal/tracker"
)

const (
	DefaultSuccessTemplate = "mergekeeper reports that the build was successful!" +
		"{{ with .mergedWith }}\nUpmerged: {{ . }}{{ end }}" +
		"\nView extended result here: {{ .url }}"

	DefaultFailureTemplate = "mergekeeper reports that the build has {{ .testsFailed }} failed tests :(" +
		"\nView extended result here: {{ .url }}"
)

// BuildResultSuccess is the build result for which the success template is
// rendered, all other results use the failure template.
const BuildResultSuccess = "SUCCESS"

const unknownTestCount = "unknown"

// BranchReader returns the currently checked out branch.
type BranchReader interface {
	CurrentBranch(ctx context.Context) (string, error)
}

// Build describes the finished build that is reported.
type Build struct {
	URL    string
	Number string
	Result string
	// CaseID is the case the build is for, if it is 0 the case is
	// determined from the feature branch.
	CaseID int
	// The test counts are nil when they are unknown.
	TestsFailed  *int
	TestsSkipped *int
	TestsTotal   *int
}

// Notifier posts a rendered build report as comment to a case and assigns
// the case back to its opener.
type Notifier struct {
	vcs     BranchReader
	cases   tracker.CaseLookup
	success *template.Template
	failure *template.Template
	ttl     time.Duration
	logger  *zap.Logger
}

type Option func(*options)

type options struct {
	successTmpl string
	failureTmpl string
	ttl         time.Duration
}

// WithTemplates sets the templates that are rendered as case comment.
// Empty strings keep the defaults.
func WithTemplates(success, failure string) Option {
	return func(o *options) {
		if success != "" {
			o.successTmpl = success
		}

		if failure != "" {
			o.failureTmpl = failure
		}
	}
}

// WithLedgerTTL sets the time-to-live that is applied to the ledger entries
// of the build.
func WithLedgerTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.ttl = ttl
	}
}

func New(vcs BranchReader, cases tracker.CaseLookup, opts ...Option) (*Notifier, error) {
	o := options{
		successTmpl: DefaultSuccessTemplate,
		failureTmpl: DefaultFailureTemplate,
		ttl:         ledger.DefaultTTL,
	}

	for _, opt := range opts {
		opt(&o)
	}

	success, err := template.New("success").Funcs(sprig.TxtFuncMap()).Parse(o.successTmpl)
	if err != nil {
		return nil, fmt.Errorf("parsing success template failed: %w", err)
	}

	failure, err := template.New("failure").Funcs(sprig.TxtFuncMap()).Parse(o.failureTmpl)
	if err != nil {
		return nil, fmt.Errorf("parsing failure template failed: %w", err)
	}

	return &Notifier{
		vcs:     vcs,
		cases:   cases,
		success: success,
		failure: failure,
		ttl:     o.ttl,
		logger:  zap.L().Named("notifier"),
	}, nil
}

// caseID determines the case a build is for.
// The explicitly passed case id has precedence, then a checked out feature
// branch and then the feature branch that was recorded in the ledger.
// If none is found, 0 is returned.
func (n *Notifier) caseID(ctx context.Context, logger *zap.Logger, l *ledger.Ledger, b *Build) (int, error) {
	if b.CaseID > 0 {
		logger.Debug("using passed case id", logfields.Event("notify_case_id_passed"))
		return b.CaseID, nil
	}

	current, err := n.vcs.CurrentBranch(ctx)
	if err != nil {
		logger.Warn(
			"retrieving current branch failed, ignoring it",
			logfields.Event("notify_current_branch_failed"),
			zap.Error(err),
		)
	} else if f, err := releasebranch.ParseFeature(current); err == nil {
		logger.Debug(
			"current branch is a feature branch",
			logfields.Event("notify_case_id_from_current_branch"),
			logfields.Branch(current),
		)

		return f.CaseID, nil
	}

	recorded, err := l.OriginalBranch(ctx)
	if err != nil {
		return 0, err
	}

	if f, err := releasebranch.ParseFeature(recorded); err == nil {
		logger.Debug(
			"using feature branch recorded in the ledger",
			logfields.Event("notify_case_id_from_ledger"),
			logfields.Branch(recorded),
		)

		return f.CaseID, nil
	}

	return 0, nil
}

func countOrUnknown(v *int) string {
	if v == nil {
		return unknownTestCount
	}

	return strconv.Itoa(*v)
}

// Run reports the build result to the case of the build.
// It returns the id of the case that was updated, 0 is returned when no case
// could be determined, that is not an error.
func (n *Notifier) Run(ctx context.Context, l *ledger.Ledger, b *Build) (int, error) {
	logger := n.logger.With(logfields.BuildID(l.BuildID()))

	caseID, err := n.caseID(ctx, logger, l, b)
	if err != nil {
		return 0, err
	}

	if caseID == 0 {
		logger.Info(
			"build is not for a case, nothing to report",
			logfields.Event("notify_skipped"),
		)

		return 0, nil
	}

	logger = logger.With(logfields.CaseID(caseID))

	c, err := n.cases.CaseByID(ctx, caseID)
	if err != nil {
		return 0, err
	}

	c.AssignToOpener()

	merged, err := l.BranchesToPush(ctx)
	if err != nil {
		return 0, err
	}

	if err := l.Expire(ctx, n.ttl); err != nil {
		logger.Warn(
			"setting ttl of ledger entries failed",
			logfields.Event("notify_ledger_expire_failed"),
			zap.Error(err),
		)
	}

	tmpl := n.failure
	if strings.EqualFold(b.Result, BuildResultSuccess) {
		tmpl = n.success
	}

	var comment strings.Builder
	err = tmpl.Execute(&comment, map[string]interface{}{
		"url":          b.URL,
		"buildNumber":  b.Number,
		"buildResult":  b.Result,
		"testsFailed":  countOrUnknown(b.TestsFailed),
		"testsSkipped": countOrUnknown(b.TestsSkipped),
		"testsTotal":   countOrUnknown(b.TestsTotal),
		"mergedWith":   strings.Join(merged, ", "),
		"caseID":       caseID,
		"title":        c.Title,
	})
	if err != nil {
		return 0, fmt.Errorf("rendering %s template failed: %w", tmpl.Name(), err)
	}

	if err := n.cases.SaveCase(ctx, c, comment.String()); err != nil {
		return 0, err
	}

	logger.Info(
		"build result reported to case",
		logfields.Event("notify_reported"),
		zap.String("build.result", b.Result),
	)

	return caseID, nil
}
