// Package hg provides a client for Mercurial repositories that runs the hg
// command line tool.
//
// The results of hg commands are classified by searching their output for
// the messages hg prints when an operation is aborted. Failures are
// returned as *CommandError values wrapping one of the sentinel errors of
// the package, they can be checked with errors.Is().
package hg

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/logfields"
)

const loggerName = "hg"

// DefaultExecutable is the hg executable that is used when none is configured.
const DefaultExecutable = "hg"

// DefaultCommandTimeout is the max. duration an hg command can run.
const DefaultCommandTimeout = 5 * time.Minute

// Client runs hg commands in a working copy.
type Client struct {
	executable string
	dir        string
	env        []string
	timeout    time.Duration
	logger     *zap.Logger
}

type Option func(*Client)

// WithExecutable sets the path of the hg executable.
func WithExecutable(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.executable = path
		}
	}
}

// WithEnv sets additional environment variables, in the form key=value, that
// are passed to hg.
func WithEnv(env ...string) Option {
	return func(c *Client) {
		c.env = append(c.env, env...)
	}
}

// WithCommandTimeout sets the max. duration of a single hg command.
func WithCommandTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New returns a client operating on the working copy in dir.
func New(dir string, opts ...Option) *Client {
	c := Client{
		executable: DefaultExecutable,
		dir:        dir,
		// HGPLAIN disables user configuration that changes the output
		// format, like localization and colors.
		env:     []string{"HGPLAIN=1"},
		timeout: DefaultCommandTimeout,
	}

	for _, opt := range opts {
		opt(&c)
	}

	c.logger = zap.L().Named(loggerName).With(logfields.WorkingDir(dir))

	return &c
}

// Dir returns the path of the working copy.
func (c *Client) Dir() string {
	return c.dir
}

// exec runs the hg command and classifies its output with classify.
// The output of the command is returned also when an error happened.
func (c *Client) exec(ctx context.Context, classify classifier, args ...string) (string, error) {
	result, err := c.run(ctx, args...)
	if err != nil {
		metrics.commandFinished(args[0], resultLabelError, result.Duration)
		return result.RelevantOutput(), err
	}

	output := result.RelevantOutput()
	if classErr := classify(output); classErr != nil {
		metrics.commandFinished(args[0], resultLabelFailure, result.Duration)

		return output, &CommandError{
			Args:   args,
			Output: output,
			Err:    classErr,
		}
	}

	metrics.commandFinished(args[0], resultLabelSuccess, result.Duration)

	return output, nil
}

// ListBranches returns all branches of the repository (hg branches).
// Lines of the output that can not be parsed are logged and skipped.
func (c *Client) ListBranches(ctx context.Context) (BranchList, error) {
	out, err := c.exec(ctx, classifyAbort, "branches")
	if err != nil {
		return nil, err
	}

	branches, parseErrs := ParseBranches(out)
	for _, perr := range parseErrs {
		c.logger.Warn(
			"skipping unparseable line in branch list",
			logfields.Event("hg_branch_line_unparseable"),
			zap.Error(perr),
		)
	}

	return branches, nil
}

// CurrentBranch returns the name of the branch of the working directory.
func (c *Client) CurrentBranch(ctx context.Context) (string, error) {
	out, err := c.exec(ctx, classifyAbort, "branch")
	if err != nil {
		return "", err
	}

	branch := strings.TrimSpace(out)
	if branch == "" {
		return "", &CommandError{
			Args:  []string{"branch"},
			Err:   ErrOperationAborted,
			Cause: errors.New("hg returned an empty branch name"),
		}
	}

	return branch, nil
}

// Update updates the working directory to target.
// If target does not exist ErrUnknownRevision is returned.
func (c *Client) Update(ctx context.Context, target string) error {
	_, err := c.exec(ctx, classifyUpdate, "update", target)
	return err
}

// UpdateClean updates the working directory to target and discards
// uncommitted changes, including an uncommitted merge.
func (c *Client) UpdateClean(ctx context.Context, target string) error {
	_, err := c.exec(ctx, classifyUpdate, "update", "--clean", target)
	return err
}

// Commit commits the changes in the working directory.
// If there are no changes ErrNothingToCommit is returned.
func (c *Client) Commit(ctx context.Context, message string) error {
	_, err := c.exec(ctx, classifyCommit, "commit", "-m", message)
	return err
}

// Merge merges revision into the working directory.
// The result is not committed.
// If revision is already an ancestor of the working directory
// ErrMergeHasNoEffect is returned.
func (c *Client) Merge(ctx context.Context, revision string) (string, error) {
	return c.exec(ctx, classifyMerge, "merge", revision)
}

// Push pushes the given branches to the default remote repository.
// If no branches are passed, all outgoing changes are pushed.
func (c *Client) Push(ctx context.Context, branches ...string) (string, error) {
	args := make([]string, 0, 1+2*len(branches))
	args = append(args, "push")

	for _, b := range branches {
		args = append(args, "-b", b)
	}

	return c.exec(ctx, classifyPush, args...)
}

// Pull pulls changes from the default remote repository.
// The working directory is not updated.
func (c *Client) Pull(ctx context.Context) (string, error) {
	return c.exec(ctx, classifyAbort, "pull")
}
