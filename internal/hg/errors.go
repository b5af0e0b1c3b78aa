package hg

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownRevision is returned when the revision or branch does not
	// exist in the repository.
	ErrUnknownRevision = errors.New("unknown revision")
	// ErrMergeHasNoEffect is returned when merging a revision that is an
	// ancestor of the working directory.
	ErrMergeHasNoEffect = errors.New("merge has no effect")
	// ErrNothingToCommit is returned when a commit is attempted without
	// changes in the working directory.
	ErrNothingToCommit = errors.New("nothing to commit")
	// ErrCreatesNewRemoteHead is returned when a push was rejected because
	// it would create a new head in the remote repository.
	ErrCreatesNewRemoteHead = errors.New("push creates new remote head")
	// ErrOperationAborted is returned for all other failed operations.
	ErrOperationAborted = errors.New("operation aborted")
)

// CommandError describes a failed hg command.
// It wraps one of the sentinel errors of the package and, if it exists, the
// error that caused the command to fail.
type CommandError struct {
	Args   []string
	Output string
	Err    error
	Cause  error
}

func (e *CommandError) Error() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "hg %s: %s", strings.Join(e.Args, " "), e.Err)
	if e.Cause != nil {
		fmt.Fprintf(&sb, ": %s", e.Cause)
	}

	if out := strings.TrimSpace(e.Output); out != "" {
		fmt.Fprintf(&sb, ", output: %q", out)
	}

	return sb.String()
}

func (e *CommandError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}

	return []error{e.Err, e.Cause}
}
