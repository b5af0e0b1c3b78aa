// Package tracker defines the cases of an issue tracker that mergekeeper
// operates on and the interface to look them up and update them.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCaseLookupFailed is returned when a case could not be retrieved or
	// stored.
	ErrCaseLookupFailed = errors.New("case lookup failed")
	// ErrCaseNotFound is returned when the tracker does not know the case.
	// It wraps ErrCaseLookupFailed.
	ErrCaseNotFound = fmt.Errorf("%w: case not found", ErrCaseLookupFailed)
	// ErrDataFormat is returned when a field of a case has an invalid format.
	ErrDataFormat = errors.New("invalid case data")
)

// FeatureBranchDelimiter separates the repository prefix from the branch
// name in the feature branch field of a case.
const FeatureBranchDelimiter = "#"

//go:generate mockgen -destination mocks/caselookup.go . CaseLookup

// CaseLookup retrieves and stores cases.
type CaseLookup interface {
	CaseByID(ctx context.Context, id int) (*Case, error)
	// SaveCase stores the case and adds comment to its history.
	// If the ID of the case is 0, a new case is created.
	SaveCase(ctx context.Context, c *Case, comment string) error
}

// Case is a ticket in the issue tracker.
type Case struct {
	ID         int
	Title      string
	OpenedBy   string
	AssignedTo string
	Tags       []string
	IsOpen     bool
	// FeatureBranch has the format <repository>#<branch>.
	FeatureBranch  string
	OriginalBranch string
	TargetBranch   string
}

func (c *Case) String() string {
	return fmt.Sprintf("case %d (%s)", c.ID, c.Title)
}

// FeatureBranchName returns the branch part of the FeatureBranch field.
// If the field does not contain the delimiter or the branch part is empty,
// ErrDataFormat is returned.
func (c *Case) FeatureBranchName() (string, error) {
	_, branch, found := strings.Cut(c.FeatureBranch, FeatureBranchDelimiter)
	if !found {
		return "", fmt.Errorf("%w: feature branch field of case %d (%q) does not contain the delimiter %q",
			ErrDataFormat, c.ID, c.FeatureBranch, FeatureBranchDelimiter)
	}

	branch = strings.TrimSpace(branch)
	if branch == "" {
		return "", fmt.Errorf("%w: feature branch field of case %d (%q) has an empty branch name",
			ErrDataFormat, c.ID, c.FeatureBranch)
	}

	return branch, nil
}

// AssignToOpener assigns the case to the person that opened it.
func (c *Case) AssignToOpener() {
	c.AssignedTo = c.OpenedBy
}

// AddTag adds tag to the case if it does not have it already.
func (c *Case) AddTag(tag string) {
	for _, t := range c.Tags {
		if t == tag {
			return
		}
	}

	c.Tags = append(c.Tags, tag)
}

// TagsCSV returns the tags as comma-separated list.
func (c *Case) TagsCSV() string {
	return strings.Join(c.Tags, ",")
}
