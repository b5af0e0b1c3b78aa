// Package workflow implements the build steps that integrate a feature
// branch into its target release branch and merge the change forward
// through the newer release branches.
package workflow

import (
	"context"

	"github.com/simplesurance/mergekeeper/internal/hg"
)

//go:generate mockgen -destination mocks/vcs.go . VCS

// VCS is the version control client the build steps operate on.
type VCS interface {
	ListBranches(ctx context.Context) (hg.BranchList, error)
	CurrentBranch(ctx context.Context) (string, error)
	Pull(ctx context.Context) (string, error)
	Update(ctx context.Context, target string) error
	UpdateClean(ctx context.Context, target string) error
	Merge(ctx context.Context, revision string) (string, error)
	Commit(ctx context.Context, message string) error
	Push(ctx context.Context, branches ...string) (string, error)
}

var (
	_ VCS = &hg.Client{}
	_ VCS = &hg.DryClient{}
)
