package workflow

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/simplesurance/mergekeeper/internal/hg"
)

// fakeVCS simulates a repository where a single change is tracked per
// branch.
type fakeVCS struct {
	t *testing.T

	// hasChange contains all existing branches, the value is true if the
	// branch contains the change.
	hasChange map[string]bool
	current   string
	merging   string

	commits []string
	pushed  [][]string
}

func newFakeVCS(t *testing.T, branchesWithChange []string, branches ...string) *fakeVCS {
	f := fakeVCS{t: t, hasChange: map[string]bool{}}

	for _, b := range branches {
		f.hasChange[b] = false
	}

	for _, b := range branchesWithChange {
		f.hasChange[b] = true
	}

	return &f
}

func (f *fakeVCS) ListBranches(context.Context) (hg.BranchList, error) {
	var result hg.BranchList

	names := make([]string, 0, len(f.hasChange))
	for name := range f.hasChange {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		result = append(result, &hg.Branch{Name: name, Revision: i, Hash: fmt.Sprintf("%012x", i)})
	}

	return result, nil
}

func (f *fakeVCS) CurrentBranch(context.Context) (string, error) {
	return f.current, nil
}

func (f *fakeVCS) Pull(context.Context) (string, error) {
	return "", nil
}

func (f *fakeVCS) Update(_ context.Context, target string) error {
	if f.merging != "" {
		f.t.Errorf("update to %s with uncommitted merge of %s", target, f.merging)
	}

	if _, exists := f.hasChange[target]; !exists {
		return fmt.Errorf("%w: %s", hg.ErrUnknownRevision, target)
	}

	f.current = target

	return nil
}

func (f *fakeVCS) UpdateClean(_ context.Context, target string) error {
	f.merging = ""
	f.current = target
	return nil
}

func (f *fakeVCS) Merge(_ context.Context, revision string) (string, error) {
	if f.hasChange[f.current] && f.hasChange[revision] {
		return "", hg.ErrMergeHasNoEffect
	}

	f.merging = revision

	return "", nil
}

func (f *fakeVCS) Commit(_ context.Context, message string) error {
	if f.merging == "" {
		return hg.ErrNothingToCommit
	}

	if f.hasChange[f.merging] {
		f.hasChange[f.current] = true
	}

	f.merging = ""
	f.commits = append(f.commits, message)

	return nil
}

func (f *fakeVCS) Push(_ context.Context, branches ...string) (string, error) {
	f.pushed = append(f.pushed, branches)
	return "", nil
}
