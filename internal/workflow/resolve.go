package workflow

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/logfields"
	"github.com/simplesurance/mergekeeper/internal/releasebranch"
	"github.com/simplesurance/mergekeeper/internal/tracker"
)

// ErrNoFeatureBranch is returned when the case of a build can not be
// determined because neither a case id is given nor a feature branch is
// checked out.
var ErrNoFeatureBranch = errors.New("no feature branch to derive the case id from")

// Resolver determines the branches a build operates on from the build
// parameters and the case in the issue tracker.
type Resolver struct {
	vcs    VCS
	cases  tracker.CaseLookup
	logger *zap.Logger
}

func NewResolver(vcs VCS, cases tracker.CaseLookup) *Resolver {
	return &Resolver{
		vcs:    vcs,
		cases:  cases,
		logger: zap.L().Named("resolver"),
	}
}

// FeatureCaseID returns the id of the case a build is for.
// If caseID is positive it is returned. Otherwise the feature branch is
// nodeID when it is a feature branch name, or the currently checked out
// branch. The case id is the numeric part of the feature branch.
func (r *Resolver) FeatureCaseID(ctx context.Context, caseID int, nodeID string) (int, string, error) {
	if caseID > 0 {
		return caseID, "", nil
	}

	branch := nodeID
	if !releasebranch.IsFeature(branch) {
		var err error

		branch, err = r.vcs.CurrentBranch(ctx)
		if err != nil {
			return 0, "", fmt.Errorf("retrieving current branch failed: %w", err)
		}
	}

	feature, err := releasebranch.ParseFeature(branch)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %w", ErrNoFeatureBranch, err)
	}

	return feature.CaseID, branch, nil
}

// GateRequest looks up the case of the build and returns the request to
// merge its feature branch into its target branch.
func (r *Resolver) GateRequest(ctx context.Context, buildID string, caseID int, nodeID string) (*Request, *tracker.Case, error) {
	id, workingBranch, err := r.FeatureCaseID(ctx, caseID, nodeID)
	if err != nil {
		return nil, nil, err
	}

	c, err := r.cases.CaseByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	featureBranch, err := c.FeatureBranchName()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", c, err)
	}

	if c.TargetBranch == "" {
		return nil, nil, fmt.Errorf("%s: %w: target branch is empty", c, tracker.ErrDataFormat)
	}

	if workingBranch != "" && workingBranch != featureBranch {
		r.logger.Warn(
			"checked out branch differs from feature branch of the case",
			logfields.Event("feature_branch_mismatch"),
			logfields.CaseID(id),
			logfields.Branch(workingBranch),
			logfields.FeatureBranch(featureBranch),
		)
	}

	return &Request{
		BuildID:       buildID,
		FeatureBranch: featureBranch,
		TargetBranch:  c.TargetBranch,
	}, c, nil
}

// UpmergeStart returns the release branch an upmerge walk starts from.
// If startBranch is empty, the target branch of the case with caseID is
// used.
func (r *Resolver) UpmergeStart(
	ctx context.Context,
	scheme releasebranch.Scheme,
	startBranch string,
	caseID int,
) (releasebranch.Cursor, string, error) {
	var featureBranch string

	if startBranch == "" {
		if caseID <= 0 {
			return nil, "", errors.New("either a start branch or a case id must be given")
		}

		c, err := r.cases.CaseByID(ctx, caseID)
		if err != nil {
			return nil, "", err
		}

		featureBranch, err = c.FeatureBranchName()
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", c, err)
		}

		startBranch = c.TargetBranch
	}

	cursor, err := scheme.Parse(startBranch)
	if err != nil {
		return nil, "", fmt.Errorf("start branch: %w", err)
	}

	return cursor, featureBranch, nil
}
