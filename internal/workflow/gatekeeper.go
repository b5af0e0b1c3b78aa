package workflow

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/hg"
	"github.com/simplesurance/mergekeeper/internal/ledger"
	"github.com/simplesurance/mergekeeper/internal/logfields"
)

// Outcome is the result of a successful gatekeeper run.
type Outcome int

const (
	// OutcomeMerged means the feature branch was merged and committed into
	// the target branch.
	OutcomeMerged Outcome = iota
	// OutcomeAlreadyIntegrated means the target branch already contained
	// the feature branch, nothing was committed.
	OutcomeAlreadyIntegrated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMerged:
		return "merged"
	case OutcomeAlreadyIntegrated:
		return "already integrated"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Request describes which feature branch is integrated into which target
// branch.
type Request struct {
	BuildID       string
	FeatureBranch string
	TargetBranch  string
}

type GateResult struct {
	Outcome Outcome
}

// Gatekeeper merges a feature branch into its target branch and records the
// merge in the ledger of the build.
type Gatekeeper struct {
	vcs    VCS
	pull   bool
	logger *zap.Logger
}

type GatekeeperOption func(*Gatekeeper)

// WithPull configures if the remote changes are pulled before merging.
func WithPull(enabled bool) GatekeeperOption {
	return func(g *Gatekeeper) {
		g.pull = enabled
	}
}

func NewGatekeeper(vcs VCS, opts ...GatekeeperOption) *Gatekeeper {
	g := Gatekeeper{
		vcs:    vcs,
		pull:   true,
		logger: zap.L().Named("gatekeeper"),
	}

	for _, opt := range opts {
		opt(&g)
	}

	return &g
}

func gatekeeperCommitMsg(target, feature string) string {
	return fmt.Sprintf("[mergekeeper] Merge %s with %s", target, feature)
}

// Run merges the feature branch into the target branch and commits the
// result.
// When the target branch already contains the feature branch,
// OutcomeAlreadyIntegrated is returned and the ledger is not modified.
// All other failures are returned as error.
func (g *Gatekeeper) Run(ctx context.Context, l *ledger.Ledger, req *Request) (*GateResult, error) {
	logger := g.logger.With(
		logfields.BuildID(req.BuildID),
		logfields.FeatureBranch(req.FeatureBranch),
		logfields.TargetBranch(req.TargetBranch),
	)

	res, err := g.run(ctx, logger, l, req)
	if err != nil {
		metrics.gatekeeperRun(resultLabelFailure)
		logger.Error(
			"integrating feature branch failed",
			logfields.Event("gatekeeper_failed"),
			zap.Error(err),
		)

		return nil, err
	}

	if res.Outcome == OutcomeMerged {
		metrics.gatekeeperRun(resultLabelMerged)
	} else {
		metrics.gatekeeperRun(resultLabelAlreadyIntegrated)
	}

	return res, nil
}

func (g *Gatekeeper) run(ctx context.Context, logger *zap.Logger, l *ledger.Ledger, req *Request) (*GateResult, error) {
	if req.FeatureBranch == "" || req.TargetBranch == "" {
		return nil, errors.New("feature and target branch must be set")
	}

	if g.pull {
		if _, err := g.vcs.Pull(ctx); err != nil {
			return nil, fmt.Errorf("pulling changes failed: %w", err)
		}
	}

	if err := g.vcs.Update(ctx, req.TargetBranch); err != nil {
		return nil, fmt.Errorf("updating to target branch %s failed: %w", req.TargetBranch, err)
	}

	if _, err := g.vcs.Merge(ctx, req.FeatureBranch); err != nil {
		if errors.Is(err, hg.ErrMergeHasNoEffect) {
			logger.Info(
				"target branch already contains the feature branch, nothing merged",
				logfields.Event("gatekeeper_already_integrated"),
			)

			return &GateResult{Outcome: OutcomeAlreadyIntegrated}, nil
		}

		return nil, fmt.Errorf("merging %s into %s failed: %w", req.FeatureBranch, req.TargetBranch, err)
	}

	if err := g.vcs.Commit(ctx, gatekeeperCommitMsg(req.TargetBranch, req.FeatureBranch)); err != nil {
		if errors.Is(err, hg.ErrNothingToCommit) {
			logger.Info(
				"merge produced no changes, nothing committed",
				logfields.Event("gatekeeper_already_integrated"),
			)

			return &GateResult{Outcome: OutcomeAlreadyIntegrated}, nil
		}

		return nil, fmt.Errorf("committing merge of %s into %s failed: %w", req.FeatureBranch, req.TargetBranch, err)
	}

	if err := l.SetOriginalBranch(ctx, req.FeatureBranch); err != nil {
		return nil, err
	}

	if err := l.AppendToPush(ctx, req.TargetBranch); err != nil {
		return nil, err
	}

	logger.Info(
		"feature branch merged into target branch",
		logfields.Event("gatekeeper_merged"),
	)

	return &GateResult{Outcome: OutcomeMerged}, nil
}
