package workflow

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/hg"
	"github.com/simplesurance/mergekeeper/internal/ledger"
	"github.com/simplesurance/mergekeeper/internal/logfields"
	"github.com/simplesurance/mergekeeper/internal/releasebranch"
)

// DefaultMaxConsecutiveMisses is the number of consecutive release branch
// slots that can be missing before the walk ends.
const DefaultMaxConsecutiveMisses = 5

// WalkResult summarizes an upmerge walk.
type WalkResult struct {
	// Merged are the branches the change was merged and committed into, in
	// walk order.
	Merged []string
	// AlreadyIntegrated are the branches that already contained the change.
	AlreadyIntegrated []string
	// Failed are the branches that exist but could not be merged.
	Failed []string
	// Misses is the number of slots that were skipped, including the
	// trailing ones that ended the walk.
	Misses int
}

// Upmerger merges a change from a release branch forward into all newer
// release branches.
type Upmerger struct {
	vcs       VCS
	maxMisses int
	logger    *zap.Logger
}

type UpmergerOption func(*Upmerger)

// WithMaxConsecutiveMisses sets after how many consecutive missing or failed
// release branches the walk ends.
func WithMaxConsecutiveMisses(n int) UpmergerOption {
	return func(u *Upmerger) {
		if n > 0 {
			u.maxMisses = n
		}
	}
}

func NewUpmerger(vcs VCS, opts ...UpmergerOption) *Upmerger {
	u := Upmerger{
		vcs:       vcs,
		maxMisses: DefaultMaxConsecutiveMisses,
		logger:    zap.L().Named("upmerger"),
	}

	for _, opt := range opts {
		opt(&u)
	}

	return &u
}

func upmergeCommitMsg(target, source string) string {
	return fmt.Sprintf("[mergekeeper] Upmerge %s with %s", target, source)
}

type stepResult int

const (
	stepMerged stepResult = iota
	stepAlreadyIntegrated
	stepMissing
	stepFailed
)

// Run walks the release branches following start in sequence order and
// merges into each existing one the newest branch that is known to contain
// the change, beginning with start.
// Every successfully merged branch is appended to the push list of the
// ledger.
//
// The set of existing branches is retrieved once at the beginning. The walk
// ends when the configured number of consecutive slots were missing or
// failed. Failures of individual branches are logged and recorded in the
// result, an error is only returned when the branches can not be listed,
// the ledger can not be written or ctx is cancelled.
func (u *Upmerger) Run(
	ctx context.Context,
	l *ledger.Ledger,
	start releasebranch.Cursor,
	featureBranch string,
) (*WalkResult, error) {
	var result WalkResult

	logger := u.logger.With(
		logfields.BuildID(l.BuildID()),
		logfields.FeatureBranch(featureBranch),
		zap.String("upmerge.start_branch", start.String()),
	)

	snapshot, err := u.vcs.ListBranches(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing branches failed: %w", err)
	}

	logger.Debug(
		"retrieved branches",
		logfields.Event("upmerge_branches_retrieved"),
		zap.Strings("branches", snapshot.Names()),
	)

	source := start.Copy()
	target := start.Copy()
	target.Next()

	var misses int
	for misses < u.maxMisses {
		if err := ctx.Err(); err != nil {
			return &result, err
		}

		targetName := target.String()
		stepLogger := logger.With(
			logfields.TargetBranch(targetName),
			logfields.SourceBranch(source.String()),
		)

		if !snapshot.Contains(targetName) {
			misses++
			result.Misses++
			metrics.upmergeStep(resultLabelMissing)

			stepLogger.Debug(
				"release branch does not exist, skipping",
				logfields.Event("upmerge_branch_missing"),
				zap.Int("consecutive_misses", misses),
			)

			target.Next()
			continue
		}

		res, err := u.step(ctx, stepLogger, source.String(), targetName)
		if err != nil {
			return &result, err
		}

		switch res {
		case stepMerged:
			if err := l.AppendToPush(ctx, targetName); err != nil {
				return &result, err
			}

			result.Merged = append(result.Merged, targetName)
			misses = 0
			source = target.Copy()
			metrics.upmergeStep(resultLabelMerged)

		case stepAlreadyIntegrated:
			result.AlreadyIntegrated = append(result.AlreadyIntegrated, targetName)
			source = target.Copy()
			metrics.upmergeStep(resultLabelAlreadyIntegrated)

		case stepMissing:
			misses++
			result.Misses++
			metrics.upmergeStep(resultLabelMissing)

		case stepFailed:
			misses++
			result.Misses++
			result.Failed = append(result.Failed, targetName)
			metrics.upmergeStep(resultLabelFailure)
		}

		target.Next()
	}

	logger.Info(
		"upmerge finished",
		logfields.Event("upmerge_finished"),
		zap.Strings("upmerge.merged", result.Merged),
		zap.Strings("upmerge.already_integrated", result.AlreadyIntegrated),
		zap.Strings("upmerge.failed", result.Failed),
		zap.Int("upmerge.misses", result.Misses),
	)

	return &result, nil
}

// step merges source into target.
// An error is only returned when ctx was cancelled.
func (u *Upmerger) step(ctx context.Context, logger *zap.Logger, source, target string) (stepResult, error) {
	if err := u.vcs.Update(ctx, target); err != nil {
		if ctx.Err() != nil {
			return stepFailed, ctx.Err()
		}

		if errors.Is(err, hg.ErrUnknownRevision) {
			logger.Info(
				"release branch vanished, skipping",
				logfields.Event("upmerge_branch_missing"),
				zap.Error(err),
			)

			return stepMissing, nil
		}

		logger.Error(
			"updating to release branch failed",
			logfields.Event("upmerge_update_failed"),
			zap.Error(err),
		)

		return stepFailed, nil
	}

	if _, err := u.vcs.Merge(ctx, source); err != nil {
		if ctx.Err() != nil {
			return stepFailed, ctx.Err()
		}

		if errors.Is(err, hg.ErrMergeHasNoEffect) {
			logger.Info(
				"release branch already contains the change",
				logfields.Event("upmerge_already_integrated"),
			)

			return stepAlreadyIntegrated, nil
		}

		logger.Error(
			"merging into release branch failed",
			logfields.Event("upmerge_merge_failed"),
			zap.Error(err),
		)

		u.discardChanges(ctx, logger, target)

		return stepFailed, nil
	}

	if err := u.vcs.Commit(ctx, upmergeCommitMsg(target, source)); err != nil {
		if ctx.Err() != nil {
			return stepFailed, ctx.Err()
		}

		if errors.Is(err, hg.ErrNothingToCommit) {
			logger.Info(
				"merge produced no changes, nothing committed",
				logfields.Event("upmerge_already_integrated"),
			)

			return stepAlreadyIntegrated, nil
		}

		logger.Error(
			"committing merge failed",
			logfields.Event("upmerge_commit_failed"),
			zap.Error(err),
		)

		u.discardChanges(ctx, logger, target)

		return stepFailed, nil
	}

	logger.Info(
		"change merged into release branch",
		logfields.Event("upmerge_merged"),
	)

	return stepMerged, nil
}

func (u *Upmerger) discardChanges(ctx context.Context, logger *zap.Logger, target string) {
	if err := u.vcs.UpdateClean(ctx, target); err != nil {
		logger.Warn(
			"discarding uncommitted merge failed",
			logfields.Event("upmerge_update_clean_failed"),
			zap.Error(err),
		)
	}
}
