package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/logfields"
	"github.com/simplesurance/mergekeeper/internal/workflow"
)

func newGatekeepCmd() *cobra.Command {
	var b buildArgs

	cmd := cobra.Command{
		Use:   "gatekeep",
		Short: "merge the feature branch of a case into its target branch",
		Long: `gatekeep merges the feature branch of the case into the target release
branch of the case and commits the merge. The target branch is recorded in
the merge ledger of the build to be pushed by the push command.
If neither --case nor a feature branch --node is passed, the case is derived
from the checked out branch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer pushMetrics("gatekeep")
			return runGatekeep(cmd.Context(), &b)
		},
	}

	b.registerBuildID(cmd.Flags())
	b.registerCaseID(cmd.Flags())
	b.registerNodeID(cmd.Flags())

	return &cmd
}

func runGatekeep(ctx context.Context, b *buildArgs) error {
	dir, err := workDir()
	if err != nil {
		return err
	}

	cases, err := newCaseLookup()
	if err != nil {
		return err
	}

	l, closeLedger, err := openLedger(b.buildID())
	if err != nil {
		return err
	}
	defer closeLedger()

	vcs := newVCS(dir)

	return withWorkspaceLock(ctx, dir, func() error {
		req, c, err := workflow.NewResolver(vcs, cases).GateRequest(ctx, l.BuildID(), b.CaseID, b.NodeID)
		if err != nil {
			return fmt.Errorf("determining branches to merge failed: %w", err)
		}

		logger.Info(
			"merging feature branch",
			logfields.Event("gatekeeper_starting"),
			logfields.BuildID(l.BuildID()),
			logfields.CaseID(c.ID),
			logfields.FeatureBranch(req.FeatureBranch),
			logfields.TargetBranch(req.TargetBranch),
			zap.String("case_title", c.Title),
		)

		res, err := workflow.NewGatekeeper(vcs, workflow.WithPull(config.Gatekeeper.PullEnabled())).Run(ctx, l, req)
		if err != nil {
			return err
		}

		if res.Outcome == workflow.OutcomeAlreadyIntegrated {
			return fmt.Errorf("%w: %s already contains %s", errBenign, req.TargetBranch, req.FeatureBranch)
		}

		return nil
	})
}
