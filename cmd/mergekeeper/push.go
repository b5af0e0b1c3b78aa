package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/logfields"
	"github.com/simplesurance/mergekeeper/internal/workflow"
)

func newPushCmd() *cobra.Command {
	var b buildArgs

	cmd := cobra.Command{
		Use:   "push",
		Short: "push the branches recorded in the merge ledger of the build",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer pushMetrics("push")
			return runPush(cmd.Context(), &b)
		},
	}

	b.registerBuildID(cmd.Flags())

	return &cmd
}

func runPush(ctx context.Context, b *buildArgs) error {
	dir, err := workDir()
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
		pushed, err := workflow.NewPusher(vcs).Run(ctx, l)
		if err != nil {
			return err
		}

		if len(pushed) == 0 {
			return fmt.Errorf("%w: push list of build %s is empty", errBenign, l.BuildID())
		}

		logger.Info(
			"branches pushed",
			logfields.Event("push_finished"),
			logfields.BuildID(l.BuildID()),
			zap.Strings("branches", pushed),
		)

		return nil
	})
}
