package main

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/ledger"
	"github.com/simplesurance/mergekeeper/internal/logfields"
)

var errBuildIDRequired = errors.New("--build-id must be passed")

func newLedgerCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "ledger",
		Short: "inspect and expire the merge ledger of a build",
	}

	cmd.AddCommand(newLedgerShowCmd(), newLedgerExpireCmd())

	return &cmd
}

func newLedgerShowCmd() *cobra.Command {
	var b buildArgs

	cmd := cobra.Command{
		Use:   "show",
		Short: "print the merge ledger of a build",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if b.BuildID == "" {
				return errBuildIDRequired
			}

			return runLedgerShow(cmd.Context(), cmd.OutOrStdout(), b.BuildID)
		},
	}

	b.registerBuildID(cmd.Flags())

	return &cmd
}

func runLedgerShow(ctx context.Context, out io.Writer, buildID string) error {
	l, closeLedger, err := openLedger(buildID)
	if err != nil {
		return err
	}
	defer closeLedger()

	return printLedger(ctx, out, l)
}

func printLedger(ctx context.Context, out io.Writer, l *ledger.Ledger) error {
	original, err := l.OriginalBranch(ctx)
	if err != nil {
		return err
	}

	toPush, err := l.BranchesToPush(ctx)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Key", "Entry", "Value"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.Append([]string{l.OriginalBranchKey(), "original branch", original})
	table.Append([]string{l.PushListKey(), "branches to push", strings.Join(toPush, ", ")})
	table.Render()

	return nil
}

func newLedgerExpireCmd() *cobra.Command {
	var b buildArgs
	var ttl time.Duration

	cmd := cobra.Command{
		Use:   "expire",
		Short: "set the expiration time of the merge ledger of a build",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if b.BuildID == "" {
				return errBuildIDRequired
			}

			if !cmd.Flags().Changed("ttl") {
				ttl = config.LedgerTTL
			}

			return runLedgerExpire(cmd.Context(), b.BuildID, ttl)
		},
	}

	b.registerBuildID(cmd.Flags())
	cmd.Flags().DurationVar(&ttl, "ttl", ledger.DefaultTTL, "duration after that the ledger is deleted (default: ledger_ttl config setting)")

	return &cmd
}

func runLedgerExpire(ctx context.Context, buildID string, ttl time.Duration) error {
	l, closeLedger, err := openLedger(buildID)
	if err != nil {
		return err
	}
	defer closeLedger()

	if err := l.Expire(ctx, ttl); err != nil {
		return err
	}

	logger.Info(
		"ledger expiration set",
		logfields.Event("ledger_expire_set"),
		logfields.BuildID(buildID),
		zap.Duration("ttl", ttl),
	)

	return nil
}
