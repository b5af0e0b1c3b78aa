package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/logfields"
	"github.com/simplesurance/mergekeeper/internal/notify"
	"github.com/simplesurance/mergekeeper/internal/releasebranch"
	"github.com/simplesurance/mergekeeper/internal/workflow"
)

var errUpmergeNotAllowed = errors.New("upmerge requires a successful build, pass --run-always to ignore the build result")

type upmergeArgs struct {
	buildArgs
	StartBranch string
	BuildResult string
	RunAlways   bool
}

func newUpmergeCmd() *cobra.Command {
	var a upmergeArgs

	cmd := cobra.Command{
		Use:   "upmerge",
		Short: "merge a release branch forward into all newer release branches",
		Long: `upmerge merges the start release branch into the next newer release branch,
that one into its successor and so on, until a number of consecutive release
branches do not exist. Merged branches are recorded in the merge ledger of
the build to be pushed by the push command.
The start branch is --start or the target branch of the case passed via
--case.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer pushMetrics("upmerge")
			return runUpmerge(cmd.Context(), cmd.OutOrStdout(), &a)
		},
	}

	flags := cmd.Flags()
	a.registerBuildID(flags)
	a.registerCaseID(flags)
	flags.StringVar(&a.StartBranch, "start", "", "release branch the walk starts from")
	flags.StringVar(
		&a.BuildResult, "build-result", os.Getenv(envBuildResult),
		fmt.Sprintf("result of the previous build steps, the upmerge only runs if it is %s or empty", notify.BuildResultSuccess),
	)
	flags.BoolVar(&a.RunAlways, "run-always", false, "run independent of the build result")

	return &cmd
}

func runUpmerge(ctx context.Context, out io.Writer, a *upmergeArgs) error {
	if err := checkBuildResult(a.BuildResult, a.RunAlways); err != nil {
		return err
	}

	scheme, err := releasebranch.SchemeByName(config.ReleaseBranchScheme)
	if err != nil {
		return err
	}

	dir, err := workDir()
	if err != nil {
		return err
	}

	vcs := newVCS(dir)

	var start releasebranch.Cursor
	var featureBranch string

	if a.StartBranch != "" {
		start, featureBranch, err = workflow.NewResolver(vcs, nil).UpmergeStart(ctx, scheme, a.StartBranch, 0)
	} else {
		cases, lookupErr := newCaseLookup()
		if lookupErr != nil {
			return lookupErr
		}

		start, featureBranch, err = workflow.NewResolver(vcs, cases).UpmergeStart(ctx, scheme, "", a.CaseID)
	}
	if err != nil {
		return fmt.Errorf("determining start branch failed: %w", err)
	}

	l, closeLedger, err := openLedger(a.buildID())
	if err != nil {
		return err
	}
	defer closeLedger()

	var result *workflow.WalkResult

	err = withWorkspaceLock(ctx, dir, func() error {
		var err error

		result, err = workflow.NewUpmerger(
			vcs,
			workflow.WithMaxConsecutiveMisses(config.Upmerge.MaxConsecutiveMisses),
		).Run(ctx, l, start, featureBranch)

		return err
	})
	if err != nil {
		return err
	}

	printWalkResult(out, result)

	if len(result.Failed) > 0 {
		logger.Warn(
			"upmerging into some release branches failed",
			logfields.Event("upmerge_partially_failed"),
			zap.Strings("failed_branches", result.Failed),
		)
	}

	return nil
}

// checkBuildResult returns an error when the previous build steps did not
// succeed and the upmerge must not run. An empty result is accepted, the
// step then runs outside of a CI build.
func checkBuildResult(result string, runAlways bool) error {
	if runAlways || result == "" || strings.EqualFold(result, notify.BuildResultSuccess) {
		return nil
	}

	return fmt.Errorf("%w: build result is %s", errUpmergeNotAllowed, result)
}

func printWalkResult(out io.Writer, result *workflow.WalkResult) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Branch", "Result"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)

	for _, b := range result.Merged {
		table.Append([]string{b, "merged"})
	}

	for _, b := range result.AlreadyIntegrated {
		table.Append([]string{b, "already integrated"})
	}

	for _, b := range result.Failed {
		table.Append([]string{b, "failed"})
	}

	table.Render()
}
