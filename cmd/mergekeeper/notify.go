package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/simplesurance/mergekeeper/internal/logfields"
	"github.com/simplesurance/mergekeeper/internal/notify"
)

type notifyArgs struct {
	buildArgs
	BuildURL     string
	BuildNumber  string
	BuildResult  string
	TestsFailed  int
	TestsSkipped int
	TestsTotal   int
}

func newNotifyCmd() *cobra.Command {
	var a notifyArgs

	cmd := cobra.Command{
		Use:   "notify",
		Short: "report the build result to the case of the build",
		Long: `notify adds a comment with the build result to the case of the build and
assigns the case back to the person that opened it. Afterwards the merge
ledger of the build expires.
The case is --case, the case of the checked out feature branch or the case of
the feature branch recorded in the merge ledger. If none is found nothing is
reported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer pushMetrics("notify")
			return runNotify(cmd.Context(), cmd.Flags(), &a)
		},
	}

	flags := cmd.Flags()
	a.registerBuildID(flags)
	a.registerCaseID(flags)
	flags.StringVar(&a.BuildURL, "build-url", os.Getenv(envBuildURL), "URL of the build")
	flags.StringVar(&a.BuildNumber, "build-number", os.Getenv(envBuildNumber), "number of the build")
	flags.StringVar(&a.BuildResult, "build-result", os.Getenv(envBuildResult), "result of the build, e.g. SUCCESS or FAILURE")
	flags.IntVar(&a.TestsFailed, "tests-failed", 0, "number of failed tests")
	flags.IntVar(&a.TestsSkipped, "tests-skipped", 0, "number of skipped tests")
	flags.IntVar(&a.TestsTotal, "tests-total", 0, "number of executed tests")

	return &cmd
}

// intFlagVal returns a pointer to the value of the flag, if the flag was not
// passed nil is returned.
func intFlagVal(flags *pflag.FlagSet, name string, val int) *int {
	if !flags.Changed(name) {
		return nil
	}

	return &val
}

func runNotify(ctx context.Context, flags *pflag.FlagSet, a *notifyArgs) error {
	dir, err := workDir()
	if err != nil {
		return err
	}

	cases, err := newCaseLookup()
	if err != nil {
		return err
	}

	notifier, err := notify.New(
		newHgClient(dir),
		cases,
		notify.WithTemplates(config.Tracker.SuccessTemplate, config.Tracker.FailureTemplate),
		notify.WithLedgerTTL(config.LedgerTTL),
	)
	if err != nil {
		return err
	}

	l, closeLedger, err := openLedger(a.buildID())
	if err != nil {
		return err
	}
	defer closeLedger()

	caseID, err := notifier.Run(ctx, l, &notify.Build{
		URL:          a.BuildURL,
		Number:       a.BuildNumber,
		Result:       a.BuildResult,
		CaseID:       a.CaseID,
		TestsFailed:  intFlagVal(flags, "tests-failed", a.TestsFailed),
		TestsSkipped: intFlagVal(flags, "tests-skipped", a.TestsSkipped),
		TestsTotal:   intFlagVal(flags, "tests-total", a.TestsTotal),
	})
	if err != nil {
		return err
	}

	if caseID != 0 {
		logger.Info(
			"build result reported",
			logfields.Event("notify_finished"),
			logfields.CaseID(caseID),
		)
	}

	return nil
}
