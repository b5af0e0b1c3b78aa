package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/thecodeteam/goodbye"
	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/logfields"
)

const appName = "mergekeeper"

var (
	logger            = zap.NewNop()
	loggerInitialized bool
)

// Version is set via a ldflag on compilation
var Version = "unknown"

// errBenign is returned by commands that ended without doing anything, e.g.
// because there was nothing to merge. It results in exit code 0.
var errBenign = errors.New("nothing to do")

func exitOnErr(msg string, err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "ERROR:", msg+", error:", err.Error())
	os.Exit(1)
}

func panicHandler() {
	if r := recover(); r != nil {
		logger.Info(
			"panic caught , terminating gracefully",
			zap.String("panic", fmt.Sprintf("%v", r)),
			zap.StackSkip("stacktrace", 1),
		)

		ctx, cancelFn := context.WithTimeout(context.Background(), time.Minute)
		defer cancelFn()

		goodbye.Exit(ctx, 1)
	}
}

func hide(in string) string {
	if in == "" {
		return in
	}

	return "**hidden**"
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Integrate feature branches into release branches and upmerge them into newer releases",
		Long: `mergekeeper runs as steps of a CI build.
It merges the feature branch of an issue tracker case into its target release
branch (gatekeep), merges release branches forward into all newer release
branches (upmerge), pushes the result (push) and reports the build result to
the case (notify).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if cmd.Annotations[annotationNoConfig] != "" || cmd.Name() == "help" {
				return
			}

			mustLoadConfig()
			mustInitLogger(config)
		},
	}

	root.CompletionOptions.DisableDefaultCmd = true
	registerGlobalFlags(root.PersistentFlags())

	root.AddCommand(
		newGatekeepCmd(),
		newUpmergeCmd(),
		newPushCmd(),
		newNotifyCmd(),
		newServeCmd(),
		newLedgerCmd(),
		newBranchesCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "print the version and exit",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoConfig: "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", appName, Version)
		},
	}
}

func exitCode(err error) int {
	if err == nil || errors.Is(err, errBenign) {
		return 0
	}

	return 1
}

func main() {
	defer panicHandler()

	ctx := context.Background()
	goodbye.Notify(ctx)

	err := newRootCmd().ExecuteContext(ctx)
	switch {
	case err == nil:
	case errors.Is(err, errBenign):
		logger.Info(err.Error(), logfields.Event("command_finished_without_changes"))
	default:
		if !loggerInitialized {
			fmt.Fprintln(os.Stderr, "ERROR:", err)
			break
		}

		logger.Error("command failed", logfields.Event("command_failed"), zap.Error(err))
	}

	goodbye.Exit(ctx, exitCode(err))
}
