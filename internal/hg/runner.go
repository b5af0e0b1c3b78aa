package hg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/logfields"
)

const waitDelay = 5 * time.Second

// CommandResult is the result of an executed hg command.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// RelevantOutput returns stdout, or stderr if stdout is empty.
// hg prints abort messages to stderr, status messages to stdout.
func (r *CommandResult) RelevantOutput() string {
	if r.Stdout == "" {
		return r.Stderr
	}

	return r.Stdout
}

// run executes hg with args in the working directory of the client.
// The command is terminated when c.timeout expires or ctx is cancelled.
// An error is only returned when the command could not be executed or did
// not finish, a non-zero exit code is not an error.
func (c *Client) run(ctx context.Context, args ...string) (*CommandResult, error) {
	ctx, cancelFn := context.WithTimeout(ctx, c.timeout)
	defer cancelFn()

	cmdline := c.executable + " " + strings.Join(args, " ")
	logger := c.logger.With(logfields.Command(cmdline))

	cmd := exec.CommandContext(ctx, c.executable, args...)
	cmd.Dir = c.dir
	cmd.Env = append(os.Environ(), c.env...)
	// child processes of hg can keep the output pipes open after hg was
	// killed, WaitDelay bounds how long Run() waits for them
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("executing command", logfields.Event("hg_command_executing"))

	startTime := time.Now()
	err := cmd.Run()

	result := CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(startTime),
	}

	var exitErr *exec.ExitError
	if err != nil && (ctx.Err() != nil || !errors.As(err, &exitErr)) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("command did not finish: %w", ctxErr)
		}

		logger.Warn(
			"executing command failed",
			logfields.Event("hg_command_failed"),
			zap.Duration("duration", result.Duration),
			zap.String("stdout", result.Stdout),
			zap.String("stderr", result.Stderr),
			zap.Error(err),
		)

		return &result, &CommandError{
			Args:   args,
			Output: result.RelevantOutput(),
			Err:    ErrOperationAborted,
			Cause:  err,
		}
	}

	result.ExitCode = cmd.ProcessState.ExitCode()

	logger.Debug(
		"command finished",
		logfields.Event("hg_command_finished"),
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("duration", result.Duration),
		zap.String("stdout", result.Stdout),
		zap.String("stderr", result.Stderr),
	)

	return &result, nil
}
