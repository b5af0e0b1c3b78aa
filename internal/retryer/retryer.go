// Package retryer executes operations repeatedly until they succeed or a
// non-transient error happens.
package retryer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/logfields"
	"github.com/simplesurance/mergekeeper/internal/mkerr"
)

const (
	DefaultTimeout                    = 2 * time.Hour
	defaultBackoffInitialInterval     = 5 * time.Second
	defaultBackoffRandomizationFactor = 0.5
)

// ErrShutdown is returned by Run when the Retryer was stopped.
var ErrShutdown = errors.New("retryer terminated")

// Retryer executes a function repeatedly until it was successful or cancel
// condition happened.
type Retryer struct {
	logger       *zap.Logger
	shutdownChan chan struct{}

	defTimeout                 time.Duration
	backoffInitialInterval     time.Duration
	backoffRandomizationFactor float64
}

type Option func(*Retryer)

// WithTimeout sets the duration after that Run gives up retrying.
func WithTimeout(d time.Duration) Option {
	return func(r *Retryer) {
		r.defTimeout = d
	}
}

func New(opts ...Option) *Retryer {
	r := Retryer{
		logger:                     zap.L().Named("retryer"),
		shutdownChan:               make(chan struct{}),
		defTimeout:                 DefaultTimeout,
		backoffInitialInterval:     defaultBackoffInitialInterval,
		backoffRandomizationFactor: defaultBackoffRandomizationFactor,
	}

	for _, opt := range opts {
		opt(&r)
	}

	return &r
}

func logFieldResult(val string) zap.Field {
	return zap.String("retryer.result", val)
}

func (r *Retryer) newBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.backoffInitialInterval
	bo.RandomizationFactor = r.backoffRandomizationFactor
	bo.MaxElapsedTime = 0
	bo.Reset()

	return bo
}

// Run executes fn until it was successful, it returned an error that
// does not wrap mkerr.RetryableError, the timeout of the retryer expired or
// the execution was aborted via the context.
func (r *Retryer) Run(ctx context.Context, fn func(context.Context) error, logF []zap.Field) error {
	var tryCnt uint

	ctx, cancelFn := context.WithTimeout(ctx, r.defTimeout)
	defer cancelFn()

	deadline, _ := ctx.Deadline()

	retryTimer := time.NewTimer(0)
	defer retryTimer.Stop()

	bo := r.newBackoff()

	for {
		tryCnt++
		logger := r.logger.With(logF...).With(zap.Uint("try_count", tryCnt))

		select {
		case <-ctx.Done():
			logger.Info(
				"giving up retrying, execution cancelled or timeout expired",
				logfields.Event("retryer_cancelled"),
				logFieldResult("cancelled"),
				zap.Duration("age", bo.GetElapsedTime()),
				zap.Duration("retry_timeout", r.defTimeout),
			)

			return fmt.Errorf("retrying aborted: %w", ctx.Err())

		case <-r.shutdownChan:
			logger.Info(
				"retryer terminating, operation not executed",
				logfields.Event("retryer_cancelled_shutdown"),
				logFieldResult("cancelled"),
			)

			return ErrShutdown

		case <-retryTimer.C:
			logger.Debug(
				"running operation",
				logfields.Event("retryer_running"),
				zap.Duration("age", bo.GetElapsedTime()),
				zap.Duration("retry_timeout", r.defTimeout),
			)

			err := fn(ctx)
			if err == nil {
				logger.Debug(
					"operation executed successfully",
					logfields.Event("retryer_operation_succeeded"),
					logFieldResult("success"),
				)

				return nil
			}

			logger = logger.With(zap.Error(err))

			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				logger.Info(
					"operation cancelled",
					logfields.Event("retryer_operation_cancelled"),
					logFieldResult("cancelled"),
				)

				return err
			}

			var retryError *mkerr.RetryableError
			if !errors.As(err, &retryError) {
				logger.Info(
					"operation failed, not retryable",
					logfields.Event("retryer_operation_failed"),
					logFieldResult("failure"),
				)

				return err
			}

			if retryError.After.After(deadline) {
				logger.Info(
					"operation failed, next possible retry time is after timeout expiration",
					logfields.Event("retryer_operation_failed"),
					logFieldResult("failure"),
					zap.Time("earliest_allowed_retry", retryError.After),
				)

				return err
			}

			retryIn := bo.NextBackOff()
			if untilAfter := time.Until(retryError.After); untilAfter > retryIn {
				retryIn = untilAfter
			}

			retryTimer.Reset(retryIn)

			logger.Info(
				"operation failed, retry scheduled",
				logfields.Event("retryer_retry_scheduled"),
				zap.Duration("retry_in", retryIn),
			)
		}
	}
}

// Stop notifies all Run() methods to terminate.
// It does not wait for their termination.
func (r *Retryer) Stop() {
	r.logger.Debug("retryer terminating", logfields.Event("retryer_terminating"))

	select {
	case <-r.shutdownChan:
		return // already closed
	default:
		close(r.shutdownChan)
	}
}
