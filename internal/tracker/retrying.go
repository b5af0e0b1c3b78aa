package tracker

import (
	"context"

	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/logfields"
)

// Retryer runs fn until it succeeds or fails with a non-retryable error.
type Retryer interface {
	Run(ctx context.Context, fn func(context.Context) error, logF []zap.Field) error
}

// RetryingLookup is a CaseLookup that retries transient failures of the
// wrapped CaseLookup.
type RetryingLookup struct {
	lookup  CaseLookup
	retryer Retryer
}

var _ CaseLookup = &RetryingLookup{}

func NewRetryingLookup(lookup CaseLookup, retryer Retryer) *RetryingLookup {
	return &RetryingLookup{lookup: lookup, retryer: retryer}
}

func (r *RetryingLookup) CaseByID(ctx context.Context, id int) (*Case, error) {
	var result *Case

	err := r.retryer.Run(ctx, func(ctx context.Context) error {
		var err error

		result, err = r.lookup.CaseByID(ctx, id)
		return err
	}, []zap.Field{logfields.CaseID(id), zap.String("operation", "case_lookup")})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *RetryingLookup) SaveCase(ctx context.Context, c *Case, comment string) error {
	return r.retryer.Run(ctx, func(ctx context.Context) error {
		return r.lookup.SaveCase(ctx, c, comment)
	}, []zap.Field{logfields.CaseID(c.ID), zap.String("operation", "case_save")})
}
