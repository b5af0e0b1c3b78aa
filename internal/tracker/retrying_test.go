package tracker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/mkerr"
	"github.com/simplesurance/mergekeeper/internal/tracker"
	"github.com/simplesurance/mergekeeper/internal/tracker/mocks"
)

// immediateRetryer retries retryable errors without waiting, up to max
// times.
type immediateRetryer struct {
	max int
}

func (r *immediateRetryer) Run(ctx context.Context, fn func(context.Context) error, _ []zap.Field) error {
	var err error

	for i := 0; i < r.max; i++ {
		err = fn(ctx)

		var retryErr *mkerr.RetryableError
		if !errors.As(err, &retryErr) {
			return err
		}
	}

	return err
}

func TestRetryingLookupRetriesTransientErrors(t *testing.T) {
	mockctrl := gomock.NewController(t)
	lookup := mocks.NewMockCaseLookup(mockctrl)

	transient := mkerr.NewRetryableAnytimeError(errors.New("502 bad gateway"))
	want := &tracker.Case{ID: 42, Title: "t"}

	gomock.InOrder(
		lookup.EXPECT().CaseByID(gomock.Any(), 42).Return(nil, transient),
		lookup.EXPECT().CaseByID(gomock.Any(), 42).Return(want, nil),
	)

	got, err := tracker.NewRetryingLookup(lookup, &immediateRetryer{max: 3}).CaseByID(context.Background(), 42)
	require.NoError(t, err)
	assert.Same(t, want, got)
}

func TestRetryingLookupDoesNotRetryPermanentErrors(t *testing.T) {
	mockctrl := gomock.NewController(t)
	lookup := mocks.NewMockCaseLookup(mockctrl)

	lookup.EXPECT().CaseByID(gomock.Any(), 7).Return(nil, tracker.ErrCaseNotFound).Times(1)

	_, err := tracker.NewRetryingLookup(lookup, &immediateRetryer{max: 3}).CaseByID(context.Background(), 7)
	assert.ErrorIs(t, err, tracker.ErrCaseNotFound)
}

func TestRetryingLookupSaveCase(t *testing.T) {
	mockctrl := gomock.NewController(t)
	lookup := mocks.NewMockCaseLookup(mockctrl)

	c := &tracker.Case{ID: 3}
	transient := mkerr.NewRetryableAnytimeError(errors.New("connection reset"))

	lookup.EXPECT().SaveCase(gomock.Any(), c, "done").Return(transient).Times(2)

	err := tracker.NewRetryingLookup(lookup, &immediateRetryer{max: 2}).SaveCase(context.Background(), c, "done")
	assert.ErrorIs(t, err, transient)
}
