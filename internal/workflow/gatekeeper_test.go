package workflow

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/simplesurance/mergekeeper/internal/hg"
	"github.com/simplesurance/mergekeeper/internal/workflow/mocks"
)

func TestGatekeeperMerges(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	ctx := context.Background()
	mockctrl := gomock.NewController(t)
	vcs := mocks.NewMockVCS(mockctrl)
	l := newTestLedger(t)

	gomock.InOrder(
		vcs.EXPECT().Pull(gomock.Any()).Return("", nil),
		vcs.EXPECT().Update(gomock.Any(), "r2104").Return(nil),
		vcs.EXPECT().Merge(gomock.Any(), "c42").Return("", nil),
		vcs.EXPECT().Commit(gomock.Any(), "[mergekeeper] Merge r2104 with c42").Return(nil),
	)

	res, err := NewGatekeeper(vcs).Run(ctx, l, &Request{BuildID: "b1", FeatureBranch: "c42", TargetBranch: "r2104"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeMerged, res.Outcome)

	orig, err := l.OriginalBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c42", orig)
	assert.Equal(t, []string{"r2104"}, mustBranchesToPush(t, l))
}

func TestGatekeeperWithoutPull(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	mockctrl := gomock.NewController(t)
	vcs := mocks.NewMockVCS(mockctrl)

	vcs.EXPECT().Pull(gomock.Any()).Times(0)
	vcs.EXPECT().Update(gomock.Any(), "r2104").Return(nil)
	vcs.EXPECT().Merge(gomock.Any(), "c42").Return("", nil)
	vcs.EXPECT().Commit(gomock.Any(), gomock.Any()).Return(nil)

	_, err := NewGatekeeper(vcs, WithPull(false)).
		Run(context.Background(), newTestLedger(t), &Request{BuildID: "b1", FeatureBranch: "c42", TargetBranch: "r2104"})
	require.NoError(t, err)
}

func TestGatekeeperAlreadyIntegrated(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	tests := []struct {
		name      string
		mergeErr  error
		commitErr error
	}{
		{name: "merge has no effect", mergeErr: hg.ErrMergeHasNoEffect},
		{name: "nothing to commit", commitErr: hg.ErrNothingToCommit},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			mockctrl := gomock.NewController(t)
			vcs := mocks.NewMockVCS(mockctrl)
			l := newTestLedger(t)

			vcs.EXPECT().Pull(gomock.Any()).Return("", nil)
			vcs.EXPECT().Update(gomock.Any(), "r2104").Return(nil)
			vcs.EXPECT().Merge(gomock.Any(), "c42").Return("", tc.mergeErr)
			if tc.mergeErr == nil {
				vcs.EXPECT().Commit(gomock.Any(), gomock.Any()).Return(tc.commitErr)
			}

			res, err := NewGatekeeper(vcs).Run(ctx, l, &Request{BuildID: "b1", FeatureBranch: "c42", TargetBranch: "r2104"})
			require.NoError(t, err)
			assert.Equal(t, OutcomeAlreadyIntegrated, res.Outcome)

			assert.Empty(t, mustBranchesToPush(t, l))
			orig, err := l.OriginalBranch(ctx)
			require.NoError(t, err)
			assert.Empty(t, orig)
		})
	}
}

func TestGatekeeperFatalErrors(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	tests := []struct {
		name      string
		updateErr error
		mergeErr  error
		commitErr error
	}{
		{name: "unknown target", updateErr: hg.ErrUnknownRevision},
		{name: "update aborted", updateErr: hg.ErrOperationAborted},
		{name: "merge aborted", mergeErr: hg.ErrOperationAborted},
		{name: "commit aborted", commitErr: hg.ErrOperationAborted},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mockctrl := gomock.NewController(t)
			vcs := mocks.NewMockVCS(mockctrl)
			l := newTestLedger(t)

			vcs.EXPECT().Pull(gomock.Any()).Return("", nil)
			vcs.EXPECT().Update(gomock.Any(), "r2104").Return(tc.updateErr)
			if tc.updateErr == nil {
				vcs.EXPECT().Merge(gomock.Any(), "c42").Return("", tc.mergeErr)
			}
			if tc.updateErr == nil && tc.mergeErr == nil {
				vcs.EXPECT().Commit(gomock.Any(), gomock.Any()).Return(tc.commitErr)
			}

			_, err := NewGatekeeper(vcs).Run(context.Background(), l, &Request{BuildID: "b1", FeatureBranch: "c42", TargetBranch: "r2104"})
			require.Error(t, err)
			for _, e := range []error{tc.updateErr, tc.mergeErr, tc.commitErr} {
				if e != nil {
					assert.ErrorIs(t, err, e)
				}
			}

			assert.Empty(t, mustBranchesToPush(t, l))
		})
	}
}

func TestGatekeeperPullFailureIsFatal(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	mockctrl := gomock.NewController(t)
	vcs := mocks.NewMockVCS(mockctrl)

	vcs.EXPECT().Pull(gomock.Any()).Return("", hg.ErrOperationAborted)

	_, err := NewGatekeeper(vcs).Run(context.Background(), newTestLedger(t), &Request{BuildID: "b1", FeatureBranch: "c42", TargetBranch: "r2104"})
	assert.ErrorIs(t, err, hg.ErrOperationAborted)
}

func TestGatekeeperRejectsIncompleteRequest(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	mockctrl := gomock.NewController(t)
	vcs := mocks.NewMockVCS(mockctrl)

	_, err := NewGatekeeper(vcs).Run(context.Background(), newTestLedger(t), &Request{BuildID: "b1", FeatureBranch: "c42"})
	assert.Error(t, err)
}
