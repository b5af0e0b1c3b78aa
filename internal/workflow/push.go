package workflow

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/ledger"
	"github.com/simplesurance/mergekeeper/internal/logfields"
)

// Pusher pushes the branches recorded in the push list of a build to the
// remote repository.
type Pusher struct {
	vcs    VCS
	logger *zap.Logger
}

func NewPusher(vcs VCS) *Pusher {
	return &Pusher{
		vcs:    vcs,
		logger: zap.L().Named("pusher"),
	}
}

// Run pushes all branches of the push list with a single push command.
// It returns the pushed branches, when the list is empty nothing is pushed.
func (p *Pusher) Run(ctx context.Context, l *ledger.Ledger) ([]string, error) {
	logger := p.logger.With(logfields.BuildID(l.BuildID()))

	branches, err := l.BranchesToPush(ctx)
	if err != nil {
		return nil, err
	}

	if len(branches) == 0 {
		logger.Info("push list is empty, nothing to push", logfields.Event("push_skipped"))
		return nil, nil
	}

	logger = logger.With(zap.Strings("branches", branches))

	if _, err := p.vcs.Push(ctx, branches...); err != nil {
		logger.Error("pushing branches failed", logfields.Event("push_failed"), zap.Error(err))
		return nil, fmt.Errorf("pushing branches %v failed: %w", branches, err)
	}

	logger.Info("branches pushed", logfields.Event("push_succeeded"))

	return branches, nil
}
