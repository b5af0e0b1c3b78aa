package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTTL is the time after which the entries of a build are removed,
// once Expire was called.
const DefaultTTL = time.Hour

const (
	originalBranchKeyPrefix = "old_"
	pushListKeyPrefix       = "topush_"
)

var ErrEmptyBuildID = errors.New("build id is empty")

// Ledger records the hand-over state of a single build.
type Ledger struct {
	store   Store
	buildID string
}

func NewLedger(store Store, buildID string) (*Ledger, error) {
	if buildID == "" {
		return nil, ErrEmptyBuildID
	}

	return &Ledger{store: store, buildID: buildID}, nil
}

func (l *Ledger) BuildID() string {
	return l.buildID
}

func (l *Ledger) OriginalBranchKey() string {
	return originalBranchKeyPrefix + l.buildID
}

func (l *Ledger) PushListKey() string {
	return pushListKeyPrefix + l.buildID
}

// SetOriginalBranch records the feature branch that was merged by the
// gatekeeper.
func (l *Ledger) SetOriginalBranch(ctx context.Context, branch string) error {
	if err := l.store.Put(ctx, l.OriginalBranchKey(), branch); err != nil {
		return fmt.Errorf("storing original branch of build %s: %w", l.buildID, err)
	}

	return nil
}

// OriginalBranch returns the recorded feature branch, an empty string is
// returned if none was recorded.
func (l *Ledger) OriginalBranch(ctx context.Context) (string, error) {
	val, _, err := l.store.Get(ctx, l.OriginalBranchKey())
	if err != nil {
		return "", fmt.Errorf("retrieving original branch of build %s: %w", l.buildID, err)
	}

	return val, nil
}

// AppendToPush adds branch to the end of the list of branches that must be
// pushed.
func (l *Ledger) AppendToPush(ctx context.Context, branch string) error {
	if err := l.store.AppendToList(ctx, l.PushListKey(), branch); err != nil {
		return fmt.Errorf("adding branch %s to push list of build %s: %w", branch, l.buildID, err)
	}

	return nil
}

// BranchesToPush returns the branches that must be pushed in the order they
// were added.
func (l *Ledger) BranchesToPush(ctx context.Context) ([]string, error) {
	branches, err := l.store.List(ctx, l.PushListKey())
	if err != nil {
		return nil, fmt.Errorf("retrieving push list of build %s: %w", l.buildID, err)
	}

	return branches, nil
}

// Expire sets a time-to-live on all entries of the build.
func (l *Ledger) Expire(ctx context.Context, ttl time.Duration) error {
	var errs []error

	for _, key := range []string{l.OriginalBranchKey(), l.PushListKey()} {
		if err := l.store.Expire(ctx, key, ttl); err != nil {
			errs = append(errs, fmt.Errorf("setting ttl of %s: %w", key, err))
		}
	}

	return errors.Join(errs...)
}
