package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestLockPath(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, filepath.Join(dir, ".mergekeeper.lock"), LockPath(dir))

	require.NoError(t, os.Mkdir(filepath.Join(dir, ".hg"), 0o755))
	assert.Equal(t, filepath.Join(dir, ".hg", "mergekeeper.lock"), LockPath(dir))
}

func TestLockIsExclusive(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".hg"), 0o755))

	lock, err := Acquire(ctx, dir, time.Second)
	require.NoError(t, err)

	_, err = Acquire(ctx, dir, 600*time.Millisecond)
	require.ErrorIs(t, err, ErrLocked)

	require.NoError(t, lock.Release())

	lock, err = Acquire(ctx, dir, time.Second)
	require.NoError(t, err)
	require.NoError(t, lock.Release())
}
