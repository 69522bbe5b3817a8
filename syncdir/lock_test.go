package syncdir_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h2kv/h2kv/ignore"
	"github.com/h2kv/h2kv/syncdir"
)

func TestAcquireLock(t *testing.T) {
	dir := t.TempDir()

	lock, err := syncdir.AcquireLock(dir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, ignore.LockFile))

	_, err = syncdir.AcquireLock(dir)
	assert.ErrorIs(t, err, syncdir.ErrLocked)

	require.NoError(t, lock.Release())
	_, err = os.Stat(filepath.Join(dir, ignore.LockFile))
	assert.True(t, os.IsNotExist(err))

	again, err := syncdir.AcquireLock(dir)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestLock_ReleaseTwice(t *testing.T) {
	lock, err := syncdir.AcquireLock(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, lock.Release())
	assert.NoError(t, lock.Release())
}

func TestAcquireLock_MissingDir(t *testing.T) {
	_, err := syncdir.AcquireLock(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, syncdir.ErrLocked)
}
