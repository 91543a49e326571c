package filelock

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryLockExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.json.lock")

	first, err := TryLock(path)
	require.NoError(t, err)
	assert.Equal(t, path, first.Path())

	// flock locks belong to the open file description, so a second open in
	// the same process contends like another process would.
	_, err = TryLock(path)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, first.Unlock())
	require.NoError(t, first.Unlock(), "unlock is idempotent")

	second, err := TryLock(path)
	require.NoError(t, err)
	require.NoError(t, second.Unlock())
}
