package lockfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gitbot.lock")

	lock, err := Acquire(path)
	require.NoError(t, err)

	t.Run("second acquire reports already running", func(t *testing.T) {
		_, err := Acquire(path)
		assert.ErrorIs(t, err, ErrAlreadyRunning)
	})

	t.Run("pid is recorded", func(t *testing.T) {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	})

	require.NoError(t, lock.Release())

	t.Run("marker file is removed on release", func(t *testing.T) {
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("reacquire after release", func(t *testing.T) {
		again, err := Acquire(path)
		require.NoError(t, err)
		require.NoError(t, again.Release())
	})

	t.Run("double release is a no-op", func(t *testing.T) {
		assert.NoError(t, lock.Release())
	})
}
