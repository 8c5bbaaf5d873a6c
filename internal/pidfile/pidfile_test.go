package pidfile

import (
	"os"
	"os/exec"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deadPID returns the pid of a process that has already exited.
func deadPID(t *testing.T) int {
	t.Helper()
	cmd := exec.Command(os.Args[0], "-test.run=^$")
	require.NoError(t, cmd.Run())
	return cmd.Process.Pid
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Write(dir, os.Getpid()))

	data, err := os.ReadFile(Path(dir))
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestRead(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		wantErr bool
	}{
		{"valid", "12345\n", 12345, false},
		{"no newline", "42", 42, false},
		{"garbage", "not-a-pid", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(Path(dir), []byte(tt.content), 0o600))
			pid, err := Read(dir)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, pid)
		})
	}

	t.Run("missing", func(t *testing.T) {
		_, err := Read(t.TempDir())
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestIsRunning(t *testing.T) {
	assert.True(t, IsRunning(os.Getpid()))
	assert.False(t, IsRunning(0))
	assert.False(t, IsRunning(-1))
	assert.False(t, IsRunning(deadPID(t)))
}

func TestAcquireRelease(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, Acquire(dir))
	assert.Equal(t, os.Getpid(), Owner(dir))
	// re-acquiring by the owner is allowed
	require.NoError(t, Acquire(dir))
	assert.NoError(t, CheckFree(dir))

	require.NoError(t, Release(dir))
	_, err := os.Stat(Path(dir))
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, Release(dir))
}

func TestAcquireStaleFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Write(dir, deadPID(t)))

	assert.Equal(t, 0, Owner(dir))
	require.NoError(t, Acquire(dir))
	pid, err := Read(dir)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestReleaseKeepsForeignFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Write(dir, os.Getppid()))

	require.NoError(t, Release(dir))
	_, err := os.Stat(Path(dir))
	assert.NoError(t, err)
}

func TestCheckFreeLiveOwner(t *testing.T) {
	dir := t.TempDir()
	// the parent (go test driver) is alive for the duration of the test
	require.NoError(t, Write(dir, os.Getppid()))

	err := CheckFree(dir)
	require.ErrorIs(t, err, ErrRunning)
	assert.Contains(t, err.Error(), strconv.Itoa(os.Getppid()))
	assert.ErrorIs(t, Acquire(dir), ErrRunning)
}
