// Package pidfile guards the saved state against two agents writing it at
// the same time. The running agent owns a PID file next to the state; the
// offline CLI commands that rewrite the state refuse to run while that
// process is alive.
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// FileName is created in the state directory.
const FileName = ".cryptopilot.pid"

// ErrRunning is returned when another live process owns the PID file.
var ErrRunning = errors.New("agent is already running")

// Path возвращает путь к PID файлу в каталоге dir
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Write записывает PID в файл
func Write(dir string, pid int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := os.WriteFile(Path(dir), fmt.Appendf(nil, "%d\n", pid), 0o600); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// Read читает PID из файла
func Read(dir string) (int, error) {
	data, err := os.ReadFile(Path(dir))
	if err != nil {
		return 0, err
	}
	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return 0, fmt.Errorf("invalid PID file: %w", err)
	}
	return pid, nil
}

// IsRunning проверяет что процесс запущен
func IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// signal 0 only checks that the process exists; EPERM means it exists
	// but belongs to another user
	err = process.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

// Owner returns the PID of the live process owning dir, or 0 when the file
// is missing, unreadable or stale.
func Owner(dir string) int {
	pid, err := Read(dir)
	if err != nil || !IsRunning(pid) {
		return 0
	}
	return pid
}

// Acquire claims dir for the current process. A stale file left by a
// crashed agent is overwritten.
func Acquire(dir string) error {
	self := os.Getpid()
	if pid := Owner(dir); pid != 0 && pid != self {
		return fmt.Errorf("%w (pid %d)", ErrRunning, pid)
	}
	return Write(dir, self)
}

// Release removes the PID file if it still belongs to the current process.
func Release(dir string) error {
	pid, err := Read(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err == nil && pid != os.Getpid() {
		return nil
	}
	if err := os.Remove(Path(dir)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// CheckFree fails with ErrRunning when a live agent other than the current
// process owns dir.
func CheckFree(dir string) error {
	if pid := Owner(dir); pid != 0 && pid != os.Getpid() {
		return fmt.Errorf("%w (pid %d); stop it first", ErrRunning, pid)
	}
	return nil
}
