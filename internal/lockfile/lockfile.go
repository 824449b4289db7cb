// Package lockfile prevents overlapping dispatcher runs via an exclusive
// flock on a named file. The OS drops the lock when the holder dies, so a
// crashed run never wedges the next one even if the marker file survives.
package lockfile

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ErrAlreadyRunning means another process holds the lock. Expected whenever
// a previous run overruns its schedule; callers exit cleanly on it.
var ErrAlreadyRunning = errors.New("already running")

type Lockfile struct {
	path string
	file *os.File
}

// Acquire takes the exclusive lock or fails immediately. The holder's pid is
// written into the file for operator inspection only; the flock is what
// actually excludes.
func Acquire(path string) (*Lockfile, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lockfile %s: %w", path, err)
	}

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("lockfile %s: %w", path, ErrAlreadyRunning)
		}
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}

	fmt.Fprintf(file, "%d", os.Getpid())
	file.Sync()

	return &Lockfile{path: path, file: file}, nil
}

// Release unlocks and removes the marker file. Safe to defer; a second call
// is a no-op.
func (l *Lockfile) Release() error {
	if l.file == nil {
		return nil
	}

	unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	err := l.file.Close()
	l.file = nil

	if rmErr := os.Remove(l.path); rmErr != nil && !os.IsNotExist(rmErr) {
		return rmErr
	}
	return err
}
