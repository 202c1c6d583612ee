//go:build unix

package app

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"vcs-go/internal/vcs"
)

// repoLock is an exclusive advisory lock on .vcs/lock.
type repoLock struct {
	f *os.File
}

// acquireLock takes the lock without blocking. A held lock is ErrLocked.
func acquireLock(path string) (*repoLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: opening lock file: %w", vcs.ErrIOFailure, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", vcs.ErrLocked, path)
		}
		return nil, fmt.Errorf("%w: locking %s: %w", vcs.ErrIOFailure, path, err)
	}
	return &repoLock{f: f}, nil
}

func (l *repoLock) release() error {
	if l == nil || l.f == nil {
		return nil
	}
	unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	err := l.f.Close()
	l.f = nil
	return err
}
