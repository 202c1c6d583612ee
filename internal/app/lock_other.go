//go:build !unix

package app

// repoLock is a no-op where flock is unavailable.
type repoLock struct{}

func acquireLock(string) (*repoLock, error) { return &repoLock{}, nil }

func (*repoLock) release() error { return nil }
