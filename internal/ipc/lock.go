package ipc

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// roleLock is the Go analogue of ScopedFileLock in the reference source: an
// advisory, exclusive, non-blocking file lock that enforces the "Highlander"
// rule — at most one producer and one consumer per queue name, host-wide.
type roleLock struct {
	f *os.File
}

func acquireRoleLock(name string, producer bool) (*roleLock, error) {
	suffix := ".cons.lock"
	if producer {
		suffix = ".prod.lock"
	}
	path := filepath.Join(lockDir, name+suffix)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return nil, newErr(RoleConflict, name, errors.Wrapf(err, "open lock file %s", path))
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, newErr(RoleConflict, name, errors.Wrapf(err, "flock %s held by another process", path))
	}

	return &roleLock{f: f}, nil
}

// release drops the advisory lock and closes the fd. It does not unlink the
// lock file: another process may be racing to open it.
func (l *roleLock) release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	return l.f.Close()
}
