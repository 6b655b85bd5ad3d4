package ipc

import (
	"os"
	"path/filepath"
)

// Cleanup removes the shared-memory segment, session side file, and both
// advisory lock files for name. Per spec §9's design note, the producer
// never unlinks the segment on clean shutdown (a consumer may still be
// draining it), so this is offered as an explicit, separately-invoked
// operation rather than automatic teardown. Missing files are not errors.
func Cleanup(name string) error {
	paths := []string{
		shmPath(name),
		uuidSidePath(name),
		filepath.Join(lockDir, name+".prod.lock"),
		filepath.Join(lockDir, name+".cons.lock"),
	}
	var firstErr error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
