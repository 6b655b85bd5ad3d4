package ipc

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

func uuidSidePath(name string) string {
	return filepath.Join(lockDir, name+".uuid")
}

// generateSessionUUID mints a fresh RFC 4122 session identifier. Cryptographic
// strength is not required (spec §4.1) — google/uuid's default generator is
// used purely for its correct dash/hex presentation form.
func generateSessionUUID() string {
	return uuid.New().String()
}

func writeSideFile(name, sessionUUID string) error {
	path := uuidSidePath(name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(sessionUUID), 0o666); err != nil {
		return errors.Wrapf(err, "write uuid side file %s", tmp)
	}
	// Truncate-and-write via rename: the file at path is always either the
	// old complete UUID or the new one, never a partial write.
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "rename uuid side file into place %s", path)
	}
	return nil
}

func readSideFile(name string) (string, error) {
	b, err := os.ReadFile(uuidSidePath(name))
	if err != nil {
		return "", errors.Wrapf(err, "read uuid side file for %s", name)
	}
	return strings.TrimSpace(string(b)), nil
}

// sessionFingerprint returns a short correlation id for log lines: a session
// UUID is 36 characters, too wide for a repeated per-message log field, so
// this hashes it down the way a high-throughput logger would.
func sessionFingerprint(sessionUUID string) string {
	sum := xxhash.Sum64String(sessionUUID)
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = hexDigits[(sum>>(60-4*i))&0xf]
	}
	return string(buf)
}
