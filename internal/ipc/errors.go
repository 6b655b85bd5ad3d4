package ipc

import "github.com/pkg/errors"

// Kind is a structural failure mode of the ring's setup/attach protocol.
// These surface to the process entrypoint per the propagation policy: they
// are fatal to the role that hit them, not to the whole process necessarily,
// but they are never silently swallowed the way Full/Empty are.
type Kind string

const (
	// RoleConflict: another process already holds the producer or consumer
	// advisory lock for this queue name.
	RoleConflict Kind = "role_conflict"
	// NotFound: consumer attach found no shared-memory segment for this name.
	NotFound Kind = "not_found"
	// CorruptSegment: header signature does not match Magic, or the session
	// side file cannot be read.
	CorruptSegment Kind = "corrupt_segment"
	// StaleSession: header UUID and side-file UUID disagree — the producer
	// that created this segment has been replaced.
	StaleSession Kind = "stale_session"
)

// Error wraps a Kind with the queue name and an optional cause.
type Error struct {
	Kind  Kind
	Queue string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return string(e.Kind) + " (queue=" + e.Queue + "): " + e.cause.Error()
	}
	return string(e.Kind) + " (queue=" + e.Queue + ")"
}

func (e *Error) Unwrap() error { return e.cause }

func newErr(kind Kind, queue string, cause error) *Error {
	return &Error{Kind: kind, Queue: queue, cause: errors.WithStack(cause)}
}

// IsKind reports whether err (or something it wraps) is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	for err != nil {
		if ie, ok := err.(*Error); ok {
			e = ie
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == k
}
