// Package ipc implements the cross-process single-producer/single-consumer
// shared-memory ring described in the gateway design: a producer maps and
// owns a POSIX shared-memory segment, a consumer attaches to it, and the two
// exchange framed messages through atomically-published slot indices.
package ipc

const (
	// Magic identifies a valid ring header. Matches the on-wire signature
	// the sequencer-side consumer checks against.
	Magic = "IPC_V1_MAGIC"

	// cacheLineSize keeps writeIdx and readIdx on distinct cache lines so
	// producer and consumer never false-share.
	cacheLineSize = 64

	// MaxMsgSize bounds a single ring slot's payload. Compiled in, like the
	// teacher's fixed OrderSize/QueueCapacity constants, rather than sized
	// per-instance: a shared-memory layout has to be identical on both ends
	// of the map without a handshake, so this is the one thing that isn't
	// config-driven.
	MaxMsgSize = 4096

	// DefaultCapacity is used when NewProducer is given a capacity of 0. The
	// gateway configuration has no capacity setting, so the gateway always
	// creates its ring with this capacity.
	DefaultCapacity = 1024

	shmDir  = "/dev/shm"
	lockDir = "/tmp"
)
