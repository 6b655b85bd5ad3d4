package ipc

import (
	"bytes"
	"log/slog"
	"sync/atomic"
)

// Consumer attaches to an existing ring segment and is the sole writer of
// readIdx (spec §3, §4.1). Only one Consumer may attach to a given queue
// name at a time.
type Consumer struct {
	name string
	log  *slog.Logger

	lock *roleLock
	seg  *segment
	uuid string
}

// AttachConsumer attaches to the named ring. Fails with NotFound if the
// producer has never created it, CorruptSegment if the header magic doesn't
// match, and StaleSession if the header's session UUID disagrees with the
// side file — meaning the producer that created this segment has since been
// replaced by a fresh incarnation (spec §4.1 Attach, the crash-recovery
// hinge).
func AttachConsumer(name string, log *slog.Logger) (*Consumer, error) {
	if log == nil {
		log = slog.Default()
	}

	lock, err := acquireRoleLock(name, false)
	if err != nil {
		return nil, err
	}

	seg, err := openSegment(name)
	if err != nil {
		_ = lock.release()
		return nil, err
	}

	if !bytes.HasPrefix(seg.hdr.signature[:], []byte(Magic)) {
		_ = seg.close()
		_ = lock.release()
		return nil, newErr(CorruptSegment, name, nil)
	}

	headerUUID := cstring(seg.hdr.uuid[:])
	sideUUID, err := readSideFile(name)
	if err != nil {
		_ = seg.close()
		_ = lock.release()
		return nil, newErr(CorruptSegment, name, err)
	}
	if headerUUID != sideUUID {
		_ = seg.close()
		_ = lock.release()
		return nil, newErr(StaleSession, name, nil)
	}

	c := &Consumer{name: name, log: log, lock: lock, seg: seg, uuid: headerUUID}
	c.log.Info("ipc consumer attached", "queue", name, "session", sessionFingerprint(headerUUID))
	return c, nil
}

// SessionUUID returns the session this consumer is attached to.
func (c *Consumer) SessionUUID() string { return c.uuid }

// Read copies the next queued message into buf, returning the number of
// bytes copied. Returns 0 if the ring is empty. If buf is smaller than the
// stored message, the copy is silently truncated (spec §4.1 Read protocol) —
// callers are expected to supply MaxMsgSize buffers.
func (c *Consumer) Read(buf []byte) uint32 {
	h := c.seg.hdr
	r := atomic.LoadUint32(&h.readIdx)  // relaxed: single reader
	w := atomic.LoadUint32(&h.writeIdx) // acquire: see the producer's latest publish

	if r >= w {
		return 0
	}

	idx := r % h.capacity
	s := &c.seg.slot[idx]
	msgLen := atomic.LoadUint32(&s.len) // ordered by the acquire load above
	n := msgLen
	if n > uint32(len(buf)) {
		n = uint32(len(buf))
	}
	copy(buf[:n], s.data[:n])

	// Release: signals the producer this slot is free again.
	atomic.StoreUint32(&h.readIdx, r+1)
	return n
}

// Close releases the consumer role lock and unmaps the segment.
func (c *Consumer) Close() error {
	err := c.seg.close()
	if lerr := c.lock.release(); err == nil {
		err = lerr
	}
	c.log.Info("ipc consumer detached", "queue", c.name)
	return err
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
