package ipc

import (
	"log/slog"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Producer owns a shared-memory ring segment and is the sole writer of
// writeIdx and slot contents (spec §3, §4.1). Only one Producer may exist
// for a given queue name at a time, enforced by an advisory file lock.
type Producer struct {
	name string
	log  *slog.Logger

	lock     *roleLock
	seg      *segment
	uuid     string
	capacity uint32
}

// NewProducer creates (or recreates) the named ring, acquiring the producer
// role lock first. capacity of 0 uses DefaultCapacity.
func NewProducer(name string, capacity uint32, log *slog.Logger) (*Producer, error) {
	if log == nil {
		log = slog.Default()
	}
	if capacity == 0 {
		capacity = DefaultCapacity
	}

	lock, err := acquireRoleLock(name, true)
	if err != nil {
		return nil, err
	}

	seg, err := createSegment(name, capacity)
	if err != nil {
		_ = lock.release()
		return nil, err
	}

	sessionUUID := generateSessionUUID()
	if err := writeSideFile(name, sessionUUID); err != nil {
		_ = seg.close()
		_ = lock.release()
		return nil, errors.Wrap(err, "producer: publish session uuid")
	}

	h := seg.hdr
	copy(h.signature[:], Magic)
	copy(h.uuid[:], sessionUUID)
	atomic.StoreUint32(&h.capacity, capacity)
	atomic.StoreUint32(&h.maxMsgSize, MaxMsgSize)
	atomic.StoreUint32(&h.writeIdx, 0)
	atomic.StoreUint32(&h.readIdx, 0)

	p := &Producer{
		name:     name,
		log:      log,
		lock:     lock,
		seg:      seg,
		uuid:     sessionUUID,
		capacity: capacity,
	}
	p.log.Info("ipc producer started", "queue", name, "session", sessionFingerprint(sessionUUID), "capacity", capacity)
	return p, nil
}

// SessionUUID returns this incarnation's session identifier.
func (p *Producer) SessionUUID() string { return p.uuid }

// Write publishes one message into the ring. Returns false without mutating
// any state if size exceeds MaxMsgSize or the ring is full — both are
// non-blocking, drop-at-producer conditions per spec §4.1/§7.
func (p *Producer) Write(data []byte) bool {
	if len(data) > MaxMsgSize {
		return false
	}

	h := p.seg.hdr
	w := atomic.LoadUint32(&h.writeIdx) // relaxed: single writer, no cross-thread races
	r := atomic.LoadUint32(&h.readIdx)  // acquire: see the consumer's latest progress

	if w-r >= h.capacity {
		return false // full
	}

	idx := w % h.capacity
	s := &p.seg.slot[idx]
	copy(s.data[:], data)
	atomic.StoreUint32(&s.len, uint32(len(data))) // covered by the release store below

	// Release: publishes both the slot contents and the new index together.
	// Pairs with the consumer's acquire load of writeIdx.
	atomic.StoreUint32(&h.writeIdx, w+1)
	return true
}

// Close unmaps this process's view of the segment and releases the producer
// role lock. Per spec §4.1 Teardown, the shared-memory segment itself is not
// unlinked, so any attached consumer can finish draining; use cmd/ipc-cleanup
// to reclaim it.
func (p *Producer) Close() error {
	err := p.seg.close()
	if lerr := p.lock.release(); err == nil {
		err = lerr
	}
	p.log.Info("ipc producer stopped", "queue", p.name)
	return err
}
