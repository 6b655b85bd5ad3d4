package ipc

import (
	"os"
	"path/filepath"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
)

// segment is the mapped shared-memory region shared by Producer and Consumer:
// a header followed by `capacity` fixed-size slots.
type segment struct {
	file *os.File
	m    mmap.MMap
	hdr  *header
	slot []slot
}

func shmPath(name string) string {
	return filepath.Join(shmDir, name)
}

func createSegment(name string, capacity uint32) (*segment, error) {
	path := shmPath(name)

	// Unlink any prior segment of the same name (idempotent per spec §4.1
	// step 2) — a leftover from a crashed producer must not be reused.
	_ = os.Remove(path)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o666)
	if err != nil {
		return nil, errors.Wrapf(err, "create shm segment %s", path)
	}

	size := segmentSize(capacity)
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "truncate shm segment %s to %d bytes", path, size)
	}

	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "mmap shm segment %s", path)
	}

	return &segment{
		file: f,
		m:    m,
		hdr:  headerAt(m),
		slot: slotsAt(m, capacity),
	}, nil
}

func openSegment(name string) (*segment, error) {
	path := shmPath(name)

	f, err := os.OpenFile(path, os.O_RDWR, 0o666)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, newErr(NotFound, name, err)
		}
		return nil, errors.Wrapf(err, "open shm segment %s", path)
	}

	// Map the header first to discover capacity, then remap the full region.
	hdrOnly, err := mmap.MapRegion(f, int(headerSize), mmap.RDWR, 0, 0)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "mmap shm header %s", path)
	}
	capacity := headerAt(hdrOnly).capacity
	hdrOnly.Unmap()

	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "mmap shm segment %s", path)
	}

	return &segment{
		file: f,
		m:    m,
		hdr:  headerAt(m),
		slot: slotsAt(m, capacity),
	}, nil
}

func (s *segment) close() error {
	if s == nil {
		return nil
	}
	_ = s.m.Flush()
	err := s.m.Unmap()
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	return err
}
