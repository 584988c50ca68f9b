package engine

import (
	"golang.org/x/sys/unix"
)

var sharedBufferPool = newBufferPool()

// Reader streams Segments in ascending physical order (§4.4). Two flavors
// share the same retry loop: one opens each segment's own file, the other
// reads from a pre-opened raw block-device descriptor.
type Reader struct {
	rawDeviceFd int
	hasRawFd    bool
}

// NewFileReader returns a Reader that opens each segment's file_name.
func NewFileReader() *Reader {
	return &Reader{}
}

// NewRawDeviceReader returns a Reader bound to an already-open raw
// block-device descriptor; segments are read at PhysicalPos.
func NewRawDeviceReader(fd int) *Reader {
	return &Reader{rawDeviceFd: fd, hasRawFd: true}
}

// ReadSegment reads one segment to completion, discarding the bytes read —
// the side effect is populating the kernel page cache (per-file) or the
// device's own cache (raw). Returns the number of bytes actually read.
func (r *Reader) ReadSegment(seg Segment) int64 {
	if r.hasRawFd {
		return r.readSegmentFromFd(r.rawDeviceFd, int64(seg.PhysicalPos), int64(seg.Length))
	}

	fd, err := unix.Open(seg.FileName, unix.O_RDONLY, 0)
	if err != nil {
		return 0
	}
	defer unix.Close(fd)

	if err := fadviseSequential(uintptr(fd)); err != nil {
		GetLogger().Debugf("fadvise sequential failed for %s: %v", seg.FileName, err)
	}
	if err := fadviseWillneed(uintptr(fd), int64(seg.FileOffset), int64(seg.Length)); err != nil {
		GetLogger().Debugf("fadvise willneed failed for %s: %v", seg.FileName, err)
	}

	return r.readSegmentFromFd(fd, int64(seg.FileOffset), int64(seg.Length))
}

func (r *Reader) readSegmentFromFd(fd int, offset int64, length int64) int64 {
	buf := sharedBufferPool.Get()
	defer sharedBufferPool.Put(buf)

	var total int64
	toRead := length
	ofs := offset

	for toRead > 0 {
		chunkSz := toRead
		if chunkSz > ReadBufferSize {
			chunkSz = ReadBufferSize
		}

		n, err := unix.Pread(fd, buf[:chunkSz], ofs)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			break
		}
		if n <= 0 {
			break
		}

		toRead -= int64(n)
		ofs += int64(n)
		total += int64(n)
	}

	return total
}

// Close releases resources owned by the reader. A file Reader has none to
// release; a raw-device Reader does not own its fd (the caller opened it
// and is responsible for closing it).
func (r *Reader) Close() {}
