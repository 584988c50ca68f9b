package engine

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// FS_IOC_FIEMAP, linux/fs.h. golang.org/x/sys/unix does not expose this
// ioctl request number or the fiemap wire structs — the struct carries a
// trailing variable-length fm_extents array its generator skips — so they
// are defined here and issued through unix.Syscall directly, the same
// shape fadvise.go uses for unix.Fadvise.
const fsIocFiemap = 0xC020660B

const fiemapExtentLast = 0x00000001

type fiemapHeader struct {
	fmStart        uint64
	fmLength       uint64
	fmFlags        uint32
	fmMappedExtents uint32
	fmExtentCount  uint32
	fmReserved     uint32
}

type fiemapExtent struct {
	feLogical    uint64
	fePhysical   uint64
	feLength     uint64
	feReserved64 [2]uint64
	feFlags      uint32
	feReserved   [3]uint32
}

const extentBufferElements = 1000

type fiemapBuffer struct {
	header   fiemapHeader
	extents  [extentBufferElements]fiemapExtent
}

// enumerateExtents implements the EQ operation: resolve path via r, open
// the resolved file read-only, query its physical extent map via FIEMAP,
// clamp every extent to the file's size, and append a Segment per extent.
// Any I/O error aborts enumeration for this file; whatever was collected
// so far is still returned.
func enumerateExtents(r *Resolver, path string) ([]Segment, int) {
	resolved := path
	if r != nil {
		resolved = r.Resolve(path)
	}

	f, err := os.OpenFile(resolved, os.O_RDONLY, 0)
	if err != nil {
		return nil, 0
	}
	defer f.Close()
	// This open is metadata-only — nothing it reads should count toward
	// the priming RD performs afterward, so drop anything the kernel
	// speculatively cached for it.
	defer func() {
		if err := fadviseDontneed(f.Fd(), 0, 0); err != nil {
			GetLogger().Debugf("fadvise dontneed failed for %s: %v", resolved, err)
		}
	}()

	st, err := f.Stat()
	if err != nil {
		return nil, 0
	}
	size := uint64(st.Size())

	var segments []Segment
	var buf fiemapBuffer
	pos := uint64(0)
	lastSeen := false

	for pos < size && !lastSeen {
		buf = fiemapBuffer{}
		buf.header.fmStart = pos
		buf.header.fmLength = ^uint64(0)
		buf.header.fmExtentCount = extentBufferElements

		_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), fsIocFiemap, uintptr(unsafe.Pointer(&buf)))
		if errno != 0 {
			break
		}

		for i := uint32(0); i < buf.header.fmMappedExtents; i++ {
			ext := &buf.extents[i]

			pos = ext.feLogical + ext.feLength
			if ext.feFlags&fiemapExtentLast != 0 {
				lastSeen = true
			}

			seg, ok := clampExtentToFileSize(resolved, ext.fePhysical, ext.feLogical, ext.feLength, size)
			if !ok {
				continue
			}
			segments = append(segments, seg)
		}
	}

	return segments, len(segments)
}

// clampExtentToFileSize implements §4.1's clamp rule: extents whose
// logical offset is beyond file size are skipped, and any extent that
// would run past file size has its length reduced to fit.
func clampExtentToFileSize(fileName string, physical, logical, length, fileSize uint64) (Segment, bool) {
	if logical > fileSize {
		return Segment{}, false
	}

	if logical+length > fileSize {
		length = fileSize - logical
	}
	if length == 0 {
		return Segment{}, false
	}

	return Segment{
		FileName:    fileName,
		PhysicalPos: physical,
		FileOffset:  logical,
		Length:      length,
	}, true
}
