package engine

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

const direntReadBufSize = 32 * 1024

// readDirents performs a raw getdents64-equivalent read of fd, returning
// every entry including "." and "..". Callers that need d_ino (BPR's
// trace-follow, DW's frontier scan) go through here rather than os.ReadDir,
// which discards the inode number.
func readDirents(fd int) ([]direntEntry, error) {
	buf := make([]byte, direntReadBufSize)
	var entries []direntEntry

	for {
		n, err := unix.Getdents(fd, buf)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return entries, err
		}
		if n == 0 {
			return entries, nil
		}

		offset := 0
		for offset < n {
			d := (*unix.Dirent)(unsafe.Pointer(&buf[offset]))
			if d.Reclen == 0 {
				break
			}

			// Linux amd64 dirent64 layout: ino(8) + off(8) + reclen(2) + type(1),
			// name starts immediately after.
			const nameFieldStart = 19
			nameStart := offset + nameFieldStart
			nameEnd := offset + int(d.Reclen)
			nameBytes := buf[nameStart:nameEnd]
			nameLen := 0
			for nameLen < len(nameBytes) && nameBytes[nameLen] != 0 {
				nameLen++
			}

			entries = append(entries, direntEntry{
				Name: string(nameBytes[:nameLen]),
				Ino:  d.Ino,
				Type: d.Type,
			})

			offset += int(d.Reclen)
		}
	}
}

// readDirentsAt opens path as a directory and returns its entries via
// readDirents, closing the descriptor on every exit path.
func readDirentsAt(path string) ([]direntEntry, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_DIRECTORY, 0)
	if err != nil {
		return nil, err
	}
	defer unix.Close(fd)
	return readDirents(fd)
}
