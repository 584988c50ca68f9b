//go:build linux

package engine

import (
	"golang.org/x/sys/unix"
)

// fadvise wrappers hint the kernel about the access pattern RD is about to
// perform. They are additive to the read-based priming RD actually does;
// a failing hint is never fatal.

func fadviseSequential(fd uintptr) error {
	return unix.Fadvise(int(fd), 0, 0, unix.FADV_SEQUENTIAL)
}

func fadviseWillneed(fd uintptr, offset, length int64) error {
	return unix.Fadvise(int(fd), offset, length, unix.FADV_WILLNEED)
}

func fadviseDontneed(fd uintptr, offset, length int64) error {
	return unix.Fadvise(int(fd), offset, length, unix.FADV_DONTNEED)
}
