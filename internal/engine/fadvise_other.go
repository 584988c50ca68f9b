//go:build !linux

package engine

func fadviseSequential(fd uintptr) error {
	return nil
}

func fadviseWillneed(fd uintptr, offset, length int64) error {
	return nil
}

func fadviseDontneed(fd uintptr, offset, length int64) error {
	return nil
}
