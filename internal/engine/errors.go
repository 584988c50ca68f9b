package engine

import "errors"

var (
	ErrMountTableUnavailable = errors.New("encfs mount table unavailable")
	ErrDeviceGuessFailed     = errors.New("unable to guess backing block device")
	ErrRawDeviceUnavailable  = errors.New("raw block device unavailable")
)
