package engine

import "sync"

// ReadBufferSize is the fixed buffer size RD uses for every positioned
// read, per §4.4.
const ReadBufferSize = 512 * 1024

// bufferPool hands out fixed-size 512 KiB buffers for RD's read loop,
// avoiding a fresh allocation per segment.
type bufferPool struct {
	pool sync.Pool
}

func newBufferPool() *bufferPool {
	return &bufferPool{
		pool: sync.Pool{
			New: func() interface{} {
				buf := make([]byte, ReadBufferSize)
				return &buf
			},
		},
	}
}

func (bp *bufferPool) Get() []byte {
	bufPtr := bp.pool.Get().(*[]byte)
	return *bufPtr
}

func (bp *bufferPool) Put(buf []byte) {
	if cap(buf) != ReadBufferSize {
		return
	}
	buf = buf[:ReadBufferSize]
	bp.pool.Put(&buf)
}
