// Package bufpool provides reusable fixed-size byte buffers for the download
// copy loop, reducing allocations while many jobs stream concurrently.
package bufpool

import "sync"

// Pool hands out buffers of exactly bufSize bytes.
type Pool struct {
	pool    sync.Pool
	bufSize int
}

// New creates a pool of bufSize-byte buffers.
func New(bufSize int) *Pool {
	if bufSize <= 0 {
		panic("bufpool: bufSize must be positive")
	}
	p := &Pool{bufSize: bufSize}
	p.pool.New = func() any {
		buf := make([]byte, bufSize)
		return &buf
	}
	return p
}

// Get returns a buffer of exactly the pool's size.
func (p *Pool) Get() []byte {
	buf := *p.pool.Get().(*[]byte)
	return buf[:p.bufSize]
}

// Put returns a buffer for reuse. Undersized buffers are discarded.
func (p *Pool) Put(buf []byte) {
	if cap(buf) < p.bufSize {
		return
	}
	buf = buf[:cap(buf)]
	p.pool.Put(&buf)
}

// BufSize returns the size of buffers handed out by the pool.
func (p *Pool) BufSize() int {
	return p.bufSize
}
