// Package bufpool implements the fixed, page-aligned buffer pools shared
// between a drive's Reader and its Workers. Each drive gets two bounded
// channels, empty and filled, so that a Reader can never outrun the
// Workers draining it: MoreValue backpressure comes from channel capacity,
// the same "channel as semaphore" idiom the corpus uses for its own
// bounded worker pools (compare sync/threadgroup.go's use of channels to
// gate concurrent work rather than a raw counting semaphore).
package bufpool

import (
	"unsafe"

	"gitlab.com/NebulousLabs/errors"
)

// ErrClosed is returned by Get/Put once a Pool has been closed.
var ErrClosed = errors.New("bufpool: pool is closed")

// alignedBuffer returns a []byte of length size whose backing array starts
// at an address that is a multiple of align, by over-allocating and
// slicing at the first aligned offset. Direct I/O requires sector-aligned
// buffers and offsets, and Go's allocator gives no alignment guarantee
// beyond the machine word size for arbitrary sizes.
func alignedBuffer(size, align int) []byte {
	if align <= 1 {
		return make([]byte, size)
	}
	raw := make([]byte, size+align)
	addr := uintptr(unsafe.Pointer(&raw[0]))
	offset := 0
	if r := addr % uintptr(align); r != 0 {
		offset = align - int(r)
	}
	return raw[offset : offset+size : offset+size]
}

// Buffer is one pool-owned scoop buffer. Data is sized to sector_size *
// chunks_per_buffer and aligned to sector_size when direct I/O is active.
type Buffer struct {
	Data []byte
	Meta interface{}
}

// Pool is a drive's fixed set of buffers, represented as two bounded
// channels. The invariant that empty+filled+in-worker is constant for the
// process lifetime holds because buffers only ever move between the two
// channels and the code currently holding one; none is ever created or
// discarded after NewPool returns.
type Pool struct {
	empty  chan *Buffer
	filled chan *Buffer
	closed chan struct{}
}

// NewPool allocates count buffers of bufferSize bytes, aligned to
// sectorSize when align is true, and seeds the empty channel with all of
// them.
func NewPool(count, bufferSize, sectorSize int, align bool) *Pool {
	p := &Pool{
		empty:  make(chan *Buffer, count),
		filled: make(chan *Buffer, count),
		closed: make(chan struct{}),
	}
	alignTo := 1
	if align {
		alignTo = sectorSize
	}
	for i := 0; i < count; i++ {
		p.empty <- &Buffer{Data: alignedBuffer(bufferSize, alignTo)}
	}
	return p
}

// GetEmpty blocks until an empty buffer is available or the pool is
// closed.
func (p *Pool) GetEmpty() (*Buffer, error) {
	select {
	case b := <-p.empty:
		return b, nil
	case <-p.closed:
		return nil, ErrClosed
	}
}

// PutFilled hands a filled buffer to the workers. It blocks if the filled
// channel is at capacity, which is the pool's backpressure mechanism: a
// Reader cannot fill faster than Workers drain.
func (p *Pool) PutFilled(b *Buffer) error {
	select {
	case p.filled <- b:
		return nil
	case <-p.closed:
		return ErrClosed
	}
}

// GetFilled blocks until a filled buffer is available or the pool is
// closed.
func (p *Pool) GetFilled() (*Buffer, error) {
	select {
	case b := <-p.filled:
		return b, nil
	case <-p.closed:
		return nil, ErrClosed
	}
}

// PutEmpty returns a consumed buffer to the empty channel for reuse.
func (p *Pool) PutEmpty(b *Buffer) error {
	select {
	case p.empty <- b:
		return nil
	case <-p.closed:
		return ErrClosed
	}
}

// Close unblocks any goroutine waiting on Get/Put. It does not release the
// underlying buffers; the pool's memory lives for the process lifetime by
// design.
func (p *Pool) Close() {
	close(p.closed)
}

// Len reports the number of buffers currently in the empty and filled
// channels, for tests and diagnostics; it does not include buffers
// currently held by a worker.
func (p *Pool) Len() (empty, filled int) {
	return len(p.empty), len(p.filled)
}

// Total returns the total buffer count the pool was constructed with.
func (p *Pool) Total() int {
	return cap(p.empty)
}
