// Package types provides object pools for performance optimization
package types

import (
	"bytes"
	"sync"
)

// maxPooledBufferSize keeps oversized buffers out of the pool
const maxPooledBufferSize = 1 << 20

// BufferPool manages bytes.Buffer pooling to reduce GC pressure when
// assembling raw responses
type BufferPool struct {
	pool sync.Pool
}

// NewBufferPool creates a new buffer pool
func NewBufferPool() *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() interface{} {
				return new(bytes.Buffer)
			},
		},
	}
}

// Get retrieves an empty buffer from the pool or creates a new one
func (bp *BufferPool) Get() *bytes.Buffer {
	buf := bp.pool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// Put returns a buffer to the pool. The caller must not keep references to
// the buffer's bytes.
func (bp *BufferPool) Put(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > maxPooledBufferSize {
		return
	}
	buf.Reset()
	bp.pool.Put(buf)
}

// Global pools for common usage
var (
	// GlobalBufferPool provides a global buffer pool instance
	GlobalBufferPool = NewBufferPool()
)
