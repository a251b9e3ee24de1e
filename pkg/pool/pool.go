// Package pool provides object pooling to reduce GC pressure
package pool

import (
	"bytes"
	"sync"
)

// maxPooledBuffer keeps one huge export from pinning memory in the pool.
const maxPooledBuffer = 1 << 20

// BufferPool pools *bytes.Buffer for export rendering
var BufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// StringSlicePool pools []string for tabular rows
var StringSlicePool = sync.Pool{
	New: func() interface{} {
		s := make([]string, 0, 16)
		return &s
	},
}

// GetBuffer gets an empty buffer from pool
func GetBuffer() *bytes.Buffer {
	b := BufferPool.Get().(*bytes.Buffer)
	b.Reset()
	return b
}

// PutBuffer returns a buffer to pool
func PutBuffer(b *bytes.Buffer) {
	if b.Cap() > maxPooledBuffer {
		return
	}
	BufferPool.Put(b)
}

// GetStrings gets an empty string slice from pool
func GetStrings() *[]string {
	s := StringSlicePool.Get().(*[]string)
	*s = (*s)[:0]
	return s
}

// PutStrings returns a string slice to pool
func PutStrings(s *[]string) {
	StringSlicePool.Put(s)
}
