package pool

import "sync"

// minBufferCap keeps tiny requests from filling the pool with useless slices.
const minBufferCap = 1024

// maxPooledCap bounds the capacity of buffers kept in the pool; larger ones are left to the GC.
const maxPooledCap = 1 << 20

var bufferPool = sync.Pool{New: func() any {
	b := make([]byte, 0, minBufferCap)
	return &b
}}

// GetBuffer returns an empty byte slice with capacity of at least size.
//
// Return back the buffer to the pool with PutBuffer.
func GetBuffer(size int) *[]byte {
	bp, _ := bufferPool.Get().(*[]byte)
	if cap(*bp) < size {
		b := make([]byte, 0, max(size, minBufferCap))
		bp = &b
	}
	*bp = (*bp)[:0]

	return bp
}

// PutBuffer returns buf to the pool.
//
// buf cannot be accessed after returning to the pool.
func PutBuffer(bp *[]byte) {
	if bp == nil || cap(*bp) > maxPooledCap {
		return
	}
	*bp = (*bp)[:0]
	bufferPool.Put(bp)
}
