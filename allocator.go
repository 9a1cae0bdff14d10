package mq

import "github.com/arlobridge/iotmqtt/internal/packets"

// Allocator is the buffer-acquisition capability the engine takes as a
// construction parameter instead of assuming dynamic memory is always
// available (design note: "Global static pools"). Acquire returns a slice
// of at least size bytes; Release returns it for reuse.
type Allocator interface {
	Acquire(size int) []byte
	Release(buf []byte)
}

// poolAllocator is the default Allocator: a sync.Pool of fixed-size buffers,
// the same buffer reuse strategy internal/packets uses for incoming packets
// (IOT_MESSAGE_BUFFERS / IOT_MESSAGE_BUFFER_SIZE in the reference engine).
type poolAllocator struct{}

func newPoolAllocator() *poolAllocator {
	return &poolAllocator{}
}

func (poolAllocator) Acquire(size int) []byte {
	bufPtr := packets.GetBuffer(size)
	return (*bufPtr)[:0:cap(*bufPtr)]
}

func (poolAllocator) Release(buf []byte) {
	b := buf[:cap(buf)]
	packets.PutBuffer(&b)
}
