package mq

import (
	"sync"
	"testing"
	"time"

	"github.com/arlobridge/iotmqtt/internal/packets"
)

// fakeNetwork is an in-memory Network double: Send hands bytes to the test's
// onSend hook and to sentCh instead of touching a socket, and the test delivers
// server bytes back by calling deliver(), which invokes the registered
// receive callback synchronously.
type fakeNetwork struct {
	mu      sync.Mutex
	cb      ReceiveCallback
	sentCh  chan []byte
	closed  bool
	onSend  func([]byte)
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{sentCh: make(chan []byte, 64)}
}

func (f *fakeNetwork) Create(addr string, timeout time.Duration) error { return nil }

func (f *fakeNetwork) SetReceiveCallback(cb ReceiveCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *fakeNetwork) Send(b []byte) (int, error) {
	f.mu.Lock()
	closed := f.closed
	onSend := f.onSend
	f.mu.Unlock()
	if closed {
		return 0, errClosedFakeNetwork
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	if onSend != nil {
		onSend(cp)
	}
	select {
	case f.sentCh <- cp:
	default:
	}
	return len(b), nil
}

func (f *fakeNetwork) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeNetwork) Destroy() error { return nil }

// deliver feeds server->client bytes into the registered receive callback.
func (f *fakeNetwork) deliver(b []byte) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb != nil {
		cb(b)
	}
}

func encodeTestPacket(t *testing.T, pkt packets.Packet) []byte {
	b, err := writeToBytes(pkt)
	if err != nil {
		t.Fatalf("encode %T: %v", pkt, err)
	}
	return b
}

var errClosedFakeNetwork = &fakeNetworkError{"fake network closed"}

type fakeNetworkError struct{ msg string }

func (e *fakeNetworkError) Error() string { return e.msg }
