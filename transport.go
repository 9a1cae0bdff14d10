package mq

import (
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"
)

// ReceiveCallback is invoked by a Network implementation for every byte
// chunk it reads off the wire, in order, on a transport-owned goroutine.
type ReceiveCallback func([]byte)

// Network is the transport vtable the engine drives: create the connection,
// register a receive callback, send, close, destroy. Send must serialize
// concurrent callers internally so that bytes from two operations are never
// interleaved on the wire.
type Network interface {
	// Create dials or adopts the underlying connection to addr.
	Create(addr string, timeout time.Duration) error
	// SetReceiveCallback registers cb to be invoked with inbound bytes.
	// Create must have been called first; the callback fires on a
	// transport-owned goroutine until Close.
	SetReceiveCallback(cb ReceiveCallback)
	// Send writes b in a single contiguous call and returns the number of
	// bytes actually written.
	Send(b []byte) (int, error)
	// Close shuts down the connection; safe to call more than once.
	Close() error
	// Destroy releases any resources retained after Close (no-op for the
	// default TCP/TLS implementation, whose Close already frees everything).
	Destroy() error
}

// tcpNetwork is the default Network: a TCP connection, optionally wrapped in
// TLS, with a single background goroutine pumping Read into the receive
// callback. Grounded on the teacher's dialServer/readLoop split.
type tcpNetwork struct {
	dialer    *net.Dialer
	tlsConfig *tls.Config

	mu      sync.Mutex
	conn    net.Conn
	closed  bool
	closeCh chan struct{}

	sendMu sync.Mutex
}

func newTCPNetwork(dialer *net.Dialer, tlsConfig *tls.Config) *tcpNetwork {
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	return &tcpNetwork{dialer: dialer, tlsConfig: tlsConfig, closeCh: make(chan struct{})}
}

func (n *tcpNetwork) Create(addr string, timeout time.Duration) error {
	dialer := *n.dialer
	if timeout > 0 {
		dialer.Timeout = timeout
	}

	var conn net.Conn
	var err error
	if n.tlsConfig != nil {
		conn, err = tls.DialWithDialer(&dialer, "tcp", addr, n.tlsConfig)
	} else {
		conn, err = dialer.Dial("tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	n.mu.Lock()
	n.conn = conn
	n.mu.Unlock()
	return nil
}

func (n *tcpNetwork) SetReceiveCallback(cb ReceiveCallback) {
	n.mu.Lock()
	conn := n.conn
	n.mu.Unlock()
	if conn == nil {
		return
	}

	go func() {
		buf := make([]byte, 4096)
		for {
			nr, err := conn.Read(buf)
			if nr > 0 {
				chunk := make([]byte, nr)
				copy(chunk, buf[:nr])
				cb(chunk)
			}
			if err != nil {
				return
			}
			select {
			case <-n.closeCh:
				return
			default:
			}
		}
	}()
}

func (n *tcpNetwork) Send(b []byte) (int, error) {
	n.sendMu.Lock()
	defer n.sendMu.Unlock()

	n.mu.Lock()
	conn := n.conn
	n.mu.Unlock()
	if conn == nil {
		return 0, fmt.Errorf("send on unconnected network")
	}
	return conn.Write(b)
}

func (n *tcpNetwork) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	close(n.closeCh)
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}

func (n *tcpNetwork) Destroy() error {
	return nil
}
