package mq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Client is a single MQTT 3.1.1 connection: the transport, the serializer,
// the two ordered operation queues, the subscription table, and the
// connection's own reference count (§3 "Connection"). Every exported method
// is safe for concurrent use.
type Client struct {
	addr string
	opts *options

	network    Network
	serializer Serializer
	pool       TaskPool
	allocator  Allocator
	logger     *slog.Logger

	subs  *subscriptionTable
	queue *opQueue

	// refMu guards refcountLocked, disconnected, and every operation's
	// refcount/elem/inQueue fields in this connection's operation set.
	refMu          sync.Mutex
	refcountLocked int
	disconnected   bool

	pktMu  sync.Mutex
	nextID uint16

	rxReader *io.PipeReader
	rxWriter *io.PipeWriter

	lifetimeCtx    context.Context
	lifetimeCancel context.CancelFunc

	ka *keepAliveEngine

	assignedClientID string
	sessionPresent   bool

	stats connStats
}

// Connect dials addr (host:port), performs the MQTT CONNECT/CONNACK
// handshake, and returns a ready Client. The returned error, if non-nil, is
// always a *StatusError.
func Connect(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	if o.clientID == "" {
		if !o.cleanSession {
			return nil, &StatusError{Status: StatusBadParameter, Err: fmt.Errorf("%w: ClientID required when CleanSession is false", ErrBadParameter)}
		}
		o.clientID = ("mq-" + strings.ReplaceAll(uuid.NewString(), "-", ""))[:MaxClientIDLength]
	}
	if o.will != nil && len(o.will.payload) > 65535 {
		return nil, &StatusError{Status: StatusBadParameter, Err: fmt.Errorf("%w: will payload exceeds 65535 bytes", ErrBadParameter)}
	}
	if o.awsMode {
		ka := o.keepAlive
		if ka <= 0 {
			ka = MaxKeepAlive
		}
		if ka < MinKeepAlive {
			ka = MinKeepAlive
		}
		if ka > MaxKeepAlive {
			ka = MaxKeepAlive
		}
		o.keepAlive = ka
	}

	network := o.network
	if network == nil {
		network = newTCPNetwork(o.dialer, o.tlsConfig)
	}
	serializer := o.serializer
	if serializer == nil {
		serializer = newDefaultSerializer()
	}
	allocator := o.allocator
	if allocator == nil {
		allocator = newPoolAllocator()
	}

	lifetimeCtx, cancel := context.WithCancel(context.Background())
	pool := o.taskPool
	if pool == nil {
		pool = newErrgroupPool(lifetimeCtx)
	}

	c := &Client{
		addr:           addr,
		opts:           o,
		network:        network,
		serializer:     serializer,
		pool:           pool,
		allocator:      allocator,
		logger:         o.logger,
		subs:           newSubscriptionTable(),
		queue:          newOpQueue(),
		refcountLocked: 1, // the Client value itself holds one reference
		lifetimeCtx:    lifetimeCtx,
		lifetimeCancel: cancel,
	}

	connectTimeout := o.connectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 30 * time.Second
	}
	if err := network.Create(addr, connectTimeout); err != nil {
		cancel()
		return nil, &StatusError{Status: StatusInitFailed, Err: err}
	}

	c.rxReader, c.rxWriter = io.Pipe()
	network.SetReceiveCallback(func(b []byte) {
		_, _ = c.rxWriter.Write(b)
	})
	if err := pool.Schedule(NewJob(func(context.Context) { c.readLoop() })); err != nil {
		_ = network.Close()
		cancel()
		return nil, &StatusError{Status: StatusSchedulingError, Err: err}
	}

	op, err := c.submitConnect(o)
	if err != nil {
		c.teardown(err)
		return nil, err
	}

	waitCtx := ctx
	if connectTimeout > 0 {
		var waitCancel context.CancelFunc
		waitCtx, waitCancel = context.WithTimeout(ctx, connectTimeout)
		defer waitCancel()
	}
	if err := c.wait(waitCtx, op); err != nil {
		c.teardown(err)
		return nil, err
	}

	c.ka = newKeepAliveEngine(c, o.keepAlive)
	c.ka.start()

	return c, nil
}

// findResponse looks up a pendingResponse operation under refMu, the lock
// queue.go's methods assume the caller already holds -- send/wait/teardown
// mutate the same lists from other goroutines, so the read loop's lookups
// must not walk them unlocked.
func (c *Client) findResponse(kind operationKind, packetID uint16) *operation {
	c.refMu.Lock()
	defer c.refMu.Unlock()
	return c.queue.findResponseByPacketID(kind, packetID)
}

func (c *Client) nextPacketID() uint16 {
	c.pktMu.Lock()
	defer c.pktMu.Unlock()
	c.nextID++
	if c.nextID == 0 {
		c.nextID = 1
	}
	return c.nextID
}

// submitConnect builds and sends the CONNECT packet as a WAITABLE operation.
func (c *Client) submitConnect(o *options) (*operation, *StatusError) {
	req := ConnectRequest{
		ClientID:     o.clientID,
		CleanSession: o.cleanSession,
		KeepAlive:    uint16(o.keepAlive / time.Second),
		Username:     o.username,
		Password:     o.password,
		HasAuth:      o.hasAuth,
		Will:         o.will,
	}
	packet, err := c.serializer.EncodeConnect(req)
	if err != nil {
		return nil, &StatusError{Status: StatusBadParameter, Err: err}
	}

	op := newOperation(c, opConnect, FlagWaitable, packet)
	if err := c.send(op); err != nil {
		completeOperation(op, err)
		return op, err
	}
	return op, nil
}

// send moves op from pendingProcessing to pendingResponse and schedules the
// transport write as a task-pool job.
func (c *Client) send(op *operation) *StatusError {
	c.refMu.Lock()
	if c.disconnected {
		c.refMu.Unlock()
		return newStatusError(StatusNetworkError)
	}
	c.queue.moveToResponse(op)
	c.refMu.Unlock()

	job := NewJob(func(context.Context) {
		if _, err := c.network.Send(op.packet); err != nil {
			completeOperation(op, &StatusError{Status: StatusNetworkError, Err: err})
			return
		}
		c.stats.recordSend(len(op.packet))
		if op.kind == opPublishToServer {
			c.stats.publishesSent.Add(1)
		}
		if !opAwaitsAck(op) {
			completeOperation(op, nil)
		}
	})
	op.job = job
	if err := c.pool.Schedule(job); err != nil {
		return &StatusError{Status: StatusSchedulingError, Err: err}
	}
	return nil
}

// readLoop decodes one packet at a time from the receive pipe and dispatches
// it, until the pipe closes (transport teardown).
func (c *Client) readLoop() {
	for {
		pkt, err := c.serializer.Decode(c.rxReader, 0)
		if err != nil {
			// A closed or truncated stream is a network failure; anything else
			// (unknown packet type, malformed packet) is a bad response.
			status := StatusBadResponse
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.ErrClosedPipe) {
				status = StatusNetworkError
			} else {
				c.logger.Debug("read loop stopped", "err", err)
			}
			c.teardown(&StatusError{Status: status, Err: err})
			return
		}
		c.stats.recordReceive(1)
		c.handleIncoming(pkt)
	}
}

// teardown forcibly disconnects the transport, fails every pending
// operation with result, and releases the client's own reference exactly
// once. Safe to call more than once.
func (c *Client) teardown(result *StatusError) {
	c.refMu.Lock()
	if c.disconnected {
		c.refMu.Unlock()
		return
	}
	c.disconnected = true
	pending := append(c.queue.allResponse(), c.queue.allProcessing()...)
	c.refMu.Unlock()

	if c.ka != nil {
		c.ka.stop()
	}
	_ = c.network.Close()
	_ = c.network.Destroy()
	_ = c.rxWriter.CloseWithError(io.ErrClosedPipe)
	_ = c.rxReader.Close()

	for _, op := range pending {
		completeOperation(op, result)
	}

	c.lifetimeCancel()
	releaseConnectionReference(c)
}

// releaseConnectionReference decrements the connection's own refcount,
// releasing its task pool once it reaches zero. Mirrors
// decrementOperationReferences/destroyOperation but for the Connection
// itself, per the spec's symmetric Operation/Connection reference model.
func releaseConnectionReference(c *Client) {
	c.refMu.Lock()
	c.refcountLocked--
	zero := c.refcountLocked == 0
	c.refMu.Unlock()
	if !zero {
		return
	}
	go func() { _ = c.pool.Wait() }()
}

// Disconnect sends DISCONNECT, waits up to DefaultResponseWaitMs for it to
// reach the transport, then tears the connection down unconditionally.
func (c *Client) Disconnect(ctx context.Context) error {
	c.refMu.Lock()
	if c.disconnected {
		c.refMu.Unlock()
		return nil
	}
	c.refMu.Unlock()

	packet, err := c.serializer.EncodeDisconnect()
	if err != nil {
		c.teardown(&StatusError{Status: StatusNetworkError, Err: err})
		return err
	}
	op := newOperation(c, opDisconnect, FlagWaitable, packet)
	if sErr := c.send(op); sErr != nil {
		completeOperation(op, sErr)
	}

	waitCtx, cancel := context.WithTimeout(ctx, DefaultResponseWaitMs)
	defer cancel()
	_ = c.wait(waitCtx, op)

	c.teardown(newStatusError(StatusNetworkError))
	return nil
}

// IsConnected reports whether the connection is still up.
func (c *Client) IsConnected() bool {
	c.refMu.Lock()
	defer c.refMu.Unlock()
	return !c.disconnected
}
