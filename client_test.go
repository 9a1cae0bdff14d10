package mq

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arlobridge/iotmqtt/internal/packets"
)

// connectTestClient drives a handshake against fakeNetwork, acking the
// CONNECT with a successful CONNACK, then clears onSend so the caller can
// install its own expectation for whatever it sends next.
func connectTestClient(t *testing.T, extra ...Option) (*Client, *fakeNetwork) {
	t.Helper()
	fn := newFakeNetwork()
	fn.onSend = func(b []byte) {
		fn.deliver(encodeTestPacket(t, &packets.ConnackPacket{ReturnCode: packets.ConnAccepted}))
	}

	opts := append([]Option{WithNetwork(fn), WithKeepAlive(0)}, extra...)
	c, err := Connect(context.Background(), "fake:1883", opts...)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	fn.mu.Lock()
	fn.onSend = nil
	fn.mu.Unlock()
	return c, fn
}

func TestConnectSuccess(t *testing.T) {
	c, _ := connectTestClient(t)
	defer c.teardown(nil)

	if !c.IsConnected() {
		t.Error("expected client to be connected")
	}
}

func TestConnectRefused(t *testing.T) {
	fn := newFakeNetwork()
	fn.onSend = func(b []byte) {
		fn.deliver(encodeTestPacket(t, &packets.ConnackPacket{ReturnCode: packets.ConnRefusedNotAuthorized}))
	}

	_, err := Connect(context.Background(), "fake:1883", WithNetwork(fn), WithKeepAlive(0))
	if err == nil {
		t.Fatal("expected Connect to fail")
	}
	var sErr *StatusError
	if !errors.As(err, &sErr) || sErr.Status != StatusServerRefused {
		t.Errorf("expected StatusServerRefused, got %v", err)
	}
	if sErr.ReturnCode != packets.ConnRefusedNotAuthorized {
		t.Errorf("expected return code %d, got %d", packets.ConnRefusedNotAuthorized, sErr.ReturnCode)
	}
}

func TestPublishQoS0CompletesImmediately(t *testing.T) {
	c, _ := connectTestClient(t)
	defer c.teardown(nil)

	res, err := c.Publish("a/b", []byte("x"), AtMostOnce, false)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := res.Wait(ctx); err != nil {
		t.Errorf("expected QoS 0 publish to complete without an ack, got %v", err)
	}
}

func TestPublishQoS1WaitsForPuback(t *testing.T) {
	c, fn := connectTestClient(t)
	defer c.teardown(nil)

	acked := make(chan struct{})
	fn.mu.Lock()
	fn.onSend = func(b []byte) {
		if len(b) == 0 || b[0]>>4 != packets.PUBLISH {
			return
		}
		pkt, err := packets.ReadPacket(bytes.NewReader(b), 0)
		if err != nil {
			t.Errorf("decode retransmitted publish: %v", err)
			return
		}
		p := pkt.(*packets.PublishPacket)
		fn.deliver(encodeTestPacket(t, &packets.PubackPacket{PacketID: p.PacketID}))
		close(acked)
	}
	fn.mu.Unlock()

	res, err := c.Publish("a/b", []byte("hi"), AtLeastOnce, false)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := res.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	<-acked
}

func TestSubscribeDispatchesMatchingPublish(t *testing.T) {
	c, fn := connectTestClient(t)
	defer c.teardown(nil)

	fn.mu.Lock()
	fn.onSend = func(b []byte) {
		if len(b) == 0 || b[0]>>4 != packets.SUBSCRIBE {
			return
		}
		pkt, err := packets.ReadPacket(bytes.NewReader(b), 0)
		if err != nil {
			t.Errorf("decode subscribe: %v", err)
			return
		}
		sp := pkt.(*packets.SubscribePacket)
		fn.deliver(encodeTestPacket(t, &packets.SubackPacket{
			PacketID:    sp.PacketID,
			ReturnCodes: []uint8{packets.SubackQoS0},
		}))
	}
	fn.mu.Unlock()

	msgs := make(chan Message, 1)
	sub, err := c.Subscribe(
		func(_ *Client, m Message) { msgs <- m },
		TopicSubscription{Filter: "sensors/+/temp", QoS: AtMostOnce},
	)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sub.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	fn.deliver(encodeTestPacket(t, &packets.PublishPacket{
		Topic:   "sensors/kitchen/temp",
		Payload: []byte("21.0"),
		QoS:     packets.QoS0,
	}))

	select {
	case m := <-msgs:
		if m.Topic != "sensors/kitchen/temp" || string(m.Payload) != "21.0" {
			t.Errorf("unexpected message: %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatched message")
	}
}

func TestUnsubscribeStopsLocalDispatch(t *testing.T) {
	c, fn := connectTestClient(t)
	defer c.teardown(nil)

	c.subs.add(1, []string{"a/b"}, []QoS{AtMostOnce}, func(*Client, Message) {})

	fn.mu.Lock()
	fn.onSend = func(b []byte) {
		if len(b) == 0 || b[0]>>4 != packets.UNSUBSCRIBE {
			return
		}
		pkt, _ := packets.ReadPacket(bytes.NewReader(b), 0)
		up := pkt.(*packets.UnsubscribePacket)
		fn.deliver(encodeTestPacket(t, &packets.UnsubackPacket{PacketID: up.PacketID}))
	}
	fn.mu.Unlock()

	// Local dispatch stops the instant Unsubscribe is called, before any
	// wire round trip.
	if _, err := c.Unsubscribe("a/b"); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if len(c.subs.match("a/b")) != 0 {
		t.Error("expected subscription to be removed immediately")
	}
}

func TestDisconnectTearsDownConnection(t *testing.T) {
	orig := DefaultResponseWaitMs
	DefaultResponseWaitMs = 50 * time.Millisecond
	defer func() { DefaultResponseWaitMs = orig }()

	c, _ := connectTestClient(t)
	if err := c.Disconnect(context.Background()); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if c.IsConnected() {
		t.Error("expected client to be disconnected")
	}
}
