package mq

import "sync/atomic"

// ClientStats is a snapshot of a connection's lifetime packet counters. The
// counters are atomics incremented on every send and receive whether or not
// WithMetrics is set; GetStats is their only consumer, so the cost is a
// handful of atomic adds per packet.
type ClientStats struct {
	PacketsSent     uint64
	PacketsReceived uint64
	BytesSent       uint64
	BytesReceived   uint64
	PublishesSent   uint64
	PublishesRecv   uint64
	PingsSent       uint64
	Reconnects      uint64
}

type connStats struct {
	packetsSent     atomic.Uint64
	packetsReceived atomic.Uint64
	bytesSent       atomic.Uint64
	bytesReceived   atomic.Uint64
	publishesSent   atomic.Uint64
	publishesRecv   atomic.Uint64
	pingsSent       atomic.Uint64
}

func (s *connStats) recordSend(n int) {
	s.packetsSent.Add(1)
	s.bytesSent.Add(uint64(n))
}

func (s *connStats) recordReceive(n int) {
	s.packetsReceived.Add(1)
	s.bytesReceived.Add(uint64(n))
}

// GetStats returns a snapshot of the connection's lifetime counters.
func (c *Client) GetStats() ClientStats {
	return ClientStats{
		PacketsSent:     c.stats.packetsSent.Load(),
		PacketsReceived: c.stats.packetsReceived.Load(),
		BytesSent:       c.stats.bytesSent.Load(),
		BytesReceived:   c.stats.bytesReceived.Load(),
		PublishesSent:   c.stats.publishesSent.Load(),
		PublishesRecv:   c.stats.publishesRecv.Load(),
		PingsSent:       c.stats.pingsSent.Load(),
	}
}
