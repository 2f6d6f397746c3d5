package server

import (
	"context"
	"fmt"
	"net"
	"time"
)

// DatagramSender relays payloads to the listener address.
// Every Send opens its own socket and closes it after the write; there is no
// acknowledgment, so a nil error only means the datagram left this process.
type DatagramSender struct {
	address      string
	writeTimeout time.Duration
	dialer       net.Dialer
}

// NewDatagramSender creates a sender targeting address (host:port)
func NewDatagramSender(address string) *DatagramSender {
	return &DatagramSender{
		address:      address,
		writeTimeout: 2 * time.Second,
	}
}

// Address returns the destination of relayed datagrams
func (s *DatagramSender) Address() string {
	return s.address
}

// Send writes payload as a single datagram
func (s *DatagramSender) Send(ctx context.Context, payload []byte) error {
	conn, err := s.dialer.DialContext(ctx, "udp", s.address)
	if err != nil {
		return fmt.Errorf("open datagram socket to %s: %w", s.address, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(s.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}

	n, err := conn.Write(payload)
	if err != nil {
		return fmt.Errorf("send datagram to %s: %w", s.address, err)
	}
	if n != len(payload) {
		return fmt.Errorf("send datagram to %s: short write %d of %d bytes", s.address, n, len(payload))
	}

	return nil
}
