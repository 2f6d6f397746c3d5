package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatagramSenderDeliversPayload(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	defer conn.Close()

	sender := NewDatagramSender(conn.LocalAddr().String())
	assert.Equal(t, conn.LocalAddr().String(), sender.Address())

	payload := []byte(`{"username":"alice","message":"hello"}`)
	require.NoError(t, sender.Send(context.Background(), payload))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 1024)
	n, _, err := conn.ReadFromUDP(buf)
	require.NoError(t, err)
	assert.Equal(t, payload, buf[:n])
}

func TestDatagramSenderUsesFreshSocketPerSend(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	defer conn.Close()

	sender := NewDatagramSender(conn.LocalAddr().String())
	require.NoError(t, sender.Send(context.Background(), []byte("one")))
	require.NoError(t, sender.Send(context.Background(), []byte("two")))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 64)

	_, from1, err := conn.ReadFromUDP(buf)
	require.NoError(t, err)
	_, from2, err := conn.ReadFromUDP(buf)
	require.NoError(t, err)

	assert.NotEqual(t, from1.Port, from2.Port, "each send should come from its own ephemeral socket")
}

func TestDatagramSenderWithoutListenerStillSucceeds(t *testing.T) {
	// Reserve a port, then free it so nothing is listening there
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	addr := conn.LocalAddr().String()
	require.NoError(t, conn.Close())

	err = NewDatagramSender(addr).Send(context.Background(), []byte(`{"username":"a","message":"b"}`))
	assert.NoError(t, err, "fire-and-forget send has no delivery acknowledgment")
}

func TestDatagramSenderRejectsBadAddress(t *testing.T) {
	err := NewDatagramSender("not-a-valid-address").Send(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open datagram socket")
}
