package transport

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTCPMessageRoundTrip(t *testing.T) {
	msg := []byte{1, 2, 3, 4, 5}
	var buf bytes.Buffer
	require.NoError(t, WriteTCPMessage(&buf, msg))

	got, err := ReadTCPMessage(&buf)
	require.NoError(t, err)
	require.Equal(t, msg, got)
}

func TestTCPServerSingleExchange(t *testing.T) {
	srv, err := ListenTCP("127.0.0.1:0", func(req []byte) []byte {
		out := make([]byte, len(req))
		for i, b := range req {
			out[i] = b + 1
		}
		return out
	})
	require.NoError(t, err)
	defer srv.Close()

	stop := make(chan struct{})
	go srv.Serve(stop)
	defer close(stop)

	conn, err := net.Dial("tcp", srv.LocalAddr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, WriteTCPMessage(conn, []byte{1, 2, 3}))
	conn.SetDeadline(time.Now().Add(2 * time.Second))
	got, err := ReadTCPMessage(conn)
	require.NoError(t, err)
	require.Equal(t, []byte{2, 3, 4}, got)
}

func TestUDPServerEchoesViaHandler(t *testing.T) {
	srv, err := ListenUDP("127.0.0.1:0", func(req []byte, addr *net.UDPAddr) []byte {
		return append([]byte{0xFF}, req...)
	})
	require.NoError(t, err)
	defer srv.Close()

	stop := make(chan struct{})
	go srv.Serve(stop)
	defer close(stop)

	reply, err := ExchangeUDP(srv.LocalAddr().String(), []byte{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, []byte{0xFF, 1, 2, 3}, reply)
}

func TestExchangeUDPFailsFastWithNoListener(t *testing.T) {
	// Dialing a UDP address never fails outright (UDP is connectionless),
	// but an exchange with a closed port must return an error before
	// ClientTimeout has elapsed rather than wait out the full timeout.
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	addr := conn.LocalAddr().String()
	conn.Close()

	start := time.Now()
	_, err = ExchangeUDP(addr, []byte{1})
	require.Error(t, err)
	require.Less(t, time.Since(start), ClientTimeout)
}
