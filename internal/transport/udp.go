// Package transport implements the two wire transports used by this
// system: UDP datagrams between the resolver and upstream authoritative
// servers, and a 16-bit length-prefixed TCP framing between a stub client
// and the local recursive resolver (§4.6). Both sides are single-threaded
// per process (§5): a server handles one message to completion, including
// any blocking upstream round-trip, before accepting the next.
package transport

import (
	"errors"
	"net"
	"time"
)

// ErrNoAnswer is returned when no reply datagram is read, because the read
// timed out or failed — a soft failure per §7 that the caller is expected
// to treat as "this server produced nothing usable". The reply is not
// decoded here.
var ErrNoAnswer = errors.New("transport: no usable answer")

// ClientTimeout is the 10-second receive timeout client-side UDP sockets
// use (§4.6).
const ClientTimeout = 10 * time.Second

// MaxUDPMessageSize caps a single UDP datagram at 1024 octets (§4.6).
// Larger responses are not truncated by this system; TC stays zero.
const MaxUDPMessageSize = 1024

// ExchangeUDP sends raw to addr and waits up to ClientTimeout for a reply,
// returning the raw response bytes. It opens and closes a fresh socket per
// call, matching the single-exchange-per-call shape the resolver needs
// when it walks a delegation chain one upstream server at a time.
func ExchangeUDP(addr string, raw []byte) ([]byte, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(ClientTimeout)); err != nil {
		return nil, err
	}
	if len(raw) > MaxUDPMessageSize {
		return nil, ErrMessageTooLarge
	}
	if _, err := conn.Write(raw); err != nil {
		return nil, err
	}

	buf := make([]byte, MaxUDPMessageSize)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, ErrNoAnswer
	}
	return buf[:n], nil
}

// UDPHandler answers one datagram from addr and returns the response
// bytes to send back.
type UDPHandler func(request []byte, addr *net.UDPAddr) []byte

// UDPServer is a single-threaded UDP datagram server: it reads one
// datagram, invokes the handler, writes the reply, and only then reads
// the next (§5).
type UDPServer struct {
	conn    *net.UDPConn
	handler UDPHandler
}

// ListenUDP binds addr and returns a server ready to Serve.
func ListenUDP(addr string, handler UDPHandler) (*UDPServer, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	return &UDPServer{conn: conn, handler: handler}, nil
}

// LocalAddr returns the address the server is bound to.
func (s *UDPServer) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// Close releases the underlying socket.
func (s *UDPServer) Close() error { return s.conn.Close() }

// Serve runs the accept loop until the listener is closed or stop
// receives a value.
func (s *UDPServer) Serve(stop <-chan struct{}) error {
	buf := make([]byte, MaxUDPMessageSize)
	for {
		select {
		case <-stop:
			return nil
		default:
		}

		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			continue
		}

		reply := s.handler(append([]byte(nil), buf[:n]...), addr)
		if reply == nil {
			continue
		}
		_, _ = s.conn.WriteToUDP(reply, addr)
	}
}
