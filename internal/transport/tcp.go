package transport

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"time"

	"github.com/dnsscience/dnscore/internal/wire"
)

// ErrMessageTooLarge is returned when a TCP length prefix exceeds the
// maximum DNS message size.
var ErrMessageTooLarge = errors.New("transport: tcp message exceeds maximum size")

// ReadTCPMessage reads one 16-bit length-prefixed DNS message from r
// (§4.6).
func ReadTCPMessage(r io.Reader) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint16(lenBuf[:])
	if int(length) > wire.MaxMessageSize {
		return nil, ErrMessageTooLarge
	}
	msg := make([]byte, length)
	if _, err := io.ReadFull(r, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// WriteTCPMessage writes msg to w prefixed with its 16-bit big-endian
// length (§4.6).
func WriteTCPMessage(w io.Writer, msg []byte) error {
	if len(msg) > wire.MaxMessageSize {
		return ErrMessageTooLarge
	}
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(msg)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(msg)
	return err
}

// ExchangeTCP dials addr, performs a single length-prefixed request/response
// exchange, and closes the connection — the one-shot shape the stub client
// uses against the local recursive resolver (§2, §4.6).
func ExchangeTCP(addr string, raw []byte) ([]byte, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(ClientTimeout)); err != nil {
		return nil, err
	}
	if err := WriteTCPMessage(conn, raw); err != nil {
		return nil, err
	}
	return ReadTCPMessage(conn)
}

// TCPHandler answers one request read from a connection and returns the
// response to write back before the connection is closed.
type TCPHandler func(request []byte) []byte

// TCPServer accepts exactly one request/response exchange per connection,
// closing the connection afterward, and accepts the next connection only
// once the current one is finished (§4.6, §5).
type TCPServer struct {
	listener net.Listener
	handler  TCPHandler
}

// ListenTCP binds addr and returns a server ready to Serve.
func ListenTCP(addr string, handler TCPHandler) (*TCPServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &TCPServer{listener: ln, handler: handler}, nil
}

// LocalAddr returns the address the server is bound to.
func (s *TCPServer) LocalAddr() net.Addr { return s.listener.Addr() }

// Close releases the underlying listener.
func (s *TCPServer) Close() error { return s.listener.Close() }

// Serve runs the single-threaded accept loop until the listener is closed
// or stop receives a value.
func (s *TCPServer) Serve(stop <-chan struct{}) error {
	for {
		select {
		case <-stop:
			return nil
		default:
		}

		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			continue
		}
		s.handleOne(conn)
	}
}

func (s *TCPServer) handleOne(conn net.Conn) {
	defer conn.Close()

	req, err := ReadTCPMessage(conn)
	if err != nil {
		return
	}
	reply := s.handler(req)
	if reply == nil {
		return
	}
	_ = WriteTCPMessage(conn, reply)
}
