package skgrid

import (
	"fmt"
	"net"
	"time"
)

const ack = 0x01

// Remote sends frames to a grid controller over TCP. The controller answers
// every frame with a single status byte.
type Remote struct {
	sock    net.Conn
	timeout time.Duration
}

// NewRemote dials addr. A non-zero timeout bounds the dial and every frame
// round trip.
func NewRemote(addr string, timeout time.Duration) (*Remote, error) {
	sock, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dialing grid controller: %w", err)
	}
	return &Remote{sock: sock, timeout: timeout}, nil
}

func (s *Remote) Send(b []byte) error {
	if s.timeout > 0 {
		if err := s.sock.SetDeadline(time.Now().Add(s.timeout)); err != nil {
			return err
		}
	}
	n, err := s.sock.Write(b)
	if err != nil {
		return err
	}
	if n != len(b) {
		return fmt.Errorf("only wrote %d of %d bytes", n, len(b))
	}
	r := []byte{0}
	if _, err := s.sock.Read(r); err != nil {
		return err
	}
	if r[0] != ack {
		return fmt.Errorf("remote returned error code %2x", r[0])
	}
	return nil
}

func (s *Remote) Close() error {
	return s.sock.Close()
}
