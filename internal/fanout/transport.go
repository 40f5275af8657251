package fanout

import (
	"fmt"
	"net"
)

// maxDatagram is larger than any payload this stack emits; UDP itself
// will fragment or reject anything that doesn't fit the path MTU, but
// reads never need a buffer bigger than this.
const maxDatagram = 2048

// Conn is a UDP socket framed with the fixed inter-process Header.
// Dialed connections (NewDialConn) send to one fixed peer; listening
// connections (NewListenConn) read from any peer on a local port.
type Conn struct {
	udp *net.UDPConn
}

// NewDialConn opens a UDP socket bound to a random local port and
// connected to addr, the shape each of tci/datamgr/aware uses to send
// toward its peers.
func NewDialConn(addr string) (*Conn, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("fanout: resolve %q: %w", addr, err)
	}
	c, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("fanout: dial %q: %w", addr, err)
	}
	return &Conn{udp: c}, nil
}

// NewListenConn opens a UDP socket bound to local addr, the shape each
// process uses to receive from its peers.
func NewListenConn(addr string) (*Conn, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("fanout: resolve %q: %w", addr, err)
	}
	c, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("fanout: listen %q: %w", addr, err)
	}
	return &Conn{udp: c}, nil
}

// Send frames body behind a Header carrying id and msSinceMidnight and
// writes it as a single datagram.
func (c *Conn) Send(id MsgID, msSinceMidnight uint32, body []byte) error {
	buf := Encode(Header{ID: id, MsSinceMidnight: msSinceMidnight}, body)
	_, err := c.udp.Write(buf)
	return err
}

// Recv blocks for the next datagram and returns its parsed header and
// body.
func (c *Conn) Recv() (Header, []byte, error) {
	buf := make([]byte, maxDatagram)
	n, err := c.udp.Read(buf)
	if err != nil {
		return Header{}, nil, err
	}
	h, body, err := Decode(buf[:n])
	if err != nil {
		return Header{}, nil, err
	}
	out := make([]byte, len(body))
	copy(out, body)
	return h, out, nil
}

// WriteRaw writes a pre-framed buffer as a single datagram, bypassing
// the inter-process Header — for traffic framed some other way, such
// as the savari header toward the pedestrian cloud peer.
func (c *Conn) WriteRaw(buf []byte) (int, error) { return c.udp.Write(buf) }

// Close releases the underlying socket.
func (c *Conn) Close() error { return c.udp.Close() }
