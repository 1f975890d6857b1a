// Package udp sends advisory sentences to a fixed UDP destination, the
// usual transport for cockpit display apps listening on the local network.
package udp

import (
	"fmt"
	"net"
)

// udpConn is the part of *net.UDPConn the broadcaster uses.
type udpConn interface {
	Write(p []byte) (int, error)
	Close() error
}

type resolveFunc func(network, address string) (*net.UDPAddr, error)
type dialFunc func(network string, laddr, raddr *net.UDPAddr) (udpConn, error)

type Broadcaster struct {
	dest string
	conn udpConn
}

func NewBroadcaster(dest string) (*Broadcaster, error) {
	return newBroadcaster(dest, net.ResolveUDPAddr,
		func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
			return net.DialUDP(network, laddr, raddr)
		})
}

func newBroadcaster(dest string, resolve resolveFunc, dial dialFunc) (*Broadcaster, error) {
	addr, err := resolve("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve dest: %w", err)
	}

	// Dialing with a nil laddr selects a suitable local address.
	conn, err := dial("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp: %w", err)
	}

	return &Broadcaster{
		dest: dest,
		conn: conn,
	}, nil
}

func (b *Broadcaster) Send(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	_, err := b.conn.Write(payload)
	return err
}

func (b *Broadcaster) Close() error {
	if b.conn == nil {
		return nil
	}
	return b.conn.Close()
}
