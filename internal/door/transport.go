package door

import (
	"net"
	"time"
)

// Dialer opens the transport connection to the door controller. It is an
// injected capability so tests can substitute an in-memory transport.
type Dialer interface {
	DialTimeout(network, addr string, timeout time.Duration) (net.Conn, error)
}

// TCPDialer is the production Dialer backed by net.DialTimeout.
type TCPDialer struct{}

// DialTimeout opens a TCP connection with a connect timeout.
func (TCPDialer) DialTimeout(network, addr string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout(network, addr, timeout)
}
