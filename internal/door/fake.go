package door

import (
	"errors"
	"net"
	"sync"
	"time"
)

// FakeDialer scripts connection attempts for tests. Each Dial consumes one
// queued result; running out of results fails the dial.
type FakeDialer struct {
	mu       sync.Mutex
	results  []dialResult
	attempts []time.Time

	// Dialed receives one value per dial attempt (buffered; extra attempts
	// beyond the buffer are still recorded, just not signalled).
	Dialed chan struct{}
}

type dialResult struct {
	conn net.Conn
	err  error
}

// NewFakeDialer creates an empty FakeDialer.
func NewFakeDialer() *FakeDialer {
	return &FakeDialer{Dialed: make(chan struct{}, 16)}
}

// QueueConn scripts a successful dial returning conn.
func (d *FakeDialer) QueueConn(conn net.Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.results = append(d.results, dialResult{conn: conn})
}

// QueueError scripts a failed dial.
func (d *FakeDialer) QueueError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.results = append(d.results, dialResult{err: err})
}

// DialTimeout pops the next scripted result.
func (d *FakeDialer) DialTimeout(network, addr string, timeout time.Duration) (net.Conn, error) {
	d.mu.Lock()
	d.attempts = append(d.attempts, time.Now())
	var r dialResult
	if len(d.results) > 0 {
		r = d.results[0]
		d.results = d.results[1:]
	} else {
		r = dialResult{err: errors.New("fake dialer: no scripted result")}
	}
	d.mu.Unlock()

	select {
	case d.Dialed <- struct{}{}:
	default:
	}

	return r.conn, r.err
}

// Attempts returns the times of every dial attempt so far.
func (d *FakeDialer) Attempts() []time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]time.Time, len(d.attempts))
	copy(out, d.attempts)
	return out
}
