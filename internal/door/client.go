package door

import (
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nickrout/ha-powerpetdoor/internal/config"
	"github.com/nickrout/ha-powerpetdoor/internal/logging"
	"github.com/nickrout/ha-powerpetdoor/internal/protocol"
)

// readBufferSize is the size of the per-read scratch buffer. Device messages
// are small (settings replies are the largest at a few hundred bytes).
const readBufferSize = 4096

// updateBuffer is the capacity of the state-update channel. Publishing never
// blocks; updates beyond this backlog are dropped for slow consumers.
const updateBuffer = 16

// Client maintains a long-lived connection to one Power Pet Door controller.
//
// It owns the socket lifecycle (connect, reconnect with a fixed delay,
// disconnect), the keepalive and settings-refresh timers, and the device
// state derived from inbound events. One Client corresponds to one door.
//
// All exported methods are safe for concurrent use. Command methods are
// fire-and-forget: they return the allocated message id as soon as the bytes
// are handed to the transport and never wait for the device's reply.
type Client struct {
	cfg *config.Config
	log *zap.Logger

	// Dialer opens the transport connection. Replace before Start to
	// substitute the transport (tests use an in-memory pipe).
	Dialer Dialer

	mu        sync.Mutex
	conn      net.Conn
	buf       []byte
	epoch     uint64
	shutdown  bool
	keepalive *time.Timer
	refresh   *time.Timer
	redial    *time.Timer

	msgID      int64
	replyMsgID int64
	gotReply   bool

	status     string
	lastChange time.Time
	settings   map[string]string

	updates chan Update
}

// New creates a Client for the configured door controller. The client is
// inert until Start is called.
func New(cfg *config.Config) *Client {
	return &Client{
		cfg:      cfg,
		log:      logging.GetLogger(),
		Dialer:   TCPDialer{},
		settings: make(map[string]string),
		updates:  make(chan Update, updateBuffer),
	}
}

// Start initiates connectivity with the door controller. It returns
// immediately; connection progress is reported through logs and the Updates
// channel.
func (c *Client) Start() {
	c.mu.Lock()
	c.shutdown = false
	c.mu.Unlock()

	go c.connect()
}

// Stop shuts down connectivity and suppresses any further reconnection.
// Safe to call repeatedly and at any time.
func (c *Client) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.shutdown = true
	if c.redial != nil {
		c.redial.Stop()
		c.redial = nil
	}
	c.disconnectLocked()
}

// Updates returns the state-change notification channel. Each value is a
// snapshot taken after an inbound event mutated device state.
func (c *Client) Updates() <-chan Update {
	return c.updates
}

// connect opens the transport. Connection errors feed the reconnect path
// instead of propagating to the caller.
func (c *Client) connect() {
	addr := c.cfg.Addr()
	c.log.Info("Connecting to door controller", zap.String("addr", addr))

	conn, err := c.Dialer.DialTimeout("tcp", addr, c.cfg.GetConnectTimeout())
	if err != nil {
		c.handleConnectFailure(err)
		return
	}

	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}

	c.epoch++
	epoch := c.epoch
	c.conn = conn
	c.buf = nil

	c.log.Info("Connection successful", zap.String("addr", addr))
	c.restartKeepaliveLocked(epoch)
	// Seed device state with a full settings sync.
	c.sendMessageLocked(protocol.ClassConfig, protocol.CmdGetSettings)
	c.mu.Unlock()

	go c.readLoop(conn, epoch)
}

// handleConnectFailure schedules a delayed reconnect unless shutdown was
// requested.
func (c *Client) handleConnectFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shutdown {
		return
	}
	c.log.Error("Unable to connect to door controller, reconnecting",
		zap.Error(err),
		zap.Duration("delay", c.cfg.GetReconnect()),
	)
	c.scheduleReconnectLocked()
}

// connectionLost handles a failed read on the current connection epoch.
func (c *Client) connectionLost(epoch uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch || c.shutdown {
		return
	}
	c.log.Error("Door controller closed the connection, reconnecting",
		zap.Error(err),
		zap.Duration("delay", c.cfg.GetReconnect()),
	)
	c.scheduleReconnectLocked()
}

// scheduleReconnectLocked tears down the current connection and arms the
// redial timer with the fixed configured delay.
func (c *Client) scheduleReconnectLocked() {
	c.disconnectLocked()

	if c.redial != nil {
		c.redial.Stop()
	}
	c.redial = time.AfterFunc(c.cfg.GetReconnect(), func() {
		c.mu.Lock()
		stopped := c.shutdown
		c.mu.Unlock()
		if stopped {
			return
		}
		c.connect()
	})
}

// disconnectLocked cancels the keepalive and refresh timers, closes the
// socket if present and clears the receive buffer. Idempotent: calling it
// with no active connection is a no-op. Bumping the epoch invalidates any
// timer or read loop that already fired and is waiting on the mutex.
func (c *Client) disconnectLocked() {
	c.epoch++
	if c.keepalive != nil {
		c.keepalive.Stop()
		c.keepalive = nil
	}
	if c.refresh != nil {
		c.refresh.Stop()
		c.refresh = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.buf = nil
}

// readLoop reads from the connection until it fails or the epoch is
// superseded. It runs in its own goroutine, one per connection epoch.
func (c *Client) readLoop(conn net.Conn, epoch uint64) {
	remote := remoteAddr(conn)
	readBuf := make([]byte, readBufferSize)

	for {
		n, err := conn.Read(readBuf)
		if n > 0 {
			logging.LogRX(remote, readBuf[:n])
			if !c.handleData(epoch, readBuf[:n]) {
				return
			}
		}
		if err != nil {
			c.connectionLost(epoch, err)
			return
		}
	}
}

// handleData appends inbound bytes to the receive buffer and drains every
// complete block from it. Returns false when the read loop should exit
// (stale epoch or framing desync).
func (c *Client) handleData(epoch uint64, data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch || c.shutdown {
		return false
	}

	c.buf = append(c.buf, data...)

	for {
		block, rest, err := protocol.ExtractBlock(c.buf)
		if err != nil {
			// The stream is desynchronized and framing cannot safely
			// continue: drop the buffer and force a fresh connection.
			c.log.Error("Receive buffer desynchronized, forcing reconnect", zap.Error(err))
			c.scheduleReconnectLocked()
			return false
		}
		if block == nil {
			return true
		}
		c.buf = rest

		ev, err := protocol.Decode(block)
		if err != nil {
			c.log.Error("Discarding undecodable block",
				zap.Error(err),
				zap.ByteString("block", block),
			)
			continue
		}
		c.processEventLocked(ev)
	}
}

// keepalive / refresh timers. Both are armed per connection epoch; a timer
// that fires after cancellation re-checks the epoch before acting.

func (c *Client) restartKeepaliveLocked(epoch uint64) {
	if c.keepalive != nil {
		c.keepalive.Stop()
	}
	c.keepalive = time.AfterFunc(c.cfg.GetKeepAlive(), func() {
		c.keepaliveFire(epoch)
	})
}

func (c *Client) keepaliveFire(epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch || c.shutdown || c.conn == nil {
		return
	}
	// The successful send re-arms the keepalive timer.
	c.sendMessageLocked(protocol.ClassPing, strconv.FormatInt(time.Now().UnixMilli(), 10))
}

func (c *Client) restartRefreshLocked(epoch uint64) {
	if c.refresh != nil {
		c.refresh.Stop()
	}
	c.refresh = time.AfterFunc(c.cfg.GetRefresh(), func() {
		c.refreshFire(epoch)
	})
}

func (c *Client) refreshFire(epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch || c.shutdown || c.conn == nil {
		return
	}
	c.sendMessageLocked(protocol.ClassConfig, protocol.CmdGetSettings)
	c.restartRefreshLocked(epoch)
}

// sendMessage allocates the next message id, encodes and writes the message.
// Fire-and-forget: the id is returned without waiting for a reply. Reply
// correlation, if needed, is the caller's concern via ReplyMsgID.
func (c *Client) sendMessage(class, payload string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendMessageLocked(class, payload)
}

func (c *Client) sendMessageLocked(class, payload string) int64 {
	c.msgID++
	id := c.msgID

	msg := protocol.Message{Class: class, Payload: payload, MsgID: id}
	data, err := msg.Encode()
	if err != nil {
		c.log.Error("Failed to encode message", zap.Error(err), zap.String("payload", payload))
		return id
	}

	c.sendDataLocked(data)
	return id
}

// sendDataLocked writes raw bytes to the socket. Any traffic resets the
// keepalive clock, so the timer is cancelled up front and re-armed after a
// successful write. A write failure is treated as connection loss.
func (c *Client) sendDataLocked(data []byte) {
	if c.conn == nil {
		c.log.Warn("Attempted to write without an active connection")
		return
	}

	if c.keepalive != nil {
		c.keepalive.Stop()
		c.keepalive = nil
	}

	logging.LogTX(remoteAddr(c.conn), data)
	if _, err := c.conn.Write(data); err != nil {
		c.log.Error("Failed to write to door controller, reconnecting", zap.Error(err))
		if !c.shutdown {
			c.scheduleReconnectLocked()
		}
		return
	}

	c.restartKeepaliveLocked(c.epoch)
}

func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}
