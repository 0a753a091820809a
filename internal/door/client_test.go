package door

import (
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/nickrout/ha-powerpetdoor/internal/config"
	"github.com/nickrout/ha-powerpetdoor/internal/protocol"
)

const testTimeout = 2 * time.Second

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.ConnectTimeout = 0.05
	cfg.Reconnect = 0.05
	cfg.KeepAlive = 0.08
	cfg.Refresh = 10 // effectively off for these tests
	return cfg
}

// wireServer plays the device side of an in-memory connection, decoding
// every outbound message the client writes.
type wireServer struct {
	conn net.Conn
	msgs chan map[string]any
}

func newWireServer(conn net.Conn) *wireServer {
	s := &wireServer{conn: conn, msgs: make(chan map[string]any, 32)}
	go s.run()
	return s
}

func (s *wireServer) run() {
	var buf []byte
	read := make([]byte, 4096)
	for {
		n, err := s.conn.Read(read)
		if n > 0 {
			buf = append(buf, read[:n]...)
			for {
				block, rest, berr := protocol.ExtractBlock(buf)
				if berr != nil || block == nil {
					break
				}
				buf = rest
				var m map[string]any
				if json.Unmarshal(block, &m) == nil {
					s.msgs <- m
				}
			}
		}
		if err != nil {
			close(s.msgs)
			return
		}
	}
}

func (s *wireServer) send(t *testing.T, raw string) {
	t.Helper()
	if _, err := s.conn.Write([]byte(raw)); err != nil {
		t.Fatalf("server write failed: %v", err)
	}
}

// next returns the next message the client sent, or fails the test.
func (s *wireServer) next(t *testing.T) map[string]any {
	t.Helper()
	select {
	case m, ok := <-s.msgs:
		if !ok {
			t.Fatal("connection closed while waiting for a message")
		}
		return m
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for a message from the client")
	}
	return nil
}

// expectNone fails if the client sends anything within the window.
func (s *wireServer) expectNone(t *testing.T, window time.Duration) {
	t.Helper()
	select {
	case m := <-s.msgs:
		t.Fatalf("unexpected message from client: %v", m)
	case <-time.After(window):
	}
}

// startConnected wires a client to an in-memory device and consumes the
// initial GET_SETTINGS request every connection begins with.
func startConnected(t *testing.T, cfg *config.Config) (*Client, *wireServer, *FakeDialer) {
	t.Helper()

	clientSide, serverSide := net.Pipe()
	server := newWireServer(serverSide)

	d := NewFakeDialer()
	d.QueueConn(clientSide)

	c := New(cfg)
	c.Dialer = d
	c.Start()
	t.Cleanup(c.Stop)

	first := server.next(t)
	if first["config"] != protocol.CmdGetSettings {
		t.Fatalf("first message = %v, want initial GET_SETTINGS request", first)
	}

	return c, server, d
}

func waitUpdate(t *testing.T, c *Client) Update {
	t.Helper()
	select {
	case u := <-c.Updates():
		return u
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for a state update")
	}
	return Update{}
}

func TestClient_DoorStatusEvent(t *testing.T) {
	c, server, _ := startConnected(t, testConfig())

	server.send(t, `{"CMD":"DOOR_STATUS","success":"true","door_status":"DOOR_CLOSED","msgID":7}`)

	u := waitUpdate(t, c)
	if u.Status != protocol.DoorClosed {
		t.Errorf("update status = %q, want %q", u.Status, protocol.DoorClosed)
	}
	if !u.LastChange.IsZero() {
		t.Errorf("LastChange = %v, want zero (no prior status)", u.LastChange)
	}
	if c.IsOn() {
		t.Error("IsOn() = true, want false for DOOR_CLOSED")
	}
	if id, ok := c.ReplyMsgID(); !ok || id != 7 {
		t.Errorf("ReplyMsgID() = %d, %v, want 7, true", id, ok)
	}
	if !c.IsAvailable() {
		t.Error("IsAvailable() = false, want true while connected")
	}
}

func TestClient_LastChangeStampedOnTransitionOnly(t *testing.T) {
	c, server, _ := startConnected(t, testConfig())

	server.send(t, `{"CMD":"DOOR_STATUS","success":"true","door_status":"DOOR_HOLDING"}`)
	u := waitUpdate(t, c)
	if !u.LastChange.IsZero() {
		t.Error("LastChange set on first status report")
	}
	if !c.IsOn() {
		t.Error("IsOn() = false, want true for DOOR_HOLDING")
	}

	// Repeating the same status must not stamp a change.
	server.send(t, `{"CMD":"DOOR_STATUS","success":"true","door_status":"DOOR_HOLDING"}`)
	u = waitUpdate(t, c)
	if !u.LastChange.IsZero() {
		t.Error("LastChange set on repeated identical status")
	}

	server.send(t, `{"CMD":"DOOR_STATUS","success":"true","door_status":"DOOR_CLOSED"}`)
	u = waitUpdate(t, c)
	if u.LastChange.IsZero() {
		t.Error("LastChange not set on HOLDING -> CLOSED transition")
	}
	if got, ok := c.LastChange(); !ok || !got.Equal(u.LastChange) {
		t.Errorf("LastChange() = %v, %v, want %v, true", got, ok, u.LastChange)
	}
}

func TestClient_SettingsSyncAndToggles(t *testing.T) {
	c, server, _ := startConnected(t, testConfig())

	server.send(t, `{"CMD":"GET_SETTINGS","success":"true","settings":{"inside":"true","outside":"false"}}`)
	u := waitUpdate(t, c)
	if u.Settings["inside"] != "true" || u.Settings["outside"] != "false" {
		t.Fatalf("settings = %v, want inside=true outside=false", u.Settings)
	}

	// Door status was unknown, so the settings sync is chased with a
	// status request.
	m := server.next(t)
	if m["config"] != protocol.CmdGetDoorStatus {
		t.Fatalf("message after settings sync = %v, want GET_DOOR_STATUS", m)
	}

	if id := c.ToggleInside(); id == 0 {
		t.Error("ToggleInside() = 0, want a sent message id")
	}
	if m := server.next(t); m["config"] != protocol.CmdDisableInside {
		t.Errorf("ToggleInside with inside=true sent %v, want DISABLE_INSIDE", m)
	}

	if id := c.ToggleOutside(); id == 0 {
		t.Error("ToggleOutside() = 0, want a sent message id")
	}
	if m := server.next(t); m["config"] != protocol.CmdEnableOutside {
		t.Errorf("ToggleOutside with outside=false sent %v, want ENABLE_OUTSIDE", m)
	}

	// power_state was never reported: toggling must send nothing.
	if id := c.TogglePower(); id != 0 {
		t.Errorf("TogglePower() = %d, want 0 for unknown setting", id)
	}
	server.expectNone(t, 50*time.Millisecond)
}

func TestClient_SensorEventsMergeIntoSettings(t *testing.T) {
	c, server, _ := startConnected(t, testConfig())

	server.send(t, `{"CMD":"ENABLE_INSIDE","success":"true","inside":true}`)
	u := waitUpdate(t, c)
	if u.Settings["inside"] != "true" {
		t.Errorf("settings[inside] = %q, want %q", u.Settings["inside"], "true")
	}

	server.send(t, `{"CMD":"GET_POWER","success":"true","power_state":"false"}`)
	u = waitUpdate(t, c)
	if u.Settings["power_state"] != "false" {
		t.Errorf("settings[power_state] = %q, want %q", u.Settings["power_state"], "false")
	}
	// Earlier merges survive: the mapping grows, it is not replaced.
	if u.Settings["inside"] != "true" {
		t.Errorf("settings[inside] lost after power merge: %v", u.Settings)
	}

	server.send(t, `{"CMD":"ENABLE_TIMERS","success":"true","timersEnabled":true}`)
	u = waitUpdate(t, c)
	if u.Settings["timersEnabled"] != "true" {
		t.Errorf("settings[timersEnabled] = %q, want %q", u.Settings["timersEnabled"], "true")
	}
}

func TestClient_FailedReplyDoesNotMutateState(t *testing.T) {
	c, server, _ := startConnected(t, testConfig())

	server.send(t, `{"CMD":"DOOR_STATUS","success":"false","door_status":"DOOR_HOLDING","msgID":3}`)

	select {
	case u := <-c.Updates():
		t.Fatalf("unexpected update for failed reply: %+v", u)
	case <-time.After(50 * time.Millisecond):
	}
	if got := c.Status(); got != "" {
		t.Errorf("Status() = %q, want unchanged empty status", got)
	}
	// The echoed msgID is still recorded as the last reply correlation id.
	if id, ok := c.ReplyMsgID(); !ok || id != 3 {
		t.Errorf("ReplyMsgID() = %d, %v, want 3, true", id, ok)
	}
}

func TestClient_MsgIDsAreMonotonic(t *testing.T) {
	c, server, _ := startConnected(t, testConfig())

	first := c.Open()
	if m := server.next(t); m["cmd"] != protocol.CmdOpen {
		t.Fatalf("Open() sent %v", m)
	}
	second := c.CloseDoor()
	if m := server.next(t); m["cmd"] != protocol.CmdClose {
		t.Fatalf("CloseDoor() sent %v", m)
	}

	if second != first+1 {
		t.Errorf("msg ids = %d, %d, want consecutive", first, second)
	}
}

func TestClient_KeepaliveSuppressedByTraffic(t *testing.T) {
	cfg := testConfig()
	cfg.KeepAlive = 0.08
	c, server, _ := startConnected(t, cfg)

	// Send traffic faster than the keepalive interval. If sends did not
	// reset the countdown, a PING would appear between these commands.
	for i := 0; i < 3; i++ {
		time.Sleep(50 * time.Millisecond)
		c.Open()
		m := server.next(t)
		if _, isPing := m[protocol.ClassPing]; isPing {
			t.Fatalf("PING sent within keepalive interval of traffic: %v", m)
		}
		if m["cmd"] != protocol.CmdOpen {
			t.Fatalf("message = %v, want OPEN", m)
		}
	}

	// With traffic stopped, the keepalive fires and carries an epoch-millis
	// payload.
	m := server.next(t)
	payload, isPing := m[protocol.ClassPing]
	if !isPing {
		t.Fatalf("message after idle = %v, want PING", m)
	}
	if s, ok := payload.(string); !ok || s == "" {
		t.Errorf("PING payload = %v, want non-empty millis string", payload)
	}
}

func TestClient_ReconnectAfterConnectFailure(t *testing.T) {
	cfg := testConfig()
	cfg.Reconnect = 0.05

	d := NewFakeDialer()
	d.QueueError(errors.New("connect: connection refused"))
	d.QueueError(errors.New("connect: connection refused"))

	c := New(cfg)
	c.Dialer = d
	c.Start()
	defer c.Stop()

	// First attempt fails immediately.
	select {
	case <-d.Dialed:
	case <-time.After(testTimeout):
		t.Fatal("no initial dial attempt")
	}
	if c.IsAvailable() {
		t.Error("IsAvailable() = true after refused connect")
	}

	// Second attempt arrives only after the configured delay.
	select {
	case <-d.Dialed:
	case <-time.After(testTimeout):
		t.Fatal("no reconnect attempt after connect failure")
	}
	attempts := d.Attempts()
	if len(attempts) < 2 {
		t.Fatalf("attempts = %d, want at least 2", len(attempts))
	}
	if gap := attempts[1].Sub(attempts[0]); gap < 40*time.Millisecond {
		t.Errorf("reconnect fired after %v, want at least ~50ms delay", gap)
	}
	if c.IsAvailable() {
		t.Error("IsAvailable() = true while reconnecting")
	}
}

func TestClient_ReconnectAfterConnectionLost(t *testing.T) {
	c, server, d := startConnected(t, testConfig())

	// Device drops the socket.
	_ = server.conn.Close()

	select {
	case <-d.Dialed:
		// startConnected's attempt.
	case <-time.After(testTimeout):
		t.Fatal("missing initial dial signal")
	}
	select {
	case <-d.Dialed:
	case <-time.After(testTimeout):
		t.Fatal("no reconnect attempt after connection loss")
	}
	if c.IsAvailable() {
		t.Error("IsAvailable() = true after connection loss")
	}
}

func TestClient_FramingDesyncForcesReconnect(t *testing.T) {
	_, server, d := startConnected(t, testConfig())

	server.send(t, `garbage{"CMD":"PONG","success":"true"}`)

	<-d.Dialed // initial attempt
	select {
	case <-d.Dialed:
	case <-time.After(testTimeout):
		t.Fatal("no reconnect attempt after framing desync")
	}
}

func TestClient_MalformedBlockIsDiscarded(t *testing.T) {
	c, server, _ := startConnected(t, testConfig())

	// Undecodable JSON is dropped; the following block still applies.
	server.send(t, `{"CMD":}{"CMD":"DOOR_STATUS","success":"true","door_status":"DOOR_IDLE"}`)

	u := waitUpdate(t, c)
	if u.Status != protocol.DoorIdle {
		t.Errorf("status = %q, want %q", u.Status, protocol.DoorIdle)
	}
}

func TestClient_StopIsIdempotent(t *testing.T) {
	c, _, _ := startConnected(t, testConfig())

	c.Stop()
	if c.IsAvailable() {
		t.Error("IsAvailable() = true after Stop")
	}
	c.Stop() // must not panic or error
	if c.IsAvailable() {
		t.Error("IsAvailable() = true after second Stop")
	}
}

func TestClient_StopSuppressesReconnect(t *testing.T) {
	cfg := testConfig()
	d := NewFakeDialer()
	d.QueueError(errors.New("connect: connection refused"))

	c := New(cfg)
	c.Dialer = d
	c.Start()

	<-d.Dialed
	c.Stop()

	// The scheduled reconnect must not produce another dial.
	select {
	case <-d.Dialed:
		t.Error("dial attempted after Stop")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestClient_RefreshResendsSettingsRequest(t *testing.T) {
	cfg := testConfig()
	cfg.Refresh = 0.06
	cfg.KeepAlive = 0.5 // keep pings out of the way
	c, server, _ := startConnected(t, cfg)

	// The refresh timer only arms once a settings reply is processed.
	server.send(t, `{"CMD":"GET_SETTINGS","success":"true","settings":{"inside":"true"}}`)
	waitUpdate(t, c)

	if m := server.next(t); m["config"] != protocol.CmdGetDoorStatus {
		t.Fatalf("message = %v, want GET_DOOR_STATUS chase", m)
	}

	// After the refresh interval the client asks for settings again.
	m := server.next(t)
	if m["config"] != protocol.CmdGetSettings {
		t.Fatalf("message after refresh interval = %v, want GET_SETTINGS", m)
	}
}
