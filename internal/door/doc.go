// Package door implements the Power Pet Door client: connection lifecycle,
// keepalive and refresh timers, and the device state machine.
//
// # Connection Lifecycle
//
// A Client moves through Disconnected -> Connecting -> Connected and back on
// error or explicit stop; Stop puts it in an absorbing shutting-down state.
// Every transient failure (connect timeout, refused, reset, write failure)
// schedules a reconnect after the fixed configured delay, indefinitely, until
// Stop. There is deliberately no exponential backoff: the door lives on a
// local network where a fixed short retry interval behaves well.
//
// # Timers
//
// Two countdown timers run per connection epoch:
//
//   - Keepalive: after the configured idle interval a PING stamped with epoch
//     milliseconds is sent. Any outbound traffic restarts the countdown, so
//     pings only fill genuine silence.
//   - Refresh: after the configured interval a GET_SETTINGS request is sent.
//     The countdown restarts whenever a GET_SETTINGS reply is processed, so
//     it measures time since the last confirmed sync.
//
// Both are cancelled on disconnect. A timer may fire concurrently with
// cancellation, so fired timers re-check the connection epoch before acting.
//
// # Device State
//
// Inbound events update the last-known door status, the cumulative settings
// mapping (which grows by merge and is only replaced wholesale by a
// GET_SETTINGS reply) and the last-change timestamp, which is stamped only
// when a known status transitions to a different known status. Each mutation
// publishes a snapshot on the Updates channel.
//
// # Concurrency
//
// One read-loop goroutine runs per connection epoch; a single mutex
// serializes it with timer callbacks and caller command methods. The socket
// and receive buffer are owned exclusively by the Client. View methods
// (Status, Settings, IsOn, ...) return copies and may be called freely.
package door
