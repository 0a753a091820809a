// Package protocol implements the Power Pet Door wire protocol.
//
// The door controller speaks newline-free ASCII JSON over a plain TCP
// socket. There is no length prefix: message boundaries are recovered by
// scanning for brace-balanced {...} blocks in the byte stream.
//
// # Outbound Messages
//
// Every outbound message is a JSON object keyed by its class:
//
//	{"cmd":"OPEN","dir":"p2d","msgId":12}
//	{"config":"GET_SETTINGS","dir":"p2d","msgId":13}
//	{"PING":"1712345678901","dir":"p2d","msgId":14}
//
// The dir field is always "p2d" (panel to door). msgId is a monotonically
// increasing per-connection-manager counter; the device echoes it back as
// msgID on the matching reply.
//
// # Inbound Events
//
// Replies and unsolicited pushes are JSON objects carrying a CMD name and a
// success flag (the strings "true"/"false"), plus command-specific fields:
// door_status, a settings object, inside/outside booleans, power_state and
// timersEnabled.
//
// # Framing
//
// ExtractBlock pulls complete blocks off an accumulating receive buffer.
// Several blocks may arrive in a single read and a block may span multiple
// reads; the scanner is deterministic and order-preserving. A buffer that
// does not start with '{' is unrecoverable (ErrFramingDesync) and forces the
// connection to be re-established.
package protocol
