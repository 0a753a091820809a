package protocol

import (
	"encoding/json"
	"fmt"
)

// Message is an outbound command, config or ping message. Immutable once
// constructed; MsgID uniquely identifies the request within the process
// lifetime of the connection manager.
type Message struct {
	Class   string // one of ClassCommand, ClassConfig, ClassPing
	Payload string
	MsgID   int64
}

// Encode serializes the message to compact ASCII JSON wire bytes:
//
//	{"<class>":"<payload>","dir":"p2d","msgId":<id>}
func (m Message) Encode() ([]byte, error) {
	if m.Class != ClassCommand && m.Class != ClassConfig && m.Class != ClassPing {
		return nil, fmt.Errorf("encode message: unknown class %q", m.Class)
	}

	obj := map[string]any{
		m.Class: m.Payload,
		"dir":   Direction,
		"msgId": m.MsgID,
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return data, nil
}

// Decode parses one brace-balanced block into an Event. A decode failure is
// scoped to that block only: the caller logs it, discards the block and keeps
// scanning the remaining buffer.
func Decode(block []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(block, &ev); err != nil {
		return nil, fmt.Errorf("decode block: %w", err)
	}
	return &ev, nil
}
