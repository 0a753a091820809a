package protocol

import "errors"

// ErrFramingDesync indicates the receive buffer no longer starts with '{'.
// Framing relies on brace balance alone (the wire has no length prefix), so a
// desynchronized buffer cannot be recovered by scanning further: the caller
// must drop the buffer and re-establish the stream.
var ErrFramingDesync = errors.New("protocol: receive buffer does not start with '{'")

// ExtractBlock extracts the longest prefix of buf that forms a balanced
// {...} brace block.
//
// It returns the block and the remaining buffer. A nil block with a nil error
// means no complete block is available yet (empty buffer or unterminated
// block); the caller should wait for more bytes. ErrFramingDesync is returned
// when the buffer does not start with '{'.
//
// Multiple blocks may arrive in one read, so callers loop until block is nil.
func ExtractBlock(buf []byte) (block, rest []byte, err error) {
	if len(buf) == 0 {
		return nil, buf, nil
	}

	if buf[0] != '{' {
		return nil, buf, ErrFramingDesync
	}

	depth := 0
	for i, c := range buf {
		switch c {
		case '{':
			depth++
		case '}':
			depth--
		}
		if depth == 0 {
			return buf[:i+1], buf[i+1:], nil
		}
	}

	// Block not terminated yet - wait for more data.
	return nil, buf, nil
}
