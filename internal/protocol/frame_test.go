package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestExtractBlock(t *testing.T) {
	tests := []struct {
		name      string
		buf       string
		wantBlock string
		wantRest  string
		wantErr   error
	}{
		{
			name:      "empty buffer",
			buf:       "",
			wantBlock: "",
			wantRest:  "",
		},
		{
			name:      "single complete block",
			buf:       `{"CMD":"PONG","success":"true"}`,
			wantBlock: `{"CMD":"PONG","success":"true"}`,
			wantRest:  "",
		},
		{
			name:      "block with trailing partial",
			buf:       `{"a":1}{"b":`,
			wantBlock: `{"a":1}`,
			wantRest:  `{"b":`,
		},
		{
			name:      "nested braces",
			buf:       `{"CMD":"GET_SETTINGS","settings":{"inside":"true","timers":{"am":"7"}}}`,
			wantBlock: `{"CMD":"GET_SETTINGS","settings":{"inside":"true","timers":{"am":"7"}}}`,
			wantRest:  "",
		},
		{
			name:      "unterminated block",
			buf:       `{"CMD":"DOOR_STATUS","door_st`,
			wantBlock: "",
			wantRest:  `{"CMD":"DOOR_STATUS","door_st`,
		},
		{
			name:    "desynchronized buffer",
			buf:     `garbage{"a":1}`,
			wantErr: ErrFramingDesync,
		},
		{
			name:      "two complete blocks yields first",
			buf:       `{"a":1}{"b":2}`,
			wantBlock: `{"a":1}`,
			wantRest:  `{"b":2}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block, rest, err := ExtractBlock([]byte(tt.buf))

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ExtractBlock() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractBlock() error = %v", err)
			}

			if string(block) != tt.wantBlock {
				t.Errorf("block = %q, want %q", block, tt.wantBlock)
			}
			if string(rest) != tt.wantRest {
				t.Errorf("rest = %q, want %q", rest, tt.wantRest)
			}
		})
	}
}

// Concatenated well-formed blocks split at arbitrary boundaries must come
// back out byte-for-byte in the original order, regardless of how the reads
// were chunked.
func TestExtractBlock_SplitAcrossReads(t *testing.T) {
	blocks := []string{
		`{"CMD":"DOOR_STATUS","success":"true","door_status":"DOOR_CLOSED"}`,
		`{"CMD":"GET_SETTINGS","success":"true","settings":{"inside":"true"}}`,
		`{"CMD":"PONG","success":"true","msgID":3}`,
	}
	stream := []byte(blocks[0] + blocks[1] + blocks[2])

	// Try every split point of the stream into two appends, plus a few
	// byte-at-a-time runs via chunk size 1.
	for chunkSize := 1; chunkSize <= len(stream); chunkSize += 7 {
		var buf []byte
		var got []string

		for off := 0; off < len(stream); off += chunkSize {
			end := off + chunkSize
			if end > len(stream) {
				end = len(stream)
			}
			buf = append(buf, stream[off:end]...)

			for {
				block, rest, err := ExtractBlock(buf)
				if err != nil {
					t.Fatalf("chunkSize %d: ExtractBlock() error = %v", chunkSize, err)
				}
				if block == nil {
					break
				}
				got = append(got, string(block))
				buf = rest
			}
		}

		if len(buf) != 0 {
			t.Errorf("chunkSize %d: %d leftover bytes: %q", chunkSize, len(buf), buf)
		}
		if len(got) != len(blocks) {
			t.Fatalf("chunkSize %d: got %d blocks, want %d", chunkSize, len(got), len(blocks))
		}
		for i := range blocks {
			if got[i] != blocks[i] {
				t.Errorf("chunkSize %d: block[%d] = %q, want %q", chunkSize, i, got[i], blocks[i])
			}
		}
	}
}

func TestExtractBlock_DoesNotCopy(t *testing.T) {
	buf := []byte(`{"a":1}{"b":2}`)
	block, rest, err := ExtractBlock(buf)
	if err != nil {
		t.Fatalf("ExtractBlock() error = %v", err)
	}
	if !bytes.Equal(block, buf[:7]) {
		t.Errorf("block = %q, want %q", block, buf[:7])
	}
	if !bytes.Equal(rest, buf[7:]) {
		t.Errorf("rest = %q, want %q", rest, buf[7:])
	}
}

func BenchmarkExtractBlock(b *testing.B) {
	buf := []byte(`{"CMD":"GET_SETTINGS","success":"true","settings":{"inside":"true","outside":"false","power_state":"true"}}`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ExtractBlock(buf)
	}
}
