package worker

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShellExecutor_Run(t *testing.T) {
	tests := []struct {
		name       string
		command    string
		limit      int
		wantCode   int
		wantStdout string
		wantStderr string
		wantErr    string
	}{
		{
			name:       "success captures stdout",
			command:    "echo hello",
			limit:      1024,
			wantCode:   0,
			wantStdout: "hello\n",
		},
		{
			name:       "non-zero exit captures stderr",
			command:    "echo oops >&2; exit 3",
			limit:      1024,
			wantCode:   3,
			wantStderr: "oops\n",
			wantErr:    "exit status 3",
		},
		{
			name:     "unknown command",
			command:  "definitely-not-a-command-queuectl",
			limit:    1024,
			wantCode: 127,
			wantErr:  "exit status 127",
		},
		{
			name:       "output is truncated at the limit",
			command:    "printf 0123456789",
			limit:      4,
			wantCode:   0,
			wantStdout: "0123\n...[truncated 6 bytes]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewShellExecutor(tt.limit).Run(context.Background(), tt.command, nil)

			assert.Equal(t, tt.wantCode, res.ExitCode)
			assert.Equal(t, tt.wantErr, res.Err)
			if tt.wantStdout != "" {
				assert.Equal(t, tt.wantStdout, res.Stdout)
			}
			if tt.wantStderr != "" {
				assert.Equal(t, tt.wantStderr, res.Stderr)
			}
		})
	}
}

func TestCappedBuffer(t *testing.T) {
	b := newCappedBuffer(5)

	n, err := b.Write([]byte("abc"))
	assert.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = b.Write([]byte("defgh"))
	assert.NoError(t, err)
	assert.Equal(t, 5, n, "writes report full length even when dropped")

	n, err = b.Write([]byte(strings.Repeat("x", 10)))
	assert.NoError(t, err)
	assert.Equal(t, 10, n)

	assert.Equal(t, "abcde\n...[truncated 13 bytes]", b.String())
}

func TestCappedBuffer_UnderLimit(t *testing.T) {
	b := newCappedBuffer(64)
	_, _ = b.Write([]byte("short"))
	assert.Equal(t, "short", b.String())
}
