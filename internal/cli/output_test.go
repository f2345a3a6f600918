package cli

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "short text is kept", in: "echo hi", n: 10, want: "echo hi"},
		{name: "newlines are flattened", in: "a\nb", n: 10, want: "a b"},
		{name: "long ascii is cut", in: "0123456789", n: 8, want: "01234..."},
		{name: "multi-byte runes stay whole", in: "échoué échoué", n: 8, want: "échou..."},
		{name: "fits in runes but not bytes", in: "日本語テキスト", n: 7, want: "日本語テキスト"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}
