package root

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchOrigin(t *testing.T) {
	tests := []struct {
		pattern string
		origin  string
		want    bool
	}{
		{"https://example.com", "https://example.com", true},
		{"example.com", "https://example.com:8443", true},
		{"*.example.com", "https://media.example.com", true},
		{"*.example.com", "https://example.com", false},
		{"**.example.com", "https://a.b.example.com", true},
		{"EXAMPLE.com", "https://example.com", false},
		{"example.com", "https://EXAMPLE.com", true},
		{"bücher.example", "https://xn--bcher-kva.example", true},
		{"xn--bcher-kva.example", "https://bücher.example", true},
		{"*.test", "not a url", false},
		{"*.test", "file:///tmp/x", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchOrigin(tt.pattern, tt.origin), "%s ~ %s", tt.pattern, tt.origin)
	}
}
