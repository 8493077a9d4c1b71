package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeIP(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"ipv4 standard address", "192.168.1.47", "192.168.1.0"},
		{"ipv4 localhost", "127.0.0.1", "127.0.0.0"},
		{"ipv6 full address", "2001:db8:85a3:0000:0000:8a2e:0370:7334", "2001:0db8:85a3::"},
		{"ipv4 mapped ipv6", "::ffff:10.1.2.3", "10.1.2.0"},
		{"empty", "", "unknown"},
		{"garbage", "not-an-ip", "invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AnonymizeIP(tt.input))
		})
	}
}

func TestAnonymizeRemoteAddr(t *testing.T) {
	assert.Equal(t, "192.168.1.0", AnonymizeRemoteAddr("192.168.1.47:52110"))
	assert.Equal(t, "2001:0db8:85a3::", AnonymizeRemoteAddr("[2001:db8:85a3::1]:443"))
	assert.Equal(t, "10.0.0.0", AnonymizeRemoteAddr("10.0.0.9"))
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "a***@example.com", MaskEmail("alice@example.com"))
	assert.Equal(t, "***", MaskEmail("no-at-sign"))
	assert.Equal(t, "***", MaskEmail("@example.com"))
	assert.Equal(t, "***", MaskEmail("alice@"))
}
