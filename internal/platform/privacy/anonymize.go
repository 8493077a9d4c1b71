// Package privacy masks personal data before it reaches logs, traces or events.
package privacy

import (
	"fmt"
	"net"
	"strings"
)

// AnonymizeIP zeroes the host part of an address: IPv4 keeps the /24,
// IPv6 keeps the /48. Returns "invalid" for unparseable input and "unknown"
// for empty input.
func AnonymizeIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "invalid"
	}

	if v4 := parsed.To4(); v4 != nil {
		return fmt.Sprintf("%d.%d.%d.0", v4[0], v4[1], v4[2])
	}

	return fmt.Sprintf("%02x%02x:%02x%02x:%02x%02x::",
		parsed[0], parsed[1],
		parsed[2], parsed[3],
		parsed[4], parsed[5])
}

// AnonymizeRemoteAddr anonymizes an http.Request.RemoteAddr, with or without a port.
func AnonymizeRemoteAddr(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return AnonymizeIP(host)
	}
	return AnonymizeIP(addr)
}

// MaskEmail keeps the first character of the local part and the domain:
// "alice@example.com" becomes "a***@example.com".
func MaskEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
