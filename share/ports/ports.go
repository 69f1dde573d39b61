package ports

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultHost         = "127.0.0.1"
	DefaultProbeTimeout = 300 * time.Millisecond
	MaxPort             = 65535

	httpsPort = 443
	httpPort  = 80
)

// IsActive reports whether something accepts TCP connections on host:port
// within timeout. Dial errors and timeouts both mean "not active".
func IsActive(ctx context.Context, host string, port int, timeout time.Duration) bool {
	if host == "" {
		host = DefaultHost
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// ParsePort returns the port of a dial or listen address such as
// "127.0.0.1:5173", ":443", "tcp/:8443" or "[::1]:80".
func ParsePort(addr string) (int, bool) {
	if i := strings.Index(addr, "/"); i >= 0 {
		addr = addr[i+1:]
	}
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, false
	}
	// listen port ranges, e.g. ":8000-8010", count as their first port
	if i := strings.Index(portStr, "-"); i > 0 {
		portStr = portStr[:i]
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > MaxPort {
		return 0, false
	}
	return port, true
}

// PickHTTPSPort chooses the port the HTTPS URL should carry: 443 when it is
// listened on, otherwise the first listen port that is not plain HTTP.
func PickHTTPSPort(listen []string) (int, bool) {
	first := 0
	for _, addr := range listen {
		port, ok := ParsePort(addr)
		if !ok || port == httpPort {
			continue
		}
		if port == httpsPort {
			return httpsPort, true
		}
		if first == 0 {
			first = port
		}
	}
	if first == 0 {
		return 0, false
	}
	return first, true
}
