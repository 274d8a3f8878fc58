package health

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// DirectoryPort is the directory's LDAPS port, assumed when an address has none
const DirectoryPort = 1636

// TCPChecker reports a dependency ready once its port accepts connections
type TCPChecker struct {
	// Address is host:port on the overlay (e.g., "10.2.1.1:1636")
	Address string

	// DialTimeout bounds a single connection attempt
	DialTimeout time.Duration
}

// NewTCPChecker creates a checker for address. A bare host or IP is probed on
// DirectoryPort.
func NewTCPChecker(address string) *TCPChecker {
	return &TCPChecker{
		Address:     withDefaultPort(address),
		DialTimeout: 5 * time.Second,
	}
}

func withDefaultPort(address string) string {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}
	host := strings.TrimSuffix(strings.TrimPrefix(address, "["), "]")
	return net.JoinHostPort(host, strconv.Itoa(DirectoryPort))
}

// Check dials the address once
func (t *TCPChecker) Check(ctx context.Context) Result {
	start := time.Now()

	dialer := &net.Dialer{Timeout: t.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.Address)
	if err != nil {
		return Result{
			Message:   fmt.Sprintf("%s not accepting connections: %v", t.Address, err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	conn.Close()

	return Result{
		Healthy:   true,
		Message:   fmt.Sprintf("%s accepting connections", t.Address),
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

func (t *TCPChecker) Type() CheckType {
	return CheckTypeTCP
}

// WithDialTimeout sets the per-attempt connection timeout
func (t *TCPChecker) WithDialTimeout(timeout time.Duration) *TCPChecker {
	t.DialTimeout = timeout
	return t
}
