package network

import (
	"fmt"
	"net"

	"github.com/apparentlymart/go-cidr/cidr"
)

// ExposedAddress returns the address this machine exposes on the overlay:
// the second-to-last usable address of network, in address/prefix form.
//
//	10.1.1.0/24 -> 10.1.1.254/24
func ExposedAddress(network string) (string, error) {
	return fromTop(network, 1)
}

// SidecarAddress returns the fixed overlay address of the monitoring
// sidecar, one below the exposed address.
//
//	10.1.1.0/24 -> 10.1.1.253/24
func SidecarAddress(network string) (string, error) {
	return fromTop(network, 2)
}

// fromTop walks down n addresses from the broadcast address of network
func fromTop(network string, n int) (string, error) {
	_, ipnet, err := net.ParseCIDR(network)
	if err != nil {
		return "", fmt.Errorf("invalid overlay network %q: %w", network, err)
	}

	prefixLen, bits := ipnet.Mask.Size()
	if bits-prefixLen < 2 || cidr.AddressCount(ipnet) < uint64(n+2) {
		return "", fmt.Errorf("overlay network %s is too small", network)
	}

	_, last := cidr.AddressRange(ipnet)
	addr := last
	for i := 0; i < n; i++ {
		addr = cidr.Dec(addr)
	}
	return fmt.Sprintf("%s/%d", addr, prefixLen), nil
}
