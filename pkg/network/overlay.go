package network

import (
	"context"
	"errors"
	"fmt"
)

// ErrAttach marks failures to attach an overlay address or DNS record
var ErrAttach = errors.New("overlay attach failed")

const (
	// DefaultWeaveBinary is the overlay network CLI
	DefaultWeaveBinary = "weave"

	// DefaultDNSDomain is the overlay DNS domain
	DefaultDNSDomain = "gluu.local"
)

// Weave drives the weave overlay network through its command-line tool
type Weave struct {
	binary    string
	dnsDomain string
	cmd       Commander
}

// NewWeave creates an overlay client. Empty arguments take the defaults.
func NewWeave(binary, dnsDomain string, cmd Commander) *Weave {
	if binary == "" {
		binary = DefaultWeaveBinary
	}
	if dnsDomain == "" {
		dnsDomain = DefaultDNSDomain
	}
	if cmd == nil {
		cmd = ExecCommander{}
	}
	return &Weave{binary: binary, dnsDomain: dnsDomain, cmd: cmd}
}

// RouterOptions configures a router launch
type RouterOptions struct {
	Password string
	// IPRange is the cluster overlay CIDR, used for allocation range and default subnet
	IPRange string
	// Peers are the addresses to join; empty launches a standalone (master) router
	Peers []string
}

// LaunchRouter starts the overlay router container
func (w *Weave) LaunchRouter(ctx context.Context, opts RouterOptions) error {
	args := []string{
		"launch-router",
		"--password", opts.Password,
		"--dns-domain", w.dnsDomain,
		"--ipalloc-range", opts.IPRange,
		"--ipalloc-default-subnet", opts.IPRange,
	}
	args = append(args, opts.Peers...)

	if _, err := w.cmd.Run(ctx, w.binary, args...); err != nil {
		return fmt.Errorf("failed to launch overlay router: %w", err)
	}
	return nil
}

// Expose assigns cidr to the host so it can reach the overlay network
func (w *Weave) Expose(ctx context.Context, cidr string) error {
	if _, err := w.cmd.Run(ctx, w.binary, "expose", cidr); err != nil {
		return fmt.Errorf("failed to expose %s: %w", cidr, err)
	}
	return nil
}

// Attach assigns cidr to a container's overlay interface
func (w *Weave) Attach(ctx context.Context, cidr, containerID string) error {
	if _, err := w.cmd.Run(ctx, w.binary, "attach", cidr, containerID); err != nil {
		return fmt.Errorf("%w: attach %s to %s: %v", ErrAttach, cidr, containerID, err)
	}
	return nil
}

// AddDNS registers hostname for a container in the overlay DNS. Re-adding an
// existing record is harmless.
func (w *Weave) AddDNS(ctx context.Context, containerID, hostname string) error {
	if _, err := w.cmd.Run(ctx, w.binary, "dns-add", containerID, "-h", hostname); err != nil {
		return fmt.Errorf("%w: dns-add %s for %s: %v", ErrAttach, hostname, containerID, err)
	}
	return nil
}
