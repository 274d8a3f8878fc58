package facade

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/clusteragent/pkg/network"
	"github.com/cuemby/clusteragent/pkg/runtime"
)

// Facade is the typed surface over the container runtime and the host
// network tools that recovery steps and role executors act through. All
// calls are synchronous.
type Facade interface {
	IsRunning(ctx context.Context, containerID string) (bool, error)
	Restart(ctx context.Context, containerID string) error
	Stop(ctx context.Context, containerID string) error

	// Exec runs command through a shell inside the container
	Exec(ctx context.Context, containerID, command string) (runtime.ExecResult, error)

	AttachAddress(ctx context.Context, cidr, containerID string) error
	AddDNSRecord(ctx context.Context, containerID, hostname string) error
	LaunchRouter(ctx context.Context, opts network.RouterOptions) error
	ExposeAddress(ctx context.Context, cidr string) error

	// EnsureNATRule leaves exactly one copy of rule installed on the host
	EnsureNATRule(ctx context.Context, rule network.NATRule) error
}

// ContainerRuntime is the subset of the containerd runtime the facade uses
type ContainerRuntime interface {
	IsRunning(ctx context.Context, containerID string) (bool, error)
	Restart(ctx context.Context, containerID string) error
	StopContainer(ctx context.Context, containerID string) error
	Exec(ctx context.Context, containerID, command string) (runtime.ExecResult, error)
}

// Host implements Facade on the local machine
type Host struct {
	runtime     ContainerRuntime
	weave       *network.Weave
	nat         *network.NATTable
	callTimeout time.Duration
}

// NewHost creates a facade. A positive callTimeout bounds every external call.
func NewHost(rt ContainerRuntime, weave *network.Weave, nat *network.NATTable, callTimeout time.Duration) *Host {
	return &Host{
		runtime:     rt,
		weave:       weave,
		nat:         nat,
		callTimeout: callTimeout,
	}
}

func (h *Host) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.callTimeout)
}

func (h *Host) IsRunning(ctx context.Context, containerID string) (bool, error) {
	ctx, cancel := h.bound(ctx)
	defer cancel()
	return h.runtime.IsRunning(ctx, containerID)
}

func (h *Host) Restart(ctx context.Context, containerID string) error {
	ctx, cancel := h.bound(ctx)
	defer cancel()
	return h.runtime.Restart(ctx, containerID)
}

func (h *Host) Stop(ctx context.Context, containerID string) error {
	ctx, cancel := h.bound(ctx)
	defer cancel()
	return h.runtime.StopContainer(ctx, containerID)
}

func (h *Host) Exec(ctx context.Context, containerID, command string) (runtime.ExecResult, error) {
	ctx, cancel := h.bound(ctx)
	defer cancel()
	return h.runtime.Exec(ctx, containerID, command)
}

func (h *Host) AttachAddress(ctx context.Context, cidr, containerID string) error {
	ctx, cancel := h.bound(ctx)
	defer cancel()
	return h.weave.Attach(ctx, cidr, containerID)
}

func (h *Host) AddDNSRecord(ctx context.Context, containerID, hostname string) error {
	ctx, cancel := h.bound(ctx)
	defer cancel()
	return h.weave.AddDNS(ctx, containerID, hostname)
}

func (h *Host) LaunchRouter(ctx context.Context, opts network.RouterOptions) error {
	ctx, cancel := h.bound(ctx)
	defer cancel()
	return h.weave.LaunchRouter(ctx, opts)
}

func (h *Host) ExposeAddress(ctx context.Context, cidr string) error {
	ctx, cancel := h.bound(ctx)
	defer cancel()
	return h.weave.Expose(ctx, cidr)
}

func (h *Host) EnsureNATRule(ctx context.Context, rule network.NATRule) error {
	ctx, cancel := h.bound(ctx)
	defer cancel()
	return h.nat.EnsureSingle(ctx, rule)
}

// CommandError is a shell step inside a container that exited non-zero
type CommandError struct {
	ContainerID string
	Command     string
	ExitCode    int
	Output      string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command in %s exited with code %d: %s", e.ContainerID, e.ExitCode, e.Output)
}

// ExecChecked runs command in the container and converts a non-zero exit
// code into a *CommandError
func ExecChecked(ctx context.Context, f Facade, containerID, command string) error {
	result, err := f.Exec(ctx, containerID, command)
	if err != nil {
		return fmt.Errorf("failed to exec in %s: %w", containerID, err)
	}
	if result.ExitCode != 0 {
		return &CommandError{
			ContainerID: containerID,
			Command:     command,
			ExitCode:    result.ExitCode,
			Output:      result.Output,
		}
	}
	return nil
}
