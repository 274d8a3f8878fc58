// Package facadetest provides an in-memory Facade that records calls.
package facadetest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cuemby/clusteragent/pkg/network"
	"github.com/cuemby/clusteragent/pkg/runtime"
)

// ExecRule scripts the result of Exec calls whose command contains Match
type ExecRule struct {
	ContainerID string // empty matches any container
	Match       string
	ExitCode    int
	Output      string
}

// Fake is a Facade double. Containers listed in Running report as running;
// Restart marks them running and Stop marks them stopped. Errors keyed by
// "<op>" or "<op> <arg>" are returned from the matching call.
type Fake struct {
	mu sync.Mutex

	Running   map[string]bool
	ExecRules []ExecRule
	Errors    map[string]error

	calls    []string
	hosts    map[string][]string
	natRules map[string]int
}

// New creates a fake with the given containers running
func New(running ...string) *Fake {
	f := &Fake{
		Running:  make(map[string]bool),
		Errors:   make(map[string]error),
		hosts:    make(map[string][]string),
		natRules: make(map[string]int),
	}
	for _, id := range running {
		f.Running[id] = true
	}
	return f
}

func (f *Fake) record(op string, args ...string) error {
	f.calls = append(f.calls, strings.TrimSpace(op+" "+strings.Join(args, " ")))
	if err, ok := f.Errors[op]; ok {
		return err
	}
	for _, arg := range args {
		if err, ok := f.Errors[op+" "+arg]; ok {
			return err
		}
	}
	return nil
}

// Calls returns every recorded call as "<op> <args...>"
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallsOf returns the recorded calls of one operation
func (f *Fake) CallsOf(op string) []string {
	var out []string
	for _, c := range f.Calls() {
		if c == op || strings.HasPrefix(c, op+" ") {
			out = append(out, c)
		}
	}
	return out
}

// Reset clears recorded calls, keeping container and rule state
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// HostLines returns the lines appended to a container's hosts file
func (f *Fake) HostLines(containerID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.hosts[containerID]...)
}

// NATRuleCount returns how many copies of rule are installed
func (f *Fake) NATRuleCount(rule network.NATRule) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.natRules[rule.String()]
}

func (f *Fake) IsRunning(_ context.Context, containerID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("is-running", containerID); err != nil {
		return false, err
	}
	return f.Running[containerID], nil
}

func (f *Fake) Restart(_ context.Context, containerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("restart", containerID); err != nil {
		return err
	}
	f.Running[containerID] = true
	return nil
}

func (f *Fake) Stop(_ context.Context, containerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("stop", containerID); err != nil {
		return err
	}
	f.Running[containerID] = false
	return nil
}

// Exec answers from ExecRules, first match wins; unmatched commands exit 0.
// Commands of the form "grep -qxF 'L' /etc/hosts || echo 'L' >> /etc/hosts"
// are applied to an in-memory hosts file when they succeed.
func (f *Fake) Exec(_ context.Context, containerID, command string) (runtime.ExecResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("exec", containerID, command); err != nil {
		return runtime.ExecResult{}, err
	}

	for _, rule := range f.ExecRules {
		if rule.ContainerID != "" && rule.ContainerID != containerID {
			continue
		}
		if strings.Contains(command, rule.Match) {
			return runtime.ExecResult{Command: command, ExitCode: rule.ExitCode, Output: rule.Output}, nil
		}
	}

	if line, ok := hostsLine(command); ok {
		present := false
		for _, l := range f.hosts[containerID] {
			if l == line {
				present = true
			}
		}
		if !present {
			f.hosts[containerID] = append(f.hosts[containerID], line)
		}
	}
	return runtime.ExecResult{Command: command}, nil
}

func hostsLine(command string) (string, bool) {
	const marker = "|| echo '"
	i := strings.Index(command, marker)
	if i < 0 || !strings.HasSuffix(command, "' >> /etc/hosts") {
		return "", false
	}
	return strings.TrimSuffix(command[i+len(marker):], "' >> /etc/hosts"), true
}

func (f *Fake) AttachAddress(_ context.Context, cidr, containerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("attach", cidr, containerID)
}

func (f *Fake) AddDNSRecord(_ context.Context, containerID, hostname string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("dns-add", containerID, hostname)
}

func (f *Fake) LaunchRouter(_ context.Context, opts network.RouterOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	args := append([]string{opts.IPRange}, opts.Peers...)
	return f.record("launch-router", args...)
}

func (f *Fake) ExposeAddress(_ context.Context, cidr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("expose", cidr)
}

func (f *Fake) EnsureNATRule(_ context.Context, rule network.NATRule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("nat", fmt.Sprint(rule.Port), rule.Destination); err != nil {
		return err
	}
	f.natRules[rule.String()] = 1
	return nil
}
