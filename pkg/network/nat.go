package network

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// maxDuplicateRules bounds the delete loop in EnsureSingle
const maxDuplicateRules = 32

// NATRule is a PREROUTING DNAT rule forwarding an inbound port on an
// interface to the same port on a destination IP
type NATRule struct {
	Interface   string
	Protocol    string
	Port        int
	Destination string
}

// args builds the iptables arguments for op (-A, -D, -C)
// iptables -t nat <op> PREROUTING -p tcp -i eth0 --dport 443 -j DNAT --to-destination <ip>:443
func (r NATRule) args(op string) []string {
	protocol := strings.ToLower(r.Protocol)
	if protocol == "" {
		protocol = "tcp"
	}

	args := []string{"-t", "nat", op, "PREROUTING", "-p", protocol}
	if r.Interface != "" {
		args = append(args, "-i", r.Interface)
	}
	return append(args,
		"--dport", fmt.Sprintf("%d", r.Port),
		"-j", "DNAT",
		"--to-destination", fmt.Sprintf("%s:%d", r.Destination, r.Port),
	)
}

func (r NATRule) String() string {
	return fmt.Sprintf("%s:%d -> %s:%d", r.Interface, r.Port, r.Destination, r.Port)
}

// NATTable manages DNAT rules with iptables. Rules do not survive a
// restart of the host's netfilter state, so they are reasserted on every pass.
type NATTable struct {
	binary string
	cmd    Commander
}

// NewNATTable creates a NAT table manager
func NewNATTable(cmd Commander) *NATTable {
	if cmd == nil {
		cmd = ExecCommander{}
	}
	return &NATTable{binary: "iptables", cmd: cmd}
}

// EnsureAbsent deletes every copy of rule and returns how many were removed
func (t *NATTable) EnsureAbsent(ctx context.Context, rule NATRule) (int, error) {
	removed := 0
	for removed < maxDuplicateRules {
		if _, err := t.cmd.Run(ctx, t.binary, rule.args("-D")...); err != nil {
			var exitErr *ExitError
			if errors.As(err, &exitErr) && exitErr.ExitCode == 1 {
				// no matching rule left
				return removed, nil
			}
			return removed, fmt.Errorf("failed to delete NAT rule %s: %w", rule, err)
		}
		removed++
	}
	return removed, fmt.Errorf("NAT rule %s still present after %d deletions", rule, removed)
}

// EnsureSingle leaves exactly one copy of rule installed
func (t *NATTable) EnsureSingle(ctx context.Context, rule NATRule) error {
	if _, err := t.EnsureAbsent(ctx, rule); err != nil {
		return err
	}
	if _, err := t.cmd.Run(ctx, t.binary, rule.args("-A")...); err != nil {
		return fmt.Errorf("failed to add NAT rule %s: %w", rule, err)
	}
	return nil
}
