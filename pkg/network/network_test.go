package network

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIPTables keeps an in-memory rule list and records every invocation
type fakeIPTables struct {
	rules []string
	calls []string
	fail  map[string]error
}

func (f *fakeIPTables) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	line := name + " " + strings.Join(args, " ")
	f.calls = append(f.calls, line)
	for prefix, err := range f.fail {
		if strings.HasPrefix(line, prefix) {
			return nil, err
		}
	}
	if name != "iptables" {
		return nil, nil
	}

	rule := strings.Join(append([]string{args[3]}, args[4:]...), " ")
	switch args[2] {
	case "-A":
		f.rules = append(f.rules, rule)
	case "-D":
		for i, r := range f.rules {
			if r == rule {
				f.rules = append(f.rules[:i], f.rules[i+1:]...)
				return nil, nil
			}
		}
		return nil, &ExitError{Command: line, ExitCode: 1, Output: "Bad rule (does a matching rule exist in that chain?)."}
	}
	return nil, nil
}

func httpsRule() NATRule {
	return NATRule{Interface: "eth0", Port: 443, Destination: "10.2.1.4"}
}

func TestNATRuleArgs(t *testing.T) {
	assert.Equal(t,
		[]string{"-t", "nat", "-A", "PREROUTING", "-p", "tcp", "-i", "eth0", "--dport", "443", "-j", "DNAT", "--to-destination", "10.2.1.4:443"},
		httpsRule().args("-A"))

	noIface := NATRule{Protocol: "UDP", Port: 53, Destination: "10.2.1.5"}
	assert.Equal(t,
		[]string{"-t", "nat", "-D", "PREROUTING", "-p", "udp", "--dport", "53", "-j", "DNAT", "--to-destination", "10.2.1.5:53"},
		noIface.args("-D"))
}

func TestEnsureSingleIsIdempotent(t *testing.T) {
	ipt := &fakeIPTables{}
	nat := NewNATTable(ipt)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, nat.EnsureSingle(ctx, httpsRule()))
		assert.Len(t, ipt.rules, 1)
	}
}

func TestEnsureSingleCollapsesDuplicates(t *testing.T) {
	ipt := &fakeIPTables{}
	nat := NewNATTable(ipt)
	ctx := context.Background()

	// rules appended by older agents that never deleted first
	for i := 0; i < 3; i++ {
		_, err := ipt.Run(ctx, "iptables", httpsRule().args("-A")...)
		require.NoError(t, err)
	}

	removed, err := nat.EnsureAbsent(ctx, httpsRule())
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	assert.Empty(t, ipt.rules)

	require.NoError(t, nat.EnsureSingle(ctx, httpsRule()))
	assert.Len(t, ipt.rules, 1)
}

func TestEnsureAbsentUnexpectedError(t *testing.T) {
	ipt := &fakeIPTables{fail: map[string]error{
		"iptables -t nat -D": &ExitError{Command: "iptables", ExitCode: 4, Output: "Resource temporarily unavailable"},
	}}

	err := NewNATTable(ipt).EnsureSingle(context.Background(), httpsRule())
	assert.Error(t, err)
	assert.Empty(t, ipt.rules)
}

func TestWeaveCommands(t *testing.T) {
	rec := &fakeIPTables{}
	weave := NewWeave("", "", rec)
	ctx := context.Background()

	require.NoError(t, weave.LaunchRouter(ctx, RouterOptions{Password: "pw", IPRange: "10.2.1.0/24"}))
	require.NoError(t, weave.LaunchRouter(ctx, RouterOptions{IPRange: "10.2.1.0/24", Peers: []string{"192.168.1.10"}}))
	require.NoError(t, weave.Expose(ctx, "10.2.1.254/24"))
	require.NoError(t, weave.Attach(ctx, "10.2.1.1/24", "node-1"))
	require.NoError(t, weave.AddDNS(ctx, "node-1", "node-1.ldap.gluu.local"))

	assert.Equal(t, []string{
		"weave launch-router --password pw --dns-domain gluu.local --ipalloc-range 10.2.1.0/24 --ipalloc-default-subnet 10.2.1.0/24",
		"weave launch-router --password  --dns-domain gluu.local --ipalloc-range 10.2.1.0/24 --ipalloc-default-subnet 10.2.1.0/24 192.168.1.10",
		"weave expose 10.2.1.254/24",
		"weave attach 10.2.1.1/24 node-1",
		"weave dns-add node-1 -h node-1.ldap.gluu.local",
	}, rec.calls)
}

func TestWeaveAttachErrorIsTyped(t *testing.T) {
	rec := &fakeIPTables{fail: map[string]error{
		"weave": &ExitError{Command: "weave", ExitCode: 1, Output: "container not found"},
	}}
	weave := NewWeave("", "", rec)

	err := weave.Attach(context.Background(), "10.2.1.1/24", "node-1")
	assert.ErrorIs(t, err, ErrAttach)

	err = weave.AddDNS(context.Background(), "node-1", "x")
	assert.ErrorIs(t, err, ErrAttach)

	err = weave.Expose(context.Background(), "10.2.1.254/24")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrAttach)
}
