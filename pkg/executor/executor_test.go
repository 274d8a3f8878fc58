package executor

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/clusteragent/pkg/config"
	"github.com/cuemby/clusteragent/pkg/facade/facadetest"
	"github.com/cuemby/clusteragent/pkg/health"
	"github.com/cuemby/clusteragent/pkg/inventory"
	"github.com/cuemby/clusteragent/pkg/network"
	"github.com/cuemby/clusteragent/pkg/storage"
	"github.com/cuemby/clusteragent/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testCluster  = &types.Cluster{ID: "c1", WeaveIPNetwork: "10.2.1.0/24", PublicHostname: "idp.example.com"}
	testProvider = &types.Provider{ID: "p1", Type: types.ProviderTypeMaster, Hostname: "master"}
)

type harness struct {
	fake     *facadetest.Fake
	logs     *bytes.Buffer
	registry *Registry
}

func node(id string, role types.Role, state types.NodeState, ip string) storage.Record {
	return storage.Record{
		"id": id, "cluster_id": "c1", "provider_id": "p1", "type": string(role), "state": string(state),
		"weave_ip": ip, "weave_prefixlen": 24, "truststore_fn": "/usr/lib/jvm/cacerts",
	}
}

func newHarness(t *testing.T, records []storage.Record, mutate func(*Deps)) *harness {
	t.Helper()

	store := storage.NewMemoryStore()
	for _, r := range records {
		store.Insert(storage.TableNodes, r)
	}

	cfg := config.Default()
	cfg.Directory.ProbeInterval = 5 * time.Millisecond
	cfg.Directory.ReadyTimeout = 50 * time.Millisecond

	h := &harness{fake: facadetest.New(), logs: &bytes.Buffer{}}
	deps := Deps{
		Facade: h.fake,
		Nodes:  inventory.New(store, "gluu.local"),
		Config: cfg,
		Logger: zerolog.New(h.logs),
	}
	if mutate != nil {
		mutate(&deps)
	}
	h.registry = NewRegistry(deps)
	return h
}

func (h *harness) run(t *testing.T, n *types.Node) {
	t.Helper()
	h.runIn(t, n, testCluster)
}

func (h *harness) runIn(t *testing.T, n *types.Node, cluster *types.Cluster) {
	t.Helper()
	e, ok := h.registry.Lookup(n.Role)
	require.True(t, ok, "no executor for %s", n.Role)
	e.RunEntrypoint(context.Background(), Target{Node: n, Provider: testProvider, Cluster: cluster})
}

func (h *harness) count(level string) int {
	return strings.Count(h.logs.String(), `"level":"`+level+`"`)
}

func target(id string, role types.Role, ip string) *types.Node {
	return &types.Node{
		ID: id, ClusterID: "c1", ProviderID: "p1", Role: role, State: types.NodeStateSuccess,
		WeaveIP: ip, WeavePrefixLen: 24, TruststoreFile: "/usr/lib/jvm/cacerts",
	}
}

func TestRegistryLookup(t *testing.T) {
	h := newHarness(t, nil, nil)

	for _, role := range []types.Role{types.RoleLDAP, types.RoleOxAuth, types.RoleOxTrust, types.RoleOxIdp, types.RoleNginx} {
		_, ok := h.registry.Lookup(role)
		assert.True(t, ok, role)
	}

	_, ok := h.registry.Lookup("oxasimba")
	assert.False(t, ok)
}

func TestHostAliasCommand(t *testing.T) {
	alias := HostAlias{IP: "10.2.1.1", Hostname: "ldap1"}
	assert.Equal(t, "10.2.1.1 ldap1", alias.Line())
	assert.Equal(t,
		"grep -qxF '10.2.1.1 ldap1' /etc/hosts || echo '10.2.1.1 ldap1' >> /etc/hosts",
		alias.Command(),
	)

	f := facadetest.New()
	err := EnsureHostAlias(context.Background(), f, "n1", HostAlias{IP: "10.2.1.1", Hostname: "x'; rm -rf /"})
	assert.Error(t, err)
	err = EnsureHostAlias(context.Background(), f, "n1", HostAlias{Hostname: "ldap1"})
	assert.Error(t, err)
	assert.Empty(t, f.Calls())
}

func TestAuthAddsDirectoryAliases(t *testing.T) {
	h := newHarness(t, []storage.Record{
		node("ldap1", types.RoleLDAP, types.NodeStateSuccess, "10.2.1.1"),
		node("ldap2", types.RoleLDAP, types.NodeStateSuccess, "10.2.1.2"),
		node("ldap3", types.RoleLDAP, types.NodeStateDisabled, "10.2.1.3"),
	}, nil)

	auth := target("auth1", types.RoleOxAuth, "10.2.1.10")
	h.run(t, auth)
	h.run(t, auth)

	assert.Equal(t, []string{"10.2.1.1 ldap1", "10.2.1.2 ldap2"}, h.fake.HostLines("auth1"))
	assert.Empty(t, h.fake.CallsOf("stop"))
	assert.Zero(t, h.count("error"))
}

func TestAuthAliasFailureStopsOnce(t *testing.T) {
	h := newHarness(t, []storage.Record{
		node("ldap1", types.RoleLDAP, types.NodeStateSuccess, "10.2.1.1"),
		node("ldap2", types.RoleLDAP, types.NodeStateSuccess, "10.2.1.2"),
	}, nil)
	h.fake.ExecRules = []facadetest.ExecRule{
		{ContainerID: "auth1", Match: "/etc/hosts", ExitCode: 1, Output: "read-only file system"},
	}

	h.run(t, target("auth1", types.RoleOxAuth, "10.2.1.10"))

	assert.Equal(t, []string{"stop auth1"}, h.fake.CallsOf("stop"))
	assert.Len(t, h.fake.CallsOf("exec"), 1)
	assert.Equal(t, 1, h.count("error"))
	assert.Contains(t, h.logs.String(), "read-only file system")
}

func TestIdpAddsDirectoryAliases(t *testing.T) {
	h := newHarness(t, []storage.Record{
		node("ldap1", types.RoleLDAP, types.NodeStateSuccess, "10.2.1.1"),
	}, nil)

	h.run(t, target("idp1", types.RoleOxIdp, "10.2.1.11"))

	assert.Equal(t, []string{"10.2.1.1 ldap1"}, h.fake.HostLines("idp1"))
}

func trustRecords() []storage.Record {
	return []storage.Record{
		node("ldap1", types.RoleLDAP, types.NodeStateSuccess, "10.2.1.1"),
		node("nginx1", types.RoleNginx, types.NodeStateSuccess, "10.2.1.5"),
	}
}

func TestTrustImportsProxyCertificate(t *testing.T) {
	h := newHarness(t, trustRecords(), nil)

	h.run(t, target("trust1", types.RoleOxTrust, "10.2.1.12"))

	assert.Equal(t, []string{"10.2.1.1 ldap1", "10.2.1.5 idp.example.com"}, h.fake.HostLines("trust1"))

	execs := h.fake.CallsOf("exec")
	require.Len(t, execs, 4)
	assert.Contains(t, execs[2], "openssl s_client -connect 'idp.example.com:443'")
	assert.Contains(t, execs[2], "> '/tmp/ox.cert' && grep -q 'BEGIN CERTIFICATE' '/tmp/ox.cert'")
	assert.Contains(t, execs[3], "keytool -importcert -trustcacerts -alias 'idp.example.com'")
	assert.Contains(t, execs[3], "-keystore '/usr/lib/jvm/cacerts' -storepass 'changeit' -noprompt")
	assert.Empty(t, h.fake.CallsOf("stop"))
}

func TestTrustImportFailureIsWarning(t *testing.T) {
	h := newHarness(t, trustRecords(), nil)
	h.fake.ExecRules = []facadetest.ExecRule{
		{Match: "keytool", ExitCode: 1, Output: "Certificate not imported, alias <idp.example.com> already exists"},
	}

	h.run(t, target("trust1", types.RoleOxTrust, "10.2.1.12"))

	assert.Empty(t, h.fake.CallsOf("stop"))
	assert.Equal(t, 1, h.count("warn"))
	assert.Zero(t, h.count("error"))
	assert.Contains(t, h.fake.HostLines("trust1"), "10.2.1.5 idp.example.com")
}

func TestTrustExportFailureStops(t *testing.T) {
	h := newHarness(t, trustRecords(), nil)
	h.fake.ExecRules = []facadetest.ExecRule{{Match: "openssl", ExitCode: 1}}

	h.run(t, target("trust1", types.RoleOxTrust, "10.2.1.12"))

	assert.Equal(t, []string{"stop trust1"}, h.fake.CallsOf("stop"))
	for _, call := range h.fake.CallsOf("exec") {
		assert.NotContains(t, call, "keytool")
	}
}

func TestExportCertCommandFailsWithoutCertificate(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	certPath := filepath.Join(t.TempDir(), "ox.cert")
	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, sh, "-c", exportCertCommand("no-such-host.invalid;echo INJECTED", certPath))
	cmd.Stdout = &stdout

	var exitErr *exec.ExitError
	require.ErrorAs(t, cmd.Run(), &exitErr)
	assert.NotZero(t, exitErr.ExitCode())
	assert.NotContains(t, stdout.String(), "INJECTED")

	written, err := os.ReadFile(certPath)
	require.NoError(t, err)
	assert.NotContains(t, string(written), "INJECTED")
}

func TestTrustWithoutPublicHostname(t *testing.T) {
	h := newHarness(t, trustRecords(), nil)
	cluster := *testCluster
	cluster.PublicHostname = ""

	h.runIn(t, target("trust1", types.RoleOxTrust, "10.2.1.12"), &cluster)

	assert.Empty(t, h.fake.CallsOf("stop"))
	assert.Equal(t, []string{"10.2.1.1 ldap1"}, h.fake.HostLines("trust1"))
	assert.Len(t, h.fake.CallsOf("exec"), 1)
	assert.Equal(t, 1, h.count("warn"))
	assert.Zero(t, h.count("error"))
}

func TestTrustProxyAliasFailureStops(t *testing.T) {
	h := newHarness(t, trustRecords(), nil)
	h.fake.ExecRules = []facadetest.ExecRule{{Match: "idp.example.com' /etc/hosts", ExitCode: 1}}

	h.run(t, target("trust1", types.RoleOxTrust, "10.2.1.12"))

	assert.Equal(t, []string{"stop trust1"}, h.fake.CallsOf("stop"))
	assert.Len(t, h.fake.CallsOf("exec"), 2)
}

func TestTrustSkipsAfterDirectoryAliasFailure(t *testing.T) {
	h := newHarness(t, trustRecords(), nil)
	h.fake.ExecRules = []facadetest.ExecRule{{Match: "ldap1", ExitCode: 2}}

	h.run(t, target("trust1", types.RoleOxTrust, "10.2.1.12"))

	assert.Equal(t, []string{"stop trust1"}, h.fake.CallsOf("stop"))
	assert.Len(t, h.fake.CallsOf("exec"), 1)
}

func TestTrustWithoutProxy(t *testing.T) {
	records := trustRecords()
	records[1]["provider_id"] = "p2"
	h := newHarness(t, records, nil)

	h.run(t, target("trust1", types.RoleOxTrust, "10.2.1.12"))

	assert.Equal(t, []string{"10.2.1.1 ldap1"}, h.fake.HostLines("trust1"))
	assert.Len(t, h.fake.CallsOf("exec"), 1)
}

func TestEdgeNATRulesAreIdempotent(t *testing.T) {
	h := newHarness(t, nil, nil)
	proxy := target("nginx1", types.RoleNginx, "10.2.1.5")

	h.run(t, proxy)
	h.run(t, proxy)

	assert.Equal(t, []string{
		"nat 80 10.2.1.5", "nat 443 10.2.1.5",
		"nat 80 10.2.1.5", "nat 443 10.2.1.5",
	}, h.fake.CallsOf("nat"))

	for _, port := range []int{80, 443} {
		rule := network.NATRule{Interface: "eth0", Protocol: "tcp", Port: port, Destination: "10.2.1.5"}
		assert.Equal(t, 1, h.fake.NATRuleCount(rule))
	}
}

func TestEdgeNATFailureContinues(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.fake.Errors["nat 80"] = assert.AnError

	h.run(t, target("nginx1", types.RoleNginx, "10.2.1.5"))

	assert.Len(t, h.fake.CallsOf("nat"), 2)
	assert.Equal(t, 1, h.count("error"))
	assert.Empty(t, h.fake.CallsOf("stop"))
}

func TestDirectoryProbeReady(t *testing.T) {
	var mu sync.Mutex
	var probed []string

	h := newHarness(t, nil, func(d *Deps) {
		d.NewProbe = func(address string) health.Checker {
			mu.Lock()
			probed = append(probed, address)
			mu.Unlock()
			return health.CheckerFunc(func(context.Context) health.Result {
				return health.Result{Healthy: true, Message: "ok"}
			})
		}
	})

	h.run(t, target("ldap1", types.RoleLDAP, "10.2.1.1"))

	assert.Equal(t, []string{"10.2.1.1:1636"}, probed)
	assert.Zero(t, h.count("error"))
	assert.Contains(t, h.logs.String(), "Directory is ready")
}

func TestDirectoryProbeTimeout(t *testing.T) {
	h := newHarness(t, nil, func(d *Deps) {
		d.NewProbe = func(string) health.Checker {
			return health.CheckerFunc(func(context.Context) health.Result {
				return health.Result{Message: "connection refused"}
			})
		}
	})

	h.run(t, target("ldap1", types.RoleLDAP, "10.2.1.1"))

	assert.Equal(t, 1, h.count("error"))
	assert.Empty(t, h.fake.CallsOf("stop"))
}

func TestDirectoryDisabledSkipsProbe(t *testing.T) {
	probes := 0
	h := newHarness(t, nil, func(d *Deps) {
		d.NewProbe = func(string) health.Checker {
			probes++
			return health.CheckerFunc(func(context.Context) health.Result { return health.Result{} })
		}
	})

	n := target("ldap1", types.RoleLDAP, "10.2.1.1")
	n.State = types.NodeStateDisabled
	h.run(t, n)

	assert.Zero(t, probes)
}

func TestDirectorySettleDelay(t *testing.T) {
	var slept []time.Duration
	h := newHarness(t, nil, func(d *Deps) {
		d.Config.Directory.Port = 0
		d.Config.Directory.SettleDelay = 10 * time.Second
		d.Sleep = func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		}
	})

	h.run(t, target("ldap1", types.RoleLDAP, "10.2.1.1"))

	assert.Equal(t, []time.Duration{10 * time.Second}, slept)
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleep(context.Background(), time.Millisecond))
}
