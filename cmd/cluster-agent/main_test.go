package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/clusteragent/pkg/recovery"
	"github.com/cuemby/clusteragent/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestRecoverWithoutStoreSucceeds(t *testing.T) {
	dir := t.TempDir()
	metricsFile := filepath.Join(dir, "agent.prom")

	err := run(t, "recover",
		"--database", filepath.Join(dir, "db.json"),
		"--logfile", filepath.Join(dir, "agent.log"),
		"--metrics-file", metricsFile,
	)
	require.NoError(t, err)

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `cluster_agent_passes_total{outcome="skipped"}`)

	logs, err := os.ReadFile(filepath.Join(dir, "agent.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logs), "nothing to recover")
}

func TestRecoverCorruptStoreFails(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "db.json")
	require.NoError(t, os.WriteFile(db, []byte("{not json"), 0o600))

	err := run(t, "recover", "--database", db, "--logfile", filepath.Join(dir, "agent.log"), "--metrics-file", "")
	assert.ErrorIs(t, err, recovery.ErrConfigResolution)
}

func TestStoreImport(t *testing.T) {
	dir := t.TempDir()
	from := filepath.Join(dir, "db.json")
	to := filepath.Join(dir, "db.bolt")
	require.NoError(t, os.WriteFile(from, []byte(`{
		"clusters": {"1": {"id": "c1", "weave_ip_network": "10.2.1.0/24"}},
		"nodes": {
			"2": {"id": "auth1", "type": "oxauth", "state": "SUCCESS"},
			"1": {"id": "ldap1", "type": "ldap", "state": "SUCCESS"}
		}
	}`), 0o600))

	require.NoError(t, run(t, "store", "import", "--from", from, "--to", to, "--logfile", filepath.Join(dir, "agent.log")))

	dst, err := storage.OpenBoltStore(to, true)
	require.NoError(t, err)
	nodes, err := dst.FindAll(storage.TableNodes, storage.All())
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "ldap1", nodes[0]["id"])
	assert.Equal(t, "auth1", nodes[1]["id"])
	require.NoError(t, dst.Close())

	err = run(t, "store", "import", "--from", from, "--to", to)
	assert.Error(t, err, "existing destination must not be overwritten")
}
