package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "gluu.local", cfg.Overlay.DNSDomain)
	assert.Equal(t, []int{80, 443}, cfg.Edge.Ports)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	body := `
runtime:
  namespace: gluu
  stop_timeout: 30s
overlay:
  encrypted: true
directory:
  port: 0
  settle_delay: 10s
edge:
  ports: [8080]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gluu", cfg.Runtime.Namespace)
	assert.Equal(t, 30*time.Second, cfg.Runtime.StopTimeout)
	assert.True(t, cfg.Overlay.Encrypted)
	assert.Equal(t, 0, cfg.Directory.Port)
	assert.Equal(t, 10*time.Second, cfg.Directory.SettleDelay)
	assert.Equal(t, []int{8080}, cfg.Edge.Ports)
	// untouched keys keep their defaults
	assert.Equal(t, "weave", cfg.Overlay.Binary)
	assert.Equal(t, "/tmp/ox.cert", cfg.Trust.CertPath)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CLUSTER_AGENT_SIDECAR_CONTAINER", "node-exporter")
	t.Setenv("CLUSTER_AGENT_RUNTIME_CALL_TIMEOUT", "5s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "node-exporter", cfg.Sidecar.Container)
	assert.Equal(t, 5*time.Second, cfg.Runtime.CallTimeout)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no overlay binary", func(c *Config) { c.Overlay.Binary = "" }},
		{"no router container", func(c *Config) { c.Overlay.RouterContainer = "" }},
		{"directory port", func(c *Config) { c.Directory.Port = 70000 }},
		{"probe without timeout", func(c *Config) { c.Directory.ReadyTimeout = 0 }},
		{"edge port", func(c *Config) { c.Edge.Ports = []int{0} }},
		{"image concurrency", func(c *Config) { c.Images.Concurrency = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}
