package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. CLUSTER_AGENT_RUNTIME_NAMESPACE
const EnvPrefix = "CLUSTER_AGENT"

// Config holds the agent's tunables. None of these are desired state; that
// lives in the store.
type Config struct {
	Runtime   Runtime   `mapstructure:"runtime"`
	Overlay   Overlay   `mapstructure:"overlay"`
	Sidecar   Sidecar   `mapstructure:"sidecar"`
	Directory Directory `mapstructure:"directory"`
	Trust     Trust     `mapstructure:"trust"`
	Edge      Edge      `mapstructure:"edge"`
	Images    Images    `mapstructure:"images"`
}

type Runtime struct {
	Socket      string        `mapstructure:"socket"`
	Namespace   string        `mapstructure:"namespace"`
	StopTimeout time.Duration `mapstructure:"stop_timeout"`
	// CallTimeout bounds every runtime and network call; zero disables it
	CallTimeout time.Duration `mapstructure:"call_timeout"`
}

type Overlay struct {
	Binary          string `mapstructure:"binary"`
	RouterContainer string `mapstructure:"router_container"`
	DNSDomain       string `mapstructure:"dns_domain"`
	// PeerConfig is the YAML file whose "master" key names the master's address
	PeerConfig string `mapstructure:"peer_config"`
	// Encrypted reports whether the cluster admin password is stored encrypted
	Encrypted bool `mapstructure:"encrypted"`
}

type Sidecar struct {
	Container string `mapstructure:"container"`
}

type Directory struct {
	// Alias is the shared DNS name every directory node also answers to
	Alias         string        `mapstructure:"alias"`
	Port          int           `mapstructure:"port"`
	ReadyTimeout  time.Duration `mapstructure:"ready_timeout"`
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
	// SettleDelay is slept instead of probing when Port is zero
	SettleDelay time.Duration `mapstructure:"settle_delay"`
}

type Trust struct {
	CertPath  string `mapstructure:"cert_path"`
	StorePass string `mapstructure:"storepass"`
}

type Edge struct {
	Interface string `mapstructure:"interface"`
	Ports     []int  `mapstructure:"ports"`
}

type Images struct {
	Registry    string   `mapstructure:"registry"`
	Names       []string `mapstructure:"names"`
	Concurrency int      `mapstructure:"concurrency"`
}

// Default returns the configuration used when no file or override is given
func Default() Config {
	return Config{
		Runtime: Runtime{
			Socket:      "/run/containerd/containerd.sock",
			Namespace:   "moby",
			StopTimeout: 10 * time.Second,
			CallTimeout: 2 * time.Minute,
		},
		Overlay: Overlay{
			Binary:          "weave",
			RouterContainer: "weave",
			DNSDomain:       "gluu.local",
			PeerConfig:      "/etc/salt/minion",
		},
		Sidecar: Sidecar{Container: "prometheus"},
		Directory: Directory{
			Alias:         "ldap.gluu.local",
			Port:          1636,
			ReadyTimeout:  2 * time.Minute,
			ProbeInterval: 5 * time.Second,
		},
		Trust: Trust{
			CertPath:  "/tmp/ox.cert",
			StorePass: "changeit",
		},
		Edge: Edge{
			Interface: "eth0",
			Ports:     []int{80, 443},
		},
		Images: Images{
			Registry:    "registry.gluu.org:5000",
			Names:       []string{"gluuopendj", "gluuoxauth", "gluuoxtrust", "gluuoxidp", "gluunginx"},
			Concurrency: 2,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, and CLUSTER_AGENT_* environment variables, in increasing precedence.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := Config{}
	if err := v.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		))); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the agent cannot work with
func (c Config) Validate() error {
	if c.Overlay.Binary == "" {
		return fmt.Errorf("overlay.binary must be set")
	}
	if c.Overlay.RouterContainer == "" {
		return fmt.Errorf("overlay.router_container must be set")
	}
	if c.Directory.Port < 0 || c.Directory.Port > 65535 {
		return fmt.Errorf("directory.port %d is out of range", c.Directory.Port)
	}
	if c.Directory.Port > 0 && c.Directory.ReadyTimeout <= 0 {
		return fmt.Errorf("directory.ready_timeout must be positive when probing")
	}
	for _, port := range c.Edge.Ports {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("edge port %d is out of range", port)
		}
	}
	if c.Images.Concurrency < 1 {
		return fmt.Errorf("images.concurrency must be at least 1")
	}
	return nil
}

// setDefaults registers every default key so env overrides apply to keys the
// config file does not mention
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("runtime.socket", d.Runtime.Socket)
	v.SetDefault("runtime.namespace", d.Runtime.Namespace)
	v.SetDefault("runtime.stop_timeout", d.Runtime.StopTimeout)
	v.SetDefault("runtime.call_timeout", d.Runtime.CallTimeout)
	v.SetDefault("overlay.binary", d.Overlay.Binary)
	v.SetDefault("overlay.router_container", d.Overlay.RouterContainer)
	v.SetDefault("overlay.dns_domain", d.Overlay.DNSDomain)
	v.SetDefault("overlay.peer_config", d.Overlay.PeerConfig)
	v.SetDefault("overlay.encrypted", d.Overlay.Encrypted)
	v.SetDefault("sidecar.container", d.Sidecar.Container)
	v.SetDefault("directory.alias", d.Directory.Alias)
	v.SetDefault("directory.port", d.Directory.Port)
	v.SetDefault("directory.ready_timeout", d.Directory.ReadyTimeout)
	v.SetDefault("directory.probe_interval", d.Directory.ProbeInterval)
	v.SetDefault("directory.settle_delay", d.Directory.SettleDelay)
	v.SetDefault("trust.cert_path", d.Trust.CertPath)
	v.SetDefault("trust.storepass", d.Trust.StorePass)
	v.SetDefault("edge.interface", d.Edge.Interface)
	v.SetDefault("edge.ports", d.Edge.Ports)
	v.SetDefault("images.registry", d.Images.Registry)
	v.SetDefault("images.names", d.Images.Names)
	v.SetDefault("images.concurrency", d.Images.Concurrency)
}
