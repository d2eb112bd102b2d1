// Package config provides viper-backed configuration for the sync core,
// grounded in the teacher's cfg.BindFlag/cobra flag wiring
// (cli/start.go's cfg.BindFlag("net.peers", cmd.Flags().Lookup("peers"))).
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sourcenetwork/syncore/errors"
	"github.com/sourcenetwork/syncore/node"
	"github.com/sourcenetwork/syncore/peer"
)

// DatastoreConfig selects the backend and path of the entity/index/delta
// key-value store.
type DatastoreConfig struct {
	Store string // "badger" or "memory"
	Path  string
}

// NetConfig covers peer discovery and dial tunables (spec §4.6).
type NetConfig struct {
	RecentPeerCapacity int
	DialMaxConcurrent  int
	BackoffThreshold   int
	Strategy           string // "baseline", "mesh-first", "recent-first", "address-book-first", "parallel" or "health-filtered"
}

// SyncConfig covers session buffering and bridge queue tunables
// (spec §4.7).
type SyncConfig struct {
	BridgeCapacity   int
	SessionBufferCap int
}

// LogConfig mirrors the teacher's logging-level CLI flag.
type LogConfig struct {
	Level string
}

// Config is the root configuration object, analogous to the teacher's
// config.Config (Net/Datastore/API sections).
type Config struct {
	Rootdir   string
	Datastore DatastoreConfig
	Net       NetConfig
	Sync      SyncConfig
	Log       LogConfig

	v *viper.Viper
}

// DefaultConfig returns the spec's suggested defaults, mirroring
// node.DefaultConfig() but expressed as flag-bindable fields.
func DefaultConfig() *Config {
	nodeDefaults := node.DefaultConfig()
	return &Config{
		Rootdir: defaultRootdir(),
		Datastore: DatastoreConfig{
			Store: "memory",
			Path:  "",
		},
		Net: NetConfig{
			RecentPeerCapacity: nodeDefaults.RecentPeerCapacity,
			DialMaxConcurrent:  nodeDefaults.DialMaxConcurrent,
			BackoffThreshold:   nodeDefaults.BackoffThreshold,
			Strategy:           strategyName(nodeDefaults.Strategy),
		},
		Sync: SyncConfig{
			BridgeCapacity:   nodeDefaults.BridgeCapacity,
			SessionBufferCap: nodeDefaults.SessionBufferCap,
		},
		Log: LogConfig{
			Level: "info",
		},
		v: viper.New(),
	}
}

func defaultRootdir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".syncore"
	}
	return filepath.Join(home, ".syncore")
}

// BindFlag binds a viper key to a pflag.Flag, matching the teacher's
// cfg.BindFlag call shape used throughout cli/start.go.
func (c *Config) BindFlag(key string, flag *pflag.Flag) error {
	if err := c.v.BindPFlag(key, flag); err != nil {
		return errors.Wrap("bind flag "+key, err)
	}
	return nil
}

// ConfigFileExists reports whether a config file already exists under Rootdir.
func (c *Config) ConfigFileExists() bool {
	_, err := os.Stat(filepath.Join(c.Rootdir, "config.yaml"))
	return err == nil
}

// Load reads the config file (if present) and environment variables into c,
// then applies any bound flag overrides on top, matching the teacher's
// LoadWithRootdir precedence (file, then env, then explicit flags).
func (c *Config) Load() error {
	c.v.SetConfigName("config")
	c.v.SetConfigType("yaml")
	c.v.AddConfigPath(c.Rootdir)
	c.v.SetEnvPrefix("SYNCORE")
	c.v.AutomaticEnv()

	if c.ConfigFileExists() {
		if err := c.v.ReadInConfig(); err != nil {
			return errors.Wrap("read config file", err)
		}
	}

	c.applyBoundOverrides()
	return nil
}

// applyBoundOverrides copies any viper-resolved values for known keys back
// onto the typed Config fields, so bound cobra flags and config-file values
// both flow through the same struct the rest of the program reads.
func (c *Config) applyBoundOverrides() {
	if v := c.v.GetString("datastore.store"); v != "" {
		c.Datastore.Store = v
	}
	if v := c.v.GetString("datastore.path"); v != "" {
		c.Datastore.Path = v
	}
	if c.v.IsSet("net.recentpeercapacity") {
		c.Net.RecentPeerCapacity = c.v.GetInt("net.recentpeercapacity")
	}
	if c.v.IsSet("net.dialmaxconcurrent") {
		c.Net.DialMaxConcurrent = c.v.GetInt("net.dialmaxconcurrent")
	}
	if c.v.IsSet("net.backoffthreshold") {
		c.Net.BackoffThreshold = c.v.GetInt("net.backoffthreshold")
	}
	if v := c.v.GetString("net.strategy"); v != "" {
		c.Net.Strategy = v
	}
	if c.v.IsSet("sync.bridgecapacity") {
		c.Sync.BridgeCapacity = c.v.GetInt("sync.bridgecapacity")
	}
	if c.v.IsSet("sync.sessionbuffercap") {
		c.Sync.SessionBufferCap = c.v.GetInt("sync.sessionbuffercap")
	}
	if v := c.v.GetString("log.level"); v != "" {
		c.Log.Level = v
	}
}

// WriteConfigFile persists the current values to Rootdir/config.yaml,
// creating Rootdir if necessary (teacher's CreateRootDirAndConfigFile).
func (c *Config) WriteConfigFile() error {
	if err := os.MkdirAll(c.Rootdir, 0o755); err != nil {
		return errors.Wrap("create rootdir", err)
	}
	path := filepath.Join(c.Rootdir, "config.yaml")
	if err := c.v.WriteConfigAs(path); err != nil {
		return errors.Wrap("write config file", err)
	}
	return nil
}

// NodeConfig translates the bound configuration into a node.Config,
// mirroring the teacher's cfg.NodeConfig() translator method.
func (c *Config) NodeConfig() node.Config {
	return node.Config{
		RecentPeerCapacity: c.Net.RecentPeerCapacity,
		DialMaxConcurrent:  c.Net.DialMaxConcurrent,
		BridgeCapacity:     c.Sync.BridgeCapacity,
		SessionBufferCap:   c.Sync.SessionBufferCap,
		Strategy:           strategyFromName(c.Net.Strategy),
		BackoffThreshold:   c.Net.BackoffThreshold,
	}
}

var strategyNames = map[peer.Strategy]string{
	peer.StrategyBaseline:         "baseline",
	peer.StrategyMeshFirst:        "mesh-first",
	peer.StrategyRecentFirst:      "recent-first",
	peer.StrategyAddressBookFirst: "address-book-first",
	peer.StrategyParallel:         "parallel",
	peer.StrategyHealthFiltered:   "health-filtered",
}

func strategyName(s peer.Strategy) string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return "baseline"
}

func strategyFromName(name string) peer.Strategy {
	for s, n := range strategyNames {
		if n == name {
			return s
		}
	}
	return peer.StrategyBaseline
}
