package config_test

import (
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/sourcenetwork/syncore/config"
	"github.com/sourcenetwork/syncore/peer"
)

func TestDefaultConfig_MatchesNodeDefaults(t *testing.T) {
	cfg := config.DefaultConfig()
	nodeCfg := cfg.NodeConfig()

	require.Equal(t, peer.DefaultMaxConcurrentDials, nodeCfg.DialMaxConcurrent)
	require.Equal(t, peer.DefaultBackoffThreshold, nodeCfg.BackoffThreshold)
	require.Equal(t, peer.StrategyBaseline, nodeCfg.Strategy)
}

func TestBindFlag_OverridesApplyAfterLoad(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Rootdir = t.TempDir()

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("store", cfg.Datastore.Store, "")
	require.NoError(t, cfg.BindFlag("datastore.store", cmd.Flags().Lookup("store")))
	require.NoError(t, cmd.Flags().Set("store", "badger"))

	require.NoError(t, cfg.Load())
	require.Equal(t, "badger", cfg.Datastore.Store)
}

func TestWriteConfigFile_CreatesRootdirAndFile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Rootdir = filepath.Join(t.TempDir(), "nested")

	require.False(t, cfg.ConfigFileExists())
	require.NoError(t, cfg.WriteConfigFile())
	require.True(t, cfg.ConfigFileExists())
}

func TestNodeConfig_TranslatesSyncSection(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Sync.BridgeCapacity = 42
	cfg.Sync.SessionBufferCap = 7
	cfg.Net.Strategy = "mesh-first"

	nodeCfg := cfg.NodeConfig()
	require.Equal(t, 42, nodeCfg.BridgeCapacity)
	require.Equal(t, 7, nodeCfg.SessionBufferCap)
	require.Equal(t, peer.StrategyMeshFirst, nodeCfg.Strategy)
}
