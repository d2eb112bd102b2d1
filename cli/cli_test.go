package cli_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sourcenetwork/syncore/cli"
	"github.com/sourcenetwork/syncore/config"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Rootdir = t.TempDir()
	return cfg
}

func TestNewSyncoreCommand_HasExpectedSubcommands(t *testing.T) {
	cfg := newTestConfig(t)
	root := cli.NewSyncoreCommand(cfg)

	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	require.True(t, names["start"])
	require.True(t, names["peer"])
	require.True(t, names["sync"])
}

func TestSyncStatus_ReportsZeroHeadsOnFreshStore(t *testing.T) {
	cfg := newTestConfig(t)
	root := cli.NewSyncoreCommand(cfg)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"sync", "status"})
	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "heads: 0")
}

func TestPeerList_RequiresContextFlag(t *testing.T) {
	cfg := newTestConfig(t)
	root := cli.NewSyncoreCommand(cfg)

	root.SetArgs([]string{"peer", "list"})
	err := root.Execute()
	require.Error(t, err)
}

func TestPeerList_EmptyWithoutKnownPeers(t *testing.T) {
	cfg := newTestConfig(t)
	root := cli.NewSyncoreCommand(cfg)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"peer", "list", "--context", "ctx-a"})
	require.NoError(t, root.Execute())
}
