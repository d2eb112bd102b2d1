// Package cli wires the sync core's node.Manager into a cobra command
// tree, mirroring the teacher's cli package shape (MakeStartCommand,
// MakeP2PCollectionCommand, MakeReplicatorSetCommand).
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sourcenetwork/syncore/config"
	"github.com/sourcenetwork/syncore/logging"
)

var log = logging.New("cli", "info")

// NewSyncoreCommand builds the root command tree for the syncored binary.
func NewSyncoreCommand(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:   "syncored",
		Short: "syncored is a hybrid state synchronization node",
		Long:  "Run and operate a node of the hybrid state synchronization core.",
	}

	root.PersistentFlags().StringVar(&cfg.Rootdir, "rootdir", cfg.Rootdir, "Directory for config and data")
	root.PersistentFlags().StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "Log level (debug, info, warn, error)")
	if err := cfg.BindFlag("log.level", root.PersistentFlags().Lookup("log-level")); err != nil {
		log.FeedbackFatalE(context.Background(), "could not bind log.level", err)
	}

	root.AddCommand(
		MakeStartCommand(cfg),
		MakePeerCommand(cfg),
		MakeSyncCommand(cfg),
	)
	return root
}
