package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sourcenetwork/syncore/config"
	"github.com/sourcenetwork/syncore/errors"
	"github.com/sourcenetwork/syncore/logging"
	"github.com/sourcenetwork/syncore/node"
)

// MakeSyncCommand builds the "sync" command group.
func MakeSyncCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Inspect local sync state",
	}
	cmd.AddCommand(makeSyncStatusCommand(cfg))
	return cmd
}

func makeSyncStatusCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the local root hash and head count",
		Long:  "Report the locally-applied delta DAG's root hash and current heads without dialing any peer.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Load(); err != nil {
				return errors.Wrap("loading config", err)
			}
			kv, err := openStore(cfg)
			if err != nil {
				return err
			}

			m, err := node.New(cfg.NodeConfig(), kv, nil, nil, logging.Nop())
			if err != nil {
				return errors.Wrap("failed to build node manager", err)
			}

			heads, err := m.Engine().Heads(context.Background())
			if err != nil {
				return errors.Wrap("reading heads", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "root: %s\nheads: %d\n", m.Engine().RootHash(), len(heads))
			return nil
		},
	}
	return cmd
}
