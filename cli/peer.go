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

// MakePeerCommand builds the "peer" command group, mirroring the
// teacher's MakeP2PCollectionCommand parent/subcommand shape.
func MakePeerCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "peer",
		Short: "Inspect the local peer candidate cache",
		Long:  "List or query the recently-successful peer cache used for sync dialing.",
	}
	cmd.AddCommand(makePeerListCommand(cfg))
	return cmd
}

func makePeerListCommand(cfg *config.Config) *cobra.Command {
	var contextID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List candidate peers for a context",
		Long:  "Show the peer records this node would offer for the given context id.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if contextID == "" {
				return errors.New("must specify --context")
			}

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

			records := m.FindPeers(context.Background(), contextID, nil)
			if len(records) == 0 {
				log.FeedbackInfo(cmd.Context(), "No known peers for context", logging.NewKV("Context", contextID))
				return nil
			}
			for _, r := range records {
				fmt.Fprintln(cmd.OutOrStdout(), r.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&contextID, "context", "", "Context id to find candidate peers for")
	return cmd
}
