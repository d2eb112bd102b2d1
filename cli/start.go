package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sourcenetwork/syncore/config"
	"github.com/sourcenetwork/syncore/errors"
	"github.com/sourcenetwork/syncore/logging"
	"github.com/sourcenetwork/syncore/node"
	"github.com/sourcenetwork/syncore/store"
)

// MakeStartCommand builds the "start" subcommand, mirroring the teacher's
// cli/start.go shape: PersistentPreRunE bootstraps the config file, the
// flags bind into cfg, and RunE opens the store and runs a node.Manager
// until interrupted.
func MakeStartCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a sync core node",
		Long:  "Start a new instance of the hybrid state synchronization node.",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			existed := cfg.ConfigFileExists()
			if err := cfg.Load(); err != nil {
				return errors.Wrap("loading config", err)
			}
			if !existed {
				if err := cfg.WriteConfigFile(); err != nil {
					return err
				}
				log.FeedbackInfo(cmd.Context(), "Configuration written", logging.NewKV("Rootdir", cfg.Rootdir))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := start(cmd.Context(), cfg); err != nil {
				return err
			}
			return wait(cmd.Context())
		},
	}

	cmd.Flags().String("store", cfg.Datastore.Store, "Specify the datastore to use (supported: badger, memory)")
	bindOrFatal(cfg, cmd, "datastore.store", "store")

	cmd.Flags().String("datastore-path", cfg.Datastore.Path, "Path to the badger datastore directory")
	bindOrFatal(cfg, cmd, "datastore.path", "datastore-path")

	cmd.Flags().Int("recent-peer-capacity", cfg.Net.RecentPeerCapacity, "Capacity of the recently-successful peer cache")
	bindOrFatal(cfg, cmd, "net.recentpeercapacity", "recent-peer-capacity")

	cmd.Flags().Int("dial-max-concurrent", cfg.Net.DialMaxConcurrent, "Maximum concurrent dial attempts per sync round")
	bindOrFatal(cfg, cmd, "net.dialmaxconcurrent", "dial-max-concurrent")

	cmd.Flags().Int("backoff-threshold", cfg.Net.BackoffThreshold, "Consecutive dial failures before a peer is skipped")
	bindOrFatal(cfg, cmd, "net.backoffthreshold", "backoff-threshold")

	cmd.Flags().String("strategy", cfg.Net.Strategy, "Peer candidate-gathering strategy")
	bindOrFatal(cfg, cmd, "net.strategy", "strategy")

	cmd.Flags().Int("bridge-capacity", cfg.Sync.BridgeCapacity, "Event bridge queue capacity")
	bindOrFatal(cfg, cmd, "sync.bridgecapacity", "bridge-capacity")

	cmd.Flags().Int("session-buffer-cap", cfg.Sync.SessionBufferCap, "Delta buffer capacity during state transfer")
	bindOrFatal(cfg, cmd, "sync.sessionbuffercap", "session-buffer-cap")

	return cmd
}

func bindOrFatal(cfg *config.Config, cmd *cobra.Command, key, flag string) {
	if err := cfg.BindFlag(key, cmd.Flags().Lookup(flag)); err != nil {
		log.FeedbackFatalE(context.Background(), "could not bind "+key, err)
	}
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Datastore.Store {
	case "badger":
		b, err := store.OpenBadger(cfg.Datastore.Path)
		if err != nil {
			return nil, errors.Wrap("failed to open badger store", err)
		}
		return b, nil
	case "memory", "":
		return store.NewMemory(), nil
	default:
		return nil, errors.New("unknown datastore kind: " + cfg.Datastore.Store)
	}
}

func start(ctx context.Context, cfg *config.Config) (*node.Manager, error) {
	log.FeedbackInfo(ctx, "Starting sync core node...")

	kv, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	nodeLog := logging.New("node", cfg.Log.Level)

	// The transport and runtime seams are left nil here: this core repo
	// names the operations it needs from them (transport.Transport,
	// runtime.Runtime) but does not embed a concrete implementation of
	// either (spec §1 treats both as external collaborators). A host
	// binary embedding this core supplies both when constructing its own
	// node.Manager; the CLI's "start" subcommand exercises the storage,
	// DAG, and session wiring on its own.
	m, err := node.New(cfg.NodeConfig(), kv, nil, nil, nodeLog)
	if err != nil {
		return nil, errors.Wrap("failed to build node manager", err)
	}
	m.SealMergeRegistry()

	log.FeedbackInfo(ctx, "Sync core node started", logging.NewKV("Store", cfg.Datastore.Store))
	return m, nil
}

func wait(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
		log.FeedbackInfo(ctx, "Shutting down")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
