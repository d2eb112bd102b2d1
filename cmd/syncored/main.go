// syncored runs a node of the hybrid state synchronization core.
package main

import (
	"context"
	"os"

	"github.com/sourcenetwork/syncore/cli"
	"github.com/sourcenetwork/syncore/config"
)

func main() {
	cfg := config.DefaultConfig()
	root := cli.NewSyncoreCommand(cfg)
	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
