package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gloomgate-dev/gloomgate/internal/config"
	"github.com/gloomgate-dev/gloomgate/pkg/dummy"
	"github.com/gloomgate-dev/gloomgate/pkg/game"
	"github.com/gloomgate-dev/gloomgate/pkg/rpc"
	"github.com/gloomgate-dev/gloomgate/pkg/server"
)

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger, err := cfg.Logger()
			if err != nil {
				return err
			}

			store := game.NewStore(logger)
			registry := rpc.NewRegistry()
			for _, m := range []rpc.Module{
				dummy.NewModule(),
				game.NewModule(store, logger),
			} {
				if err := m.Register(registry); err != nil {
					return fmt.Errorf("registering module %s: %w", m.Name(), err)
				}
			}

			router := rpc.NewRouter(registry, logger)
			srv := server.New(cfg.ServerConfig(), router, store, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info("starting gateway", "version", version)
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Directory containing config.yaml")

	return cmd
}
