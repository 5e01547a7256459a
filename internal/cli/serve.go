package cli

import (
	"context"
	"os/signal"
	"syscall"

	"sensorhub/internal/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long:  `Connect to the configured store, seed the application admin if needed and serve the HTTP API until interrupted.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, log)
	if err != nil {
		log.Error("failed to create server", "error", err)
		return err
	}
	defer func() {
		if err := srv.Close(); err != nil {
			log.Warn("closing server", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}

// commandContext returns cmd's context, or Background when run outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
