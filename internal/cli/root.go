// Package cli holds the sensorhub command tree.
package cli

import (
	"fmt"
	"os"

	"sensorhub/internal/config"
	"sensorhub/internal/logging"
	"sensorhub/internal/version"

	"github.com/spf13/cobra"
)

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sensorhub",
	Short: "Measurement point and sensor configuration API",
	Long: `sensorhub manages organisations, their measurement points and the
configuration of the sensors attached to them. Devices fetch and report their
sensor configs with a per measurement point token.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv(config.DefaultConfigFileEnvName),
		fmt.Sprintf("path to a YAML config file (env %s)", config.DefaultConfigFileEnvName))
}

// loadConfig reads the config file and environment and builds the logger.
func loadConfig() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, logging.New(cfg.Logging, version.Get().Version), nil
}
