package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/r3e-network/faas-trigger-engine/internal/common/config"
)

var rootCmd = &cobra.Command{
	Use:   "faas",
	Short: "FaaS trigger engine CLI",
	Long:  `Command line interface for validating, scanning and running trigger-engine functions.`,
}

var cfgFile string

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is built-in defaults)")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}
