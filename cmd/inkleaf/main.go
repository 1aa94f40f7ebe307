// Command inkleaf is a small CLI over the inkleaf storage core: archive
// inspection and migration, unencrypted interchange, search indexing and
// backup rotation.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/inkleaf/inkleaf/internal/config"
	"github.com/inkleaf/inkleaf/internal/logging"
)

// Version is set at build time.
var Version = "0.1.0"

var (
	cfg        *config.Config
	configPath string
	password   string
)

var rootCmd = &cobra.Command{
	Use:     "inkleaf",
	Short:   "Encrypted storage and search for handwritten notebooks",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logging.Init(os.Stderr, logging.LogLevel(cfg.Logging.Level))
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "config file path")
	rootCmd.PersistentFlags().StringVarP(&password, "password", "p", "", "archive password")

	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(rotateCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "inkleaf.yaml"
	}
	return home + "/.config/inkleaf/config.yaml"
}

func requirePassword() error {
	if password == "" {
		return fmt.Errorf("--password is required")
	}
	return nil
}
