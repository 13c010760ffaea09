package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/streamrelay/mcpstream/internal/config"
)

var configOutPath string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage mcpstreamd configuration files",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter mcpstream.yaml with default values",
	RunE:  runConfigInit,
}

func init() {
	configInitCmd.Flags().StringVar(&configOutPath, "output", "mcpstream.yaml", "path to write the starter config to")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := &config.Config{}
	cfg.SetDefaults()

	if err := cfg.WriteYAML(configOutPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote starter config to %s\n", configOutPath)
	return nil
}
