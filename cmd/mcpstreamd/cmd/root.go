// Package cmd provides the CLI commands for mcpstreamd.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/streamrelay/mcpstream/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "mcpstreamd",
	Short: "mcpstreamd - a reference server for the MCP streamable HTTP transport",
	Long: `mcpstreamd runs the streamable HTTP transport for the Model Context
Protocol as a standalone server: JSON-RPC 2.0 requests in, SSE or
buffered JSON responses out, with session management and SSE
resumability.

Quick start:
  1. Create a config file: mcpstreamd config init
  2. Run: mcpstreamd serve

Configuration:
  Config is loaded from mcpstream.yaml in the current directory,
  $HOME/.mcpstream/, or /etc/mcpstream/.

  Environment variables can override config values with the MCPSTREAM_
  prefix. Example: MCPSTREAM_SERVER_HTTP_ADDR=:9090

Commands:
  serve       Start the transport server
  config      Manage configuration files
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./mcpstream.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
