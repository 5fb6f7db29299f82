// Package cmd provides the CLI commands for breakdesk.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mark-ai1/Break-Management/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "breakdesk",
	Short: "breakdesk - break session tracking and escalation",
	Long: `Breakdesk tracks bounded-capacity, timed break sessions for a
workforce. It enforces per-category concurrency limits, detects
overdue sessions, and routes them through a reason/verdict
adjudication workflow with daily per-category statistics.

Quick start:
  1. Optionally create a config file: breakdesk.yaml
  2. Run: breakdesk start

Configuration:
  Config is loaded from breakdesk.yaml in the current directory,
  $HOME/.breakdesk/, or /etc/breakdesk/.

  Environment variables can override config values with the BREAKDESK_
  prefix. Example: BREAKDESK_SERVER_HTTP_ADDR=:9090

Commands:
  start       Start the service
  config      Print the effective configuration
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
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./breakdesk.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
