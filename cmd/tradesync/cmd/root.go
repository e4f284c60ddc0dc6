package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tradesync",
	Short: "A multi-account trading client synchronizer",
	Long: `Tradesync keeps a local view of several remote trading accounts warm
and consistent while only one account is active at a time.

It provides:
  - A tiered snapshot cache (memory, SQLite, network)
  - Coordinated account switching with rollback and a watchdog
  - Background metrics/trades/history refresh for the active account
  - A realtime push channel with automatic reconnect

Complete documentation is available at https://github.com/rustyeddy/tradesync`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
