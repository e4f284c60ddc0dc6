package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradesync/remote"
)

var switchCmd = &cobra.Command{
	Use:   "switch <account>",
	Short: "Switch the server's current account",
	Long: `Perform a one-shot account switch on the trading server. Use the run
command for a synchronizer that keeps following the account afterwards.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		client := remote.NewClient(cfg.Server.BaseURL, cfg.Server.Token)
		res, err := client.SwitchAccount(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Switched %s -> %s (%s)\n", res.OldAccount, res.NewAccount, res.Status)
		if res.Metrics != nil {
			fmt.Printf("Balance: %.2f  Equity: %.2f  Free margin: %.2f\n",
				res.Metrics.Balance, res.Metrics.Equity, res.Metrics.FreeMargin)
		}
		return nil
	},
}

func init() {
	switchCmd.Flags().StringVarP(&configFile, "config", "c", "", "Configuration file (JSON or YAML)")
	rootCmd.AddCommand(switchCmd)
}
