package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradesync/remote"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List the server's accounts",
	Long:  `Query the trading server for its accounts and show which one is current.`,
	RunE:  listAccounts,
}

func init() {
	accountsCmd.Flags().StringVarP(&configFile, "config", "c", "", "Configuration file (JSON or YAML)")
	rootCmd.AddCommand(accountsCmd)
}

func listAccounts(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client := remote.NewClient(cfg.Server.BaseURL, cfg.Server.Token)
	list, err := client.ListAccounts(cmd.Context())
	if err != nil {
		return err
	}

	names := make([]string, 0, len(list.Accounts))
	for name := range list.Accounts {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("%-10s %12s %12s %8s\n", "ACCOUNT", "BALANCE", "EQUITY", "TRADES")
	for _, name := range names {
		info := list.Accounts[name]
		marker := " "
		if name == list.CurrentAccount {
			marker = "*"
		}
		fmt.Printf("%s%-9s %12.2f %12.2f %8d\n", marker, name, info.Balance, info.Equity, info.ActiveTrades)
	}

	return nil
}
