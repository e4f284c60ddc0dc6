package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradesync/store"
)

var peekCmd = &cobra.Command{
	Use:   "peek <account>",
	Short: "Show an account's last persisted snapshot",
	Long: `Read one account's snapshot from the local durable store without touching
the network. Useful to inspect what a switch would paint instantly.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		st, err := store.NewSQLite(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		snap, err := st.ReadByAccount(cmd.Context(), args[0])
		if errors.Is(err, store.ErrNotFound) {
			fmt.Printf("No snapshot stored for %s\n", args[0])
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Printf("Account: %s (updated %s)\n", snap.Account, snap.LastUpdated.Format("2006-01-02 15:04:05"))
		if snap.Metrics != nil {
			m := snap.Metrics
			fmt.Printf("Balance: %.2f  Equity: %.2f  Margin: %.2f  Free margin: %.2f  Profit: %.2f\n",
				m.Balance, m.Equity, m.Margin, m.FreeMargin, m.Profit)
		}
		fmt.Printf("Open trades: %d\n", len(snap.Trades))
		for _, t := range snap.Trades {
			fmt.Printf("  %-12s %-8s %-4s lots=%.2f entry=%.5f p/l=%.2f\n",
				t.ID, t.Symbol, t.Direction, t.LotSize, t.EntryPrice, t.ProfitLoss)
		}
		if snap.History != nil {
			fmt.Printf("History: %d trades, win rate %.1f%%, realized P/L %.2f\n",
				len(snap.History.Trades), snap.History.Stats.WinRatePct,
				snap.History.Financial.RealizedPL)
		}
		return nil
	},
}

func init() {
	peekCmd.Flags().StringVarP(&configFile, "config", "c", "", "Configuration file (JSON or YAML)")
	rootCmd.AddCommand(peekCmd)
}
