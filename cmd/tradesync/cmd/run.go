package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradesync/account"
	"github.com/rustyeddy/tradesync/cache"
	"github.com/rustyeddy/tradesync/config"
	"github.com/rustyeddy/tradesync/pkg/id"
	"github.com/rustyeddy/tradesync/remote"
	"github.com/rustyeddy/tradesync/store"
	"github.com/rustyeddy/tradesync/sync"
)

var (
	configFile string
	startAcct  string
	verbose    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the synchronizer against a trading server",
	Long: `Connect to the trading server, switch to the starting account, and keep
its metrics, active trades, and history synchronized until interrupted.`,
	RunE: runSync,
}

func init() {
	runCmd.Flags().StringVarP(&configFile, "config", "c", "", "Configuration file (JSON or YAML)")
	runCmd.Flags().StringVarP(&startAcct, "account", "a", "", "Account to switch to on startup")
	runCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(runCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	if verbose {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	target := startAcct
	if target == "" {
		target = cfg.Accounts[0]
	}

	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	client := remote.NewClient(cfg.Server.BaseURL, cfg.Server.Token)

	opts, err := engineOptions(cfg)
	if err != nil {
		return err
	}

	engine := sync.NewEngine(client, cache.New(client, st, cfg.Cache.Capacity), opts)
	defer engine.Close()

	unsubscribe := engine.Subscribe(&logListener{})
	defer unsubscribe()

	if _, err := engine.RequestSwitch(cmd.Context(), target); err != nil {
		return fmt.Errorf("initial switch: %w", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	s := <-sig
	slog.Info("shutting down", "signal", s.String())

	return nil
}

func loadConfig() (*config.Config, error) {
	if configFile == "" {
		return config.Default(), nil
	}
	return config.LoadFromFile(configFile)
}

// engineOptions translates the config's interval strings into engine options.
// Empty strings come back as zero and select the engine defaults.
func engineOptions(cfg *config.Config) (sync.Options, error) {
	var (
		opts sync.Options
		err  error
	)

	if opts.MetricsInterval, err = config.Duration(cfg.Sync.MetricsInterval); err != nil {
		return sync.Options{}, fmt.Errorf("metrics interval: %w", err)
	}
	if opts.TradesInterval, err = config.Duration(cfg.Sync.TradesInterval); err != nil {
		return sync.Options{}, fmt.Errorf("trades interval: %w", err)
	}
	if opts.HistoryInterval, err = config.Duration(cfg.Sync.HistoryInterval); err != nil {
		return sync.Options{}, fmt.Errorf("history interval: %w", err)
	}
	if opts.SwitchTimeout, err = config.Duration(cfg.Sync.SwitchTimeout); err != nil {
		return sync.Options{}, fmt.Errorf("switch timeout: %w", err)
	}
	if opts.ReconnectDelay, err = config.Duration(cfg.Sync.ReconnectDelay); err != nil {
		return sync.Options{}, fmt.Errorf("reconnect delay: %w", err)
	}

	wsURL := cfg.Server.WSURL
	opts.Dial = func(ctx context.Context) (*remote.Stream, error) {
		return remote.DialStream(ctx, wsURL, id.ClientID())
	}

	return opts, nil
}

// logListener prints every broadcast to the structured log. It stands in for
// a real consumer such as a UI bridge.
type logListener struct{}

func (logListener) OnMetrics(acct string, m account.Metrics) {
	slog.Info("metrics", "account", acct,
		"balance", m.Balance, "equity", m.Equity,
		"free_margin", m.FreeMargin, "profit", m.Profit)
}

func (logListener) OnTrades(acct string, trades []account.Trade) {
	slog.Info("active trades", "account", acct, "count", len(trades))
}

func (logListener) OnHistory(acct string, h account.HistorySummary) {
	slog.Info("history", "account", acct,
		"trades", len(h.Trades), "realized_pnl", h.Financial.RealizedPL)
}

func (logListener) OnAccountSwitched(oldAcct, newAcct string) {
	slog.Info("account switched", "from", oldAcct, "to", newAcct)
}

func (logListener) OnSwitchError(target string, err error) {
	slog.Error("switch failed", "target", target, "err", err)
}
