package account

import "time"

// Direction is the side a trade was opened on.
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

// Status is the lifecycle state of a trade as reported by the server.
type Status string

const (
	Running   Status = "RUNNING"
	Stopped   Status = "STOPPED"
	Completed Status = "COMPLETED"
)

// TargetType distinguishes profit targets from loss limits.
type TargetType string

const (
	TargetProfit TargetType = "PROFIT"
	TargetLoss   TargetType = "LOSS"
)

// Metrics is the per-account margin state. Field names follow the server's
// wire format.
type Metrics struct {
	Balance         float64 `json:"balance"`
	Equity          float64 `json:"equity"`
	Margin          float64 `json:"margin"`
	FreeMargin      float64 `json:"free_margin"`
	MarginLevel     float64 `json:"margin_level"`
	Profit          float64 `json:"profit"`
	Deposit         float64 `json:"deposit,omitempty"`
	TotalSwap       float64 `json:"total_swap"`
	TotalProfitLoss float64 `json:"total_profit_loss"`
}

// Trade mirrors the server's trade record. An open trade's price and P/L
// fields mutate on every refresh; a closed trade never changes again.
// IDs are unique within an account and never reused.
type Trade struct {
	ID               string     `json:"trade_id"`
	Symbol           string     `json:"symbol"`
	EntryPrice       float64    `json:"entry_price"`
	CurrentBuyPrice  float64    `json:"current_buy_price"`
	CurrentSellPrice float64    `json:"current_sell_price"`
	StartTime        time.Time  `json:"start_time"`
	EndTime          *time.Time `json:"end_time,omitempty"`
	Status           Status     `json:"status"`
	TargetType       TargetType `json:"target_type"`
	TargetAmount     float64    `json:"target_amount"`
	LotSize          float64    `json:"lot_size"`
	Direction        Direction  `json:"trade_direction"`
	ProfitLoss       float64    `json:"profit_loss"`
	MarginUsed       float64    `json:"margin_used"`
	Swap             float64    `json:"swap"`
	Commission       float64    `json:"commission"`
	ClosingPrice     *float64   `json:"closing_price,omitempty"`
}

// Closed reports whether the trade has reached a terminal status.
func (t Trade) Closed() bool {
	return t.Status == Completed || t.Status == Stopped
}

// TradeStats are the aggregate counters of the server's trade summary.
type TradeStats struct {
	TotalTrades     int     `json:"total_trades"`
	RunningTrades   int     `json:"running_trades"`
	CompletedTrades int     `json:"completed_trades"`
	StoppedTrades   int     `json:"stopped_trades"`
	WinRatePct      float64 `json:"win_rate_percentage"`
	ProfitableCount int     `json:"profitable_trades"`
	LosingCount     int     `json:"losing_trades"`
}

// FinancialStats are the aggregate money figures of the trade summary.
type FinancialStats struct {
	RealizedPL    float64 `json:"total_realized_pnl"`
	UnrealizedPL  float64 `json:"current_unrealized_pnl"`
	TotalSwapFees float64 `json:"total_swap_fees"`
}

// HistorySummary is the composed history facet: aggregates plus a bounded
// list of closed/stopped trades, most recently closed first (server order).
type HistorySummary struct {
	Stats     TradeStats     `json:"trades_summary"`
	Financial FinancialStats `json:"financial_summary"`
	Trades    []Trade        `json:"trades"`
}

// Snapshot is the composed state of one account at one point in time.
// Partial refreshes replace only the touched facet; the others stay valid.
type Snapshot struct {
	Account     string
	Metrics     *Metrics
	Trades      []Trade
	History     *HistorySummary
	LastUpdated time.Time
}

// Update carries one or more facets into a snapshot merge. A nil facet means
// "not fetched"; TradesSet distinguishes that from an account with zero open
// trades.
type Update struct {
	Metrics   *Metrics
	Trades    []Trade
	TradesSet bool
	History   *HistorySummary
}

// MetricsUpdate wraps a metrics refresh.
func MetricsUpdate(m Metrics) Update {
	return Update{Metrics: &m}
}

// TradesUpdate wraps an active-trades refresh.
func TradesUpdate(trades []Trade) Update {
	return Update{Trades: trades, TradesSet: true}
}

// HistoryUpdate wraps a history refresh.
func HistoryUpdate(h HistorySummary) Update {
	return Update{History: &h}
}

// Apply merges an update into the snapshot, touching only the facets the
// update carries.
func (s *Snapshot) Apply(u Update, now time.Time) {
	if u.Metrics != nil {
		m := *u.Metrics
		s.Metrics = &m
	}
	if u.TradesSet {
		s.Trades = append([]Trade(nil), u.Trades...)
	}
	if u.History != nil {
		h := *u.History
		h.Trades = append([]Trade(nil), u.History.Trades...)
		s.History = &h
	}
	s.LastUpdated = now
}

// Clone returns a deep copy so callers can hand snapshots across goroutines
// without sharing slices with the cache.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{
		Account:     s.Account,
		Trades:      append([]Trade(nil), s.Trades...),
		LastUpdated: s.LastUpdated,
	}
	if s.Metrics != nil {
		m := *s.Metrics
		out.Metrics = &m
	}
	if s.History != nil {
		h := *s.History
		h.Trades = append([]Trade(nil), s.History.Trades...)
		out.History = &h
	}
	return out
}
