package account

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrade(id string, status Status) Trade {
	return Trade{
		ID:         id,
		Symbol:     "EURUSD",
		EntryPrice: 1.0850,
		StartTime:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Status:     status,
		TargetType: TargetProfit,
		Direction:  Buy,
		LotSize:    0.1,
	}
}

func TestTradeClosed(t *testing.T) {
	t.Parallel()

	assert.False(t, sampleTrade("t1", Running).Closed())
	assert.True(t, sampleTrade("t2", Completed).Closed())
	assert.True(t, sampleTrade("t3", Stopped).Closed())
}

func TestSnapshotApplyTouchesOnlyCarriedFacets(t *testing.T) {
	t.Parallel()

	now := time.Now()
	snap := &Snapshot{Account: "VIP"}

	snap.Apply(MetricsUpdate(Metrics{Balance: 1000, Equity: 1010}), now)
	require.NotNil(t, snap.Metrics)
	assert.Equal(t, 1000.0, snap.Metrics.Balance)
	assert.Nil(t, snap.Trades)
	assert.Nil(t, snap.History)

	snap.Apply(TradesUpdate([]Trade{sampleTrade("t1", Running)}), now)
	assert.Len(t, snap.Trades, 1)
	// The metrics facet from the earlier update survives.
	require.NotNil(t, snap.Metrics)
	assert.Equal(t, 1010.0, snap.Metrics.Equity)

	snap.Apply(HistoryUpdate(HistorySummary{
		Stats:  TradeStats{TotalTrades: 5},
		Trades: []Trade{sampleTrade("t0", Completed)},
	}), now)
	require.NotNil(t, snap.History)
	assert.Equal(t, 5, snap.History.Stats.TotalTrades)
	assert.Len(t, snap.Trades, 1)
}

func TestSnapshotApplyEmptyTradesIsAnUpdate(t *testing.T) {
	t.Parallel()

	snap := &Snapshot{Account: "VIP", Trades: []Trade{sampleTrade("t1", Running)}}

	// All positions closed: the refresh carries an empty list, not "no data".
	snap.Apply(TradesUpdate(nil), time.Now())
	assert.Empty(t, snap.Trades)
}

func TestSnapshotCloneIsDeep(t *testing.T) {
	t.Parallel()

	orig := &Snapshot{
		Account: "DEMO",
		Metrics: &Metrics{Balance: 500},
		Trades:  []Trade{sampleTrade("t1", Running)},
		History: &HistorySummary{Trades: []Trade{sampleTrade("t0", Completed)}},
	}

	clone := orig.Clone()
	clone.Metrics.Balance = 999
	clone.Trades[0].ID = "mutated"
	clone.History.Trades[0].ID = "mutated"

	assert.Equal(t, 500.0, orig.Metrics.Balance)
	assert.Equal(t, "t1", orig.Trades[0].ID)
	assert.Equal(t, "t0", orig.History.Trades[0].ID)
}

func TestSnapshotCloneNil(t *testing.T) {
	t.Parallel()

	var snap *Snapshot
	assert.Nil(t, snap.Clone())
}
