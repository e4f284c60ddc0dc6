// Package sync is the account-switch coordination engine: it owns the current
// account, the switch lock, the periodic refresh schedulers, and the realtime
// push channel, and fans filtered updates out to listeners.
package sync

import (
	gosync "sync"

	"github.com/rustyeddy/tradesync/account"
)

// Listener receives account-filtered broadcasts. Callbacks only ever fire for
// the current account (OnAccountSwitched reports both sides of a switch).
type Listener interface {
	OnMetrics(acct string, m account.Metrics)
	OnTrades(acct string, trades []account.Trade)
	OnHistory(acct string, h account.HistorySummary)
	OnAccountSwitched(oldAcct, newAcct string)
	OnSwitchError(target string, err error)
}

// NopListener implements Listener with no-ops. Embed it to pick only the
// callbacks a consumer cares about.
type NopListener struct{}

func (NopListener) OnMetrics(string, account.Metrics)         {}
func (NopListener) OnTrades(string, []account.Trade)          {}
func (NopListener) OnHistory(string, account.HistorySummary)  {}
func (NopListener) OnAccountSwitched(oldAcct, newAcct string) {}
func (NopListener) OnSwitchError(target string, err error)    {}

// Broadcaster fans one event out to every subscribed listener. Subscription
// is dynamic; there may be none attached.
type Broadcaster struct {
	mu        gosync.RWMutex
	listeners []Listener
}

// Subscribe attaches a listener and returns a function that detaches it.
func (b *Broadcaster) Subscribe(l Listener) func() {
	b.mu.Lock()
	b.listeners = append(b.listeners, l)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, cur := range b.listeners {
			if cur == l {
				b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
				return
			}
		}
	}
}

func (b *Broadcaster) metrics(acct string, m account.Metrics) {
	for _, l := range b.snapshot() {
		l.OnMetrics(acct, m)
	}
}

func (b *Broadcaster) trades(acct string, trades []account.Trade) {
	for _, l := range b.snapshot() {
		l.OnTrades(acct, trades)
	}
}

func (b *Broadcaster) history(acct string, h account.HistorySummary) {
	for _, l := range b.snapshot() {
		l.OnHistory(acct, h)
	}
}

func (b *Broadcaster) switched(oldAcct, newAcct string) {
	for _, l := range b.snapshot() {
		l.OnAccountSwitched(oldAcct, newAcct)
	}
}

func (b *Broadcaster) switchError(target string, err error) {
	for _, l := range b.snapshot() {
		l.OnSwitchError(target, err)
	}
}

func (b *Broadcaster) snapshot() []Listener {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Listener(nil), b.listeners...)
}
