package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rustyeddy/tradesync/account"
	"github.com/rustyeddy/tradesync/cache"
	"github.com/rustyeddy/tradesync/remote"
)

// ErrSwitchInProgress is returned when a switch is requested while another is
// in flight. Conflicting requests fail immediately; there is no queueing.
var ErrSwitchInProgress = errors.New("sync: switch in progress")

// ErrSwitchTimedOut is returned by a switch that outlived the watchdog. Its
// late results are discarded; a newer switch may already own the state.
var ErrSwitchTimedOut = errors.New("sync: switch timed out")

// DefaultSwitchTimeout bounds how long the switch lock can be held before the
// watchdog force-releases it.
const DefaultSwitchTimeout = 10 * time.Second

// Default refresh intervals. History changes less often, so under-refreshing
// it is cheap.
const (
	DefaultMetricsInterval = 1 * time.Second
	DefaultTradesInterval  = 1 * time.Second
	DefaultHistoryInterval = 2 * time.Second
)

// Remote is the server surface the engine depends on.
type Remote interface {
	cache.Fetcher
	SwitchAccount(ctx context.Context, acct string) (remote.SwitchResult, error)
}

// DialFunc opens one push connection.
type DialFunc func(ctx context.Context) (*remote.Stream, error)

// Options tune the engine. Zero values select the defaults above; a nil Dial
// disables the push channel (polling only).
type Options struct {
	MetricsInterval time.Duration
	TradesInterval  time.Duration
	HistoryInterval time.Duration
	SwitchTimeout   time.Duration
	ReconnectDelay  time.Duration
	Dial            DialFunc
}

func (o *Options) fillDefaults() {
	if o.MetricsInterval <= 0 {
		o.MetricsInterval = DefaultMetricsInterval
	}
	if o.TradesInterval <= 0 {
		o.TradesInterval = DefaultTradesInterval
	}
	if o.HistoryInterval <= 0 {
		o.HistoryInterval = DefaultHistoryInterval
	}
	if o.SwitchTimeout <= 0 {
		o.SwitchTimeout = DefaultSwitchTimeout
	}
}

// Engine is the account switch coordinator. It is the only component that
// writes the current account; every scheduler and the push channel read it to
// decide whether an inbound result is still relevant.
type Engine struct {
	remote Remote
	cache  *cache.Cache
	b      Broadcaster
	opts   Options

	current atomic.Value // string
	lock    switchLock

	metricsSched *Scheduler
	tradesSched  *Scheduler
	historySched *Scheduler
	channel      *Channel
}

// NewEngine builds the coordinator over a remote client and a cache.
func NewEngine(rc Remote, c *cache.Cache, opts Options) *Engine {
	opts.fillDefaults()

	e := &Engine{
		remote: rc,
		cache:  c,
		opts:   opts,
	}
	e.current.Store("")

	e.metricsSched = NewScheduler("metrics",
		func(ctx context.Context, acct string) (account.Update, error) {
			m, err := rc.FetchMetrics(ctx, acct)
			if err != nil {
				return account.Update{}, err
			}
			return account.MetricsUpdate(m), nil
		},
		e.applyUpdate, e.Current)

	e.tradesSched = NewScheduler("trades",
		func(ctx context.Context, acct string) (account.Update, error) {
			trades, err := rc.FetchActiveTrades(ctx, acct)
			if err != nil {
				return account.Update{}, err
			}
			return account.TradesUpdate(trades), nil
		},
		e.applyUpdate, e.Current)

	e.historySched = NewScheduler("history",
		func(ctx context.Context, acct string) (account.Update, error) {
			h, err := rc.FetchHistory(ctx, acct)
			if err != nil {
				return account.Update{}, err
			}
			return account.HistoryUpdate(h), nil
		},
		e.applyUpdate, e.Current)

	if opts.Dial != nil {
		e.channel = NewChannel(dialFunc(opts.Dial), e.Current, e.applyUpdate, &e.b, opts.ReconnectDelay)
	}

	return e
}

// Subscribe attaches a listener to the broadcast fan-out.
func (e *Engine) Subscribe(l Listener) func() {
	return e.b.Subscribe(l)
}

// Current returns the process-wide current account ("" before the first
// switch). Readers treat it as an eventually-consistent snapshot.
func (e *Engine) Current() string {
	return e.current.Load().(string)
}

// PeekCache is the synchronous memory-only lookup for instant first paint.
func (e *Engine) PeekCache(acct string) (*account.Snapshot, bool) {
	return e.cache.Peek(acct)
}

// RequestSwitch makes target the current account: it stops the schedulers,
// performs the remote switch, warms the cache, restarts the schedulers, and
// broadcasts the new snapshot. A failure after the remote call rolls back to
// the prior account. Concurrent calls fail fast with ErrSwitchInProgress.
func (e *Engine) RequestSwitch(ctx context.Context, target string) (remote.SwitchResult, error) {
	permit, ok := e.lock.tryAcquire(e.opts.SwitchTimeout)
	if !ok {
		return remote.SwitchResult{}, ErrSwitchInProgress
	}
	defer permit.release()

	old := e.Current()
	slog.Info("switching account", "from", old, "to", target)

	// No scheduler may write under the old identity while the switch runs.
	e.stopSchedulers()

	res, err := e.remote.SwitchAccount(ctx, target)
	if !permit.valid() {
		// The watchdog fired while we were blocked. Whatever happened on the
		// server, this switch no longer owns the engine state.
		e.resumeAfterTimeout(permit, old)
		return remote.SwitchResult{}, e.switchFailed(target, ErrSwitchTimedOut)
	}
	if err != nil {
		e.rollback(old)
		return remote.SwitchResult{}, e.switchFailed(target, err)
	}

	e.setCurrent(target)

	snap, err := e.cache.GetOrFetch(ctx, target)
	if !permit.valid() {
		e.resumeAfterTimeout(permit, old)
		return remote.SwitchResult{}, e.switchFailed(target, ErrSwitchTimedOut)
	}
	if err != nil {
		e.rollback(old)
		return remote.SwitchResult{}, e.switchFailed(target, fmt.Errorf("warm cache: %w", err))
	}

	e.startSchedulers()
	if e.channel != nil {
		e.channel.Connect()
		e.channel.RequestStatus()
	}

	e.broadcastSnapshot(target, snap)
	e.b.switched(old, target)

	slog.Info("account switched", "from", old, "to", target)
	return res, nil
}

// Close stops the schedulers, tears down the push channel, and drains
// outstanding durable writes.
func (e *Engine) Close() {
	e.stopSchedulers()
	if e.channel != nil {
		e.channel.Close()
	}
	e.cache.Flush()
}

func (e *Engine) setCurrent(acct string) {
	e.current.Store(acct)
	e.cache.SetCurrent(acct)
}

// resumeAfterTimeout restores steady state when a switch outlived the
// watchdog. The schedulers were stopped at the start of the switch; if no
// newer switch has taken the lock since, nothing will restart them, so this
// rolls back to the prior account and resumes its refresh. When a newer
// switch did step in, that switch owns the state and this backs off.
func (e *Engine) resumeAfterTimeout(stale *switchPermit, old string) {
	permit, ok := e.lock.reacquire(stale)
	if !ok {
		return
	}
	defer permit.release()

	e.rollback(old)
	slog.Warn("timed-out switch rolled back", "account", old)
}

// switchFailed wraps the failure and reports it to listeners.
func (e *Engine) switchFailed(target string, err error) error {
	wrapped := fmt.Errorf("switch to %s: %w", target, err)
	e.b.switchError(target, wrapped)
	return wrapped
}

// rollback restores the prior account after a failed switch and resumes its
// schedulers. With no prior account (cold start) there is nothing to resume.
func (e *Engine) rollback(old string) {
	e.setCurrent(old)
	if old != "" {
		e.startSchedulers()
	}
}

func (e *Engine) startSchedulers() {
	e.metricsSched.Start(e.opts.MetricsInterval)
	e.tradesSched.Start(e.opts.TradesInterval)
	e.historySched.Start(e.opts.HistoryInterval)
}

func (e *Engine) stopSchedulers() {
	e.metricsSched.Stop()
	e.tradesSched.Stop()
	e.historySched.Stop()
}

// applyUpdate is the single commit path for scheduler ticks and push
// messages: trim, detect history changes, merge into the cache, broadcast.
// Callers have already verified acct is current.
func (e *Engine) applyUpdate(acct string, u account.Update) {
	if u.History != nil {
		h := *u.History
		h.Trades = account.TrimHistory(h.Trades, acct == e.Current())
		u.History = &h

		// Suppress redundant history broadcasts.
		if prev, ok := e.cache.Peek(acct); ok && prev.History != nil {
			if !account.HistoryChanged(prev.History.Trades, h.Trades) {
				e.cache.Put(acct, u)
				return
			}
		}
	}

	e.cache.Put(acct, u)

	if u.Metrics != nil {
		e.b.metrics(acct, *u.Metrics)
	}
	if u.TradesSet {
		e.b.trades(acct, u.Trades)
	}
	if u.History != nil {
		e.b.history(acct, *u.History)
	}
}

// broadcastSnapshot pushes all three facets of a freshly composed snapshot.
func (e *Engine) broadcastSnapshot(acct string, snap *account.Snapshot) {
	if snap.Metrics != nil {
		e.b.metrics(acct, *snap.Metrics)
	}
	e.b.trades(acct, snap.Trades)
	if snap.History != nil {
		e.b.history(acct, *snap.History)
	}
}
