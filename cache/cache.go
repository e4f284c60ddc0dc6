// Package cache implements the tiered snapshot cache: bounded memory first,
// durable store second, network fan-out last. It owns every cached snapshot;
// callers get deep copies and submit changes through Put.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rustyeddy/tradesync/account"
	"github.com/rustyeddy/tradesync/store"
)

// DefaultCapacity keeps the current account plus the two most recently
// touched others.
const DefaultCapacity = 3

// Fetcher is the network tier consulted on a full miss.
type Fetcher interface {
	FetchMetrics(ctx context.Context, acct string) (account.Metrics, error)
	FetchActiveTrades(ctx context.Context, acct string) ([]account.Trade, error)
	FetchHistory(ctx context.Context, acct string) (account.HistorySummary, error)
}

// Cache is the tiered cache engine. The entry for the current account is
// pinned: eviction skips it regardless of recency rank.
type Cache struct {
	fetcher  Fetcher
	store    store.Store
	capacity int

	mu       sync.Mutex
	entries  map[string]*account.Snapshot
	recency  []string // most recently touched first
	current  string
	inflight map[string]*fetchCall

	writes sync.WaitGroup // outstanding fire-and-forget store writes
}

type fetchCall struct {
	done chan struct{}
	snap *account.Snapshot
	err  error
}

// New builds a cache over the given network and durable tiers. The store may
// be nil (memory/network only); capacity <= 0 selects DefaultCapacity.
func New(fetcher Fetcher, st store.Store, capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		fetcher:  fetcher,
		store:    st,
		capacity: capacity,
		entries:  make(map[string]*account.Snapshot),
		inflight: make(map[string]*fetchCall),
	}
}

// SetCurrent pins acct against eviction. The coordinator is the only caller.
func (c *Cache) SetCurrent(acct string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = acct
	if _, ok := c.entries[acct]; ok {
		c.touch(acct)
	}
}

// Peek is the memory-only, non-blocking lookup used for instant first paint.
func (c *Cache) Peek(acct string) (*account.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap, ok := c.entries[acct]
	if !ok {
		return nil, false
	}
	c.touch(acct)
	return snap.Clone(), true
}

// Put merges an update into the account's snapshot, creating the entry on
// first contact. Account filtering is the caller's responsibility; the cache
// stores whatever it is given.
func (c *Cache) Put(acct string, u account.Update) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap, ok := c.entries[acct]
	if !ok {
		snap = &account.Snapshot{Account: acct}
		c.entries[acct] = snap
	}
	snap.Apply(u, time.Now())
	c.touch(acct)
	c.evict()
}

// GetOrFetch returns the account's snapshot, consulting the durable store and
// then the network on a memory miss. Concurrent callers for the same account
// share one fetch.
func (c *Cache) GetOrFetch(ctx context.Context, acct string) (*account.Snapshot, error) {
	c.mu.Lock()
	if snap, ok := c.entries[acct]; ok {
		c.touch(acct)
		out := snap.Clone()
		c.mu.Unlock()
		return out, nil
	}
	if call, ok := c.inflight[acct]; ok {
		c.mu.Unlock()
		select {
		case <-call.done:
			return call.snap.Clone(), call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &fetchCall{done: make(chan struct{})}
	c.inflight[acct] = call
	c.mu.Unlock()

	snap, err := c.load(ctx, acct)

	c.mu.Lock()
	delete(c.inflight, acct)
	if err == nil {
		c.entries[acct] = snap
		c.touch(acct)
		c.evict()
		call.snap = snap.Clone()
	}
	call.err = err
	close(call.done)
	out := call.snap.Clone()
	c.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return out, nil
}

// load consults the durable tier, then falls back to the network fan-out.
func (c *Cache) load(ctx context.Context, acct string) (*account.Snapshot, error) {
	if c.store != nil {
		snap, err := c.store.ReadByAccount(ctx, acct)
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("durable store read failed", "account", acct, "err", err)
		}
	}
	return c.fetchAll(ctx, acct)
}

// fetchAll dispatches the three facet fetches concurrently and composes one
// snapshot from the results.
func (c *Cache) fetchAll(ctx context.Context, acct string) (*account.Snapshot, error) {
	var (
		wg      sync.WaitGroup
		metrics account.Metrics
		trades  []account.Trade
		history account.HistorySummary

		metricsErr, tradesErr, historyErr error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		metrics, metricsErr = c.fetcher.FetchMetrics(ctx, acct)
	}()
	go func() {
		defer wg.Done()
		trades, tradesErr = c.fetcher.FetchActiveTrades(ctx, acct)
	}()
	go func() {
		defer wg.Done()
		history, historyErr = c.fetcher.FetchHistory(ctx, acct)
	}()
	wg.Wait()

	for _, err := range []error{metricsErr, tradesErr, historyErr} {
		if err != nil {
			return nil, fmt.Errorf("fetch snapshot for %s: %w", acct, err)
		}
	}

	c.mu.Lock()
	active := acct == c.current
	c.mu.Unlock()
	history.Trades = account.TrimHistory(history.Trades, active)

	snap := &account.Snapshot{
		Account:     acct,
		Metrics:     &metrics,
		Trades:      trades,
		History:     &history,
		LastUpdated: time.Now(),
	}

	c.writeThrough(acct, snap.Clone())
	return snap, nil
}

// writeThrough persists a fetched snapshot without blocking the caller's
// response path. Failures are logged, never propagated.
func (c *Cache) writeThrough(acct string, snap *account.Snapshot) {
	if c.store == nil {
		return
	}
	c.writes.Add(1)
	go func() {
		defer c.writes.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.store.WriteAll(ctx, acct, snap); err != nil {
			slog.Warn("durable store write failed", "account", acct, "err", err)
		}
	}()
}

// Flush waits for outstanding durable writes. Used by shutdown and tests.
func (c *Cache) Flush() {
	c.writes.Wait()
}

// Len reports the number of in-memory entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Accounts lists the cached accounts, most recently touched first.
func (c *Cache) Accounts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.recency...)
}

// touch moves acct to the front of the recency list. Callers hold c.mu.
func (c *Cache) touch(acct string) {
	for i, a := range c.recency {
		if a == acct {
			c.recency = append(c.recency[:i], c.recency[i+1:]...)
			break
		}
	}
	c.recency = append([]string{acct}, c.recency...)
}

// evict drops least-recently-touched entries beyond capacity, never the
// current account's. Callers hold c.mu.
func (c *Cache) evict() {
	for len(c.entries) > c.capacity {
		victim := ""
		for i := len(c.recency) - 1; i >= 0; i-- {
			if c.recency[i] != c.current {
				victim = c.recency[i]
				break
			}
		}
		if victim == "" {
			return
		}
		delete(c.entries, victim)
		for i, a := range c.recency {
			if a == victim {
				c.recency = append(c.recency[:i], c.recency[i+1:]...)
				break
			}
		}
		slog.Debug("evicted cache entry", "account", victim)
	}
}
