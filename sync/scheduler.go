package sync

import (
	"context"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/rustyeddy/tradesync/account"
)

// facetFetch pulls one data facet for one account from the remote server.
type facetFetch func(ctx context.Context, acct string) (account.Update, error)

// Scheduler runs one facet's periodic refresh loop. Ticks are strictly
// sequential within a scheduler; a fetch failure logs and waits for the next
// tick. The account identity is captured before each fetch and re-checked at
// commit time, so a result that straddles a switch is discarded.
type Scheduler struct {
	name    string
	fetch   facetFetch
	commit  func(acct string, u account.Update)
	current func() string

	mu     gosync.Mutex
	cancel context.CancelFunc
	ctx    context.Context
}

// NewScheduler wires a refresh loop for one facet. current reports the
// process-wide current account; commit applies a still-relevant result.
func NewScheduler(name string, fetch facetFetch, commit func(string, account.Update), current func() string) *Scheduler {
	return &Scheduler{
		name:    name,
		fetch:   fetch,
		commit:  commit,
		current: current,
	}
}

// Start launches the loop, cancelling any prior run of this scheduler first.
func (s *Scheduler) Start(interval time.Duration) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.ctx = ctx
	s.cancel = cancel
	s.mu.Unlock()

	go s.run(ctx, interval)
}

// Stop cancels the loop. Safe to call when not running. An in-flight fetch
// finds its run context cancelled when its result is validated and discards
// it; only a commit already past validation at the moment of Stop can still
// land, and it carries the account that was current when it was fetched.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
		s.ctx = nil
	}
}

func (s *Scheduler) run(ctx context.Context, interval time.Duration) {
	for {
		s.tick(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	acct := s.current()
	if acct == "" {
		return
	}

	u, err := s.fetch(ctx, acct)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("refresh failed", "scheduler", s.name, "account", acct, "err", err)
		}
		return
	}

	// Validate under the lock, then commit outside it so a listener reached
	// by the commit may call back into the coordinator (and stop this very
	// scheduler) without deadlocking.
	s.mu.Lock()
	live := s.ctx == ctx && ctx.Err() == nil
	s.mu.Unlock()
	if !live {
		return
	}
	if s.current() != acct {
		slog.Debug("discarding stale refresh", "scheduler", s.name, "account", acct)
		return
	}
	s.commit(acct, u)
}
