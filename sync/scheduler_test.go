package sync

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradesync/account"
)

// commitRecorder collects scheduler commits.
type commitRecorder struct {
	mu      gosync.Mutex
	commits []string
}

func (r *commitRecorder) commit(acct string, u account.Update) {
	r.mu.Lock()
	r.commits = append(r.commits, acct)
	r.mu.Unlock()
}

func (r *commitRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.commits)
}

func (r *commitRecorder) accounts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.commits...)
}

func metricsFetch(m account.Metrics, err error) facetFetch {
	return func(ctx context.Context, acct string) (account.Update, error) {
		if err != nil {
			return account.Update{}, err
		}
		return account.MetricsUpdate(m), nil
	}
}

func TestSchedulerCommitsPeriodically(t *testing.T) {
	t.Parallel()

	rec := &commitRecorder{}
	s := NewScheduler("metrics", metricsFetch(account.Metrics{Balance: 1}, nil),
		rec.commit, func() string { return "VIP" })

	s.Start(10 * time.Millisecond)
	defer s.Stop()

	require.Eventually(t, func() bool { return rec.count() >= 3 },
		time.Second, 5*time.Millisecond)
	for _, acct := range rec.accounts() {
		assert.Equal(t, "VIP", acct)
	}
}

func TestSchedulerSkipsWithoutCurrentAccount(t *testing.T) {
	t.Parallel()

	rec := &commitRecorder{}
	s := NewScheduler("metrics", metricsFetch(account.Metrics{}, nil),
		rec.commit, func() string { return "" })

	s.Start(5 * time.Millisecond)
	defer s.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, rec.count())
}

func TestSchedulerSurvivesFetchErrors(t *testing.T) {
	t.Parallel()

	// Ticks run sequentially within a scheduler, so n needs no lock.
	n := 0
	fetch := func(ctx context.Context, acct string) (account.Update, error) {
		n++
		if n%2 == 1 {
			return account.Update{}, errors.New("flaky")
		}
		return account.MetricsUpdate(account.Metrics{}), nil
	}

	rec := &commitRecorder{}
	s := NewScheduler("metrics", fetch, rec.commit, func() string { return "VIP" })
	s.Start(10 * time.Millisecond)
	defer s.Stop()

	// Failed ticks log and wait; successful ticks still land.
	require.Eventually(t, func() bool { return rec.count() >= 2 },
		time.Second, 5*time.Millisecond)
}

func TestSchedulerStopPreventsLaterCommits(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	fetch := func(ctx context.Context, acct string) (account.Update, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return account.MetricsUpdate(account.Metrics{}), nil
	}

	rec := &commitRecorder{}
	s := NewScheduler("metrics", fetch, rec.commit, func() string { return "VIP" })
	s.Start(time.Hour)

	time.Sleep(20 * time.Millisecond)
	s.Stop()

	// The in-flight fetch completes after Stop; its result must be discarded.
	close(release)
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, rec.count())
}

func TestSchedulerDiscardsResultForStaleAccount(t *testing.T) {
	t.Parallel()

	var mu gosync.Mutex
	current := "VIP"
	setCurrent := func(acct string) {
		mu.Lock()
		current = acct
		mu.Unlock()
	}
	getCurrent := func() string {
		mu.Lock()
		defer mu.Unlock()
		return current
	}

	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(ctx context.Context, acct string) (account.Update, error) {
		close(started)
		<-release
		return account.MetricsUpdate(account.Metrics{}), nil
	}

	rec := &commitRecorder{}
	s := NewScheduler("metrics", fetch, rec.commit, getCurrent)
	s.Start(time.Hour)
	defer s.Stop()

	// Switch accounts while the fetch for VIP is still in flight.
	<-started
	setCurrent("DEMO")
	close(release)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, rec.count())
}

func TestSchedulerCommitMayStopScheduler(t *testing.T) {
	t.Parallel()

	// A commit that calls back into Stop must not deadlock; broadcasts run
	// listener code that may re-enter the coordinator.
	var s *Scheduler
	committed := make(chan struct{}, 1)
	commit := func(acct string, u account.Update) {
		s.Stop()
		committed <- struct{}{}
	}

	s = NewScheduler("metrics", metricsFetch(account.Metrics{}, nil),
		commit, func() string { return "VIP" })
	s.Start(time.Hour)

	select {
	case <-committed:
	case <-time.After(2 * time.Second):
		t.Fatal("commit never ran; Stop deadlocked against the tick")
	}
}

func TestSchedulerStopIdempotent(t *testing.T) {
	t.Parallel()

	s := NewScheduler("metrics", metricsFetch(account.Metrics{}, nil),
		func(string, account.Update) {}, func() string { return "VIP" })

	s.Stop()
	s.Start(10 * time.Millisecond)
	s.Stop()
	s.Stop()
}

func TestSchedulerRestart(t *testing.T) {
	t.Parallel()

	rec := &commitRecorder{}
	s := NewScheduler("metrics", metricsFetch(account.Metrics{}, nil),
		rec.commit, func() string { return "VIP" })

	s.Start(10 * time.Millisecond)
	s.Stop()

	before := rec.count()
	s.Start(10 * time.Millisecond)
	defer s.Stop()

	require.Eventually(t, func() bool { return rec.count() > before },
		time.Second, 5*time.Millisecond)
}
