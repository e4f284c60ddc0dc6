package sync

import (
	"log/slog"
	gosync "sync"
	"time"
)

// switchLock is the single-holder exclusion flag guarding switches. A
// watchdog force-releases it after the configured timeout so a hung switch
// can never wedge the coordinator; the hung holder's permit goes stale and
// its late effects are discarded.
type switchLock struct {
	mu       gosync.Mutex
	held     bool
	token    uint64
	watchdog *time.Timer
}

// switchPermit is one holder's claim on the lock. It goes stale when the
// watchdog fires or the lock is re-acquired; stale permits release as no-ops.
type switchPermit struct {
	l     *switchLock
	token uint64
}

// tryAcquire attempts to take the lock without queueing. On success it arms
// the watchdog and returns the holder's permit.
func (l *switchLock) tryAcquire(timeout time.Duration) (*switchPermit, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held {
		return nil, false
	}

	l.held = true
	l.token++
	token := l.token

	if timeout > 0 {
		l.watchdog = time.AfterFunc(timeout, func() {
			l.forceRelease(token)
		})
	}

	return &switchPermit{l: l, token: token}, true
}

// release is idempotent and a no-op once the permit is stale.
func (p *switchPermit) release() {
	l := p.l
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.held || l.token != p.token {
		return
	}
	l.held = false
	if l.watchdog != nil {
		l.watchdog.Stop()
		l.watchdog = nil
	}
}

// valid reports whether this permit still owns the lock. A holder that blocked
// past the watchdog must check before touching shared state.
func (p *switchPermit) valid() bool {
	l := p.l
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held && l.token == p.token
}

// reacquire retakes the lock for a holder whose permit went stale, but only
// if no other holder has acquired the lock since. The watchdog released the
// lock; the token only moves on acquisition, so an unchanged token means
// nobody stepped in.
func (l *switchLock) reacquire(stale *switchPermit) (*switchPermit, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held || l.token != stale.token {
		return nil, false
	}
	l.held = true
	l.token++
	return &switchPermit{l: l, token: l.token}, true
}

func (l *switchLock) forceRelease(token uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.held || l.token != token {
		return
	}
	l.held = false
	l.watchdog = nil
	slog.Warn("switch watchdog fired, lock force-released")
}

func (l *switchLock) isHeld() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}
