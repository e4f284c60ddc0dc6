package sync

import (
	"context"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/rustyeddy/tradesync/account"
	"github.com/rustyeddy/tradesync/remote"
)

// DefaultReconnectDelay is the fixed pause before re-dialing a dropped push
// channel.
const DefaultReconnectDelay = 5 * time.Second

const (
	channelPingInterval = 30 * time.Second
	channelReadTimeout  = 60 * time.Second
)

// dialFunc opens one push connection. Split out so tests can dial an
// in-process server.
type dialFunc func(ctx context.Context) (*remote.Stream, error)

// Channel owns the push connection lifecycle: dial, handshake, ping, dispatch,
// reconnect after failure. The intent flag distinguishes a dropped connection
// (reconnect after a fixed delay) from an intentional Close (stay down).
type Channel struct {
	dial      dialFunc
	current   func() string
	apply     func(acct string, u account.Update)
	broadcast *Broadcaster
	delay     time.Duration

	mu        gosync.Mutex
	intent    bool
	stream    *remote.Stream
	reconnect *time.Timer
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewChannel wires a push channel manager. apply commits a metrics payload for
// the current account; delay <= 0 selects DefaultReconnectDelay.
func NewChannel(dial dialFunc, current func() string, apply func(string, account.Update), b *Broadcaster, delay time.Duration) *Channel {
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	return &Channel{
		dial:      dial,
		current:   current,
		apply:     apply,
		broadcast: b,
		delay:     delay,
	}
}

// Connect declares the channel wanted and starts the connect loop. Calling it
// while already connected is a no-op.
func (c *Channel) Connect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.intent {
		return
	}
	c.intent = true
	c.ctx, c.cancel = context.WithCancel(context.Background())
	go c.run(c.ctx)
}

// Close is idempotent: it clears the intent flag, cancels any pending
// reconnect, and tears down the connection.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.intent {
		return
	}
	c.intent = false
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.stream != nil {
		c.stream.Close()
		c.stream = nil
	}
}

// RequestStatus re-sends the status handshake on an open connection, e.g.
// right after an account switch. No-op while disconnected.
func (c *Channel) RequestStatus() {
	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()

	if stream == nil {
		return
	}
	if err := stream.WriteJSON(map[string]string{"type": "status_request"}); err != nil {
		slog.Warn("status request failed", "err", err)
	}
}

func (c *Channel) run(ctx context.Context) {
	stream, err := c.dial(ctx)
	if err != nil {
		slog.Warn("push channel connect failed", "err", err)
		c.scheduleReconnect(ctx)
		return
	}

	c.mu.Lock()
	if !c.intent || ctx.Err() != nil {
		c.mu.Unlock()
		stream.Close()
		return
	}
	c.stream = stream
	c.mu.Unlock()

	slog.Info("push channel connected")

	// Status-request handshake, then keepalive pings.
	if err := stream.WriteJSON(map[string]string{"type": "status_request"}); err != nil {
		slog.Warn("push channel handshake failed", "err", err)
		c.dropAndReconnect(ctx, stream)
		return
	}
	go c.pingLoop(ctx, stream)

	for {
		stream.SetReadDeadline(time.Now().Add(channelReadTimeout))
		msg, err := stream.Read()
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("push channel read failed", "err", err)
			}
			c.dropAndReconnect(ctx, stream)
			return
		}
		c.handle(msg)
	}
}

func (c *Channel) pingLoop(ctx context.Context, stream *remote.Stream) {
	ticker := time.NewTicker(channelPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := stream.WriteJSON(map[string]string{"type": "ping"}); err != nil {
				return
			}
		}
	}
}

// handle dispatches one inbound message. Updates tagged with a non-current
// account are discarded, not buffered.
func (c *Channel) handle(msg remote.PushMessage) {
	switch msg.Type {
	case remote.PushPriceUpdate, remote.PushAccountStatus:
		acct := c.current()
		if msg.Account != acct {
			slog.Debug("discarding stale push", "type", msg.Type, "account", msg.Account)
			return
		}
		if msg.Metrics == nil {
			return
		}
		c.apply(acct, account.MetricsUpdate(*msg.Metrics))

	case remote.PushAccountSwitched:
		// Informational only: the coordinator is the sole writer of the
		// current account.
		c.broadcast.switched(msg.OldAccount, msg.NewAccount)

	case remote.PushConnEstablished, remote.PushPong:
		// keepalive traffic
	}
}

func (c *Channel) dropAndReconnect(ctx context.Context, stream *remote.Stream) {
	stream.Close()

	c.mu.Lock()
	if c.stream == stream {
		c.stream = nil
	}
	c.mu.Unlock()

	c.scheduleReconnect(ctx)
}

// scheduleReconnect arms the fixed-delay retry, but only while the channel is
// still supposed to be connected.
func (c *Channel) scheduleReconnect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.intent || ctx.Err() != nil {
		return
	}
	c.reconnect = time.AfterFunc(c.delay, func() {
		c.mu.Lock()
		run := c.intent && c.ctx != nil && c.ctx.Err() == nil
		ctx := c.ctx
		c.reconnect = nil
		c.mu.Unlock()
		if run {
			c.run(ctx)
		}
	})
}
