package sync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradesync/account"
	"github.com/rustyeddy/tradesync/remote"
)

// pushServer is an in-process websocket endpoint that hands every accepted
// connection to the test for scripting.
type pushServer struct {
	t     *testing.T
	wsURL string
	conns chan *websocket.Conn
}

func newTestPushServer(t *testing.T) *pushServer {
	t.Helper()

	ps := &pushServer{t: t, conns: make(chan *websocket.Conn, 8)}
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ps.conns <- conn
	}))
	t.Cleanup(server.Close)

	ps.wsURL = "ws" + strings.TrimPrefix(server.URL, "http")
	return ps
}

func (ps *pushServer) dial(ctx context.Context) (*remote.Stream, error) {
	return remote.DialStream(ctx, ps.wsURL, "test-client")
}

// accept waits for the next connection and drains its handshake message.
func (ps *pushServer) accept() *websocket.Conn {
	ps.t.Helper()

	select {
	case conn := <-ps.conns:
		var handshake map[string]string
		require.NoError(ps.t, conn.ReadJSON(&handshake))
		require.Equal(ps.t, "status_request", handshake["type"])
		return conn
	case <-time.After(2 * time.Second):
		ps.t.Fatal("no connection arrived")
		return nil
	}
}

// applyRecorder captures committed updates.
type applyRecorder struct {
	mu      gosync.Mutex
	applied []account.Update
}

func (r *applyRecorder) apply(acct string, u account.Update) {
	r.mu.Lock()
	r.applied = append(r.applied, u)
	r.mu.Unlock()
}

func (r *applyRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.applied)
}

// switchRecorder captures OnAccountSwitched broadcasts.
type switchRecorder struct {
	NopListener
	mu       gosync.Mutex
	switches [][2]string
}

func (r *switchRecorder) OnAccountSwitched(oldAcct, newAcct string) {
	r.mu.Lock()
	r.switches = append(r.switches, [2]string{oldAcct, newAcct})
	r.mu.Unlock()
}

func (r *switchRecorder) last() ([2]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.switches) == 0 {
		return [2]string{}, false
	}
	return r.switches[len(r.switches)-1], true
}

func newTestChannel(ps *pushServer, current string, rec *applyRecorder, b *Broadcaster) *Channel {
	if b == nil {
		b = &Broadcaster{}
	}
	return NewChannel(ps.dial, func() string { return current }, rec.apply, b, 20*time.Millisecond)
}

func TestChannelAppliesCurrentAccountPush(t *testing.T) {
	t.Parallel()

	ps := newTestPushServer(t)
	rec := &applyRecorder{}
	c := newTestChannel(ps, "VIP", rec, nil)

	c.Connect()
	defer c.Close()
	conn := ps.accept()

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":            "price_update",
		"account_type":    "VIP",
		"account_metrics": account.Metrics{Balance: 4242},
	}))

	require.Eventually(t, func() bool { return rec.count() == 1 },
		time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	u := rec.applied[0]
	rec.mu.Unlock()
	require.NotNil(t, u.Metrics)
	assert.Equal(t, 4242.0, u.Metrics.Balance)
}

func TestChannelDiscardsOtherAccountPush(t *testing.T) {
	t.Parallel()

	ps := newTestPushServer(t)
	rec := &applyRecorder{}
	c := newTestChannel(ps, "VIP", rec, nil)

	c.Connect()
	defer c.Close()
	conn := ps.accept()

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":            "price_update",
		"account_type":    "DEMO",
		"account_metrics": account.Metrics{Balance: 1},
	}))
	// A current-account message afterwards proves the first was dropped, not
	// merely still in flight.
	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":            "price_update",
		"account_type":    "VIP",
		"account_metrics": account.Metrics{Balance: 2},
	}))

	require.Eventually(t, func() bool { return rec.count() >= 1 },
		time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.applied, 1)
	assert.Equal(t, 2.0, rec.applied[0].Metrics.Balance)
}

func TestChannelBroadcastsServerSideSwitch(t *testing.T) {
	t.Parallel()

	ps := newTestPushServer(t)
	rec := &applyRecorder{}
	b := &Broadcaster{}
	sw := &switchRecorder{}
	b.Subscribe(sw)

	c := newTestChannel(ps, "VIP", rec, b)
	c.Connect()
	defer c.Close()
	conn := ps.accept()

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":        "account_switched",
		"old_account": "VIP",
		"new_account": "PRO",
	}))

	require.Eventually(t, func() bool {
		got, ok := sw.last()
		return ok && got == [2]string{"VIP", "PRO"}
	}, time.Second, 5*time.Millisecond)

	// Informational only; nothing is committed to the cache.
	assert.Zero(t, rec.count())
}

func TestChannelReconnectsAfterDrop(t *testing.T) {
	t.Parallel()

	ps := newTestPushServer(t)
	rec := &applyRecorder{}
	c := newTestChannel(ps, "VIP", rec, nil)

	c.Connect()
	defer c.Close()

	conn := ps.accept()
	conn.Close()

	// The fixed-delay retry dials a fresh connection and re-handshakes.
	conn2 := ps.accept()
	require.NoError(t, conn2.WriteJSON(map[string]any{
		"type":            "price_update",
		"account_type":    "VIP",
		"account_metrics": account.Metrics{Balance: 7},
	}))

	require.Eventually(t, func() bool { return rec.count() == 1 },
		time.Second, 5*time.Millisecond)
}

func TestChannelCloseStopsReconnect(t *testing.T) {
	t.Parallel()

	ps := newTestPushServer(t)
	rec := &applyRecorder{}
	c := newTestChannel(ps, "VIP", rec, nil)

	c.Connect()
	ps.accept()
	c.Close()

	select {
	case <-ps.conns:
		t.Fatal("channel reconnected after Close")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestChannelConnectIdempotent(t *testing.T) {
	t.Parallel()

	ps := newTestPushServer(t)
	rec := &applyRecorder{}
	c := newTestChannel(ps, "VIP", rec, nil)

	c.Connect()
	c.Connect()
	defer c.Close()

	ps.accept()
	select {
	case <-ps.conns:
		t.Fatal("second Connect opened a second connection")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestChannelRequestStatusResendsHandshake(t *testing.T) {
	t.Parallel()

	ps := newTestPushServer(t)
	rec := &applyRecorder{}
	c := newTestChannel(ps, "VIP", rec, nil)

	c.Connect()
	defer c.Close()
	conn := ps.accept()

	c.RequestStatus()

	var msg map[string]string
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "status_request", msg["type"])
}
