package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rustyeddy/tradesync/account"
)

// Push message types emitted by the server.
const (
	PushPriceUpdate     = "price_update"
	PushAccountStatus   = "account_status"
	PushAccountSwitched = "account_switched"
	PushConnEstablished = "connection_established"
	PushPong            = "pong"
)

// PushMessage is one inbound message from the push channel. Raw carries the
// full payload for message types the typed fields don't cover.
type PushMessage struct {
	Type       string           `json:"type"`
	Account    string           `json:"account_type"`
	TradeID    string           `json:"trade_id,omitempty"`
	OldAccount string           `json:"old_account,omitempty"`
	NewAccount string           `json:"new_account,omitempty"`
	Metrics    *account.Metrics `json:"account_metrics,omitempty"`
	Raw        json.RawMessage  `json:"-"`
}

// Stream is one websocket push connection. Reads are single-goroutine by
// convention; writes are serialized internally.
type Stream struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// DialStream opens the push channel at <wsURL>/ws/<clientID>.
func DialStream(ctx context.Context, wsURL, clientID string) (*Stream, error) {
	u := strings.TrimRight(wsURL, "/") + "/ws/" + clientID

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u, http.Header{})
	if err != nil {
		return nil, fmt.Errorf("dial push channel: %w", err)
	}
	return &Stream{conn: conn}, nil
}

// Read blocks for the next push message. The read deadline, if set, bounds
// the wait; a missed deadline surfaces as an error like any other read
// failure.
func (s *Stream) Read() (PushMessage, error) {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return PushMessage{}, fmt.Errorf("read push message: %w", err)
	}

	var msg PushMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return PushMessage{}, fmt.Errorf("decode push message: %w", err)
	}
	msg.Raw = data
	return msg, nil
}

// WriteJSON sends a message to the server. Safe for concurrent use.
func (s *Stream) WriteJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

// SetReadDeadline bounds the next Read.
func (s *Stream) SetReadDeadline(t time.Time) error {
	return s.conn.SetReadDeadline(t)
}

// Close tears the connection down. Any blocked Read returns with an error.
func (s *Stream) Close() error {
	return s.conn.Close()
}
