package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rustyeddy/tradesync/account"
)

// Client talks to the trading server's REST API. One client serves all
// accounts; the account of interest is passed per call.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a REST client for the given server base URL. token may be
// empty; the server treats all endpoints as public then.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SwitchResult is the server's response to a switch command.
type SwitchResult struct {
	Status     string           `json:"status"`
	Message    string           `json:"message"`
	OldAccount string           `json:"old_account"`
	NewAccount string           `json:"new_account"`
	Metrics    *account.Metrics `json:"account_metrics,omitempty"`
}

// AccountInfo is one entry of the accounts listing.
type AccountInfo struct {
	Balance      float64 `json:"balance"`
	Equity       float64 `json:"equity"`
	ActiveTrades int     `json:"active_trades"`
	Margin       float64 `json:"margin"`
	FreeMargin   float64 `json:"free_margin"`
}

// AccountList is the response of the accounts listing endpoint.
type AccountList struct {
	Accounts       map[string]AccountInfo `json:"accounts"`
	CurrentAccount string                 `json:"current_account"`
}

// tradeSummaryResponse is the wire shape of /api/summary/trades.
type tradeSummaryResponse struct {
	Stats     account.TradeStats     `json:"trades_summary"`
	Financial account.FinancialStats `json:"financial_summary"`
	AllTrades []account.Trade        `json:"all_trades"`
}

// FetchMetrics returns the margin state for one account.
func (c *Client) FetchMetrics(ctx context.Context, acct string) (account.Metrics, error) {
	var m account.Metrics
	if err := c.get(ctx, "/api/account-metrics", acct, &m); err != nil {
		return account.Metrics{}, fmt.Errorf("fetch metrics %s: %w", acct, err)
	}
	return m, nil
}

// FetchActiveTrades returns the open trades for one account in server order.
func (c *Client) FetchActiveTrades(ctx context.Context, acct string) ([]account.Trade, error) {
	var trades []account.Trade
	if err := c.get(ctx, "/api/trades/active", acct, &trades); err != nil {
		return nil, fmt.Errorf("fetch active trades %s: %w", acct, err)
	}
	return trades, nil
}

// FetchHistory returns the trade summary for one account. The server's
// all_trades list mixes open and closed trades; only closed/stopped trades
// belong to the history facet, most recently closed first.
func (c *Client) FetchHistory(ctx context.Context, acct string) (account.HistorySummary, error) {
	var resp tradeSummaryResponse
	if err := c.get(ctx, "/api/summary/trades", acct, &resp); err != nil {
		return account.HistorySummary{}, fmt.Errorf("fetch history %s: %w", acct, err)
	}

	closed := make([]account.Trade, 0, len(resp.AllTrades))
	for _, t := range resp.AllTrades {
		if t.Closed() {
			closed = append(closed, t)
		}
	}

	return account.HistorySummary{
		Stats:     resp.Stats,
		Financial: resp.Financial,
		Trades:    closed,
	}, nil
}

// SwitchAccount asks the server to make acct the current account.
func (c *Client) SwitchAccount(ctx context.Context, acct string) (SwitchResult, error) {
	body, err := json.Marshal(map[string]string{"account_type": acct})
	if err != nil {
		return SwitchResult{}, fmt.Errorf("marshal switch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/switch-account", bytes.NewReader(body))
	if err != nil {
		return SwitchResult{}, fmt.Errorf("create switch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	var res SwitchResult
	if err := c.do(req, &res); err != nil {
		return SwitchResult{}, fmt.Errorf("switch account %s: %w", acct, err)
	}
	return res, nil
}

// ListAccounts enumerates the server's accounts and its current account.
func (c *Client) ListAccounts(ctx context.Context) (AccountList, error) {
	var list AccountList
	if err := c.get(ctx, "/api/accounts/list", "", &list); err != nil {
		return AccountList{}, fmt.Errorf("list accounts: %w", err)
	}
	return list, nil
}

func (c *Client) get(ctx context.Context, path, acct string, out any) error {
	apiURL := c.baseURL + path
	if acct != "" {
		params := url.Values{}
		params.Set("account", acct)
		apiURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.authorize(req)

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
