package store

const Schema = `
CREATE TABLE IF NOT EXISTS metrics (
	account TEXT PRIMARY KEY,
	balance REAL NOT NULL,
	equity REAL NOT NULL,
	margin REAL NOT NULL,
	free_margin REAL NOT NULL,
	margin_level REAL NOT NULL,
	profit REAL NOT NULL,
	deposit REAL NOT NULL,
	total_swap REAL NOT NULL,
	total_profit_loss REAL NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	account TEXT NOT NULL,
	facet TEXT NOT NULL,
	position INTEGER NOT NULL,
	trade_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	entry_price REAL NOT NULL,
	current_buy_price REAL NOT NULL,
	current_sell_price REAL NOT NULL,
	start_time DATETIME NOT NULL,
	end_time DATETIME,
	status TEXT NOT NULL,
	target_type TEXT NOT NULL,
	target_amount REAL NOT NULL,
	lot_size REAL NOT NULL,
	direction TEXT NOT NULL,
	profit_loss REAL NOT NULL,
	margin_used REAL NOT NULL,
	swap REAL NOT NULL,
	commission REAL NOT NULL,
	closing_price REAL,
	PRIMARY KEY (account, facet, trade_id)
);

CREATE INDEX IF NOT EXISTS idx_trades_order ON trades(account, facet, position);

CREATE TABLE IF NOT EXISTS history_stats (
	account TEXT PRIMARY KEY,
	total_trades INTEGER NOT NULL,
	running_trades INTEGER NOT NULL,
	completed_trades INTEGER NOT NULL,
	stopped_trades INTEGER NOT NULL,
	win_rate REAL NOT NULL,
	profitable_trades INTEGER NOT NULL,
	losing_trades INTEGER NOT NULL,
	realized_pl REAL NOT NULL,
	unrealized_pl REAL NOT NULL,
	total_swap_fees REAL NOT NULL
);
`
