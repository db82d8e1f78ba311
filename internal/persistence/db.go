// Package persistence archives each simulated day to SQLite. The archive is
// append-only and is never read back into a running simulation.
package persistence

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/talgya/tradeworld/internal/agents"
	"github.com/talgya/tradeworld/internal/economy"
	"github.com/talgya/tradeworld/internal/engine"
	"github.com/talgya/tradeworld/internal/market"
)

// DB wraps a SQLite connection for the run archive.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "open db")
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "migrate")
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		started_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS price_stats (
		run_id TEXT NOT NULL,
		day INTEGER NOT NULL,
		item TEXT NOT NULL,
		trades INTEGER NOT NULL,
		volume INTEGER NOT NULL,
		min_price INTEGER NOT NULL,
		max_price INTEGER NOT NULL,
		mean_price INTEGER NOT NULL,
		PRIMARY KEY (run_id, item, day)
	);

	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		day INTEGER NOT NULL,
		item TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price INTEGER NOT NULL,
		buyer INTEGER NOT NULL,
		seller INTEGER NOT NULL,
		buy_order INTEGER NOT NULL,
		sell_order INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		day INTEGER NOT NULL,
		category TEXT NOT NULL,
		agent INTEGER NOT NULL,
		description TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS daily_summary (
		run_id TEXT NOT NULL,
		day INTEGER NOT NULL,
		payroll INTEGER NOT NULL,
		shortfalls INTEGER NOT NULL,
		trades INTEGER NOT NULL,
		buy_orders INTEGER NOT NULL,
		sell_orders INTEGER NOT NULL,
		repriced INTEGER NOT NULL,
		total_money INTEGER NOT NULL,
		PRIMARY KEY (run_id, day)
	);

	CREATE INDEX IF NOT EXISTS idx_trades_run_day ON trades(run_id, day);
	CREATE INDEX IF NOT EXISTS idx_events_run_day ON events(run_id, day);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// BeginRun registers a new run and returns its identifier.
func (db *DB) BeginRun(seed int64, started time.Time) (uuid.UUID, error) {
	id := uuid.New()
	_, err := db.conn.Exec(
		"INSERT INTO runs (id, seed, started_at) VALUES (?, ?, ?)",
		id.String(), seed, started.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "insert run")
	}
	return id, nil
}

// SaveDay appends one day's report to the archive in a single transaction.
func (db *DB) SaveDay(run uuid.UUID, r engine.DayReport) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rid := run.String()
	for _, p := range r.Prices {
		_, err := tx.Exec(`INSERT OR REPLACE INTO price_stats
			(run_id, day, item, trades, volume, min_price, max_price, mean_price)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rid, p.Stats.Day, p.Item.Name, p.Stats.Trades, p.Stats.Volume,
			int64(p.Stats.Min), int64(p.Stats.Max), int64(p.Stats.Mean),
		)
		if err != nil {
			return errors.Wrapf(err, "insert price stats for %s", p.Item)
		}
	}

	for _, t := range r.Trades {
		_, err := tx.Exec(`INSERT INTO trades
			(run_id, day, item, quantity, unit_price, buyer, seller, buy_order, sell_order)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rid, t.Day, t.Item.Name, t.Quantity, int64(t.UnitPrice),
			t.Buyer, t.Seller, t.BuyOrder, t.SellOrder,
		)
		if err != nil {
			return errors.Wrap(err, "insert trade")
		}
	}

	for _, e := range r.Events {
		_, err := tx.Exec(
			"INSERT INTO events (run_id, day, category, agent, description) VALUES (?, ?, ?, ?, ?)",
			rid, e.Day, e.Category, e.Agent, e.Description,
		)
		if err != nil {
			return errors.Wrap(err, "insert event")
		}
	}

	_, err = tx.Exec(`INSERT OR REPLACE INTO daily_summary
		(run_id, day, payroll, shortfalls, trades, buy_orders, sell_orders, repriced, total_money)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rid, r.Day, int64(r.PayrollPaid), r.Shortfalls, len(r.Trades),
		r.BuyOrders, r.SellOrders, len(r.Repriced), int64(r.TotalMoney),
	)
	if err != nil {
		return errors.Wrap(err, "insert summary")
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Debug("day archived", "run", rid, "day", r.Day, "trades", len(r.Trades), "events", len(r.Events))
	return nil
}

type priceRow struct {
	Day    uint64 `db:"day"`
	Trades int    `db:"trades"`
	Volume int    `db:"volume"`
	Min    int64  `db:"min_price"`
	Max    int64  `db:"max_price"`
	Mean   int64  `db:"mean_price"`
}

// PriceHistory returns the archived stats of one item, oldest first.
func (db *DB) PriceHistory(run uuid.UUID, item string) ([]market.PriceStats, error) {
	var rows []priceRow
	err := db.conn.Select(&rows, `SELECT day, trades, volume, min_price, max_price, mean_price
		FROM price_stats WHERE run_id = ? AND item = ? ORDER BY day`,
		run.String(), item,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "select price history for %s", item)
	}
	out := make([]market.PriceStats, len(rows))
	for i, r := range rows {
		out[i] = market.PriceStats{
			Day:    r.Day,
			Trades: r.Trades,
			Volume: r.Volume,
			Min:    economy.Money(r.Min),
			Max:    economy.Money(r.Max),
			Mean:   economy.Money(r.Mean),
		}
	}
	return out, nil
}

// Summary is one archived day.
type Summary struct {
	Day        uint64        `db:"day" json:"day"`
	Payroll    economy.Money `db:"payroll" json:"payroll"`
	Shortfalls int           `db:"shortfalls" json:"shortfalls"`
	Trades     int           `db:"trades" json:"trades"`
	BuyOrders  int           `db:"buy_orders" json:"buy_orders"`
	SellOrders int           `db:"sell_orders" json:"sell_orders"`
	Repriced   int           `db:"repriced" json:"repriced"`
	TotalMoney economy.Money `db:"total_money" json:"total_money"`
}

// Summaries returns every archived day of a run, oldest first.
func (db *DB) Summaries(run uuid.UUID) ([]Summary, error) {
	var out []Summary
	err := db.conn.Select(&out, `SELECT day, payroll, shortfalls, trades, buy_orders,
		sell_orders, repriced, total_money FROM daily_summary WHERE run_id = ? ORDER BY day`,
		run.String(),
	)
	return out, errors.Wrap(err, "select summaries")
}

type eventRow struct {
	Day         uint64 `db:"day"`
	Category    string `db:"category"`
	Agent       int64  `db:"agent"`
	Description string `db:"description"`
}

// RecentEvents returns the most recent N events of a run, newest first.
func (db *DB) RecentEvents(run uuid.UUID, limit int) ([]engine.Event, error) {
	var rows []eventRow
	err := db.conn.Select(&rows,
		"SELECT day, category, agent, description FROM events WHERE run_id = ? ORDER BY id DESC LIMIT ?",
		run.String(), limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "select events")
	}
	out := make([]engine.Event, len(rows))
	for i, r := range rows {
		out[i] = engine.Event{Day: r.Day, Category: r.Category, Agent: agents.AgentID(r.Agent), Description: r.Description}
	}
	return out, nil
}
