package execution

import (
	"context"
	"database/sql"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Shubhamshinde5080/DogeBOT/internal/model"
)

// Journal persists fills and strategy events to SQLite for analysis and
// audit. It is write-mostly; nothing reads it back into strategy state.
type Journal struct {
	mu     sync.Mutex
	db     *sql.DB
	symbol string
	mode   string
}

// NewJournal opens (or creates) a SQLite journal database.
func NewJournal(dbPath, symbol, mode string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS trades (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id    TEXT NOT NULL,
		symbol      TEXT NOT NULL,
		side        TEXT NOT NULL,
		price       REAL NOT NULL,
		qty         REAL NOT NULL,
		quote       REAL NOT NULL,
		mode        TEXT NOT NULL,
		filled_at   DATETIME NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_trades_order ON trades(order_id);
	CREATE INDEX IF NOT EXISTS idx_trades_filled_at ON trades(filled_at);

	CREATE TABLE IF NOT EXISTS events (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		kind         TEXT NOT NULL,
		symbol       TEXT NOT NULL,
		side         TEXT,
		price        REAL,
		qty          REAL,
		pnl          REAL,
		realized_pnl REAL,
		message      TEXT,
		trace_id     TEXT,
		at           DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[journal] opened trade journal at %s", dbPath)
	return &Journal{db: db, symbol: symbol, mode: mode}, nil
}

// DB exposes the handle for liveness checks.
func (j *Journal) DB() *sql.DB { return j.db }

// RecordFill persists a transport fill.
func (j *Journal) RecordFill(f model.Fill) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`INSERT INTO trades (order_id, symbol, side, price, qty, quote, mode, filled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.OrderID,
		j.symbol,
		string(f.Side),
		f.Price,
		f.Quantity,
		f.Price*f.Quantity,
		j.mode,
		f.Time.UTC().Format(time.RFC3339),
	)
	return err
}

// journaled lists the event kinds worth keeping.
var journaled = map[model.EventKind]bool{
	model.EventCycleStart:  true,
	model.EventBuyFill:     true,
	model.EventSellFill:    true,
	model.EventTargetHit:   true,
	model.EventLiquidation: true,
	model.EventDayReset:    true,
	model.EventOrderError:  true,
	model.EventInvariant:   true,
	model.EventPaused:      true,
	model.EventResumed:     true,
}

// Emit implements model.EventSink. Write failures are logged and dropped.
func (j *Journal) Emit(_ context.Context, ev model.Event) {
	if !journaled[ev.Kind] {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`INSERT INTO events (kind, symbol, side, price, qty, pnl, realized_pnl, message, trace_id, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(ev.Kind),
		ev.Symbol,
		string(ev.Side),
		ev.Price,
		ev.Quantity,
		ev.PnL,
		ev.RealizedPnL,
		ev.Message,
		ev.TraceID,
		ev.Time.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		log.Printf("[journal] event write failed: %v", err)
	}
}

// TradeRecord represents a row from the trades table.
type TradeRecord struct {
	ID       int64   `json:"id"`
	OrderID  string  `json:"order_id"`
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Price    float64 `json:"price"`
	Qty      float64 `json:"qty"`
	Quote    float64 `json:"quote"`
	Mode     string  `json:"mode"`
	FilledAt string  `json:"filled_at"`
}

// GetTrades returns the last N trades, newest first.
func (j *Journal) GetTrades(limit int) ([]TradeRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT id, order_id, symbol, side, price, qty, quote, mode, filled_at
		 FROM trades ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(&t.ID, &t.OrderID, &t.Symbol, &t.Side, &t.Price,
			&t.Qty, &t.Quote, &t.Mode, &t.FilledAt); err != nil {
			continue
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// EventRecord represents a row from the events table.
type EventRecord struct {
	ID          int64   `json:"id"`
	Kind        string  `json:"kind"`
	Price       float64 `json:"price"`
	Qty         float64 `json:"qty"`
	PnL         float64 `json:"pnl"`
	RealizedPnL float64 `json:"realized_pnl"`
	Message     string  `json:"message,omitempty"`
	At          string  `json:"at"`
}

// GetEvents returns the last N journaled events, newest first.
func (j *Journal) GetEvents(limit int) ([]EventRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT id, kind, price, qty, pnl, realized_pnl, COALESCE(message, ''), at
		 FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRecord
	for rows.Next() {
		var e EventRecord
		if err := rows.Scan(&e.ID, &e.Kind, &e.Price, &e.Qty, &e.PnL, &e.RealizedPnL, &e.Message, &e.At); err != nil {
			continue
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
