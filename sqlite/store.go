// Package sqlite stores ledger entries in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/etnz/costbasis"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS operations (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	holder      TEXT NOT NULL,
	instrument  TEXT NOT NULL,
	kind        TEXT NOT NULL,
	date        TEXT NOT NULL,
	payload     TEXT NOT NULL,
	recorded_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_operations_key ON operations(holder, instrument);

CREATE TABLE IF NOT EXISTS lots (
	id           TEXT PRIMARY KEY,
	holder       TEXT NOT NULL,
	instrument   TEXT NOT NULL,
	seq          INTEGER NOT NULL,
	acquired_on  TEXT NOT NULL,
	settles_on   TEXT NOT NULL,
	remaining    TEXT NOT NULL,
	cost         TEXT NOT NULL,
	payload      TEXT NOT NULL,
	operation_id INTEGER NOT NULL REFERENCES operations(id)
);
CREATE INDEX IF NOT EXISTS idx_lots_key ON lots(holder, instrument);

CREATE TABLE IF NOT EXISTS sells (
	operation_id INTEGER PRIMARY KEY REFERENCES operations(id),
	holder       TEXT NOT NULL,
	instrument   TEXT NOT NULL,
	realized_pl  TEXT NOT NULL,
	payload      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS adjustments (
	operation_id INTEGER PRIMARY KEY REFERENCES operations(id),
	holder       TEXT NOT NULL,
	instrument   TEXT NOT NULL,
	payload      TEXT NOT NULL
);
`

// Open opens or creates the database at path with the pure Go driver.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	// WAL lets readers run while a key commits.
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Store is a costbasis.Store over a SQLite database.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

// New creates the schema if needed and returns a store using db.
func New(ctx context.Context, db *sql.DB, log zerolog.Logger) (*Store, error) {
	s := &Store{
		db:  db,
		log: log.With().Str("repo", "costbasis").Logger(),
		now: time.Now,
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error { return s.db.Close() }

// Commit records e and the lots it touched in a single transaction.
func (s *Store) Commit(ctx context.Context, e costbasis.Entry) error {
	opDate, payload, err := operationOf(e)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO operations (holder, instrument, kind, date, payload, recorded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.Key.Holder, e.Key.Instrument, string(e.Kind), opDate, payload, s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert operation: %w", err)
	}
	opID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get operation id: %w", err)
	}

	for _, lot := range e.Lots {
		data, err := json.Marshal(lot)
		if err != nil {
			return fmt.Errorf("failed to marshal lot %s: %w", lot.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO lots (id, holder, instrument, seq, acquired_on, settles_on, remaining, cost, payload, operation_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				remaining = excluded.remaining,
				cost = excluded.cost,
				payload = excluded.payload,
				operation_id = excluded.operation_id`,
			lot.ID, lot.Holder, lot.Instrument, lot.Seq, lot.AcquiredOn.String(), lot.SettlesOn.String(),
			lot.RemainingQuantity.String(), lot.Cost.Decimal().String(), string(data), opID)
		if err != nil {
			return fmt.Errorf("failed to upsert lot %s: %w", lot.ID, err)
		}
	}

	if e.Sell != nil {
		data, err := json.Marshal(e.Sell)
		if err != nil {
			return fmt.Errorf("failed to marshal sell: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sells (operation_id, holder, instrument, realized_pl, payload) VALUES (?, ?, ?, ?, ?)`,
			opID, e.Key.Holder, e.Key.Instrument, e.Sell.RealizedPL.Decimal().String(), string(data))
		if err != nil {
			return fmt.Errorf("failed to insert sell: %w", err)
		}
	}

	if e.Adjustment != nil {
		data, err := json.Marshal(e.Adjustment)
		if err != nil {
			return fmt.Errorf("failed to marshal adjustment: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO adjustments (operation_id, holder, instrument, payload) VALUES (?, ?, ?, ?)`,
			opID, e.Key.Holder, e.Key.Instrument, string(data))
		if err != nil {
			return fmt.Errorf("failed to insert adjustment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug().
		Int64("operation", opID).
		Str("key", e.Key.String()).
		Str("kind", string(e.Kind)).
		Int("lots", len(e.Lots)).
		Msg("entry committed")
	return nil
}

// operationOf returns the date and JSON payload of the operation row.
func operationOf(e costbasis.Entry) (string, string, error) {
	var v any
	var d string
	switch {
	case e.Operation != nil:
		v, d = e.Operation, e.Operation.Date.String()
	case e.Action != nil:
		v, d = e.Action, e.Action.Date.String()
	default:
		return "", "", fmt.Errorf("%s entry of %s has no operation", e.Kind, e.Key)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal operation: %w", err)
	}
	return d, string(data), nil
}

// Load returns one state per key, keys in order of first operation.
func (s *Store) Load(ctx context.Context) ([]costbasis.State, error) {
	var states []costbasis.State
	index := make(map[costbasis.Key]int)
	state := func(holder, instrument string) *costbasis.State {
		k := costbasis.Key{Holder: holder, Instrument: instrument}
		i, ok := index[k]
		if !ok {
			i = len(states)
			index[k] = i
			states = append(states, costbasis.State{Key: k})
		}
		return &states[i]
	}

	rows, err := s.db.QueryContext(ctx, `SELECT holder, instrument FROM operations GROUP BY holder, instrument ORDER BY MIN(id)`)
	if err != nil {
		return nil, fmt.Errorf("failed to query keys: %w", err)
	}
	err = scanAll(rows, func(holder, instrument, _ string) error {
		state(holder, instrument)
		return nil
	}, 2)
	if err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT holder, instrument, payload FROM lots ORDER BY holder, instrument, seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query lots: %w", err)
	}
	err = scanAll(rows, func(holder, instrument, payload string) error {
		var lot costbasis.CostLot
		if err := json.Unmarshal([]byte(payload), &lot); err != nil {
			return fmt.Errorf("failed to decode lot: %w", err)
		}
		st := state(holder, instrument)
		st.Lots = append(st.Lots, lot)
		return nil
	}, 3)
	if err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT holder, instrument, payload FROM sells ORDER BY operation_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sells: %w", err)
	}
	err = scanAll(rows, func(holder, instrument, payload string) error {
		var sell costbasis.SellResult
		if err := json.Unmarshal([]byte(payload), &sell); err != nil {
			return fmt.Errorf("failed to decode sell: %w", err)
		}
		st := state(holder, instrument)
		st.Sells = append(st.Sells, sell)
		return nil
	}, 3)
	if err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT holder, instrument, payload FROM adjustments ORDER BY operation_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query adjustments: %w", err)
	}
	err = scanAll(rows, func(holder, instrument, payload string) error {
		var adj costbasis.Adjustment
		if err := json.Unmarshal([]byte(payload), &adj); err != nil {
			return fmt.Errorf("failed to decode adjustment: %w", err)
		}
		st := state(holder, instrument)
		st.Adjustments = append(st.Adjustments, adj)
		return nil
	}, 3)
	if err != nil {
		return nil, err
	}

	s.log.Debug().Int("keys", len(states)).Msg("states loaded")
	return states, nil
}

// scanAll scans rows of n (2 or 3) text columns and closes them.
func scanAll(rows *sql.Rows, fn func(a, b, c string) error, n int) error {
	defer rows.Close()
	for rows.Next() {
		var a, b, c string
		dest := []any{&a, &b, &c}[:n]
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}
		if err := fn(a, b, c); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Operation is a recorded operation row.
type Operation struct {
	ID         int64
	Kind       costbasis.EntryKind
	Date       string
	Trade      *costbasis.TradeOperation  // buys and sells
	Action     *costbasis.CorporateAction // corporate actions
	RecordedAt time.Time
}

// Operations returns the operations of key in commit order.
func (s *Store) Operations(ctx context.Context, key costbasis.Key) ([]Operation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, date, payload, recorded_at
		FROM operations
		WHERE holder = ? AND instrument = ?
		ORDER BY id ASC`, key.Holder, key.Instrument)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer rows.Close()

	var ops []Operation
	for rows.Next() {
		var op Operation
		var kind, payload, recordedAt string
		if err := rows.Scan(&op.ID, &kind, &op.Date, &payload, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		op.Kind = costbasis.EntryKind(kind)
		if op.RecordedAt, err = time.Parse(time.RFC3339, recordedAt); err != nil {
			return nil, fmt.Errorf("failed to parse recorded_at of operation %d: %w", op.ID, err)
		}
		switch op.Kind {
		case costbasis.EntryAction:
			op.Action = new(costbasis.CorporateAction)
			err = json.Unmarshal([]byte(payload), op.Action)
		default:
			op.Trade = new(costbasis.TradeOperation)
			err = json.Unmarshal([]byte(payload), op.Trade)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode operation %d: %w", op.ID, err)
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// Adjustments returns the corporate action adjustments of key in commit order.
func (s *Store) Adjustments(ctx context.Context, key costbasis.Key) ([]costbasis.Adjustment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM adjustments
		WHERE holder = ? AND instrument = ?
		ORDER BY operation_id ASC`, key.Holder, key.Instrument)
	if err != nil {
		return nil, fmt.Errorf("failed to query adjustments: %w", err)
	}
	defer rows.Close()

	var out []costbasis.Adjustment
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan adjustment: %w", err)
		}
		var adj costbasis.Adjustment
		if err := json.Unmarshal([]byte(payload), &adj); err != nil {
			return nil, fmt.Errorf("failed to decode adjustment: %w", err)
		}
		out = append(out, adj)
	}
	return out, rows.Err()
}
