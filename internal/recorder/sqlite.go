package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"LovelyStaking/internal/model"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists ledger events and fund snapshots to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log *zap.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger *zap.Logger) (*SQLiteRecorder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the API read history while the ledger writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ledger_events (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			kind      TEXT NOT NULL,
			account   TEXT NOT NULL,
			pool_id   INTEGER,
			slot      INTEGER,
			amount    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_ts ON ledger_events(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_events_account ON ledger_events(account)`,

		`CREATE TABLE IF NOT EXISTS fund_snapshots (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp    INTEGER NOT NULL,
			reward_fund  TEXT,
			total_staked TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON fund_snapshots(timestamp)`,

		`CREATE TABLE IF NOT EXISTS pool_snapshots (
			snapshot_id   INTEGER NOT NULL REFERENCES fund_snapshots(id),
			pool_id       INTEGER NOT NULL,
			duration_days INTEGER,
			apy_bps       INTEGER,
			total_staked  TEXT,
			PRIMARY KEY (snapshot_id, pool_id)
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordEvent(evt *model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO ledger_events
		(timestamp, kind, account, pool_id, slot, amount)
		VALUES (?,?,?,?,?,?)`,
		evt.Timestamp.Unix(), string(evt.Kind), evt.Account.Hex(),
		int64(evt.PoolID), int64(evt.Slot), evt.Amount.Dec(),
	)
	return err
}

// RecordSnapshot writes the fund totals and one row per pool in a single transaction.
func (r *SQLiteRecorder) RecordSnapshot(sum *model.Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ts := sum.UpdatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	res, err := tx.Exec(`INSERT INTO fund_snapshots
		(timestamp, reward_fund, total_staked)
		VALUES (?,?,?)`,
		ts.Unix(), sum.RewardFund.Dec(), sum.TotalStaked.Dec(),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	for i := range sum.Pools {
		p := &sum.Pools[i]
		if _, err := tx.Exec(`INSERT INTO pool_snapshots
			(snapshot_id, pool_id, duration_days, apy_bps, total_staked)
			VALUES (?,?,?,?,?)`,
			id, int64(p.ID), int64(p.DurationDays), int64(p.APY), p.TotalStaked.Dec(),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecentEvents(limit int) ([]model.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`SELECT timestamp, kind, account, pool_id, slot, amount
		FROM ledger_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var (
			ts         int64
			kind, acct string
			pool, slot int64
			amount     string
		)
		if err := rows.Scan(&ts, &kind, &acct, &pool, &slot, &amount); err != nil {
			return nil, err
		}
		value, err := model.ParseAmount(amount)
		if err != nil {
			return nil, err
		}
		events = append(events, model.Event{
			Kind:      model.EventKind(kind),
			Account:   common.HexToAddress(acct),
			PoolID:    uint64(pool),
			Slot:      uint64(slot),
			Amount:    value,
			Timestamp: time.Unix(ts, 0).UTC(),
		})
	}
	return events, rows.Err()
}

// SnapshotCount returns the number of fund snapshots recorded.
func (r *SQLiteRecorder) SnapshotCount() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM fund_snapshots`).Scan(&n)
	return n, err
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info("closing sqlite recorder")
	return r.db.Close()
}
