// Package history keeps the time series the dashboard charts: daily staker
// counts, locked tokens and network events.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/nucypher/monitor/internal/crawler"
)

const dayLayout = "2006-01-02"

// Point is the value of a series for one UTC day, keyed YYYY-MM-DD.
type Point[V any] struct {
	Day   string
	Value V
}

// Event is one staking network event observed on chain.
type Event struct {
	Time          time.Time `json:"time"`
	TxHash        string    `json:"txhash"`
	Name          string    `json:"event_name"`
	StakerAddress string    `json:"staker_address"`
	BlockNumber   uint64    `json:"block_number"`
	Period        int64     `json:"period"`
	Value         string    `json:"value"`
}

type Store struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open opens (or creates) the SQLite database at path and ensures the schema exists.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("history: ensure dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: schema: %w", err)
	}
	return &Store{
		db:     db,
		logger: logger.Named("history"),
		now:    time.Now,
	}, nil
}

func initSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS network_state (
    recorded_at INTEGER NOT NULL,
    num_stakers INTEGER NOT NULL,
    global_locked_tokens TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS network_state_recorded_at ON network_state (recorded_at);
CREATE TABLE IF NOT EXISTS events (
    recorded_at INTEGER NOT NULL,
    txhash TEXT NOT NULL,
    event_name TEXT NOT NULL,
    staker_address TEXT,
    block_number INTEGER,
    period INTEGER,
    value TEXT
);
CREATE INDEX IF NOT EXISTS events_recorded_at ON events (recorded_at);`
	_, err := db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordNetworkState stores one sample of the staker count and locked tokens.
func (s *Store) RecordNetworkState(ctx context.Context, at time.Time, numStakers int64, lockedNUnits *big.Int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO network_state (recorded_at, num_stakers, global_locked_tokens) VALUES (?, ?, ?)`,
		at.UTC().Unix(), numStakers, lockedNUnits.String())
	if err != nil {
		return fmt.Errorf("history: record network state: %w", err)
	}
	return nil
}

// RecordSnapshot stores the network state of snap. Errors are logged.
func (s *Store) RecordSnapshot(snap *crawler.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	at := snap.FetchedAt
	if at.IsZero() {
		at = s.now()
	}
	if err := s.RecordNetworkState(ctx, at, snap.Activity.Total(), snap.GlobalLockedTokens.Int()); err != nil {
		s.logger.Error("Failed to record network state", zap.Error(err))
	}
}

func (s *Store) RecordEvent(ctx context.Context, e Event) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO events (recorded_at, txhash, event_name, staker_address, block_number, period, value)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Time.UTC().Unix(), e.TxHash, e.Name, e.StakerAddress, e.BlockNumber, e.Period, e.Value)
	if err != nil {
		return fmt.Errorf("history: record event: %w", err)
	}
	return nil
}

// dayWindow is [midnight today - days, midnight today) in UTC.
func (s *Store) dayWindow(days int) (time.Time, time.Time) {
	now := s.now().UTC()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return end.AddDate(0, 0, -days), end
}

type stateRow struct {
	at         time.Time
	numStakers int64
	locked     string
}

// lastPerDay returns the last network_state sample of each UTC day in the window, oldest day first.
func (s *Store) lastPerDay(ctx context.Context, days int) ([]string, map[string]stateRow, error) {
	start, end := s.dayWindow(days)
	rows, err := s.db.QueryContext(ctx, `
SELECT recorded_at, num_stakers, global_locked_tokens FROM network_state
WHERE recorded_at >= ? AND recorded_at < ?
ORDER BY recorded_at`, start.Unix(), end.Unix())
	if err != nil {
		return nil, nil, fmt.Errorf("history: query network state: %w", err)
	}
	defer rows.Close()

	var order []string
	latest := make(map[string]stateRow)
	for rows.Next() {
		var unix int64
		var row stateRow
		if err := rows.Scan(&unix, &row.numStakers, &row.locked); err != nil {
			return nil, nil, fmt.Errorf("history: scan network state: %w", err)
		}
		row.at = time.Unix(unix, 0).UTC()
		day := row.at.Format(dayLayout)
		if _, seen := latest[day]; !seen {
			order = append(order, day)
		}
		latest[day] = row
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("history: read network state: %w", err)
	}
	return order, latest, nil
}

// NumStakersOverRange returns the staker count of each of the last days full UTC days.
func (s *Store) NumStakersOverRange(ctx context.Context, days int) ([]Point[int64], error) {
	order, latest, err := s.lastPerDay(ctx, days)
	if err != nil {
		return nil, err
	}
	out := make([]Point[int64], 0, len(order))
	for _, day := range order {
		out = append(out, Point[int64]{Day: day, Value: latest[day].numStakers})
	}
	return out, nil
}

// LockedTokensOverRange returns the NuNits locked on each of the last days full UTC days.
func (s *Store) LockedTokensOverRange(ctx context.Context, days int) ([]Point[*big.Int], error) {
	order, latest, err := s.lastPerDay(ctx, days)
	if err != nil {
		return nil, err
	}
	out := make([]Point[*big.Int], 0, len(order))
	for _, day := range order {
		v, ok := new(big.Int).SetString(latest[day].locked, 10)
		if !ok {
			return nil, fmt.Errorf("history: invalid locked tokens %q on %s", latest[day].locked, day)
		}
		out = append(out, Point[*big.Int]{Day: day, Value: v})
	}
	return out, nil
}

// Events returns events recorded within the last days, newest first.
func (s *Store) Events(ctx context.Context, days int) ([]Event, error) {
	now := s.now().UTC()
	since := now.Add(-time.Duration(days) * 24 * time.Hour)
	rows, err := s.db.QueryContext(ctx, `
SELECT recorded_at, txhash, event_name, COALESCE(staker_address, ''), COALESCE(block_number, 0), COALESCE(period, 0), COALESCE(value, '')
FROM events
WHERE recorded_at >= ? AND recorded_at <= ?
ORDER BY recorded_at DESC, rowid DESC`, since.Unix(), now.Unix())
	if err != nil {
		return nil, fmt.Errorf("history: query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var unix int64
		var e Event
		if err := rows.Scan(&unix, &e.TxHash, &e.Name, &e.StakerAddress, &e.BlockNumber, &e.Period, &e.Value); err != nil {
			return nil, fmt.Errorf("history: scan event: %w", err)
		}
		e.Time = time.Unix(unix, 0).UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: read events: %w", err)
	}
	return events, nil
}

// Prune deletes samples and events recorded before cutoff and returns the number of rows removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	for _, table := range []string{"network_state", "events"} {
		res, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE recorded_at < ?", cutoff.UTC().Unix())
		if err != nil {
			return removed, fmt.Errorf("history: prune %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err == nil {
			removed += n
		}
	}
	return removed, nil
}

// RunRetention prunes rows older than retention now and then every interval until ctx is done.
func (s *Store) RunRetention(ctx context.Context, interval, retention time.Duration) {
	prune := func() {
		removed, err := s.Prune(ctx, s.now().Add(-retention))
		if err != nil {
			s.logger.Error("Failed to prune history", zap.Error(err))
			return
		}
		s.logger.Info("Pruned history", zap.Int64("rows", removed), zap.Duration("retention", retention))
	}
	prune()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
