// Package store provides SQLite-backed persistence for fetched bar ranges
// and the execution-state journal.
package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	apperrors "stock-trader/internal/errors"
	"stock-trader/internal/marketdata"
	"stock-trader/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS bars (
	symbol     TEXT NOT NULL,
	day        TEXT NOT NULL,
	open       REAL,
	high       REAL,
	low        REAL,
	close      REAL,
	volume     INTEGER,
	no_trading INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (symbol, day)
);

CREATE TABLE IF NOT EXISTS execution_states (
	action_id   TEXT PRIMARY KEY,
	status      TEXT NOT NULL,
	fill_price  REAL,
	reported_at DATETIME NOT NULL
);
`

// Store persists bar ranges exactly as the cache resolves them, including
// explicit no-trading markers, so a warm-up reproduces the same slot state
// the original fetch produced.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewStore opens (or creates) the SQLite database at path.
func NewStore(path string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, apperrors.Wrap(err, "opening database")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, "initializing schema")
	}
	return &Store{
		db:  db,
		log: log.With().Str("component", "store").Logger(),
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveBarRange persists one row per day in [start, end]; days without a bar
// are written as no-trading markers. Rows are upserted so re-saving a range
// is idempotent.
func (s *Store) SaveBarRange(ctx context.Context, symbol models.Symbol, bars []models.DailyBar, start, end time.Time) error {
	byDay := make(map[string]models.DailyBar, len(bars))
	for _, bar := range bars {
		byDay[models.Day(bar.Date).Format("2006-01-02")] = bar
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(err, "beginning transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bars (symbol, day, open, high, low, close, volume, no_trading)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, day) DO UPDATE SET
			open = excluded.open, high = excluded.high, low = excluded.low,
			close = excluded.close, volume = excluded.volume, no_trading = excluded.no_trading`)
	if err != nil {
		return apperrors.Wrap(err, "preparing insert")
	}
	defer stmt.Close()

	for day := models.Day(start); !day.After(models.Day(end)); day = day.AddDate(0, 0, 1) {
		key := day.Format("2006-01-02")
		if bar, ok := byDay[key]; ok {
			_, err = stmt.ExecContext(ctx, symbol.String(), key, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume, 0)
		} else {
			_, err = stmt.ExecContext(ctx, symbol.String(), key, nil, nil, nil, nil, nil, 1)
		}
		if err != nil {
			return apperrors.Wrapf(err, "saving bar %s %s", symbol, key)
		}
	}
	return tx.Commit()
}

// LoadBarRange loads the persisted bars for [start, end]. The complete flag
// mirrors the cache's all-or-nothing contract: it is true only when every
// day in the range has a row (bar or no-trading marker).
func (s *Store) LoadBarRange(ctx context.Context, symbol models.Symbol, start, end time.Time) ([]models.DailyBar, bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT day, open, high, low, close, volume, no_trading
		FROM bars WHERE symbol = ? AND day >= ? AND day <= ?
		ORDER BY day`,
		symbol.String(), models.Day(start).Format("2006-01-02"), models.Day(end).Format("2006-01-02"))
	if err != nil {
		return nil, false, apperrors.Wrapf(err, "loading bars for %s", symbol)
	}
	defer rows.Close()

	var bars []models.DailyBar
	resolved := 0
	for rows.Next() {
		var (
			day       string
			open      sql.NullFloat64
			high      sql.NullFloat64
			low       sql.NullFloat64
			closing   sql.NullFloat64
			volume    sql.NullInt64
			noTrading int
		)
		if err := rows.Scan(&day, &open, &high, &low, &closing, &volume, &noTrading); err != nil {
			return nil, false, apperrors.Wrap(err, "scanning bar row")
		}
		resolved++
		if noTrading == 1 {
			continue
		}
		date, err := time.Parse("2006-01-02", day)
		if err != nil {
			return nil, false, apperrors.Wrapf(err, "parsing stored day %q", day)
		}
		bars = append(bars, models.DailyBar{
			Date:   date,
			Open:   open.Float64,
			High:   high.Float64,
			Low:    low.Float64,
			Close:  closing.Float64,
			Volume: volume.Int64,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, false, apperrors.Wrap(err, "reading bar rows")
	}

	expected := int(models.Day(end).Sub(models.Day(start)).Hours()/24) + 1
	return bars, resolved == expected, nil
}

// WarmCache loads a persisted range into the cache. It reports whether the
// range was complete; a partial range is skipped so the cache never sees
// unresolved days as no-trading markers.
func (s *Store) WarmCache(ctx context.Context, cache *marketdata.Cache, symbol models.Symbol, start, end time.Time) (bool, error) {
	bars, complete, err := s.LoadBarRange(ctx, symbol, start, end)
	if err != nil {
		return false, err
	}
	if !complete {
		return false, nil
	}
	cache.PutRange(symbol, bars, start, end)
	s.log.Debug().
		Str("symbol", symbol.String()).
		Int("bars", len(bars)).
		Msg("cache warmed from store")
	return true, nil
}

// ReportExecutionState journals a terminal action state. Implements
// backtest.ActionRecorder; the first report for an action wins.
func (s *Store) ReportExecutionState(actionID string, state models.ExecutionState) {
	var fillPrice interface{}
	if state.Status == models.ExecutionFilled {
		fillPrice = state.FillPrice
	}
	_, err := s.db.Exec(`
		INSERT INTO execution_states (action_id, status, fill_price, reported_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(action_id) DO NOTHING`,
		actionID, string(state.Status), fillPrice, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		s.log.Error().Err(err).Str("action_id", actionID).Msg("journaling execution state failed")
	}
}

// ExecutionState reads a journaled action state.
func (s *Store) ExecutionState(ctx context.Context, actionID string) (models.ExecutionState, error) {
	var (
		status    string
		fillPrice sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT status, fill_price FROM execution_states WHERE action_id = ?`, actionID).
		Scan(&status, &fillPrice)
	if err == sql.ErrNoRows {
		return models.ExecutionState{}, apperrors.ErrDataNotFound
	}
	if err != nil {
		return models.ExecutionState{}, apperrors.Wrap(err, "reading execution state")
	}
	return models.ExecutionState{
		Status:    models.ExecutionStatus(status),
		FillPrice: fillPrice.Float64,
	}, nil
}
