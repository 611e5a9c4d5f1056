package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists historical data to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.Logger
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

	// WAL so dashboards can read while batches are written.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logger.With(zap.String("component", "recorder"))}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.logger.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS resolve_batches (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			batch_id    TEXT NOT NULL,
			kind        TEXT,
			requested   INTEGER,
			hits        INTEGER,
			misses      INTEGER,
			failures    INTEGER,
			elapsed_ms  INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_resolve_ts ON resolve_batches(timestamp)`,

		`CREATE TABLE IF NOT EXISTS fetch_failures (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp  INTEGER NOT NULL,
			batch_id   TEXT,
			symbol     TEXT NOT NULL,
			kind       TEXT,
			message    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_failures_ts ON fetch_failures(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_failures_symbol ON fetch_failures(symbol)`,

		`CREATE TABLE IF NOT EXISTS options_reports (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp    INTEGER NOT NULL,
			symbol       TEXT NOT NULL,
			expiration   INTEGER,
			spot         REAL,
			put_call_oi  REAL,
			put_call_vol REAL,
			max_pain     REAL,
			atm_iv       REAL,
			skew         REAL,
			term_shape   TEXT,
			unusual      INTEGER,
			issues       INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_options_ts ON options_reports(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func stamp(t time.Time) int64 {
	if t.IsZero() {
		return time.Now().Unix()
	}
	return t.Unix()
}

func (r *SQLiteRecorder) RecordResolve(evt *ResolveEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO resolve_batches
		(timestamp, batch_id, kind, requested, hits, misses, failures, elapsed_ms)
		VALUES (?,?,?,?,?,?,?,?)`,
		stamp(evt.At), evt.BatchID, evt.Kind, evt.Requested,
		evt.Hits, evt.Misses, evt.Failures, evt.Elapsed.Milliseconds(),
	)
	return err
}

func (r *SQLiteRecorder) RecordFetchFailure(evt *FetchFailure) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO fetch_failures
		(timestamp, batch_id, symbol, kind, message)
		VALUES (?,?,?,?,?)`,
		stamp(evt.At), evt.BatchID, evt.Symbol, evt.Kind, evt.Message,
	)
	return err
}

func (r *SQLiteRecorder) RecordOptions(evt *OptionsEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO options_reports
		(timestamp, symbol, expiration, spot, put_call_oi, put_call_vol,
		 max_pain, atm_iv, skew, term_shape, unusual, issues)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		stamp(evt.At), evt.Symbol, evt.Expiration.Unix(), evt.Spot,
		evt.PutCallOI, evt.PutCallVol, evt.MaxPain, evt.ATMIV, evt.Skew,
		evt.TermShape, evt.Unusual, evt.Issues,
	)
	return err
}

func (r *SQLiteRecorder) FailureCounts(since time.Time) (map[string]int, error) {
	rows, err := r.db.Query(`SELECT symbol, COUNT(*) FROM fetch_failures
		WHERE timestamp >= ? GROUP BY symbol`, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var symbol string
		var n int
		if err := rows.Scan(&symbol, &n); err != nil {
			return nil, fmt.Errorf("scan failures: %w", err)
		}
		counts[symbol] = n
	}
	return counts, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info("closing sqlite recorder")
	return r.db.Close()
}
