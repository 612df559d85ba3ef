package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"ensemble-trader/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database and applies the schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, timestamp)
	);

	CREATE TABLE IF NOT EXISTS model_versions (
		id INTEGER PRIMARY KEY,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		train_accuracy REAL NOT NULL,
		test_accuracy REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL NOT NULL,
		pnl REAL NOT NULL,
		pnl_percent REAL NOT NULL,
		reason TEXT NOT NULL,
		version_id INTEGER NOT NULL,
		opened_at DATETIME NOT NULL,
		closed_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS accuracy_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		version_id INTEGER NOT NULL,
		model_id TEXT NOT NULL,
		accuracy REAL NOT NULL,
		samples INTEGER NOT NULL,
		timestamp DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS risk_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		capital REAL NOT NULL,
		peak_equity REAL NOT NULL,
		drawdown REAL NOT NULL,
		trading_halted INTEGER NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_candles_symbol_time ON candles(symbol, timestamp);
	CREATE INDEX IF NOT EXISTS idx_trades_version ON trades(version_id);
	CREATE INDEX IF NOT EXISTS idx_accuracy_version ON accuracy_snapshots(version_id, timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveCandles upserts a batch of candles for a symbol.
func (s *SQLiteStore) SaveCandles(ctx context.Context, symbol string, candles []models.Candle) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (symbol, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, symbol, c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			return fmt.Errorf("insert candle: %w", err)
		}
	}
	return tx.Commit()
}

// GetCandles returns candles for a symbol in the range, oldest first.
func (s *SQLiteStore) GetCandles(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC`, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// SaveVersion upserts a model version record.
func (s *SQLiteStore) SaveVersion(ctx context.Context, version models.ModelVersion) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO model_versions (id, status, created_at, train_accuracy, test_accuracy)
		VALUES (?, ?, ?, ?, ?)`,
		version.ID, string(version.Status), version.CreatedAt, version.TrainAccuracy, version.TestAccuracy)
	if err != nil {
		return fmt.Errorf("save version: %w", err)
	}
	return nil
}

// GetVersions returns all version records, oldest first.
func (s *SQLiteStore) GetVersions(ctx context.Context) ([]models.ModelVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, created_at, train_accuracy, test_accuracy
		FROM model_versions ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()

	var versions []models.ModelVersion
	for rows.Next() {
		var v models.ModelVersion
		var status string
		if err := rows.Scan(&v.ID, &status, &v.CreatedAt, &v.TrainAccuracy, &v.TestAccuracy); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		v.Status = models.VersionStatus(status)
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// LogTrade records a closed trade.
func (s *SQLiteStore) LogTrade(ctx context.Context, trade *models.Trade) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (symbol, side, quantity, entry_price, exit_price, pnl, pnl_percent, reason, version_id, opened_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trade.Symbol, string(trade.Side), trade.Quantity, trade.EntryPrice, trade.ExitPrice,
		trade.PnL, trade.PnLPercent, trade.Reason, trade.VersionID, trade.OpenedAt, trade.ClosedAt)
	if err != nil {
		return fmt.Errorf("log trade: %w", err)
	}
	return nil
}

// GetTrades returns trades matching the filter, newest first.
func (s *SQLiteStore) GetTrades(ctx context.Context, filter TradeFilter) ([]models.Trade, error) {
	query := `
		SELECT symbol, side, quantity, entry_price, exit_price, pnl, pnl_percent, reason, version_id, opened_at, closed_at
		FROM trades WHERE 1=1`
	var args []interface{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if filter.VersionID > 0 {
		query += " AND version_id = ?"
		args = append(args, filter.VersionID)
	}
	if !filter.StartDate.IsZero() {
		query += " AND closed_at >= ?"
		args = append(args, filter.StartDate)
	}
	if !filter.EndDate.IsZero() {
		query += " AND closed_at <= ?"
		args = append(args, filter.EndDate)
	}

	query += " ORDER BY closed_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		var t models.Trade
		var side string
		if err := rows.Scan(&t.Symbol, &side, &t.Quantity, &t.EntryPrice, &t.ExitPrice,
			&t.PnL, &t.PnLPercent, &t.Reason, &t.VersionID, &t.OpenedAt, &t.ClosedAt); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Side = models.OrderSide(strings.ToUpper(side))
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// SaveAccuracySnapshot records a rolling accuracy reading.
func (s *SQLiteStore) SaveAccuracySnapshot(ctx context.Context, snap AccuracySnapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accuracy_snapshots (version_id, model_id, accuracy, samples, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		snap.VersionID, snap.ModelID, snap.Accuracy, snap.Samples, snap.Timestamp)
	if err != nil {
		return fmt.Errorf("save accuracy snapshot: %w", err)
	}
	return nil
}

// GetAccuracySnapshots returns the most recent snapshots for a version.
func (s *SQLiteStore) GetAccuracySnapshots(ctx context.Context, versionID int64, limit int) ([]AccuracySnapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT version_id, model_id, accuracy, samples, timestamp
		FROM accuracy_snapshots
		WHERE version_id = ?
		ORDER BY timestamp DESC LIMIT ?`, versionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query accuracy snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []AccuracySnapshot
	for rows.Next() {
		var snap AccuracySnapshot
		if err := rows.Scan(&snap.VersionID, &snap.ModelID, &snap.Accuracy, &snap.Samples, &snap.Timestamp); err != nil {
			return nil, fmt.Errorf("scan accuracy snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// SaveRiskSnapshot records the risk state.
func (s *SQLiteStore) SaveRiskSnapshot(ctx context.Context, snap models.RiskSnapshot) error {
	halted := 0
	if snap.TradingHalted {
		halted = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO risk_snapshots (capital, peak_equity, drawdown, trading_halted, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		snap.Capital, snap.PeakEquity, snap.Drawdown, halted, snap.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save risk snapshot: %w", err)
	}
	return nil
}

// GetLatestRiskSnapshot returns the newest risk snapshot, or nil when none
// has been recorded.
func (s *SQLiteStore) GetLatestRiskSnapshot(ctx context.Context) (*models.RiskSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT capital, peak_equity, drawdown, trading_halted, updated_at
		FROM risk_snapshots ORDER BY id DESC LIMIT 1`)

	var snap models.RiskSnapshot
	var halted int
	if err := row.Scan(&snap.Capital, &snap.PeakEquity, &snap.Drawdown, &halted, &snap.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query risk snapshot: %w", err)
	}
	snap.TradingHalted = halted == 1
	return &snap, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
