// Package ledger keeps a SQLite history of transfer outcomes. Every upload,
// download and folder creation the orchestrator performs becomes one row,
// grouped by batch.
package ledger

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/tonimelisma/gdrive-go/internal/transfer"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	sqlInsert = `INSERT INTO transfers
		(batch_id, op, local_path, remote_path, remote_id, status, error, bytes, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqlSelectColumns = `SELECT batch_id, op, local_path, remote_path, remote_id, status, error, bytes, at
		FROM transfers`

	sqlRecent = sqlSelectColumns + ` ORDER BY at DESC, id DESC LIMIT ?`
	sqlBatch  = sqlSelectColumns + ` WHERE batch_id = ? ORDER BY id`
	sqlPrune  = `DELETE FROM transfers WHERE at < ?`
)

// Ledger records transfers in a SQLite database. It implements
// transfer.Recorder and is safe for concurrent use.
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the history database at dbPath and
// applies pending migrations.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil { //nolint:mnd // owner-only dir perms
		return nil, fmt.Errorf("ledger: creating directory for %s: %w", dbPath, err)
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		dbPath,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: opening database %s: %w", dbPath, err)
	}

	// Single writer; batch workers record concurrently.
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("transfer ledger opened", slog.String("db_path", dbPath))

	return &Ledger{db: db, logger: logger}, nil
}

// migrate applies all pending schema migrations.
func migrate(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("ledger: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, sub)
	if err != nil {
		return fmt.Errorf("ledger: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("ledger: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Debug("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

// Record stores rec.
func (l *Ledger) Record(ctx context.Context, rec transfer.Record) error {
	at := rec.At
	if at.IsZero() {
		at = time.Now()
	}

	_, err := l.db.ExecContext(ctx, sqlInsert,
		rec.BatchID, string(rec.Op), rec.LocalPath, rec.RemotePath, rec.RemoteID,
		string(rec.Status), rec.Err, rec.Bytes, at.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("ledger: recording %s: %w", rec.Op, err)
	}

	return nil
}

// Recent returns up to limit records, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]transfer.Record, error) {
	return l.query(ctx, sqlRecent, limit)
}

// Batch returns the records of one batch in insertion order.
func (l *Ledger) Batch(ctx context.Context, batchID string) ([]transfer.Record, error) {
	return l.query(ctx, sqlBatch, batchID)
}

// Prune deletes records older than cutoff and returns how many were removed.
func (l *Ledger) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, sqlPrune, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("ledger: pruning: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("ledger: pruning: %w", err)
	}

	return n, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) query(ctx context.Context, q string, args ...any) ([]transfer.Record, error) {
	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: querying: %w", err)
	}
	defer rows.Close()

	var out []transfer.Record

	for rows.Next() {
		var (
			rec        transfer.Record
			op, status string
			at         int64
		)

		if err := rows.Scan(&rec.BatchID, &op, &rec.LocalPath, &rec.RemotePath, &rec.RemoteID,
			&status, &rec.Err, &rec.Bytes, &at); err != nil {
			return nil, fmt.Errorf("ledger: scanning row: %w", err)
		}

		rec.Op = transfer.Op(op)
		rec.Status = transfer.Status(status)
		rec.At = time.Unix(0, at)
		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterating rows: %w", err)
	}

	return out, nil
}
