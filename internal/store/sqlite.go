package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/mars-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	record     TEXT NOT NULL,
	report     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_snapshots_created_at ON snapshots(created_at);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, rec model.Record, report *model.Report) (*model.Snapshot, error) {
	recJSON, reportJSON, err := encodeSnapshot(rec, report)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite")
	}

	snap := &model.Snapshot{
		ID:        uuid.New().String(),
		Record:    rec,
		Report:    report,
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, record, report, created_at) VALUES (?, ?, ?, ?)`,
		snap.ID, string(recJSON), string(reportJSON), snap.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert snapshot")
	}
	return snap, nil
}

// ImportSnapshots inserts snaps in one transaction, keeping their ids and
// timestamps. Snapshots whose id already exists are skipped.
func (s *SQLiteStore) ImportSnapshots(ctx context.Context, snaps []model.Snapshot) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import begin")
	}
	defer tx.Rollback() //nolint:errcheck

	n := 0
	for _, snap := range snaps {
		recJSON, reportJSON, err := encodeSnapshot(snap.Record, snap.Report)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: import")
		}
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO snapshots (id, record, report, created_at) VALUES (?, ?, ?, ?)`,
			snap.ID, string(recJSON), string(reportJSON), snap.CreatedAt.UTC(),
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: import snapshot %s", snap.ID)
		}
		if affected, _ := res.RowsAffected(); affected > 0 {
			n++
		}
	}
	return n, eris.Wrap(tx.Commit(), "sqlite: import commit")
}

func (s *SQLiteStore) GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, record, report, created_at FROM snapshots WHERE id = ?`, id)
	snap, err := scanSnapshot(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get snapshot %s", id)
	}
	return snap, nil
}

func (s *SQLiteStore) LatestSnapshot(ctx context.Context) (*model.Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, record, report, created_at FROM snapshots ORDER BY created_at DESC, rowid DESC LIMIT 1`)
	snap, err := scanSnapshot(row)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest snapshot")
	}
	return snap, nil
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context, filter SnapshotFilter) ([]model.Snapshot, error) {
	query := `SELECT id, record, report, created_at FROM snapshots WHERE 1=1`
	var args []any

	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, filter.limit())

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list snapshots")
	}
	defer rows.Close()

	var snaps []model.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: list snapshots")
		}
		snaps = append(snaps, *snap)
	}
	return snaps, eris.Wrap(rows.Err(), "sqlite: list snapshots iterate")
}

func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete old snapshots")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scannable) (*model.Snapshot, error) {
	var snap model.Snapshot
	var recJSON string
	var reportJSON sql.NullString

	err := row.Scan(&snap.ID, &recJSON, &reportJSON, &snap.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan snapshot")
	}

	if err := decodeSnapshot(&snap, []byte(recJSON), []byte(reportJSON.String)); err != nil {
		return nil, err
	}
	return &snap, nil
}
