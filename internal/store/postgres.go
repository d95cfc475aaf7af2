package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/mars-cli/internal/db"
	"github.com/sells-group/mars-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool sizing. Zero values keep the
// defaults of 4 max and 1 min.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

var snapshotColumns = []string{"id", "record", "report", "created_at"}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	record     JSONB NOT NULL,
	report     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_snapshots_created_at ON snapshots(created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, rec model.Record, report *model.Report) (*model.Snapshot, error) {
	recJSON, reportJSON, err := encodeSnapshot(rec, report)
	if err != nil {
		return nil, eris.Wrap(err, "postgres")
	}

	snap := &model.Snapshot{
		ID:        uuid.New().String(),
		Record:    rec,
		Report:    report,
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO snapshots (id, record, report, created_at) VALUES ($1, $2, $3, $4)`,
		snap.ID, recJSON, reportJSON, snap.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert snapshot")
	}
	return snap, nil
}

// ImportSnapshots bulk-loads snaps with COPY, keeping their ids and
// timestamps. Unlike the SQLite store, a duplicate id fails the whole copy.
func (s *PostgresStore) ImportSnapshots(ctx context.Context, snaps []model.Snapshot) (int, error) {
	rows := make([][]any, 0, len(snaps))
	for _, snap := range snaps {
		recJSON, reportJSON, err := encodeSnapshot(snap.Record, snap.Report)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: import")
		}
		rows = append(rows, []any{snap.ID, recJSON, reportJSON, snap.CreatedAt.UTC()})
	}

	n, err := db.CopyFrom(ctx, s.pool, "snapshots", snapshotColumns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: import")
	}
	return int(n), nil
}

func (s *PostgresStore) GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error) {
	snap, err := scanPgSnapshot(s.pool.QueryRow(ctx,
		`SELECT id, record, report, created_at FROM snapshots WHERE id = $1`, id))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get snapshot %s", id)
	}
	return snap, nil
}

func (s *PostgresStore) LatestSnapshot(ctx context.Context) (*model.Snapshot, error) {
	snap, err := scanPgSnapshot(s.pool.QueryRow(ctx,
		`SELECT id, record, report, created_at FROM snapshots ORDER BY created_at DESC, id DESC LIMIT 1`))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest snapshot")
	}
	return snap, nil
}

func (s *PostgresStore) ListSnapshots(ctx context.Context, filter SnapshotFilter) ([]model.Snapshot, error) {
	query := `SELECT id, record, report, created_at FROM snapshots WHERE true`
	args := []any{}
	argIdx := 1

	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND created_at >= $%d`, argIdx)
		args = append(args, filter.Since.UTC())
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, argIdx)
	args = append(args, filter.limit())
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list snapshots")
	}
	defer rows.Close()

	var snaps []model.Snapshot
	for rows.Next() {
		snap, err := scanPgSnapshot(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: list snapshots")
		}
		snaps = append(snaps, *snap)
	}
	return snaps, eris.Wrap(rows.Err(), "postgres: list snapshots iterate")
}

func (s *PostgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM snapshots WHERE created_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete old snapshots")
	}
	return int(tag.RowsAffected()), nil
}

func scanPgSnapshot(row pgx.Row) (*model.Snapshot, error) {
	var snap model.Snapshot
	var recJSON, reportJSON []byte

	err := row.Scan(&snap.ID, &recJSON, &reportJSON, &snap.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan snapshot")
	}

	if err := decodeSnapshot(&snap, recJSON, reportJSON); err != nil {
		return nil, err
	}
	return &snap, nil
}
