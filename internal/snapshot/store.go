// Package snapshot persists saved KPI snapshots: a point-in-time copy of
// a metrics structure plus who saved it and why. The engine only produces
// the payloads; this store owns their lifecycle.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// ErrNotFound marks a lookup for a snapshot id that does not exist.
var ErrNotFound = errors.New("snapshot not found")

// Snapshot is one saved KPI report.
type Snapshot struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	SavedBy   string          `json:"savedBy"`
	RangeFrom time.Time       `json:"rangeFrom"`
	RangeTo   time.Time       `json:"rangeTo"`
	Note      string          `json:"note"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Store is the Postgres-backed snapshot repository.
type Store struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// Open connects and ensures the schema exists.
func Open(ctx context.Context, dsn string, log zerolog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}

	s := &Store{pool: pool, log: log}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) migrate(ctx context.Context) error {
	const ddl = `
        CREATE TABLE IF NOT EXISTS snapshots (
            id         BIGSERIAL PRIMARY KEY,
            name       TEXT NOT NULL,
            saved_by   TEXT NOT NULL,
            range_from TIMESTAMPTZ NOT NULL,
            range_to   TIMESTAMPTZ NOT NULL,
            note       TEXT NOT NULL DEFAULT '',
            payload    JSONB NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`
	_, err := s.pool.Exec(ctx, ddl)
	return err
}

// Save inserts a snapshot and returns its id.
func (s *Store) Save(ctx context.Context, snap Snapshot) (int64, error) {
	const q = `
        INSERT INTO snapshots(name, saved_by, range_from, range_to, note, payload)
        VALUES($1, $2, $3, $4, $5, $6)
        RETURNING id`
	var id int64
	err := s.pool.QueryRow(ctx, q, snap.Name, snap.SavedBy, snap.RangeFrom, snap.RangeTo, snap.Note, snap.Payload).Scan(&id)
	if err != nil {
		return 0, err
	}
	s.log.Debug().Int64("id", id).Str("name", snap.Name).Msg("snapshot saved")
	return id, nil
}

// Get returns one snapshot by id.
func (s *Store) Get(ctx context.Context, id int64) (Snapshot, error) {
	const q = `
        SELECT id, name, saved_by, range_from, range_to, note, payload, created_at
        FROM snapshots WHERE id = $1`
	var snap Snapshot
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&snap.ID, &snap.Name, &snap.SavedBy, &snap.RangeFrom, &snap.RangeTo,
		&snap.Note, &snap.Payload, &snap.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	return snap, err
}

// List returns snapshots newest first, without payloads.
func (s *Store) List(ctx context.Context, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
        SELECT id, name, saved_by, range_from, range_to, note, created_at
        FROM snapshots ORDER BY created_at DESC LIMIT $1`
	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.ID, &snap.Name, &snap.SavedBy, &snap.RangeFrom,
			&snap.RangeTo, &snap.Note, &snap.CreatedAt); err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// Delete removes one snapshot by id.
func (s *Store) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM snapshots WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
