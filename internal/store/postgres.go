// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// Schema is the single document table every entity kind lives in.
const Schema = `
CREATE TABLE IF NOT EXISTS entities (
	seq        BIGSERIAL,
	id         TEXT        NOT NULL,
	kind       TEXT        NOT NULL,
	data       JSONB       NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (kind, id)
);
CREATE INDEX IF NOT EXISTS entities_kind_seq_idx ON entities (kind, seq DESC);
CREATE INDEX IF NOT EXISTS entities_data_gin_idx ON entities USING GIN (data jsonb_path_ops);
`

const (
	selectOneSQL  = `SELECT data FROM entities WHERE kind = $1 AND data @> $2::jsonb ORDER BY seq DESC LIMIT 1`
	selectManySQL = `SELECT data FROM entities WHERE kind = $1 AND data @> $2::jsonb ORDER BY seq DESC`
	lockOneSQL    = `SELECT id, data FROM entities WHERE kind = $1 AND data @> $2::jsonb ORDER BY seq DESC LIMIT 1 FOR UPDATE`
	insertSQL     = `INSERT INTO entities (id, kind, data, created_at, updated_at) VALUES ($1, $2, $3, $4, $4)`
	updateSQL     = `UPDATE entities SET data = $1, updated_at = $2 WHERE kind = $3 AND id = $4`
	deleteSQL     = `DELETE FROM entities WHERE kind = $1 AND data @> $2::jsonb`
)

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// PostgresStore keeps documents as JSONB rows and filters with containment.
type PostgresStore struct {
	db   *sql.DB
	q    querier
	inTx bool
	now  func() time.Time
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, q: db, now: time.Now}
}

// Migrate creates the entities table and its indexes.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.q.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func filterJSON(filter Filter) (string, error) {
	if len(filter) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(filter)
	if err != nil {
		return "", fmt.Errorf("encode filter: %w", err)
	}
	return string(raw), nil
}

func (s *PostgresStore) Get(ctx context.Context, kind Kind, filter Filter) (Document, error) {
	f, err := filterJSON(filter)
	if err != nil {
		return nil, err
	}
	var raw []byte
	if err := s.q.QueryRowContext(ctx, selectOneSQL, string(kind), f).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", kind, err)
	}
	return decodeRow(raw)
}

// GetForUpdate takes a row lock with SELECT ... FOR UPDATE. Outside a
// transaction there is nothing to hold the lock, so it reads like Get.
func (s *PostgresStore) GetForUpdate(ctx context.Context, kind Kind, filter Filter) (Document, error) {
	if !s.inTx {
		return s.Get(ctx, kind, filter)
	}
	_, doc, err := s.lock(ctx, kind, filter)
	return doc, err
}

func (s *PostgresStore) lock(ctx context.Context, kind Kind, filter Filter) (string, Document, error) {
	f, err := filterJSON(filter)
	if err != nil {
		return "", nil, err
	}
	var (
		id  string
		raw []byte
	)
	if err := s.q.QueryRowContext(ctx, lockOneSQL, string(kind), f).Scan(&id, &raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, ErrNotFound
		}
		return "", nil, fmt.Errorf("lock %s: %w", kind, err)
	}
	doc, err := decodeRow(raw)
	if err != nil {
		return "", nil, err
	}
	return id, doc, nil
}

func (s *PostgresStore) List(ctx context.Context, kind Kind, filter Filter) ([]Document, error) {
	f, err := filterJSON(filter)
	if err != nil {
		return nil, err
	}
	rows, err := s.q.QueryContext(ctx, selectManySQL, string(kind), f)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("list %s: %w", kind, err)
		}
		doc, err := decodeRow(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	return out, nil
}

func (s *PostgresStore) Create(ctx context.Context, kind Kind, doc Document) (Document, error) {
	stored := Document{}
	for k, v := range doc {
		stored[k] = v
	}
	id := stored.ID()
	if id == "" {
		id = uuid.NewString()
		stored[FieldID] = id
	}
	now := s.now().UTC()
	ts := now.Format(time.RFC3339Nano)
	stored[FieldCreatedAt] = ts
	stored[FieldUpdatedAt] = ts

	raw, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", kind, err)
	}
	if _, err := s.q.ExecContext(ctx, insertSQL, id, string(kind), raw, now); err != nil {
		return nil, fmt.Errorf("create %s: %w", kind, err)
	}
	return decodeRow(raw)
}

// Update reads the newest match with a row lock, merges patch, and writes it
// back. Outside a transaction the read and write run in their own one.
func (s *PostgresStore) Update(ctx context.Context, kind Kind, filter Filter, patch Document) (Document, error) {
	var out Document
	err := s.RunInTx(ctx, func(tx Store) error {
		var err error
		out, err = tx.(*PostgresStore).update(ctx, kind, filter, patch)
		return err
	})
	return out, err
}

func (s *PostgresStore) update(ctx context.Context, kind Kind, filter Filter, patch Document) (Document, error) {
	id, doc, err := s.lock(ctx, kind, filter)
	if err != nil {
		return nil, err
	}
	for k, v := range patch {
		switch k {
		case FieldID, FieldCreatedAt, FieldUpdatedAt:
			continue
		}
		doc[k] = v
	}
	now := s.now().UTC()
	doc[FieldUpdatedAt] = now.Format(time.RFC3339Nano)

	merged, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", kind, err)
	}
	if _, err := s.q.ExecContext(ctx, updateSQL, merged, now, string(kind), id); err != nil {
		return nil, fmt.Errorf("update %s: %w", kind, err)
	}
	return decodeRow(merged)
}

func (s *PostgresStore) Delete(ctx context.Context, kind Kind, filter Filter) (int, error) {
	f, err := filterJSON(filter)
	if err != nil {
		return 0, err
	}
	res, err := s.q.ExecContext(ctx, deleteSQL, string(kind), f)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", kind, err)
	}
	return int(n), nil
}

// RunInTx wraps fn in a database transaction. A store already inside one is reused.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	txStore := &PostgresStore{db: s.db, q: sqlTx, inTx: true, now: s.now}

	if err := fn(txStore); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func decodeRow(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	return doc, nil
}
