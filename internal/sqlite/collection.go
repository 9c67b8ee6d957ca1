package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/tabula/internal/jsonl"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

// Collection is a named, ordered set of records in a Store. It satisfies
// source.Fetcher for types.Record.
type Collection struct {
	store   *Store
	name    string
	idField string
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// IDField returns the field that identifies records.
func (c *Collection) IDField() string { return c.idField }

// Fetch returns every record in insertion order.
func (c *Collection) Fetch(ctx context.Context) ([]types.Record, error) {
	s := c.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.attached {
		return nil, types.ErrNotAttached
	}
	return c.queryLocked(ctx, "SELECT body FROM records WHERE collection = ? ORDER BY seq", c.name)
}

// Get returns the first record whose id is id.
func (c *Collection) Get(ctx context.Context, id string) (types.Record, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	if err := c.ensureKeyed(ctx); err != nil {
		return nil, err
	}

	s := c.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.attached {
		return nil, types.ErrNotAttached
	}
	var body string
	err := s.db.QueryRowContext(ctx,
		"SELECT body FROM records WHERE collection = ? AND rid = ? ORDER BY seq LIMIT 1",
		c.name, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", types.ErrNotFound, c.name, id)
	}
	if err != nil {
		return nil, err
	}
	return jsonl.Decode([]byte(body))
}

// Put inserts or replaces rec and returns the stored record. A record with
// an empty id gets a generated UUID v7 in its id field.
func (c *Collection) Put(ctx context.Context, rec types.Record) (types.Record, error) {
	if rec == nil {
		return nil, types.ErrInvalidRecord
	}
	rec = rec.Clone()
	if rec.ID(c.idField) == "" {
		rec[c.idField] = generateID()
	}
	if err := c.write(ctx, "put", []types.Record{rec}); err != nil {
		return nil, err
	}
	return rec, nil
}

// Import upserts records in one transaction and persists the collection
// once. Records without an id get a generated one.
func (c *Collection) Import(ctx context.Context, records []types.Record) (int, error) {
	batch := make([]types.Record, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		r = r.Clone()
		if r.ID(c.idField) == "" {
			r[c.idField] = generateID()
		}
		batch = append(batch, r)
	}
	if err := c.write(ctx, "import", batch); err != nil {
		return 0, err
	}
	return len(batch), nil
}

// Delete removes every record whose id is id.
func (c *Collection) Delete(ctx context.Context, id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	return c.withTx(ctx, "delete", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM records WHERE collection = ? AND rid = ?", c.name, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s/%s", types.ErrNotFound, c.name, id)
		}
		return nil
	})
}

func (c *Collection) write(ctx context.Context, op string, records []types.Record) error {
	return c.withTx(ctx, op, func(tx *sql.Tx) error {
		return upsertRecords(tx, c.name, c.idField, records)
	})
}

// withTx runs fn in a transaction under the store write lock, then rewrites
// the collection's JSONL file from the committed rows.
func (c *Collection) withTx(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return types.ErrNotAttached
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := c.rekeyLocked(tx); err != nil {
		return fmt.Errorf("rekeying %s: %w", c.name, err)
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s: %w", op, err)
	}
	s.keyedBy[c.name] = c.idField

	records, err := c.queryLocked(ctx, "SELECT body FROM records WHERE collection = ? ORDER BY seq", c.name)
	if err != nil {
		return err
	}
	if err := jsonl.Write(s.jsonlPath(c.name), records); err != nil {
		return fmt.Errorf("persisting %s: %w", c.name, err)
	}
	s.log.Debug("collection written",
		zap.String("collection", c.name),
		zap.String("op", op),
		zap.Int("records", len(records)))
	return nil
}

// ensureKeyed rekeys the collection when it was last keyed by another id
// field.
func (c *Collection) ensureKeyed(ctx context.Context) error {
	s := c.store
	s.mu.RLock()
	current := c.keyedLocked()
	s.mu.RUnlock()
	if current == c.idField {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return types.ErrNotAttached
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := c.rekeyLocked(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.keyedBy[c.name] = c.idField
	return nil
}

func (c *Collection) keyedLocked() string {
	if f, ok := c.store.keyedBy[c.name]; ok {
		return f
	}
	return types.DefaultIDField
}

func (c *Collection) rekeyLocked(tx *sql.Tx) error {
	if c.keyedLocked() == c.idField {
		return nil
	}
	return rekey(tx, c.name, c.idField)
}

func (c *Collection) queryLocked(ctx context.Context, query string, args ...any) ([]types.Record, error) {
	rows, err := c.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []types.Record{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		rec, err := jsonl.Decode([]byte(body))
		if err != nil {
			return nil, fmt.Errorf("decoding %s record: %w", c.name, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
