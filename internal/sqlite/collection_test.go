package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tabula/internal/jsonl"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

func TestCollectionPutGet(t *testing.T) {
	ctx := context.Background()
	s := attachStore(t, t.TempDir())
	c, err := s.Collection("tickets", "")
	require.NoError(t, err)

	stored, err := c.Put(ctx, types.Record{"title": "generated"})
	require.NoError(t, err)
	id := stored.ID("id")
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())

	got, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "generated", got["title"])

	_, err = c.Get(ctx, "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = c.Get(ctx, "")
	assert.ErrorIs(t, err, types.ErrInvalidID)
	_, err = c.Put(ctx, nil)
	assert.ErrorIs(t, err, types.ErrInvalidRecord)
}

func TestCollectionPutReplacesInPlace(t *testing.T) {
	ctx := context.Background()
	s := attachStore(t, t.TempDir())
	c, err := s.Collection("tickets", "")
	require.NoError(t, err)

	_, err = c.Import(ctx, []types.Record{{"id": "a"}, {"id": "b"}, {"id": "c"}})
	require.NoError(t, err)
	_, err = c.Put(ctx, types.Record{"id": "b", "state": "closed"})
	require.NoError(t, err)

	records, err := c.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{records[0].ID("id"), records[1].ID("id"), records[2].ID("id")})
	assert.Equal(t, "closed", records[1]["state"])
}

func TestCollectionDelete(t *testing.T) {
	ctx := context.Background()
	s := attachStore(t, t.TempDir())
	c, err := s.Collection("tickets", "")
	require.NoError(t, err)
	_, err = c.Import(ctx, []types.Record{{"id": "a"}, {"id": "b"}})
	require.NoError(t, err)

	require.NoError(t, c.Delete(ctx, "a"))
	assert.ErrorIs(t, c.Delete(ctx, "a"), types.ErrNotFound)
	assert.ErrorIs(t, c.Delete(ctx, ""), types.ErrInvalidID)

	records, err := c.Fetch(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestCollectionWritesPersistJSONL(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := attachStore(t, dir)
	c, err := s.Collection("tickets", "")
	require.NoError(t, err)

	n, err := c.Import(ctx, []types.Record{{"id": "a", "n": 1}, nil, {"id": "b", "n": 2}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	onDisk, err := jsonl.Read(filepath.Join(dir, "tickets.jsonl"))
	require.NoError(t, err)
	require.Len(t, onDisk, 2)
	assert.Equal(t, "b", onDisk[1].ID("id"))

	// A fresh attach rebuilds the database from the JSONL files.
	require.NoError(t, s.Detach())
	require.NoError(t, s.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}))
	records, err := c.Fetch(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestCollectionCustomIDField(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, jsonl.Write(filepath.Join(dir, "orders.jsonl"), []types.Record{
		{"order_no": 100, "total": 5},
		{"order_no": 101, "total": 7},
	}))
	s := attachStore(t, dir)
	c, err := s.Collection("orders", "order_no")
	require.NoError(t, err)

	got, err := c.Get(ctx, "101")
	require.NoError(t, err)
	assert.Equal(t, "7", got.ID("total"))

	_, err = c.Put(ctx, types.Record{"order_no": 100, "total": 9})
	require.NoError(t, err)
	records, err := c.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "9", records[0].ID("total"))
}
