package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ledger-map.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetAbsent(t *testing.T) {
	s := openTestStore(t)

	_, ok, err := s.Get(context.Background(), "NEVER SEEN")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPutThenGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "ABC", "Office Expenses"))

	// Determinism: the entry survives any number of unrelated writes.
	require.NoError(t, s.Put(ctx, "DEF", "Travel"))
	require.NoError(t, s.Put(ctx, "GHI", "Rent"))

	for i := 0; i < 3; i++ {
		got, ok, err := s.Get(ctx, "ABC")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "Office Expenses", got)
	}
}

func TestPutFirstWriteWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "ABC", "Office Expenses"))
	require.NoError(t, s.Put(ctx, "ABC", "Travel"))

	got, ok, err := s.Get(ctx, "ABC")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Office Expenses", got)
}

func TestExactMatchKeys(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "UPI-XYZ-001", "Office Expenses"))

	_, ok, err := s.Get(ctx, "upi-xyz-001")
	require.NoError(t, err)
	assert.False(t, ok, "keys are case-sensitive")

	_, ok, err = s.Get(ctx, "UPI-XYZ-001 ")
	require.NoError(t, err)
	assert.False(t, ok, "keys are whitespace-sensitive")
}

func TestReopenKeepsEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger-map.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "ABC", "Office Expenses"))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got, ok, err := s2.Get(ctx, "ABC")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Office Expenses", got)
}
