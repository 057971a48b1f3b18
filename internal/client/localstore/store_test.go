package localstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/medistore/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoltStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "client.db")

	s, err := OpenBolt(path)
	require.NoError(t, err)

	v, err := s.Get(ctx, "cart")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.Set(ctx, "cart", `[{"productId":"a","quantity":1}]`))
	require.NoError(t, s.Set(ctx, "cart", `[]`))
	require.NoError(t, s.Close())

	// values survive reopening
	s, err = OpenBolt(path)
	require.NoError(t, err)
	v, err = s.Get(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, `[]`, v)

	require.NoError(t, s.Delete(ctx, "cart"))
	require.NoError(t, s.Delete(ctx, "missing"))
	v, err = s.Get(ctx, "cart")
	require.NoError(t, err)
	assert.Empty(t, v)
	require.NoError(t, s.Close())

	_, err = s.Get(ctx, "cart")
	assert.ErrorIs(t, err, shared.ErrUnavailable)
}

func TestBoltStore_CanceledContext(t *testing.T) {
	s, err := OpenBolt(filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Set(ctx, "k", "v"), context.Canceled)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "k", "v1"))
	require.NoError(t, s.Set(ctx, "k", "v2"))
	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
	assert.Equal(t, 2, s.Writes())
	require.NoError(t, s.Delete(ctx, "k"))
	v, _ = s.Get(ctx, "k")
	assert.Empty(t, v)
}
