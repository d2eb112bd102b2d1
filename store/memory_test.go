package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sourcenetwork/syncore/store"
)

func TestMemory_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	_, ok, err := m.Get(ctx, []byte("k1"))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, m.Put(ctx, []byte("k1"), []byte("v1")))
	got, ok, err := m.Get(ctx, []byte("k1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), got)

	require.NoError(t, m.Delete(ctx, []byte("k1")))
	_, ok, err = m.Get(ctx, []byte("k1"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemory_IterRespectsPrefix(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.Put(ctx, []byte("a:1"), []byte("v1")))
	require.NoError(t, m.Put(ctx, []byte("a:2"), []byte("v2")))
	require.NoError(t, m.Put(ctx, []byte("b:1"), []byte("v3")))

	var keys []string
	err := m.Iter(ctx, []byte("a:"), func(key, value []byte) error {
		keys = append(keys, string(key))
		return nil
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a:1", "a:2"}, keys)
}

func TestMemory_BatchWriteMixesSetAndDelete(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.Put(ctx, []byte("k1"), []byte("v1")))

	err := m.BatchWrite(ctx, []store.Op{
		{Key: []byte("k1"), Value: nil},
		{Key: []byte("k2"), Value: []byte("v2")},
	})
	require.NoError(t, err)

	_, ok, _ := m.Get(ctx, []byte("k1"))
	require.False(t, ok)
	got, ok, _ := m.Get(ctx, []byte("k2"))
	require.True(t, ok)
	require.Equal(t, []byte("v2"), got)
}

func TestGetRequired_ErrNotFoundOnMiss(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	_, err := store.GetRequired(ctx, m, []byte("missing"))
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, m.Put(ctx, []byte("present"), []byte("v")))
	got, err := store.GetRequired(ctx, m, []byte("present"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)
}

func TestKeys_NamespacingRoundTrips(t *testing.T) {
	id := [32]byte{1, 2, 3}
	require.True(t, store.HasNamespace(store.EntryKey(id), store.NamespaceEntry))
	require.True(t, store.HasNamespace(store.IndexKey(id), store.NamespaceIndex))
	require.True(t, store.HasNamespace(store.DeltaKey(id), store.NamespaceDelta))
	require.True(t, store.HasNamespace(store.MetaKey(store.MetaHeads), store.NamespaceMeta))
	require.False(t, store.HasNamespace(store.EntryKey(id), store.NamespaceIndex))
}
