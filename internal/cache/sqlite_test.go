package cache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_GetMiss(t *testing.T) {
	s := openTestStore(t)

	_, ok, err := s.Get(context.Background(), StageGeocode, "nothing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_PutGetRoundtrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	payload := []byte(`[{"place_id":1}]`)
	require.NoError(t, s.Put(ctx, StageGeocode, "brīvības iela 10, rīga", payload))

	got, ok, err := s.Get(ctx, StageGeocode, "brīvības iela 10, rīga")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, payload, got)
}

func TestStore_PutOverwrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, StageSpatial, "k", []byte("old")))
	require.NoError(t, s.Put(ctx, StageSpatial, "k", []byte("new")))

	got, ok, err := s.Get(ctx, StageSpatial, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("new"), got)
}

func TestStore_StagesAreIsolated(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, StageGeocode, "k", []byte("geocode")))

	_, ok, err := s.Get(ctx, StageSpatial, "k")
	require.NoError(t, err)
	assert.False(t, ok, "spatial stage must not see geocode entries")
}

func TestStore_Count(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, StageGeocode, "a", []byte("1")))
	require.NoError(t, s.Put(ctx, StageGeocode, "b", []byte("2")))
	require.NoError(t, s.Put(ctx, StageSpatial, "a", []byte("3")))

	n, err := s.Count(ctx, StageGeocode)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.Count(ctx, StageSpatial)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, StageGeocode, "persisted", []byte("payload")))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close() //nolint:errcheck

	got, ok, err := s2.Get(ctx, StageGeocode, "persisted")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), got)
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "Brīvības Iela 10", "brīvības iela 10"},
		{"collapses whitespace", "  Brīvības   iela\t10 ", "brīvības iela 10"},
		{"composes diacritics", "Brīvības", "brīvības"},
		{"decomposed input matches composed", "Brīvības", "brīvības"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeKey(tt.in))
		})
	}
}

func TestNormalizeKey_EquivalentQueriesShareKeys(t *testing.T) {
	a := NormalizeKey("Tērbatas  iela 2")
	b := NormalizeKey("tērbatas iela 2")
	assert.Equal(t, a, b)
}
