package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStores(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "data", "portal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestStore_GetSetRemove(t *testing.T) {
	ctx := context.Background()

	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.Get(ctx, "jobs")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Set(ctx, "jobs", `[1]`))
			require.NoError(t, s.Set(ctx, "jobs", `[1,2]`))

			v, ok, err := s.Get(ctx, "jobs")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, `[1,2]`, v)

			require.NoError(t, s.Remove(ctx, "jobs"))
			require.NoError(t, s.Remove(ctx, "jobs"))

			_, ok, err = s.Get(ctx, "jobs")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStore_Keys(t *testing.T) {
	ctx := context.Background()

	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Set(ctx, "gradedApplications_2", "[]"))
			require.NoError(t, s.Set(ctx, "gradedApplications_1", "[]"))
			require.NoError(t, s.Set(ctx, "applications", "[]"))

			keys, err := s.Keys(ctx, "gradedApplications_")
			require.NoError(t, err)
			assert.Equal(t, []string{"gradedApplications_1", "gradedApplications_2"}, keys)
		})
	}
}

func TestGetSetJSON(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	type item struct {
		ID string `json:"id"`
	}

	var missing []item
	ok, err := GetJSON(ctx, s, "items", &missing)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, missing)

	require.NoError(t, SetJSON(ctx, s, "items", []item{{ID: "a"}, {ID: "b"}}))

	var got []item
	ok, err = GetJSON(ctx, s, "items", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []item{{ID: "a"}, {ID: "b"}}, got)

	require.NoError(t, s.Set(ctx, "broken", "{not json"))
	_, err = GetJSON(ctx, s, "broken", &got)
	assert.Error(t, err)
}
