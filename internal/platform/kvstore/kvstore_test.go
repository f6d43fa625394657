package kvstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_LoadMissing(t *testing.T) {
	m := NewMemory()
	data, ok, err := m.Load(context.Background(), "appointments")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, data)
}

func TestMemory_SaveCopiesInput(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	buf := []byte(`[1,2]`)
	require.NoError(t, m.Save(ctx, "k", buf))
	buf[0] = 'x'

	data, ok, err := m.Load(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[1,2]`, string(data))
}

func TestFile_RoundTripAndOverwrite(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, f.Save(ctx, "pets", []byte(`["a"]`)))
	require.NoError(t, f.Save(ctx, "pets", []byte(`["a","b"]`)))

	data, ok, err := f.Load(ctx, "pets")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `["a","b"]`, string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, "pets.json", entries[0].Name())
}

func TestFile_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	f, err := NewFile(dir)
	require.NoError(t, err)
	require.NoError(t, f.Save(ctx, "profiles", []byte(`{}`)))

	again, err := NewFile(dir)
	require.NoError(t, err)
	_, ok, err := again.Load(ctx, "profiles")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFile_RejectsPathKeys(t *testing.T) {
	f, err := NewFile(t.TempDir())
	require.NoError(t, err)
	err = f.Save(context.Background(), "../escape", []byte(`x`))
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = os.Stat(filepath.Join(filepath.Dir(f.dir), "escape.json"))
	assert.True(t, os.IsNotExist(err))
}

type record struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestCollection_WritePersistsWholeArray(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	col, err := LoadCollection[record](ctx, store, "records")
	require.NoError(t, err)

	for _, id := range []string{"a", "b"} {
		id := id
		require.NoError(t, col.Write(ctx, func(items []record) ([]record, error) {
			return append(items, record{ID: id}), nil
		}))
	}

	data, ok, err := store.Load(ctx, "records")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `[{"id":"a","name":""},{"id":"b","name":""}]`, string(data))

	reloaded, err := LoadCollection[record](ctx, store, "records")
	require.NoError(t, err)
	var n int
	reloaded.Read(func(items []record) { n = len(items) })
	assert.Equal(t, 2, n)
}

func TestCollection_FailedWriteKeepsState(t *testing.T) {
	ctx := context.Background()
	col, err := LoadCollection[record](ctx, NewMemory(), "records")
	require.NoError(t, err)
	require.NoError(t, col.Write(ctx, func(items []record) ([]record, error) {
		return append(items, record{ID: "a", Name: "before"}), nil
	}))

	boom := assert.AnError
	err = col.Write(ctx, func(items []record) ([]record, error) {
		items[0].Name = "after"
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	col.Read(func(items []record) {
		require.Len(t, items, 1)
		assert.Equal(t, "before", items[0].Name)
	})
}
