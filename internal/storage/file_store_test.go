package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"parasited/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileStore(t *testing.T, path string, comp *testutil.MockCompressor) *FileStore {
	t.Helper()
	s, err := NewFileStore(path, NewFileManager(comp, &testutil.MockLogger{}), &testutil.MockLogger{})
	require.NoError(t, err)
	return s
}

func TestFileStore_Contract(t *testing.T) {
	s := newTestFileStore(t, filepath.Join(t.TempDir(), "state.dat"), &testutil.MockCompressor{})
	runStoreContract(t, s)
}

func TestFileStore_PersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.dat")
	comp, err := NewZstdCompressor()
	require.NoError(t, err)
	s, err := NewFileStore(path, NewFileManager(comp, &testutil.MockLogger{}), &testutil.MockLogger{})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Set(ctx, map[string][]byte{
		"p_evolution":    []byte(`{"level":3,"streak":9}`),
		"p_achievements": []byte(`["first_blood"]`),
	}))
	require.NoError(t, s.Close())

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	comp2, err := NewZstdCompressor()
	require.NoError(t, err)
	reloaded, err := NewFileStore(path, NewFileManager(comp2, &testutil.MockLogger{}), &testutil.MockLogger{})
	require.NoError(t, err)
	got, err := reloaded.GetAll(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"level":3,"streak":9}`, string(got["p_evolution"]))
	assert.JSONEq(t, `["first_blood"]`, string(got["p_achievements"]))
}

func TestFileStore_PersistSkipsCleanState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.dat")
	s := newTestFileStore(t, path, &testutil.MockCompressor{})

	require.NoError(t, s.Persist())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "nothing written before the first change")

	require.NoError(t, s.Set(context.Background(), map[string][]byte{"k": []byte(`1`)}))
	require.NoError(t, s.Persist())
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestFileStore_FailedPersistStaysDirty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.dat")
	fail := true
	comp := &testutil.MockCompressor{CompressFn: func(b []byte) ([]byte, error) {
		if fail {
			return nil, errors.New("disk full")
		}
		return b, nil
	}}
	s := newTestFileStore(t, path, comp)
	require.NoError(t, s.Set(context.Background(), map[string][]byte{"k": []byte(`1`)}))

	assert.Error(t, s.Persist())
	fail = false
	require.NoError(t, s.Persist())
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestFileManager_LoadFromFile_FileNotExist(t *testing.T) {
	fm := NewFileManager(&testutil.MockCompressor{}, &testutil.MockLogger{})
	entries, err := fm.LoadFromFile("/nonexistent/path/file.dat")
	assert.NoError(t, err)
	assert.Nil(t, entries)
}

func TestFileManager_LoadFromFile_FlatDump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"p_day_2024-01-01":{"shorts":4,"seconds":20},"p_schema_version":0}`), 0o600))

	logger := &testutil.MockLogger{}
	fm := NewFileManager(&testutil.MockCompressor{}, logger)
	entries, err := fm.LoadFromFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"shorts":4,"seconds":20}`, string(entries["p_day_2024-01-01"]))
	assert.Equal(t, 1, logger.Count("warn"))
}

func TestFileManager_LoadFromFile_Garbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.dat")
	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o600))
	fm := NewFileManager(&testutil.MockCompressor{}, &testutil.MockLogger{})
	_, err := fm.LoadFromFile(path)
	assert.Error(t, err)
}

func TestFileManager_DecompressError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.dat")
	require.NoError(t, os.WriteFile(path, []byte(`x`), 0o600))
	comp := &testutil.MockCompressor{DecompressFn: func([]byte) ([]byte, error) {
		return nil, errors.New("corrupt")
	}}
	fm := NewFileManager(comp, &testutil.MockLogger{})
	_, err := fm.LoadFromFile(path)
	assert.EqualError(t, err, "corrupt")
}
