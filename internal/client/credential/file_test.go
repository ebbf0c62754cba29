package credential

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_LoadMissing(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "session.json"), nil)

	_, err := fs.Load(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_SaveLoadDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	fs := NewFileStore(path, nil)
	ctx := context.Background()

	require.NoError(t, fs.Save(ctx, "T1"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]string
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "T1", doc[Key])

	got, err := fs.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "T1", got)

	require.NoError(t, fs.Save(ctx, "T2"))
	got, err = fs.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "T2", got)

	require.NoError(t, fs.Delete(ctx))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	_, err = fs.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, fs.Delete(ctx), "deleting an empty slot")
}

func TestFileStore_DeleteKeepsOtherKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"access_token":"x","theme":"dark"}`), 0600))

	fs := NewFileStore(path, nil)
	require.NoError(t, fs.Delete(context.Background()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"theme":"dark"}`, string(raw))
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("not-json"), 0600))

	_, err := NewFileStore(path, nil).Load(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "parse credential file"))
}

func TestFileStore_CorruptIsOverwritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("not-json"), 0600))
	fs := NewFileStore(path, nil)
	ctx := context.Background()

	require.NoError(t, fs.Save(ctx, "T1"))
	got, err := fs.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "T1", got)
}

func TestFileStore_CorruptIsDeleted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("not-json"), 0600))
	fs := NewFileStore(path, nil)
	ctx := context.Background()

	require.NoError(t, fs.Delete(ctx))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	_, err = fs.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_Sealed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	aead, err := NewAEADFromKey([]byte("local key material"))
	require.NoError(t, err)

	fs := NewFileStore(path, aead)
	ctx := context.Background()
	require.NoError(t, fs.Save(ctx, "secret-token"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret-token")

	got, err := fs.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", got)

	other, err := NewAEADFromKey([]byte("another key"))
	require.NoError(t, err)
	_, err = NewFileStore(path, other).Load(ctx)
	assert.ErrorContains(t, err, "decrypt token")
}

func TestOpen_TooShort(t *testing.T) {
	aead, err := NewAEADFromKey([]byte("k"))
	require.NoError(t, err)

	_, err = open(aead, "AAAA")
	assert.ErrorIs(t, err, errSealedTooShort)

	_, err = open(aead, "%%%")
	assert.ErrorContains(t, err, "decode sealed token")
}
