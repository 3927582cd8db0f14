package credential

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/works-s/postsmith/internal/errors"
	"github.com/works-s/postsmith/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testKey(t *testing.T) *[keyLength]byte {
	t.Helper()
	key, err := LoadOrGenerateKey(t.TempDir())
	require.NoError(t, err)
	return key
}

func TestLoadOrGenerateKey_PersistsKey(t *testing.T) {
	dir := t.TempDir()

	first, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	second, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	info, err := os.Stat(filepath.Join(dir, keyFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadOrGenerateKey_RejectsBadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, keyFileName), []byte("abc"), 0o600))

	_, err := LoadOrGenerateKey(dir)
	assert.ErrorContains(t, err, "invalid vault key length")
}

func TestVault_SaveResolveClear(t *testing.T) {
	blobs := store.NewMemoryStore()
	v := NewVault(blobs, testKey(t), "", discardLogger())
	ctx := context.Background()

	st, err := v.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.Configured)

	st, err = v.Save(ctx, "  sk-ant-secret  ")
	require.NoError(t, err)
	assert.Equal(t, SourceStored, st.Source)
	assert.Equal(t, Fingerprint("sk-ant-secret"), st.Fingerprint)

	// The blob never holds the plain key.
	raw, ok, err := blobs.Get(ctx, store.KeyCredential)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotContains(t, raw, "sk-ant-secret")

	key, src, err := v.Resolve(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-secret", key)
	assert.Equal(t, SourceStored, src)

	st, err = v.Clear(ctx)
	require.NoError(t, err)
	assert.False(t, st.Configured)
}

func TestVault_ResolutionOrder(t *testing.T) {
	v := NewVault(store.NewMemoryStore(), testKey(t), "sk-env", discardLogger())
	ctx := context.Background()

	key, src, err := v.Resolve(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "sk-env", key)
	assert.Equal(t, SourceEnvironment, src)

	_, err = v.Save(ctx, "sk-stored")
	require.NoError(t, err)
	key, src, err = v.Resolve(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "sk-stored", key)
	assert.Equal(t, SourceStored, src)

	key, src, err = v.Resolve(ctx, "sk-request")
	require.NoError(t, err)
	assert.Equal(t, "sk-request", key)
	assert.Equal(t, SourceRequest, src)

	// Clearing falls back to the environment key.
	st, err := v.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceEnvironment, st.Source)
}

func TestVault_SaveRejectsBlank(t *testing.T) {
	v := NewVault(store.NewMemoryStore(), testKey(t), "", discardLogger())

	_, err := v.Save(context.Background(), "   ")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))
}

func TestVault_ForeignKeyFallsBack(t *testing.T) {
	blobs := store.NewMemoryStore()
	ctx := context.Background()

	_, err := NewVault(blobs, testKey(t), "", discardLogger()).Save(ctx, "sk-old")
	require.NoError(t, err)

	// Same blob, different vault key.
	v := NewVault(blobs, testKey(t), "sk-env", discardLogger())
	key, src, err := v.Resolve(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "sk-env", key)
	assert.Equal(t, SourceEnvironment, src)
}

func TestVault_StoreFailure(t *testing.T) {
	blobs := store.NewMemoryStore()
	require.NoError(t, blobs.Close())
	v := NewVault(blobs, testKey(t), "", discardLogger())

	_, err := v.Save(context.Background(), "sk")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrPersistenceUnavailable))
}

func TestFingerprint(t *testing.T) {
	assert.Empty(t, Fingerprint(""))
	assert.Len(t, Fingerprint("sk-ant"), 12)
	assert.Equal(t, Fingerprint("sk-ant"), Fingerprint("sk-ant"))
	assert.NotEqual(t, Fingerprint("sk-ant"), Fingerprint("sk-anu"))
	assert.NotContains(t, Fingerprint("sk-ant"), "sk")
}
