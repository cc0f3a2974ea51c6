package local_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LaazAlae/alaeautomates-backend/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		store, err := local.New(local.Config{BaseDir: t.TempDir()})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "plainfile")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := local.New(local.Config{BaseDir: file})
		assert.Error(t, err)
	})

	t.Run("CreatesMissingBaseDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "archives")
		store, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		assert.Equal(t, dir, store.BaseDir())
	})
}

func TestPutAndGetObject(t *testing.T) {
	dir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)

	ctx := context.Background()
	data := []byte("archive bytes")

	uri, err := store.PutObject(ctx, "archives/s1.zip", "application/zip", data)
	require.NoError(t, err)
	assert.Equal(t, "file://"+filepath.Join(dir, "archives", "s1.zip"), uri)

	rc, err := store.GetObject(ctx, "archives/s1.zip")
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestGetObjectAcceptsReturnedURI(t *testing.T) {
	store, err := local.New(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	ctx := context.Background()
	uri, err := store.PutObject(ctx, "archives/s2.zip", "application/zip", []byte("zip"))
	require.NoError(t, err)

	rc, err := store.GetObject(ctx, uri)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, []byte("zip"), got)
}

func TestPathTraversalRejected(t *testing.T) {
	store, err := local.New(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "../escape.zip", "", []byte("x"))
	assert.Error(t, err)

	_, err = store.GetObject(context.Background(), "../../etc/passwd")
	assert.Error(t, err)
}

func TestGetObjectMissing(t *testing.T) {
	store, err := local.New(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.GetObject(context.Background(), "archives/nope.zip")
	assert.Error(t, err)
}
