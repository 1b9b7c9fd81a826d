package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	require.NoError(t, s.UploadObject(ctx, "output/net_demand/2024-03-15/net_demand.csv", []byte("a,b\n")))
	require.NoError(t, s.UploadObject(ctx, "output/net_demand/2024-03-15/net_demand.json", []byte("[]")))
	require.NoError(t, s.UploadObject(ctx, "input/orders/2024-03-15/orders.csv", []byte("x")))

	objects, err := s.ListObjects(ctx, "output/")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "output/net_demand/2024-03-15/net_demand.csv", objects[0].Key)
	assert.EqualValues(t, 4, objects[0].Size)

	data, err := s.ReadObject(ctx, "input/orders/2024-03-15/orders.csv")
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))

	require.NoError(t, s.UploadObject(ctx, "input/orders/2024-03-15/orders.csv", []byte("y")))
	data, err = s.ReadObject(ctx, "input/orders/2024-03-15/orders.csv")
	require.NoError(t, err)
	assert.Equal(t, "y", string(data))
}

func TestMemoryStorageMissingObject(t *testing.T) {
	_, err := NewMemoryStorage().ReadObject(context.Background(), "nope.csv")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalStorageDownload(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := NewLocalStorage(root)

	require.NoError(t, s.UploadObject(ctx, "a/b.json", []byte(`{"ok":true}`)))
	_, err := os.Stat(filepath.Join(root, "a", "b.json"))
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "nested", "b.json")
	require.NoError(t, s.DownloadObject(ctx, "a/b.json", dest))
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(got))

	empty, err := NewLocalStorage(filepath.Join(root, "missing")).ListObjects(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
