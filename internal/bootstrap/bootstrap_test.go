package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/procurement-engine/internal/config"
	"github.com/andresuchdata/procurement-engine/internal/storage"
)

func TestPipelineConfig(t *testing.T) {
	pc := PipelineConfig(config.PipelineConfig{
		Name:               "procurement",
		WorkerCount:        8,
		DemandWindowDays:   3,
		MaxSnapshotAgeDays: 7,
		RetryAttempts:      5,
		RetryBackoffMillis: 250,
		OutputPrefix:       "out",
	})

	assert.Equal(t, "procurement", pc.Name)
	assert.Equal(t, 8, pc.WorkerCount)
	assert.Equal(t, 3, pc.DemandWindowDays)
	assert.Equal(t, 7, pc.MaxSnapshotAgeDays)
	assert.Equal(t, 5, pc.RetryAttempts)
	assert.Equal(t, 250*time.Millisecond, pc.RetryBackoff)
	assert.Equal(t, "out", pc.OutputPrefix)
}

func TestSnapshotLookbackDays(t *testing.T) {
	assert.Equal(t, 90, SnapshotLookbackDays(90, 7))
	assert.Equal(t, 14, SnapshotLookbackDays(3, 14))
	assert.Equal(t, 0, SnapshotLookbackDays(0, 14))
}

func TestNewStorageLocal(t *testing.T) {
	store, err := NewStorage(context.Background(), config.StorageConfig{Backend: "local", LocalDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &storage.FSStorage{}, store)

	require.NoError(t, store.UploadObject(context.Background(), "input/orders/2024-03-15/a.csv", []byte("x")))
	objects, err := store.ListObjects(context.Background(), "input/")
	require.NoError(t, err)
	assert.Len(t, objects, 1)
}

func TestNewStorageUnknownBackend(t *testing.T) {
	_, err := NewStorage(context.Background(), config.StorageConfig{Backend: "ftp"})
	assert.Error(t, err)
}
