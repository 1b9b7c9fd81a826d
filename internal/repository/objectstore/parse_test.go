package objectstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSnapshotsDateColumn(t *testing.T) {
	fallback := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	data := []byte("warehouse_code,sku_code,on_hand,reserved,snapshot_date\n" +
		"W1,S1,10,2,2024-03-12\n" +
		"W1,S2,5,,\n")

	snapshots, err := ParseSnapshots("snap.csv", data, fallback)
	require.NoError(t, err)
	require.Len(t, snapshots, 2)

	assert.Equal(t, time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC), snapshots[0].SnapshotDate)
	assert.EqualValues(t, 2, snapshots[0].Reserved)
	assert.Equal(t, fallback, snapshots[1].SnapshotDate)
	assert.Zero(t, snapshots[1].Reserved)
}

func TestParseSnapshotsRejectsFraction(t *testing.T) {
	_, err := ParseSnapshots("snap.csv", []byte("warehouse_code,sku_code,on_hand\nW1,S1,1.5\n"), time.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid integer")
}

func TestParseOrderLinesUnsupportedType(t *testing.T) {
	_, err := ParseOrderLines("orders.json", []byte("{}"))
	assert.Error(t, err)
}
