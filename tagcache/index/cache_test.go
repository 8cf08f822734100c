package index

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thornview/tagcache/tagcache/schema"
)

func TestScanCache(t *testing.T) {
	tests := []struct {
		name string
		test func(t *testing.T)
	}{
		{"SecondBuildHitsCache", testSecondBuildHitsCache},
		{"SnapshotRoundTrip", testSnapshotRoundTrip},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.test)
	}
}

func testSecondBuildHitsCache(t *testing.T) {
	root := musicTree(t, "a.mp3", "b.mp3")
	dsn := filepath.Join(t.TempDir(), "scan.db")
	reader := stubReader{tags: map[string]map[string]string{
		"a.mp3": {"artist": "Band", "title": "A"},
		"b.mp3": {"artist": "Band", "title": "B"},
	}}
	opts := Options{
		MusicRoot:    root,
		DevicePrefix: "/Music/",
		Reader:       reader,
		CacheDSN:     dsn,
	}

	d1, report1, err := Build(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 0, report1.CacheHits)
	assert.Equal(t, 2, report1.CacheMisses)

	d2, report2, err := Build(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, report2.CacheHits)
	assert.Equal(t, 0, report2.CacheMisses)

	// Cached and freshly extracted builds agree.
	require.Equal(t, d1.Len(), d2.Len())
	for i := 0; i < d1.Len(); i++ {
		assert.Equal(t, d1.String(i, schema.Title), d2.String(i, schema.Title))
		assert.Equal(t, d1.String(i, schema.Filename), d2.String(i, schema.Filename))
	}
}

func testSnapshotRoundTrip(t *testing.T) {
	root := musicTree(t, "a.mp3")
	dsn := filepath.Join(t.TempDir(), "scan.db")
	reader := stubReader{tags: map[string]map[string]string{
		"a.mp3": {"artist": "Band", "title": "A", "genre": "Rock"},
	}}

	_, _, err := Build(context.Background(), Options{
		MusicRoot:    root,
		DevicePrefix: "/Music/",
		Reader:       reader,
		CacheDSN:     dsn,
	})
	require.NoError(t, err)

	cache, err := openScanCache(dsn)
	require.NoError(t, err)
	defer cache.Close()

	snap, err := cache.snapshot()
	require.NoError(t, err)
	require.Len(t, snap, 1)
	for _, row := range snap {
		assert.Equal(t, "Band", row.Record.Strings[schema.Artist])
		assert.Equal(t, "Rock", row.Record.Strings[schema.Genre])
	}
}
