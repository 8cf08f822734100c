package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thornview/tagcache/tagcache/db"
	"github.com/thornview/tagcache/tagcache/metadata"
	"github.com/thornview/tagcache/tagcache/schema"
)

// stubReader serves canned tag bags keyed by base name, standing in for
// the real audio prober so pipeline tests exercise ordering and interning,
// not file formats.
type stubReader struct {
	tags map[string]map[string]string
	fail map[string]error
}

func (r stubReader) Read(path string) (*metadata.Raw, error) {
	base := filepath.Base(path)
	if err, ok := r.fail[base]; ok {
		return nil, err
	}
	tags, ok := r.tags[base]
	if !ok {
		tags = map[string]string{}
	}
	return &metadata.Raw{Tags: tags, Props: metadata.Properties{MTime: 1700000000}}, nil
}

func musicTree(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("not really audio"), 0o644))
	}
	return root
}

func TestPipeline(t *testing.T) {
	tests := []struct {
		name string
		test func(t *testing.T)
	}{
		{"WalkOrder", testWalkOrder},
		{"SharedStringsIntern", testSharedStringsIntern},
		{"GenreCanonicalisation", testGenreCanonicalisation},
		{"SkipsFailures", testSkipsFailures},
		{"EmptyRoot", testEmptyRoot},
		{"IgnoreFile", testIgnoreFile},
		{"Determinism", testDeterminism},
		{"Cancellation", testCancellation},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.test)
	}
}

func testWalkOrder(t *testing.T) {
	root := musicTree(t,
		"Band/Album/01 One.mp3",
		"Band/Album/02 Two.mp3",
		"Zeta/Album/01 Zed.mp3",
		"Band/notes.txt", // filtered by extension
	)
	reader := stubReader{tags: map[string]map[string]string{
		"01 One.mp3": {"artist": "Band", "title": "One"},
		"02 Two.mp3": {"artist": "Band", "title": "Two"},
		"01 Zed.mp3": {"artist": "Zeta", "title": "Zed"},
	}}

	d, report, err := Build(context.Background(), Options{
		MusicRoot:    root,
		DevicePrefix: "/Music/",
		Reader:       reader,
		Workers:      4,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Walked)
	require.Equal(t, 3, d.Len())

	// Entry order is walk order, not completion order.
	assert.Equal(t, "/Music/Band/Album/01 One.mp3", d.String(0, schema.Filename))
	assert.Equal(t, "/Music/Band/Album/02 Two.mp3", d.String(1, schema.Filename))
	assert.Equal(t, "/Music/Zeta/Album/01 Zed.mp3", d.String(2, schema.Filename))
}

func testSharedStringsIntern(t *testing.T) {
	root := musicTree(t, "Band/a.mp3", "Band/b.mp3")
	reader := stubReader{tags: map[string]map[string]string{
		"a.mp3": {"artist": "Band", "title": "A"},
		"b.mp3": {"artist": "Band", "title": "B"},
	}}

	d, _, err := Build(context.Background(), Options{
		MusicRoot:    root,
		DevicePrefix: "/Music/",
		Reader:       reader,
	})
	require.NoError(t, err)
	require.Equal(t, 2, d.Len())

	// Two files, one artist string, identical refs.
	assert.Equal(t, 1, d.Tables[schema.Artist].Len())
	assert.Equal(t, d.Entries[0].Strings[schema.Artist], d.Entries[1].Strings[schema.Artist])
}

func testGenreCanonicalisation(t *testing.T) {
	root := musicTree(t, "a.mp3", "b.mp3", "c.mp3")
	reader := stubReader{tags: map[string]map[string]string{
		"a.mp3": {"title": "A", "genre": "Alt-Rock"},
		"b.mp3": {"title": "B", "genre": "Alternative Rock"},
		"c.mp3": {"title": "C", "genre": "Rock"},
	}}

	d, _, err := Build(context.Background(), Options{
		MusicRoot:    root,
		DevicePrefix: "/Music/",
		Reader:       reader,
		GenreMap:     metadata.GenreMap{"Alt-Rock": "Rock", "Alternative Rock": "Rock"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, d.Tables[schema.Genre].Len())
	for i := 0; i < 3; i++ {
		assert.Equal(t, "Rock", d.String(i, schema.Genre))
	}
	assert.Equal(t, d.Entries[0].Strings[schema.Genre], d.Entries[1].Strings[schema.Genre])
	assert.Equal(t, d.Entries[1].Strings[schema.Genre], d.Entries[2].Strings[schema.Genre])
}

func testSkipsFailures(t *testing.T) {
	root := musicTree(t, "good.mp3", "corrupt.mp3")
	boom := errors.New("corrupt header")
	reader := stubReader{
		tags: map[string]map[string]string{"good.mp3": {"title": "Good"}},
		fail: map[string]error{"corrupt.mp3": boom},
	}

	d, report, err := Build(context.Background(), Options{
		MusicRoot:    root,
		DevicePrefix: "/Music/",
		Reader:       reader,
	})
	require.NoError(t, err, "per-file failures must not abort the build")
	assert.Equal(t, 1, d.Len())
	require.Len(t, report.Skipped, 1)
	assert.Contains(t, report.Skipped[0].Path, "corrupt.mp3")
	assert.True(t, errors.Is(report.Skipped[0], boom))
}

func testEmptyRoot(t *testing.T) {
	root := t.TempDir()
	d, report, err := Build(context.Background(), Options{
		MusicRoot:    root,
		DevicePrefix: "/Music/",
		Reader:       stubReader{},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, d.Len())
	assert.Equal(t, 0, report.Walked)

	// Written files still carry valid headers at entry_count 0.
	out := t.TempDir()
	require.NoError(t, db.WriteDatabase(d, out, db.WriteOptions{}))
	parsed, err := db.ParseDatabase(out)
	require.NoError(t, err)
	assert.Equal(t, 0, parsed.Len())
}

func testIgnoreFile(t *testing.T) {
	root := musicTree(t, "keep.mp3", "demos/skip.mp3")
	require.NoError(t, os.WriteFile(filepath.Join(root, IgnoreFileName), []byte("demos/\n"), 0o644))

	reader := stubReader{tags: map[string]map[string]string{
		"keep.mp3": {"title": "Keep"},
		"skip.mp3": {"title": "Skip"},
	}}
	d, _, err := Build(context.Background(), Options{
		MusicRoot:    root,
		DevicePrefix: "/Music/",
		Reader:       reader,
	})
	require.NoError(t, err)
	require.Equal(t, 1, d.Len())
	assert.Equal(t, "Keep", d.String(0, schema.Title))
}

func testDeterminism(t *testing.T) {
	root := musicTree(t,
		"Band/Album/01 One.mp3",
		"Band/Album/02 Two.mp3",
		"Zeta/03 Zed.mp3",
	)
	reader := stubReader{tags: map[string]map[string]string{
		"01 One.mp3": {"artist": "Band", "album": "Album", "title": "One", "genre": "Rock"},
		"02 Two.mp3": {"artist": "Band", "album": "Album", "title": "Two", "genre": "Rock"},
		"03 Zed.mp3": {"artist": "Zeta", "title": "Zed"},
	}}
	opts := Options{MusicRoot: root, DevicePrefix: "/Music/", Reader: reader, Workers: 8}

	outA, outB := t.TempDir(), t.TempDir()
	for _, out := range []string{outA, outB} {
		d, _, err := Build(context.Background(), opts)
		require.NoError(t, err)
		require.NoError(t, db.WriteDatabase(d, out, db.WriteOptions{}))
	}

	names := []string{schema.MasterFileName}
	for _, tag := range schema.FileTags() {
		names = append(names, schema.TagFileName(tag))
	}
	for _, name := range names {
		a, err := os.ReadFile(filepath.Join(outA, name))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(outB, name))
		require.NoError(t, err)
		assert.Equal(t, a, b, "two builds of the same tree must emit identical %s", name)
	}
}

func testCancellation(t *testing.T) {
	root := musicTree(t, "a.mp3", "b.mp3")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Build(ctx, Options{
		MusicRoot:    root,
		DevicePrefix: "/Music/",
		Reader:       stubReader{},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
