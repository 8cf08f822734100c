package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thornview/tagcache/tagcache/model"
	"github.com/thornview/tagcache/tagcache/schema"
)

func track(d *model.Database, filename string) int {
	d.Entries = append(d.Entries, model.NewEntry())
	i := d.Len() - 1
	d.SetString(i, schema.Filename, filename)
	d.SetString(i, schema.Title, "t")
	return i
}

func TestStats(t *testing.T) {
	tests := []struct {
		name string
		test func(t *testing.T)
	}{
		{"CopiesCounters", testCopiesCounters},
		{"UnmatchedKeepZeros", testUnmatchedKeepZeros},
		{"DuplicatesFirstWins", testDuplicatesFirstWins},
		{"LeavesOtherFieldsAlone", testLeavesOtherFieldsAlone},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.test)
	}
}

func testCopiesCounters(t *testing.T) {
	old := model.New()
	i := track(old, "/Music/A.mp3")
	old.SetNumber(i, schema.PlayCount, 12)
	old.SetNumber(i, schema.Rating, 4)
	old.SetNumber(i, schema.PlayTime, 3600)
	old.SetNumber(i, schema.LastPlayed, 1700000000)
	old.SetNumber(i, schema.CommitID, 2)

	fresh := model.New()
	j := track(fresh, "/Music/A.mp3")

	res := Stats(old, fresh)
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, 0, res.Missed)

	assert.Equal(t, uint32(12), fresh.Number(j, schema.PlayCount))
	assert.Equal(t, uint32(4), fresh.Number(j, schema.Rating))
	assert.Equal(t, uint32(3600), fresh.Number(j, schema.PlayTime))
	assert.Equal(t, uint32(1700000000), fresh.Number(j, schema.LastPlayed))
	assert.Equal(t, uint32(2), fresh.Number(j, schema.CommitID))
}

func testUnmatchedKeepZeros(t *testing.T) {
	old := model.New()
	i := track(old, "/Music/gone.mp3")
	old.SetNumber(i, schema.PlayCount, 99)

	fresh := model.New()
	j := track(fresh, "/Music/new.mp3")

	res := Stats(old, fresh)
	assert.Equal(t, 0, res.Matched)
	assert.Equal(t, 1, res.Missed)
	assert.Equal(t, uint32(0), fresh.Number(j, schema.PlayCount))
}

func testDuplicatesFirstWins(t *testing.T) {
	old := model.New()
	a := track(old, "/Music/dup.mp3")
	b := track(old, "/Music/dup.mp3")
	old.SetNumber(a, schema.PlayCount, 1)
	old.SetNumber(b, schema.PlayCount, 2)

	fresh := model.New()
	x := track(fresh, "/Music/dup.mp3")
	y := track(fresh, "/Music/dup.mp3")

	res := Stats(old, fresh)
	require.Equal(t, 1, res.DuplicatesOld)
	require.Equal(t, 1, res.DuplicatesNew)
	assert.Equal(t, 1, res.Matched)

	// First old occurrence supplies the stats; only the first new
	// occurrence receives them.
	assert.Equal(t, uint32(1), fresh.Number(x, schema.PlayCount))
	assert.Equal(t, uint32(0), fresh.Number(y, schema.PlayCount))
}

func testLeavesOtherFieldsAlone(t *testing.T) {
	old := model.New()
	i := track(old, "/Music/A.mp3")
	old.SetNumber(i, schema.PlayCount, 7)
	old.SetNumber(i, schema.Year, 1999)
	old.SetString(i, schema.Artist, "Old Artist")

	fresh := model.New()
	j := track(fresh, "/Music/A.mp3")
	fresh.SetNumber(j, schema.Year, 2024)
	fresh.SetString(j, schema.Artist, "New Artist")

	Stats(old, fresh)
	assert.Equal(t, uint32(7), fresh.Number(j, schema.PlayCount))
	// Non-statistic fields stay as built.
	assert.Equal(t, uint32(2024), fresh.Number(j, schema.Year))
	assert.Equal(t, "New Artist", fresh.String(j, schema.Artist))
}
