// Package migrate transplants runtime statistics from an old database onto
// a freshly built one. Matching is by device-visible filename, which is
// brittle against moves and retags; that limitation is accepted.
package migrate

import (
	radix "github.com/armon/go-radix"

	internal "github.com/thornview/tagcache/tagcache"
	"github.com/thornview/tagcache/tagcache/model"
	"github.com/thornview/tagcache/tagcache/schema"
)

// statTags are the runtime counters carried across a rebuild.
var statTags = []schema.Tag{
	schema.PlayCount,
	schema.Rating,
	schema.PlayTime,
	schema.LastPlayed,
	schema.CommitID,
}

// Result summarises one migration.
type Result struct {
	Matched       int
	Missed        int // fresh entries with no old counterpart; zeros kept
	DuplicatesOld int // old filenames seen more than once; first wins
	DuplicatesNew int
}

// Stats copies the runtime counters from old onto every entry of fresh
// whose filename matches. fresh is mutated in place. Duplicate filenames
// on either side resolve to the first occurrence in iteration order, with
// a warning per duplicate.
func Stats(old, fresh *model.Database) *Result {
	log := internal.GetLogger()
	res := &Result{}

	byFilename := radix.New()
	for i := range old.Entries {
		fn := old.String(i, schema.Filename)
		if fn == "" {
			continue
		}
		if _, ok := byFilename.Get(fn); ok {
			res.DuplicatesOld++
			log.Warn().Str("filename", fn).Msg("duplicate filename in old database, keeping first")
			continue
		}
		byFilename.Insert(fn, i)
	}

	seen := make(map[string]bool, len(fresh.Entries))
	for i := range fresh.Entries {
		fn := fresh.String(i, schema.Filename)
		if fn == "" {
			res.Missed++
			continue
		}
		if seen[fn] {
			res.DuplicatesNew++
			log.Warn().Str("filename", fn).Msg("duplicate filename in new database, stats copied to first only")
			continue
		}
		seen[fn] = true

		v, ok := byFilename.Get(fn)
		if !ok {
			res.Missed++
			continue
		}
		oldIdx := v.(int)
		for _, tag := range statTags {
			fresh.SetNumber(i, tag, old.Number(oldIdx, tag))
		}
		res.Matched++
	}

	log.Info().
		Int("matched", res.Matched).
		Int("missed", res.Missed).
		Msg("statistics migrated")
	return res
}
