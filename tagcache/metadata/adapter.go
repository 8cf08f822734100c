package metadata

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/thornview/tagcache/tagcache/schema"
)

// Record is a partially populated entry for one track: string tags by
// value (empty means absent), numeric tags zero-initialised then filled
// from the reader. The indexer interns it into the database proper.
type Record struct {
	Strings [schema.NumFileTags]string
	Numbers [schema.NumNumericTags]uint32
	Flag    uint32
}

// PathRewrite maps a host-local path to the path the device sees: strip
// the host prefix, prepend the device prefix, forward slashes throughout.
type PathRewrite struct {
	HostPrefix   string
	DevicePrefix string
}

// Apply rewrites one host path.
func (r PathRewrite) Apply(path string) string {
	p := filepath.ToSlash(path)
	host := filepath.ToSlash(r.HostPrefix)
	p = strings.TrimPrefix(p, host)
	p = strings.TrimPrefix(p, "/")
	device := strings.TrimSuffix(filepath.ToSlash(r.DevicePrefix), "/")
	return device + "/" + p
}

// Adapter normalises raw readings into Records.
type Adapter struct {
	Reader  Reader
	Rewrite PathRewrite
	Genres  GenreMap
}

// Extract reads path and produces its Record. Per-file failures come back
// as errors for the pipeline's side channel; the adapter never fabricates
// a record for an unreadable file.
func (a *Adapter) Extract(path string) (*Record, error) {
	raw, err := a.Reader.Read(path)
	if err != nil {
		return nil, err
	}
	return a.Normalize(path, raw), nil
}

// Normalize maps one raw tag bag onto the record shape.
func (a *Adapter) Normalize(path string, raw *Raw) *Record {
	rec := &Record{}

	rec.Strings[schema.Artist] = raw.Tags["artist"]
	rec.Strings[schema.Album] = raw.Tags["album"]
	rec.Strings[schema.Genre] = a.Genres.Canonical(raw.Tags["genre"])
	rec.Strings[schema.Composer] = raw.Tags["composer"]
	rec.Strings[schema.Comment] = raw.Tags["comment"]
	rec.Strings[schema.AlbumArtist] = raw.Tags["albumartist"]
	rec.Strings[schema.Grouping] = raw.Tags["grouping"]
	rec.Strings[schema.Filename] = a.Rewrite.Apply(path)

	title := raw.Tags["title"]
	if title == "" {
		// The device is unusable without a title column; fall back to
		// the bare file name.
		base := filepath.Base(path)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	rec.Strings[schema.Title] = title

	setNum := func(t schema.Tag, v uint32) { rec.Numbers[t.NumericIndex()] = v }
	setNum(schema.Year, parseUint(raw.Tags["year"]))
	setNum(schema.DiscNumber, parseUint(raw.Tags["discnumber"]))
	setNum(schema.Bitrate, raw.Props.Bitrate)
	setNum(schema.Length, raw.Props.LengthMS)
	setNum(schema.MTime, raw.Props.MTime)

	track := parseUint(raw.Tags["tracknumber"])
	if track == 0 {
		if n := trackFromFilename(path); n != 0 {
			track = n
			rec.Flag |= schema.FlagTrkNumGen
		}
	}
	setNum(schema.TrackNumber, track)

	return rec
}

func parseUint(s string) uint32 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	// "2020-05-01" dates and "3/12" track counts both carry the value
	// up front; cut at the first non-digit.
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	v, err := strconv.ParseUint(s[:end], 10, 32)
	if err != nil {
		return 0
	}
	return uint32(v)
}

// trackFromFilename recovers a leading track number from names like
// "07 Song.mp3" or "07-Song.flac".
func trackFromFilename(path string) uint32 {
	base := filepath.Base(path)
	end := 0
	for end < len(base) && base[end] >= '0' && base[end] <= '9' {
		end++
	}
	if end == 0 || end > 3 {
		return 0
	}
	if end == len(base) {
		return 0
	}
	switch base[end] {
	case ' ', '-', '.', '_':
		v, err := strconv.ParseUint(base[:end], 10, 32)
		if err != nil {
			return 0
		}
		return uint32(v)
	}
	return 0
}
