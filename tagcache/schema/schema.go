// Package schema declares the on-disk vocabulary of the schema 4.0 tagcache
// database: the closed tag enumeration, the canonical Entry field order, the
// header geometry shared by every database file, and the flags word bits.
// Every other package consults this table instead of hard-coding layout.
package schema

import "fmt"

// Tag identifies one column of the database. The integer value of a string
// tag doubles as its tag-file number on disk (database_<n>.tcd).
type Tag int

const (
	Artist Tag = iota
	Album
	Genre
	Title
	Filename
	Composer
	Comment
	AlbumArtist
	Grouping
	Year
	DiscNumber
	TrackNumber
	Bitrate
	Length
	PlayCount
	Rating
	PlayTime
	LastPlayed
	CommitID
	MTime

	tagCount
)

const (
	// NumTags is the number of columns in an Entry, flags word excluded.
	NumTags = int(tagCount)

	// NumFileTags is the number of string-valued tags, each backed by its
	// own tag file. String tags occupy ids [0, NumFileTags).
	NumFileTags = int(Grouping) + 1

	// NumNumericTags is the number of values embedded directly in an Entry.
	NumNumericTags = NumTags - NumFileTags
)

// Version is the only schema version this codec reads or writes.
const Version = 4

// Magic is the four-byte signature opening every database file.
var Magic = [4]byte{'T', 'C', 'D', 'B'}

const (
	// HeaderSize is the size of the common file header:
	// magic, version, entry_count, data_size, serial.
	HeaderSize = 20

	// EntrySize is the serialised size of one master-index Entry:
	// NumTags u32 fields plus the flags word.
	EntrySize = NumTags*4 + 4

	// Alignment is the unit TagString payloads are NUL-padded to.
	Alignment = 4
)

// NullRef is the TagRef sentinel meaning "no value". The empty string is
// never written as a TagString; an absent string tag serialises as NullRef.
// Offset 0 read from a foreign database is normalised to NullRef as well,
// since the file header occupies offset 0 and no TagString can live there.
const NullRef = uint32(0xFFFFFFFF)

// Flags word bits, as understood by the device firmware.
const (
	FlagDeleted     = uint32(0x0001)
	FlagDirCache    = uint32(0x0002)
	FlagDirtyNum    = uint32(0x0004)
	FlagTrkNumGen   = uint32(0x0008)
	FlagResurrected = uint32(0x0010)
)

// MasterFileName is the master index file inside a database directory.
const MasterFileName = "database_idx.tcd"

var names = [NumTags]string{
	"artist", "album", "genre", "title", "filename",
	"composer", "comment", "albumartist", "grouping",
	"year", "discnumber", "tracknumber", "bitrate", "length",
	"playcount", "rating", "playtime", "lastplayed", "commitid", "mtime",
}

func (t Tag) String() string {
	if !t.Valid() {
		return fmt.Sprintf("tag(%d)", int(t))
	}
	return names[t]
}

// Valid reports whether t is a column the schema knows about.
func (t Tag) Valid() bool { return t >= 0 && t < tagCount }

// IsString reports whether t is backed by a tag file rather than embedded.
func (t Tag) IsString() bool { return t >= 0 && int(t) < NumFileTags }

// NumericIndex returns t's slot in an Entry's numeric block.
// Panics on string tags; callers index by schema, not by user input.
func (t Tag) NumericIndex() int {
	if t.IsString() || !t.Valid() {
		panic(fmt.Sprintf("schema: %v is not a numeric tag", t))
	}
	return int(t) - NumFileTags
}

// TagFileName returns the on-disk file name holding t's string table.
func TagFileName(t Tag) string {
	if !t.IsString() {
		panic(fmt.Sprintf("schema: %v has no tag file", t))
	}
	return fmt.Sprintf("database_%d.tcd", int(t))
}

// FileTags returns the string tags in canonical order.
func FileTags() []Tag {
	tags := make([]Tag, NumFileTags)
	for i := range tags {
		tags[i] = Tag(i)
	}
	return tags
}

// NumericTags returns the embedded numeric tags in canonical order.
func NumericTags() []Tag {
	tags := make([]Tag, NumNumericTags)
	for i := range tags {
		tags[i] = Tag(NumFileTags + i)
	}
	return tags
}

// ParseTag maps a display name back to its Tag id.
func ParseTag(name string) (Tag, bool) {
	for i, n := range names {
		if n == name {
			return Tag(i), true
		}
	}
	return 0, false
}

// FlagNames expands a flags word into human-readable bit names.
func FlagNames(flag uint32) []string {
	var out []string
	for _, f := range []struct {
		bit  uint32
		name string
	}{
		{FlagDeleted, "DELETED"},
		{FlagDirCache, "DIRCACHE"},
		{FlagDirtyNum, "DIRTYNUM"},
		{FlagTrkNumGen, "TRKNUMGEN"},
		{FlagResurrected, "RESURRECTED"},
	} {
		if flag&f.bit != 0 {
			out = append(out, f.name)
		}
	}
	return out
}
