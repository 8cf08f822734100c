// Package model holds the parsed or freshly built database in memory.
// Cross-file references are kept arena-style: entries carry small intern ids
// into per-tag string tables, and byte offsets only exist at serialisation
// time. Mutation happens here; the codecs never rewrite what they read.
package model

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/thornview/tagcache/tagcache/schema"
)

// NoString is the in-memory sentinel for an absent string tag, mirroring
// the on-disk NullRef.
const NoString = ^uint32(0)

// Entry is one track. String tags are intern ids into the database's
// per-tag tables; numeric tags are stored directly.
type Entry struct {
	Strings [schema.NumFileTags]uint32
	Numbers [schema.NumNumericTags]uint32
	Flag    uint32
}

// NewEntry returns an entry with every string tag absent and numerics zero.
func NewEntry() Entry {
	var e Entry
	for i := range e.Strings {
		e.Strings[i] = NoString
	}
	return e
}

// StringTable interns the distinct values of one string tag, preserving
// first-seen order. First-seen order is what makes rebuilds byte-identical.
type StringTable struct {
	values []string
	ids    map[string]uint32
}

func NewStringTable() *StringTable {
	return &StringTable{ids: make(map[string]uint32)}
}

// Intern returns the id for s, allocating one on first sight.
func (t *StringTable) Intern(s string) uint32 {
	if id, ok := t.ids[s]; ok {
		return id
	}
	id := uint32(len(t.values))
	t.values = append(t.values, s)
	t.ids[s] = id
	return id
}

// Lookup returns the id for s without allocating.
func (t *StringTable) Lookup(s string) (uint32, bool) {
	id, ok := t.ids[s]
	return id, ok
}

// Value returns the string for an id.
func (t *StringTable) Value(id uint32) string { return t.values[id] }

// Len returns the number of distinct strings.
func (t *StringTable) Len() int { return len(t.values) }

// Values returns the table contents in intern order. Callers must not
// mutate the returned slice.
func (t *StringTable) Values() []string { return t.values }

// Database is the in-memory form of one database directory.
type Database struct {
	Entries []Entry
	Tables  [schema.NumFileTags]*StringTable
	Serial  uint32
}

func New() *Database {
	d := &Database{}
	for i := range d.Tables {
		d.Tables[i] = NewStringTable()
	}
	return d
}

// Len returns the number of entries.
func (d *Database) Len() int { return len(d.Entries) }

// String returns entry i's value for a string tag, or "" when absent.
func (d *Database) String(i int, tag schema.Tag) string {
	id := d.Entries[i].Strings[tag]
	if id == NoString {
		return ""
	}
	return d.Tables[tag].Value(id)
}

// SetString replaces entry i's value for a string tag, interning the value
// on miss. The empty string clears the tag.
func (d *Database) SetString(i int, tag schema.Tag, value string) {
	if value == "" {
		d.Entries[i].Strings[tag] = NoString
		return
	}
	d.Entries[i].Strings[tag] = d.Tables[tag].Intern(value)
}

// Number returns entry i's value for a numeric tag.
func (d *Database) Number(i int, tag schema.Tag) uint32 {
	return d.Entries[i].Numbers[tag.NumericIndex()]
}

// SetNumber replaces entry i's value for a numeric tag.
func (d *Database) SetNumber(i int, tag schema.Tag, v uint32) {
	d.Entries[i].Numbers[tag.NumericIndex()] = v
}

// RewriteTag repoints every entry whose tag value equals old onto new,
// returning the number of entries touched. Genre canonicalisation after the
// fact is the expected caller. The old string stays in the table until
// Prune drops it.
func (d *Database) RewriteTag(tag schema.Tag, old, new string) int {
	oldID, ok := d.Tables[tag].Lookup(old)
	if !ok {
		return 0
	}
	newID := NoString
	if new != "" {
		newID = d.Tables[tag].Intern(new)
	}
	touched := 0
	for i := range d.Entries {
		if d.Entries[i].Strings[tag] == oldID {
			d.Entries[i].Strings[tag] = newID
			touched++
		}
	}
	return touched
}

// Prune drops strings no entry references from every tag table, remapping
// entry ids onto the compacted tables. Survivors keep their relative order,
// so pruning never perturbs serialisation of what remains. Returns the
// number of strings dropped.
func (d *Database) Prune() int {
	dropped := 0
	for tag := 0; tag < schema.NumFileTags; tag++ {
		table := d.Tables[tag]
		if table.Len() == 0 {
			continue
		}

		referenced := roaring.New()
		for i := range d.Entries {
			if id := d.Entries[i].Strings[tag]; id != NoString {
				referenced.Add(id)
			}
		}
		if int(referenced.GetCardinality()) == table.Len() {
			continue
		}

		compacted := NewStringTable()
		remap := make(map[uint32]uint32, referenced.GetCardinality())
		for id := uint32(0); id < uint32(table.Len()); id++ {
			if referenced.Contains(id) {
				remap[id] = compacted.Intern(table.Value(id))
			}
		}
		for i := range d.Entries {
			if id := d.Entries[i].Strings[tag]; id != NoString {
				d.Entries[i].Strings[tag] = remap[id]
			}
		}
		dropped += table.Len() - compacted.Len()
		d.Tables[tag] = compacted
	}
	return dropped
}
