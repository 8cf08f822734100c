// Package db reads and writes whole database directories, joining the
// master-index and tag-file codecs against the in-memory model.
package db

import (
	"fmt"
	"os"
	"path/filepath"

	internal "github.com/thornview/tagcache/tagcache"
	"github.com/thornview/tagcache/tagcache/binio"
	"github.com/thornview/tagcache/tagcache/codec"
	"github.com/thornview/tagcache/tagcache/model"
	"github.com/thornview/tagcache/tagcache/schema"
)

// WriteOptions controls serialisation.
type WriteOptions struct {
	// Serial is stamped into every file header. Zero keeps the database's
	// current serial; rebuild determinism requires holding it fixed.
	Serial uint32
}

// ParseDatabase reconstructs the in-memory model from a database directory.
// Parse errors are fatal; a database that fails any structural check is
// rejected whole.
func ParseDatabase(dir string) (*model.Database, error) {
	masterPath := filepath.Join(dir, schema.MasterFileName)
	masterBuf, err := os.ReadFile(masterPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", masterPath, err)
	}
	header, raws, err := codec.ReadMaster(binio.LittleEndian, masterBuf)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", masterPath, err)
	}

	d := model.New()
	d.Serial = header.Serial

	tables := make([]*codec.TagTable, schema.NumFileTags)
	for _, tag := range schema.FileTags() {
		path := filepath.Join(dir, schema.TagFileName(tag))
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		table, err := codec.ReadTagFile(binio.LittleEndian, buf)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		tables[tag] = table

		// Intern in file order so intern ids equal file positions and a
		// parse→write round trip reproduces the bytes.
		for _, s := range table.Strings {
			d.Tables[tag].Intern(string(s.Data))
		}
	}

	for i, raw := range raws {
		entry := model.NewEntry()
		for _, tag := range schema.FileTags() {
			off := raw.Seeks[tag]
			// Offset 0 in the wild means "no data"; the header sits there.
			if off == schema.NullRef || off == 0 {
				continue
			}
			idx, ok := tables[tag].IndexAtOffset(off)
			if !ok {
				return nil, fmt.Errorf("entry %d tag %s offset %#x: %w",
					i, tag, off, codec.ErrBrokenRef)
			}
			entry.Strings[tag] = uint32(idx)
		}
		for _, tag := range schema.NumericTags() {
			entry.Numbers[tag.NumericIndex()] = raw.Seeks[tag]
		}
		entry.Flag = raw.Flag
		d.Entries = append(d.Entries, entry)
	}
	return d, nil
}

// WriteDatabase serialises d into dir. Tag files are laid out first so
// their offsets exist before the master index is flushed; unreferenced
// strings are pruned beforehand. A write error aborts; the directory must
// then be treated as invalid by callers.
func WriteDatabase(d *model.Database, dir string, opts WriteOptions) error {
	log := internal.GetLogger()

	serial := d.Serial
	if opts.Serial != 0 {
		serial = opts.Serial
	}

	if pruned := d.Prune(); pruned > 0 {
		log.Debug().Int("strings", pruned).Msg("pruned unreferenced tag strings")
	}

	// Per-tag layout: serialise each string table, remembering where every
	// string lands, plus the master offset of the first entry referencing
	// it (the TagString back-reference).
	offsets := make([][]uint32, schema.NumFileTags)
	for _, tag := range schema.FileTags() {
		table := d.Tables[tag]

		backRefs := make([]uint32, table.Len())
		for i := range backRefs {
			backRefs[i] = schema.NullRef
		}
		for i := range d.Entries {
			if id := d.Entries[i].Strings[tag]; id != model.NoString && backRefs[id] == schema.NullRef {
				backRefs[id] = codec.EntryOffset(i)
			}
		}

		strings := make([]codec.TagString, table.Len())
		for i, v := range table.Values() {
			strings[i] = codec.TagString{Data: []byte(v), IndexPos: backRefs[i]}
		}

		buf, offs, err := codec.WriteTagFile(binio.LittleEndian, strings, serial)
		if err != nil {
			return fmt.Errorf("serialise %s: %w", schema.TagFileName(tag), err)
		}
		offsets[tag] = offs

		path := filepath.Join(dir, schema.TagFileName(tag))
		if err := os.WriteFile(path, buf, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}

	// With tag files sized and placed, patch the refs and flush the index.
	raws := make([]codec.RawEntry, len(d.Entries))
	for i, e := range d.Entries {
		for _, tag := range schema.FileTags() {
			if id := e.Strings[tag]; id != model.NoString {
				raws[i].Seeks[tag] = offsets[tag][id]
			} else {
				raws[i].Seeks[tag] = schema.NullRef
			}
		}
		for _, tag := range schema.NumericTags() {
			raws[i].Seeks[tag] = e.Numbers[tag.NumericIndex()]
		}
		raws[i].Flag = e.Flag
	}

	masterPath := filepath.Join(dir, schema.MasterFileName)
	if err := os.WriteFile(masterPath, codec.WriteMaster(binio.LittleEndian, raws, serial), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", masterPath, err)
	}

	log.Info().
		Int("entries", d.Len()).
		Uint32("serial", serial).
		Str("dir", dir).
		Msg("database written")
	return nil
}
