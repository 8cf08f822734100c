package codec

import (
	"fmt"

	"github.com/thornview/tagcache/tagcache/binio"
	"github.com/thornview/tagcache/tagcache/schema"
)

// RawEntry is one master-index record as it appears on disk: every field a
// u32 in canonical order. String-tag fields are TagRefs (offsets into the
// tag file, or schema.NullRef); numeric fields are the values themselves.
type RawEntry struct {
	Seeks [schema.NumTags]uint32
	Flag  uint32
}

// EntryOffset returns the file offset of master entry i. TagString
// back-references are expressed in these offsets.
func EntryOffset(i int) uint32 {
	return uint32(schema.HeaderSize + i*schema.EntrySize)
}

// WriteMaster serialises the master index. Entries must be finalised:
// every string-tag seek is either a patched tag-file offset or NullRef.
func WriteMaster(ord binio.Order, entries []RawEntry, serial uint32) []byte {
	e := binio.NewEmitter(ord)
	writeHeader(e, Header{
		EntryCount: uint32(len(entries)),
		DataSize:   uint32(len(entries) * schema.EntrySize),
		Serial:     serial,
	})
	for _, ent := range entries {
		for _, seek := range ent.Seeks {
			e.WriteU32(seek)
		}
		e.WriteU32(ent.Flag)
	}
	return e.Bytes()
}

// ReadMaster parses the master index, validating the schema version and the
// recorded sizes. TagRefs come back as raw offsets; resolving them against
// parsed tag files is the caller's second pass.
func ReadMaster(ord binio.Order, buf []byte) (Header, []RawEntry, error) {
	c := binio.NewCursor(buf, ord)
	h, err := readHeader(c)
	if err != nil {
		return h, nil, err
	}
	if want := uint32(int(h.EntryCount) * schema.EntrySize); h.DataSize != want {
		return h, nil, fmt.Errorf("master data_size %d does not cover %d entries (want %d)",
			h.DataSize, h.EntryCount, want)
	}

	entries := make([]RawEntry, h.EntryCount)
	for i := range entries {
		for f := 0; f < schema.NumTags; f++ {
			if entries[i].Seeks[f], err = c.ReadU32(); err != nil {
				return h, nil, fmt.Errorf("master entry %d field %s: %w", i, schema.Tag(f), err)
			}
		}
		if entries[i].Flag, err = c.ReadU32(); err != nil {
			return h, nil, fmt.Errorf("master entry %d flags: %w", i, err)
		}
	}
	return h, entries, nil
}
