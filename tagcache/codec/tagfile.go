package codec

import (
	"bytes"
	"fmt"

	"github.com/thornview/tagcache/tagcache/binio"
	"github.com/thornview/tagcache/tagcache/schema"
)

// TagString is one record of a tag file: the string bytes and the
// master-index offset of an Entry that references it.
type TagString struct {
	Data     []byte
	IndexPos uint32
}

// TagTable is a parsed tag file: its strings in file order plus an
// offset index so master-index TagRefs can be resolved against it.
type TagTable struct {
	Header   Header
	Strings  []TagString
	Offsets  []uint32       // Offsets[i] is the file offset of Strings[i]
	byOffset map[uint32]int // file offset -> index into Strings
}

// AtOffset resolves a TagRef against the table.
func (t *TagTable) AtOffset(off uint32) (TagString, bool) {
	i, ok := t.byOffset[off]
	if !ok {
		return TagString{}, false
	}
	return t.Strings[i], true
}

// IndexAtOffset returns the file-order index of the string at off.
func (t *TagTable) IndexAtOffset(off uint32) (int, bool) {
	i, ok := t.byOffset[off]
	return i, ok
}

// PaddedLen returns the stored length of a string payload of n content
// bytes: NUL terminator added, then padded to the alignment unit.
func PaddedLen(n int) int {
	return (n + 1 + schema.Alignment - 1) &^ (schema.Alignment - 1)
}

// WriteTagFile serialises the given strings back-to-back after a file
// header, and returns the encoded file together with the offset each
// string landed at. Strings must already be unique; the codec does not
// re-intern. Empty strings are rejected — an absent value is an Entry-side
// sentinel, never a record.
func WriteTagFile(ord binio.Order, strings []TagString, serial uint32) ([]byte, []uint32, error) {
	dataSize := 0
	for i, s := range strings {
		if len(s.Data) == 0 {
			return nil, nil, fmt.Errorf("tag string %d is empty", i)
		}
		if bytes.IndexByte(s.Data, 0) >= 0 {
			return nil, nil, fmt.Errorf("tag string %d contains NUL", i)
		}
		dataSize += 8 + PaddedLen(len(s.Data))
	}

	e := binio.NewEmitter(ord)
	writeHeader(e, Header{
		EntryCount: uint32(len(strings)),
		DataSize:   uint32(dataSize),
		Serial:     serial,
	})

	offsets := make([]uint32, len(strings))
	for i, s := range strings {
		offsets[i] = uint32(e.Offset())
		padded := PaddedLen(len(s.Data))
		e.WriteU32(uint32(padded))
		e.WriteU32(s.IndexPos)
		e.WritePadded(s.Data, padded)
	}
	return e.Bytes(), offsets, nil
}

// ReadTagFile parses a tag file, walking forward one TagString at a time
// until the recorded entry count is consumed.
func ReadTagFile(ord binio.Order, buf []byte) (*TagTable, error) {
	c := binio.NewCursor(buf, ord)
	h, err := readHeader(c)
	if err != nil {
		return nil, err
	}

	table := &TagTable{
		Header:   h,
		Strings:  make([]TagString, 0, h.EntryCount),
		Offsets:  make([]uint32, 0, h.EntryCount),
		byOffset: make(map[uint32]int, h.EntryCount),
	}

	for i := uint32(0); i < h.EntryCount; i++ {
		off := uint32(c.Offset())
		length, err := c.ReadU32()
		if err != nil {
			return nil, fmt.Errorf("tag string %d at offset %d: %w", i, off, err)
		}
		if length == 0 || length%schema.Alignment != 0 {
			return nil, fmt.Errorf("tag string %d has byte_length %d, want positive multiple of %d",
				i, length, schema.Alignment)
		}
		indexPos, err := c.ReadU32()
		if err != nil {
			return nil, fmt.Errorf("tag string %d at offset %d: %w", i, off, err)
		}
		// Round-trip the content bytes faithfully: trim at the first
		// NUL, no semantic interpretation (comment tags in the wild
		// are known to hold oddities).
		data, err := c.ReadPadded(int(length))
		if err != nil {
			return nil, fmt.Errorf("tag string %d at offset %d: %w", i, off, err)
		}
		table.byOffset[off] = len(table.Strings)
		table.Strings = append(table.Strings, TagString{
			Data:     append([]byte(nil), data...),
			IndexPos: indexPos,
		})
		table.Offsets = append(table.Offsets, off)
	}

	if got := uint32(c.Offset() - schema.HeaderSize); got != h.DataSize {
		return nil, fmt.Errorf("tag file body is %d bytes, header says %d", got, h.DataSize)
	}
	return table, nil
}
