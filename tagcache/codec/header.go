// Package codec serialises and parses the database files: the per-tag string
// tables and the master index. It works on byte slices; directory-level
// orchestration lives in the db package.
package codec

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/thornview/tagcache/tagcache/binio"
	"github.com/thornview/tagcache/tagcache/schema"
)

var (
	// ErrBadMagic is returned when a file does not open with the
	// database signature.
	ErrBadMagic = errors.New("bad magic in database header")

	// ErrUnsupportedVersion is returned for any schema version other
	// than the one this codec implements.
	ErrUnsupportedVersion = errors.New("unsupported schema version")

	// ErrBrokenRef is returned when a TagRef does not land on a
	// TagString header in the corresponding tag file.
	ErrBrokenRef = errors.New("tag reference does not resolve to a tag string")
)

// Header is the common 20-byte header opening every database file.
type Header struct {
	EntryCount uint32
	DataSize   uint32
	Serial     uint32
}

func writeHeader(e *binio.Emitter, h Header) {
	e.WriteBytes(schema.Magic[:])
	e.WriteU32(schema.Version)
	e.WriteU32(h.EntryCount)
	e.WriteU32(h.DataSize)
	e.WriteU32(h.Serial)
}

func readHeader(c *binio.Cursor) (Header, error) {
	var h Header
	magic, err := c.ReadBytes(len(schema.Magic))
	if err != nil {
		return h, err
	}
	if !bytes.Equal(magic, schema.Magic[:]) {
		return h, fmt.Errorf("got %q, want %q: %w", magic, schema.Magic[:], ErrBadMagic)
	}
	version, err := c.ReadU32()
	if err != nil {
		return h, err
	}
	if version != schema.Version {
		return h, fmt.Errorf("got version %d, want %d: %w", version, schema.Version, ErrUnsupportedVersion)
	}
	if h.EntryCount, err = c.ReadU32(); err != nil {
		return h, err
	}
	if h.DataSize, err = c.ReadU32(); err != nil {
		return h, err
	}
	if h.Serial, err = c.ReadU32(); err != nil {
		return h, err
	}
	return h, nil
}
