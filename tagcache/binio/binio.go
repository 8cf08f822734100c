// Package binio provides the fixed-width primitives the database codecs are
// built on: a bounds-checked read cursor and an offset-tracking emitter, both
// parameterised by byte order. Only the little-endian order is exercised by
// the supported build; the parameter keeps an alternate-endian target a
// configuration rather than a fork.
package binio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrTruncated is returned when a read would run past the end of the buffer.
var ErrTruncated = errors.New("truncated: read past end of buffer")

type byteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// Order selects the byte order for all integer encoding.
type Order struct {
	bo byteOrder
}

// LittleEndian is the only order the supported build uses.
var LittleEndian = Order{bo: binary.LittleEndian}

// BigEndian exists so big-endian targets stay a configuration.
var BigEndian = Order{bo: binary.BigEndian}

// Cursor reads fixed-width values from a byte slice, tracking its position.
type Cursor struct {
	buf []byte
	off int
	ord Order
}

// NewCursor returns a cursor over buf starting at offset 0.
func NewCursor(buf []byte, ord Order) *Cursor {
	return &Cursor{buf: buf, ord: ord}
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.buf) - c.off }

// Offset returns the current read position from the start of the buffer.
func (c *Cursor) Offset() int { return c.off }

func (c *Cursor) need(n int) error {
	if c.Remaining() < n {
		return fmt.Errorf("need %d bytes at offset %d, have %d: %w",
			n, c.off, c.Remaining(), ErrTruncated)
	}
	return nil
}

// ReadBytes consumes and returns the next n bytes.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b, nil
}

// Skip advances the cursor by n bytes.
func (c *Cursor) Skip(n int) error {
	if err := c.need(n); err != nil {
		return err
	}
	c.off += n
	return nil
}

func (c *Cursor) ReadU8() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	v := c.buf[c.off]
	c.off++
	return v, nil
}

func (c *Cursor) ReadU16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := c.ord.bo.Uint16(c.buf[c.off:])
	c.off += 2
	return v, nil
}

func (c *Cursor) ReadU32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := c.ord.bo.Uint32(c.buf[c.off:])
	c.off += 4
	return v, nil
}

func (c *Cursor) ReadU64() (uint64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	v := c.ord.bo.Uint64(c.buf[c.off:])
	c.off += 8
	return v, nil
}

func (c *Cursor) ReadI8() (int8, error) {
	v, err := c.ReadU8()
	return int8(v), err
}

func (c *Cursor) ReadI16() (int16, error) {
	v, err := c.ReadU16()
	return int16(v), err
}

func (c *Cursor) ReadI32() (int32, error) {
	v, err := c.ReadU32()
	return int32(v), err
}

func (c *Cursor) ReadI64() (int64, error) {
	v, err := c.ReadU64()
	return int64(v), err
}

// ReadPadded consumes a fixed-width NUL-padded buffer and returns the
// content up to the first NUL. The full width is always consumed.
func (c *Cursor) ReadPadded(width int) ([]byte, error) {
	raw, err := c.ReadBytes(width)
	if err != nil {
		return nil, err
	}
	for i, b := range raw {
		if b == 0 {
			return raw[:i], nil
		}
	}
	return raw, nil
}

// Emitter builds a byte buffer, tracking the current offset so callers can
// record positions for cross-file references and back-patch them later.
type Emitter struct {
	buf []byte
	ord Order
}

// NewEmitter returns an empty emitter.
func NewEmitter(ord Order) *Emitter {
	return &Emitter{ord: ord}
}

// Offset returns the number of bytes emitted so far.
func (e *Emitter) Offset() int { return len(e.buf) }

// Bytes returns the emitted buffer. The emitter retains ownership; callers
// must copy if they keep writing.
func (e *Emitter) Bytes() []byte { return e.buf }

func (e *Emitter) WriteBytes(b []byte) {
	e.buf = append(e.buf, b...)
}

func (e *Emitter) WriteU8(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *Emitter) WriteU16(v uint16) {
	e.buf = e.ord.bo.AppendUint16(e.buf, v)
}

func (e *Emitter) WriteU32(v uint32) {
	e.buf = e.ord.bo.AppendUint32(e.buf, v)
}

func (e *Emitter) WriteU64(v uint64) {
	e.buf = e.ord.bo.AppendUint64(e.buf, v)
}

func (e *Emitter) WriteI8(v int8)   { e.WriteU8(uint8(v)) }
func (e *Emitter) WriteI16(v int16) { e.WriteU16(uint16(v)) }
func (e *Emitter) WriteI32(v int32) { e.WriteU32(uint32(v)) }
func (e *Emitter) WriteI64(v int64) { e.WriteU64(uint64(v)) }

// WritePadded writes b NUL-padded to width bytes. b must fit.
func (e *Emitter) WritePadded(b []byte, width int) {
	if len(b) > width {
		panic(fmt.Sprintf("binio: padded write of %d bytes into width %d", len(b), width))
	}
	e.buf = append(e.buf, b...)
	for i := len(b); i < width; i++ {
		e.buf = append(e.buf, 0)
	}
}

// PatchU32 overwrites a previously emitted u32 at off.
func (e *Emitter) PatchU32(off int, v uint32) error {
	if off < 0 || off+4 > len(e.buf) {
		return fmt.Errorf("patch at offset %d outside emitted %d bytes: %w",
			off, len(e.buf), ErrTruncated)
	}
	e.ord.bo.PutUint32(e.buf[off:], v)
	return nil
}
