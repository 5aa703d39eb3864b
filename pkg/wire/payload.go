package wire

import (
	"bytes"
	"encoding/binary"

	"github.com/go-faster/errors"
)

// Decoder reads width-exact big-endian scalars from an in-memory payload.
// Every accessor fails with ErrTruncated instead of reading past the end.
type Decoder struct {
	b   []byte
	off int
}

// NewDecoder returns a Decoder positioned at the start of b.
func NewDecoder(b []byte) *Decoder {
	return &Decoder{b: b}
}

// Offset returns the number of bytes consumed.
func (d *Decoder) Offset() int { return d.off }

// Remaining returns the number of unconsumed bytes.
func (d *Decoder) Remaining() int { return len(d.b) - d.off }

func (d *Decoder) take(n int) ([]byte, error) {
	if n < 0 || d.Remaining() < n {
		return nil, errors.Wrapf(ErrTruncated, "need %d bytes at offset %d, have %d", n, d.off, d.Remaining())
	}
	b := d.b[d.off : d.off+n]
	d.off += n
	return b, nil
}

// Bytes consumes the next n bytes. The returned slice aliases the payload.
func (d *Decoder) Bytes(n int) ([]byte, error) {
	return d.take(n)
}

// Rest consumes everything that is left.
func (d *Decoder) Rest() []byte {
	b := d.b[d.off:]
	d.off = len(d.b)
	return b
}

// Skip consumes n bytes without returning them.
func (d *Decoder) Skip(n int) error {
	_, err := d.take(n)
	return err
}

// Uint8 consumes an unsigned 8-bit integer.
func (d *Decoder) Uint8() (uint8, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Int8 consumes a signed 8-bit integer.
func (d *Decoder) Int8() (int8, error) {
	v, err := d.Uint8()
	return int8(v), err
}

// Uint16 consumes a big-endian unsigned 16-bit integer.
func (d *Decoder) Uint16() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// Int16 consumes a big-endian signed 16-bit integer.
func (d *Decoder) Int16() (int16, error) {
	v, err := d.Uint16()
	return int16(v), err
}

// Uint32 consumes a big-endian unsigned 32-bit integer.
func (d *Decoder) Uint32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// Int32 consumes a big-endian signed 32-bit integer.
func (d *Decoder) Int32() (int32, error) {
	v, err := d.Uint32()
	return int32(v), err
}

// Uint64 consumes a big-endian unsigned 64-bit integer.
func (d *Decoder) Uint64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// Int64 consumes a big-endian signed 64-bit integer.
func (d *Decoder) Int64() (int64, error) {
	v, err := d.Uint64()
	return int64(v), err
}

// String consumes a fixed n-byte NUL-padded string.
func (d *Decoder) String(n int) (string, error) {
	b, err := d.take(n)
	if err != nil {
		return "", err
	}
	return TrimString(b), nil
}

// Encoder builds a payload from width-exact big-endian scalars.
type Encoder struct {
	b []byte
}

// NewEncoder returns an Encoder with capacity for n bytes.
func NewEncoder(n int) *Encoder {
	return &Encoder{b: make([]byte, 0, n)}
}

// Len returns the number of bytes encoded so far.
func (e *Encoder) Len() int { return len(e.b) }

// Bytes returns the encoded payload.
func (e *Encoder) Bytes() []byte { return e.b }

func (e *Encoder) PutUint8(v uint8) *Encoder { e.b = append(e.b, v); return e }
func (e *Encoder) PutInt8(v int8) *Encoder   { return e.PutUint8(uint8(v)) }

func (e *Encoder) PutUint16(v uint16) *Encoder {
	e.b = binary.BigEndian.AppendUint16(e.b, v)
	return e
}

func (e *Encoder) PutInt16(v int16) *Encoder { return e.PutUint16(uint16(v)) }

func (e *Encoder) PutUint32(v uint32) *Encoder {
	e.b = binary.BigEndian.AppendUint32(e.b, v)
	return e
}

func (e *Encoder) PutInt32(v int32) *Encoder { return e.PutUint32(uint32(v)) }

func (e *Encoder) PutUint64(v uint64) *Encoder {
	e.b = binary.BigEndian.AppendUint64(e.b, v)
	return e
}

func (e *Encoder) PutInt64(v int64) *Encoder { return e.PutUint64(uint64(v)) }

// PutBytes appends raw bytes.
func (e *Encoder) PutBytes(p []byte) *Encoder {
	e.b = append(e.b, p...)
	return e
}

// PutPadded appends s truncated or zero-padded to exactly n bytes.
func (e *Encoder) PutPadded(s string, n int) *Encoder {
	start := len(e.b)
	e.b = append(e.b, make([]byte, n)...)
	copy(e.b[start:], s)
	return e
}

// TrimString returns b up to its first NUL byte, without trailing spaces.
func TrimString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(bytes.TrimRight(b, " \r\n"))
}
