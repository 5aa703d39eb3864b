package wire

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/go-faster/errors"
)

// DefaultResyncLimit is the number of stray bytes ReadHeader skips before
// giving up on finding a marker.
const DefaultResyncLimit = 4096

// Reader decodes frames from a byte stream.
type Reader struct {
	r   *bufio.Reader
	buf [8]byte

	// ResyncLimit bounds the stray bytes skipped while looking for a marker.
	// Zero rejects any stray byte. NewReader sets DefaultResyncLimit.
	ResyncLimit int
}

// NewReader wraps r. If r is already a *bufio.Reader it is used directly.
func NewReader(r io.Reader) *Reader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Reader{r: br, ResyncLimit: DefaultResyncLimit}
}

// read fills the first n bytes of the scratch buffer.
func (r *Reader) read(n int) ([]byte, error) {
	b := r.buf[:n]
	if _, err := io.ReadFull(r.r, b); err != nil {
		return nil, streamErr(err)
	}
	return b, nil
}

// streamErr maps a short read to ErrTruncated. A clean io.EOF is kept so
// callers can tell a closed stream from a frame cut in half.
func streamErr(err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return errors.Wrap(ErrTruncated, "short read")
	}
	return err
}

// ReadUint8 reads an unsigned 8-bit integer.
func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.read(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadInt8 reads a signed 8-bit integer.
func (r *Reader) ReadInt8() (int8, error) {
	v, err := r.ReadUint8()
	return int8(v), err
}

// ReadUint16 reads a big-endian unsigned 16-bit integer.
func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.read(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadInt16 reads a big-endian signed 16-bit integer.
func (r *Reader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err
}

// ReadUint32 reads a big-endian unsigned 32-bit integer.
func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.read(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadInt32 reads a big-endian signed 32-bit integer.
func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

// ReadUint64 reads a big-endian unsigned 64-bit integer.
func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.read(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// ReadInt64 reads a big-endian signed 64-bit integer.
func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

// ReadBanner reads the fixed-length version string the server sends on
// connect. Trailing NUL bytes and spaces are dropped.
func (r *Reader) ReadBanner() (string, error) {
	b := make([]byte, BannerSize)
	if _, err := io.ReadFull(r.r, b); err != nil {
		return "", errors.Wrap(streamErr(err), "read banner")
	}
	return TrimString(b), nil
}

// ReadPayload reads exactly n bytes into a new buffer.
func (r *Reader) ReadPayload(n int) ([]byte, error) {
	if n < 0 {
		return nil, errors.Wrapf(ErrMalformed, "negative payload size %d", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, errors.Wrapf(streamErr(err), "read %d-byte payload", n)
	}
	return b, nil
}

// Discard skips exactly n bytes.
func (r *Reader) Discard(n int) error {
	if _, err := r.r.Discard(n); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return errors.Wrapf(streamErr(err), "discard %d bytes", n)
	}
	return nil
}

// ReadHeader blocks until a marker is found and decodes the header that
// follows it. It returns the number of stray bytes skipped before the marker.
//
// io.EOF is returned unwrapped only when the stream ends before any byte of
// a new frame was read. A stream that ends mid-header yields ErrTruncated.
func (r *Reader) ReadHeader() (Header, int, error) {
	skipped, err := r.syncMarker()
	if err != nil {
		return Header{}, skipped, err
	}

	var h Header
	b := make([]byte, HeaderSize-2)
	if _, err := io.ReadFull(r.r, b); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Header{}, skipped, errors.Wrap(streamErr(err), "read header")
	}

	h.Type = MsgType(binary.BigEndian.Uint16(b[0:2]))
	h.Device = binary.BigEndian.Uint16(b[2:4])
	h.Index = binary.BigEndian.Uint16(b[4:6])
	h.TimeSec = int32(binary.BigEndian.Uint32(b[6:10]))
	h.TimeUsec = int32(binary.BigEndian.Uint32(b[10:14]))
	h.StampSec = int32(binary.BigEndian.Uint32(b[14:18]))
	h.StampUsec = int32(binary.BigEndian.Uint32(b[18:22]))
	h.Reserved = int32(binary.BigEndian.Uint32(b[22:26]))
	h.Size = int32(binary.BigEndian.Uint32(b[26:30]))

	if h.Size < 0 {
		return h, skipped, errors.Wrapf(ErrMalformed, "negative payload size %d", h.Size)
	}
	return h, skipped, nil
}

// syncMarker consumes bytes until the two most recent ones form the marker.
func (r *Reader) syncMarker() (int, error) {
	hi, err := r.r.ReadByte()
	if err != nil {
		return 0, err
	}

	skipped := 0
	for {
		lo, err := r.r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return skipped, errors.Wrap(ErrTruncated, "stream ended inside marker")
			}
			return skipped, err
		}
		if uint16(hi)<<8|uint16(lo) == Marker {
			return skipped, nil
		}
		skipped++
		if skipped > r.ResyncLimit {
			return skipped, errors.Wrapf(ErrDesync, "skipped %d bytes", skipped)
		}
		hi = lo
	}
}
