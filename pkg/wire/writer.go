package wire

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/go-faster/errors"
)

// Writer encodes frames onto a byte stream. Nothing reaches the underlying
// writer until Flush, so a frame written with WriteFrame is delivered whole.
type Writer struct {
	w   *bufio.Writer
	buf [HeaderSize]byte
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	bw, ok := w.(*bufio.Writer)
	if !ok {
		bw = bufio.NewWriter(w)
	}
	return &Writer{w: bw}
}

// WriteHeader buffers a client header with zero timestamps and reserved field.
func (w *Writer) WriteHeader(t MsgType, device, index uint16, size int) error {
	return w.WriteRawHeader(NewHeader(t, device, index, size))
}

// WriteRawHeader buffers h exactly as given.
func (w *Writer) WriteRawHeader(h Header) error {
	if h.Size < 0 {
		return errors.Wrapf(ErrMalformed, "negative payload size %d", h.Size)
	}
	b := w.buf[:]
	binary.BigEndian.PutUint16(b[0:2], Marker)
	binary.BigEndian.PutUint16(b[2:4], uint16(h.Type))
	binary.BigEndian.PutUint16(b[4:6], h.Device)
	binary.BigEndian.PutUint16(b[6:8], h.Index)
	binary.BigEndian.PutUint32(b[8:12], uint32(h.TimeSec))
	binary.BigEndian.PutUint32(b[12:16], uint32(h.TimeUsec))
	binary.BigEndian.PutUint32(b[16:20], uint32(h.StampSec))
	binary.BigEndian.PutUint32(b[20:24], uint32(h.StampUsec))
	binary.BigEndian.PutUint32(b[24:28], uint32(h.Reserved))
	binary.BigEndian.PutUint32(b[28:32], uint32(h.Size))
	if _, err := w.w.Write(b); err != nil {
		return errors.Wrap(err, "write header")
	}
	return nil
}

// Write buffers raw bytes.
func (w *Writer) Write(p []byte) (int, error) {
	return w.w.Write(p)
}

// WriteUint8 buffers an unsigned 8-bit integer.
func (w *Writer) WriteUint8(v uint8) error {
	return w.w.WriteByte(v)
}

// WriteInt8 buffers a signed 8-bit integer.
func (w *Writer) WriteInt8(v int8) error {
	return w.w.WriteByte(uint8(v))
}

// WriteUint16 buffers a big-endian unsigned 16-bit integer.
func (w *Writer) WriteUint16(v uint16) error {
	binary.BigEndian.PutUint16(w.buf[:2], v)
	_, err := w.w.Write(w.buf[:2])
	return err
}

// WriteInt16 buffers a big-endian signed 16-bit integer.
func (w *Writer) WriteInt16(v int16) error {
	return w.WriteUint16(uint16(v))
}

// WriteUint32 buffers a big-endian unsigned 32-bit integer.
func (w *Writer) WriteUint32(v uint32) error {
	binary.BigEndian.PutUint32(w.buf[:4], v)
	_, err := w.w.Write(w.buf[:4])
	return err
}

// WriteInt32 buffers a big-endian signed 32-bit integer.
func (w *Writer) WriteInt32(v int32) error {
	return w.WriteUint32(uint32(v))
}

// WriteUint64 buffers a big-endian unsigned 64-bit integer.
func (w *Writer) WriteUint64(v uint64) error {
	binary.BigEndian.PutUint64(w.buf[:8], v)
	_, err := w.w.Write(w.buf[:8])
	return err
}

// WriteInt64 buffers a big-endian signed 64-bit integer.
func (w *Writer) WriteInt64(v int64) error {
	return w.WriteUint64(uint64(v))
}

// Flush delivers everything buffered so far.
func (w *Writer) Flush() error {
	if err := w.w.Flush(); err != nil {
		return errors.Wrap(err, "flush")
	}
	return nil
}

// WriteFrame writes a header sized for payload, the payload, and flushes once.
func (w *Writer) WriteFrame(t MsgType, device, index uint16, payload []byte) error {
	if err := w.WriteHeader(t, device, index, len(payload)); err != nil {
		return err
	}
	if _, err := w.w.Write(payload); err != nil {
		return errors.Wrap(err, "write payload")
	}
	return w.Flush()
}
