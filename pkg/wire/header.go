package wire

import (
	"fmt"
	"time"
)

// Framing constants
const (
	Marker     = 0x5878 // start of every frame
	HeaderSize = 32     // marker through size
	BannerSize = 32     // version string sent by the server on connect
)

// MsgType is the message type field of a frame header.
type MsgType uint16

// Message types
const (
	MsgData     MsgType = 1
	MsgCmd      MsgType = 2
	MsgReq      MsgType = 3
	MsgRespAck  MsgType = 4
	MsgSynch    MsgType = 5
	MsgRespNack MsgType = 6
	MsgRespErr  MsgType = 7
)

// String returns the protocol name of the message type.
func (t MsgType) String() string {
	switch t {
	case MsgData:
		return "DATA"
	case MsgCmd:
		return "CMD"
	case MsgReq:
		return "REQ"
	case MsgRespAck:
		return "RESP_ACK"
	case MsgSynch:
		return "SYNCH"
	case MsgRespNack:
		return "RESP_NACK"
	case MsgRespErr:
		return "RESP_ERR"
	default:
		return fmt.Sprintf("MsgType(%d)", uint16(t))
	}
}

// Valid reports whether t is one of the seven defined message types.
func (t MsgType) Valid() bool {
	return t >= MsgData && t <= MsgRespErr
}

// IsResponse reports whether t is RESP_ACK, RESP_NACK or RESP_ERR.
func (t MsgType) IsResponse() bool {
	return t == MsgRespAck || t == MsgRespNack || t == MsgRespErr
}

// Header is a decoded frame header.
type Header struct {
	Type      MsgType
	Device    uint16
	Index     uint16
	TimeSec   int32 // t_sec: when the data was sampled
	TimeUsec  int32
	StampSec  int32 // ts_sec: when the data was sent
	StampUsec int32
	Reserved  int32
	Size      int32
}

// NewHeader builds a client header with zeroed timestamps.
func NewHeader(t MsgType, device, index uint16, size int) Header {
	return Header{Type: t, Device: device, Index: index, Size: int32(size)}
}

// Sampled returns the time the data was sampled on the server.
func (h Header) Sampled() time.Time {
	return time.Unix(int64(h.TimeSec), int64(h.TimeUsec)*int64(time.Microsecond))
}

// Sent returns the time the server sent the data.
func (h Header) Sent() time.Time {
	return time.Unix(int64(h.StampSec), int64(h.StampUsec)*int64(time.Microsecond))
}

// FrameSize returns the number of stream bytes the frame occupies.
func (h Header) FrameSize() int {
	return HeaderSize + int(h.Size)
}

// String returns a debug representation of the header
func (h Header) String() string {
	return fmt.Sprintf("Header{type=%s, device=%d, index=%d, size=%d}",
		h.Type, h.Device, h.Index, h.Size)
}
