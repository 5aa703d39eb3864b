package device

import (
	"time"

	"github.com/muurk/playerclient/pkg/wire"
)

// Handler consumes the frames addressed to one subscribed device.
//
// The engine calls every method from its dispatch goroutine only, with a
// payload buffer of exactly h.Size bytes that the handler may retain. An
// error returned from ReadData or HandleResponse is local to the device: the
// engine logs it and keeps the connection alive.
type Handler interface {
	Key() Key
	ReadData(h wire.Header, payload []byte) error
	HandleResponse(h wire.Header, payload []byte) error
	HandleNack(h wire.Header, payload []byte)
	HandleError(h wire.Header, payload []byte)
}

// Snapshotter is implemented by handlers that publish their decoded state.
// Snapshot may be called from any goroutine.
type Snapshotter interface {
	Snapshot() *Snapshot
}

// CommandEncoder is implemented by handlers that know their CMD layout.
type CommandEncoder interface {
	EncodeCommand(rec Record) ([]byte, error)
}

// RequestEncoder is implemented by handlers that know their REQ layouts.
// The encoded payload starts with the subtype byte.
type RequestEncoder interface {
	EncodeRequest(subtype uint8, rec Record) ([]byte, error)
}

// Snapshot is one immutable decoded DATA frame.
type Snapshot struct {
	Key    Key
	Seq    uint64 // 1 for the first frame after subscription
	Header wire.Header
	Record Record // nil for handlers without a data layout
	Raw    []byte
}

// Sampled returns the time the server sampled the data.
func (s *Snapshot) Sampled() time.Time { return s.Header.Sampled() }

// Sent returns the time the server sent the data.
func (s *Snapshot) Sent() time.Time { return s.Header.Sent() }

// Response is one decoded device reply.
type Response struct {
	Type    wire.MsgType // RESP_ACK, RESP_NACK or RESP_ERR
	Subtype uint8
	Header  wire.Header
	Record  Record
	Raw     []byte
}
