package device

import (
	"sync"
	"sync/atomic"

	"github.com/go-faster/errors"

	"github.com/muurk/playerclient/pkg/wire"
)

// ErrNoLayout is returned when a handler has no layout for an encode call.
var ErrNoLayout = errors.New("no layout")

// LayoutHandler is a Handler driven entirely by a Spec. Decoded state is
// published as immutable snapshots through an atomic pointer, so readers
// never observe a partially updated frame.
type LayoutHandler struct {
	spec *Spec
	key  Key

	data atomic.Pointer[Snapshot]
	seq  atomic.Uint64

	nacks atomic.Uint64
	errs  atomic.Uint64

	mu        sync.RWMutex
	responses map[uint8]*Response
}

// NewLayoutHandler returns a handler for key described by spec.
func NewLayoutHandler(spec *Spec, key Key) *LayoutHandler {
	return &LayoutHandler{spec: spec, key: key, responses: make(map[uint8]*Response)}
}

// Key returns the device key.
func (l *LayoutHandler) Key() Key { return l.key }

// Spec returns the description the handler was built from.
func (l *LayoutHandler) Spec() *Spec { return l.spec }

// ReadData decodes a DATA payload and publishes it. A payload longer than the
// layout is still published; the returned error is a *TrailingBytesError.
func (l *LayoutHandler) ReadData(h wire.Header, payload []byte) error {
	snap := &Snapshot{Key: l.key, Header: h, Raw: payload}

	var trailing error
	if l.spec.Data != nil {
		rec, err := l.spec.Data.Decode(payload)
		var tb *TrailingBytesError
		switch {
		case errors.As(err, &tb):
			trailing = err
		case err != nil:
			return err
		}
		snap.Record = rec
	}

	snap.Seq = l.seq.Add(1)
	l.data.Store(snap)
	return trailing
}

// Snapshot returns the latest published data, or nil before the first frame.
func (l *LayoutHandler) Snapshot() *Snapshot { return l.data.Load() }

// HandleResponse records a RESP_ACK. The first payload byte selects the
// response layout; unknown subtypes are kept raw.
func (l *LayoutHandler) HandleResponse(h wire.Header, payload []byte) error {
	resp := l.response(wire.MsgRespAck, h, payload)
	var err error
	if len(payload) > 0 {
		if layout, ok := l.spec.Responses[resp.Subtype]; ok {
			resp.Record, err = layout.Decode(payload[1:])
			var tb *TrailingBytesError
			if err != nil && !errors.As(err, &tb) {
				resp.Record = nil
			}
		}
	}
	l.store(resp)
	return err
}

// HandleNack records a RESP_NACK.
func (l *LayoutHandler) HandleNack(h wire.Header, payload []byte) {
	l.nacks.Add(1)
	l.store(l.response(wire.MsgRespNack, h, payload))
}

// HandleError records a RESP_ERR.
func (l *LayoutHandler) HandleError(h wire.Header, payload []byte) {
	l.errs.Add(1)
	l.store(l.response(wire.MsgRespErr, h, payload))
}

func (l *LayoutHandler) response(t wire.MsgType, h wire.Header, payload []byte) *Response {
	resp := &Response{Type: t, Header: h, Raw: payload}
	if len(payload) > 0 {
		resp.Subtype = payload[0]
	}
	return resp
}

func (l *LayoutHandler) store(resp *Response) {
	l.mu.Lock()
	l.responses[resp.Subtype] = resp
	l.mu.Unlock()
}

// Response returns the latest reply recorded for a request subtype.
func (l *LayoutHandler) Response(subtype uint8) (*Response, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.responses[subtype]
	return r, ok
}

// Nacks returns the number of RESP_NACK frames received.
func (l *LayoutHandler) Nacks() uint64 { return l.nacks.Load() }

// Errors returns the number of RESP_ERR frames received.
func (l *LayoutHandler) Errors() uint64 { return l.errs.Load() }

// EncodeCommand encodes a CMD payload with the command layout.
func (l *LayoutHandler) EncodeCommand(rec Record) ([]byte, error) {
	if l.spec.Command == nil {
		return nil, errors.Wrapf(ErrNoLayout, "%s has no command layout", l.spec.Name)
	}
	return l.spec.Command.Encode(rec)
}

// EncodeRequest encodes a REQ payload: the subtype byte followed by the
// request layout for that subtype. A nil layout means the request is the
// subtype byte alone.
func (l *LayoutHandler) EncodeRequest(subtype uint8, rec Record) ([]byte, error) {
	layout, ok := l.spec.Requests[subtype]
	if !ok {
		return nil, errors.Wrapf(ErrNoLayout, "%s has no request %d", l.spec.Name, subtype)
	}
	if layout == nil {
		return []byte{subtype}, nil
	}
	body, err := layout.Encode(rec)
	if err != nil {
		return nil, err
	}
	return append([]byte{subtype}, body...), nil
}
