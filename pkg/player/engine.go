package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/playerclient/internal/events"
	"github.com/muurk/playerclient/internal/logging"
	"github.com/muurk/playerclient/internal/metrics"
	"github.com/muurk/playerclient/internal/registry"
	"github.com/muurk/playerclient/pkg/device"
	"github.com/muurk/playerclient/pkg/wire"
)

// State is the observable state of a connection.
type State int32

// Connection states
const (
	StateConnecting State = iota
	StateIdle
	StateAwaitingReply
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateIdle:
		return "idle"
	case StateAwaitingReply:
		return "awaiting_reply"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Read modes; chosen at most once per connection.
const (
	modeUnset int32 = iota
	modeStreaming
	modeSingleRead
)

var metaKey = device.Key{Code: device.CodePlayer, Index: 0}

type reply struct {
	header  wire.Header
	payload []byte
	err     error // from the pending request's resolve hook
}

// pending is the one outstanding request of a connection.
type pending struct {
	key     device.Key
	subtype uint16 // meta requests only

	// resolve runs on the dispatch goroutine when the RESP_ACK arrives,
	// before any later frame is dispatched.
	resolve func(h wire.Header, payload []byte) error

	ready chan struct{} // closed once rep is set
	rep   reply
}

func (p *pending) matches(h wire.Header, payload []byte) bool {
	if h.Device != p.key.Code || h.Index != p.key.Index {
		return false
	}
	if h.Device != device.CodePlayer {
		return true
	}
	// Zero-length acknowledgements carry no subtype.
	st, ok := metaSubtype(payload)
	return !ok || st == p.subtype
}

// engine owns the stream of one connection.
type engine struct {
	cfg  Config
	log  *zap.Logger
	conn io.ReadWriteCloser

	r      *wire.Reader
	readMu sync.Mutex // held while reading and dispatching one frame
	w      *wire.Writer
	sendMu sync.Mutex // held while writing one frame

	reqSem  chan struct{} // one request in flight
	pendMu  sync.Mutex
	pending *pending

	reg     *registry.Registry
	metrics *metrics.Collector
	bus     *events.Bus

	mode      atomic.Int32
	streaming atomic.Bool
	stopFlag  atomic.Bool
	loopMu    sync.Mutex
	loopDone  chan struct{}

	closeOnce sync.Once
	done      chan struct{}
	err       error // written once before done is closed
}

func newEngine(conn io.ReadWriteCloser, cfg Config, log *zap.Logger, m *metrics.Collector) *engine {
	r := wire.NewReader(conn)
	r.ResyncLimit = cfg.resyncLimit()
	return &engine{
		cfg:     cfg,
		log:     log,
		conn:    conn,
		r:       r,
		w:       wire.NewWriter(conn),
		reqSem:  make(chan struct{}, 1),
		reg:     registry.New(),
		metrics: m,
		bus:     events.New(),
		done:    make(chan struct{}),
	}
}

func (e *engine) state() State {
	select {
	case <-e.done:
		return StateClosed
	default:
	}
	e.pendMu.Lock()
	awaiting := e.pending != nil
	e.pendMu.Unlock()
	switch {
	case awaiting:
		return StateAwaitingReply
	case e.streaming.Load():
		return StateStreaming
	}
	return StateIdle
}

// closedErr returns the error that closed the connection, or nil.
func (e *engine) closedErr() error {
	select {
	case <-e.done:
		return e.err
	default:
		return nil
	}
}

// fail closes the connection with err. Only the first call has any effect.
func (e *engine) fail(err error) {
	e.closeOnce.Do(func() {
		e.err = err
		if errors.Is(err, ErrClosed) {
			e.log.Info("Connection closed")
		} else {
			e.log.Error("Connection failed", zap.Error(err))
		}
		_ = e.conn.Close()
		e.reg.Clear()
		e.metrics.Subscriptions(0)
		close(e.done)
		e.bus.Publish(events.TopicClosed, events.Closed{Err: closeCause(err)})
		e.bus.Close()
	})
}

func closeCause(err error) error {
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

// send writes one complete frame.
func (e *engine) send(t wire.MsgType, key device.Key, payload []byte) error {
	if err := e.closedErr(); err != nil {
		return err
	}
	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	h := wire.NewHeader(t, key.Code, key.Index, len(payload))
	if err := e.w.WriteFrame(t, key.Code, key.Index, payload); err != nil {
		fe := classify("send", err)
		fe.Key, fe.MsgType = keyPtr(key), t
		e.fail(fe)
		return e.closedErr()
	}
	logging.LogFrame(e.log, "send", h, payload)
	e.metrics.FrameSent(h)
	return nil
}

type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// readFrame reads one header and its whole payload. Callers hold readMu.
func (e *engine) readFrame() (wire.Header, []byte, error) {
	if e.cfg.ReadTimeout > 0 {
		if d, ok := e.conn.(deadliner); ok {
			_ = d.SetReadDeadline(time.Now().Add(e.cfg.ReadTimeout))
		}
	}

	h, skipped, err := e.r.ReadHeader()
	if skipped > 0 {
		e.log.Warn("Skipped stray bytes before frame marker", zap.Int("skipped", skipped))
		e.metrics.StrayBytes(skipped)
	}
	if err != nil {
		return h, nil, classify("read header", err)
	}

	key := device.Key{Code: h.Device, Index: h.Index}
	if int(h.Size) > e.cfg.MaxPayload {
		return h, nil, &Error{Kind: KindDesync, Op: "read payload", Key: keyPtr(key), MsgType: h.Type,
			Err: fmt.Errorf("declared size %d exceeds limit %d", h.Size, e.cfg.MaxPayload)}
	}
	payload, err := e.r.ReadPayload(int(h.Size))
	if err != nil {
		fe := classify("read payload", err)
		fe.Key, fe.MsgType = keyPtr(key), h.Type
		return h, nil, fe
	}

	logging.LogFrame(e.log, "recv", h, payload)
	e.metrics.FrameReceived(h)
	return h, payload, nil
}

// step reads and dispatches one frame. It returns without reading when ready
// is closed by the time the read lock is held.
func (e *engine) step(ready <-chan struct{}) (wire.MsgType, error) {
	e.readMu.Lock()
	defer e.readMu.Unlock()

	select {
	case <-ready:
		return 0, nil
	default:
	}
	if err := e.closedErr(); err != nil {
		return 0, err
	}

	h, payload, err := e.readFrame()
	if err != nil {
		e.fail(err)
		return 0, e.closedErr()
	}
	e.dispatch(h, payload)
	return h.Type, nil
}

func (e *engine) dispatch(h wire.Header, payload []byte) {
	key := device.Key{Code: h.Device, Index: h.Index}

	switch h.Type {
	case wire.MsgData:
		e.dispatchData(key, h, payload)
	case wire.MsgSynch:
		e.log.Debug("End of data round", zap.Int32("size", h.Size))
	case wire.MsgCmd, wire.MsgReq:
		e.unexpected(h, "server-bound message received by client")
	case wire.MsgRespAck, wire.MsgRespNack, wire.MsgRespErr:
		e.dispatchResponse(key, h, payload)
	default:
		e.unexpected(h, "unknown message type")
	}
}

func (e *engine) dispatchData(key device.Key, h wire.Header, payload []byte) {
	ent, ok := e.reg.Get(key)
	if !ok {
		e.log.Warn("DATA for unsubscribed device", logging.FrameFields(h)...)
		e.metrics.Unroutable()
		return
	}

	if err := ent.Handler.ReadData(h, payload); err != nil {
		e.log.Warn("Device handler rejected data",
			zap.Stringer("device", key), zap.Int32("size", h.Size), zap.Error(err))
		e.metrics.HandlerError(key.String())
		var tb *device.TrailingBytesError
		if !errors.As(err, &tb) {
			return
		}
	}

	ev := events.Data{Key: key}
	if s, ok := ent.Handler.(device.Snapshotter); ok {
		ev.Snapshot = s.Snapshot()
	}
	e.bus.Publish(events.TopicData, ev)
}

func (e *engine) dispatchResponse(key device.Key, h wire.Header, payload []byte) {
	routed := false
	if key.Code != device.CodePlayer {
		if ent, ok := e.reg.Get(key); ok {
			routed = true
			e.deliverResponse(ent.Handler, key, h, payload)
		}
	}

	e.pendMu.Lock()
	p := e.pending
	if p != nil && p.matches(h, payload) {
		e.pending = nil
	} else {
		p = nil
	}
	e.pendMu.Unlock()

	if p == nil {
		switch {
		case routed:
		case key.Code == device.CodePlayer && h.Type == wire.MsgRespAck && isDataAck(payload):
			e.log.Debug("Acknowledged data request")
		case key.Code == device.CodePlayer:
			e.unexpected(h, "reply with no pending request")
		default:
			e.log.Warn("Reply for unsubscribed device", logging.FrameFields(h)...)
			e.metrics.Unroutable()
		}
		return
	}

	rep := reply{header: h, payload: payload}
	if p.resolve != nil && h.Type == wire.MsgRespAck {
		rep.err = p.resolve(h, payload)
	}
	p.rep = rep
	close(p.ready)
}

func isDataAck(payload []byte) bool {
	st, ok := metaSubtype(payload)
	return !ok || st == MetaData
}

func (e *engine) deliverResponse(hd device.Handler, key device.Key, h wire.Header, payload []byte) {
	var topic events.Topic
	switch h.Type {
	case wire.MsgRespAck:
		topic = events.TopicResponse
		if err := hd.HandleResponse(h, payload); err != nil {
			e.log.Warn("Device handler rejected response", zap.Stringer("device", key), zap.Error(err))
			e.metrics.HandlerError(key.String())
		}
	case wire.MsgRespNack:
		topic = events.TopicNack
		hd.HandleNack(h, payload)
	default:
		topic = events.TopicError
		hd.HandleError(h, payload)
	}
	e.bus.Publish(topic, events.Response{Key: key, Header: h, Payload: payload})
}

func (e *engine) unexpected(h wire.Header, msg string) {
	e.log.Warn("Unexpected message: "+msg, logging.FrameFields(h)...)
	e.metrics.Unexpected()
}

// request sends a REQ to key and blocks until its reply has been dispatched.
// While waiting, every other frame is dispatched as usual. Cancelling ctx
// closes the connection, since a blocked read cannot be interrupted.
func (e *engine) request(ctx context.Context, op string, key device.Key, subtype uint16, payload []byte,
	resolve func(wire.Header, []byte) error) (reply, error) {

	if err := ctx.Err(); err != nil {
		return reply{}, &Error{Kind: KindUsage, Op: op, Key: keyPtr(key), Err: err}
	}
	select {
	case e.reqSem <- struct{}{}:
	case <-e.done:
		return reply{}, e.closedErr()
	case <-ctx.Done():
		return reply{}, &Error{Kind: KindUsage, Op: op, Key: keyPtr(key), Err: ctx.Err()}
	}
	defer func() { <-e.reqSem }()

	p := &pending{key: key, subtype: subtype, resolve: resolve, ready: make(chan struct{})}
	e.pendMu.Lock()
	e.pending = p
	e.pendMu.Unlock()
	defer func() {
		e.pendMu.Lock()
		if e.pending == p {
			e.pending = nil
		}
		e.pendMu.Unlock()
	}()

	start := time.Now()
	if err := e.send(wire.MsgReq, key, payload); err != nil {
		e.metrics.Request("failed", time.Since(start))
		return reply{}, err
	}

	stop := context.AfterFunc(ctx, func() {
		e.fail(&Error{Kind: KindIO, Op: op, Key: keyPtr(key), Err: ctx.Err()})
	})
	defer stop()

	if err := e.await(p); err != nil {
		e.metrics.Request("failed", time.Since(start))
		return reply{}, err
	}

	rep := p.rep
	switch rep.header.Type {
	case wire.MsgRespNack:
		e.metrics.Request("nack", time.Since(start))
		return rep, &Error{Kind: KindRequest, Reason: ReasonNack, Op: op, Key: keyPtr(key), MsgType: rep.header.Type}
	case wire.MsgRespErr:
		e.metrics.Request("error", time.Since(start))
		return rep, &Error{Kind: KindRequest, Reason: ReasonError, Op: op, Key: keyPtr(key), MsgType: rep.header.Type}
	}
	e.metrics.Request("ack", time.Since(start))
	return rep, rep.err
}

// await blocks until p is resolved. When the streaming loop is running it
// waits for the loop to dispatch the reply; otherwise it reads frames itself.
func (e *engine) await(p *pending) error {
	for {
		select {
		case <-p.ready:
			return nil
		case <-e.done:
			return e.closedErr()
		default:
		}

		if e.streaming.Load() {
			select {
			case <-p.ready:
				return nil
			case <-e.done:
				return e.closedErr()
			case <-e.loopExited():
				continue
			}
		}

		if _, err := e.step(p.ready); err != nil {
			return err
		}
	}
}

func (e *engine) loopExited() <-chan struct{} {
	e.loopMu.Lock()
	defer e.loopMu.Unlock()
	if e.loopDone == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return e.loopDone
}
