package player

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/playerclient/internal/events"
	"github.com/muurk/playerclient/internal/logging"
	"github.com/muurk/playerclient/internal/metrics"
	"github.com/muurk/playerclient/internal/registry"
	"github.com/muurk/playerclient/pkg/device"
	"github.com/muurk/playerclient/pkg/wire"
)

// Client is one connection to a Player server. All methods are safe for
// concurrent use.
type Client struct {
	e      *engine
	addr   string
	banner string
}

// Dial connects to host:port and reads the server's version banner.
func Dial(ctx context.Context, host string, port int, cfg Config) (*Client, error) {
	cfg.setDefaults()
	if port == 0 {
		port = DefaultPort
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	d := net.Dialer{Timeout: cfg.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &Error{Kind: KindConnect, Op: "dial " + addr, Err: err}
	}
	logging.LogConnection(cfg.Logger, addr, "connected")

	c, err := newClient(conn, addr, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

// NewClient runs the protocol over an already open stream, starting with
// the version banner. The client owns conn and closes it on Close.
func NewClient(conn io.ReadWriteCloser, cfg Config) (*Client, error) {
	cfg.setDefaults()
	addr := "stream"
	if nc, ok := conn.(net.Conn); ok && nc.RemoteAddr() != nil {
		addr = nc.RemoteAddr().String()
	}
	return newClient(conn, addr, cfg)
}

func newClient(conn io.ReadWriteCloser, addr string, cfg Config) (*Client, error) {
	log := cfg.Logger.With(zap.String("server", addr))
	e := newEngine(conn, cfg, log, metrics.New(cfg.Registerer, addr))

	d, hasDeadline := conn.(deadliner)
	if hasDeadline {
		_ = d.SetReadDeadline(time.Now().Add(cfg.BannerTimeout))
	}
	banner, err := e.r.ReadBanner()
	if err != nil {
		return nil, &Error{Kind: KindConnect, Op: "read banner", Err: err}
	}
	if hasDeadline {
		_ = d.SetReadDeadline(time.Time{})
	}

	log.Info("Player server ready", zap.String("banner", banner))
	return &Client{e: e, addr: addr, banner: banner}, nil
}

// Banner returns the version banner sent by the server on connect.
func (c *Client) Banner() string { return c.banner }

// Addr returns the server address.
func (c *Client) Addr() string { return c.addr }

// State returns the connection state.
func (c *Client) State() State { return c.e.state() }

// Close closes the connection. A streaming loop or pending request returns
// an error of kind KindClosed.
func (c *Client) Close() error {
	c.e.fail(&Error{Kind: KindClosed, Op: "close", Err: ErrClosed})
	return nil
}

// Done is closed when the connection closes.
func (c *Client) Done() <-chan struct{} { return c.e.done }

// Err returns the error that closed the connection, or nil while it is open.
func (c *Client) Err() error { return c.e.closedErr() }

// Metrics exposes the connection's counters.
func (c *Client) Metrics() *metrics.Collector { return c.e.metrics }

// Devices returns the keys of the subscribed devices, sorted.
func (c *Client) Devices() []device.Key { return c.e.reg.Keys() }

// Device returns the handle of a subscribed device.
func (c *Client) Device(key device.Key) (*DeviceHandle, bool) {
	ent, ok := c.e.reg.Get(key)
	if !ok {
		return nil, false
	}
	return &DeviceHandle{c: c, key: key, entry: ent}, true
}

// Subscription describes one subscribed device.
type Subscription struct {
	Key    device.Key
	Mode   device.Access
	Driver string
	Since  time.Time
}

// Subscriptions lists the subscribed devices, sorted by key.
func (c *Client) Subscriptions() []Subscription {
	keys := c.e.reg.Keys()
	subs := make([]Subscription, 0, len(keys))
	for _, k := range keys {
		if ent, ok := c.e.reg.Get(k); ok {
			subs = append(subs, Subscription{Key: k, Mode: ent.Mode, Driver: ent.Driver, Since: ent.Since})
		}
	}
	return subs
}

// Subscribe requests access to a device and installs its handler. The
// returned mode is the one the server granted, which may differ from mode.
// Subscribing again to an open device replaces its handler; subscribing
// with AccessClose removes it and returns a nil handle.
func (c *Client) Subscribe(ctx context.Context, key device.Key, mode device.Access) (*DeviceHandle, error) {
	const op = "subscribe"
	e := c.e
	if !mode.Requestable() {
		return nil, &Error{Kind: KindUsage, Op: op, Key: keyPtr(key), Err: ErrBadAccess}
	}
	if mode != device.AccessClose && !e.cfg.Catalog.Supports(key.Code) {
		return nil, &Error{Kind: KindSubscription, Reason: ReasonUnsupported, Op: op, Key: keyPtr(key),
			Err: device.ErrUnsupported}
	}

	var handle *DeviceHandle
	resolve := func(h wire.Header, payload []byte) error {
		g, err := decodeGrant(payload)
		if err != nil {
			return &Error{Kind: KindSubscription, Op: op, Key: keyPtr(key), Err: err}
		}
		if g.Mode == device.AccessError {
			return &Error{Kind: KindSubscription, Reason: ReasonDenied, Op: op, Key: keyPtr(g.Key)}
		}

		if g.Mode == device.AccessClose {
			if _, ok := e.reg.Remove(g.Key); ok {
				e.log.Info("Device closed", zap.Stringer("device", g.Key))
			}
		} else {
			hd, err := e.cfg.Catalog.New(g.Key)
			if err != nil {
				return &Error{Kind: KindSubscription, Reason: ReasonUnsupported, Op: op, Key: keyPtr(g.Key), Err: err}
			}
			ent := &registry.Entry{Handler: hd, Mode: g.Mode, Driver: g.Driver, Since: time.Now()}
			if old := e.reg.Put(ent); old != nil {
				e.log.Info("Device resubscribed", zap.Stringer("device", g.Key),
					zap.Stringer("old_mode", old.Mode), zap.Stringer("mode", g.Mode))
			} else {
				e.log.Info("Device subscribed", zap.Stringer("device", g.Key),
					zap.Stringer("mode", g.Mode), zap.String("driver", g.Driver))
			}
			handle = &DeviceHandle{c: c, key: g.Key, entry: ent}
		}

		e.metrics.Subscriptions(e.reg.Len())
		e.bus.Publish(events.TopicSubscribed, events.Subscribed{Key: g.Key, Mode: g.Mode, Driver: g.Driver})
		return nil
	}

	_, err := e.request(ctx, op, metaKey, MetaDev, encodeSubscribe(key, mode), resolve)
	if err != nil {
		var pe *Error
		if errors.As(err, &pe) && pe.Kind == KindRequest {
			return nil, &Error{Kind: KindSubscription, Reason: ReasonDenied, Op: op, Key: keyPtr(key),
				MsgType: pe.MsgType}
		}
		return nil, err
	}
	return handle, nil
}

// Unsubscribe closes a device.
func (c *Client) Unsubscribe(ctx context.Context, key device.Key) error {
	_, err := c.Subscribe(ctx, key, device.AccessClose)
	return err
}

// RequestDeviceList returns the devices the server offers.
func (c *Client) RequestDeviceList(ctx context.Context) ([]DeviceID, error) {
	rep, err := c.e.request(ctx, "device list", metaKey, MetaDevList, encodeSubtype(MetaDevList), nil)
	if err != nil {
		return nil, err
	}
	ids, err := decodeDevList(rep.payload)
	if err != nil {
		return nil, &Error{Kind: KindRequest, Op: "device list", Err: err}
	}
	return ids, nil
}

// RequestDriverName returns the driver serving the first device with the
// given interface code.
func (c *Client) RequestDriverName(ctx context.Context, code uint16) (DriverInfo, error) {
	rep, err := c.e.request(ctx, "driver info", metaKey, MetaDriverInfo, encodeDriverInfo(code), nil)
	if err != nil {
		return DriverInfo{}, err
	}
	info, err := decodeDriverInfo(rep.payload)
	if err != nil {
		return DriverInfo{}, &Error{Kind: KindRequest, Op: "driver info", Err: err}
	}
	return info, nil
}

// SetDataDeliveryMode selects how the server sends data.
func (c *Client) SetDataDeliveryMode(ctx context.Context, mode DataMode) error {
	_, err := c.e.request(ctx, "data mode", metaKey, MetaDataMode, encodeDataMode(mode), nil)
	if err == nil {
		c.e.log.Info("Data mode set", zap.Stringer("mode", mode))
	}
	return err
}

// SetDataDeliveryFrequency sets the rate, in Hz, at which the server pushes
// data.
func (c *Client) SetDataDeliveryFrequency(ctx context.Context, hz uint16) error {
	_, err := c.e.request(ctx, "data frequency", metaKey, MetaDataFreq, encodeDataFreq(hz), nil)
	if err == nil {
		c.e.log.Info("Data frequency set", zap.Uint16("hz", hz))
	}
	return err
}

// Authenticate sends the server's shared key.
func (c *Client) Authenticate(ctx context.Context, key string) error {
	if len(key) > AuthKeySize {
		return &Error{Kind: KindUsage, Op: "authenticate", Err: ErrKeyTooLong}
	}
	_, err := c.e.request(ctx, "authenticate", metaKey, MetaAuth, encodeAuth(key), nil)
	return err
}

// ResolveNameService returns the port of the robot registered under name.
func (c *Client) ResolveNameService(ctx context.Context, name string) (uint16, error) {
	if len(name) > NameSize {
		return 0, &Error{Kind: KindUsage, Op: "name service", Err: ErrNameTooLong}
	}
	rep, err := c.e.request(ctx, "name service", metaKey, MetaNameService, encodeNameService(name), nil)
	if err != nil {
		return 0, err
	}
	port, err := decodeNameService(rep.payload)
	if err != nil {
		return 0, &Error{Kind: KindRequest, Op: "name service", Err: err}
	}
	return port, nil
}

// Command sends a CMD payload to a device subscribed with write access.
// Commands are not acknowledged.
func (c *Client) Command(key device.Key, payload []byte) error {
	ent, ok := c.e.reg.Get(key)
	if !ok {
		return &Error{Kind: KindUsage, Op: "command", Key: keyPtr(key), Err: ErrNotSubscribed}
	}
	if !ent.Mode.CanWrite() {
		return &Error{Kind: KindUsage, Op: "command", Key: keyPtr(key), Err: ErrNotWritable}
	}
	return c.e.send(wire.MsgCmd, key, payload)
}

// Request sends a REQ payload to a subscribed device and returns the
// device's reply payload. The reply is also handed to the device handler.
func (c *Client) Request(ctx context.Context, key device.Key, payload []byte) ([]byte, error) {
	if _, ok := c.e.reg.Get(key); !ok {
		return nil, &Error{Kind: KindUsage, Op: "request", Key: keyPtr(key), Err: ErrNotSubscribed}
	}
	rep, err := c.e.request(ctx, "request", key, 0, payload, nil)
	return rep.payload, err
}

// Event payloads passed to the On* hooks.
type (
	DataEvent       = events.Data
	ResponseEvent   = events.Response
	SubscribedEvent = events.Subscribed
	ClosedEvent     = events.Closed
)

// OnData calls fn after each accepted DATA frame.
func (c *Client) OnData(fn func(DataEvent)) (func(), error) {
	return events.On(c.e.bus, events.TopicData, fn)
}

// OnResponse calls fn for each RESP_ACK routed to a device.
func (c *Client) OnResponse(fn func(ResponseEvent)) (func(), error) {
	return events.On(c.e.bus, events.TopicResponse, fn)
}

// OnNack calls fn for each RESP_NACK routed to a device.
func (c *Client) OnNack(fn func(ResponseEvent)) (func(), error) {
	return events.On(c.e.bus, events.TopicNack, fn)
}

// OnError calls fn for each RESP_ERR routed to a device.
func (c *Client) OnError(fn func(ResponseEvent)) (func(), error) {
	return events.On(c.e.bus, events.TopicError, fn)
}

// OnSubscribed calls fn after each applied subscription reply.
func (c *Client) OnSubscribed(fn func(SubscribedEvent)) (func(), error) {
	return events.On(c.e.bus, events.TopicSubscribed, fn)
}

// OnClosed calls fn once when the connection closes.
func (c *Client) OnClosed(fn func(ClosedEvent)) (func(), error) {
	return events.On(c.e.bus, events.TopicClosed, fn)
}

// WaitEvents blocks until every event published so far has been handled.
func (c *Client) WaitEvents() { c.e.bus.Wait() }
