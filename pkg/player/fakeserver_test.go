package player

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/muurk/playerclient/pkg/device"
	"github.com/muurk/playerclient/pkg/wire"
)

const testBanner = "Player v.1.6.5"

// valueCode is an interface code the tests register with a one-field layout.
const valueCode = device.CodePosition2D

var valueSpec = &device.Spec{
	Code: valueCode,
	Name: "value",
	Data: device.NewLayout("value", device.Scalar("value", device.Int32)),
	Requests: map[uint8]*device.Layout{
		1: nil,
		2: device.NewLayout("set", device.Scalar("value", device.Int32)),
	},
	Responses: map[uint8]*device.Layout{
		1: device.NewLayout("get", device.Scalar("value", device.Int32)),
	},
	Command: device.NewLayout("cmd", device.Scalar("value", device.Int32)),
}

// peer is the server side of a test connection.
type peer struct {
	t    *testing.T
	conn net.Conn
	r    *wire.Reader

	mu sync.Mutex // serializes writes from test goroutines
	w  *wire.Writer
}

func testConfig() Config {
	cat := device.DefaultCatalog()
	cat.Register(valueSpec)
	return Config{
		Logger:     zap.NewNop(),
		Catalog:    cat,
		Registerer: prometheus.NewRegistry(),
	}
}

// connect dials a loopback listener that plays the server side.
func connect(t *testing.T, cfg Config) (*Client, *peer) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		banner := make([]byte, wire.BannerSize)
		copy(banner, testBanner)
		_, _ = conn.Write(banner)
		accepted <- conn
	}()

	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	c, err := Dial(context.Background(), "127.0.0.1", port, cfg)
	require.NoError(t, err)

	conn, ok := <-accepted
	require.True(t, ok, "listener closed before accepting")
	p := &peer{t: t, conn: conn, r: wire.NewReader(conn), w: wire.NewWriter(conn)}

	t.Cleanup(func() {
		_ = c.Close()
		_ = conn.Close()
	})
	return c, p
}

// expect reads one frame and checks its type and target.
func (p *peer) expect(t wire.MsgType, key device.Key) []byte {
	_ = p.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	h, _, err := p.r.ReadHeader()
	if err != nil {
		p.t.Errorf("server read header: %v", err)
		return nil
	}
	payload, err := p.r.ReadPayload(int(h.Size))
	if err != nil {
		p.t.Errorf("server read payload: %v", err)
		return nil
	}
	if h.Type != t || h.Device != key.Code || h.Index != key.Index {
		p.t.Errorf("server got %s, want %s to %s", h, t, key)
	}
	return payload
}

func (p *peer) send(t wire.MsgType, key device.Key, payload []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.w.WriteFrame(t, key.Code, key.Index, payload); err != nil {
		p.t.Errorf("server write: %v", err)
	}
}

// sendHeader writes h exactly as given, including fields a well-behaved
// server never sends, such as a negative size.
func (p *peer) sendHeader(h wire.Header, payload []byte) {
	b := wire.NewEncoder(wire.HeaderSize+len(payload)).
		PutUint16(wire.Marker).
		PutUint16(uint16(h.Type)).
		PutUint16(h.Device).
		PutUint16(h.Index).
		PutInt32(h.TimeSec).
		PutInt32(h.TimeUsec).
		PutInt32(h.StampSec).
		PutInt32(h.StampUsec).
		PutInt32(h.Reserved).
		PutInt32(h.Size).
		PutBytes(payload).
		Bytes()
	p.raw(b)
}

func (p *peer) raw(b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.conn.Write(b); err != nil {
		p.t.Errorf("server write: %v", err)
	}
}

func (p *peer) synch() { p.send(wire.MsgSynch, metaKey, nil) }

// grant answers the next subscription request with mode.
func (p *peer) grant(mode device.Access, driver string) device.Key {
	req := p.expect(wire.MsgReq, metaKey)
	if len(req) != 7 {
		p.t.Errorf("subscribe payload is %d bytes, want 7", len(req))
		return device.Key{}
	}
	d := wire.NewDecoder(req)
	_ = d.Skip(2)
	code, _ := d.Uint16()
	index, _ := d.Uint16()
	key := device.Key{Code: code, Index: index}
	p.send(wire.MsgRespAck, metaKey, grantPayload(key, mode, driver))
	return key
}

func grantPayload(key device.Key, mode device.Access, driver string) []byte {
	return wire.NewEncoder(7+DriverNameSize).
		PutUint16(MetaDev).
		PutUint16(key.Code).
		PutUint16(key.Index).
		PutUint8(uint8(mode)).
		PutPadded(driver, DriverNameSize).
		Bytes()
}

func int32Payload(v int32) []byte {
	return wire.NewEncoder(4).PutInt32(v).Bytes()
}

// subscribe runs a granted subscription for key.
func subscribe(t *testing.T, c *Client, p *peer, key device.Key, mode device.Access) *DeviceHandle {
	t.Helper()
	granted := make(chan struct{})
	go func() {
		defer close(granted)
		p.grant(mode, "fakebase")
	}()
	h, err := c.Subscribe(context.Background(), key, mode)
	<-granted
	require.NoError(t, err)
	return h
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, time.Second, 5*time.Millisecond)
}
