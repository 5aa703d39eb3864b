package player

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/playerclient/internal/events"
	"github.com/muurk/playerclient/pkg/device"
	"github.com/muurk/playerclient/pkg/wire"
)

var valueKey = device.Key{Code: valueCode, Index: 0}

func TestEndToEndScenario(t *testing.T) {
	c, p := connect(t, testConfig())
	assert.Equal(t, testBanner, c.Banner())
	assert.Equal(t, StateIdle, c.State())

	h := subscribe(t, c, p, valueKey, device.AccessRead)
	require.NotNil(t, h)
	assert.Equal(t, valueKey, h.Key())
	assert.Equal(t, device.AccessRead, h.Mode())
	assert.Equal(t, "fakebase", h.Driver())
	assert.Nil(t, h.Snapshot())

	p.send(wire.MsgData, valueKey, []byte{0, 0, 0, 42})
	p.synch()
	require.NoError(t, c.ReadOnce(context.Background()))

	snap := h.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, int64(42), snap.Record.Int("value"))
	assert.Equal(t, uint64(1), snap.Seq)
}

func TestSubscribeReplacesHandler(t *testing.T) {
	c, p := connect(t, testConfig())

	first := subscribe(t, c, p, valueKey, device.AccessRead)
	old := first.Handler()

	second := subscribe(t, c, p, valueKey, device.AccessAll)
	assert.Equal(t, []device.Key{valueKey}, c.Devices())
	assert.NotSame(t, old, second.Handler())
	assert.Equal(t, device.AccessAll, second.Mode())

	// The first handle now reads the replacement.
	assert.Same(t, second.Handler(), first.Handler())
}

func TestSubscribeGrantsLessThanRequested(t *testing.T) {
	c, p := connect(t, testConfig())

	go func() {
		p.expect(wire.MsgReq, metaKey)
		p.send(wire.MsgRespAck, metaKey, grantPayload(valueKey, device.AccessRead, "fakebase"))
	}()
	h, err := c.Subscribe(context.Background(), valueKey, device.AccessAll)
	require.NoError(t, err)
	assert.Equal(t, device.AccessRead, h.Mode())

	err = h.Command(device.Record{"value": 1})
	assert.ErrorIs(t, err, ErrNotWritable)
}

func TestSubscribeDenied(t *testing.T) {
	tests := []struct {
		name  string
		reply func(p *peer)
	}{
		{
			name: "error mode granted",
			reply: func(p *peer) {
				p.grant(device.AccessError, "")
			},
		},
		{
			name: "negative acknowledgement",
			reply: func(p *peer) {
				p.expect(wire.MsgReq, metaKey)
				p.send(wire.MsgRespNack, metaKey, encodeSubtype(MetaDev))
			},
		},
		{
			name: "error acknowledgement",
			reply: func(p *peer) {
				p.expect(wire.MsgReq, metaKey)
				p.send(wire.MsgRespErr, metaKey, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, p := connect(t, testConfig())
			go tt.reply(p)

			h, err := c.Subscribe(context.Background(), valueKey, device.AccessRead)
			require.Error(t, err)
			assert.Nil(t, h)
			assert.True(t, IsDenied(err), "error %v is not a denial", err)
			assert.True(t, IsRetryable(err))
			assert.False(t, IsFatal(err))
			assert.Empty(t, c.Devices())
			assert.NoError(t, c.Err())
		})
	}
}

func TestSubscribeUnsupported(t *testing.T) {
	c, _ := connect(t, testConfig())

	for _, code := range []uint16{device.CodeNull, device.CodePlayer, 999} {
		_, err := c.Subscribe(context.Background(), device.Key{Code: code}, device.AccessRead)
		assert.True(t, IsUnsupported(err), "code %d: %v", code, err)
		assert.ErrorIs(t, err, device.ErrUnsupported)
	}
	assert.Empty(t, c.Devices())
	assert.Equal(t, StateIdle, c.State())
}

func TestSubscribeBadAccess(t *testing.T) {
	c, _ := connect(t, testConfig())

	_, err := c.Subscribe(context.Background(), valueKey, device.AccessError)
	assert.ErrorIs(t, err, ErrBadAccess)
}

func TestUnsubscribeRemovesEntry(t *testing.T) {
	c, p := connect(t, testConfig())
	h := subscribe(t, c, p, valueKey, device.AccessRead)

	go p.grant(device.AccessClose, "")
	require.NoError(t, c.Unsubscribe(context.Background(), valueKey))

	assert.Empty(t, c.Devices())
	_, ok := c.Device(valueKey)
	assert.False(t, ok)
	assert.Nil(t, h.Snapshot())
	assert.ErrorIs(t, h.Command(device.Record{}), ErrNotSubscribed)
}

func TestUnroutableDataKeepsFraming(t *testing.T) {
	c, p := connect(t, testConfig())
	h := subscribe(t, c, p, valueKey, device.AccessRead)

	p.send(wire.MsgData, device.Key{Code: device.CodeLaser, Index: 3}, make([]byte, 13))
	p.send(wire.MsgData, valueKey, int32Payload(7))
	p.synch()
	require.NoError(t, c.ReadOnce(context.Background()))

	require.NotNil(t, h.Snapshot())
	assert.Equal(t, int64(7), h.Snapshot().Record.Int("value"))
}

func TestHandlerDecodeErrorKeepsFraming(t *testing.T) {
	c, p := connect(t, testConfig())
	h := subscribe(t, c, p, valueKey, device.AccessRead)

	// Too short for the layout, then a well formed frame.
	p.send(wire.MsgData, valueKey, []byte{1, 2})
	p.send(wire.MsgData, valueKey, int32Payload(-3))
	p.synch()
	require.NoError(t, c.ReadOnce(context.Background()))

	snap := h.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, int64(-3), snap.Record.Int("value"))
	assert.Equal(t, uint64(1), snap.Seq)
}

func TestUnexpectedMessagesAreSkipped(t *testing.T) {
	c, p := connect(t, testConfig())
	h := subscribe(t, c, p, valueKey, device.AccessRead)

	p.send(wire.MsgCmd, valueKey, []byte{1, 2, 3})
	p.send(wire.MsgReq, valueKey, []byte{4})
	p.send(wire.MsgRespAck, metaKey, encodeSubtype(MetaDevList))
	p.send(wire.MsgType(42), valueKey, []byte{5, 6})
	p.send(wire.MsgData, valueKey, int32Payload(9))
	p.synch()
	require.NoError(t, c.ReadOnce(context.Background()))

	assert.NoError(t, c.Err())
	assert.Equal(t, int64(9), h.Snapshot().Record.Int("value"))
}

func TestSynchPayloadIsDrained(t *testing.T) {
	c, p := connect(t, testConfig())
	h := subscribe(t, c, p, valueKey, device.AccessRead)

	p.send(wire.MsgSynch, metaKey, []byte{9, 9, 9})
	p.send(wire.MsgData, valueKey, int32Payload(11))
	p.synch()
	require.NoError(t, c.ReadOnce(context.Background()))
	assert.Nil(t, h.Snapshot())

	require.NoError(t, c.ReadOnce(context.Background()))
	assert.Equal(t, int64(11), h.Snapshot().Record.Int("value"))
}

func TestStrayBytesAreSkipped(t *testing.T) {
	c, p := connect(t, testConfig())
	h := subscribe(t, c, p, valueKey, device.AccessRead)

	p.raw([]byte{0x00, 0x58, 0x13, 0x58})
	p.send(wire.MsgData, valueKey, int32Payload(5))
	p.synch()
	require.NoError(t, c.ReadOnce(context.Background()))
	assert.Equal(t, int64(5), h.Snapshot().Record.Int("value"))
}

func TestDesyncIsFatal(t *testing.T) {
	tests := []struct {
		name  string
		cfg   func(*Config)
		write func(p *peer)
	}{
		{
			name: "stray byte in strict mode",
			cfg:  func(c *Config) { c.ResyncLimit = -1 },
			write: func(p *peer) {
				p.raw([]byte{0x01})
				p.synch()
			},
		},
		{
			name: "stray bytes beyond limit",
			cfg:  func(c *Config) { c.ResyncLimit = 8 },
			write: func(p *peer) {
				p.raw(make([]byte, 16))
				p.synch()
			},
		},
		{
			name: "declared size beyond limit",
			cfg:  func(c *Config) { c.MaxPayload = 16 },
			write: func(p *peer) {
				p.send(wire.MsgData, valueKey, make([]byte, 17))
			},
		},
		{
			name: "negative size",
			cfg:  func(*Config) {},
			write: func(p *peer) {
				h := wire.NewHeader(wire.MsgData, valueCode, 0, 0)
				h.Size = -4
				p.sendHeader(h, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.cfg(&cfg)
			c, p := connect(t, cfg)

			tt.write(p)
			err := c.ReadOnce(context.Background())
			require.Error(t, err)
			assert.True(t, IsDesync(err), "error %v is not a desync", err)
			assert.True(t, IsFatal(err))
			assert.Equal(t, StateClosed, c.State())
			assert.Equal(t, err, c.Err())

			select {
			case <-c.Done():
			default:
				t.Fatal("Done not closed")
			}

			err = c.ReadOnce(context.Background())
			assert.True(t, IsDesync(err), "later calls report the first error, got %v", err)
		})
	}
}

func TestTruncatedPayloadIsFatal(t *testing.T) {
	c, p := connect(t, testConfig())

	h := wire.NewHeader(wire.MsgData, valueCode, 0, 8)
	p.sendHeader(h, []byte{1, 2, 3})
	_ = p.conn.Close()

	err := c.ReadOnce(context.Background())
	assert.True(t, IsDesync(err), "got %v", err)
}

func TestPeerCloseIsFatal(t *testing.T) {
	c, p := connect(t, testConfig())

	closed := make(chan events.Closed, 1)
	_, err := c.OnClosed(func(ev events.Closed) { closed <- ev })
	require.NoError(t, err)

	_ = p.conn.Close()
	err = c.ReadOnce(context.Background())
	require.Error(t, err)
	assert.True(t, IsFatal(err))

	select {
	case ev := <-closed:
		assert.Error(t, ev.Err)
	case <-time.After(time.Second):
		t.Fatal("no closed event")
	}
}

func TestAwaitingReplyDispatchesInterleavedData(t *testing.T) {
	c, p := connect(t, testConfig())
	h := subscribe(t, c, p, valueKey, device.AccessRead)

	var order []string
	var mu sync.Mutex
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}
	_, err := c.OnData(func(events.Data) { record("data") })
	require.NoError(t, err)

	go func() {
		p.expect(wire.MsgReq, metaKey)
		p.send(wire.MsgData, valueKey, int32Payload(5))
		reply := wire.NewEncoder(10).PutUint16(MetaDevList).PutUint16(1).
			PutUint16(valueCode).PutUint16(0).PutUint16(6665).Bytes()
		p.send(wire.MsgRespAck, metaKey, reply)
	}()

	ids, err := c.RequestDeviceList(context.Background())
	require.NoError(t, err)

	// The DATA frame reached its handler before the reply was returned.
	snap := h.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, int64(5), snap.Record.Int("value"))
	assert.Equal(t, []DeviceID{{Key: valueKey, Port: 6665}}, ids)

	c.WaitEvents()
	mu.Lock()
	assert.Equal(t, []string{"data"}, order)
	mu.Unlock()
}

func TestRequestWhileStreaming(t *testing.T) {
	c, p := connect(t, testConfig())
	h := subscribe(t, c, p, valueKey, device.AccessRead)
	require.NoError(t, c.RunStreaming())
	waitFor(t, func() bool { return c.State() == StateStreaming })

	go func() {
		req := p.expect(wire.MsgReq, metaKey)
		assert.Equal(t, encodeDataFreq(20), req)
		p.send(wire.MsgData, valueKey, int32Payload(3))
		p.send(wire.MsgRespAck, metaKey, nil)
	}()
	require.NoError(t, c.SetDataDeliveryFrequency(context.Background(), 20))
	assert.Equal(t, int64(3), h.Snapshot().Record.Int("value"))

	c.StopStreaming()
	p.synch()
	waitFor(t, func() bool { return !c.Streaming() })
	assert.Equal(t, StateIdle, c.State())

	// With the loop stopped, requests read for themselves.
	go func() {
		p.expect(wire.MsgReq, metaKey)
		p.send(wire.MsgRespAck, metaKey, nil)
	}()
	require.NoError(t, c.SetDataDeliveryMode(context.Background(), PullNew))
}

func TestRestartStreamingBeforeStop(t *testing.T) {
	c, p := connect(t, testConfig())
	h := subscribe(t, c, p, valueKey, device.AccessRead)

	require.NoError(t, c.RunStreaming())
	waitFor(t, c.Streaming)
	c.StopStreaming()
	require.NoError(t, c.RunStreaming())

	// The loop is blocked in a read; the frames after it must still be
	// dispatched.
	p.synch()
	p.send(wire.MsgData, valueKey, int32Payload(77))
	waitFor(t, func() bool {
		s := h.Snapshot()
		return s != nil && s.Record.Int("value") == 77
	})
	assert.True(t, c.Streaming())

	c.StopStreaming()
	p.synch()
	waitFor(t, func() bool { return !c.Streaming() })

	require.NoError(t, c.RunStreaming())
	p.send(wire.MsgData, valueKey, int32Payload(78))
	waitFor(t, func() bool { return h.Snapshot().Record.Int("value") == 78 })
	assert.True(t, c.Streaming())
}

func TestModeConflict(t *testing.T) {
	t.Run("streaming then read once", func(t *testing.T) {
		c, _ := connect(t, testConfig())
		require.NoError(t, c.RunStreaming())
		require.NoError(t, c.RunStreaming())

		assert.ErrorIs(t, c.ReadOnce(context.Background()), ErrModeConflict)
		assert.ErrorIs(t, c.PullRound(context.Background()), ErrModeConflict)
	})

	t.Run("read once then streaming", func(t *testing.T) {
		c, p := connect(t, testConfig())
		p.synch()
		require.NoError(t, c.ReadOnce(context.Background()))

		assert.ErrorIs(t, c.RunStreaming(), ErrModeConflict)
		assert.False(t, c.Streaming())
	})
}

func TestPullRound(t *testing.T) {
	c, p := connect(t, testConfig())
	h := subscribe(t, c, p, valueKey, device.AccessRead)

	go func() {
		req := p.expect(wire.MsgReq, metaKey)
		assert.Equal(t, encodeSubtype(MetaData), req)
		p.send(wire.MsgRespAck, metaKey, encodeSubtype(MetaData))
		p.send(wire.MsgData, valueKey, int32Payload(8))
		p.synch()
	}()

	require.NoError(t, c.PullRound(context.Background()))
	assert.Equal(t, int64(8), h.Snapshot().Record.Int("value"))
	assert.NoError(t, c.Err())
}

func TestStreamingConcurrentReads(t *testing.T) {
	pairCode := device.CodeSonar
	cfg := testConfig()
	cfg.Catalog.Register(&device.Spec{
		Code: pairCode,
		Name: "pair",
		Data: device.NewLayout("pair", device.Scalar("x", device.Int32), device.Scalar("y", device.Int32)),
	})
	c, p := connect(t, cfg)
	key := device.Key{Code: pairCode}
	h := subscribe(t, c, p, key, device.AccessRead)

	const frames = 500
	var torn atomic.Int32
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if s := h.Snapshot(); s != nil && s.Record.Int("x") != s.Record.Int("y") {
					torn.Add(1)
				}
			}
		}()
	}

	require.NoError(t, c.RunStreaming())
	go func() {
		for i := int32(1); i <= frames; i++ {
			p.send(wire.MsgData, key, wire.NewEncoder(8).PutInt32(i).PutInt32(i).Bytes())
			if i%50 == 0 {
				p.synch()
			}
		}
	}()

	waitFor(t, func() bool {
		s := h.Snapshot()
		return s != nil && s.Seq == frames
	})
	close(stop)
	wg.Wait()

	assert.Zero(t, torn.Load())
	assert.Equal(t, int64(frames), h.Snapshot().Record.Int("x"))
}

func TestContextCancelClosesConnection(t *testing.T) {
	c, p := connect(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		p.expect(wire.MsgReq, metaKey)
		cancel()
	}()

	_, err := c.RequestDeviceList(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, IsFatal(err))
	assert.Equal(t, StateClosed, c.State())
}

func TestCancelledContextSendsNothing(t *testing.T) {
	c, _ := connect(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.RequestDeviceList(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsFatal(err))
	assert.NoError(t, c.Err())
}

func TestCloseFailsPendingRequest(t *testing.T) {
	c, p := connect(t, testConfig())

	go func() {
		p.expect(wire.MsgReq, metaKey)
		_ = c.Close()
	}()

	_, err := c.RequestDriverName(context.Background(), valueCode)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, StateClosed, c.State())

	err = c.RequestData()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCloseEvent(t *testing.T) {
	c, _ := connect(t, testConfig())

	var got []events.Closed
	_, err := c.OnClosed(func(ev events.Closed) { got = append(got, ev) })
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	c.WaitEvents()

	require.Len(t, got, 1)
	assert.NoError(t, got[0].Err)
}

func TestMetaRequests(t *testing.T) {
	tests := []struct {
		name    string
		call    func(c *Client) (any, error)
		request []byte
		reply   []byte
		want    any
	}{
		{
			name: "driver name",
			call: func(c *Client) (any, error) {
				return c.RequestDriverName(context.Background(), device.CodeLaser)
			},
			request: wire.NewEncoder(4).PutUint16(MetaDriverInfo).PutUint16(device.CodeLaser).Bytes(),
			reply: wire.NewEncoder(0).PutUint16(MetaDriverInfo).PutUint16(device.CodeLaser).
				PutUint16(1).PutUint16(6665).PutBytes([]byte("sicklms200\x00\x00")).Bytes(),
			want: DriverInfo{ID: DeviceID{Key: device.Key{Code: device.CodeLaser, Index: 1}, Port: 6665},
				Name: "sicklms200"},
		},
		{
			name: "data mode",
			call: func(c *Client) (any, error) {
				return nil, c.SetDataDeliveryMode(context.Background(), PullAll)
			},
			request: []byte{0, 5, 1},
		},
		{
			name: "data frequency",
			call: func(c *Client) (any, error) {
				return nil, c.SetDataDeliveryFrequency(context.Background(), 0x0102)
			},
			request: []byte{0, 6, 1, 2},
		},
		{
			name: "authenticate",
			call: func(c *Client) (any, error) {
				return nil, c.Authenticate(context.Background(), "secret")
			},
			request: append([]byte{0, 7, 's', 'e', 'c', 'r', 'e', 't'}, make([]byte, AuthKeySize-6)...),
		},
		{
			name: "name service",
			call: func(c *Client) (any, error) {
				return c.ResolveNameService(context.Background(), "robot1")
			},
			request: append([]byte{0, 8, 'r', 'o', 'b', 'o', 't', '1'}, make([]byte, NameSize-6)...),
			reply:   []byte{0, 8, 0x1a, 0x0a},
			want:    uint16(6666),
		},
		{
			name: "empty device list",
			call: func(c *Client) (any, error) {
				return c.RequestDeviceList(context.Background())
			},
			request: []byte{0, 1},
			reply:   []byte{0, 1, 0, 0},
			want:    []DeviceID{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, p := connect(t, testConfig())

			go func() {
				req := p.expect(wire.MsgReq, metaKey)
				assert.Equal(t, tt.request, req)
				p.send(wire.MsgRespAck, metaKey, tt.reply)
			}()

			got, err := tt.call(c)
			require.NoError(t, err)
			if tt.want != nil {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestMetaRequestArgumentLimits(t *testing.T) {
	c, _ := connect(t, testConfig())

	err := c.Authenticate(context.Background(), string(make([]byte, AuthKeySize+1)))
	assert.ErrorIs(t, err, ErrKeyTooLong)

	_, err = c.ResolveNameService(context.Background(), string(make([]byte, NameSize+1)))
	assert.ErrorIs(t, err, ErrNameTooLong)

	assert.NoError(t, c.Err())
}

func TestMetaRequestNack(t *testing.T) {
	c, p := connect(t, testConfig())

	go func() {
		p.expect(wire.MsgReq, metaKey)
		p.send(wire.MsgRespNack, metaKey, encodeSubtype(MetaAuth))
	}()

	err := c.Authenticate(context.Background(), "wrong")
	assert.True(t, IsNack(err), "got %v", err)
	assert.False(t, IsFatal(err))
	assert.NoError(t, c.Err())
}

func TestMismatchedMetaReplyIsNotTaken(t *testing.T) {
	c, p := connect(t, testConfig())

	go func() {
		p.expect(wire.MsgReq, metaKey)
		p.send(wire.MsgRespAck, metaKey, []byte{0, 2, 0, 0}) // driver info, not ours
		p.send(wire.MsgRespAck, metaKey, []byte{0, 8, 0, 1})
	}()

	port, err := c.ResolveNameService(context.Background(), "r")
	require.NoError(t, err)
	assert.Equal(t, uint16(1), port)
}

func TestDeviceCommand(t *testing.T) {
	c, p := connect(t, testConfig())
	h := subscribe(t, c, p, valueKey, device.AccessWrite)

	require.NoError(t, h.Command(device.Record{"value": 258}))
	payload := p.expect(wire.MsgCmd, valueKey)
	assert.Equal(t, []byte{0, 0, 1, 2}, payload)

	assert.ErrorIs(t, c.Command(device.Key{Code: device.CodeLaser}, nil), ErrNotSubscribed)
}

func TestDeviceRequest(t *testing.T) {
	c, p := connect(t, testConfig())
	h := subscribe(t, c, p, valueKey, device.AccessAll)

	var acks atomic.Int32
	_, err := c.OnResponse(func(ev events.Response) {
		if ev.Key == valueKey {
			acks.Add(1)
		}
	})
	require.NoError(t, err)

	go func() {
		req := p.expect(wire.MsgReq, valueKey)
		assert.Equal(t, []byte{1}, req)
		p.send(wire.MsgRespAck, valueKey, []byte{1, 0, 0, 0, 9})
	}()

	resp, err := h.Request(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, wire.MsgRespAck, resp.Type)
	assert.Equal(t, int64(9), resp.Record.Int("value"))

	c.WaitEvents()
	assert.Equal(t, int32(1), acks.Load())
}

func TestDeviceRequestNack(t *testing.T) {
	c, p := connect(t, testConfig())
	h := subscribe(t, c, p, valueKey, device.AccessAll)

	nacks := make(chan events.Response, 1)
	_, err := c.OnNack(func(ev events.Response) { nacks <- ev })
	require.NoError(t, err)

	go func() {
		p.expect(wire.MsgReq, valueKey)
		p.send(wire.MsgRespNack, valueKey, nil)
	}()

	_, err = h.Request(context.Background(), 2, device.Record{"value": 1})
	assert.True(t, IsNack(err), "got %v", err)

	select {
	case ev := <-nacks:
		assert.Equal(t, valueKey, ev.Key)
	case <-time.After(time.Second):
		t.Fatal("no nack event")
	}
	lh, ok := h.Handler().(*device.LayoutHandler)
	require.True(t, ok)
	assert.Equal(t, uint64(1), lh.Nacks())
}

func TestDeviceRequestWithoutLayout(t *testing.T) {
	c, p := connect(t, testConfig())
	h := subscribe(t, c, p, valueKey, device.AccessAll)

	_, err := h.Request(context.Background(), 77, nil)
	assert.ErrorIs(t, err, device.ErrNoLayout)
	assert.NoError(t, c.Err())
}

func TestSnapshotTimestamps(t *testing.T) {
	c, p := connect(t, testConfig())
	h := subscribe(t, c, p, valueKey, device.AccessRead)

	hdr := wire.NewHeader(wire.MsgData, valueCode, 0, 4)
	hdr.TimeSec, hdr.TimeUsec = 100, 250000
	hdr.StampSec, hdr.StampUsec = 101, 0
	p.sendHeader(hdr, int32Payload(1))
	p.synch()
	require.NoError(t, c.ReadOnce(context.Background()))

	snap := h.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, time.Unix(100, 250000000), snap.Sampled())
	assert.Equal(t, time.Unix(101, 0), snap.Sent())
}

func TestErrorKinds(t *testing.T) {
	err := &Error{Kind: KindSubscription, Reason: ReasonDenied, Op: "subscribe", Key: keyPtr(valueKey)}
	assert.Equal(t, "player: subscribe position2d:0: subscription error: denied", err.Error())
	assert.True(t, err.Retryable())
	assert.False(t, err.Fatal())

	wrapped := &Error{Kind: KindIO, Op: "read", MsgType: wire.MsgData, Err: errors.New("boom")}
	assert.Equal(t, "player: read (DATA): i/o error: boom", wrapped.Error())
	assert.True(t, IsFatal(wrapped))

	assert.Equal(t, KindDesync, classify("read", wire.ErrDesync).Kind)
	assert.Equal(t, KindClosed, classify("read", io.EOF).Kind)
	assert.Equal(t, KindIO, classify("read", errors.New("reset")).Kind)
}

func TestSubscriptions(t *testing.T) {
	c, p := connect(t, testConfig())
	subscribe(t, c, p, valueKey, device.AccessRead)

	subs := c.Subscriptions()
	require.Len(t, subs, 1)
	assert.Equal(t, valueKey, subs[0].Key)
	assert.Equal(t, device.AccessRead, subs[0].Mode)
	assert.Equal(t, "fakebase", subs[0].Driver)
	assert.False(t, subs[0].Since.IsZero())
}
