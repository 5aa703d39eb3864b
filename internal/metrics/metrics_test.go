package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/muurk/playerclient/pkg/wire"
)

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg, "localhost:6665")

	c.FrameReceived(wire.NewHeader(wire.MsgData, 48, 0, 25))
	c.FrameReceived(wire.NewHeader(wire.MsgData, 48, 0, 25))
	c.FrameReceived(wire.NewHeader(wire.MsgSynch, 1, 0, 0))
	c.FrameSent(wire.NewHeader(wire.MsgReq, 1, 0, 7))
	c.StrayBytes(3)
	c.StrayBytes(0)
	c.Unroutable()
	c.HandlerError("laser:0")
	c.Subscriptions(2)
	c.Request("ack", 5*time.Millisecond)

	if got := testutil.ToFloat64(c.framesReceived.WithLabelValues("DATA")); got != 2 {
		t.Errorf("frames_received{DATA} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.bytesReceived); got != float64(3*wire.HeaderSize+50) {
		t.Errorf("bytes_received = %v", got)
	}
	if got := testutil.ToFloat64(c.bytesSent); got != float64(wire.HeaderSize+7) {
		t.Errorf("bytes_sent = %v", got)
	}
	if got := testutil.ToFloat64(c.strayBytes); got != 3 {
		t.Errorf("stray_bytes = %v", got)
	}
	if got := testutil.ToFloat64(c.subscriptions); got != 2 {
		t.Errorf("subscriptions = %v", got)
	}
	if n := testutil.CollectAndCount(c.requestLatency); n != 1 {
		t.Errorf("request_duration series = %d, want 1", n)
	}
}

func TestNewReusesRegisteredSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(reg, "robot:6665")
	b := New(reg, "robot:6665")

	a.Unroutable()
	b.Unroutable()
	if got := testutil.ToFloat64(a.unroutable); got != 2 {
		t.Errorf("shared unroutable = %v, want 2", got)
	}
}

func TestNewUnregistered(t *testing.T) {
	c := New(nil, "x")
	c.Unexpected()
	if got := testutil.ToFloat64(c.unexpected); got != 1 {
		t.Errorf("unexpected = %v", got)
	}
}
