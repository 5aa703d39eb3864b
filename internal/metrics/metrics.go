package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/muurk/playerclient/pkg/wire"
)

const namespace = "playerclient"

// Collector holds the per-connection series.
type Collector struct {
	framesReceived *prometheus.CounterVec
	framesSent     *prometheus.CounterVec
	bytesReceived  prometheus.Counter
	bytesSent      prometheus.Counter
	strayBytes     prometheus.Counter
	unroutable     prometheus.Counter
	unexpected     prometheus.Counter
	handlerErrors  *prometheus.CounterVec
	subscriptions  prometheus.Gauge
	requestLatency *prometheus.HistogramVec
}

// New builds a Collector labelled with server and registers it on reg.
func New(reg prometheus.Registerer, server string) *Collector {
	labels := prometheus.Labels{"server": server}
	c := &Collector{
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "frames_received_total",
			Help: "Frames read from the server by message type.", ConstLabels: labels,
		}, []string{"type"}),
		framesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "frames_sent_total",
			Help: "Frames written to the server by message type.", ConstLabels: labels,
		}, []string{"type"}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "bytes_received_total",
			Help: "Header and payload bytes read.", ConstLabels: labels,
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "bytes_sent_total",
			Help: "Header and payload bytes written.", ConstLabels: labels,
		}),
		strayBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "stray_bytes_total",
			Help: "Bytes skipped while searching for a frame marker.", ConstLabels: labels,
		}),
		unroutable: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "unroutable_frames_total",
			Help: "DATA and response frames for devices that are not subscribed.", ConstLabels: labels,
		}),
		unexpected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "unexpected_frames_total",
			Help: "CMD, REQ and unknown message types received from the server.", ConstLabels: labels,
		}),
		handlerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "handler_errors_total",
			Help: "Payloads a device handler failed to decode.", ConstLabels: labels,
		}, []string{"device"}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "subscriptions",
			Help: "Devices currently subscribed.", ConstLabels: labels,
		}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "request_duration_seconds",
			Help:        "Time from sending a REQ to its response.",
			ConstLabels: labels,
			Buckets:     []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"result"}),
	}

	if reg != nil {
		c.framesReceived = register(reg, c.framesReceived)
		c.framesSent = register(reg, c.framesSent)
		c.bytesReceived = register(reg, c.bytesReceived)
		c.bytesSent = register(reg, c.bytesSent)
		c.strayBytes = register(reg, c.strayBytes)
		c.unroutable = register(reg, c.unroutable)
		c.unexpected = register(reg, c.unexpected)
		c.handlerErrors = register(reg, c.handlerErrors)
		c.subscriptions = register(reg, c.subscriptions)
		c.requestLatency = register(reg, c.requestLatency)
	}
	return c
}

// register registers col, or returns the already registered equivalent.
func register[T prometheus.Collector](reg prometheus.Registerer, col T) T {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		// A conflicting descriptor; keep the unregistered collector.
	}
	return col
}

// FrameReceived counts one frame read from the server.
func (c *Collector) FrameReceived(h wire.Header) {
	c.framesReceived.WithLabelValues(h.Type.String()).Inc()
	c.bytesReceived.Add(float64(h.FrameSize()))
}

// FrameSent counts one frame written to the server.
func (c *Collector) FrameSent(h wire.Header) {
	c.framesSent.WithLabelValues(h.Type.String()).Inc()
	c.bytesSent.Add(float64(h.FrameSize()))
}

// StrayBytes counts bytes skipped before a marker.
func (c *Collector) StrayBytes(n int) {
	if n > 0 {
		c.strayBytes.Add(float64(n))
	}
}

// Unroutable counts a frame for a device that is not subscribed.
func (c *Collector) Unroutable() { c.unroutable.Inc() }

// Unexpected counts a frame a client should never receive.
func (c *Collector) Unexpected() { c.unexpected.Inc() }

// HandlerError counts a payload the named device failed to decode.
func (c *Collector) HandlerError(device string) {
	c.handlerErrors.WithLabelValues(device).Inc()
}

// Subscriptions sets the number of subscribed devices.
func (c *Collector) Subscriptions(n int) { c.subscriptions.Set(float64(n)) }

// Request observes a completed request. result is "ack", "nack", "error" or
// "failed".
func (c *Collector) Request(result string, d time.Duration) {
	c.requestLatency.WithLabelValues(result).Observe(d.Seconds())
}
