package relay

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/muurk/playerclient/internal/events"
	"github.com/muurk/playerclient/internal/logging"
	"github.com/muurk/playerclient/pkg/device"
	"github.com/muurk/playerclient/pkg/player"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

// Source is the connection the relay publishes. *player.Client implements it.
type Source interface {
	OnData(fn func(events.Data)) (func(), error)
	Subscriptions() []player.Subscription
}

// Options configures a Server.
type Options struct {
	Logger *zap.Logger

	// Gatherer serves /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// Server relays device snapshots to WebSocket clients as JSON.
type Server struct {
	log      *zap.Logger
	src      Source
	gatherer prometheus.Gatherer
	upgrader websocket.Upgrader
	cancel   func()

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// Message is one relayed DATA frame.
type Message struct {
	Device  string        `json:"device"`
	Code    uint16        `json:"code"`
	Index   uint16        `json:"index"`
	Seq     uint64        `json:"seq"`
	Sampled time.Time     `json:"sampled"`
	Sent    time.Time     `json:"sent"`
	Size    int32         `json:"size"`
	Record  device.Record `json:"record,omitempty"`
	Raw     []byte        `json:"raw,omitempty"` // only when there is no record
}

// DeviceInfo is one entry of /devices.
type DeviceInfo struct {
	Device string    `json:"device"`
	Mode   string    `json:"mode"`
	Driver string    `json:"driver"`
	Since  time.Time `json:"since"`
}

// New subscribes to src and returns a relay for it.
func New(src Source, opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = logging.GetLogger()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		log:      opts.Logger,
		src:      src,
		gatherer: opts.Gatherer,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		clients: make(map[*client]struct{}),
	}

	cancel, err := src.OnData(s.broadcast)
	if err != nil {
		return nil, err
	}
	s.cancel = cancel
	return s, nil
}

// Handler returns the relay's HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/devices", s.handleDevices)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return mux
}

// Close stops relaying and disconnects every client.
func (s *Server) Close() {
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for c := range s.clients {
		c.close()
	}
	s.clients = nil
}

// Clients returns the number of connected WebSocket clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) add(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.clients[c] = struct{}{}
	return true
}

func (s *Server) remove(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		c.close()
	}
}

func newMessage(ev events.Data) *Message {
	m := &Message{Device: ev.Key.String(), Code: ev.Key.Code, Index: ev.Key.Index}
	if snap := ev.Snapshot; snap != nil {
		m.Seq = snap.Seq
		m.Sampled = snap.Sampled()
		m.Sent = snap.Sent()
		m.Size = snap.Header.Size
		m.Record = snap.Record
		if snap.Record == nil {
			m.Raw = snap.Raw
		}
	}
	return m
}

// broadcast runs on the source's event goroutine.
func (s *Server) broadcast(ev events.Data) {
	data, err := json.Marshal(newMessage(ev))
	if err != nil {
		s.log.Warn("Failed to encode snapshot", zap.Stringer("device", ev.Key), zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		if !c.wants(ev.Key) {
			continue
		}
		select {
		case c.send <- data:
		default:
			s.log.Warn("Dropping snapshot for slow client",
				zap.String("remote_addr", c.remote), zap.Stringer("device", ev.Key))
		}
	}
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	subs := s.src.Subscriptions()
	out := make([]DeviceInfo, 0, len(subs))
	for _, sub := range subs {
		out = append(out, DeviceInfo{
			Device: sub.Key.String(),
			Mode:   sub.Mode.String(),
			Driver: sub.Driver,
			Since:  sub.Since,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.log.Warn("Failed to write device list", zap.Error(err))
	}
}

// handleWebSocket streams snapshots. The optional repeated "device" query
// parameter (e.g. ?device=laser:0) limits the stream to those devices.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query()["device"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	c := &client{remote: r.RemoteAddr, filter: filter, send: make(chan []byte, sendBuffer), done: make(chan struct{})}
	if !s.add(c) {
		http.Error(w, "relay closed", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.remove(c)
		s.log.Warn("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}
	logging.LogConnection(s.log, r.RemoteAddr, "relay client connected")

	go c.readLoop(conn, func() { s.remove(c) })
	c.writeLoop(conn, s.log)
	s.remove(c)
	logging.LogConnection(s.log, r.RemoteAddr, "relay client disconnected")
}

func parseFilter(values []string) (map[device.Key]bool, error) {
	if len(values) == 0 {
		return nil, nil
	}
	filter := make(map[device.Key]bool, len(values))
	for _, v := range values {
		k, err := device.ParseKey(v)
		if err != nil {
			return nil, err
		}
		filter[k] = true
	}
	return filter, nil
}

type client struct {
	remote string
	filter map[device.Key]bool // nil relays every device
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func (c *client) wants(k device.Key) bool {
	return c.filter == nil || c.filter[k]
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// readLoop discards client messages and notices when the peer goes away.
func (c *client) readLoop(conn *websocket.Conn, onClose func()) {
	defer onClose()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writeLoop(conn *websocket.Conn, log *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug("Relay write failed", zap.String("remote_addr", c.remote), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}
