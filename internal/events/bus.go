package events

import (
	"sync"
	"sync/atomic"

	evbus "github.com/asaskevich/EventBus"

	"github.com/muurk/playerclient/pkg/device"
	"github.com/muurk/playerclient/pkg/wire"
)

// Topic names an event stream.
type Topic string

// Topics
const (
	TopicData       Topic = "device:data"
	TopicResponse   Topic = "device:response" // RESP_ACK for a device
	TopicNack       Topic = "device:nack"
	TopicError      Topic = "device:error"
	TopicSubscribed Topic = "device:subscribed"
	TopicClosed     Topic = "conn:closed"
)

// Data is published after a handler accepted a DATA frame.
type Data struct {
	Key      device.Key
	Snapshot *device.Snapshot // nil for handlers that do not publish state
}

// Response is published for RESP_ACK, RESP_NACK and RESP_ERR frames routed
// to a device.
type Response struct {
	Key     device.Key
	Header  wire.Header
	Payload []byte
}

// Subscribed is published when a subscription reply was applied.
type Subscribed struct {
	Key    device.Key
	Mode   device.Access
	Driver string
}

// Closed is published once when the connection closes. Err is nil after a
// clean Close.
type Closed struct {
	Err error
}

// Bus wraps an asaskevich/EventBus. The underlying bus calls handlers
// synchronously; each topic has one handler on it that fans out to the
// subscribers added with On, and each subscriber queues events for a
// goroutine it owns, so publishing never waits for a callback.
type Bus struct {
	bus evbus.Bus

	// regMu serializes registering topic handlers on bus. mu guards subs
	// and is never held while calling into bus.
	regMu    sync.Mutex
	mu       sync.RWMutex
	subs     map[Topic]map[uint64]func(any)
	handlers map[Topic]func(any)
	nextID   uint64

	pendMu  sync.Mutex
	idle    *sync.Cond
	pending int

	quit chan struct{}
	once sync.Once
}

// New returns an empty bus.
func New() *Bus {
	b := &Bus{
		bus:      evbus.New(),
		subs:     make(map[Topic]map[uint64]func(any)),
		handlers: make(map[Topic]func(any)),
		quit:     make(chan struct{}),
	}
	b.idle = sync.NewCond(&b.pendMu)
	return b
}

// Publish delivers arg to every subscriber of topic.
func (b *Bus) Publish(topic Topic, arg any) {
	if b.bus.HasCallback(string(topic)) {
		b.bus.Publish(string(topic), arg)
	}
}

// HasSubscribers reports whether anything is subscribed to topic.
func (b *Bus) HasSubscribers(topic Topic) bool {
	return b.bus.HasCallback(string(topic))
}

// Wait blocks until no published event is waiting for its callback. Events
// published while Wait blocks extend the wait.
func (b *Bus) Wait() {
	b.pendMu.Lock()
	for b.pending > 0 {
		b.idle.Wait()
	}
	b.pendMu.Unlock()
}

func (b *Bus) queued() {
	b.pendMu.Lock()
	b.pending++
	b.pendMu.Unlock()
}

func (b *Bus) handled(n int) {
	if n == 0 {
		return
	}
	b.pendMu.Lock()
	b.pending -= n
	if b.pending == 0 {
		b.idle.Broadcast()
	}
	b.pendMu.Unlock()
}

// Close stops every subscriber once the events already queued for it have
// been handled. Events published after Close are dropped.
func (b *Bus) Close() {
	b.once.Do(func() { close(b.quit) })
}

func (b *Bus) fanout(topic Topic, arg any) {
	b.mu.RLock()
	fns := make([]func(any), 0, len(b.subs[topic]))
	for _, fn := range b.subs[topic] {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()
	for _, fn := range fns {
		fn(arg)
	}
}

func (b *Bus) add(topic Topic, fn func(any)) (uint64, error) {
	b.regMu.Lock()
	defer b.regMu.Unlock()

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	set, ok := b.subs[topic]
	if !ok {
		set = make(map[uint64]func(any))
		b.subs[topic] = set
	}
	set[id] = fn
	b.mu.Unlock()

	if _, ok := b.handlers[topic]; ok {
		return id, nil
	}
	h := func(arg any) { b.fanout(topic, arg) }
	if err := b.bus.Subscribe(string(topic), h); err != nil {
		b.mu.Lock()
		delete(set, id)
		b.mu.Unlock()
		return 0, err
	}
	b.handlers[topic] = h
	return id, nil
}

// remove drops one subscriber and takes the topic handler off the
// underlying bus with the last one.
func (b *Bus) remove(topic Topic, id uint64) {
	b.regMu.Lock()
	defer b.regMu.Unlock()

	b.mu.Lock()
	delete(b.subs[topic], id)
	empty := len(b.subs[topic]) == 0
	if empty {
		delete(b.subs, topic)
	}
	b.mu.Unlock()

	if h, ok := b.handlers[topic]; ok && empty {
		_ = b.bus.Unsubscribe(string(topic), h)
		delete(b.handlers, topic)
	}
}

// On subscribes fn to topic and returns a function that stops delivery.
// Events published on topic must be of type T; others are ignored. fn is
// called from one goroutine, in publish order.
func On[T any](b *Bus, topic Topic, fn func(T)) (cancel func(), err error) {
	s := &subscriber[T]{
		bus:    b,
		fn:     fn,
		signal: make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
	s.active.Store(true)
	id, err := b.add(topic, func(arg any) {
		if ev, ok := arg.(T); ok {
			s.enqueue(ev)
		}
	})
	if err != nil {
		return nil, err
	}
	go s.run()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.active.Store(false)
			b.remove(topic, id)
			close(s.stop)
		})
	}, nil
}

type subscriber[T any] struct {
	bus    *Bus
	fn     func(T)
	active atomic.Bool
	signal chan struct{}
	stop   chan struct{}

	mu     sync.Mutex
	queue  []T
	closed bool
}

func (s *subscriber[T]) enqueue(ev T) {
	if !s.active.Load() {
		return
	}
	select {
	case <-s.bus.quit:
		return
	default:
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, ev)
	s.bus.queued()
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscriber[T]) run() {
	for {
		select {
		case <-s.signal:
			s.deliver()
		case <-s.stop:
			s.finish()
			return
		case <-s.bus.quit:
			s.deliver()
			s.finish()
			return
		}
	}
}

// deliver hands queued events to fn until the queue is empty.
func (s *subscriber[T]) deliver() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		if s.active.Load() {
			s.fn(ev)
		}
		s.bus.handled(1)
	}
}

// finish closes the queue and discards what is left so Wait does not block
// on it.
func (s *subscriber[T]) finish() {
	s.mu.Lock()
	s.closed = true
	n := len(s.queue)
	s.queue = nil
	s.mu.Unlock()
	s.bus.handled(n)
}
