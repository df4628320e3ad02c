// Package broker gates a position simulator behind a connect/disconnect
// lifecycle and fans its events out to subscribers.
package broker

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"metro-sim/internal/logging"
	"metro-sim/internal/sim"
	"metro-sim/internal/vehicle"
)

const (
	DefaultTickInterval   = 2 * time.Second
	DefaultConnectLatency = 500 * time.Millisecond
)

// Options tunes a Broker. Zero values fall back to the defaults.
type Options struct {
	TickInterval   time.Duration
	ConnectLatency time.Duration
	Logger         *slog.Logger

	// NewSession generates session ids; uuid v4 when nil.
	NewSession func() string
}

type eventKind int

const (
	kindVehicle eventKind = iota
	kindStatus
	kindError
)

type subscriber struct {
	sub     *Subscription
	kind    eventKind
	vehicle func(vehicle.State)
	status  func(Status)
	err     func(error)
}

// Subscription is the handle returned by the On* methods.
type Subscription struct {
	b      *Broker
	id     uint64
	active atomic.Bool
}

// Unsubscribe stops delivery to the handler. Events already queued for it
// are dropped. Safe to call more than once and from inside a callback.
func (s *Subscription) Unsubscribe() {
	if s == nil || !s.active.CompareAndSwap(true, false) {
		return
	}
	s.b.removeSubscriber(s.id)
}

// Broker owns a Simulator and drives it while connected.
type Broker struct {
	log            *slog.Logger
	tickInterval   time.Duration
	connectLatency time.Duration
	newSession     func() string
	queue          *serialQueue

	// mu guards the lifecycle state and the simulator cursor as one unit.
	mu      sync.Mutex
	sim     *sim.Simulator
	status  Status
	gen     uint64
	session string
	cancel  context.CancelFunc
	done    chan struct{}
	scopes  map[Scope]struct{}
	closed  bool

	subMu  sync.RWMutex
	nextID uint64
	subs   []*subscriber
}

// New returns a disconnected broker driving s.
func New(s *sim.Simulator, opts Options) *Broker {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.ConnectLatency < 0 {
		opts.ConnectLatency = 0
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.NewSession == nil {
		opts.NewSession = func() string { return uuid.NewString() }
	}
	log := opts.Logger.With("component", "broker")
	return &Broker{
		log:            log,
		tickInterval:   opts.TickInterval,
		connectLatency: opts.ConnectLatency,
		newSession:     opts.NewSession,
		queue:          newSerialQueue(log),
		sim:            s,
		scopes:         make(map[Scope]struct{}),
	}
}

// Connect starts the connection handshake. It is a no-op unless the broker
// is disconnected. Connecting is published before Connect returns; Connected
// follows once the connect latency has elapsed.
func (b *Broker) Connect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		b.log.Warn("connect ignored", "err", ErrClosed)
		return
	}
	if b.status != Disconnected {
		b.log.Debug("connect ignored", "status", b.status)
		return
	}
	b.gen++
	ctx, cancel := context.WithCancel(logging.NewContext(context.Background(), b.log))
	done := make(chan struct{})
	b.cancel, b.done = cancel, done
	b.setStatus(Connecting)
	go b.run(ctx, b.gen, done)
}

// Disconnect stops the tick loop or aborts a pending connect and publishes
// Disconnected. When it returns no further tick will be published.
// Idempotent.
func (b *Broker) Disconnect() {
	b.mu.Lock()
	if b.status == Disconnected {
		b.mu.Unlock()
		return
	}
	prev := b.status
	b.gen++
	b.cancel()
	done := b.done
	b.cancel, b.done = nil, nil
	b.session = ""
	b.setStatus(Disconnected)
	if prev == Connecting {
		b.publishError(&ConnectionError{Op: "connect", Err: ErrConnectAborted})
	}
	b.mu.Unlock()
	<-done
}

func (b *Broker) run(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)
	log := logging.FromContext(ctx)

	timer := time.NewTimer(b.connectLatency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		log.Debug("connect cancelled")
		return
	case <-timer.C:
	}
	if !b.establish(gen) {
		return
	}

	ticker := time.NewTicker(b.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if !b.tick(gen) {
				return
			}
		case <-ctx.Done():
			log.Debug("tick loop stopped")
			return
		}
	}
}

func (b *Broker) establish(gen uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.gen || b.status != Connecting {
		return false
	}
	b.session = b.newSession()
	b.setStatus(Connected)
	b.log.Info("connected", "session", b.session, "vehicle_id", b.sim.VehicleID(), "route_id", b.sim.RouteID(), "tick_interval", b.tickInterval)
	return true
}

func (b *Broker) tick(gen uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.gen || b.status != Connected {
		return false
	}
	st := b.sim.Step()
	b.publishVehicle(st)
	return true
}

// setStatus must be called with mu held.
func (b *Broker) setStatus(s Status) {
	if b.status == s {
		return
	}
	b.log.Info("connection status", "from", b.status, "to", s)
	b.status = s
	b.publishStatus(s)
}

// Status reports the current lifecycle state.
func (b *Broker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// Session returns the id of the current connection, empty unless connected.
func (b *Broker) Session() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}

// VehicleID and RouteID identify the simulated vehicle.
func (b *Broker) VehicleID() string { return b.sim.VehicleID() }
func (b *Broker) RouteID() string   { return b.sim.RouteID() }

// SubscribeTo records a scope request. Scopes are advisory: every
// subscriber still receives every event.
func (b *Broker) SubscribeTo(scope Scope) {
	b.mu.Lock()
	b.scopes[scope] = struct{}{}
	b.mu.Unlock()
	b.log.Info("subscribed to scope", "scope", scope)
}

// UnsubscribeFrom discards a scope recorded by SubscribeTo.
func (b *Broker) UnsubscribeFrom(scope Scope) {
	b.mu.Lock()
	delete(b.scopes, scope)
	b.mu.Unlock()
	b.log.Info("unsubscribed from scope", "scope", scope)
}

// Scopes lists the recorded scopes in a stable order.
func (b *Broker) Scopes() []Scope {
	b.mu.Lock()
	out := make([]Scope, 0, len(b.scopes))
	for s := range b.scopes {
		out = append(out, s)
	}
	b.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].VehicleID != out[j].VehicleID {
			return out[i].VehicleID < out[j].VehicleID
		}
		return out[i].LineID < out[j].LineID
	})
	return out
}

// OnVehicleUpdate registers fn for every published vehicle snapshot.
func (b *Broker) OnVehicleUpdate(fn func(vehicle.State)) *Subscription {
	return b.addSubscriber(&subscriber{kind: kindVehicle, vehicle: fn})
}

// OnConnectionStatus registers fn for lifecycle transitions.
func (b *Broker) OnConnectionStatus(fn func(Status)) *Subscription {
	return b.addSubscriber(&subscriber{kind: kindStatus, status: fn})
}

// OnError registers fn for runtime errors.
func (b *Broker) OnError(fn func(error)) *Subscription {
	return b.addSubscriber(&subscriber{kind: kindError, err: fn})
}

// ReportError publishes err on the error channel. Collaborators use it to
// surface failures that happen outside the broker.
func (b *Broker) ReportError(err error) {
	if err == nil {
		return
	}
	b.publishError(err)
}

// Sync blocks until every event published before the call has been
// delivered. It must not be called from a subscriber callback.
func (b *Broker) Sync() {
	b.queue.flush()
}

// Close disconnects, delivers pending events and stops the delivery
// goroutine. Later Connect calls are ignored.
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.closed = true
	b.mu.Unlock()
	b.Disconnect()
	b.queue.close()
	b.log.Info("broker closed")
	return nil
}

func (b *Broker) addSubscriber(s *subscriber) *Subscription {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	b.nextID++
	s.sub = &Subscription{b: b, id: b.nextID}
	s.sub.active.Store(true)
	b.subs = append(b.subs, s)
	return s.sub
}

func (b *Broker) removeSubscriber(id uint64) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	for i, s := range b.subs {
		if s.sub.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

func (b *Broker) snapshot(kind eventKind) []*subscriber {
	b.subMu.RLock()
	defer b.subMu.RUnlock()
	var out []*subscriber
	for _, s := range b.subs {
		if s.kind == kind {
			out = append(out, s)
		}
	}
	return out
}

func (b *Broker) publishVehicle(st vehicle.State) {
	subs := b.snapshot(kindVehicle)
	b.enqueue(func() {
		for _, s := range subs {
			if s.sub.active.Load() {
				b.call(func() { s.vehicle(st) })
			}
		}
	})
}

func (b *Broker) publishStatus(st Status) {
	subs := b.snapshot(kindStatus)
	b.enqueue(func() {
		for _, s := range subs {
			if s.sub.active.Load() {
				b.call(func() { s.status(st) })
			}
		}
	})
}

func (b *Broker) publishError(err error) {
	b.log.Warn("publishing error", "err", err)
	subs := b.snapshot(kindError)
	b.enqueue(func() {
		for _, s := range subs {
			if s.sub.active.Load() {
				b.call(func() { s.err(err) })
			}
		}
	})
}

func (b *Broker) enqueue(fn func()) {
	if !b.queue.submit(fn) {
		b.log.Debug("event dropped after close")
	}
}

// call recovers a panicking callback.
func (b *Broker) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("subscriber panicked", "panic", r)
		}
	}()
	fn()
}
