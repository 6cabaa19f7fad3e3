// Package eventbus implements the L1 event bus: a bounded MPSC queue
// drained by one dedicated worker goroutine, with typed subscribers keyed
// by reflect.Type the way edwinsyarief-lazyecs's Subscribe[T]/Publish[T]
// does, generalized from lazyecs's synchronous fan-out into the queued,
// worker-owned dispatch loop spec.md §4.2 requires, plus a size-prefixed
// circular payload buffer for byte-carrying events originating outside the
// process's type system (backend/asset-loader callbacks).
package eventbus

import (
	"reflect"
	"sync"

	"github.com/forgeengine/vkr/vkrerr"
	"go.uber.org/zap"
)

// maxEventTypes bounds the reflect.Type → id table, matching
// edwinsyarief-lazyecs's EventBus.MaxEventTypes.
const maxEventTypes = 256

type envelope struct {
	typeID       uint16
	value        any
	isBytes      bool
	byteOffset   int
	byteLen      int
	ringBlockLen int
}

// Options configures a Bus. The zero value is usable: capacity defaults to
// 1024 queued envelopes and a 64 KiB payload ring, the same plain
// Options-struct convention ecs.Options and jobs.Options use elsewhere in
// this module.
type Options struct {
	QueueCapacity int
	PayloadRing   int
	Logger        *zap.Logger
}

// Bus is a bounded, worker-drained event queue with typed subscribers.
type Bus struct {
	mu   sync.Mutex
	cond *sync.Cond

	running bool
	wg      sync.WaitGroup

	queue    []envelope
	qHead    int
	qCount   int

	typeMap  map[reflect.Type]uint16
	nextType uint16
	handlers [maxEventTypes][]any

	payload *payloadRing
	log     *zap.Logger

	dropped   int64
	processed int64
}

// New creates a Bus and starts its worker goroutine.
func New(opts Options) *Bus {
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = 1024
	}
	if opts.PayloadRing <= 0 {
		opts.PayloadRing = 64 << 10
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	b := &Bus{
		queue:   make([]envelope, opts.QueueCapacity),
		typeMap: make(map[reflect.Type]uint16, 16),
		payload: newPayloadRing(opts.PayloadRing),
		log:     opts.Logger,
		running: true,
	}
	b.cond = sync.NewCond(&b.mu)
	b.wg.Add(1)
	go b.run()
	return b
}

func (b *Bus) typeID(t reflect.Type) (uint16, error) {
	if id, ok := b.typeMap[t]; ok {
		return id, nil
	}
	if int(b.nextType) >= maxEventTypes {
		return 0, vkrerr.New(vkrerr.InvalidParameter, "eventbus: too many distinct event types (max %d)", maxEventTypes)
	}
	id := b.nextType
	b.nextType++
	b.typeMap[t] = id
	return id, nil
}

// Subscribe registers handler for events of type T, appended after any
// handler already subscribed for T so callbacks run in subscription order.
// A duplicate (T, handler) pair — detected by comparing the handler's code
// pointer — is ignored.
func Subscribe[T any](b *Bus, handler func(T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := reflect.TypeFor[T]()
	id, err := b.typeID(t)
	if err != nil {
		b.log.Warn("eventbus: subscribe failed", zap.Error(err))
		return
	}
	hp := reflect.ValueOf(handler).Pointer()
	for _, existing := range b.handlers[id] {
		if reflect.ValueOf(existing).Pointer() == hp {
			return
		}
	}
	b.handlers[id] = append(b.handlers[id], handler)
}

// Unsubscribe removes handler from T's subscriber list. Reports whether a
// matching handler was found.
func Unsubscribe[T any](b *Bus, handler func(T)) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := reflect.TypeFor[T]()
	id, ok := b.typeMap[t]
	if !ok {
		return false
	}
	hp := reflect.ValueOf(handler).Pointer()
	hs := b.handlers[id]
	for i, existing := range hs {
		if reflect.ValueOf(existing).Pointer() == hp {
			b.handlers[id] = append(hs[:i], hs[i+1:]...)
			return true
		}
	}
	return false
}

// Publish enqueues a typed event for asynchronous delivery on the bus
// worker goroutine. It reports false without blocking if the queue is full
// (spec.md's dispatch-never-blocks-on-full rule).
func Publish[T any](b *Bus, event T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return false
	}
	t := reflect.TypeFor[T]()
	id, err := b.typeID(t)
	if err != nil {
		b.dropped++
		return false
	}
	return b.enqueueLocked(envelope{typeID: id, value: event})
}

// DispatchBytes enqueues a raw byte payload for subscribers registered via
// SubscribeBytes(typeName). The payload is copied into the bus's circular
// payload ring; the copy is released once every subscriber has run.
func (b *Bus) DispatchBytes(typeName string, data []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return false
	}
	id, err := b.typeIDForName(typeName)
	if err != nil {
		b.dropped++
		return false
	}
	offset, blockLen, err := b.payload.push(data)
	if err != nil {
		b.dropped++
		b.log.Warn("eventbus: payload dispatch failed", zap.Error(err))
		return false
	}
	return b.enqueueLocked(envelope{typeID: id, isBytes: true, byteOffset: offset, byteLen: len(data), ringBlockLen: blockLen})
}

// SubscribeBytes registers handler for DispatchBytes events named typeName.
func (b *Bus) SubscribeBytes(typeName string, handler func([]byte)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, err := b.typeIDForName(typeName)
	if err != nil {
		b.log.Warn("eventbus: subscribe bytes failed", zap.Error(err))
		return
	}
	b.handlers[id] = append(b.handlers[id], handler)
}

// typeIDForName gives byte-carrying events their own reflect.Type slot
// (synthesized per name) so they share the same handler table as typed
// events without colliding with a real Go type.
func (b *Bus) typeIDForName(name string) (uint16, error) {
	type byteEventTag struct{ name string }
	key := reflect.TypeOf(byteEventTag{name: name})
	return b.typeID(key)
}

func (b *Bus) enqueueLocked(e envelope) bool {
	if b.qCount == len(b.queue) {
		b.dropped++
		return false
	}
	idx := (b.qHead + b.qCount) % len(b.queue)
	b.queue[idx] = e
	b.qCount++
	b.cond.Signal()
	return true
}

// Dropped returns the number of dispatches that failed because the queue
// or payload ring was full.
func (b *Bus) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Processed returns the number of envelopes the worker has finished
// delivering.
func (b *Bus) Processed() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.processed
}

func (b *Bus) run() {
	defer b.wg.Done()
	for {
		b.mu.Lock()
		for b.qCount == 0 && b.running {
			b.cond.Wait()
		}
		if b.qCount == 0 && !b.running {
			b.mu.Unlock()
			return
		}
		e := b.queue[b.qHead]
		b.qHead = (b.qHead + 1) % len(b.queue)
		b.qCount--
		hs := append([]any(nil), b.handlers[e.typeID]...)
		b.mu.Unlock()

		b.deliver(e, hs)

		b.mu.Lock()
		b.processed++
		if e.isBytes {
			b.payload.pop(e.ringBlockLen)
		}
		b.mu.Unlock()
	}
}

func (b *Bus) deliver(e envelope, handlers []any) {
	if e.isBytes {
		data := b.payload.read(e.byteOffset, e.byteLen)
		for _, h := range handlers {
			h.(func([]byte))(data)
		}
		return
	}
	for _, h := range handlers {
		callTyped(h, e.value)
	}
}

// callTyped invokes a type-erased func(T) handler against a boxed value
// whose dynamic type is exactly T. The handler was stored as `any` by
// Subscribe[T], which knows T at the call site; here only reflection can
// get back to a callable, since the worker loop handles every event type
// through one non-generic path.
func callTyped(handler any, value any) {
	reflect.ValueOf(handler).Call([]reflect.Value{reflect.ValueOf(value)})
}

// Shutdown stops accepting new dispatches, wakes the worker, and waits for
// it to drain whatever was already queued before it exits.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	b.running = false
	b.cond.Broadcast()
	b.mu.Unlock()
	b.wg.Wait()
}
