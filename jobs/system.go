package jobs

import (
	"context"
	"sync"

	"github.com/forgeengine/vkr/internal/container"
	"github.com/forgeengine/vkr/internal/mem"
	"github.com/forgeengine/vkr/vkrerr"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Options configures a System.
type Options struct {
	SlotCount   int
	WorkerCount int
	// WorkerTypeMask returns the affinity mask for worker i, 0..WorkerCount-1.
	// If nil, every worker accepts every type_mask (all bits set).
	WorkerTypeMask func(worker int) uint32
	ScratchSize    uintptr
	Logger         *zap.Logger
	Tracer         trace.Tracer
}

// System is the fixed slot table plus worker pool spec.md §4.5 describes.
// One mutex guards all mutable state; workCond wakes workers when a
// dequeueable job may exist, doneCond wakes Wait() callers when a slot's
// generation advances. The slot-table capacity bound is enforced by a
// golang.org/x/sync/semaphore.Weighted instead of a hand-rolled
// "slots_available" condition variable, an idiomatic Go substitute for the
// same blocking contract (Submit blocks until a slot is free or shutdown).
type System struct {
	mu       sync.Mutex
	workCond *sync.Cond
	doneCond *sync.Cond

	slots     []slot
	freeStack []uint32
	queues    [priorityCount]*container.Queue[uint32]

	slotSem *semaphore.Weighted

	shuttingDown bool
	group        *errgroup.Group
	groupCtx     context.Context
	cancel       context.CancelFunc

	scratch []mem.Allocator

	log    *zap.Logger
	tracer trace.Tracer
}

// New creates a System and starts its worker pool.
func New(opts Options) *System {
	if opts.SlotCount <= 0 {
		opts.SlotCount = 256
	}
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = 4
	}
	if opts.ScratchSize == 0 {
		opts.ScratchSize = 1 << 20
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Tracer == nil {
		opts.Tracer = trace.NewNoopTracerProvider().Tracer("jobs")
	}

	s := &System{
		slots:     make([]slot, opts.SlotCount),
		freeStack: make([]uint32, opts.SlotCount),
		slotSem:   semaphore.NewWeighted(int64(opts.SlotCount)),
		scratch:   make([]mem.Allocator, opts.WorkerCount),
		log:       opts.Logger,
		tracer:    opts.Tracer,
	}
	for i := range s.queues {
		s.queues[i] = container.NewQueue[uint32](opts.SlotCount)
	}
	for i := range s.freeStack {
		s.freeStack[i] = uint32(opts.SlotCount - 1 - i)
	}
	s.workCond = sync.NewCond(&s.mu)
	s.doneCond = sync.NewCond(&s.mu)

	ctx, cancel := context.WithCancel(context.Background())
	s.groupCtx = ctx
	s.cancel = cancel
	g, _ := errgroup.WithContext(ctx)
	s.group = g

	for i := 0; i < opts.WorkerCount; i++ {
		arena, err := mem.New(opts.ScratchSize, 0)
		var alloc mem.Allocator
		if err != nil {
			alloc = mem.NewGeneralAllocator()
		} else {
			alloc = mem.NewArenaAllocator(arena)
		}
		s.scratch[i] = alloc

		mask := ^uint32(0)
		if opts.WorkerTypeMask != nil {
			mask = opts.WorkerTypeMask(i)
		}
		worker := i
		g.Go(func() error {
			s.runWorker(worker, mask)
			return nil
		})
	}
	return s
}

// Submit enqueues desc, blocking until a slot is free or the system is
// shutting down.
func (s *System) Submit(ctx context.Context, desc Desc) (Handle, error) {
	acqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.groupCtx, cancel)
	defer stop()
	if err := s.slotSem.Acquire(acqCtx, 1); err != nil {
		return Handle{}, vkrerr.Wrap(vkrerr.NotInitialized, err, "jobs: submit failed to acquire slot")
	}
	return s.fillSlot(desc)
}

// TrySubmit behaves like Submit but returns false immediately if no slot is
// free, rather than blocking.
func (s *System) TrySubmit(desc Desc) (Handle, bool) {
	if !s.slotSem.TryAcquire(1) {
		return Handle{}, false
	}
	h, err := s.fillSlot(desc)
	if err != nil {
		return Handle{}, false
	}
	return h, true
}

func (s *System) fillSlot(desc Desc) (Handle, error) {
	s.mu.Lock()
	if s.shuttingDown {
		s.mu.Unlock()
		s.slotSem.Release(1)
		return Handle{}, vkrerr.New(vkrerr.NotInitialized, "jobs: system is shutting down")
	}

	idx := s.freeStack[len(s.freeStack)-1]
	s.freeStack = s.freeStack[:len(s.freeStack)-1]

	sl := &s.slots[idx]
	sl.state = StatePending
	sl.priority = desc.Priority
	sl.typeMask = desc.TypeMask
	sl.fn = desc.Fn
	sl.onSuccess = desc.OnSuccess
	sl.onFailure = desc.OnFailure
	if len(desc.Payload) > 0 {
		sl.payload = append(sl.payload[:0], desc.Payload...)
	}

	h := Handle{ID: idx, Generation: sl.generation}

	remaining := int32(0)
	for _, dep := range desc.Dependencies {
		if int(dep.ID) >= len(s.slots) {
			continue
		}
		parent := &s.slots[dep.ID]
		if parent.generation != dep.Generation || parent.state == StateCompleted {
			continue // stale or already-satisfied dependency
		}
		parent.dependents = append(parent.dependents, h)
		remaining++
	}
	sl.remainingDeps = remaining

	if !desc.DeferEnqueue && remaining == 0 {
		if !s.enqueueLocked(idx) {
			sl.reset()
			sl.generation++
			s.freeStack = append(s.freeStack, idx)
			s.mu.Unlock()
			s.slotSem.Release(1)
			return Handle{}, vkrerr.New(vkrerr.ResourceCreationFailed, "jobs: priority queue full")
		}
	}
	s.mu.Unlock()
	return h, nil
}

// enqueueLocked pushes slot idx onto its priority queue and marks it
// queued. Caller holds s.mu.
func (s *System) enqueueLocked(idx uint32) bool {
	sl := &s.slots[idx]
	if !s.queues[sl.priority].Enqueue(idx) {
		return false
	}
	sl.state = StateQueued
	s.workCond.Broadcast()
	return true
}

// AddDependency registers dep as a dependency of job, legal only while job
// is still pending (not yet enqueued).
func (s *System) AddDependency(job, dep Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(job.ID) >= len(s.slots) || s.slots[job.ID].generation != job.Generation {
		return vkrerr.New(vkrerr.InvalidParameter, "jobs: stale job handle")
	}
	jobSlot := &s.slots[job.ID]
	if jobSlot.state != StatePending {
		return vkrerr.New(vkrerr.InvalidParameter, "jobs: add_dependency only legal while pending")
	}
	if int(dep.ID) >= len(s.slots) {
		return nil
	}
	parent := &s.slots[dep.ID]
	if parent.generation != dep.Generation || parent.state == StateCompleted {
		return nil
	}
	parent.dependents = append(parent.dependents, job)
	jobSlot.remainingDeps++
	return nil
}

// MarkReady transitions a deferred, zero-remaining-dependency pending job
// into its priority queue.
func (s *System) MarkReady(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(h.ID) >= len(s.slots) || s.slots[h.ID].generation != h.Generation {
		return vkrerr.New(vkrerr.InvalidParameter, "jobs: stale job handle")
	}
	sl := &s.slots[h.ID]
	if sl.state != StatePending || sl.remainingDeps != 0 {
		return vkrerr.New(vkrerr.InvalidParameter, "jobs: job not ready")
	}
	if !s.enqueueLocked(h.ID) {
		return vkrerr.New(vkrerr.ResourceCreationFailed, "jobs: priority queue full")
	}
	return nil
}

// Wait blocks until h's slot has been recycled (its generation no longer
// matches h), guaranteeing the job's callback has already returned. A wait
// on an already-recycled handle returns true immediately.
func (s *System) Wait(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(h.ID) >= len(s.slots) {
		return true
	}
	for s.slots[h.ID].generation == h.Generation {
		s.doneCond.Wait()
	}
	return true
}

func (s *System) runWorker(worker int, typeMask uint32) {
	alloc := s.scratch[worker]
	for {
		s.mu.Lock()
		idx, ok := s.dequeueLocked(typeMask)
		for !ok && !s.shuttingDown {
			s.workCond.Wait()
			idx, ok = s.dequeueLocked(typeMask)
		}
		if !ok {
			s.mu.Unlock()
			return
		}
		s.slots[idx].state = StateRunning
		fn := s.slots[idx].fn
		payload := s.slots[idx].payload
		s.mu.Unlock()

		scope := alloc.BeginScope()
		ctx, span := s.tracer.Start(s.groupCtx, "jobs.run")
		var err error
		if fn != nil {
			err = fn(ctx, payload)
		}
		span.End()
		scope.Close()

		s.complete(idx, err)
	}
}

// dequeueLocked implements spec.md's dequeue policy: scan priority queues
// high→low, rotating any candidate whose dependencies aren't satisfied or
// whose type_mask doesn't intersect the worker's to the back of its queue.
// Caller holds s.mu.
func (s *System) dequeueLocked(typeMask uint32) (uint32, bool) {
	for p := priorityCount - 1; p >= 0; p-- {
		q := s.queues[p]
		n := q.Len()
		for i := 0; i < n; i++ {
			idx, ok := q.Dequeue()
			if !ok {
				break
			}
			sl := &s.slots[idx]
			if sl.remainingDeps > 0 || sl.typeMask&typeMask == 0 {
				q.Enqueue(idx)
				continue
			}
			return idx, true
		}
	}
	return 0, false
}

// complete transitions idx to completed, wakes dependents whose last
// dependency just resolved, invokes the callback outside the lock, then
// recycles the slot and wakes Wait() callers.
func (s *System) complete(idx uint32, jobErr error) {
	s.mu.Lock()
	sl := &s.slots[idx]
	sl.state = StateCompleted
	dependents := append([]Handle(nil), sl.dependents...)
	for _, dep := range dependents {
		if int(dep.ID) >= len(s.slots) {
			continue
		}
		ds := &s.slots[dep.ID]
		if ds.generation != dep.Generation {
			continue
		}
		ds.remainingDeps--
		if ds.remainingDeps == 0 && ds.state == StatePending {
			s.enqueueLocked(dep.ID)
		}
	}
	onSuccess, onFailure := sl.onSuccess, sl.onFailure
	s.mu.Unlock()

	if jobErr != nil {
		if onFailure != nil {
			onFailure(jobErr)
		}
		s.log.Warn("jobs: job failed", zap.Uint32("slot", idx), zap.Error(jobErr))
	} else if onSuccess != nil {
		onSuccess()
	}

	s.mu.Lock()
	sl.reset()
	sl.generation++
	s.freeStack = append(s.freeStack, idx)
	s.doneCond.Broadcast()
	s.mu.Unlock()
	s.slotSem.Release(1)
}

// Shutdown stops accepting new work implicitly (callers should stop calling
// Submit), wakes every worker, and waits for in-flight jobs to finish.
func (s *System) Shutdown() error {
	s.mu.Lock()
	s.shuttingDown = true
	s.workCond.Broadcast()
	s.mu.Unlock()
	err := s.group.Wait()
	s.cancel()
	return err
}
