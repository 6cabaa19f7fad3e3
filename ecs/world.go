package ecs

import (
	"sync"
	"unsafe"

	"go.uber.org/zap"
)

// transition caches the archetype an add/remove of one component leads to,
// the same memoization lazyecs's World.addTransitions/removeTransitions
// perform so repeated structural changes skip signature recomputation.
type transition struct {
	target *Archetype
}

// Options configures a World.
type Options struct {
	WorldID         uint16
	InitialCapacity int
	Logger          *zap.Logger
}

// World owns the entity directory and every archetype it has created.
type World struct {
	id uint16

	records     []record
	generations []uint16
	freeList    []uint32

	archetypes     map[string]*Archetype
	archetypesList []*Archetype

	addTransitions    map[*Archetype]map[ComponentID]transition
	removeTransitions map[*Archetype]map[ComponentID]transition

	Resources sync.Map

	log *zap.Logger
}

// New creates a World, pre-seeding the empty (zero-signature) archetype the
// way lazyecs's NewWorld eagerly creates maskType{} up front.
func New(opts Options) *World {
	cap := opts.InitialCapacity
	if cap <= 0 {
		cap = 1024
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	w := &World{
		id:                opts.WorldID,
		records:           make([]record, 0, cap),
		generations:       make([]uint16, 0, cap),
		archetypes:        make(map[string]*Archetype, 32),
		archetypesList:    make([]*Archetype, 0, 32),
		addTransitions:    make(map[*Archetype]map[ComponentID]transition),
		removeTransitions: make(map[*Archetype]map[ComponentID]transition),
		log:               opts.Logger,
	}
	w.getOrCreateArchetype(Signature{})
	return w
}

// ArchetypeCount returns the number of archetypes created so far, the
// counter query_compile snapshots to detect staleness.
func (w *World) ArchetypeCount() int { return len(w.archetypesList) }

func (w *World) getOrCreateArchetype(sig Signature) *Archetype {
	key := sig.key()
	if a, ok := w.archetypes[key]; ok {
		return a
	}
	a := newArchetype(sig)
	w.archetypes[key] = a
	w.archetypesList = append(w.archetypesList, a)
	return a
}

// CreateEntity allocates a directory slot (recycled or new), assigns the
// empty archetype, and returns the new handle.
func (w *World) CreateEntity() Entity {
	idx, gen := w.allocIndex()
	e := makeEntity(w.id, gen, idx)
	empty := w.getOrCreateArchetype(Signature{})
	c, slot := empty.allocRow(e)
	w.records[idx] = record{chunk: c, slot: slot}
	return e
}

// CreateEntityWithComponents allocates an entity directly into the
// archetype for ids, rather than CreateEntity's empty archetype followed by
// N incremental AddComponent transitions. ids may be supplied in any order
// and with duplicates; building the target Signature as a bitmask (as
// getOrCreateArchetype always does) sorts and dedupes them for free. init[i]
// seeds the row in ids[i]'s column with a copy of the value it points to; a
// nil or missing init[i] zero-fills that column instead.
func (w *World) CreateEntityWithComponents(ids []ComponentID, init []unsafe.Pointer) Entity {
	var sig Signature
	for _, id := range ids {
		sig = sig.with(id)
	}
	arch := w.getOrCreateArchetype(sig)
	idx, gen := w.allocIndex()
	e := makeEntity(w.id, gen, idx)
	c, slot := arch.allocRow(e)
	w.records[idx] = record{chunk: c, slot: slot}
	for i, id := range ids {
		col := int(arch.columnIndex[id])
		stride := arch.strides[col]
		if stride == 0 {
			continue
		}
		dst := c.row(col, slot, stride)
		if i < len(init) && init[i] != nil {
			copy(dst, unsafe.Slice((*byte)(init[i]), stride))
		} else {
			clear(dst)
		}
	}
	return e
}

// CreateEntityWith2 is CreateEntityWithComponents specialized to two
// statically known component types, the generic-arity convenience
// lazyecs's GetComponent2/SetComponent2 family offers for its own
// operations.
func CreateEntityWith2[A, B any](w *World, a A, b B) Entity {
	idA, idB := ComponentIDFor[A](), ComponentIDFor[B]()
	return w.CreateEntityWithComponents(
		[]ComponentID{idA, idB},
		[]unsafe.Pointer{unsafe.Pointer(&a), unsafe.Pointer(&b)},
	)
}

// CreateEntityWith3 is the three-component form of CreateEntityWith2.
func CreateEntityWith3[A, B, C any](w *World, a A, b B, c C) Entity {
	idA, idB, idC := ComponentIDFor[A](), ComponentIDFor[B](), ComponentIDFor[C]()
	return w.CreateEntityWithComponents(
		[]ComponentID{idA, idB, idC},
		[]unsafe.Pointer{unsafe.Pointer(&a), unsafe.Pointer(&b), unsafe.Pointer(&c)},
	)
}

func (w *World) allocIndex() (uint32, uint16) {
	if n := len(w.freeList); n > 0 {
		idx := w.freeList[n-1]
		w.freeList = w.freeList[:n-1]
		return idx, w.generations[idx]
	}
	idx := uint32(len(w.records))
	w.records = append(w.records, record{})
	w.generations = append(w.generations, 1)
	return idx, 1
}

// IsAlive reports whether e still addresses the row it was minted for.
func (w *World) IsAlive(e Entity) bool {
	if e == InvalidEntity || e.Generation() == 0 || e.World() != w.id {
		return false
	}
	idx := e.Index()
	return int(idx) < len(w.generations) && w.generations[idx] == e.Generation()
}

// DestroyEntity swap-removes e's row and recycles its directory slot. It is
// a no-op returning false for a dead or foreign entity.
func (w *World) DestroyEntity(e Entity) bool {
	if !w.IsAlive(e) {
		return false
	}
	idx := e.Index()
	rec := w.records[idx]
	a := w.archetypeOf(rec.chunk)
	moved, movedSlot, hasMoved := a.swapRemove(rec.chunk, rec.slot)
	if hasMoved {
		w.records[moved.Index()] = record{chunk: rec.chunk, slot: movedSlot}
	}
	gen := w.generations[idx] + 1
	if gen == 0 {
		gen = 1
	}
	w.generations[idx] = gen
	w.records[idx] = record{}
	w.freeList = append(w.freeList, idx)
	return true
}

// archetypeOf recovers the owning archetype from a chunk's non-owning
// back-pointer (see chunk.owner).
func (w *World) archetypeOf(c *chunk) *Archetype {
	if c == nil {
		return nil
	}
	return c.owner
}

// zeroSizedSentinel backs pointers to zero-size tag components: Go allows
// dereferencing a pointer to a zero-size type without reading memory, but
// taking &row[0] on an empty slice panics, so zero-stride columns resolve
// here instead of into the (empty) column backing slice.
var zeroSizedSentinel struct{}

func componentPtr(c *chunk, col, slot, stride int) unsafe.Pointer {
	if stride == 0 {
		return unsafe.Pointer(&zeroSizedSentinel)
	}
	row := c.row(col, slot, stride)
	return unsafe.Pointer(&row[0])
}

// HasComponent reports whether e is alive and carries a component of type T.
func HasComponent[T any](w *World, e Entity) bool {
	id, ok := TryComponentID[T]()
	if !ok || !w.IsAlive(e) {
		return false
	}
	rec := w.records[e.Index()]
	a := w.archetypeOf(rec.chunk)
	return a != nil && a.hasComponent(id)
}

// GetComponent returns a pointer into the archetype's column for e's
// component of type T, or nil if absent or the entity is dead. The pointer
// is only valid until the next structural change to e's archetype.
func GetComponent[T any](w *World, e Entity) *T {
	id, ok := TryComponentID[T]()
	if !ok || !w.IsAlive(e) {
		return nil
	}
	rec := w.records[e.Index()]
	a := w.archetypeOf(rec.chunk)
	if a == nil || !a.hasComponent(id) {
		return nil
	}
	col := int(a.columnIndex[id])
	return (*T)(componentPtr(rec.chunk, col, rec.slot, a.strides[col]))
}

// GetComponentUnchecked skips liveness/presence validation, for hot paths
// that already validated e earlier in the same scope, per spec.md's
// unchecked hot-path contract.
func GetComponentUnchecked[T any](w *World, e Entity) *T {
	id := ComponentIDFor[T]()
	rec := w.records[e.Index()]
	a := w.archetypeOf(rec.chunk)
	col := int(a.columnIndex[id])
	return (*T)(componentPtr(rec.chunk, col, rec.slot, a.strides[col]))
}

// AddComponent moves e into the archetype for signature+id, initializing
// the new column to val. A no-op if e is dead; if e already carries T, its
// existing value is overwritten with val and no migration happens.
func AddComponent[T any](w *World, e Entity, val T) {
	id := ComponentIDFor[T]()
	if !w.IsAlive(e) {
		return
	}
	idx := e.Index()
	rec := w.records[idx]
	src := w.archetypeOf(rec.chunk)
	if src.hasComponent(id) {
		*GetComponent[T](w, e) = val
		return
	}
	dst := w.transitionAdd(src, id)
	newChunk, newSlot := w.moveRow(e, src, rec, dst)
	w.records[idx] = record{chunk: newChunk, slot: newSlot}
	col := int(dst.columnIndex[id])
	*(*T)(componentPtr(newChunk, col, newSlot, dst.strides[col])) = val
}

// RemoveComponent moves e into the archetype without T. A no-op if e is
// dead or lacks T.
func RemoveComponent[T any](w *World, e Entity) {
	id := ComponentIDFor[T]()
	if !w.IsAlive(e) {
		return
	}
	idx := e.Index()
	rec := w.records[idx]
	src := w.archetypeOf(rec.chunk)
	if !src.hasComponent(id) {
		return
	}
	dst := w.transitionRemove(src, id)
	newChunk, newSlot := w.moveRow(e, src, rec, dst)
	w.records[idx] = record{chunk: newChunk, slot: newSlot}
}

func (w *World) transitionAdd(src *Archetype, id ComponentID) *Archetype {
	m, ok := w.addTransitions[src]
	if !ok {
		m = make(map[ComponentID]transition)
		w.addTransitions[src] = m
	}
	if t, ok := m[id]; ok {
		return t.target
	}
	target := w.getOrCreateArchetype(src.signature.with(id))
	m[id] = transition{target: target}
	return target
}

func (w *World) transitionRemove(src *Archetype, id ComponentID) *Archetype {
	m, ok := w.removeTransitions[src]
	if !ok {
		m = make(map[ComponentID]transition)
		w.removeTransitions[src] = m
	}
	if t, ok := m[id]; ok {
		return t.target
	}
	target := w.getOrCreateArchetype(src.signature.without(id))
	m[id] = transition{target: target}
	return target
}

// moveRow copies every component T has in common with dst's signature from
// src's row into a freshly allocated row in dst, then swap-removes the old
// row from src, following spec.md's "memcpy the intersection, discard the
// rest" add/remove semantics.
func (w *World) moveRow(e Entity, src *Archetype, rec record, dst *Archetype) (*chunk, int) {
	newChunk, newSlot := dst.allocRow(e)
	for _, id := range src.componentIDs {
		if !dst.hasComponent(id) {
			continue
		}
		srcCol := int(src.columnIndex[id])
		dstCol := int(dst.columnIndex[id])
		copy(newChunk.row(dstCol, newSlot, dst.strides[dstCol]), rec.chunk.row(srcCol, rec.slot, src.strides[srcCol]))
	}
	moved, movedSlot, hasMoved := src.swapRemove(rec.chunk, rec.slot)
	if hasMoved {
		w.records[moved.Index()] = record{chunk: rec.chunk, slot: movedSlot}
	}
	return newChunk, newSlot
}
