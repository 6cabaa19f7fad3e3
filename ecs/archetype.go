package ecs

// Archetype is the equivalence class of entities sharing one Signature,
// backed by a chunked list of fixed-capacity rows. componentIDs is sorted
// ascending so two archetypes with the same component set always agree on
// column order, the same canonicalisation lazyecs's getOrCreateArchetype
// relies on when it walks the mask word-by-word.
type Archetype struct {
	signature    Signature
	componentIDs []ComponentID
	strides      []int
	columnIndex  [MaxComponentTypes]int32 // -1 (sentinel) if the archetype lacks that component
	chunks       []*chunk
	chunkCap     int
	rowStride    int
	liveCount    int
}

func newArchetype(sig Signature) *Archetype {
	ids := sig.componentIDs()
	strides := make([]int, len(ids))
	rowStride := 0
	for i, id := range ids {
		// Each component occupies its own []byte column (see chunk.go), so
		// a component's rows only keep a consistent alignment from slot to
		// slot if the column's per-row stride is itself a multiple of the
		// component's alignment; a bare size sum (spec.md §4.4's C-heritage
		// formula) does not guarantee that.
		s := alignUp(int(componentSize(id)), int(componentAlign(id)))
		strides[i] = s
		rowStride += s
	}
	a := &Archetype{
		signature:    sig,
		componentIDs: ids,
		strides:      strides,
		chunkCap:     chunkCapacity(rowStride),
		rowStride:    rowStride,
	}
	for i := range a.columnIndex {
		a.columnIndex[i] = -1
	}
	for i, id := range ids {
		a.columnIndex[id] = int32(i)
	}
	return a
}

// alignUp rounds size up to the nearest multiple of align (align must be a
// power of two; componentAlign always returns one via reflect.Type.Align).
func alignUp(size, align int) int {
	if align <= 1 {
		return size
	}
	return (size + align - 1) &^ (align - 1)
}

func (a *Archetype) hasComponent(id ComponentID) bool {
	return int(id) < len(a.columnIndex) && a.columnIndex[id] >= 0
}

// tailChunk returns the chunk new rows are appended to, allocating one if
// every existing chunk is full or none exist yet.
func (a *Archetype) tailChunk() *chunk {
	if len(a.chunks) == 0 || a.chunks[len(a.chunks)-1].full() {
		a.chunks = append(a.chunks, newChunk(a, a.chunkCap, a.strides))
	}
	return a.chunks[len(a.chunks)-1]
}

// allocRow reserves the next free row for e and returns where it landed.
func (a *Archetype) allocRow(e Entity) (*chunk, int) {
	c := a.tailChunk()
	slot := c.count
	c.entities[slot] = e
	c.count++
	a.liveCount++
	return c, slot
}

// swapRemove removes the row at (c, slot) by moving the chunk's last row
// into its place, the swap-and-pop lazyecs's removeEntityFromArchetype and
// spec.md's destroy_entity both require. It reports the entity that got
// moved (if any) and its new slot, so the caller can fix up that entity's
// directory record.
func (a *Archetype) swapRemove(c *chunk, slot int) (moved Entity, movedSlot int, hasMoved bool) {
	last := c.count - 1
	if slot < 0 || slot > last {
		return InvalidEntity, 0, false
	}
	if slot != last {
		c.entities[slot] = c.entities[last]
		for col, stride := range a.strides {
			dst := c.row(col, slot, stride)
			src := c.row(col, last, stride)
			copy(dst, src)
		}
		moved = c.entities[slot]
		hasMoved = true
		movedSlot = slot
	}
	c.count--
	a.liveCount--
	return moved, movedSlot, hasMoved
}
