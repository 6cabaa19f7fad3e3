// Package mem implements the engine's L0 layer: a reserve-then-commit
// arena with scoped (LIFO) unwinding, and a small allocator facade that
// lets callers swap an arena backend for a general-purpose one without
// changing call sites. None of the types here are safe for concurrent use
// by more than one goroutine; each owning goroutine (a job worker, the
// application thread) holds its own arena, following the sbl8-sublation
// runtime's one-arena-per-engine shape.
package mem

import (
	"unsafe"

	"github.com/forgeengine/vkr/vkrerr"
)

// defaultAlignment matches the cache-line alignment sbl8-sublation's core
// package uses for its arena regions.
const defaultAlignment = 64

// Arena is a linear allocator over a single pre-allocated buffer. Go gives
// no portable way to reserve a virtual range without committing it, so the
// "reserve" and "commit" steps are both realized against one backing slice
// sized to reserveSize up front; committed is tracked as a high-water mark
// purely for the accounting and invariants spec.md describes, advancing in
// commitSize increments as offset crosses it.
type Arena struct {
	buffer     []byte
	reserved   uintptr
	commitSize uintptr
	committed  uintptr
	offset     uintptr
	tagBytes   [tagCount]int64
	scopes     []*Scope
}

// New creates an arena that reserves reserveSize bytes and commits in
// commitSize increments. A commitSize of 0 (or one larger than reserveSize)
// makes the first allocation commit the whole reservation at once.
func New(reserveSize, commitSize uintptr) (*Arena, error) {
	if reserveSize == 0 {
		return nil, vkrerr.New(vkrerr.InvalidParameter, "mem: reserve size must be > 0")
	}
	if commitSize == 0 || commitSize > reserveSize {
		commitSize = reserveSize
	}
	a := &Arena{
		buffer:     alignedBytes(reserveSize, defaultAlignment),
		reserved:   reserveSize,
		commitSize: commitSize,
	}
	return a, nil
}

// alignedBytes allocates a slice of length size whose backing array starts
// on an align-byte boundary, over-allocating to find the boundary — the
// same technique sbl8-sublation's core.AlignedBytes uses, generalized to an
// arbitrary alignment.
func alignedBytes(size, align uintptr) []byte {
	buf := make([]byte, size+align-1)
	ptr := uintptr(unsafe.Pointer(&buf[0]))
	offset := uintptr(0)
	if mod := ptr % align; mod != 0 {
		offset = align - mod
	}
	return buf[offset : offset+size : offset+size]
}

// Offset returns the current bump-pointer offset, in bytes from the start
// of the reservation.
func (a *Arena) Offset() uintptr { return a.offset }

// Committed returns the current high-water commit mark.
func (a *Arena) Committed() uintptr { return a.committed }

// Reserved returns the total reserved size.
func (a *Arena) Reserved() uintptr { return a.reserved }

// BytesFor returns the bytes currently charged to tag.
func (a *Arena) BytesFor(tag Tag) int64 { return a.tagBytes[tag] }

func alignUp(v, align uintptr) uintptr {
	if align == 0 {
		align = 1
	}
	return (v + align - 1) &^ (align - 1)
}

func (a *Arena) ensureCommitted(needed uintptr) error {
	if needed <= a.committed {
		return nil
	}
	if needed > a.reserved {
		return vkrerr.New(vkrerr.OutOfMemory, "mem: arena reservation of %d bytes exhausted (requested offset %d)", a.reserved, needed)
	}
	newCommitted := a.committed
	for newCommitted < needed {
		newCommitted += a.commitSize
	}
	if newCommitted > a.reserved {
		newCommitted = a.reserved
	}
	a.committed = newCommitted
	return nil
}

// Alloc advances the bump pointer by size bytes aligned to align, charging
// size to tag, and returns a pointer to the allocation.
func (a *Arena) Alloc(size, align uintptr, tag Tag) (unsafe.Pointer, error) {
	if size == 0 {
		return nil, vkrerr.New(vkrerr.InvalidParameter, "mem: alloc size must be > 0")
	}
	if align == 0 {
		align = defaultAlignment
	}
	if align&(align-1) != 0 {
		return nil, vkrerr.New(vkrerr.InvalidParameter, "mem: alignment %d is not a power of two", align)
	}
	start := alignUp(a.offset, align)
	end := start + size
	if err := a.ensureCommitted(end); err != nil {
		return nil, err
	}
	a.offset = end
	a.tagBytes[tag] += int64(size)
	return unsafe.Pointer(&a.buffer[start]), nil
}

// AllocBytes is a convenience wrapper returning a []byte view over an
// Alloc'd region, always aligned to 8 bytes (suitable for generic byte
// buffers rather than SoA columns).
func (a *Arena) AllocBytes(size int, tag Tag) ([]byte, error) {
	if size <= 0 {
		return nil, vkrerr.New(vkrerr.InvalidParameter, "mem: AllocBytes size must be > 0")
	}
	ptr, err := a.Alloc(uintptr(size), 8, tag)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(ptr), size), nil
}

// Free never rewinds the offset — only LIFO scope closure does that — but
// it deducts size from tag's counter so telemetry reflects the caller's
// intent to stop owning the block.
func (a *Arena) Free(size uintptr, tag Tag) {
	a.tagBytes[tag] -= int64(size)
}

// Realloc returns ptr unchanged when newSize <= oldSize (the arena never
// moves or shrinks in place); otherwise it allocates a fresh block, copies
// oldSize bytes from ptr, and charges the delta to tag.
func (a *Arena) Realloc(ptr unsafe.Pointer, oldSize, newSize, align uintptr, tag Tag) (unsafe.Pointer, error) {
	if newSize <= oldSize {
		return ptr, nil
	}
	next, err := a.Alloc(newSize, align, tag)
	if err != nil {
		return nil, err
	}
	if ptr != nil && oldSize > 0 {
		src := unsafe.Slice((*byte)(ptr), oldSize)
		dst := unsafe.Slice((*byte)(next), oldSize)
		copy(dst, src)
	}
	a.tagBytes[tag] -= int64(oldSize)
	return next, nil
}

// Reset rewinds the arena to empty and zeroes every tag counter. It is the
// non-scoped escape hatch for callers that own the whole arena for one
// shot of work (a job's per-execution scratch reset, for example).
func (a *Arena) Reset() {
	a.offset = 0
	a.scopes = a.scopes[:0]
	for i := range a.tagBytes {
		a.tagBytes[i] = 0
	}
}
