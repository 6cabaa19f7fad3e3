package mem

import (
	"unsafe"

	"github.com/forgeengine/vkr/vkrerr"
)

// Allocator is the polymorphic capability spec.md §4.1 describes: a single
// {alloc, free, realloc, begin_scope, end_scope, is_scope_valid} surface
// over either an Arena or a general-purpose backend. Callers that don't
// care which backend they were handed (a chunk allocator, a job's payload
// buffer) should depend on this interface, not *Arena directly.
type Allocator interface {
	Alloc(size, align uintptr, tag Tag) (unsafe.Pointer, error)
	AllocBytes(size int, tag Tag) ([]byte, error)
	Free(size uintptr, tag Tag)
	Realloc(ptr unsafe.Pointer, oldSize, newSize, align uintptr, tag Tag) (unsafe.Pointer, error)
	BeginScope() *Scope
	IsScopeValid(*Scope) bool
	BytesFor(tag Tag) int64
}

// arenaAllocator adapts *Arena to Allocator (Arena already implements most
// of the surface directly; this just adds IsScopeValid as a method taking
// the scope rather than the scope owning the check, matching the facade's
// operation-carries-the-handle shape from spec.md).
type arenaAllocator struct{ *Arena }

func (a arenaAllocator) IsScopeValid(s *Scope) bool { return s.Valid() }

// NewArenaAllocator wraps an Arena as an Allocator.
func NewArenaAllocator(a *Arena) Allocator { return arenaAllocator{a} }

// GeneralAllocator routes Alloc/Free/Realloc to the Go runtime allocator
// (make/append) instead of a bump arena. Scopes are no-ops per spec.md
// §4.1 ("scopes are no-ops" for the general-purpose variant); tag counters
// still apply so telemetry is uniform across backends.
type GeneralAllocator struct {
	tagBytes [tagCount]int64
}

// NewGeneralAllocator creates a general-purpose Allocator backend.
func NewGeneralAllocator() *GeneralAllocator { return &GeneralAllocator{} }

func (g *GeneralAllocator) Alloc(size, align uintptr, tag Tag) (unsafe.Pointer, error) {
	if size == 0 {
		return nil, vkrerr.New(vkrerr.InvalidParameter, "mem: alloc size must be > 0")
	}
	buf := make([]byte, size)
	g.tagBytes[tag] += int64(size)
	return unsafe.Pointer(&buf[0]), nil
}

func (g *GeneralAllocator) AllocBytes(size int, tag Tag) ([]byte, error) {
	if size <= 0 {
		return nil, vkrerr.New(vkrerr.InvalidParameter, "mem: AllocBytes size must be > 0")
	}
	buf := make([]byte, size)
	g.tagBytes[tag] += int64(size)
	return buf, nil
}

func (g *GeneralAllocator) Free(size uintptr, tag Tag) {
	g.tagBytes[tag] -= int64(size)
}

func (g *GeneralAllocator) Realloc(ptr unsafe.Pointer, oldSize, newSize, align uintptr, tag Tag) (unsafe.Pointer, error) {
	if newSize <= oldSize {
		return ptr, nil
	}
	next, err := g.Alloc(newSize, align, tag)
	if err != nil {
		return nil, err
	}
	if ptr != nil && oldSize > 0 {
		copy(unsafe.Slice((*byte)(next), oldSize), unsafe.Slice((*byte)(ptr), oldSize))
	}
	g.tagBytes[tag] -= int64(oldSize)
	return next, nil
}

// BeginScope returns a no-op scope: Close does nothing, Valid is always
// true while unclosed, matching "scopes are no-ops" for this backend.
func (g *GeneralAllocator) BeginScope() *Scope {
	return &Scope{arena: nil}
}

func (g *GeneralAllocator) IsScopeValid(s *Scope) bool {
	return s != nil && !s.closed
}

func (g *GeneralAllocator) BytesFor(tag Tag) int64 { return g.tagBytes[tag] }
