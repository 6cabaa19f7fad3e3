package mem

import "github.com/forgeengine/vkr/vkrerr"

// Scope is a bracketed region of an Arena. Closing it rewinds the arena to
// the offset recorded when the scope was opened and restores every tag
// counter to its value at that time, guaranteeing release of everything
// allocated inside the scope regardless of how control left the block:
//
//	scope := arena.BeginScope()
//	defer scope.Close()
//	... allocate freely, none of it escapes this function ...
//
// Scopes must close in LIFO order; Close panics if called on a scope that
// is not the innermost open scope, the Go expression of the source's
// debug-build assert on out-of-order scope closure.
type Scope struct {
	arena        *Arena
	offsetAtOpen uintptr
	tagSnapshot  [tagCount]int64
	closed       bool
}

// BeginScope opens a new scope on the arena.
func (a *Arena) BeginScope() *Scope {
	s := &Scope{arena: a, offsetAtOpen: a.offset, tagSnapshot: a.tagBytes}
	a.scopes = append(a.scopes, s)
	return s
}

// Valid reports whether s is still open and is the current innermost scope
// on its arena (IsScopeValid in spec terms).
func (s *Scope) Valid() bool {
	if s == nil || s.closed {
		return false
	}
	a := s.arena
	if a == nil {
		return true
	}
	return len(a.scopes) > 0 && a.scopes[len(a.scopes)-1] == s
}

// Close rewinds the arena to the scope's opening offset and restores tag
// counters, releasing every allocation made inside the scope.
func (s *Scope) Close() {
	if s.closed {
		return
	}
	a := s.arena
	if a == nil {
		// General-purpose backend: no arena to rewind, scope is a no-op.
		s.closed = true
		return
	}
	if len(a.scopes) == 0 || a.scopes[len(a.scopes)-1] != s {
		panic(vkrerr.New(vkrerr.InvalidParameter, "mem: scope closed out of LIFO order"))
	}
	a.scopes = a.scopes[:len(a.scopes)-1]
	a.offset = s.offsetAtOpen
	a.tagBytes = s.tagSnapshot
	s.closed = true
}
