package ecs

import (
	"context"

	"github.com/forgeengine/vkr/vkrerr"
	"golang.org/x/sync/errgroup"
)

// Query holds include/exclude signature masks only, per spec.md's
// query_build contract — it carries no archetype snapshot until compiled.
type Query struct {
	include Signature
	exclude Signature
}

// QueryBuild constructs a Query from include/exclude component ID lists,
// the mask-only construction lazyecs's Filter types perform up front.
func QueryBuild(include, exclude []ComponentID) Query {
	var q Query
	for _, id := range include {
		q.include = q.include.with(id)
	}
	for _, id := range exclude {
		q.exclude = q.exclude.with(id)
	}
	return q
}

func (q Query) matches(sig Signature) bool {
	return sig.includesAll(q.include) && !sig.intersects(q.exclude)
}

// ChunkFn is invoked once per matching chunk by QueryEachChunk and
// CompiledQuery.EachChunk.
type ChunkFn func(a *Archetype, c *chunk, user any)

// QueryEachChunk iterates every archetype currently in the world, testing
// include ⊆ sig ∧ exclude ∩ sig = ∅, and invokes fn for each chunk of every
// matching archetype — spec.md's uncompiled, always-current traversal.
func (w *World) QueryEachChunk(q Query, fn ChunkFn, user any) {
	for _, a := range w.archetypesList {
		if !q.matches(a.signature) {
			continue
		}
		for _, c := range a.chunks {
			if c.count > 0 {
				fn(a, c, user)
			}
		}
	}
}

// CompiledQuery snapshots the archetypes matching a Query at compile time,
// along with the world's archetype count, so staleness — new archetypes
// created after compile — is detectable before each use.
type CompiledQuery struct {
	query          Query
	archetypes     []*Archetype
	snapshotCount  int
}

// QueryCompile snapshots the archetypes that currently match q.
func (w *World) QueryCompile(q Query) *CompiledQuery {
	cq := &CompiledQuery{query: q, snapshotCount: w.ArchetypeCount()}
	for _, a := range w.archetypesList {
		if q.matches(a.signature) {
			cq.archetypes = append(cq.archetypes, a)
		}
	}
	return cq
}

// Stale reports whether w has created archetypes since cq was compiled.
// Matching spec.md's "debug builds assert on stale use" rule, this
// implementation always checks (Go has no separate debug/release build):
// EachChunk and EachParallel return an error instead of iterating a stale
// snapshot.
func (cq *CompiledQuery) Stale(w *World) bool {
	return w.ArchetypeCount() != cq.snapshotCount
}

// EachChunk iterates the compiled archetype snapshot, invoking fn for each
// non-empty chunk. Returns vkrerr.InvalidParameter if cq is stale relative
// to w, since a stale compiled query silently misses archetypes created
// after compile.
func (cq *CompiledQuery) EachChunk(w *World, fn ChunkFn, user any) error {
	if cq.Stale(w) {
		return vkrerr.New(vkrerr.InvalidParameter, "ecs: compiled query is stale (world has %d archetypes, snapshot has %d)", w.ArchetypeCount(), cq.snapshotCount)
	}
	for _, a := range cq.archetypes {
		for _, c := range a.chunks {
			if c.count > 0 {
				fn(a, c, user)
			}
		}
	}
	return nil
}

// EachParallel runs fn across every matching chunk concurrently, one
// goroutine per chunk, fanned out with an errgroup the way the rest of this
// module's worker pools are — this is the parallel counterpart to
// CompiledQuery.EachChunk for per-frame ECS updates the job system forks
// out to, per spec.md §2's "advances ECS (possibly via job system
// fork/join)" data-flow note. fn must not mutate archetype structure; it
// may only write within the row it was handed.
func (cq *CompiledQuery) EachParallel(ctx context.Context, w *World, fn ChunkFn, user any) error {
	if cq.Stale(w) {
		return vkrerr.New(vkrerr.InvalidParameter, "ecs: compiled query is stale (world has %d archetypes, snapshot has %d)", w.ArchetypeCount(), cq.snapshotCount)
	}
	g, _ := errgroup.WithContext(ctx)
	for _, a := range cq.archetypes {
		for _, c := range a.chunks {
			if c.count == 0 {
				continue
			}
			arch, ch := a, c
			g.Go(func() error {
				fn(arch, ch, user)
				return nil
			})
		}
	}
	return g.Wait()
}
