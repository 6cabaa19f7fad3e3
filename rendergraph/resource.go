// Package rendergraph implements the L3 data-driven render graph: resource
// declaration, a pass DAG derived from read/write edges, a 9-step compile
// pipeline (validate, producer map, dependency edges, cycle check, culling,
// topological order, resource allocation, barrier synthesis, render-pass
// caching), and execution against a backend.Backend. The DAG/topological
// sort shape is grounded on sbl8-sublation's model.Graph
// (Validate/Optimize/topologicalSort, Kahn's algorithm over a dependency
// graph); the render-pass/framebuffer cache is grounded on
// abiolaogu-MinIO's sharded V3CacheManager, keyed here by a
// cespare/xxhash/v2 digest instead of a content hash of object bytes.
package rendergraph

import "github.com/forgeengine/vkr/backend"

// Kind distinguishes an image resource from a buffer resource.
type Kind int

const (
	KindImage Kind = iota
	KindBuffer
)

// Handle identifies a declared resource at a point in time; a stale handle
// (wrong generation, or never declared this frame) fails validation.
type Handle struct {
	Index      uint32
	Generation uint32
}

const noPass = -1

// resource is the render graph's per-name bookkeeping: description,
// generation, allocation state, and the first/last pass indices compile
// derives while walking read/write edges.
type resource struct {
	name  string
	kind  Kind
	image backend.ImageDesc
	buf   backend.BufferDesc

	generation        uint32
	declaredThisFrame bool
	exported          bool
	imported          bool

	firstPass, lastPass int

	imageHandle         backend.ImageHandle
	bufferHandle        backend.BufferHandle
	allocatedGeneration uint32

	currentAccess backend.Access
	currentLayout backend.Layout
	finalLayout   backend.Layout
}

func newResource(name string, kind Kind) *resource {
	return &resource{name: name, kind: kind, generation: 1, firstPass: noPass, lastPass: noPass}
}

// FrameInfo carries everything a declarative graph's extent/layer/repeat
// tokens resolve against. SwapchainImageIndex is carried along but not read
// by Execute, which uses one framebuffer per compiled pass.
type FrameInfo struct {
	WindowWidth, WindowHeight     uint32
	ViewportWidth, ViewportHeight uint32
	SwapchainColorFormat          string
	SwapchainDepthFormat          string
	ShadowMapSize                 uint32
	ShadowCascadeCount            int
	EditorEnabled                 bool
	SwapchainImageIndex           int
}

// The accessors below satisfy descriptor.FrameInfoLike, so the descriptor
// package's Parse/Expand resolve template tokens through that interface
// rather than the concrete FrameInfo type.

func (f FrameInfo) ShadowCascadeCountValue() int   { return f.ShadowCascadeCount }
func (f FrameInfo) ShadowMapSizeValue() uint32     { return f.ShadowMapSize }
func (f FrameInfo) EditorEnabledValue() bool       { return f.EditorEnabled }
func (f FrameInfo) WindowExtent() (uint32, uint32) { return f.WindowWidth, f.WindowHeight }
func (f FrameInfo) ViewportExtent() (uint32, uint32) {
	return f.ViewportWidth, f.ViewportHeight
}
