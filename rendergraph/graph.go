package rendergraph

import (
	"github.com/forgeengine/vkr/backend"
	"github.com/forgeengine/vkr/vkrerr"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Options configures a Graph.
type Options struct {
	Backend backend.Backend
	Logger  *zap.Logger
	Tracer  trace.Tracer
}

// Graph owns every resource and pass declared across frames, plus the
// compiled plan from the most recent Compile call.
type Graph struct {
	backend backend.Backend
	log     *zap.Logger
	tracer  trace.Tracer

	resources    map[string]*resource
	resourceList []*resource

	passes []*Pass

	presentName string
	frame       FrameInfo

	executionOrder []int
	rpCache        map[uint64]cachedRenderPass

	compiled bool
}

// New creates an empty Graph bound to a backend.
func New(opts Options) *Graph {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Tracer == nil {
		opts.Tracer = trace.NewNoopTracerProvider().Tracer("rendergraph")
	}
	return &Graph{
		backend:   opts.Backend,
		log:       opts.Logger,
		tracer:    opts.Tracer,
		resources: make(map[string]*resource, 32),
		rpCache:   make(map[uint64]cachedRenderPass, 32),
	}
}

// BeginFrame clears pass state and marks every existing resource as not
// declared this frame, while keeping its allocation for potential reuse.
func (g *Graph) BeginFrame(frame FrameInfo) {
	g.frame = frame
	g.passes = g.passes[:0]
	g.presentName = ""
	g.compiled = false
	for _, r := range g.resourceList {
		r.declaredThisFrame = false
	}
}

func (g *Graph) handleFor(r *resource) Handle {
	for i, rr := range g.resourceList {
		if rr == r {
			return Handle{Index: uint32(i), Generation: r.generation}
		}
	}
	return Handle{}
}

func (g *Graph) resolve(h Handle) (*resource, error) {
	if int(h.Index) >= len(g.resourceList) {
		return nil, vkrerr.New(vkrerr.ResourceNotFound, "rendergraph: unknown resource handle %d", h.Index)
	}
	r := g.resourceList[h.Index]
	if r.generation != h.Generation {
		return nil, vkrerr.New(vkrerr.ResourceNotFound, "rendergraph: stale resource handle for %q", r.name)
	}
	return r, nil
}

func (g *Graph) declare(name string, kind Kind) *resource {
	if r, ok := g.resources[name]; ok {
		r.declaredThisFrame = true
		return r
	}
	r := newResource(name, kind)
	r.declaredThisFrame = true
	g.resources[name] = r
	g.resourceList = append(g.resourceList, r)
	return r
}

// CreateImage declares or updates an image resource, bumping its
// generation when its description changed since last frame.
func (g *Graph) CreateImage(name string, desc backend.ImageDesc) Handle {
	r := g.declare(name, KindImage)
	if r.image != desc {
		r.image = desc
		r.generation++
	}
	return g.handleFor(r)
}

// CreateBuffer declares or updates a buffer resource.
func (g *Graph) CreateBuffer(name string, desc backend.BufferDesc) Handle {
	r := g.declare(name, KindBuffer)
	if r.buf != desc {
		r.buf = desc
		r.generation++
	}
	return g.handleFor(r)
}

// ImportImage binds an externally-owned backend handle directly; imported
// resources never allocate during compile.
func (g *Graph) ImportImage(name string, h backend.ImageHandle, access backend.Access, layout backend.Layout, desc backend.ImageDesc) Handle {
	r := g.declare(name, KindImage)
	r.image = desc
	r.imported = true
	r.imageHandle = h
	r.currentAccess = access
	r.currentLayout = layout
	r.allocatedGeneration = r.generation
	return g.handleFor(r)
}

// ImportBuffer binds an externally-owned buffer handle.
func (g *Graph) ImportBuffer(name string, h backend.BufferHandle, access backend.Access, desc backend.BufferDesc) Handle {
	r := g.declare(name, KindBuffer)
	r.buf = desc
	r.imported = true
	r.bufferHandle = h
	r.currentAccess = access
	r.allocatedGeneration = r.generation
	return g.handleFor(r)
}

// ExportImage marks an image so its final layout/access is preserved for a
// downstream consumer outside the graph.
func (g *Graph) ExportImage(h Handle, finalLayout backend.Layout) error {
	r, err := g.resolve(h)
	if err != nil {
		return err
	}
	r.exported = true
	r.finalLayout = finalLayout
	return nil
}

// ExportBuffer marks a buffer for export.
func (g *Graph) ExportBuffer(h Handle) error {
	r, err := g.resolve(h)
	if err != nil {
		return err
	}
	r.exported = true
	return nil
}

// SetPresentImage names the single image whose contents feed the swapchain.
func (g *Graph) SetPresentImage(h Handle) error {
	r, err := g.resolve(h)
	if err != nil {
		return err
	}
	g.presentName = r.name
	return nil
}

// AddPass begins declaring a new pass, returning a Builder.
func (g *Graph) AddPass(ptype PassType, name string) *Builder {
	p := &Pass{name: name, ptype: ptype}
	idx := len(g.passes)
	g.passes = append(g.passes, p)
	return &Builder{graph: g, pass: p, index: idx}
}

// ExecutionOrder returns the compiled plan's pass execution order as pass
// names, for tests and CLI introspection.
func (g *Graph) ExecutionOrder() []string {
	names := make([]string, len(g.executionOrder))
	for i, idx := range g.executionOrder {
		names[i] = g.passes[idx].name
	}
	return names
}

type cachedRenderPass struct {
	pass backend.RenderPassHandle
	fb   backend.FramebufferHandle
}
