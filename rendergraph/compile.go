package rendergraph

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/forgeengine/vkr/backend"
	"github.com/forgeengine/vkr/vkrerr"
)

// Compile validates the frame's declared passes, derives the dependency
// DAG, culls dead work, orders survivors, allocates backend resources and
// synthesizes barriers. It is grounded on sbl8-sublation's model.Graph
// Validate/Optimize/topologicalSort pipeline, adapted from a single
// "optimize" pass into the nine discrete steps the render graph's compile
// contract names.
func (g *Graph) Compile() error {
	for i, p := range g.passes {
		p.selfIndex = i
	}
	if err := g.validate(); err != nil {
		return err
	}
	g.buildProducerMap()
	g.buildDependencyEdges()
	if err := g.checkCycles(); err != nil {
		return err
	}
	g.cull()
	order, err := g.topologicalSort()
	if err != nil {
		return err
	}
	g.executionOrder = order
	if err := g.allocateResources(); err != nil {
		return err
	}
	if err := g.synthesizeBarriers(); err != nil {
		return err
	}
	if err := g.cacheRenderPasses(); err != nil {
		return err
	}
	g.compiled = true
	return nil
}

func (g *Graph) validate() error {
	for _, p := range g.passes {
		if p.disabled() {
			continue
		}
		if p.ptype == PassGraphics && len(p.color) == 0 && p.depth == nil {
			return vkrerr.New(vkrerr.InvalidParameter, "rendergraph: graphics pass %q declares no attachments", p.name)
		}
		for _, use := range allUses(p) {
			r, err := g.resolve(use.resource)
			if err != nil {
				return vkrerr.Wrap(vkrerr.InvalidParameter, err, "rendergraph: pass %q", p.name)
			}
			if !r.declaredThisFrame {
				return vkrerr.New(vkrerr.InvalidParameter, "rendergraph: pass %q references %q not declared this frame", p.name, r.name)
			}
		}
	}
	if g.presentName != "" {
		if _, ok := g.resources[g.presentName]; !ok {
			return vkrerr.New(vkrerr.InvalidParameter, "rendergraph: present image %q not declared", g.presentName)
		}
	}
	return nil
}

func allUses(p *Pass) []resourceUse {
	out := make([]resourceUse, 0, len(p.reads)+len(p.writes))
	out = append(out, p.reads...)
	out = append(out, p.writes...)
	return out
}

// buildProducerMap records each resource's first and last touching pass (in
// declaration order, reads and writes alike). The last writer per resource
// is tracked separately in buildDependencyEdges.
func (g *Graph) buildProducerMap() {
	for _, r := range g.resourceList {
		r.firstPass, r.lastPass = noPass, noPass
	}
	for i, p := range g.passes {
		for _, use := range allUses(p) {
			r := g.resourceList[use.resource.Index]
			if r.firstPass == noPass {
				r.firstPass = i
			}
			r.lastPass = i
		}
	}
}

// buildDependencyEdges derives read-after-write edges from each read to its
// latest prior producer, and write-after-write edges between successive
// writers of the same resource.
func (g *Graph) buildDependencyEdges() {
	for _, p := range g.passes {
		p.inEdges = p.inEdges[:0]
		p.outEdges = p.outEdges[:0]
	}
	lastWriter := make(map[uint32]int, len(g.resourceList))
	for i, p := range g.passes {
		for _, use := range p.reads {
			if prod, ok := lastWriter[use.resource.Index]; ok && prod != i {
				addEdge(g.passes[prod], g.passes[i])
			}
		}
		for _, use := range p.writes {
			if prod, ok := lastWriter[use.resource.Index]; ok && prod != i {
				addEdge(g.passes[prod], g.passes[i])
			}
			lastWriter[use.resource.Index] = i
		}
	}
}

func addEdge(from, to *Pass) {
	for _, e := range from.outEdges {
		if e == to.selfIndex {
			return
		}
	}
	from.outEdges = append(from.outEdges, to.selfIndex)
	to.inEdges = append(to.inEdges, from.selfIndex)
}

// cull walks backward from roots (FlagNoCull passes, and the last pass that
// touches an exported resource or the present image, by read or write)
// marking everything reachable live; FlagDisabled passes are never live
// regardless of reachability.
func (g *Graph) cull() {
	for _, p := range g.passes {
		p.culled = true
	}
	live := make([]bool, len(g.passes))
	var mark func(i int)
	mark = func(i int) {
		if live[i] {
			return
		}
		if g.passes[i].disabled() {
			return
		}
		live[i] = true
		for _, dep := range g.passes[i].inEdges {
			mark(dep)
		}
	}
	for i, p := range g.passes {
		if p.disabled() {
			continue
		}
		if p.noCull() {
			mark(i)
		}
	}
	for _, r := range g.resourceList {
		if !r.declaredThisFrame {
			continue
		}
		if r.exported || r.name == g.presentName {
			if r.lastPass != noPass {
				mark(r.lastPass)
			}
		}
	}
	for i, p := range g.passes {
		p.culled = !live[i]
	}
}

func (g *Graph) checkCycles() error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, len(g.passes))
	var stack []string
	var visit func(i int) error
	visit = func(i int) error {
		color[i] = gray
		stack = append(stack, g.passes[i].name)
		for _, next := range g.passes[i].outEdges {
			switch color[next] {
			case gray:
				return vkrerr.New(vkrerr.InvalidParameter, "rendergraph: dependency cycle involving %v", append(append([]string{}, stack...), g.passes[next].name))
			case white:
				if err := visit(next); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[i] = black
		return nil
	}
	for i := range g.passes {
		if color[i] == white {
			if err := visit(i); err != nil {
				return err
			}
		}
	}
	return nil
}

// topologicalSort runs Kahn's algorithm over the live subgraph, breaking
// ties by declaration order so compile is deterministic across runs with
// identical input.
func (g *Graph) topologicalSort() ([]int, error) {
	indeg := make([]int, len(g.passes))
	for i, p := range g.passes {
		if p.culled {
			continue
		}
		for _, dep := range p.inEdges {
			if !g.passes[dep].culled {
				indeg[i]++
			}
		}
	}
	ready := make([]int, 0, len(g.passes))
	for i, p := range g.passes {
		if !p.culled && indeg[i] == 0 {
			ready = append(ready, i)
		}
	}
	sort.Ints(ready)

	order := make([]int, 0, len(g.passes))
	for len(ready) > 0 {
		sort.Ints(ready)
		i := ready[0]
		ready = ready[1:]
		order = append(order, i)
		for _, next := range g.passes[i].outEdges {
			if g.passes[next].culled {
				continue
			}
			indeg[next]--
			if indeg[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	live := 0
	for _, p := range g.passes {
		if !p.culled {
			live++
		}
	}
	if len(order) != live {
		return nil, vkrerr.New(vkrerr.InvalidParameter, "rendergraph: dependency cycle prevented a full topological order")
	}
	return order, nil
}

// allocateResources creates or recreates backend images/buffers for every
// live, non-imported resource whose description changed since the last
// successful allocation.
func (g *Graph) allocateResources() error {
	live := make(map[uint32]bool, len(g.resourceList))
	for _, idx := range g.executionOrder {
		for _, use := range allUses(g.passes[idx]) {
			live[use.resource.Index] = true
		}
	}
	for _, r := range g.resourceList {
		if r.name == g.presentName {
			live[g.handleFor(r).Index] = true
		}
	}
	for i, r := range g.resourceList {
		if !live[uint32(i)] || r.imported || !r.declaredThisFrame {
			continue
		}
		if r.allocatedGeneration == r.generation {
			continue
		}
		switch r.kind {
		case KindImage:
			if r.imageHandle != 0 {
				g.backend.DestroyImage(r.imageHandle)
			}
			h, err := g.backend.CreateImage(r.name, r.image)
			if err != nil {
				return vkrerr.Wrap(vkrerr.ResourceCreationFailed, err, "rendergraph: create image %q", r.name)
			}
			r.imageHandle = h
		case KindBuffer:
			if r.bufferHandle != 0 {
				g.backend.DestroyBuffer(r.bufferHandle)
			}
			h, err := g.backend.CreateBuffer(r.name, r.buf)
			if err != nil {
				return vkrerr.Wrap(vkrerr.ResourceCreationFailed, err, "rendergraph: create buffer %q", r.name)
			}
			r.bufferHandle = h
		}
		r.allocatedGeneration = r.generation
	}
	return nil
}

// synthesizeBarriers walks execution order tracking each resource's current
// access/layout, emitting a barrier whenever a pass requires a different
// one, including the final transition for exported/present resources.
func (g *Graph) synthesizeBarriers() error {
	for _, idx := range g.executionOrder {
		p := g.passes[idx]
		p.barriers = p.barriers[:0]
		for _, use := range allUses(p) {
			r := g.resourceList[use.resource.Index]
			layout := layoutFor(use.access)
			if r.currentAccess == backend.AccessNone && !r.imported {
				// First touch of a fresh resource: the render pass's own
				// initial layout transition covers undefined -> first use,
				// no manual barrier needed.
				r.currentAccess = use.access
				r.currentLayout = layout
				continue
			}
			if r.currentAccess == use.access && r.currentLayout == layout {
				continue
			}
			b := backend.Barrier{
				SrcAccess: r.currentAccess,
				DstAccess: use.access,
				SrcLayout: r.currentLayout,
				DstLayout: layout,
			}
			if r.kind == KindImage {
				b.Image = r.imageHandle
			} else {
				b.Buffer = r.bufferHandle
			}
			p.barriers = append(p.barriers, b)
			r.currentAccess = use.access
			r.currentLayout = layout
		}
	}
	for _, r := range g.resourceList {
		if !r.declaredThisFrame || r.lastPass == noPass {
			continue
		}
		if r.name == g.presentName && r.currentLayout != backend.LayoutPresent {
			p := g.passes[r.lastPass]
			p.barriers = append(p.barriers, backend.Barrier{
				Image:     r.imageHandle,
				SrcAccess: r.currentAccess,
				DstAccess: backend.AccessPresent,
				SrcLayout: r.currentLayout,
				DstLayout: backend.LayoutPresent,
			})
			r.currentAccess = backend.AccessPresent
			r.currentLayout = backend.LayoutPresent
		} else if r.exported && r.finalLayout != backend.LayoutUndefined && r.currentLayout != r.finalLayout {
			p := g.passes[r.lastPass]
			b := backend.Barrier{SrcAccess: r.currentAccess, DstAccess: r.currentAccess, SrcLayout: r.currentLayout, DstLayout: r.finalLayout}
			if r.kind == KindImage {
				b.Image = r.imageHandle
			} else {
				b.Buffer = r.bufferHandle
			}
			p.barriers = append(p.barriers, b)
			r.currentLayout = r.finalLayout
		}
	}
	return nil
}

func layoutFor(a backend.Access) backend.Layout {
	switch a {
	case backend.AccessColorAttachmentWrite:
		return backend.LayoutColorAttachment
	case backend.AccessDepthStencilWrite:
		return backend.LayoutDepthStencilAttachment
	case backend.AccessSampledRead, backend.AccessShaderRead:
		return backend.LayoutShaderReadOnly
	case backend.AccessTransferRead:
		return backend.LayoutTransferSrc
	case backend.AccessTransferWrite:
		return backend.LayoutTransferDst
	case backend.AccessPresent:
		return backend.LayoutPresent
	default:
		return backend.LayoutUndefined
	}
}

// cacheRenderPasses hashes each live graphics pass's attachment
// configuration with xxhash and creates (or reuses) its backend render
// pass and framebuffer, the same shard-by-digest idiom
// abiolaogu-MinIO's V3CacheManager uses to avoid recomputing a cache key
// from scratch on every lookup.
func (g *Graph) cacheRenderPasses() error {
	for _, idx := range g.executionOrder {
		p := g.passes[idx]
		if p.ptype != PassGraphics {
			continue
		}
		key := renderPassCacheKey(g, p)
		if cached, ok := g.rpCache[key]; ok {
			p.compiledPass, p.compiledFB = cached.pass, cached.fb
			continue
		}
		desc, images, err := g.renderPassDesc(p)
		if err != nil {
			return err
		}
		rp, err := g.backend.CreateRenderPass(desc)
		if err != nil {
			return vkrerr.Wrap(vkrerr.ResourceCreationFailed, err, "rendergraph: create render pass %q", p.name)
		}
		fb, err := g.backend.CreateFramebuffer(rp, images)
		if err != nil {
			return vkrerr.Wrap(vkrerr.ResourceCreationFailed, err, "rendergraph: create framebuffer %q", p.name)
		}
		p.compiledPass, p.compiledFB = rp, fb
		g.rpCache[key] = cachedRenderPass{pass: rp, fb: fb}
	}
	return nil
}

func (g *Graph) renderPassDesc(p *Pass) (backend.RenderPassDesc, []backend.ImageHandle, error) {
	desc := backend.RenderPassDesc{Color: make([]backend.Attachment, 0, len(p.color))}
	images := make([]backend.ImageHandle, 0, len(p.color)+1)
	for _, att := range p.color {
		r, err := g.resolve(att.Resource)
		if err != nil {
			return desc, nil, err
		}
		ba := backend.Attachment{
			Image: r.imageHandle, Format: r.image.Format,
			LoadOp: att.LoadOp, StoreOp: att.StoreOp, ReadOnly: att.ReadOnly,
		}
		applySlice(&ba, att.Slice)
		desc.Color = append(desc.Color, ba)
		images = append(images, r.imageHandle)
	}
	if p.depth != nil {
		r, err := g.resolve(p.depth.Resource)
		if err != nil {
			return desc, nil, err
		}
		bd := backend.Attachment{
			Image: r.imageHandle, Format: r.image.Format,
			LoadOp: p.depth.LoadOp, StoreOp: p.depth.StoreOp, ReadOnly: p.depth.ReadOnly,
		}
		applySlice(&bd, p.depth.Slice)
		desc.Depth = &bd
		images = append(images, r.imageHandle)
	}
	return desc, images, nil
}

func applySlice(a *backend.Attachment, s *Slice) {
	if s == nil {
		return
	}
	a.Mip = s.Mip
	a.BaseLayer = s.BaseLayer
	a.LayerCount = s.LayerCount
}

func renderPassCacheKey(g *Graph, p *Pass) uint64 {
	h := xxhash.New()
	write := func(s string) { _, _ = h.WriteString(s) }
	writeSlice := func(s *Slice) {
		if s == nil {
			write("noslice;")
			return
		}
		write(fmt.Sprintf("%d,%d,%d;", s.Mip, s.BaseLayer, s.LayerCount))
	}
	for _, att := range p.color {
		r := g.resourceList[att.Resource.Index]
		write(r.image.Format)
		write(att.LoadOp)
		write(att.StoreOp)
		write(fmt.Sprintf("%v,%t;", att.Clear, att.ReadOnly))
		writeSlice(att.Slice)
	}
	if p.depth != nil {
		r := g.resourceList[p.depth.Resource.Index]
		write(r.image.Format)
		write(p.depth.LoadOp)
		write(p.depth.StoreOp)
		write(fmt.Sprintf("%t;", p.depth.ReadOnly))
		writeSlice(p.depth.Slice)
	}
	return h.Sum64()
}
