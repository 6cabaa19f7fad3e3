package rendergraph

import "github.com/forgeengine/vkr/backend"

// PassType selects a pass's pipeline kind.
type PassType int

const (
	PassGraphics PassType = iota
	PassCompute
	PassTransfer
)

// Flags is a bitset of per-pass compile hints.
type Flags uint32

const (
	FlagNone     Flags = 0
	FlagNoCull   Flags = 1 << 0
	FlagDisabled Flags = 1 << 1
)

// Slice picks a sub-range of an image's mip levels and array layers. A
// single image can be attached at different slices by different passes
// (e.g. one pass per shadow cascade, or a mip chain generation pass), so
// the slice is part of the resource identity render-pass caching keys on.
type Slice struct {
	Mip        uint32
	BaseLayer  uint32
	LayerCount uint32
}

// Attachment is one color or depth attachment descriptor.
type Attachment struct {
	Resource Handle
	LoadOp   string
	StoreOp  string
	Clear    *[4]float32
	ReadOnly bool
	Slice    *Slice
}

type resourceUse struct {
	resource Handle
	access   backend.Access
	binding  int
}

// ExecuteFn is a pass's recorded-command callback. packet is the opaque,
// application-supplied frame packet (renderables, camera, UI state); the
// render graph never interprets it, only threads it through.
type ExecuteFn func(rec backend.CommandRecorder, user any, packet any) error

// Pass is one DAG node: its declared attachments/reads/writes, the edges
// compile derives, and the compiled artifacts (render pass, framebuffer,
// barriers) compile produces.
type Pass struct {
	name   string
	ptype  PassType
	domain string
	flags  Flags

	color []Attachment
	depth *Attachment

	reads  []resourceUse
	writes []resourceUse

	executeFn ExecuteFn
	userData  any

	selfIndex int
	outEdges  []int
	inEdges   []int

	culled       bool
	compiledPass backend.RenderPassHandle
	compiledFB   backend.FramebufferHandle
	barriers     []backend.Barrier
}

func (p *Pass) disabled() bool { return p.flags&FlagDisabled != 0 }
func (p *Pass) noCull() bool   { return p.flags&FlagNoCull != 0 }

// Builder collects a pass's declaration before it is attached to the graph.
type Builder struct {
	graph *Graph
	pass  *Pass
	index int
}

func (b *Builder) SetDomain(domain string) *Builder {
	b.pass.domain = domain
	return b
}

func (b *Builder) SetFlags(flags Flags) *Builder {
	b.pass.flags = flags
	return b
}

func (b *Builder) AddColorAttachment(h Handle, att Attachment) *Builder {
	att.Resource = h
	b.pass.color = append(b.pass.color, att)
	b.pass.writes = append(b.pass.writes, resourceUse{resource: h, access: backend.AccessColorAttachmentWrite})
	return b
}

func (b *Builder) SetDepthAttachment(h Handle, att Attachment) *Builder {
	att.Resource = h
	b.pass.depth = &att
	access := backend.Access(backend.AccessDepthStencilWrite)
	if att.ReadOnly {
		access = backend.AccessSampledRead
	}
	b.pass.writes = append(b.pass.writes, resourceUse{resource: h, access: access})
	return b
}

func (b *Builder) ReadImage(h Handle, access backend.Access, binding int) *Builder {
	b.pass.reads = append(b.pass.reads, resourceUse{resource: h, access: access, binding: binding})
	return b
}

func (b *Builder) WriteImage(h Handle, access backend.Access) *Builder {
	b.pass.writes = append(b.pass.writes, resourceUse{resource: h, access: access})
	return b
}

func (b *Builder) ReadBuffer(h Handle, access backend.Access, binding int) *Builder {
	b.pass.reads = append(b.pass.reads, resourceUse{resource: h, access: access, binding: binding})
	return b
}

func (b *Builder) WriteBuffer(h Handle, access backend.Access) *Builder {
	b.pass.writes = append(b.pass.writes, resourceUse{resource: h, access: access})
	return b
}

func (b *Builder) SetExecute(fn ExecuteFn, user any) *Builder {
	b.pass.executeFn = fn
	b.pass.userData = user
	return b
}

// Index returns the pass's position in declaration order, the handle
// Compile's execution_order and test assertions reference.
func (b *Builder) Index() int { return b.index }
