// Package backend declares the thin contract the render graph compiles and
// executes against. Everything GPU-specific — Vulkan command recording,
// descriptor management, swapchain presentation — lives outside this
// module; backend only names the operations rendergraph needs performed on
// its behalf, grounded on the fake-backend-as-interface idiom
// ghjramos-aistore's test doubles use to stand in for a real object-store
// backend behind a narrow Go interface.
package backend

// ImageHandle and BufferHandle are opaque backend-owned resource handles.
type ImageHandle uint64

// BufferHandle is an opaque backend-owned buffer handle.
type BufferHandle uint64

// RenderPassHandle and FramebufferHandle identify cached compiled objects.
type RenderPassHandle uint64

// FramebufferHandle identifies a cached framebuffer object.
type FramebufferHandle uint64

// Access is a bitmask of how a resource is used at a point in the pass
// graph; the render graph uses it to decide whether a barrier is needed.
type Access uint32

const (
	AccessNone Access = 0
	AccessColorAttachmentWrite Access = 1 << (iota - 1)
	AccessDepthStencilWrite
	AccessSampledRead
	AccessTransferRead
	AccessTransferWrite
	AccessShaderRead
	AccessShaderWrite
	AccessPresent
)

// Layout is the image layout a resource must be in for a given access.
type Layout int

const (
	LayoutUndefined Layout = iota
	LayoutColorAttachment
	LayoutDepthStencilAttachment
	LayoutShaderReadOnly
	LayoutTransferSrc
	LayoutTransferDst
	LayoutPresent
)

// ImageDesc describes an image to CreateImage.
type ImageDesc struct {
	Width, Height, Layers uint32
	Format                string
	Usage                 uint32
}

// BufferDesc describes a buffer to CreateBuffer.
type BufferDesc struct {
	Size  uint64
	Usage uint32
}

// Attachment is one color or depth attachment of a compiled render pass.
// Mip/BaseLayer/LayerCount select the attached slice; a zero LayerCount
// means the whole resource (no sub-slice requested).
type Attachment struct {
	Image      ImageHandle
	Format     string
	LoadOp     string
	StoreOp    string
	ReadOnly   bool
	Mip        uint32
	BaseLayer  uint32
	LayerCount uint32
}

// RenderPassDesc hashes to a cache key in rendergraph's compile step 9.
type RenderPassDesc struct {
	Color []Attachment
	Depth *Attachment
}

// Barrier is a single pre-pass resource transition.
type Barrier struct {
	Image      ImageHandle
	Buffer     BufferHandle
	SrcAccess  Access
	DstAccess  Access
	SrcLayout  Layout
	DstLayout  Layout
}

// CommandRecorder is the handle a pass's execute callback records commands
// into; the real Vulkan backend implements this against a command buffer.
type CommandRecorder interface {
	RecordBarrier(b Barrier) error
	BeginRenderPass(pass RenderPassHandle, fb FramebufferHandle) error
	EndRenderPass() error
}

// Backend is the full contract the render graph depends on: resource
// lifetime plus command recording.
type Backend interface {
	CreateImage(name string, desc ImageDesc) (ImageHandle, error)
	CreateBuffer(name string, desc BufferDesc) (BufferHandle, error)
	DestroyImage(h ImageHandle)
	DestroyBuffer(h BufferHandle)
	CreateRenderPass(desc RenderPassDesc) (RenderPassHandle, error)
	CreateFramebuffer(pass RenderPassHandle, images []ImageHandle) (FramebufferHandle, error)
	CommandRecorder
}
