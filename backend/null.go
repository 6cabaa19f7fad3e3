package backend

import "sync"

// Null is an in-memory Backend that records every call instead of touching
// a GPU, the call-counting fake ghjramos-aistore's test suite uses in place
// of a live object store. It hands out monotonically increasing handles and
// is safe for concurrent use from rendergraph's tests.
type Null struct {
	mu sync.Mutex

	nextImage  uint64
	nextBuffer uint64
	nextPass   uint64
	nextFB     uint64

	Images       map[ImageHandle]ImageDesc
	Buffers      map[BufferHandle]BufferDesc
	RenderPasses []RenderPassDesc
	Barriers     []Barrier

	destroyedImages  []ImageHandle
	destroyedBuffers []BufferHandle
}

// NewNull creates an empty Null backend.
func NewNull() *Null {
	return &Null{
		Images:  make(map[ImageHandle]ImageDesc),
		Buffers: make(map[BufferHandle]BufferDesc),
	}
}

func (n *Null) CreateImage(_ string, desc ImageDesc) (ImageHandle, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextImage++
	h := ImageHandle(n.nextImage)
	n.Images[h] = desc
	return h, nil
}

func (n *Null) CreateBuffer(_ string, desc BufferDesc) (BufferHandle, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextBuffer++
	h := BufferHandle(n.nextBuffer)
	n.Buffers[h] = desc
	return h, nil
}

func (n *Null) DestroyImage(h ImageHandle) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.Images, h)
	n.destroyedImages = append(n.destroyedImages, h)
}

func (n *Null) DestroyBuffer(h BufferHandle) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.Buffers, h)
	n.destroyedBuffers = append(n.destroyedBuffers, h)
}

func (n *Null) CreateRenderPass(desc RenderPassDesc) (RenderPassHandle, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextPass++
	n.RenderPasses = append(n.RenderPasses, desc)
	return RenderPassHandle(n.nextPass), nil
}

func (n *Null) CreateFramebuffer(_ RenderPassHandle, _ []ImageHandle) (FramebufferHandle, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextFB++
	return FramebufferHandle(n.nextFB), nil
}

func (n *Null) RecordBarrier(b Barrier) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Barriers = append(n.Barriers, b)
	return nil
}

func (n *Null) BeginRenderPass(RenderPassHandle, FramebufferHandle) error { return nil }
func (n *Null) EndRenderPass() error                                     { return nil }
