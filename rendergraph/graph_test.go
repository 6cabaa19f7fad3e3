package rendergraph

import (
	"context"
	"testing"

	"github.com/forgeengine/vkr/backend"
	"github.com/stretchr/testify/require"
)

func newTestGraph() (*Graph, *backend.Null) {
	be := backend.NewNull()
	return New(Options{Backend: be}), be
}

func noopExecute(backend.CommandRecorder, any, any) error { return nil }

// TestCompileCullsPassWithNoLiveConsumer is spec.md's render-graph cull
// scenario: P1 writes A, P2 writes B (nobody ever reads B), P3 writes the
// present image and reads A. P2 must be culled and execution order must be
// exactly [P1, P3].
func TestCompileCullsPassWithNoLiveConsumer(t *testing.T) {
	g, _ := newTestGraph()
	g.BeginFrame(FrameInfo{})

	a := g.CreateImage("A", backend.ImageDesc{Width: 1, Height: 1, Format: "rgba8"})
	b := g.CreateImage("B", backend.ImageDesc{Width: 1, Height: 1, Format: "rgba8"})
	present := g.CreateImage("present", backend.ImageDesc{Width: 1, Height: 1, Format: "rgba8"})
	require.NoError(t, g.SetPresentImage(present))

	g.AddPass(PassGraphics, "P1").AddColorAttachment(a, Attachment{LoadOp: "clear", StoreOp: "store"}).SetExecute(noopExecute, nil)
	g.AddPass(PassGraphics, "P2").AddColorAttachment(b, Attachment{LoadOp: "clear", StoreOp: "store"}).SetExecute(noopExecute, nil)
	g.AddPass(PassGraphics, "P3").
		ReadImage(a, backend.AccessSampledRead, 0).
		AddColorAttachment(present, Attachment{LoadOp: "clear", StoreOp: "store"}).
		SetExecute(noopExecute, nil)

	require.NoError(t, g.Compile())
	require.Equal(t, []string{"P1", "P3"}, g.ExecutionOrder())
	require.True(t, g.passes[1].culled)
	require.False(t, g.passes[0].culled)
	require.False(t, g.passes[2].culled)
}

// TestCompileSynthesizesExactlyOneBarrierBetweenProducerAndConsumer is
// spec.md's render-graph barrier scenario: image I is written as a color
// attachment by P1, then read as a sampled image by P2. Exactly one
// barrier must be emitted, with the documented access transition. P2 is a
// no-cull compute pass: it keeps both passes live without a present image,
// and a compute pass needs no attachment of its own.
func TestCompileSynthesizesExactlyOneBarrierBetweenProducerAndConsumer(t *testing.T) {
	g, _ := newTestGraph()
	g.BeginFrame(FrameInfo{})

	i := g.CreateImage("I", backend.ImageDesc{Width: 1, Height: 1, Format: "rgba8"})
	g.AddPass(PassGraphics, "P1").AddColorAttachment(i, Attachment{LoadOp: "clear", StoreOp: "store"}).SetExecute(noopExecute, nil)
	g.AddPass(PassCompute, "P2").SetFlags(FlagNoCull).ReadImage(i, backend.AccessSampledRead, 0).SetExecute(noopExecute, nil)

	require.NoError(t, g.Compile())
	require.Empty(t, g.passes[0].barriers)
	require.Len(t, g.passes[1].barriers, 1)
	barrier := g.passes[1].barriers[0]
	require.Equal(t, backend.AccessColorAttachmentWrite, barrier.SrcAccess)
	require.Equal(t, backend.AccessSampledRead, barrier.DstAccess)
}

// Producer/consumer edges are derived from a single forward scan over
// declaration order, so a live frame graph can never contain a cycle by
// construction; checkCycles exists as a defense against that invariant
// breaking, exercised here directly against a hand-built cyclic pair.
func TestCheckCyclesDetectsAnArtificialCycle(t *testing.T) {
	g, _ := newTestGraph()
	p1 := &Pass{name: "P1", selfIndex: 0, outEdges: []int{1}, inEdges: []int{1}}
	p2 := &Pass{name: "P2", selfIndex: 1, outEdges: []int{0}, inEdges: []int{0}}
	g.passes = []*Pass{p1, p2}

	err := g.checkCycles()
	require.Error(t, err)
}

func TestCompileIsDeterministicAcrossRepeatedCompiles(t *testing.T) {
	build := func() *Graph {
		g, _ := newTestGraph()
		g.BeginFrame(FrameInfo{})
		a := g.CreateImage("A", backend.ImageDesc{Format: "rgba8"})
		b := g.CreateImage("B", backend.ImageDesc{Format: "rgba8"})
		present := g.CreateImage("present", backend.ImageDesc{Format: "rgba8"})
		require.NoError(t, g.SetPresentImage(present))
		g.AddPass(PassGraphics, "Shadow").AddColorAttachment(a, Attachment{}).SetExecute(noopExecute, nil)
		g.AddPass(PassGraphics, "Opaque").ReadImage(a, backend.AccessSampledRead, 0).AddColorAttachment(b, Attachment{}).SetExecute(noopExecute, nil)
		g.AddPass(PassGraphics, "Present").ReadImage(b, backend.AccessSampledRead, 0).AddColorAttachment(present, Attachment{}).SetExecute(noopExecute, nil)
		require.NoError(t, g.Compile())
		return g
	}
	first := build()
	second := build()
	require.Equal(t, first.ExecutionOrder(), second.ExecutionOrder())
}

func TestExecuteRunsPassesInCompiledOrder(t *testing.T) {
	g, be := newTestGraph()
	g.BeginFrame(FrameInfo{})
	a := g.CreateImage("A", backend.ImageDesc{Format: "rgba8"})

	var order []string
	g.AddPass(PassGraphics, "P1").SetFlags(FlagNoCull).AddColorAttachment(a, Attachment{}).
		SetExecute(func(rec backend.CommandRecorder, user any, packet any) error {
			order = append(order, "P1")
			return nil
		}, nil)

	require.NoError(t, g.Compile())
	require.NoError(t, g.Execute(context.Background(), be, nil))
	require.Equal(t, []string{"P1"}, order)
}

func TestExecuteFailsBeforeCompile(t *testing.T) {
	g, be := newTestGraph()
	require.Error(t, g.Execute(context.Background(), be, nil))
}

// TestRenderPassCacheKeyDistinguishesAttachmentSlices is spec.md §4.6.2/
// §4.6.3 step 9: a single image attached at two different slices by two
// otherwise-identical passes must not share a cached render pass.
func TestRenderPassCacheKeyDistinguishesAttachmentSlices(t *testing.T) {
	g, _ := newTestGraph()
	g.BeginFrame(FrameInfo{})
	gbuf := g.CreateImage("gbuffer", backend.ImageDesc{Width: 1, Height: 1, Format: "rgba8"})

	p1 := g.AddPass(PassGraphics, "Layer0").
		AddColorAttachment(gbuf, Attachment{LoadOp: "clear", StoreOp: "store", Slice: &Slice{BaseLayer: 0, LayerCount: 1}}).
		SetExecute(noopExecute, nil)
	p2 := g.AddPass(PassGraphics, "Layer1").
		AddColorAttachment(gbuf, Attachment{LoadOp: "clear", StoreOp: "store", Slice: &Slice{BaseLayer: 1, LayerCount: 1}}).
		SetExecute(noopExecute, nil)

	key1 := renderPassCacheKey(g, g.passes[p1.Index()])
	key2 := renderPassCacheKey(g, g.passes[p2.Index()])
	require.NotEqual(t, key1, key2)
}
