package descriptor

import (
	"context"
	"testing"

	"github.com/forgeengine/vkr/backend"
	"github.com/forgeengine/vkr/rendergraph"
	"github.com/stretchr/testify/require"
)

const shadowGraphJSON = `{
  "version": 1,
  "name": "shadow-test",
  "resources": [
    { "name": "shadow_${i}", "type": "image", "repeat": { "count_source": "shadow_cascade_count" },
      "format": "SHADOW_DEPTH", "usage": ["DEPTH_STENCIL_ATTACHMENT"],
      "extent": { "mode": "fixed", "width": 2048, "height": 2048 } },
    { "name": "present", "type": "image", "format": "SWAPCHAIN", "usage": ["COLOR_ATTACHMENT"],
      "extent": { "mode": "window" } }
  ],
  "passes": [
    { "name": "shadow_pass_${i}", "type": "graphics", "repeat": { "count_source": "shadow_cascade_count" },
      "flags": ["NO_CULL"],
      "attachments": { "depth": { "image": "shadow_${i}", "load": "CLEAR", "store": "STORE" } },
      "execute": "shadow" },
    { "name": "present_pass", "type": "graphics",
      "attachments": { "color": [ { "image": "present", "load": "CLEAR", "store": "STORE" } ] },
      "execute": "present" }
  ],
  "outputs": { "present": "present" }
}`

type testFrame struct {
	cascades int
	shadowSz uint32
	editor   bool
	ww, wh   uint32
	vw, vh   uint32
}

func (f testFrame) ShadowCascadeCountValue() int     { return f.cascades }
func (f testFrame) ShadowMapSizeValue() uint32       { return f.shadowSz }
func (f testFrame) EditorEnabledValue() bool         { return f.editor }
func (f testFrame) WindowExtent() (uint32, uint32)   { return f.ww, f.wh }
func (f testFrame) ViewportExtent() (uint32, uint32) { return f.vw, f.vh }

// TestExpandTemplateProducesCountSourceEntries is spec.md's template
// expansion scenario: shadow_cascade_count=4 must produce exactly 4
// expanded resources and 4 expanded passes, with ${i} substituted 0..3.
func TestExpandTemplateProducesCountSourceEntries(t *testing.T) {
	doc, err := Parse([]byte(shadowGraphJSON))
	require.NoError(t, err)

	expanded, err := Expand(doc, testFrame{cascades: 4, ww: 1920, wh: 1080})
	require.NoError(t, err)

	var shadowResources, shadowPasses []string
	for _, r := range expanded.Resources {
		if r.Name != "present" {
			shadowResources = append(shadowResources, r.Name)
		}
	}
	for _, p := range expanded.Passes {
		if p.Name != "present_pass" {
			shadowPasses = append(shadowPasses, p.Name)
		}
	}
	require.ElementsMatch(t, []string{"shadow_0", "shadow_1", "shadow_2", "shadow_3"}, shadowResources)
	require.ElementsMatch(t, []string{"shadow_pass_0", "shadow_pass_1", "shadow_pass_2", "shadow_pass_3"}, shadowPasses)
}

func TestExpandIsPureAcrossRepeatedCalls(t *testing.T) {
	doc, err := Parse([]byte(shadowGraphJSON))
	require.NoError(t, err)

	a, err := Expand(doc, testFrame{cascades: 3, ww: 800, wh: 600})
	require.NoError(t, err)
	b, err := Expand(doc, testFrame{cascades: 3, ww: 800, wh: 600})
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestBuildAndCompileFromDescriptor(t *testing.T) {
	doc, err := Parse([]byte(shadowGraphJSON))
	require.NoError(t, err)

	frame := rendergraph.FrameInfo{ShadowCascadeCount: 2, WindowWidth: 1280, WindowHeight: 720, SwapchainColorFormat: "rgba8"}
	expanded, err := Expand(doc, frame)
	require.NoError(t, err)

	be := backend.NewNull()
	g := rendergraph.New(rendergraph.Options{Backend: be})
	g.BeginFrame(frame)

	reg := NewRegistry()
	reg.Register("shadow", func(backend.CommandRecorder, any, any) error { return nil }, nil)
	reg.Register("present", func(backend.CommandRecorder, any, any) error { return nil }, nil)

	require.NoError(t, Build(expanded, g, frame, reg))
	require.NoError(t, g.Compile())
	require.NoError(t, g.Execute(context.Background(), be, nil))

	order := g.ExecutionOrder()
	require.Contains(t, order, "present_pass")
	require.Contains(t, order, "shadow_pass_0")
	require.Contains(t, order, "shadow_pass_1")
}

const arrayIndexGraphJSON = `{
  "version": 1,
  "name": "array-index-test",
  "resources": [
    { "name": "cascades", "type": "image", "format": "SHADOW_DEPTH", "usage": ["SAMPLED"],
      "layers": 4, "extent": { "mode": "fixed", "width": 1024, "height": 1024 } },
    { "name": "present", "type": "image", "format": "SWAPCHAIN", "usage": ["COLOR_ATTACHMENT"],
      "extent": { "mode": "window" } }
  ],
  "passes": [
    { "name": "light_pass_${i}", "type": "graphics", "repeat": { "count_source": "shadow_cascade_count" },
      "flags": ["NO_CULL"],
      "reads": [ { "image": "cascades", "access": "SAMPLED_READ", "binding": 0, "array_index": "${i}" } ],
      "attachments": { "color": [ { "image": "present", "load": "LOAD", "store": "STORE" } ] },
      "execute": "light" }
  ],
  "outputs": { "present": "present" }
}`

// TestExpandResolvesArrayIndexTokenToInt is the spec's "array_index is an
// integer or the token ${i}" contract: after expansion the token must be a
// Go int, not the numeric string substitution left behind.
func TestExpandResolvesArrayIndexTokenToInt(t *testing.T) {
	doc, err := Parse([]byte(arrayIndexGraphJSON))
	require.NoError(t, err)

	expanded, err := Expand(doc, testFrame{cascades: 3, ww: 1920, wh: 1080})
	require.NoError(t, err)

	seen := map[int]bool{}
	for _, p := range expanded.Passes {
		require.Len(t, p.Reads, 1)
		idx, ok := p.Reads[0].ArrayIndex.(int)
		require.True(t, ok, "array_index must resolve to an int, got %T", p.Reads[0].ArrayIndex)
		seen[idx] = true
	}
	require.Equal(t, map[int]bool{0: true, 1: true, 2: true}, seen)
}

const sliceAttachmentGraphJSON = `{
  "version": 1,
  "name": "slice-test",
  "resources": [
    { "name": "gbuffer", "type": "image", "format": "RGBA8", "usage": ["COLOR_ATTACHMENT"],
      "layers": 2, "extent": { "mode": "fixed", "width": 512, "height": 512 } }
  ],
  "passes": [
    { "name": "layer0_pass", "type": "graphics",
      "flags": ["NO_CULL"],
      "attachments": { "color": [ { "image": "gbuffer", "load": "CLEAR", "store": "STORE",
        "slice": { "base_layer": 0, "layer_count": 1 } } ] },
      "execute": "p0" },
    { "name": "layer1_pass", "type": "graphics",
      "flags": ["NO_CULL"],
      "attachments": { "color": [ { "image": "gbuffer", "load": "CLEAR", "store": "STORE",
        "slice": { "base_layer": 1, "layer_count": 1 } } ] },
      "execute": "p1" }
  ],
  "outputs": { "export_images": ["gbuffer"] }
}`

// TestBuildCarriesSliceThroughToTheBuiltAttachment checks that
// attachments.color[].slice survives parsing and expansion with its values
// intact, and that a graph built from it compiles. It does not inspect the
// built rendergraph.Attachment itself (compile's own render-pass-cache-key
// test covers the consuming side in package rendergraph).
func TestBuildCarriesSliceThroughToTheBuiltAttachment(t *testing.T) {
	doc, err := Parse([]byte(sliceAttachmentGraphJSON))
	require.NoError(t, err)
	frame := rendergraph.FrameInfo{WindowWidth: 512, WindowHeight: 512}
	expanded, err := Expand(doc, frame)
	require.NoError(t, err)

	require.Len(t, expanded.Passes, 2)
	for i, want := range []uint32{0, 1} {
		slice := expanded.Passes[i].Attachments.Color[0].Slice
		require.NotNil(t, slice)
		require.Equal(t, want, slice.BaseLayer)
		require.Equal(t, uint32(1), slice.LayerCount)
	}

	be := backend.NewNull()
	g := rendergraph.New(rendergraph.Options{Backend: be})
	g.BeginFrame(frame)

	reg := NewRegistry()
	reg.Register("p0", func(backend.CommandRecorder, any, any) error { return nil }, nil)
	reg.Register("p1", func(backend.CommandRecorder, any, any) error { return nil }, nil)

	require.NoError(t, Build(expanded, g, frame, reg))
	require.NoError(t, g.Compile())
}

func TestBuildFailsOnUnregisteredExecuteToken(t *testing.T) {
	doc, err := Parse([]byte(shadowGraphJSON))
	require.NoError(t, err)
	frame := rendergraph.FrameInfo{ShadowCascadeCount: 1, WindowWidth: 100, WindowHeight: 100}
	expanded, err := Expand(doc, frame)
	require.NoError(t, err)

	be := backend.NewNull()
	g := rendergraph.New(rendergraph.Options{Backend: be})
	g.BeginFrame(frame)

	require.Error(t, Build(expanded, g, frame, NewRegistry()))
}
