package descriptor

import (
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/forgeengine/vkr/vkrerr"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Parse decodes a graph description document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, vkrerr.Wrap(vkrerr.InvalidParameter, err, "descriptor: decode")
	}
	if doc.Version != 1 {
		return nil, vkrerr.New(vkrerr.InvalidParameter, "descriptor: unsupported version %d", doc.Version)
	}
	return &doc, nil
}

// countSource resolves a repeat.count_source token against the frame's
// named fields, currently "shadow_cascade_count" per the grammar.
func countSource(frame FrameInfoLike, source string) (int, error) {
	switch source {
	case "shadow_cascade_count":
		return frame.ShadowCascadeCountValue(), nil
	default:
		return 0, vkrerr.New(vkrerr.InvalidParameter, "descriptor: unknown count_source %q", source)
	}
}

// sizeSource resolves an extent.size_source or layers_source token.
func sizeSource(frame FrameInfoLike, source string) (uint32, error) {
	switch source {
	case "shadow_map_size":
		return frame.ShadowMapSizeValue(), nil
	default:
		return 0, vkrerr.New(vkrerr.InvalidParameter, "descriptor: unknown size_source %q", source)
	}
}

// FrameInfoLike is the subset of rendergraph.FrameInfo that template
// expansion resolves against; Parse/Expand only need these accessors, so
// they stay decoupled from the rest of the rendergraph package that
// registry.go and build.go depend on.
type FrameInfoLike interface {
	ShadowCascadeCountValue() int
	ShadowMapSizeValue() uint32
	EditorEnabledValue() bool
	WindowExtent() (uint32, uint32)
	ViewportExtent() (uint32, uint32)
}

func evalCondition(frame FrameInfoLike, cond string) bool {
	switch cond {
	case "":
		return true
	case "editor_enabled":
		return frame.EditorEnabledValue()
	case "!editor_enabled":
		return !frame.EditorEnabledValue()
	default:
		return true
	}
}

func expandIndexToken(s string, i int) string {
	return strings.ReplaceAll(s, "${i}", strconv.Itoa(i))
}
