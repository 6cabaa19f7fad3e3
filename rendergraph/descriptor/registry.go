package descriptor

import (
	"github.com/forgeengine/vkr/backend"
	"github.com/forgeengine/vkr/rendergraph"
	"github.com/forgeengine/vkr/vkrerr"
)

// ExecutorEntry pairs a pass's execute callback with the opaque user data
// threaded through to it at execute time.
type ExecutorEntry struct {
	Fn   rendergraph.ExecuteFn
	User any
}

// Registry resolves a pass's `execute` token to a concrete ExecutorEntry.
// The embedder populates one at startup; Build fails fast on an
// unregistered token rather than silently skipping the pass.
type Registry struct {
	entries map[string]ExecutorEntry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]ExecutorEntry)}
}

// Register binds a token to an executor.
func (r *Registry) Register(token string, fn rendergraph.ExecuteFn, user any) {
	r.entries[token] = ExecutorEntry{Fn: fn, User: user}
}

func (r *Registry) resolve(token string) (ExecutorEntry, error) {
	e, ok := r.entries[token]
	if !ok {
		return ExecutorEntry{}, vkrerr.New(vkrerr.InvalidParameter, "descriptor: unregistered execute token %q", token)
	}
	return e, nil
}

var formatTokens = map[string]string{
	"SHADOW_DEPTH": "d32_sfloat",
}

func resolveFormat(token string, frame rendergraph.FrameInfo) string {
	switch token {
	case "SWAPCHAIN":
		return frame.SwapchainColorFormat
	case "SWAPCHAIN_DEPTH":
		return frame.SwapchainDepthFormat
	default:
		if mapped, ok := formatTokens[token]; ok {
			return mapped
		}
		return token
	}
}

var usageBits = map[string]uint32{
	"SAMPLED":                  1 << 0,
	"COLOR_ATTACHMENT":         1 << 1,
	"DEPTH_STENCIL_ATTACHMENT": 1 << 2,
	"TRANSFER_SRC":             1 << 3,
	"TRANSFER_DST":             1 << 4,
	"VERTEX_BUFFER":            1 << 5,
	"INDEX_BUFFER":             1 << 6,
	"UNIFORM_BUFFER":           1 << 7,
	"STORAGE_BUFFER":           1 << 8,
	"INDIRECT":                 1 << 9,
}

func resolveUsage(tokens []string) uint32 {
	var u uint32
	for _, t := range tokens {
		u |= usageBits[t]
	}
	return u
}

var accessTokens = map[string]backend.Access{
	"COLOR_ATTACHMENT_WRITE": backend.AccessColorAttachmentWrite,
	"DEPTH_STENCIL_WRITE":    backend.AccessDepthStencilWrite,
	"SAMPLED_READ":           backend.AccessSampledRead,
	"TRANSFER_READ":          backend.AccessTransferRead,
	"TRANSFER_WRITE":         backend.AccessTransferWrite,
	"SHADER_READ":            backend.AccessShaderRead,
	"SHADER_WRITE":           backend.AccessShaderWrite,
}

func resolveAccess(token string) (backend.Access, error) {
	a, ok := accessTokens[token]
	if !ok {
		return 0, vkrerr.New(vkrerr.InvalidParameter, "descriptor: unknown access token %q", token)
	}
	return a, nil
}
