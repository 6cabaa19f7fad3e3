package descriptor

import (
	"github.com/forgeengine/vkr/backend"
	"github.com/forgeengine/vkr/rendergraph"
	"github.com/forgeengine/vkr/vkrerr"
)

var flagTokens = map[string]rendergraph.Flags{
	"NO_CULL":  rendergraph.FlagNoCull,
	"DISABLED": rendergraph.FlagDisabled,
}

func resolveFlags(tokens []string) rendergraph.Flags {
	var f rendergraph.Flags
	for _, t := range tokens {
		f |= flagTokens[t]
	}
	return f
}

func toSlice(s *SliceDecl) *rendergraph.Slice {
	if s == nil {
		return nil
	}
	return &rendergraph.Slice{Mip: s.Mip, BaseLayer: s.BaseLayer, LayerCount: s.LayerCount}
}

var passTypeTokens = map[string]rendergraph.PassType{
	"graphics": rendergraph.PassGraphics,
	"compute":  rendergraph.PassCompute,
	"transfer": rendergraph.PassTransfer,
}

// Build declares expanded's resources and passes onto g, resolving each
// pass's execute token against reg, and sets the present and exported
// outputs. On a nil error g is ready for Compile.
func Build(expanded *Expanded, g *rendergraph.Graph, frame rendergraph.FrameInfo, reg *Registry) error {
	handles := make(map[string]rendergraph.Handle, len(expanded.Resources))

	for _, r := range expanded.Resources {
		h, err := declareResource(g, r, frame)
		if err != nil {
			return vkrerr.Wrap(vkrerr.InvalidParameter, err, "descriptor: resource %q", r.Name)
		}
		handles[r.Name] = h
	}

	for _, p := range expanded.Passes {
		if err := declarePass(g, p, handles, reg); err != nil {
			return vkrerr.Wrap(vkrerr.InvalidParameter, err, "descriptor: pass %q", p.Name)
		}
	}

	if expanded.Outputs.Present != "" {
		h, ok := handles[expanded.Outputs.Present]
		if !ok {
			return vkrerr.New(vkrerr.InvalidParameter, "descriptor: present resource %q not declared", expanded.Outputs.Present)
		}
		if err := g.SetPresentImage(h); err != nil {
			return err
		}
	}
	for _, name := range expanded.Outputs.ExportImages {
		h, ok := handles[name]
		if !ok {
			return vkrerr.New(vkrerr.InvalidParameter, "descriptor: export image %q not declared", name)
		}
		if err := g.ExportImage(h, backend.LayoutShaderReadOnly); err != nil {
			return err
		}
	}
	for _, name := range expanded.Outputs.ExportBuffers {
		h, ok := handles[name]
		if !ok {
			return vkrerr.New(vkrerr.InvalidParameter, "descriptor: export buffer %q not declared", name)
		}
		if err := g.ExportBuffer(h); err != nil {
			return err
		}
	}
	return nil
}

func declareResource(g *rendergraph.Graph, r ResourceDecl, frame rendergraph.FrameInfo) (rendergraph.Handle, error) {
	if r.Type == "buffer" {
		return g.CreateBuffer(r.Name, backend.BufferDesc{Size: r.Size, Usage: resolveUsage(r.Usage)}), nil
	}

	desc := backend.ImageDesc{Format: resolveFormat(r.Format, frame), Usage: resolveUsage(r.Usage), Layers: r.Layers}
	if desc.Layers == 0 {
		desc.Layers = 1
	}
	if r.Extent != nil {
		switch r.Extent.Mode {
		case "window":
			desc.Width, desc.Height = frame.WindowWidth, frame.WindowHeight
		case "viewport":
			desc.Width, desc.Height = frame.ViewportWidth, frame.ViewportHeight
		case "fixed":
			desc.Width, desc.Height = r.Extent.Width, r.Extent.Height
		case "square":
			desc.Width, desc.Height = r.Extent.Width, r.Extent.Width
		}
	}
	return g.CreateImage(r.Name, desc), nil
}

func declarePass(g *rendergraph.Graph, p PassDecl, handles map[string]rendergraph.Handle, reg *Registry) error {
	ptype, ok := passTypeTokens[p.Type]
	if !ok {
		return vkrerr.New(vkrerr.InvalidParameter, "descriptor: unknown pass type %q", p.Type)
	}
	b := g.AddPass(ptype, p.Name).SetDomain(p.Domain).SetFlags(resolveFlags(p.Flags))

	for _, ref := range p.Reads {
		h, ok := handles[ref.name()]
		if !ok {
			return vkrerr.New(vkrerr.InvalidParameter, "descriptor: read of undeclared resource %q", ref.name())
		}
		access, err := resolveAccess(ref.Access)
		if err != nil {
			return err
		}
		if ref.Image != "" {
			b.ReadImage(h, access, ref.Binding)
		} else {
			b.ReadBuffer(h, access, ref.Binding)
		}
	}
	for _, ref := range p.Writes {
		h, ok := handles[ref.name()]
		if !ok {
			return vkrerr.New(vkrerr.InvalidParameter, "descriptor: write of undeclared resource %q", ref.name())
		}
		access, err := resolveAccess(ref.Access)
		if err != nil {
			return err
		}
		if ref.Image != "" {
			b.WriteImage(h, access)
		} else {
			b.WriteBuffer(h, access)
		}
	}

	if p.Attachments != nil {
		for _, c := range p.Attachments.Color {
			h, ok := handles[c.Image]
			if !ok {
				return vkrerr.New(vkrerr.InvalidParameter, "descriptor: color attachment of undeclared resource %q", c.Image)
			}
			att := rendergraph.Attachment{LoadOp: c.Load, StoreOp: c.Store, Slice: toSlice(c.Slice)}
			if c.Clear != nil && c.Clear.Color != nil {
				att.Clear = c.Clear.Color
			}
			b.AddColorAttachment(h, att)
		}
		if d := p.Attachments.Depth; d != nil {
			h, ok := handles[d.Image]
			if !ok {
				return vkrerr.New(vkrerr.InvalidParameter, "descriptor: depth attachment of undeclared resource %q", d.Image)
			}
			b.SetDepthAttachment(h, rendergraph.Attachment{LoadOp: d.Load, StoreOp: d.Store, ReadOnly: d.ReadOnly, Slice: toSlice(d.Slice)})
		}
	}

	if p.Execute != "" {
		entry, err := reg.resolve(p.Execute)
		if err != nil {
			return err
		}
		b.SetExecute(entry.Fn, entry.User)
	}
	return nil
}
