package descriptor

import "strconv"

// Expanded is a Document with every condition resolved and every repeat/
// template token replaced by concrete entries; it contains no `${i}`
// tokens and no Repeat/Condition fields left set.
type Expanded struct {
	Name      string
	Resources []ResourceDecl
	Passes    []PassDecl
	Outputs   OutputsDecl
}

// Expand resolves doc's conditions and repeats against frame. Expansion is
// pure: identical doc and frame values always produce an identical
// Expanded result, since the only inputs are the document itself and the
// frame's named fields.
func Expand(doc *Document, frame FrameInfoLike) (*Expanded, error) {
	out := &Expanded{Name: doc.Name, Outputs: doc.Outputs}

	for _, r := range doc.Resources {
		if !evalCondition(frame, r.Condition) {
			continue
		}
		expanded, err := expandResource(r, frame)
		if err != nil {
			return nil, err
		}
		out.Resources = append(out.Resources, expanded...)
	}

	for _, p := range doc.Passes {
		if !evalCondition(frame, p.Condition) {
			continue
		}
		expanded, err := expandPass(p, frame)
		if err != nil {
			return nil, err
		}
		out.Passes = append(out.Passes, expanded...)
	}

	return out, nil
}

func expandResource(r ResourceDecl, frame FrameInfoLike) ([]ResourceDecl, error) {
	count := 1
	if r.Repeat != nil {
		n, err := countSource(frame, r.Repeat.CountSource)
		if err != nil {
			return nil, err
		}
		count = n
	}
	out := make([]ResourceDecl, 0, count)
	for i := 0; i < count; i++ {
		c := r
		c.Repeat = nil
		c.Condition = ""
		c.Name = expandIndexToken(r.Name, i)
		if r.LayersSource != "" {
			v, err := sizeSource(frame, r.LayersSource)
			if err != nil {
				return nil, err
			}
			c.Layers = v
			c.LayersSource = ""
		}
		if r.Extent != nil {
			e := *r.Extent
			if e.SizeSource != "" {
				v, err := sizeSource(frame, e.SizeSource)
				if err != nil {
					return nil, err
				}
				e.Width, e.Height = v, v
				e.SizeSource = ""
			}
			c.Extent = &e
		}
		out = append(out, c)
	}
	return out, nil
}

func expandPass(p PassDecl, frame FrameInfoLike) ([]PassDecl, error) {
	count := 1
	if p.Repeat != nil {
		n, err := countSource(frame, p.Repeat.CountSource)
		if err != nil {
			return nil, err
		}
		count = n
	}
	out := make([]PassDecl, 0, count)
	for i := 0; i < count; i++ {
		c := p
		c.Repeat = nil
		c.Condition = ""
		c.Name = expandIndexToken(p.Name, i)
		c.Reads = expandRefs(p.Reads, i)
		c.Writes = expandRefs(p.Writes, i)
		if p.Attachments != nil {
			c.Attachments = expandAttachments(p.Attachments, i)
		}
		out = append(out, c)
	}
	return out, nil
}

func expandRefs(refs []ResourceRef, i int) []ResourceRef {
	if refs == nil {
		return nil
	}
	out := make([]ResourceRef, len(refs))
	for j, r := range refs {
		r.Image = expandIndexToken(r.Image, i)
		r.Buffer = expandIndexToken(r.Buffer, i)
		if s, ok := r.ArrayIndex.(string); ok {
			expanded := expandIndexToken(s, i)
			if n, err := strconv.Atoi(expanded); err == nil {
				r.ArrayIndex = n
			} else {
				r.ArrayIndex = expanded
			}
		}
		r.Repeat = nil
		out[j] = r
	}
	return out
}

func expandAttachments(a *AttachmentsDecl, i int) *AttachmentsDecl {
	out := &AttachmentsDecl{}
	for _, c := range a.Color {
		c.Image = expandIndexToken(c.Image, i)
		out.Color = append(out.Color, c)
	}
	if a.Depth != nil {
		d := *a.Depth
		d.Image = expandIndexToken(d.Image, i)
		out.Depth = &d
	}
	return out
}
