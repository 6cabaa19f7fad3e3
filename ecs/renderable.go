package ecs

// Transform is the minimal per-entity placement component every renderable
// entity carries; the render graph only ever reads it through FramePacket.
type Transform struct {
	PositionX, PositionY, PositionZ float32
	ScaleX, ScaleY, ScaleZ          float32
}

// Renderable marks an entity as contributing a draw to the frame packet.
// MeshID/MaterialID are opaque handles the backend resolves; ecs never
// interprets them.
type Renderable struct {
	MeshID     uint32
	MaterialID uint32
}

// RenderableItem is one entry of a FramePacket: a stable copy of the data a
// pass's execute callback needs, taken out of archetype storage so it
// survives structural changes made later in the same frame.
type RenderableItem struct {
	Entity    Entity
	Transform Transform
	Mesh      Renderable
}

// FramePacket is the per-frame renderable set a render graph pass's execute
// callback consumes. It is the seam between the ECS world and the render
// graph: nothing in rendergraph imports ecs directly, it only ever sees a
// FramePacket value.
type FramePacket struct {
	Renderables []RenderableItem
}

// RenderableQuery wraps a compiled query over {Transform, Renderable} and a
// reusable FramePacket buffer, so building a frame packet each tick
// amortizes its backing array the way the rest of this package's
// geometric-growth containers do.
type RenderableQuery struct {
	compiled *CompiledQuery
	packet   FramePacket
}

// BuildRenderableQuery compiles the {Transform, Renderable} query once;
// callers rebuild it after any frame in which new archetypes were created
// (CompiledQuery.Stale reports this).
func BuildRenderableQuery(w *World) *RenderableQuery {
	include := []ComponentID{ComponentIDFor[Transform](), ComponentIDFor[Renderable]()}
	cq := w.QueryCompile(QueryBuild(include, nil))
	return &RenderableQuery{compiled: cq}
}

// Stale reports whether the underlying compiled query needs rebuilding.
func (rq *RenderableQuery) Stale(w *World) bool { return rq.compiled.Stale(w) }

// Collect walks every matching chunk and rebuilds the FramePacket in place,
// returning it by reference so repeated calls reuse its backing slice.
func (rq *RenderableQuery) Collect(w *World) (*FramePacket, error) {
	rq.packet.Renderables = rq.packet.Renderables[:0]
	transformID := ComponentIDFor[Transform]()
	renderableID := ComponentIDFor[Renderable]()
	err := rq.compiled.EachChunk(w, func(a *Archetype, c *chunk, _ any) {
		tCol := int(a.columnIndex[transformID])
		rCol := int(a.columnIndex[renderableID])
		tStride := a.strides[tCol]
		rStride := a.strides[rCol]
		for slot := 0; slot < c.count; slot++ {
			item := RenderableItem{Entity: c.entities[slot]}
			item.Transform = *(*Transform)(componentPtr(c, tCol, slot, tStride))
			item.Mesh = *(*Renderable)(componentPtr(c, rCol, slot, rStride))
			rq.packet.Renderables = append(rq.packet.Renderables, item)
		}
	}, nil)
	if err != nil {
		return nil, err
	}
	return &rq.packet, nil
}
