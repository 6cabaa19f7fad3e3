// Package descriptor parses the render graph's JSON authoring format (see
// the "Render-graph description format" grammar) into a Document, expands
// its templates and repeats against a concrete rendergraph.FrameInfo, and
// builds the expanded result onto a rendergraph.Graph via a caller-supplied
// executor registry. JSON decoding follows ghjramos-aistore's jsoniter
// usage (cmd/cli/cli/object.go, ais/prxs3.go): jsoniter.Unmarshal in place
// of encoding/json, same decode-then-validate shape.
package descriptor

// Document is the top-level JSON object.
type Document struct {
	Version   int            `json:"version"`
	Name      string         `json:"name"`
	Resources []ResourceDecl `json:"resources"`
	Passes    []PassDecl     `json:"passes"`
	Outputs   OutputsDecl    `json:"outputs"`
}

// Repeat requests a declaration be duplicated once per resolved count.
type Repeat struct {
	CountSource string `json:"count_source"`
}

// Extent resolves an image's width/height against the frame or a fixed
// size.
type Extent struct {
	Mode       string `json:"mode"` // window|viewport|fixed|square
	Width      uint32 `json:"width,omitempty"`
	Height     uint32 `json:"height,omitempty"`
	SizeSource string `json:"size_source,omitempty"`
}

// ResourceDecl is one entry of the "resources" array.
type ResourceDecl struct {
	Name      string   `json:"name"`
	Type      string   `json:"type"` // image|buffer
	Condition string   `json:"condition,omitempty"`
	Repeat    *Repeat  `json:"repeat,omitempty"`
	Flags     []string `json:"flags,omitempty"`

	Import string  `json:"import,omitempty"`
	Extent *Extent `json:"extent,omitempty"`

	Layers       uint32 `json:"layers,omitempty"`
	LayersSource string `json:"layers_source,omitempty"`

	Format string   `json:"format,omitempty"`
	Usage  []string `json:"usage,omitempty"`

	Size uint64 `json:"size,omitempty"`
}

// ResourceRef is a read/write entry naming either an image or a buffer.
// ArrayIndex holds whatever the document supplied (an integer, or the
// "${i}" template token) and is resolved in expandRefs.
type ResourceRef struct {
	Image      string  `json:"image,omitempty"`
	Buffer     string  `json:"buffer,omitempty"`
	Access     string  `json:"access"`
	Binding    int     `json:"binding,omitempty"`
	ArrayIndex any     `json:"array_index,omitempty"`
	Repeat     *Repeat `json:"repeat,omitempty"`
}

func (r ResourceRef) name() string {
	if r.Image != "" {
		return r.Image
	}
	return r.Buffer
}

// ClearValue is a color or depth/stencil clear.
type ClearValue struct {
	Color   *[4]float32 `json:"color,omitempty"`
	Depth   float32     `json:"depth,omitempty"`
	Stencil *uint32     `json:"stencil,omitempty"`
}

// SliceDecl names a sub-range of an image's mip levels and array layers,
// the JSON form of rendergraph.Slice.
type SliceDecl struct {
	Mip        uint32 `json:"mip,omitempty"`
	BaseLayer  uint32 `json:"base_layer,omitempty"`
	LayerCount uint32 `json:"layer_count,omitempty"`
}

// ColorAttachmentDecl is one entry of attachments.color.
type ColorAttachmentDecl struct {
	Image string      `json:"image"`
	Load  string      `json:"load"`
	Store string      `json:"store"`
	Clear *ClearValue `json:"clear,omitempty"`
	Slice *SliceDecl  `json:"slice,omitempty"`
}

// DepthAttachmentDecl is attachments.depth.
type DepthAttachmentDecl struct {
	Image    string      `json:"image"`
	Load     string      `json:"load"`
	Store    string      `json:"store"`
	Clear    *ClearValue `json:"clear,omitempty"`
	ReadOnly bool        `json:"read_only,omitempty"`
	Slice    *SliceDecl  `json:"slice,omitempty"`
}

// AttachmentsDecl is a pass's attachments object.
type AttachmentsDecl struct {
	Color []ColorAttachmentDecl `json:"color,omitempty"`
	Depth *DepthAttachmentDecl  `json:"depth,omitempty"`
}

// PassDecl is one entry of the "passes" array.
type PassDecl struct {
	Name        string           `json:"name"`
	Type        string           `json:"type"` // graphics|compute|transfer
	Domain      string           `json:"domain,omitempty"`
	Condition   string           `json:"condition,omitempty"`
	Repeat      *Repeat          `json:"repeat,omitempty"`
	Flags       []string         `json:"flags,omitempty"`
	Reads       []ResourceRef    `json:"reads,omitempty"`
	Writes      []ResourceRef    `json:"writes,omitempty"`
	Attachments *AttachmentsDecl `json:"attachments,omitempty"`
	Execute     string           `json:"execute"`
}

// OutputsDecl names the frame's externally visible resources.
type OutputsDecl struct {
	Present       string   `json:"present,omitempty"`
	ExportImages  []string `json:"export_images,omitempty"`
	ExportBuffers []string `json:"export_buffers,omitempty"`
}
