package model

import (
	"fmt"
	"time"
)

// BoundingBox represents an axis-aligned rectangle in page space.
// The origin is the top-left corner of the page with y increasing
// downward, so Left <= Right and Top <= Bottom for every valid box.
type BoundingBox struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// Width returns the horizontal extent of the box.
func (b BoundingBox) Width() float64 {
	if b.Right < b.Left {
		return 0
	}
	return b.Right - b.Left
}

// Height returns the vertical extent of the box.
func (b BoundingBox) Height() float64 {
	if b.Bottom < b.Top {
		return 0
	}
	return b.Bottom - b.Top
}

// CenterX returns the horizontal center of the box.
func (b BoundingBox) CenterX() float64 {
	return (b.Left + b.Right) / 2
}

// CenterY returns the vertical center of the box.
func (b BoundingBox) CenterY() float64 {
	return (b.Top + b.Bottom) / 2
}

// Valid reports whether the box satisfies Left <= Right and Top <= Bottom.
// A zero-area box is legal; it is used for zero-width glyph placeholders.
func (b BoundingBox) Valid() bool {
	return b.Left <= b.Right && b.Top <= b.Bottom
}

// Contains reports whether inner lies fully inside b, allowing the given
// tolerance on every edge.
func (b BoundingBox) Contains(inner BoundingBox, tolerance float64) bool {
	return inner.Left >= b.Left-tolerance &&
		inner.Right <= b.Right+tolerance &&
		inner.Top >= b.Top-tolerance &&
		inner.Bottom <= b.Bottom+tolerance
}

// Union returns the smallest box covering both b and other.
func (b BoundingBox) Union(other BoundingBox) BoundingBox {
	out := b
	if other.Left < out.Left {
		out.Left = other.Left
	}
	if other.Top < out.Top {
		out.Top = other.Top
	}
	if other.Right > out.Right {
		out.Right = other.Right
	}
	if other.Bottom > out.Bottom {
		out.Bottom = other.Bottom
	}
	return out
}

// VerticalOverlap returns the height of the vertical intersection of two
// boxes, or 0 when they do not overlap vertically.
func (b BoundingBox) VerticalOverlap(other BoundingBox) float64 {
	top := b.Top
	if other.Top > top {
		top = other.Top
	}
	bottom := b.Bottom
	if other.Bottom < bottom {
		bottom = other.Bottom
	}
	if bottom <= top {
		return 0
	}
	return bottom - top
}

// TextBlock is a positioned text fragment produced by the parser.
// Blocks are owned by their Page and treated as immutable by the
// conversion pipeline.
type TextBlock struct {
	Text     string      `json:"text"`
	BBox     BoundingBox `json:"bbox"`
	Role     string      `json:"role,omitempty"` // tagged role: "P", "H1".."H6", "Li", "Caption", "Table", ...
	FontName string      `json:"font_name,omitempty"`
	FontSize float64     `json:"font_size,omitempty"`
	Bold     bool        `json:"bold,omitempty"`
	Italic   bool        `json:"italic,omitempty"`
}

// Line is a straight stroked segment, typically a table rule or separator.
type Line struct {
	BBox        BoundingBox `json:"bbox"`
	StrokeWidth float64     `json:"stroke_width,omitempty"`
}

// Horizontal reports whether the line is (nearly) horizontal.
func (l Line) Horizontal() bool {
	return l.BBox.Height() <= 0.5
}

// Vertical reports whether the line is (nearly) vertical.
func (l Line) Vertical() bool {
	return l.BBox.Width() <= 0.5
}

// Image is an embedded raster image.
type Image struct {
	BBox   BoundingBox `json:"bbox"`
	Data   []byte      `json:"data,omitempty"`
	Format string      `json:"format,omitempty"` // "png", "jpeg", ...
	Name   string      `json:"name,omitempty"`
}

// Page holds all drawing primitives of a single PDF page.
// Pages are siblings; a Page never references another Page.
type Page struct {
	Number     int         `json:"number"` // 0-indexed
	Width      float64     `json:"width"`
	Height     float64     `json:"height"`
	TextBlocks []TextBlock `json:"text_blocks"`
	Lines      []Line      `json:"lines,omitempty"`
	Images     []Image     `json:"images,omitempty"`
}

// FormFieldKind identifies the widget type of an interactive form field.
type FormFieldKind string

const (
	FieldText      FormFieldKind = "text"
	FieldCheckbox  FormFieldKind = "checkbox"
	FieldDropdown  FormFieldKind = "dropdown"
	FieldSignature FormFieldKind = "signature"
)

// FormField describes one interactive widget. The conversion pipeline
// never emits interactive controls; fields are flattened into
// label/value rows by the form flattener.
type FormField struct {
	Kind    FormFieldKind `json:"kind"`
	Label   string        `json:"label,omitempty"`
	Name    string        `json:"name,omitempty"`
	Value   string        `json:"value,omitempty"`
	Checked bool          `json:"checked,omitempty"`
	Options []string      `json:"options,omitempty"`
	Page    int           `json:"page"` // 0-indexed owning page
	BBox    BoundingBox   `json:"bbox"`
}

// OutlineNode is one entry of the document outline tree.
type OutlineNode struct {
	Title    string         `json:"title"`
	Page     int            `json:"page"`             // 0-indexed target page
	Target   *BoundingBox   `json:"target,omitempty"` // nil means page top
	Children []*OutlineNode `json:"children,omitempty"`
}

// Metadata is the document information dictionary. Absent fields stay
// nil/empty and are omitted from the output, never defaulted.
type Metadata struct {
	Title    string            `json:"title,omitempty"`
	Author   string            `json:"author,omitempty"`
	Subject  string            `json:"subject,omitempty"`
	Keywords string            `json:"keywords,omitempty"`
	Creator  string            `json:"creator,omitempty"`
	Producer string            `json:"producer,omitempty"`
	Created  *time.Time        `json:"created,omitempty"`
	Modified *time.Time        `json:"modified,omitempty"`
	Custom   map[string]string `json:"custom,omitempty"`
}

// PdfDocument is the parsed source document and the unit of conversion.
// It is read-only input to the pipeline; the pipeline never mutates it,
// so concurrent conversions may share one instance.
type PdfDocument struct {
	Pages    []Page         `json:"pages"`
	Tagged   bool           `json:"tagged"` // role tags are trustworthy when true
	Outline  []*OutlineNode `json:"outline,omitempty"`
	Fields   []FormField    `json:"fields,omitempty"`
	Metadata *Metadata      `json:"metadata,omitempty"`
}

// PageCount returns the number of pages.
func (d *PdfDocument) PageCount() int {
	return len(d.Pages)
}

// FieldsOnPage returns the form fields owned by the given page, in
// document order.
func (d *PdfDocument) FieldsOnPage(page int) []FormField {
	var out []FormField
	for _, f := range d.Fields {
		if f.Page == page {
			out = append(out, f)
		}
	}
	return out
}

// ValidateOutline rejects outline trees that contain a cycle or a node
// whose target page cannot exist. Cycles are a structural error; an
// out-of-range target is reported via the dropped slice so callers can
// warn without failing.
func (d *PdfDocument) ValidateOutline() (dropped []*OutlineNode, err error) {
	seen := make(map[*OutlineNode]bool)
	var walk func(nodes []*OutlineNode) error
	walk = func(nodes []*OutlineNode) error {
		for _, node := range nodes {
			if node == nil {
				continue
			}
			if seen[node] {
				return fmt.Errorf("outline: cycle detected at node %q", node.Title)
			}
			seen[node] = true
			if node.Page < 0 || node.Page >= len(d.Pages) {
				dropped = append(dropped, node)
			}
			if err := walk(node.Children); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(d.Outline); err != nil {
		return nil, err
	}
	return dropped, nil
}
