// Package ir defines the style-tagged structural units the conversion
// pipeline hands to the output serializer. Units are the boundary
// contract between layout reconstruction and the DOCX writer: one unit
// is one block-level element (paragraph, table, picture, flattened form
// row) positioned in reading order.
package ir

import "github.com/a3tai/pdf-to-docx/internal/model"

// StyleID names a destination paragraph style.
type StyleID string

const (
	StyleBodyText      StyleID = "BodyText"
	StyleTitle         StyleID = "Title"
	StyleHeading1      StyleID = "Heading1"
	StyleHeading2      StyleID = "Heading2"
	StyleHeading3      StyleID = "Heading3"
	StyleHeading4      StyleID = "Heading4"
	StyleHeading5      StyleID = "Heading5"
	StyleHeading6      StyleID = "Heading6"
	StyleListParagraph StyleID = "ListParagraph"
	StyleCaption       StyleID = "Caption"
	StyleTOCHeading    StyleID = "TOCHeading"
	StyleTOCEntry      StyleID = "TOC1"
	StyleHyperlink     StyleID = "Hyperlink"
)

// HeadingStyle returns the heading style for a 1-based level, clamped
// to the Heading1..Heading6 range.
func HeadingStyle(level int) StyleID {
	switch {
	case level <= 1:
		return StyleHeading1
	case level == 2:
		return StyleHeading2
	case level == 3:
		return StyleHeading3
	case level == 4:
		return StyleHeading4
	case level == 5:
		return StyleHeading5
	default:
		return StyleHeading6
	}
}

// Alignment values mirror WordprocessingML justification keywords.
const (
	AlignLeft    = "left"
	AlignCenter  = "center"
	AlignRight   = "right"
	AlignJustify = "both"
)

// Run is a span of uniformly formatted text inside a paragraph.
type Run struct {
	Text     string
	FontName string
	FontSize float64 // points
	Bold     bool
	Italic   bool
	// Anchor links the run to a bookmark within the document
	// (used by generated table-of-contents entries).
	Anchor string
}

// Numbering carries list membership for a list-item paragraph.
type Numbering struct {
	Ordered bool
	Level   int // 0-based indent level
}

// Paragraph is a flow paragraph composed of runs.
type Paragraph struct {
	Runs      []Run
	Style     StyleID
	Alignment string // empty means inherit
	Numbering *Numbering
	// Bookmarks are anchor names opened at the start of this paragraph.
	Bookmarks []string
}

// Text concatenates the paragraph's run texts.
func (p *Paragraph) Text() string {
	var out string
	for _, r := range p.Runs {
		out += r.Text
	}
	return out
}

// TableCell holds the block content of one cell.
type TableCell struct {
	Content []Paragraph
	ColSpan int // 0 or 1 means no span
}

// TableRow is one row of a table unit.
type TableRow struct {
	Cells  []TableCell
	Header bool
}

// Table is a grid unit with explicit column geometry in points.
type Table struct {
	Rows         []TableRow
	Width        float64
	ColumnWidths []float64
}

// Picture is an image unit anchored at its source bounding box.
// Placeholder is set when complex vector art was flattened without an
// available bitmap; the serializer renders an empty frame of the same
// size instead of image bytes.
type Picture struct {
	Data        []byte
	Format      string
	Width       float64 // points
	Height      float64 // points
	Placeholder bool
}

// UnitKind discriminates the payload of a Unit.
type UnitKind string

const (
	KindParagraph UnitKind = "paragraph"
	KindTable     UnitKind = "table"
	KindPicture   UnitKind = "picture"
	KindFormRow   UnitKind = "form_row"
)

// Unit is one block-level structural element in reading order.
// Exactly one payload pointer is non-nil, matching Kind.
type Unit struct {
	Kind      UnitKind
	Page      int // 0-indexed source page
	BBox      model.BoundingBox
	Paragraph *Paragraph
	Table     *Table
	Picture   *Picture
	// Bookmarks are anchor names opened immediately before this unit,
	// the landing points of outline entries and TOC hyperlinks.
	Bookmarks []string
}

// NewParagraphUnit wraps a paragraph in a Unit.
func NewParagraphUnit(page int, bbox model.BoundingBox, p *Paragraph) Unit {
	return Unit{Kind: KindParagraph, Page: page, BBox: bbox, Paragraph: p}
}

// NewTableUnit wraps a table in a Unit.
func NewTableUnit(page int, bbox model.BoundingBox, t *Table) Unit {
	return Unit{Kind: KindTable, Page: page, BBox: bbox, Table: t}
}

// NewPictureUnit wraps a picture in a Unit.
func NewPictureUnit(page int, bbox model.BoundingBox, pic *Picture) Unit {
	return Unit{Kind: KindPicture, Page: page, BBox: bbox, Picture: pic}
}
