// Package outline converts the source document's bookmark tree into
// destination anchors. The tree is validated up front (a cyclic outline
// is a structural error, out-of-range targets are dropped with a
// warning), flattened depth-first, and resolved against the unit stream
// by attaching each entry's anchor to the nearest unit at or after its
// target position. Resolution works as a pending-anchor queue so the
// streaming page processor can drive it one unit at a time with memory
// proportional to the outline size only.
package outline

import (
	"fmt"
	"sort"

	"github.com/a3tai/pdf-to-docx/internal/ir"
	"github.com/a3tai/pdf-to-docx/internal/model"
)

// Entry is one flattened outline node with its destination anchor name.
type Entry struct {
	Title  string
	Page   int // 0-indexed target page
	Target *model.BoundingBox
	Level  int // 0-based depth in the source tree
	Anchor string
}

// position orders entries on the page: the target's top edge, or the
// page top when the node points at the page with no region.
func (e Entry) position() float64 {
	if e.Target == nil {
		return 0
	}
	return e.Target.Top
}

// Builder resolves outline entries against the unit stream.
type Builder struct {
	entries []Entry // depth-first source order, for the generated TOC
	queue   []int   // entry indices sorted by (page, position)
	dropped []*model.OutlineNode
}

// NewBuilder validates and flattens the document's outline. A cycle in
// the tree returns an error; nodes targeting nonexistent pages are
// recorded as dropped and excluded from resolution. A document without
// an outline yields a builder with no entries.
func NewBuilder(doc *model.PdfDocument) (*Builder, error) {
	dropped, err := doc.ValidateOutline()
	if err != nil {
		return nil, err
	}
	skip := make(map[*model.OutlineNode]bool, len(dropped))
	for _, node := range dropped {
		skip[node] = true
	}

	b := &Builder{dropped: dropped}
	var walk func(nodes []*model.OutlineNode, level int)
	walk = func(nodes []*model.OutlineNode, level int) {
		for _, node := range nodes {
			if node == nil {
				continue
			}
			if !skip[node] {
				b.entries = append(b.entries, Entry{
					Title:  node.Title,
					Page:   node.Page,
					Target: node.Target,
					Level:  level,
					Anchor: fmt.Sprintf("outline_%d", len(b.entries)+1),
				})
			}
			walk(node.Children, level+1)
		}
	}
	walk(doc.Outline, 0)

	b.queue = make([]int, len(b.entries))
	for i := range b.queue {
		b.queue[i] = i
	}
	sort.SliceStable(b.queue, func(i, j int) bool {
		a, c := b.entries[b.queue[i]], b.entries[b.queue[j]]
		if a.Page != c.Page {
			return a.Page < c.Page
		}
		return a.position() < c.position()
	})
	return b, nil
}

// Entries returns the flattened outline in source (depth-first) order.
func (b *Builder) Entries() []Entry {
	return b.entries
}

// Dropped returns the nodes excluded for targeting nonexistent pages.
func (b *Builder) Dropped() []*model.OutlineNode {
	return b.dropped
}

// Pending reports how many entries still await a landing unit.
func (b *Builder) Pending() int {
	return len(b.queue)
}

// Attach consumes every queued entry whose target lies at or before the
// given unit and records the entries' anchors on it. Units must arrive
// in reading order; the tolerance lets a unit that starts marginally
// above the target still serve as its landing point.
func (b *Builder) Attach(unit *ir.Unit) {
	const tolerance = 1.0
	for len(b.queue) > 0 {
		e := b.entries[b.queue[0]]
		if e.Page > unit.Page {
			return
		}
		if e.Page == unit.Page && unit.BBox.Bottom < e.position()-tolerance {
			return
		}
		unit.Bookmarks = append(unit.Bookmarks, e.Anchor)
		b.queue = b.queue[1:]
	}
}

// Finish anchors every unresolved entry to the given final unit, the
// document-end fallback for targets past all content. A nil unit (an
// empty document) leaves the entries unresolved.
func (b *Builder) Finish(last *ir.Unit) {
	if last == nil {
		return
	}
	for _, idx := range b.queue {
		last.Bookmarks = append(last.Bookmarks, b.entries[idx].Anchor)
	}
	b.queue = nil
}

// TOCUnits renders the outline as a hyperlinked table-of-contents block
// for the head of the document: a heading followed by one indented
// entry per node, each linking to its anchor. No outline, no units.
func (b *Builder) TOCUnits() []ir.Unit {
	if len(b.entries) == 0 {
		return nil
	}
	units := make([]ir.Unit, 0, len(b.entries)+1)
	units = append(units, ir.NewParagraphUnit(0, model.BoundingBox{}, &ir.Paragraph{
		Style: ir.StyleTOCHeading,
		Runs:  []ir.Run{{Text: "Table of Contents"}},
	}))
	for _, e := range b.entries {
		para := &ir.Paragraph{
			Style: ir.StyleTOCEntry,
			Runs:  []ir.Run{{Text: e.Title, Anchor: e.Anchor}},
		}
		if e.Level > 0 {
			para.Numbering = &ir.Numbering{Level: e.Level}
		}
		units = append(units, ir.NewParagraphUnit(0, model.BoundingBox{}, para))
	}
	return units
}
