package outline

import (
	"testing"

	"github.com/a3tai/pdf-to-docx/internal/ir"
	"github.com/a3tai/pdf-to-docx/internal/model"
)

func threePageDoc(nodes ...*model.OutlineNode) *model.PdfDocument {
	return &model.PdfDocument{Pages: make([]model.Page, 3), Outline: nodes}
}

func paragraphAt(page int, top, bottom float64) ir.Unit {
	return ir.NewParagraphUnit(page,
		model.BoundingBox{Left: 72, Top: top, Right: 400, Bottom: bottom},
		&ir.Paragraph{Style: ir.StyleBodyText})
}

func TestBuilderFlattensDepthFirst(t *testing.T) {
	doc := threePageDoc(
		&model.OutlineNode{Title: "One", Page: 0, Children: []*model.OutlineNode{
			{Title: "Sub", Page: 1},
		}},
		&model.OutlineNode{Title: "Two", Page: 2},
	)
	b, err := NewBuilder(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entries := b.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	wantTitles := []string{"One", "Sub", "Two"}
	wantLevels := []int{0, 1, 0}
	for i, e := range entries {
		if e.Title != wantTitles[i] || e.Level != wantLevels[i] {
			t.Errorf("entry %d = %q level %d, want %q level %d",
				i, e.Title, e.Level, wantTitles[i], wantLevels[i])
		}
		if e.Anchor == "" {
			t.Errorf("entry %d missing anchor", i)
		}
	}
	if entries[0].Anchor == entries[1].Anchor {
		t.Error("anchors must be unique")
	}
}

func TestBuilderRejectsCycle(t *testing.T) {
	a := &model.OutlineNode{Title: "A", Page: 0}
	b := &model.OutlineNode{Title: "B", Page: 0}
	a.Children = []*model.OutlineNode{b}
	b.Children = []*model.OutlineNode{a}
	if _, err := NewBuilder(threePageDoc(a)); err == nil {
		t.Fatal("expected error for cyclic outline")
	}
}

func TestBuilderDropsOutOfRangeTargets(t *testing.T) {
	doc := threePageDoc(
		&model.OutlineNode{Title: "Good", Page: 1},
		&model.OutlineNode{Title: "Bad", Page: 42},
	)
	b, err := NewBuilder(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b.Dropped()) != 1 || b.Dropped()[0].Title != "Bad" {
		t.Errorf("expected node Bad dropped, got %+v", b.Dropped())
	}
	if len(b.Entries()) != 1 {
		t.Errorf("dropped node must not appear in entries, got %d", len(b.Entries()))
	}
}

func TestAttachNearestFollowing(t *testing.T) {
	target := &model.BoundingBox{Left: 0, Top: 300, Right: 0, Bottom: 300}
	doc := threePageDoc(&model.OutlineNode{Title: "Section", Page: 1, Target: target})
	b, err := NewBuilder(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	anchor := b.Entries()[0].Anchor

	above := paragraphAt(1, 100, 200) // ends above the target
	b.Attach(&above)
	if len(above.Bookmarks) != 0 {
		t.Error("unit above the target must not receive the anchor")
	}

	hit := paragraphAt(1, 280, 320) // spans the target
	b.Attach(&hit)
	if len(hit.Bookmarks) != 1 || hit.Bookmarks[0] != anchor {
		t.Errorf("expected anchor %q on spanning unit, got %v", anchor, hit.Bookmarks)
	}
	if b.Pending() != 0 {
		t.Errorf("pending = %d, want 0", b.Pending())
	}
}

func TestAttachPageTopTarget(t *testing.T) {
	doc := threePageDoc(&model.OutlineNode{Title: "Chapter", Page: 1})
	b, _ := NewBuilder(doc)

	first := paragraphAt(0, 100, 200)
	b.Attach(&first)
	if len(first.Bookmarks) != 0 {
		t.Error("entry must not attach to an earlier page")
	}

	second := paragraphAt(1, 72, 100)
	b.Attach(&second)
	if len(second.Bookmarks) != 1 {
		t.Error("page-top entry should attach to the page's first unit")
	}
}

func TestFinishAnchorsRemainderToLastUnit(t *testing.T) {
	target := &model.BoundingBox{Top: 700, Bottom: 700}
	doc := threePageDoc(&model.OutlineNode{Title: "Tail", Page: 2, Target: target})
	b, _ := NewBuilder(doc)

	last := paragraphAt(2, 100, 150)
	b.Attach(&last)
	if len(last.Bookmarks) != 0 {
		t.Fatal("target below all content should stay pending")
	}
	b.Finish(&last)
	if len(last.Bookmarks) != 1 {
		t.Error("Finish should land the remaining anchor on the last unit")
	}
	if b.Pending() != 0 {
		t.Errorf("pending = %d, want 0", b.Pending())
	}
}

func TestTOCUnits(t *testing.T) {
	doc := threePageDoc(
		&model.OutlineNode{Title: "One", Page: 0, Children: []*model.OutlineNode{
			{Title: "Sub", Page: 1},
		}},
	)
	b, _ := NewBuilder(doc)
	units := b.TOCUnits()
	if len(units) != 3 {
		t.Fatalf("expected heading + 2 entries, got %d", len(units))
	}
	if units[0].Paragraph.Style != ir.StyleTOCHeading {
		t.Errorf("first unit style = %s, want TOCHeading", units[0].Paragraph.Style)
	}
	entry := units[1].Paragraph
	if entry.Style != ir.StyleTOCEntry {
		t.Errorf("entry style = %s, want TOC entry", entry.Style)
	}
	if entry.Runs[0].Anchor != b.Entries()[0].Anchor {
		t.Error("entry run must link to its outline anchor")
	}
	sub := units[2].Paragraph
	if sub.Numbering == nil || sub.Numbering.Level != 1 {
		t.Error("nested entry should carry its depth")
	}
}

func TestNoOutlineNoTOC(t *testing.T) {
	b, err := NewBuilder(threePageDoc())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b.TOCUnits()) != 0 {
		t.Error("document without outline must not emit a TOC")
	}
	if b.Pending() != 0 {
		t.Error("nothing should be pending")
	}
}
