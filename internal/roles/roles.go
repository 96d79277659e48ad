// Package roles assigns destination paragraph styles to reconstructed
// layout blocks. Tagged documents map structure-tree roles through a
// fixed table; untagged documents fall back to a geometry heuristic
// driven by font-size ratios against the page's body text. The output
// is the serializer-ready unit stream.
package roles

import (
	"strings"
	"unicode"

	"github.com/a3tai/pdf-to-docx/internal/ir"
	"github.com/a3tai/pdf-to-docx/internal/layout"
	"github.com/a3tai/pdf-to-docx/internal/model"
)

// Heading promotion ratios relative to the page's modal body font size.
const (
	heading1Ratio = 1.8
	heading2Ratio = 1.5
	heading3Ratio = 1.3
	// Bold text moderately above body size still reads as a heading.
	heading4Ratio = 1.15
)

// Mapper turns layout blocks into style-tagged structural units.
type Mapper struct {
	// preserve keeps run-level formatting (bold, italic, font, size)
	// and inferred alignment. When false only the structural style
	// survives.
	preserve bool
}

// NewMapper creates a mapper. preserveFormatting=false suppresses
// character formatting and alignment while keeping paragraph styles.
func NewMapper(preserveFormatting bool) *Mapper {
	return &Mapper{preserve: preserveFormatting}
}

// Map assigns styles to the page's blocks in order. tagged selects the
// role-table path; untagged blocks go through the heuristic. The first
// page's lead block may be promoted to Title.
func (m *Mapper) Map(page *model.Page, blocks []layout.Block, stats layout.PageStats, tagged bool) []ir.Unit {
	units := make([]ir.Unit, 0, len(blocks))
	for i := range blocks {
		blk := &blocks[i]
		switch blk.Kind {
		case layout.BlockTable:
			units = append(units, m.tableUnit(page, blk))
		case layout.BlockPicture:
			units = append(units, m.pictureUnit(page, blk))
		default:
			units = append(units, m.paragraphUnit(page, blk, stats, tagged, len(units) == 0))
		}
	}
	return units
}

func (m *Mapper) paragraphUnit(page *model.Page, blk *layout.Block, stats layout.PageStats, tagged, first bool) ir.Unit {
	para := &ir.Paragraph{Runs: m.runs(blk)}

	style, mapped := StyleForRole(blk.Role)
	if tagged && mapped {
		para.Style = style
	} else {
		para.Style = m.inferStyle(blk, stats)
	}

	// The lead block of the first page is the document title when it
	// carries the page's dominant display size.
	if first && page.Number == 0 && para.Style == ir.StyleHeading1 {
		para.Style = ir.StyleTitle
	}

	if para.Style == ir.StyleBodyText || para.Style == ir.StyleListParagraph {
		if num, text := detectListMarker(para.Text()); num != nil {
			para.Style = ir.StyleListParagraph
			para.Numbering = num
			trimMarker(para, text)
		} else if para.Style == ir.StyleListParagraph {
			para.Numbering = &ir.Numbering{Ordered: false}
		}
	}

	if m.preserve {
		para.Alignment = inferAlignment(blk.BBox, page.Width)
	}
	return ir.NewParagraphUnit(page.Number, blk.BBox, para)
}

// runs flattens a paragraph block's fragment rows into runs, coalescing
// adjacent fragments with identical formatting. Rows are joined with a
// space; hyphenated row breaks are left as-is.
func (m *Mapper) runs(blk *layout.Block) []ir.Run {
	var runs []ir.Run
	for ri, row := range blk.Lines {
		for fi, frag := range row {
			text := frag.Text
			if ri > 0 && fi == 0 || fi > 0 {
				text = " " + text
			}
			run := ir.Run{Text: text}
			if m.preserve {
				run.FontName = frag.FontName
				run.FontSize = frag.FontSize
				run.Bold = frag.Bold
				run.Italic = frag.Italic
			}
			if n := len(runs); n > 0 && sameFormat(runs[n-1], run) {
				runs[n-1].Text += run.Text
				continue
			}
			runs = append(runs, run)
		}
	}
	return runs
}

func sameFormat(a, b ir.Run) bool {
	return a.FontName == b.FontName && a.FontSize == b.FontSize &&
		a.Bold == b.Bold && a.Italic == b.Italic && a.Anchor == "" && b.Anchor == ""
}

// StyleForRole maps a structure-tree role to a paragraph style. The
// second result is false for roles that do not map to a paragraph
// style (table roles, unknown tags).
func StyleForRole(role string) (ir.StyleID, bool) {
	switch strings.ToUpper(strings.TrimSpace(role)) {
	case "H1":
		return ir.StyleHeading1, true
	case "H2":
		return ir.StyleHeading2, true
	case "H3":
		return ir.StyleHeading3, true
	case "H4":
		return ir.StyleHeading4, true
	case "H5":
		return ir.StyleHeading5, true
	case "H6":
		return ir.StyleHeading6, true
	case "P":
		return ir.StyleBodyText, true
	case "LI", "LBL", "LBODY":
		return ir.StyleListParagraph, true
	case "CAPTION", "FIGURE":
		return ir.StyleCaption, true
	case "TITLE":
		return ir.StyleTitle, true
	case "TOCI":
		return ir.StyleTOCEntry, true
	}
	return ir.StyleBodyText, false
}

// inferStyle is the untagged fallback: heading level from the ratio of
// the block's font size to the page's body size.
func (m *Mapper) inferStyle(blk *layout.Block, stats layout.PageStats) ir.StyleID {
	lead := blk.FirstFragment()
	if lead.FontSize <= 0 || stats.BodyFontSize <= 0 {
		return ir.StyleBodyText
	}
	ratio := lead.FontSize / stats.BodyFontSize
	switch {
	case ratio >= heading1Ratio:
		return ir.StyleHeading1
	case ratio >= heading2Ratio:
		return ir.StyleHeading2
	case ratio >= heading3Ratio:
		return ir.StyleHeading3
	case ratio >= heading4Ratio && lead.Bold && shortLine(blk):
		return ir.StyleHeading4
	}
	return ir.StyleBodyText
}

// shortLine reports whether the block is a single row that does not end
// in sentence punctuation, the shape headings take.
func shortLine(blk *layout.Block) bool {
	if len(blk.Lines) != 1 {
		return false
	}
	text := strings.TrimSpace(blk.Text())
	return len(text) > 0 && len(text) < 80 && !strings.HasSuffix(text, ".")
}

// detectListMarker recognizes ordered ("1." "12)" "a.") and bullet
// ("•", "-", "*") list prefixes. It returns the numbering plus the text
// with the marker stripped, or nil when no marker is present.
func detectListMarker(text string) (*ir.Numbering, string) {
	trimmed := strings.TrimLeft(text, " \t")
	if trimmed == "" {
		return nil, ""
	}

	switch r := []rune(trimmed)[0]; r {
	case '•', '◦', '▪', '‣', '-', '*', '–':
		rest := strings.TrimLeft(trimmed[len(string(r)):], " \t")
		if rest == "" {
			return nil, ""
		}
		return &ir.Numbering{Ordered: false}, rest
	}

	// Ordered: run of digits (or one letter) followed by '.' or ')'.
	i := 0
	rs := []rune(trimmed)
	for i < len(rs) && unicode.IsDigit(rs[i]) {
		i++
	}
	if i == 0 && len(rs) > 1 && unicode.IsLetter(rs[0]) && !unicode.IsLetter(rs[1]) {
		i = 1
	}
	if i == 0 || i >= len(rs) || i > 3 {
		return nil, ""
	}
	if rs[i] != '.' && rs[i] != ')' {
		return nil, ""
	}
	rest := strings.TrimLeft(string(rs[i+1:]), " \t")
	if rest == "" {
		return nil, ""
	}
	return &ir.Numbering{Ordered: true}, rest
}

// trimMarker rewrites the paragraph's runs so the concatenated text
// equals stripped (the marker removed from the front).
func trimMarker(p *ir.Paragraph, stripped string) {
	full := p.Text()
	cut := len(full) - len(stripped)
	if cut <= 0 {
		return
	}
	remaining := cut
	out := p.Runs[:0]
	for _, run := range p.Runs {
		if remaining >= len(run.Text) {
			remaining -= len(run.Text)
			continue
		}
		run.Text = run.Text[remaining:]
		remaining = 0
		out = append(out, run)
	}
	p.Runs = out
}

// inferAlignment classifies a block as centered or right-aligned from
// its margins; anything else inherits the style default.
func inferAlignment(bbox model.BoundingBox, pageWidth float64) string {
	if pageWidth <= 0 {
		return ""
	}
	left := bbox.Left
	right := pageWidth - bbox.Right
	slack := pageWidth * 0.05
	switch {
	case left > slack && right > slack && abs(left-right) < slack:
		return ir.AlignCenter
	case right < slack && left > pageWidth*0.3:
		return ir.AlignRight
	}
	return ""
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func (m *Mapper) tableUnit(page *model.Page, blk *layout.Block) ir.Unit {
	grid := blk.Table
	table := &ir.Table{Width: grid.Width, ColumnWidths: grid.ColumnWidths}
	for ri, rowCells := range grid.Cells {
		row := ir.TableRow{Header: ri == 0 && grid.HeaderRow}
		for _, cell := range rowCells {
			row.Cells = append(row.Cells, ir.TableCell{Content: m.cellParagraphs(cell, row.Header)})
		}
		table.Rows = append(table.Rows, row)
	}
	return ir.NewTableUnit(page.Number, blk.BBox, table)
}

func (m *Mapper) cellParagraphs(cell []model.TextBlock, header bool) []ir.Paragraph {
	if len(cell) == 0 {
		return []ir.Paragraph{{Style: ir.StyleBodyText, Runs: []ir.Run{{Text: ""}}}}
	}
	para := ir.Paragraph{Style: ir.StyleBodyText}
	for i, blk := range cell {
		text := blk.Text
		if i > 0 {
			text = " " + text
		}
		run := ir.Run{Text: text}
		if m.preserve {
			run.FontName = blk.FontName
			run.FontSize = blk.FontSize
			run.Bold = blk.Bold || header
			run.Italic = blk.Italic
		}
		para.Runs = append(para.Runs, run)
	}
	return []ir.Paragraph{para}
}

func (m *Mapper) pictureUnit(page *model.Page, blk *layout.Block) ir.Unit {
	pic := &ir.Picture{
		Width:       blk.BBox.Width(),
		Height:      blk.BBox.Height(),
		Placeholder: blk.Placeholder,
	}
	if blk.Image != nil {
		pic.Data = blk.Image.Data
		pic.Format = blk.Image.Format
	}
	return ir.NewPictureUnit(page.Number, blk.BBox, pic)
}
