// Package layout reconstructs the reading-order structure of a PDF
// page. It groups positioned text blocks, lines, and images into
// block-level units (paragraphs, table grids, pictures), splitting
// multi-column pages and promoting grid-aligned clusters to tables.
// The grouping is geometric and heuristic; ambiguous grids degrade to
// plain paragraphs rather than failing.
package layout

import (
	"math"
	"sort"

	"github.com/a3tai/pdf-to-docx/internal/model"
)

// Config holds the tunable geometry thresholds. The defaults were
// validated against representative fixtures; they are exposed as
// configuration because no single set suits every layout.
type Config struct {
	// ColumnGapFactor scales the page's median character width to the
	// minimum horizontal gutter treated as a column break.
	ColumnGapFactor float64
	// RowOverlapRatio is the fraction of the smaller block height two
	// blocks must overlap vertically to count as the same text row.
	RowOverlapRatio float64
	// ParagraphGapFactor scales the font size to the maximum vertical
	// gap across which consecutive rows merge into one paragraph.
	ParagraphGapFactor float64
	// TableMinRows and TableMinCols gate table-grid promotion.
	TableMinRows int
	TableMinCols int
	// CellTolerance is the slack, in page units, used when clustering
	// grid edges and assigning blocks to cells.
	CellTolerance float64
	// VectorComplexity is the number of vector line primitives above
	// which a page region is flattened to a single rasterized unit
	// instead of being emitted line by line.
	VectorComplexity int
}

// DefaultConfig returns the fixture-validated defaults.
func DefaultConfig() Config {
	return Config{
		ColumnGapFactor:    2.0,
		RowOverlapRatio:    0.5,
		ParagraphGapFactor: 1.2,
		TableMinRows:       2,
		TableMinCols:       2,
		CellTolerance:      2.0,
		VectorComplexity:   24,
	}
}

// PageStats carries the per-page measurements the heuristics rely on.
type PageStats struct {
	// BodyFontSize is the modal font size of the page's text, weighted
	// by text length. Zero when the page has no sized text.
	BodyFontSize float64
	// MedianCharWidth is the median per-character advance of the
	// page's text blocks. Zero when the page has no text.
	MedianCharWidth float64
}

// BlockKind discriminates reconstructed blocks.
type BlockKind string

const (
	BlockParagraph BlockKind = "paragraph"
	BlockTable     BlockKind = "table"
	BlockPicture   BlockKind = "picture"
)

// Grid is a promoted table region with cell assignment by containment.
type Grid struct {
	Rows  int
	Cols  int
	Cells [][][]model.TextBlock // [row][col] -> member blocks in reading order
	// ColumnWidths are derived from the detected column edges.
	ColumnWidths []float64
	Width        float64
	// HeaderRow is true when the first row reads as a header
	// (tagged TH cells or uniformly bold).
	HeaderRow bool
}

// Block is one reconstructed structural unit in reading order.
type Block struct {
	Kind BlockKind
	// Lines holds the paragraph's text rows, each row left-to-right.
	// Only set for BlockParagraph.
	Lines [][]model.TextBlock
	// Role is the dominant tagged role among member blocks, if any.
	Role string
	// Table is set for BlockTable.
	Table *Grid
	// Image is set for picture blocks backed by a raster image.
	Image *model.Image
	// Placeholder marks a picture block standing in for flattened
	// vector art with no bitmap available.
	Placeholder bool
	BBox        model.BoundingBox
}

// Text concatenates a paragraph block's fragments with spaces between
// same-row neighbours and newlines between rows.
func (b *Block) Text() string {
	var out string
	for i, row := range b.Lines {
		if i > 0 {
			out += "\n"
		}
		for j, frag := range row {
			if j > 0 {
				out += " "
			}
			out += frag.Text
		}
	}
	return out
}

// FirstFragment returns the lead text block of a paragraph, or a zero
// value for non-paragraph blocks.
func (b *Block) FirstFragment() model.TextBlock {
	if len(b.Lines) > 0 && len(b.Lines[0]) > 0 {
		return b.Lines[0][0]
	}
	return model.TextBlock{}
}

// Reconstructor groups page primitives into ordered blocks.
type Reconstructor struct {
	cfg Config
}

// NewReconstructor creates a reconstructor with the given thresholds.
func NewReconstructor(cfg Config) *Reconstructor {
	return &Reconstructor{cfg: cfg}
}

// Reconstruct produces the page's blocks in reading order together with
// the page statistics used by downstream role mapping. An empty page
// yields an empty block sequence.
func (r *Reconstructor) Reconstruct(page *model.Page) ([]Block, PageStats) {
	stats := ComputeStats(page)
	if len(page.TextBlocks) == 0 && len(page.Images) == 0 && len(page.Lines) == 0 {
		return nil, stats
	}

	usedBlocks := make(map[int]bool)
	usedLines := make(map[int]bool)

	var blocks []placed
	seq := 0

	for _, det := range r.detectTables(page, usedBlocks, usedLines) {
		blocks = append(blocks, placed{block: det, seq: seq})
		seq++
	}

	if flat, ok := r.flattenVectorArt(page, usedLines); ok {
		blocks = append(blocks, placed{block: flat, seq: seq})
		seq++
	}

	var free []int
	for i := range page.TextBlocks {
		if !usedBlocks[i] {
			free = append(free, i)
		}
	}
	gutters := r.columnGutters(page, free, stats)
	for _, para := range r.paragraphs(page, free, gutters, stats) {
		blocks = append(blocks, placed{block: para, seq: seq})
		seq++
	}

	for i := range page.Images {
		img := page.Images[i]
		blocks = append(blocks, placed{
			block: Block{Kind: BlockPicture, Image: &page.Images[i], BBox: img.BBox},
			seq:   seq,
		})
		seq++
	}
	for i := range page.Lines {
		if usedLines[i] {
			continue
		}
		line := page.Lines[i]
		blocks = append(blocks, placed{
			block: Block{Kind: BlockPicture, Placeholder: true, BBox: line.BBox},
			seq:   seq,
		})
		seq++
	}

	r.order(blocks, gutters)
	out := make([]Block, len(blocks))
	for i, p := range blocks {
		out[i] = p.block
	}
	return out, stats
}

type placed struct {
	block Block
	seq   int // original document order, the stable tie-break
	col   int
}

// order sorts blocks into reading order: by column (left to right),
// then top to bottom, then left to right, with the original document
// order breaking remaining ties.
func (r *Reconstructor) order(blocks []placed, gutters []float64) {
	for i := range blocks {
		blocks[i].col = columnIndex(blocks[i].block.BBox.CenterX(), gutters)
	}
	sort.SliceStable(blocks, func(i, j int) bool {
		a, b := blocks[i], blocks[j]
		if a.col != b.col {
			return a.col < b.col
		}
		if a.block.BBox.Top != b.block.BBox.Top {
			return a.block.BBox.Top < b.block.BBox.Top
		}
		if a.block.BBox.Left != b.block.BBox.Left {
			return a.block.BBox.Left < b.block.BBox.Left
		}
		return a.seq < b.seq
	})
}

// ComputeStats measures the page's body font size (length-weighted
// mode) and median character width.
func ComputeStats(page *model.Page) PageStats {
	var stats PageStats

	weights := make(map[float64]int)
	for _, b := range page.TextBlocks {
		if b.FontSize > 0 {
			weights[math.Round(b.FontSize*2)/2] += len(b.Text)
		}
	}
	best := 0
	for size, weight := range weights {
		if weight > best || (weight == best && size < stats.BodyFontSize) {
			best = weight
			stats.BodyFontSize = size
		}
	}

	var widths []float64
	for _, b := range page.TextBlocks {
		n := len([]rune(b.Text))
		if n == 0 || b.BBox.Width() <= 0 {
			continue
		}
		widths = append(widths, b.BBox.Width()/float64(n))
	}
	if len(widths) > 0 {
		sort.Float64s(widths)
		stats.MedianCharWidth = widths[len(widths)/2]
	}
	return stats
}

// columnGutters finds the x positions of vertical whitespace gutters
// wide enough to split the page into columns. The returned slice holds
// the center of each gutter; an empty slice means a single column.
func (r *Reconstructor) columnGutters(page *model.Page, free []int, stats PageStats) []float64 {
	if len(free) < 4 || stats.MedianCharWidth <= 0 {
		return nil
	}
	minGap := stats.MedianCharWidth * r.cfg.ColumnGapFactor

	type span struct{ left, right float64 }
	var spans []span
	for _, i := range free {
		bb := page.TextBlocks[i].BBox
		spans = append(spans, span{bb.Left, bb.Right})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].left < spans[j].left })

	// Merge the projected x-intervals; the gaps between merged
	// intervals are the candidate gutters.
	merged := []span{spans[0]}
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s.left <= last.right+minGap/4 {
			if s.right > last.right {
				last.right = s.right
			}
			continue
		}
		merged = append(merged, s)
	}

	var gutters []float64
	for i := 1; i < len(merged); i++ {
		gap := merged[i].left - merged[i-1].right
		if gap >= minGap {
			gutters = append(gutters, merged[i-1].right+gap/2)
		}
	}
	return gutters
}

func columnIndex(x float64, gutters []float64) int {
	idx := 0
	for _, g := range gutters {
		if x > g {
			idx++
		}
	}
	return idx
}

// paragraphs clusters the unassigned text blocks of each column into
// rows, then merges vertically adjacent rows into paragraph blocks.
func (r *Reconstructor) paragraphs(page *model.Page, free []int, gutters []float64, stats PageStats) []Block {
	byColumn := make(map[int][]int)
	for _, i := range free {
		col := columnIndex(page.TextBlocks[i].BBox.CenterX(), gutters)
		byColumn[col] = append(byColumn[col], i)
	}
	cols := make([]int, 0, len(byColumn))
	for col := range byColumn {
		cols = append(cols, col)
	}
	sort.Ints(cols)

	var out []Block
	for _, col := range cols {
		rows := r.clusterRows(page, byColumn[col])
		out = append(out, r.mergeRows(rows, stats)...)
	}
	return out
}

// clusterRows groups blocks that overlap vertically into text rows and
// sorts each row left to right. Input order is preserved as a tie-break
// so overlapping blocks with no discernible order stay stable.
func (r *Reconstructor) clusterRows(page *model.Page, indices []int) [][]model.TextBlock {
	sorted := append([]int(nil), indices...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := page.TextBlocks[sorted[i]].BBox, page.TextBlocks[sorted[j]].BBox
		if a.Top != b.Top {
			return a.Top < b.Top
		}
		if a.Left != b.Left {
			return a.Left < b.Left
		}
		return sorted[i] < sorted[j]
	})

	var rows [][]model.TextBlock
	var rowBox model.BoundingBox
	for _, i := range sorted {
		blk := page.TextBlocks[i]
		if len(rows) > 0 && r.sameRow(rowBox, blk.BBox) {
			rows[len(rows)-1] = append(rows[len(rows)-1], blk)
			rowBox = rowBox.Union(blk.BBox)
			continue
		}
		rows = append(rows, []model.TextBlock{blk})
		rowBox = blk.BBox
	}
	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool { return row[i].BBox.Left < row[j].BBox.Left })
	}
	return rows
}

func (r *Reconstructor) sameRow(a, b model.BoundingBox) bool {
	overlap := a.VerticalOverlap(b)
	if overlap <= 0 {
		return false
	}
	minHeight := a.Height()
	if h := b.Height(); h < minHeight {
		minHeight = h
	}
	if minHeight <= 0 {
		return true // zero-height glyph placeholder rides its row
	}
	return overlap >= minHeight*r.cfg.RowOverlapRatio
}

// mergeRows joins consecutive rows into one paragraph while the
// vertical gap stays within ParagraphGapFactor font sizes and the
// tagged roles are compatible.
func (r *Reconstructor) mergeRows(rows [][]model.TextBlock, stats PageStats) []Block {
	var out []Block
	for _, row := range rows {
		if len(out) > 0 && r.rowsContinue(&out[len(out)-1], row, stats) {
			last := &out[len(out)-1]
			last.Lines = append(last.Lines, row)
			for _, frag := range row {
				last.BBox = last.BBox.Union(frag.BBox)
			}
			continue
		}
		blk := Block{Kind: BlockParagraph, Lines: [][]model.TextBlock{row}, BBox: row[0].BBox}
		for _, frag := range row {
			blk.BBox = blk.BBox.Union(frag.BBox)
			if blk.Role == "" {
				blk.Role = frag.Role
			}
		}
		out = append(out, blk)
	}
	return out
}

func (r *Reconstructor) rowsContinue(prev *Block, row []model.TextBlock, stats PageStats) bool {
	lead := row[0]
	if prev.Role != "" && lead.Role != "" && prev.Role != lead.Role {
		return false
	}
	// Heading rows never absorb following rows.
	if isHeadingRole(prev.Role) {
		return false
	}
	baseline := lead.FontSize
	if baseline == 0 {
		baseline = prev.FirstFragment().FontSize
	}
	if baseline == 0 {
		baseline = stats.BodyFontSize
	}
	if baseline == 0 {
		baseline = 12.0
	}
	if f := prev.FirstFragment().FontSize; f > 0 && lead.FontSize > 0 &&
		math.Abs(f-lead.FontSize) > baseline*0.25 {
		return false
	}
	gap := rowTop(row) - prev.BBox.Bottom
	return gap <= baseline*r.cfg.ParagraphGapFactor
}

func rowTop(row []model.TextBlock) float64 {
	top := row[0].BBox.Top
	for _, frag := range row[1:] {
		if frag.BBox.Top < top {
			top = frag.BBox.Top
		}
	}
	return top
}

func isHeadingRole(role string) bool {
	if len(role) != 2 || (role[0] != 'H' && role[0] != 'h') {
		return false
	}
	return role[1] >= '1' && role[1] <= '6'
}

// flattenVectorArt collapses dense vector line art into one rasterized
// placeholder unit when the unused line count exceeds the complexity
// threshold. Re-vectorizing such art is out of scope; flattening keeps
// the region's footprint in the output.
func (r *Reconstructor) flattenVectorArt(page *model.Page, usedLines map[int]bool) (Block, bool) {
	var indices []int
	for i := range page.Lines {
		if !usedLines[i] {
			indices = append(indices, i)
		}
	}
	if r.cfg.VectorComplexity <= 0 || len(indices) < r.cfg.VectorComplexity {
		return Block{}, false
	}
	bbox := page.Lines[indices[0]].BBox
	for _, i := range indices[1:] {
		bbox = bbox.Union(page.Lines[i].BBox)
	}
	for _, i := range indices {
		usedLines[i] = true
	}
	return Block{Kind: BlockPicture, Placeholder: true, BBox: bbox}, true
}
