package layout

import (
	"sort"
	"strings"

	"github.com/a3tai/pdf-to-docx/internal/model"
)

// detectTables finds table regions on the page and returns them as
// promoted grid blocks. Two detectors run in order: ruled grids built
// from stroked line primitives, then unruled grids inferred from
// whitespace alignment of the remaining text. Member blocks and
// consumed lines are recorded in the used sets so the paragraph pass
// skips them.
func (r *Reconstructor) detectTables(page *model.Page, usedBlocks map[int]bool, usedLines map[int]bool) []Block {
	var out []Block
	out = append(out, r.ruledGrids(page, usedBlocks, usedLines)...)
	out = append(out, r.whitespaceGrids(page, usedBlocks)...)
	return out
}

// ruledGrids promotes regions bounded by horizontal and vertical rules.
// Edge positions come from clustering the rule coordinates; a region
// qualifies when it yields at least TableMinRows x TableMinCols cells.
func (r *Reconstructor) ruledGrids(page *model.Page, usedBlocks map[int]bool, usedLines map[int]bool) []Block {
	var hIdx, vIdx []int
	for i, line := range page.Lines {
		if usedLines[i] {
			continue
		}
		switch {
		case line.Horizontal():
			hIdx = append(hIdx, i)
		case line.Vertical():
			vIdx = append(vIdx, i)
		}
	}
	if len(hIdx) < r.cfg.TableMinRows+1 || len(vIdx) < r.cfg.TableMinCols+1 {
		return nil
	}

	var ys, xs []float64
	for _, i := range hIdx {
		ys = append(ys, page.Lines[i].BBox.CenterY())
	}
	for _, i := range vIdx {
		xs = append(xs, page.Lines[i].BBox.CenterX())
	}
	rowEdges := clusterPositions(ys, r.cfg.CellTolerance)
	colEdges := clusterPositions(xs, r.cfg.CellTolerance)
	rows := len(rowEdges) - 1
	cols := len(colEdges) - 1
	if rows < r.cfg.TableMinRows || cols < r.cfg.TableMinCols {
		return nil
	}

	region := model.BoundingBox{
		Left:   colEdges[0] - r.cfg.CellTolerance,
		Top:    rowEdges[0] - r.cfg.CellTolerance,
		Right:  colEdges[len(colEdges)-1] + r.cfg.CellTolerance,
		Bottom: rowEdges[len(rowEdges)-1] + r.cfg.CellTolerance,
	}

	grid := &Grid{Rows: rows, Cols: cols}
	grid.Cells = make([][][]model.TextBlock, rows)
	for i := range grid.Cells {
		grid.Cells[i] = make([][]model.TextBlock, cols)
	}
	for i := 1; i < len(colEdges); i++ {
		grid.ColumnWidths = append(grid.ColumnWidths, colEdges[i]-colEdges[i-1])
	}
	grid.Width = colEdges[len(colEdges)-1] - colEdges[0]

	populated := 0
	for i, blk := range page.TextBlocks {
		if usedBlocks[i] || !region.Contains(blk.BBox, r.cfg.CellTolerance) {
			continue
		}
		row := edgeInterval(blk.BBox.CenterY(), rowEdges)
		col := edgeInterval(blk.BBox.CenterX(), colEdges)
		if row < 0 || col < 0 {
			continue
		}
		if len(grid.Cells[row][col]) == 0 {
			populated++
		}
		grid.Cells[row][col] = append(grid.Cells[row][col], blk)
		usedBlocks[i] = true
	}
	if populated < r.cfg.TableMinRows*r.cfg.TableMinCols {
		// Too sparse to be a table; release the blocks back to the
		// paragraph pass.
		for i := range page.TextBlocks {
			if usedBlocks[i] && region.Contains(page.TextBlocks[i].BBox, r.cfg.CellTolerance) {
				usedBlocks[i] = false
			}
		}
		return nil
	}

	for _, i := range hIdx {
		if region.Contains(page.Lines[i].BBox, r.cfg.CellTolerance) {
			usedLines[i] = true
		}
	}
	for _, i := range vIdx {
		if region.Contains(page.Lines[i].BBox, r.cfg.CellTolerance) {
			usedLines[i] = true
		}
	}

	sortCells(grid)
	grid.HeaderRow = headerRow(grid)
	return []Block{{Kind: BlockTable, Table: grid, Role: "Table", BBox: model.BoundingBox{
		Left: colEdges[0], Top: rowEdges[0], Right: colEdges[len(colEdges)-1], Bottom: rowEdges[len(rowEdges)-1],
	}}}
}

// whitespaceGrids infers unruled tables from text alignment. Blocks are
// first clustered by proximity; a cluster is promoted when its rows and
// columns form a consistent grid of at least the minimum size. An
// inconsistent column count across rows is ambiguous and the cluster
// stays paragraphs.
func (r *Reconstructor) whitespaceGrids(page *model.Page, usedBlocks map[int]bool) []Block {
	var free []int
	for i := range page.TextBlocks {
		if !usedBlocks[i] {
			free = append(free, i)
		}
	}
	if len(free) < r.cfg.TableMinRows*r.cfg.TableMinCols {
		return nil
	}

	var out []Block
	for _, cluster := range proximityClusters(page, free) {
		if len(cluster) < r.cfg.TableMinRows*r.cfg.TableMinCols {
			continue
		}
		grid, bbox, ok := r.gridFromCluster(page, cluster)
		if !ok {
			continue
		}
		for _, i := range cluster {
			usedBlocks[i] = true
		}
		out = append(out, Block{Kind: BlockTable, Table: grid, Role: "Table", BBox: bbox})
	}
	return out
}

// gridFromCluster tries to arrange a proximity cluster into a grid by
// clustering block centers along both axes.
func (r *Reconstructor) gridFromCluster(page *model.Page, cluster []int) (*Grid, model.BoundingBox, bool) {
	var avgH float64
	for _, i := range cluster {
		avgH += page.TextBlocks[i].BBox.Height()
	}
	avgH /= float64(len(cluster))
	rowTol := avgH * 0.6
	if rowTol < r.cfg.CellTolerance {
		rowTol = r.cfg.CellTolerance
	}

	var ys, xs []float64
	for _, i := range cluster {
		ys = append(ys, page.TextBlocks[i].BBox.CenterY())
		xs = append(xs, page.TextBlocks[i].BBox.Left)
	}
	rowCenters := clusterPositions(ys, rowTol)
	colCenters := clusterPositions(xs, r.cfg.CellTolerance*3)
	rows, cols := len(rowCenters), len(colCenters)
	if rows < r.cfg.TableMinRows || cols < r.cfg.TableMinCols {
		return nil, model.BoundingBox{}, false
	}

	grid := &Grid{Rows: rows, Cols: cols}
	grid.Cells = make([][][]model.TextBlock, rows)
	for i := range grid.Cells {
		grid.Cells[i] = make([][]model.TextBlock, cols)
	}

	bbox := page.TextBlocks[cluster[0]].BBox
	for _, i := range cluster {
		blk := page.TextBlocks[i]
		row := nearestIndex(blk.BBox.CenterY(), rowCenters)
		col := nearestIndex(blk.BBox.Left, colCenters)
		grid.Cells[row][col] = append(grid.Cells[row][col], blk)
		bbox = bbox.Union(blk.BBox)
	}

	// Consistency gate: every row must occupy the same number of
	// columns, otherwise the arrangement is ambiguous.
	occupied := -1
	for _, row := range grid.Cells {
		n := 0
		for _, cell := range row {
			if len(cell) > 0 {
				n++
			}
		}
		if n == 0 {
			return nil, model.BoundingBox{}, false
		}
		if occupied == -1 {
			occupied = n
		} else if n != occupied {
			return nil, model.BoundingBox{}, false
		}
	}
	if occupied < r.cfg.TableMinCols {
		return nil, model.BoundingBox{}, false
	}

	for i := 1; i < cols; i++ {
		grid.ColumnWidths = append(grid.ColumnWidths, colCenters[i]-colCenters[i-1])
	}
	grid.ColumnWidths = append(grid.ColumnWidths, bbox.Right-colCenters[cols-1])
	grid.Width = bbox.Width()

	sortCells(grid)
	grid.HeaderRow = headerRow(grid)
	return grid, bbox, true
}

// proximityClusters groups block indices whose boxes lie within half an
// inch of each other, transitively.
func proximityClusters(page *model.Page, indices []int) [][]int {
	const near = 36.0
	parent := make(map[int]int, len(indices))
	for _, i := range indices {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(a, b int) { parent[find(a)] = find(b) }

	for ai, a := range indices {
		for _, b := range indices[ai+1:] {
			if boxesNear(page.TextBlocks[a].BBox, page.TextBlocks[b].BBox, near) {
				union(a, b)
			}
		}
	}

	groups := make(map[int][]int)
	for _, i := range indices {
		root := find(i)
		groups[root] = append(groups[root], i)
	}
	var out [][]int
	roots := make([]int, 0, len(groups))
	for root := range groups {
		roots = append(roots, root)
	}
	sort.Ints(roots)
	for _, root := range roots {
		sort.Ints(groups[root])
		out = append(out, groups[root])
	}
	return out
}

func boxesNear(a, b model.BoundingBox, dist float64) bool {
	return a.Left-dist <= b.Right && b.Left-dist <= a.Right &&
		a.Top-dist <= b.Bottom && b.Top-dist <= a.Bottom
}

// clusterPositions merges 1-D coordinates closer than tol and returns
// the sorted cluster means.
func clusterPositions(values []float64, tol float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var out []float64
	sum, count := sorted[0], 1.0
	last := sorted[0]
	for _, v := range sorted[1:] {
		if v-last <= tol {
			sum += v
			count++
			last = v
			continue
		}
		out = append(out, sum/count)
		sum, count = v, 1
		last = v
	}
	out = append(out, sum/count)
	return out
}

// edgeInterval returns the interval index containing v among sorted
// edges, or -1 when v falls outside.
func edgeInterval(v float64, edges []float64) int {
	for i := 1; i < len(edges); i++ {
		if v >= edges[i-1] && v <= edges[i] {
			return i - 1
		}
	}
	return -1
}

func nearestIndex(v float64, centers []float64) int {
	best, bestDist := 0, -1.0
	for i, c := range centers {
		d := v - c
		if d < 0 {
			d = -d
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func sortCells(g *Grid) {
	for _, row := range g.Cells {
		for _, cell := range row {
			sort.SliceStable(cell, func(i, j int) bool {
				if cell[i].BBox.Top != cell[j].BBox.Top {
					return cell[i].BBox.Top < cell[j].BBox.Top
				}
				return cell[i].BBox.Left < cell[j].BBox.Left
			})
		}
	}
}

// headerRow reports whether the first row reads as a header: every
// populated cell tagged TH, or every populated cell bold.
func headerRow(g *Grid) bool {
	if g.Rows == 0 {
		return false
	}
	tagged, bold, seen := true, true, 0
	for _, cell := range g.Cells[0] {
		for _, blk := range cell {
			seen++
			if !strings.EqualFold(blk.Role, "TH") {
				tagged = false
			}
			if !blk.Bold {
				bold = false
			}
		}
	}
	return seen > 0 && (tagged || bold)
}
