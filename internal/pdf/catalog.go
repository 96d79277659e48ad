package pdf

import (
	"fmt"
	"strings"
	"time"

	pcmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/a3tai/pdf-to-docx/internal/model"
)

// buildPageIndex maps page object numbers to 0-based page indices by
// walking the page tree. Destinations and widget annotations reference
// pages by object, not by number.
func buildPageIndex(ctx *pcmodel.Context) map[int]int {
	index := make(map[int]int)
	rootDict, err := ctx.Catalog()
	if err != nil {
		return index
	}
	pagesObj, found := rootDict.Find("Pages")
	if !found {
		return index
	}

	next := 0
	var walk func(obj types.Object)
	walk = func(obj types.Object) {
		objNr := -1
		if ref, ok := obj.(types.IndirectRef); ok {
			objNr = ref.ObjectNumber.Value()
		}
		dict, err := ctx.DereferenceDict(obj)
		if err != nil || dict == nil {
			return
		}
		if typ := dict.Type(); typ != nil && *typ == "Page" {
			if objNr >= 0 {
				index[objNr] = next
			}
			next++
			return
		}
		kidsObj, found := dict.Find("Kids")
		if !found {
			return
		}
		kids, err := ctx.DereferenceArray(kidsObj)
		if err != nil {
			return
		}
		for _, kid := range kids {
			walk(kid)
		}
	}
	walk(pagesObj)
	return index
}

// extractMetadata reads the document information dictionary. Absent
// entries stay absent in the model; they are never defaulted.
func extractMetadata(ctx *pcmodel.Context) *model.Metadata {
	if ctx.Info == nil {
		return nil
	}
	infoDict, err := ctx.DereferenceDict(*ctx.Info)
	if err != nil || infoDict == nil {
		return nil
	}

	meta := &model.Metadata{}
	str := func(key string) string {
		obj, found := infoDict.Find(key)
		if !found {
			return ""
		}
		val, err := ctx.DereferenceStringOrHexLiteral(obj, pcmodel.V10, nil)
		if err != nil {
			return ""
		}
		return val
	}

	meta.Title = str("Title")
	meta.Author = str("Author")
	meta.Subject = str("Subject")
	meta.Keywords = str("Keywords")
	meta.Creator = str("Creator")
	meta.Producer = str("Producer")
	if t, err := parsePDFDate(str("CreationDate")); err == nil {
		meta.Created = &t
	}
	if t, err := parsePDFDate(str("ModDate")); err == nil {
		meta.Modified = &t
	}

	standard := map[string]bool{
		"Title": true, "Author": true, "Subject": true, "Keywords": true,
		"Creator": true, "Producer": true, "CreationDate": true, "ModDate": true,
		"Trapped": true,
	}
	for key := range infoDict {
		if standard[key] {
			continue
		}
		if val := str(key); val != "" {
			if meta.Custom == nil {
				meta.Custom = make(map[string]string)
			}
			meta.Custom[key] = val
		}
	}

	if meta.Title == "" && meta.Author == "" && meta.Subject == "" &&
		meta.Keywords == "" && meta.Creator == "" && meta.Producer == "" &&
		meta.Created == nil && meta.Modified == nil && len(meta.Custom) == 0 {
		return nil
	}
	return meta
}

// parsePDFDate parses PDF date strings (D:YYYYMMDDHHmmSSOHH'mm').
func parsePDFDate(dateStr string) (time.Time, error) {
	dateStr = strings.TrimPrefix(dateStr, "D:")
	if dateStr == "" {
		return time.Time{}, fmt.Errorf("empty date string")
	}
	formats := []string{
		"20060102150405-07'00'",
		"20060102150405+07'00'",
		"20060102150405Z",
		"20060102150405",
		"200601021504",
		"20060102",
	}
	for _, format := range formats {
		if date, err := time.Parse(format, dateStr); err == nil {
			return date, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse PDF date: %s", dateStr)
}

// extractOutline walks the catalog's Outlines dictionary into the
// model's outline tree. Destinations resolve through the page index;
// an XYZ destination's top coordinate becomes the node's target region.
// Malformed siblings are skipped rather than failing the document.
func extractOutline(ctx *pcmodel.Context, pageIndex map[int]int, doc *model.PdfDocument) []*model.OutlineNode {
	rootDict, err := ctx.Catalog()
	if err != nil {
		return nil
	}
	outlinesObj, found := rootDict.Find("Outlines")
	if !found {
		return nil
	}
	outlinesDict, err := ctx.DereferenceDict(outlinesObj)
	if err != nil || outlinesDict == nil {
		return nil
	}

	visited := make(map[int]bool)
	return walkOutlineLevel(ctx, outlinesDict, pageIndex, doc, visited)
}

// walkOutlineLevel follows a First/Next sibling chain. The visited set
// guards the walk itself against reference loops in the file; semantic
// cycle validation happens later on the built tree.
func walkOutlineLevel(ctx *pcmodel.Context, parent types.Dict, pageIndex map[int]int, doc *model.PdfDocument, visited map[int]bool) []*model.OutlineNode {
	firstObj, found := parent.Find("First")
	if !found {
		return nil
	}

	var nodes []*model.OutlineNode
	obj := firstObj
	for {
		if ref, ok := obj.(types.IndirectRef); ok {
			objNr := ref.ObjectNumber.Value()
			if visited[objNr] {
				break
			}
			visited[objNr] = true
		}
		dict, err := ctx.DereferenceDict(obj)
		if err != nil || dict == nil {
			break
		}

		node := &model.OutlineNode{}
		if titleObj, found := dict.Find("Title"); found {
			if title, err := ctx.DereferenceStringOrHexLiteral(titleObj, pcmodel.V10, nil); err == nil {
				node.Title = title
			}
		}
		node.Page, node.Target = resolveDestination(ctx, dict, pageIndex, doc)
		node.Children = walkOutlineLevel(ctx, dict, pageIndex, doc, visited)
		nodes = append(nodes, node)

		nextObj, found := dict.Find("Next")
		if !found {
			break
		}
		obj = nextObj
	}
	return nodes
}

// resolveDestination resolves a node's Dest entry (or GoTo action) to a
// page index and optional target region. Named destinations and
// unresolvable references fall back to page 0 with no region.
func resolveDestination(ctx *pcmodel.Context, dict types.Dict, pageIndex map[int]int, doc *model.PdfDocument) (int, *model.BoundingBox) {
	destObj, found := dict.Find("Dest")
	if !found {
		if actionObj, ok := dict.Find("A"); ok {
			if actionDict, err := ctx.DereferenceDict(actionObj); err == nil && actionDict != nil {
				if d, ok := actionDict.Find("D"); ok {
					destObj, found = d, true
				}
			}
		}
	}
	if !found {
		return 0, nil
	}

	arr, err := ctx.DereferenceArray(destObj)
	if err != nil || len(arr) == 0 {
		return 0, nil
	}
	ref, ok := arr[0].(types.IndirectRef)
	if !ok {
		return 0, nil
	}
	page, ok := pageIndex[ref.ObjectNumber.Value()]
	if !ok {
		return 0, nil
	}

	// [page /XYZ left top zoom]: the top coordinate pins the target.
	if len(arr) >= 4 {
		if kind, err := ctx.DereferenceName(arr[1], pcmodel.V10, nil); err == nil && kind == "XYZ" {
			top, topErr := ctx.DereferenceNumber(arr[3])
			left, leftErr := ctx.DereferenceNumber(arr[2])
			if topErr == nil && page < len(doc.Pages) {
				x := 0.0
				if leftErr == nil {
					x = left
				}
				y := doc.Pages[page].Height - top
				return page, &model.BoundingBox{Left: x, Top: y, Right: x, Bottom: y}
			}
		}
	}
	return page, nil
}
