// Package forms flattens interactive form fields into static content.
// The output never contains interactive controls: each widget becomes a
// two-cell label/value table row, and all fields of one page stack into
// a single table. The table unit carries the union of the positioned
// fields' bounding boxes so the page processor can splice it into the
// flow at the fields' reading-order position.
package forms

import (
	"sort"
	"strings"

	"github.com/a3tai/pdf-to-docx/internal/ir"
	"github.com/a3tai/pdf-to-docx/internal/model"
)

const (
	checkedGlyph   = "☑" // ☑
	uncheckedGlyph = "☐" // ☐
	signatureLine  = "________________________"
)

// Flatten renders the given page's fields as one two-column table unit,
// or ok=false when the page has no fields. Rows follow the fields'
// positions on the page (top to bottom, then left to right); fields
// without a bounding box keep their document order at the end.
func Flatten(doc *model.PdfDocument, page int) (ir.Unit, bool) {
	fields := doc.FieldsOnPage(page)
	if len(fields) == 0 {
		return ir.Unit{}, false
	}

	sort.SliceStable(fields, func(i, j int) bool {
		a, b := fields[i].BBox, fields[j].BBox
		av, bv := a.Valid() && a != (model.BoundingBox{}), b.Valid() && b != (model.BoundingBox{})
		if av != bv {
			return av // positioned fields first
		}
		if !av {
			return false
		}
		if a.Top != b.Top {
			return a.Top < b.Top
		}
		return a.Left < b.Left
	})

	table := &ir.Table{}
	var bbox model.BoundingBox
	for _, f := range fields {
		// Unpositioned fields must not drag the table's position to the
		// page origin.
		if f.BBox != (model.BoundingBox{}) {
			if bbox == (model.BoundingBox{}) {
				bbox = f.BBox
			} else {
				bbox = bbox.Union(f.BBox)
			}
		}
		table.Rows = append(table.Rows, ir.TableRow{Cells: []ir.TableCell{
			{Content: []ir.Paragraph{cellText(Label(f), true)}},
			{Content: []ir.Paragraph{cellText(ValueText(f), false)}},
		}})
	}
	return ir.Unit{Kind: ir.KindFormRow, Page: page, BBox: bbox, Table: table}, true
}

// Label resolves the display label: the widget's label, then its
// internal name, then the title-cased field kind.
func Label(f model.FormField) string {
	if f.Label != "" {
		return f.Label
	}
	if f.Name != "" {
		return f.Name
	}
	kind := string(f.Kind)
	if kind == "" {
		return "Field"
	}
	return strings.ToUpper(kind[:1]) + kind[1:]
}

// ValueText renders the field's value per kind: checkbox state glyph,
// signature placeholder line, dropdown selection (or the option list
// when nothing is selected), plain value otherwise.
func ValueText(f model.FormField) string {
	switch f.Kind {
	case model.FieldCheckbox:
		if f.Checked {
			return checkedGlyph
		}
		return uncheckedGlyph
	case model.FieldSignature:
		return signatureLine
	case model.FieldDropdown:
		if f.Value != "" {
			return f.Value
		}
		if len(f.Options) > 0 {
			return "Options: " + strings.Join(f.Options, ", ")
		}
		return ""
	}
	return f.Value
}

func cellText(text string, bold bool) ir.Paragraph {
	return ir.Paragraph{
		Style: ir.StyleBodyText,
		Runs:  []ir.Run{{Text: text, Bold: bold}},
	}
}
