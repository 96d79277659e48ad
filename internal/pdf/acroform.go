package pdf

import (
	"fmt"

	pcmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/a3tai/pdf-to-docx/internal/model"
)

// Button field flag bits.
const (
	flagRadio      = 1 << 15
	flagPushbutton = 1 << 16
)

// extractFields reads the AcroForm field array into the model. Push
// buttons carry no content and are skipped; radio buttons flatten to
// checkboxes. Fields whose widgets cannot be located land on page 0.
func extractFields(ctx *pcmodel.Context, pageIndex map[int]int, doc *model.PdfDocument) []model.FormField {
	rootDict, err := ctx.Catalog()
	if err != nil {
		return nil
	}
	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		return nil
	}
	acroFormDict, err := ctx.DereferenceDict(acroFormObj)
	if err != nil || acroFormDict == nil {
		return nil
	}
	fieldsObj, found := acroFormDict.Find("Fields")
	if !found {
		return nil
	}
	fieldsArray, err := ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return nil
	}

	var fields []model.FormField
	for i, fieldRef := range fieldsArray {
		field, ok := processField(ctx, fieldRef, i, pageIndex, doc)
		if ok {
			fields = append(fields, field)
		}
	}
	return fields
}

func processField(ctx *pcmodel.Context, fieldObj types.Object, index int, pageIndex map[int]int, doc *model.PdfDocument) (model.FormField, bool) {
	fieldDict, err := ctx.DereferenceDict(fieldObj)
	if err != nil || fieldDict == nil {
		return model.FormField{}, false
	}

	field := model.FormField{}

	if nameObj, found := fieldDict.Find("T"); found {
		if name, err := ctx.DereferenceStringOrHexLiteral(nameObj, pcmodel.V10, nil); err == nil {
			field.Name = name
		}
	}
	if field.Name == "" {
		field.Name = fmt.Sprintf("field_%d", index)
	}
	if labelObj, found := fieldDict.Find("TU"); found {
		if label, err := ctx.DereferenceStringOrHexLiteral(labelObj, pcmodel.V10, nil); err == nil {
			field.Label = label
		}
	}

	kind, ok := fieldKind(ctx, fieldDict)
	if !ok {
		return model.FormField{}, false
	}
	field.Kind = kind

	if valueObj, found := fieldDict.Find("V"); found {
		switch kind {
		case model.FieldCheckbox:
			if state, err := ctx.DereferenceName(valueObj, pcmodel.V10, nil); err == nil {
				field.Checked = state != "" && state != "Off"
				if field.Checked && state != "Yes" && state != "On" {
					field.Value = string(state) // radio export value
				}
			}
		default:
			if val, err := ctx.DereferenceStringOrHexLiteral(valueObj, pcmodel.V10, nil); err == nil {
				field.Value = val
			}
		}
	}

	if kind == model.FieldDropdown {
		field.Options = fieldOptions(ctx, fieldDict)
	}

	field.Page, field.BBox = fieldPlacement(ctx, fieldDict, pageIndex, doc)
	return field, true
}

// fieldKind maps the FT entry (inherited through Parent when absent) to
// a model field kind. The second result is false for push buttons and
// unrecognized types.
func fieldKind(ctx *pcmodel.Context, fieldDict types.Dict) (model.FormFieldKind, bool) {
	ftObj, found := fieldDict.Find("FT")
	if !found {
		if parentObj, found := fieldDict.Find("Parent"); found {
			if parentDict, err := ctx.DereferenceDict(parentObj); err == nil && parentDict != nil {
				return fieldKind(ctx, parentDict)
			}
		}
		return "", false
	}
	ftName, err := ctx.DereferenceName(ftObj, pcmodel.V10, nil)
	if err != nil {
		return "", false
	}

	switch ftName {
	case "Btn":
		if flagsObj, found := fieldDict.Find("Ff"); found {
			if flags, err := ctx.DereferenceInteger(flagsObj); err == nil && flags != nil {
				if *flags&flagPushbutton != 0 {
					return "", false
				}
			}
		}
		// Radio groups (flagRadio) flatten to checkboxes carrying the
		// selected export value.
		return model.FieldCheckbox, true
	case "Tx":
		return model.FieldText, true
	case "Ch":
		return model.FieldDropdown, true
	case "Sig":
		return model.FieldSignature, true
	}
	return "", false
}

// fieldOptions reads the Opt array. Entries may be plain strings or
// [export, display] pairs; the display value wins.
func fieldOptions(ctx *pcmodel.Context, fieldDict types.Dict) []string {
	optObj, found := fieldDict.Find("Opt")
	if !found {
		return nil
	}
	optArray, err := ctx.DereferenceArray(optObj)
	if err != nil {
		return nil
	}

	var options []string
	for _, opt := range optArray {
		if str, err := ctx.DereferenceStringOrHexLiteral(opt, pcmodel.V10, nil); err == nil {
			options = append(options, str)
		} else if arr, err := ctx.DereferenceArray(opt); err == nil && len(arr) >= 2 {
			if display, err := ctx.DereferenceStringOrHexLiteral(arr[1], pcmodel.V10, nil); err == nil {
				options = append(options, display)
			}
		}
	}
	return options
}

// fieldPlacement locates the field's widget: its page via the P entry
// and its rectangle flipped into top-down coordinates. Fields with
// separate widget kids use the first kid's placement.
func fieldPlacement(ctx *pcmodel.Context, fieldDict types.Dict, pageIndex map[int]int, doc *model.PdfDocument) (int, model.BoundingBox) {
	page := widgetPage(fieldDict, pageIndex)
	if rectObj, found := fieldDict.Find("Rect"); found {
		return page, widgetRect(ctx, rectObj, page, doc)
	}

	if kidsObj, found := fieldDict.Find("Kids"); found {
		if kids, err := ctx.DereferenceArray(kidsObj); err == nil && len(kids) > 0 {
			if widgetDict, err := ctx.DereferenceDict(kids[0]); err == nil && widgetDict != nil {
				page = widgetPage(widgetDict, pageIndex)
				if rectObj, found := widgetDict.Find("Rect"); found {
					return page, widgetRect(ctx, rectObj, page, doc)
				}
			}
		}
	}
	return page, model.BoundingBox{}
}

func widgetPage(dict types.Dict, pageIndex map[int]int) int {
	pObj, found := dict.Find("P")
	if !found {
		return 0
	}
	ref, ok := pObj.(types.IndirectRef)
	if !ok {
		return 0
	}
	if page, ok := pageIndex[ref.ObjectNumber.Value()]; ok {
		return page
	}
	return 0
}

func widgetRect(ctx *pcmodel.Context, rectObj types.Object, page int, doc *model.PdfDocument) model.BoundingBox {
	arr, err := ctx.DereferenceArray(rectObj)
	if err != nil || len(arr) != 4 {
		return model.BoundingBox{}
	}
	coords := make([]float64, 4)
	for i, coord := range arr {
		if f, err := ctx.DereferenceNumber(coord); err == nil {
			coords[i] = f
		}
	}
	var pageHeight float64
	if page >= 0 && page < len(doc.Pages) {
		pageHeight = doc.Pages[page].Height
	}
	return model.BoundingBox{
		Left:   coords[0],
		Top:    pageHeight - coords[3],
		Right:  coords[2],
		Bottom: pageHeight - coords[1],
	}
}
