package pdf

import (
	"testing"

	pcmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/a3tai/pdf-to-docx/internal/model"
)

// fieldContext builds a minimal context for dereferencing direct field
// dictionaries.
func fieldContext() *pcmodel.Context {
	v := pcmodel.V17
	return &pcmodel.Context{XRefTable: &pcmodel.XRefTable{HeaderVersion: &v}}
}

func TestProcessFieldRadioExportValue(t *testing.T) {
	ctx := fieldContext()
	dict := types.Dict{
		"FT": types.Name("Btn"),
		"Ff": types.Integer(flagRadio),
		"T":  types.StringLiteral("color"),
		"V":  types.Name("Red"),
	}
	doc := &model.PdfDocument{Pages: []model.Page{{Width: 612, Height: 792}}}

	field, ok := processField(ctx, dict, 0, nil, doc)
	if !ok {
		t.Fatal("expected a field")
	}
	if field.Kind != model.FieldCheckbox {
		t.Errorf("kind = %s, want checkbox", field.Kind)
	}
	if !field.Checked {
		t.Error("selected radio group must read as checked")
	}
	if field.Value != "Red" {
		t.Errorf("value = %q, want the export value Red", field.Value)
	}
}

func TestProcessFieldCheckboxStates(t *testing.T) {
	ctx := fieldContext()
	doc := &model.PdfDocument{}

	on := types.Dict{"FT": types.Name("Btn"), "T": types.StringLiteral("agree"), "V": types.Name("Yes")}
	field, ok := processField(ctx, on, 0, nil, doc)
	if !ok || !field.Checked {
		t.Error("V=Yes must read as checked")
	}
	if field.Value != "" {
		t.Errorf("plain checkbox must not carry a value, got %q", field.Value)
	}

	off := types.Dict{"FT": types.Name("Btn"), "T": types.StringLiteral("agree"), "V": types.Name("Off")}
	if field, ok = processField(ctx, off, 1, nil, doc); !ok || field.Checked {
		t.Error("V=Off must read as unchecked")
	}
}

func TestProcessFieldSkipsPushbutton(t *testing.T) {
	ctx := fieldContext()
	dict := types.Dict{
		"FT": types.Name("Btn"),
		"Ff": types.Integer(flagPushbutton),
		"T":  types.StringLiteral("submit"),
	}
	if _, ok := processField(ctx, dict, 0, nil, &model.PdfDocument{}); ok {
		t.Error("push buttons carry no content and must be skipped")
	}
}

func TestProcessFieldTextValue(t *testing.T) {
	ctx := fieldContext()
	dict := types.Dict{
		"FT": types.Name("Tx"),
		"T":  types.StringLiteral("name"),
		"TU": types.StringLiteral("Full name"),
		"V":  types.StringLiteral("Jane"),
	}
	field, ok := processField(ctx, dict, 0, nil, &model.PdfDocument{})
	if !ok {
		t.Fatal("expected a field")
	}
	if field.Kind != model.FieldText || field.Value != "Jane" || field.Label != "Full name" {
		t.Errorf("field = %+v, want text field Jane labeled Full name", field)
	}
}
