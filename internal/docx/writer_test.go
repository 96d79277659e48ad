package docx

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/a3tai/pdf-to-docx/internal/ir"
	"github.com/a3tai/pdf-to-docx/internal/model"
)

func writePackage(t *testing.T, meta *model.Metadata, units ...ir.Unit) *zip.Reader {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf, meta)
	for i := range units {
		if err := w.WriteUnit(&units[i]); err != nil {
			t.Fatalf("WriteUnit: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("output is not a valid zip: %v", err)
	}
	return zr
}

func readPart(t *testing.T, zr *zip.Reader, name string) string {
	t.Helper()
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		return string(data)
	}
	t.Fatalf("part %s missing from package", name)
	return ""
}

func simpleParagraph(text string, style ir.StyleID) ir.Unit {
	return ir.NewParagraphUnit(0, model.BoundingBox{}, &ir.Paragraph{
		Style: style,
		Runs:  []ir.Run{{Text: text}},
	})
}

func TestPackageHasMandatoryParts(t *testing.T) {
	zr := writePackage(t, nil, simpleParagraph("hello", ir.StyleBodyText))
	for _, name := range []string{
		"[Content_Types].xml",
		"_rels/.rels",
		"docProps/app.xml",
		"docProps/core.xml",
		"word/document.xml",
		"word/styles.xml",
		"word/numbering.xml",
		"word/_rels/document.xml.rels",
	} {
		readPart(t, zr, name)
	}
}

func TestDocumentBodyContainsStyledText(t *testing.T) {
	zr := writePackage(t, nil,
		simpleParagraph("Document Title", ir.StyleTitle),
		simpleParagraph("Body follows.", ir.StyleBodyText),
	)
	doc := readPart(t, zr, "word/document.xml")
	titleAt := strings.Index(doc, `<w:pStyle w:val="Title"/>`)
	bodyAt := strings.Index(doc, "Body follows.")
	if titleAt < 0 || bodyAt < 0 {
		t.Fatal("expected both paragraphs in the body")
	}
	if titleAt > bodyAt {
		t.Error("title paragraph must precede the body paragraph")
	}
}

func TestTextEscaping(t *testing.T) {
	zr := writePackage(t, nil, simpleParagraph("a < b & c > d", ir.StyleBodyText))
	doc := readPart(t, zr, "word/document.xml")
	if !strings.Contains(doc, "a &lt; b &amp; c &gt; d") {
		t.Error("special characters must be escaped in text runs")
	}
}

func TestBookmarksAndHyperlinks(t *testing.T) {
	target := simpleParagraph("Chapter One", ir.StyleHeading1)
	target.Bookmarks = []string{"outline_1"}
	link := ir.NewParagraphUnit(0, model.BoundingBox{}, &ir.Paragraph{
		Style: ir.StyleTOCEntry,
		Runs:  []ir.Run{{Text: "Chapter One", Anchor: "outline_1"}},
	})
	zr := writePackage(t, nil, link, target)
	doc := readPart(t, zr, "word/document.xml")
	if !strings.Contains(doc, `<w:bookmarkStart w:id="1" w:name="outline_1"/>`) {
		t.Error("bookmark start missing")
	}
	if !strings.Contains(doc, `<w:hyperlink w:anchor="outline_1">`) {
		t.Error("internal hyperlink missing")
	}
	if !strings.Contains(doc, `<w:rStyle w:val="Hyperlink"/>`) {
		t.Error("hyperlink run style missing")
	}
}

func TestBookmarkBeforeTable(t *testing.T) {
	table := ir.NewTableUnit(0, model.BoundingBox{}, &ir.Table{
		Rows: []ir.TableRow{{Cells: []ir.TableCell{
			{Content: []ir.Paragraph{{Style: ir.StyleBodyText, Runs: []ir.Run{{Text: "x"}}}}},
		}}},
	})
	table.Bookmarks = []string{"outline_1"}
	zr := writePackage(t, nil, table)
	doc := readPart(t, zr, "word/document.xml")
	bm := strings.Index(doc, `w:name="outline_1"`)
	tbl := strings.Index(doc, "<w:tbl>")
	if bm < 0 || tbl < 0 || bm > tbl {
		t.Error("bookmark must be emitted before the table it anchors")
	}
}

func TestTableSerialization(t *testing.T) {
	unit := ir.NewTableUnit(0, model.BoundingBox{}, &ir.Table{
		Width:        200,
		ColumnWidths: []float64{100, 100},
		Rows: []ir.TableRow{
			{Header: true, Cells: []ir.TableCell{
				{Content: []ir.Paragraph{{Runs: []ir.Run{{Text: "Name"}}}}},
				{Content: []ir.Paragraph{{Runs: []ir.Run{{Text: "Qty"}}}}},
			}},
			{Cells: []ir.TableCell{
				{Content: []ir.Paragraph{{Runs: []ir.Run{{Text: "Bolts"}}}}},
				{Content: []ir.Paragraph{{Runs: []ir.Run{{Text: "12"}}}}},
			}},
		},
	})
	zr := writePackage(t, nil, unit)
	doc := readPart(t, zr, "word/document.xml")
	if !strings.Contains(doc, `<w:tblW w:w="4000" w:type="dxa"/>`) {
		t.Error("table width in twips missing")
	}
	if !strings.Contains(doc, `<w:gridCol w:w="2000"/>`) {
		t.Error("column grid missing")
	}
	if !strings.Contains(doc, "<w:trPr><w:tblHeader/></w:trPr>") {
		t.Error("header row marker missing")
	}
}

func TestNumberedListSerialization(t *testing.T) {
	unit := ir.NewParagraphUnit(0, model.BoundingBox{}, &ir.Paragraph{
		Style:     ir.StyleListParagraph,
		Numbering: &ir.Numbering{Ordered: true},
		Runs:      []ir.Run{{Text: "First"}},
	})
	zr := writePackage(t, nil, unit)
	doc := readPart(t, zr, "word/document.xml")
	if !strings.Contains(doc, `<w:numId w:val="2"/>`) {
		t.Error("ordered list must reference the decimal numbering")
	}
}

func TestPictureEmbedsMedia(t *testing.T) {
	unit := ir.NewPictureUnit(0, model.BoundingBox{}, &ir.Picture{
		Data:   []byte{0x89, 'P', 'N', 'G'},
		Format: "png",
		Width:  144,
		Height: 72,
	})
	zr := writePackage(t, nil, unit)
	readPart(t, zr, "word/media/image1.png")
	rels := readPart(t, zr, "word/_rels/document.xml.rels")
	if !strings.Contains(rels, `Target="media/image1.png"`) {
		t.Error("image relationship missing")
	}
	types := readPart(t, zr, "[Content_Types].xml")
	if !strings.Contains(types, `Extension="png"`) {
		t.Error("png content type missing")
	}
	doc := readPart(t, zr, "word/document.xml")
	if !strings.Contains(doc, `<wp:extent cx="1828800" cy="914400"/>`) {
		t.Error("picture extent in EMU missing")
	}
}

func TestUnknownImageFormatContentType(t *testing.T) {
	unit := ir.NewPictureUnit(0, model.BoundingBox{}, &ir.Picture{
		Data:   []byte{0x42, 0x4d},
		Format: "bmp",
		Width:  10,
		Height: 10,
	})
	zr := writePackage(t, nil, unit)
	readPart(t, zr, "word/media/image1.bmp")
	types := readPart(t, zr, "[Content_Types].xml")
	if !strings.Contains(types, `<Default Extension="bmp" ContentType="image/bmp"/>`) {
		t.Error("media part extension must have a matching Default content type")
	}
}

func TestPlaceholderPicture(t *testing.T) {
	unit := ir.NewPictureUnit(0, model.BoundingBox{}, &ir.Picture{
		Placeholder: true,
		Width:       200,
		Height:      100,
	})
	zr := writePackage(t, nil, unit)
	doc := readPart(t, zr, "word/document.xml")
	if !strings.Contains(doc, "<w:pBdr>") {
		t.Error("placeholder frame border missing")
	}
	if !strings.Contains(doc, `<w:spacing w:line="2000" w:lineRule="exact"/>`) {
		t.Error("placeholder height missing")
	}
}

func TestCorePropertiesOmitAbsentFields(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	meta := &model.Metadata{Title: "Report", Created: &created}
	zr := writePackage(t, meta, simpleParagraph("x", ir.StyleBodyText))
	core := readPart(t, zr, "docProps/core.xml")
	if !strings.Contains(core, "<dc:title>Report</dc:title>") {
		t.Error("title missing from core properties")
	}
	if !strings.Contains(core, "2024-03-01T12:00:00Z") {
		t.Error("created timestamp missing")
	}
	if strings.Contains(core, "<dc:creator>") {
		t.Error("absent author must be omitted, not defaulted")
	}
	if strings.Contains(core, "<dc:subject>") {
		t.Error("absent subject must be omitted")
	}
}

func TestCustomProperties(t *testing.T) {
	meta := &model.Metadata{Custom: map[string]string{"Department": "QA"}}
	zr := writePackage(t, meta, simpleParagraph("x", ir.StyleBodyText))
	custom := readPart(t, zr, "docProps/custom.xml")
	if !strings.Contains(custom, `name="Department"`) || !strings.Contains(custom, "<vt:lpwstr>QA</vt:lpwstr>") {
		t.Error("custom property missing")
	}
	rels := readPart(t, zr, "_rels/.rels")
	if !strings.Contains(rels, "docProps/custom.xml") {
		t.Error("custom properties relationship missing")
	}
}

func TestDeterministicOutput(t *testing.T) {
	build := func() []byte {
		var buf bytes.Buffer
		w := NewWriter(&buf, &model.Metadata{Title: "Same"})
		u := simpleParagraph("hello", ir.StyleBodyText)
		if err := w.WriteUnit(&u); err != nil {
			t.Fatal(err)
		}
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
		return buf.Bytes()
	}
	if !bytes.Equal(build(), build()) {
		t.Error("identical unit streams must produce identical bytes")
	}
}
