package convert

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/a3tai/pdf-to-docx/internal/model"
)

func textBlock(text string, left, top, right, bottom, size float64) model.TextBlock {
	return model.TextBlock{
		Text:     text,
		FontSize: size,
		BBox:     model.BoundingBox{Left: left, Top: top, Right: right, Bottom: bottom},
	}
}

// sampleDoc builds a two-page document with a title, body text, an
// outline, and a form field.
func sampleDoc() *model.PdfDocument {
	return &model.PdfDocument{
		Pages: []model.Page{
			{
				Number: 0, Width: 612, Height: 792,
				TextBlocks: []model.TextBlock{
					textBlock("Document Title", 72, 72, 300, 96, 24),
					textBlock("Opening paragraph of the report body.", 72, 130, 440, 142, 12),
				},
			},
			{
				Number: 1, Width: 612, Height: 792,
				TextBlocks: []model.TextBlock{
					textBlock("Second page content goes here today.", 72, 100, 440, 112, 12),
				},
			},
		},
		Outline: []*model.OutlineNode{
			{Title: "Start", Page: 0},
			{Title: "Continuation", Page: 1},
		},
		Fields: []model.FormField{
			{Kind: model.FieldText, Label: "Name", Value: "Jane", Page: 1,
				BBox: model.BoundingBox{Left: 72, Top: 300, Right: 300, Bottom: 320}},
		},
		Metadata: &model.Metadata{Title: "Sample", Author: "QA"},
	}
}

func readZipPart(t *testing.T, data []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("output is not a valid zip: %v", err)
	}
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		defer rc.Close()
		content, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		return string(content)
	}
	t.Fatalf("part %s missing", name)
	return ""
}

func TestStreamingAndBufferedAreByteIdentical(t *testing.T) {
	doc := sampleDoc()

	var buffered, streamed bytes.Buffer
	opts := DefaultOptions()

	opts.StreamPages = false
	if _, err := Document(doc, &buffered, opts); err != nil {
		t.Fatalf("buffered: %v", err)
	}
	opts.StreamPages = true
	if _, err := Document(doc, &streamed, opts); err != nil {
		t.Fatalf("streaming: %v", err)
	}

	if !bytes.Equal(buffered.Bytes(), streamed.Bytes()) {
		t.Error("streaming and buffered conversions must produce identical bytes")
	}
}

func TestCyclicOutlineWritesNothing(t *testing.T) {
	doc := sampleDoc()
	a := &model.OutlineNode{Title: "A", Page: 0}
	b := &model.OutlineNode{Title: "B", Page: 0}
	a.Children = []*model.OutlineNode{b}
	b.Children = []*model.OutlineNode{a}
	doc.Outline = []*model.OutlineNode{a}

	var buf bytes.Buffer
	_, err := Document(doc, &buf, DefaultOptions())
	if err == nil {
		t.Fatal("expected structure error")
	}
	var convErr *Error
	if !errors.As(err, &convErr) || convErr.Kind != KindStructure {
		t.Errorf("error = %v, want structure class", err)
	}
	if buf.Len() != 0 {
		t.Errorf("destination received %d bytes, want 0", buf.Len())
	}
}

func TestCyclicOutlineLeavesNoFile(t *testing.T) {
	doc := sampleDoc()
	a := &model.OutlineNode{Title: "A", Page: 0}
	a.Children = []*model.OutlineNode{a}
	doc.Outline = []*model.OutlineNode{a}

	dest := filepath.Join(t.TempDir(), "out.docx")
	if _, err := File(doc, dest, DefaultOptions()); err == nil {
		t.Fatal("expected structure error")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("no output file may exist after a failed conversion")
	}
}

func TestUnitCountCoversEveryPage(t *testing.T) {
	doc := sampleDoc()
	doc.Pages = append(doc.Pages, model.Page{Number: 2, Width: 612, Height: 792}) // empty page

	var buf bytes.Buffer
	res, err := Document(doc, &buf, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Units < res.Pages {
		t.Errorf("units = %d, pages = %d; every page must contribute at least one unit",
			res.Units, res.Pages)
	}
}

func TestTitlePrecedesBodyInOutput(t *testing.T) {
	var buf bytes.Buffer
	if _, err := Document(sampleDoc(), &buf, DefaultOptions()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	docXML := readZipPart(t, buf.Bytes(), "word/document.xml")
	titleAt := strings.Index(docXML, "Document Title")
	bodyAt := strings.Index(docXML, "Opening paragraph")
	if titleAt < 0 || bodyAt < 0 || titleAt > bodyAt {
		t.Error("title must precede body text in the serialized document")
	}
}

func TestOutlineBecomesTOCAndBookmarks(t *testing.T) {
	var buf bytes.Buffer
	res, err := Document(sampleDoc(), &buf, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OutlineEntries != 2 {
		t.Errorf("outline entries = %d, want 2", res.OutlineEntries)
	}
	docXML := readZipPart(t, buf.Bytes(), "word/document.xml")
	if !strings.Contains(docXML, "Table of Contents") {
		t.Error("generated TOC heading missing")
	}
	if !strings.Contains(docXML, `<w:hyperlink w:anchor="outline_1">`) {
		t.Error("TOC hyperlink missing")
	}
	if !strings.Contains(docXML, `w:name="outline_1"`) {
		t.Error("outline bookmark missing")
	}
}

func TestFormFieldsFlattenIntoOutput(t *testing.T) {
	var buf bytes.Buffer
	res, err := Document(sampleDoc(), &buf, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Fields != 1 {
		t.Errorf("fields = %d, want 1", res.Fields)
	}
	docXML := readZipPart(t, buf.Bytes(), "word/document.xml")
	nameAt := strings.Index(docXML, ">Name<")
	janeAt := strings.Index(docXML, ">Jane<")
	if nameAt < 0 || janeAt < 0 || nameAt > janeAt {
		t.Error("flattened label/value row missing or misordered")
	}
}

func TestFormTableInsertedAtFieldPosition(t *testing.T) {
	doc := &model.PdfDocument{
		Pages: []model.Page{{
			Number: 0, Width: 612, Height: 792,
			TextBlocks: []model.TextBlock{
				textBlock("Closing remarks near the page bottom.", 72, 500, 440, 512, 12),
			},
		}},
		Fields: []model.FormField{
			{Kind: model.FieldText, Label: "Applicant", Value: "Jane", Page: 0,
				BBox: model.BoundingBox{Left: 72, Top: 100, Right: 300, Bottom: 120}},
		},
	}
	var buf bytes.Buffer
	if _, err := Document(doc, &buf, DefaultOptions()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	docXML := readZipPart(t, buf.Bytes(), "word/document.xml")
	fieldAt := strings.Index(docXML, ">Applicant<")
	bodyAt := strings.Index(docXML, "Closing remarks")
	if fieldAt < 0 || bodyAt < 0 {
		t.Fatal("expected both the form table and the flow paragraph in the body")
	}
	if fieldAt > bodyAt {
		t.Error("a field above the flow content must be serialized before it")
	}
}

func TestFormTableWithoutPositionsAppends(t *testing.T) {
	doc := &model.PdfDocument{
		Pages: []model.Page{{
			Number: 0, Width: 612, Height: 792,
			TextBlocks: []model.TextBlock{
				textBlock("Leading paragraph.", 72, 100, 440, 112, 12),
			},
		}},
		Fields: []model.FormField{
			{Kind: model.FieldText, Label: "Unplaced", Value: "x", Page: 0},
		},
	}
	var buf bytes.Buffer
	if _, err := Document(doc, &buf, DefaultOptions()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	docXML := readZipPart(t, buf.Bytes(), "word/document.xml")
	fieldAt := strings.Index(docXML, ">Unplaced<")
	bodyAt := strings.Index(docXML, "Leading paragraph")
	if fieldAt < 0 || bodyAt < 0 || fieldAt < bodyAt {
		t.Error("fields without a position must land after the flow content")
	}
}

func TestPathRejectsMissingInput(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.docx")
	_, err := Path(filepath.Join(dir, "missing.pdf"), dest, DefaultOptions())
	if err == nil {
		t.Fatal("expected input error")
	}
	var convErr *Error
	if !errors.As(err, &convErr) || convErr.Kind != KindInput {
		t.Errorf("error = %v, want input class", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("no output file may exist for an unreadable source")
	}
}

func TestPathRejectsMalformedInput(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "bad.pdf")
	if err := os.WriteFile(src, []byte("this is not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Path(src, filepath.Join(dir, "out.docx"), DefaultOptions())
	if err == nil {
		t.Fatal("expected input error")
	}
	var convErr *Error
	if !errors.As(err, &convErr) || convErr.Kind != KindInput {
		t.Errorf("error = %v, want input class", err)
	}
}

func TestMetadataToggle(t *testing.T) {
	opts := DefaultOptions()
	var with bytes.Buffer
	if _, err := Document(sampleDoc(), &with, opts); err != nil {
		t.Fatal(err)
	}
	core := readZipPart(t, with.Bytes(), "docProps/core.xml")
	if !strings.Contains(core, "<dc:title>Sample</dc:title>") {
		t.Error("metadata should be copied when enabled")
	}

	opts.IncludeMetadata = false
	var without bytes.Buffer
	if _, err := Document(sampleDoc(), &without, opts); err != nil {
		t.Fatal(err)
	}
	core = readZipPart(t, without.Bytes(), "docProps/core.xml")
	if strings.Contains(core, "Sample") {
		t.Error("metadata must not leak when disabled")
	}
}

func TestMetadataTranslationIsIdempotent(t *testing.T) {
	run := func() []byte {
		var buf bytes.Buffer
		if _, err := Document(sampleDoc(), &buf, DefaultOptions()); err != nil {
			t.Fatal(err)
		}
		return buf.Bytes()
	}
	first, second := run(), run()
	if !bytes.Equal(first, second) {
		t.Error("repeated conversion of the same document must be identical")
	}
}

func TestDroppedOutlineWarns(t *testing.T) {
	doc := sampleDoc()
	doc.Outline = append(doc.Outline, &model.OutlineNode{Title: "Ghost", Page: 99})

	var buf bytes.Buffer
	res, err := Document(doc, &buf, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "Ghost") {
		t.Errorf("expected a warning naming the dropped entry, got %v", res.Warnings)
	}
	if res.OutlineEntries != 2 {
		t.Errorf("outline entries = %d, want 2 surviving", res.OutlineEntries)
	}
}

func TestFileConversionWritesDestination(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.docx")
	res, err := File(sampleDoc(), dest, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OutputPath != dest {
		t.Errorf("output path = %s, want %s", res.OutputPath, dest)
	}
	info, err := os.Stat(dest)
	if err != nil {
		t.Fatalf("stat destination: %v", err)
	}
	if info.Size() == 0 {
		t.Error("destination file is empty")
	}
}
