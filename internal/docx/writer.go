// Package docx serializes structural units into a WordprocessingML
// package. The writer accepts units one at a time, accumulating the
// document body, and assembles the zip container on Close. Output is
// deterministic: identical unit streams produce identical bytes.
package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/a3tai/pdf-to-docx/internal/ir"
	"github.com/a3tai/pdf-to-docx/internal/model"
)

const (
	twipsPerPoint = 20
	emuPerPoint   = 12700
)

type mediaPart struct {
	name   string // part name under word/media/
	relID  string
	format string
	data   []byte
}

// Writer streams units into an in-memory document body and writes the
// complete package to the underlying writer on Close.
type Writer struct {
	out        io.Writer
	meta       *model.Metadata
	body       bytes.Buffer
	media      []mediaPart
	bookmarkID int
	drawingID  int
	closed     bool
}

// NewWriter creates a package writer. meta may be nil; absent metadata
// fields are omitted from the core-properties part, never defaulted.
func NewWriter(out io.Writer, meta *model.Metadata) *Writer {
	return &Writer{out: out, meta: meta}
}

// WriteUnit appends one structural unit to the document body.
func (w *Writer) WriteUnit(u *ir.Unit) error {
	if w.closed {
		return fmt.Errorf("docx: write after close")
	}
	if len(u.Bookmarks) > 0 && u.Kind != ir.KindParagraph {
		// Tables and pictures cannot host bookmark marks directly; an
		// empty paragraph in front carries them.
		anchor := &ir.Paragraph{Style: ir.StyleBodyText}
		w.writeParagraph(&w.body, anchor, u.Bookmarks)
	}
	switch u.Kind {
	case ir.KindParagraph:
		w.writeParagraph(&w.body, u.Paragraph, u.Bookmarks)
	case ir.KindTable, ir.KindFormRow:
		w.writeTable(&w.body, u.Table)
	case ir.KindPicture:
		w.writePicture(&w.body, u.Picture)
	default:
		return fmt.Errorf("docx: unknown unit kind %q", u.Kind)
	}
	return nil
}

// Close assembles and writes the package. The writer is unusable
// afterwards.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	zw := zip.NewWriter(w.out)
	parts := []struct {
		name string
		data []byte
	}{
		{"[Content_Types].xml", []byte(w.contentTypes())},
		{"_rels/.rels", []byte(w.rootRels())},
		{"docProps/app.xml", []byte(appXML)},
		{"docProps/core.xml", []byte(w.coreXML())},
		{"word/document.xml", w.documentXML()},
		{"word/styles.xml", []byte(stylesXML)},
		{"word/numbering.xml", []byte(numberingXML)},
		{"word/_rels/document.xml.rels", []byte(w.documentRels())},
	}
	if custom := w.customXML(); custom != "" {
		parts = append(parts, struct {
			name string
			data []byte
		}{"docProps/custom.xml", []byte(custom)})
	}
	for _, m := range w.media {
		parts = append(parts, struct {
			name string
			data []byte
		}{"word/media/" + m.name, m.data})
	}

	for _, p := range parts {
		f, err := zw.Create(p.name)
		if err != nil {
			return fmt.Errorf("docx: create part %s: %w", p.name, err)
		}
		if _, err := f.Write(p.data); err != nil {
			return fmt.Errorf("docx: write part %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("docx: finalize package: %w", err)
	}
	return nil
}

func (w *Writer) documentXML() []byte {
	var buf bytes.Buffer
	buf.WriteString(documentHeader)
	buf.Write(w.body.Bytes())
	buf.WriteString(documentFooter)
	return buf.Bytes()
}

func (w *Writer) writeParagraph(buf *bytes.Buffer, p *ir.Paragraph, bookmarks []string) {
	buf.WriteString("<w:p>")

	var props strings.Builder
	if p.Style != "" {
		fmt.Fprintf(&props, `<w:pStyle w:val="%s"/>`, p.Style)
	}
	if p.Numbering != nil {
		if p.Style == ir.StyleTOCEntry {
			// TOC entries indent by outline depth instead of numbering.
			fmt.Fprintf(&props, `<w:ind w:left="%d"/>`, 360*p.Numbering.Level)
		} else {
			numID := 1
			if p.Numbering.Ordered {
				numID = 2
			}
			fmt.Fprintf(&props, `<w:numPr><w:ilvl w:val="%d"/><w:numId w:val="%d"/></w:numPr>`,
				p.Numbering.Level, numID)
		}
	}
	if p.Alignment != "" {
		fmt.Fprintf(&props, `<w:jc w:val="%s"/>`, p.Alignment)
	}
	if props.Len() > 0 {
		buf.WriteString("<w:pPr>")
		buf.WriteString(props.String())
		buf.WriteString("</w:pPr>")
	}

	for _, name := range append(append([]string(nil), bookmarks...), p.Bookmarks...) {
		w.bookmarkID++
		fmt.Fprintf(buf, `<w:bookmarkStart w:id="%d" w:name="%s"/><w:bookmarkEnd w:id="%d"/>`,
			w.bookmarkID, escapeAttr(name), w.bookmarkID)
	}

	for _, run := range p.Runs {
		if run.Anchor != "" {
			fmt.Fprintf(buf, `<w:hyperlink w:anchor="%s">`, escapeAttr(run.Anchor))
			w.writeRun(buf, run, true)
			buf.WriteString("</w:hyperlink>")
			continue
		}
		w.writeRun(buf, run, false)
	}
	buf.WriteString("</w:p>")
}

func (w *Writer) writeRun(buf *bytes.Buffer, run ir.Run, hyperlink bool) {
	buf.WriteString("<w:r>")
	var props strings.Builder
	if hyperlink {
		props.WriteString(`<w:rStyle w:val="Hyperlink"/>`)
	}
	if run.FontName != "" {
		fmt.Fprintf(&props, `<w:rFonts w:ascii="%s" w:hAnsi="%s"/>`,
			escapeAttr(run.FontName), escapeAttr(run.FontName))
	}
	if run.Bold {
		props.WriteString("<w:b/>")
	}
	if run.Italic {
		props.WriteString("<w:i/>")
	}
	if run.FontSize > 0 {
		fmt.Fprintf(&props, `<w:sz w:val="%d"/>`, int(run.FontSize*2+0.5))
	}
	if props.Len() > 0 {
		buf.WriteString("<w:rPr>")
		buf.WriteString(props.String())
		buf.WriteString("</w:rPr>")
	}
	fmt.Fprintf(buf, `<w:t xml:space="preserve">%s</w:t>`, escapeText(run.Text))
	buf.WriteString("</w:r>")
}

func (w *Writer) writeTable(buf *bytes.Buffer, t *ir.Table) {
	buf.WriteString(`<w:tbl><w:tblPr><w:tblStyle w:val="TableGrid"/>`)
	if t.Width > 0 {
		fmt.Fprintf(buf, `<w:tblW w:w="%d" w:type="dxa"/>`, twips(t.Width))
	} else {
		buf.WriteString(`<w:tblW w:w="0" w:type="auto"/>`)
	}
	buf.WriteString("</w:tblPr>")

	if len(t.ColumnWidths) > 0 {
		buf.WriteString("<w:tblGrid>")
		for _, cw := range t.ColumnWidths {
			fmt.Fprintf(buf, `<w:gridCol w:w="%d"/>`, twips(cw))
		}
		buf.WriteString("</w:tblGrid>")
	}

	for _, row := range t.Rows {
		buf.WriteString("<w:tr>")
		if row.Header {
			buf.WriteString("<w:trPr><w:tblHeader/></w:trPr>")
		}
		for ci, cell := range row.Cells {
			buf.WriteString("<w:tc><w:tcPr>")
			if ci < len(t.ColumnWidths) {
				fmt.Fprintf(buf, `<w:tcW w:w="%d" w:type="dxa"/>`, twips(t.ColumnWidths[ci]))
			}
			if cell.ColSpan > 1 {
				fmt.Fprintf(buf, `<w:gridSpan w:val="%d"/>`, cell.ColSpan)
			}
			buf.WriteString("</w:tcPr>")
			if len(cell.Content) == 0 {
				buf.WriteString("<w:p/>")
			}
			for i := range cell.Content {
				w.writeParagraph(buf, &cell.Content[i], nil)
			}
			buf.WriteString("</w:tc>")
		}
		buf.WriteString("</w:tr>")
	}
	buf.WriteString("</w:tbl>")
	// A table must not end the body or abut a following table without a
	// separating paragraph; the next unit provides one in practice, and
	// the trailing sectPr paragraph covers the end-of-body case.
}

func (w *Writer) writePicture(buf *bytes.Buffer, pic *ir.Picture) {
	if len(pic.Data) == 0 {
		w.writePlaceholder(buf, pic)
		return
	}
	w.drawingID++
	relID := fmt.Sprintf("rId%d", 2+w.drawingID)
	ext := pic.Format
	if ext == "" {
		ext = "png"
	}
	w.media = append(w.media, mediaPart{
		name:   fmt.Sprintf("image%d.%s", w.drawingID, ext),
		relID:  relID,
		format: ext,
		data:   pic.Data,
	})

	cx, cy := emu(pic.Width), emu(pic.Height)
	fmt.Fprintf(buf, `<w:p><w:r><w:drawing><wp:inline distT="0" distB="0" distL="0" distR="0">`+
		`<wp:extent cx="%d" cy="%d"/><wp:docPr id="%d" name="Picture %d"/>`+
		`<a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture">`+
		`<pic:pic><pic:nvPicPr><pic:cNvPr id="%d" name="Picture %d"/><pic:cNvPicPr/></pic:nvPicPr>`+
		`<pic:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>`+
		`<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm>`+
		`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr></pic:pic>`+
		`</a:graphicData></a:graphic></wp:inline></w:drawing></w:r></w:p>`,
		cx, cy, w.drawingID, w.drawingID, w.drawingID, w.drawingID, relID, cx, cy)
}

// writePlaceholder renders flattened vector art with no bitmap as an
// empty bordered paragraph of the source region's height.
func (w *Writer) writePlaceholder(buf *bytes.Buffer, pic *ir.Picture) {
	height := twips(pic.Height)
	if height <= 0 {
		height = twipsPerPoint
	}
	fmt.Fprintf(buf, `<w:p><w:pPr><w:pBdr>`+
		`<w:top w:val="single" w:sz="4" w:color="auto"/>`+
		`<w:left w:val="single" w:sz="4" w:color="auto"/>`+
		`<w:bottom w:val="single" w:sz="4" w:color="auto"/>`+
		`<w:right w:val="single" w:sz="4" w:color="auto"/>`+
		`</w:pBdr><w:spacing w:line="%d" w:lineRule="exact"/></w:pPr>`+
		`<w:r><w:t xml:space="preserve"> </w:t></w:r></w:p>`, height)
}

func (w *Writer) documentRels() string {
	var buf strings.Builder
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` + "\n" +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` + "\n" +
		`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/numbering" Target="numbering.xml"/>` + "\n")
	for _, m := range w.media {
		fmt.Fprintf(&buf, `<Relationship Id="%s" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/%s"/>`+"\n",
			m.relID, m.name)
	}
	buf.WriteString("</Relationships>")
	return buf.String()
}

func (w *Writer) rootRels() string {
	if w.customXML() == "" {
		return relsRoot
	}
	return strings.Replace(relsRoot, "</Relationships>",
		`<Relationship Id="rId4" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/custom-properties" Target="docProps/custom.xml"/>`+
			"\n</Relationships>", 1)
}

func (w *Writer) contentTypes() string {
	var buf strings.Builder
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` + "\n" +
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` + "\n" +
		`<Default Extension="xml" ContentType="application/xml"/>` + "\n")

	formats := map[string]string{}
	for _, m := range w.media {
		switch m.format {
		case "jpeg", "jpg":
			formats[m.format] = "image/jpeg"
		case "gif":
			formats["gif"] = "image/gif"
		case "tiff":
			formats["tiff"] = "image/tiff"
		case "png":
			formats["png"] = "image/png"
		default:
			// The Default entry must cover the extension the media part
			// actually carries.
			formats[m.format] = "image/" + m.format
		}
	}
	exts := make([]string, 0, len(formats))
	for ext := range formats {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	for _, ext := range exts {
		fmt.Fprintf(&buf, `<Default Extension="%s" ContentType="%s"/>`+"\n", ext, formats[ext])
	}

	buf.WriteString(`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` + "\n" +
		`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` + "\n" +
		`<Override PartName="/word/numbering.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.numbering+xml"/>` + "\n" +
		`<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>` + "\n" +
		`<Override PartName="/docProps/app.xml" ContentType="application/vnd.openxmlformats-officedocument.extended-properties+xml"/>` + "\n")
	if w.customXML() != "" {
		buf.WriteString(`<Override PartName="/docProps/custom.xml" ContentType="application/vnd.openxmlformats-officedocument.custom-properties+xml"/>` + "\n")
	}
	buf.WriteString("</Types>")
	return buf.String()
}

// coreXML emits the core-properties part. Source fields that are absent
// stay absent here; an element is only written when the source carried
// a value.
func (w *Writer) coreXML() string {
	var buf strings.Builder
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">` + "\n")
	if m := w.meta; m != nil {
		if m.Title != "" {
			fmt.Fprintf(&buf, "<dc:title>%s</dc:title>\n", escapeText(m.Title))
		}
		if m.Author != "" {
			fmt.Fprintf(&buf, "<dc:creator>%s</dc:creator>\n", escapeText(m.Author))
		}
		if m.Subject != "" {
			fmt.Fprintf(&buf, "<dc:subject>%s</dc:subject>\n", escapeText(m.Subject))
		}
		if m.Keywords != "" {
			fmt.Fprintf(&buf, "<cp:keywords>%s</cp:keywords>\n", escapeText(m.Keywords))
		}
		if m.Created != nil {
			fmt.Fprintf(&buf, `<dcterms:created xsi:type="dcterms:W3CDTF">%s</dcterms:created>`+"\n",
				m.Created.UTC().Format("2006-01-02T15:04:05Z"))
		}
		if m.Modified != nil {
			fmt.Fprintf(&buf, `<dcterms:modified xsi:type="dcterms:W3CDTF">%s</dcterms:modified>`+"\n",
				m.Modified.UTC().Format("2006-01-02T15:04:05Z"))
		}
	}
	buf.WriteString("</cp:coreProperties>")
	return buf.String()
}

// customXML renders the source document's custom metadata entries, or
// "" when there are none. Entries are emitted in sorted key order so
// output stays deterministic.
func (w *Writer) customXML() string {
	if w.meta == nil || len(w.meta.Custom) == 0 {
		return ""
	}
	keys := make([]string, 0, len(w.meta.Custom))
	for k := range w.meta.Custom {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf strings.Builder
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/custom-properties" xmlns:vt="http://schemas.openxmlformats.org/officeDocument/2006/docPropsVTypes">` + "\n")
	for i, k := range keys {
		fmt.Fprintf(&buf, `<property fmtid="{D5CDD505-2E9C-101B-9397-08002B2CF9AE}" pid="%d" name="%s"><vt:lpwstr>%s</vt:lpwstr></property>`+"\n",
			i+2, escapeAttr(k), escapeText(w.meta.Custom[k]))
	}
	buf.WriteString("</Properties>")
	return buf.String()
}

func twips(points float64) int {
	return int(points*twipsPerPoint + 0.5)
}

func emu(points float64) int64 {
	return int64(points*emuPerPoint + 0.5)
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

var attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func escapeText(s string) string { return textEscaper.Replace(s) }

func escapeAttr(s string) string { return attrEscaper.Replace(s) }
