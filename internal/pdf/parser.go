// Package pdf builds the document model from a PDF file. Positioned
// text comes from ledongthuc/pdf; document-level structure (page
// geometry, metadata, the outline tree, AcroForm fields, encryption)
// comes from a pdfcpu read context. All coordinates are flipped into
// the model's top-left origin during construction.
package pdf

import (
	"errors"
	"fmt"
	"os"
	"strings"

	ledongthuc "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pcmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/a3tai/pdf-to-docx/internal/model"
)

// ErrEncrypted is returned for password-protected documents.
// Decryption is out of scope; callers fail before writing any output.
var ErrEncrypted = errors.New("pdf: document is encrypted")

// Parser reads PDF files into the document model.
type Parser struct{}

// NewParser creates a parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse reads the file at path into a document model.
func (p *Parser) Parse(path string) (*model.PdfDocument, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	conf := pcmodel.NewDefaultConfiguration()
	conf.ValidationMode = pcmodel.ValidationRelaxed

	ctx, err := api.ReadContext(file, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to ensure page count: %w", err)
	}
	if ctx.Encrypt != nil {
		return nil, ErrEncrypted
	}

	dims, err := ctx.PageDims()
	if err != nil {
		return nil, fmt.Errorf("failed to read page dimensions: %w", err)
	}

	doc := &model.PdfDocument{
		Pages:  make([]model.Page, ctx.PageCount),
		Tagged: isTagged(ctx),
	}
	for i := range doc.Pages {
		doc.Pages[i].Number = i
		if i < len(dims) {
			doc.Pages[i].Width = dims[i].Width
			doc.Pages[i].Height = dims[i].Height
		}
	}

	if err := p.extractText(path, doc); err != nil {
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}

	pageIndex := buildPageIndex(ctx)
	doc.Metadata = extractMetadata(ctx)
	doc.Outline = extractOutline(ctx, pageIndex, doc)
	doc.Fields = extractFields(ctx, pageIndex, doc)
	return doc, nil
}

// isTagged reports whether the catalog declares a tagged structure
// tree (MarkInfo.Marked).
func isTagged(ctx *pcmodel.Context) bool {
	rootDict, err := ctx.Catalog()
	if err != nil {
		return false
	}
	markObj, found := rootDict.Find("MarkInfo")
	if !found {
		return false
	}
	markDict, err := ctx.DereferenceDict(markObj)
	if err != nil || markDict == nil {
		return false
	}
	if marked := markDict.BooleanEntry("Marked"); marked != nil {
		return *marked
	}
	return false
}

// extractText fills each page's positioned text blocks from
// ledongthuc's character stream, grouping consecutive glyphs of the
// same font, size, and baseline into fragments.
func (p *Parser) extractText(path string, doc *model.PdfDocument) error {
	f, reader, err := ledongthuc.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		if pageNum > len(doc.Pages) {
			break
		}
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		dst := &doc.Pages[pageNum-1]
		dst.TextBlocks = groupGlyphs(page.Content().Text, dst.Height)
	}
	return nil
}

// groupGlyphs merges the glyph stream into text fragments. A fragment
// breaks on font or size change, a baseline shift, or a horizontal gap
// wider than half the font size. Coordinates flip from PDF's bottom-up
// origin to the model's top-down one.
func groupGlyphs(texts []ledongthuc.Text, pageHeight float64) []model.TextBlock {
	var blocks []model.TextBlock
	var cur *fragment

	flush := func() {
		if cur == nil || strings.TrimSpace(cur.text) == "" {
			cur = nil
			return
		}
		blocks = append(blocks, cur.toBlock(pageHeight))
		cur = nil
	}

	for _, t := range texts {
		if t.S == "" {
			continue
		}
		if cur != nil && !cur.accepts(t) {
			flush()
		}
		if cur == nil {
			cur = newFragment(t)
			continue
		}
		cur.append(t)
	}
	flush()
	return blocks
}

type fragment struct {
	text     string
	font     string
	size     float64
	baseline float64 // bottom-up y
	left     float64
	right    float64
}

func newFragment(t ledongthuc.Text) *fragment {
	return &fragment{
		text:     t.S,
		font:     t.Font,
		size:     t.FontSize,
		baseline: t.Y,
		left:     t.X,
		right:    t.X + t.W,
	}
}

func (f *fragment) accepts(t ledongthuc.Text) bool {
	if t.Font != f.font || t.FontSize != f.size {
		return false
	}
	if diff := t.Y - f.baseline; diff > 0.2 || diff < -0.2 {
		return false
	}
	maxGap := f.size / 2
	if maxGap <= 0 {
		maxGap = 2
	}
	return t.X-f.right <= maxGap && t.X >= f.left
}

func (f *fragment) append(t ledongthuc.Text) {
	if gap := t.X - f.right; gap > f.size*0.15 && !strings.HasSuffix(f.text, " ") {
		f.text += " "
	}
	f.text += t.S
	if r := t.X + t.W; r > f.right {
		f.right = r
	}
}

func (f *fragment) toBlock(pageHeight float64) model.TextBlock {
	size := f.size
	if size <= 0 {
		size = 12
	}
	lower := strings.ToLower(f.font)
	return model.TextBlock{
		Text:     f.text,
		FontName: f.font,
		FontSize: f.size,
		Bold:     strings.Contains(lower, "bold"),
		Italic:   strings.Contains(lower, "italic") || strings.Contains(lower, "oblique"),
		BBox: model.BoundingBox{
			Left:   f.left,
			Right:  f.right,
			Top:    pageHeight - f.baseline - size,
			Bottom: pageHeight - f.baseline,
		},
	}
}
