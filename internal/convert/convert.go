// Package convert drives the conversion pipeline: layout
// reconstruction, role mapping, outline resolution, and form
// flattening, feeding a serializer page by page. The streaming and
// buffered modes run the identical per-page path and produce
// byte-identical output; streaming only bounds peak memory to one page
// of units plus the pending outline anchors.
package convert

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/a3tai/pdf-to-docx/internal/docx"
	"github.com/a3tai/pdf-to-docx/internal/forms"
	"github.com/a3tai/pdf-to-docx/internal/ir"
	"github.com/a3tai/pdf-to-docx/internal/layout"
	"github.com/a3tai/pdf-to-docx/internal/model"
	"github.com/a3tai/pdf-to-docx/internal/outline"
	"github.com/a3tai/pdf-to-docx/internal/pdf"
	"github.com/a3tai/pdf-to-docx/internal/roles"
)

// Serializer consumes the ordered unit stream and writes the output
// document. Close finalizes the container; no WriteUnit may follow it.
type Serializer interface {
	WriteUnit(u *ir.Unit) error
	Close() error
}

// Options control one conversion run.
type Options struct {
	// PreserveFormatting keeps character formatting and inferred
	// alignment. When false only paragraph structure survives.
	PreserveFormatting bool
	// IncludeMetadata copies the source document information to the
	// output's properties.
	IncludeMetadata bool
	// StreamPages serializes each page as soon as it is processed
	// instead of buffering the whole unit stream. Output bytes are
	// identical either way.
	StreamPages bool
	// Layout holds the reconstruction thresholds.
	Layout layout.Config
}

// DefaultOptions returns the standard conversion settings.
func DefaultOptions() Options {
	return Options{
		PreserveFormatting: true,
		IncludeMetadata:    true,
		Layout:             layout.DefaultConfig(),
	}
}

// Result reports what a completed conversion produced.
type Result struct {
	OutputPath     string   `json:"output_path,omitempty"`
	TaggedPDF      bool     `json:"tagged_pdf"`
	Pages          int      `json:"pages"`
	Units          int      `json:"units"`
	Fields         int      `json:"fields"`
	OutlineEntries int      `json:"outline_entries"`
	Warnings       []string `json:"warnings,omitempty"`
}

// Document converts an in-memory document and writes the result to w.
// On a structure error (cyclic outline) nothing is written to w.
func Document(doc *model.PdfDocument, w io.Writer, opts Options) (*Result, error) {
	builder, err := outline.NewBuilder(doc)
	if err != nil {
		return nil, structureErr("validate outline", err)
	}

	var meta *model.Metadata
	if opts.IncludeMetadata {
		meta = doc.Metadata
	}
	ser := docx.NewWriter(w, meta)

	res, err := run(doc, builder, ser, opts)
	if err != nil {
		return nil, err
	}
	if err := ser.Close(); err != nil {
		return nil, outputErr("finalize output", err)
	}
	return res, nil
}

// File converts an in-memory document to a file at dest. A failed
// conversion removes the partial output before returning.
func File(doc *model.PdfDocument, dest string, opts Options) (*Result, error) {
	builder, err := outline.NewBuilder(doc)
	if err != nil {
		return nil, structureErr("validate outline", err)
	}
	_ = builder // validated before the destination file exists

	f, err := os.Create(dest)
	if err != nil {
		return nil, outputErr("create output", err)
	}
	res, convErr := Document(doc, f, opts)
	closeErr := f.Close()
	if convErr != nil {
		if rmErr := os.Remove(dest); rmErr != nil {
			log.Printf("cleanup of partial output %s failed: %v", dest, rmErr)
		}
		return nil, convErr
	}
	if closeErr != nil {
		if rmErr := os.Remove(dest); rmErr != nil {
			log.Printf("cleanup of partial output %s failed: %v", dest, rmErr)
		}
		return nil, outputErr("close output", closeErr)
	}
	res.OutputPath = dest
	return res, nil
}

// Path parses the PDF at src and converts it to a file at dest.
// Unreadable, malformed, and encrypted sources are input errors;
// nothing is written for them.
func Path(src, dest string, opts Options) (*Result, error) {
	doc, err := pdf.NewParser().Parse(src)
	if err != nil {
		return nil, inputErr("parse input", err)
	}
	return File(doc, dest, opts)
}

// run drives the pipeline. The streaming mode serializes units as pages
// complete with a one-unit lookbehind (the last unit must stay
// available for end-of-document anchor attachment); the buffered mode
// collects all units first and then plays the same loop, so the two
// byte streams match.
func run(doc *model.PdfDocument, builder *outline.Builder, ser Serializer, opts Options) (*Result, error) {
	res := &Result{
		TaggedPDF:      doc.Tagged,
		Pages:          doc.PageCount(),
		Fields:         len(doc.Fields),
		OutlineEntries: len(builder.Entries()),
	}
	for _, node := range builder.Dropped() {
		msg := fmt.Sprintf("outline entry %q targets nonexistent page %d; dropped", node.Title, node.Page+1)
		res.Warnings = append(res.Warnings, msg)
		log.Print(msg)
	}

	for _, toc := range builder.TOCUnits() {
		toc := toc
		if err := ser.WriteUnit(&toc); err != nil {
			return nil, outputErr("write unit", err)
		}
		res.Units++
	}

	sink := &anchoredSink{builder: builder, ser: ser, res: res}
	emit := sink.emit
	var buffered []ir.Unit
	if !opts.StreamPages {
		emit = func(u ir.Unit) error {
			buffered = append(buffered, u)
			return nil
		}
	}

	recon := layout.NewReconstructor(opts.Layout)
	mapper := roles.NewMapper(opts.PreserveFormatting)
	for i := range doc.Pages {
		page := &doc.Pages[i]
		blocks, stats := recon.Reconstruct(page)
		units := mapper.Map(page, blocks, stats, doc.Tagged)
		if formTable, ok := forms.Flatten(doc, page.Number); ok {
			units = spliceByPosition(units, formTable)
		}
		if len(units) == 0 {
			// A content-free page still occupies one position in the
			// output flow.
			units = append(units, ir.NewParagraphUnit(page.Number, model.BoundingBox{},
				&ir.Paragraph{Style: ir.StyleBodyText}))
		}
		for _, u := range units {
			if err := emit(u); err != nil {
				return nil, err
			}
		}
	}

	if !opts.StreamPages {
		for _, u := range buffered {
			if err := sink.emit(u); err != nil {
				return nil, err
			}
		}
	}
	if err := sink.flush(); err != nil {
		return nil, err
	}
	return res, nil
}

// spliceByPosition inserts the page's form table into the unit sequence
// at the reading-order position of its topmost field, before the first
// unit that starts below it. A table whose fields carry no position
// lands after the flow content.
func spliceByPosition(units []ir.Unit, form ir.Unit) []ir.Unit {
	idx := len(units)
	if form.BBox != (model.BoundingBox{}) {
		for i, u := range units {
			if u.BBox.Top > form.BBox.Top ||
				(u.BBox.Top == form.BBox.Top && u.BBox.Left > form.BBox.Left) {
				idx = i
				break
			}
		}
	}
	units = append(units, ir.Unit{})
	copy(units[idx+1:], units[idx:])
	units[idx] = form
	return units
}

// anchoredSink attaches pending outline anchors to each unit before
// serializing it, holding the newest unit back so unresolved anchors
// can land on the final unit of the document.
type anchoredSink struct {
	builder *outline.Builder
	ser     Serializer
	res     *Result
	held    *ir.Unit
}

func (s *anchoredSink) emit(u ir.Unit) error {
	s.builder.Attach(&u)
	if s.held != nil {
		if err := s.ser.WriteUnit(s.held); err != nil {
			return outputErr("write unit", err)
		}
		s.res.Units++
	}
	s.held = &u
	return nil
}

func (s *anchoredSink) flush() error {
	s.builder.Finish(s.held)
	if s.held == nil {
		return nil
	}
	if err := s.ser.WriteUnit(s.held); err != nil {
		return outputErr("write unit", err)
	}
	s.res.Units++
	s.held = nil
	return nil
}
