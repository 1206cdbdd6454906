package report

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
)

// Renderer turns a Document into bytes.
type Renderer interface {
	Render(ctx context.Context, doc Document, w io.Writer) error
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(ctx context.Context, doc Document, w io.Writer) error

func (f RendererFunc) Render(ctx context.Context, doc Document, w io.Writer) error {
	return f(ctx, doc, w)
}

const (
	rowHeight   = 10.0
	imageRowH   = 40.0
	imageInset  = 2.0
	imageSide   = 36.0
	pageMargin  = 15.0
	bodyFont    = "Arial"
	titleFont   = "Times"
	defaultSize = 12.0
)

// FPDFRenderer draws documents on A4 portrait pages with core fonts.
type FPDFRenderer struct {
	Author string
	// Uncompressed leaves page content streams as plain text.
	Uncompressed bool
}

func NewFPDFRenderer(author string) *FPDFRenderer {
	return &FPDFRenderer{Author: author}
}

func (r *FPDFRenderer) Render(ctx context.Context, doc Document, w io.Writer) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.SetCompression(!r.Uncompressed)
	pdf.SetTitle(ReportTitle, true)
	if r.Author != "" {
		pdf.SetAuthor(r.Author, true)
	}

	// Core fonts are cp1252; map UTF-8 text onto it.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if doc.Footer != "" {
		pdf.SetFooterFunc(func() {
			pdf.SetY(-9)
			pdf.SetFont(bodyFont, "I", 9)
			pdf.SetTextColor(0, 0, 0)
			pdf.CellFormat(0, 10, tr(doc.Footer), "", 0, "C", false, 0, "")
		})
	}

	d := &drawer{pdf: pdf, tr: tr}
	for i, page := range doc.Pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		pdf.AddPage()
		if page.Bordered {
			pdf.SetLineWidth(0.5)
			pdf.SetDrawColor(0, 0, 0)
			pdf.Rect(7, 7, 196, 283, "D")
			pdf.SetLineWidth(0.2)
		}
		pdf.SetFont(bodyFont, "", defaultSize)
		for _, b := range page.Blocks {
			d.block(b)
		}
		if pdf.Err() {
			return fmt.Errorf("rendering page %d: %w", i+1, pdf.Error())
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return fmt.Errorf("writing pdf: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

type drawer struct {
	pdf    *fpdf.Fpdf
	tr     func(string) string
	images int
}

func (d *drawer) block(b Block) {
	pdf := d.pdf
	switch b := b.(type) {
	case Title:
		pdf.SetFont(titleFont, "B", 16)
		pdf.CellFormat(0, rowHeight, d.tr(b.Text), "", 1, "C", false, 0, "")
		pdf.SetFont(bodyFont, "", defaultSize)
	case Heading:
		d.heading(b.Text)
	case Rule:
		y := pdf.GetY()
		pdf.Line(10, y, 200, y)
	case Spacer:
		pdf.Ln(b.Height)
	case Paragraph:
		style, size := "", defaultSize
		if b.Italic {
			style = "I"
		}
		if b.Size > 0 {
			size = b.Size
		}
		pdf.SetFont(bodyFont, style, size)
		pdf.SetX(pageMargin)
		pdf.MultiCell(180, rowHeight*size/defaultSize, d.tr(b.Text), "", "L", false)
		pdf.SetFont(bodyFont, "", defaultSize)
	case Table:
		d.heading(b.Caption)
		d.header(b.Columns)
		for _, row := range b.Rows {
			for i, col := range b.Columns {
				text := ""
				if i < len(row) {
					text = row[i]
				}
				pdf.CellFormat(col.Width, rowHeight, d.tr(text), "1", 0, "L", false, 0, "")
			}
			pdf.Ln(rowHeight)
		}
	case ImageTable:
		d.heading(b.Caption)
		d.header(b.Columns)
		for _, row := range b.Rows {
			d.imageRow(b.Columns, row)
		}
	}
}

func (d *drawer) heading(text string) {
	if text == "" {
		return
	}
	d.pdf.SetFont(bodyFont, "B", defaultSize)
	d.pdf.CellFormat(0, rowHeight, d.tr(text), "", 1, "L", false, 0, "")
	d.pdf.SetFont(bodyFont, "", defaultSize)
}

func (d *drawer) header(cols []Column) {
	d.pdf.SetFillColor(220, 220, 220)
	for _, col := range cols {
		d.pdf.CellFormat(col.Width, rowHeight, d.tr(col.Header), "1", 0, "C", true, 0, "")
	}
	d.pdf.Ln(rowHeight)
}

func (d *drawer) imageRow(cols []Column, row ImageRow) {
	pdf := d.pdf
	labelW, cellW := cols[0].Width, cols[1].Width

	pdf.CellFormat(labelW, imageRowH, d.tr(row.Label), "1", 0, "C", false, 0, "")
	if row.Image == nil {
		if row.FallbackItalic {
			pdf.SetFont(bodyFont, "I", defaultSize)
		}
		pdf.CellFormat(cellW, imageRowH, d.tr(row.Fallback), "1", 0, "C", false, 0, "")
		pdf.SetFont(bodyFont, "", defaultSize)
		pdf.Ln(imageRowH)
		return
	}

	x, y := pdf.GetXY()
	pdf.CellFormat(cellW, imageRowH, "", "1", 0, "", false, 0, "")
	d.images++
	name := fmt.Sprintf("image-%d", d.images)
	opts := fpdf.ImageOptions{ImageType: "JPG"}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(row.Image))
	pdf.ImageOptions(name, x+imageInset, y+imageInset, imageSide, imageSide, false, opts, 0, "")
	pdf.Ln(imageRowH)
}
