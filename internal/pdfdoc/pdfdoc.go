// Package pdfdoc writes simple A4 documents with go-pdf/fpdf: flowing text
// blocks, tables, and full-page images. Each Doc is independent and not safe
// for concurrent use.
package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

// A4 portrait geometry in points.
const (
	PageWidth  = 595.28
	PageHeight = 841.89
	Margin     = 36.0

	ContentWidth  = PageWidth - 2*Margin
	ContentHeight = PageHeight - 2*Margin
)

// Typography.
const (
	fontBody   = "Helvetica"
	fontMono   = "Courier"
	sizeBody   = 11.0
	sizeCode   = 9.0
	sizeNote   = 8.0
	sizeTable  = 8.0
	lineFactor = 1.35
	listIndent = 14.0
)

var headingSizes = [...]float64{20, 16, 14, 12, 12, 12}

// ErrNoPages is returned by Bytes when nothing was written.
var ErrNoPages = errors.New("document has no pages")

// fixedCreationDate keeps output stable across runs.
var fixedCreationDate = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Doc is an A4 document under construction.
type Doc struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

// New creates an empty document. Text is translated to cp1252 for the core
// fonts; characters outside it are replaced.
func New(title string) *Doc {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(Margin, Margin, Margin)
	pdf.SetAutoPageBreak(true, Margin)
	pdf.SetCreationDate(fixedCreationDate)
	pdf.SetModificationDate(fixedCreationDate)
	pdf.SetCreator("docconv", true)
	if title != "" {
		pdf.SetTitle(title, true)
	}
	return &Doc{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

// ensurePage starts the first page lazily so image-only documents do not
// begin with a blank page.
func (d *Doc) ensurePage() {
	if d.pdf.PageNo() == 0 {
		d.pdf.AddPage()
	}
}

// PageCount returns the number of pages written so far.
func (d *Doc) PageCount() int {
	return d.pdf.PageCount()
}

// Bytes finishes the document and returns the encoded PDF.
func (d *Doc) Bytes() ([]byte, error) {
	if err := d.pdf.Error(); err != nil {
		return nil, fmt.Errorf("building pdf: %w", err)
	}
	if d.pdf.PageCount() == 0 {
		return nil, ErrNoPages
	}
	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("writing pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func lineHeight(size float64) float64 {
	return size * lineFactor
}

// Heading writes a bold heading; level is clamped to 1..6.
func (d *Doc) Heading(level int, text string) {
	d.ensurePage()
	level = min(max(level, 1), len(headingSizes))
	size := headingSizes[level-1]
	d.pdf.Ln(size * 0.4)
	d.pdf.SetFont(fontBody, "B", size)
	d.pdf.MultiCell(0, lineHeight(size), d.tr(text), "", "L", false)
	d.pdf.Ln(size * 0.2)
}

// Paragraph writes wrapped body text followed by a small gap.
func (d *Doc) Paragraph(text string) {
	d.ensurePage()
	d.pdf.SetFont(fontBody, "", sizeBody)
	d.pdf.MultiCell(0, lineHeight(sizeBody), d.tr(text), "", "L", false)
	d.pdf.Ln(sizeBody * 0.5)
}

// ListItem writes one list entry. Ordered items show index, others a bullet.
func (d *Doc) ListItem(text string, ordered bool, index, depth int) {
	d.ensurePage()
	marker := "•"
	if ordered {
		marker = fmt.Sprintf("%d.", index)
	}
	indent := listIndent * float64(depth+1)
	left, _, _, _ := d.pdf.GetMargins()

	d.pdf.SetFont(fontBody, "", sizeBody)
	d.pdf.SetX(left + indent - listIndent)
	d.pdf.CellFormat(listIndent, lineHeight(sizeBody), d.tr(marker), "", 0, "L", false, 0, "")
	d.pdf.SetLeftMargin(left + indent)
	d.pdf.MultiCell(0, lineHeight(sizeBody), d.tr(text), "", "L", false)
	d.pdf.SetLeftMargin(left)
	d.pdf.Ln(sizeBody * 0.2)
}

// Code writes a monospaced block on a light background.
func (d *Doc) Code(text string) {
	d.ensurePage()
	d.pdf.SetFont(fontMono, "", sizeCode)
	d.pdf.SetFillColor(242, 242, 242)
	d.pdf.MultiCell(0, lineHeight(sizeCode), d.tr(strings.TrimRight(expandTabs(text), "\n")), "", "L", true)
	d.pdf.Ln(sizeBody * 0.5)
}

// Quote writes an indented italic block.
func (d *Doc) Quote(text string) {
	d.ensurePage()
	left, _, _, _ := d.pdf.GetMargins()
	d.pdf.SetLeftMargin(left + listIndent)
	d.pdf.SetX(left + listIndent)
	d.pdf.SetFont(fontBody, "I", sizeBody)
	d.pdf.SetTextColor(80, 80, 80)
	d.pdf.MultiCell(0, lineHeight(sizeBody), d.tr(text), "", "L", false)
	d.pdf.SetTextColor(0, 0, 0)
	d.pdf.SetLeftMargin(left)
	d.pdf.Ln(sizeBody * 0.5)
}

// Rule draws a horizontal line across the content width.
func (d *Doc) Rule() {
	d.ensurePage()
	y := d.pdf.GetY() + sizeBody*0.5
	d.pdf.SetDrawColor(180, 180, 180)
	d.pdf.Line(Margin, y, PageWidth-Margin, y)
	d.pdf.Ln(sizeBody)
}

// Note writes small italic text, used for truncation notices.
func (d *Doc) Note(text string) {
	d.ensurePage()
	d.pdf.SetFont(fontBody, "I", sizeNote)
	d.pdf.SetTextColor(100, 100, 100)
	d.pdf.MultiCell(0, lineHeight(sizeNote), d.tr(text), "", "L", false)
	d.pdf.SetTextColor(0, 0, 0)
	d.pdf.Ln(sizeNote * 0.5)
}

// PageBreak starts a new page.
func (d *Doc) PageBreak() {
	d.pdf.AddPage()
}

// Table writes rows as a grid with equal column widths. The first row is
// rendered as a header. Cell text that does not fit is shortened.
func (d *Doc) Table(rows [][]string) {
	d.ensurePage()
	cols := 0
	for _, r := range rows {
		cols = max(cols, len(r))
	}
	if cols == 0 {
		return
	}
	w := ContentWidth / float64(cols)
	h := lineHeight(sizeTable) + 2

	for i, r := range rows {
		style := ""
		fill := false
		if i == 0 {
			style = "B"
			fill = true
			d.pdf.SetFillColor(225, 225, 225)
		}
		d.pdf.SetFont(fontBody, style, sizeTable)
		for c := range cols {
			text := ""
			if c < len(r) {
				text = d.fit(d.tr(r[c]), w-4)
			}
			d.pdf.CellFormat(w, h, text, "1", 0, "L", fill, 0, "")
		}
		d.pdf.Ln(h)
	}
	d.pdf.Ln(sizeBody * 0.5)
}

// fit shortens already-translated text until it fits width w.
func (d *Doc) fit(s string, w float64) string {
	if d.pdf.GetStringWidth(s) <= w {
		return s
	}
	for len(s) > 0 && d.pdf.GetStringWidth(s+"...") > w {
		s = s[:len(s)-1]
	}
	return s + "..."
}

// ImagePage adds a page holding one JPEG or PNG image of pxW x pxH pixels,
// scaled to fit the content box and centered.
func (d *Doc) ImagePage(name string, data []byte, imageType string, pxW, pxH int) {
	x, y, w, h := Place(pxW, pxH)

	opts := fpdf.ImageOptions{ImageType: imageType}
	d.pdf.AddPage()
	d.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	d.pdf.ImageOptions(name, x, y, w, h, false, opts, 0, "")
}

// Place returns the position and size, in points, of a pxW x pxH image
// fitted into the content box and centered on the page.
func Place(pxW, pxH int) (x, y, w, h float64) {
	w, h = FitBox(float64(pxW), float64(pxH), ContentWidth, ContentHeight)
	return (PageWidth - w) / 2, (PageHeight - h) / 2, w, h
}

// FitBox scales a w x h rectangle to the largest size that fits inside
// boxW x boxH without changing its aspect ratio.
func FitBox(w, h, boxW, boxH float64) (float64, float64) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	scale := min(boxW/w, boxH/h)
	return w * scale, h * scale
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", "    ")
}
