package docconv

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/alnah/go-docconv/internal/mediatype"
	"github.com/alnah/go-docconv/internal/officexml"
	"github.com/alnah/go-docconv/internal/pdfdoc"
)

// Spreadsheet rendering limits.
const (
	sheetMaxRows  = 50
	sheetMaxCols  = 10
	sheetCellMax  = 30
	sheetCellKeep = sheetCellMax - 3
	emptySheet    = "(Empty sheet)"
	emptyDocument = "(Empty document)"
)

// docxTextStrategy renders the text of a DOCX file without an office suite.
// Layout, images and tables are lost; headings and paragraphs survive.
type docxTextStrategy struct {
	descriptor
}

func newDocxTextStrategy() *docxTextStrategy {
	return &docxTextStrategy{descriptor{StrategyDescriptor{
		Name:     StrategyDocxText,
		Class:    ClassOfficeToPDF,
		Priority: priorityFallback,
	}}}
}

func (s *docxTextStrategy) Accepts(job *Job) bool {
	return acceptsAll(job, func(mt string) bool { return mt == mediatype.DOCX })
}

func (s *docxTextStrategy) Execute(ctx context.Context, job *Job, _ *Workspace) (*Artifact, error) {
	paras, err := officexml.Paragraphs(job.Files[0].Data)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc := pdfdoc.New(documentTitle(job))
	written := 0
	for _, p := range paras {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		if p.Heading > 0 {
			doc.Heading(p.Heading, p.Text)
		} else {
			doc.Paragraph(p.Text)
		}
		written++
	}
	if written == 0 {
		doc.Note(emptyDocument)
	}

	data, err := doc.Bytes()
	if err != nil {
		return nil, err
	}
	return &Artifact{MediaType: MediaTypePDF, Data: data, Entries: doc.PageCount()}, nil
}

// xlsxTableStrategy renders each worksheet as a titled, size-capped table.
type xlsxTableStrategy struct {
	descriptor
}

func newXlsxTableStrategy() *xlsxTableStrategy {
	return &xlsxTableStrategy{descriptor{StrategyDescriptor{
		Name:     StrategyXlsxTable,
		Class:    ClassOfficeToPDF,
		Priority: priorityFallback,
	}}}
}

func (s *xlsxTableStrategy) Accepts(job *Job) bool {
	return acceptsAll(job, func(mt string) bool { return mt == mediatype.XLSX })
}

func (s *xlsxTableStrategy) Execute(ctx context.Context, job *Job, _ *Workspace) (*Artifact, error) {
	f, err := excelize.OpenReader(bytes.NewReader(job.Files[0].Data))
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	doc := pdfdoc.New(documentTitle(job))
	for _, name := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("reading sheet %q: %w", name, err)
		}
		doc.Heading(1, "Sheet: "+name)
		writeSheet(doc, rows)
	}

	data, err := doc.Bytes()
	if err != nil {
		return nil, err
	}
	return &Artifact{MediaType: MediaTypePDF, Data: data, Entries: doc.PageCount()}, nil
}

// writeSheet renders rows as a table capped at sheetMaxRows x sheetMaxCols,
// noting the truncation when the sheet is larger.
func writeSheet(doc *pdfdoc.Doc, rows [][]string) {
	table, note := sheetTable(rows)
	if len(table) == 0 {
		doc.Note(emptySheet)
		return
	}
	doc.Table(table)
	if note != "" {
		doc.Note(note)
	}
}

// sheetTable caps rows to the display limits and returns the truncation
// note, or "" when everything fits. A sheet without any cell text yields
// no rows.
func sheetTable(rows [][]string) ([][]string, string) {
	totalRows := len(rows)
	totalCols := 0
	hasText := false
	for _, r := range rows {
		totalCols = max(totalCols, len(r))
		for _, c := range r {
			if c != "" {
				hasText = true
			}
		}
	}
	if !hasText {
		return nil, ""
	}

	showRows := min(totalRows, sheetMaxRows)
	showCols := min(totalCols, sheetMaxCols)
	table := make([][]string, showRows)
	for i := range showRows {
		row := make([]string, showCols)
		for j := range showCols {
			if j < len(rows[i]) {
				row[j] = truncateCell(rows[i][j])
			}
		}
		table[i] = row
	}

	note := ""
	if totalRows > sheetMaxRows || totalCols > sheetMaxCols {
		note = fmt.Sprintf("(Showing %d of %d rows, %d of %d columns)", showRows, totalRows, showCols, totalCols)
	}
	return table, note
}

// truncateCell shortens text longer than sheetCellMax runes to
// sheetCellKeep runes plus an ellipsis.
func truncateCell(s string) string {
	if utf8.RuneCountInString(s) <= sheetCellMax {
		return s
	}
	r := []rune(s)
	return string(r[:sheetCellKeep]) + "..."
}
