package docconv

import (
	"context"
	"fmt"
	"strings"

	"github.com/alnah/go-docconv/internal/markup"
	"github.com/alnah/go-docconv/internal/mediatype"
	"github.com/alnah/go-docconv/internal/pdfdoc"
)

// textRenderStrategy lays text out natively with core PDF fonts. It needs
// no browser, so it is the only text strategy that never leaves the process.
type textRenderStrategy struct {
	descriptor
}

func newTextRenderStrategy() *textRenderStrategy {
	return &textRenderStrategy{descriptor{StrategyDescriptor{
		Name:     StrategyTextRender,
		Class:    ClassTextToPDF,
		Priority: priorityPrimary,
	}}}
}

func (s *textRenderStrategy) Accepts(job *Job) bool {
	return acceptsAll(job, mediatype.IsText)
}

func (s *textRenderStrategy) Execute(ctx context.Context, job *Job, _ *Workspace) (*Artifact, error) {
	f := job.Files[0]
	blocks, err := textBlocks(f.MediaType, decodeText(f.Data))
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc := pdfdoc.New(documentTitle(job))
	renderBlocks(doc, blocks)
	if len(blocks) == 0 {
		doc.Note(emptyDocument)
	}
	data, err := doc.Bytes()
	if err != nil {
		return nil, err
	}
	return &Artifact{MediaType: MediaTypePDF, Data: data, Entries: doc.PageCount()}, nil
}

// decodeText turns input bytes into valid UTF-8, replacing invalid bytes.
func decodeText(data []byte) string {
	return strings.ToValidUTF8(string(data), "�")
}

// textBlocks parses content according to its media type.
func textBlocks(mediaType, content string) ([]markup.Block, error) {
	switch mediaType {
	case mediatype.Markdown:
		return markup.MarkdownBlocks(content), nil
	case mediatype.HTML:
		blocks, err := markup.HTMLBlocks(content)
		if err != nil {
			return nil, fmt.Errorf("parsing html: %w", err)
		}
		return blocks, nil
	default:
		return markup.PlainBlocks(content), nil
	}
}

// renderBlocks writes each block with its matching layout primitive.
func renderBlocks(doc *pdfdoc.Doc, blocks []markup.Block) {
	for _, b := range blocks {
		switch b.Kind {
		case markup.Heading:
			doc.Heading(b.Level, b.Text)
		case markup.ListItem:
			doc.ListItem(b.Text, b.Ordered, b.Index, b.Level)
		case markup.Code:
			doc.Code(b.Text)
		case markup.Quote:
			doc.Quote(b.Text)
		case markup.Rule:
			doc.Rule()
		case markup.Table:
			doc.Table(b.Rows)
		default:
			doc.Paragraph(b.Text)
		}
	}
}
