package docconv

import (
	"context"
	"net/url"
	"path/filepath"

	"github.com/alnah/go-docconv/internal/mediatype"
)

// profileDirName holds the per-attempt LibreOffice user profile. A private
// profile lets concurrent soffice processes run without lock contention.
const profileDirName = "lo-profile"

func acceptsOffice(job *Job) bool {
	return acceptsAll(job, func(mt string) bool {
		return mediatype.IsWord(mt) || mediatype.IsSpreadsheet(mt)
	})
}

// libreOfficeStrategy converts word processing and spreadsheet documents
// with headless LibreOffice.
type libreOfficeStrategy struct {
	descriptor
	tools toolEnv
}

func newLibreOfficeStrategy(tools toolEnv) *libreOfficeStrategy {
	return &libreOfficeStrategy{
		descriptor: descriptor{StrategyDescriptor{
			Name:     StrategyLibreOffice,
			Class:    ClassOfficeToPDF,
			Priority: priorityPrimary,
			Tool:     ToolLibreOffice,
			Heavy:    true,
		}},
		tools: tools,
	}
}

func (s *libreOfficeStrategy) Accepts(job *Job) bool { return acceptsOffice(job) }

func (s *libreOfficeStrategy) Execute(ctx context.Context, job *Job, ws *Workspace) (*Artifact, error) {
	input := ws.Input(0)
	profile := url.URL{Scheme: "file", Path: filepath.ToSlash(ws.Path(profileDirName))}
	args := []string{
		"-env:UserInstallation=" + profile.String(),
		"--headless", "--norestore", "--nolockcheck",
		"--convert-to", "pdf",
		"--outdir", ws.Dir(),
		input,
	}

	// HOME points into the scratch dir so nothing is written to the
	// service account's real profile.
	if _, err := s.tools.run(ctx, ToolLibreOffice, ws.Dir(), args, "HOME="+ws.Dir()); err != nil {
		return nil, err
	}
	data, err := readOutput(outputPath(ws, input, "pdf"))
	if err != nil {
		return nil, err
	}
	return &Artifact{MediaType: MediaTypePDF, Data: data}, nil
}

// pandocWordInputs lists the word processing formats pandoc can read.
var pandocWordInputs = map[string]string{
	mediatype.DOCX: "docx",
	mediatype.ODT:  "odt",
	mediatype.RTF:  "rtf",
}

// pandocStrategy converts word processing documents with pandoc. It cannot
// read legacy .doc or any spreadsheet.
type pandocStrategy struct {
	descriptor
	tools toolEnv
}

func newPandocStrategy(tools toolEnv) *pandocStrategy {
	return &pandocStrategy{
		descriptor: descriptor{StrategyDescriptor{
			Name:     StrategyPandoc,
			Class:    ClassOfficeToPDF,
			Priority: prioritySecondary,
			Tool:     ToolPandoc,
			Heavy:    true,
		}},
		tools: tools,
	}
}

func (s *pandocStrategy) Accepts(job *Job) bool {
	return acceptsAll(job, func(mt string) bool {
		_, ok := pandocWordInputs[mt]
		return ok
	})
}

func (s *pandocStrategy) Execute(ctx context.Context, job *Job, ws *Workspace) (*Artifact, error) {
	return runPandoc(ctx, s.tools, ws, pandocWordInputs[job.Files[0].MediaType])
}

// pandocTextInputs lists the text formats handed to pandoc. Plain text has
// no pandoc reader and stays with the other text strategies.
var pandocTextInputs = map[string]string{
	mediatype.Markdown: "gfm",
	mediatype.HTML:     "html",
}

// pandocTextStrategy is the last text-to-pdf fallback.
type pandocTextStrategy struct {
	descriptor
	tools toolEnv
}

func newPandocTextStrategy(tools toolEnv) *pandocTextStrategy {
	return &pandocTextStrategy{
		descriptor: descriptor{StrategyDescriptor{
			Name:     StrategyPandocText,
			Class:    ClassTextToPDF,
			Priority: priorityFallback,
			Tool:     ToolPandoc,
			Heavy:    true,
		}},
		tools: tools,
	}
}

func (s *pandocTextStrategy) Accepts(job *Job) bool {
	return acceptsAll(job, func(mt string) bool {
		_, ok := pandocTextInputs[mt]
		return ok
	})
}

func (s *pandocTextStrategy) Execute(ctx context.Context, job *Job, ws *Workspace) (*Artifact, error) {
	return runPandoc(ctx, s.tools, ws, pandocTextInputs[job.Files[0].MediaType])
}

// runPandoc converts the staged input, read as from, to PDF. Resource
// fetching is disabled so a document cannot pull local or remote files.
func runPandoc(ctx context.Context, tools toolEnv, ws *Workspace, from string) (*Artifact, error) {
	out := ws.Path("output.pdf")
	args := []string{
		"--from", from,
		"--sandbox",
		"--variable", "geometry:a4paper,margin=0.5in",
		"--output", out,
		ws.Input(0),
	}
	if _, err := tools.run(ctx, ToolPandoc, ws.Dir(), args); err != nil {
		return nil, err
	}
	data, err := readOutput(out)
	if err != nil {
		return nil, err
	}
	return &Artifact{MediaType: MediaTypePDF, Data: data}, nil
}
