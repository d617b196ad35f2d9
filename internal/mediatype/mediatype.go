// Package mediatype resolves the media type of an input file from its
// content, its name and the type the caller declared.
package mediatype

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Media types understood by the conversion strategies.
const (
	PDF      = "application/pdf"
	PNG      = "image/png"
	JPEG     = "image/jpeg"
	GIF      = "image/gif"
	BMP      = "image/bmp"
	TIFF     = "image/tiff"
	WebP     = "image/webp"
	DOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	DOC      = "application/msword"
	ODT      = "application/vnd.oasis.opendocument.text"
	RTF      = "text/rtf"
	XLSX     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	XLS      = "application/vnd.ms-excel"
	ODS      = "application/vnd.oasis.opendocument.spreadsheet"
	Text     = "text/plain"
	Markdown = "text/markdown"
	HTML     = "text/html"
	ZIP      = "application/zip"
	Unknown  = "application/octet-stream"
)

// byExt maps lowercase extensions to media types.
var byExt = map[string]string{
	".pdf":      PDF,
	".png":      PNG,
	".jpg":      JPEG,
	".jpeg":     JPEG,
	".gif":      GIF,
	".bmp":      BMP,
	".tif":      TIFF,
	".tiff":     TIFF,
	".webp":     WebP,
	".docx":     DOCX,
	".doc":      DOC,
	".odt":      ODT,
	".rtf":      RTF,
	".xlsx":     XLSX,
	".xls":      XLS,
	".ods":      ODS,
	".txt":      Text,
	".text":     Text,
	".md":       Markdown,
	".markdown": Markdown,
	".html":     HTML,
	".htm":      HTML,
	".zip":      ZIP,
}

// extByType is the preferred extension for staging a file of a given type.
var extByType = map[string]string{
	PDF:      "pdf",
	PNG:      "png",
	JPEG:     "jpg",
	GIF:      "gif",
	BMP:      "bmp",
	TIFF:     "tiff",
	WebP:     "webp",
	DOCX:     "docx",
	DOC:      "doc",
	ODT:      "odt",
	RTF:      "rtf",
	XLSX:     "xlsx",
	XLS:      "xls",
	ODS:      "ods",
	Text:     "txt",
	Markdown: "md",
	HTML:     "html",
	ZIP:      "zip",
}

// Resolve picks the media type of a file. Content sniffing wins when it is
// specific; the name extension refines generic results (plain text that is
// really Markdown, a ZIP that is really an office document) and the declared
// type is the last resort.
func Resolve(declared, name string, data []byte) string {
	sniffed := Normalize(mimetype.Detect(data).String())
	fromName := FromName(name)
	declared = Normalize(declared)

	switch sniffed {
	case Unknown, ZIP, "application/x-ole-storage":
		if fromName != "" {
			return fromName
		}
		if declared != "" && declared != Unknown {
			return declared
		}
		return sniffed
	case Text:
		switch {
		case fromName == Markdown || declared == Markdown:
			return Markdown
		case fromName == HTML || declared == HTML:
			return HTML
		}
	}
	return sniffed
}

// FromName returns the media type implied by the file extension, or "".
func FromName(name string) string {
	return byExt[strings.ToLower(filepath.Ext(name))]
}

// Extension returns the preferred file extension (without dot) for a media type.
func Extension(mediaType string) string {
	if ext, ok := extByType[Normalize(mediaType)]; ok {
		return ext
	}
	return "bin"
}

// Normalize lowercases a media type and strips its parameters.
func Normalize(mediaType string) string {
	mt, _, _ := strings.Cut(mediaType, ";")
	mt = strings.ToLower(strings.TrimSpace(mt))
	switch mt {
	case "image/jpg", "image/pjpeg":
		return JPEG
	case "image/x-ms-bmp":
		return BMP
	case "application/rtf":
		return RTF
	case "text/x-markdown":
		return Markdown
	}
	return mt
}

// IsImage reports whether mediaType is a raster image the engine can decode.
func IsImage(mediaType string) bool {
	switch Normalize(mediaType) {
	case PNG, JPEG, GIF, BMP, TIFF, WebP:
		return true
	}
	return false
}

// IsWord reports whether mediaType is a word-processing document.
func IsWord(mediaType string) bool {
	switch Normalize(mediaType) {
	case DOCX, DOC, ODT, RTF:
		return true
	}
	return false
}

// IsSpreadsheet reports whether mediaType is a spreadsheet.
func IsSpreadsheet(mediaType string) bool {
	switch Normalize(mediaType) {
	case XLSX, XLS, ODS:
		return true
	}
	return false
}

// IsText reports whether mediaType is plain text or simple markup.
func IsText(mediaType string) bool {
	switch Normalize(mediaType) {
	case Text, Markdown, HTML:
		return true
	}
	return false
}
