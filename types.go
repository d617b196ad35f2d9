package docconv

import (
	"fmt"
	"strings"
	"time"
)

// Class is a category of transformation sharing one fallback chain.
type Class string

// Conversion classes.
const (
	ClassImagesToPDF Class = "images-to-pdf"
	ClassPDFToImages Class = "pdf-to-images"
	ClassOfficeToPDF Class = "office-to-pdf"
	ClassTextToPDF   Class = "text-to-pdf"
)

// Classes lists every conversion class in a stable order.
func Classes() []Class {
	return []Class{ClassImagesToPDF, ClassPDFToImages, ClassOfficeToPDF, ClassTextToPDF}
}

// ParseClass parses a class name (case-insensitive, "_" accepted for "-").
func ParseClass(s string) (Class, error) {
	c := Class(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	for _, known := range Classes() {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownClass, s)
}

// Quality is a named tier mapping to a rendering resolution.
type Quality string

// Quality profiles.
const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
	QualityUltra  Quality = "ultra"
)

// Resolutions in pixels per inch for each quality profile.
const (
	dpiLow    = 72
	dpiMedium = 150
	dpiHigh   = 300
	dpiUltra  = 600
)

// Qualities lists the profiles from lowest to highest resolution.
func Qualities() []Quality {
	return []Quality{QualityLow, QualityMedium, QualityHigh, QualityUltra}
}

// ParseQuality parses a quality profile name (case-insensitive).
func ParseQuality(s string) (Quality, error) {
	q := Quality(strings.ToLower(strings.TrimSpace(s)))
	if q.Valid() {
		return q, nil
	}
	return "", fmt.Errorf("%w: %q (must be low, medium, high, or ultra)", ErrInvalidQuality, s)
}

// Valid reports whether q is a known profile.
func (q Quality) Valid() bool {
	switch q {
	case QualityLow, QualityMedium, QualityHigh, QualityUltra:
		return true
	}
	return false
}

// DPI returns the rendering resolution for q. Unknown profiles resolve to medium.
func (q Quality) DPI() int {
	switch q {
	case QualityLow:
		return dpiLow
	case QualityHigh:
		return dpiHigh
	case QualityUltra:
		return dpiUltra
	default:
		return dpiMedium
	}
}

// Format is an output file format.
type Format string

// Output formats.
const (
	FormatPDF  Format = "pdf"
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// ParseFormat parses a format name (case-insensitive, "jpg" is an alias for jpeg).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pdf":
		return FormatPDF, nil
	case "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	}
	return "", fmt.Errorf("%w: output format %q", ErrUnsupportedFormat, s)
}

// Extension returns the file extension (without dot) for f.
func (f Format) Extension() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

// MediaType returns the MIME type for f.
func (f Format) MediaType() string {
	switch f {
	case FormatPNG:
		return MediaTypePNG
	case FormatJPEG:
		return MediaTypeJPEG
	default:
		return MediaTypePDF
	}
}

// Media types produced by the engine.
const (
	MediaTypePDF  = "application/pdf"
	MediaTypePNG  = "image/png"
	MediaTypeJPEG = "image/jpeg"
	MediaTypeZIP  = "application/zip"
)

// Enhancement is an image adjustment applied before composing a PDF.
type Enhancement string

// Enhancements.
const (
	EnhanceNone       Enhancement = "none"
	EnhanceBrightness Enhancement = "brightness"
	EnhanceContrast   Enhancement = "contrast"
	EnhanceSharpness  Enhancement = "sharpness"
	EnhanceColor      Enhancement = "color"
	EnhanceAuto       Enhancement = "auto"
	EnhanceGrayscale  Enhancement = "grayscale"
	EnhanceBlur       Enhancement = "blur"
)

// ParseEnhancement parses an enhancement name. Empty means none.
func ParseEnhancement(s string) (Enhancement, error) {
	e := Enhancement(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	switch e {
	case "":
		return EnhanceNone, nil
	case "auto-enhance":
		return EnhanceAuto, nil
	case EnhanceNone, EnhanceBrightness, EnhanceContrast, EnhanceSharpness,
		EnhanceColor, EnhanceAuto, EnhanceGrayscale, EnhanceBlur:
		return e, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidEnhancement, s)
}

// File is one input blob with its declared media type.
// MediaType may be empty; the engine sniffs it from content and name.
type File struct {
	Name      string
	MediaType string
	Data      []byte
}

// Job is one conversion request.
type Job struct {
	ID          string // assigned by the engine when empty
	Files       []File // ordered; page order for images-to-pdf
	Class       Class
	Quality     Quality     // empty = engine default
	Format      Format      // empty = class default
	OutputName  string      // optional custom output filename
	Enhancement Enhancement // images-to-pdf only
	RequesterID string      // opaque caller identity
	CreatedAt   time.Time   // zero = submission time
}

// TotalSize returns the summed byte size of all input files.
func (j *Job) TotalSize() int64 {
	var n int64
	for _, f := range j.Files {
		n += int64(len(f.Data))
	}
	return n
}

// UserProfile carries per-user defaults owned by the front-end.
// The engine only reads it through Apply.
type UserProfile struct {
	Quality     Quality
	Format      Format
	AutoEnhance bool
}

// Apply fills the job fields the caller left unset.
func (p UserProfile) Apply(j *Job) {
	if j.Quality == "" {
		j.Quality = p.Quality
	}
	if j.Format == "" && j.Class == ClassPDFToImages {
		j.Format = p.Format
	}
	if (j.Enhancement == "" || j.Enhancement == EnhanceNone) && p.AutoEnhance && j.Class == ClassImagesToPDF {
		j.Enhancement = EnhanceAuto
	}
}

// Artifact is the successful output of a job. The caller owns it exclusively.
type Artifact struct {
	Name      string
	MediaType string
	Data      []byte
	Entries   int // pages or files contained
	Size      int64
	Elapsed   time.Duration
	Strategy  string
}

// ToolID identifies an external conversion program.
type ToolID string

// Known tools. ToolNone marks in-process strategies.
const (
	ToolNone        ToolID = ""
	ToolLibreOffice ToolID = "libreoffice"
	ToolPandoc      ToolID = "pandoc"
	ToolPdftoppm    ToolID = "pdftoppm"
	ToolImageMagick ToolID = "imagemagick"
	ToolChrome      ToolID = "chrome"
)

// Tools lists every external tool in a stable order.
func Tools() []ToolID {
	return []ToolID{ToolLibreOffice, ToolPandoc, ToolPdftoppm, ToolImageMagick, ToolChrome}
}

// StrategyDescriptor identifies a strategy and its scheduling attributes.
type StrategyDescriptor struct {
	Name      string `json:"name"`
	Class     Class  `json:"class"`
	Priority  int    `json:"priority"`       // lower runs first
	Tool      ToolID `json:"tool,omitempty"` // ToolNone for in-process strategies
	Heavy     bool   `json:"heavy"`          // counts against the concurrency gate when bypass is enabled
	Available bool   `json:"available"`      // tool availability at query time
}
