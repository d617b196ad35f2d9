package docconv

import (
	"context"
	"os"
	"os/exec"
	"sync"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/rs/zerolog"
)

// toolCandidates lists executable names tried, in order, for each tool.
// Chrome is resolved through the rod launcher instead.
var toolCandidates = map[ToolID][]string{
	ToolLibreOffice: {"libreoffice", "soffice"},
	ToolPandoc:      {"pandoc"},
	ToolPdftoppm:    {"pdftoppm"},
	ToolImageMagick: {"magick", "convert"},
}

// ToolStatus is a point-in-time view of one external tool.
type ToolStatus struct {
	ID        ToolID `json:"id"`
	Available bool   `json:"available"`
	Path      string `json:"path,omitempty"`
}

// Probe detects which external conversion tools are installed. After Detect
// the availability map is read-mostly; Live may demote a tool whose binary
// disappeared.
type Probe struct {
	logger    zerolog.Logger
	overrides map[ToolID]string

	lookPath    func(string) (string, error)
	browserPath func() (string, bool)
	stat        func(string) (os.FileInfo, error)

	mu     sync.RWMutex
	paths  map[ToolID]string
	warned map[ToolID]bool
}

// NewProbe creates a probe. Entries in overrides are explicit tool paths that
// take precedence over PATH lookup. Call Detect before use.
func NewProbe(overrides map[ToolID]string, logger zerolog.Logger) *Probe {
	return &Probe{
		logger:      logger,
		overrides:   overrides,
		lookPath:    exec.LookPath,
		browserPath: chromePath,
		stat:        os.Stat,
		paths:       make(map[ToolID]string),
		warned:      make(map[ToolID]bool),
	}
}

// chromePath honours ROD_BROWSER_BIN, then asks the rod launcher.
func chromePath() (string, bool) {
	if bin := os.Getenv("ROD_BROWSER_BIN"); bin != "" {
		return bin, true
	}
	return launcher.LookPath()
}

// Detect checks every tool and returns the availability map. It never fails;
// a missing tool is logged once at warn level.
func (p *Probe) Detect(ctx context.Context) map[ToolID]bool {
	found := make(map[ToolID]string, len(Tools()))
	for _, id := range Tools() {
		if ctx.Err() != nil {
			break
		}
		if path := p.resolve(id); path != "" {
			found[id] = path
		}
	}

	p.mu.Lock()
	p.paths = found
	for _, id := range Tools() {
		if _, ok := found[id]; ok {
			delete(p.warned, id)
			continue
		}
		if !p.warned[id] {
			p.warned[id] = true
			p.logger.Warn().Str("tool", string(id)).Msg("conversion tool not found, dependent strategies disabled")
		}
	}
	p.mu.Unlock()

	return p.snapshot()
}

func (p *Probe) resolve(id ToolID) string {
	if path := p.overrides[id]; path != "" {
		if info, err := p.stat(path); err == nil && !info.IsDir() {
			return path
		}
		p.logger.Warn().Str("tool", string(id)).Str("path", path).Msg("configured tool path not usable, falling back to PATH")
	}
	if id == ToolChrome {
		if path, ok := p.browserPath(); ok {
			return path
		}
		return ""
	}
	for _, name := range toolCandidates[id] {
		if path, err := p.lookPath(name); err == nil {
			return path
		}
	}
	return ""
}

func (p *Probe) snapshot() map[ToolID]bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m := make(map[ToolID]bool, len(Tools()))
	for _, id := range Tools() {
		_, m[id] = p.paths[id]
	}
	return m
}

// IsAvailable reports the detected availability of id. ToolNone is always
// available.
func (p *Probe) IsAvailable(id ToolID) bool {
	if id == ToolNone {
		return true
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.paths[id]
	return ok
}

// Live re-checks a detected tool at use time. A tool whose binary is gone is
// demoted so later jobs skip it without another stat.
func (p *Probe) Live(id ToolID) bool {
	if id == ToolNone {
		return true
	}
	path := p.Path(id)
	if path == "" {
		return false
	}
	if _, err := p.stat(path); err == nil {
		return true
	}

	p.mu.Lock()
	if p.paths[id] == path {
		delete(p.paths, id)
		p.warned[id] = true
		p.logger.Warn().Str("tool", string(id)).Str("path", path).Msg("conversion tool disappeared, dependent strategies disabled")
	}
	p.mu.Unlock()
	return false
}

// Path returns the resolved executable path of id, or "" when unavailable.
func (p *Probe) Path(id ToolID) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paths[id]
}

// Tools returns the status of every known tool, in stable order.
func (p *Probe) Tools() []ToolStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]ToolStatus, 0, len(Tools()))
	for _, id := range Tools() {
		path, ok := p.paths[id]
		out = append(out, ToolStatus{ID: id, Available: ok, Path: path})
	}
	return out
}
