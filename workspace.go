package docconv

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/alnah/go-docconv/internal/fileutil"
	"github.com/alnah/go-docconv/internal/mediatype"
)

// Workspace layout.
const (
	workspacePrefix = "docconv-"
	inputDirName    = "input"
	inputNameFormat = "input_%03d.%s"
	attemptFormat   = "attempt_%02d_%s"
)

// ResourceGuard hands out job-scoped temporary directories and guarantees
// their removal. It is safe for concurrent use.
type ResourceGuard struct {
	baseDir string
	logger  zerolog.Logger
	active  atomic.Int64
}

// NewResourceGuard creates a guard rooted at baseDir (os.TempDir() when empty).
func NewResourceGuard(baseDir string, logger zerolog.Logger) *ResourceGuard {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &ResourceGuard{baseDir: baseDir, logger: logger}
}

// Acquire creates an isolated workspace for jobID. Any failure to allocate
// it is reported as ErrResourceExhausted.
func (g *ResourceGuard) Acquire(jobID string) (*Workspace, error) {
	name := workspacePrefix + fileutil.SanitizeFilename(jobID, "job") + "-*"
	dir, err := os.MkdirTemp(g.baseDir, name)
	if err != nil {
		g.logger.Error().Err(err).Str("job_id", jobID).Str("base_dir", g.baseDir).Msg("workspace allocation failed")
		return nil, fmt.Errorf("%w: creating workspace: %v", ErrResourceExhausted, err)
	}
	if err := os.Mkdir(filepath.Join(dir, inputDirName), 0o700); err != nil {
		_ = os.RemoveAll(dir)
		g.logger.Error().Err(err).Str("job_id", jobID).Msg("workspace allocation failed")
		return nil, fmt.Errorf("%w: creating input dir: %v", ErrResourceExhausted, err)
	}

	g.active.Add(1)
	ws := &Workspace{jobID: jobID, dir: dir, guard: g, attempts: new(atomic.Int32)}
	g.logger.Debug().Str("job_id", jobID).Str("dir", dir).Msg("workspace acquired")
	return ws, nil
}

// Release removes the workspace and everything in it. Calling it more than
// once is a no-op. Deletion failures are logged, never returned.
func (g *ResourceGuard) Release(ws *Workspace) {
	if ws == nil || ws.parent != nil {
		return
	}
	if !ws.released.CompareAndSwap(false, true) {
		return
	}
	g.active.Add(-1)
	if err := os.RemoveAll(ws.dir); err != nil {
		g.logger.Warn().Err(err).Str("job_id", ws.jobID).Str("dir", ws.dir).Msg("workspace cleanup failed")
		return
	}
	g.logger.Debug().Str("job_id", ws.jobID).Msg("workspace released")
}

// Scope acquires a workspace, runs fn inside it and releases it on every
// exit path, panics included.
func (g *ResourceGuard) Scope(jobID string, fn func(*Workspace) error) error {
	ws, err := g.Acquire(jobID)
	if err != nil {
		return err
	}
	defer g.Release(ws)
	return fn(ws)
}

// Active returns the number of acquired, not yet released workspaces.
func (g *ResourceGuard) Active() int {
	return int(g.active.Load())
}

// Workspace is a directory owned by exactly one job. Strategies write their
// output into the scratch workspace returned by Attempt.
type Workspace struct {
	jobID    string
	dir      string
	guard    *ResourceGuard
	parent   *Workspace
	attempts *atomic.Int32

	mu     sync.Mutex
	inputs []string

	released  atomic.Bool
	discarded atomic.Bool
}

// JobID returns the owning job identifier.
func (w *Workspace) JobID() string { return w.jobID }

// Dir returns the directory strategies may write into.
func (w *Workspace) Dir() string { return w.dir }

// Stage writes the job inputs to input/input_NNN.<ext>, in order.
func (w *Workspace) Stage(files []File) error {
	if w.parent != nil {
		return errors.New("stage on scratch workspace")
	}
	inputDir := filepath.Join(w.dir, inputDirName)
	paths := make([]string, 0, len(files))
	for i, f := range files {
		name := fmt.Sprintf(inputNameFormat, i+1, mediatype.Extension(f.MediaType))
		path, err := fileutil.WriteFile(inputDir, name, f.Data)
		if err != nil {
			return fmt.Errorf("%w: staging %s: %v", ErrResourceExhausted, name, err)
		}
		paths = append(paths, path)
	}

	w.mu.Lock()
	w.inputs = paths
	w.mu.Unlock()
	return nil
}

// Inputs returns the staged input paths in job order.
func (w *Workspace) Inputs() []string {
	if w.parent != nil {
		return w.parent.Inputs()
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.inputs...)
}

// Input returns the i-th staged input path, or "" if out of range.
func (w *Workspace) Input(i int) string {
	in := w.Inputs()
	if i < 0 || i >= len(in) {
		return ""
	}
	return in[i]
}

// Attempt creates a scratch workspace for one strategy attempt. It shares
// the staged inputs but writes into its own attempt_NN_<name> directory.
func (w *Workspace) Attempt(strategy string) (*Workspace, error) {
	root := w
	if w.parent != nil {
		root = w.parent
	}
	n := root.attempts.Add(1)
	dir := filepath.Join(root.dir, fmt.Sprintf(attemptFormat, n, fileutil.SanitizeFilename(strategy, "strategy")))
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: creating attempt dir: %v", ErrResourceExhausted, err)
	}
	return &Workspace{jobID: root.jobID, dir: dir, guard: root.guard, parent: root, attempts: root.attempts}, nil
}

// Discard removes a scratch workspace so partial output never reaches the
// next attempt. It is a no-op on the job workspace and after the first call.
func (w *Workspace) Discard() {
	if w.parent == nil || !w.discarded.CompareAndSwap(false, true) {
		return
	}
	if err := os.RemoveAll(w.dir); err != nil {
		w.guard.logger.Warn().Err(err).Str("job_id", w.jobID).Str("dir", w.dir).Msg("scratch cleanup failed")
	}
}

// Path joins name onto the workspace directory.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// WriteFile writes data to a bare file name inside the workspace.
func (w *Workspace) WriteFile(name string, data []byte) (string, error) {
	return fileutil.WriteFile(w.dir, name, data)
}
