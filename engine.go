package docconv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/alnah/go-docconv/internal/fileutil"
	"github.com/alnah/go-docconv/internal/mediatype"
	"github.com/alnah/go-docconv/internal/process"
)

// Engine defaults.
const (
	DefaultMaxFileSize     = 50 << 20
	DefaultMaxImagesPerJob = 50
	DefaultQuality         = QualityMedium
	DefaultImageFormat     = FormatPNG
	closeTimeout           = 10 * time.Second
)

// Features toggles each conversion independently.
type Features struct {
	ImagesToPDF      bool
	PDFToImages      bool
	WordToPDF        bool
	ExcelToPDF       bool
	TextToPDF        bool
	ImageEnhancement bool
}

// Settings is the configuration the engine consumes. It is loaded by the
// caller; the engine never reads files or the environment itself.
type Settings struct {
	MaxFileSize     int64 // total bytes per job
	MaxImagesPerJob int
	MaxConcurrent   int // gate size; 0 = DefaultGateSize
	DefaultQuality  Quality
	DefaultFormat   Format // pdf-to-images output when the job has none
	AutoEnhance     bool   // apply auto enhancement to image jobs that ask for none
	Features        Features
	ToolTimeout     time.Duration // per strategy attempt
	ToolPaths       map[ToolID]string
	WorkspaceDir    string // "" = os.TempDir()
	EventBuffer     int    // 0 = DefaultEventBuffer
}

// DefaultSettings returns settings with every feature enabled.
func DefaultSettings() Settings {
	return Settings{
		MaxFileSize:     DefaultMaxFileSize,
		MaxImagesPerJob: DefaultMaxImagesPerJob,
		MaxConcurrent:   DefaultGateSize,
		DefaultQuality:  DefaultQuality,
		DefaultFormat:   DefaultImageFormat,
		Features: Features{
			ImagesToPDF:      true,
			PDFToImages:      true,
			WordToPDF:        true,
			ExcelToPDF:       true,
			TextToPDF:        true,
			ImageEnhancement: true,
		},
		ToolTimeout: DefaultToolTimeout,
	}
}

// Validate checks settings for values the engine cannot work with.
func (s Settings) Validate() error {
	switch {
	case s.MaxFileSize <= 0:
		return fmt.Errorf("max file size must be positive, got %d", s.MaxFileSize)
	case s.MaxImagesPerJob <= 0:
		return fmt.Errorf("max images per job must be positive, got %d", s.MaxImagesPerJob)
	case s.MaxConcurrent < 0:
		return fmt.Errorf("max concurrent conversions cannot be negative, got %d", s.MaxConcurrent)
	case s.ToolTimeout < 0:
		return fmt.Errorf("tool timeout cannot be negative, got %s", s.ToolTimeout)
	case s.DefaultQuality != "" && !s.DefaultQuality.Valid():
		return fmt.Errorf("%w: default %q", ErrInvalidQuality, s.DefaultQuality)
	case s.DefaultFormat != "" && s.DefaultFormat != FormatPNG && s.DefaultFormat != FormatJPEG:
		return fmt.Errorf("%w: default image format %q", ErrUnsupportedFormat, s.DefaultFormat)
	}
	return nil
}

// Option configures an Engine.
type Option func(*Engine)

// WithSettings replaces the default settings.
func WithSettings(s Settings) Option {
	return func(e *Engine) { e.settings = s }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRecorder sets the statistics recorder that receives one Event per job.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithProbe sets a probe. Its Detect must already have run.
func WithProbe(p *Probe) Option {
	return func(e *Engine) { e.probe = p }
}

// WithRunner sets the subprocess runner used by external-tool strategies.
func WithRunner(r process.Runner) Option {
	return func(e *Engine) { e.runner = r }
}

// WithStrategies replaces the built-in strategy set.
func WithStrategies(s ...Strategy) Option {
	return func(e *Engine) { e.strategies = s }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLightweightBypass lets jobs with only in-process, non-heavy eligible
// strategies run without taking a gate slot.
func WithLightweightBypass(enabled bool) Option {
	return func(e *Engine) { e.bypass = enabled }
}

// Engine validates jobs, bounds concurrency and runs the fallback chain of
// each job's conversion class inside a private workspace.
// Create with NewEngine, use Submit concurrently, and Close when done.
type Engine struct {
	settings   Settings
	logger     zerolog.Logger
	probe      *Probe
	runner     process.Runner
	recorder   Recorder
	strategies []Strategy
	now        func() time.Time
	bypass     bool

	chains   map[Class]*Chain
	gate     *Gate
	guard    *ResourceGuard
	events   *dispatcher
	counters *counters
	closers  []io.Closer

	mu       sync.RWMutex
	closed   bool
	inflight sync.WaitGroup
}

// NewEngine creates an engine. Without WithProbe it detects the installed
// tools itself; without WithStrategies it registers the built-in set.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		settings: DefaultSettings(),
		logger:   zerolog.Nop(),
		now:      time.Now,
		counters: newCounters(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	if e.settings.DefaultQuality == "" {
		e.settings.DefaultQuality = DefaultQuality
	}
	if e.settings.DefaultFormat == "" {
		e.settings.DefaultFormat = DefaultImageFormat
	}

	if e.probe == nil {
		e.probe = NewProbe(e.settings.ToolPaths, e.logger)
		e.probe.Detect(context.Background())
	}
	if e.runner == nil {
		e.runner = process.NewExecRunner()
	}
	if e.strategies == nil {
		e.strategies = e.builtinStrategies()
	}

	chainOpts := ChainOptions{Timeout: e.settings.ToolTimeout, Logger: e.logger}
	e.chains = make(map[Class]*Chain, len(Classes()))
	for _, c := range Classes() {
		e.chains[c] = NewChain(c, e.probe, chainOpts, e.strategies...)
	}

	e.gate = NewGate(ResolveGateSize(e.settings.MaxConcurrent))
	e.guard = NewResourceGuard(e.settings.WorkspaceDir, e.logger)
	if e.recorder != nil {
		e.events = newDispatcher(e.recorder, e.settings.EventBuffer, e.logger)
	}
	return e, nil
}

// builtinStrategies returns every strategy the engine ships with.
func (e *Engine) builtinStrategies() []Strategy {
	tools := toolEnv{probe: e.probe, runner: e.runner}
	browser := newBrowser(e.probe, e.settings.ToolTimeout)
	e.closers = append(e.closers, browser)

	return []Strategy{
		newImageComposeStrategy(),
		newImageMagickStrategy(tools),
		newMuPDFStrategy(),
		newPdftoppmStrategy(tools),
		newLibreOfficeStrategy(tools),
		newPandocStrategy(tools),
		newDocxTextStrategy(),
		newXlsxTableStrategy(),
		newTextRenderStrategy(),
		newChromeHTMLStrategy(browser),
		newPandocTextStrategy(tools),
	}
}

// Submit converts job and returns the artifact. It blocks while the gate is
// saturated. Validation errors are returned before any slot or workspace is
// taken. The engine keeps no reference to the returned artifact.
func (e *Engine) Submit(ctx context.Context, job Job) (art *Artifact, err error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, ErrEngineClosed
	}
	e.inflight.Add(1)
	e.mu.RUnlock()
	defer e.inflight.Done()

	start := e.now()
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = start
	}
	e.counters.submit()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Str("job_id", job.ID).Bytes("stack", debug.Stack()).Msgf("conversion panic: %v", r)
			art, err = nil, fmt.Errorf("internal error: %v", r)
		}
		e.finish(&job, art, err, start)
	}()

	if err := e.prepare(&job); err != nil {
		return nil, err
	}
	chain := e.chains[job.Class]

	if e.needsGate(chain, &job) {
		if err := e.gate.Acquire(ctx); err != nil {
			return nil, err
		}
		defer e.gate.Release()
	}

	err = e.guard.Scope(job.ID, func(ws *Workspace) error {
		if err := ws.Stage(job.Files); err != nil {
			return err
		}
		a, err := chain.Run(ctx, &job, ws)
		if err != nil {
			return err
		}
		art = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	art.Name = outputName(&job, art.MediaType)
	art.Elapsed = e.now().Sub(start)
	return art, nil
}

// needsGate applies the gating policy: everything is gated unless the
// lightweight bypass is on and no eligible strategy is heavy.
func (e *Engine) needsGate(chain *Chain, job *Job) bool {
	if !e.bypass {
		return true
	}
	eligible, _ := chain.Eligible(job)
	for _, s := range eligible {
		if s.Descriptor().Heavy {
			return true
		}
	}
	return false
}

// prepare fills defaults, resolves media types and validates job.
func (e *Engine) prepare(job *Job) error {
	s := e.settings

	if _, err := ParseClass(string(job.Class)); err != nil {
		return invalidJob(ErrUnknownClass, "%q", job.Class)
	}
	if !e.classEnabled(job.Class) {
		return invalidJob(ErrFeatureDisabled, "%s", job.Class)
	}

	switch n := len(job.Files); {
	case n == 0:
		return invalidJob(ErrNoInput, "")
	case job.Class == ClassImagesToPDF && n > s.MaxImagesPerJob:
		return invalidJob(ErrTooManyFiles, "%d images, maximum is %d", n, s.MaxImagesPerJob)
	case job.Class != ClassImagesToPDF && n > 1:
		return invalidJob(ErrTooManyFiles, "%s takes one file, got %d", job.Class, n)
	}

	files := make([]File, len(job.Files))
	for i, f := range job.Files {
		if len(f.Data) == 0 {
			return invalidJob(ErrEmptyFile, "file %d (%s)", i+1, f.Name)
		}
		f.MediaType = mediatype.Resolve(f.MediaType, f.Name, f.Data)
		files[i] = f
	}
	job.Files = files
	if total := job.TotalSize(); total > s.MaxFileSize {
		return invalidJob(ErrFileTooLarge, "%d bytes, maximum is %d", total, s.MaxFileSize)
	}
	if err := e.checkInputs(job); err != nil {
		return err
	}

	if job.Quality == "" {
		job.Quality = s.DefaultQuality
	}
	if !job.Quality.Valid() {
		return invalidJob(ErrInvalidQuality, "%q", job.Quality)
	}

	if err := e.resolveFormat(job); err != nil {
		return err
	}
	return e.resolveEnhancement(job)
}

func (e *Engine) classEnabled(c Class) bool {
	f := e.settings.Features
	switch c {
	case ClassImagesToPDF:
		return f.ImagesToPDF
	case ClassPDFToImages:
		return f.PDFToImages
	case ClassOfficeToPDF:
		return f.WordToPDF || f.ExcelToPDF
	case ClassTextToPDF:
		return f.TextToPDF
	}
	return false
}

// checkInputs verifies every file fits the class.
func (e *Engine) checkInputs(job *Job) error {
	for i, f := range job.Files {
		ok := false
		switch job.Class {
		case ClassImagesToPDF:
			ok = mediatype.IsImage(f.MediaType)
		case ClassPDFToImages:
			ok = f.MediaType == mediatype.PDF
		case ClassOfficeToPDF:
			switch {
			case mediatype.IsWord(f.MediaType):
				if !e.settings.Features.WordToPDF {
					return invalidJob(ErrFeatureDisabled, "word-to-pdf")
				}
				ok = true
			case mediatype.IsSpreadsheet(f.MediaType):
				if !e.settings.Features.ExcelToPDF {
					return invalidJob(ErrFeatureDisabled, "excel-to-pdf")
				}
				ok = true
			}
		case ClassTextToPDF:
			ok = mediatype.IsText(f.MediaType)
		}
		if !ok {
			return invalidJob(ErrUnsupportedFormat, "file %d (%s) is %s, not valid for %s", i+1, f.Name, f.MediaType, job.Class)
		}
	}
	return nil
}

func (e *Engine) resolveFormat(job *Job) error {
	if job.Class != ClassPDFToImages {
		if job.Format == "" {
			job.Format = FormatPDF
		}
		if job.Format != FormatPDF {
			return invalidJob(ErrUnsupportedFormat, "%s produces pdf, not %s", job.Class, job.Format)
		}
		return nil
	}

	if job.Format == "" {
		job.Format = e.settings.DefaultFormat
	}
	f, err := ParseFormat(string(job.Format))
	if err != nil || f == FormatPDF {
		return invalidJob(ErrUnsupportedFormat, "%s produces png or jpeg, not %q", job.Class, job.Format)
	}
	job.Format = f
	return nil
}

func (e *Engine) resolveEnhancement(job *Job) error {
	enh, err := ParseEnhancement(string(job.Enhancement))
	if err != nil {
		return invalidJob(ErrInvalidEnhancement, "%q", job.Enhancement)
	}
	if job.Class != ClassImagesToPDF {
		job.Enhancement = EnhanceNone
		return nil
	}

	f := e.settings.Features
	if enh == EnhanceNone && e.settings.AutoEnhance && f.ImageEnhancement {
		enh = EnhanceAuto
	}
	if enh != EnhanceNone && !f.ImageEnhancement {
		return invalidJob(ErrFeatureDisabled, "image enhancement")
	}
	job.Enhancement = enh
	return nil
}

// outputName derives the artifact file name from the requested name or the
// first input, with the extension of the produced media type.
func outputName(job *Job, mediaType string) string {
	ext := mediatype.Extension(mediaType)
	if job.OutputName != "" {
		return fileutil.ReplaceExt(fileutil.SanitizeFilename(job.OutputName, "converted"), ext)
	}
	stem := "converted"
	if len(job.Files) > 0 {
		stem = fileutil.TrimExt(fileutil.SanitizeFilename(job.Files[0].Name, stem))
	}
	switch {
	case job.Class == ClassImagesToPDF && len(job.Files) > 1:
		stem = fmt.Sprintf("images_%d", len(job.Files))
	case job.Class == ClassPDFToImages && mediaType == MediaTypeZIP:
		stem += "_pages"
	}
	return stem + "." + ext
}

// finish updates counters, logs, and publishes the job event.
func (e *Engine) finish(job *Job, art *Artifact, err error, start time.Time) {
	elapsed := e.now().Sub(start)
	ev := Event{
		JobID:       job.ID,
		RequesterID: job.RequesterID,
		Class:       job.Class,
		Success:     err == nil,
		Elapsed:     elapsed,
		ElapsedMs:   elapsed.Milliseconds(),
		ErrorKind:   Kind(err),
		At:          e.now(),
	}
	strategy := ""
	if art != nil {
		strategy = art.Strategy
		ev.Strategy = art.Strategy
		ev.OutputBytes = art.Size
	}
	e.counters.finish(strategy, err)

	log := e.logger.With().Str("job_id", job.ID).Str("class", string(job.Class)).Logger()
	switch {
	case err == nil:
		log.Info().Str("strategy", strategy).Dur("elapsed", elapsed).Int64("bytes", ev.OutputBytes).Msg("conversion succeeded")
	case errors.Is(err, ErrInvalidJob):
		log.Debug().Err(err).Msg("job rejected")
	default:
		log.Warn().Err(err).Str("error_kind", string(ev.ErrorKind)).Dur("elapsed", elapsed).Msg("conversion failed")
	}

	if e.events != nil {
		e.events.send(ev)
	}
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	var s Stats
	e.counters.fill(&s)
	s.GateSize = e.gate.Size()
	s.GateInFlight = e.gate.InFlight()
	s.GatePeak = e.gate.Peak()
	s.GateWaiting = e.gate.Waiting()
	s.ActiveWorkspaces = e.guard.Active()
	if e.events != nil {
		s.EventsDropped = e.events.dropped.Load()
	}
	return s
}

// Strategies lists the strategies of class in run order with their current
// availability. An empty class lists every class.
func (e *Engine) Strategies(class Class) []StrategyDescriptor {
	if class != "" {
		if c, ok := e.chains[class]; ok {
			return c.Descriptors()
		}
		return nil
	}
	var out []StrategyDescriptor
	for _, c := range Classes() {
		out = append(out, e.chains[c].Descriptors()...)
	}
	return out
}

// Probe returns the backend probe used by the engine.
func (e *Engine) Probe() *Probe { return e.probe }

// Close rejects new jobs, waits for running ones, flushes pending events and
// releases shared backends. It is safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.inflight.Wait()

	var errs []error
	if e.events != nil {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		errs = append(errs, e.events.close(ctx))
		cancel()
	}
	for _, c := range e.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
