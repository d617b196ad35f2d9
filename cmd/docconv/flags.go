package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/alnah/go-docconv/internal/config"
	"github.com/alnah/go-docconv/internal/logging"
)

// ErrUsage wraps flag parsing and argument errors.
var ErrUsage = errors.New("usage error")

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config    string
	logLevel  string
	logFormat string
	quiet     bool
}

// convertFlags holds flags for the convert command.
type convertFlags struct {
	common        commonFlags
	class         string
	output        string
	quality       string
	format        string
	enhance       string
	name          string
	requester     string
	timeout       time.Duration
	maxConcurrent int
}

// serveFlags holds flags for the serve command.
type serveFlags struct {
	common            commonFlags
	addr              string
	lightweightBypass bool
	redisAddr         string
	eventsLog         bool
}

// doctorFlags holds flags for the doctor command.
type doctorFlags struct {
	common      commonFlags
	json        bool
	printConfig bool
}

func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.StringVar(&f.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	fs.StringVar(&f.logFormat, "log-format", "", "log format: console or json")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only print errors")
}

// newFlagSet creates a silent flag set; callers print their own usage.
func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	fs.SortFlags = false
	return fs
}

// parseError keeps flag.ErrHelp recognizable and tags everything else as a
// usage error.
func parseError(err error) error {
	if errors.Is(err, flag.ErrHelp) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUsage, err)
}

// addConvertFlags registers the convert flags; completion reads the same set.
func addConvertFlags(fs *flag.FlagSet, f *convertFlags) {
	addCommonFlags(fs, &f.common)
	fs.StringVar(&f.class, "class", "", "conversion class (default: inferred from the first file)")
	fs.StringVarP(&f.output, "output", "o", "", "output file or directory")
	fs.StringVar(&f.quality, "quality", "", "quality profile: low, medium, high, ultra")
	fs.StringVarP(&f.format, "format", "f", "", "pdf-to-images output: png or jpeg")
	fs.StringVarP(&f.enhance, "enhance", "e", "", "image enhancement for images-to-pdf")
	fs.StringVarP(&f.name, "name", "n", "", "output file name")
	fs.StringVar(&f.requester, "requester", "", "requester ID recorded in events")
	fs.DurationVarP(&f.timeout, "timeout", "t", 0, "per-strategy timeout (e.g. 90s)")
	fs.IntVar(&f.maxConcurrent, "max-concurrent", 0, "concurrent conversion slots")
}

func parseConvertFlags(args []string) (*convertFlags, []string, error) {
	f := &convertFlags{}
	fs := newFlagSet("convert")
	addConvertFlags(fs, f)

	if err := fs.Parse(args); err != nil {
		return nil, nil, parseError(err)
	}
	if f.timeout < 0 {
		return nil, nil, fmt.Errorf("%w: --timeout cannot be negative", ErrUsage)
	}
	if f.maxConcurrent < 0 {
		return nil, nil, fmt.Errorf("%w: --max-concurrent cannot be negative", ErrUsage)
	}
	return f, fs.Args(), nil
}

// apply overlays convert flags onto cfg.
func (f *convertFlags) apply(cfg *config.Config) {
	if f.timeout > 0 {
		cfg.Limits.ToolTimeout = f.timeout.String()
	}
	if f.maxConcurrent > 0 {
		cfg.Limits.MaxConcurrent = f.maxConcurrent
	}
}

func addServeFlags(fs *flag.FlagSet, f *serveFlags) {
	addCommonFlags(fs, &f.common)
	fs.StringVarP(&f.addr, "addr", "a", "", "listen address (default :8080)")
	fs.BoolVar(&f.lightweightBypass, "lightweight-bypass", false, "let in-process conversions skip the concurrency gate")
	fs.StringVar(&f.redisAddr, "redis-addr", "", "Redis address for the event stream")
	fs.BoolVar(&f.eventsLog, "events-log", false, "log every conversion event")
}

func parseServeFlags(args []string) (*serveFlags, error) {
	f := &serveFlags{}
	fs := newFlagSet("serve")
	addServeFlags(fs, f)

	if err := fs.Parse(args); err != nil {
		return nil, parseError(err)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: serve takes no arguments, got %q", ErrUsage, fs.Arg(0))
	}
	return f, nil
}

// apply overlays serve flags onto cfg.
func (f *serveFlags) apply(cfg *config.Config) {
	if f.addr != "" {
		cfg.Server.Addr = f.addr
	}
	if f.lightweightBypass {
		cfg.Server.LightweightBypass = true
	}
	if f.redisAddr != "" {
		cfg.Events.Redis.Addr = f.redisAddr
	}
	if f.eventsLog {
		cfg.Events.Log = true
	}
}

func addDoctorFlags(fs *flag.FlagSet, f *doctorFlags) {
	addCommonFlags(fs, &f.common)
	fs.BoolVar(&f.json, "json", false, "print the report as JSON")
	fs.BoolVar(&f.printConfig, "print-config", false, "print the effective configuration and exit")
}

func parseDoctorFlags(args []string) (*doctorFlags, error) {
	f := &doctorFlags{}
	fs := newFlagSet("doctor")
	addDoctorFlags(fs, f)

	if err := fs.Parse(args); err != nil {
		return nil, parseError(err)
	}
	return f, nil
}

// loadConfig resolves the effective configuration.
// Precedence: CLI flags > env vars > config file > defaults.
func loadConfig(env *Environment, common *commonFlags, apply func(*config.Config)) (*config.Config, error) {
	warnUnknownEnvVars(env.Stderr, env.Environ())

	envCfg, err := loadEnvConfig(env.Getenv)
	if err != nil {
		return nil, err
	}

	name := common.config
	if name == "" {
		name = envCfg.ConfigPath
	}
	cfg := config.DefaultConfig()
	if name != "" {
		if cfg, err = config.LoadConfig(name); err != nil {
			return nil, err
		}
	}

	applyEnvConfig(envCfg, cfg)
	if common.logLevel != "" {
		cfg.Log.Level = common.logLevel
	}
	if common.logFormat != "" {
		cfg.Log.Format = common.logFormat
	}
	if apply != nil {
		apply(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the command logger. Quiet mode keeps errors only.
func newLogger(env *Environment, cfg *config.Config, quiet bool) zerolog.Logger {
	logger := logging.New(logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  env.Stderr,
		Service: "docconv",
	})
	if quiet {
		logger = logger.Level(zerolog.ErrorLevel)
	}
	return logger
}
