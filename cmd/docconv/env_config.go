package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/alnah/go-docconv/internal/config"
)

// ErrInvalidEnv is returned for a DOCCONV_* variable that cannot be parsed.
var ErrInvalidEnv = errors.New("invalid environment variable")

const envPrefix = "DOCCONV_"

// envConfig holds configuration from environment variables.
// Provides container-friendly overrides without requiring YAML files.
type envConfig struct {
	// Tier 1 - Essential
	ConfigPath string // DOCCONV_CONFIG: config file name or path
	LogLevel   string // DOCCONV_LOG_LEVEL
	LogFormat  string // DOCCONV_LOG_FORMAT: console or json

	// Tier 2 - Limits and defaults
	MaxConcurrent int           // DOCCONV_MAX_CONCURRENT
	MaxFileSizeMB int           // DOCCONV_MAX_FILE_SIZE_MB
	MaxImages     int           // DOCCONV_MAX_IMAGES
	ToolTimeout   time.Duration // DOCCONV_TOOL_TIMEOUT
	WorkspaceDir  string        // DOCCONV_WORKSPACE_DIR
	Quality       string        // DOCCONV_QUALITY
	ImageFormat   string        // DOCCONV_IMAGE_FORMAT
	AutoEnhance   *bool         // DOCCONV_AUTO_ENHANCE
	Disable       []string      // DOCCONV_DISABLE: comma-separated feature names

	// Tier 3 - Tools and server
	Tools         config.ToolsConfig // DOCCONV_LIBREOFFICE, DOCCONV_PANDOC, ...
	Addr          string             // DOCCONV_ADDR
	RedisAddr     string             // DOCCONV_REDIS_ADDR
	RedisPassword string             // DOCCONV_REDIS_PASSWORD
	RedisStream   string             // DOCCONV_REDIS_STREAM
}

// knownEnvVars lists valid DOCCONV_* environment variables.
// Used to detect typos and warn users about unknown variables.
var knownEnvVars = map[string]bool{
	"DOCCONV_CONFIG":           true,
	"DOCCONV_LOG_LEVEL":        true,
	"DOCCONV_LOG_FORMAT":       true,
	"DOCCONV_MAX_CONCURRENT":   true,
	"DOCCONV_MAX_FILE_SIZE_MB": true,
	"DOCCONV_MAX_IMAGES":       true,
	"DOCCONV_TOOL_TIMEOUT":     true,
	"DOCCONV_WORKSPACE_DIR":    true,
	"DOCCONV_QUALITY":          true,
	"DOCCONV_IMAGE_FORMAT":     true,
	"DOCCONV_AUTO_ENHANCE":     true,
	"DOCCONV_DISABLE":          true,
	"DOCCONV_LIBREOFFICE":      true,
	"DOCCONV_PANDOC":           true,
	"DOCCONV_PDFTOPPM":         true,
	"DOCCONV_IMAGEMAGICK":      true,
	"DOCCONV_CHROME":           true,
	"DOCCONV_ADDR":             true,
	"DOCCONV_REDIS_ADDR":       true,
	"DOCCONV_REDIS_PASSWORD":   true,
	"DOCCONV_REDIS_STREAM":     true,
	"DOCCONV_CONTAINER":        true, // read by doctor
}

// featureNames maps DOCCONV_DISABLE entries to config toggles.
var featureNames = map[string]func(*config.FeaturesConfig) **bool{
	"images-to-pdf":     func(f *config.FeaturesConfig) **bool { return &f.ImagesToPDF },
	"pdf-to-images":     func(f *config.FeaturesConfig) **bool { return &f.PDFToImages },
	"word-to-pdf":       func(f *config.FeaturesConfig) **bool { return &f.WordToPDF },
	"excel-to-pdf":      func(f *config.FeaturesConfig) **bool { return &f.ExcelToPDF },
	"text-to-pdf":       func(f *config.FeaturesConfig) **bool { return &f.TextToPDF },
	"image-enhancement": func(f *config.FeaturesConfig) **bool { return &f.ImageEnhancement },
}

// loadEnvConfig reads configuration from environment variables.
// Malformed values are errors; unknown names only warn.
func loadEnvConfig(getenv func(string) string) (*envConfig, error) {
	cfg := &envConfig{
		ConfigPath:   getenv("DOCCONV_CONFIG"),
		LogLevel:     getenv("DOCCONV_LOG_LEVEL"),
		LogFormat:    getenv("DOCCONV_LOG_FORMAT"),
		WorkspaceDir: getenv("DOCCONV_WORKSPACE_DIR"),
		Quality:      getenv("DOCCONV_QUALITY"),
		ImageFormat:  getenv("DOCCONV_IMAGE_FORMAT"),
		Tools: config.ToolsConfig{
			LibreOffice: getenv("DOCCONV_LIBREOFFICE"),
			Pandoc:      getenv("DOCCONV_PANDOC"),
			Pdftoppm:    getenv("DOCCONV_PDFTOPPM"),
			ImageMagick: getenv("DOCCONV_IMAGEMAGICK"),
			Chrome:      getenv("DOCCONV_CHROME"),
		},
		Addr:          getenv("DOCCONV_ADDR"),
		RedisAddr:     getenv("DOCCONV_REDIS_ADDR"),
		RedisPassword: getenv("DOCCONV_REDIS_PASSWORD"),
		RedisStream:   getenv("DOCCONV_REDIS_STREAM"),
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"DOCCONV_MAX_CONCURRENT", &cfg.MaxConcurrent},
		{"DOCCONV_MAX_FILE_SIZE_MB", &cfg.MaxFileSizeMB},
		{"DOCCONV_MAX_IMAGES", &cfg.MaxImages},
	}
	for _, v := range ints {
		s := getenv(v.name)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: %s must be a positive integer, got %q", ErrInvalidEnv, v.name, s)
		}
		*v.dst = n
	}

	if s := getenv("DOCCONV_TOOL_TIMEOUT"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("%w: DOCCONV_TOOL_TIMEOUT must be a positive duration, got %q", ErrInvalidEnv, s)
		}
		cfg.ToolTimeout = d
	}

	if s := getenv("DOCCONV_AUTO_ENHANCE"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("%w: DOCCONV_AUTO_ENHANCE must be true or false, got %q", ErrInvalidEnv, s)
		}
		cfg.AutoEnhance = &b
	}

	if s := getenv("DOCCONV_DISABLE"); s != "" {
		for _, name := range strings.Split(s, ",") {
			name = strings.ToLower(strings.TrimSpace(name))
			if name == "" {
				continue
			}
			if _, ok := featureNames[name]; !ok {
				return nil, fmt.Errorf("%w: DOCCONV_DISABLE: unknown feature %q", ErrInvalidEnv, name)
			}
			cfg.Disable = append(cfg.Disable, name)
		}
	}

	return cfg, nil
}

// warnUnknownEnvVars prints warnings for unrecognized DOCCONV_* variables.
// Helps catch typos like DOCCONV_MAX_CONCURENT.
func warnUnknownEnvVars(w io.Writer, environ []string) {
	for _, env := range environ {
		if strings.HasPrefix(env, envPrefix) {
			name, _, _ := strings.Cut(env, "=")
			if !knownEnvVars[name] {
				fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
			}
		}
	}
}

// applyEnvConfig overlays environment values onto cfg. A set variable wins
// over the config file; CLI flags are applied afterwards.
// This ensures: CLI flags > env vars > config file > defaults
func applyEnvConfig(env *envConfig, cfg *config.Config) {
	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, v int) {
		if v > 0 {
			*dst = v
		}
	}

	// Tier 1
	setString(&cfg.Log.Level, env.LogLevel)
	setString(&cfg.Log.Format, env.LogFormat)

	// Tier 2
	setInt(&cfg.Limits.MaxConcurrent, env.MaxConcurrent)
	setInt(&cfg.Limits.MaxFileSizeMB, env.MaxFileSizeMB)
	setInt(&cfg.Limits.MaxImagesPerJob, env.MaxImages)
	if env.ToolTimeout > 0 {
		cfg.Limits.ToolTimeout = env.ToolTimeout.String()
	}
	setString(&cfg.Workspace.Dir, env.WorkspaceDir)
	setString(&cfg.Defaults.Quality, env.Quality)
	setString(&cfg.Defaults.ImageFormat, env.ImageFormat)
	if env.AutoEnhance != nil {
		cfg.Defaults.AutoEnhance = *env.AutoEnhance
	}
	off := false
	for _, name := range env.Disable {
		*featureNames[name](&cfg.Features) = &off
	}

	// Tier 3
	setString(&cfg.Tools.LibreOffice, env.Tools.LibreOffice)
	setString(&cfg.Tools.Pandoc, env.Tools.Pandoc)
	setString(&cfg.Tools.Pdftoppm, env.Tools.Pdftoppm)
	setString(&cfg.Tools.ImageMagick, env.Tools.ImageMagick)
	setString(&cfg.Tools.Chrome, env.Tools.Chrome)
	setString(&cfg.Server.Addr, env.Addr)
	setString(&cfg.Events.Redis.Addr, env.RedisAddr)
	setString(&cfg.Events.Redis.Password, env.RedisPassword)
	setString(&cfg.Events.Redis.Stream, env.RedisStream)
}
