// Package config loads the docconv YAML configuration and maps it onto
// engine settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	docconv "github.com/alnah/go-docconv"
	"github.com/alnah/go-docconv/internal/logging"
	"github.com/alnah/go-docconv/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
	ErrInvalidValue    = errors.New("invalid config value")
)

// Field length limits.
const (
	MaxPathLength     = 4096
	MaxAddrLength     = 255
	MaxPasswordLength = 512
	MaxStreamLength   = 200
)

// appDir is the directory name under the user config dir.
const appDir = "docconv"

// Config holds the whole service configuration.
type Config struct {
	Limits    LimitsConfig    `yaml:"limits"`
	Defaults  DefaultsConfig  `yaml:"defaults"`
	Features  FeaturesConfig  `yaml:"features"`
	Tools     ToolsConfig     `yaml:"tools"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Events    EventsConfig    `yaml:"events"`
}

// LimitsConfig bounds job size and concurrency.
type LimitsConfig struct {
	MaxFileSizeMB   int    `yaml:"maxFileSizeMB"`   // total per job
	MaxImagesPerJob int    `yaml:"maxImagesPerJob"` // images-to-pdf only
	MaxConcurrent   int    `yaml:"maxConcurrent"`   // 0 = engine default
	ToolTimeout     string `yaml:"toolTimeout"`     // per strategy attempt, e.g. "90s"
}

// DefaultsConfig holds the defaults applied to jobs that leave a field unset.
type DefaultsConfig struct {
	Quality     string `yaml:"quality"`     // low, medium, high, ultra
	ImageFormat string `yaml:"imageFormat"` // png or jpeg, for pdf-to-images
	AutoEnhance bool   `yaml:"autoEnhance"`
}

// FeaturesConfig toggles conversions. A missing key means enabled.
type FeaturesConfig struct {
	ImagesToPDF      *bool `yaml:"imagesToPdf"`
	PDFToImages      *bool `yaml:"pdfToImages"`
	WordToPDF        *bool `yaml:"wordToPdf"`
	ExcelToPDF       *bool `yaml:"excelToPdf"`
	TextToPDF        *bool `yaml:"textToPdf"`
	ImageEnhancement *bool `yaml:"imageEnhancement"`
}

// ToolsConfig overrides tool binary paths. Empty means search PATH.
type ToolsConfig struct {
	LibreOffice string `yaml:"libreoffice"`
	Pandoc      string `yaml:"pandoc"`
	Pdftoppm    string `yaml:"pdftoppm"`
	ImageMagick string `yaml:"imagemagick"`
	Chrome      string `yaml:"chrome"`
}

// WorkspaceConfig locates per-job scratch directories.
type WorkspaceConfig struct {
	Dir string `yaml:"dir"` // empty = system temp dir
}

// LogConfig selects log verbosity and encoding.
type LogConfig struct {
	Level  string `yaml:"level"`  // trace, debug, info, warn, error, disabled
	Format string `yaml:"format"` // console or json
}

// ServerConfig configures the HTTP adapter.
type ServerConfig struct {
	Addr              string `yaml:"addr"`
	ShutdownTimeout   string `yaml:"shutdownTimeout"`
	LightweightBypass bool   `yaml:"lightweightBypass"`
}

// EventsConfig configures statistics event delivery.
type EventsConfig struct {
	Buffer int         `yaml:"buffer"` // 0 = engine default
	Log    bool        `yaml:"log"`    // also write events to the log
	Redis  RedisConfig `yaml:"redis"`
}

// RedisConfig enables the Redis stream sink when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Stream   string `yaml:"stream"`
	MaxLen   int64  `yaml:"maxLen"`
}

// DefaultConfig returns a configuration matching the engine defaults.
func DefaultConfig() *Config {
	return &Config{
		Limits: LimitsConfig{
			MaxFileSizeMB:   docconv.DefaultMaxFileSize >> 20,
			MaxImagesPerJob: docconv.DefaultMaxImagesPerJob,
			ToolTimeout:     docconv.DefaultToolTimeout.String(),
		},
		Defaults: DefaultsConfig{
			Quality:     string(docconv.DefaultQuality),
			ImageFormat: string(docconv.DefaultImageFormat),
		},
		Log:    LogConfig{Level: "info", Format: logging.FormatConsole},
		Server: ServerConfig{Addr: ":8080", ShutdownTimeout: "15s"},
	}
}

// Validate checks ranges, enumerations and field lengths.
// Called automatically by LoadConfig, but available for configs built in code.
func (c *Config) Validate() error {
	l := c.Limits
	if l.MaxFileSizeMB <= 0 {
		return fmt.Errorf("%w: limits.maxFileSizeMB must be positive, got %d", ErrInvalidValue, l.MaxFileSizeMB)
	}
	if l.MaxImagesPerJob <= 0 {
		return fmt.Errorf("%w: limits.maxImagesPerJob must be positive, got %d", ErrInvalidValue, l.MaxImagesPerJob)
	}
	if l.MaxConcurrent < 0 {
		return fmt.Errorf("%w: limits.maxConcurrent cannot be negative, got %d", ErrInvalidValue, l.MaxConcurrent)
	}
	if _, err := parseDuration("limits.toolTimeout", l.ToolTimeout); err != nil {
		return err
	}

	if c.Defaults.Quality != "" {
		if _, err := docconv.ParseQuality(c.Defaults.Quality); err != nil {
			return fmt.Errorf("%w: defaults.quality: %v", ErrInvalidValue, err)
		}
	}
	if c.Defaults.ImageFormat != "" {
		f, err := docconv.ParseFormat(c.Defaults.ImageFormat)
		if err != nil || f == docconv.FormatPDF {
			return fmt.Errorf("%w: defaults.imageFormat must be png or jpeg, got %q", ErrInvalidValue, c.Defaults.ImageFormat)
		}
	}

	paths := map[string]string{
		"tools.libreoffice": c.Tools.LibreOffice,
		"tools.pandoc":      c.Tools.Pandoc,
		"tools.pdftoppm":    c.Tools.Pdftoppm,
		"tools.imagemagick": c.Tools.ImageMagick,
		"tools.chrome":      c.Tools.Chrome,
		"workspace.dir":     c.Workspace.Dir,
	}
	for name, v := range paths {
		if err := validateFieldLength(name, v, MaxPathLength); err != nil {
			return err
		}
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalidValue, err)
	}
	if c.Log.Format != "" && !logging.ValidFormat(c.Log.Format) {
		return fmt.Errorf("%w: log.format must be console or json, got %q", ErrInvalidValue, c.Log.Format)
	}

	if err := validateFieldLength("server.addr", c.Server.Addr, MaxAddrLength); err != nil {
		return err
	}
	if _, err := parseDuration("server.shutdownTimeout", c.Server.ShutdownTimeout); err != nil {
		return err
	}

	if c.Events.Buffer < 0 {
		return fmt.Errorf("%w: events.buffer cannot be negative, got %d", ErrInvalidValue, c.Events.Buffer)
	}
	r := c.Events.Redis
	if err := validateFieldLength("events.redis.addr", r.Addr, MaxAddrLength); err != nil {
		return err
	}
	if err := validateFieldLength("events.redis.password", r.Password, MaxPasswordLength); err != nil {
		return err
	}
	if err := validateFieldLength("events.redis.stream", r.Stream, MaxStreamLength); err != nil {
		return err
	}
	if r.DB < 0 || r.MaxLen < 0 {
		return fmt.Errorf("%w: events.redis.db and events.redis.maxLen cannot be negative", ErrInvalidValue)
	}
	return nil
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

// parseDuration parses an optional positive duration. Empty yields zero.
func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive duration like \"90s\", got %q", ErrInvalidValue, field, s)
	}
	return d, nil
}

// enabled treats a missing feature key as on.
func enabled(b *bool) bool {
	return b == nil || *b
}

// Settings maps the configuration onto engine settings.
// The config must have passed Validate.
func (c *Config) Settings() docconv.Settings {
	s := docconv.DefaultSettings()
	s.MaxFileSize = int64(c.Limits.MaxFileSizeMB) << 20
	s.MaxImagesPerJob = c.Limits.MaxImagesPerJob
	s.MaxConcurrent = c.Limits.MaxConcurrent
	if d, _ := parseDuration("", c.Limits.ToolTimeout); d > 0 {
		s.ToolTimeout = d
	}
	if q, err := docconv.ParseQuality(c.Defaults.Quality); err == nil {
		s.DefaultQuality = q
	}
	if f, err := docconv.ParseFormat(c.Defaults.ImageFormat); err == nil {
		s.DefaultFormat = f
	}
	s.AutoEnhance = c.Defaults.AutoEnhance

	f := c.Features
	s.Features = docconv.Features{
		ImagesToPDF:      enabled(f.ImagesToPDF),
		PDFToImages:      enabled(f.PDFToImages),
		WordToPDF:        enabled(f.WordToPDF),
		ExcelToPDF:       enabled(f.ExcelToPDF),
		TextToPDF:        enabled(f.TextToPDF),
		ImageEnhancement: enabled(f.ImageEnhancement),
	}

	paths := map[docconv.ToolID]string{
		docconv.ToolLibreOffice: c.Tools.LibreOffice,
		docconv.ToolPandoc:      c.Tools.Pandoc,
		docconv.ToolPdftoppm:    c.Tools.Pdftoppm,
		docconv.ToolImageMagick: c.Tools.ImageMagick,
		docconv.ToolChrome:      c.Tools.Chrome,
	}
	for id, p := range paths {
		if p != "" {
			if s.ToolPaths == nil {
				s.ToolPaths = make(map[docconv.ToolID]string)
			}
			s.ToolPaths[id] = p
		}
	}
	s.WorkspaceDir = c.Workspace.Dir
	s.EventBuffer = c.Events.Buffer
	return s
}

// ShutdownTimeout returns the server drain timeout, defaulting to 15s.
func (c *Config) ShutdownTimeout() time.Duration {
	if d, _ := parseDuration("", c.Server.ShutdownTimeout); d > 0 {
		return d
	}
	return 15 * time.Second
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Keys missing from the file keep their DefaultConfig values.
// Returns error if the file is not found (no silent fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	var configPath string
	var err error

	if isFilePath(nameOrPath) {
		configPath = nameOrPath
	} else {
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yamlutil.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Redacted returns the configuration as YAML with secrets masked.
func (c *Config) Redacted() ([]byte, error) {
	out := *c
	if out.Events.Redis.Password != "" {
		out.Events.Redis.Password = "********"
	}
	return yamlutil.Marshal(&out)
}

// isFilePath returns true if the string looks like a file path.
func isFilePath(s string) bool {
	return strings.ContainsAny(s, "/\\")
}

// SearchPaths lists the files tried for a config name, in lookup order:
// current directory, then <user config dir>/docconv/, each with .yaml and .yml.
func SearchPaths(name string) []string {
	extensions := []string{".yaml", ".yml"}
	paths := make([]string, 0, len(extensions)*2) // 2 locations
	for _, ext := range extensions {
		paths = append(paths, name+ext)
	}
	if userConfigDir, err := os.UserConfigDir(); err == nil {
		for _, ext := range extensions {
			paths = append(paths, filepath.Join(userConfigDir, appDir, name+ext))
		}
	}
	return paths
}

// resolveConfigPath returns the first existing file among SearchPaths(name).
func resolveConfigPath(name string) (string, error) {
	paths := SearchPaths(name)
	for _, p := range paths {
		if fileExists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(paths, ", "))
}

// fileExists returns true if the path exists and is a regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
