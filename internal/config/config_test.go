package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	docconv "github.com/alnah/go-docconv"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() error = %v", err)
	}
	if cfg.Limits.MaxFileSizeMB != 50 {
		t.Errorf("Limits.MaxFileSizeMB = %d, want 50", cfg.Limits.MaxFileSizeMB)
	}
	if cfg.Defaults.Quality != "medium" || cfg.Defaults.ImageFormat != "png" {
		t.Errorf("Defaults = %+v", cfg.Defaults)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Events.Redis.Addr != "" {
		t.Error("Redis sink enabled by default")
	}
}

func TestValidateFieldLength(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		maxLength int
		wantErr   bool
	}{
		{name: "empty value is valid", value: "", maxLength: 10},
		{name: "value at limit is valid", value: "1234567890", maxLength: 10},
		{name: "value over limit returns error", value: "12345678901", maxLength: 10, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFieldLength("test.field", tt.value, tt.maxLength)
			if tt.wantErr {
				if !errors.Is(err, ErrFieldTooLong) {
					t.Errorf("error = %v, want ErrFieldTooLong", err)
				}
				if err != nil && !strings.Contains(err.Error(), "test.field") {
					t.Errorf("error %q should name the field", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{name: "defaults are valid", modify: func(*Config) {}},
		{name: "zero max size", modify: func(c *Config) { c.Limits.MaxFileSizeMB = 0 }, wantErr: ErrInvalidValue},
		{name: "zero max images", modify: func(c *Config) { c.Limits.MaxImagesPerJob = 0 }, wantErr: ErrInvalidValue},
		{name: "negative concurrency", modify: func(c *Config) { c.Limits.MaxConcurrent = -2 }, wantErr: ErrInvalidValue},
		{name: "bad tool timeout", modify: func(c *Config) { c.Limits.ToolTimeout = "soon" }, wantErr: ErrInvalidValue},
		{name: "negative tool timeout", modify: func(c *Config) { c.Limits.ToolTimeout = "-5s" }, wantErr: ErrInvalidValue},
		{name: "empty tool timeout uses default", modify: func(c *Config) { c.Limits.ToolTimeout = "" }},
		{name: "unknown quality", modify: func(c *Config) { c.Defaults.Quality = "best" }, wantErr: ErrInvalidValue},
		{name: "pdf image format", modify: func(c *Config) { c.Defaults.ImageFormat = "pdf" }, wantErr: ErrInvalidValue},
		{name: "jpg alias accepted", modify: func(c *Config) { c.Defaults.ImageFormat = "jpg" }},
		{name: "tool path too long", modify: func(c *Config) { c.Tools.Pandoc = strings.Repeat("p", MaxPathLength+1) }, wantErr: ErrFieldTooLong},
		{name: "unknown log level", modify: func(c *Config) { c.Log.Level = "loud" }, wantErr: ErrInvalidValue},
		{name: "unknown log format", modify: func(c *Config) { c.Log.Format = "xml" }, wantErr: ErrInvalidValue},
		{name: "bad shutdown timeout", modify: func(c *Config) { c.Server.ShutdownTimeout = "0s" }, wantErr: ErrInvalidValue},
		{name: "negative event buffer", modify: func(c *Config) { c.Events.Buffer = -1 }, wantErr: ErrInvalidValue},
		{name: "redis addr too long", modify: func(c *Config) { c.Events.Redis.Addr = strings.Repeat("r", MaxAddrLength+1) }, wantErr: ErrFieldTooLong},
		{name: "negative redis db", modify: func(c *Config) { c.Events.Redis.DB = -1 }, wantErr: ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Settings(t *testing.T) {
	off := false
	cfg := DefaultConfig()
	cfg.Limits = LimitsConfig{MaxFileSizeMB: 10, MaxImagesPerJob: 7, MaxConcurrent: 3, ToolTimeout: "45s"}
	cfg.Defaults = DefaultsConfig{Quality: "HIGH", ImageFormat: "jpg", AutoEnhance: true}
	cfg.Features.ExcelToPDF = &off
	cfg.Tools.Pandoc = "/opt/pandoc/bin/pandoc"
	cfg.Workspace.Dir = "/var/tmp/docconv"
	cfg.Events.Buffer = 32

	s := cfg.Settings()
	if err := s.Validate(); err != nil {
		t.Fatalf("Settings().Validate() error = %v", err)
	}
	if s.MaxFileSize != 10<<20 || s.MaxImagesPerJob != 7 || s.MaxConcurrent != 3 {
		t.Errorf("limits = %d %d %d", s.MaxFileSize, s.MaxImagesPerJob, s.MaxConcurrent)
	}
	if s.ToolTimeout != 45*time.Second {
		t.Errorf("ToolTimeout = %s, want 45s", s.ToolTimeout)
	}
	if s.DefaultQuality != docconv.QualityHigh || s.DefaultFormat != docconv.FormatJPEG || !s.AutoEnhance {
		t.Errorf("defaults = %s %s %v", s.DefaultQuality, s.DefaultFormat, s.AutoEnhance)
	}
	if s.Features.ExcelToPDF || !s.Features.WordToPDF || !s.Features.ImageEnhancement {
		t.Errorf("features = %+v", s.Features)
	}
	if len(s.ToolPaths) != 1 || s.ToolPaths[docconv.ToolPandoc] != "/opt/pandoc/bin/pandoc" {
		t.Errorf("ToolPaths = %v", s.ToolPaths)
	}
	if s.WorkspaceDir != "/var/tmp/docconv" || s.EventBuffer != 32 {
		t.Errorf("workspace/events = %q %d", s.WorkspaceDir, s.EventBuffer)
	}
}

func TestConfig_ShutdownTimeout(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.ShutdownTimeout(); got != 15*time.Second {
		t.Errorf("default ShutdownTimeout() = %s", got)
	}
	cfg.Server.ShutdownTimeout = "3s"
	if got := cfg.ShutdownTimeout(); got != 3*time.Second {
		t.Errorf("ShutdownTimeout() = %s, want 3s", got)
	}
}

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("empty name returns ErrEmptyConfigName", func(t *testing.T) {
		_, err := LoadConfig("")
		if !errors.Is(err, ErrEmptyConfigName) {
			t.Errorf("error = %v, want ErrEmptyConfigName", err)
		}
	})

	t.Run("file keys override defaults, others keep them", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), "docconv.yaml", `limits:
  maxImagesPerJob: 20
  toolTimeout: "30s"
features:
  wordToPdf: false
events:
  redis:
    addr: "localhost:6379"
    stream: "conversions"
`)
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if cfg.Limits.MaxImagesPerJob != 20 || cfg.Limits.ToolTimeout != "30s" {
			t.Errorf("Limits = %+v", cfg.Limits)
		}
		if cfg.Limits.MaxFileSizeMB != 50 {
			t.Errorf("MaxFileSizeMB = %d, want default 50", cfg.Limits.MaxFileSizeMB)
		}
		if cfg.Features.WordToPDF == nil || *cfg.Features.WordToPDF {
			t.Error("wordToPdf should be explicitly off")
		}
		if cfg.Features.TextToPDF != nil {
			t.Error("textToPdf should stay unset")
		}
		if cfg.Events.Redis.Addr != "localhost:6379" || cfg.Events.Redis.Stream != "conversions" {
			t.Errorf("Redis = %+v", cfg.Events.Redis)
		}
		if cfg.Server.Addr != ":8080" {
			t.Errorf("Server.Addr = %q, want default", cfg.Server.Addr)
		}
	})

	t.Run("nonexistent file path returns ErrConfigNotFound", func(t *testing.T) {
		_, err := LoadConfig("/nonexistent/path/config.yaml")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("error = %v, want ErrConfigNotFound", err)
		}
	})

	t.Run("invalid YAML returns ErrConfigParse", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), "invalid.yaml", "limits: [unclosed")
		if _, err := LoadConfig(path); !errors.Is(err, ErrConfigParse) {
			t.Errorf("error = %v, want ErrConfigParse", err)
		}
	})

	t.Run("unknown field returns ErrConfigParse in strict mode", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), "unknown.yaml", "limits:\n  maxImagesPerJb: 3\n")
		if _, err := LoadConfig(path); !errors.Is(err, ErrConfigParse) {
			t.Errorf("error = %v, want ErrConfigParse", err)
		}
	})

	t.Run("invalid value fails validation", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), "bad.yaml", "defaults:\n  quality: best\n")
		if _, err := LoadConfig(path); !errors.Is(err, ErrInvalidValue) {
			t.Errorf("error = %v, want ErrInvalidValue", err)
		}
	})

	t.Run("config name resolves from current directory", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "local.yml", "log:\n  level: debug\n")
		writeConfig(t, dir, "local.yaml", "log:\n  level: warn\n")

		originalWd, err := os.Getwd()
		if err != nil {
			t.Fatalf("failed to get working directory: %v", err)
		}
		defer func() { _ = os.Chdir(originalWd) }()
		if err := os.Chdir(dir); err != nil {
			t.Fatalf("chdir: %v", err)
		}

		cfg, err := LoadConfig("local")
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if cfg.Log.Level != "warn" {
			t.Errorf("Log.Level = %q, want warn (should prefer .yaml)", cfg.Log.Level)
		}
	})

	t.Run("config name resolves from user config directory", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", home)
		t.Setenv("HOME", home)
		userConfigDir, err := os.UserConfigDir()
		if err != nil {
			t.Skip("cannot get user config dir")
		}
		appConfigDir := filepath.Join(userConfigDir, appDir)
		if err := os.MkdirAll(appConfigDir, 0o755); err != nil {
			t.Fatalf("setup mkdir: %v", err)
		}
		writeConfig(t, appConfigDir, "userconf.yaml", "server:\n  addr: \":9090\"\n")

		dir := t.TempDir()
		originalWd, err := os.Getwd()
		if err != nil {
			t.Fatalf("failed to get working directory: %v", err)
		}
		defer func() { _ = os.Chdir(originalWd) }()
		if err := os.Chdir(dir); err != nil {
			t.Fatalf("chdir: %v", err)
		}

		cfg, err := LoadConfig("userconf")
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if cfg.Server.Addr != ":9090" {
			t.Errorf("Server.Addr = %q, want :9090", cfg.Server.Addr)
		}
	})

	t.Run("missing config name lists tried paths", func(t *testing.T) {
		_, err := LoadConfig("definitely-not-here")
		if !errors.Is(err, ErrConfigNotFound) || !strings.Contains(err.Error(), "definitely-not-here.yml") {
			t.Errorf("error = %v", err)
		}
	})
}

func TestSearchPaths(t *testing.T) {
	t.Parallel()

	paths := SearchPaths("prod")
	if len(paths) < 2 || paths[0] != "prod.yaml" || paths[1] != "prod.yml" {
		t.Fatalf("SearchPaths() = %v, want local .yaml then .yml first", paths)
	}
	for _, p := range paths[2:] {
		if !filepath.IsAbs(p) || !strings.Contains(p, filepath.Join(appDir, "prod")) {
			t.Errorf("user path %q should live under the %s config directory", p, appDir)
		}
	}
}

func TestConfig_Redacted(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Limits.MaxImagesPerJob = 12
	cfg.Events.Redis.Password = "s3cret"

	data, err := cfg.Redacted()
	if err != nil {
		t.Fatalf("Redacted() error = %v", err)
	}
	out := string(data)
	if strings.Contains(out, "s3cret") {
		t.Error("password should be masked")
	}
	if !strings.Contains(out, "maxImagesPerJob: 12") {
		t.Errorf("expected limits in output, got:\n%s", out)
	}
	if cfg.Events.Redis.Password != "s3cret" {
		t.Error("Redacted must not modify the receiver")
	}
}
