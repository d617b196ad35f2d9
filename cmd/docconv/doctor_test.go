package main

// Notes:
// - checkClasses / checkEnvironment / isContainer: unit tests over built
//   results, so they do not depend on the tools installed on the machine.
// - runDoctorCmd: we only assert what holds everywhere. Every class has an
//   in-process strategy, so the report is never in the errors state when the
//   workspace is writable.

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	docconv "github.com/alnah/go-docconv"
)

// ---------------------------------------------------------------------------
// TestCheckClasses - Class readiness
// ---------------------------------------------------------------------------

func TestCheckClasses(t *testing.T) {
	t.Parallel()

	result := &doctorResult{
		chains: map[docconv.Class][]docconv.StrategyDescriptor{
			docconv.ClassImagesToPDF: {
				{Name: "image-compose", Available: true},
				{Name: "imagemagick", Available: false},
			},
			docconv.ClassPDFToImages: {
				{Name: "pdftoppm", Available: false},
			},
			docconv.ClassOfficeToPDF: {
				{Name: "libreoffice", Available: false},
			},
			docconv.ClassTextToPDF: {
				{Name: "text-render", Available: true},
			},
		},
	}
	features := docconv.DefaultSettings().Features
	features.WordToPDF = false
	features.ExcelToPDF = false

	checkClasses(result, features)

	if len(result.Classes) != 4 {
		t.Fatalf("got %d classes, want 4", len(result.Classes))
	}
	images := result.Classes[0]
	if len(images.Strategies) != 1 || images.Strategies[0] != "image-compose" || len(images.Missing) != 1 {
		t.Errorf("images-to-pdf = %+v", images)
	}
	if result.Classes[2].Enabled {
		t.Error("office-to-pdf should be disabled when both word and excel are off")
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "pdf-to-images") {
		t.Errorf("errors = %v, want one for pdf-to-images", result.Errors)
	}
}

// ---------------------------------------------------------------------------
// TestCheckEnvironment - CI and sandbox warnings
// ---------------------------------------------------------------------------

func TestCheckEnvironment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		vars     map[string]string
		chrome   bool
		wantCI   bool
		wantWarn bool
	}{
		{"CI with chrome and sandbox on", map[string]string{"CI": "true"}, true, true, true},
		{"CI with sandbox disabled", map[string]string{"CI": "true", "ROD_NO_SANDBOX": "1"}, true, true, false},
		{"CI without chrome", map[string]string{"GITHUB_ACTIONS": "true"}, false, true, false},
		{"forced container", map[string]string{"DOCCONV_CONTAINER": "1"}, true, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			getenv := getenvFrom(tt.vars)
			result := &doctorResult{
				Tools: []docconv.ToolStatus{{ID: docconv.ToolChrome, Available: tt.chrome}},
				Env:   envInfo{NoSandbox: getenv("ROD_NO_SANDBOX")},
			}
			checkEnvironment(result, getenv)

			if result.Env.CI != tt.wantCI {
				t.Errorf("CI = %v, want %v", result.Env.CI, tt.wantCI)
			}
			if got := len(result.Warnings) > 0; got != tt.wantWarn {
				t.Errorf("warnings = %v, want warning: %v", result.Warnings, tt.wantWarn)
			}
		})
	}
}

func TestIsContainer_Override(t *testing.T) {
	t.Parallel()

	ok, hint := isContainer(getenvFrom(map[string]string{"DOCCONV_CONTAINER": "1"}))
	if !ok || hint != "DOCCONV_CONTAINER=1" {
		t.Errorf("isContainer() = %v, %q", ok, hint)
	}
	ok, hint = isContainer(getenvFrom(map[string]string{"KUBERNETES_SERVICE_HOST": "10.0.0.1"}))
	if !ok || hint == "" {
		t.Errorf("isContainer() = %v, %q", ok, hint)
	}
}

// ---------------------------------------------------------------------------
// TestCheckWorkspace - Workspace writability
// ---------------------------------------------------------------------------

func TestCheckWorkspace(t *testing.T) {
	t.Parallel()

	t.Run("writable", func(t *testing.T) {
		t.Parallel()

		result := &doctorResult{System: systemInfo{WorkspaceDir: t.TempDir()}}
		checkWorkspace(result)
		if !result.System.WorkspaceWritable || len(result.Errors) != 0 {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		t.Parallel()

		result := &doctorResult{System: systemInfo{WorkspaceDir: filepath.Join(t.TempDir(), "missing")}}
		checkWorkspace(result)
		if result.System.WorkspaceWritable || len(result.Errors) != 1 {
			t.Errorf("result = %+v", result)
		}
	})
}

// ---------------------------------------------------------------------------
// TestPrintDoctorResult - Human-readable report
// ---------------------------------------------------------------------------

func TestPrintDoctorResult(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	printDoctorResult(&buf, &doctorResult{
		Status: statusErrors,
		Tools: []docconv.ToolStatus{
			{ID: docconv.ToolPandoc, Available: true, Path: "/usr/bin/pandoc"},
			{ID: docconv.ToolPdftoppm},
		},
		Classes: []classInfo{
			{Class: docconv.ClassTextToPDF, Enabled: true, Strategies: []string{"text-render"}},
			{Class: docconv.ClassPDFToImages, Enabled: true},
			{Class: docconv.ClassOfficeToPDF},
		},
		Env:      envInfo{OS: "linux", Arch: "amd64", CI: true},
		System:   systemInfo{WorkspaceDir: "/tmp", WorkspaceWritable: true},
		Warnings: []string{"pdftoppm not found; strategies using it are skipped"},
		Errors:   []string{"no converter available for pdf-to-images"},
	})

	out := buf.String()
	for _, want := range []string{
		"[OK] pandoc: /usr/bin/pandoc",
		"[WARN] pdftoppm: not found",
		"[OK] text-to-pdf: [text-render]",
		"[ERROR] pdf-to-images: no converter available",
		"[OK] office-to-pdf: disabled",
		"[OK] CI: detected",
		"Workspace directory: /tmp (writable)",
		"Status: Not ready",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output should contain %q, got:\n%s", want, out)
		}
	}
}

// ---------------------------------------------------------------------------
// TestRunDoctorCmd - End to end
// ---------------------------------------------------------------------------

func TestRunDoctorCmd_JSON(t *testing.T) {
	t.Parallel()

	env, stdout, stderr := testEnv(workspaceEnv(t, nil))
	code := runDoctorCmd(context.Background(), []string{"--json", "-q"}, env)
	if code != ExitSuccess {
		t.Fatalf("runDoctorCmd() = %d, stderr: %s", code, stderr.String())
	}

	var result doctorResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout.String())
	}
	if result.Status == statusErrors {
		t.Errorf("status = %q, errors: %v", result.Status, result.Errors)
	}
	if len(result.Tools) != len(docconv.Tools()) || len(result.Classes) != len(docconv.Classes()) {
		t.Errorf("tools = %d, classes = %d", len(result.Tools), len(result.Classes))
	}
	for _, c := range result.Classes {
		if len(c.Strategies) == 0 {
			t.Errorf("%s has no available strategy", c.Class)
		}
	}
}

func TestRunDoctorCmd_PrintConfig(t *testing.T) {
	t.Parallel()

	env, stdout, stderr := testEnv(map[string]string{
		"DOCCONV_MAX_CONCURRENT": "7",
		"DOCCONV_REDIS_PASSWORD": "hunter2",
	})
	if code := runDoctorCmd(context.Background(), []string{"--print-config"}, env); code != ExitSuccess {
		t.Fatalf("runDoctorCmd() = %d, stderr: %s", code, stderr.String())
	}

	out := stdout.String()
	if !strings.Contains(out, "maxConcurrent: 7") {
		t.Errorf("env override missing from effective config:\n%s", out)
	}
	if strings.Contains(out, "hunter2") {
		t.Error("Redis password must be masked")
	}
}
