package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	docconv "github.com/alnah/go-docconv"
	"github.com/alnah/go-docconv/internal/config"
)

// Doctor report statuses.
const (
	statusReady    = "ready"
	statusWarnings = "warnings"
	statusErrors   = "errors"
)

// doctorResult holds all diagnostic information.
type doctorResult struct {
	Status   string               `json:"status"` // "ready", "warnings", "errors"
	Tools    []docconv.ToolStatus `json:"tools"`
	Classes  []classInfo          `json:"classes"`
	Env      envInfo              `json:"environment"`
	System   systemInfo           `json:"system"`
	Warnings []string             `json:"warnings,omitempty"`
	Errors   []string             `json:"errors,omitempty"`

	chains map[docconv.Class][]docconv.StrategyDescriptor
}

// classInfo summarizes one conversion class.
type classInfo struct {
	Class      docconv.Class `json:"class"`
	Enabled    bool          `json:"enabled"`
	Strategies []string      `json:"strategies"` // available, in run order
	Missing    []string      `json:"missing,omitempty"`
}

// envInfo holds environment detection results.
type envInfo struct {
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	Container     bool   `json:"container"`
	ContainerHint string `json:"container_hint,omitempty"`
	CI            bool   `json:"ci"`
	NoSandbox     string `json:"rod_no_sandbox"`
}

// systemInfo holds system check results.
type systemInfo struct {
	WorkspaceDir      string `json:"workspace_dir"`
	WorkspaceWritable bool   `json:"workspace_writable"`
}

// runDoctorCmd executes the doctor command and returns an exit code.
// Exit codes: 0 = OK (including warnings), 1 = errors found.
func runDoctorCmd(ctx context.Context, args []string, env *Environment) int {
	flags, err := parseDoctorFlags(args)
	if errors.Is(err, flag.ErrHelp) {
		printDoctorUsage(env.Stdout)
		return ExitSuccess
	}
	if err != nil {
		fmt.Fprintf(env.Stderr, "error: %v\n\n", err)
		printDoctorUsage(env.Stderr)
		return ExitUsage
	}

	cfg, err := loadConfig(env, &flags.common, nil)
	if err != nil {
		fmt.Fprintf(env.Stderr, "error: %v%s\n", err, hintFor(err, env, requestedConfig(&flags.common, env), ""))
		return exitCodeFor(err)
	}
	if flags.printConfig {
		data, err := cfg.Redacted()
		if err != nil {
			fmt.Fprintf(env.Stderr, "error: %v\n", err)
			return ExitGeneral
		}
		_, _ = env.Stdout.Write(data)
		return ExitSuccess
	}
	logger := newLogger(env, cfg, flags.common.quiet)

	result, err := runDoctor(ctx, cfg, env.Getenv, logger)
	if err != nil {
		fmt.Fprintf(env.Stderr, "error: %v\n", err)
		return exitCodeFor(err)
	}

	if flags.json {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printDoctorResult(env.Stdout, result)
	}

	if result.Status == statusErrors {
		return ExitGeneral
	}
	return ExitSuccess
}

// runDoctor performs all diagnostic checks.
func runDoctor(ctx context.Context, cfg *config.Config, getenv func(string) string, logger zerolog.Logger) (*doctorResult, error) {
	settings := cfg.Settings()
	probe := docconv.NewProbe(settings.ToolPaths, logger)
	probe.Detect(ctx)

	eng, err := docconv.NewEngine(
		docconv.WithSettings(settings),
		docconv.WithLogger(logger),
		docconv.WithProbe(probe),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = eng.Close() }()

	result := &doctorResult{
		Status: statusReady,
		Tools:  probe.Tools(),
		Env: envInfo{
			OS:        runtime.GOOS,
			Arch:      runtime.GOARCH,
			NoSandbox: getenv("ROD_NO_SANDBOX"),
		},
		System: systemInfo{WorkspaceDir: settings.WorkspaceDir},
		chains: make(map[docconv.Class][]docconv.StrategyDescriptor),
	}
	for _, c := range docconv.Classes() {
		result.chains[c] = eng.Strategies(c)
	}

	checkTools(result)
	checkClasses(result, settings.Features)
	checkEnvironment(result, getenv)
	checkWorkspace(result)

	if len(result.Errors) > 0 {
		result.Status = statusErrors
	} else if len(result.Warnings) > 0 {
		result.Status = statusWarnings
	}
	return result, nil
}

// checkTools warns about every missing external tool.
func checkTools(result *doctorResult) {
	for _, t := range result.Tools {
		if !t.Available {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s not found; strategies using it are skipped", t.ID))
		}
	}
}

// checkClasses reports an enabled class with no runnable strategy as an error.
func checkClasses(result *doctorResult, f docconv.Features) {
	enabled := map[docconv.Class]bool{
		docconv.ClassImagesToPDF: f.ImagesToPDF,
		docconv.ClassPDFToImages: f.PDFToImages,
		docconv.ClassOfficeToPDF: f.WordToPDF || f.ExcelToPDF,
		docconv.ClassTextToPDF:   f.TextToPDF,
	}
	for _, c := range docconv.Classes() {
		info := classInfo{Class: c, Enabled: enabled[c], Strategies: []string{}}
		for _, d := range result.chains[c] {
			if d.Available {
				info.Strategies = append(info.Strategies, d.Name)
			} else {
				info.Missing = append(info.Missing, d.Name)
			}
		}
		if info.Enabled && len(info.Strategies) == 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("no converter available for %s", c))
		}
		result.Classes = append(result.Classes, info)
	}
}

// checkEnvironment detects container and CI environments.
func checkEnvironment(result *doctorResult, getenv func(string) string) {
	result.Env.Container, result.Env.ContainerHint = isContainer(getenv)

	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI"}
	for _, v := range ciVars {
		if getenv(v) != "" {
			result.Env.CI = true
			break
		}
	}

	chrome := false
	for _, t := range result.Tools {
		if t.ID == docconv.ToolChrome && t.Available {
			chrome = true
		}
	}
	if chrome && (result.Env.Container || result.Env.CI) && result.Env.NoSandbox != "1" {
		result.Warnings = append(result.Warnings,
			"Container/CI detected but ROD_NO_SANDBOX not set. Set ROD_NO_SANDBOX=1")
	}
}

// isContainer detects if running in a container environment.
// Returns (isContainer, hint) where hint indicates which signal was detected.
func isContainer(getenv func(string) string) (bool, string) {
	if getenv("DOCCONV_CONTAINER") == "1" {
		return true, "DOCCONV_CONTAINER=1"
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true, "/.dockerenv"
	}
	if v := getenv("container"); v != "" {
		return true, "container=" + v
	}
	if getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true, "KUBERNETES_SERVICE_HOST"
	}
	return false, ""
}

// checkWorkspace verifies that job workspaces can be created.
func checkWorkspace(result *doctorResult) {
	dir := result.System.WorkspaceDir
	if dir == "" {
		dir = os.TempDir()
		result.System.WorkspaceDir = dir
	}
	probe, err := os.MkdirTemp(dir, "docconv-doctor-*")
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Workspace directory not writable: %s", dir))
		return
	}
	_ = os.RemoveAll(probe)
	result.System.WorkspaceWritable = true
}

// printDoctorResult outputs human-readable diagnostic results.
func printDoctorResult(w io.Writer, r *doctorResult) {
	fmt.Fprintln(w, "docconv doctor")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Tools")
	for _, t := range r.Tools {
		if t.Available {
			fmt.Fprintf(w, "  [OK] %s: %s\n", t.ID, t.Path)
		} else {
			fmt.Fprintf(w, "  [WARN] %s: not found\n", t.ID)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Conversions")
	for _, c := range r.Classes {
		switch {
		case !c.Enabled:
			fmt.Fprintf(w, "  [OK] %s: disabled\n", c.Class)
		case len(c.Strategies) == 0:
			fmt.Fprintf(w, "  [ERROR] %s: no converter available\n", c.Class)
		default:
			fmt.Fprintf(w, "  [OK] %s: %v\n", c.Class, c.Strategies)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment")
	fmt.Fprintf(w, "  [OK] Platform: %s/%s\n", r.Env.OS, r.Env.Arch)
	if r.Env.Container {
		fmt.Fprintf(w, "  [OK] Container: detected (%s)\n", r.Env.ContainerHint)
	}
	if r.Env.CI {
		fmt.Fprintln(w, "  [OK] CI: detected")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "System")
	if r.System.WorkspaceWritable {
		fmt.Fprintf(w, "  [OK] Workspace directory: %s (writable)\n", r.System.WorkspaceDir)
	} else {
		fmt.Fprintf(w, "  [ERROR] Workspace directory: %s (not writable)\n", r.System.WorkspaceDir)
	}
	fmt.Fprintln(w)

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "  [WARN] %s\n", warn)
		}
		fmt.Fprintln(w)
	}

	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "Errors:")
		for _, err := range r.Errors {
			fmt.Fprintf(w, "  [ERROR] %s\n", err)
		}
		fmt.Fprintln(w)
	}

	switch r.Status {
	case statusReady:
		fmt.Fprintln(w, "Status: Ready to convert")
	case statusWarnings:
		fmt.Fprintln(w, "Status: Ready with warnings")
	case statusErrors:
		fmt.Fprintln(w, "Status: Not ready (see errors above)")
	}
}
