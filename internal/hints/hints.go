// Package hints provides actionable error hints for common failure scenarios.
// Hints are formatted consistently as "\n  hint: <text>" for appending to error messages.
package hints

import (
	"path/filepath"
	"strings"

	"github.com/alnah/go-docconv/internal/fileutil"
)

// IsInContainer detects if running inside a Docker container or similar.
// Checks for /.dockerenv file which Docker creates automatically.
var IsInContainer = func() bool {
	return fileutil.FileExists("/.dockerenv")
}

// ForBrowserLaunch returns hints for a headless Chrome that failed to start.
// Detects CI/Docker environment and suggests relevant environment variables.
func ForBrowserLaunch(getenv func(string) string) string {
	var hints []string

	inCI := getenv("CI") != "" ||
		getenv("GITHUB_ACTIONS") != "" ||
		getenv("GITLAB_CI") != "" ||
		getenv("JENKINS_URL") != ""

	if (inCI || IsInContainer()) && getenv("ROD_NO_SANDBOX") != "1" {
		hints = append(hints, "set ROD_NO_SANDBOX=1 for Docker/CI")
	}
	if getenv("DOCCONV_CHROME") == "" {
		hints = append(hints, "set DOCCONV_CHROME to use a specific Chrome binary")
	}

	return formatHints(hints)
}

// ForTimeout returns a hint about increasing the per-tool timeout.
func ForTimeout() string {
	return format("for large documents, raise --timeout or DOCCONV_TOOL_TIMEOUT")
}

// ForNoConverter returns a hint for a class with no usable external tool.
func ForNoConverter() string {
	return format("run 'docconv doctor' to see which tools are installed")
}

// ForBusy returns a hint for jobs rejected for lack of temporary storage.
func ForBusy(workspaceDir string) string {
	if workspaceDir == "" {
		return format("free space in the temporary directory or set DOCCONV_WORKSPACE_DIR")
	}
	return format("free space in " + workspaceDir + " or set DOCCONV_WORKSPACE_DIR")
}

// ForFeatureDisabled returns a hint for a conversion switched off by configuration.
func ForFeatureDisabled() string {
	return format("check DOCCONV_DISABLE and the features section of the config file")
}

// ForConfigNotFound returns hints for config file not found errors.
// Suggests --config flag and creating the first absolute searched path,
// which is the one in the user config directory.
func ForConfigNotFound(searchedPaths []string) string {
	hint := "use --config /path/to/file.yaml"

	for _, p := range searchedPaths {
		if filepath.IsAbs(p) {
			hint += " or create " + p
			break
		}
	}

	return format(hint)
}

// ForOutputDirectory returns hints for output directory creation errors.
func ForOutputDirectory() string {
	return format("check parent directory exists and is writable")
}

// ForClassUnknown lists the accepted class names.
func ForClassUnknown(available []string) string {
	if len(available) == 0 {
		return ""
	}
	return format("available: " + strings.Join(available, ", "))
}

// format creates a single hint string with consistent formatting.
func format(hint string) string {
	if hint == "" {
		return ""
	}
	return "\n  hint: " + hint
}

// formatHints joins multiple hints with consistent formatting.
func formatHints(hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	return format(strings.Join(hints, "; "))
}
