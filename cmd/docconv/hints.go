package main

import (
	"context"
	"errors"
	"strings"

	docconv "github.com/alnah/go-docconv"
	"github.com/alnah/go-docconv/internal/config"
	"github.com/alnah/go-docconv/internal/hints"
	"github.com/alnah/go-docconv/internal/process"
)

// hintFor returns an actionable hint for err, or "" when none applies.
// configName is the config name or path that was requested, if any.
func hintFor(err error, env *Environment, configName, workspaceDir string) string {
	var exhausted *docconv.ExhaustedError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, config.ErrConfigNotFound):
		if configName == "" || isPathLike(configName) {
			return hints.ForConfigNotFound(nil)
		}
		return hints.ForConfigNotFound(config.SearchPaths(configName))
	case errors.Is(err, ErrClassUnknown), errors.Is(err, docconv.ErrUnknownClass):
		names := make([]string, 0, len(docconv.Classes()))
		for _, c := range docconv.Classes() {
			names = append(names, string(c))
		}
		return hints.ForClassUnknown(names)
	case errors.Is(err, ErrWriteOutput):
		return hints.ForOutputDirectory()
	case errors.Is(err, docconv.ErrFeatureDisabled):
		return hints.ForFeatureDisabled()
	case docconv.Kind(err) == docconv.KindNoEligible:
		return hints.ForNoConverter()
	case docconv.Kind(err) == docconv.KindResourceExhausted:
		return hints.ForBusy(workspaceDir)
	case errors.As(err, &exhausted):
		return hintForAttempts(exhausted.Attempts, env.Getenv)
	}
	return ""
}

// hintForAttempts looks at why each strategy failed. A timeout wins over a
// browser launch problem.
func hintForAttempts(attempts []*docconv.StrategyError, getenv func(string) string) string {
	chromeFailed := false
	for _, a := range attempts {
		if errors.Is(a.Err, process.ErrTimeout) || errors.Is(a.Err, context.DeadlineExceeded) {
			return hints.ForTimeout()
		}
		if a.Strategy == docconv.StrategyChromeHTML {
			chromeFailed = true
		}
	}
	if chromeFailed {
		return hints.ForBrowserLaunch(getenv)
	}
	return ""
}

// requestedConfig returns the config name given by flag or environment.
func requestedConfig(common *commonFlags, env *Environment) string {
	if common.config != "" {
		return common.config
	}
	return env.Getenv(envPrefix + "CONFIG")
}

func isPathLike(s string) bool {
	return strings.ContainsAny(s, "/\\")
}
