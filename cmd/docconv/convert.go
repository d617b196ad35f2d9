package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	docconv "github.com/alnah/go-docconv"
	"github.com/alnah/go-docconv/internal/config"
	"github.com/alnah/go-docconv/internal/mediatype"
)

// Sentinel errors for the convert command.
var (
	ErrReadInput    = errors.New("cannot read input")
	ErrWriteOutput  = errors.New("cannot write output")
	ErrNoInputFiles = errors.New("no input files given")
	ErrClassUnknown = errors.New("cannot infer conversion class")
)

// runConvertCmd converts files on disk and writes the artifact next to the
// first input or to --output.
func runConvertCmd(ctx context.Context, args []string, env *Environment) int {
	flags, paths, err := parseConvertFlags(args)
	if errors.Is(err, flag.ErrHelp) {
		printConvertUsage(env.Stdout)
		return ExitSuccess
	}
	if err == nil && len(paths) == 0 {
		err = fmt.Errorf("%w: %w", ErrUsage, ErrNoInputFiles)
	}
	if err != nil {
		fmt.Fprintf(env.Stderr, "error: %v\n\n", err)
		printConvertUsage(env.Stderr)
		return ExitUsage
	}

	cfg, err := loadConfig(env, &flags.common, flags.apply)
	if err != nil {
		fmt.Fprintf(env.Stderr, "error: %v%s\n", err, hintFor(err, env, requestedConfig(&flags.common, env), ""))
		return exitCodeFor(err)
	}
	logger := newLogger(env, cfg, flags.common.quiet)

	path, art, err := convert(ctx, cfg, logger, flags, paths, env.Now)
	if err != nil {
		printConvertError(env, logger, err, hintFor(err, env, "", cfg.Workspace.Dir))
		return exitCodeFor(err)
	}

	if !flags.common.quiet {
		fmt.Fprintf(env.Stdout, "%s (%s, %d bytes, %s via %s)\n",
			path, art.MediaType, art.Size, art.Elapsed.Round(time.Millisecond), art.Strategy)
	}
	return ExitSuccess
}

// convert runs one job through a short-lived engine.
func convert(ctx context.Context, cfg *config.Config, logger zerolog.Logger, flags *convertFlags, paths []string, now func() time.Time) (string, *docconv.Artifact, error) {
	job, err := buildJob(flags, paths)
	if err != nil {
		return "", nil, err
	}
	job.CreatedAt = now()

	eng, err := docconv.NewEngine(
		docconv.WithSettings(cfg.Settings()),
		docconv.WithLogger(logger),
	)
	if err != nil {
		return "", nil, err
	}
	defer func() { _ = eng.Close() }()

	art, err := eng.Submit(ctx, job)
	if err != nil {
		return "", nil, err
	}

	out, err := writeArtifact(flags.output, paths, art)
	if err != nil {
		return "", nil, err
	}
	return out, art, nil
}

// buildJob reads the input files and maps flags onto a job. Enumerations are
// parsed here so typos fail before any file is staged.
func buildJob(flags *convertFlags, paths []string) (docconv.Job, error) {
	files := make([]docconv.File, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p) // #nosec G304 -- paths come from the command line
		if err != nil {
			return docconv.Job{}, fmt.Errorf("%w: %w", ErrReadInput, err)
		}
		files = append(files, docconv.File{Name: filepath.Base(p), Data: data})
	}

	job := docconv.Job{
		Files:       files,
		OutputName:  flags.name,
		RequesterID: flags.requester,
	}

	var err error
	if flags.class != "" {
		job.Class, err = docconv.ParseClass(flags.class)
	} else {
		job.Class, err = inferClass(files[0])
	}
	if err != nil {
		return docconv.Job{}, err
	}
	if flags.quality != "" {
		if job.Quality, err = docconv.ParseQuality(flags.quality); err != nil {
			return docconv.Job{}, err
		}
	}
	if flags.format != "" {
		if job.Format, err = docconv.ParseFormat(flags.format); err != nil {
			return docconv.Job{}, err
		}
	}
	if flags.enhance != "" {
		if job.Enhancement, err = docconv.ParseEnhancement(flags.enhance); err != nil {
			return docconv.Job{}, err
		}
	}
	return job, nil
}

// inferClass picks the conversion class from the media type of f.
func inferClass(f docconv.File) (docconv.Class, error) {
	mt := mediatype.Resolve(f.MediaType, f.Name, f.Data)
	switch {
	case mediatype.IsImage(mt):
		return docconv.ClassImagesToPDF, nil
	case mt == mediatype.PDF:
		return docconv.ClassPDFToImages, nil
	case mediatype.IsWord(mt), mediatype.IsSpreadsheet(mt):
		return docconv.ClassOfficeToPDF, nil
	case mediatype.IsText(mt):
		return docconv.ClassTextToPDF, nil
	}
	return "", fmt.Errorf("%w: %s is %s, set the class explicitly", ErrClassUnknown, f.Name, mt)
}

// writeArtifact writes art to output. An empty output means the directory of
// the first input; an existing directory or a trailing separator means a file
// named after the artifact inside it. Inputs are never overwritten: a derived
// name that hits one gets a "_converted" suffix, an explicit one is refused.
func writeArtifact(output string, inputs []string, art *docconv.Artifact) (string, error) {
	var path string
	switch {
	case output == "":
		path = filepath.Join(filepath.Dir(inputs[0]), art.Name)
		if isInput(path, inputs) {
			ext := filepath.Ext(art.Name)
			path = filepath.Join(filepath.Dir(inputs[0]), strings.TrimSuffix(art.Name, ext)+"_converted"+ext)
		}
	case strings.HasSuffix(output, "/") || strings.HasSuffix(output, string(filepath.Separator)):
		if err := os.MkdirAll(output, 0o750); err != nil {
			return "", fmt.Errorf("%w: %w", ErrWriteOutput, err)
		}
		path = filepath.Join(output, art.Name)
	default:
		if info, err := os.Stat(output); err == nil && info.IsDir() {
			path = filepath.Join(output, art.Name)
		} else {
			path = output
		}
	}

	if isInput(path, inputs) {
		return "", fmt.Errorf("%w: %s is an input file", ErrWriteOutput, path)
	}

	if err := os.WriteFile(path, art.Data, 0o644); err != nil { // #nosec G306 -- output is a user document
		return "", fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}
	return path, nil
}

// isInput reports whether path names one of the input files, following
// symlinks when both exist.
func isInput(path string, inputs []string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	target, statErr := os.Stat(path)
	for _, in := range inputs {
		if inAbs, err := filepath.Abs(in); err == nil && inAbs == abs {
			return true
		}
		if statErr != nil {
			continue
		}
		if info, err := os.Stat(in); err == nil && os.SameFile(target, info) {
			return true
		}
	}
	return false
}

// printConvertError shows the end-user message and logs the full chain.
// Engine errors get their user message; everything else is printed as is.
func printConvertError(env *Environment, logger zerolog.Logger, err error, hint string) {
	if docconv.Kind(err) == docconv.KindInternal {
		fmt.Fprintf(env.Stderr, "error: %v%s\n", err, hint)
		return
	}
	logger.Debug().Err(err).Msg("conversion failed")
	fmt.Fprintf(env.Stderr, "error: %s%s\n", docconv.UserMessage(err), hint)
}
