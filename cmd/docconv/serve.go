package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	docconv "github.com/alnah/go-docconv"
	"github.com/alnah/go-docconv/internal/config"
	"github.com/alnah/go-docconv/internal/metrics"
	"github.com/alnah/go-docconv/internal/statsink"
)

const readHeaderTimeout = 10 * time.Second

// runServeCmd runs the HTTP adapter until ctx is canceled.
func runServeCmd(ctx context.Context, args []string, env *Environment) int {
	flags, err := parseServeFlags(args)
	if errors.Is(err, flag.ErrHelp) {
		printServeUsage(env.Stdout)
		return ExitSuccess
	}
	if err != nil {
		fmt.Fprintf(env.Stderr, "error: %v\n\n", err)
		printServeUsage(env.Stderr)
		return ExitUsage
	}

	cfg, err := loadConfig(env, &flags.common, flags.apply)
	if err != nil {
		fmt.Fprintf(env.Stderr, "error: %v%s\n", err, hintFor(err, env, requestedConfig(&flags.common, env), ""))
		return exitCodeFor(err)
	}
	logger := newLogger(env, cfg, flags.common.quiet)

	if err := serve(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		return exitCodeFor(err)
	}
	return ExitSuccess
}

// sinks bundles the event recorders of a server and their teardown.
type sinks struct {
	metrics  *metrics.Recorder
	recorder docconv.Recorder
	closers  []func() error
}

// newSinks wires the Prometheus recorder, plus the log and Redis stream
// recorders when configured.
func newSinks(cfg *config.Config, logger zerolog.Logger) (*sinks, error) {
	s := &sinks{metrics: metrics.New()}
	multi := docconv.MultiRecorder{s.metrics}

	if cfg.Events.Log {
		multi = append(multi, docconv.LogRecorder{Logger: logger})
	}
	if r := cfg.Events.Redis; r.Addr != "" {
		rec, err := statsink.NewRedisRecorder(statsink.Config{
			Addr:     r.Addr,
			Password: r.Password,
			DB:       r.DB,
			Stream:   r.Stream,
			MaxLen:   r.MaxLen,
		})
		if err != nil {
			return nil, err
		}
		logger.Info().Str("addr", r.Addr).Msg("publishing events to redis")
		multi = append(multi, rec)
		s.closers = append(s.closers, rec.Close)
	}

	s.recorder = multi
	return s, nil
}

func (s *sinks) close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// serve builds the engine and router, then blocks until ctx ends or the
// listener fails. Shutdown drains requests, then the engine, then the sinks.
func serve(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	sk, err := newSinks(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := sk.close(); err != nil {
			logger.Warn().Err(err).Msg("closing event sinks")
		}
	}()

	settings := cfg.Settings()
	eng, err := docconv.NewEngine(
		docconv.WithSettings(settings),
		docconv.WithLogger(logger),
		docconv.WithRecorder(sk.recorder),
		docconv.WithLightweightBypass(cfg.Server.LightweightBypass),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := eng.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing engine")
		}
	}()
	sk.metrics.RegisterGauges(eng.Stats)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newRouter(newServer(eng, sk.metrics.Handler(), logger, settings.MaxFileSize)),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("forced shutdown failed")
		}
	}
	logger.Info().Msg("server stopped")
	return nil
}
