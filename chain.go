package docconv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"time"

	"github.com/rs/zerolog"
)

// DefaultToolTimeout bounds a single strategy attempt.
const DefaultToolTimeout = 120 * time.Second

// Output signatures checked before an artifact is accepted.
var outputMagic = map[string][]byte{
	MediaTypePDF:  []byte("%PDF-"),
	MediaTypePNG:  []byte("\x89PNG\r\n\x1a\n"),
	MediaTypeJPEG: {0xff, 0xd8, 0xff},
	MediaTypeZIP:  []byte("PK\x03\x04"),
}

// ChainOptions configures a FallbackChain.
type ChainOptions struct {
	Timeout time.Duration // per attempt; 0 = DefaultToolTimeout
	Logger  zerolog.Logger
}

// Chain runs the strategies of one conversion class in priority order until
// one succeeds.
type Chain struct {
	class      Class
	probe      *Probe
	timeout    time.Duration
	logger     zerolog.Logger
	strategies []Strategy
}

// NewChain builds a chain for class from the strategies that belong to it,
// stable-sorted by priority. A nil probe treats every external tool as absent.
func NewChain(class Class, probe *Probe, opts ChainOptions, strategies ...Strategy) *Chain {
	own := make([]Strategy, 0, len(strategies))
	for _, s := range strategies {
		if s.Descriptor().Class == class {
			own = append(own, s)
		}
	}
	slices.SortStableFunc(own, func(a, b Strategy) int {
		return a.Descriptor().Priority - b.Descriptor().Priority
	})

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	return &Chain{class: class, probe: probe, timeout: timeout, logger: opts.Logger, strategies: own}
}

// Class returns the conversion class served by the chain.
func (c *Chain) Class() Class { return c.class }

// Descriptors lists the chain's strategies in run order, with availability
// taken from the probe's detected state.
func (c *Chain) Descriptors() []StrategyDescriptor {
	out := make([]StrategyDescriptor, len(c.strategies))
	for i, s := range c.strategies {
		d := s.Descriptor()
		d.Available = d.Tool == ToolNone || (c.probe != nil && c.probe.IsAvailable(d.Tool))
		out[i] = d
	}
	return out
}

// Eligible splits the strategies into those that can run job now and the
// skipped ones with a reason.
func (c *Chain) Eligible(job *Job) ([]Strategy, []Skip) {
	var eligible []Strategy
	var skipped []Skip
	for _, s := range c.strategies {
		d := s.Descriptor()
		switch {
		case !s.Accepts(job):
			skipped = append(skipped, Skip{Strategy: d.Name, Reason: "input not supported"})
		case !c.live(d.Tool):
			skipped = append(skipped, Skip{Strategy: d.Name, Reason: string(d.Tool) + " not available"})
		default:
			eligible = append(eligible, s)
		}
	}
	return eligible, skipped
}

func (c *Chain) live(id ToolID) bool {
	if id == ToolNone {
		return true
	}
	return c.probe != nil && c.probe.Live(id)
}

// Run executes eligible strategies in order and returns the first verified
// artifact. It fails with *NoEligibleError when nothing can run and with
// *ExhaustedError, carrying every attempt's cause, when everything failed.
func (c *Chain) Run(ctx context.Context, job *Job, ws *Workspace) (*Artifact, error) {
	eligible, skipped := c.Eligible(job)
	if len(eligible) == 0 {
		return nil, &NoEligibleError{Class: c.class, Skipped: skipped}
	}

	attempts := make([]*StrategyError, 0, len(eligible))
	for _, s := range eligible {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", errCanceled, err)
		}

		d := s.Descriptor()
		log := c.logger.With().Str("job_id", job.ID).Str("class", string(c.class)).Str("strategy", d.Name).Logger()

		start := time.Now()
		art, err := c.attempt(ctx, s, job, ws)
		if err == nil {
			art.Strategy = d.Name
			log.Debug().Dur("elapsed", time.Since(start)).Int64("bytes", art.Size).Msg("strategy succeeded")
			return art, nil
		}
		if errors.Is(err, ErrResourceExhausted) {
			return nil, err
		}

		log.Warn().Err(err).Str("tool", string(d.Tool)).Dur("elapsed", time.Since(start)).Msg("strategy failed")
		attempts = append(attempts, &StrategyError{Strategy: d.Name, Err: err})
	}

	return nil, &ExhaustedError{Class: c.class, Attempts: attempts}
}

// attempt runs one strategy in its own scratch dir with its own deadline.
// The scratch dir is discarded whatever the outcome; the artifact is in memory.
func (c *Chain) attempt(ctx context.Context, s Strategy, job *Job, ws *Workspace) (art *Artifact, err error) {
	scratch, err := ws.Attempt(s.Descriptor().Name)
	if err != nil {
		return nil, err
	}
	defer scratch.Discard()

	actx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Str("job_id", job.ID).Str("strategy", s.Descriptor().Name).
				Bytes("stack", debug.Stack()).Msgf("strategy panic: %v", r)
			art, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()

	art, err = s.Execute(actx, job, scratch)
	if err != nil {
		if errors.Is(actx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w (timeout after %s)", err, c.timeout)
		}
		return nil, err
	}
	if err := verifyArtifact(art); err != nil {
		return nil, err
	}
	return art, nil
}

// verifyArtifact rejects empty output and output whose leading bytes do not
// match the declared media type.
func verifyArtifact(art *Artifact) error {
	if art == nil || len(art.Data) == 0 {
		return fmt.Errorf("%w: empty output", ErrCorruptOutput)
	}
	if magic, ok := outputMagic[art.MediaType]; ok && !bytes.HasPrefix(art.Data, magic) {
		return fmt.Errorf("%w: output is not %s", ErrCorruptOutput, art.MediaType)
	}
	art.Size = int64(len(art.Data))
	if art.Entries == 0 {
		art.Entries = 1
	}
	return nil
}
