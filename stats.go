package docconv

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Event is published once per completed job. Delivery is best effort.
type Event struct {
	JobID       string        `json:"job_id"`
	RequesterID string        `json:"requester_id,omitempty"`
	Class       Class         `json:"class"`
	Success     bool          `json:"success"`
	Strategy    string        `json:"strategy,omitempty"`
	Elapsed     time.Duration `json:"-"`
	ElapsedMs   int64         `json:"elapsed_ms"`
	OutputBytes int64         `json:"output_bytes"`
	ErrorKind   ErrorKind     `json:"error_kind,omitempty"`
	At          time.Time     `json:"at"`
}

// Recorder consumes job events. Implementations may block briefly; the
// engine calls them from a background goroutine with a bounded context.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, ev Event) error

// Record calls f.
func (f RecorderFunc) Record(ctx context.Context, ev Event) error { return f(ctx, ev) }

// MultiRecorder fans an event out to every recorder and joins their errors.
type MultiRecorder []Recorder

// Record delivers ev to each recorder in order.
func (m MultiRecorder) Record(ctx context.Context, ev Event) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogRecorder writes each event as a structured log line.
type LogRecorder struct {
	Logger zerolog.Logger
}

// Record logs ev at info level, or warn for failures.
func (r LogRecorder) Record(_ context.Context, ev Event) error {
	e := r.Logger.Info()
	if !ev.Success {
		e = r.Logger.Warn().Str("error_kind", string(ev.ErrorKind))
	}
	e.Str("job_id", ev.JobID).
		Str("requester_id", ev.RequesterID).
		Str("class", string(ev.Class)).
		Bool("success", ev.Success).
		Str("strategy", ev.Strategy).
		Int64("elapsed_ms", ev.ElapsedMs).
		Int64("output_bytes", ev.OutputBytes).
		Msg("conversion completed")
	return nil
}

// Dispatcher defaults.
const (
	DefaultEventBuffer = 256
	recordTimeout      = 5 * time.Second
)

// dispatcher delivers events to a Recorder from one background goroutine.
// A full buffer drops the event; a failing or panicking recorder is logged.
type dispatcher struct {
	rec     Recorder
	logger  zerolog.Logger
	ch      chan Event
	done    chan struct{}
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
}

func newDispatcher(rec Recorder, buffer int, logger zerolog.Logger) *dispatcher {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	d := &dispatcher{
		rec:    rec,
		logger: logger,
		ch:     make(chan Event, buffer),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

// send enqueues ev without blocking. It reports whether ev was accepted.
func (d *dispatcher) send(ev Event) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		return false
	}
	select {
	case d.ch <- ev:
		return true
	default:
		d.dropped.Add(1)
		return false
	}
}

func (d *dispatcher) run() {
	defer close(d.done)
	for ev := range d.ch {
		d.deliver(ev)
	}
}

func (d *dispatcher) deliver(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Str("job_id", ev.JobID).Msgf("recorder panic: %v", r)
		}
	}()
	if err := d.rec.Record(ctx, ev); err != nil {
		d.logger.Warn().Err(err).Str("job_id", ev.JobID).Msg("recording conversion event failed")
	}
}

// close stops accepting events and waits for queued ones to be delivered
// until ctx ends.
func (d *dispatcher) close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.ch)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flushing events: %w", ctx.Err())
	}
}

// Stats is a snapshot of the engine counters.
type Stats struct {
	Submitted        int64               `json:"submitted"`
	Succeeded        int64               `json:"succeeded"`
	Failed           int64               `json:"failed"`
	FailedByKind     map[ErrorKind]int64 `json:"failed_by_kind"`
	Wins             map[string]int64    `json:"wins"`
	GateSize         int                 `json:"gate_size"`
	GateInFlight     int                 `json:"gate_in_flight"`
	GatePeak         int                 `json:"gate_peak"`
	GateWaiting      int                 `json:"gate_waiting"`
	ActiveWorkspaces int                 `json:"active_workspaces"`
	EventsDropped    int64               `json:"events_dropped"`
}

// counters is the in-memory tally behind Stats.
type counters struct {
	mu           sync.Mutex
	submitted    int64
	succeeded    int64
	failed       int64
	failedByKind map[ErrorKind]int64
	wins         map[string]int64
}

func newCounters() *counters {
	return &counters{failedByKind: make(map[ErrorKind]int64), wins: make(map[string]int64)}
}

func (c *counters) submit() {
	c.mu.Lock()
	c.submitted++
	c.mu.Unlock()
}

func (c *counters) finish(strategy string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		c.succeeded++
		c.wins[strategy]++
		return
	}
	c.failed++
	c.failedByKind[Kind(err)]++
}

func (c *counters) fill(s *Stats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s.Submitted = c.submitted
	s.Succeeded = c.succeeded
	s.Failed = c.failed
	s.FailedByKind = maps.Clone(c.failedByKind)
	s.Wins = maps.Clone(c.wins)
}
