package statsink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alnah/go-docconv"
)

// Notes:
// - fakeStream captures XADD arguments; no Redis server is needed.
// - The real client is covered by NewRedisRecorder's address check only.

type fakeStream struct {
	args   []*redis.XAddArgs
	err    error
	closed bool
}

func (f *fakeStream) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.args = append(f.args, a)
	return redis.NewStringResult("1-0", f.err)
}

func (f *fakeStream) Close() error {
	f.closed = true
	return nil
}

// ----- TestRedisRecorder_Record - XADD shape -----

func TestRedisRecorder_Record(t *testing.T) {
	t.Parallel()

	fake := &fakeStream{}
	r := newRedisRecorder(fake, Config{})

	ev := docconv.Event{
		JobID:     "job-1",
		Class:     docconv.ClassPDFToImages,
		Success:   true,
		Strategy:  "raster-mupdf",
		ElapsedMs: 42,
		At:        time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := r.Record(context.Background(), ev); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if len(fake.args) != 1 {
		t.Fatalf("XAdd calls = %d, want 1", len(fake.args))
	}

	a := fake.args[0]
	if a.Stream != DefaultStream || a.MaxLen != DefaultMaxLen || !a.Approx {
		t.Errorf("XAddArgs = %+v", a)
	}
	values, ok := a.Values.(map[string]any)
	if !ok {
		t.Fatalf("Values type = %T", a.Values)
	}
	if values["job_id"] != "job-1" || values["class"] != "pdf-to-images" {
		t.Errorf("values = %v", values)
	}

	var decoded docconv.Event
	if err := json.Unmarshal(values["event"].([]byte), &decoded); err != nil {
		t.Fatalf("event payload: %v", err)
	}
	if decoded.Strategy != "raster-mupdf" || decoded.ElapsedMs != 42 {
		t.Errorf("decoded = %+v", decoded)
	}
}

// ----- TestRedisRecorder_Errors - failure paths -----

func TestRedisRecorder_Errors(t *testing.T) {
	t.Parallel()

	t.Run("xadd failure is returned", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("connection reset")
		r := newRedisRecorder(&fakeStream{err: boom}, Config{Stream: "s", MaxLen: 10})
		if err := r.Record(context.Background(), docconv.Event{}); !errors.Is(err, boom) {
			t.Errorf("Record() error = %v, want %v", err, boom)
		}
	})

	t.Run("empty address", func(t *testing.T) {
		t.Parallel()

		if _, err := NewRedisRecorder(Config{}); !errors.Is(err, ErrNoAddr) {
			t.Errorf("NewRedisRecorder() error = %v, want ErrNoAddr", err)
		}
	})

	t.Run("close delegates", func(t *testing.T) {
		t.Parallel()

		fake := &fakeStream{}
		r := newRedisRecorder(fake, Config{})
		_ = r.Close()
		if !fake.closed {
			t.Error("client not closed")
		}
	})
}
