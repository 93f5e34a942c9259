// Package recording turns the push-style buffers of a capture source into
// duration-bounded byte streams and WAV files.
package recording

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/emmett/voxrec/internal/audio"
	"github.com/emmett/voxrec/internal/logging"
	"github.com/emmett/voxrec/internal/metrics"
	"github.com/emmett/voxrec/internal/tempfile"
	"github.com/emmett/voxrec/internal/wave"
)

// DefaultPollInterval is how often a waiting recording re-checks its exit
// conditions. Cancellation is observed immediately; source stops and faults
// are observed within one interval.
const DefaultPollInterval = 10 * time.Millisecond

// maxPrealloc bounds the buffer reserved up front by Record
const maxPrealloc = 64 << 20

// Outcome describes why a recording ended
type Outcome string

const (
	OutcomeCompleted     Outcome = "completed"
	OutcomeSourceStopped Outcome = "source_stopped"
	OutcomeFaulted       Outcome = "faulted"
	OutcomeCancelled     Outcome = "cancelled"
)

// Result summarizes a finished recording
type Result struct {
	// Bytes is the number of PCM bytes forwarded to the sink
	Bytes int64

	// Target is the byte count the duration asked for
	Target int64

	Outcome Outcome

	// Fault holds the cause of an OutcomeFaulted that was not a sink error,
	// such as ErrMalformedBuffer
	Fault error

	Format  audio.Format
	Elapsed time.Duration
}

// Options configures a Recorder
type Options struct {
	PollInterval time.Duration
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
}

// Recorder runs recordings against one capture source. Only one recording
// may run at a time; concurrent calls fail with ErrBusy.
type Recorder struct {
	src     audio.Source
	poll    time.Duration
	log     *zap.Logger
	metrics *metrics.Metrics

	busy   atomic.Bool
	active atomic.Pointer[aggregator]
}

// New creates a Recorder for src
func New(src audio.Source, opts Options) *Recorder {
	poll := opts.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Recorder{
		src:     src,
		poll:    poll,
		log:     logging.OrNop(opts.Logger).With(zap.String("device", src.Device().Name)),
		metrics: opts.Metrics,
	}
}

// Source returns the capture source
func (r *Recorder) Source() audio.Source {
	return r.src
}

// Progress reports the bytes captured so far by the running recording and
// its target. ok is false when no recording is running.
func (r *Recorder) Progress() (captured, target int64, ok bool) {
	agg := r.active.Load()
	if agg == nil {
		return 0, 0, false
	}
	return agg.read.Load(), agg.target, true
}

// TargetBytes returns the byte count for d at format f. The product is taken
// in floating point and truncated, so fractional durations may land inside a
// frame.
func TargetBytes(d time.Duration, f audio.Format) int64 {
	return int64(d.Seconds() * float64(f.Channels) * float64(f.SampleRate) * float64(f.SampleFormat.BlockAlign()))
}

// Record captures d worth of audio and returns the raw PCM bytes. On
// cancellation, a source stop or a malformed buffer it returns what was
// captured so far.
func (r *Recorder) Record(ctx context.Context, d time.Duration) ([]byte, error) {
	release, err := r.begin(d)
	if err != nil {
		return nil, err
	}
	defer release()

	var buf bytes.Buffer
	buf.Grow(int(min(TargetBytes(d, r.src.Format()), maxPrealloc)))

	if _, err := r.aggregate(ctx, &buf, d); err != nil {
		return buf.Bytes(), err
	}
	return buf.Bytes(), nil
}

// RecordTo captures d worth of raw PCM into w
func (r *Recorder) RecordTo(ctx context.Context, w io.Writer, d time.Duration) (Result, error) {
	release, err := r.begin(d)
	if err != nil {
		return Result{}, err
	}
	defer release()

	return r.aggregate(ctx, w, d)
}

// RecordWave captures d worth of audio into ws as a WAV stream
func (r *Recorder) RecordWave(ctx context.Context, ws io.WriteSeeker, d time.Duration) (Result, error) {
	release, err := r.begin(d)
	if err != nil {
		return Result{}, err
	}
	defer release()

	return r.recordWave(ctx, ws, d)
}

// RecordWaveFile captures d worth of audio into a WAV file at path. The file
// is staged beside path and only replaces it once fully written; on error
// path is left untouched.
func (r *Recorder) RecordWaveFile(ctx context.Context, path string, d time.Duration) (Result, error) {
	release, err := r.begin(d)
	if err != nil {
		return Result{}, err
	}
	defer release()

	var res Result
	err = tempfile.Write(path, func(f *os.File) error {
		var recErr error
		res, recErr = r.recordWave(ctx, f, d)
		return recErr
	})
	if err != nil {
		return res, err
	}

	r.log.Info("wave file written", zap.String("path", path), zap.Int64("bytes", res.Bytes))
	return res, nil
}

// RecordRawFile captures d worth of raw PCM into a file at path, staged the
// same way as RecordWaveFile
func (r *Recorder) RecordRawFile(ctx context.Context, path string, d time.Duration) (Result, error) {
	release, err := r.begin(d)
	if err != nil {
		return Result{}, err
	}
	defer release()

	var res Result
	err = tempfile.Write(path, func(f *os.File) error {
		var recErr error
		res, recErr = r.aggregate(ctx, f, d)
		return recErr
	})
	if err != nil {
		return res, err
	}

	r.log.Info("raw file written", zap.String("path", path), zap.Int64("bytes", res.Bytes))
	return res, nil
}

func (r *Recorder) recordWave(ctx context.Context, ws io.WriteSeeker, d time.Duration) (Result, error) {
	w, err := wave.NewWriter(ws, r.src.Format())
	if err != nil {
		return Result{}, err
	}

	res, recErr := r.aggregate(ctx, w, d)
	if err := w.Close(); err != nil && recErr == nil {
		recErr = err
	}
	return res, recErr
}

// begin checks the preconditions and claims the recorder
func (r *Recorder) begin(d time.Duration) (func(), error) {
	if status := r.src.Status(); status != audio.StatePlaying {
		return nil, fmt.Errorf("%w %s from device '%s'", ErrInvalidState, status, r.src.Device().Name)
	}
	if d < 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDuration, d)
	}
	if !r.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	return func() { r.busy.Store(false) }, nil
}

// aggregate subscribes to the source and blocks until the target is
// reached, the source stops, the aggregator faults, or ctx is done. The
// handler is always unsubscribed before it returns.
func (r *Recorder) aggregate(ctx context.Context, w io.Writer, d time.Duration) (Result, error) {
	format := r.src.Format()
	res := Result{
		Target: TargetBytes(d, format),
		Format: format,
	}
	if res.Target <= 0 {
		res.Outcome = OutcomeCompleted
		return res, nil
	}

	agg := &aggregator{
		ctx:     ctx,
		sink:    w,
		target:  res.Target,
		log:     r.log,
		metrics: r.metrics,
	}

	r.active.Store(agg)
	defer r.active.Store(nil)

	start := time.Now()
	id := r.src.Subscribe(agg.handle)
	r.wait(ctx, agg)
	r.src.Unsubscribe(id)

	res.Bytes = agg.read.Load()
	res.Elapsed = time.Since(start)

	switch {
	case res.Bytes >= res.Target:
		res.Outcome = OutcomeCompleted
	case agg.faulted.Load():
		res.Outcome = OutcomeFaulted
		if agg.writeErr == nil {
			res.Fault = agg.fault
		}
	case ctx.Err() != nil:
		res.Outcome = OutcomeCancelled
	default:
		res.Outcome = OutcomeSourceStopped
	}

	r.metrics.ObserveRecording(string(res.Outcome), res.Bytes, res.Elapsed.Seconds())
	r.log.Debug("recording finished",
		zap.String("outcome", string(res.Outcome)),
		zap.Int64("bytes", res.Bytes),
		zap.Int64("target", res.Target),
		zap.Duration("elapsed", res.Elapsed))

	if agg.writeErr != nil {
		return res, agg.fault
	}
	return res, nil
}

// wait polls the exit conditions. It wakes immediately on cancellation.
func (r *Recorder) wait(ctx context.Context, agg *aggregator) {
	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	for ctx.Err() == nil && r.src.Status() == audio.StatePlaying && !agg.done() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
