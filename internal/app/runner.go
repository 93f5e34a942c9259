package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/emmett/voxrec/internal/logging"
	"github.com/emmett/voxrec/internal/output"
	"github.com/emmett/voxrec/internal/recording"
)

// StdoutPath selects standard output as the recording destination
const StdoutPath = "-"

const progressInterval = 200 * time.Millisecond

// RecordConfig holds configuration for one CLI recording
type RecordConfig struct {
	Duration time.Duration

	// Output is a file path or StdoutPath. Standard output only carries raw
	// PCM because WAV needs a seekable destination.
	Output string
	Raw    bool

	// Hotkey stops the recording early when pressed; empty disables it
	Hotkey string

	// SummaryFormat is "text" or "json"
	SummaryFormat string
}

// Trigger fires a callback on some external event until stopped
type Trigger interface {
	Start(ctx context.Context, combo string) error
	Stop()
}

// RecordRunner runs one recording from the command line
type RecordRunner struct {
	rec    *recording.Recorder
	config RecordConfig
	log    *zap.Logger

	// Stdout receives raw PCM for StdoutPath and the summary otherwise
	Stdout io.Writer
	// Stderr receives status lines, and the summary when Stdout carries audio
	Stderr io.Writer

	// NewTrigger builds the hotkey trigger; nil disables hotkey support
	NewTrigger func(onPress func()) Trigger
}

// NewRecordRunner creates a runner recording through rec
func NewRecordRunner(rec *recording.Recorder, config RecordConfig, log *zap.Logger) *RecordRunner {
	return &RecordRunner{
		rec:    rec,
		config: config,
		log:    logging.OrNop(log),
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Run records until the duration elapses, the source stops or faults, ctx
// is cancelled, or the hotkey is pressed. Stopping early is not an error:
// whatever was captured is kept.
func (r *RecordRunner) Run(ctx context.Context) (output.Summary, error) {
	toStdout := r.config.Output == StdoutPath
	if toStdout && !r.config.Raw {
		return output.Summary{}, fmt.Errorf("wav output needs a file, use --raw to stream to stdout")
	}
	if r.config.Output == "" {
		return output.Summary{}, fmt.Errorf("no output specified")
	}

	summaryOut := r.Stdout
	if toStdout {
		summaryOut = r.Stderr
	}
	formatter, err := output.NewFormatter(r.config.SummaryFormat, summaryOut)
	if err != nil {
		return output.Summary{}, err
	}
	defer formatter.Close()

	status := output.NewConsoleOutput(output.ConsoleConfig{
		Writer:    r.Stderr,
		ErrWriter: r.Stderr,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if r.config.Hotkey != "" && r.NewTrigger == nil {
		status.Error("hotkeys are not supported here, ignoring --hotkey")
	} else if r.config.Hotkey != "" {
		trigger := r.NewTrigger(func() {
			r.log.Info("hotkey pressed, stopping recording")
			cancel()
		})
		if err := trigger.Start(ctx, r.config.Hotkey); err != nil {
			// The recording still works without the hotkey.
			status.Error(fmt.Sprintf("hotkey unavailable: %v", err))
		} else {
			defer trigger.Stop()
			status.Info(fmt.Sprintf("Press %s to stop early", r.config.Hotkey))
		}
	}

	src := r.rec.Source()
	status.Info(fmt.Sprintf("Recording %s from %s (%s)", r.config.Duration, src.Device().Name, src.Format()))

	var task *recording.Task[recording.Result]
	var queue *recording.QueueWriter
	switch {
	case toStdout:
		// A paused pipe reader must not stall the capture callback.
		queue = recording.NewQueueWriter(r.Stdout, recording.DefaultQueueSize)
		task = r.rec.RecordToAsync(ctx, queue, r.config.Duration)
	case r.config.Raw:
		task = r.rec.RecordRawFileAsync(ctx, r.config.Output, r.config.Duration)
	default:
		task = r.rec.RecordWaveFileAsync(ctx, r.config.Output, r.config.Duration)
	}

	res, err := r.waitWithProgress(task, status)
	if queue != nil {
		err = errors.Join(err, queue.Close())
	}
	if err != nil {
		return output.Summary{}, fmt.Errorf("recording failed: %w", err)
	}

	summary := Summarize(res, src.Device().Name, r.config.Duration)
	if !toStdout {
		summary.Output = r.config.Output
	}
	if err := formatter.WriteSummary(summary); err != nil {
		return summary, fmt.Errorf("failed to write summary: %w", err)
	}
	return summary, formatter.Flush()
}

func (r *RecordRunner) waitWithProgress(task *recording.Task[recording.Result], status *output.ConsoleOutput) (recording.Result, error) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-task.Done():
			res, err := task.Wait()
			_ = status.WriteProgress(res.Bytes, res.Target)
			_ = status.Finalize()
			return res, err
		case <-ticker.C:
			if captured, target, ok := r.rec.Progress(); ok {
				_ = status.WriteProgress(captured, target)
			}
		}
	}
}

// Summarize converts a recording result into a printable summary
func Summarize(res recording.Result, device string, requested time.Duration) output.Summary {
	s := output.Summary{
		Device:    device,
		Format:    res.Format.String(),
		Requested: requested,
		Elapsed:   res.Elapsed,
		Bytes:     res.Bytes,
		Target:    res.Target,
		Outcome:   string(res.Outcome),
		Timestamp: time.Now(),
	}
	if res.Fault != nil {
		s.Fault = res.Fault.Error()
	}
	return s
}
