package recording

import (
	"context"
	"io"
	"time"
)

// Task is a recording running on its own goroutine. Wait returns exactly
// what the blocking call would have returned.
type Task[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func startTask[T any](fn func() (T, error)) *Task[T] {
	t := &Task[T]{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		t.val, t.err = fn()
	}()
	return t
}

// Done is closed when the recording has finished
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the recording has finished
func (t *Task[T]) Wait() (T, error) {
	<-t.done
	return t.val, t.err
}

// RecordAsync runs Record in the background
func (r *Recorder) RecordAsync(ctx context.Context, d time.Duration) *Task[[]byte] {
	return startTask(func() ([]byte, error) { return r.Record(ctx, d) })
}

// RecordToAsync runs RecordTo in the background
func (r *Recorder) RecordToAsync(ctx context.Context, w io.Writer, d time.Duration) *Task[Result] {
	return startTask(func() (Result, error) { return r.RecordTo(ctx, w, d) })
}

// RecordWaveAsync runs RecordWave in the background
func (r *Recorder) RecordWaveAsync(ctx context.Context, ws io.WriteSeeker, d time.Duration) *Task[Result] {
	return startTask(func() (Result, error) { return r.RecordWave(ctx, ws, d) })
}

// RecordWaveFileAsync runs RecordWaveFile in the background
func (r *Recorder) RecordWaveFileAsync(ctx context.Context, path string, d time.Duration) *Task[Result] {
	return startTask(func() (Result, error) { return r.RecordWaveFile(ctx, path, d) })
}

// RecordRawFileAsync runs RecordRawFile in the background
func (r *Recorder) RecordRawFileAsync(ctx context.Context, path string, d time.Duration) *Task[Result] {
	return startTask(func() (Result, error) { return r.RecordRawFile(ctx, path, d) })
}
