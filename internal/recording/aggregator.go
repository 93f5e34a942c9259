package recording

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/emmett/voxrec/internal/metrics"
)

// aggregator is the per-call state shared between the driver thread, which
// runs handle, and the polling caller. Only handle writes read and faulted;
// the caller only loads them. fault and writeErr are set before faulted is
// stored and are read by the caller after Unsubscribe has returned.
type aggregator struct {
	ctx     context.Context
	sink    io.Writer
	target  int64
	log     *zap.Logger
	metrics *metrics.Metrics

	read    atomic.Int64
	faulted atomic.Bool

	fault    error
	writeErr error
}

// handle must never panic or block on the driver thread
func (a *aggregator) handle(data []byte, length int) {
	defer func() {
		if p := recover(); p != nil {
			a.fail(fmt.Errorf("capture handler panic: %v", p), nil)
		}
	}()

	if a.faulted.Load() || a.ctx.Err() != nil {
		return
	}

	if length <= 0 || length > len(data) {
		a.metrics.MalformedBuffer()
		a.fail(fmt.Errorf("%w: length %d, buffer %d bytes", ErrMalformedBuffer, length, len(data)), nil)
		return
	}

	read := a.read.Load()
	if read >= a.target {
		return
	}

	n := int64(length)
	if remaining := a.target - read; n > remaining {
		n = remaining
	}

	if _, err := a.sink.Write(data[:n]); err != nil {
		a.fail(fmt.Errorf("failed to write captured audio: %w", err), err)
		return
	}
	a.read.Store(read + n)
}

func (a *aggregator) fail(fault, writeErr error) {
	a.fault = fault
	a.writeErr = writeErr
	a.faulted.Store(true)
	a.log.Warn("capture aggregation faulted", zap.Error(fault), zap.Int64("bytes", a.read.Load()))
}

func (a *aggregator) done() bool {
	return a.read.Load() >= a.target || a.faulted.Load()
}
