package recording

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// DefaultQueueSize is the number of captured buffers a QueueWriter holds
// before writes fail
const DefaultQueueSize = 256

// ErrBackpressure is returned by QueueWriter.Write when the consumer has
// fallen a full queue behind
var ErrBackpressure = errors.New("sink too slow, queue full")

// QueueWriter hands each write to a goroutine that forwards it to dst, so a
// stalled consumer never blocks the capture handler. Writes fail with
// ErrBackpressure when the queue is full and with the forwarding error once
// dst has failed.
type QueueWriter struct {
	dst   io.Writer
	queue chan []byte
	done  chan struct{}

	failed atomic.Bool
	mu     sync.Mutex
	err    error
}

// NewQueueWriter starts forwarding to dst; size <= 0 uses DefaultQueueSize
func NewQueueWriter(dst io.Writer, size int) *QueueWriter {
	if size <= 0 {
		size = DefaultQueueSize
	}
	q := &QueueWriter{
		dst:   dst,
		queue: make(chan []byte, size),
		done:  make(chan struct{}),
	}
	go q.drain()
	return q
}

// Write copies p and queues it without blocking
func (q *QueueWriter) Write(p []byte) (int, error) {
	if q.failed.Load() {
		return 0, q.forwardErr()
	}

	b := make([]byte, len(p))
	copy(b, p)
	select {
	case q.queue <- b:
		return len(p), nil
	default:
		return 0, ErrBackpressure
	}
}

// Close waits until every queued buffer is forwarded and returns the first
// forwarding error. It must not run concurrently with Write.
func (q *QueueWriter) Close() error {
	close(q.queue)
	<-q.done
	return q.forwardErr()
}

func (q *QueueWriter) drain() {
	defer close(q.done)
	for b := range q.queue {
		if q.failed.Load() {
			continue
		}
		if _, err := q.dst.Write(b); err != nil {
			q.mu.Lock()
			q.err = fmt.Errorf("failed to forward captured audio: %w", err)
			q.mu.Unlock()
			q.failed.Store(true)
		}
	}
}

func (q *QueueWriter) forwardErr() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}
