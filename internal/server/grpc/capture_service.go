package grpc

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/emmett/voxrec/internal/config"
	"github.com/emmett/voxrec/internal/logging"
	"github.com/emmett/voxrec/internal/recording"
)

// Trailer keys set on every finished Record stream
const (
	TrailerOutcome = "voxrec-outcome"
	TrailerBytes   = "voxrec-bytes"
	TrailerFault   = "voxrec-fault"
)

// DefaultChunkQueue is the number of captured buffers that may wait for the
// network before the recording faults
const DefaultChunkQueue = recording.DefaultQueueSize

// CaptureService serves recordings from one capture source
type CaptureService struct {
	rec   *recording.Recorder
	log   *zap.Logger
	queue int
}

// NewCaptureService creates the service; queue <= 0 uses DefaultChunkQueue
func NewCaptureService(rec *recording.Recorder, queue int, log *zap.Logger) *CaptureService {
	if queue <= 0 {
		queue = DefaultChunkQueue
	}
	return &CaptureService{rec: rec, log: logging.OrNop(log), queue: queue}
}

// Status describes the capture source
func (s *CaptureService) Status(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	src := s.rec.Source()
	f := src.Format()

	_, _, busy := s.rec.Progress()
	st, err := structpb.NewStruct(map[string]any{
		"device":        src.Device().Name,
		"device_id":     src.Device().ID,
		"status":        src.Status().String(),
		"channels":      f.Channels,
		"sample_rate":   f.SampleRate,
		"sample_format": f.SampleFormat.String(),
		"recording":     busy,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to build status: %v", err)
	}
	return st, nil
}

// Record captures the requested duration and streams the raw PCM as it
// arrives. The outcome is reported in the trailer.
func (s *CaptureService) Record(req *structpb.Struct, stream grpc.ServerStreamingServer[wrapperspb.BytesValue]) error {
	d, err := requestDuration(req)
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()

	chunks := make(chan []byte, s.queue)
	task := s.rec.RecordToAsync(ctx, &chanWriter{ch: chunks}, d)

	var sendErr error
	send := func(b []byte) {
		if sendErr != nil {
			return
		}
		if err := stream.Send(&wrapperspb.BytesValue{Value: b}); err != nil {
			sendErr = err
			cancel()
		}
	}

loop:
	for {
		select {
		case b := <-chunks:
			send(b)
		case <-task.Done():
			break loop
		}
	}

	// The handler is unsubscribed once the task is done, so the queue only
	// drains from here on.
	for drained := false; !drained; {
		select {
		case b := <-chunks:
			send(b)
		default:
			drained = true
		}
	}

	res, err := task.Wait()
	if err != nil {
		return recordError(err)
	}
	if sendErr != nil {
		return sendErr
	}

	trailer := metadata.Pairs(
		TrailerOutcome, string(res.Outcome),
		TrailerBytes, strconv.FormatInt(res.Bytes, 10),
	)
	if res.Fault != nil {
		trailer.Append(TrailerFault, res.Fault.Error())
	}
	stream.SetTrailer(trailer)

	s.log.Info("streamed recording",
		zap.String("outcome", string(res.Outcome)),
		zap.Int64("bytes", res.Bytes),
		zap.Duration("duration", d))
	return nil
}

func requestDuration(req *structpb.Struct) (time.Duration, error) {
	v, ok := req.GetFields()["duration"]
	if !ok {
		return 0, fmt.Errorf("missing duration")
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return config.ParseDuration(kind.StringValue)
	case *structpb.Value_NumberValue:
		if kind.NumberValue < 0 {
			return 0, fmt.Errorf("duration must not be negative")
		}
		return time.Duration(kind.NumberValue * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("duration must be a string or a number of seconds")
	}
}

func recordError(err error) error {
	switch {
	case errors.Is(err, recording.ErrInvalidState):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, recording.ErrBusy):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, recording.ErrInvalidDuration):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, recording.ErrBackpressure):
		return status.Error(codes.ResourceExhausted, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// chanWriter hands captured buffers to the streaming goroutine without
// blocking the driver thread
type chanWriter struct {
	ch chan<- []byte
}

func (w *chanWriter) Write(p []byte) (int, error) {
	b := make([]byte, len(p))
	copy(b, p)
	select {
	case w.ch <- b:
		return len(p), nil
	default:
		return 0, recording.ErrBackpressure
	}
}
