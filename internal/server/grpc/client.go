package grpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/emmett/voxrec/internal/audio"
	"github.com/emmett/voxrec/internal/recording"
	"github.com/emmett/voxrec/internal/tempfile"
	"github.com/emmett/voxrec/internal/wave"
)

// Client records from a remote capture server
type Client struct {
	conn    *grpc.ClientConn
	capture CaptureClient
}

// RemoteStatus is the decoded Status response
type RemoteStatus struct {
	Device    string
	DeviceID  string
	Status    string
	Format    audio.Format
	Recording bool
}

// RemoteResult summarizes a recording pulled from the server
type RemoteResult struct {
	Bytes   int64
	Outcome recording.Outcome
	Fault   string
	Format  audio.Format
	Elapsed time.Duration
}

// Dial connects to addr. Without options the connection is insecure.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return &Client{conn: conn, capture: NewCaptureClient(conn)}, nil
}

// Close closes the connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// Status fetches the server's capture source description
func (c *Client) Status(ctx context.Context) (RemoteStatus, error) {
	st, err := c.capture.Status(ctx, &emptypb.Empty{})
	if err != nil {
		return RemoteStatus{}, fmt.Errorf("failed to get status: %w", err)
	}

	fields := st.GetFields()
	sf, err := audio.ParseSampleFormat(fields["sample_format"].GetStringValue())
	if err != nil {
		return RemoteStatus{}, err
	}

	return RemoteStatus{
		Device:    fields["device"].GetStringValue(),
		DeviceID:  fields["device_id"].GetStringValue(),
		Status:    fields["status"].GetStringValue(),
		Recording: fields["recording"].GetBoolValue(),
		Format: audio.Format{
			Channels:     int(fields["channels"].GetNumberValue()),
			SampleRate:   int(fields["sample_rate"].GetNumberValue()),
			SampleFormat: sf,
		},
	}, nil
}

// Record streams d worth of raw PCM from the server into w. Cancelling ctx
// keeps what was received and reports OutcomeCancelled.
func (c *Client) Record(ctx context.Context, d time.Duration, w io.Writer) (RemoteResult, error) {
	req, err := structpb.NewStruct(map[string]any{"duration": d.String()})
	if err != nil {
		return RemoteResult{}, err
	}

	start := time.Now()
	stream, err := c.capture.Record(ctx, req)
	if err != nil {
		return RemoteResult{}, fmt.Errorf("failed to start remote recording: %w", err)
	}

	var res RemoteResult
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			res.Elapsed = time.Since(start)
			if status.Code(err) == codes.Canceled && ctx.Err() != nil {
				res.Outcome = recording.OutcomeCancelled
				return res, nil
			}
			return res, fmt.Errorf("remote recording failed: %w", err)
		}
		if _, err := w.Write(chunk.GetValue()); err != nil {
			return res, fmt.Errorf("failed to write captured audio: %w", err)
		}
		res.Bytes += int64(len(chunk.GetValue()))
	}

	res.Elapsed = time.Since(start)
	trailer := stream.Trailer()
	if v := trailer.Get(TrailerOutcome); len(v) > 0 {
		res.Outcome = recording.Outcome(v[0])
	}
	if v := trailer.Get(TrailerFault); len(v) > 0 {
		res.Fault = v[0]
	}
	if v := trailer.Get(TrailerBytes); len(v) > 0 {
		if n, err := strconv.ParseInt(v[0], 10, 64); err == nil && n != res.Bytes {
			return res, fmt.Errorf("remote recording truncated: got %d of %d bytes", res.Bytes, n)
		}
	}
	return res, nil
}

// RecordWaveFile pulls d worth of audio and stores it as a WAV file at path,
// staged through a temporary file
func (c *Client) RecordWaveFile(ctx context.Context, path string, d time.Duration) (RemoteResult, error) {
	st, err := c.Status(ctx)
	if err != nil {
		return RemoteResult{}, err
	}

	var res RemoteResult
	err = tempfile.Write(path, func(f *os.File) error {
		w, err := wave.NewWriter(f, st.Format)
		if err != nil {
			return err
		}
		res, err = c.Record(ctx, d, w)
		return errors.Join(err, w.Close())
	})
	res.Format = st.Format
	return res, err
}

// RecordRawFile pulls d worth of raw PCM into a file at path
func (c *Client) RecordRawFile(ctx context.Context, path string, d time.Duration) (RemoteResult, error) {
	st, err := c.Status(ctx)
	if err != nil {
		return RemoteResult{}, err
	}

	var res RemoteResult
	err = tempfile.Write(path, func(f *os.File) error {
		var err error
		res, err = c.Record(ctx, d, f)
		return err
	})
	res.Format = st.Format
	return res, err
}
