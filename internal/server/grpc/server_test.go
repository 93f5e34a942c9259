package grpc

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/emmett/voxrec/internal/audio"
	"github.com/emmett/voxrec/internal/audio/audiotest"
	"github.com/emmett/voxrec/internal/recording"
	"github.com/emmett/voxrec/internal/wave"
)

var testFormat = audio.Format{Channels: 1, SampleRate: 8000, SampleFormat: audio.SampleFormatS16}

type testEnv struct {
	src    *audiotest.Source
	client *Client
	conn   *grpc.ClientConn
}

func newTestEnv(t *testing.T, queue int) *testEnv {
	t.Helper()

	src := audiotest.NewPlayingSource(testFormat)
	rec := recording.New(src, recording.Options{PollInterval: time.Millisecond})
	srv := NewServer(Config{ChunkQueue: queue}, rec, nil)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	client, err := Dial("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return &testEnv{src: src, client: client, conn: client.conn}
}

func waitSubscribed(t *testing.T, src *audiotest.Source) {
	t.Helper()
	select {
	case <-src.Subscribed():
	case <-time.After(5 * time.Second):
		t.Fatal("recorder never subscribed")
	}
}

type recordResult struct {
	res RemoteResult
	err error
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t, 0)

	st, err := env.client.Status(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Format != testFormat {
		t.Errorf("expected %s, got %s", testFormat, st.Format)
	}
	if st.Status != "playing" || st.Device != "test device" || st.Recording {
		t.Errorf("unexpected status %+v", st)
	}

	health, err := healthpb.NewHealthClient(env.conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: CaptureServiceName})
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if health.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("expected SERVING, got %s", health.GetStatus())
	}
}

func TestRecordStreamsExactBytes(t *testing.T) {
	env := newTestEnv(t, 0)

	var buf bytes.Buffer
	done := make(chan recordResult, 1)
	go func() {
		res, err := env.client.Record(context.Background(), 500*time.Millisecond, &buf)
		done <- recordResult{res, err}
	}()

	waitSubscribed(t, env.src)
	env.src.Push(audiotest.Pattern(3000, 0))
	env.src.Push(audiotest.Pattern(3000, 1))
	env.src.Push(audiotest.Pattern(3000, 2))

	var got recordResult
	select {
	case got = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("remote recording did not finish")
	}
	if got.err != nil {
		t.Fatalf("unexpected error: %v", got.err)
	}
	if got.res.Outcome != recording.OutcomeCompleted || got.res.Bytes != 8000 {
		t.Errorf("expected completed 8000 bytes, got %s %d", got.res.Outcome, got.res.Bytes)
	}

	var want []byte
	want = append(want, audiotest.Pattern(3000, 0)...)
	want = append(want, audiotest.Pattern(3000, 1)...)
	want = append(want, audiotest.Pattern(3000, 2)[:2000]...)
	if !bytes.Equal(buf.Bytes(), want) {
		t.Error("streamed bytes differ from captured prefix")
	}
}

func TestRecordReportsSourceStop(t *testing.T) {
	env := newTestEnv(t, 0)

	var buf bytes.Buffer
	done := make(chan recordResult, 1)
	go func() {
		res, err := env.client.Record(context.Background(), time.Second, &buf)
		done <- recordResult{res, err}
	}()

	waitSubscribed(t, env.src)
	env.src.Push(audiotest.Pattern(1000, 0))
	env.src.SetState(audio.StateStopped)

	got := <-done
	if got.err != nil {
		t.Fatalf("unexpected error: %v", got.err)
	}
	if got.res.Outcome != recording.OutcomeSourceStopped || got.res.Bytes != 1000 {
		t.Errorf("expected source_stopped 1000 bytes, got %s %d", got.res.Outcome, got.res.Bytes)
	}
}

func TestRecordErrorCodes(t *testing.T) {
	env := newTestEnv(t, 0)
	capture := NewCaptureClient(env.conn)

	recv := func(req map[string]any) error {
		st, err := structpb.NewStruct(req)
		if err != nil {
			t.Fatal(err)
		}
		stream, err := capture.Record(context.Background(), st)
		if err != nil {
			return err
		}
		_, err = stream.Recv()
		return err
	}

	tests := []struct {
		name string
		req  map[string]any
		code codes.Code
	}{
		{"missing duration", map[string]any{}, codes.InvalidArgument},
		{"unparsable duration", map[string]any{"duration": "soon"}, codes.InvalidArgument},
		{"negative seconds", map[string]any{"duration": -1.0}, codes.InvalidArgument},
		{"wrong type", map[string]any{"duration": true}, codes.InvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := status.Code(recv(tt.req)); got != tt.code {
				t.Errorf("expected %s, got %s", tt.code, got)
			}
		})
	}

	t.Run("source not playing", func(t *testing.T) {
		env.src.SetState(audio.StateStopped)
		defer env.src.SetState(audio.StatePlaying)

		if got := status.Code(recv(map[string]any{"duration": "1s"})); got != codes.FailedPrecondition {
			t.Errorf("expected %s, got %s", codes.FailedPrecondition, got)
		}
	})
}

func TestRecordBusy(t *testing.T) {
	env := newTestEnv(t, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan recordResult, 1)
	go func() {
		res, err := env.client.Record(ctx, time.Minute, &bytes.Buffer{})
		done <- recordResult{res, err}
	}()
	waitSubscribed(t, env.src)

	_, err := env.client.Record(context.Background(), time.Second, &bytes.Buffer{})
	if status.Code(err) != codes.Unavailable {
		t.Errorf("expected %s, got %v", codes.Unavailable, err)
	}

	cancel()
	got := <-done
	if got.err != nil {
		t.Fatalf("cancelled recording should not fail, got %v", got.err)
	}
	if got.res.Outcome != recording.OutcomeCancelled {
		t.Errorf("expected %s, got %s", recording.OutcomeCancelled, got.res.Outcome)
	}
}

func TestChanWriterBackpressure(t *testing.T) {
	ch := make(chan []byte, 1)
	w := &chanWriter{ch: ch}

	src := []byte{1, 2, 3}
	if _, err := w.Write(src); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	src[0] = 9
	if got := <-ch; got[0] != 1 {
		t.Error("expected writer to copy the buffer")
	}

	_, _ = w.Write(src)
	if _, err := w.Write(src); !errors.Is(err, recording.ErrBackpressure) {
		t.Errorf("expected ErrBackpressure, got %v", err)
	}
}

func TestClientRecordWaveFile(t *testing.T) {
	env := newTestEnv(t, 0)
	path := filepath.Join(t.TempDir(), "remote.wav")

	done := make(chan recordResult, 1)
	go func() {
		res, err := env.client.RecordWaveFile(context.Background(), path, 250*time.Millisecond)
		done <- recordResult{res, err}
	}()

	waitSubscribed(t, env.src)
	env.src.Push(audiotest.Pattern(4000, 0))

	got := <-done
	if got.err != nil {
		t.Fatalf("unexpected error: %v", got.err)
	}
	if got.res.Format != testFormat {
		t.Errorf("expected format %s, got %s", testFormat, got.res.Format)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected wave file: %v", err)
	}
	if info.Size() != wave.HeaderSize+4000 {
		t.Errorf("expected %d bytes, got %d", wave.HeaderSize+4000, info.Size())
	}
}
