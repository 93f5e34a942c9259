package mcp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/emmett/voxrec/internal/audio"
	"github.com/emmett/voxrec/internal/audio/audiotest"
	"github.com/emmett/voxrec/internal/recording"
	"github.com/emmett/voxrec/internal/wave"
)

var testFormat = audio.Format{Channels: 1, SampleRate: 8000, SampleFormat: audio.SampleFormatS16}

func connect(t *testing.T, lister DeviceLister) (*sdk.ClientSession, *audiotest.Source) {
	t.Helper()
	ctx := context.Background()

	src := audiotest.NewPlayingSource(testFormat)
	rec := recording.New(src, recording.Options{PollInterval: time.Millisecond})
	srv := NewServer(Config{ServerName: "voxrec-test", ServerVersion: "v0.0.0", ListDevices: lister}, rec, nil)

	serverTransport, clientTransport := sdk.NewInMemoryTransports()
	ss, err := srv.mcpServer.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect failed: %v", err)
	}
	t.Cleanup(func() { _ = ss.Close() })

	client := sdk.NewClient(&sdk.Implementation{Name: "test-client", Version: "v0.0.0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect failed: %v", err)
	}
	t.Cleanup(func() { _ = cs.Close() })

	return cs, src
}

func decode[T any](t *testing.T, res *sdk.CallToolResult) T {
	t.Helper()
	var out T
	raw, err := json.Marshal(res.StructuredContent)
	if err != nil {
		t.Fatalf("failed to marshal structured content: %v", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("failed to decode structured content %s: %v", raw, err)
	}
	return out
}

func callAsync(cs *sdk.ClientSession, name string, args map[string]any) <-chan *sdk.CallToolResult {
	done := make(chan *sdk.CallToolResult, 1)
	go func() {
		res, err := cs.CallTool(context.Background(), &sdk.CallToolParams{Name: name, Arguments: args})
		if err != nil {
			res = &sdk.CallToolResult{IsError: true, Content: []sdk.Content{&sdk.TextContent{Text: err.Error()}}}
		}
		done <- res
	}()
	return done
}

func waitResult(t *testing.T, done <-chan *sdk.CallToolResult) *sdk.CallToolResult {
	t.Helper()
	select {
	case res := <-done:
		if res.IsError {
			t.Fatalf("tool failed: %+v", res.Content)
		}
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("tool call did not finish")
		return nil
	}
}

func waitSubscribed(t *testing.T, src *audiotest.Source) {
	t.Helper()
	select {
	case <-src.Subscribed():
	case <-time.After(5 * time.Second):
		t.Fatal("recorder never subscribed")
	}
}

func TestListTools(t *testing.T) {
	cs, _ := connect(t, nil)

	res, err := cs.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("failed to list tools: %v", err)
	}

	names := map[string]bool{}
	for _, tool := range res.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"record_audio", "record_wave_file", "capture_status", "list_devices"} {
		if !names[want] {
			t.Errorf("expected tool %q to be registered", want)
		}
	}
}

func TestRecordAudioTool(t *testing.T) {
	cs, src := connect(t, nil)

	done := callAsync(cs, "record_audio", map[string]any{"duration": "250ms"})
	waitSubscribed(t, src)
	src.Push(audiotest.Pattern(5000, 0))

	out := decode[RecordingOutput](t, waitResult(t, done))
	if out.Outcome != string(recording.OutcomeCompleted) || out.Bytes != 4000 {
		t.Errorf("expected completed 4000 bytes, got %s %d", out.Outcome, out.Bytes)
	}

	pcm, err := base64.StdEncoding.DecodeString(out.Audio)
	if err != nil {
		t.Fatalf("invalid base64 audio: %v", err)
	}
	if !bytes.Equal(pcm, audiotest.Pattern(4000, 0)) {
		t.Errorf("unexpected audio payload of %d bytes", len(pcm))
	}
	if out.SampleRate != 8000 || out.SampleFormat != "s16" {
		t.Errorf("unexpected format in output: %+v", out)
	}
}

func TestRecordAudioRejectsBadDurations(t *testing.T) {
	cs, _ := connect(t, nil)

	for _, d := range []string{"soon", "-1s", "2m"} {
		t.Run(d, func(t *testing.T) {
			res, err := cs.CallTool(context.Background(), &sdk.CallToolParams{
				Name:      "record_audio",
				Arguments: map[string]any{"duration": d},
			})
			if err == nil && !res.IsError {
				t.Error("expected tool error")
			}
		})
	}
}

func TestRecordWaveFileTool(t *testing.T) {
	cs, src := connect(t, nil)
	path := filepath.Join(t.TempDir(), "tool.wav")

	done := callAsync(cs, "record_wave_file", map[string]any{"path": path, "duration": "500ms"})
	waitSubscribed(t, src)
	src.Push(audiotest.Pattern(8000, 0))

	out := decode[RecordingOutput](t, waitResult(t, done))
	if out.Path != path || out.Bytes != 8000 {
		t.Errorf("unexpected output %+v", out)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected wave file: %v", err)
	}
	if info.Size() != wave.HeaderSize+8000 {
		t.Errorf("expected %d bytes, got %d", wave.HeaderSize+8000, info.Size())
	}
}

func TestRecordWaveFileRequiresAbsolutePath(t *testing.T) {
	cs, _ := connect(t, nil)

	res, err := cs.CallTool(context.Background(), &sdk.CallToolParams{
		Name:      "record_wave_file",
		Arguments: map[string]any{"path": "relative.wav", "duration": "1s"},
	})
	if err == nil && !res.IsError {
		t.Error("expected tool error for relative path")
	}
}

func TestCaptureStatusTool(t *testing.T) {
	cs, _ := connect(t, nil)

	res, err := cs.CallTool(context.Background(), &sdk.CallToolParams{Name: "capture_status", Arguments: map[string]any{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := decode[StatusOutput](t, res)
	if out.Status != "playing" || out.Device != "test device" || out.Channels != 1 || out.Recording {
		t.Errorf("unexpected status %+v", out)
	}
}

func TestListDevicesTool(t *testing.T) {
	lister := func() ([]audio.DeviceInfo, error) {
		return []audio.DeviceInfo{
			{Index: 0, ID: "capture-0", Name: "Built-in Microphone", IsDefault: true},
			{Index: 1, ID: "capture-1", Name: "USB Audio Interface"},
		}, nil
	}
	cs, _ := connect(t, lister)

	res, err := cs.CallTool(context.Background(), &sdk.CallToolParams{Name: "list_devices", Arguments: map[string]any{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := decode[DevicesOutput](t, res)
	if len(out.Devices) != 2 || !out.Devices[0].IsDefault || out.Devices[1].ID != "capture-1" {
		t.Errorf("unexpected devices %+v", out.Devices)
	}
	if len(res.Content) != 3 {
		t.Errorf("expected header plus one line per device, got %d items", len(res.Content))
	}
}

func TestListDevicesToolError(t *testing.T) {
	cs, _ := connect(t, func() ([]audio.DeviceInfo, error) { return nil, errors.New("no backend") })

	res, err := cs.CallTool(context.Background(), &sdk.CallToolParams{Name: "list_devices", Arguments: map[string]any{}})
	if err == nil && !res.IsError {
		t.Error("expected tool error")
	}
}
