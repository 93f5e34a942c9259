package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/emmett/voxrec/internal/audio"
	"github.com/emmett/voxrec/internal/audio/audiotest"
	"github.com/emmett/voxrec/internal/output"
	"github.com/emmett/voxrec/internal/recording"
	"github.com/emmett/voxrec/internal/wave"
)

var testFormat = audio.Format{Channels: 1, SampleRate: 8000, SampleFormat: audio.SampleFormatS16}

func fakeDevices() []audio.DeviceInfo {
	return []audio.DeviceInfo{
		{Index: 0, ID: "capture-0", Name: "Built-in Microphone", IsDefault: true},
		{Index: 1, ID: "capture-1", Name: "USB Audio Interface"},
	}
}

func fakeManager(out *bytes.Buffer) *DeviceManager {
	return NewDeviceManagerWith(func() ([]audio.DeviceInfo, error) { return fakeDevices(), nil }, out)
}

func TestDeviceManagerSelectDevice(t *testing.T) {
	tests := []struct {
		query    string
		expected string
		wantErr  bool
	}{
		{"", "system default", false},
		{"1", "USB Audio Interface", false},
		{"capture-0", "Built-in Microphone", false},
		{"usb", "USB Audio Interface", false},
		{"bluetooth", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			dm := fakeManager(&bytes.Buffer{})
			got, err := dm.SelectDevice(tt.query)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if got.Name != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got.Name)
			}
		})
	}
}

func TestDeviceManagerListDevices(t *testing.T) {
	var out bytes.Buffer
	if err := fakeManager(&out).ListDevices(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"Found 2 capture device(s)", "0. Built-in Microphone [DEFAULT]", "ID: capture-1"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("expected %q in listing, got %q", want, out.String())
		}
	}

	empty := NewDeviceManagerWith(func() ([]audio.DeviceInfo, error) { return nil, nil }, &bytes.Buffer{})
	if err := empty.ListDevices(); err == nil {
		t.Error("expected error when no devices exist")
	}
}

func openTestSession(t *testing.T) (*Session, *audiotest.Source) {
	t.Helper()
	src := audiotest.NewSource(testFormat)
	sess, err := OpenSession(SessionConfig{
		Device:       "usb",
		Format:       testFormat,
		PollInterval: time.Millisecond,
		Devices:      fakeManager(&bytes.Buffer{}),
		Opener:       &audiotest.Opener{Source: src},
	})
	if err != nil {
		t.Fatalf("failed to open session: %v", err)
	}
	return sess, src
}

func TestOpenSessionStartsAndCloses(t *testing.T) {
	sess, src := openTestSession(t)

	if src.Status() != audio.StatePlaying {
		t.Errorf("expected playing source, got %s", src.Status())
	}
	if name := sess.Source().Device().Name; name != "USB Audio Interface" {
		t.Errorf("expected selected device, got %q", name)
	}

	if err := sess.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if src.CloseCount() != 1 {
		t.Errorf("expected source closed once, got %d", src.CloseCount())
	}
}

func TestOpenSessionStartFailureClosesSource(t *testing.T) {
	src := audiotest.NewSource(testFormat)
	startErr := errors.New("device busy")
	src.SetStartError(startErr)

	_, err := OpenSession(SessionConfig{
		Format:  testFormat,
		Devices: fakeManager(&bytes.Buffer{}),
		Opener:  &audiotest.Opener{Source: src},
	})
	if !errors.Is(err, startErr) {
		t.Fatalf("expected start error, got %v", err)
	}
	if src.CloseCount() != 1 {
		t.Errorf("expected source to be released, got %d closes", src.CloseCount())
	}
}

func TestOpenSessionOpenFailure(t *testing.T) {
	openErr := errors.New("no such device")
	_, err := OpenSession(SessionConfig{
		Format:  testFormat,
		Devices: fakeManager(&bytes.Buffer{}),
		Opener:  &audiotest.Opener{Err: openErr},
	})
	if !errors.Is(err, openErr) {
		t.Errorf("expected open error, got %v", err)
	}
}

type runResult struct {
	summary output.Summary
	err     error
}

func startRunner(r *RecordRunner) <-chan runResult {
	done := make(chan runResult, 1)
	go func() {
		s, err := r.Run(context.Background())
		done <- runResult{s, err}
	}()
	return done
}

func waitRun(t *testing.T, done <-chan runResult) runResult {
	t.Helper()
	select {
	case res := <-done:
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not finish")
		return runResult{}
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

func TestRecordRunnerWaveFile(t *testing.T) {
	sess, src := openTestSession(t)
	defer sess.Close()

	path := filepath.Join(t.TempDir(), "take.wav")
	var stdout, stderr bytes.Buffer
	r := NewRecordRunner(sess.Recorder(), RecordConfig{
		Duration:      time.Second,
		Output:        path,
		SummaryFormat: "json",
	}, nil)
	r.Stdout, r.Stderr = &stdout, &stderr

	done := startRunner(r)
	waitSubscribed(t, src)
	for i := 0; i < 4; i++ {
		src.Push(audiotest.Pattern(4000, i))
	}
	res := waitRun(t, done)
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}

	if res.summary.Outcome != string(recording.OutcomeCompleted) || res.summary.Bytes != 16000 {
		t.Errorf("unexpected summary %+v", res.summary)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected wave file: %v", err)
	}
	if info.Size() != wave.HeaderSize+16000 {
		t.Errorf("expected %d bytes, got %d", wave.HeaderSize+16000, info.Size())
	}

	var printed output.Summary
	if err := json.Unmarshal(stdout.Bytes(), &printed); err != nil {
		t.Fatalf("expected JSON summary on stdout, got %q: %v", stdout.String(), err)
	}
	if printed.Output != path {
		t.Errorf("expected output %q in summary, got %q", path, printed.Output)
	}
	if !strings.Contains(stderr.String(), "Recording 1s from USB Audio Interface") {
		t.Errorf("expected status line on stderr, got %q", stderr.String())
	}
}

func TestRecordRunnerRawStdout(t *testing.T) {
	sess, src := openTestSession(t)
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	r := NewRecordRunner(sess.Recorder(), RecordConfig{
		Duration: 250 * time.Millisecond,
		Output:   StdoutPath,
		Raw:      true,
	}, nil)
	r.Stdout, r.Stderr = &stdout, &stderr

	done := startRunner(r)
	waitSubscribed(t, src)
	src.Push(audiotest.Pattern(5000, 0))
	res := waitRun(t, done)
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}

	if !bytes.Equal(stdout.Bytes(), audiotest.Pattern(4000, 0)) {
		t.Errorf("expected 4000 raw bytes on stdout, got %d", stdout.Len())
	}
	if !strings.Contains(stderr.String(), "completed: 4000/4000 bytes") {
		t.Errorf("expected text summary on stderr, got %q", stderr.String())
	}
}

// stalledPipe blocks writes until released, like a paused reader on a pipe
type stalledPipe struct {
	release chan struct{}
	buf     bytes.Buffer
}

func (p *stalledPipe) Write(b []byte) (int, error) {
	<-p.release
	return p.buf.Write(b)
}

func TestRecordRunnerStalledStdoutDoesNotBlockCapture(t *testing.T) {
	sess, src := openTestSession(t)
	defer sess.Close()

	pipe := &stalledPipe{release: make(chan struct{})}
	var stderr bytes.Buffer
	r := NewRecordRunner(sess.Recorder(), RecordConfig{
		Duration: 250 * time.Millisecond,
		Output:   StdoutPath,
		Raw:      true,
	}, nil)
	r.Stdout, r.Stderr = pipe, &stderr

	done := startRunner(r)
	waitSubscribed(t, src)

	pushed := make(chan struct{})
	go func() {
		src.Push(audiotest.Pattern(2000, 0))
		src.Push(audiotest.Pattern(2000, 1))
		close(pushed)
	}()
	select {
	case <-pushed:
	case <-time.After(5 * time.Second):
		t.Fatal("capture blocked on a stalled stdout")
	}

	close(pipe.release)
	res := waitRun(t, done)
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	if res.summary.Bytes != 4000 {
		t.Errorf("expected 4000 bytes, got %d", res.summary.Bytes)
	}

	expected := append(audiotest.Pattern(2000, 0), audiotest.Pattern(2000, 1)...)
	if !bytes.Equal(pipe.buf.Bytes(), expected) {
		t.Errorf("expected %d bytes on stdout, got %d", len(expected), pipe.buf.Len())
	}
}

func TestRecordRunnerRejectsWaveOnStdout(t *testing.T) {
	sess, _ := openTestSession(t)
	defer sess.Close()

	r := NewRecordRunner(sess.Recorder(), RecordConfig{Duration: time.Second, Output: StdoutPath}, nil)
	if _, err := r.Run(context.Background()); err == nil {
		t.Error("expected error for wav on stdout")
	}
}

type fakeTrigger struct {
	onPress func()
	started chan string
	stopped bool
}

func (f *fakeTrigger) Start(ctx context.Context, combo string) error {
	f.started <- combo
	return nil
}

func (f *fakeTrigger) Stop() { f.stopped = true }

func TestRecordRunnerHotkeyStopsEarly(t *testing.T) {
	sess, src := openTestSession(t)
	defer sess.Close()

	path := filepath.Join(t.TempDir(), "take.pcm")
	trigger := &fakeTrigger{started: make(chan string, 1)}
	var stdout, stderr bytes.Buffer
	r := NewRecordRunner(sess.Recorder(), RecordConfig{
		Duration: time.Second,
		Output:   path,
		Raw:      true,
		Hotkey:   "ctrl+shift+s",
	}, nil)
	r.Stdout, r.Stderr = &stdout, &stderr
	r.NewTrigger = func(onPress func()) Trigger {
		trigger.onPress = onPress
		return trigger
	}

	done := startRunner(r)
	if combo := <-trigger.started; combo != "ctrl+shift+s" {
		t.Errorf("expected hotkey combo, got %q", combo)
	}
	waitSubscribed(t, src)
	src.Push(audiotest.Pattern(4000, 0))
	trigger.onPress()

	res := waitRun(t, done)
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	if res.summary.Outcome != string(recording.OutcomeCancelled) || res.summary.Bytes != 4000 {
		t.Errorf("expected cancelled with 4000 bytes, got %s with %d", res.summary.Outcome, res.summary.Bytes)
	}
	if !trigger.stopped {
		t.Error("expected trigger to be stopped")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected partial raw file: %v", err)
	}
	if len(data) != 4000 {
		t.Errorf("expected 4000 bytes on disk, got %d", len(data))
	}
}

func TestSummarize(t *testing.T) {
	res := recording.Result{
		Bytes:   2000,
		Target:  16000,
		Outcome: recording.OutcomeFaulted,
		Fault:   recording.ErrMalformedBuffer,
		Format:  testFormat,
		Elapsed: time.Second,
	}
	s := Summarize(res, "mic", 2*time.Second)
	if s.Fault != recording.ErrMalformedBuffer.Error() {
		t.Errorf("expected fault text, got %q", s.Fault)
	}
	if s.Format != testFormat.String() || s.Requested != 2*time.Second {
		t.Errorf("unexpected summary %+v", s)
	}
}
