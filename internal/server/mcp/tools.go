package mcp

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/emmett/voxrec/internal/config"
	"github.com/emmett/voxrec/internal/recording"
)

type RecordAudioArgs struct {
	Duration string `json:"duration" jsonschema:"How long to record, e.g. 5s or 1m30s"`
}

type RecordWaveFileArgs struct {
	Path     string `json:"path" jsonschema:"Absolute path of the WAV file to write; an existing file is replaced"`
	Duration string `json:"duration" jsonschema:"How long to record, e.g. 5s or 1m30s"`
}

type EmptyArgs struct{}

type RecordingOutput struct {
	Outcome      string `json:"outcome"`
	Bytes        int64  `json:"bytes"`
	TargetBytes  int64  `json:"target_bytes"`
	Fault        string `json:"fault,omitempty"`
	Channels     int    `json:"channels"`
	SampleRate   int    `json:"sample_rate"`
	SampleFormat string `json:"sample_format"`
	Path         string `json:"path,omitempty"`
	Audio        string `json:"audio,omitempty"`
}

type StatusOutput struct {
	Device       string `json:"device"`
	Status       string `json:"status"`
	Channels     int    `json:"channels"`
	SampleRate   int    `json:"sample_rate"`
	SampleFormat string `json:"sample_format"`
	Recording    bool   `json:"recording"`
}

type DeviceOutput struct {
	Index     int    `json:"index"`
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
}

type DevicesOutput struct {
	Devices []DeviceOutput `json:"devices"`
}

func (s *Server) handleRecordAudio(ctx context.Context, req *sdk.CallToolRequest, args RecordAudioArgs) (*sdk.CallToolResult, RecordingOutput, error) {
	d, err := config.ParseDuration(args.Duration)
	if err != nil {
		return nil, RecordingOutput{}, err
	}
	if d > MaxInlineDuration*time.Second {
		return nil, RecordingOutput{}, fmt.Errorf("duration %s exceeds the %ds inline limit, use record_wave_file", d, MaxInlineDuration)
	}

	var buf bytes.Buffer
	res, err := s.rec.RecordTo(ctx, &buf, d)
	if err != nil {
		return nil, RecordingOutput{}, fmt.Errorf("recording failed: %w", err)
	}

	out := recordingOutput(res)
	out.Audio = base64.StdEncoding.EncodeToString(buf.Bytes())

	s.log.Info("record_audio", zap.String("outcome", string(res.Outcome)), zap.Int64("bytes", res.Bytes))
	return &sdk.CallToolResult{
		Content: []sdk.Content{
			&sdk.TextContent{Text: summaryText(res)},
		},
	}, out, nil
}

func (s *Server) handleRecordWaveFile(ctx context.Context, req *sdk.CallToolRequest, args RecordWaveFileArgs) (*sdk.CallToolResult, RecordingOutput, error) {
	if !filepath.IsAbs(args.Path) {
		return nil, RecordingOutput{}, fmt.Errorf("path must be absolute: %s", args.Path)
	}
	d, err := config.ParseDuration(args.Duration)
	if err != nil {
		return nil, RecordingOutput{}, err
	}

	res, err := s.rec.RecordWaveFile(ctx, args.Path, d)
	if err != nil {
		return nil, RecordingOutput{}, fmt.Errorf("recording failed: %w", err)
	}

	out := recordingOutput(res)
	out.Path = args.Path

	return &sdk.CallToolResult{
		Content: []sdk.Content{
			&sdk.TextContent{Text: summaryText(res)},
			&sdk.TextContent{Text: fmt.Sprintf("Written to %s", args.Path)},
		},
	}, out, nil
}

func (s *Server) handleCaptureStatus(ctx context.Context, req *sdk.CallToolRequest, args EmptyArgs) (*sdk.CallToolResult, StatusOutput, error) {
	src := s.rec.Source()
	f := src.Format()
	_, _, busy := s.rec.Progress()

	out := StatusOutput{
		Device:       src.Device().Name,
		Status:       src.Status().String(),
		Channels:     f.Channels,
		SampleRate:   f.SampleRate,
		SampleFormat: f.SampleFormat.String(),
		Recording:    busy,
	}

	return &sdk.CallToolResult{
		Content: []sdk.Content{
			&sdk.TextContent{Text: fmt.Sprintf("%s is %s (%s)", out.Device, out.Status, f)},
		},
	}, out, nil
}

func (s *Server) handleListDevices(ctx context.Context, req *sdk.CallToolRequest, args EmptyArgs) (*sdk.CallToolResult, DevicesOutput, error) {
	devices, err := s.config.ListDevices()
	if err != nil {
		return nil, DevicesOutput{}, fmt.Errorf("failed to list devices: %w", err)
	}

	out := DevicesOutput{Devices: make([]DeviceOutput, 0, len(devices))}
	content := []sdk.Content{
		&sdk.TextContent{Text: fmt.Sprintf("Capture devices (%d):", len(devices))},
	}

	for _, device := range devices {
		out.Devices = append(out.Devices, DeviceOutput{
			Index:     device.Index,
			ID:        device.ID,
			Name:      device.Name,
			IsDefault: device.IsDefault,
		})
		content = append(content, &sdk.TextContent{Text: fmt.Sprintf("- %s", device)})
	}

	return &sdk.CallToolResult{Content: content}, out, nil
}

func recordingOutput(res recording.Result) RecordingOutput {
	out := RecordingOutput{
		Outcome:      string(res.Outcome),
		Bytes:        res.Bytes,
		TargetBytes:  res.Target,
		Channels:     res.Format.Channels,
		SampleRate:   res.Format.SampleRate,
		SampleFormat: res.Format.SampleFormat.String(),
	}
	if res.Fault != nil {
		out.Fault = res.Fault.Error()
	}
	return out
}

func summaryText(res recording.Result) string {
	text := fmt.Sprintf("Recording %s: %d of %d bytes (%s) in %s",
		res.Outcome, res.Bytes, res.Target, res.Format, res.Elapsed.Round(time.Millisecond))
	if res.Fault != nil {
		text += fmt.Sprintf(", fault: %v", res.Fault)
	}
	return text
}
