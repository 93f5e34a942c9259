package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/emmett/voxrec/internal/app"
	"github.com/emmett/voxrec/internal/config"
	"github.com/emmett/voxrec/internal/input"
	"github.com/emmett/voxrec/internal/logging"
	"github.com/emmett/voxrec/internal/output"
	"github.com/emmett/voxrec/internal/recording"
	grpcserver "github.com/emmett/voxrec/internal/server/grpc"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

var rootCmd = &cobra.Command{
	Use:           "voxrec",
	Short:         "Record audio from a capture device",
	Long:          `voxrec records a fixed duration of audio from a capture device into a WAV or raw PCM file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("voxrec v%s\n", Version)
		fmt.Printf("  Commit:  %s\n", GitCommit)
		fmt.Printf("  Branch:  %s\n", GitBranch)
		fmt.Printf("  Built:   %s\n", BuildTime)
	},
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio capture devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.NewDeviceManager().ListDevices()
	},
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record audio for a fixed duration",
	Long: `Record audio from the selected capture device. The recording stops when the
duration elapses, the device stops, Ctrl+C or the hotkey is pressed. Whatever
was captured until then is kept.`,
	Example: `  voxrec record -d 10s -o memo.wav
  voxrec record -d 1m --raw -o - | aplay -f S16_LE -r 16000
  voxrec record --server localhost:50051 -d 5s -o remote.wav`,
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(recordCmd)

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file (default: ~/.voxrecrc or /etc/voxrec/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")

	f := recordCmd.Flags()
	f.StringP("duration", "d", "", "Recording duration, e.g. 5s, 1m30s, 1h")
	f.StringP("output", "o", "", "Output file, or - for raw PCM on stdout")
	f.Bool("raw", false, "Write raw PCM instead of WAV")
	f.String("device", "", "Capture device index, ID or name (see 'voxrec devices')")
	f.Int("channels", 0, "Channel count")
	f.Int("sample-rate", 0, "Sample rate in Hz")
	f.String("sample-format", "", "Sample format: u8, s16, s24, s32, f32")
	f.String("hotkey", "", "Global hotkey that stops the recording early, e.g. ctrl+shift+s")
	f.String("format", "", "Summary format: text, json")
	f.String("server", "", "Record from a remote capture server at host:port")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies the flags that were set
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadWithFallback(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("duration") {
		cfg.Recording.Duration, _ = flags.GetString("duration")
	}
	if flags.Changed("output") {
		cfg.Recording.Output, _ = flags.GetString("output")
	}
	if flags.Changed("raw") {
		cfg.Recording.Raw, _ = flags.GetBool("raw")
	}
	if flags.Changed("device") {
		cfg.Audio.Device, _ = flags.GetString("device")
	}
	if flags.Changed("channels") {
		cfg.Audio.Channels, _ = flags.GetInt("channels")
	}
	if flags.Changed("sample-rate") {
		cfg.Audio.SampleRate, _ = flags.GetInt("sample-rate")
	}
	if flags.Changed("sample-format") {
		cfg.Audio.SampleFormat, _ = flags.GetString("sample-format")
	}
	if flags.Changed("hotkey") {
		cfg.Hotkey, _ = flags.GetString("hotkey")
	}
	if flags.Changed("format") {
		cfg.Output.Format, _ = flags.GetString("format")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(logging.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
}

func runRecord(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	d, err := cfg.RecordingDuration()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rc := app.RecordConfig{
		Duration:      d,
		Output:        cfg.Recording.Output,
		Raw:           cfg.Recording.Raw,
		Hotkey:        cfg.Hotkey,
		SummaryFormat: cfg.Output.Format,
	}

	if addr, _ := cmd.Flags().GetString("server"); addr != "" {
		return recordRemote(ctx, addr, rc)
	}

	format, err := cfg.AudioFormat()
	if err != nil {
		return err
	}

	session, err := app.OpenSession(app.SessionConfig{
		Device:       cfg.Audio.Device,
		Format:       format,
		PollInterval: cfg.Recording.PollInterval,
		Logger:       log,
	})
	if err != nil {
		return err
	}
	defer session.Close()

	runner := app.NewRecordRunner(session.Recorder(), rc, log)
	runner.NewTrigger = func(onPress func()) app.Trigger {
		return input.NewHotkeyManager(onPress)
	}

	_, err = runner.Run(ctx)
	return err
}

// recordRemote pulls the recording from a capture server and stores it
// locally
func recordRemote(ctx context.Context, addr string, rc app.RecordConfig) error {
	client, err := grpcserver.Dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	summaryOut := os.Stdout
	var res grpcserver.RemoteResult
	switch {
	case rc.Output == app.StdoutPath:
		if !rc.Raw {
			return fmt.Errorf("wav output needs a file, use --raw to stream to stdout")
		}
		summaryOut = os.Stderr
		st, statusErr := client.Status(ctx)
		if statusErr != nil {
			return statusErr
		}
		res, err = client.Record(ctx, rc.Duration, os.Stdout)
		res.Format = st.Format
	case rc.Raw:
		res, err = client.RecordRawFile(ctx, rc.Output, rc.Duration)
	default:
		res, err = client.RecordWaveFile(ctx, rc.Output, rc.Duration)
	}
	if err != nil {
		return err
	}

	formatter, err := output.NewFormatter(rc.SummaryFormat, summaryOut)
	if err != nil {
		return err
	}
	defer formatter.Close()

	summary := output.Summary{
		Device:    addr,
		Format:    res.Format.String(),
		Requested: rc.Duration,
		Elapsed:   res.Elapsed,
		Bytes:     res.Bytes,
		Target:    recording.TargetBytes(rc.Duration, res.Format),
		Outcome:   string(res.Outcome),
		Fault:     res.Fault,
		Timestamp: time.Now(),
	}
	if rc.Output != app.StdoutPath {
		summary.Output = rc.Output
	}
	return formatter.WriteSummary(summary)
}

