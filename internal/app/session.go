package app

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/emmett/voxrec/internal/audio"
	"github.com/emmett/voxrec/internal/logging"
	"github.com/emmett/voxrec/internal/metrics"
	"github.com/emmett/voxrec/internal/recording"
)

// SessionConfig holds configuration for a capture session
type SessionConfig struct {
	Device       string
	Format       audio.Format
	PollInterval time.Duration

	Logger  *zap.Logger
	Metrics *metrics.Metrics

	// Devices and Opener default to the system devices and malgo
	Devices *DeviceManager
	Opener  audio.Opener
}

// Session is an open, started capture device with a recorder on top
type Session struct {
	src audio.Source
	rec *recording.Recorder
	log *zap.Logger
}

// OpenSession selects the device, opens and starts it and wraps it in a
// recorder
func OpenSession(cfg SessionConfig) (*Session, error) {
	log := logging.OrNop(cfg.Logger)

	devices := cfg.Devices
	if devices == nil {
		devices = NewDeviceManager()
	}
	opener := cfg.Opener
	if opener == nil {
		opener = audio.MalgoOpener{}
	}

	device, err := devices.SelectDevice(cfg.Device)
	if err != nil {
		return nil, err
	}

	src, err := opener.Open(device, cfg.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture device '%s': %w", device.Name, err)
	}

	if err := src.Start(); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to start capture: %w", err), src.Close())
	}

	log.Info("capture session opened",
		zap.String("device", device.Name),
		zap.Stringer("format", cfg.Format))

	return &Session{
		src: src,
		rec: recording.New(src, recording.Options{
			PollInterval: cfg.PollInterval,
			Logger:       log,
			Metrics:      cfg.Metrics,
		}),
		log: log,
	}, nil
}

// Recorder returns the session's recorder
func (s *Session) Recorder() *recording.Recorder {
	return s.rec
}

// Source returns the session's capture source
func (s *Session) Source() audio.Source {
	return s.src
}

// Close stops the device and releases it
func (s *Session) Close() error {
	err := errors.Join(s.src.Stop(), s.src.Close())
	s.log.Info("capture session closed", zap.Error(err))
	return err
}
