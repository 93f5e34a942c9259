package audio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

var errSourceClosed = errors.New("capture source is closed")

// MalgoSource implements Source on a miniaudio capture device through malgo
type MalgoSource struct {
	device       DeviceInfo
	format       Format
	malgoContext *malgo.AllocatedContext
	dev          *malgo.Device
	dispatcher   Dispatcher

	state         atomic.Int32
	stopRequested atomic.Bool

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// OpenMalgoSource initializes the native device. The device does not deliver
// buffers until Start is called.
func OpenMalgoSource(device DeviceInfo, format Format) (*MalgoSource, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}

	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	s := &MalgoSource{
		device:       device,
		format:       format,
		malgoContext: malgoCtx,
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = format.SampleFormat.malgoFormat()
	deviceConfig.Capture.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.Alsa.NoMMap = 1
	if device.Index != DefaultDeviceIndex {
		id := device.native
		deviceConfig.Capture.DeviceID = id.Pointer()
	}

	callbacks := malgo.DeviceCallbacks{
		Data: s.onData,
		Stop: s.onStop,
	}

	dev, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = malgoCtx.Uninit()
		malgoCtx.Free()
		return nil, fmt.Errorf("failed to initialize device %q: %w", device.Name, err)
	}
	s.dev = dev

	return s, nil
}

// onData runs on the driver thread
func (s *MalgoSource) onData(_, pInputSamples []byte, _ uint32) {
	s.dispatcher.Dispatch(pInputSamples, len(pInputSamples))
}

func (s *MalgoSource) onStop() {
	if s.stopRequested.Load() {
		s.state.Store(int32(StateStopped))
		return
	}
	s.state.Store(int32(StateFaulted))
}

// Device returns the device this source was opened on
func (s *MalgoSource) Device() DeviceInfo { return s.device }

// Format returns the capture format
func (s *MalgoSource) Format() Format { return s.format }

// Status returns the current lifecycle state
func (s *MalgoSource) Status() State {
	return State(s.state.Load())
}

// Start begins audio capture
func (s *MalgoSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errSourceClosed
	}
	if s.Status() == StatePlaying {
		return nil
	}

	s.stopRequested.Store(false)
	if err := s.dev.Start(); err != nil {
		return fmt.Errorf("failed to start device %q: %w", s.device.Name, err)
	}
	s.state.Store(int32(StatePlaying))
	return nil
}

// Stop stops audio capture
func (s *MalgoSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errSourceClosed
	}
	return s.stopLocked()
}

func (s *MalgoSource) stopLocked() error {
	s.stopRequested.Store(true)
	if s.Status() != StatePlaying {
		s.state.Store(int32(StateStopped))
		return nil
	}
	if err := s.dev.Stop(); err != nil {
		return fmt.Errorf("failed to stop device %q: %w", s.device.Name, err)
	}
	s.state.Store(int32(StateStopped))
	return nil
}

// Subscribe registers h for captured buffers
func (s *MalgoSource) Subscribe(h DataHandler) SubscriptionID {
	return s.dispatcher.Subscribe(h)
}

// Unsubscribe removes a handler registered with Subscribe
func (s *MalgoSource) Unsubscribe(id SubscriptionID) {
	s.dispatcher.Unsubscribe(id)
}

// Close stops the device and releases the native handles
func (s *MalgoSource) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.closeErr = s.stopLocked()
		s.dev.Uninit()
		if err := s.malgoContext.Uninit(); err != nil && s.closeErr == nil {
			s.closeErr = fmt.Errorf("failed to uninitialize malgo context: %w", err)
		}
		s.malgoContext.Free()
		s.closed = true
	})
	return s.closeErr
}

// MalgoOpener opens MalgoSource instances
type MalgoOpener struct{}

// Open implements Opener
func (MalgoOpener) Open(device DeviceInfo, format Format) (Source, error) {
	return OpenMalgoSource(device, format)
}
