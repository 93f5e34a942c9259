// Package audiotest provides a scripted capture source for tests.
package audiotest

import (
	"errors"
	"sync"

	"github.com/emmett/voxrec/internal/audio"
)

// Source is an in-memory audio.Source. Buffers are pushed explicitly with
// Push, from whatever goroutine the test chooses, which plays the role of the
// driver thread.
type Source struct {
	device audio.DeviceInfo
	format audio.Format

	dispatcher audio.Dispatcher

	mu          sync.Mutex
	state       audio.State
	closed      int
	subscribes  int
	startErr    error
	subscribed  chan struct{}
	unsubscribe chan struct{}
}

// NewSource returns a stopped source with the given format
func NewSource(format audio.Format) *Source {
	return &Source{
		device:      audio.DeviceInfo{Index: 0, ID: "capture-0", Name: "test device", IsDefault: true},
		format:      format,
		subscribed:  make(chan struct{}, 16),
		unsubscribe: make(chan struct{}, 16),
	}
}

// NewPlayingSource returns a source already in the playing state
func NewPlayingSource(format audio.Format) *Source {
	s := NewSource(format)
	s.state = audio.StatePlaying
	return s
}

func (s *Source) Device() audio.DeviceInfo { return s.device }
func (s *Source) Format() audio.Format     { return s.format }

func (s *Source) Status() audio.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetStartError makes the next Start calls fail with err
func (s *Source) SetStartError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startErr = err
}

func (s *Source) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed > 0 {
		return errors.New("source closed")
	}
	if s.startErr != nil {
		return s.startErr
	}
	s.state = audio.StatePlaying
	return nil
}

func (s *Source) Stop() error {
	s.SetState(audio.StateStopped)
	return nil
}

// SetState forces a state transition, e.g. to simulate a device fault
func (s *Source) SetState(state audio.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *Source) Subscribe(h audio.DataHandler) audio.SubscriptionID {
	id := s.dispatcher.Subscribe(h)
	s.mu.Lock()
	s.subscribes++
	s.mu.Unlock()
	select {
	case s.subscribed <- struct{}{}:
	default:
	}
	return id
}

func (s *Source) Unsubscribe(id audio.SubscriptionID) {
	s.dispatcher.Unsubscribe(id)
	select {
	case s.unsubscribe <- struct{}{}:
	default:
	}
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	s.state = audio.StateStopped
	return nil
}

// Push delivers one buffer to the current subscribers
func (s *Source) Push(data []byte) {
	s.dispatcher.Dispatch(data, len(data))
}

// PushLength delivers a buffer with an explicit length, which may disagree
// with len(data)
func (s *Source) PushLength(data []byte, length int) {
	s.dispatcher.Dispatch(data, length)
}

// Subscribed is signalled every time a handler subscribes
func (s *Source) Subscribed() <-chan struct{} { return s.subscribed }

// Unsubscribed is signalled every time a handler unsubscribes
func (s *Source) Unsubscribed() <-chan struct{} { return s.unsubscribe }

// Subscribers returns the number of currently registered handlers
func (s *Source) Subscribers() int { return s.dispatcher.Len() }

// SubscribeCount returns how many times Subscribe was called
func (s *Source) SubscribeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribes
}

// CloseCount returns how many times Close was called
func (s *Source) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Opener hands out a prepared Source
type Opener struct {
	Source *Source
	Err    error
}

func (o *Opener) Open(device audio.DeviceInfo, format audio.Format) (audio.Source, error) {
	if o.Err != nil {
		return nil, o.Err
	}
	if o.Source == nil {
		o.Source = NewSource(format)
	}
	o.Source.device = device
	return o.Source, nil
}

// Pattern returns n bytes with a recognizable repeating pattern starting at
// offset
func Pattern(n, offset int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte((i + offset) % 251)
	}
	return b
}
