package audio

import (
	"sync"
)

// State is the lifecycle state of a capture source
type State int

const (
	// StateStopped is the initial and terminal state
	StateStopped State = iota

	// StatePlaying means the device is running and delivering buffers
	StatePlaying

	// StateFaulted means the device stopped without being asked to
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StateFaulted:
		return "faulted"
	}
	return "unknown"
}

// DataHandler receives newly captured bytes. It is called from the audio
// driver's thread, one invocation at a time, and must not block. data is only
// valid for the duration of the call.
type DataHandler func(data []byte, length int)

// SubscriptionID identifies a registered DataHandler
type SubscriptionID uint64

// Source is an open connection to a capture device with a bound format
type Source interface {
	// Device returns the device this source was opened on
	Device() DeviceInfo

	// Format returns the PCM layout of delivered buffers
	Format() Format

	// Status returns the current lifecycle state
	Status() State

	// Start begins delivering buffers to subscribers
	Start() error

	// Stop halts delivery
	Stop() error

	// Subscribe registers h for buffer-available notifications
	Subscribe(h DataHandler) SubscriptionID

	// Unsubscribe removes a handler. After it returns, the handler is never
	// invoked again. Unknown ids are ignored.
	Unsubscribe(id SubscriptionID)

	// Close releases the native device. It must be called exactly once by
	// the owner; later calls are no-ops.
	Close() error
}

// Opener opens capture sources on a device
type Opener interface {
	Open(device DeviceInfo, format Format) (Source, error)
}

// Dispatcher fans captured buffers out to subscribed handlers. Dispatch holds
// a read lock for the whole fan-out, so Unsubscribe waits for an in-flight
// dispatch and no handler runs after its Unsubscribe returns. Handlers must
// not call Unsubscribe themselves.
type Dispatcher struct {
	mu       sync.RWMutex
	nextID   SubscriptionID
	handlers map[SubscriptionID]DataHandler
}

// Subscribe registers a handler and returns its id
func (d *Dispatcher) Subscribe(h DataHandler) SubscriptionID {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.handlers == nil {
		d.handlers = make(map[SubscriptionID]DataHandler)
	}
	d.nextID++
	d.handlers[d.nextID] = h
	return d.nextID
}

// Unsubscribe removes a handler; removing an unknown id is a no-op
func (d *Dispatcher) Unsubscribe(id SubscriptionID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.handlers, id)
}

// Dispatch delivers one buffer to every subscriber
func (d *Dispatcher) Dispatch(data []byte, length int) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, h := range d.handlers {
		h(data, length)
	}
}

// Len returns the number of subscribed handlers
func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers)
}
