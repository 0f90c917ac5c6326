// Package notify decouples the session from the layers that display its
// state. Upper layers register observers at construction time; the
// session publishes changes through the Broadcaster and never holds a
// reference to a consumer. This is the sole channel by which callers
// learn of session changes.
package notify

import (
	"sync"

	"github.com/cpenlink/cpenlink-go/pkg/connection"
	"github.com/cpenlink/cpenlink-go/pkg/discovery"
)

// Observers holds the callbacks a consumer registers. Nil callbacks are
// skipped. Callbacks are invoked synchronously, in the order the
// underlying changes occurred; they must not call back into the session
// and should return quickly.
type Observers struct {
	// OnStateChange is invoked on every connection state transition.
	OnStateChange func(oldState, newState connection.State)

	// OnValueChange is invoked when a new primary value is fetched.
	OnValueChange func(value string)

	// OnDeviceInfoChange is invoked when the device descriptor or
	// identity becomes known.
	OnDeviceInfoChange func(device discovery.DeviceDescriptor, deviceID string)
}

// Broadcaster fans session changes out to registered observers.
// Safe for concurrent use.
type Broadcaster struct {
	mu        sync.RWMutex
	observers []Observers
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// Register adds an observer set. There is no unregister; observers live
// as long as the session.
func (b *Broadcaster) Register(obs Observers) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, obs)
}

// StateChanged notifies all observers of a state transition.
func (b *Broadcaster) StateChanged(oldState, newState connection.State) {
	b.mu.RLock()
	observers := b.observers
	b.mu.RUnlock()

	for _, obs := range observers {
		if obs.OnStateChange != nil {
			obs.OnStateChange(oldState, newState)
		}
	}
}

// ValueChanged notifies all observers of a new primary value.
func (b *Broadcaster) ValueChanged(value string) {
	b.mu.RLock()
	observers := b.observers
	b.mu.RUnlock()

	for _, obs := range observers {
		if obs.OnValueChange != nil {
			obs.OnValueChange(value)
		}
	}
}

// DeviceInfoChanged notifies all observers of device identity updates.
func (b *Broadcaster) DeviceInfoChanged(device discovery.DeviceDescriptor, deviceID string) {
	b.mu.RLock()
	observers := b.observers
	b.mu.RUnlock()

	for _, obs := range observers {
		if obs.OnDeviceInfoChange != nil {
			obs.OnDeviceInfoChange(device, deviceID)
		}
	}
}
