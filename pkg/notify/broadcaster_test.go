package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cpenlink/cpenlink-go/pkg/connection"
	"github.com/cpenlink/cpenlink-go/pkg/discovery"
)

func TestBroadcasterStateChanged(t *testing.T) {
	b := NewBroadcaster()

	var gotOld, gotNew connection.State
	b.Register(Observers{
		OnStateChange: func(oldState, newState connection.State) {
			gotOld, gotNew = oldState, newState
		},
	})

	b.StateChanged(connection.StateScanning, connection.StateConnecting)

	assert.Equal(t, connection.StateScanning, gotOld)
	assert.Equal(t, connection.StateConnecting, gotNew)
}

func TestBroadcasterValueChangeOrder(t *testing.T) {
	b := NewBroadcaster()

	var values []string
	b.Register(Observers{
		OnValueChange: func(v string) { values = append(values, v) },
	})

	b.ValueChanged("111111")
	b.ValueChanged("222222")
	b.ValueChanged("333333")

	assert.Equal(t, []string{"111111", "222222", "333333"}, values)
}

func TestBroadcasterDeviceInfoChanged(t *testing.T) {
	b := NewBroadcaster()

	var gotDevice discovery.DeviceDescriptor
	var gotID string
	b.Register(Observers{
		OnDeviceInfoChange: func(d discovery.DeviceDescriptor, id string) {
			gotDevice, gotID = d, id
		},
	})

	device := discovery.DeviceDescriptor{Name: "CpenA1", Address: "00:11:22:33:44:55"}
	b.DeviceInfoChanged(device, "cpen-001")

	assert.Equal(t, device, gotDevice)
	assert.Equal(t, "cpen-001", gotID)
}

func TestBroadcasterMultipleObservers(t *testing.T) {
	b := NewBroadcaster()

	calls := 0
	b.Register(Observers{OnValueChange: func(string) { calls++ }})
	b.Register(Observers{OnValueChange: func(string) { calls++ }})

	b.ValueChanged("123456")

	assert.Equal(t, 2, calls)
}

func TestBroadcasterNilCallbacksSkipped(t *testing.T) {
	b := NewBroadcaster()
	b.Register(Observers{})

	// Must not panic with nil callbacks
	assert.NotPanics(t, func() {
		b.StateChanged(connection.StateDisconnected, connection.StateScanning)
		b.ValueChanged("123456")
		b.DeviceInfoChanged(discovery.DeviceDescriptor{}, "")
	})
}

func TestBroadcasterNoObservers(t *testing.T) {
	b := NewBroadcaster()

	assert.NotPanics(t, func() {
		b.ValueChanged("123456")
	})
}
