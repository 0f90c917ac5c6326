// Package ble is the hardware-access layer consumed by the session
// manager. It exposes exactly three capabilities: scanning for nearby
// devices, connecting to one, and exchanging bytes with the connected
// device (writes plus unsolicited notifications).
//
// Pairing, GATT service enumeration, and wire encoding are handled by
// the underlying Bluetooth stack and are not part of this interface.
package ble

import (
	"context"
	"time"
)

// Cpen GATT identifiers, fixed by the device firmware.
const (
	// ServiceUUID is the Cpen command service.
	ServiceUUID = "d816e4c6-1b99-4da7-bcd5-7c37cc2642c4"

	// CharacteristicUUID is the command/notify characteristic within
	// ServiceUUID.
	CharacteristicUUID = "d816e4c7-1b99-4da7-bcd5-7c37cc2642c4"
)

// DefaultScanDuration is how long a discovery scan collects advertisements.
// The duration is fixed by this layer, not controllable by callers.
const DefaultScanDuration = 5 * time.Second

// Adapter provides device discovery and connection establishment.
type Adapter interface {
	// Scan performs a bounded discovery scan and returns one line per
	// discovered device, formatted "name - address". Devices that do not
	// advertise a name are reported as their bare address.
	Scan(ctx context.Context) ([]string, error)

	// Connect establishes a connection to the device at the given address
	// and prepares the Cpen characteristic for writes and notifications.
	Connect(ctx context.Context, address string) (Conn, error)
}

// Conn is an established connection to a device.
type Conn interface {
	// Write sends raw bytes to the command characteristic.
	Write(ctx context.Context, data []byte) error

	// Notifications returns the channel carrying unsolicited payloads
	// pushed by the device. The channel is closed when the connection
	// closes.
	Notifications() <-chan []byte

	// Close tears down the connection. Safe to call multiple times.
	Close() error
}
