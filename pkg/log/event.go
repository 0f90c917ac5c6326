package log

import "time"

// Event represents a protocol log event.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"4,keyasint"`

	// DeviceAddress is the peer hardware address, when known.
	DeviceAddress string `cbor:"5,keyasint,omitempty"`

	// DeviceID is the device identity, once fetched.
	DeviceID string `cbor:"6,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Command     *CommandEvent     `cbor:"7,keyasint,omitempty"`  // Command round trip
	Push        *PushEvent        `cbor:"8,keyasint,omitempty"`  // Unsolicited device push
	StateChange *StateChangeEvent `cbor:"9,keyasint,omitempty"`  // Connection state
	Error       *ErrorEventData   `cbor:"10,keyasint,omitempty"` // Errors
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates data received from the device.
	DirectionIn Direction = 0
	// DirectionOut indicates data sent to the device.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryCommand indicates a command round trip.
	CategoryCommand Category = 0
	// CategoryPush indicates an unsolicited device push.
	CategoryPush Category = 1
	// CategoryState indicates a connection state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryCommand:
		return "COMMAND"
	case CategoryPush:
		return "PUSH"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// CommandEvent captures one command round trip.
type CommandEvent struct {
	// Command is the command string as written to the device.
	Command string `cbor:"1,keyasint"`

	// Response is the payload the device answered with, empty on timeout.
	Response string `cbor:"2,keyasint,omitempty"`

	// TimedOut indicates the round trip expired without a response.
	TimedOut bool `cbor:"3,keyasint,omitempty"`

	// RTT is the round trip time. Zero on timeout.
	RTT time.Duration `cbor:"4,keyasint,omitempty"`
}

// PushEvent captures an unsolicited payload from the device.
type PushEvent struct {
	// Payload is the pushed data.
	Payload string `cbor:"1,keyasint"`
}

// StateChangeEvent captures a connection state transition.
type StateChangeEvent struct {
	// OldState is the state before the transition.
	OldState string `cbor:"1,keyasint"`

	// NewState is the state after the transition.
	NewState string `cbor:"2,keyasint"`

	// Reason describes why the transition happened, if known.
	Reason string `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures an error at any layer.
type ErrorEventData struct {
	// Code is the structured status code name.
	Code string `cbor:"1,keyasint,omitempty"`

	// Message is the error text.
	Message string `cbor:"2,keyasint"`

	// Context describes what was being attempted.
	Context string `cbor:"3,keyasint,omitempty"`
}
