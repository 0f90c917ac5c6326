package log

import (
	"testing"
	"time"
)

func TestEventCBORRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC)
	original := Event{
		Timestamp:     ts,
		ConnectionID:  "abc12345-def6-7890-abcd-ef1234567890",
		Direction:     DirectionOut,
		Category:      CategoryCommand,
		DeviceAddress: "AA:BB:CC:DD:EE:FF",
		DeviceID:      "cpen-001",
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	// Compare fields
	if !decoded.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp: got %v, want %v", decoded.Timestamp, original.Timestamp)
	}
	if decoded.ConnectionID != original.ConnectionID {
		t.Errorf("ConnectionID: got %q, want %q", decoded.ConnectionID, original.ConnectionID)
	}
	if decoded.Direction != original.Direction {
		t.Errorf("Direction: got %v, want %v", decoded.Direction, original.Direction)
	}
	if decoded.Category != original.Category {
		t.Errorf("Category: got %v, want %v", decoded.Category, original.Category)
	}
	if decoded.DeviceAddress != original.DeviceAddress {
		t.Errorf("DeviceAddress: got %q, want %q", decoded.DeviceAddress, original.DeviceAddress)
	}
	if decoded.DeviceID != original.DeviceID {
		t.Errorf("DeviceID: got %q, want %q", decoded.DeviceID, original.DeviceID)
	}
}

func TestCommandEventCBORRoundTrip(t *testing.T) {
	original := Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Direction:    DirectionOut,
		Category:     CategoryCommand,
		Command: &CommandEvent{
			Command:  "getTotp",
			Response: "482913",
			RTT:      120 * time.Millisecond,
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.Command == nil {
		t.Fatal("Command is nil after decode")
	}
	if decoded.Command.Command != original.Command.Command {
		t.Errorf("Command: got %q, want %q", decoded.Command.Command, original.Command.Command)
	}
	if decoded.Command.Response != original.Command.Response {
		t.Errorf("Response: got %q, want %q", decoded.Command.Response, original.Command.Response)
	}
	if decoded.Command.TimedOut {
		t.Error("TimedOut: got true, want false")
	}
	if decoded.Command.RTT != original.Command.RTT {
		t.Errorf("RTT: got %v, want %v", decoded.Command.RTT, original.Command.RTT)
	}
}

func TestTimedOutCommandCBORRoundTrip(t *testing.T) {
	original := Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-456",
		Direction:    DirectionOut,
		Category:     CategoryCommand,
		Command: &CommandEvent{
			Command:  "getId",
			TimedOut: true,
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.Command == nil {
		t.Fatal("Command is nil after decode")
	}
	if !decoded.Command.TimedOut {
		t.Error("TimedOut: got false, want true")
	}
	if decoded.Command.Response != "" {
		t.Errorf("Response: got %q, want empty", decoded.Command.Response)
	}
}

func TestPushEventCBORRoundTrip(t *testing.T) {
	original := Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-789",
		Direction:    DirectionIn,
		Category:     CategoryPush,
		Push: &PushEvent{
			Payload: "buttonPressed",
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.Push == nil {
		t.Fatal("Push is nil after decode")
	}
	if decoded.Push.Payload != original.Push.Payload {
		t.Errorf("Payload: got %q, want %q", decoded.Push.Payload, original.Push.Payload)
	}
}

func TestStateChangeEventCBORRoundTrip(t *testing.T) {
	original := Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-abc",
		Category:     CategoryState,
		StateChange: &StateChangeEvent{
			OldState: "SCANNING",
			NewState: "CONNECTED",
			Reason:   "services resolved",
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.StateChange == nil {
		t.Fatal("StateChange is nil after decode")
	}
	if decoded.StateChange.OldState != "SCANNING" {
		t.Errorf("OldState: got %q, want %q", decoded.StateChange.OldState, "SCANNING")
	}
	if decoded.StateChange.NewState != "CONNECTED" {
		t.Errorf("NewState: got %q, want %q", decoded.StateChange.NewState, "CONNECTED")
	}
	if decoded.StateChange.Reason != "services resolved" {
		t.Errorf("Reason: got %q, want %q", decoded.StateChange.Reason, "services resolved")
	}
}

func TestErrorEventCBORRoundTrip(t *testing.T) {
	original := Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-def",
		Category:     CategoryError,
		Error: &ErrorEventData{
			Code:    "COMMAND_TIMEOUT",
			Message: "no response within 500ms",
			Context: "getTotp",
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.Error == nil {
		t.Fatal("Error is nil after decode")
	}
	if decoded.Error.Code != "COMMAND_TIMEOUT" {
		t.Errorf("Code: got %q, want %q", decoded.Error.Code, "COMMAND_TIMEOUT")
	}
	if decoded.Error.Message != "no response within 500ms" {
		t.Errorf("Message: got %q, want %q", decoded.Error.Message, "no response within 500ms")
	}
}

func TestDirectionString(t *testing.T) {
	tests := []struct {
		dir  Direction
		want string
	}{
		{DirectionIn, "IN"},
		{DirectionOut, "OUT"},
		{Direction(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.dir.String(); got != tt.want {
			t.Errorf("Direction(%d).String() = %q, want %q", tt.dir, got, tt.want)
		}
	}
}

func TestCategoryString(t *testing.T) {
	tests := []struct {
		cat  Category
		want string
	}{
		{CategoryCommand, "COMMAND"},
		{CategoryPush, "PUSH"},
		{CategoryState, "STATE"},
		{CategoryError, "ERROR"},
		{Category(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.cat.String(); got != tt.want {
			t.Errorf("Category(%d).String() = %q, want %q", tt.cat, got, tt.want)
		}
	}
}
