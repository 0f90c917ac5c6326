package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger.
// Useful for development when you want to see protocol events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("conn_id", event.ConnectionID),
		slog.String("direction", event.Direction.String()),
		slog.String("category", event.Category.String()),
	}

	// Add optional identifiers
	if event.DeviceAddress != "" {
		attrs = append(attrs, slog.String("device_addr", event.DeviceAddress))
	}
	if event.DeviceID != "" {
		attrs = append(attrs, slog.String("device_id", event.DeviceID))
	}

	// Add type-specific attributes
	switch {
	case event.Command != nil:
		attrs = append(attrs,
			slog.String("command", event.Command.Command),
			slog.Bool("timed_out", event.Command.TimedOut),
		)
		if event.Command.Response != "" {
			attrs = append(attrs, slog.String("response", event.Command.Response))
		}
		if event.Command.RTT != 0 {
			attrs = append(attrs, slog.Duration("rtt", event.Command.RTT))
		}
	case event.Push != nil:
		attrs = append(attrs, slog.String("payload", event.Push.Payload))
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Code != "" {
			attrs = append(attrs, slog.String("error_code", event.Error.Code))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
