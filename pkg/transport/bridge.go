package transport

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/cpenlink/cpenlink-go/pkg/ble"
	"github.com/cpenlink/cpenlink-go/pkg/log"
)

// DefaultPushWait is how long Recv waits for an unsolicited push.
const DefaultPushWait = 2 * time.Second

// BridgeConfig configures a Bridge.
type BridgeConfig struct {
	// ConnectionID tags protocol log events.
	ConnectionID string

	// ProtocolLogger captures pushes. Nil disables capture.
	ProtocolLogger log.Logger

	// Logger is the operational logger. Nil discards.
	Logger *slog.Logger
}

// Bridge receives unsolicited pushes from the device. The device may
// send secondary data after a code fetch without being asked; the
// session drains it opportunistically through Recv.
type Bridge struct {
	conn   ble.Conn
	connID string
	plog   log.Logger
	logger *slog.Logger
}

// NewBridge creates a Bridge for an established connection.
func NewBridge(conn ble.Conn, config BridgeConfig) *Bridge {
	plog := config.ProtocolLogger
	if plog == nil {
		plog = log.NoopLogger{}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Bridge{
		conn:   conn,
		connID: config.ConnectionID,
		plog:   plog,
		logger: logger,
	}
}

// Recv waits up to timeout for the first push and returns its payload.
// Returns the empty string when the window expires or ctx is cancelled;
// receiving nothing is not an error. A non-positive timeout uses
// DefaultPushWait.
func (b *Bridge) Recv(ctx context.Context, timeout time.Duration) string {
	if timeout <= 0 {
		timeout = DefaultPushWait
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case payload, ok := <-b.conn.Notifications():
		if !ok {
			return ""
		}
		b.logger.Debug("received push", "payload", string(payload))
		b.plog.Log(log.Event{
			Timestamp:    time.Now(),
			ConnectionID: b.connID,
			Direction:    log.DirectionIn,
			Category:     log.CategoryPush,
			Push:         &log.PushEvent{Payload: string(payload)},
		})
		return string(payload)

	case <-timer.C:
		return ""

	case <-ctx.Done():
		return ""
	}
}
