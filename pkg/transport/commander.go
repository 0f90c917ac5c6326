package transport

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cpenlink/cpenlink-go/pkg/ble"
	"github.com/cpenlink/cpenlink-go/pkg/log"
	"github.com/cpenlink/cpenlink-go/pkg/status"
)

// DefaultCommandTimeout is how long a command waits for its response.
const DefaultCommandTimeout = 500 * time.Millisecond

// Result is the outcome of one command round trip.
// A timeout is a valid result, not an error.
type Result struct {
	// Payload is the device's response. Empty on timeout.
	Payload string

	// TimedOut indicates the response window expired.
	TimedOut bool
}

// CommanderConfig configures a Commander.
type CommanderConfig struct {
	// Timeout is the per-command response window (default: 500ms).
	Timeout time.Duration

	// ConnectionID tags protocol log events.
	ConnectionID string

	// ProtocolLogger captures command round trips. Nil disables capture.
	ProtocolLogger log.Logger

	// Logger is the operational logger. Nil discards.
	Logger *slog.Logger
}

// Commander sends commands over a connection and correlates responses.
// Commands are strictly sequential: a second Send blocks until the
// previous round trip has resolved. Safe for concurrent use.
type Commander struct {
	conn    ble.Conn
	timeout time.Duration
	connID  string
	plog    log.Logger
	logger  *slog.Logger

	mu sync.Mutex
}

// NewCommander creates a Commander for an established connection.
func NewCommander(conn ble.Conn, config CommanderConfig) *Commander {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	plog := config.ProtocolLogger
	if plog == nil {
		plog = log.NoopLogger{}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Commander{
		conn:    conn,
		timeout: timeout,
		connID:  config.ConnectionID,
		plog:    plog,
		logger:  logger,
	}
}

// Send writes a command and waits for the correlated response.
// The first notification after the write is taken as the response; any
// notifications buffered before the write are stale and discarded first.
// Returns a timed-out Result (not an error) when the response window
// expires. Returns an error if the write fails, the connection closes,
// or ctx is cancelled.
func (c *Commander) Send(ctx context.Context, command string) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.drainStale()

	start := time.Now()
	if err := c.conn.Write(ctx, []byte(command)); err != nil {
		c.logError(command, err)
		return Result{}, status.Wrap(status.CodeNotConnected, "transport.Send", err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case payload, ok := <-c.conn.Notifications():
		if !ok {
			err := status.New(status.CodeNotConnected, "transport.Send", "connection closed while awaiting response")
			c.logError(command, err)
			return Result{}, err
		}
		rtt := time.Since(start)
		c.logger.Debug("command completed", "command", command, "rtt", rtt)
		c.plog.Log(log.Event{
			Timestamp:    time.Now(),
			ConnectionID: c.connID,
			Direction:    log.DirectionOut,
			Category:     log.CategoryCommand,
			Command: &log.CommandEvent{
				Command:  command,
				Response: string(payload),
				RTT:      rtt,
			},
		})
		return Result{Payload: string(payload)}, nil

	case <-timer.C:
		c.logger.Debug("command timed out", "command", command, "timeout", c.timeout)
		c.plog.Log(log.Event{
			Timestamp:    time.Now(),
			ConnectionID: c.connID,
			Direction:    log.DirectionOut,
			Category:     log.CategoryCommand,
			Command: &log.CommandEvent{
				Command:  command,
				TimedOut: true,
			},
		})
		return Result{TimedOut: true}, nil

	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// drainStale discards notifications buffered before a write. A late
// response to an earlier timed-out command must not be mistaken for the
// response to the command about to be sent.
func (c *Commander) drainStale() {
	for {
		select {
		case payload, ok := <-c.conn.Notifications():
			if !ok {
				return
			}
			c.logger.Debug("discarded stale notification", "payload", string(payload))
		default:
			return
		}
	}
}

func (c *Commander) logError(command string, err error) {
	c.plog.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Category:     log.CategoryError,
		Error: &log.ErrorEventData{
			Code:    status.CodeOf(err).String(),
			Message: err.Error(),
			Context: command,
		},
	})
}
