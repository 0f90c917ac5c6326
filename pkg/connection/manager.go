package connection

import (
	"context"
	"sync"

	"github.com/cpenlink/cpenlink-go/pkg/ble"
)

// State represents the connection state.
type State uint8

const (
	// StateDisconnected indicates no active connection.
	StateDisconnected State = iota

	// StateScanning indicates device discovery is in progress.
	StateScanning

	// StateConnecting indicates a connection attempt is in progress.
	StateConnecting

	// StateConnected indicates an active connection.
	StateConnected

	// StateError indicates the last connection attempt failed.
	// The reason is available via LastError until acknowledged.
	StateError
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateScanning:
		return "SCANNING"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ConnectFunc performs the actual discovery and connection work.
// It reports intermediate states (StateConnecting once scanning is done)
// through report, and returns the established connection.
type ConnectFunc func(ctx context.Context, report func(State)) (ble.Conn, error)

// attempt tracks one in-flight connection attempt so that concurrent
// callers can join it instead of racing the hardware.
type attempt struct {
	done chan struct{}
	err  error
}

func (a *attempt) finish(err error) {
	a.err = err
	close(a.done)
}

// Manager manages the connection lifecycle.
// It is the only mutator of the connection handle and the state.
type Manager struct {
	mu sync.Mutex

	state   State
	lastErr error
	conn    ble.Conn

	connectFn ConnectFunc
	attempt   *attempt

	onStateChange  func(oldState, newState State)
	onDisconnected func()
}

// NewManager creates a manager that uses connectFn to establish
// connections.
func NewManager(connectFn ConnectFunc) *Manager {
	return &Manager{
		state:     StateDisconnected,
		connectFn: connectFn,
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected returns true if currently connected.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateConnected
}

// Conn returns the active connection, or nil when not connected.
func (m *Manager) Conn() ble.Conn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn
}

// LastError returns the reason for the last failed attempt, or nil.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// OnStateChange sets a callback invoked synchronously for every state
// transition, in transition order.
func (m *Manager) OnStateChange(fn func(oldState, newState State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

// OnDisconnected sets a callback invoked after every disconnect, before
// the state notification. The session uses it to clear its caches.
func (m *Manager) OnDisconnected(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnected = fn
}

// Connect establishes a connection.
//
// Connect is idempotent: when already connected it returns nil without a
// new attempt. A caller arriving while an attempt is in flight joins
// that attempt and receives its eventual result. Calling Connect from
// the error state acknowledges and clears the prior error.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateConnected {
		m.mu.Unlock()
		return nil
	}
	if m.attempt != nil {
		a := m.attempt
		m.mu.Unlock()
		select {
		case <-a.done:
			return a.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// Retrying clears the prior error.
	m.lastErr = nil
	a := &attempt{done: make(chan struct{})}
	m.attempt = a
	m.mu.Unlock()

	m.setState(StateScanning)

	conn, err := m.connectFn(ctx, m.setState)

	m.mu.Lock()
	m.attempt = nil
	if err != nil {
		m.lastErr = err
		m.mu.Unlock()
		m.setState(StateError)
		a.finish(err)
		return err
	}
	m.conn = conn
	m.mu.Unlock()

	m.setState(StateConnected)
	a.finish(nil)
	return nil
}

// AcknowledgeError transitions from the error state back to
// disconnected, clearing the stored reason. No-op in other states.
func (m *Manager) AcknowledgeError() {
	m.mu.Lock()
	if m.state != StateError {
		m.mu.Unlock()
		return
	}
	m.lastErr = nil
	m.mu.Unlock()
	m.setState(StateDisconnected)
}

// Disconnect closes the connection and transitions to disconnected.
// It is safe to call in any state, including when already disconnected.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.lastErr = nil
	onDisconnected := m.onDisconnected
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if onDisconnected != nil {
		onDisconnected()
	}
	m.setState(StateDisconnected)
}

// setState performs a state transition and notifies, in order.
// Transitions to the current state are no-ops.
func (m *Manager) setState(newState State) {
	m.mu.Lock()
	oldState := m.state
	if oldState == newState {
		m.mu.Unlock()
		return
	}
	m.state = newState
	fn := m.onStateChange
	m.mu.Unlock()

	if fn != nil {
		fn(oldState, newState)
	}
}
