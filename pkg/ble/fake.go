package ble

import (
	"context"
	"sync"
)

// FakeAdapter is an in-memory Adapter for tests and development runs
// without Bluetooth hardware. Scan results are scripted; connections
// record writes and allow pushing notification payloads.
type FakeAdapter struct {
	mu sync.Mutex

	scanLines  []string
	scanErr    error
	connectErr error

	scanCalls    int
	connectCalls int

	lastConn *FakeConn
}

// NewFakeAdapter creates a fake adapter that reports the given scan lines.
func NewFakeAdapter(lines ...string) *FakeAdapter {
	return &FakeAdapter{scanLines: lines}
}

// SetScanLines replaces the scripted scan results.
func (f *FakeAdapter) SetScanLines(lines ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scanLines = lines
}

// SetScanError makes Scan fail with err.
func (f *FakeAdapter) SetScanError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scanErr = err
}

// SetConnectError makes Connect fail with err.
func (f *FakeAdapter) SetConnectError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectErr = err
}

// Scan returns the scripted lines.
func (f *FakeAdapter) Scan(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scanCalls++
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	return append([]string(nil), f.scanLines...), nil
}

// Connect creates a new FakeConn for the address.
func (f *FakeAdapter) Connect(ctx context.Context, address string) (Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectCalls++
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	conn := NewFakeConn(address)
	f.lastConn = conn
	return conn, nil
}

// ScanCalls returns how many times Scan was invoked.
func (f *FakeAdapter) ScanCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scanCalls
}

// ConnectCalls returns how many times Connect was invoked.
func (f *FakeAdapter) ConnectCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectCalls
}

// LastConn returns the most recently created connection, or nil.
func (f *FakeAdapter) LastConn() *FakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastConn
}

// FakeConn records writes and lets tests inject notification payloads.
type FakeConn struct {
	mu sync.Mutex

	address string
	writes  [][]byte
	notify  chan []byte
	closed  bool

	// onWrite, if set, is invoked (in its own goroutine) for every write.
	// Tests use it to script device responses.
	onWrite func(data []byte)

	writeErr error
}

// NewFakeConn creates a fake connection for the address.
func NewFakeConn(address string) *FakeConn {
	return &FakeConn{
		address: address,
		notify:  make(chan []byte, 8),
	}
}

// Address returns the connected address.
func (c *FakeConn) Address() string { return c.address }

// OnWrite registers a hook invoked for every write.
func (c *FakeConn) OnWrite(fn func(data []byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onWrite = fn
}

// SetWriteError makes subsequent writes fail with err.
func (c *FakeConn) SetWriteError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

// Write records the data and triggers the write hook.
func (c *FakeConn) Write(ctx context.Context, data []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return context.Canceled
	}
	if c.writeErr != nil {
		err := c.writeErr
		c.mu.Unlock()
		return err
	}
	c.writes = append(c.writes, append([]byte(nil), data...))
	hook := c.onWrite
	c.mu.Unlock()

	if hook != nil {
		go hook(data)
	}
	return nil
}

// Notifications returns the push channel.
func (c *FakeConn) Notifications() <-chan []byte {
	return c.notify
}

// Push injects a notification payload as if the device sent it.
// Pushing to a closed connection is a no-op.
func (c *FakeConn) Push(payload string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.notify <- []byte(payload):
	default:
	}
}

// Writes returns the recorded write payloads.
func (c *FakeConn) Writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.writes))
	copy(out, c.writes)
	return out
}

// WriteStrings returns the recorded writes as strings.
func (c *FakeConn) WriteStrings() []string {
	writes := c.Writes()
	out := make([]string, len(writes))
	for i, w := range writes {
		out[i] = string(w)
	}
	return out
}

// Closed reports whether Close has been called.
func (c *FakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close closes the notification channel.
func (c *FakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.notify)
	return nil
}

// Compile-time interface satisfaction checks.
var (
	_ Adapter = (*FakeAdapter)(nil)
	_ Conn    = (*FakeConn)(nil)
)
