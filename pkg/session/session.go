package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/cpenlink/cpenlink-go/pkg/ble"
	"github.com/cpenlink/cpenlink-go/pkg/connection"
	"github.com/cpenlink/cpenlink-go/pkg/discovery"
	"github.com/cpenlink/cpenlink-go/pkg/log"
	"github.com/cpenlink/cpenlink-go/pkg/notify"
	"github.com/cpenlink/cpenlink-go/pkg/status"
	"github.com/cpenlink/cpenlink-go/pkg/transport"
)

// Session timing defaults, matched to the device firmware.
const (
	// DefaultCacheTTL is how long a fetched value is reused.
	DefaultCacheTTL = 30 * time.Second

	// DefaultConnectBudget bounds the combined discover+connect+fetch
	// path.
	DefaultConnectBudget = 15 * time.Second

	// DefaultConnectSettle is the pause after connecting before the
	// first write. The firmware drops writes issued too early.
	DefaultConnectSettle = 500 * time.Millisecond

	// DefaultSetTimeSettle is the pause after clock sync before the
	// code fetch.
	DefaultSetTimeSettle = 100 * time.Millisecond
)

// Config configures a Session. Zero values use the defaults above.
type Config struct {
	// NamePrefix selects target devices (default: "cpen").
	NamePrefix string

	// CommandTimeout bounds one command round trip (default: 500ms).
	CommandTimeout time.Duration

	// CacheTTL is how long a fetched value is reused (default: 30s).
	CacheTTL time.Duration

	// PushWait bounds the post-fetch push drain (default: 2s).
	PushWait time.Duration

	// ConnectBudget bounds the auto-connect fetch path (default: 15s).
	ConnectBudget time.Duration

	// ConnectSettle is the pause after connect (default: 500ms).
	ConnectSettle time.Duration

	// SetTimeSettle is the pause after clock sync (default: 100ms).
	SetTimeSettle time.Duration

	// ProtocolLogger captures protocol events. Nil disables capture.
	ProtocolLogger log.Logger

	// Logger is the operational logger. Nil discards.
	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.NamePrefix == "" {
		c.NamePrefix = discovery.TargetNamePrefix
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = transport.DefaultCommandTimeout
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.PushWait <= 0 {
		c.PushWait = transport.DefaultPushWait
	}
	if c.ConnectBudget <= 0 {
		c.ConnectBudget = DefaultConnectBudget
	}
	if c.ConnectSettle <= 0 {
		c.ConnectSettle = DefaultConnectSettle
	}
	if c.SetTimeSettle <= 0 {
		c.SetTimeSettle = DefaultSetTimeSettle
	}
	if c.ProtocolLogger == nil {
		c.ProtocolLogger = log.NoopLogger{}
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}

// Session is the single logical connection to a Cpen device and its
// associated caches. Safe for concurrent use.
type Session struct {
	config      Config
	adapter     ble.Adapter
	lifecycle   *connection.Manager
	broadcaster *notify.Broadcaster
	plog        log.Logger
	logger      *slog.Logger

	// ioMu serializes all traffic on the connection: command round
	// trips and push drains must never overlap.
	ioMu sync.Mutex

	mu        sync.Mutex
	boundConn ble.Conn
	commander *transport.Commander
	bridge    *transport.Bridge
	connID    string
	device    discovery.DeviceDescriptor

	// Value cache, invalidated entirely on disconnect or TTL expiry.
	value     string
	fetchedAt time.Time

	// Device identity, cached until disconnect.
	deviceID string

	fetchGroup singleflight.Group

	// now is replaceable in tests.
	now func() time.Time
}

// New creates a Session on top of the given adapter.
func New(adapter ble.Adapter, config Config) *Session {
	config.applyDefaults()

	s := &Session{
		config:      config,
		adapter:     adapter,
		broadcaster: notify.NewBroadcaster(),
		plog:        config.ProtocolLogger,
		logger:      config.Logger,
		now:         time.Now,
	}
	s.lifecycle = connection.NewManager(s.establish)
	s.lifecycle.OnStateChange(s.handleStateChange)
	s.lifecycle.OnDisconnected(s.clearCaches)
	return s
}

// RegisterObservers registers callbacks for state, value, and device
// info changes. This is the sole channel by which callers learn of
// session changes.
func (s *Session) RegisterObservers(obs notify.Observers) {
	s.broadcaster.Register(obs)
}

// State returns the current connection state.
func (s *Session) State() connection.State {
	return s.lifecycle.State()
}

// LastError returns the reason for the last failed connection attempt.
func (s *Session) LastError() error {
	return s.lifecycle.LastError()
}

// AcknowledgeError clears a failed attempt, returning to disconnected.
func (s *Session) AcknowledgeError() {
	s.lifecycle.AcknowledgeError()
}

// Device returns the descriptor of the connected (or last connected)
// device.
func (s *Session) Device() discovery.DeviceDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

// Connect establishes the connection: scan, filter by name prefix, pick
// the first match, connect. Idempotent when already connected; callers
// arriving during an attempt join it.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.lifecycle.Connect(ctx); err != nil {
		return err
	}
	s.bindTransport()
	return nil
}

// Disconnect closes the connection and clears the value and identity
// caches. Safe to call in any state.
func (s *Session) Disconnect() {
	s.lifecycle.Disconnect()
}

// GetValue returns the current one-time code. A value fetched within
// the cache TTL is returned without device interaction. Otherwise the
// session auto-connects if needed, syncs the device clock, fetches a
// fresh code, and caches it. Concurrent callers share one in-flight
// fetch; none triggers a duplicate command pair.
func (s *Session) GetValue(ctx context.Context) (string, error) {
	if v, ok := s.cachedValue(); ok {
		return v, nil
	}

	v, err, _ := s.fetchGroup.Do("value", func() (any, error) {
		// A previous caller may have refreshed the cache while this
		// one waited for the group slot.
		if v, ok := s.cachedValue(); ok {
			return v, nil
		}
		return s.fetchValue(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// GetID returns the device identity, cached until disconnect.
func (s *Session) GetID(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.deviceID != "" {
		id := s.deviceID
		s.mu.Unlock()
		return id, nil
	}
	s.mu.Unlock()

	id, err, _ := s.fetchGroup.Do("id", func() (any, error) {
		s.mu.Lock()
		if s.deviceID != "" {
			id := s.deviceID
			s.mu.Unlock()
			return id, nil
		}
		s.mu.Unlock()
		return s.fetchID(ctx)
	})
	if err != nil {
		return "", err
	}
	return id.(string), nil
}

// cachedValue returns the cached code when still within its TTL.
func (s *Session) cachedValue() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.value == "" {
		return "", false
	}
	if s.now().Sub(s.fetchedAt) >= s.config.CacheTTL {
		return "", false
	}
	return s.value, true
}

// fetchValue runs the full fetch path under the overall connect budget:
// ensure connected, sync the clock, fetch the code, cache it.
func (s *Session) fetchValue(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.ConnectBudget)
	defer cancel()

	if err := s.Connect(ctx); err != nil {
		return "", s.mapBudgetError(ctx, err)
	}
	commander := s.currentCommander()
	if commander == nil {
		return "", status.New(status.CodeNotConnected, "session.GetValue", "no active connection")
	}

	s.ioMu.Lock()
	defer s.ioMu.Unlock()

	// Clock sync must precede the fetch or the device computes the
	// code against a stale clock. The device often does not answer
	// setTime at all; a timeout here is routine.
	if _, err := commander.Send(ctx, transport.SetTimeCommand(s.now())); err != nil {
		return "", s.mapBudgetError(ctx, err)
	}
	if err := sleepCtx(ctx, s.config.SetTimeSettle); err != nil {
		return "", s.mapBudgetError(ctx, err)
	}

	result, err := commander.Send(ctx, transport.CmdGetTotp)
	if err != nil {
		return "", s.mapBudgetError(ctx, err)
	}
	if result.TimedOut {
		return "", status.New(status.CodeCommandTimeout, "session.GetValue", transport.CmdGetTotp)
	}

	s.mu.Lock()
	s.value = result.Payload
	s.fetchedAt = s.now()
	bridge := s.bridge
	s.mu.Unlock()

	s.broadcaster.ValueChanged(result.Payload)

	// The device may push secondary data shortly after a fetch. Drain
	// it in the background so it is captured rather than mistaken for
	// the next command's response.
	if bridge != nil {
		go s.drainPushes(bridge)
	}

	return result.Payload, nil
}

// fetchID fetches the device identity over an established connection.
func (s *Session) fetchID(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.ConnectBudget)
	defer cancel()

	if err := s.Connect(ctx); err != nil {
		return "", s.mapBudgetError(ctx, err)
	}
	commander := s.currentCommander()
	if commander == nil {
		return "", status.New(status.CodeNotConnected, "session.GetID", "no active connection")
	}

	s.ioMu.Lock()
	result, err := commander.Send(ctx, transport.CmdGetID)
	s.ioMu.Unlock()
	if err != nil {
		return "", s.mapBudgetError(ctx, err)
	}
	if result.TimedOut {
		return "", status.New(status.CodeCommandTimeout, "session.GetID", transport.CmdGetID)
	}

	s.mu.Lock()
	s.deviceID = result.Payload
	device := s.device
	s.mu.Unlock()

	s.broadcaster.DeviceInfoChanged(device, result.Payload)
	return result.Payload, nil
}

// drainPushes waits for unsolicited pushes after a fetch. Holding ioMu
// keeps the drain from racing the next command for the notification
// stream.
func (s *Session) drainPushes(bridge *transport.Bridge) {
	s.ioMu.Lock()
	defer s.ioMu.Unlock()
	payload := bridge.Recv(context.Background(), s.config.PushWait)
	if payload != "" {
		s.logger.Info("device push received", "payload", payload)
	}
}

// establish is the lifecycle's ConnectFunc: one discovery pass, name
// filtering, first-match selection, connect, settle.
func (s *Session) establish(ctx context.Context, report func(connection.State)) (ble.Conn, error) {
	lines, err := s.adapter.Scan(ctx)
	if err != nil {
		return nil, status.Wrap(status.CodeScanFailure, "session.Connect", err)
	}

	targets := discovery.FilterPrefix(lines, s.config.NamePrefix)
	if len(targets) == 0 {
		return nil, status.New(status.CodeDeviceNotFound, "session.Connect", "no device matching prefix "+s.config.NamePrefix)
	}

	// First match in scan order wins.
	target := targets[0]
	if len(targets) > 1 {
		s.logger.Info("multiple matching devices, picking first", "count", len(targets), "picked", target.Name)
	}

	s.mu.Lock()
	s.device = target
	s.mu.Unlock()

	report(connection.StateConnecting)
	s.logger.Info("connecting", "name", target.Name, "address", target.Address)

	conn, err := s.adapter.Connect(ctx, target.Address)
	if err != nil {
		return nil, status.Wrap(status.CodeConnectFailure, "session.Connect", err)
	}

	if err := sleepCtx(ctx, s.config.ConnectSettle); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// bindTransport attaches a commander and bridge to a newly established
// connection. Idempotent for the same connection, so joiners of one
// attempt share the binding.
func (s *Session) bindTransport() {
	conn := s.lifecycle.Conn()
	if conn == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.boundConn == conn {
		return
	}
	s.boundConn = conn
	s.connID = uuid.NewString()
	s.commander = transport.NewCommander(conn, transport.CommanderConfig{
		Timeout:        s.config.CommandTimeout,
		ConnectionID:   s.connID,
		ProtocolLogger: s.plog,
		Logger:         s.logger,
	})
	s.bridge = transport.NewBridge(conn, transport.BridgeConfig{
		ConnectionID:   s.connID,
		ProtocolLogger: s.plog,
		Logger:         s.logger,
	})
}

func (s *Session) currentCommander() *transport.Commander {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commander
}

// clearCaches runs on every disconnect. A value fetched before the
// disconnect must never be served afterwards.
func (s *Session) clearCaches() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = ""
	s.fetchedAt = time.Time{}
	s.deviceID = ""
	s.boundConn = nil
	s.commander = nil
	s.bridge = nil
}

// handleStateChange forwards lifecycle transitions to observers and the
// protocol log, in transition order.
func (s *Session) handleStateChange(oldState, newState connection.State) {
	s.mu.Lock()
	connID := s.connID
	address := s.device.Address
	s.mu.Unlock()

	s.logger.Info("state changed", "old", oldState.String(), "new", newState.String())

	reason := ""
	if newState == connection.StateError {
		if err := s.lifecycle.LastError(); err != nil {
			reason = err.Error()
		}
	}
	s.plog.Log(log.Event{
		Timestamp:     s.now(),
		ConnectionID:  connID,
		Category:      log.CategoryState,
		DeviceAddress: address,
		StateChange: &log.StateChangeEvent{
			OldState: oldState.String(),
			NewState: newState.String(),
			Reason:   reason,
		},
	})

	s.broadcaster.StateChanged(oldState, newState)
}

// mapBudgetError converts an expiry of the session's own budget into a
// connection timeout, distinct from an individual command timeout.
func (s *Session) mapBudgetError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		// The budget expiring overrides whatever step it interrupted.
		return &status.Error{Code: status.CodeConnectionTimeout, Op: "session", Err: err}
	}
	return err
}

// sleepCtx sleeps for d unless ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
