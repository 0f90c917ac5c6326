package ble

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/cpenlink/cpenlink-go/pkg/status"
)

// BlueZ D-Bus names.
const (
	bluezBusName       = "org.bluez"
	defaultAdapterPath = "/org/bluez/hci0"
	adapterIface       = "org.bluez.Adapter1"
	deviceIface        = "org.bluez.Device1"
	gattCharIface      = "org.bluez.GattCharacteristic1"
	propsIface         = "org.freedesktop.DBus.Properties"
	objManagerIface    = "org.freedesktop.DBus.ObjectManager"
)

// servicesResolvedPoll is how often Connect checks for GATT resolution.
const servicesResolvedPoll = 100 * time.Millisecond

// BluezConfig configures the BlueZ adapter.
type BluezConfig struct {
	// AdapterPath is the D-Bus object path of the Bluetooth adapter.
	// Default: /org/bluez/hci0.
	AdapterPath string

	// ScanDuration is how long Scan collects advertisements.
	// Default: DefaultScanDuration.
	ScanDuration time.Duration

	// Logger receives operational log output. Nil disables logging.
	Logger *slog.Logger
}

// BluezAdapter implements Adapter on Linux via the BlueZ D-Bus API.
type BluezAdapter struct {
	bus          *dbus.Conn
	adapterPath  dbus.ObjectPath
	scanDuration time.Duration
	logger       *slog.Logger
}

// NewBluezAdapter connects to the system bus and verifies BlueZ is
// reachable. A missing bus or a missing org.bluez name classifies as
// HardwareUnavailable.
func NewBluezAdapter(cfg BluezConfig) (*BluezAdapter, error) {
	if cfg.AdapterPath == "" {
		cfg.AdapterPath = defaultAdapterPath
	}
	if cfg.ScanDuration <= 0 {
		cfg.ScanDuration = DefaultScanDuration
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	bus, err := dbus.SystemBus()
	if err != nil {
		return nil, status.Wrap(status.CodeHardwareUnavailable, "ble.NewBluezAdapter", err)
	}

	var names []string
	if err := bus.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return nil, status.Wrap(status.CodeHardwareUnavailable, "ble.NewBluezAdapter", err)
	}
	found := false
	for _, n := range names {
		if n == bluezBusName {
			found = true
			break
		}
	}
	if !found {
		return nil, status.New(status.CodeHardwareUnavailable, "ble.NewBluezAdapter",
			"org.bluez not on system bus")
	}

	return &BluezAdapter{
		bus:          bus,
		adapterPath:  dbus.ObjectPath(cfg.AdapterPath),
		scanDuration: cfg.ScanDuration,
		logger:       cfg.Logger,
	}, nil
}

// deviceObjectPath converts "AA:BB:CC:DD:EE:FF" to the BlueZ device path
// under the configured adapter.
func (a *BluezAdapter) deviceObjectPath(addr string) dbus.ObjectPath {
	escaped := strings.ReplaceAll(addr, ":", "_")
	return dbus.ObjectPath(string(a.adapterPath) + "/dev_" + escaped)
}

func (a *BluezAdapter) getProp(path dbus.ObjectPath, iface, prop string) (dbus.Variant, error) {
	obj := a.bus.Object(bluezBusName, path)
	var v dbus.Variant
	err := obj.Call(propsIface+".Get", 0, iface, prop).Store(&v)
	return v, err
}

func (a *BluezAdapter) getBool(path dbus.ObjectPath, iface, prop string) (bool, error) {
	v, err := a.getProp(path, iface, prop)
	if err != nil {
		return false, err
	}
	val, ok := v.Value().(bool)
	if !ok {
		return false, status.New(status.CodeUnknown, "ble.getBool", prop+" is not bool")
	}
	return val, nil
}

// checkPowered verifies the adapter exists and is powered on.
func (a *BluezAdapter) checkPowered() error {
	powered, err := a.getBool(a.adapterPath, adapterIface, "Powered")
	if err != nil {
		// Adapter object not present on the bus.
		return status.Wrap(status.CodeHardwareUnavailable, "ble.Scan", err)
	}
	if !powered {
		return status.New(status.CodeHardwareDisabled, "ble.Scan", "adapter is powered off")
	}
	return nil
}

// managedObjects fetches the BlueZ object tree.
func (a *BluezAdapter) managedObjects() (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, error) {
	var objs map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	err := a.bus.Object(bluezBusName, "/").
		Call(objManagerIface+".GetManagedObjects", 0).Store(&objs)
	return objs, err
}

// Scan runs a discovery scan for the configured duration and returns one
// "name - address" line per device under the adapter.
func (a *BluezAdapter) Scan(ctx context.Context) ([]string, error) {
	if err := a.checkPowered(); err != nil {
		return nil, err
	}

	adapter := a.bus.Object(bluezBusName, a.adapterPath)
	if call := adapter.Call(adapterIface+".StartDiscovery", 0); call.Err != nil {
		return nil, status.Wrap(status.CodeScanFailure, "ble.Scan", call.Err)
	}

	a.logger.Debug("scan started", "duration", a.scanDuration)

	select {
	case <-ctx.Done():
		adapter.Call(adapterIface+".StopDiscovery", 0)
		return nil, status.Wrap(status.CodeScanFailure, "ble.Scan", ctx.Err())
	case <-time.After(a.scanDuration):
	}

	objs, err := a.managedObjects()
	stopErr := adapter.Call(adapterIface+".StopDiscovery", 0).Err
	if err != nil {
		return nil, status.Wrap(status.CodeScanFailure, "ble.Scan", err)
	}
	if stopErr != nil {
		a.logger.Debug("stop discovery failed", "error", stopErr)
	}

	var lines []string
	prefix := string(a.adapterPath) + "/dev_"
	for path, ifaces := range objs {
		if !strings.HasPrefix(string(path), prefix) {
			continue
		}
		props, ok := ifaces[deviceIface]
		if !ok {
			continue
		}
		addr, _ := props["Address"].Value().(string)
		if addr == "" {
			continue
		}
		name, _ := props["Name"].Value().(string)
		if name == "" {
			name, _ = props["Alias"].Value().(string)
		}
		if name == "" {
			// Unnamed device: report the bare address.
			lines = append(lines, addr)
			continue
		}
		lines = append(lines, name+" - "+addr)
	}

	a.logger.Debug("scan finished", "devices", len(lines))
	return lines, nil
}

// Connect connects to the device, waits for GATT resolution, locates the
// Cpen characteristic, and starts notifications on it.
func (a *BluezAdapter) Connect(ctx context.Context, address string) (Conn, error) {
	devicePath := a.deviceObjectPath(address)
	device := a.bus.Object(bluezBusName, devicePath)

	if call := device.CallWithContext(ctx, deviceIface+".Connect", 0); call.Err != nil {
		return nil, status.Wrap(status.CodeConnectFailure, "ble.Connect", call.Err)
	}

	if err := a.waitServicesResolved(ctx, devicePath); err != nil {
		device.Call(deviceIface+".Disconnect", 0)
		return nil, err
	}

	charPath, err := a.findCharacteristic(devicePath)
	if err != nil {
		device.Call(deviceIface+".Disconnect", 0)
		return nil, err
	}

	char := a.bus.Object(bluezBusName, charPath)
	if call := char.Call(gattCharIface+".StartNotify", 0); call.Err != nil {
		device.Call(deviceIface+".Disconnect", 0)
		return nil, status.Wrap(status.CodeConnectFailure, "ble.Connect", call.Err)
	}

	a.bus.BusObject().Call(
		"org.freedesktop.DBus.AddMatch", 0,
		"type='signal',interface='"+propsIface+"',member='PropertiesChanged',path='"+string(charPath)+"'",
	)
	signals := make(chan *dbus.Signal, 16)
	a.bus.Signal(signals)

	c := &bluezConn{
		bus:        a.bus,
		devicePath: devicePath,
		charPath:   charPath,
		signals:    signals,
		notify:     make(chan []byte, 8),
		done:       make(chan struct{}),
		logger:     a.logger,
	}
	go c.signalLoop()

	a.logger.Debug("connected", "address", address, "characteristic", string(charPath))
	return c, nil
}

// waitServicesResolved polls the device's ServicesResolved property.
func (a *BluezAdapter) waitServicesResolved(ctx context.Context, devicePath dbus.ObjectPath) error {
	for {
		resolved, err := a.getBool(devicePath, deviceIface, "ServicesResolved")
		if err == nil && resolved {
			return nil
		}
		select {
		case <-ctx.Done():
			return status.Wrap(status.CodeConnectFailure, "ble.Connect", ctx.Err())
		case <-time.After(servicesResolvedPoll):
		}
	}
}

// findCharacteristic locates the Cpen characteristic under the device.
func (a *BluezAdapter) findCharacteristic(devicePath dbus.ObjectPath) (dbus.ObjectPath, error) {
	objs, err := a.managedObjects()
	if err != nil {
		return "", status.Wrap(status.CodeConnectFailure, "ble.Connect", err)
	}
	for path, ifaces := range objs {
		if !strings.HasPrefix(string(path), string(devicePath)) {
			continue
		}
		props, ok := ifaces[gattCharIface]
		if !ok {
			continue
		}
		uuid, _ := props["UUID"].Value().(string)
		if strings.EqualFold(uuid, CharacteristicUUID) {
			return path, nil
		}
	}
	return "", status.New(status.CodeConnectFailure, "ble.Connect",
		"characteristic "+CharacteristicUUID+" not found")
}

// bluezConn is an established BlueZ connection bound to the Cpen
// characteristic.
type bluezConn struct {
	bus        *dbus.Conn
	devicePath dbus.ObjectPath
	charPath   dbus.ObjectPath
	signals    chan *dbus.Signal
	notify     chan []byte
	done       chan struct{}
	closeOnce  sync.Once
	logger     *slog.Logger
}

// Write sends data to the characteristic using a command-type write.
func (c *bluezConn) Write(ctx context.Context, data []byte) error {
	select {
	case <-c.done:
		return status.New(status.CodeNotConnected, "ble.Write", "connection closed")
	default:
	}

	char := c.bus.Object(bluezBusName, c.charPath)
	opts := map[string]dbus.Variant{"type": dbus.MakeVariant("command")}
	if call := char.CallWithContext(ctx, gattCharIface+".WriteValue", 0, data, opts); call.Err != nil {
		return status.Wrap(status.CodeUnknown, "ble.Write", call.Err)
	}
	return nil
}

// Notifications returns the push payload channel.
func (c *bluezConn) Notifications() <-chan []byte {
	return c.notify
}

// Close stops notifications and disconnects the device.
func (c *bluezConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.bus.RemoveSignal(c.signals)

		char := c.bus.Object(bluezBusName, c.charPath)
		char.Call(gattCharIface+".StopNotify", 0)

		device := c.bus.Object(bluezBusName, c.devicePath)
		device.Call(deviceIface+".Disconnect", 0)
	})
	return nil
}

// signalLoop converts PropertiesChanged signals on the characteristic
// into notification payloads.
func (c *bluezConn) signalLoop() {
	defer close(c.notify)

	for {
		select {
		case <-c.done:
			return
		case sig, ok := <-c.signals:
			if !ok {
				return
			}
			if sig.Path != c.charPath || len(sig.Body) < 2 {
				continue
			}
			iface, _ := sig.Body[0].(string)
			if iface != gattCharIface {
				continue
			}
			changed, _ := sig.Body[1].(map[string]dbus.Variant)
			v, ok := changed["Value"]
			if !ok {
				continue
			}
			payload, _ := v.Value().([]byte)
			if payload == nil {
				continue
			}
			select {
			case c.notify <- payload:
			default:
				c.logger.Debug("notification dropped, channel full", "bytes", len(payload))
			}
		}
	}
}

// Compile-time interface satisfaction checks.
var (
	_ Adapter = (*BluezAdapter)(nil)
	_ Conn    = (*bluezConn)(nil)
)
