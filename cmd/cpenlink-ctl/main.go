// Command cpenlink-ctl is an interactive client for Cpen companion
// devices.
//
// It owns the single session: discovery, connection, code fetches, and
// the protocol capture file all run through one Session instance
// constructed here.
//
// Usage:
//
//	cpenlink-ctl [flags]
//
// Flags:
//
//	-config string        Configuration file path (YAML)
//	-log-level string     Log level: debug, info, warn, error
//	-protocol-log string  Protocol capture file (.clog)
//	-adapter string       BlueZ adapter object path (default /org/bluez/hci0)
//	-fake                 Use a simulated device instead of Bluetooth hardware
//	-refresh              Keep the code fresh in the background while connected
//
// Interactive Commands:
//
//	connect     - Discover and connect to the first Cpen device
//	disconnect  - Close the connection
//	totp        - Fetch (or reuse) the current one-time code
//	id          - Fetch the device identity
//	status      - Show session state
//	dump <file> - Dump a protocol capture file
//	quit        - Exit
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cpenlink/cpenlink-go/pkg/ble"
	"github.com/cpenlink/cpenlink-go/pkg/config"
	"github.com/cpenlink/cpenlink-go/pkg/connection"
	"github.com/cpenlink/cpenlink-go/pkg/discovery"
	"github.com/cpenlink/cpenlink-go/pkg/log"
	"github.com/cpenlink/cpenlink-go/pkg/notify"
	"github.com/cpenlink/cpenlink-go/pkg/session"
)

var flags struct {
	configFile  string
	logLevel    string
	protocolLog string
	adapterPath string
	fake        bool
	refresh     bool
}

func init() {
	flag.StringVar(&flags.configFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&flags.protocolLog, "protocol-log", "", "Protocol capture file (.clog)")
	flag.StringVar(&flags.adapterPath, "adapter", "", "BlueZ adapter object path")
	flag.BoolVar(&flags.fake, "fake", false, "Use a simulated device instead of Bluetooth hardware")
	flag.BoolVar(&flags.refresh, "refresh", false, "Keep the code fresh in the background while connected")
}

func main() {
	flag.Parse()

	cfg, err := config.Load(flags.configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	// Flags override the file and environment.
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if flags.protocolLog != "" {
		cfg.ProtocolLog = flags.protocolLog
	}
	if flags.adapterPath != "" {
		cfg.AdapterPath = flags.adapterPath
	}

	logger := setupLogging(cfg.LogLevel)

	plog, closePlog, err := setupProtocolLog(cfg.ProtocolLog, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "protocol log: %v\n", err)
		os.Exit(1)
	}
	defer closePlog()

	adapter, err := buildAdapter(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "adapter: %v\n", err)
		os.Exit(1)
	}

	sess := session.New(adapter, session.Config{
		NamePrefix:     cfg.NamePrefix,
		CommandTimeout: cfg.CommandTimeout.Std(),
		CacheTTL:       cfg.CacheTTL.Std(),
		PushWait:       cfg.PushWait.Std(),
		ConnectBudget:  cfg.ConnectBudget.Std(),
		ProtocolLogger: plog,
		Logger:         logger,
	})

	sess.RegisterObservers(notify.Observers{
		OnStateChange: func(oldState, newState connection.State) {
			fmt.Printf("\r[state] %s -> %s\n", oldState, newState)
		},
		OnValueChange: func(value string) {
			fmt.Printf("\r[code] %s\n", value)
		},
		OnDeviceInfoChange: func(device discovery.DeviceDescriptor, deviceID string) {
			fmt.Printf("\r[device] %s (%s) id=%s\n", device.Name, device.Address, deviceID)
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if flags.refresh {
		refresher := session.NewRefresher(sess, cfg.CacheTTL.Std())
		refresher.Start(ctx)
		defer refresher.Stop()
	}

	// Ctrl-C during a long scan or connect should still exit cleanly.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	cli, err := newInteractive(sess)
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline: %v\n", err)
		os.Exit(1)
	}
	cli.Run(ctx, cancel)

	sess.Disconnect()
}

func setupLogging(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

// setupProtocolLog opens the capture file when configured. At debug
// level, events are mirrored to the console as well.
func setupProtocolLog(path string, logger *slog.Logger) (log.Logger, func(), error) {
	var loggers []log.Logger
	closeFn := func() {}

	if path != "" {
		fl, err := log.NewFileLogger(path)
		if err != nil {
			return nil, nil, err
		}
		loggers = append(loggers, fl)
		closeFn = func() { fl.Close() }
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		loggers = append(loggers, log.NewSlogAdapter(logger))
	}

	switch len(loggers) {
	case 0:
		return log.NoopLogger{}, closeFn, nil
	case 1:
		return loggers[0], closeFn, nil
	default:
		return log.NewMultiLogger(loggers...), closeFn, nil
	}
}

func buildAdapter(cfg *config.Config, logger *slog.Logger) (ble.Adapter, error) {
	if flags.fake {
		return fakeDeviceAdapter(cfg.NamePrefix), nil
	}
	return ble.NewBluezAdapter(ble.BluezConfig{
		AdapterPath:  cfg.AdapterPath,
		ScanDuration: cfg.ScanDuration.Std(),
		Logger:       logger,
	})
}

// fakeDeviceAdapter simulates one matching device that answers the
// firmware command set. Useful for trying the tool without hardware.
func fakeDeviceAdapter(prefix string) *ble.FakeAdapter {
	name := strings.ToUpper(prefix[:1]) + prefix[1:] + "Sim"
	adapter := ble.NewFakeAdapter(name + " - 00:11:22:33:44:55")

	// Script every connection the adapter hands out, including ones
	// created after a disconnect/reconnect cycle.
	go func() {
		var scripted *ble.FakeConn
		for {
			time.Sleep(50 * time.Millisecond)
			conn := adapter.LastConn()
			if conn == nil || conn == scripted {
				continue
			}
			scripted = conn
			conn.OnWrite(func(data []byte) {
				cmd := string(data)
				switch {
				case strings.HasPrefix(cmd, "setTime:"):
					conn.Push("timeSet")
				case cmd == "getTotp":
					conn.Push(fmt.Sprintf("%06d", time.Now().Unix()%1000000))
				case cmd == "getId":
					conn.Push(name + "-0001")
				}
			})
		}
	}()
	return adapter
}
