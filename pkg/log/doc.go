// Package log provides structured protocol capture for the Cpen session
// manager.
//
// This package defines the Logger interface and Event types for capturing
// session-level events: commands and their responses, unsolicited device
// pushes, connection state changes, and errors. It is separate from
// operational logging (slog) - protocol capture provides a complete
// machine-readable trace for debugging a flaky wireless link.
//
// # Basic Usage
//
// Applications configure capture by injecting a Logger implementation
// through session.Config:
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	fl, _ := log.NewFileLogger("/var/log/cpenlink/session.clog")
//	cfg.ProtocolLogger = fl
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fl,
//	)
//
// # File Format
//
// Log files are a CBOR event stream with .clog extension. The
// cpenlink-ctl tool can dump and filter captured traces.
package log
