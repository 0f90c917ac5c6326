// Package connection owns the single session connection state machine:
// discovery, connection establishment, and teardown for exactly one
// device at a time.
package connection
