// Package session orchestrates the complete Cpen device session: device
// discovery, the single exclusive connection, command round trips, the
// time-windowed value cache, and observer notifications.
//
// The Session is the entire surface the rest of an application may call.
// A composition root constructs exactly one Session and hands it to
// whatever needs it; no other code reaches into the hardware layer
// directly.
//
//	adapter, err := ble.NewBluezAdapter(ble.BluezConfig{})
//	if err != nil { ... }
//	sess := session.New(adapter, session.Config{})
//	sess.RegisterObservers(notify.Observers{
//	    OnStateChange: func(oldState, newState connection.State) { ... },
//	})
//	code, err := sess.GetValue(ctx)
//
// GetValue and GetID auto-connect when disconnected: scan, filter by
// name prefix, pick the first match, connect. The combined path runs
// under a single overall budget; exceeding it surfaces as
// CONNECTION_TIMEOUT, distinct from an individual command timeout.
package session
