// Package transport implements the command/response and push-event layers
// over an established device connection.
//
// The Cpen protocol is a plain-text exchange over a single GATT
// characteristic: the host writes a command string and the device answers
// with a notification. There are no message IDs, so correlation is
// positional - the first notification after a write is the response. The
// device firmware does not tolerate overlapping writes, so Commander
// serializes all commands on one connection.
//
// Two consumers share the notification stream:
//
//   - Commander races each written command against a response timeout.
//     A timeout is an explicit non-error result; misses on the wireless
//     link are routine and must not abort higher-level flows.
//   - Bridge waits for unsolicited pushes the device sends without being
//     asked, resolving with an empty-string sentinel when nothing arrives.
//
// The session layer serializes Commander and Bridge use so they never
// compete for the same notification.
package transport
