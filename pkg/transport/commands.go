package transport

import (
	"strconv"
	"time"
)

// Command vocabulary agreed with the device firmware.
// Changing any of these is a breaking protocol change.
const (
	// CmdGetTotp fetches the current one-time code.
	CmdGetTotp = "getTotp"

	// CmdGetID fetches the device identity.
	CmdGetID = "getId"

	// cmdSetTimePrefix prefixes the clock-sync command.
	cmdSetTimePrefix = "setTime:"
)

// SetTimeCommand builds the clock-sync command for the given time.
// The device expects Unix seconds. Clock sync must precede a code fetch,
// otherwise the device computes the code against a stale clock.
func SetTimeCommand(t time.Time) string {
	return cmdSetTimePrefix + strconv.FormatInt(t.Unix(), 10)
}
