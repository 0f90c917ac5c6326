package discovery

import "strings"

// TargetNamePrefix identifies a Cpen device: the first four characters
// of the advertised name, compared case-insensitively.
const TargetNamePrefix = "cpen"

// lineSeparator splits a scan line into name and address.
const lineSeparator = " - "

// DeviceDescriptor is a single parsed scan result.
// Descriptors are created per scan and discarded after filtering.
type DeviceDescriptor struct {
	// Name is the advertised device name.
	Name string

	// Address is the hardware address.
	Address string

	// Raw is the original scan line.
	Raw string
}

// ParseDescriptor parses a scan line of the form "name - address".
// When the separator is absent (unnamed devices are reported as a bare
// address), name and address both equal the raw line.
func ParseDescriptor(line string) DeviceDescriptor {
	parts := strings.SplitN(line, lineSeparator, 2)
	if len(parts) != 2 {
		return DeviceDescriptor{Name: line, Address: line, Raw: line}
	}
	return DeviceDescriptor{Name: parts[0], Address: parts[1], Raw: line}
}

// MatchesPrefix reports whether an advertised name starts with prefix,
// compared case-insensitively.
func MatchesPrefix(name, prefix string) bool {
	if len(name) < len(prefix) {
		return false
	}
	return strings.EqualFold(name[:len(prefix)], prefix)
}

// IsTarget reports whether an advertised name identifies a Cpen device.
func IsTarget(name string) bool {
	return MatchesPrefix(name, TargetNamePrefix)
}

// FilterPrefix parses each raw scan line and retains the devices whose
// name starts with prefix, preserving scan order. Malformed or empty
// input yields an empty result.
func FilterPrefix(raw []string, prefix string) []DeviceDescriptor {
	var targets []DeviceDescriptor
	for _, line := range raw {
		d := ParseDescriptor(line)
		if MatchesPrefix(d.Name, prefix) {
			targets = append(targets, d)
		}
	}
	return targets
}

// FilterTargets retains the Cpen devices from raw scan lines.
func FilterTargets(raw []string) []DeviceDescriptor {
	return FilterPrefix(raw, TargetNamePrefix)
}
