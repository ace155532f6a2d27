package message

import (
	"fmt"
	"strings"
)

// Notify is a bit set of delivery status notification requests forwarded
// to the transport.
type Notify int

const (
	NotifyOnSuccess Notify = 1 << iota
	NotifyOnFailure
	NotifyDelay
	NotifyNever
)

// NotifyNone requests no delivery status notifications.
const NotifyNone Notify = 0

// Has reports whether the flag f is set.
func (n Notify) Has(f Notify) bool {
	return n&f != 0
}

// String returns the comma-separated flag names, or "none".
func (n Notify) String() string {
	if n == NotifyNone {
		return "none"
	}
	var parts []string
	if n.Has(NotifyOnSuccess) {
		parts = append(parts, "onsuccess")
	}
	if n.Has(NotifyOnFailure) {
		parts = append(parts, "onfailure")
	}
	if n.Has(NotifyDelay) {
		parts = append(parts, "delay")
	}
	if n.Has(NotifyNever) {
		parts = append(parts, "never")
	}
	return strings.Join(parts, ",")
}

// ParseNotify combines user-supplied notification option names into one
// flag set. "never" and "none" cannot be combined with other options.
func ParseNotify(values []string) (Notify, error) {
	var n Notify
	explicitNone := false

	for _, v := range values {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "":
			continue
		case "none":
			explicitNone = true
		case "onsuccess":
			n |= NotifyOnSuccess
		case "onfailure":
			n |= NotifyOnFailure
		case "delay":
			n |= NotifyDelay
		case "never":
			n |= NotifyNever
		default:
			return NotifyNone, fmt.Errorf("unknown delivery notification option %q", v)
		}
	}

	if explicitNone && n != NotifyNone {
		return NotifyNone, fmt.Errorf("notification option none cannot be combined with others")
	}
	if n.Has(NotifyNever) && n != NotifyNever {
		return NotifyNone, fmt.Errorf("notification option never cannot be combined with others")
	}
	return n, nil
}
