package message

import "fmt"

// Priority is the user-facing priority of a message.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityLow
	PriorityHigh
)

// ParsePriority converts a user-supplied priority name. The empty string
// means normal.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "", "normal", "Normal":
		return PriorityNormal, nil
	case "low", "Low":
		return PriorityLow, nil
	case "high", "High":
		return PriorityHigh, nil
	default:
		return PriorityNormal, fmt.Errorf("unknown priority %q (want low, normal or high)", s)
	}
}

// String returns the lowercase priority name.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	default:
		return "normal"
	}
}

// Urgency is the transport-level urgency a Priority maps to.
type Urgency int

const (
	UrgencyNormal Urgency = iota
	UrgencyNonUrgent
	UrgencyUrgent
)

// Urgency maps the priority to its transport-level urgency. The mapping is
// total over the closed priority set: low is non-urgent, normal is normal,
// high is urgent.
func (p Priority) Urgency() Urgency {
	switch p {
	case PriorityLow:
		return UrgencyNonUrgent
	case PriorityHigh:
		return UrgencyUrgent
	default:
		return UrgencyNormal
	}
}

// String returns the SMTP MT-PRIORITY style name for the urgency.
func (u Urgency) String() string {
	switch u {
	case UrgencyNonUrgent:
		return "non-urgent"
	case UrgencyUrgent:
		return "urgent"
	default:
		return "normal"
	}
}
