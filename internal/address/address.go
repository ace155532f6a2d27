// Package address provides mailbox address validation and per-role
// address set construction for an outgoing message.
package address

import (
	"fmt"
	"net/mail"
)

// Role identifies which header of the outgoing message an address populates.
type Role int

const (
	RoleSender Role = iota
	RoleTo
	RoleCc
	RoleBcc
	RoleReplyTo
)

// String returns the message header name for the role.
func (r Role) String() string {
	switch r {
	case RoleSender:
		return "From"
	case RoleTo:
		return "To"
	case RoleCc:
		return "Cc"
	case RoleBcc:
		return "Bcc"
	case RoleReplyTo:
		return "Reply-To"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Address is a validated mailbox address with an optional display name.
// Values are immutable once created.
type Address struct {
	Name    string
	Address string
}

// String renders the address in RFC 5322 form, including the display name
// when present.
func (a Address) String() string {
	return (&mail.Address{Name: a.Name, Address: a.Address}).String()
}

// FormatError reports a raw string that failed mailbox address validation.
// For recipient roles it is non-terminating: the offending address is
// skipped and the remaining addresses are still processed.
type FormatError struct {
	Raw  string
	Role Role
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid %s address %q: %v", e.Role, e.Raw, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Parse validates a single raw mailbox address string.
func Parse(raw string) (Address, error) {
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return Address{}, err
	}
	return Address{Name: addr.Name, Address: addr.Address}, nil
}

// ParseSender validates the sender address. Unlike recipient roles, a
// sender that fails to parse is fatal: no message can be built without one.
func ParseSender(raw string) (Address, error) {
	addr, err := Parse(raw)
	if err != nil {
		return Address{}, &FormatError{Raw: raw, Role: RoleSender, Err: err}
	}
	return addr, nil
}

// Builder parses raw address strings per role. Valid addresses are kept in
// input order; each invalid one is recorded as a FormatError and skipped.
type Builder struct {
	errs []*FormatError
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add parses the raw strings for the given role. The returned slice
// preserves the input order of the addresses that validated. An empty or
// nil input is legal and contributes no addresses.
func (b *Builder) Add(role Role, raws []string) []Address {
	addrs := make([]Address, 0, len(raws))
	for _, raw := range raws {
		addr, err := Parse(raw)
		if err != nil {
			b.errs = append(b.errs, &FormatError{Raw: raw, Role: role, Err: err})
			continue
		}
		addrs = append(addrs, addr)
	}
	return addrs
}

// Errors returns the format errors recorded so far, one per skipped
// address, in the order they were encountered.
func (b *Builder) Errors() []*FormatError {
	return b.errs
}

// Literals returns the bare address literals of addrs, in order.
func Literals(addrs []Address) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.Address)
	}
	return out
}

// Strings renders addrs into RFC 5322 form, in order.
func Strings(addrs []Address) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String())
	}
	return out
}
