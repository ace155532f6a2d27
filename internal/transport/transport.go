// Package transport defines the delivery target model, target resolution,
// and the interface delivery backends implement.
package transport

import (
	"context"

	"github.com/shineum/smtp-send-lite/internal/message"
)

// Credential is an explicit username/password pair used for transport
// authentication.
type Credential struct {
	Username string
	Password string
}

// Target is the resolved transport destination for one delivery attempt.
// It is built once per invocation and discarded after delivery.
type Target struct {
	Host string
	// Port 0 lets the transport pick its protocol default for the chosen
	// security mode. Any positive value is used verbatim.
	Port int
	// UseTLS requests a secured session.
	UseTLS bool
	// Credential, when set, is used exclusively and ambient identity is
	// disabled.
	Credential *Credential
	// AmbientIdentity reports that no explicit credential was supplied and
	// the transport may fall back to the process's default identity.
	AmbientIdentity bool
}

// Transport is the interface delivery backends implement. Deliver performs
// exactly one submission of msg to target. API-backed transports may
// ignore the host and port of the target.
type Transport interface {
	Deliver(ctx context.Context, target Target, msg *message.Message) error
	Name() string
}
