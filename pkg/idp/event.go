package idp

import "context"

// SecurityEventType identifies a shared-signals event emitted by the
// backchannel flow.
type SecurityEventType string

const (
	SecurityEventBackchannelRequest    SecurityEventType = "backchannel_authentication_request"
	SecurityEventBackchannelAuthorized SecurityEventType = "backchannel_authentication_authorized"
	SecurityEventBackchannelDenied     SecurityEventType = "backchannel_authentication_denied"
)

// SecurityEvent is the payload wrapped into a Security Event Token before
// transmission.
type SecurityEvent struct {
	Type        SecurityEventType `json:"type"`
	TokenIssuer string            `json:"token_issuer"`
	ClientID    string            `json:"client_id"`
	Subject     string            `json:"sub,omitempty"`
	OccurredAt  int64             `json:"occurred_at"`
	Payload     map[string]any    `json:"payload,omitempty"`
}

// SecurityEventTransmitter signs events into SETs and forwards them to the
// configured receivers. Failures must not fail the flow that emitted the
// event.
type SecurityEventTransmitter interface {
	Transmit(ctx context.Context, event SecurityEvent) error
}
