// Package ssf transmits security events as Security Event Tokens to the
// receivers subscribed to them.
package ssf

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/go-jose/go-jose/v4"
	"github.com/google/uuid"
	"github.com/idpkit/idp/internal/joseutil"
	"github.com/idpkit/idp/internal/timeutil"
	"github.com/idpkit/idp/pkg/idp"
)

const (
	jwtTypeSecurityEvent     = "secevent+jwt"
	contentTypeSecurityEvent = "application/secevent+jwt"
)

// Receiver is one subscribed event consumer. An empty EventTypes list
// subscribes to everything.
type Receiver struct {
	Audience            string
	DeliveryEndpoint    string
	AuthorizationHeader string
	EventTypes          []idp.SecurityEventType
}

func (r Receiver) accepts(eventType idp.SecurityEventType) bool {
	return len(r.EventTypes) == 0 || slices.Contains(r.EventTypes, eventType)
}

// Transmitter signs events into SETs and pushes them to every receiver
// subscribed to the event type.
type Transmitter struct {
	Issuer     string
	SigningJWK jose.JSONWebKey
	Receivers  []Receiver
	HTTPClient *http.Client
}

func NewTransmitter(issuer string, jwk jose.JSONWebKey, receivers ...Receiver) *Transmitter {
	return &Transmitter{
		Issuer:     issuer,
		SigningJWK: jwk,
		Receivers:  receivers,
		HTTPClient: http.DefaultClient,
	}
}

type securityEventToken struct {
	Issuer   string                        `json:"iss"`
	JWTID    string                        `json:"jti"`
	Audience string                        `json:"aud"`
	IssuedAt int64                         `json:"iat"`
	Events   map[idp.SecurityEventType]any `json:"events"`
}

func (t *Transmitter) Transmit(ctx context.Context, event idp.SecurityEvent) error {
	for _, receiver := range t.Receivers {
		if !receiver.accepts(event.Type) {
			continue
		}

		if err := t.push(ctx, receiver, event); err != nil {
			return err
		}
	}

	return nil
}

func (t *Transmitter) push(ctx context.Context, receiver Receiver, event idp.SecurityEvent) error {
	set, err := t.sign(receiver, event)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		receiver.DeliveryEndpoint, strings.NewReader(set))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentTypeSecurityEvent)
	if receiver.AuthorizationHeader != "" {
		req.Header.Set("Authorization", receiver.AuthorizationHeader)
	}

	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("push failed with status %d", resp.StatusCode)
	}
	return nil
}

func (t *Transmitter) sign(receiver Receiver, event idp.SecurityEvent) (string, error) {
	claims := map[idp.SecurityEventType]any{
		event.Type: map[string]any{
			"token_issuer": event.TokenIssuer,
			"client_id":    event.ClientID,
			"sub":          event.Subject,
			"occurred_at":  event.OccurredAt,
			"payload":      event.Payload,
		},
	}

	token := securityEventToken{
		Issuer:   t.Issuer,
		JWTID:    uuid.NewString(),
		Audience: receiver.Audience,
		IssuedAt: timeutil.TimestampNow(),
		Events:   claims,
	}

	opts := (&jose.SignerOptions{}).WithType(jwtTypeSecurityEvent)
	return joseutil.Sign(token, t.SigningJWK, opts)
}
