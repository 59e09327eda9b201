package oidc

import (
	"log/slog"

	"github.com/idpkit/idp/pkg/idp"
)

// Configuration wires the collaborators the request pipeline calls out to.
// It is assembled once at startup and shared read-only by every request.
type Configuration struct {
	ServerStore             idp.ServerConfigurationRepository
	ClientStore             idp.ClientConfigurationRepository
	RequestStore            idp.AuthorizationRequestRepository
	BackchannelRequestStore idp.BackchannelAuthenticationRequestRepository
	CibaGrantStore          idp.CibaGrantRepository

	RequestObjectGateway idp.RequestObjectGateway
	ClientNotifier       idp.ClientNotificationGateway
	EventTransmitter     idp.SecurityEventTransmitter
	UserResolver         idp.UserHintResolver

	// HandleAuthorizationFunc hands a fully verified authorization request
	// over to the user interaction layer. When unset, the request identifier
	// is returned to the caller.
	HandleAuthorizationFunc func(ctx idp.Context, request *idp.AuthorizationRequest) error

	// CIBAPushPayloadFunc builds the token material delivered to clients
	// registered for push delivery. When unset, push notifications carry
	// only the auth_req_id.
	CIBAPushPayloadFunc func(ctx idp.Context, grant *idp.CibaGrant) (map[string]any, error)

	// Issuer is the default token issuer used when a request does not
	// resolve a tenant of its own.
	Issuer string

	Logger *slog.Logger

	EndpointAuthorize           string
	EndpointPushedAuthorization string
	EndpointBackchannel         string
	EndpointPrefix              string
}
