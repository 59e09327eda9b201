package idp

import "context"

// ServerConfigurationRepository resolves the configuration of one token
// issuer.
type ServerConfigurationRepository interface {
	Get(ctx context.Context, tokenIssuer string) (*ServerConfiguration, error)
}

// ClientConfigurationRepository resolves the registered configuration of a
// client under a token issuer.
type ClientConfigurationRepository interface {
	Get(ctx context.Context, tokenIssuer, clientID string) (*ClientConfiguration, error)
}

// AuthorizationRequestRepository stores authorization requests, including
// pushed ones looked up by their request_uri reference.
type AuthorizationRequestRepository interface {
	Register(ctx context.Context, request *AuthorizationRequest) error
	Find(ctx context.Context, id string) (*AuthorizationRequest, error)
	Delete(ctx context.Context, id string) error
}

// BackchannelAuthenticationRequestRepository stores CIBA request entities.
type BackchannelAuthenticationRequestRepository interface {
	Register(ctx context.Context, request *BackchannelAuthenticationRequest) error
	Find(ctx context.Context, id string) (*BackchannelAuthenticationRequest, error)
	Delete(ctx context.Context, id string) error
}

// CibaGrantRepository stores grants keyed by auth_req_id. Update must only
// apply when the stored version matches the version the caller read minus
// its own increment, so that exactly one of two racing transitions wins.
type CibaGrantRepository interface {
	Register(ctx context.Context, grant *CibaGrant) error
	FindByAuthReqID(ctx context.Context, authReqID string) (*CibaGrant, error)
	Update(ctx context.Context, grant *CibaGrant) error
	// ExpireBefore flips pending grants whose expiry elapsed to the expired
	// status.
	ExpireBefore(ctx context.Context, timestamp int64) error
}

// RequestObjectGateway dereferences a request_uri into the raw JWT it
// points at.
type RequestObjectGateway interface {
	Fetch(ctx context.Context, requestURI string) (string, error)
}

// ClientNotificationGateway delivers CIBA ping and push notifications. The
// core fires it once and does not retry; implementations own their retry
// policy.
type ClientNotificationGateway interface {
	Notify(ctx context.Context, endpoint, bearerToken string, body any) error
}

// UserHintResolver turns a CIBA hint into an end user. Implementations
// decide which hint kinds they understand.
type UserHintResolver interface {
	Resolve(ctx context.Context, tokenIssuer string, request *BackchannelAuthenticationRequest) (*User, error)
}
