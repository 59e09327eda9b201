package provider

import (
	"log/slog"

	"github.com/go-jose/go-jose/v4"
	"github.com/idpkit/idp/pkg/idp"
)

// Option configures one aspect of the provider during New.
type Option func(p *Provider) error

// WithServerStorage replaces the in memory server configuration store.
func WithServerStorage(store idp.ServerConfigurationRepository) Option {
	return func(p *Provider) error {
		p.config.ServerStore = store
		return nil
	}
}

// WithClientStorage replaces the in memory client store.
func WithClientStorage(store idp.ClientConfigurationRepository) Option {
	return func(p *Provider) error {
		p.config.ClientStore = store
		return nil
	}
}

// WithAuthorizationRequestStorage replaces the in memory store of pushed and
// plain authorization requests.
func WithAuthorizationRequestStorage(store idp.AuthorizationRequestRepository) Option {
	return func(p *Provider) error {
		p.config.RequestStore = store
		return nil
	}
}

// WithBackchannelRequestStorage replaces the in memory store of backchannel
// authentication requests.
func WithBackchannelRequestStorage(store idp.BackchannelAuthenticationRequestRepository) Option {
	return func(p *Provider) error {
		p.config.BackchannelRequestStore = store
		return nil
	}
}

// WithCibaGrantStorage replaces the in memory CIBA grant store.
func WithCibaGrantStorage(store idp.CibaGrantRepository) Option {
	return func(p *Provider) error {
		p.config.CibaGrantStore = store
		return nil
	}
}

// WithRequestObjectGateway replaces the gateway that fetches request objects
// referenced by request_uri.
func WithRequestObjectGateway(gateway idp.RequestObjectGateway) Option {
	return func(p *Provider) error {
		p.config.RequestObjectGateway = gateway
		return nil
	}
}

// WithClientNotifier sets the gateway that delivers ping and push
// notifications to clients.
func WithClientNotifier(notifier idp.ClientNotificationGateway) Option {
	return func(p *Provider) error {
		p.config.ClientNotifier = notifier
		return nil
	}
}

// WithEventTransmitter sets the transmitter security events are published to.
func WithEventTransmitter(transmitter idp.SecurityEventTransmitter) Option {
	return func(p *Provider) error {
		p.config.EventTransmitter = transmitter
		return nil
	}
}

// WithUserHintResolver sets the resolver that maps login hints to end users
// during backchannel authentication.
func WithUserHintResolver(resolver idp.UserHintResolver) Option {
	return func(p *Provider) error {
		p.config.UserResolver = resolver
		return nil
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) error {
		p.config.Logger = logger
		return nil
	}
}

// WithPathPrefix mounts every endpoint under the informed prefix.
func WithPathPrefix(prefix string) Option {
	return func(p *Provider) error {
		p.config.EndpointPrefix = prefix
		return nil
	}
}

func WithAuthorizeEndpoint(path string) Option {
	return func(p *Provider) error {
		p.config.EndpointAuthorize = path
		return nil
	}
}

func WithPAREndpoint(path string) Option {
	return func(p *Provider) error {
		p.config.EndpointPushedAuthorization = path
		return nil
	}
}

func WithBackchannelEndpoint(path string) Option {
	return func(p *Provider) error {
		p.config.EndpointBackchannel = path
		return nil
	}
}

// WithAuthorizationHandler sets the function invoked once an authorization
// request passes verification, typically to start user interaction.
func WithAuthorizationHandler(f func(ctx idp.Context, request *idp.AuthorizationRequest) error) Option {
	return func(p *Provider) error {
		p.config.HandleAuthorizationFunc = f
		return nil
	}
}

// WithCIBAPushPayload sets the function that builds the payload pushed to
// clients registered with push delivery.
func WithCIBAPushPayload(f func(ctx idp.Context, grant *idp.CibaGrant) (map[string]any, error)) Option {
	return func(p *Provider) error {
		p.config.CIBAPushPayloadFunc = f
		return nil
	}
}

// WithScopes defines the scopes available to clients. oidc is added in case
// it is not informed.
func WithScopes(scopes ...string) Option {
	return func(p *Provider) error {
		for _, scope := range scopes {
			if scope == "openid" {
				p.server.Scopes = scopes
				return nil
			}
		}
		p.server.Scopes = append(scopes, "openid")
		return nil
	}
}

// WithFAPIScopes makes requests carrying one of the informed scopes run
// under the corresponding FAPI profile.
func WithFAPIScopes(baseline, advance string) Option {
	return func(p *Provider) error {
		p.server.FAPIBaselineScope = baseline
		p.server.FAPIAdvanceScope = advance
		return nil
	}
}

func WithGrantTypes(grants ...idp.GrantType) Option {
	return func(p *Provider) error {
		p.server.GrantTypes = grants
		return nil
	}
}

func WithResponseTypes(types ...idp.ResponseType) Option {
	return func(p *Provider) error {
		p.server.ResponseTypes = types
		return nil
	}
}

func WithResponseModes(modes ...idp.ResponseMode) Option {
	return func(p *Provider) error {
		p.server.ResponseModes = modes
		return nil
	}
}

func WithTokenAuthnMethods(methods ...idp.ClientAuthnType) Option {
	return func(p *Provider) error {
		p.server.TokenAuthnMethods = methods
		return nil
	}
}

func WithACRs(acrs ...string) Option {
	return func(p *Provider) error {
		p.server.ACRs = acrs
		return nil
	}
}

func WithDisplayValues(values ...idp.DisplayValue) Option {
	return func(p *Provider) error {
		p.server.DisplayValues = values
		return nil
	}
}

// WithJARM enables signed response JWTs with the informed algorithm.
func WithJARM(sigAlg jose.SignatureAlgorithm, lifetimeSecs int64) Option {
	return func(p *Provider) error {
		p.server.JARMIsEnabled = true
		p.server.JARMSigAlg = sigAlg
		p.server.JARMLifetimeSecs = lifetimeSecs
		p.server.ResponseModes = append(
			p.server.ResponseModes,
			idp.ResponseModeJWT, idp.ResponseModeQueryJWT, idp.ResponseModeFragmentJWT,
		)
		return nil
	}
}

// WithPlainPKCE allows the plain code challenge method. S256 is always
// accepted.
func WithPlainPKCE() Option {
	return func(p *Provider) error {
		p.server.PlainPKCEIsAllowed = true
		return nil
	}
}

// WithJARSigAlgs defines the algorithms accepted for signed request objects.
func WithJARSigAlgs(algs ...jose.SignatureAlgorithm) Option {
	return func(p *Provider) error {
		p.server.JARSigAlgs = algs
		return nil
	}
}

// WithRequireSignedRequestObject makes unsigned request objects be rejected
// across the board.
func WithRequireSignedRequestObject() Option {
	return func(p *Provider) error {
		p.server.RequireSignedRequestObject = true
		return nil
	}
}

// WithBackchannelUserCodeRequired makes the user_code parameter mandatory on
// backchannel authentication requests.
func WithBackchannelUserCodeRequired() Option {
	return func(p *Provider) error {
		p.server.BackchannelUserCodeIsRequired = true
		return nil
	}
}

// WithCIBAPollingInterval sets the interval in seconds poll clients must
// respect between token requests.
func WithCIBAPollingInterval(secs int64) Option {
	return func(p *Provider) error {
		p.server.CIBAPollingIntervalSecs = secs
		return nil
	}
}

// WithCIBARequestLifetime sets how long backchannel grants stay pending
// before they expire.
func WithCIBARequestLifetime(secs int64) Option {
	return func(p *Provider) error {
		p.server.CIBARequestLifetimeSecs = secs
		return nil
	}
}

// WithPARRequestLifetime sets how long pushed request URIs stay valid.
func WithPARRequestLifetime(secs int64) Option {
	return func(p *Provider) error {
		p.server.PARRequestLifetimeSecs = secs
		return nil
	}
}

// WithAuthorizationDetailTypes enables rich authorization requests with the
// informed detail types.
func WithAuthorizationDetailTypes(types ...string) Option {
	return func(p *Provider) error {
		p.server.AuthorizationDetailTypes = types
		return nil
	}
}

// WithCredentialIssuer accepts openid_credential authorization details bound
// to the informed issuer metadata.
func WithCredentialIssuer(metadata idp.CredentialIssuerMetadata) Option {
	return func(p *Provider) error {
		p.server.CredentialIssuer = &metadata
		return nil
	}
}
