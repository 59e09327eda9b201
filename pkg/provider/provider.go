// Package provider assembles the authorization server core into a runnable
// http handler.
package provider

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-jose/go-jose/v4"
	"github.com/idpkit/idp/internal/api"
	"github.com/idpkit/idp/internal/oidc"
	"github.com/idpkit/idp/internal/requestobject"
	"github.com/idpkit/idp/internal/storage/inmemory"
	"github.com/idpkit/idp/pkg/idp"
)

const (
	defaultEndpointAuthorize   = "/authorize"
	defaultEndpointPAR         = "/par"
	defaultEndpointBackchannel = "/backchannel-authentications"
)

type Provider struct {
	config *oidc.Configuration
	// server is the seed configuration of the default token issuer. It is
	// persisted during New when the server store accepts writes.
	server *idp.ServerConfiguration
}

// New creates a provider for one token issuer. By default every entity is
// stored in memory and the issuer capabilities come from the seed
// configuration the options adjust.
func New(
	issuer string,
	jwks jose.JSONWebKeySet,
	opts ...Option,
) (
	Provider,
	error,
) {
	p := Provider{
		config: &oidc.Configuration{
			Issuer: issuer,
		},
		server: &idp.ServerConfiguration{
			Issuer: issuer,
			JWKS:   jwks,
			GrantTypes: []idp.GrantType{
				idp.GrantAuthorizationCode,
			},
			ResponseTypes: []idp.ResponseType{
				idp.ResponseTypeCode,
			},
			ResponseModes: []idp.ResponseMode{
				idp.ResponseModeQuery, idp.ResponseModeFragment, idp.ResponseModeFormPost,
			},
			TokenAuthnMethods: []idp.ClientAuthnType{
				idp.ClientAuthnSecretBasic, idp.ClientAuthnSecretPost,
			},
		},
	}

	for _, opt := range opts {
		if err := opt(&p); err != nil {
			return Provider{}, err
		}
	}

	if err := p.setDefaults(); err != nil {
		return Provider{}, err
	}

	if err := p.validate(); err != nil {
		return Provider{}, err
	}

	return p, nil
}

func (p *Provider) setDefaults() error {
	config := p.config

	if config.EndpointAuthorize == "" {
		config.EndpointAuthorize = defaultEndpointAuthorize
	}
	if config.EndpointPushedAuthorization == "" {
		config.EndpointPushedAuthorization = defaultEndpointPAR
	}
	if config.EndpointBackchannel == "" {
		config.EndpointBackchannel = defaultEndpointBackchannel
	}

	if config.ServerStore == nil {
		config.ServerStore = inmemory.NewServerManager()
	}
	if config.ClientStore == nil {
		config.ClientStore = inmemory.NewClientManager()
	}
	if config.RequestStore == nil {
		config.RequestStore = inmemory.NewAuthorizationRequestManager()
	}
	if config.BackchannelRequestStore == nil {
		config.BackchannelRequestStore = inmemory.NewBackchannelRequestManager()
	}
	if config.CibaGrantStore == nil {
		config.CibaGrantStore = inmemory.NewCibaGrantManager()
	}
	if config.RequestObjectGateway == nil {
		config.RequestObjectGateway = requestobject.NewHTTPGateway()
	}

	// Persist the seed configuration when the store accepts writes, so both
	// the default in memory store and writable custom stores pick it up.
	type serverSaver interface {
		Save(ctx context.Context, server *idp.ServerConfiguration) error
	}
	if saver, ok := config.ServerStore.(serverSaver); ok {
		return saver.Save(context.Background(), p.server)
	}

	return nil
}

func (p *Provider) validate() error {
	if p.config.Issuer == "" {
		return errors.New("the issuer is required")
	}

	if len(p.server.Scopes) == 0 {
		return errors.New("no scope is registered")
	}

	return nil
}

// Handler returns the http handler with every provider endpoint mounted.
func (p Provider) Handler() http.Handler {
	return api.NewRouter(p.config)
}

func (p Provider) Run(address string) error {
	return http.ListenAndServe(address, p.Handler())
}

// SaveClient registers a client under the provider's issuer when the client
// store accepts writes.
func (p Provider) SaveClient(ctx context.Context, client *idp.ClientConfiguration) error {
	type clientSaver interface {
		Save(ctx context.Context, client *idp.ClientConfiguration) error
	}

	if client.Issuer == "" {
		client.Issuer = p.config.Issuer
	}

	saver, ok := p.config.ClientStore.(clientSaver)
	if !ok {
		return errors.New("the client store does not accept writes")
	}
	return saver.Save(ctx, client)
}
