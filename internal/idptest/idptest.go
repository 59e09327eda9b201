// Package idptest provides the shared fixtures the request pipeline tests
// build on.
package idptest

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/idpkit/idp/internal/joseutil"
	"github.com/idpkit/idp/internal/oidc"
	"github.com/idpkit/idp/internal/storage/inmemory"
	"github.com/idpkit/idp/pkg/idp"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	Issuer            string = "https://idp.example.com"
	KeyID             string = "test_rsa_key"
	ClientID          string = "test_client_id"
	ClientSecret      string = "test_client_secret"
	ClientKeyID       string = "test_client_key"
	ClientRedirectURI string = "https://client.example.com/callback"

	ScopePayments string = "payments"
	ScopeFAPI     string = "fapi"
)

var (
	ServerPrivateJWK = PrivateRS256JWK(nil, KeyID)
	ClientPrivateJWK = PrivateRS256JWK(nil, ClientKeyID)
)

func NewServer(_ *testing.T) *idp.ServerConfiguration {
	return &idp.ServerConfiguration{
		Issuer:           Issuer,
		Scopes:           []string{"openid", "profile", ScopePayments, ScopeFAPI},
		FAPIAdvanceScope: ScopeFAPI,
		GrantTypes: []idp.GrantType{
			idp.GrantAuthorizationCode,
			idp.GrantImplicit,
			idp.GrantCIBA,
		},
		ResponseTypes: []idp.ResponseType{
			idp.ResponseTypeCode,
			idp.ResponseTypeIDToken,
			idp.ResponseTypeCodeAndIDTkn,
		},
		ResponseModes: []idp.ResponseMode{
			idp.ResponseModeQuery,
			idp.ResponseModeFragment,
			idp.ResponseModeFormPost,
		},
		TokenAuthnMethods: []idp.ClientAuthnType{
			idp.ClientAuthnSecretBasic,
			idp.ClientAuthnSecretPost,
			idp.ClientAuthnSecretJWT,
			idp.ClientAuthnPrivateKeyJWT,
		},
		JWKS: jose.JSONWebKeySet{Keys: []jose.JSONWebKey{ServerPrivateJWK}},
	}
}

func NewClient(_ *testing.T) *idp.ClientConfiguration {
	hashedSecret, _ := bcrypt.GenerateFromPassword([]byte(ClientSecret), bcrypt.DefaultCost)
	return &idp.ClientConfiguration{
		ID:           ClientID,
		Issuer:       Issuer,
		HashedSecret: string(hashedSecret),
		AuthnMethod:  idp.ClientAuthnSecretPost,
		JWKS:         jose.JSONWebKeySet{Keys: []jose.JSONWebKey{ClientPrivateJWK.Public()}},
		RedirectURIs: []string{ClientRedirectURI},
		GrantTypes: []idp.GrantType{
			idp.GrantAuthorizationCode,
			idp.GrantImplicit,
			idp.GrantCIBA,
		},
		Scopes:           []string{"openid", "profile", ScopePayments, ScopeFAPI},
		CIBADeliveryMode: idp.CIBADeliveryPoll,
	}
}

// NewContext builds a request context over fresh in memory stores with the
// default test server and client saved.
func NewContext(t *testing.T) oidc.Context {
	config := &oidc.Configuration{
		ServerStore:             inmemory.NewServerManager(),
		ClientStore:             inmemory.NewClientManager(),
		RequestStore:            inmemory.NewAuthorizationRequestManager(),
		BackchannelRequestStore: inmemory.NewBackchannelRequestManager(),
		CibaGrantStore:          inmemory.NewCibaGrantManager(),
		Issuer:                  Issuer,
	}

	ctx := oidc.NewContext(
		httptest.NewRecorder(),
		httptest.NewRequest(http.MethodPost, "/authorize", nil),
		config,
	)

	saveServer(t, ctx, NewServer(t))
	SaveClient(t, ctx, NewClient(t))

	return ctx
}

func saveServer(t *testing.T, ctx oidc.Context, server *idp.ServerConfiguration) {
	manager, ok := ctx.ServerStore.(*inmemory.ServerManager)
	require.True(t, ok, "the test context must use the in memory server store")
	require.NoError(t, manager.Save(ctx.Context(), server))
}

func SaveClient(t *testing.T, ctx oidc.Context, client *idp.ClientConfiguration) {
	manager, ok := ctx.ClientStore.(*inmemory.ClientManager)
	require.True(t, ok, "the test context must use the in memory client store")
	require.NoError(t, manager.Save(ctx.Context(), client))
}

// Recorder returns the response recorder behind the test context.
func Recorder(t *testing.T, ctx oidc.Context) *httptest.ResponseRecorder {
	recorder, ok := ctx.Response.(*httptest.ResponseRecorder)
	require.True(t, ok, "the test context must wrap a response recorder")
	return recorder
}

// WithForm rebuilds the context request with the given form body.
func WithForm(ctx oidc.Context, form url.Values) oidc.Context {
	req := httptest.NewRequest(
		http.MethodPost,
		ctx.Request.URL.Path,
		strings.NewReader(form.Encode()),
	)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	ctx.Request = req
	return ctx
}

// SignRequestObject produces a request object signed with the client test
// key.
func SignRequestObject(t *testing.T, claims map[string]any) string {
	opts := (&jose.SignerOptions{}).WithHeader("kid", ClientPrivateJWK.KeyID)
	signed, err := joseutil.Sign(claims, ClientPrivateJWK, opts)
	require.NoError(t, err)
	return signed
}

func PrivateRS256JWK(_ *testing.T, keyID string) jose.JSONWebKey {
	privateKey, _ := rsa.GenerateKey(rand.Reader, 2048)
	return jose.JSONWebKey{
		Key:       privateKey,
		KeyID:     keyID,
		Algorithm: string(jose.RS256),
		Use:       "sig",
	}
}

func PrivatePS256JWK(_ *testing.T, keyID string) jose.JSONWebKey {
	privateKey, _ := rsa.GenerateKey(rand.Reader, 2048)
	return jose.JSONWebKey{
		Key:       privateKey,
		KeyID:     keyID,
		Algorithm: string(jose.PS256),
		Use:       "sig",
	}
}

// SafeClaims verifies jws against the private key pair and returns its
// claims.
func SafeClaims(t *testing.T, jws string, privateJWK jose.JSONWebKey) map[string]any {
	parsed, err := jwt.ParseSigned(jws, []jose.SignatureAlgorithm{
		jose.SignatureAlgorithm(privateJWK.Algorithm),
	})
	require.NoError(t, err, "invalid JWT")

	var claims map[string]any
	err = parsed.Claims(privateJWK.Public().Key, &claims)
	require.NoError(t, err, "could not read claims")

	return claims
}
