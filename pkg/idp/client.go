package idp

import (
	"crypto/x509"
	"slices"

	"github.com/go-jose/go-jose/v4"
)

type ClientAuthnType string

const (
	ClientAuthnNone          ClientAuthnType = "none"
	ClientAuthnSecretBasic   ClientAuthnType = "client_secret_basic"
	ClientAuthnSecretPost    ClientAuthnType = "client_secret_post"
	ClientAuthnSecretJWT     ClientAuthnType = "client_secret_jwt"
	ClientAuthnPrivateKeyJWT ClientAuthnType = "private_key_jwt"
	ClientAuthnTLS           ClientAuthnType = "tls_client_auth"
	ClientAuthnSelfSignedTLS ClientAuthnType = "self_signed_tls_client_auth"
)

const AssertionTypeJWTBearer = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// ClientConfiguration is the registered metadata of one client under a
// token issuer. Read-only once loaded.
type ClientConfiguration struct {
	ID     string `json:"client_id" bson:"_id"`
	Issuer string `json:"issuer" bson:"issuer"`

	// Secret is stored in clear only for client_secret_jwt, where the same
	// value signs and verifies assertions.
	Secret string `json:"client_secret,omitempty"`
	// HashedSecret, when set, replaces plain comparison for the basic and
	// post methods.
	HashedSecret string `json:"hashed_secret,omitempty"`

	AuthnMethod  ClientAuthnType         `json:"token_endpoint_auth_method"`
	AuthnSigAlg  jose.SignatureAlgorithm `json:"token_endpoint_auth_signing_alg,omitempty"`
	JWKS         jose.JSONWebKeySet      `json:"jwks"`
	RedirectURIs []string                `json:"redirect_uris"`
	RequestURIs  []string                `json:"request_uris"`
	GrantTypes   []GrantType             `json:"grant_types"`
	Scopes       []string                `json:"scope"`

	JARIsEnabled bool                    `json:"request_object_required"`
	JARSigAlg    jose.SignatureAlgorithm `json:"request_object_signing_alg,omitempty"`

	AuthorizationDetailTypes []string `json:"authorization_details_types,omitempty"`

	TLSSubjectDistinguishedName string `json:"tls_client_auth_subject_dn,omitempty"`

	CIBADeliveryMode         CIBADeliveryMode `json:"backchannel_token_delivery_mode,omitempty"`
	CIBANotificationEndpoint string           `json:"backchannel_client_notification_endpoint,omitempty"`
	CIBAUserCodeIsEnabled    bool             `json:"backchannel_user_code_parameter,omitempty"`
	CIBARequireRAR           bool             `json:"backchannel_authentication_request_rar_required,omitempty"`
}

func (c *ClientConfiguration) IsGrantTypeAllowed(gt GrantType) bool {
	return slices.Contains(c.GrantTypes, gt)
}

func (c *ClientConfiguration) IsRedirectURIRegistered(uri string) bool {
	return slices.Contains(c.RedirectURIs, uri)
}

func (c *ClientConfiguration) IsRequestURIRegistered(uri string) bool {
	return slices.Contains(c.RequestURIs, uri)
}

func (c *ClientConfiguration) IsAuthorizationDetailTypeAllowed(t string) bool {
	return slices.Contains(c.AuthorizationDetailTypes, t)
}

// JWK returns the registered key with the given ID.
func (c *ClientConfiguration) JWK(keyID string) (jose.JSONWebKey, error) {
	keys := c.JWKS.Key(keyID)
	if len(keys) == 0 {
		return jose.JSONWebKey{}, NewError(ErrorCodeInvalidClient, "invalid key ID")
	}

	return keys[0], nil
}

// SignatureJWK returns the first registered signing key for the algorithm,
// used when an assertion carries no key ID.
func (c *ClientConfiguration) SignatureJWK(alg jose.SignatureAlgorithm) (jose.JSONWebKey, error) {
	for _, jwk := range c.JWKS.Keys {
		if jwk.Algorithm == string(alg) {
			return jwk, nil
		}
	}

	return jose.JSONWebKey{}, NewError(ErrorCodeInvalidClient, "could not find a signing key")
}

// ClientCredentials is the outcome of client authentication. Produced once
// per request, never mutated.
type ClientCredentials struct {
	ClientID    string
	AuthnMethod ClientAuthnType
	Secret      string
	PublicJWK   *jose.JSONWebKey
	Assertion   string
	Certificate *x509.Certificate
}
