// Package clientauthn authenticates clients against their negotiated
// authentication method. The dispatch table is closed; every failure maps
// to invalid_client so callers cannot tell which stage rejected them.
package clientauthn

import (
	"bytes"
	"crypto/subtle"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/idpkit/idp/internal/joseutil"
	"github.com/idpkit/idp/internal/timeutil"
	"github.com/idpkit/idp/pkg/idp"
	"golang.org/x/crypto/bcrypt"
)

var assertionSigAlgs = []jose.SignatureAlgorithm{
	jose.RS256, jose.RS384, jose.RS512,
	jose.PS256, jose.PS384, jose.PS512,
	jose.ES256, jose.ES384, jose.ES512,
	jose.HS256, jose.HS384, jose.HS512,
}

// Authenticate verifies the presented credential against the client's
// registered authentication method and produces the credentials consumed by
// the rest of the pipeline.
func Authenticate(
	req AuthnRequest,
	server *idp.ServerConfiguration,
	client *idp.ClientConfiguration,
) (
	idp.ClientCredentials,
	error,
) {
	if !server.SupportsAuthnMethod(client.AuthnMethod) {
		return idp.ClientCredentials{}, idp.NewError(idp.ErrorCodeInvalidClient,
			"authentication method not supported")
	}

	credentials := idp.ClientCredentials{
		ClientID:    client.ID,
		AuthnMethod: client.AuthnMethod,
		Certificate: req.Certificate,
	}

	switch client.AuthnMethod {
	case idp.ClientAuthnNone:
		return credentials, nil
	case idp.ClientAuthnSecretPost:
		return credentials, authenticateSecretPost(req, client)
	case idp.ClientAuthnSecretBasic:
		return credentials, authenticateSecretBasic(req, client)
	case idp.ClientAuthnSecretJWT:
		credentials.Assertion = req.Assertion
		return credentials, authenticateSecretJWT(req, server, client)
	case idp.ClientAuthnPrivateKeyJWT:
		credentials.Assertion = req.Assertion
		return credentials, authenticatePrivateKeyJWT(req, server, client)
	case idp.ClientAuthnTLS:
		return credentials, authenticateTLSCert(req, client)
	case idp.ClientAuthnSelfSignedTLS:
		return credentials, authenticateSelfSignedTLSCert(req, client)
	default:
		return idp.ClientCredentials{}, idp.NewError(idp.ErrorCodeInvalidClient,
			"invalid authentication method")
	}
}

func authenticateSecretPost(req AuthnRequest, client *idp.ClientConfiguration) error {
	if req.ClientID != client.ID {
		return idp.NewError(idp.ErrorCodeInvalidClient, "invalid client id")
	}

	if req.Secret == "" {
		return idp.NewError(idp.ErrorCodeInvalidClient, "client secret not informed")
	}

	return validateSecret(client, req.Secret)
}

func authenticateSecretBasic(req AuthnRequest, client *idp.ClientConfiguration) error {
	if !req.HasBasicAuth {
		return idp.NewError(idp.ErrorCodeInvalidClient,
			"client basic authentication not informed")
	}

	if req.BasicID != client.ID {
		return idp.NewError(idp.ErrorCodeInvalidClient, "invalid client id")
	}

	return validateSecret(client, req.BasicSecret)
}

func validateSecret(client *idp.ClientConfiguration, secret string) error {
	if client.HashedSecret != "" {
		err := bcrypt.CompareHashAndPassword([]byte(client.HashedSecret), []byte(secret))
		if err != nil {
			return idp.Errorf(idp.ErrorCodeInvalidClient, "invalid client secret", err)
		}
		return nil
	}

	if subtle.ConstantTimeCompare([]byte(client.Secret), []byte(secret)) != 1 {
		return idp.NewError(idp.ErrorCodeInvalidClient, "invalid client secret")
	}

	return nil
}

func authenticatePrivateKeyJWT(
	req AuthnRequest,
	server *idp.ServerConfiguration,
	client *idp.ClientConfiguration,
) error {
	if err := validateAssertionPresence(req); err != nil {
		return err
	}

	algs := asymmetricAssertionAlgs()
	if client.AuthnSigAlg != "" {
		algs = []jose.SignatureAlgorithm{client.AuthnSigAlg}
	}

	joseCtx, err := joseutil.VerifyAsymmetric(req.Assertion, algs, client.JWKS, server.JWKS)
	if err != nil {
		return idp.Errorf(idp.ErrorCodeInvalidClient,
			"could not verify the client assertion", err)
	}

	return validateAssertionClaims(joseCtx.Claims, server, client)
}

func authenticateSecretJWT(
	req AuthnRequest,
	server *idp.ServerConfiguration,
	client *idp.ClientConfiguration,
) error {
	if err := validateAssertionPresence(req); err != nil {
		return err
	}

	algs := []jose.SignatureAlgorithm{jose.HS256, jose.HS384, jose.HS512}
	if client.AuthnSigAlg != "" {
		algs = []jose.SignatureAlgorithm{client.AuthnSigAlg}
	}

	joseCtx, err := joseutil.VerifyWithSecret(req.Assertion, algs, client.Secret)
	if err != nil {
		return idp.Errorf(idp.ErrorCodeInvalidClient,
			"could not verify the client assertion", err)
	}

	return validateAssertionClaims(joseCtx.Claims, server, client)
}

func validateAssertionPresence(req AuthnRequest) error {
	if req.Assertion == "" {
		return idp.NewError(idp.ErrorCodeInvalidClient, "client_assertion not informed")
	}

	if req.AssertionType != idp.AssertionTypeJWTBearer {
		return idp.NewError(idp.ErrorCodeInvalidClient, "invalid client_assertion_type")
	}

	return nil
}

// validateAssertionClaims runs the structural checks shared with request
// objects: iss equals the client id, aud contains the issuer, jti present,
// exp not elapsed.
func validateAssertionClaims(
	claims jwt.Claims,
	server *idp.ServerConfiguration,
	client *idp.ClientConfiguration,
) error {
	if claims.ID == "" {
		return idp.NewError(idp.ErrorCodeInvalidClient,
			"claim 'jti' is missing in the client assertion")
	}

	if claims.Expiry == nil {
		return idp.NewError(idp.ErrorCodeInvalidClient,
			"claim 'exp' is missing in the client assertion")
	}

	err := claims.ValidateWithLeeway(jwt.Expected{
		Issuer:      client.ID,
		Subject:     client.ID,
		AnyAudience: []string{server.Issuer},
		Time:        timeutil.Now(),
	}, 0)
	if err != nil {
		return idp.Errorf(idp.ErrorCodeInvalidClient, "invalid client assertion", err)
	}

	return nil
}

func authenticateTLSCert(req AuthnRequest, client *idp.ClientConfiguration) error {
	if req.Certificate == nil {
		return idp.NewError(idp.ErrorCodeInvalidClient, "client certificate not informed")
	}

	if client.TLSSubjectDistinguishedName != "" &&
		req.Certificate.Subject.String() != client.TLSSubjectDistinguishedName {
		return idp.NewError(idp.ErrorCodeInvalidClient, "invalid distinguished name")
	}

	return nil
}

// authenticateSelfSignedTLSCert requires the registered JWKS to carry
// exactly one key with a certificate chain and the presented certificate to
// byte-equal its leaf.
func authenticateSelfSignedTLSCert(req AuthnRequest, client *idp.ClientConfiguration) error {
	if req.Certificate == nil {
		return idp.NewError(idp.ErrorCodeInvalidClient, "client certificate not informed")
	}

	var chainKeys []jose.JSONWebKey
	for _, jwk := range client.JWKS.Keys {
		if len(jwk.Certificates) != 0 {
			chainKeys = append(chainKeys, jwk)
		}
	}

	if len(chainKeys) != 1 {
		return idp.NewError(idp.ErrorCodeInvalidClient,
			"the client JWKS must contain exactly one key with a certificate chain")
	}

	registered := chainKeys[0].Certificates[0]
	if !bytes.Equal(registered.Raw, req.Certificate.Raw) {
		return idp.NewError(idp.ErrorCodeInvalidClient,
			"the client certificate does not match the registered one")
	}

	return nil
}

func asymmetricAssertionAlgs() []jose.SignatureAlgorithm {
	var algs []jose.SignatureAlgorithm
	for _, alg := range assertionSigAlgs {
		switch alg {
		case jose.HS256, jose.HS384, jose.HS512:
		default:
			algs = append(algs, alg)
		}
	}

	return algs
}
