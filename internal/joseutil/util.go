// Package joseutil wraps go-jose into the signature-verification capability
// the request pipeline consumes. Verification never trusts a claim before
// the signature checked out.
package joseutil

import (
	"errors"
	"regexp"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

var symmetricAlgs = []jose.SignatureAlgorithm{jose.HS256, jose.HS384, jose.HS512}

// Context is the outcome of verifying a signed JWT. The zero value stands
// for "no JOSE material in this request".
type Context struct {
	token  *jwt.JSONWebToken
	Claims jwt.Claims
	Raw    map[string]any
}

func (c Context) Exists() bool {
	return c.token != nil
}

// Scope returns the scope claim asserted inside the verified JWT.
func (c Context) Scope() string {
	return c.String("scope")
}

func (c Context) String(claim string) string {
	value, ok := c.Raw[claim].(string)
	if !ok {
		return ""
	}

	return value
}

// VerifyAsymmetric parses raw as a JWS and verifies it against the client
// keys, falling back to the server-known keys. Symmetric algorithms are
// rejected outright: a shared client secret must never be able to forge a
// request object. Extra claim destinations are filled on success.
func VerifyAsymmetric(
	raw string,
	algs []jose.SignatureAlgorithm,
	clientJWKS jose.JSONWebKeySet,
	serverJWKS jose.JSONWebKeySet,
	dest ...any,
) (
	Context,
	error,
) {
	parsed, err := jwt.ParseSigned(raw, asymmetricOnly(algs))
	if err != nil {
		return Context{}, err
	}

	if len(parsed.Headers) != 1 {
		return Context{}, errors.New("invalid number of jwt headers")
	}

	header := parsed.Headers[0]
	if isSymmetric(jose.SignatureAlgorithm(header.Algorithm)) {
		return Context{}, errors.New("symmetric signing algorithms are not accepted")
	}

	jwk, err := verificationKey(header, clientJWKS, serverJWKS)
	if err != nil {
		return Context{}, err
	}

	ctx := Context{token: parsed, Raw: map[string]any{}}
	targets := append([]any{&ctx.Claims, &ctx.Raw}, dest...)
	if err := parsed.Claims(jwk.Key, targets...); err != nil {
		return Context{}, err
	}

	return ctx, nil
}

// VerifyWithSecret verifies a JWS signed with the shared client secret,
// used for client_secret_jwt assertions only.
func VerifyWithSecret(
	raw string,
	algs []jose.SignatureAlgorithm,
	secret string,
	dest ...any,
) (
	Context,
	error,
) {
	parsed, err := jwt.ParseSigned(raw, algs)
	if err != nil {
		return Context{}, err
	}

	ctx := Context{token: parsed, Raw: map[string]any{}}
	targets := append([]any{&ctx.Claims, &ctx.Raw}, dest...)
	if err := parsed.Claims([]byte(secret), targets...); err != nil {
		return Context{}, err
	}

	return ctx, nil
}

// UnverifiedClaims extracts claims without checking the signature. Only for
// pre-verification routing such as finding the client id inside an
// assertion.
func UnverifiedClaims(raw string, algs []jose.SignatureAlgorithm, dest any) error {
	parsed, err := jwt.ParseSigned(raw, algs)
	if err != nil {
		return err
	}

	return parsed.UnsafeClaimsWithoutVerification(dest)
}

// Sign produces a compact JWS for the given claims.
func Sign(claims any, jwk jose.JSONWebKey, opts *jose.SignerOptions) (string, error) {
	if opts == nil {
		opts = &jose.SignerOptions{}
	}
	if _, ok := opts.ExtraHeaders[jose.HeaderType]; !ok {
		opts = opts.WithType("JWT")
	}

	signer, err := jose.NewSigner(
		jose.SigningKey{
			Algorithm: jose.SignatureAlgorithm(jwk.Algorithm),
			Key:       jwk.Key,
		},
		opts,
	)
	if err != nil {
		return "", err
	}

	return jwt.Signed(signer).Claims(claims).Serialize()
}

func verificationKey(
	header jose.Header,
	clientJWKS jose.JSONWebKeySet,
	serverJWKS jose.JSONWebKeySet,
) (
	jose.JSONWebKey,
	error,
) {
	if header.KeyID == "" {
		return jose.JSONWebKey{}, errors.New("invalid kid header")
	}

	if keys := clientJWKS.Key(header.KeyID); len(keys) != 0 {
		return keys[0], nil
	}

	if keys := serverJWKS.Key(header.KeyID); len(keys) != 0 {
		return keys[0], nil
	}

	return jose.JSONWebKey{}, errors.New("could not find the key to verify the signature")
}

func asymmetricOnly(algs []jose.SignatureAlgorithm) []jose.SignatureAlgorithm {
	var filtered []jose.SignatureAlgorithm
	for _, alg := range algs {
		if !isSymmetric(alg) {
			filtered = append(filtered, alg)
		}
	}

	return filtered
}

func isSymmetric(alg jose.SignatureAlgorithm) bool {
	for _, symmetric := range symmetricAlgs {
		if alg == symmetric {
			return true
		}
	}

	return false
}

func IsJWS(token string) bool {
	isJWS, _ := regexp.MatchString(`(^[\w-]+\.[\w-]+\.[\w-]+$)`, token)
	return isJWS
}

func IsJWE(token string) bool {
	isJWE, _ := regexp.MatchString(`(^[\w-]+\.[\w-]+\.[\w-]+\.[\w-]+\.[\w-]+$)`, token)
	return isJWE
}
