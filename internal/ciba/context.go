package ciba

import (
	"net/url"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"
	"github.com/idpkit/idp/internal/joseutil"
	"github.com/idpkit/idp/internal/timeutil"
	"github.com/idpkit/idp/pkg/idp"
)

var defaultJARSigAlgs = []jose.SignatureAlgorithm{
	jose.RS256, jose.PS256, jose.ES256,
}

// newRequestContext dispatches to the creator matching the backchannel
// pattern. The classifier is two state, request_uri is not a valid CIBA
// delivery.
func newRequestContext(
	pattern idp.RequestPattern,
	req request,
	server *idp.ServerConfiguration,
	client *idp.ClientConfiguration,
) (
	*requestContext,
	error,
) {
	switch pattern {
	case idp.RequestPatternNormal:
		return createNormalContext(req, server, client)
	case idp.RequestPatternRequestObject:
		return createRequestObjectContext(req, server, client)
	default:
		return nil, idp.NewError(idp.ErrorCodeInternalError, "unknown request pattern")
	}
}

func createNormalContext(
	req request,
	server *idp.ServerConfiguration,
	client *idp.ClientConfiguration,
) (
	*requestContext,
	error,
) {
	params, err := decodeParams(req.Params)
	if err != nil {
		return nil, err
	}

	scopes := idp.FilterScopes(idp.RequestPatternNormal, req.Params, "", client, server)
	rc := &requestContext{
		id:          uuid.NewString(),
		tokenIssuer: server.Issuer,
		pattern:     idp.RequestPatternNormal,
		profile:     idp.AnalyzeCIBAProfile(scopes, server),
		params:      params,
		scopes:      scopes,
		server:      server,
		client:      client,
	}

	if err := rc.buildRequest(); err != nil {
		return nil, err
	}

	return rc, nil
}

// createRequestObjectContext verifies the request object signature before
// trusting any claim, then resolves each parameter with the per-field
// precedence rule.
func createRequestObjectContext(
	req request,
	server *idp.ServerConfiguration,
	client *idp.ClientConfiguration,
) (
	*requestContext,
	error,
) {
	var objectParams backchannelParams
	joseCtx, err := joseutil.VerifyAsymmetric(
		req.RequestObject, jarSigAlgs(server, client), client.JWKS, server.JWKS, &objectParams,
	)
	if err != nil {
		return nil, idp.Errorf(idp.ErrorCodeInvalidRequestObj,
			"invalid request object", err)
	}

	if err := validateRequestObjectClaims(joseCtx, server, client); err != nil {
		return nil, err
	}

	outside, err := decodeParams(req.Params)
	if err != nil {
		return nil, err
	}
	merged := objectParams.merge(outside)

	scopes := idp.FilterScopes(idp.RequestPatternRequestObject, req.Params,
		merged.Scope, client, server)
	rc := &requestContext{
		id:          uuid.NewString(),
		tokenIssuer: server.Issuer,
		pattern:     idp.RequestPatternRequestObject,
		profile:     idp.AnalyzeCIBAProfile(scopes, server),
		params:      merged,
		jose:        joseCtx,
		scopes:      scopes,
		server:      server,
		client:      client,
	}

	if err := rc.buildRequest(); err != nil {
		return nil, err
	}

	return rc, nil
}

func decodeParams(params idp.RequestParameters) (backchannelParams, error) {
	var decoded backchannelParams
	if err := formDecoder.Decode(&decoded, url.Values(params)); err != nil {
		return backchannelParams{}, idp.Errorf(idp.ErrorCodeInvalidRequest,
			"could not decode the request parameters", err)
	}

	return decoded, nil
}

// validateRequestObjectClaims runs the structural checks on a verified
// backchannel request object.
func validateRequestObjectClaims(
	joseCtx joseutil.Context,
	server *idp.ServerConfiguration,
	client *idp.ClientConfiguration,
) error {
	claims := joseCtx.Claims
	if claims.ID == "" {
		return idp.NewError(idp.ErrorCodeInvalidRequestObj,
			"claim 'jti' is required in the request object")
	}

	if claims.Expiry == nil {
		return idp.NewError(idp.ErrorCodeInvalidRequestObj,
			"claim 'exp' is required in the request object")
	}

	err := claims.ValidateWithLeeway(jwt.Expected{
		Issuer:      client.ID,
		AnyAudience: []string{server.Issuer},
		Time:        timeutil.Now(),
	}, 0)
	if err != nil {
		return idp.Errorf(idp.ErrorCodeInvalidRequestObj,
			"the request object contains invalid claims", err)
	}

	return nil
}

func jarSigAlgs(server *idp.ServerConfiguration, client *idp.ClientConfiguration) []jose.SignatureAlgorithm {
	if client.JARSigAlg != "" {
		return []jose.SignatureAlgorithm{client.JARSigAlg}
	}

	if len(server.JARSigAlgs) != 0 {
		return server.JARSigAlgs
	}

	return defaultJARSigAlgs
}
