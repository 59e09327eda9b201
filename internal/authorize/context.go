package authorize

import (
	"strings"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/idpkit/idp/internal/joseutil"
	"github.com/idpkit/idp/internal/oidc"
	"github.com/idpkit/idp/internal/timeutil"
	"github.com/idpkit/idp/pkg/idp"
)

var defaultJARSigAlgs = []jose.SignatureAlgorithm{
	jose.RS256, jose.PS256, jose.ES256,
}

// newRequestContext dispatches to the creator matching the request pattern.
// Every creator returns a fully populated, read-only context or fails with
// the appropriate bad-request error.
func newRequestContext(
	ctx oidc.Context,
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
		return createRequestObjectContext(req, req.Params.Get(idp.ParamRequest), server, client)
	case idp.RequestPatternRequestURI:
		return createRequestURIContext(ctx, req, server, client)
	case idp.RequestPatternPushedRequestURI:
		return createPushedContext(ctx, req, server, client)
	default:
		return nil, idp.NewError(idp.ErrorCodeInternalError, "unknown request pattern")
	}
}

// createNormalContext handles plain parameter delivery: no signature to
// verify, scopes come straight from the query.
func createNormalContext(
	req request,
	server *idp.ServerConfiguration,
	client *idp.ClientConfiguration,
) (
	*requestContext,
	error,
) {
	scopes := idp.FilterScopes(idp.RequestPatternNormal, req.Params, "", client, server)
	rc := &requestContext{
		id:          newRequestID(),
		tokenIssuer: server.Issuer,
		pattern:     idp.RequestPatternNormal,
		profile:     idp.AnalyzeProfile(scopes, server),
		params:      req.Params,
		parsed:      idp.ParseAuthorizationParameters(req.Params),
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
// trusting any claim, then merges the asserted parameters over the
// out-of-band ones.
func createRequestObjectContext(
	req request,
	requestObject string,
	server *idp.ServerConfiguration,
	client *idp.ClientConfiguration,
) (
	*requestContext,
	error,
) {
	var objectParams idp.AuthorizationParameters
	joseCtx, err := joseutil.VerifyAsymmetric(
		requestObject, jarSigAlgs(server, client), client.JWKS, server.JWKS, &objectParams,
	)
	if err != nil {
		return nil, idp.Errorf(idp.ErrorCodeInvalidRequestObj,
			"invalid request object", err)
	}

	if err := validateRequestObjectClaims(joseCtx, server, client); err != nil {
		return nil, err
	}

	outside := idp.ParseAuthorizationParameters(req.Params)
	merged := objectParams.Merge(outside)
	merged.RequestObject = ""
	merged.RequestURI = ""

	scopes := idp.FilterScopes(idp.RequestPatternRequestObject, req.Params,
		joseCtx.Scope(), client, server)
	rc := &requestContext{
		id:          newRequestID(),
		tokenIssuer: server.Issuer,
		pattern:     idp.RequestPatternRequestObject,
		profile:     idp.AnalyzeProfile(scopes, server),
		params:      req.Params,
		parsed:      merged,
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

// createRequestURIContext only dereferences request_uri values the client
// registered; the fetch happens after that check, never before.
func createRequestURIContext(
	ctx oidc.Context,
	req request,
	server *idp.ServerConfiguration,
	client *idp.ClientConfiguration,
) (
	*requestContext,
	error,
) {
	requestURI := req.Params.Get(idp.ParamRequestURI)
	if !client.IsRequestURIRegistered(requestURI) {
		return nil, idp.NewError(idp.ErrorCodeInvalidRequest,
			"request_uri is not registered")
	}

	requestObject, err := ctx.RequestObjectGateway.Fetch(ctx.Context(), requestURI)
	if err != nil {
		return nil, idp.Errorf(idp.ErrorCodeInvalidRequestURI,
			"could not fetch the request object", err)
	}

	rc, err := createRequestObjectContext(req, requestObject, server, client)
	if err != nil {
		return nil, err
	}

	rc.pattern = idp.RequestPatternRequestURI
	return rc, nil
}

// createPushedContext resolves a request_uri minted by the pushed
// authorization endpoint. Expiry of the stored request is left to the
// verifier chain.
func createPushedContext(
	ctx oidc.Context,
	req request,
	server *idp.ServerConfiguration,
	client *idp.ClientConfiguration,
) (
	*requestContext,
	error,
) {
	requestURI := req.Params.Get(idp.ParamRequestURI)
	id, found := strings.CutPrefix(requestURI, requestURIPrefix)
	if !found || id == "" {
		return nil, idp.NewError(idp.ErrorCodeInvalidRequest, "invalid request_uri")
	}

	stored, err := ctx.RequestStore.Find(ctx.Context(), id)
	if err != nil {
		return nil, idp.Errorf(idp.ErrorCodeInvalidRequest,
			"invalid request_uri", err)
	}

	if stored.ClientID != client.ID {
		return nil, idp.NewError(idp.ErrorCodeInvalidRequest, "invalid request_uri")
	}

	outside := idp.ParseAuthorizationParameters(req.Params)
	merged := stored.AuthorizationParameters.Merge(outside)
	merged.RequestURI = ""

	rc := &requestContext{
		id:          newRequestID(),
		tokenIssuer: server.Issuer,
		pattern:     idp.RequestPatternPushedRequestURI,
		profile:     stored.Profile,
		params:      req.Params,
		parsed:      merged,
		scopes:      stored.Scopes,
		stored:      stored,
		server:      server,
		client:      client,
	}

	if err := rc.buildRequest(); err != nil {
		return nil, err
	}

	return rc, nil
}

// validateRequestObjectClaims runs the structural checks on a verified
// request object: issuer, audience, jti, expiry and, under strict JAR mode,
// scope completeness inside the object itself.
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

	if server.RequireSignedRequestObject && joseCtx.Scope() == "" {
		return idp.NewError(idp.ErrorCodeInvalidRequestObj,
			"the request object must assert the scope claim")
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
