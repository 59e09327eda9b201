package authorize

import (
	"strings"

	"github.com/idpkit/idp/internal/clientauthn"
	"github.com/idpkit/idp/internal/oidc"
	"github.com/idpkit/idp/pkg/idp"
)

// initAuth runs the authorization request pipeline end to end: classify the
// pattern, create the matching context, authenticate the client, run the
// verifier chain and persist the resulting request entity.
func initAuth(ctx oidc.Context, req request) error {
	if req.ClientID == "" {
		return idp.NewError(idp.ErrorCodeInvalidClient, "invalid client_id")
	}

	server, err := ctx.Server()
	if err != nil {
		return err
	}

	client, err := ctx.Client(req.ClientID)
	if err != nil {
		return err
	}

	pattern := requestPattern(req)
	rc, err := newRequestContext(ctx, pattern, req, server, client)
	if err != nil {
		return err
	}

	credentials, err := clientauthn.Authenticate(
		clientauthn.NewAuthnRequest(ctx.Request, req.Params), server, client)
	if err != nil {
		return err
	}
	rc.credentials = &credentials

	if err := runVerifiers(rc); err != nil {
		return redirectError(ctx, err, server, client)
	}

	if err := ctx.RequestStore.Register(ctx.Context(), rc.request); err != nil {
		return idp.Errorf(idp.ErrorCodeInternalError,
			"could not persist the authorization request", err)
	}

	// Pushed requests are one-time use.
	if rc.pattern == idp.RequestPatternPushedRequestURI {
		if err := ctx.RequestStore.Delete(ctx.Context(), rc.stored.ID); err != nil {
			ctx.Log().Error("could not consume the pushed authorization request")
		}
	}

	return ctx.HandleAuthorization(rc.request)
}

// requestPattern refines the syntactic classification with the endpoint
// knowledge that a request_uri carrying the registered urn prefix
// references a pushed request rather than an external request object.
func requestPattern(req request) idp.RequestPattern {
	pattern := idp.ClassifyRequestPattern(req.Params)
	if pattern == idp.RequestPatternRequestURI &&
		strings.HasPrefix(req.Params.Get(idp.ParamRequestURI), requestURIPrefix) {
		return idp.RequestPatternPushedRequestURI
	}

	return pattern
}
