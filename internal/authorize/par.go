package authorize

import (
	"errors"

	"github.com/idpkit/idp/internal/clientauthn"
	"github.com/idpkit/idp/internal/oidc"
	"github.com/idpkit/idp/internal/strutil"
	"github.com/idpkit/idp/internal/timeutil"
	"github.com/idpkit/idp/pkg/idp"
)

// pushAuth registers a pushed authorization request and returns the
// request_uri reference the client presents later at the authorization
// endpoint. Errors never redirect here, the exchange is back channel only.
func pushAuth(ctx oidc.Context, req request) (pushedResponse, error) {
	if req.ClientID == "" {
		return pushedResponse{}, idp.NewError(idp.ErrorCodeInvalidClient, "invalid client_id")
	}

	server, err := ctx.Server()
	if err != nil {
		return pushedResponse{}, err
	}

	client, err := ctx.Client(req.ClientID)
	if err != nil {
		return pushedResponse{}, err
	}

	if req.Params.Has(idp.ParamRequestURI) {
		return pushedResponse{}, idp.NewError(idp.ErrorCodeInvalidRequest,
			"request_uri is not allowed during par")
	}

	rc, err := newRequestContext(ctx, idp.ClassifyRequestPattern(req.Params), req, server, client)
	if err != nil {
		return pushedResponse{}, plainError(err)
	}

	credentials, err := clientauthn.Authenticate(
		clientauthn.NewAuthnRequest(ctx.Request, req.Params), server, client)
	if err != nil {
		return pushedResponse{}, err
	}
	rc.credentials = &credentials

	if err := runVerifiers(rc); err != nil {
		return pushedResponse{}, plainError(err)
	}

	id, err := strutil.Random(requestURISuffixLength)
	if err != nil {
		return pushedResponse{}, idp.Errorf(idp.ErrorCodeInternalError,
			"could not generate the request_uri", err)
	}

	lifetime := server.PARRequestLifetimeSecs
	if lifetime == 0 {
		lifetime = defaultPARLifetimeSecs
	}

	pushed := *rc.request
	pushed.ID = id
	pushed.ExpiresAt = timeutil.TimestampNow() + lifetime
	if err := ctx.RequestStore.Register(ctx.Context(), &pushed); err != nil {
		return pushedResponse{}, idp.Errorf(idp.ErrorCodeInternalError,
			"could not persist the pushed authorization request", err)
	}

	return pushedResponse{
		RequestURI: requestURIPrefix + id,
		ExpiresIn:  lifetime,
	}, nil
}

// plainError strips the redirection wrapper so pushed request failures are
// rendered directly instead of bounced to the redirect_uri.
func plainError(err error) error {
	var redirectErr redirectionError
	if !errors.As(err, &redirectErr) {
		return err
	}

	return idp.NewError(redirectErr.code, redirectErr.desc)
}
