package authorize

import (
	"net/http"

	"github.com/idpkit/idp/internal/oidc"
)

// Handler serves the authorization endpoint for both GET and POST
// deliveries.
func Handler(config *oidc.Configuration) http.HandlerFunc {
	return oidc.Handler(config, func(ctx oidc.Context) {
		if err := initAuth(ctx, newRequest(ctx.Request)); err != nil {
			ctx.WriteError(err)
		}
	})
}

// PushHandler serves the pushed authorization request endpoint.
func PushHandler(config *oidc.Configuration) http.HandlerFunc {
	return oidc.Handler(config, func(ctx oidc.Context) {
		resp, err := pushAuth(ctx, newRequest(ctx.Request))
		if err != nil {
			ctx.WriteError(err)
			return
		}

		if err := ctx.Write(resp, http.StatusCreated); err != nil {
			ctx.WriteError(err)
		}
	})
}
