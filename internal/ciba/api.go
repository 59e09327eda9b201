package ciba

import (
	"net/http"

	"github.com/idpkit/idp/internal/oidc"
)

// Handler serves the backchannel authentication endpoint.
func Handler(config *oidc.Configuration) http.HandlerFunc {
	return oidc.Handler(config, func(ctx oidc.Context) {
		resp, err := initBackAuth(ctx, newRequest(ctx.Request))
		if err != nil {
			ctx.WriteError(err)
			return
		}

		if err := ctx.Write(resp, http.StatusOK); err != nil {
			ctx.WriteError(err)
		}
	})
}
