// Package api mounts the provider endpoints on a chi router.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/idpkit/idp/internal/authorize"
	"github.com/idpkit/idp/internal/ciba"
	"github.com/idpkit/idp/internal/oidc"
	"github.com/idpkit/idp/pkg/idp"
)

func NewRouter(config *oidc.Configuration) chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	prefix := config.EndpointPrefix
	router.Get(prefix+config.EndpointAuthorize, authorize.Handler(config))
	router.Post(prefix+config.EndpointAuthorize, authorize.Handler(config))
	router.Post(prefix+config.EndpointPushedAuthorization, authorize.PushHandler(config))
	router.Post(prefix+config.EndpointBackchannel, ciba.Handler(config))

	// Grant transitions are applied by the authentication device layer, not
	// by the requesting client.
	router.Post(prefix+config.EndpointBackchannel+"/{auth_req_id}/authorize",
		authorizeGrantHandler(config))
	router.Post(prefix+config.EndpointBackchannel+"/{auth_req_id}/deny",
		denyGrantHandler(config))

	return router
}

type authorizeGrantRequest struct {
	User  idp.User               `json:"user"`
	Grant idp.AuthorizationGrant `json:"grant"`
}

func authorizeGrantHandler(config *oidc.Configuration) http.HandlerFunc {
	return oidc.Handler(config, func(ctx oidc.Context) {
		var req authorizeGrantRequest
		if err := json.NewDecoder(ctx.Request.Body).Decode(&req); err != nil {
			ctx.WriteError(idp.NewError(idp.ErrorCodeInvalidRequest,
				"invalid request body"))
			return
		}

		authReqID := chi.URLParam(ctx.Request, "auth_req_id")
		if err := ciba.Authorize(ctx, authReqID, req.User, req.Grant); err != nil {
			ctx.WriteError(err)
			return
		}

		if err := ctx.Write(map[string]any{"status": "authorized"}, http.StatusOK); err != nil {
			ctx.WriteError(err)
		}
	})
}

func denyGrantHandler(config *oidc.Configuration) http.HandlerFunc {
	return oidc.Handler(config, func(ctx oidc.Context) {
		authReqID := chi.URLParam(ctx.Request, "auth_req_id")
		if err := ciba.Deny(ctx, authReqID); err != nil {
			ctx.WriteError(err)
			return
		}

		if err := ctx.Write(map[string]any{"status": "denied"}, http.StatusOK); err != nil {
			ctx.WriteError(err)
		}
	})
}
