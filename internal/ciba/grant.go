package ciba

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/idpkit/idp/internal/clientauthn"
	"github.com/idpkit/idp/internal/oidc"
	"github.com/idpkit/idp/internal/timeutil"
	"github.com/idpkit/idp/pkg/idp"
)

const (
	defaultPollingIntervalSecs int64 = 3
	defaultRequestLifetimeSecs int64 = 300
)

// initBackAuth runs the backchannel authentication pipeline: classify,
// create the context, authenticate the client, verify, persist the request
// entity and mint the pending grant.
func initBackAuth(ctx oidc.Context, req request) (cibaResponse, error) {
	if req.ClientID == "" {
		return cibaResponse{}, idp.NewError(idp.ErrorCodeInvalidClient, "invalid client_id")
	}

	server, err := ctx.Server()
	if err != nil {
		return cibaResponse{}, err
	}

	client, err := ctx.Client(req.ClientID)
	if err != nil {
		return cibaResponse{}, err
	}

	rc, err := newRequestContext(idp.ClassifyCIBARequestPattern(req.Params), req, server, client)
	if err != nil {
		return cibaResponse{}, err
	}

	credentials, err := clientauthn.Authenticate(
		clientauthn.NewAuthnRequest(ctx.Request, req.Params), server, client)
	if err != nil {
		return cibaResponse{}, err
	}
	rc.credentials = &credentials

	if err := runVerifiers(rc); err != nil {
		return cibaResponse{}, err
	}

	// The hint must identify a known end user before anything is persisted.
	if ctx.UserResolver != nil {
		if _, err := ctx.UserResolver.Resolve(ctx.Context(), rc.tokenIssuer, rc.request); err != nil {
			return cibaResponse{}, idp.Errorf(idp.ErrorCodeUnknownUserID,
				"could not identify the end user", err)
		}
	}

	if err := ctx.BackchannelRequestStore.Register(ctx.Context(), rc.request); err != nil {
		return cibaResponse{}, idp.Errorf(idp.ErrorCodeInternalError,
			"could not persist the backchannel authentication request", err)
	}

	grant := newGrant(rc)
	if err := ctx.CibaGrantStore.Register(ctx.Context(), grant); err != nil {
		return cibaResponse{}, idp.Errorf(idp.ErrorCodeInternalError,
			"could not persist the grant", err)
	}

	ctx.TransmitEvent(idp.SecurityEvent{
		Type:        idp.SecurityEventBackchannelRequest,
		TokenIssuer: rc.tokenIssuer,
		ClientID:    client.ID,
		OccurredAt:  timeutil.TimestampNow(),
		Payload:     map[string]any{"auth_req_id": grant.AuthReqID},
	})

	resp := cibaResponse{
		AuthReqID: grant.AuthReqID,
		ExpiresIn: grant.ExpiresAt - timeutil.TimestampNow(),
	}
	// The interval applies to the poll and ping delivery modes, push
	// clients never wait on it.
	if client.CIBADeliveryMode != idp.CIBADeliveryPush {
		resp.Interval = grant.IntervalSecs
	}

	return resp, nil
}

// newGrant mints the pending grant for a verified backchannel request. The
// requested_expiry parameter can only shorten the server lifetime, never
// extend it.
func newGrant(rc *requestContext) *idp.CibaGrant {
	lifetime := rc.server.CIBARequestLifetimeSecs
	if lifetime == 0 {
		lifetime = defaultRequestLifetimeSecs
	}
	if expiry := rc.request.RequestedExpiry; expiry != nil && *expiry < lifetime {
		lifetime = *expiry
	}

	interval := rc.server.CIBAPollingIntervalSecs
	if interval == 0 {
		interval = defaultPollingIntervalSecs
	}

	now := timeutil.TimestampNow()
	return &idp.CibaGrant{
		AuthReqID:                          uuid.NewString(),
		BackchannelAuthenticationRequestID: rc.request.ID,
		TokenIssuer:                        rc.tokenIssuer,
		ClientID:                           rc.client.ID,
		Status:                             idp.GrantStatusPending,
		IntervalSecs:                       interval,
		CreatedAt:                          now,
		ExpiresAt:                          now + lifetime,
	}
}

// Authorize applies the approving transition to a pending grant and
// notifies clients registered for ping or push delivery. The repository
// update is version guarded, the first of two racing transitions wins.
func Authorize(
	ctx oidc.Context,
	authReqID string,
	user idp.User,
	authzGrant idp.AuthorizationGrant,
) error {
	grant, err := pendingGrant(ctx, authReqID)
	if err != nil {
		return err
	}

	authorized, err := grant.Authorize(user, authzGrant)
	if err != nil {
		return err
	}

	if err := ctx.CibaGrantStore.Update(ctx.Context(), &authorized); err != nil {
		return idp.Errorf(idp.ErrorCodeInvalidGrant,
			"the grant was already updated", err)
	}

	ctx.TransmitEvent(idp.SecurityEvent{
		Type:        idp.SecurityEventBackchannelAuthorized,
		TokenIssuer: authorized.TokenIssuer,
		ClientID:    authorized.ClientID,
		Subject:     user.Subject,
		OccurredAt:  timeutil.TimestampNow(),
		Payload:     map[string]any{"auth_req_id": authorized.AuthReqID},
	})

	notifyClient(ctx, &authorized, nil)
	return nil
}

// Deny applies the denying transition under the same rules as Authorize.
func Deny(ctx oidc.Context, authReqID string) error {
	grant, err := pendingGrant(ctx, authReqID)
	if err != nil {
		return err
	}

	denied, err := grant.Deny()
	if err != nil {
		return err
	}

	if err := ctx.CibaGrantStore.Update(ctx.Context(), &denied); err != nil {
		return idp.Errorf(idp.ErrorCodeInvalidGrant,
			"the grant was already updated", err)
	}

	ctx.TransmitEvent(idp.SecurityEvent{
		Type:        idp.SecurityEventBackchannelDenied,
		TokenIssuer: denied.TokenIssuer,
		ClientID:    denied.ClientID,
		OccurredAt:  timeutil.TimestampNow(),
		Payload:     map[string]any{"auth_req_id": denied.AuthReqID},
	})

	notifyClient(ctx, &denied, map[string]any{"error": string(idp.ErrorCodeAccessDenied)})
	return nil
}

// pendingGrant loads the grant and flips it to expired when its lifetime
// elapsed while it was still pending.
func pendingGrant(ctx oidc.Context, authReqID string) (*idp.CibaGrant, error) {
	// The token issuer must still resolve before any transition applies.
	if _, err := ctx.Server(); err != nil {
		return nil, err
	}

	grant, err := ctx.CibaGrantStore.FindByAuthReqID(ctx.Context(), authReqID)
	if err != nil {
		return nil, idp.Errorf(idp.ErrorCodeInvalidGrant, "invalid auth_req_id", err)
	}

	if grant.IsPending() && grant.IsExpired(timeutil.TimestampNow()) {
		expired, err := grant.Expire()
		if err == nil {
			if err := ctx.CibaGrantStore.Update(ctx.Context(), &expired); err != nil {
				ctx.Log().Error("could not expire the grant",
					slog.String("auth_req_id", grant.AuthReqID))
			}
		}
		return nil, idp.NewError(idp.ErrorCodeExpiredToken, "the auth_req_id is expired")
	}

	return grant, nil
}

// notifyClient delivers the ping or push notification for clients not
// polling. Delivery failures never fail the transition that triggered them.
func notifyClient(ctx oidc.Context, grant *idp.CibaGrant, extra map[string]any) {
	client, err := ctx.Client(grant.ClientID)
	if err != nil || !client.CIBADeliveryMode.IsNotification() {
		return
	}

	request, err := ctx.BackchannelRequestStore.Find(
		ctx.Context(), grant.BackchannelAuthenticationRequestID)
	if err != nil {
		ctx.Log().Error("could not load the backchannel request for notification",
			slog.String("auth_req_id", grant.AuthReqID))
		return
	}

	body := map[string]any{"auth_req_id": grant.AuthReqID}
	for k, v := range extra {
		body[k] = v
	}

	if client.CIBADeliveryMode == idp.CIBADeliveryPush && extra == nil {
		payload, err := ctx.CIBAPushPayload(grant)
		if err != nil {
			ctx.Log().Error("could not build the push payload",
				slog.String("auth_req_id", grant.AuthReqID),
				slog.String("error", err.Error()))
			return
		}
		body = payload
	}

	err = ctx.ClientNotifier.Notify(ctx.Context(),
		client.CIBANotificationEndpoint, request.ClientNotificationToken, body)
	if err != nil {
		ctx.Log().Error("could not notify the client",
			slog.String("auth_req_id", grant.AuthReqID),
			slog.String("error", err.Error()))
	}
}
