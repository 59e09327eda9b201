package ciba

import (
	"context"
	"testing"

	"github.com/idpkit/idp/internal/idptest"
	"github.com/idpkit/idp/internal/oidc"
	"github.com/idpkit/idp/internal/timeutil"
	"github.com/idpkit/idp/pkg/idp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBackchannelParams() idp.RequestParameters {
	return idp.RequestParameters{
		idp.ParamClientID:     {idptest.ClientID},
		idp.ParamClientSecret: {idptest.ClientSecret},
		idp.ParamScope:        {"openid"},
		idp.ParamLoginHint:    {"user@example.com"},
	}
}

func TestInitBackAuth(t *testing.T) {
	ctx := idptest.NewContext(t)

	resp, err := initBackAuth(ctx, request{
		ClientID: idptest.ClientID,
		Params:   validBackchannelParams(),
	})

	require.NoError(t, err)
	assert.NotEmpty(t, resp.AuthReqID)
	assert.Equal(t, defaultPollingIntervalSecs, resp.Interval,
		"poll clients receive the interval")
	assert.InDelta(t, defaultRequestLifetimeSecs, resp.ExpiresIn, 1)

	grant, err := ctx.CibaGrantStore.FindByAuthReqID(ctx.Context(), resp.AuthReqID)
	require.NoError(t, err)
	assert.Equal(t, idp.GrantStatusPending, grant.Status)
	assert.Equal(t, idptest.ClientID, grant.ClientID)

	stored, err := ctx.BackchannelRequestStore.Find(
		ctx.Context(), grant.BackchannelAuthenticationRequestID)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", stored.LoginHint)
	assert.Equal(t, idp.ProfileCIBA, stored.Profile)
}

func TestInitBackAuth_Failures(t *testing.T) {
	var cases = []struct {
		Name             string
		ParamsModifyFunc func(params idp.RequestParameters)
		ClientModifyFunc func(client *idp.ClientConfiguration)
		ServerModifyFunc func(server *idp.ServerConfiguration)
		WantCode         idp.ErrorCode
	}{
		{
			"missing_hint",
			func(params idp.RequestParameters) {
				delete(params, idp.ParamLoginHint)
			},
			nil,
			nil,
			idp.ErrorCodeInvalidRequest,
		},
		{
			"missing_openid_scope",
			func(params idp.RequestParameters) {
				params[idp.ParamScope] = []string{"profile"}
			},
			nil,
			nil,
			idp.ErrorCodeInvalidScope,
		},
		{
			"grant_not_allowed_for_client",
			nil,
			func(client *idp.ClientConfiguration) {
				client.GrantTypes = []idp.GrantType{idp.GrantAuthorizationCode}
			},
			nil,
			idp.ErrorCodeUnauthorizedClient,
		},
		{
			"public_clients_are_rejected",
			func(params idp.RequestParameters) {
				delete(params, idp.ParamClientSecret)
			},
			func(client *idp.ClientConfiguration) {
				client.AuthnMethod = idp.ClientAuthnNone
			},
			func(server *idp.ServerConfiguration) {
				server.TokenAuthnMethods = append(server.TokenAuthnMethods, idp.ClientAuthnNone)
			},
			idp.ErrorCodeUnauthorizedClient,
		},
		{
			"user_code_required_by_server",
			nil,
			nil,
			func(server *idp.ServerConfiguration) {
				server.BackchannelUserCodeIsRequired = true
			},
			idp.ErrorCodeMissingUserCode,
		},
		{
			"user_code_not_enabled_for_client",
			func(params idp.RequestParameters) {
				params[idp.ParamUserCode] = []string{"1234"}
			},
			nil,
			nil,
			idp.ErrorCodeInvalidRequest,
		},
		{
			"non_positive_requested_expiry",
			func(params idp.RequestParameters) {
				params[idp.ParamRequestedExpiry] = []string{"0"}
			},
			nil,
			nil,
			idp.ErrorCodeInvalidRequest,
		},
		{
			"notification_client_without_token",
			nil,
			func(client *idp.ClientConfiguration) {
				client.CIBADeliveryMode = idp.CIBADeliveryPing
				client.CIBANotificationEndpoint = "https://client.example.com/cb"
			},
			nil,
			idp.ErrorCodeInvalidRequest,
		},
		{
			"notification_client_without_endpoint",
			func(params idp.RequestParameters) {
				params[idp.ParamClientNotificationToken] = []string{"a_token"}
			},
			func(client *idp.ClientConfiguration) {
				client.CIBADeliveryMode = idp.CIBADeliveryPing
			},
			nil,
			idp.ErrorCodeInvalidRequest,
		},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			ctx := idptest.NewContext(t)

			server, err := ctx.Server()
			require.NoError(t, err)
			if c.ServerModifyFunc != nil {
				c.ServerModifyFunc(server)
			}

			client, err := ctx.Client(idptest.ClientID)
			require.NoError(t, err)
			if c.ClientModifyFunc != nil {
				c.ClientModifyFunc(client)
			}

			params := validBackchannelParams()
			if c.ParamsModifyFunc != nil {
				c.ParamsModifyFunc(params)
			}

			_, err = initBackAuth(ctx, request{ClientID: idptest.ClientID, Params: params})

			var idpErr idp.Error
			require.ErrorAs(t, err, &idpErr)
			assert.Equal(t, c.WantCode, idpErr.Code)
		})
	}
}

func TestInitBackAuth_PingClientReceivesInterval(t *testing.T) {
	ctx := idptest.NewContext(t)
	client := idptest.NewClient(t)
	client.CIBADeliveryMode = idp.CIBADeliveryPing
	client.CIBANotificationEndpoint = "https://client.example.com/ciba-notifications"
	idptest.SaveClient(t, ctx, client)

	params := validBackchannelParams()
	params[idp.ParamClientNotificationToken] = []string{"notification_token"}

	resp, err := initBackAuth(ctx, request{ClientID: idptest.ClientID, Params: params})

	require.NoError(t, err)
	assert.Equal(t, defaultPollingIntervalSecs, resp.Interval,
		"ping clients poll the token endpoint too")
}

func TestInitBackAuth_PushClientGetsNoInterval(t *testing.T) {
	ctx := idptest.NewContext(t)
	client := idptest.NewClient(t)
	client.CIBADeliveryMode = idp.CIBADeliveryPush
	client.CIBANotificationEndpoint = "https://client.example.com/ciba-notifications"
	idptest.SaveClient(t, ctx, client)

	params := validBackchannelParams()
	params[idp.ParamClientNotificationToken] = []string{"notification_token"}

	resp, err := initBackAuth(ctx, request{ClientID: idptest.ClientID, Params: params})

	require.NoError(t, err)
	assert.Zero(t, resp.Interval)
}

func TestInitBackAuth_RequestedExpiryShortensLifetime(t *testing.T) {
	ctx := idptest.NewContext(t)
	params := validBackchannelParams()
	params[idp.ParamRequestedExpiry] = []string{"60"}

	resp, err := initBackAuth(ctx, request{ClientID: idptest.ClientID, Params: params})

	require.NoError(t, err)
	assert.InDelta(t, 60, resp.ExpiresIn, 1)
}

type stubUserResolver struct {
	user *idp.User
	err  error
}

func (r stubUserResolver) Resolve(
	_ context.Context,
	_ string,
	_ *idp.BackchannelAuthenticationRequest,
) (*idp.User, error) {
	return r.user, r.err
}

func TestInitBackAuth_UnknownUser(t *testing.T) {
	ctx := idptest.NewContext(t)
	ctx.UserResolver = stubUserResolver{err: assert.AnError}

	_, err := initBackAuth(ctx, request{
		ClientID: idptest.ClientID,
		Params:   validBackchannelParams(),
	})

	var idpErr idp.Error
	require.ErrorAs(t, err, &idpErr)
	assert.Equal(t, idp.ErrorCodeUnknownUserID, idpErr.Code)

	// Nothing was persisted for the rejected hint.
	_, findErr := ctx.CibaGrantStore.FindByAuthReqID(ctx.Context(), "any")
	assert.Error(t, findErr)
}

func registerPendingGrant(t *testing.T, ctx oidc.Context, store idp.CibaGrantRepository) *idp.CibaGrant {
	t.Helper()
	now := timeutil.TimestampNow()
	grant := &idp.CibaGrant{
		AuthReqID:                          "auth_req_id",
		BackchannelAuthenticationRequestID: "backchannel_request_id",
		TokenIssuer:                        idptest.Issuer,
		ClientID:                           idptest.ClientID,
		Status:                             idp.GrantStatusPending,
		IntervalSecs:                       defaultPollingIntervalSecs,
		CreatedAt:                          now,
		ExpiresAt:                          now + 300,
	}
	require.NoError(t, store.Register(ctx.Context(), grant))
	return grant
}

func TestAuthorize(t *testing.T) {
	ctx := idptest.NewContext(t)
	grant := registerPendingGrant(t, ctx, ctx.CibaGrantStore)

	err := Authorize(ctx, grant.AuthReqID,
		idp.User{Subject: "user_sub"},
		idp.AuthorizationGrant{Subject: "user_sub", Scopes: []string{"openid"}},
	)

	require.NoError(t, err)
	updated, err := ctx.CibaGrantStore.FindByAuthReqID(ctx.Context(), grant.AuthReqID)
	require.NoError(t, err)
	assert.Equal(t, idp.GrantStatusAuthorized, updated.Status)
	require.NotNil(t, updated.User)
	assert.Equal(t, "user_sub", updated.User.Subject)
}

func TestDeny(t *testing.T) {
	ctx := idptest.NewContext(t)
	grant := registerPendingGrant(t, ctx, ctx.CibaGrantStore)

	err := Deny(ctx, grant.AuthReqID)

	require.NoError(t, err)
	updated, err := ctx.CibaGrantStore.FindByAuthReqID(ctx.Context(), grant.AuthReqID)
	require.NoError(t, err)
	assert.Equal(t, idp.GrantStatusAccessDenied, updated.Status)
}

func TestAuthorize_UnknownAuthReqID(t *testing.T) {
	ctx := idptest.NewContext(t)

	err := Authorize(ctx, "unknown", idp.User{}, idp.AuthorizationGrant{})

	var idpErr idp.Error
	require.ErrorAs(t, err, &idpErr)
	assert.Equal(t, idp.ErrorCodeInvalidGrant, idpErr.Code)
}

func TestAuthorize_FirstWriterWins(t *testing.T) {
	ctx := idptest.NewContext(t)
	grant := registerPendingGrant(t, ctx, ctx.CibaGrantStore)

	require.NoError(t, Authorize(ctx, grant.AuthReqID,
		idp.User{Subject: "user_sub"}, idp.AuthorizationGrant{}))

	err := Deny(ctx, grant.AuthReqID)

	var idpErr idp.Error
	require.ErrorAs(t, err, &idpErr)
	assert.Equal(t, idp.ErrorCodeInvalidGrant, idpErr.Code)

	stored, findErr := ctx.CibaGrantStore.FindByAuthReqID(ctx.Context(), grant.AuthReqID)
	require.NoError(t, findErr)
	assert.Equal(t, idp.GrantStatusAuthorized, stored.Status,
		"the first transition must stand")
}

func TestAuthorize_ExpiredGrant(t *testing.T) {
	ctx := idptest.NewContext(t)
	now := timeutil.TimestampNow()
	grant := &idp.CibaGrant{
		AuthReqID:   "auth_req_id",
		TokenIssuer: idptest.Issuer,
		ClientID:    idptest.ClientID,
		Status:      idp.GrantStatusPending,
		CreatedAt:   now - 600,
		ExpiresAt:   now - 300,
	}
	require.NoError(t, ctx.CibaGrantStore.Register(ctx.Context(), grant))

	err := Authorize(ctx, grant.AuthReqID, idp.User{}, idp.AuthorizationGrant{})

	var idpErr idp.Error
	require.ErrorAs(t, err, &idpErr)
	assert.Equal(t, idp.ErrorCodeExpiredToken, idpErr.Code)

	stored, findErr := ctx.CibaGrantStore.FindByAuthReqID(ctx.Context(), grant.AuthReqID)
	require.NoError(t, findErr)
	assert.Equal(t, idp.GrantStatusExpired, stored.Status)
}
