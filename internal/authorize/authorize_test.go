package authorize

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/idpkit/idp/internal/idptest"
	"github.com/idpkit/idp/pkg/idp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validAuthorizationParams() idp.RequestParameters {
	return idp.RequestParameters{
		idp.ParamClientID:     {idptest.ClientID},
		idp.ParamClientSecret: {idptest.ClientSecret},
		idp.ParamRedirectURI:  {idptest.ClientRedirectURI},
		idp.ParamResponseType: {"code"},
		idp.ParamScope:        {"openid profile"},
		idp.ParamState:        {"random_state"},
	}
}

func TestInitAuth(t *testing.T) {
	ctx := idptest.NewContext(t)
	params := validAuthorizationParams()

	err := initAuth(ctx, request{ClientID: idptest.ClientID, Params: params})

	require.NoError(t, err)
	recorder := idptest.Recorder(t, ctx)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "request_id")
}

func TestInitAuth_MissingClientID(t *testing.T) {
	ctx := idptest.NewContext(t)

	err := initAuth(ctx, request{Params: validAuthorizationParams()})

	var idpErr idp.Error
	require.ErrorAs(t, err, &idpErr)
	assert.Equal(t, idp.ErrorCodeInvalidClient, idpErr.Code)
}

func TestInitAuth_UnknownClient(t *testing.T) {
	ctx := idptest.NewContext(t)

	err := initAuth(ctx, request{ClientID: "unknown_client", Params: validAuthorizationParams()})

	var idpErr idp.Error
	require.ErrorAs(t, err, &idpErr)
	assert.Equal(t, idp.ErrorCodeInvalidClient, idpErr.Code)
}

func TestInitAuth_WrongSecretFailsBeforeVerification(t *testing.T) {
	ctx := idptest.NewContext(t)
	params := validAuthorizationParams()
	params[idp.ParamClientSecret] = []string{"wrong_secret"}

	err := initAuth(ctx, request{ClientID: idptest.ClientID, Params: params})

	var idpErr idp.Error
	require.ErrorAs(t, err, &idpErr)
	assert.Equal(t, idp.ErrorCodeInvalidClient, idpErr.Code)
}

func TestInitAuth_UnknownScopeFailsAsBadRequest(t *testing.T) {
	ctx := idptest.NewContext(t)
	params := validAuthorizationParams()
	params[idp.ParamScope] = []string{"unknown_scope"}

	err := initAuth(ctx, request{ClientID: idptest.ClientID, Params: params})

	// The scope set empties out during context creation, before the
	// redirect_uri was validated, so the failure must stay a plain error.
	var idpErr idp.Error
	require.ErrorAs(t, err, &idpErr)
	assert.Equal(t, idp.ErrorCodeInvalidScope, idpErr.Code)
	var redirectErr redirectionError
	assert.False(t, errors.As(err, &redirectErr))
	assert.Equal(t, http.StatusBadRequest, idpErr.StatusCode())
}

func TestInitAuth_RedirectsVerificationErrors(t *testing.T) {
	ctx := idptest.NewContext(t)
	params := validAuthorizationParams()
	// id_token without nonce fails after the redirect_uri was validated.
	params[idp.ParamResponseType] = []string{"code id_token"}

	err := initAuth(ctx, request{ClientID: idptest.ClientID, Params: params})

	require.NoError(t, err, "redirected errors are fully handled")
	recorder := idptest.Recorder(t, ctx)
	assert.Equal(t, http.StatusSeeOther, recorder.Code)

	location, parseErr := url.Parse(recorder.Header().Get("Location"))
	require.NoError(t, parseErr)
	assert.True(t, strings.HasPrefix(location.String(), idptest.ClientRedirectURI))
	// id_token makes the response implicit, the error goes in the fragment.
	fragment, parseErr := url.ParseQuery(location.Fragment)
	require.NoError(t, parseErr)
	assert.Equal(t, string(idp.ErrorCodeInvalidRequest), fragment.Get("error"))
	assert.Equal(t, "random_state", fragment.Get("state"))
}

func TestInitAuth_PlainErrorsAreNotRedirected(t *testing.T) {
	ctx := idptest.NewContext(t)
	params := validAuthorizationParams()
	params[idp.ParamRedirectURI] = []string{"https://attacker.example.com/callback"}

	err := initAuth(ctx, request{ClientID: idptest.ClientID, Params: params})

	var idpErr idp.Error
	require.ErrorAs(t, err, &idpErr)
	assert.Equal(t, idp.ErrorCodeInvalidRequest, idpErr.Code)
}

func TestPushAuth(t *testing.T) {
	ctx := idptest.NewContext(t)
	params := validAuthorizationParams()

	resp, err := pushAuth(ctx, request{ClientID: idptest.ClientID, Params: params})

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.RequestURI, requestURIPrefix))
	assert.Equal(t, defaultPARLifetimeSecs, resp.ExpiresIn)

	id := strings.TrimPrefix(resp.RequestURI, requestURIPrefix)
	stored, err := ctx.RequestStore.Find(ctx.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, idptest.ClientID, stored.ClientID)
	assert.NotZero(t, stored.ExpiresAt)
}

func TestPushAuth_RequestURINotAllowed(t *testing.T) {
	ctx := idptest.NewContext(t)
	params := validAuthorizationParams()
	params[idp.ParamRequestURI] = []string{"urn:ietf:params:oauth:request_uri:abc"}

	_, err := pushAuth(ctx, request{ClientID: idptest.ClientID, Params: params})

	var idpErr idp.Error
	require.ErrorAs(t, err, &idpErr)
	assert.Equal(t, idp.ErrorCodeInvalidRequest, idpErr.Code)
}

func TestPushAuth_ErrorsNeverRedirect(t *testing.T) {
	ctx := idptest.NewContext(t)
	params := validAuthorizationParams()
	// Triggers a redirection error at the authorization endpoint, which the
	// pushed endpoint must demote to a plain response.
	params[idp.ParamResponseType] = []string{"code id_token"}

	_, err := pushAuth(ctx, request{ClientID: idptest.ClientID, Params: params})

	var idpErr idp.Error
	require.ErrorAs(t, err, &idpErr)
	assert.Equal(t, idp.ErrorCodeInvalidRequest, idpErr.Code)
	recorder := idptest.Recorder(t, ctx)
	assert.Empty(t, recorder.Header().Get("Location"))
}

func TestInitAuth_ConsumesPushedRequest(t *testing.T) {
	ctx := idptest.NewContext(t)

	pushed, err := pushAuth(ctx, request{
		ClientID: idptest.ClientID,
		Params:   validAuthorizationParams(),
	})
	require.NoError(t, err)

	params := idp.RequestParameters{
		idp.ParamClientID:     {idptest.ClientID},
		idp.ParamClientSecret: {idptest.ClientSecret},
		idp.ParamRequestURI:   {pushed.RequestURI},
	}

	err = initAuth(ctx, request{ClientID: idptest.ClientID, Params: params})
	require.NoError(t, err)

	// Pushed requests are one time use.
	err = initAuth(ctx, request{ClientID: idptest.ClientID, Params: params})
	var idpErr idp.Error
	require.ErrorAs(t, err, &idpErr)
	assert.Equal(t, idp.ErrorCodeInvalidRequest, idpErr.Code)
}

func TestInitAuth_PushedRequestFromAnotherClient(t *testing.T) {
	ctx := idptest.NewContext(t)

	pushed, err := pushAuth(ctx, request{
		ClientID: idptest.ClientID,
		Params:   validAuthorizationParams(),
	})
	require.NoError(t, err)

	other := idptest.NewClient(t)
	other.ID = "another_client"
	idptest.SaveClient(t, ctx, other)

	params := idp.RequestParameters{
		idp.ParamClientID:     {other.ID},
		idp.ParamClientSecret: {idptest.ClientSecret},
		idp.ParamRequestURI:   {pushed.RequestURI},
	}

	err = initAuth(ctx, request{ClientID: other.ID, Params: params})

	var idpErr idp.Error
	require.ErrorAs(t, err, &idpErr)
	assert.Equal(t, idp.ErrorCodeInvalidRequest, idpErr.Code)
}

func TestRequestPattern(t *testing.T) {
	var cases = []struct {
		Name   string
		Params idp.RequestParameters
		Want   idp.RequestPattern
	}{
		{
			"plain",
			idp.RequestParameters{idp.ParamScope: {"openid"}},
			idp.RequestPatternNormal,
		},
		{
			"external_request_uri",
			idp.RequestParameters{idp.ParamRequestURI: {"https://client.example.com/req.jwt"}},
			idp.RequestPatternRequestURI,
		},
		{
			"pushed_request_uri",
			idp.RequestParameters{idp.ParamRequestURI: {requestURIPrefix + "abc123"}},
			idp.RequestPatternPushedRequestURI,
		},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			assert.Equal(t, c.Want, requestPattern(request{Params: c.Params}))
		})
	}
}
