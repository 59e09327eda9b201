package idp_test

import (
	"testing"

	"github.com/idpkit/idp/pkg/idp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAuthorizationParameters(t *testing.T) {
	params := idp.RequestParameters{
		idp.ParamRedirectURI:          {"https://client.example.com/callback"},
		idp.ParamResponseType:         {"code id_token"},
		idp.ParamResponseMode:         {"fragment"},
		idp.ParamScope:                {"openid profile"},
		idp.ParamState:                {"xyz"},
		idp.ParamNonce:                {"n-0S6_WzA2Mj"},
		idp.ParamMaxAge:               {"3600"},
		idp.ParamClaims:               {`{"id_token":{"acr":null}}`},
		idp.ParamAuthorizationDetails: {`[{"type":"payment_initiation"}]`},
	}

	parsed := idp.ParseAuthorizationParameters(params)

	assert.Equal(t, "https://client.example.com/callback", parsed.RedirectURI)
	assert.Equal(t, idp.ResponseType("code id_token"), parsed.ResponseType)
	assert.Equal(t, idp.ResponseModeFragment, parsed.ResponseMode)
	assert.Equal(t, "openid profile", parsed.Scopes)
	assert.Equal(t, "xyz", parsed.State)
	assert.Equal(t, "n-0S6_WzA2Mj", parsed.Nonce)
	require.NotNil(t, parsed.MaxAge)
	assert.Equal(t, int64(3600), *parsed.MaxAge)
	assert.Contains(t, parsed.Claims, "id_token")
	require.Len(t, parsed.AuthorizationDetails, 1)
	assert.Equal(t, "payment_initiation", parsed.AuthorizationDetails[0].Type())
}

func TestParseAuthorizationParameters_MalformedJSONIsLeftAbsent(t *testing.T) {
	params := idp.RequestParameters{
		idp.ParamClaims:               {"{not json"},
		idp.ParamAuthorizationDetails: {"[not json"},
		idp.ParamMaxAge:               {"not a number"},
	}

	parsed := idp.ParseAuthorizationParameters(params)

	assert.Nil(t, parsed.Claims)
	assert.Nil(t, parsed.AuthorizationDetails)
	assert.Nil(t, parsed.MaxAge)
}

func TestAuthorizationParametersMerge(t *testing.T) {
	insideMaxAge := int64(600)
	outsideMaxAge := int64(3600)

	var cases = []struct {
		Name    string
		Inside  idp.AuthorizationParameters
		Outside idp.AuthorizationParameters
		Check   func(t *testing.T, merged idp.AuthorizationParameters)
	}{
		{
			"inside_value_wins",
			idp.AuthorizationParameters{State: "inside", Nonce: "inside_nonce"},
			idp.AuthorizationParameters{State: "outside", Nonce: "outside_nonce"},
			func(t *testing.T, merged idp.AuthorizationParameters) {
				assert.Equal(t, "inside", merged.State)
				assert.Equal(t, "inside_nonce", merged.Nonce)
			},
		},
		{
			"absent_inside_falls_back",
			idp.AuthorizationParameters{State: "inside"},
			idp.AuthorizationParameters{State: "outside", RedirectURI: "https://client.example.com/cb"},
			func(t *testing.T, merged idp.AuthorizationParameters) {
				assert.Equal(t, "inside", merged.State)
				assert.Equal(t, "https://client.example.com/cb", merged.RedirectURI)
			},
		},
		{
			"fields_are_decided_independently",
			idp.AuthorizationParameters{
				ResponseType: idp.ResponseTypeCode,
				MaxAge:       &insideMaxAge,
			},
			idp.AuthorizationParameters{
				ResponseMode: idp.ResponseModeQuery,
				MaxAge:       &outsideMaxAge,
				Claims:       map[string]any{"id_token": nil},
			},
			func(t *testing.T, merged idp.AuthorizationParameters) {
				assert.Equal(t, idp.ResponseTypeCode, merged.ResponseType)
				assert.Equal(t, idp.ResponseModeQuery, merged.ResponseMode)
				require.NotNil(t, merged.MaxAge)
				assert.Equal(t, insideMaxAge, *merged.MaxAge)
				assert.Contains(t, merged.Claims, "id_token")
			},
		},
		{
			"authorization_details_from_inside",
			idp.AuthorizationParameters{
				AuthorizationDetails: []idp.AuthorizationDetail{{"type": "payment_initiation"}},
			},
			idp.AuthorizationParameters{
				AuthorizationDetails: []idp.AuthorizationDetail{{"type": "account_information"}},
			},
			func(t *testing.T, merged idp.AuthorizationParameters) {
				require.Len(t, merged.AuthorizationDetails, 1)
				assert.Equal(t, "payment_initiation", merged.AuthorizationDetails[0].Type())
			},
		},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			c.Check(t, c.Inside.Merge(c.Outside))
		})
	}
}

func TestAuthorizationRequestBuilder(t *testing.T) {
	request, err := idp.NewAuthorizationRequestBuilder().
		ID("req_id").
		TokenIssuer("https://idp.example.com").
		Profile(idp.ProfileOpenID).
		ClientID("client_id").
		Scopes([]string{"openid"}).
		Parameters(idp.AuthorizationParameters{State: "xyz"}).
		CreatedAt(100).
		Build()

	require.NoError(t, err)
	assert.Equal(t, "req_id", request.ID)
	assert.Equal(t, idp.ProfileOpenID, request.Profile)
	assert.Equal(t, "xyz", request.State)
	assert.False(t, request.IsExpired(200), "no expiry means never expired")
}

func TestAuthorizationRequestBuilder_MissingFields(t *testing.T) {
	_, err := idp.NewAuthorizationRequestBuilder().
		ID("req_id").
		TokenIssuer("https://idp.example.com").
		ClientID("client_id").
		Build()

	require.Error(t, err)
}

func TestAuthorizationRequestIsExpired(t *testing.T) {
	request := idp.AuthorizationRequest{ExpiresAt: 100}
	assert.False(t, request.IsExpired(99))
	assert.True(t, request.IsExpired(101))
}
