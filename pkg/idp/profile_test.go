package idp_test

import (
	"testing"

	"github.com/idpkit/idp/pkg/idp"
	"github.com/stretchr/testify/assert"
)

func testServer() *idp.ServerConfiguration {
	return &idp.ServerConfiguration{
		Issuer:            "https://idp.example.com",
		Scopes:            []string{"openid", "profile", "payments", "fapi", "fapi_base"},
		FAPIBaselineScope: "fapi_base",
		FAPIAdvanceScope:  "fapi",
	}
}

func TestFilterScopes(t *testing.T) {
	server := testServer()

	var cases = []struct {
		Name        string
		Pattern     idp.RequestPattern
		Params      idp.RequestParameters
		ObjectScope string
		Client      *idp.ClientConfiguration
		Want        []string
	}{
		{
			"plain_request_uses_the_scope_parameter",
			idp.RequestPatternNormal,
			idp.RequestParameters{idp.ParamScope: {"openid profile"}},
			"",
			&idp.ClientConfiguration{},
			[]string{"openid", "profile"},
		},
		{
			"unknown_scopes_are_dropped",
			idp.RequestPatternNormal,
			idp.RequestParameters{idp.ParamScope: {"openid email unknown"}},
			"",
			&idp.ClientConfiguration{},
			[]string{"openid"},
		},
		{
			"request_object_scope_wins",
			idp.RequestPatternRequestObject,
			idp.RequestParameters{idp.ParamScope: {"openid profile"}},
			"openid payments",
			&idp.ClientConfiguration{},
			[]string{"openid", "payments"},
		},
		{
			"jar_client_always_uses_the_object_scope",
			idp.RequestPatternNormal,
			idp.RequestParameters{idp.ParamScope: {"openid profile"}},
			"openid",
			&idp.ClientConfiguration{JARIsEnabled: true},
			[]string{"openid"},
		},
		{
			"empty_scope",
			idp.RequestPatternNormal,
			idp.RequestParameters{},
			"",
			&idp.ClientConfiguration{},
			nil,
		},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			got := idp.FilterScopes(c.Pattern, c.Params, c.ObjectScope, c.Client, server)
			assert.Equal(t, c.Want, got)
		})
	}
}

func TestAnalyzeProfile(t *testing.T) {
	server := testServer()

	var cases = []struct {
		Name   string
		Scopes []string
		Want   idp.Profile
	}{
		{"no_markers", []string{"profile"}, idp.ProfileOAuth2},
		{"openid", []string{"openid", "profile"}, idp.ProfileOpenID},
		{"fapi_baseline", []string{"openid", "fapi_base"}, idp.ProfileFAPIBaseline},
		{"fapi_advance", []string{"openid", "fapi"}, idp.ProfileFAPIAdvance},
		{"advance_wins_over_baseline", []string{"openid", "fapi_base", "fapi"}, idp.ProfileFAPIAdvance},
		{"empty", nil, idp.ProfileOAuth2},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			assert.Equal(t, c.Want, idp.AnalyzeProfile(c.Scopes, server))
		})
	}
}

func TestAnalyzeCIBAProfile(t *testing.T) {
	server := testServer()

	var cases = []struct {
		Name   string
		Scopes []string
		Want   idp.Profile
	}{
		{"plain", []string{"openid"}, idp.ProfileCIBA},
		{"fapi_baseline_maps_to_fapi_ciba", []string{"openid", "fapi_base"}, idp.ProfileFAPICIBA},
		{"fapi_advance_maps_to_fapi_ciba", []string{"openid", "fapi"}, idp.ProfileFAPICIBA},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			assert.Equal(t, c.Want, idp.AnalyzeCIBAProfile(c.Scopes, server))
		})
	}
}

func TestAnalyzeProfile_EmptyFAPIMarkersDoNotMatch(t *testing.T) {
	// A server without FAPI scopes configured must never classify a request
	// as FAPI just because the marker fields are both empty strings.
	server := &idp.ServerConfiguration{Scopes: []string{"openid"}}
	assert.Equal(t, idp.ProfileOpenID, idp.AnalyzeProfile([]string{"openid"}, server))
	assert.Equal(t, idp.ProfileCIBA, idp.AnalyzeCIBAProfile([]string{"openid"}, server))
}
