package idp_test

import (
	"testing"

	"github.com/idpkit/idp/pkg/idp"
	"github.com/stretchr/testify/assert"
)

func TestClassifyRequestPattern(t *testing.T) {
	var cases = []struct {
		Name   string
		Params idp.RequestParameters
		Want   idp.RequestPattern
	}{
		{
			"plain_parameters",
			idp.RequestParameters{
				idp.ParamResponseType: {"code"},
				idp.ParamScope:        {"openid"},
			},
			idp.RequestPatternNormal,
		},
		{
			"request_object",
			idp.RequestParameters{
				idp.ParamRequest: {"eyJhbGciOiJSUzI1NiJ9.e30.sig"},
			},
			idp.RequestPatternRequestObject,
		},
		{
			"request_uri",
			idp.RequestParameters{
				idp.ParamRequestURI: {"https://client.example.com/request.jwt"},
			},
			idp.RequestPatternRequestURI,
		},
		{
			"request_wins_over_request_uri",
			idp.RequestParameters{
				idp.ParamRequest:    {"eyJhbGciOiJSUzI1NiJ9.e30.sig"},
				idp.ParamRequestURI: {"https://client.example.com/request.jwt"},
			},
			idp.RequestPatternRequestObject,
		},
		{
			"empty_request_param_is_absent",
			idp.RequestParameters{
				idp.ParamRequest:      {""},
				idp.ParamResponseType: {"code"},
			},
			idp.RequestPatternNormal,
		},
		{
			"no_parameters",
			idp.RequestParameters{},
			idp.RequestPatternNormal,
		},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			assert.Equal(t, c.Want, idp.ClassifyRequestPattern(c.Params))
		})
	}
}

func TestClassifyCIBARequestPattern(t *testing.T) {
	var cases = []struct {
		Name   string
		Params idp.RequestParameters
		Want   idp.RequestPattern
	}{
		{
			"plain_parameters",
			idp.RequestParameters{
				idp.ParamScope:     {"openid"},
				idp.ParamLoginHint: {"user@example.com"},
			},
			idp.RequestPatternNormal,
		},
		{
			"request_object",
			idp.RequestParameters{
				idp.ParamRequest: {"eyJhbGciOiJSUzI1NiJ9.e30.sig"},
			},
			idp.RequestPatternRequestObject,
		},
		{
			"request_uri_is_not_a_ciba_delivery",
			idp.RequestParameters{
				idp.ParamRequestURI: {"https://client.example.com/request.jwt"},
			},
			idp.RequestPatternNormal,
		},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			assert.Equal(t, c.Want, idp.ClassifyCIBARequestPattern(c.Params))
		})
	}
}
