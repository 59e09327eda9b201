package ciba

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackchannelParamsMerge(t *testing.T) {
	insideExpiry := int64(60)
	outsideExpiry := int64(300)

	var cases = []struct {
		Name    string
		Inside  backchannelParams
		Outside backchannelParams
		Want    backchannelParams
	}{
		{
			"inside_wins",
			backchannelParams{LoginHint: "inside@example.com", Scope: "openid"},
			backchannelParams{LoginHint: "outside@example.com", Scope: "openid profile"},
			backchannelParams{LoginHint: "inside@example.com", Scope: "openid"},
		},
		{
			"fields_resolved_independently",
			backchannelParams{LoginHint: "inside@example.com", RequestedExpiry: &insideExpiry},
			backchannelParams{BindingMessage: "code: 42", RequestedExpiry: &outsideExpiry},
			backchannelParams{
				LoginHint:       "inside@example.com",
				BindingMessage:  "code: 42",
				RequestedExpiry: &insideExpiry,
			},
		},
		{
			"empty_inside_falls_back_entirely",
			backchannelParams{},
			backchannelParams{LoginHint: "outside@example.com", UserCode: "1234"},
			backchannelParams{LoginHint: "outside@example.com", UserCode: "1234"},
		},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			assert.Equal(t, c.Want, c.Inside.merge(c.Outside))
		})
	}
}

func TestBackchannelParamsAuthorizationDetails(t *testing.T) {
	params := backchannelParams{
		AuthorizationDetails: `[{"type":"payment_initiation","instructedAmount":{"amount":"100"}}]`,
	}

	details := params.authorizationDetails()

	require.Len(t, details, 1)
	assert.Equal(t, "payment_initiation", details[0].Type())
}

func TestBackchannelParamsAuthorizationDetails_Malformed(t *testing.T) {
	params := backchannelParams{AuthorizationDetails: "[not json"}
	assert.Nil(t, params.authorizationDetails())

	empty := backchannelParams{}
	assert.Nil(t, empty.authorizationDetails())
}
