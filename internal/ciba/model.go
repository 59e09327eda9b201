package ciba

import (
	"encoding/json"
	"net/http"

	"github.com/idpkit/idp/internal/joseutil"
	"github.com/idpkit/idp/internal/timeutil"
	"github.com/idpkit/idp/pkg/idp"
	"github.com/zitadel/schema"
)

var formDecoder = func() *schema.Decoder {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	return decoder
}()

// backchannelParams are the typed backchannel authentication parameters.
// The same shape is decoded from the form body and from the claims of a
// signed request object, hence the double tagging.
type backchannelParams struct {
	Scope                   string `json:"scope,omitempty" schema:"scope"`
	ClientNotificationToken string `json:"client_notification_token,omitempty" schema:"client_notification_token"`
	ACRValues               string `json:"acr_values,omitempty" schema:"acr_values"`
	LoginHintToken          string `json:"login_hint_token,omitempty" schema:"login_hint_token"`
	IDTokenHint             string `json:"id_token_hint,omitempty" schema:"id_token_hint"`
	LoginHint               string `json:"login_hint,omitempty" schema:"login_hint"`
	BindingMessage          string `json:"binding_message,omitempty" schema:"binding_message"`
	UserCode                string `json:"user_code,omitempty" schema:"user_code"`
	RequestedExpiry         *int64 `json:"requested_expiry,omitempty" schema:"requested_expiry"`
	AuthorizationDetails    string `json:"-" schema:"authorization_details"`
}

// merge applies the request object precedence rule per field: a value the
// object asserts wins, anything it omits falls back to the out-of-band
// parameter. Fields are decided independently of each other.
func (inside backchannelParams) merge(outside backchannelParams) backchannelParams {
	return backchannelParams{
		Scope:                   nonZeroOrDefault(inside.Scope, outside.Scope),
		ClientNotificationToken: nonZeroOrDefault(inside.ClientNotificationToken, outside.ClientNotificationToken),
		ACRValues:               nonZeroOrDefault(inside.ACRValues, outside.ACRValues),
		LoginHintToken:          nonZeroOrDefault(inside.LoginHintToken, outside.LoginHintToken),
		IDTokenHint:             nonZeroOrDefault(inside.IDTokenHint, outside.IDTokenHint),
		LoginHint:               nonZeroOrDefault(inside.LoginHint, outside.LoginHint),
		BindingMessage:          nonZeroOrDefault(inside.BindingMessage, outside.BindingMessage),
		UserCode:                nonZeroOrDefault(inside.UserCode, outside.UserCode),
		RequestedExpiry:         nonNilOrDefault(inside.RequestedExpiry, outside.RequestedExpiry),
		AuthorizationDetails:    nonZeroOrDefault(inside.AuthorizationDetails, outside.AuthorizationDetails),
	}
}

func (p backchannelParams) authorizationDetails() []idp.AuthorizationDetail {
	if p.AuthorizationDetails == "" {
		return nil
	}

	var details []idp.AuthorizationDetail
	if err := json.Unmarshal([]byte(p.AuthorizationDetails), &details); err != nil {
		return nil
	}
	return details
}

func nonZeroOrDefault[T comparable](v1 T, v2 T) T {
	var zero T
	if v1 == zero {
		return v2
	}

	return v1
}

func nonNilOrDefault[T any](v1 *T, v2 *T) *T {
	if v1 == nil {
		return v2
	}

	return v1
}

// request is the raw inbound backchannel authentication request.
type request struct {
	ClientID      string
	RequestObject string
	Params        idp.RequestParameters
}

func newRequest(r *http.Request) request {
	_ = r.ParseForm()
	params := idp.NewRequestParameters(r.PostForm)
	return request{
		ClientID:      params.Get(idp.ParamClientID),
		RequestObject: params.Get(idp.ParamRequest),
		Params:        params,
	}
}

// requestContext aggregates everything the backchannel pipeline resolves
// for one request.
type requestContext struct {
	id          string
	tokenIssuer string
	pattern     idp.RequestPattern
	profile     idp.Profile
	params      backchannelParams
	jose        joseutil.Context
	scopes      []string
	request     *idp.BackchannelAuthenticationRequest
	server      *idp.ServerConfiguration
	client      *idp.ClientConfiguration
	credentials *idp.ClientCredentials
}

func (rc *requestContext) buildRequest() error {
	request, err := idp.NewBackchannelAuthenticationRequestBuilder().
		ID(rc.id).
		TokenIssuer(rc.tokenIssuer).
		Profile(rc.profile).
		DeliveryMode(rc.client.CIBADeliveryMode).
		ClientID(rc.client.ID).
		Scopes(rc.scopes).
		IDTokenHint(rc.params.IDTokenHint).
		LoginHint(rc.params.LoginHint).
		LoginHintToken(rc.params.LoginHintToken).
		ACRValues(rc.params.ACRValues).
		UserCode(rc.params.UserCode).
		BindingMessage(rc.params.BindingMessage).
		ClientNotificationToken(rc.params.ClientNotificationToken).
		RequestedExpiry(rc.params.RequestedExpiry).
		AuthorizationDetails(rc.params.authorizationDetails()).
		CreatedAt(timeutil.TimestampNow()).
		Build()
	if err != nil {
		return idp.NewError(idp.ErrorCodeInvalidScope, err.Error())
	}

	rc.request = request
	return nil
}

type cibaResponse struct {
	AuthReqID string `json:"auth_req_id"`
	ExpiresIn int64  `json:"expires_in"`
	Interval  int64  `json:"interval,omitempty"`
}
