package idp

import "errors"

// BackchannelAuthenticationRequest is the persisted CIBA request entity.
// Built only through its builder; never mutated after Build.
type BackchannelAuthenticationRequest struct {
	ID           string           `json:"id" bson:"_id"`
	TokenIssuer  string           `json:"token_issuer" bson:"token_issuer"`
	Profile      Profile          `json:"profile" bson:"profile"`
	DeliveryMode CIBADeliveryMode `json:"delivery_mode" bson:"delivery_mode"`
	ClientID     string           `json:"client_id" bson:"client_id"`
	Scopes       []string         `json:"scopes" bson:"scopes"`

	IDTokenHint             string                `json:"id_token_hint,omitempty" bson:"id_token_hint,omitempty"`
	LoginHint               string                `json:"login_hint,omitempty" bson:"login_hint,omitempty"`
	LoginHintToken          string                `json:"login_hint_token,omitempty" bson:"login_hint_token,omitempty"`
	ACRValues               string                `json:"acr_values,omitempty" bson:"acr_values,omitempty"`
	UserCode                string                `json:"user_code,omitempty" bson:"user_code,omitempty"`
	BindingMessage          string                `json:"binding_message,omitempty" bson:"binding_message,omitempty"`
	ClientNotificationToken string                `json:"client_notification_token,omitempty" bson:"client_notification_token,omitempty"`
	RequestedExpiry         *int64                `json:"requested_expiry,omitempty" bson:"requested_expiry,omitempty"`
	AuthorizationDetails    []AuthorizationDetail `json:"authorization_details,omitempty" bson:"authorization_details,omitempty"`

	CreatedAt int64 `json:"created_at" bson:"created_at"`
}

func (r *BackchannelAuthenticationRequest) HasHint() bool {
	return r.LoginHint != "" || r.LoginHintToken != "" || r.IDTokenHint != ""
}

type BackchannelAuthenticationRequestBuilder struct {
	request BackchannelAuthenticationRequest
}

func NewBackchannelAuthenticationRequestBuilder() *BackchannelAuthenticationRequestBuilder {
	return &BackchannelAuthenticationRequestBuilder{}
}

func (b *BackchannelAuthenticationRequestBuilder) ID(id string) *BackchannelAuthenticationRequestBuilder {
	b.request.ID = id
	return b
}

func (b *BackchannelAuthenticationRequestBuilder) TokenIssuer(issuer string) *BackchannelAuthenticationRequestBuilder {
	b.request.TokenIssuer = issuer
	return b
}

func (b *BackchannelAuthenticationRequestBuilder) Profile(profile Profile) *BackchannelAuthenticationRequestBuilder {
	b.request.Profile = profile
	return b
}

func (b *BackchannelAuthenticationRequestBuilder) DeliveryMode(mode CIBADeliveryMode) *BackchannelAuthenticationRequestBuilder {
	b.request.DeliveryMode = mode
	return b
}

func (b *BackchannelAuthenticationRequestBuilder) ClientID(id string) *BackchannelAuthenticationRequestBuilder {
	b.request.ClientID = id
	return b
}

func (b *BackchannelAuthenticationRequestBuilder) Scopes(scopes []string) *BackchannelAuthenticationRequestBuilder {
	b.request.Scopes = scopes
	return b
}

func (b *BackchannelAuthenticationRequestBuilder) IDTokenHint(hint string) *BackchannelAuthenticationRequestBuilder {
	b.request.IDTokenHint = hint
	return b
}

func (b *BackchannelAuthenticationRequestBuilder) LoginHint(hint string) *BackchannelAuthenticationRequestBuilder {
	b.request.LoginHint = hint
	return b
}

func (b *BackchannelAuthenticationRequestBuilder) LoginHintToken(token string) *BackchannelAuthenticationRequestBuilder {
	b.request.LoginHintToken = token
	return b
}

func (b *BackchannelAuthenticationRequestBuilder) ACRValues(acrValues string) *BackchannelAuthenticationRequestBuilder {
	b.request.ACRValues = acrValues
	return b
}

func (b *BackchannelAuthenticationRequestBuilder) UserCode(code string) *BackchannelAuthenticationRequestBuilder {
	b.request.UserCode = code
	return b
}

func (b *BackchannelAuthenticationRequestBuilder) BindingMessage(msg string) *BackchannelAuthenticationRequestBuilder {
	b.request.BindingMessage = msg
	return b
}

func (b *BackchannelAuthenticationRequestBuilder) ClientNotificationToken(token string) *BackchannelAuthenticationRequestBuilder {
	b.request.ClientNotificationToken = token
	return b
}

func (b *BackchannelAuthenticationRequestBuilder) RequestedExpiry(secs *int64) *BackchannelAuthenticationRequestBuilder {
	b.request.RequestedExpiry = secs
	return b
}

func (b *BackchannelAuthenticationRequestBuilder) AuthorizationDetails(details []AuthorizationDetail) *BackchannelAuthenticationRequestBuilder {
	b.request.AuthorizationDetails = details
	return b
}

func (b *BackchannelAuthenticationRequestBuilder) CreatedAt(timestamp int64) *BackchannelAuthenticationRequestBuilder {
	b.request.CreatedAt = timestamp
	return b
}

func (b *BackchannelAuthenticationRequestBuilder) Build() (*BackchannelAuthenticationRequest, error) {
	switch {
	case b.request.ID == "":
		return nil, errors.New("backchannel authentication request id is required")
	case b.request.TokenIssuer == "":
		return nil, errors.New("backchannel authentication request token issuer is required")
	case b.request.Profile == "":
		return nil, errors.New("backchannel authentication request profile is required")
	case b.request.ClientID == "":
		return nil, errors.New("backchannel authentication request client id is required")
	case len(b.request.Scopes) == 0:
		return nil, errors.New("backchannel authentication request scopes are required")
	}

	request := b.request
	return &request, nil
}

// CibaGrantStatus is the backchannel grant lifecycle. Pending is the only
// non-terminal state.
type CibaGrantStatus string

const (
	GrantStatusPending      CibaGrantStatus = "authorization_pending"
	GrantStatusAuthorized   CibaGrantStatus = "authorized"
	GrantStatusAccessDenied CibaGrantStatus = "access_denied"
	GrantStatusExpired      CibaGrantStatus = "expired"
)

// User is the end user resolved from a CIBA hint.
type User struct {
	Subject string         `json:"sub" bson:"sub"`
	Name    string         `json:"name,omitempty" bson:"name,omitempty"`
	Claims  map[string]any `json:"claims,omitempty" bson:"claims,omitempty"`
}

// AuthorizationGrant is the authorization outcome attached to a grant once
// the end user approved the request.
type AuthorizationGrant struct {
	Subject              string                `json:"sub" bson:"sub"`
	Scopes               []string              `json:"scopes" bson:"scopes"`
	Claims               map[string]any        `json:"claims,omitempty" bson:"claims,omitempty"`
	CustomProperties     map[string]any        `json:"custom_properties,omitempty" bson:"custom_properties,omitempty"`
	AuthorizationDetails []AuthorizationDetail `json:"authorization_details,omitempty" bson:"authorization_details,omitempty"`
}

// CibaGrant links an auth_req_id to a backchannel authentication request
// and tracks its authorization outcome. Transitions are copy-on-write: the
// grant repository must guarantee at most one of two racing updates wins,
// using the Version field as the compare token.
type CibaGrant struct {
	AuthReqID                          string              `json:"auth_req_id" bson:"_id"`
	BackchannelAuthenticationRequestID string              `json:"backchannel_authentication_request_id" bson:"backchannel_authentication_request_id"`
	TokenIssuer                        string              `json:"token_issuer" bson:"token_issuer"`
	ClientID                           string              `json:"client_id" bson:"client_id"`
	Status                             CibaGrantStatus     `json:"status" bson:"status"`
	User                               *User               `json:"user,omitempty" bson:"user,omitempty"`
	Grant                              *AuthorizationGrant `json:"grant,omitempty" bson:"grant,omitempty"`
	IntervalSecs                       int64               `json:"interval" bson:"interval"`
	CreatedAt                          int64               `json:"created_at" bson:"created_at"`
	ExpiresAt                          int64               `json:"expires_at" bson:"expires_at"`
	Version                            int64               `json:"version" bson:"version"`
}

func (g CibaGrant) IsPending() bool {
	return g.Status == GrantStatusPending
}

func (g CibaGrant) IsExpired(now int64) bool {
	return g.ExpiresAt < now
}

// Authorize produces the authorized copy of the grant. Only a pending grant
// can transition; the first writer wins, a second transition attempt fails
// with invalid_grant.
func (g CibaGrant) Authorize(user User, grant AuthorizationGrant) (CibaGrant, error) {
	if !g.IsPending() {
		return CibaGrant{}, NewError(ErrorCodeInvalidGrant, "the grant is not pending")
	}

	authorized := g
	authorized.Status = GrantStatusAuthorized
	authorized.User = &user
	authorized.Grant = &grant
	authorized.Version++
	return authorized, nil
}

// Deny produces the denied copy of the grant under the same transition rule
// as Authorize.
func (g CibaGrant) Deny() (CibaGrant, error) {
	if !g.IsPending() {
		return CibaGrant{}, NewError(ErrorCodeInvalidGrant, "the grant is not pending")
	}

	denied := g
	denied.Status = GrantStatusAccessDenied
	denied.Version++
	return denied, nil
}

// Expire produces the expired copy of the grant.
func (g CibaGrant) Expire() (CibaGrant, error) {
	if !g.IsPending() {
		return CibaGrant{}, NewError(ErrorCodeInvalidGrant, "the grant is not pending")
	}

	expired := g
	expired.Status = GrantStatusExpired
	expired.Version++
	return expired, nil
}
