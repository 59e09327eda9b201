package idp

import "net/url"

// Request parameter names understood by the request pipeline. Parameters
// outside this vocabulary are carried along but never cause an error.
const (
	ParamScope                     = "scope"
	ParamResponseType              = "response_type"
	ParamClientID                  = "client_id"
	ParamRedirectURI               = "redirect_uri"
	ParamState                     = "state"
	ParamResponseMode              = "response_mode"
	ParamNonce                     = "nonce"
	ParamDisplay                   = "display"
	ParamPrompt                    = "prompt"
	ParamMaxAge                    = "max_age"
	ParamUILocales                 = "ui_locales"
	ParamIDTokenHint               = "id_token_hint"
	ParamLoginHint                 = "login_hint"
	ParamACRValues                 = "acr_values"
	ParamClaims                    = "claims"
	ParamRequest                   = "request"
	ParamRequestURI                = "request_uri"
	ParamCodeChallenge             = "code_challenge"
	ParamCodeChallengeMethod       = "code_challenge_method"
	ParamAuthorizationDetails      = "authorization_details"
	ParamPresentationDefinition    = "presentation_definition"
	ParamPresentationDefinitionURI = "presentation_definition_uri"
	ParamClientNotificationToken   = "client_notification_token"
	ParamUserCode                  = "user_code"
	ParamBindingMessage            = "binding_message"
	ParamLoginHintToken            = "login_hint_token"
	ParamRequestedExpiry           = "requested_expiry"
	ParamClientSecret              = "client_secret"
	ParamClientAssertion           = "client_assertion"
	ParamClientAssertionType       = "client_assertion_type"
)

// RequestParameters is a multi-value view over the raw query or form data of
// an inbound request. Values of a key keep the order they appeared in.
type RequestParameters map[string][]string

func NewRequestParameters(values url.Values) RequestParameters {
	return RequestParameters(values)
}

func (p RequestParameters) Get(key string) string {
	values := p[key]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func (p RequestParameters) All(key string) []string {
	return p[key]
}

func (p RequestParameters) Has(key string) bool {
	return len(p[key]) != 0 && p[key][0] != ""
}

func (p RequestParameters) IsEmpty() bool {
	return len(p) == 0
}
