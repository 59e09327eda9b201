package idp

import "github.com/go-jose/go-jose/v4"

// GrantType values the server can be configured with.
type GrantType string

const (
	GrantAuthorizationCode GrantType = "authorization_code"
	GrantImplicit          GrantType = "implicit"
	GrantClientCredentials GrantType = "client_credentials"
	GrantRefreshToken      GrantType = "refresh_token"
	GrantCIBA              GrantType = "urn:openid:params:grant-type:ciba"
)

type ResponseType string

const (
	ResponseTypeCode         ResponseType = "code"
	ResponseTypeIDToken      ResponseType = "id_token"
	ResponseTypeToken        ResponseType = "token"
	ResponseTypeCodeAndIDTkn ResponseType = "code id_token"
)

func (rt ResponseType) Contains(t ResponseType) bool {
	for _, part := range SplitWithSpaces(string(rt)) {
		if part == string(t) {
			return true
		}
	}
	return false
}

func (rt ResponseType) IsImplicit() bool {
	return rt.Contains(ResponseTypeIDToken) || rt.Contains(ResponseTypeToken)
}

type ResponseMode string

const (
	ResponseModeQuery       ResponseMode = "query"
	ResponseModeFragment    ResponseMode = "fragment"
	ResponseModeFormPost    ResponseMode = "form_post"
	ResponseModeQueryJWT    ResponseMode = "query.jwt"
	ResponseModeFragmentJWT ResponseMode = "fragment.jwt"
	ResponseModeFormPostJWT ResponseMode = "form_post.jwt"
	ResponseModeJWT         ResponseMode = "jwt"
)

func (rm ResponseMode) IsJARM() bool {
	return rm == ResponseModeQueryJWT || rm == ResponseModeFragmentJWT ||
		rm == ResponseModeFormPostJWT || rm == ResponseModeJWT
}

type CodeChallengeMethod string

const (
	CodeChallengePlain CodeChallengeMethod = "plain"
	CodeChallengeS256  CodeChallengeMethod = "S256"
)

type DisplayValue string

const (
	DisplayPage  DisplayValue = "page"
	DisplayPopUp DisplayValue = "popup"
	DisplayTouch DisplayValue = "touch"
	DisplayWAP   DisplayValue = "wap"
)

type PromptType string

const (
	PromptNone          PromptType = "none"
	PromptLogin         PromptType = "login"
	PromptConsent       PromptType = "consent"
	PromptSelectAccount PromptType = "select_account"
)

// CIBADeliveryMode is how tokens reach the client once the end user
// authorizes a backchannel request.
type CIBADeliveryMode string

const (
	CIBADeliveryPoll CIBADeliveryMode = "poll"
	CIBADeliveryPing CIBADeliveryMode = "ping"
	CIBADeliveryPush CIBADeliveryMode = "push"
)

func (m CIBADeliveryMode) IsNotification() bool {
	return m == CIBADeliveryPing || m == CIBADeliveryPush
}

// CredentialIssuerMetadata is the subset of issuer metadata the pipeline
// needs to accept verifiable-credential authorization details.
type CredentialIssuerMetadata struct {
	CredentialIssuer         string   `json:"credential_issuer" yaml:"credential_issuer"`
	CredentialsSupported     []string `json:"credentials_supported" yaml:"credentials_supported"`
	CredentialEndpoint       string   `json:"credential_endpoint" yaml:"credential_endpoint"`
	AuthorizationServerOwned bool     `json:"-" yaml:"-"`
}

// ServerConfiguration carries the capability flags of one token issuer.
// Instances are looked up per request and treated as read-only.
type ServerConfiguration struct {
	Issuer string `json:"issuer" bson:"_id"`

	Scopes            []string `json:"scopes_supported"`
	FAPIBaselineScope string   `json:"fapi_baseline_scope"`
	FAPIAdvanceScope  string   `json:"fapi_advance_scope"`

	GrantTypes        []GrantType       `json:"grant_types_supported"`
	ResponseTypes     []ResponseType    `json:"response_types_supported"`
	ResponseModes     []ResponseMode    `json:"response_modes_supported"`
	TokenAuthnMethods []ClientAuthnType `json:"token_endpoint_auth_methods_supported"`
	DisplayValues     []DisplayValue    `json:"display_values_supported"`
	ACRs              []string          `json:"acr_values_supported"`

	AuthorizationDetailTypes []string                  `json:"authorization_details_types_supported"`
	CredentialIssuer         *CredentialIssuerMetadata `json:"credential_issuer,omitempty"`

	RequireSignedRequestObject bool `json:"require_signed_request_object"`
	PlainPKCEIsAllowed         bool `json:"plain_pkce_allowed"`

	JARMIsEnabled    bool                    `json:"jarm_enabled"`
	JARMSigAlg       jose.SignatureAlgorithm `json:"jarm_signing_alg,omitempty"`
	JARMLifetimeSecs int64                   `json:"jarm_lifetime,omitempty"`

	BackchannelUserCodeIsRequired bool  `json:"backchannel_user_code_parameter_supported"`
	CIBAPollingIntervalSecs       int64 `json:"ciba_polling_interval"`
	CIBARequestLifetimeSecs       int64 `json:"ciba_request_lifetime"`
	PARRequestLifetimeSecs        int64 `json:"par_request_lifetime"`

	JARSigAlgs []jose.SignatureAlgorithm `json:"request_object_signing_alg_values_supported"`
	// JWKS holds the server keys. Request objects may be signed against the
	// server-known keys when the client registered none.
	JWKS jose.JSONWebKeySet `json:"-" bson:"jwks"`
}

// SignatureJWK picks the server key matching the given algorithm, falling
// back to the first signing key when no algorithm is given.
func (s *ServerConfiguration) SignatureJWK(alg jose.SignatureAlgorithm) (jose.JSONWebKey, bool) {
	for _, jwk := range s.JWKS.Keys {
		if alg != "" && jwk.Algorithm == string(alg) {
			return jwk, true
		}
		if alg == "" && jwk.Use == "sig" {
			return jwk, true
		}
	}
	return jose.JSONWebKey{}, false
}

func (s *ServerConfiguration) SupportsGrantType(gt GrantType) bool {
	for _, t := range s.GrantTypes {
		if t == gt {
			return true
		}
	}
	return false
}

func (s *ServerConfiguration) SupportsAuthnMethod(method ClientAuthnType) bool {
	for _, m := range s.TokenAuthnMethods {
		if m == method {
			return true
		}
	}
	return false
}

func (s *ServerConfiguration) SupportsAuthorizationDetailType(t string) bool {
	for _, supported := range s.AuthorizationDetailTypes {
		if supported == t {
			return true
		}
	}
	return false
}
