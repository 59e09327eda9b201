package idp

import (
	"encoding/json"
	"errors"
	"reflect"
	"strconv"
)

// AuthorizationParameters are the typed request parameters shared by plain
// requests, request objects and pushed requests. The zero value of a field
// means the parameter is absent.
type AuthorizationParameters struct {
	RequestObject             string                `json:"-"`
	RequestURI                string                `json:"request_uri,omitempty"`
	RedirectURI               string                `json:"redirect_uri,omitempty"`
	ResponseType              ResponseType          `json:"response_type,omitempty"`
	ResponseMode              ResponseMode          `json:"response_mode,omitempty"`
	Scopes                    string                `json:"scope,omitempty"`
	State                     string                `json:"state,omitempty"`
	Nonce                     string                `json:"nonce,omitempty"`
	Display                   DisplayValue          `json:"display,omitempty"`
	Prompt                    PromptType            `json:"prompt,omitempty"`
	MaxAge                    *int64                `json:"max_age,omitempty"`
	UILocales                 string                `json:"ui_locales,omitempty"`
	IDTokenHint               string                `json:"id_token_hint,omitempty"`
	LoginHint                 string                `json:"login_hint,omitempty"`
	ACRValues                 string                `json:"acr_values,omitempty"`
	Claims                    map[string]any        `json:"claims,omitempty"`
	CodeChallenge             string                `json:"code_challenge,omitempty"`
	CodeChallengeMethod       CodeChallengeMethod   `json:"code_challenge_method,omitempty"`
	AuthorizationDetails      []AuthorizationDetail `json:"authorization_details,omitempty"`
	PresentationDefinition    map[string]any        `json:"presentation_definition,omitempty"`
	PresentationDefinitionURI string                `json:"presentation_definition_uri,omitempty"`
}

// ParseAuthorizationParameters builds the typed view from the raw container.
// Malformed JSON parameters are left absent; the verifiers decide whether
// absence is acceptable.
func ParseAuthorizationParameters(params RequestParameters) AuthorizationParameters {
	parsed := AuthorizationParameters{
		RequestObject:             params.Get(ParamRequest),
		RequestURI:                params.Get(ParamRequestURI),
		RedirectURI:               params.Get(ParamRedirectURI),
		ResponseType:              ResponseType(params.Get(ParamResponseType)),
		ResponseMode:              ResponseMode(params.Get(ParamResponseMode)),
		Scopes:                    params.Get(ParamScope),
		State:                     params.Get(ParamState),
		Nonce:                     params.Get(ParamNonce),
		Display:                   DisplayValue(params.Get(ParamDisplay)),
		Prompt:                    PromptType(params.Get(ParamPrompt)),
		UILocales:                 params.Get(ParamUILocales),
		IDTokenHint:               params.Get(ParamIDTokenHint),
		LoginHint:                 params.Get(ParamLoginHint),
		ACRValues:                 params.Get(ParamACRValues),
		CodeChallenge:             params.Get(ParamCodeChallenge),
		CodeChallengeMethod:       CodeChallengeMethod(params.Get(ParamCodeChallengeMethod)),
		PresentationDefinitionURI: params.Get(ParamPresentationDefinitionURI),
	}

	if maxAge, err := strconv.ParseInt(params.Get(ParamMaxAge), 10, 64); err == nil {
		parsed.MaxAge = &maxAge
	}

	if claims := params.Get(ParamClaims); claims != "" {
		var claimsObject map[string]any
		if err := json.Unmarshal([]byte(claims), &claimsObject); err == nil {
			parsed.Claims = claimsObject
		}
	}

	if details := params.Get(ParamAuthorizationDetails); details != "" {
		var detailObjects []AuthorizationDetail
		if err := json.Unmarshal([]byte(details), &detailObjects); err == nil {
			parsed.AuthorizationDetails = detailObjects
		}
	}

	if definition := params.Get(ParamPresentationDefinition); definition != "" {
		var definitionObject map[string]any
		if err := json.Unmarshal([]byte(definition), &definitionObject); err == nil {
			parsed.PresentationDefinition = definitionObject
		}
	}

	return parsed
}

// Merge resolves the per-field precedence between parameters asserted
// inside a request object and the ones sent out of band. Each field is
// decided independently; a set inside value always wins.
func (inside AuthorizationParameters) Merge(outside AuthorizationParameters) AuthorizationParameters {
	return AuthorizationParameters{
		RedirectURI:               nonZeroOrDefault(inside.RedirectURI, outside.RedirectURI),
		ResponseType:              nonZeroOrDefault(inside.ResponseType, outside.ResponseType),
		ResponseMode:              nonZeroOrDefault(inside.ResponseMode, outside.ResponseMode),
		Scopes:                    nonZeroOrDefault(inside.Scopes, outside.Scopes),
		State:                     nonZeroOrDefault(inside.State, outside.State),
		Nonce:                     nonZeroOrDefault(inside.Nonce, outside.Nonce),
		Display:                   nonZeroOrDefault(inside.Display, outside.Display),
		Prompt:                    nonZeroOrDefault(inside.Prompt, outside.Prompt),
		MaxAge:                    nonNilOrDefault(inside.MaxAge, outside.MaxAge),
		UILocales:                 nonZeroOrDefault(inside.UILocales, outside.UILocales),
		IDTokenHint:               nonZeroOrDefault(inside.IDTokenHint, outside.IDTokenHint),
		LoginHint:                 nonZeroOrDefault(inside.LoginHint, outside.LoginHint),
		ACRValues:                 nonZeroOrDefault(inside.ACRValues, outside.ACRValues),
		Claims:                    nonNilOrDefault(inside.Claims, outside.Claims),
		CodeChallenge:             nonZeroOrDefault(inside.CodeChallenge, outside.CodeChallenge),
		CodeChallengeMethod:       nonZeroOrDefault(inside.CodeChallengeMethod, outside.CodeChallengeMethod),
		AuthorizationDetails:      nonNilOrDefault(inside.AuthorizationDetails, outside.AuthorizationDetails),
		PresentationDefinition:    nonNilOrDefault(inside.PresentationDefinition, outside.PresentationDefinition),
		PresentationDefinitionURI: nonZeroOrDefault(inside.PresentationDefinitionURI, outside.PresentationDefinitionURI),
	}
}

func nonZeroOrDefault[T comparable](v1 T, v2 T) T {
	var zero T
	if v1 == zero {
		return v2
	}

	return v1
}

func nonNilOrDefault[T any](v1 T, v2 T) T {
	if reflect.ValueOf(v1).IsNil() {
		return v2
	}

	return v1
}

// AuthorizationRequest is the persisted protocol request entity. Built only
// through its builder; never mutated after Build.
type AuthorizationRequest struct {
	ID                      string   `json:"id" bson:"_id"`
	TokenIssuer             string   `json:"token_issuer" bson:"token_issuer"`
	Profile                 Profile  `json:"profile" bson:"profile"`
	ClientID                string   `json:"client_id" bson:"client_id"`
	Scopes                  []string `json:"scopes" bson:"scopes"`
	AuthorizationParameters `bson:"parameters"`
	// ExpiresAt is set for pushed requests only; zero means no expiry.
	ExpiresAt int64 `json:"expires_at,omitempty" bson:"expires_at,omitempty"`
	CreatedAt int64 `json:"created_at" bson:"created_at"`
}

func (r *AuthorizationRequest) IsExpired(now int64) bool {
	return r.ExpiresAt != 0 && r.ExpiresAt < now
}

// AuthorizationRequestBuilder accumulates resolved fields. Setters are
// last-write-wins; callers are expected to set each field once.
type AuthorizationRequestBuilder struct {
	request AuthorizationRequest
}

func NewAuthorizationRequestBuilder() *AuthorizationRequestBuilder {
	return &AuthorizationRequestBuilder{}
}

func (b *AuthorizationRequestBuilder) ID(id string) *AuthorizationRequestBuilder {
	b.request.ID = id
	return b
}

func (b *AuthorizationRequestBuilder) TokenIssuer(issuer string) *AuthorizationRequestBuilder {
	b.request.TokenIssuer = issuer
	return b
}

func (b *AuthorizationRequestBuilder) Profile(profile Profile) *AuthorizationRequestBuilder {
	b.request.Profile = profile
	return b
}

func (b *AuthorizationRequestBuilder) ClientID(id string) *AuthorizationRequestBuilder {
	b.request.ClientID = id
	return b
}

func (b *AuthorizationRequestBuilder) Scopes(scopes []string) *AuthorizationRequestBuilder {
	b.request.Scopes = scopes
	return b
}

func (b *AuthorizationRequestBuilder) Parameters(params AuthorizationParameters) *AuthorizationRequestBuilder {
	b.request.AuthorizationParameters = params
	return b
}

func (b *AuthorizationRequestBuilder) ExpiresAt(timestamp int64) *AuthorizationRequestBuilder {
	b.request.ExpiresAt = timestamp
	return b
}

func (b *AuthorizationRequestBuilder) CreatedAt(timestamp int64) *AuthorizationRequestBuilder {
	b.request.CreatedAt = timestamp
	return b
}

func (b *AuthorizationRequestBuilder) Build() (*AuthorizationRequest, error) {
	switch {
	case b.request.ID == "":
		return nil, errors.New("authorization request id is required")
	case b.request.TokenIssuer == "":
		return nil, errors.New("authorization request token issuer is required")
	case b.request.Profile == "":
		return nil, errors.New("authorization request profile is required")
	case b.request.ClientID == "":
		return nil, errors.New("authorization request client id is required")
	case len(b.request.Scopes) == 0:
		return nil, errors.New("authorization request scopes are required")
	}

	request := b.request
	return &request, nil
}
