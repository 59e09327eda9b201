package idp

import "slices"

// Profile is the protocol profile a request runs under. It is derived once
// from the filtered scopes and decides which verifier set applies.
type Profile string

const (
	ProfileOAuth2       Profile = "OAUTH2"
	ProfileOpenID       Profile = "OIDC"
	ProfileFAPIBaseline Profile = "FAPI_BASELINE"
	ProfileFAPIAdvance  Profile = "FAPI_ADVANCE"
	ProfileCIBA         Profile = "CIBA"
	ProfileFAPICIBA     Profile = "FAPI_CIBA"
)

const ScopeOpenID = "openid"

// FilterScopes resolves the effective scope set for a request.
//
// When the parameters were delivered as a request object, or the client is
// registered for JAR, the scope value asserted inside the verified request
// object wins over the plain parameter. The raw value is then intersected
// with the scopes the server knows; unknown scopes are dropped silently.
func FilterScopes(
	pattern RequestPattern,
	params RequestParameters,
	objectScope string,
	client *ClientConfiguration,
	server *ServerConfiguration,
) []string {
	raw := params.Get(ParamScope)
	if pattern == RequestPatternRequestObject || client.JARIsEnabled {
		raw = objectScope
	}

	var scopes []string
	for _, scope := range SplitWithSpaces(raw) {
		if slices.Contains(server.Scopes, scope) {
			scopes = append(scopes, scope)
		}
	}

	return scopes
}

// AnalyzeProfile picks the OAuth-side profile. FAPI markers take precedence
// over the openid scope; the first match wins.
func AnalyzeProfile(scopes []string, server *ServerConfiguration) Profile {
	switch {
	case slices.Contains(scopes, server.FAPIAdvanceScope):
		return ProfileFAPIAdvance
	case slices.Contains(scopes, server.FAPIBaselineScope):
		return ProfileFAPIBaseline
	case slices.Contains(scopes, ScopeOpenID):
		return ProfileOpenID
	default:
		return ProfileOAuth2
	}
}

// AnalyzeCIBAProfile picks the backchannel-side profile. Both FAPI tiers
// map to FAPI-CIBA; anything else is plain CIBA.
func AnalyzeCIBAProfile(scopes []string, server *ServerConfiguration) Profile {
	if slices.Contains(scopes, server.FAPIAdvanceScope) ||
		slices.Contains(scopes, server.FAPIBaselineScope) {
		return ProfileFAPICIBA
	}

	return ProfileCIBA
}

func (p Profile) IsFAPI() bool {
	return p == ProfileFAPIBaseline || p == ProfileFAPIAdvance || p == ProfileFAPICIBA
}

func (p Profile) IsCIBA() bool {
	return p == ProfileCIBA || p == ProfileFAPICIBA
}
