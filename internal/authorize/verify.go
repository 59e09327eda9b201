package authorize

import (
	"fmt"
	"slices"

	"github.com/idpkit/idp/internal/timeutil"
	"github.com/idpkit/idp/pkg/idp"
)

// verifier is one independently skippable check of the chain. The runner
// short-circuits on the first failure, so a request with several violations
// reports only the first one in chain order.
type verifier interface {
	shouldSkip(rc *requestContext) bool
	verify(rc *requestContext) error
}

// verifierChains is resolved once at startup; an unknown profile reaching
// the dispatch is a configuration bug, not a client error.
var verifierChains = map[idp.Profile][]verifier{
	idp.ProfileOAuth2: {
		baseVerifier{},
		pkceVerifier{},
		jarmVerifier{},
		authorizationDetailsVerifier{},
		verifiableCredentialVerifier{},
		pushedRequestExpiryVerifier{},
	},
	idp.ProfileOpenID: {
		baseVerifier{},
		pkceVerifier{},
		jarmVerifier{},
		authorizationDetailsVerifier{},
		verifiableCredentialVerifier{},
		pushedRequestExpiryVerifier{},
	},
	idp.ProfileFAPIBaseline: {
		baseVerifier{},
		pkceVerifier{},
		requestObjectVerifier{},
		jarmVerifier{},
		authorizationDetailsVerifier{},
		verifiableCredentialVerifier{},
		pushedRequestExpiryVerifier{},
	},
	idp.ProfileFAPIAdvance: {
		baseVerifier{},
		pkceVerifier{},
		requestObjectVerifier{},
		jarmVerifier{},
		authorizationDetailsVerifier{},
		verifiableCredentialVerifier{},
		pushedRequestExpiryVerifier{},
	},
}

func runVerifiers(rc *requestContext) error {
	chain, ok := verifierChains[rc.profile]
	if !ok {
		return idp.NewError(idp.ErrorCodeInternalError,
			fmt.Sprintf("no verifier chain for profile %s", rc.profile))
	}

	for _, v := range chain {
		if v.shouldSkip(rc) {
			continue
		}
		if err := v.verify(rc); err != nil {
			return err
		}
	}

	return nil
}

// baseVerifier runs the profile-independent protocol rules. Checks before
// the redirect_uri registration match fail with plain errors; checks after
// it may redirect the error back to the client.
type baseVerifier struct{}

func (baseVerifier) shouldSkip(*requestContext) bool { return false }

func (baseVerifier) verify(rc *requestContext) error {
	if err := verifyGrantTypes(rc); err != nil {
		return err
	}

	if rc.profile == idp.ProfileFAPIAdvance && rc.client.AuthnMethod == idp.ClientAuthnNone {
		return idp.NewError(idp.ErrorCodeUnauthorizedClient,
			"public clients are not allowed under this profile")
	}

	if rc.profile != idp.ProfileOAuth2 && !idp.ContainsOpenID(rc.scopes) {
		return idp.NewError(idp.ErrorCodeInvalidScope, "scope openid is required")
	}

	if rc.parsed.RedirectURI == "" {
		return idp.NewError(idp.ErrorCodeInvalidRequest, "redirect_uri is required")
	}

	if !rc.client.IsRedirectURIRegistered(rc.parsed.RedirectURI) {
		return idp.NewError(idp.ErrorCodeInvalidRequest, "invalid redirect_uri")
	}

	// From here on the redirect_uri is trusted, errors may be redirected.
	if rc.client.AuthnMethod == idp.ClientAuthnNone && rc.parsed.CodeChallenge == "" {
		return newRedirectionError(idp.ErrorCodeInvalidRequest,
			"pkce is required for public clients", rc.parsed)
	}

	if err := verifyResponse(rc); err != nil {
		return err
	}

	return verifyDisplayAndPrompt(rc)
}

func verifyGrantTypes(rc *requestContext) error {
	responseType := rc.parsed.ResponseType
	if responseType.Contains(idp.ResponseTypeCode) {
		if !rc.server.SupportsGrantType(idp.GrantAuthorizationCode) {
			return idp.NewError(idp.ErrorCodeUnsupportedGrant,
				"grant authorization_code is not supported")
		}
		if !rc.client.IsGrantTypeAllowed(idp.GrantAuthorizationCode) {
			return idp.NewError(idp.ErrorCodeUnauthorizedClient,
				"grant authorization_code is not allowed for the client")
		}
	}

	if responseType.IsImplicit() {
		if !rc.server.SupportsGrantType(idp.GrantImplicit) {
			return idp.NewError(idp.ErrorCodeUnsupportedGrant,
				"grant implicit is not supported")
		}
		if !rc.client.IsGrantTypeAllowed(idp.GrantImplicit) {
			return idp.NewError(idp.ErrorCodeUnauthorizedClient,
				"grant implicit is not allowed for the client")
		}
	}

	return nil
}

func verifyResponse(rc *requestContext) error {
	responseType := rc.parsed.ResponseType
	if responseType == "" {
		return newRedirectionError(idp.ErrorCodeInvalidRequest,
			"response_type is required", rc.parsed)
	}

	if len(rc.server.ResponseTypes) != 0 &&
		!slices.Contains(rc.server.ResponseTypes, responseType) {
		return newRedirectionError(idp.ErrorCodeUnsupportedResponse,
			"invalid response_type", rc.parsed)
	}

	if responseType.Contains(idp.ResponseTypeIDToken) && !idp.ContainsOpenID(rc.scopes) {
		return newRedirectionError(idp.ErrorCodeInvalidRequest,
			"cannot request id_token without the scope openid", rc.parsed)
	}

	if responseType.Contains(idp.ResponseTypeIDToken) && rc.parsed.Nonce == "" {
		return newRedirectionError(idp.ErrorCodeInvalidRequest,
			"nonce is required when id_token is requested", rc.parsed)
	}

	if responseType.IsImplicit() && rc.parsed.ResponseMode == idp.ResponseModeQuery {
		return newRedirectionError(idp.ErrorCodeInvalidRequest,
			"invalid response_mode for the chosen response_type", rc.parsed)
	}

	if rc.parsed.ResponseMode != "" && len(rc.server.ResponseModes) != 0 &&
		!slices.Contains(rc.server.ResponseModes, rc.parsed.ResponseMode) {
		return newRedirectionError(idp.ErrorCodeInvalidRequest,
			"invalid response_mode", rc.parsed)
	}

	return nil
}

func verifyDisplayAndPrompt(rc *requestContext) error {
	if rc.parsed.MaxAge != nil && *rc.parsed.MaxAge < 0 {
		return newRedirectionError(idp.ErrorCodeInvalidRequest,
			"invalid max_age", rc.parsed)
	}

	if rc.parsed.Display != "" && len(rc.server.DisplayValues) != 0 &&
		!slices.Contains(rc.server.DisplayValues, rc.parsed.Display) {
		return newRedirectionError(idp.ErrorCodeInvalidRequest,
			"invalid display value", rc.parsed)
	}

	switch rc.parsed.Prompt {
	case "", idp.PromptNone, idp.PromptLogin, idp.PromptConsent, idp.PromptSelectAccount:
	default:
		return newRedirectionError(idp.ErrorCodeInvalidRequest,
			"invalid prompt value", rc.parsed)
	}

	return nil
}

// pkceVerifier checks the challenge method whenever a challenge was sent.
// plain is accepted only when the server opted in; S256 always is.
type pkceVerifier struct{}

func (pkceVerifier) shouldSkip(rc *requestContext) bool {
	return rc.parsed.CodeChallenge == ""
}

func (pkceVerifier) verify(rc *requestContext) error {
	switch rc.parsed.CodeChallengeMethod {
	case idp.CodeChallengeS256, "":
		return nil
	case idp.CodeChallengePlain:
		if !rc.server.PlainPKCEIsAllowed {
			return newRedirectionError(idp.ErrorCodeInvalidRequest,
				"plain code_challenge_method is not allowed", rc.parsed)
		}
		return nil
	default:
		return newRedirectionError(idp.ErrorCodeInvalidRequest,
			"invalid code_challenge_method", rc.parsed)
	}
}

// requestObjectVerifier re-runs the structural claim checks at verification
// time. Context creation already validated them, but keeping the check in
// the chain lets it be exercised on its own.
type requestObjectVerifier struct{}

func (requestObjectVerifier) shouldSkip(rc *requestContext) bool {
	return !rc.jose.Exists()
}

func (requestObjectVerifier) verify(rc *requestContext) error {
	return validateRequestObjectClaims(rc.jose, rc.server, rc.client)
}

// jarmVerifier rejects JWT-secured response modes the server cannot
// produce. form_post.jwt is not implemented and must fail loudly instead of
// silently downgrading.
type jarmVerifier struct{}

func (jarmVerifier) shouldSkip(rc *requestContext) bool {
	return !rc.parsed.ResponseMode.IsJARM()
}

func (jarmVerifier) verify(rc *requestContext) error {
	if !rc.server.JARMIsEnabled {
		return newRedirectionError(idp.ErrorCodeInvalidRequest,
			"jarm response modes are not enabled", rc.parsed)
	}

	if rc.parsed.ResponseMode == idp.ResponseModeFormPostJWT {
		return newRedirectionError(idp.ErrorCodeInvalidRequest,
			"response_mode form_post.jwt is not supported", rc.parsed)
	}

	return nil
}

// authorizationDetailsVerifier checks every entry against both the server
// catalog and the client's authorized types.
type authorizationDetailsVerifier struct{}

func (authorizationDetailsVerifier) shouldSkip(rc *requestContext) bool {
	return rc.parsed.AuthorizationDetails == nil
}

func (authorizationDetailsVerifier) verify(rc *requestContext) error {
	for _, detail := range rc.parsed.AuthorizationDetails {
		detailType := detail.Type()
		if detailType == "" {
			return newRedirectionError(idp.ErrorCodeInvalidAuthDetails,
				"authorization details entry without a type", rc.parsed)
		}

		if !rc.server.SupportsAuthorizationDetailType(detailType) {
			return newRedirectionError(idp.ErrorCodeInvalidAuthDetails,
				fmt.Sprintf("authorization detail type %s is not supported", detailType),
				rc.parsed)
		}

		if !rc.client.IsAuthorizationDetailTypeAllowed(detailType) {
			return newRedirectionError(idp.ErrorCodeInvalidAuthDetails,
				fmt.Sprintf("authorization detail type %s is not allowed for the client", detailType),
				rc.parsed)
		}
	}

	return nil
}

// verifiableCredentialVerifier only fires when a credential-typed entry is
// present; the server then needs credential-issuer metadata.
type verifiableCredentialVerifier struct{}

func (verifiableCredentialVerifier) shouldSkip(rc *requestContext) bool {
	for _, detail := range rc.parsed.AuthorizationDetails {
		if detail.IsCredential() {
			return false
		}
	}

	return true
}

func (verifiableCredentialVerifier) verify(rc *requestContext) error {
	if rc.server.CredentialIssuer == nil {
		return newRedirectionError(idp.ErrorCodeInvalidAuthDetails,
			"unsupported verifiable credential", rc.parsed)
	}

	return nil
}

// pushedRequestExpiryVerifier rejects expired pushed requests with the
// request_uri specific error code.
type pushedRequestExpiryVerifier struct{}

func (pushedRequestExpiryVerifier) shouldSkip(rc *requestContext) bool {
	return rc.pattern != idp.RequestPatternPushedRequestURI
}

func (pushedRequestExpiryVerifier) verify(rc *requestContext) error {
	if rc.stored.IsExpired(timeutil.TimestampNow()) {
		return newRedirectionError(idp.ErrorCodeInvalidRequestURI,
			"the request_uri is expired", rc.parsed)
	}

	return nil
}
