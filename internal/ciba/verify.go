package ciba

import (
	"fmt"

	"github.com/idpkit/idp/pkg/idp"
)

const maxNotificationTokenLength = 1024

type verifier interface {
	shouldSkip(rc *requestContext) bool
	verify(rc *requestContext) error
}

var verifierChains = map[idp.Profile][]verifier{
	idp.ProfileCIBA: {
		baseVerifier{},
		authorizationDetailsVerifier{},
	},
	idp.ProfileFAPICIBA: {
		baseVerifier{},
		requestObjectVerifier{},
		authorizationDetailsVerifier{},
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

// baseVerifier holds the backchannel protocol rules shared by both CIBA
// profiles. Backchannel requests never redirect, every failure renders as a
// plain error response.
type baseVerifier struct{}

func (baseVerifier) shouldSkip(*requestContext) bool { return false }

func (baseVerifier) verify(rc *requestContext) error {
	if !rc.server.SupportsGrantType(idp.GrantCIBA) {
		return idp.NewError(idp.ErrorCodeUnsupportedGrant, "grant ciba is not supported")
	}

	if !rc.client.IsGrantTypeAllowed(idp.GrantCIBA) {
		return idp.NewError(idp.ErrorCodeUnauthorizedClient,
			"grant ciba is not allowed for the client")
	}

	// Only confidential clients can use the backchannel flow.
	if rc.client.AuthnMethod == idp.ClientAuthnNone {
		return idp.NewError(idp.ErrorCodeUnauthorizedClient,
			"public clients cannot use the backchannel flow")
	}

	if !idp.ContainsOpenID(rc.scopes) {
		return idp.NewError(idp.ErrorCodeInvalidScope, "scope openid is required")
	}

	if !rc.request.HasHint() {
		return idp.NewError(idp.ErrorCodeInvalidRequest,
			"one of login_hint, login_hint_token or id_token_hint is required")
	}

	if err := verifyDelivery(rc); err != nil {
		return err
	}

	if rc.server.BackchannelUserCodeIsRequired && rc.params.UserCode == "" {
		return idp.NewError(idp.ErrorCodeMissingUserCode, "user_code is required")
	}

	if rc.params.UserCode != "" && !rc.client.CIBAUserCodeIsEnabled {
		return idp.NewError(idp.ErrorCodeInvalidRequest, "user_code is not allowed")
	}

	if rc.params.RequestedExpiry != nil && *rc.params.RequestedExpiry <= 0 {
		return idp.NewError(idp.ErrorCodeInvalidRequest, "invalid requested_expiry")
	}

	return nil
}

func verifyDelivery(rc *requestContext) error {
	if !rc.client.CIBADeliveryMode.IsNotification() {
		return nil
	}

	if rc.client.CIBANotificationEndpoint == "" {
		return idp.NewError(idp.ErrorCodeInvalidRequest,
			"the client has no notification endpoint registered")
	}

	if rc.params.ClientNotificationToken == "" {
		return idp.NewError(idp.ErrorCodeInvalidRequest,
			"client_notification_token is required")
	}

	if len(rc.params.ClientNotificationToken) > maxNotificationTokenLength {
		return idp.NewError(idp.ErrorCodeInvalidRequest,
			"client_notification_token is too long")
	}

	return nil
}

// requestObjectVerifier enforces signed request delivery under FAPI-CIBA
// and re-runs the structural claim checks.
type requestObjectVerifier struct{}

func (requestObjectVerifier) shouldSkip(*requestContext) bool { return false }

func (requestObjectVerifier) verify(rc *requestContext) error {
	if !rc.jose.Exists() {
		return idp.NewError(idp.ErrorCodeInvalidRequest,
			"the request must be delivered as a signed request object")
	}

	return validateRequestObjectClaims(rc.jose, rc.server, rc.client)
}

// authorizationDetailsVerifier runs the double check against the server
// catalog and the client's authorized types. For clients registered with
// rar required, absence itself is the failure.
type authorizationDetailsVerifier struct{}

func (authorizationDetailsVerifier) shouldSkip(rc *requestContext) bool {
	return len(rc.request.AuthorizationDetails) == 0 && !rc.client.CIBARequireRAR
}

func (authorizationDetailsVerifier) verify(rc *requestContext) error {
	details := rc.request.AuthorizationDetails
	if rc.client.CIBARequireRAR && len(details) == 0 {
		return idp.NewError(idp.ErrorCodeInvalidAuthDetails,
			"authorization details are required")
	}

	for _, detail := range details {
		detailType := detail.Type()
		if detailType == "" {
			return idp.NewError(idp.ErrorCodeInvalidAuthDetails,
				"authorization details entry without a type")
		}

		if !rc.server.SupportsAuthorizationDetailType(detailType) {
			return idp.NewError(idp.ErrorCodeInvalidAuthDetails,
				fmt.Sprintf("authorization detail type %s is not supported", detailType))
		}

		if !rc.client.IsAuthorizationDetailTypeAllowed(detailType) {
			return idp.NewError(idp.ErrorCodeInvalidAuthDetails,
				fmt.Sprintf("authorization detail type %s is not allowed for the client", detailType))
		}
	}

	return nil
}
