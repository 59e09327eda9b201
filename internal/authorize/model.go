package authorize

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/idpkit/idp/internal/joseutil"
	"github.com/idpkit/idp/internal/timeutil"
	"github.com/idpkit/idp/pkg/idp"
)

const requestURIPrefix = "urn:ietf:params:oauth:request_uri:"

// request is the raw inbound authorization request before any verification.
type request struct {
	ClientID string
	Params   idp.RequestParameters
}

func newRequest(r *http.Request) request {
	var values = r.URL.Query()
	if r.Method == http.MethodPost {
		_ = r.ParseForm()
		values = r.PostForm
	}

	params := idp.NewRequestParameters(values)
	return request{
		ClientID: params.Get(idp.ParamClientID),
		Params:   params,
	}
}

// requestContext is the aggregate flowing through the pipeline. Created
// once per request by the creator matching its pattern, read-only
// afterwards.
type requestContext struct {
	id          string
	tokenIssuer string
	pattern     idp.RequestPattern
	profile     idp.Profile
	params      idp.RequestParameters
	// parsed holds the request parameters after the request-object
	// precedence merge.
	parsed idp.AuthorizationParameters
	jose   joseutil.Context
	scopes []string
	// request is the protocol entity produced by the request factory.
	request *idp.AuthorizationRequest
	// stored is only set for the pushed pattern and feeds the expiry
	// verifier.
	stored      *idp.AuthorizationRequest
	server      *idp.ServerConfiguration
	client      *idp.ClientConfiguration
	credentials *idp.ClientCredentials
}

// buildRequest is the request factory: it assembles the immutable protocol
// entity out of the resolved context fields.
func (rc *requestContext) buildRequest() error {
	request, err := idp.NewAuthorizationRequestBuilder().
		ID(rc.id).
		TokenIssuer(rc.tokenIssuer).
		Profile(rc.profile).
		ClientID(rc.client.ID).
		Scopes(rc.scopes).
		Parameters(rc.parsed).
		CreatedAt(timeutil.TimestampNow()).
		Build()
	// The factory runs during context creation, before the redirect_uri was
	// validated, so its failures must never redirect.
	if err != nil {
		return idp.NewError(idp.ErrorCodeInvalidScope, err.Error())
	}

	rc.request = request
	return nil
}

func newRequestID() string {
	return uuid.NewString()
}

type pushedResponse struct {
	RequestURI string `json:"request_uri"`
	ExpiresIn  int64  `json:"expires_in"`
}
