package clientauthn

import (
	"crypto/x509"
	"net/http"

	"github.com/idpkit/idp/pkg/idp"
)

// AuthnRequest carries the client-authentication material presented with a
// request. It is extracted once and handed to the authenticator.
type AuthnRequest struct {
	ClientID      string
	Secret        string
	BasicID       string
	BasicSecret   string
	HasBasicAuth  bool
	Assertion     string
	AssertionType string
	Certificate   *x509.Certificate
}

func NewAuthnRequest(r *http.Request, params idp.RequestParameters) AuthnRequest {
	req := AuthnRequest{
		ClientID:      params.Get(idp.ParamClientID),
		Secret:        params.Get(idp.ParamClientSecret),
		Assertion:     params.Get(idp.ParamClientAssertion),
		AssertionType: params.Get(idp.ParamClientAssertionType),
	}

	req.BasicID, req.BasicSecret, req.HasBasicAuth = r.BasicAuth()

	if r.TLS != nil && len(r.TLS.PeerCertificates) != 0 {
		req.Certificate = r.TLS.PeerCertificates[0]
	}

	return req
}
