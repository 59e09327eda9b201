package authorize

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/idpkit/idp/internal/joseutil"
	"github.com/idpkit/idp/internal/oidc"
	"github.com/idpkit/idp/internal/timeutil"
	"github.com/idpkit/idp/pkg/idp"
)

const defaultJARMLifetimeSecs int64 = 600

// response carries the front-channel error parameters sent back to the
// client once the redirect_uri is trusted.
type response struct {
	errorCode        idp.ErrorCode
	errorDescription string
	state            string
	// responseJWT replaces the plain parameters for JARM modes.
	responseJWT string
}

func (resp response) parameters() map[string]string {
	if resp.responseJWT != "" {
		return map[string]string{"response": resp.responseJWT}
	}

	params := map[string]string{
		"error":             string(resp.errorCode),
		"error_description": resp.errorDescription,
	}
	if resp.state != "" {
		params[idp.ParamState] = resp.state
	}
	return params
}

// redirectError delivers err through the front channel when it is
// redirectable. Any other error is returned unchanged for the handler to
// render directly.
func redirectError(
	ctx oidc.Context,
	err error,
	server *idp.ServerConfiguration,
	client *idp.ClientConfiguration,
) error {
	var redirectErr redirectionError
	if !errors.As(err, &redirectErr) {
		return err
	}

	resp := response{
		errorCode:        redirectErr.code,
		errorDescription: redirectErr.desc,
		state:            redirectErr.State,
	}
	return redirectResponse(ctx, server, client, redirectErr.AuthorizationParameters, resp)
}

func redirectResponse(
	ctx oidc.Context,
	server *idp.ServerConfiguration,
	client *idp.ClientConfiguration,
	params idp.AuthorizationParameters,
	resp response,
) error {
	mode := responseMode(params)
	if mode.IsJARM() {
		responseJWT, err := signJARMResponse(server, client, resp)
		if err != nil {
			return err
		}
		resp.responseJWT = responseJWT
	}

	switch mode {
	case idp.ResponseModeFragment, idp.ResponseModeFragmentJWT:
		ctx.Redirect(urlWithFragmentParams(params.RedirectURI, resp.parameters()))
	case idp.ResponseModeFormPost:
		return ctx.WriteHTML(formPostResponseTemplate, map[string]any{
			"RedirectURI": params.RedirectURI,
			"Params":      resp.parameters(),
		})
	default:
		ctx.Redirect(urlWithQueryParams(params.RedirectURI, resp.parameters()))
	}

	return nil
}

// responseMode resolves the effective mode following the multiple response
// type combination rules: implicit defaults to fragment, otherwise query.
func responseMode(params idp.AuthorizationParameters) idp.ResponseMode {
	if params.ResponseMode == "" {
		if params.ResponseType.IsImplicit() {
			return idp.ResponseModeFragment
		}
		return idp.ResponseModeQuery
	}

	if params.ResponseMode == idp.ResponseModeJWT {
		if params.ResponseType.IsImplicit() {
			return idp.ResponseModeFragmentJWT
		}
		return idp.ResponseModeQueryJWT
	}

	return params.ResponseMode
}

func signJARMResponse(
	server *idp.ServerConfiguration,
	client *idp.ClientConfiguration,
	resp response,
) (
	string,
	error,
) {
	jwk, ok := server.SignatureJWK(server.JARMSigAlg)
	if !ok {
		return "", idp.NewError(idp.ErrorCodeInternalError,
			"no signing key available for jarm")
	}

	lifetime := server.JARMLifetimeSecs
	if lifetime == 0 {
		lifetime = defaultJARMLifetimeSecs
	}

	now := timeutil.TimestampNow()
	claims := map[string]any{
		"iss": server.Issuer,
		"aud": client.ID,
		"iat": now,
		"exp": now + lifetime,
	}
	for k, v := range resp.parameters() {
		claims[k] = v
	}

	responseJWT, err := joseutil.Sign(claims, jwk, nil)
	if err != nil {
		return "", idp.Errorf(idp.ErrorCodeInternalError,
			"could not sign the jarm response", err)
	}
	return responseJWT, nil
}

func urlWithQueryParams(redirectURI string, params map[string]string) string {
	if len(params) == 0 {
		return redirectURI
	}

	parsedURL, _ := url.Parse(redirectURI)
	query := parsedURL.Query()
	for param, value := range params {
		query.Set(param, value)
	}
	parsedURL.RawQuery = query.Encode()
	return parsedURL.String()
}

func urlWithFragmentParams(redirectURI string, params map[string]string) string {
	if len(params) == 0 {
		return redirectURI
	}

	urlParams := url.Values{}
	for param, value := range params {
		urlParams.Set(param, value)
	}
	return fmt.Sprintf("%s#%s", redirectURI, urlParams.Encode())
}
