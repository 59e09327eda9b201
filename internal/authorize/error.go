package authorize

import (
	"fmt"

	"github.com/idpkit/idp/pkg/idp"
)

// redirectionError is raised only after the redirect_uri was validated, so
// the front channel can still deliver the error to the client. Anything
// detected earlier stays a plain error and is rendered directly.
type redirectionError struct {
	code    idp.ErrorCode
	desc    string
	wrapped error
	idp.AuthorizationParameters
}

func (err redirectionError) Error() string {
	return fmt.Sprintf("%s %s", err.code, err.desc)
}

func (err redirectionError) Unwrap() error {
	return err.wrapped
}

func newRedirectionError(
	code idp.ErrorCode,
	desc string,
	params idp.AuthorizationParameters,
) error {
	return redirectionError{
		code:                    code,
		desc:                    desc,
		AuthorizationParameters: params,
	}
}
