package idp

import (
	"context"
	"net/http"
)

// Context is the request-scoped view handed to user supplied hooks.
type Context interface {
	HTTPRequest() *http.Request
	HTTPResponse() http.ResponseWriter
	// context.Context is embedded as a shortcut to access the request context.
	context.Context
}
