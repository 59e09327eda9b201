package oidc

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/idpkit/idp/pkg/idp"
)

// Context is the request-scoped view over the configuration plus the http
// exchange. A new one is built per inbound call and discarded with it.
type Context struct {
	Response http.ResponseWriter
	Request  *http.Request
	*Configuration
}

func NewContext(
	w http.ResponseWriter,
	r *http.Request,
	config *Configuration,
) Context {
	return Context{
		Configuration: config,
		Response:      w,
		Request:       r,
	}
}

func Handler(
	config *Configuration,
	exec func(ctx Context),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		exec(NewContext(w, r, config))
	}
}

func (ctx Context) Context() context.Context {
	return ctx.Request.Context()
}

func (ctx Context) HTTPRequest() *http.Request {
	return ctx.Request
}

func (ctx Context) HTTPResponse() http.ResponseWriter {
	return ctx.Response
}

func (ctx Context) Deadline() (deadline time.Time, ok bool) {
	return ctx.Context().Deadline()
}

func (ctx Context) Done() <-chan struct{} {
	return ctx.Context().Done()
}

func (ctx Context) Err() error {
	return ctx.Context().Err()
}

func (ctx Context) Value(key any) any {
	return ctx.Context().Value(key)
}

func (ctx Context) Log() *slog.Logger {
	if ctx.Logger == nil {
		return slog.Default()
	}

	return ctx.Logger
}

// TokenIssuer resolves the issuer the request runs under.
func (ctx Context) TokenIssuer() string {
	return ctx.Issuer
}

func (ctx Context) Server() (*idp.ServerConfiguration, error) {
	server, err := ctx.ServerStore.Get(ctx.Context(), ctx.TokenIssuer())
	if err != nil {
		return nil, idp.Errorf(idp.ErrorCodeInternalError,
			"could not load the server configuration", err)
	}

	return server, nil
}

func (ctx Context) Client(id string) (*idp.ClientConfiguration, error) {
	client, err := ctx.ClientStore.Get(ctx.Context(), ctx.TokenIssuer(), id)
	if err != nil {
		return nil, idp.Errorf(idp.ErrorCodeInvalidClient, "invalid client_id", err)
	}

	return client, nil
}

// ClientCertificate returns the TLS certificate the client presented, if
// any.
func (ctx Context) ClientCertificate() (*x509.Certificate, bool) {
	if ctx.Request.TLS == nil || len(ctx.Request.TLS.PeerCertificates) == 0 {
		return nil, false
	}

	return ctx.Request.TLS.PeerCertificates[0], true
}

func (ctx Context) TransmitEvent(event idp.SecurityEvent) {
	if ctx.EventTransmitter == nil {
		return
	}

	if err := ctx.EventTransmitter.Transmit(ctx.Context(), event); err != nil {
		ctx.Log().Error("could not transmit the security event",
			slog.String("event_type", string(event.Type)),
			slog.String("error", err.Error()))
	}
}

func (ctx Context) Write(obj any, status int) error {
	// A previous response was written before.
	if ctx.Response == nil {
		return nil
	}

	ctx.Response.Header().Set("Content-Type", "application/json")
	ctx.Response.WriteHeader(status)
	return json.NewEncoder(ctx.Response).Encode(obj)
}

// WriteError maps an error to the transport response. Wrapped causes are
// logged, never serialized.
func (ctx Context) WriteError(err error) {
	var idpErr idp.Error
	if !errors.As(err, &idpErr) {
		ctx.Log().Error("unexpected error", slog.String("error", err.Error()))
		idpErr = idp.NewError(idp.ErrorCodeInternalError, "internal error")
	}

	if idpErr.Code == idp.ErrorCodeInternalError {
		ctx.Log().Error("server error", slog.String("error", idpErr.Error()))
		idpErr = idp.NewError(idp.ErrorCodeInternalError, "internal error")
	}

	if err := ctx.Write(idpErr, idpErr.StatusCode()); err != nil {
		ctx.Log().Error("could not write the error response",
			slog.String("error", err.Error()))
	}
}

// HandleAuthorization delegates a verified authorization request to the
// configured interaction layer.
func (ctx Context) HandleAuthorization(request *idp.AuthorizationRequest) error {
	if ctx.HandleAuthorizationFunc == nil {
		return ctx.Write(map[string]any{"request_id": request.ID}, http.StatusOK)
	}

	return ctx.HandleAuthorizationFunc(ctx, request)
}

// CIBAPushPayload resolves the body of a push mode notification.
func (ctx Context) CIBAPushPayload(grant *idp.CibaGrant) (map[string]any, error) {
	if ctx.CIBAPushPayloadFunc == nil {
		return map[string]any{"auth_req_id": grant.AuthReqID}, nil
	}

	return ctx.CIBAPushPayloadFunc(ctx, grant)
}

// WriteHTML renders an html template as the response. Used by the form_post
// response mode.
func (ctx Context) WriteHTML(tmpl string, params any) error {
	if ctx.Response == nil {
		return nil
	}

	parsed, err := template.New("response").Parse(tmpl)
	if err != nil {
		return err
	}

	ctx.Response.Header().Set("Content-Type", "text/html")
	return parsed.Execute(ctx.Response, params)
}

func (ctx Context) Redirect(redirectURL string) {
	http.Redirect(ctx.Response, ctx.Request, redirectURL, http.StatusSeeOther)
}
