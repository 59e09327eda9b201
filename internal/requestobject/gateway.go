// Package requestobject dereferences request_uri references into the raw
// signed request objects they point at.
package requestobject

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// maxObjectSize caps the response body read from a request_uri.
const maxObjectSize = 64 * 1024

// HTTPGateway fetches request objects over plain http. The caller is
// responsible for only dereferencing URIs the client registered.
type HTTPGateway struct {
	Client *http.Client
}

func NewHTTPGateway() *HTTPGateway {
	return &HTTPGateway{Client: http.DefaultClient}
}

func (g *HTTPGateway) Fetch(ctx context.Context, requestURI string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURI, nil)
	if err != nil {
		return "", err
	}

	resp, err := g.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching the request object resulted in status %d", resp.StatusCode)
	}

	object, err := io.ReadAll(io.LimitReader(resp.Body, maxObjectSize))
	if err != nil {
		return "", err
	}

	return string(object), nil
}
