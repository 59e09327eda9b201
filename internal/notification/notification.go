// Package notification delivers CIBA ping and push callbacks to client
// notification endpoints. Delivery retries with exponential backoff before
// giving up.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	defaultMaxTries        = 3
	defaultInitialInterval = 500 * time.Millisecond
)

// Gateway posts notification bodies as json with the client provided bearer
// token.
type Gateway struct {
	HTTPClient *http.Client
	MaxTries   uint
	Logger     *slog.Logger
}

func NewGateway() *Gateway {
	return &Gateway{
		HTTPClient: http.DefaultClient,
		MaxTries:   defaultMaxTries,
	}
}

func (g *Gateway) Notify(ctx context.Context, endpoint, bearerToken string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = defaultInitialInterval

	operation := func() (struct{}, error) {
		return struct{}{}, g.post(ctx, endpoint, bearerToken, payload)
	}

	_, err = backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(g.MaxTries),
		backoff.WithNotify(func(err error, duration time.Duration) {
			g.log().Warn("client notification failed, retrying",
				slog.String("endpoint", endpoint),
				slog.Duration("after", duration),
				slog.String("error", err.Error()))
		}),
	)
	return err
}

func (g *Gateway) post(ctx context.Context, endpoint, bearerToken string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearerToken)

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// 4xx responses will not get better on retry.
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return backoff.Permanent(fmt.Errorf("notification rejected with status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("notification failed with status %d", resp.StatusCode)
	}
	return nil
}

func (g *Gateway) log() *slog.Logger {
	if g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}
