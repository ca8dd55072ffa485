package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/leonardodevbr/siscondi-sub000/internal/apierror"
	"github.com/leonardodevbr/siscondi-sub000/internal/infra"
)

// providerClient is the shared HTTP plumbing for remote providers. Every call
// runs through the circuit breaker so a downed provider fast-fails instead of
// stalling checkout.
type providerClient struct {
	name       string
	baseURL    string
	token      string
	httpClient *http.Client
	cb         *infra.CircuitBreaker
}

func newProviderClient(name, baseURL, token string, cb *infra.CircuitBreaker) *providerClient {
	return &providerClient{
		name:       name,
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		cb:         cb,
	}
}

// postJSON sends a POST and decodes the JSON response into out.
// Transport and non-2xx failures come back as *apierror.GatewayError.
func (c *providerClient) postJSON(ctx context.Context, path string, in, out interface{}) error {
	call := func() error {
		body, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("provider unreachable: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("provider returned %d", resp.StatusCode)
		}
		if out == nil {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}

	if err := c.cb.Execute(call); err != nil {
		return &apierror.GatewayError{Gateway: c.name, Err: err}
	}
	return nil
}
