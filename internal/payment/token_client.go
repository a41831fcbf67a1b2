// internal/payment/token_client.go
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"terminal-service/internal/model"
)

// TokenClient fetches short-lived connection tokens from the merchant
// backend. The payment SDK refuses to talk to the processor without one.
type TokenClient struct {
	httpClient *http.Client

	mu      sync.RWMutex
	baseURL string
}

// NewTokenClient creates a token client against the given backend base URL
func NewTokenClient(baseURL string, timeout time.Duration) *TokenClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TokenClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// SetBaseURL repoints the client at a different backend. Takes effect for
// the next fetch; in-flight requests keep the URL they started with.
func (c *TokenClient) SetBaseURL(baseURL string) error {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return model.NewFailure(model.FailureBackendUnreachable,
			"invalid backend URL: "+baseURL)
	}
	c.mu.Lock()
	c.baseURL = strings.TrimRight(baseURL, "/")
	c.mu.Unlock()
	return nil
}

// BaseURL returns the currently configured backend base URL
func (c *TokenClient) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

type tokenResponse struct {
	Secret string `json:"secret"`
}

// FetchToken requests a fresh connection token from the backend
func (c *TokenClient) FetchToken(ctx context.Context) (string, error) {
	endpoint := c.BaseURL() + "/connection_token"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", model.WrapFailure(model.FailureBackendUnreachable,
			"invalid token endpoint "+endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", model.WrapFailure(model.FailureBackendUnreachable,
			"backend did not respond at "+endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", model.NewFailure(model.FailureBackendUnreachable,
			fmt.Sprintf("backend returned %d for %s", resp.StatusCode, endpoint))
	}

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", model.WrapFailure(model.FailureBackendUnreachable,
			"backend returned a malformed token response", err)
	}
	if body.Secret == "" {
		return "", model.NewFailure(model.FailureBackendUnreachable,
			"backend returned an empty connection token")
	}
	return body.Secret, nil
}
