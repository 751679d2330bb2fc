package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// IntrospectionResult is the subset of the RFC 7662 response the gateway
// consumes. Permission claims in the response, if any, are ignored: the
// permission set always comes from the local store.
type IntrospectionResult struct {
	Active   bool   `json:"active"`
	Username string `json:"username"`
}

// IntrospectionClient validates opaque bearer tokens against the identity
// provider's introspection endpoint.
type IntrospectionClient struct {
	endpoint     string
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

func NewIntrospectionClient(endpoint, clientID, clientSecret string, timeout time.Duration) *IntrospectionClient {
	return &IntrospectionClient{
		endpoint:     endpoint,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// Introspect posts the token to the provider. A transport failure or timeout
// is ErrProviderUnavailable; a non-200 response or inactive result is
// ErrInvalidToken.
func (c *IntrospectionClient) Introspect(ctx context.Context, token string) (*IntrospectionResult, error) {
	form := url.Values{
		"token":         {token},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build introspection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: introspection returned %d", ErrInvalidToken, resp.StatusCode)
	}

	var result IntrospectionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decode introspection response: %v", ErrProviderUnavailable, err)
	}
	if !result.Active {
		return nil, ErrInvalidToken
	}

	return &result, nil
}
