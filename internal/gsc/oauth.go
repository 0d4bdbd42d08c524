package gsc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultTokenURL is Google's OAuth token endpoint.
	DefaultTokenURL = "https://oauth2.googleapis.com/token"

	// DefaultOAuthTimeout bounds token endpoint calls.
	DefaultOAuthTimeout = 10 * time.Second
)

// TokenResponse is the token endpoint response. RefreshToken is present on
// the authorization_code grant and usually absent on refresh_token grants.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
}

// OAuthClient exchanges credentials with the OAuth token endpoint.
type OAuthClient struct {
	clientID     string
	clientSecret string
	redirectURL  string
	tokenURL     string
	httpClient   *http.Client
}

// NewOAuthClient creates an OAuth token endpoint client.
func NewOAuthClient(clientID, clientSecret, redirectURL, tokenURL string) *OAuthClient {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}

	return &OAuthClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURL:  redirectURL,
		tokenURL:     tokenURL,
		httpClient: &http.Client{
			Timeout: DefaultOAuthTimeout,
		},
	}
}

// ExchangeRefreshToken trades a long-lived refresh token for a fresh access
// token.
func (c *OAuthClient) ExchangeRefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("client_id", c.clientID)
	data.Set("client_secret", c.clientSecret)
	data.Set("refresh_token", refreshToken)

	return c.exchange(ctx, data)
}

// ExchangeAuthCode trades an authorization code for access and refresh tokens.
func (c *OAuthClient) ExchangeAuthCode(ctx context.Context, code string) (*TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("client_id", c.clientID)
	data.Set("client_secret", c.clientSecret)
	data.Set("redirect_uri", c.redirectURL)
	data.Set("code", code)

	return c.exchange(ctx, data)
}

func (c *OAuthClient) exchange(ctx context.Context, data url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ExchangeError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, &ExchangeError{StatusCode: resp.StatusCode, Body: "token endpoint returned no access_token"}
	}

	return &tokenResp, nil
}

// ExchangeError is a non-success HTTP status from the token endpoint.
type ExchangeError struct {
	StatusCode int
	Body       string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed with status %d: %s", e.StatusCode, e.Body)
}
