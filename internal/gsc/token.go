package gsc

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/searchlens/backend/internal/apierr"
)

// CredentialStore persists the long-lived OAuth credential state per user.
// Implemented by repository.UserRepository.
type CredentialStore interface {
	GetRefreshToken(ctx context.Context, userID string) (string, error)
	SetConnected(ctx context.Context, userID string, connected bool) error
}

// TokenManager orchestrates the refresh-token to access-token exchange and
// keeps the token cache populated. Two concurrent refreshes for the same user
// may both hit the token endpoint; both produce valid tokens and the last
// cache write wins.
type TokenManager struct {
	creds  CredentialStore
	tokens *TokenCache
	oauth  *OAuthClient
}

// NewTokenManager creates a token manager.
func NewTokenManager(creds CredentialStore, tokens *TokenCache, oauth *OAuthClient) *TokenManager {
	return &TokenManager{
		creds:  creds,
		tokens: tokens,
		oauth:  oauth,
	}
}

// GetValidToken returns an access token for the user, refreshing if the cache
// has no usable entry. The cache's own expiry is trusted: a hit is returned
// without touching the token endpoint.
func (m *TokenManager) GetValidToken(ctx context.Context, userID string) (string, error) {
	token, err := m.tokens.Get(ctx, userID)
	if err != nil {
		// Cache trouble is not fatal; fall through to a refresh.
		log.Printf("[gsc] token cache read failed for user %s: %v", userID, err)
	}
	if token != "" {
		return token, nil
	}

	return m.refresh(ctx, userID)
}

// ForceRefresh evicts any cached token and performs a fresh exchange. Used
// after the upstream rejects a token with 401.
func (m *TokenManager) ForceRefresh(ctx context.Context, userID string) (string, error) {
	if err := m.tokens.Evict(ctx, userID); err != nil {
		log.Printf("[gsc] token cache evict failed for user %s: %v", userID, err)
	}

	return m.refresh(ctx, userID)
}

func (m *TokenManager) refresh(ctx context.Context, userID string) (string, error) {
	refreshToken, err := m.creds.GetRefreshToken(ctx, userID)
	if err != nil {
		return "", apierr.Auth("not_connected", "Search Console is not connected for this account.")
	}
	if refreshToken == "" {
		// Self-heal a dirty connected flag with no stored credential.
		if err := m.creds.SetConnected(ctx, userID, false); err != nil {
			log.Printf("[gsc] failed to clear connection flag for user %s: %v", userID, err)
		}
		return "", apierr.Auth("not_connected", "Search Console is not connected for this account.")
	}

	resp, err := m.oauth.ExchangeRefreshToken(ctx, refreshToken)
	if err != nil {
		var exchangeErr *ExchangeError
		if errors.As(err, &exchangeErr) {
			// The grant is dead. Demote the user so callers stop retrying a
			// credential that can never work again.
			if dcErr := m.creds.SetConnected(ctx, userID, false); dcErr != nil {
				log.Printf("[gsc] failed to disconnect user %s: %v", userID, dcErr)
			}
			log.Printf("[gsc] refresh failed for user %s (status %d), marked disconnected", userID, exchangeErr.StatusCode)
			return "", apierr.Auth("refresh_failed", "Failed to refresh Search Console access. Please reconnect your account.")
		}
		// Network-level failure; the credential may still be fine.
		return "", apierr.Upstream("oauth_unreachable", fmt.Sprintf("token endpoint unreachable: %v", err))
	}

	expiresIn := time.Duration(resp.ExpiresIn) * time.Second
	if err := m.tokens.Set(ctx, userID, resp.AccessToken, expiresIn); err != nil {
		// The token is still valid for this request even if caching failed.
		log.Printf("[gsc] token cache write failed for user %s: %v", userID, err)
	}
	if err := m.creds.SetConnected(ctx, userID, true); err != nil {
		log.Printf("[gsc] failed to set connection flag for user %s: %v", userID, err)
	}

	return resp.AccessToken, nil
}
