package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/searchlens/backend/internal/apierr"
	"github.com/searchlens/backend/internal/api/response"
	"github.com/searchlens/backend/internal/auth"
	"github.com/searchlens/backend/internal/cache"
	"github.com/searchlens/backend/internal/gsc"
	"github.com/searchlens/backend/internal/repository"
)

const (
	oauthStateTTL = 10 * time.Minute

	// Read-only scope for Search Console data.
	gscScope = "https://www.googleapis.com/auth/webmasters.readonly"
)

// GSCHandler handles Search Console endpoints: the OAuth connection
// lifecycle and the proxied data operations.
type GSCHandler struct {
	client      *gsc.Client
	oauth       *gsc.OAuthClient
	oauthConfig *oauth2.Config
	tokens      *gsc.TokenCache
	userRepo    *repository.UserRepository
	store       cache.Store
}

// NewGSCHandler creates a new Search Console handler
func NewGSCHandler(
	client *gsc.Client,
	oauth *gsc.OAuthClient,
	oauthConfig *oauth2.Config,
	tokens *gsc.TokenCache,
	userRepo *repository.UserRepository,
	store cache.Store,
) *GSCHandler {
	return &GSCHandler{
		client:      client,
		oauth:       oauth,
		oauthConfig: oauthConfig,
		tokens:      tokens,
		userRepo:    userRepo,
		store:       store,
	}
}

// AnalyticsRequest represents a search analytics query
type AnalyticsRequest struct {
	SiteURL    string   `json:"siteUrl"`
	StartDate  string   `json:"startDate"`
	EndDate    string   `json:"endDate"`
	Dimensions []string `json:"dimensions,omitempty"`
	RowLimit   int      `json:"rowLimit,omitempty"`
}

// ListSites handles GET /api/v1/gsc/sites
func (h *GSCHandler) ListSites(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.GetUser(r.Context())
	if !ok {
		response.Error(w, apierr.Auth("unauthorized", "authentication required"))
		return
	}

	result, err := h.client.Fetch(r.Context(), user.ID, gsc.OpListSites, nil)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.Upstream(w, result.Data, result.Cached, result.NotFound, result.Suggestions)
}

// SearchAnalytics handles POST /api/v1/gsc/analytics
func (h *GSCHandler) SearchAnalytics(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.GetUser(r.Context())
	if !ok {
		response.Error(w, apierr.Auth("unauthorized", "authentication required"))
		return
	}

	var req AnalyticsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierr.Validation("invalid_request", "invalid request body"))
		return
	}

	params := map[string]string{
		"siteUrl":   req.SiteURL,
		"startDate": req.StartDate,
		"endDate":   req.EndDate,
	}
	if len(req.Dimensions) > 0 {
		params["dimensions"] = strings.Join(req.Dimensions, ",")
	}
	if req.RowLimit > 0 {
		params["rowLimit"] = fmt.Sprintf("%d", req.RowLimit)
	}

	result, err := h.client.Fetch(r.Context(), user.ID, gsc.OpSearchAnalytics, params)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.Upstream(w, result.Data, result.Cached, result.NotFound, result.Suggestions)
}

// Connect handles GET /api/v1/gsc/connect. It returns the Google consent
// URL; the state token pins the eventual callback to this user.
func (h *GSCHandler) Connect(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.GetUser(r.Context())
	if !ok {
		response.Error(w, apierr.Auth("unauthorized", "authentication required"))
		return
	}

	state := uuid.NewString()
	if err := h.store.Set(r.Context(), stateKey(state), user.ID, oauthStateTTL); err != nil {
		log.Printf("[gsc] store oauth state: %v", err)
		response.Error(w, apierr.Upstream("state_store_failed", "could not start the connection flow"))
		return
	}

	// offline access is required to receive a refresh token; approval must be
	// forced or Google omits it on re-consent.
	authURL := h.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	response.Success(w, map[string]string{
		"auth_url": authURL,
		"state":    state,
	})
}

// Callback handles GET /api/v1/gsc/callback
func (h *GSCHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		response.Error(w, apierr.Validation("invalid_callback", "code and state are required"))
		return
	}

	userID, err := h.store.Get(r.Context(), stateKey(state))
	if err != nil {
		response.Error(w, apierr.Auth("invalid_state", "unknown or expired state token"))
		return
	}
	// One-shot: a replayed state must not work.
	if err := h.store.Delete(r.Context(), stateKey(state)); err != nil {
		log.Printf("[gsc] delete oauth state: %v", err)
	}

	token, err := h.oauth.ExchangeAuthCode(r.Context(), code)
	if err != nil {
		log.Printf("[gsc] auth code exchange failed for %s: %v", userID, err)
		response.Error(w, apierr.Auth("exchange_failed", "could not exchange the authorization code"))
		return
	}
	if token.RefreshToken == "" {
		response.Error(w, apierr.Auth("no_refresh_token", "Google did not return a refresh token; revoke access and try again"))
		return
	}

	if err := h.userRepo.SetRefreshToken(r.Context(), userID, token.RefreshToken); err != nil {
		log.Printf("[gsc] persist refresh token for %s: %v", userID, err)
		response.Error(w, err)
		return
	}

	// Prime the token cache with the access token from the exchange.
	if token.AccessToken != "" {
		h.tokens.Set(r.Context(), userID, token.AccessToken, time.Duration(token.ExpiresIn)*time.Second)
	}

	response.Success(w, map[string]interface{}{
		"connected": true,
	})
}

// Disconnect handles DELETE /api/v1/gsc/disconnect
func (h *GSCHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.GetUser(r.Context())
	if !ok {
		response.Error(w, apierr.Auth("unauthorized", "authentication required"))
		return
	}

	if err := h.userRepo.SetConnected(r.Context(), user.ID, false); err != nil {
		log.Printf("[gsc] disconnect %s: %v", user.ID, err)
		response.Error(w, err)
		return
	}
	h.tokens.Evict(r.Context(), user.ID)

	response.Success(w, map[string]interface{}{
		"connected": false,
	})
}

func stateKey(state string) string {
	return "gsc:oauth_state:" + state
}
