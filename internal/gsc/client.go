// Package gsc implements the resilient access layer for the Google Search
// Console API: token lifecycle, response caching, rate limiting, and the
// gateway client that composes them around every upstream call.
package gsc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/searchlens/backend/internal/apierr"
	"github.com/searchlens/backend/internal/ratelimit"
)

const (
	// DefaultBaseURL is the Search Console API root.
	DefaultBaseURL = "https://www.googleapis.com/webmasters/v3"

	// DefaultUpstreamTimeout bounds every Search Console call.
	DefaultUpstreamTimeout = 15 * time.Second

	// DefaultRowLimit is applied when an analytics query does not set one.
	DefaultRowLimit = 100
)

// Operation names accepted by Fetch.
const (
	OpListSites       = "listSites"
	OpSearchAnalytics = "searchAnalytics"
)

// Result is a successful gateway response.
type Result struct {
	Data        json.RawMessage `json:"data"`
	Cached      bool            `json:"cached,omitempty"`
	NotFound    bool            `json:"not_found,omitempty"`
	Suggestions []string        `json:"suggestions,omitempty"`
}

// tokenSource is the credential dependency of the client. Implemented by
// TokenManager.
type tokenSource interface {
	GetValidToken(ctx context.Context, userID string) (string, error)
	ForceRefresh(ctx context.Context, userID string) (string, error)
}

// operationSpec describes one upstream operation.
type operationSpec struct {
	method   string
	required []string
	cacheTTL time.Duration
	path     func(params map[string]string) string
	body     func(params map[string]string) ([]byte, error)
}

// operations is the closed set of upstream calls the gateway issues. Property
// listings are stable and cache for an hour; time-bounded analytics queries
// cache briefly.
var operations = map[string]operationSpec{
	OpListSites: {
		method:   http.MethodGet,
		cacheTTL: time.Hour,
		path: func(map[string]string) string {
			return "/sites"
		},
	},
	OpSearchAnalytics: {
		method:   http.MethodPost,
		required: []string{"siteUrl", "startDate", "endDate"},
		cacheTTL: 10 * time.Minute,
		path: func(params map[string]string) string {
			return "/sites/" + url.PathEscape(params["siteUrl"]) + "/searchAnalytics/query"
		},
		body: func(params map[string]string) ([]byte, error) {
			rowLimit := DefaultRowLimit
			if v := params["rowLimit"]; v != "" {
				if n, err := strconv.Atoi(v); err == nil && n > 0 {
					rowLimit = n
				}
			}

			dimensions := []string{"query"}
			if v := params["dimensions"]; v != "" {
				dimensions = strings.Split(v, ",")
			}

			return json.Marshal(map[string]interface{}{
				"startDate":  params["startDate"],
				"endDate":    params["endDate"],
				"dimensions": dimensions,
				"rowLimit":   rowLimit,
			})
		},
	},
}

// Client is the gateway to the Search Console API. Every fetch runs the same
// sequence: cache lookup, rate limit check, token resolution, upstream call,
// write-through.
type Client struct {
	tokens      tokenSource
	cache       *ResponseCache
	limiter     *ratelimit.Limiter
	baseURL     string
	httpClient  *http.Client
	rateLimit   int
	rateWindowS int
}

// ClientOptions configures a gateway client.
type ClientOptions struct {
	BaseURL    string
	Timeout    time.Duration
	RateLimit  int
	RateWindow time.Duration
}

// NewClient creates a gateway client.
func NewClient(tokens tokenSource, cache *ResponseCache, limiter *ratelimit.Limiter, opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultUpstreamTimeout
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = 30
	}
	if opts.RateWindow == 0 {
		opts.RateWindow = time.Minute
	}

	return &Client{
		tokens:      tokens,
		cache:       cache,
		limiter:     limiter,
		baseURL:     strings.TrimSuffix(opts.BaseURL, "/"),
		httpClient:  &http.Client{Timeout: opts.Timeout},
		rateLimit:   opts.RateLimit,
		rateWindowS: int(opts.RateWindow / time.Second),
	}
}

// RateLimitKey builds the throttle key for (user, operation). The limiter
// appends the window index internally.
func RateLimitKey(userID, operation string) string {
	return fmt.Sprintf("rate_limit:gsc:%s:%s", userID, operation)
}

// Fetch issues operation for userID with params. A cache hit consumes neither
// rate limit nor upstream quota. An upstream 401 triggers one forced token
// refresh and one retry; a second 401 is terminal.
func (c *Client) Fetch(ctx context.Context, userID, operation string, params map[string]string) (*Result, error) {
	spec, ok := operations[operation]
	if !ok {
		return nil, apierr.Validation("unknown_operation", fmt.Sprintf("unknown operation %q", operation))
	}

	if missing := missingParams(spec.required, params); len(missing) > 0 {
		return nil, apierr.Validation("missing_parameters", "Required parameters are missing.").
			WithDetails(map[string]interface{}{"missing": missing})
	}

	cacheKey := CacheKey(userID, operation, params)
	if payload := c.cache.Get(ctx, cacheKey); payload != nil {
		return &Result{Data: payload, Cached: true}, nil
	}

	rl := c.limiter.Check(ctx, RateLimitKey(userID, operation), c.rateLimit, c.rateWindowS)
	if rl.Limited {
		return nil, apierr.RateLimited(rl.Remaining, rl.ResetAt)
	}

	token, err := c.tokens.GetValidToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	// A 401 means the cached token went bad before its declared expiry; force
	// one refresh and retry exactly once. The bound lives in this loop, not in
	// recursion depth.
	for attempt := 0; attempt <= 1; attempt++ {
		status, body, err := c.do(ctx, spec, token, params)
		if err != nil {
			return nil, err
		}

		switch {
		case status == http.StatusUnauthorized:
			if attempt == 1 {
				return nil, apierr.Auth("token_rejected", "Search Console rejected the access token after a refresh.")
			}
			token, err = c.tokens.ForceRefresh(ctx, userID)
			if err != nil {
				return nil, err
			}

		case status == http.StatusForbidden:
			// Valid credentials, wrong grant. Refreshing cannot help.
			return nil, apierr.Permission("access_denied", upstreamReason(body))

		case status == http.StatusNotFound && params["siteUrl"] != "":
			// The property likely exists under the other identifier form
			// (sc-domain: vs URL-prefix). Surface an empty result with the
			// untried alternates instead of an error.
			return &Result{
				Data:        json.RawMessage(`{"rows":[]}`),
				NotFound:    true,
				Suggestions: siteSuggestions(params["siteUrl"]),
			}, nil

		case status >= 200 && status < 300:
			payload := json.RawMessage(body)
			if spec.cacheTTL > 0 {
				c.cache.Set(ctx, cacheKey, payload, spec.cacheTTL)
			}
			return &Result{Data: payload}, nil

		default:
			return nil, apierr.Upstream("upstream_error",
				fmt.Sprintf("Search Console returned status %d", status)).
				WithDetails(map[string]interface{}{"status": status})
		}
	}

	// Unreachable: the loop always returns.
	return nil, apierr.Upstream("upstream_error", "retry loop exhausted")
}

// do issues one upstream HTTP call and returns status and body. Transport
// failures, including timeouts, surface as UpstreamError.
func (c *Client) do(ctx context.Context, spec operationSpec, token string, params map[string]string) (int, []byte, error) {
	var reqBody io.Reader
	if spec.body != nil {
		data, err := spec.body(params)
		if err != nil {
			return 0, nil, apierr.Upstream("request_encoding", fmt.Sprintf("failed to encode request: %v", err))
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, spec.method, c.baseURL+spec.path(params), reqBody)
	if err != nil {
		return 0, nil, apierr.Upstream("request_build", fmt.Sprintf("failed to build request: %v", err))
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, apierr.Upstream("upstream_unreachable", fmt.Sprintf("Search Console request failed: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, apierr.Upstream("upstream_read", fmt.Sprintf("failed to read response: %v", err))
	}

	return resp.StatusCode, body, nil
}

// missingParams returns every required parameter absent from params.
func missingParams(required []string, params map[string]string) []string {
	var missing []string
	for _, name := range required {
		if params[name] == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// upstreamReason extracts the human-readable message from a Google error
// body, falling back to a generic reason.
func upstreamReason(body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return "Access to this Search Console property is denied."
}

// siteSuggestions returns the untried identifier forms for a site. Search
// Console addresses a property either as a verified domain (sc-domain:) or a
// URL-prefix; a 404 often means the caller used the wrong one.
func siteSuggestions(site string) []string {
	if strings.HasPrefix(site, "sc-domain:") {
		domain := strings.TrimPrefix(site, "sc-domain:")
		return []string{"https://" + domain + "/"}
	}

	host := site
	if u, err := url.Parse(site); err == nil && u.Host != "" {
		host = u.Host
	}
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimSuffix(host, "/")

	return []string{"sc-domain:" + host}
}
