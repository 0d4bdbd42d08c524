package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/searchlens/backend/internal/apierr"
	"github.com/searchlens/backend/internal/api/request"
	"github.com/searchlens/backend/internal/api/response"
	"github.com/searchlens/backend/internal/auth"
	"github.com/searchlens/backend/internal/gsc"
	"github.com/searchlens/backend/internal/models"
	"github.com/searchlens/backend/internal/repository"
	"github.com/searchlens/backend/internal/service"
)

const defaultInsightListLimit = 30

// InsightsHandler handles AI insight endpoints
type InsightsHandler struct {
	gateway     *gsc.Client
	insights    *service.InsightService
	insightRepo *repository.InsightRepository
}

// NewInsightsHandler creates a new insights handler
func NewInsightsHandler(
	gateway *gsc.Client,
	insights *service.InsightService,
	insightRepo *repository.InsightRepository,
) *InsightsHandler {
	return &InsightsHandler{
		gateway:     gateway,
		insights:    insights,
		insightRepo: insightRepo,
	}
}

// GenerateRequest represents an insight generation request
type GenerateRequest struct {
	SiteURL      string `json:"siteUrl"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	ForceRefresh bool   `json:"forceRefresh,omitempty"`
}

// Generate handles POST /api/v1/insights/generate. It pulls the period's
// analytics through the gateway, then produces (or returns the day's
// existing) insight document.
func (h *InsightsHandler) Generate(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.GetUser(r.Context())
	if !ok {
		response.Error(w, apierr.Auth("unauthorized", "authentication required"))
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierr.Validation("invalid_request", "invalid request body"))
		return
	}

	result, err := h.gateway.Fetch(r.Context(), user.ID, gsc.OpSearchAnalytics, map[string]string{
		"siteUrl":   req.SiteURL,
		"startDate": req.StartDate,
		"endDate":   req.EndDate,
	})
	if err != nil {
		response.Error(w, err)
		return
	}

	rows, err := analyticsRows(result.Data)
	if err != nil {
		response.Error(w, apierr.Upstream("malformed_analytics", "Search Console returned an unreadable analytics payload"))
		return
	}

	period := fmt.Sprintf("%s to %s", req.StartDate, req.EndDate)
	doc, err := h.insights.Generate(r.Context(), user.ID, req.SiteURL, period, rows, req.ForceRefresh)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.Success(w, doc)
}

// List handles GET /api/v1/insights?siteUrl=...&limit=...
func (h *InsightsHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.GetUser(r.Context())
	if !ok {
		response.Error(w, apierr.Auth("unauthorized", "authentication required"))
		return
	}

	siteURL := r.URL.Query().Get("siteUrl")
	if siteURL == "" {
		response.Error(w, apierr.Validation("missing_parameters", "siteUrl is required").
			WithDetails(map[string]interface{}{"missing": []string{"siteUrl"}}))
		return
	}

	limit := request.GetQueryIntWithRange(r, "limit", defaultInsightListLimit, 1, 100)

	insights, err := h.insightRepo.ListBySite(r.Context(), user.ID, siteURL, limit)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.Success(w, map[string]interface{}{
		"insights": insights,
	})
}

// Get handles GET /api/v1/insights/today?siteUrl=...&date=...
func (h *InsightsHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.GetUser(r.Context())
	if !ok {
		response.Error(w, apierr.Auth("unauthorized", "authentication required"))
		return
	}

	siteURL := r.URL.Query().Get("siteUrl")
	if siteURL == "" {
		response.Error(w, apierr.Validation("missing_parameters", "siteUrl is required").
			WithDetails(map[string]interface{}{"missing": []string{"siteUrl"}}))
		return
	}

	date := request.GetQueryString(r, "date", time.Now().UTC().Format("2006-01-02"))

	doc, err := h.insights.GetStored(r.Context(), user.ID, siteURL, date)
	if err != nil {
		if err == repository.ErrInsightNotFound {
			response.Error(w, apierr.Validation("insight_not_found", "no insight exists for this site and date"))
			return
		}
		response.Error(w, err)
		return
	}

	response.Success(w, doc)
}

// analyticsRows decodes the gateway payload into typed analytics rows. An
// absent rows field decodes to an empty slice.
func analyticsRows(payload json.RawMessage) ([]models.SearchAnalyticsRow, error) {
	var parsed struct {
		Rows []models.SearchAnalyticsRow `json:"rows"`
	}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, err
	}
	return parsed.Rows, nil
}
