// Package service holds the application services composing the gateway core.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/searchlens/backend/internal/ai"
	"github.com/searchlens/backend/internal/credits"
	"github.com/searchlens/backend/internal/models"
)

// FallbackMarker opens the summary of every fallback document so consumers
// and tests can recognize one.
const FallbackMarker = "[automated fallback]"

// InsightCost is the credit price of one generation.
const InsightCost = 1

// InsightStore persists generated documents. Implemented by
// repository.InsightRepository.
type InsightStore interface {
	Get(ctx context.Context, userID, siteURL, date, insightType string) (*models.Insight, error)
	Upsert(ctx context.Context, insight *models.Insight) error
}

// Charger gates paid operations. Implemented by credits.Ledger.
type Charger interface {
	Charge(ctx context.Context, userID string, amount int, purpose string) (*credits.ChargeResult, error)
}

// chatClient is the AI dependency. Implemented by ai.Client.
type chatClient interface {
	Chat(ctx context.Context, req *ai.ChatRequest) (*ai.ChatResponse, error)
}

// RawData is the section of an insight document sourced only from actual
// upstream rows. It is never model-generated.
type RawData struct {
	SiteURL          string                      `json:"site_url"`
	Period           string                      `json:"period"`
	TotalClicks      int                         `json:"total_clicks"`
	TotalImpressions int                         `json:"total_impressions"`
	Rows             []models.SearchAnalyticsRow `json:"rows"`
}

// InsightDocument is the schema returned for every generation, AI-produced or
// fallback.
type InsightDocument struct {
	Summary     string      `json:"summary"`
	RawData     RawData     `json:"raw_data"`
	AIAnalysis  ai.Analysis `json:"ai_analysis"`
	GeneratedAt string      `json:"generated_at"`
	Fallback    bool        `json:"fallback"`
}

// InsightService generates at most one insight document per user, site, and
// UTC day, charging a credit per fresh generation.
type InsightService struct {
	store   InsightStore
	charger Charger
	chat    chatClient
	model   string
	now     func() time.Time
}

// NewInsightService creates an insight service.
func NewInsightService(store InsightStore, charger Charger, chat chatClient, model string) *InsightService {
	if model == "" {
		model = ai.DefaultModel
	}

	return &InsightService{
		store:   store,
		charger: charger,
		chat:    chat,
		model:   model,
		now:     time.Now,
	}
}

// Generate returns the insight document for (user, site, today). Unless
// forceRefresh is set, a same-day repeat returns the stored document verbatim
// without charging credits or calling the AI provider.
func (s *InsightService) Generate(ctx context.Context, userID, siteURL, period string, rows []models.SearchAnalyticsRow, forceRefresh bool) (*InsightDocument, error) {
	today := s.now().UTC().Format("2006-01-02")

	if !forceRefresh {
		existing, err := s.store.Get(ctx, userID, siteURL, today, models.InsightTypeOverall)
		if err == nil && existing != nil {
			var doc InsightDocument
			if jsonErr := json.Unmarshal([]byte(existing.Content), &doc); jsonErr == nil {
				return &doc, nil
			}
			// Unreadable stored content; regenerate below.
			log.Printf("[insights] stored insight for user %s site %s is unreadable, regenerating", userID, siteURL)
		}
	}

	// The charge happens before the AI call; a failed AI call still produces
	// a (fallback) document, so the user gets what they paid for.
	if _, err := s.charger.Charge(ctx, userID, InsightCost, "insight_generation"); err != nil {
		return nil, err
	}

	raw := buildRawData(siteURL, period, rows)
	doc := &InsightDocument{
		RawData:     raw,
		GeneratedAt: s.now().UTC().Format(time.RFC3339),
	}

	analysis, err := s.analyze(ctx, raw)
	if err != nil {
		log.Printf("[insights] AI analysis failed for user %s site %s, using fallback: %v", userID, siteURL, err)
		analysis = fallbackAnalysis(raw)
		doc.Fallback = true
	}
	doc.AIAnalysis = *analysis
	doc.Summary = analysis.Summary

	content, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize insight: %w", err)
	}

	record := &models.Insight{
		UserID:  userID,
		SiteURL: siteURL,
		Date:    today,
		Type:    models.InsightTypeOverall,
		Content: string(content),
	}
	if err := s.store.Upsert(ctx, record); err != nil {
		// The credit is already spent; retrying the persist could double the
		// next charge path. Return the document and log the gap.
		log.Printf("[insights] ALERT: insight generated but persist failed for user %s site %s: %v", userID, siteURL, err)
	}

	return doc, nil
}

// GetStored returns the persisted document for (user, site, date), if any.
func (s *InsightService) GetStored(ctx context.Context, userID, siteURL, date string) (*InsightDocument, error) {
	record, err := s.store.Get(ctx, userID, siteURL, date, models.InsightTypeOverall)
	if err != nil {
		return nil, err
	}

	var doc InsightDocument
	if err := json.Unmarshal([]byte(record.Content), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode stored insight: %w", err)
	}

	return &doc, nil
}

// analyze calls the AI provider and validates its response.
func (s *InsightService) analyze(ctx context.Context, raw RawData) (*ai.Analysis, error) {
	prompt, err := ai.RenderInsightPrompt(raw.SiteURL, raw.Period, raw.Rows)
	if err != nil {
		return nil, fmt.Errorf("failed to render prompt: %w", err)
	}

	resp, err := s.chat.Chat(ctx, &ai.ChatRequest{
		Model:       s.model,
		Temperature: 0.4,
		MaxTokens:   1024,
		Messages: []ai.ChatMessage{
			{
				Role:    "system",
				Content: "You are an SEO analyst. Analyze Google Search Console data and respond ONLY with valid JSON. No markdown, no explanations.",
			},
			{
				Role:    "user",
				Content: prompt,
			},
		},
	})
	if err != nil {
		return nil, err
	}

	return ai.ParseAnalysis(resp.GetMessageContent())
}

// buildRawData aggregates the actual upstream rows.
func buildRawData(siteURL, period string, rows []models.SearchAnalyticsRow) RawData {
	if rows == nil {
		rows = []models.SearchAnalyticsRow{}
	}

	var clicks, impressions int
	for _, row := range rows {
		clicks += int(row.Clicks)
		impressions += int(row.Impressions)
	}

	return RawData{
		SiteURL:          siteURL,
		Period:           period,
		TotalClicks:      clicks,
		TotalImpressions: impressions,
		Rows:             rows,
	}
}

// fallbackAnalysis synthesizes a deterministic, clearly-labeled document from
// the raw rows when the AI provider is unavailable or returns garbage.
func fallbackAnalysis(raw RawData) *ai.Analysis {
	summary := fmt.Sprintf("%s AI analysis is temporarily unavailable. Over %s, %s received %d clicks and %d impressions across %d queries.",
		FallbackMarker, raw.Period, raw.SiteURL, raw.TotalClicks, raw.TotalImpressions, len(raw.Rows))

	findings := []string{}
	if top := topQuery(raw.Rows); top != "" {
		findings = append(findings, fmt.Sprintf("Top performing query by clicks: %q.", top))
	}
	if raw.TotalImpressions > 0 {
		ctr := float64(raw.TotalClicks) / float64(raw.TotalImpressions)
		findings = append(findings, fmt.Sprintf("Overall click-through rate: %.2f%%.", ctr*100))
	}

	return &ai.Analysis{
		Summary:     summary,
		KeyFindings: findings,
		Recommendations: []string{
			"Retry insight generation later for a full AI analysis.",
			"Review queries with high impressions but low clicks for title and description improvements.",
		},
		Opportunities: []string{},
	}
}

// topQuery returns the first key of the row with the most clicks.
func topQuery(rows []models.SearchAnalyticsRow) string {
	best := ""
	bestClicks := -1.0
	for _, row := range rows {
		if len(row.Keys) > 0 && row.Clicks > bestClicks {
			best = row.Keys[0]
			bestClicks = row.Clicks
		}
	}
	return best
}
