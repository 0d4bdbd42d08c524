package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/searchlens/backend/internal/database"
	"github.com/searchlens/backend/internal/models"
)

// ErrInsightNotFound is returned when no insight exists for a key
var ErrInsightNotFound = errors.New("insight not found")

// InsightRepository handles insight database operations
type InsightRepository struct {
	db *database.DB
}

// NewInsightRepository creates a new insight repository
func NewInsightRepository(db *database.DB) *InsightRepository {
	return &InsightRepository{db: db}
}

// Get retrieves the insight for (user, site, date, type).
func (r *InsightRepository) Get(ctx context.Context, userID, siteURL, date, insightType string) (*models.Insight, error) {
	query := `
		SELECT id, user_id, site_url, date, type, content, created_at
		FROM insights
		WHERE user_id = $1 AND site_url = $2 AND date = $3 AND type = $4
	`
	var insight models.Insight
	err := r.db.QueryRow(ctx, query, userID, siteURL, date, insightType).Scan(
		&insight.ID, &insight.UserID, &insight.SiteURL, &insight.Date,
		&insight.Type, &insight.Content, &insight.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInsightNotFound
		}
		return nil, fmt.Errorf("failed to get insight: %w", err)
	}

	return &insight, nil
}

// Upsert stores an insight with last-writer-wins semantics on
// (user_id, site_url, date, type).
func (r *InsightRepository) Upsert(ctx context.Context, insight *models.Insight) error {
	if insight.CreatedAt.IsZero() {
		insight.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO insights (user_id, site_url, date, type, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, site_url, date, type)
		DO UPDATE SET content = EXCLUDED.content, created_at = EXCLUDED.created_at
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query,
		insight.UserID, insight.SiteURL, insight.Date, insight.Type,
		insight.Content, insight.CreatedAt).Scan(&insight.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert insight: %w", err)
	}

	return nil
}

// ListBySite returns recent insights for a user and site, newest first.
func (r *InsightRepository) ListBySite(ctx context.Context, userID, siteURL string, limit int) ([]models.Insight, error) {
	query := `
		SELECT id, user_id, site_url, date, type, content, created_at
		FROM insights
		WHERE user_id = $1 AND site_url = $2
		ORDER BY date DESC, created_at DESC
		LIMIT $3
	`
	rows, err := r.db.Query(ctx, query, userID, siteURL, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list insights: %w", err)
	}
	defer rows.Close()

	insights := make([]models.Insight, 0, limit)
	for rows.Next() {
		var insight models.Insight
		if err := rows.Scan(&insight.ID, &insight.UserID, &insight.SiteURL, &insight.Date,
			&insight.Type, &insight.Content, &insight.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan insight: %w", err)
		}
		insights = append(insights, insight)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read insights: %w", err)
	}

	return insights, nil
}
