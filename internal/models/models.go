package models

import (
	"time"
)

// Insight type constants
const (
	InsightTypeOverall = "overall"
)

// Insight represents a generated insight document for a user, site, and day.
// At most one row exists per (user, site, date, type); a later generation for
// the same key supersedes the earlier one.
type Insight struct {
	ID        int64     `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	SiteURL   string    `json:"site_url" db:"site_url"`
	Date      string    `json:"date" db:"date"` // UTC calendar date, YYYY-MM-DD
	Type      string    `json:"type" db:"type"`
	Content   string    `json:"content" db:"content"` // serialized insight document
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CreditLog is an immutable ledger row appended whenever a paid operation
// completes. The running user balance equals the initial grant minus the sum
// of debits recorded here.
type CreditLog struct {
	ID        int64     `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Amount    int       `json:"amount" db:"amount"`
	Purpose   string    `json:"purpose" db:"purpose"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// SearchAnalyticsRow is one row of a Search Console analytics response.
type SearchAnalyticsRow struct {
	Keys        []string `json:"keys"`
	Clicks      float64  `json:"clicks"`
	Impressions float64  `json:"impressions"`
	CTR         float64  `json:"ctr"`
	Position    float64  `json:"position"`
}
