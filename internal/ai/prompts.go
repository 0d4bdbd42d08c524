package ai

import (
	"bytes"
	"text/template"

	"github.com/searchlens/backend/internal/models"
)

// InsightPrompt is the template for search performance insight generation.
// Only actual Search Console rows go into the prompt; the model is never
// asked to invent metrics.
const InsightPrompt = `Analyze this Google Search Console performance data for {{.SiteURL}} covering {{.Period}}.

Totals: {{.TotalClicks}} clicks, {{.TotalImpressions}} impressions across {{.RowCount}} queries.

Top queries (clicks, impressions, CTR, avg position):
{{range .Rows}}
- "{{index .Keys 0}}": {{.Clicks}} clicks, {{.Impressions}} impressions, {{printf "%.4f" .CTR}} CTR, position {{printf "%.1f" .Position}}
{{end}}

Respond with ONLY valid JSON:
{
  "summary": "<2-3 sentence overview of search performance>",
  "key_findings": ["...", "..."],
  "recommendations": ["...", "..."],
  "opportunities": ["<queries with high impressions but low CTR or poor position>", "..."]
}`

type insightPromptData struct {
	SiteURL          string
	Period           string
	TotalClicks      int
	TotalImpressions int
	RowCount         int
	Rows             []models.SearchAnalyticsRow
}

var insightTemplate = template.Must(template.New("insight").Parse(InsightPrompt))

// MaxPromptRows bounds the prompt size regardless of the upstream row limit.
const MaxPromptRows = 25

// RenderInsightPrompt renders the insight prompt from actual analytics rows.
func RenderInsightPrompt(siteURL, period string, rows []models.SearchAnalyticsRow) (string, error) {
	// Rows without keys cannot be labeled in the prompt.
	kept := make([]models.SearchAnalyticsRow, 0, len(rows))
	for _, row := range rows {
		if len(row.Keys) > 0 {
			kept = append(kept, row)
		}
	}
	rows = kept

	if len(rows) > MaxPromptRows {
		rows = rows[:MaxPromptRows]
	}

	var totalClicks, totalImpressions int
	for _, row := range rows {
		totalClicks += int(row.Clicks)
		totalImpressions += int(row.Impressions)
	}

	data := insightPromptData{
		SiteURL:          siteURL,
		Period:           period,
		TotalClicks:      totalClicks,
		TotalImpressions: totalImpressions,
		RowCount:         len(rows),
		Rows:             rows,
	}

	var buf bytes.Buffer
	if err := insightTemplate.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}
