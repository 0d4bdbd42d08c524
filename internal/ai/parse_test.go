package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchlens/backend/internal/models"
)

func TestParseAnalysisPlainJSON(t *testing.T) {
	got, err := ParseAnalysis(`{
		"summary": "Traffic is stable.",
		"key_findings": ["One finding"],
		"recommendations": ["One recommendation"],
		"opportunities": ["One opportunity"]
	}`)
	require.NoError(t, err)

	assert.Equal(t, "Traffic is stable.", got.Summary)
	assert.Equal(t, []string{"One finding"}, got.KeyFindings)
}

func TestParseAnalysisStripsCodeFence(t *testing.T) {
	got, err := ParseAnalysis("```json\n{\"summary\":\"Fenced.\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "Fenced.", got.Summary)
}

func TestParseAnalysisExtractsEmbeddedJSON(t *testing.T) {
	got, err := ParseAnalysis(`Here is the analysis you asked for: {"summary":"Embedded."} Hope it helps!`)
	require.NoError(t, err)
	assert.Equal(t, "Embedded.", got.Summary)
}

func TestParseAnalysisFillsMissingLists(t *testing.T) {
	got, err := ParseAnalysis(`{"summary":"Only a summary."}`)
	require.NoError(t, err)

	assert.NotNil(t, got.KeyFindings)
	assert.NotNil(t, got.Recommendations)
	assert.NotNil(t, got.Opportunities)
	assert.Empty(t, got.KeyFindings)
}

func TestParseAnalysisRejectsMissingSummary(t *testing.T) {
	_, err := ParseAnalysis(`{"key_findings":["finding"]}`)
	assert.Error(t, err)
}

func TestParseAnalysisRejectsProse(t *testing.T) {
	_, err := ParseAnalysis("Everything looks great, keep it up!")
	assert.Error(t, err)
}

func TestRenderInsightPromptIncludesRows(t *testing.T) {
	rows := []models.SearchAnalyticsRow{
		{Keys: []string{"go modules"}, Clicks: 120, Impressions: 2400, CTR: 0.05, Position: 3.1},
	}

	prompt, err := RenderInsightPrompt("https://example.com/", "2025-05-01 to 2025-05-31", rows)
	require.NoError(t, err)

	assert.Contains(t, prompt, "https://example.com/")
	assert.Contains(t, prompt, "go modules")
	assert.Contains(t, prompt, "2025-05-01 to 2025-05-31")
}

func TestRenderInsightPromptCapsRows(t *testing.T) {
	rows := make([]models.SearchAnalyticsRow, MaxPromptRows+20)
	for i := range rows {
		rows[i] = models.SearchAnalyticsRow{Keys: []string{"query-" + string(rune('a'+i%26))}, Clicks: float64(i)}
	}

	prompt, err := RenderInsightPrompt("https://example.com/", "period", rows)
	require.NoError(t, err)

	assert.LessOrEqual(t, strings.Count(prompt, "query-"), MaxPromptRows)
}

func TestRenderInsightPromptSkipsKeylessRows(t *testing.T) {
	rows := []models.SearchAnalyticsRow{
		{Keys: nil, Clicks: 10},
		{Keys: []string{"kept"}, Clicks: 5},
	}

	prompt, err := RenderInsightPrompt("https://example.com/", "period", rows)
	require.NoError(t, err)
	assert.Contains(t, prompt, "kept")
}
