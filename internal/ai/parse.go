package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Analysis is the model-produced portion of an insight document.
type Analysis struct {
	Summary         string   `json:"summary"`
	KeyFindings     []string `json:"key_findings"`
	Recommendations []string `json:"recommendations"`
	Opportunities   []string `json:"opportunities"`
}

// ParseAnalysis parses the model response into an Analysis. The summary is
// required; missing optional lists are filled with empty defaults rather than
// rejecting the document.
func ParseAnalysis(content string) (*Analysis, error) {
	content = cleanJSONResponse(content)

	var result Analysis
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		// Try to extract JSON from the response
		jsonStr := extractJSON(content)
		if jsonStr == "" {
			return nil, fmt.Errorf("no valid JSON found in response: %w", err)
		}
		if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	}

	if strings.TrimSpace(result.Summary) == "" {
		return nil, fmt.Errorf("response missing required summary")
	}

	if result.KeyFindings == nil {
		result.KeyFindings = []string{}
	}
	if result.Recommendations == nil {
		result.Recommendations = []string{}
	}
	if result.Opportunities == nil {
		result.Opportunities = []string{}
	}

	return &result, nil
}

// cleanJSONResponse removes markdown code blocks and whitespace
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

// extractJSON attempts to extract JSON from a string
func extractJSON(s string) string {
	// Find the first { and last }
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || start >= end {
		return ""
	}
	return s[start : end+1]
}
