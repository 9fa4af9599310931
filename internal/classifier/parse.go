package classifier

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jyouterean/kei-cargo-impression-agent/internal/domain"
)

// parseExtraction pulls the JSON object out of a model response.
// Models wrap JSON in code fences or prose often enough that we cut to
// the outermost braces before unmarshalling.
func parseExtraction(raw string) (*domain.PatternExtraction, error) {
	jsonText := extractJSONObject(raw)
	if jsonText == "" {
		return nil, fmt.Errorf("classifier: no JSON object in response")
	}

	var ext domain.PatternExtraction
	if err := json.Unmarshal([]byte(jsonText), &ext); err != nil {
		return nil, fmt.Errorf("classifier: parse extraction: %w", err)
	}

	if ext.Format == "" || ext.HookType == "" {
		return nil, fmt.Errorf("classifier: extraction missing format or hook_type")
	}
	if ext.QualityScore < 0 {
		ext.QualityScore = 0
	}
	if ext.QualityScore > 1 {
		ext.QualityScore = 1
	}
	return &ext, nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}
