package attacker

import (
	"encoding/json"
	"errors"
	"regexp"
)

var (
	errNoJSON = errors.New("attacker: no json object found in response")

	trailingCommaPattern  = regexp.MustCompile(`,\s*([}\]])`)
	missingCommaNLPattern = regexp.MustCompile(`(")\s*\n(\s*")`)
	missingCommaValPattern = regexp.MustCompile(`("[^"\n]*"\s*:\s*[^,\n}{\[]+)\n(\s*")`)
)

// extractJSON returns the substring spanning the first '{' to the last
// '}' in text, the same best-effort span OpenAIAttackerPolicy extracts
// from a chat completion that may carry surrounding prose.
func extractJSON(text string) (string, error) {
	start := -1
	end := -1
	for i, r := range text {
		if r == '{' {
			start = i
			break
		}
	}
	for i := len(text) - 1; i >= 0; i-- {
		if text[i] == '}' {
			end = i
			break
		}
	}
	if start == -1 || end == -1 || end <= start {
		return "", errNoJSON
	}
	return text[start : end+1], nil
}

// repairJSON fixes the two malformations truncated or loosely-formatted
// model completions tend to produce: trailing commas before a closing
// brace/bracket, and missing commas between newline-separated fields.
func repairJSON(text string) string {
	text = trailingCommaPattern.ReplaceAllString(text, "$1")
	text = missingCommaNLPattern.ReplaceAllString(text, "$1,\n$2")
	text = missingCommaValPattern.ReplaceAllString(text, "$1,\n$2")
	return text
}

// parseAttackerJSON decodes an attacker decision out of a raw model
// response, retrying once through repairJSON if the first parse fails.
func parseAttackerJSON(text string) (map[string]any, error) {
	candidate, err := extractJSON(text)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(candidate), &out); err == nil {
		return out, nil
	}
	repaired := repairJSON(candidate)
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decisionFromJSON(data map[string]any) Decision {
	d := Decision{ActionType: "no_op", Params: map[string]any{}}
	if at, ok := data["action_type"].(string); ok && at != "" {
		d.ActionType = at
	}
	if p, ok := data["params"].(map[string]any); ok {
		d.Params = p
	}
	if r, ok := data["rationale"].(string); ok {
		d.Rationale = r
	}
	if ids, ok := data["evidence_ids"].([]any); ok {
		for _, v := range ids {
			if s, ok := v.(string); ok {
				d.EvidenceIDs = append(d.EvidenceIDs, s)
			}
		}
	}
	if tags, ok := data["policy_tags"].([]any); ok {
		for _, v := range tags {
			if s, ok := v.(string); ok {
				d.PolicyTags = append(d.PolicyTags, s)
			}
		}
	}
	return d
}
