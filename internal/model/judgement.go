package model

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// Judgement field names the judge model must emit.
const (
	KeyReasoning  = "reasoning"
	KeyTotalScore = "total_score"
)

// Judgement is the judge model's structured verdict for one Item.
type Judgement struct {
	Reasoning  string
	TotalScore float64
	Extra      map[string]any
}

// ParseJudgement decodes a judge completion into a Judgement. Markdown fences
// around the payload are tolerated; the payload itself must be a JSON object
// with a "reasoning" string and a numeric "total_score".
func ParseJudgement(raw string) (*Judgement, error) {
	text := cleanJSON(raw)
	if text == "" {
		return nil, eris.New("model: empty judgement payload")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, eris.Wrap(err, "model: judgement is not valid JSON")
	}

	reasoning, ok := payload[KeyReasoning].(string)
	if !ok {
		return nil, eris.Errorf("model: judgement missing %q string field", KeyReasoning)
	}
	score, ok := payload[KeyTotalScore].(float64)
	if !ok {
		return nil, eris.Errorf("model: judgement missing %q numeric field", KeyTotalScore)
	}

	j := &Judgement{Reasoning: reasoning, TotalScore: score}
	for k, v := range payload {
		if k == KeyReasoning || k == KeyTotalScore {
			continue
		}
		if j.Extra == nil {
			j.Extra = make(map[string]any)
		}
		j.Extra[k] = v
	}
	return j, nil
}

// Fields returns the judgement as a flat field map ready for Item.Merge.
func (j *Judgement) Fields() map[string]any {
	out := make(map[string]any, len(j.Extra)+2)
	for k, v := range j.Extra {
		out[k] = v
	}
	out[KeyReasoning] = j.Reasoning
	out[KeyTotalScore] = j.TotalScore
	return out
}

// cleanJSON strips markdown fences and extracts the JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
