package judge

import (
	"strings"

	"github.com/sells-group/eval-cli/internal/model"
)

// RenderPrompt fills the config's prompt template with the record's fields
// and the config's rubric text. Fields absent from the record render as
// empty strings; the record itself is never modified.
func RenderPrompt(cfg *Config, item model.Item) string {
	slots := map[string]string{
		"question":      item.Question(),
		"context":       item.Context(),
		"answer":        item.Answer(),
		"criteria":      cfg.Criteria,
		"output_schema": cfg.OutputSchema,
	}

	out := cfg.PromptTemplate
	for key, value := range slots {
		out = strings.ReplaceAll(out, "{{"+key+"}}", value)
	}
	return out
}
