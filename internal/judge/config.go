package judge

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// DefaultSystemPrompt is the system prompt used when no judge config
// overrides it.
const DefaultSystemPrompt = `You are an impartial evaluator. You grade how well an answer addresses a question given the supplied context. Follow the scoring criteria exactly and respond only in the requested JSON format.`

// DefaultPromptTemplate is the built-in judge prompt. Slots are filled from
// the record being scored ({{question}}, {{context}}, {{answer}}) and from
// the config ({{criteria}}, {{output_schema}}).
const DefaultPromptTemplate = `<task>
Evaluate the answer below against the question, using only the supplied context.
Score it according to the criteria provided.
</task>

<question>
{{question}}
</question>

<context>
{{context}}
</context>

<answer>
{{answer}}
</answer>

<criteria>
{{criteria}}
</criteria>

<output_format>
{{output_schema}}
</output_format>

Respond with only the JSON object, no additional text.`

// DefaultCriteria is the built-in scoring rubric.
const DefaultCriteria = `Score each dimension from 1 (poor) to 5 (excellent):
- Faithfulness: every claim in the answer is supported by the context.
- Relevance: the answer addresses the question that was asked.
- Completeness: the answer covers the material points the context supports.

total_score is the rounded average of the three dimensions.`

// DefaultOutputSchema describes the JSON object the judge must return.
// The reasoning and total_score fields are required; responses missing
// either are rejected.
const DefaultOutputSchema = `Return your judgment as a JSON object with this structure:
{
  "reasoning": "a short explanation of the score",
  "faithfulness": 1-5,
  "relevance": 1-5,
  "completeness": 1-5,
  "total_score": 1-5
}`

// Config holds everything that shapes a judge call: which model to use and
// the full prompt assembly. All prompt state lives here rather than in
// package globals so two judges with different rubrics can coexist.
type Config struct {
	Provider       string  `yaml:"provider"`
	Model          string  `yaml:"model"`
	SystemPrompt   string  `yaml:"system_prompt"`
	PromptTemplate string  `yaml:"prompt_template"`
	Criteria       string  `yaml:"criteria"`
	OutputSchema   string  `yaml:"output_schema"`
	MaxTokens      int     `yaml:"max_tokens"`
	Temperature    float64 `yaml:"temperature"`
}

// DefaultConfig returns a config with all built-in defaults applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads judge configuration from a YAML file. Fields left empty
// in the file fall back to the built-in defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "judge: read config %s", path)
	}

	// The YAML has a top-level "judge" key
	var wrapper struct {
		Judge Config `yaml:"judge"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "judge: parse config")
	}

	cfg := wrapper.Judge
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	if c.PromptTemplate == "" {
		c.PromptTemplate = DefaultPromptTemplate
	}
	if c.Criteria == "" {
		c.Criteria = DefaultCriteria
	}
	if c.OutputSchema == "" {
		c.OutputSchema = DefaultOutputSchema
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 1024
	}
	// Temperature stays at zero unless the file sets it; grading should be
	// deterministic.
}
