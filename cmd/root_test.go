package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/eval-cli/internal/config"
)

// testConfig returns a fully-populated config for command tests.
func testConfig() *config.Config {
	return &config.Config{
		Judge: config.JudgeConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			MaxTokens: 512,
			Retries:   0,
		},
		OpenAI: config.OpenAIConfig{
			Key:     "sk-test",
			BaseURL: "https://api.openai.com/v1",
		},
		Batch: config.BatchConfig{Concurrency: 4},
		Dataset: config.DatasetConfig{
			TimeoutSecs: 5,
			MaxRetries:  1,
			UserAgent:   "eval-cli-test",
			RatePerHost: 10,
		},
		Harness: config.HarnessConfig{
			Binary:        "lm_eval",
			NumConcurrent: 4,
			MaxRetries:    2,
			BatchSize:     "auto",
			OutputDir:     "results",
		},
		Server: config.ServerConfig{
			Port:             8080,
			CircuitThreshold: 5,
			CircuitResetSecs: 30,
		},
	}
}

// setFlag sets a command flag for the duration of the test, restoring the
// previous value and the Changed marker afterwards.
func setFlag(t *testing.T, cmd *cobra.Command, name, value string) {
	t.Helper()
	fl := cmd.Flags().Lookup(name)
	require.NotNil(t, fl, "flag --%s", name)
	prev := fl.Value.String()
	require.NoError(t, cmd.Flags().Set(name, value))
	t.Cleanup(func() {
		_ = fl.Value.Set(prev)
		fl.Changed = false
	})
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"judge", "harness", "serve", "status"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "eval-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestJudgeCommand_Flags(t *testing.T) {
	for _, name := range []string{
		"input", "judge-config", "provider", "model", "base-url",
		"concurrency", "max-tokens", "retries", "limit", "sample", "seed",
		"format", "output", "report",
	} {
		flag := judgeCmd.Flags().Lookup(name)
		assert.NotNil(t, flag, "judge should have --%s flag", name)
	}

	assert.Equal(t, "table", judgeCmd.Flags().Lookup("format").DefValue)
	assert.Equal(t, "1", judgeCmd.Flags().Lookup("seed").DefValue)
}

func TestHarnessCommand_Flags(t *testing.T) {
	for _, name := range []string{
		"tasks", "model-id", "base-url", "concurrency", "retries",
		"tokenized", "chat-template", "multiturn", "fewshot", "batch-size",
		"limit", "output-path", "binary", "dry-run",
	} {
		flag := harnessCmd.Flags().Lookup(name)
		assert.NotNil(t, flag, "harness should have --%s flag", name)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestStatusCommand_Flags(t *testing.T) {
	flag := statusCmd.Flags().Lookup("base-url")
	require.NotNil(t, flag, "status command should have --base-url flag")
}
