package main

import (
	"fmt"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/eval-cli/internal/config"
	"github.com/sells-group/eval-cli/internal/harness"
)

var harnessCmd = &cobra.Command{
	Use:   "harness",
	Short: "Run the external Evaluation Harness",
	Long: `Build and run an Evaluation Harness (lm_eval) invocation against an
OpenAI-compatible inference server.

The harness itself is a separate pre-built tool; this command only translates
flags into its command line, points it at the serving engine's
chat-completions endpoint, and reads back the results JSON it writes.

Examples:
  # IFEval and GSM8K against a local TGI instance
  harness --tasks ifeval,gsm8k --model-id meta-llama/Llama-3.1-8B-Instruct \
          --base-url http://localhost:8080/v1/chat/completions --chat-template

  # Few-shot examples as multiturn chat, capped to 50 examples per task
  harness --tasks gsm8k --model-id qwen2.5-7b \
          --base-url http://localhost:8000/v1/chat/completions \
          --chat-template --multiturn --fewshot 5 --limit 50

  # Show the exact command without running it
  harness --tasks ifeval --model-id m --base-url http://localhost:8080/v1/chat/completions --dry-run`,
	RunE: runHarness,
}

func init() {
	f := harnessCmd.Flags()
	f.String("tasks", "", "comma-separated harness task names (required)")
	f.String("model-id", "", "model id the inference server serves (required)")
	f.String("base-url", "", "chat-completions URL of the inference server (required)")
	f.Int("concurrency", 0, "concurrent harness requests (overrides config)")
	f.Int("retries", -1, "harness-side retries per request (overrides config)")
	f.Bool("tokenized", false, "send tokenized requests instead of text")
	f.Bool("chat-template", false, "apply the model's chat template")
	f.Bool("multiturn", false, "provide few-shot examples as multiturn chat")
	f.Int("fewshot", 0, "number of few-shot examples")
	f.String("batch-size", "", "harness batch size, e.g. auto or 16 (overrides config)")
	f.Int("limit", 0, "cap examples per task")
	f.String("output-path", "", "directory for harness results (overrides config)")
	f.String("binary", "", "harness executable (overrides config)")
	f.Bool("dry-run", false, "print the harness command without running it")
	_ = harnessCmd.MarkFlagRequired("tasks")
	_ = harnessCmd.MarkFlagRequired("model-id")
	_ = harnessCmd.MarkFlagRequired("base-url")

	rootCmd.AddCommand(harnessCmd)
}

func runHarness(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("harness"); err != nil {
		return err
	}

	hcfg := harnessConfigFromFlags(cmd, *cfg)
	if err := hcfg.Validate(); err != nil {
		return err
	}

	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		fmt.Println(hcfg.Command())
		return nil
	}

	log := zap.L().With(zap.String("command", "harness"))

	stdout, err := harness.Run(ctx, hcfg)
	if err != nil {
		return err
	}
	if stdout != "" {
		fmt.Print(stdout)
	}

	if hcfg.OutputPath == "" {
		return nil
	}
	resultsPath, err := harness.FindResults(hcfg.OutputPath)
	if err != nil {
		log.Warn("harness finished but no results file was found", zap.Error(err))
		return nil
	}
	res, err := harness.ParseResults(resultsPath)
	if err != nil {
		return err
	}
	printHarnessResults(resultsPath, res)

	return nil
}

// harnessConfigFromFlags builds the harness invocation from config defaults
// with CLI flag overrides applied.
func harnessConfigFromFlags(cmd *cobra.Command, c config.Config) harness.Config {
	hcfg := harness.Config{
		Binary:        c.Harness.Binary,
		NumConcurrent: c.Harness.NumConcurrent,
		MaxRetries:    c.Harness.MaxRetries,
		BatchSize:     c.Harness.BatchSize,
		OutputPath:    c.Harness.OutputDir,
	}

	tasks, _ := cmd.Flags().GetString("tasks")
	hcfg.Tasks = splitAndTrim(tasks)
	hcfg.ModelID, _ = cmd.Flags().GetString("model-id")
	hcfg.BaseURL, _ = cmd.Flags().GetString("base-url")
	hcfg.TokenizedRequests, _ = cmd.Flags().GetBool("tokenized")
	hcfg.ApplyChatTemplate, _ = cmd.Flags().GetBool("chat-template")
	hcfg.FewshotAsMultiturn, _ = cmd.Flags().GetBool("multiturn")
	hcfg.NumFewshot, _ = cmd.Flags().GetInt("fewshot")
	hcfg.Limit, _ = cmd.Flags().GetInt("limit")

	if v, _ := cmd.Flags().GetInt("concurrency"); v > 0 {
		hcfg.NumConcurrent = v
	}
	if v, _ := cmd.Flags().GetInt("retries"); v >= 0 {
		hcfg.MaxRetries = v
	}
	if v, _ := cmd.Flags().GetString("batch-size"); v != "" {
		hcfg.BatchSize = v
	}
	if v, _ := cmd.Flags().GetString("output-path"); v != "" {
		hcfg.OutputPath = v
	}
	if v, _ := cmd.Flags().GetString("binary"); v != "" {
		hcfg.Binary = v
	}

	return hcfg
}

func printHarnessResults(path string, res *harness.Results) {
	fmt.Printf("\n--- Results (%s) ---\n", path)

	tasks := make([]string, 0, len(res.Results))
	for task := range res.Results {
		tasks = append(tasks, task)
	}
	sort.Strings(tasks)

	for _, task := range tasks {
		fmt.Println(task)
		for _, m := range res.Results[task].Numeric() {
			fmt.Printf("  %-40s %.4f\n", m.Name, m.Value)
		}
	}
}
