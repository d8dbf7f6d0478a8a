package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/eval-cli/internal/config"
	"github.com/sells-group/eval-cli/internal/cost"
	"github.com/sells-group/eval-cli/internal/dataset"
	"github.com/sells-group/eval-cli/internal/eval"
	"github.com/sells-group/eval-cli/internal/judge"
	"github.com/sells-group/eval-cli/internal/model"
	"github.com/sells-group/eval-cli/internal/report"
	"github.com/sells-group/eval-cli/pkg/anthropic"
	"github.com/sells-group/eval-cli/pkg/openaichat"
)

var judgeCmd = &cobra.Command{
	Use:   "judge",
	Short: "Score a dataset with an LLM judge",
	Long: `Score evaluation records (question / context / answer) with an LLM judge.

Loads records from a local file (JSON array, JSONL, CSV, XLSX) or an HTTP(S)
URL, renders each into the judge prompt, and scores them concurrently through
an OpenAI-compatible chat-completions endpoint or the Anthropic API. Every
result is the input record enriched with the judge's verdict fields
(reasoning, per-dimension scores, total_score); a single failed call aborts
the whole batch.

The judge prompt, criteria, and output schema come from --judge-config
(YAML). When a judge config file is given it defines the judge wholly;
explicit flags still override it. Without one, provider/model/budget come
from the main config.

Examples:
  # Score a JSONL dataset with the configured judge
  judge --input answers.jsonl

  # Judge through a local vLLM endpoint
  judge --input answers.jsonl --base-url http://localhost:8000/v1 --model qwen2.5-72b

  # Anthropic judge, 16 concurrent calls
  judge --input answers.csv --provider anthropic --model claude-sonnet-4-5 --concurrency 16

  # Deterministic 100-record sample, CSV to file, full JSONL artifact
  judge --input https://example.com/run.jsonl --sample 100 --seed 7 \
        --format csv --output scores.csv --report run.jsonl`,
	RunE: runJudge,
}

func init() {
	f := judgeCmd.Flags()
	f.String("input", "", "dataset file or HTTP(S) URL (required)")
	f.String("judge-config", "", "judge YAML config (prompt template, criteria, output schema)")
	f.String("provider", "", "judge provider: openai or anthropic (overrides config)")
	f.String("model", "", "judge model id (overrides config)")
	f.String("base-url", "", "OpenAI-compatible base URL, e.g. a vLLM endpoint (overrides config)")
	f.Int("concurrency", 0, "concurrent judge calls (overrides config)")
	f.Int("max-tokens", 0, "judge completion token budget (overrides config)")
	f.Int("retries", -1, "retries per judge call on transient failures (overrides config)")
	f.Int("limit", 0, "score only the first N records")
	f.Int("sample", 0, "score a seeded random sample of N records")
	f.Int64("seed", 1, "sample seed")
	f.String("format", "table", "output format: table, csv, or json")
	f.String("output", "", "output file path (default: stdout)")
	f.String("report", "", "write a JSONL run artifact (meta line + one result per line)")
	_ = judgeCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(judgeCmd)
}

func runJudge(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	input, _ := cmd.Flags().GetString("input")
	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")
	reportPath, _ := cmd.Flags().GetString("report")
	limit, _ := cmd.Flags().GetInt("limit")
	sampleN, _ := cmd.Flags().GetInt("sample")
	seed, _ := cmd.Flags().GetInt64("seed")

	if format != "table" && format != "csv" && format != "json" {
		return eris.Errorf("judge: --format must be table, csv, or json (got %q)", format)
	}

	c := applyJudgeOverrides(cmd, *cfg)
	jcfg, err := buildJudgeConfig(cmd, c)
	if err != nil {
		return err
	}

	// Validation sees the judge as finally configured, file included.
	c.Judge.Provider = jcfg.Provider
	c.Judge.Model = jcfg.Model
	c.Judge.MaxTokens = jcfg.MaxTokens
	if err := c.Validate("judge"); err != nil {
		return err
	}

	j, err := buildJudge(jcfg, c)
	if err != nil {
		return err
	}

	log := zap.L().With(zap.String("command", "judge"))

	items, err := dataset.Load(ctx, input, dataset.Options{Fetcher: datasetFetcher(c)})
	if err != nil {
		return err
	}
	log.Info("dataset loaded", zap.String("input", input), zap.Int("records", len(items)))

	if sampleN > 0 {
		items = dataset.Sample(items, sampleN, seed)
	}
	if limit > 0 {
		items = dataset.Limit(items, limit)
	}

	log.Info("starting judge batch",
		zap.String("provider", jcfg.Provider),
		zap.String("model", jcfg.Model),
		zap.Int("records", len(items)),
		zap.Int("concurrency", c.Batch.Concurrency),
	)

	results, err := eval.Run(ctx, items, j.Score, eval.Options{
		Concurrency: c.Batch.Concurrency,
		Progress:    eval.LogReporter{Every: 10},
	})
	if err != nil {
		return err
	}

	summary := eval.Summarize(results)
	usage := j.Usage()
	estCost := cost.NewCalculator(cost.DefaultRates()).
		Judge(jcfg.Provider, jcfg.Model, usage.InputTokens, usage.OutputTokens)

	if err := outputJudgeResults(results, format, outputPath); err != nil {
		return err
	}
	printJudgeSummary(summary, usage, estCost)

	if reportPath != "" {
		meta := report.NewMeta(jcfg.Model, jcfg.Provider, input)
		meta.Usage = usage
		meta.EstCost = estCost
		meta.Summary = summary
		if err := report.WriteJSONL(reportPath, meta, results); err != nil {
			return err
		}
		fmt.Printf("Report written to %s\n", reportPath)
	}

	return nil
}

// applyJudgeOverrides returns a copy of the base config with CLI flag
// overrides applied.
func applyJudgeOverrides(cmd *cobra.Command, base config.Config) config.Config {
	c := base

	if v, _ := cmd.Flags().GetString("provider"); v != "" {
		c.Judge.Provider = v
	}
	if v, _ := cmd.Flags().GetString("model"); v != "" {
		c.Judge.Model = v
	}
	if v, _ := cmd.Flags().GetString("base-url"); v != "" {
		c.OpenAI.BaseURL = v
	}
	if v, _ := cmd.Flags().GetString("judge-config"); v != "" {
		c.Judge.ConfigPath = v
	}
	if v, _ := cmd.Flags().GetInt("concurrency"); v > 0 {
		c.Batch.Concurrency = v
	}
	if v, _ := cmd.Flags().GetInt("max-tokens"); v > 0 {
		c.Judge.MaxTokens = v
	}
	if v, _ := cmd.Flags().GetInt("retries"); v >= 0 {
		c.Judge.Retries = v
	}

	return c
}

// buildJudgeConfig resolves the judge configuration. A judge config file is
// authoritative when present; flags the user set explicitly beat the file.
func buildJudgeConfig(cmd *cobra.Command, c config.Config) (*judge.Config, error) {
	if c.Judge.ConfigPath == "" {
		jc := judge.DefaultConfig()
		jc.Provider = c.Judge.Provider
		jc.Model = c.Judge.Model
		jc.MaxTokens = c.Judge.MaxTokens
		return jc, nil
	}

	jc, err := judge.LoadConfig(c.Judge.ConfigPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("provider") {
		jc.Provider = c.Judge.Provider
	}
	if cmd.Flags().Changed("model") {
		jc.Model = c.Judge.Model
	}
	if cmd.Flags().Changed("max-tokens") {
		jc.MaxTokens = c.Judge.MaxTokens
	}
	return jc, nil
}

// buildJudge wires the judge to its provider backend.
func buildJudge(jcfg *judge.Config, c config.Config) (*judge.Judge, error) {
	switch jcfg.Provider {
	case "openai":
		client := openaichat.NewClient(c.OpenAI.Key, openaichat.WithBaseURL(c.OpenAI.BaseURL))
		return judge.New(jcfg, judge.NewOpenAIBackend(client, c.Judge.Retries)), nil
	case "anthropic":
		client := anthropic.NewClient(c.Anthropic.Key)
		return judge.New(jcfg, judge.NewAnthropicBackend(client, c.Judge.Retries)), nil
	default:
		return nil, eris.Errorf("judge: unknown provider %q", jcfg.Provider)
	}
}

func datasetFetcher(c config.Config) *dataset.Fetcher {
	return dataset.NewFetcher(dataset.FetchOptions{
		UserAgent:   c.Dataset.UserAgent,
		Timeout:     time.Duration(c.Dataset.TimeoutSecs) * time.Second,
		MaxRetries:  c.Dataset.MaxRetries,
		RatePerHost: rate.Limit(c.Dataset.RatePerHost),
	})
}

func outputJudgeResults(results []model.Item, format, outputPath string) error {
	var w *os.File
	if outputPath != "" {
		var err error
		w, err = os.Create(outputPath)
		if err != nil {
			return eris.Wrapf(err, "judge: create output file %s", outputPath)
		}
		defer w.Close() //nolint:errcheck
	} else {
		w = os.Stdout
	}

	switch format {
	case "csv":
		return writeJudgeCSV(w, results)
	case "json":
		return writeJudgeJSON(w, results)
	case "table":
		return writeJudgeTable(w, results)
	default:
		return eris.Errorf("judge: unsupported format %q", format)
	}
}

func writeJudgeCSV(w *os.File, results []model.Item) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"question", "answer", "total_score", "reasoning"}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "judge: write CSV header")
	}

	for _, r := range results {
		row := []string{
			r.Question(),
			r.Answer(),
			formatScore(r),
			r.GetString(model.KeyReasoning),
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "judge: write CSV row")
		}
	}
	return nil
}

func writeJudgeJSON(w *os.File, results []model.Item) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return eris.Wrap(err, "judge: write JSON")
	}
	return nil
}

func writeJudgeTable(w *os.File, results []model.Item) error {
	header := fmt.Sprintf("%-60s %6s  %s\n", "Question", "Score", "Reasoning")
	if _, err := fmt.Fprint(w, header); err != nil {
		return eris.Wrap(err, "judge: write table header")
	}
	if _, err := fmt.Fprintln(w, strings.Repeat("-", 110)); err != nil {
		return eris.Wrap(err, "judge: write table separator")
	}

	for _, r := range results {
		line := fmt.Sprintf("%-60s %6s  %s\n",
			truncate(r.Question(), 60),
			formatScore(r),
			truncate(r.GetString(model.KeyReasoning), 42),
		)
		if _, err := fmt.Fprint(w, line); err != nil {
			return eris.Wrap(err, "judge: write table row")
		}
	}
	return nil
}

// formatScore renders an item's total_score, or "-" when the judge field is
// absent or non-numeric.
func formatScore(r model.Item) string {
	if v, ok := r[model.KeyTotalScore].(float64); ok {
		return fmt.Sprintf("%.1f", v)
	}
	return "-"
}

func printJudgeSummary(s eval.Summary, usage model.TokenUsage, estCost float64) {
	if s.Count == 0 {
		fmt.Println("No results.")
		return
	}
	fmt.Printf("\n--- Summary ---\n")
	fmt.Printf("Records scored: %d\n", s.Count)
	if s.Scored < s.Count {
		fmt.Printf("With score:     %d\n", s.Scored)
	}
	if s.Scored > 0 {
		fmt.Printf("Score range:    %.1f - %.1f\n", s.Min, s.Max)
		fmt.Printf("Average score:  %.2f (median %.1f, p95 %.1f)\n", s.Mean, s.Median, s.P95)
	}
	fmt.Printf("Tokens:         %d in / %d out\n", usage.InputTokens, usage.OutputTokens)
	if estCost > 0 {
		fmt.Printf("Est. cost:      $%.4f\n", estCost)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
