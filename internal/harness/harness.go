// Package harness builds and runs invocations of the external evaluation
// harness binary (lm_eval) against an OpenAI-compatible inference server.
package harness

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultBinary is the harness executable resolved from PATH when Config
// doesn't name one.
const DefaultBinary = "lm_eval"

// Config describes one harness run. The harness is a pre-built external
// tool; everything here is translated into its command line.
type Config struct {
	Binary string   // harness executable; empty means DefaultBinary
	Tasks  []string // task names, e.g. ifeval, gsm8k

	// Forwarded inside --model_args.
	ModelID           string
	BaseURL           string // chat-completions endpoint of the serving engine
	NumConcurrent     int
	MaxRetries        int
	TokenizedRequests bool

	// Chat-formatting flags.
	ApplyChatTemplate  bool
	FewshotAsMultiturn bool
	NumFewshot         int

	BatchSize  string // harness batch size, e.g. "auto" or "16"
	OutputPath string // directory the harness writes its results JSON into
	Limit      int    // cap on examples per task; 0 means all
}

// Validate reports the first missing required field.
func (c Config) Validate() error {
	if len(c.Tasks) == 0 {
		return eris.New("harness: no tasks selected")
	}
	if c.ModelID == "" {
		return eris.New("harness: model id is required")
	}
	if c.BaseURL == "" {
		return eris.New("harness: base url is required")
	}
	return nil
}

// Args builds the harness argv. Pure: no filesystem or network access, so
// the exact vector is unit-testable and printable for dry runs.
func (c Config) Args() []string {
	args := []string{
		"--model", "local-chat-completions",
		"--tasks", strings.Join(c.Tasks, ","),
		"--model_args", c.modelArgs(),
	}
	if c.ApplyChatTemplate {
		args = append(args, "--apply_chat_template")
	}
	if c.FewshotAsMultiturn {
		args = append(args, "--fewshot_as_multiturn")
	}
	if c.NumFewshot > 0 {
		args = append(args, "--num_fewshot", strconv.Itoa(c.NumFewshot))
	}
	if c.BatchSize != "" {
		args = append(args, "--batch_size", c.BatchSize)
	}
	if c.OutputPath != "" {
		args = append(args, "--output_path", c.OutputPath)
	}
	if c.Limit > 0 {
		args = append(args, "--limit", strconv.Itoa(c.Limit))
	}
	return args
}

func (c Config) modelArgs() string {
	return fmt.Sprintf("model=%s,base_url=%s,num_concurrent=%d,max_retries=%d,tokenized_requests=%s",
		c.ModelID, c.BaseURL, c.NumConcurrent, c.MaxRetries, pyBool(c.TokenizedRequests))
}

// Command renders the full invocation as a shell-style string for dry runs
// and logs.
func (c Config) Command() string {
	bin := c.Binary
	if bin == "" {
		bin = DefaultBinary
	}
	return bin + " " + strings.Join(c.Args(), " ")
}

// Run executes the harness and returns its stdout. Failures carry an
// excerpt of stderr; the harness is chatty, so only the tail is kept.
func Run(ctx context.Context, cfg Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	bin := cfg.Binary
	if bin == "" {
		bin = DefaultBinary
	}

	cmd := exec.CommandContext(ctx, bin, cfg.Args()...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	zap.L().Info("running evaluation harness",
		zap.String("binary", bin),
		zap.Strings("tasks", cfg.Tasks),
		zap.String("model", cfg.ModelID),
	)

	if err := cmd.Run(); err != nil {
		return stdout.String(), eris.Wrapf(err, "harness: %s failed: %s", bin, excerpt(stderr.String(), 2000))
	}
	return stdout.String(), nil
}

// pyBool renders a bool the way the harness's argument parser expects.
func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
