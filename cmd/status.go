package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/eval-cli/pkg/openaichat"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe an OpenAI-compatible inference server",
	Long: `List the model ids an OpenAI-compatible server reports.

The quickest way to verify a vLLM or TGI instance is up and to find the
exact --model value to judge with.

Examples:
  status
  status --base-url http://localhost:8000/v1`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().String("base-url", "", "OpenAI-compatible base URL (overrides config)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	baseURL := cfg.OpenAI.BaseURL
	if v, _ := cmd.Flags().GetString("base-url"); v != "" {
		baseURL = v
	}

	client := openaichat.NewClient(cfg.OpenAI.Key, openaichat.WithBaseURL(baseURL))
	models, err := client.ListModels(ctx)
	if err != nil {
		return eris.Wrapf(err, "status: probe %s", baseURL)
	}

	fmt.Printf("Endpoint: %s\n", baseURL)
	fmt.Printf("Models:   %d\n", len(models))
	for _, id := range models {
		fmt.Printf("  %s\n", id)
	}
	return nil
}
