package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/eval-cli/internal/judge"
	"github.com/sells-group/eval-cli/internal/model"
	"github.com/sells-group/eval-cli/internal/resilience"
	"github.com/sells-group/eval-cli/pkg/openaichat"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve single-record judging over HTTP",
	Long: `Expose the judge as a small HTTP service.

POST /v1/judge scores one record synchronously and returns it enriched with
the judge's verdict fields. GET /health reports liveness plus the state of
the per-provider circuit breaker; while the judge's upstream is failing the
breaker is open and requests are rejected with 503 until it recovers.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := *cfg
	jcfg, err := buildJudgeConfig(cmd, c)
	if err != nil {
		return err
	}
	c.Judge.Provider = jcfg.Provider
	c.Judge.Model = jcfg.Model
	c.Judge.MaxTokens = jcfg.MaxTokens
	if err := c.Validate("serve"); err != nil {
		return err
	}

	j, err := buildJudge(jcfg, c)
	if err != nil {
		return err
	}

	breakerCfg := resilience.FromCircuitConfig(c.Server.CircuitThreshold, c.Server.CircuitResetSecs)
	breakerCfg.ShouldTrip = providerFailure
	breakerCfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("judge circuit state changed",
			zap.String("provider", jcfg.Provider),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	breakers := resilience.NewServiceBreakers(breakerCfg)

	handler := buildRouter(j, jcfg.Provider, breakers)

	port := resolvePort(servePort, c.Server.Port)
	return startServer(ctx, handler, port)
}

// buildRouter wires the judge endpoints. One circuit breaker guards the
// judge's provider: repeated upstream failures open it and turn into fast
// 503s instead of piling up slow calls.
func buildRouter(j *judge.Judge, provider string, breakers *resilience.ServiceBreakers) http.Handler {
	cb := breakers.Get(provider)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		states := make(map[string]string)
		for svc, st := range breakers.States() {
			states[svc] = st.String()
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"breakers": states,
		})
	})

	r.Post("/v1/judge", func(w http.ResponseWriter, req *http.Request) {
		var item model.Item
		if err := json.NewDecoder(req.Body).Decode(&item); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if len(item) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "empty record"})
			return
		}

		scored, err := resilience.ExecuteVal(req.Context(), cb, func(ctx context.Context) (model.Item, error) {
			return j.Score(ctx, item)
		})
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, scored)
		case errors.Is(err, resilience.ErrCircuitOpen):
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "judge upstream unavailable"})
		default:
			zap.L().Error("judge request failed",
				zap.String("question", item.Question()),
				zap.Error(err),
			)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		}
	})

	return r
}

// providerFailure reports whether an error came from the judge's upstream
// rather than from the record or verdict itself; only upstream failures
// count toward opening the circuit.
func providerFailure(err error) bool {
	var se *openaichat.StatusError
	if errors.As(err, &se) {
		return resilience.IsTransientHTTPStatus(se.StatusCode)
	}
	return resilience.IsTransient(err)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// resolvePort prefers the flag when set, falling back to the config value.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

// startServer runs the handler until ctx is cancelled, then shuts down
// gracefully.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server listen")
	}
	return nil
}
