package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/ragd/internal/version"
)

// errUnhealthy makes `ragctl health` exit non-zero without printing usage.
var errUnhealthy = errors.New("service is unhealthy")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		baseURL string
		apiKey  string
		timeout time.Duration
	)

	rootCmd := &cobra.Command{
		Use:          "ragctl",
		Short:        "Operate and probe a ragd question answering service",
		Version:      version.String(),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&baseURL, "url", envOr("RAGD_URL", "http://localhost:8000"), "Service base URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("RAGD_API_KEY"), "Bearer API key")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Request timeout")

	api := func() *apiClient { return newAPIClient(baseURL, apiKey, timeout) }

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Run the deep health check and exit 1 when unhealthy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHealth(cmd.Context(), api(), cmd.OutOrStdout())
		},
	}

	var (
		collection string
		maxResults int
		threshold  float64
		jsonOutput bool
	)
	queryCmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Ask the service a question and print the answer with its sources",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := queryRequest{
				Query:          joinArgs(args),
				CollectionName: collection,
			}
			if cmd.Flags().Changed("max-results") {
				req.MaxResults = &maxResults
			}
			if cmd.Flags().Changed("threshold") {
				req.SimilarityThreshold = &threshold
			}
			return runQuery(cmd.Context(), api(), req, jsonOutput, cmd.OutOrStdout())
		},
	}
	queryCmd.Flags().StringVar(&collection, "collection", "", "Collection to search (service default when empty)")
	queryCmd.Flags().IntVar(&maxResults, "max-results", 0, "Neighbours to retrieve (max 20)")
	queryCmd.Flags().Float64Var(&threshold, "threshold", 0, "Similarity cutoff in [0,1]")
	queryCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the raw JSON response")

	warmupCmd := &cobra.Command{
		Use:   "warmup",
		Short: "Re-arm a degraded model warm-up and restart it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWarmup(cmd.Context(), api(), cmd.OutOrStdout())
		},
	}

	var (
		env         string
		maxTokens   int
		temperature float64
	)
	generateCmd := &cobra.Command{
		Use:   "generate <prompt>",
		Short: "Call the configured language model directly, bypassing retrieval",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), env, joinArgs(args), maxTokens, temperature, cmd.OutOrStdout())
		},
	}
	generateCmd.Flags().StringVar(&env, "env", envOr("ENV", "local"), "Config environment (config/<env>.yaml)")
	generateCmd.Flags().IntVar(&maxTokens, "max-tokens", 50, "Maximum tokens to generate")
	generateCmd.Flags().Float64Var(&temperature, "temperature", 0.5, "Sampling temperature")

	rootCmd.AddCommand(healthCmd, queryCmd, warmupCmd, generateCmd)
	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
