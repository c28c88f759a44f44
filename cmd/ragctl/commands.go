package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragd/internal/config"
	"github.com/kailas-cloud/ragd/internal/domain"
	logpkg "github.com/kailas-cloud/ragd/internal/logger"
	bedrockGen "github.com/kailas-cloud/ragd/internal/transport/bedrock"
	openaiTransport "github.com/kailas-cloud/ragd/internal/transport/openai"
)

type languageModel interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error)
}

func runHealth(ctx context.Context, api *apiClient, w io.Writer) error {
	h, err := api.healthDeep(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s %s: %s\n", h.Service, h.Version, strings.ToUpper(h.Status))

	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-12s %s\n", name, h.Checks[name])
	}

	fmt.Fprintf(w, "  %-12s %s (required=%t, attempts=%d)\n",
		"warmup", h.Warmup.State, h.Warmup.Required, h.Warmup.Attempts)
	if h.Warmup.LastError != "" {
		fmt.Fprintf(w, "  %-12s %s\n", "last error", h.Warmup.LastError)
	}

	if h.Status != "healthy" {
		return errUnhealthy
	}
	return nil
}

func runQuery(ctx context.Context, api *apiClient, req queryRequest, jsonOutput bool, w io.Writer) error {
	resp, raw, err := api.query(ctx, req)
	if err != nil {
		return err
	}
	if jsonOutput {
		_, err := w.Write(raw)
		return err
	}

	fmt.Fprintln(w, resp.Answer)
	fmt.Fprintln(w)
	if resp.Error != "" {
		fmt.Fprintf(w, "error: %s\n", resp.Error)
	}
	fmt.Fprintf(w, "confidence %.3f, %d source(s) found, %.0f ms\n",
		resp.Confidence, resp.TotalSourcesFound, resp.ProcessingTimeMS)
	for _, s := range resp.Sources {
		label := s.Source
		if s.Page != nil {
			label = fmt.Sprintf("%s p.%d", label, *s.Page)
		}
		fmt.Fprintf(w, "  [%d] %.3f %s\n      %s\n",
			s.SourceNumber, s.SimilarityScore, strings.TrimSpace(label), oneLine(s.Content))
	}
	return nil
}

func runWarmup(ctx context.Context, api *apiClient, w io.Writer) error {
	resp, err := api.warmup(ctx)
	if err != nil {
		return err
	}
	rearmed := resp.Rearmed != nil && *resp.Rearmed
	fmt.Fprintf(w, "warm-up state %s (rearmed=%t, attempts=%d)\n", resp.State, rearmed, resp.Attempts)
	return nil
}

func runGenerate(
	ctx context.Context, env, prompt string, maxTokens int, temperature float64, w io.Writer,
) error {
	cfg, err := config.Load(env)
	if err != nil {
		return err
	}
	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	model, err := newLanguageModel(ctx, cfg.Generation, logger)
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := model.Generate(ctx, domain.GenerationRequest{
		Prompt:      prompt,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return fmt.Errorf("%s %s: %w", cfg.Generation.Provider, cfg.Generation.Model, err)
	}

	fmt.Fprintln(w, res.Text)
	fmt.Fprintf(w, "\n%s %s: %d prompt / %d completion tokens in %s\n",
		cfg.Generation.Provider, cfg.Generation.Model,
		res.PromptTokens, res.CompletionTokens, time.Since(start).Round(time.Millisecond))
	return nil
}

func newLanguageModel(ctx context.Context, cfg config.GenerationConfig, logger *zap.Logger) (languageModel, error) {
	switch cfg.Provider {
	case "openai":
		return openaiTransport.NewGenerator(&openaiTransport.Config{
			APIKey:   cfg.APIKey,
			BaseURL:  cfg.BaseURL,
			Model:    cfg.Model,
			Provider: cfg.Provider,
			Timeout:  time.Duration(cfg.TimeoutSec) * time.Second,
			Logger:   logger,
		}), nil
	case "bedrock":
		g, err := bedrockGen.NewGenerator(ctx, &bedrockGen.Config{
			Region:        cfg.Bedrock.Region,
			Profile:       cfg.Bedrock.Profile,
			AssumeRoleARN: cfg.Bedrock.AssumeRoleARN,
			SessionName:   cfg.Bedrock.SessionName,
			Endpoint:      cfg.Bedrock.Endpoint,
			ModelID:       cfg.Model,
			Logger:        logger,
		})
		if err != nil {
			return nil, fmt.Errorf("bedrock generator: %w", err)
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
