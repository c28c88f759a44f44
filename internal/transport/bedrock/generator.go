// Package bedrock implements domain.Generator on top of AWS Bedrock Runtime.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragd/internal/domain"
	"github.com/kailas-cloud/ragd/internal/metrics"
)

const providerName = "bedrock"

// Config holds Bedrock client settings.
type Config struct {
	Region        string
	Profile       string
	AssumeRoleARN string
	SessionName   string
	Endpoint      string
	ModelID       string
	// MaxAttempts caps SDK-level retries. Zero keeps the SDK default.
	MaxAttempts int
	Logger      *zap.Logger
}

type invoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput,
		optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Generator invokes a Bedrock model with a single-turn prompt.
type Generator struct {
	client  invoker
	modelID string
	logger  *zap.Logger
}

// NewGenerator resolves AWS credentials and builds a Bedrock Runtime client.
// Credential order: default chain (task role, env), then shared profile,
// then an optional STS assume-role on top of whichever was resolved.
func NewGenerator(ctx context.Context, cfg *Config) (*Generator, error) {
	if cfg.ModelID == "" {
		return nil, errors.New("bedrock: model id is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	if cfg.AssumeRoleARN != "" {
		provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(awsCfg), cfg.AssumeRoleARN,
			func(o *stscreds.AssumeRoleOptions) {
				if cfg.SessionName != "" {
					o.RoleSessionName = cfg.SessionName
				}
			})
		awsCfg.Credentials = aws.NewCredentialsCache(provider)
	}

	return NewGeneratorFromAWS(awsCfg, cfg), nil
}

// NewGeneratorFromAWS builds a Generator from an already resolved aws.Config.
func NewGeneratorFromAWS(awsCfg aws.Config, cfg *Config) *Generator {
	client := bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.MaxAttempts > 0 {
			o.RetryMaxAttempts = cfg.MaxAttempts
		}
	})
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{client: client, modelID: cfg.ModelID, logger: logger}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type invokeBody struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type invokeResponse struct {
	Outputs []struct {
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"outputs"`
	Generation string `json:"generation"` // Llama family
	Completion string `json:"completion"` // Claude text-completions
	Choices    []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	PromptTokens     int `json:"prompt_token_count"`
	GenerationTokens int `json:"generation_token_count"`
}

func (r *invokeResponse) text() string {
	switch {
	case len(r.Outputs) > 0:
		return r.Outputs[0].Text
	case r.Generation != "":
		return r.Generation
	case r.Completion != "":
		return r.Completion
	case len(r.Choices) > 0:
		return r.Choices[0].Message.Content
	}
	return ""
}

// encodePrompt wraps the prompt as a serialized chat transcript inside the "prompt" field.
func encodePrompt(req domain.GenerationRequest) ([]byte, error) {
	messages, err := json.Marshal(struct {
		Messages []chatMessage `json:"messages"`
	}{Messages: []chatMessage{{Role: "user", Content: req.Prompt}}})
	if err != nil {
		return nil, err
	}
	return json.Marshal(invokeBody{
		Prompt:      string(messages),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
}

// Generate implements domain.Generator.
func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	body, err := encodePrompt(req)
	if err != nil {
		return domain.GenerationResult{}, fmt.Errorf("encode payload: %w: %w", domain.ErrGenerationFailed, err)
	}

	start := time.Now()
	out, err := g.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(g.modelID),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	elapsed := time.Since(start).Seconds()

	if err != nil {
		if IsModelNotReady(err) {
			metrics.ObserveGeneration(providerName, g.modelID, "not_ready", elapsed, 0, 0)
			return domain.GenerationResult{}, fmt.Errorf("invoke %s: %w: %w", g.modelID, domain.ErrModelNotReady, err)
		}
		metrics.ObserveGeneration(providerName, g.modelID, "error", elapsed, 0, 0)
		return domain.GenerationResult{}, fmt.Errorf("invoke %s: %w: %w", g.modelID, domain.ErrGenerationFailed, err)
	}

	var resp invokeResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		metrics.ObserveGeneration(providerName, g.modelID, "error", elapsed, 0, 0)
		return domain.GenerationResult{}, fmt.Errorf("decode response: %w: %w", domain.ErrGenerationFailed, err)
	}
	text := strings.TrimSpace(resp.text())
	if text == "" {
		metrics.ObserveGeneration(providerName, g.modelID, "error", elapsed, 0, 0)
		return domain.GenerationResult{}, fmt.Errorf("empty model output: %w", domain.ErrGenerationFailed)
	}

	metrics.ObserveGeneration(providerName, g.modelID, "success", elapsed, resp.PromptTokens, resp.GenerationTokens)
	g.logger.Debug("Bedrock invocation completed",
		zap.String("model", g.modelID),
		zap.Float64("duration_sec", elapsed),
		zap.Int("output_chars", len(text)),
	)

	return domain.GenerationResult{
		Text:             text,
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.GenerationTokens,
	}, nil
}

// IsModelNotReady reports whether Bedrock rejected the call because the model is still loading.
func IsModelNotReady(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ModelNotReadyException", "ServiceUnavailableException":
			return true
		}
	}
	return strings.Contains(err.Error(), "ModelNotReadyException")
}
