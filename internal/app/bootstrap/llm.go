package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/hotel-concierge-platform/internal/config"
	"github.com/wolfman30/hotel-concierge-platform/internal/llm"
	"github.com/wolfman30/hotel-concierge-platform/pkg/logging"
)

// BuildLLMClient returns the completion client for the configured provider and
// the model id requests should carry. With Bedrock as primary and an OpenAI key
// present, OpenAI serves as fallback.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (llm.Client, string, error) {
	if cfg == nil {
		return nil, "", fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.LLMProvider {
	case "openai":
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			return nil, "", fmt.Errorf("bootstrap: OPENAI_API_KEY is required for the openai provider")
		}
		logger.Info("using openai completion client", "model", cfg.OpenAIModel, "base_url", cfg.OpenAIBaseURL)
		return llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL), cfg.OpenAIModel, nil
	case "bedrock", "":
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			return nil, "", fmt.Errorf("bootstrap: BEDROCK_MODEL_ID is required for the bedrock provider")
		}
		awsCfg, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, "", err
		}
		primary := llm.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg))
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			logger.Info("using bedrock completion client", "model", cfg.BedrockModelID)
			return primary, cfg.BedrockModelID, nil
		}
		fallbackModel := cfg.LLMFallbackModel
		if fallbackModel == "" {
			fallbackModel = cfg.OpenAIModel
		}
		logger.Info("using bedrock completion client with openai fallback", "model", cfg.BedrockModelID, "fallback_model", fallbackModel)
		fallback := llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
		return llm.NewFallbackClient(primary, fallback, fallbackModel, logger), cfg.BedrockModelID, nil
	default:
		return nil, "", fmt.Errorf("bootstrap: unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}
