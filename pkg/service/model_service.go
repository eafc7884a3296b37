// Model service - constructs the provider-specific chat model
package service

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino-ext/components/model/qwen"
	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/frontdesk/frontdesk/pkg/config"
	"google.golang.org/genai"
)

// ModelService builds a tool-calling chat model from configuration.
type ModelService struct {
	cfg *config.AppConfig
}

func NewModelService(cfg *config.AppConfig) *ModelService {
	return &ModelService{cfg: cfg}
}

// CreateChatModel selects and constructs the chat model based on the
// configured provider.
func (s *ModelService) CreateChatModel(ctx context.Context) (einoModel.ToolCallingChatModel, error) {
	mc := s.cfg.Model

	switch s.cfg.Provider() {
	case "openai", "custom":
		maxTokens := s.cfg.MaxTokens()
		chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:   mc.BaseURL,
			APIKey:    mc.APIKey,
			Model:     s.cfg.ModelName(),
			MaxTokens: &maxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI model: %w", err)
		}
		return chatModel, nil

	case "anthropic":
		chatModel, err := claude.NewChatModel(ctx, &claude.Config{
			BaseURL:   &mc.BaseURL,
			APIKey:    mc.APIKey,
			Model:     s.cfg.ModelName(),
			MaxTokens: s.cfg.MaxTokens(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Claude model: %w", err)
		}
		return chatModel, nil

	case "deepseek":
		chatModel, err := deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			BaseURL: mc.BaseURL,
			APIKey:  mc.APIKey,
			Model:   s.cfg.ModelName(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create DeepSeek model: %w", err)
		}
		return chatModel, nil

	case "ollama":
		chatModel, err := ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: mc.BaseURL,
			Model:   s.cfg.ModelName(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama model: %w", err)
		}
		return chatModel, nil

	case "google":
		genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  mc.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		chatModel, err := gemini.NewChatModel(ctx, &gemini.Config{
			Client: genaiClient,
			Model:  s.cfg.ModelName(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini model: %w", err)
		}
		return chatModel, nil

	case "qwen":
		chatModel, err := qwen.NewChatModel(ctx, &qwen.ChatModelConfig{
			BaseURL: mc.BaseURL,
			APIKey:  mc.APIKey,
			Model:   s.cfg.ModelName(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Qwen model: %w", err)
		}
		return chatModel, nil

	default:
		return nil, fmt.Errorf("unsupported model provider: %s", s.cfg.Provider())
	}
}
