package external

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"stockbrief/internal/types"
)

const openAIProvider = "openai"

// OpenAIConfig configures an OpenAI-compatible chat completion endpoint.
type OpenAIConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the API root for compatible gateways. Empty uses the
	// library default.
	BaseURL string
}

// OpenAIModel implements TextGenerator with go-openai. Requests still pass
// through BaseClient so the breaker and trace headers apply.
type OpenAIModel struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAIModel creates a chat completion client.
func NewOpenAIModel(httpClient *http.Client, cfg OpenAIConfig, logger *slog.Logger) *OpenAIModel {
	if logger == nil {
		logger = slog.Default()
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = NewBaseClient(httpClient, openAIProvider)

	return &OpenAIModel{
		client: openai.NewClientWithConfig(oc),
		model:  cfg.Model,
		logger: logger,
	}
}

// Name implements TextGenerator.
func (m *OpenAIModel) Name() string {
	return openAIProvider + "/" + m.model
}

// Generate implements TextGenerator.
func (m *OpenAIModel) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: m.model,
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		}},
	})
	if err != nil {
		return "", m.mapError(err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", types.NewAppError(types.ErrCodeUpstreamModel, "model returned empty text", nil)
	}

	m.logger.DebugContext(ctx, "model call complete",
		"model", m.model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"output_tokens", resp.Usage.CompletionTokens,
	)
	return resp.Choices[0].Message.Content, nil
}

func (m *OpenAIModel) mapError(err error) *types.AppError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := types.ErrCodeUpstreamModel
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			code = types.ErrCodeUpstreamRateLimited
		}
		return types.NewAppErrorWithDetails(code, "openai request failed", err,
			map[string]any{"provider": openAIProvider, "status": apiErr.HTTPStatusCode})
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		code := types.ErrCodeUpstreamModel
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			code = types.ErrCodeUpstreamRateLimited
		}
		return types.NewAppErrorWithDetails(code, "openai request failed", err,
			map[string]any{"provider": openAIProvider, "status": reqErr.HTTPStatusCode})
	}
	return retag(types.ErrCodeUpstreamModel, openAIProvider, err)
}

var _ TextGenerator = (*OpenAIModel)(nil)
