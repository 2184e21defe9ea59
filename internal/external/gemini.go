package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"stockbrief/internal/types"
)

const geminiProvider = "gemini"

// GeminiConfig configures the Gemini generateContent client.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// GeminiModel implements TextGenerator over the Gemini REST API.
type GeminiModel struct {
	base   HTTPDoer
	cfg    GeminiConfig
	logger *slog.Logger
}

// NewGeminiModel creates a Gemini client.
func NewGeminiModel(httpClient *http.Client, cfg GeminiConfig, logger *slog.Logger) *GeminiModel {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &GeminiModel{
		base:   NewBaseClient(httpClient, geminiProvider),
		cfg:    cfg,
		logger: logger,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// Name implements TextGenerator.
func (g *GeminiModel) Name() string {
	return geminiProvider + "/" + g.cfg.Model
}

// Generate implements TextGenerator. The text parts of the first candidate
// are concatenated.
func (g *GeminiModel) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode model request", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.cfg.BaseURL, g.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build model request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", g.cfg.APIKey)

	resp, err := g.base.Do(req)
	if err != nil {
		return "", retag(types.ErrCodeUpstreamModel, geminiProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError(types.ErrCodeUpstreamModel, geminiProvider, resp)
	}

	var body geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamModel, "failed to decode model response", err)
	}

	if len(body.Candidates) == 0 {
		reason := ""
		if body.PromptFeedback != nil {
			reason = body.PromptFeedback.BlockReason
		}
		return "", types.NewAppErrorWithDetails(types.ErrCodeUpstreamModel, "model returned no candidates", nil,
			map[string]any{"provider": geminiProvider, "block_reason": reason})
	}

	var sb strings.Builder
	for _, p := range body.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return "", types.NewAppErrorWithDetails(types.ErrCodeUpstreamModel, "model returned empty text", nil,
			map[string]any{"provider": geminiProvider, "finish_reason": body.Candidates[0].FinishReason})
	}

	g.logger.DebugContext(ctx, "model call complete",
		"model", g.cfg.Model,
		"prompt_tokens", body.UsageMetadata.PromptTokenCount,
		"output_tokens", body.UsageMetadata.CandidatesTokenCount,
	)
	return text, nil
}

var _ TextGenerator = (*GeminiModel)(nil)
