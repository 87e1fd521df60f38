// internal/insights/gemini.go
package insights

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/ghostpay/internal/config"
)

// GeminiGenerator implements Generator with the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewGeminiGenerator creates a client for cfg.Model. An API key is required.
func NewGeminiGenerator(ctx context.Context, cfg config.InsightsConfig, logger *zap.Logger) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API Key is required (set GHOSTPAY_GEMINI_API_KEY)")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiGenerator{client: client, model: cfg.Model, logger: logger.Named("llm_client.gemini")}, nil
}

// Generate sends one user turn with the given system instruction.
func (g *GeminiGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.4),
	})
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	fields := []zap.Field{zap.Duration("duration", time.Since(start)), zap.String("model", g.model)}
	if resp.UsageMetadata != nil {
		fields = append(fields,
			zap.Int32("prompt_tokens", resp.UsageMetadata.PromptTokenCount),
			zap.Int32("total_tokens", resp.UsageMetadata.TotalTokenCount))
	}
	g.logger.Info("LLM generation complete (Gemini)", fields...)
	return resp.Text(), nil
}
