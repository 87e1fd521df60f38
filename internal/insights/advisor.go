// internal/insights/advisor.go
package insights

import (
	"context"
	"fmt"
	"strings"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ghostpay/api/schemas"
)

const (
	// FallbackEmpty is returned when the model produced no text.
	FallbackEmpty = "Unable to generate insights at this moment."
	// FallbackError is returned alongside the error when the model could not be reached.
	FallbackError = "Connection error. Please try again."

	systemPrompt = "Act as a high-end financial advisor. Keep the tone professional, luxurious and concise. Answer with bullet points."
)

// Generator produces text from a system instruction and a user prompt.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Advisor turns the card portfolio into a short list of suggestions.
type Advisor struct {
	gen    Generator
	logger *zap.Logger
}

// NewAdvisor creates an Advisor backed by gen.
func NewAdvisor(gen Generator, logger *zap.Logger) *Advisor {
	return &Advisor{gen: gen, logger: logger.Named("insights")}
}

type portfolioEntry struct {
	Bank   string `json:"bank"`
	Expiry string `json:"expiry"`
}

// BuildPrompt describes the portfolio by bank name and expiry only. Numbers, names and
// contact details never leave the host.
func BuildPrompt(cards []schemas.CardRecord) (string, error) {
	entries := make([]portfolioEntry, 0, len(cards))
	for _, c := range cards {
		entries = append(entries, portfolioEntry{Bank: c.BankName, Expiry: c.Expiry})
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("insights: encode portfolio: %w", err)
	}

	var b strings.Builder
	b.WriteString("Analyze the following credit card portfolio and provide 3 brief, strategic insights ")
	b.WriteString("for optimizing credit usage, maximizing rewards, or managing payments.\n\n")
	b.WriteString("User Portfolio:\n")
	b.Write(raw)
	b.WriteString("\n")
	return b.String(), nil
}

// Portfolio asks the model about cards. On failure it returns the user-facing fallback text
// together with the error.
func (a *Advisor) Portfolio(ctx context.Context, cards []schemas.CardRecord) (string, error) {
	prompt, err := BuildPrompt(cards)
	if err != nil {
		return FallbackError, err
	}

	a.logger.Debug("Requesting portfolio insights.", zap.Int("cards", len(cards)))
	text, err := a.gen.Generate(ctx, systemPrompt, prompt)
	if err != nil {
		a.logger.Warn("Insight generation failed.", zap.Error(err))
		return FallbackError, fmt.Errorf("insights: generate: %w", err)
	}
	if text = strings.TrimSpace(text); text == "" {
		return FallbackEmpty, nil
	}
	return text, nil
}
