// Package classify implements the ledger.Classifier capability on top of
// Gemini. The model is pinned to deterministic settings so a statement
// re-imported later classifies consistently.
package classify

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultModelName is the default Gemini model used for ledger suggestions.
const DefaultModelName = "gemini-2.5-flash"

// Ledger names are a handful of words; cap the reply accordingly.
const maxOutputTokens = 64

// Gemini classifies narrations via the GenAI API. Credentials come from the
// environment (GEMINI_API_KEY or Application Default Credentials).
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini classifier. An empty model selects
// DefaultModelName.
func NewGemini(ctx context.Context, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModelName
	}
	return &Gemini{client: client, model: model}, nil
}

// Classify sends the prompt to the model and returns the suggested ledger
// text. Temperature is fixed at 0 to maximize reproducibility.
func (g *Gemini) Classify(ctx context.Context, prompt string) (string, error) {
	temperature := float32(0)
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: maxOutputTokens,
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := CleanModelText(resp.Text())
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return text, nil
}

// CleanModelText normalizes a model reply down to the bare ledger name:
// Markdown fences and surrounding quotes are stripped and only the first
// non-empty line is kept, since models occasionally add commentary despite
// instructions.
func CleanModelText(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```...``` wrappers: drop the fence lines.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	// Keep only the first non-empty line.
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.Trim(line, `"'`)
		return strings.TrimSpace(line)
	}
	return ""
}
